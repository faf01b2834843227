package monitoring

import (
	"context"
	"encoding/json"
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"

	"tradingcore/src/model"
)

// ExceptionStore persists alerts. *repository.ExceptionRepository satisfies it.
type ExceptionStore interface {
	Create(ctx context.Context, exc *model.Exception) error
}

type Alert struct {
	Module  string
	Method  string
	BotID   *uint
	TradeID *uint
	Err     error
	Context map[string]interface{}
}

// Alerter records exceptions: it logs them, persists them when a store is set and counts them.
type Alerter struct {
	service  string
	store    ExceptionStore
	recorder *Recorder
	log      *logrus.Entry
	now      func() time.Time
}

func NewAlerter(service string, store ExceptionStore, recorder *Recorder) *Alerter {
	return &Alerter{
		service:  service,
		store:    store,
		recorder: recorder,
		log:      logrus.WithField("component", "alerter"),
		now:      time.Now,
	}
}

// Critical is for conditions that need an operator, such as an unprotected position.
func (a *Alerter) Critical(ctx context.Context, alert Alert) {
	a.capture(ctx, model.ExceptionLevelCritical, alert)
}

func (a *Alerter) Error(ctx context.Context, alert Alert) {
	a.capture(ctx, model.ExceptionLevelError, alert)
}

func (a *Alerter) capture(ctx context.Context, level string, alert Alert) {
	if a == nil || alert.Err == nil {
		return
	}

	var ctxJSON string
	if alert.Context != nil {
		if b, e := json.Marshal(alert.Context); e == nil {
			ctxJSON = string(b)
		}
	}

	exc := &model.Exception{
		Service:   a.service,
		Module:    alert.Module,
		Method:    alert.Method,
		BotID:     alert.BotID,
		TradeID:   alert.TradeID,
		Message:   alert.Err.Error(),
		Stack:     string(debug.Stack()),
		Level:     level,
		Context:   ctxJSON,
		CreatedAt: a.now(),
	}

	entry := a.log.WithFields(map[string]interface{}{
		"service": a.service,
		"module":  alert.Module,
		"method":  alert.Method,
		"level":   level,
	})
	if alert.TradeID != nil {
		entry = entry.WithField("trade_id", *alert.TradeID)
	}
	entry.WithError(alert.Err).Error("System exception captured")

	a.recorder.RecordAlert(level)

	if a.store != nil {
		if e := a.store.Create(ctx, exc); e != nil {
			a.log.WithError(e).Error("Failed to persist exception")
		}
	}
}
