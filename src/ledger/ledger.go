package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"

	"tradingcore/src/connectors"
	"tradingcore/src/errs"
	"tradingcore/src/model"
	"tradingcore/src/monitoring"
	"tradingcore/src/repository"
	"tradingcore/src/risk"
)

// FailedIDPrefix marks the synthetic exchange order id of a submission the venue never accepted.
const FailedIDPrefix = "FAILED_"

var (
	// ErrNoExitTrade is returned by CloseAndComputeProfit while no opposite fill exists yet.
	ErrNoExitTrade = errors.New("no exit trade found")

	// ErrAlreadySettled is returned for a trade that already carries a realized P&L as an exit leg.
	ErrAlreadySettled = errors.New("trade already settled")
)

// Alerter raises high severity alerts. *monitoring.Alerter satisfies it.
type Alerter interface {
	Critical(ctx context.Context, alert monitoring.Alert)
}

// Ledger owns the trade records of every bot: it records submissions, reconciles
// them against venue order state and settles realized profit.
type Ledger struct {
	trades   *repository.TradeRepository
	alerter  Alerter
	recorder *monitoring.Recorder
	log      *logger.Entry
	now      func() time.Time
}

type Option func(*Ledger)

func WithAlerter(a Alerter) Option {
	return func(l *Ledger) { l.alerter = a }
}

func WithRecorder(r *monitoring.Recorder) Option {
	return func(l *Ledger) { l.recorder = r }
}

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func New(trades *repository.TradeRepository, opts ...Option) *Ledger {
	l := &Ledger{
		trades: trades,
		log:    logger.WithField("component", "ledger"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Submission describes the order a bot tried to place.
type Submission struct {
	BotID           uint
	Venue           string
	Symbol          string
	Order           risk.SizedOrder
	RiskPercentage  float64
	RiskRewardRatio float64
}

// RecordSubmission persists the outcome of a placement. A failed submission is stored
// with status failed and a synthetic id so it stays in the audit trail.
func (l *Ledger) RecordSubmission(
	ctx context.Context,
	sub Submission,
	order *connectors.VenueOrder,
	submitErr error,
) (*model.TradeRecord, error) {

	entry, stopLoss, takeProfit, size := sub.Order.Floats()
	now := l.now()

	trade := &model.TradeRecord{
		BotID:           sub.BotID,
		Venue:           sub.Venue,
		Symbol:          sub.Symbol,
		Side:            sub.Order.Side,
		Quantity:        size,
		Price:           entry,
		StopLoss:        stopLoss,
		TakeProfit:      takeProfit,
		RiskPercentage:  sub.RiskPercentage,
		RiskRewardRatio: sub.RiskRewardRatio,
		CreatedAt:       now,
	}

	if submitErr == nil && order == nil {
		submitErr = errors.New("venue returned no order")
	}

	if submitErr != nil {
		trade.ExchangeOrderID = FailedIDPrefix + uuid.NewString()
		trade.Status = model.TradeStatusFailed
		trade.Notes = "submission failed: " + submitErr.Error()
	} else {
		trade.ExchangeOrderID = order.ID
		if order.Amount > 0 {
			trade.Quantity = order.Amount
		}
		if order.Average > 0 {
			trade.Price = order.Average
		} else if order.Price > 0 {
			trade.Price = order.Price
		}
		trade.ExecutedQty = order.Filled
		trade.AvgExecutedPrice = order.Average
		trade.Cost = orderCost(*order)
		trade.Fee = order.Fee
		trade.Status = MapVenueStatus(*order, model.TradeStatusOpen)
		if trade.Status == model.TradeStatusFilled {
			trade.FilledAt = &now
		}
	}

	if err := l.trades.Create(ctx, trade); err != nil {
		return nil, fmt.Errorf("record submission: %w", err)
	}

	l.recorder.RecordTrade(sub.Venue, trade.Side, trade.Status)

	l.log.WithFields(map[string]interface{}{
		"bot_id":            trade.BotID,
		"trade_id":          trade.ID,
		"exchange_order_id": trade.ExchangeOrderID,
		"status":            trade.Status,
	}).Info("Submission recorded")

	return trade, nil
}

// MarkUnprotected flags an open position whose stop loss or take profit could not be placed
// and raises a critical alert.
func (l *Ledger) MarkUnprotected(ctx context.Context, trade *model.TradeRecord, legErr error) error {
	note := "UNPROTECTED: protective orders failed: " + legErr.Error()
	notes := trade.Notes
	if notes == "" {
		notes = note
	} else {
		notes += "; " + note
	}

	err := l.trades.UpdateFields(ctx, trade.ID, map[string]interface{}{
		"unprotected": true,
		"notes":       notes,
	})
	if err == nil {
		trade.Unprotected = true
		trade.Notes = notes
	}

	if l.alerter != nil {
		botID, tradeID := trade.BotID, trade.ID
		l.alerter.Critical(ctx, monitoring.Alert{
			Module:  "ledger",
			Method:  "MarkUnprotected",
			BotID:   &botID,
			TradeID: &tradeID,
			Err:     legErr,
			Context: map[string]interface{}{
				"symbol":            trade.Symbol,
				"side":              trade.Side,
				"exchange_order_id": trade.ExchangeOrderID,
				"stop_loss":         trade.StopLoss,
				"take_profit":       trade.TakeProfit,
			},
		})
	}

	if err != nil {
		return fmt.Errorf("mark trade %d unprotected: %w", trade.ID, err)
	}
	return nil
}

// MapVenueStatus derives the trade status from a venue order, keeping current when the
// venue state says nothing new.
func MapVenueStatus(o connectors.VenueOrder, current string) string {
	switch {
	case connectors.IsClosedStatus(o.Status):
		if o.Filled > 0 && (o.Amount <= 0 || o.Filled >= o.Amount) {
			return model.TradeStatusFilled
		}
		if o.Filled > 0 {
			return model.TradeStatusPartiallyFilled
		}
	case connectors.IsCancelledStatus(o.Status):
		return model.TradeStatusCancelled
	case strings.EqualFold(o.Status, connectors.OrderStatusOpen) && o.Filled > 0:
		return model.TradeStatusPartiallyFilled
	}
	return current
}

func orderCost(o connectors.VenueOrder) float64 {
	if o.Cost > 0 {
		return o.Cost
	}
	return o.Filled * o.Average
}

// Reconcile pulls the venue order list for every symbol the bot has open trades on and
// brings the local records in line. Only changed records are written, so a second pass
// without venue side changes performs no writes. Returns the number of updated trades.
func (l *Ledger) Reconcile(ctx context.Context, venueID string, botID uint, ex connectors.Exchange) (int, error) {
	trades, err := l.trades.FindReconcilable(ctx, botID)
	if err != nil {
		return 0, fmt.Errorf("load reconcilable trades: %w", err)
	}
	if len(trades) == 0 {
		return 0, nil
	}

	venueOrders := make(map[string]connectors.VenueOrder)
	listed := make(map[string]bool)
	for _, t := range trades {
		if listed[t.Symbol] {
			continue
		}
		listed[t.Symbol] = true

		orders, err := ex.ListOrders(ctx, t.Symbol)
		if err != nil {
			return 0, fmt.Errorf("list %s orders on %s: %w", t.Symbol, venueID, err)
		}
		for _, o := range orders {
			venueOrders[o.ID] = o
		}
	}

	updated := 0
	for i := range trades {
		t := &trades[i]

		o, ok := venueOrders[t.ExchangeOrderID]
		if !ok {
			l.log.WithFields(map[string]interface{}{
				"bot_id":            botID,
				"trade_id":          t.ID,
				"exchange_order_id": t.ExchangeOrderID,
			}).Debug("Order not reported by venue")
			continue
		}

		changed, err := l.reconcileTrade(ctx, t, o)
		if err != nil {
			rerr := &errs.ReconciliationError{TradeID: t.ID, Err: err}
			l.log.WithFields(map[string]interface{}{
				"bot_id": botID,
				"venue":  venueID,
			}).WithError(rerr).Error("Trade reconciliation failed")
			continue
		}
		if changed {
			updated++
		}
	}

	l.recorder.RecordReconciled(venueID, updated)

	l.log.WithFields(map[string]interface{}{
		"bot_id":  botID,
		"venue":   venueID,
		"checked": len(trades),
		"updated": updated,
	}).Info("Reconciliation pass finished")

	return updated, nil
}

func (l *Ledger) reconcileTrade(ctx context.Context, t *model.TradeRecord, o connectors.VenueOrder) (bool, error) {
	fields := make(map[string]interface{})

	status := MapVenueStatus(o, t.Status)
	if status != t.Status {
		fields["status"] = status
	}
	if o.Filled != t.ExecutedQty {
		fields["executed_qty"] = o.Filled
	}
	if o.Average > 0 && o.Average != t.AvgExecutedPrice {
		fields["avg_executed_price"] = o.Average
	}
	if cost := orderCost(o); cost != t.Cost {
		fields["cost"] = cost
	}
	if o.Fee != t.Fee {
		fields["fee"] = o.Fee
	}
	if status == model.TradeStatusFilled && t.FilledAt == nil {
		fields["filled_at"] = l.now()
	}

	if len(fields) == 0 {
		return false, nil
	}
	if err := l.trades.UpdateFields(ctx, t.ID, fields); err != nil {
		return false, err
	}
	return true, nil
}

// CloseAndComputeProfit settles a filled entry against the nearest later filled trade on the
// opposite side. The entry receives the realized P&L and is closed at the exit's creation
// time; the exit carries the negated P&L.
func (l *Ledger) CloseAndComputeProfit(ctx context.Context, tradeID uint) (float64, error) {
	entry, err := l.trades.FindByID(ctx, tradeID)
	if err != nil {
		return 0, fmt.Errorf("load trade %d: %w", tradeID, err)
	}
	if entry == nil {
		return 0, fmt.Errorf("trade %d: %w", tradeID, errs.ErrTradeNotFound)
	}
	if entry.Status != model.TradeStatusFilled {
		return 0, fmt.Errorf("trade %d is %s, only filled trades can be closed", tradeID, entry.Status)
	}
	if entry.ProfitLoss != nil {
		return 0, fmt.Errorf("trade %d: %w", tradeID, ErrAlreadySettled)
	}

	exit, err := l.trades.FindNextOpposite(ctx, entry)
	if err != nil {
		return 0, fmt.Errorf("find exit for trade %d: %w", tradeID, err)
	}
	if exit == nil {
		return 0, fmt.Errorf("trade %d: %w", tradeID, ErrNoExitTrade)
	}

	entryPrice, exitPrice := fillPrice(entry), fillPrice(exit)
	qty := math.Min(fillQty(entry), fillQty(exit))
	sign := 1.0
	if entry.Side == model.SideSell {
		sign = -1.0
	}

	pnl := (exitPrice - entryPrice) * qty * sign
	var pnlPct float64
	if basis := entryPrice * qty; basis > 0 {
		pnlPct = pnl / basis * 100
	}
	exitPnl := -pnl
	closedAt := exit.CreatedAt

	err = l.trades.Transaction(ctx, func(tx *repository.TradeRepository) error {
		if err := tx.UpdateFields(ctx, entry.ID, map[string]interface{}{
			"profit_loss":         pnl,
			"profit_loss_percent": pnlPct,
			"closed_at":           closedAt,
			"status":              model.TradeStatusClosed,
		}); err != nil {
			return err
		}
		return tx.UpdateFields(ctx, exit.ID, map[string]interface{}{
			"profit_loss": exitPnl,
		})
	})
	if err != nil {
		return 0, fmt.Errorf("settle trade %d: %w", tradeID, err)
	}

	l.log.WithFields(map[string]interface{}{
		"bot_id":   entry.BotID,
		"entry_id": entry.ID,
		"exit_id":  exit.ID,
		"pnl":      pnl,
		"pnl_pct":  pnlPct,
	}).Info("Trade closed")

	return pnl, nil
}

// CloseSettled settles every filled entry of the bot that has a matching exit.
// Returns how many trades were closed.
func (l *Ledger) CloseSettled(ctx context.Context, botID uint) (int, error) {
	history, err := l.trades.FindHistory(ctx, botID)
	if err != nil {
		return 0, err
	}

	closed := 0
	for _, t := range history {
		if t.Status != model.TradeStatusFilled || t.ProfitLoss != nil {
			continue
		}
		if _, err := l.CloseAndComputeProfit(ctx, t.ID); err != nil {
			if errors.Is(err, ErrNoExitTrade) || errors.Is(err, ErrAlreadySettled) {
				continue
			}
			return closed, err
		}
		closed++
	}
	return closed, nil
}

// CancelOpen marks every non-terminal trade of the bot cancelled and returns them so the
// caller can cancel the venue orders.
func (l *Ledger) CancelOpen(ctx context.Context, botID uint, reason string) ([]model.TradeRecord, error) {
	trades, err := l.trades.CancelOpen(ctx, botID, reason, l.now())
	if err != nil {
		return nil, fmt.Errorf("cancel open trades of bot %d: %w", botID, err)
	}
	for _, t := range trades {
		l.recorder.RecordTrade(t.Venue, t.Side, t.Status)
	}
	return trades, nil
}

func fillPrice(t *model.TradeRecord) float64 {
	if t.AvgExecutedPrice > 0 {
		return t.AvgExecutedPrice
	}
	return t.Price
}

func fillQty(t *model.TradeRecord) float64 {
	if t.ExecutedQty > 0 {
		return t.ExecutedQty
	}
	return t.Quantity
}
