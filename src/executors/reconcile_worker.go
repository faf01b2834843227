package executors

import (
	"context"
	"time"

	logger "github.com/sirupsen/logrus"

	"tradingcore/src/connectors"
	"tradingcore/src/ledger"
	"tradingcore/src/model"
)

// ActiveBots lists bots flagged active. *repository.BotRepository satisfies it.
type ActiveBots interface {
	BotStore
	FindActive(ctx context.Context) ([]model.Bot, error)
}

// ReconcileWorker periodically reconciles the trades of every active bot and refreshes
// their performance snapshots.
type ReconcileWorker struct {
	bots     ActiveBots
	ledger   *ledger.Ledger
	exchange connectors.Exchange
	interval time.Duration
	log      *logger.Entry
}

func NewReconcileWorker(bots ActiveBots, l *ledger.Ledger, ex connectors.Exchange, interval time.Duration) *ReconcileWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &ReconcileWorker{
		bots:     bots,
		ledger:   l,
		exchange: ex,
		interval: interval,
		log:      logger.WithField("component", "reconcile_worker"),
	}
}

// Run reconciles once immediately and then on every tick until ctx is done.
func (w *ReconcileWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			w.log.Info("reconcile worker stopped")
			return nil
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce reconciles every active bot on this worker's venue. A failing bot is logged and
// skipped. Returns the number of updated trades.
func (w *ReconcileWorker) RunOnce(ctx context.Context) int {
	bots, err := w.bots.FindActive(ctx)
	if err != nil {
		w.log.WithError(err).Error("Failed to load active bots")
		return 0
	}

	venue := w.exchange.Name()
	total := 0
	for _, b := range bots {
		if b.Venue != "" && b.Venue != venue {
			continue
		}

		n, err := w.ledger.Reconcile(ctx, venue, b.ID, w.exchange)
		if err != nil {
			w.log.WithError(err).WithField("bot_id", b.ID).Error("Reconciliation failed")
			continue
		}
		total += n

		if err := SyncPerformance(ctx, w.ledger, w.bots, b.ID); err != nil {
			w.log.WithError(err).WithField("bot_id", b.ID).Error("Performance sync failed")
		}
	}

	w.log.WithFields(map[string]interface{}{
		"bots":    len(bots),
		"updated": total,
	}).Info("reconcile pass done")

	return total
}
