package executors

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tradingcore/src/connectors"
	"tradingcore/src/errs"
	"tradingcore/src/ledger"
	"tradingcore/src/model"
	"tradingcore/src/risk"
	"tradingcore/src/signal"
)

const (
	OutcomeCooldown      = "cooldown"
	OutcomeHold          = "hold"
	OutcomeLowConfidence = "low_confidence"
	OutcomeNoTradeWindow = "no_trade_window"
	OutcomeRejected      = "rejected"
	OutcomeFailed        = "failed"
	OutcomeTraded        = "traded"
	OutcomeError         = "error"
)

// run is the bot loop. The timer is re-armed only after a cycle returns, so cycles of one
// bot never overlap.
func (m *BotManager) run(ctx context.Context, rt *botRuntime) {
	defer close(rt.done)

	period := rt.cfg.Period
	if period <= 0 {
		period = IntervalDuration(rt.cfg.Interval)
	}

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.WithField("bot_id", rt.cfg.BotID).Info("loop stopped")
			return

		case <-timer.C:
			// select picks randomly when the stop and the timer are both ready
			if ctx.Err() != nil {
				return
			}
			m.tick(ctx, rt)
			timer.Reset(period)
		}
	}
}

func (m *BotManager) tick(ctx context.Context, rt *botRuntime) {
	outcome, err := m.cycle(ctx, rt)

	rt.mu.Lock()
	rt.cycles++
	rt.lastOutcome = outcome
	rt.lastErr = ""
	if err != nil {
		rt.lastErr = err.Error()
	}
	rt.mu.Unlock()

	m.deps.Recorder.RecordCycle(rt.cfg.Name, outcome)

	entry := m.log.WithFields(map[string]interface{}{
		"bot_id":  rt.cfg.BotID,
		"symbol":  rt.cfg.Symbol,
		"outcome": outcome,
	})
	switch {
	case err == nil:
		entry.Debug("cycle finished")
	case errs.IsRiskValidation(err):
		entry.WithError(err).Warn("order rejected by risk checks")
	case errs.IsCircuitOpen(err):
		entry.WithError(err).Warn("venue unavailable, circuit open")
	default:
		entry.WithError(err).Error("cycle failed")
	}
}

// cycle runs one evaluation. Venue calls use a context detached from ctx so that a stop
// request does not abort an order mid-flight.
func (m *BotManager) cycle(ctx context.Context, rt *botRuntime) (string, error) {
	cfg := rt.cfg
	now := m.deps.Now()

	rt.mu.Lock()
	last := rt.lastTradeAt
	rt.mu.Unlock()
	if !last.IsZero() && now.Sub(last) < cfg.Cooldown {
		return OutcomeCooldown, nil
	}

	vctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.deps.Config.CycleTimeout)
	defer cancel()

	candles, err := m.candles.FetchCandles(vctx, cfg.Symbol, cfg.Interval, m.deps.Config.CandleLimit)
	if err != nil {
		return OutcomeError, fmt.Errorf("fetch candles: %w", err)
	}

	sig := signal.Run(rt.strategy, candles)
	m.deps.Recorder.RecordSignal(string(cfg.Strategy), string(sig.Action))
	rt.mu.Lock()
	rt.lastSignal = &sig
	rt.mu.Unlock()

	if sig.Action == model.ActionHold {
		return OutcomeHold, nil
	}
	if sig.Confidence < cfg.MinConfidence {
		return OutcomeLowConfidence, nil
	}

	side := model.SideBuy
	if sig.Action == model.ActionSell {
		side = model.SideSell
	}

	ex := m.deps.Exchange
	ticker, err := ex.FetchTicker(vctx, cfg.Symbol)
	if err != nil {
		return OutcomeError, fmt.Errorf("fetch ticker: %w", err)
	}
	balance, err := ex.FetchBalance(vctx)
	if err != nil {
		return OutcomeError, fmt.Errorf("fetch balance: %w", err)
	}
	_, quote := connectors.SplitSymbol(cfg.Symbol)

	sized := risk.Size(side, sig.ReferencePrice, risk.ParametersFromSettings(balance.Free(quote), cfg.Risk))
	if err := risk.CheckMarketSanity(sized, ticker.Last); err != nil {
		return OutcomeRejected, err
	}

	if cfg.Risk.SessionSizing && m.deps.Sessions != nil {
		scaled, session := m.deps.Sessions.Scale(sized.PositionSize, now)
		if session == risk.SessionNoTrade || !scaled.IsPositive() {
			return OutcomeNoTradeWindow, nil
		}
		// session scaling may only shrink a size that already passed the risk limits
		sized.PositionSize = decimal.Min(scaled, sized.PositionSize)
	}

	_, _, _, size := sized.Floats()
	order, placeErr := ex.PlaceOrder(vctx, connectors.OrderRequest{
		Symbol:        cfg.Symbol,
		Side:          side,
		Type:          connectors.OrderTypeMarket,
		Amount:        size,
		ClientOrderID: uuid.NewString(),
	})

	trade, recErr := m.deps.Ledger.RecordSubmission(vctx, ledger.Submission{
		BotID:           cfg.BotID,
		Venue:           ex.Name(),
		Symbol:          cfg.Symbol,
		Order:           sized,
		RiskPercentage:  cfg.Risk.RiskPercentage,
		RiskRewardRatio: cfg.Risk.RiskRewardRatio,
	}, order, placeErr)

	if placeErr != nil {
		return OutcomeFailed, errors.Join(fmt.Errorf("place order: %w", placeErr), recErr)
	}
	if recErr != nil {
		return OutcomeError, fmt.Errorf("order %s placed but not recorded: %w", order.ID, recErr)
	}

	if m.deps.Config.ProtectiveOrders {
		if legErr := m.protect(vctx, trade, sized); legErr != nil {
			if err := m.deps.Ledger.MarkUnprotected(vctx, trade, legErr); err != nil {
				m.log.WithError(err).WithField("trade_id", trade.ID).Error("Failed to flag unprotected trade")
			}
		}
	}

	rt.mu.Lock()
	rt.lastTradeAt = now
	rt.mu.Unlock()

	if m.deps.Bots != nil {
		if err := m.deps.Bots.UpdateLastTradeAt(vctx, cfg.BotID, now); err != nil {
			m.log.WithError(err).WithField("bot_id", cfg.BotID).Error("Failed to store last trade time")
		}
	}
	if err := SyncPerformance(vctx, m.deps.Ledger, m.deps.Bots, cfg.BotID); err != nil {
		m.log.WithError(err).WithField("bot_id", cfg.BotID).Error("Failed to refresh performance")
	}

	return OutcomeTraded, nil
}

// protect places the stop loss and take profit legs on the exit side.
func (m *BotManager) protect(ctx context.Context, trade *model.TradeRecord, sized risk.SizedOrder) error {
	if trade.Status == model.TradeStatusFailed {
		return nil
	}

	_, stopLoss, takeProfit, size := sized.Floats()
	if trade.Quantity > 0 {
		size = trade.Quantity
	}
	exit := model.OppositeSide(trade.Side)

	legs := []connectors.OrderRequest{
		{Symbol: trade.Symbol, Side: exit, Type: connectors.OrderTypeStopLoss, Amount: size, StopPrice: stopLoss, ReduceOnly: true},
		{Symbol: trade.Symbol, Side: exit, Type: connectors.OrderTypeTakeProfit, Amount: size, StopPrice: takeProfit, ReduceOnly: true},
	}

	var legErr error
	for _, req := range legs {
		req.ClientOrderID = uuid.NewString()
		if _, err := m.deps.Exchange.PlaceOrder(ctx, req); err != nil {
			legErr = errors.Join(legErr, fmt.Errorf("%s leg at %v: %w", req.Type, req.StopPrice, err))
		}
	}
	return legErr
}

// SyncPerformance settles closed round trips and stores the recomputed snapshot on the bot.
func SyncPerformance(ctx context.Context, l *ledger.Ledger, bots BotStore, botID uint) error {
	if l == nil {
		return nil
	}
	if _, err := l.CloseSettled(ctx, botID); err != nil {
		return err
	}
	if bots == nil {
		return nil
	}
	snap, err := l.Performance(ctx, botID)
	if err != nil {
		return err
	}
	return bots.UpdatePerformance(ctx, botID, snap)
}
