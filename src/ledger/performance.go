package ledger

import (
	"context"
	"fmt"
	"math"

	"tradingcore/src/model"
)

// RecentTradesLimit bounds the recent trades list of a performance snapshot.
const RecentTradesLimit = 100

// TradeStatistics summarises the settled trades of a bot.
type TradeStatistics struct {
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"`
	AverageWin    float64 `json:"average_win"`
	AverageLoss   float64 `json:"average_loss"`
	ProfitFactor  float64 `json:"profit_factor"`
	TotalProfit   float64 `json:"total_profit"`
	TotalFees     float64 `json:"total_fees"`
	NetProfit     float64 `json:"net_profit"`
}

// settled returns the closed entries that carry a realized P&L, oldest first.
// Exit legs hold the negated P&L of their entry and stay filled, so they are not counted.
func settled(history []model.TradeRecord) []model.TradeRecord {
	out := make([]model.TradeRecord, 0, len(history))
	for _, t := range history {
		if t.Status == model.TradeStatusClosed && t.ProfitLoss != nil {
			out = append(out, t)
		}
	}
	return out
}

// Statistics computes win/loss figures over settled trades. Fees are summed over every trade.
// ProfitFactor is zero when there are no losing trades.
func (l *Ledger) Statistics(ctx context.Context, botID uint) (TradeStatistics, error) {
	history, err := l.trades.FindHistory(ctx, botID)
	if err != nil {
		return TradeStatistics{}, fmt.Errorf("load trade history: %w", err)
	}

	var (
		stats            TradeStatistics
		grossWin, grossL float64
	)

	for _, t := range history {
		stats.TotalFees += t.Fee
	}

	for _, t := range settled(history) {
		pnl := *t.ProfitLoss
		stats.TotalTrades++
		stats.TotalProfit += pnl
		switch {
		case pnl > 0:
			stats.WinningTrades++
			grossWin += pnl
		case pnl < 0:
			stats.LosingTrades++
			grossL += -pnl
		}
	}

	if stats.TotalTrades > 0 {
		stats.WinRate = float64(stats.WinningTrades) / float64(stats.TotalTrades) * 100
	}
	if stats.WinningTrades > 0 {
		stats.AverageWin = grossWin / float64(stats.WinningTrades)
	}
	if stats.LosingTrades > 0 {
		stats.AverageLoss = grossL / float64(stats.LosingTrades)
	}
	if grossL > 0 {
		stats.ProfitFactor = grossWin / grossL
	}
	stats.NetProfit = stats.TotalProfit - stats.TotalFees

	return stats, nil
}

// Performance recomputes the bot performance snapshot from the ledger.
func (l *Ledger) Performance(ctx context.Context, botID uint) (model.PerformanceSnapshot, error) {
	history, err := l.trades.FindHistory(ctx, botID)
	if err != nil {
		return model.PerformanceSnapshot{}, fmt.Errorf("load trade history: %w", err)
	}
	return BuildPerformance(history), nil
}

// BuildPerformance derives a snapshot from a trade history ordered oldest first.
func BuildPerformance(history []model.TradeRecord) model.PerformanceSnapshot {
	snap := model.PerformanceSnapshot{RecentTrades: []model.TradeSummary{}}

	closed := settled(history)
	pnls := make([]float64, 0, len(closed))

	var running, peak float64
	for _, t := range closed {
		pnl := *t.ProfitLoss
		pnls = append(pnls, pnl)

		snap.TotalTrades++
		switch {
		case pnl > 0:
			snap.WinningTrades++
			snap.TotalProfit += pnl
		case pnl < 0:
			snap.LosingTrades++
			snap.TotalLoss += -pnl
		}

		running += pnl
		if running > peak {
			peak = running
		}
		if dd := peak - running; dd > snap.MaxDrawdown {
			snap.MaxDrawdown = dd
		}
	}

	if snap.TotalTrades > 0 {
		snap.WinRate = float64(snap.WinningTrades) / float64(snap.TotalTrades) * 100
	}
	snap.NetProfit = snap.TotalProfit - snap.TotalLoss
	snap.SharpeRatio = sharpe(pnls)

	if n := len(history); n > 0 {
		last := history[n-1]
		at := last.CreatedAt
		if last.FilledAt != nil {
			at = *last.FilledAt
		}
		snap.LastTradeAt = &at
	}

	start := 0
	if len(history) > RecentTradesLimit {
		start = len(history) - RecentTradesLimit
	}
	for _, t := range history[start:] {
		snap.RecentTrades = append(snap.RecentTrades, model.TradeSummary{
			ID:                t.ID,
			Symbol:            t.Symbol,
			Side:              t.Side,
			Quantity:          t.Quantity,
			Price:             fillPrice(&t),
			ProfitLoss:        t.ProfitLoss,
			ProfitLossPercent: t.ProfitLossPercent,
			CreatedAt:         t.CreatedAt,
		})
	}

	return snap
}

// sharpe annualises mean/stddev of per-trade P&L with sqrt(252). Zero without dispersion.
func sharpe(pnls []float64) float64 {
	if len(pnls) < 2 {
		return 0
	}
	var sum float64
	for _, v := range pnls {
		sum += v
	}
	mean := sum / float64(len(pnls))

	var sq float64
	for _, v := range pnls {
		sq += (v - mean) * (v - mean)
	}
	std := math.Sqrt(sq / float64(len(pnls)))
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(252)
}
