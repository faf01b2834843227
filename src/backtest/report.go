package backtest

import (
	"time"

	"tradingcore/src/model"
)

// Report is the outcome of one backtest run. Rates are fractions, not percentages.
type Report struct {
	Strategy       model.StrategyKind    `json:"strategy"`
	Symbol         string                `json:"symbol"`
	StartDate      time.Time             `json:"start_date"`
	EndDate        time.Time             `json:"end_date"`
	InitialBalance float64               `json:"initial_balance"`
	FinalBalance   float64               `json:"final_balance"`
	FinalEquity    float64               `json:"final_equity"`
	TotalReturn    float64               `json:"total_return"`
	SharpeRatio    float64               `json:"sharpe_ratio"`
	MaxDrawdown    float64               `json:"max_drawdown"`
	WinRate        float64               `json:"win_rate"`
	TotalTrades    int                   `json:"total_trades"`
	Positions      map[string]float64    `json:"positions"`
	Trades         []model.BacktestTrade `json:"trades"`
	EquityCurve    []model.EquityPoint   `json:"equity_curve"`
}

// Result converts the report into a storable row.
func (r Report) Result(botID *uint, interval string, params model.StrategyParameters) *model.BacktestResult {
	return &model.BacktestResult{
		BotID:          botID,
		Symbol:         r.Symbol,
		Strategy:       r.Strategy,
		Interval:       interval,
		Parameters:     params,
		StartDate:      r.StartDate,
		EndDate:        r.EndDate,
		InitialBalance: r.InitialBalance,
		FinalBalance:   r.FinalBalance,
		FinalEquity:    r.FinalEquity,
		TotalReturn:    r.TotalReturn,
		SharpeRatio:    r.SharpeRatio,
		MaxDrawdown:    r.MaxDrawdown,
		WinRate:        r.WinRate,
		TotalTrades:    r.TotalTrades,
		Trades:         model.BacktestTrades(r.Trades),
		EquityCurve:    model.EquityCurve(r.EquityCurve),
	}
}
