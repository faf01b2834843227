package model

import (
	"database/sql/driver"
	"time"
)

// BacktestTrade is one simulated fill.
type BacktestTrade struct {
	Timestamp time.Time `json:"timestamp"`
	Symbol    string    `json:"symbol"`
	Side      string    `json:"side"`
	Price     float64   `json:"price"`
	Quantity  float64   `json:"quantity"`
	Fee       float64   `json:"fee"`
	Balance   float64   `json:"balance"`
}

type EquityPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Equity    float64   `json:"equity"`
}

type BacktestTrades []BacktestTrade

func (t BacktestTrades) Value() (driver.Value, error) { return jsonValue(t) }
func (t *BacktestTrades) Scan(src any) error { return scanJSON(src, t) }

type EquityCurve []EquityPoint

func (e EquityCurve) Value() (driver.Value, error) { return jsonValue(e) }
func (e *EquityCurve) Scan(src any) error { return scanJSON(src, e) }

// BacktestResult is a stored backtest report.
type BacktestResult struct {
	ID             uint               `gorm:"primaryKey" json:"id"`
	BotID          *uint              `gorm:"index" json:"bot_id,omitempty"`
	Symbol         string             `gorm:"size:50;not null" json:"symbol"`
	Strategy       StrategyKind       `gorm:"size:30;not null" json:"strategy"`
	Interval       string             `gorm:"size:5" json:"interval"`
	Parameters     StrategyParameters `gorm:"type:jsonb" json:"parameters"`
	StartDate      time.Time          `json:"start_date"`
	EndDate        time.Time          `json:"end_date"`
	InitialBalance float64            `json:"initial_balance"`
	FinalBalance   float64            `json:"final_balance"`
	FinalEquity    float64            `json:"final_equity"`
	TotalReturn    float64            `json:"total_return"`
	SharpeRatio    float64            `json:"sharpe_ratio"`
	MaxDrawdown    float64            `json:"max_drawdown"`
	WinRate        float64            `json:"win_rate"`
	TotalTrades    int                `json:"total_trades"`
	Trades         BacktestTrades     `gorm:"type:jsonb" json:"trades"`
	EquityCurve    EquityCurve        `gorm:"type:jsonb" json:"equity_curve"`
	CreatedAt      time.Time          `json:"created_at"`
}

func (BacktestResult) TableName() string {
	return "backtest_results"
}
