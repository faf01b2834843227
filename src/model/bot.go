package model

import (
	"database/sql/driver"
	"time"
)

// StrategyKind names the persisted strategy variant of a bot.
type StrategyKind string

const (
	StrategyTrendConfluence StrategyKind = "RSI_SMA_MACD"
	StrategyBollingerBands  StrategyKind = "BOLLINGER_BANDS"
	StrategyHybrid          StrategyKind = "HYBRID"
)

type RSIParams struct {
	Period     int     `json:"period"`
	Overbought float64 `json:"overbought"`
	Oversold   float64 `json:"oversold"`
}

type SMAParams struct {
	ShortPeriod int `json:"short_period"`
	LongPeriod  int `json:"long_period"`
}

type MACDParams struct {
	FastPeriod   int `json:"fast_period"`
	SlowPeriod   int `json:"slow_period"`
	SignalPeriod int `json:"signal_period"`
}

type BollingerParams struct {
	Period      int     `json:"period"`
	StandardDev float64 `json:"standard_dev"`
}

// StrategyParameters holds every indicator setting. A strategy reads only the groups it needs.
type StrategyParameters struct {
	RSI       RSIParams       `json:"rsi"`
	SMA       SMAParams       `json:"sma"`
	MACD      MACDParams      `json:"macd"`
	Bollinger BollingerParams `json:"bollinger"`
}

func (p StrategyParameters) Value() (driver.Value, error) { return jsonValue(p) }
func (p *StrategyParameters) Scan(src any) error { return scanJSON(src, p) }

// RiskSettings is the per-bot risk configuration. The account balance is read from the venue.
type RiskSettings struct {
	RiskPercentage  float64 `json:"risk_percentage" validate:"gt=0"`
	RiskRewardRatio float64 `json:"risk_reward_ratio" validate:"gt=0"`
	MaxPositionSize float64 `json:"max_position_size" validate:"gt=0"`
	MaxRiskPerTrade float64 `json:"max_risk_per_trade" validate:"gt=0,gtefield=RiskPercentage"`
	SessionSizing   bool    `json:"session_sizing"`
}

func (r RiskSettings) Value() (driver.Value, error) { return jsonValue(r) }
func (r *RiskSettings) Scan(src any) error { return scanJSON(src, r) }

// TradeSummary is one entry of the recent trades list kept in a performance snapshot.
type TradeSummary struct {
	ID                uint      `json:"id"`
	Symbol            string    `json:"symbol"`
	Side              string    `json:"side"`
	Quantity          float64   `json:"quantity"`
	Price             float64   `json:"price"`
	ProfitLoss        *float64  `json:"profit_loss,omitempty"`
	ProfitLossPercent *float64  `json:"profit_loss_percent,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// PerformanceSnapshot is derived from the trade ledger and stored on the bot for reporting.
type PerformanceSnapshot struct {
	TotalTrades   int            `json:"total_trades"`
	WinningTrades int            `json:"winning_trades"`
	LosingTrades  int            `json:"losing_trades"`
	WinRate       float64        `json:"win_rate"`
	TotalProfit   float64        `json:"total_profit"`
	TotalLoss     float64        `json:"total_loss"`
	NetProfit     float64        `json:"net_profit"`
	MaxDrawdown   float64        `json:"max_drawdown"`
	SharpeRatio   float64        `json:"sharpe_ratio"`
	LastTradeAt   *time.Time     `json:"last_trade_at,omitempty"`
	RecentTrades  []TradeSummary `json:"recent_trades"`
}

func (p PerformanceSnapshot) Value() (driver.Value, error) { return jsonValue(p) }
func (p *PerformanceSnapshot) Scan(src any) error { return scanJSON(src, p) }

// Bot is a persisted bot configuration.
type Bot struct {
	ID              uint                `gorm:"primaryKey" json:"id"`
	Name            string              `gorm:"size:100;not null" json:"name"`
	Venue           string              `gorm:"size:50;not null;index" json:"venue"`
	Symbol          string              `gorm:"size:50;not null" json:"symbol"`
	Strategy        StrategyKind        `gorm:"size:30;not null;default:RSI_SMA_MACD" json:"strategy"`
	Interval        string              `gorm:"size:5;not null;default:1h" json:"interval"`
	IsActive        bool                `gorm:"not null;default:false;index" json:"is_active"`
	MinConfidence   float64             `gorm:"not null;default:0.7" json:"min_confidence"`
	CooldownSeconds int                 `gorm:"not null;default:300" json:"cooldown_seconds"`
	Parameters      StrategyParameters  `gorm:"type:jsonb" json:"parameters"`
	RiskManagement  RiskSettings        `gorm:"type:jsonb" json:"risk_management"`
	Performance     PerformanceSnapshot `gorm:"type:jsonb" json:"performance"`
	Description     string              `gorm:"type:text" json:"description,omitempty"`
	LastTradeAt     *time.Time          `json:"last_trade_at,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

func (Bot) TableName() string {
	return "bots"
}
