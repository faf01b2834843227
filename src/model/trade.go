package model

import "time"

const (
	TradeStatusPending         = "pending"
	TradeStatusOpen            = "open"
	TradeStatusPartiallyFilled = "partially_filled"
	TradeStatusFilled          = "filled"
	TradeStatusCancelled       = "cancelled"
	TradeStatusFailed          = "failed"
	TradeStatusClosed          = "closed"
)

const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// TradeRecord is the ledger row for one order submitted to a venue.
// Rows in a terminal status are only touched again to backfill profit on close.
type TradeRecord struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	ExchangeOrderID   string     `gorm:"size:120;uniqueIndex;not null" json:"exchange_order_id"`
	BotID             uint       `gorm:"index;not null" json:"bot_id"`
	Venue             string     `gorm:"size:50;index" json:"venue"`
	Symbol            string     `gorm:"size:50;index;not null" json:"symbol"`
	Side              string     `gorm:"size:10;not null" json:"side"`
	Status            string     `gorm:"size:30;not null;default:pending;index" json:"status"`
	Quantity          float64    `json:"quantity"`
	Price             float64    `json:"price"`
	ExecutedQty       float64    `json:"executed_qty"`
	AvgExecutedPrice  float64    `json:"avg_executed_price"`
	Cost              float64    `json:"cost"`
	Fee               float64    `json:"fee"`
	StopLoss          float64    `json:"stop_loss"`
	TakeProfit        float64    `json:"take_profit"`
	RiskPercentage    float64    `json:"risk_percentage"`
	RiskRewardRatio   float64    `json:"risk_reward_ratio"`
	ProfitLoss        *float64   `json:"profit_loss,omitempty"`
	ProfitLossPercent *float64   `json:"profit_loss_percent,omitempty"`
	Unprotected       bool       `gorm:"not null;default:false" json:"unprotected"`
	Notes             string     `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	FilledAt          *time.Time `json:"filled_at,omitempty"`
	ClosedAt          *time.Time `json:"closed_at,omitempty"`
}

func (TradeRecord) TableName() string {
	return "trades"
}

// IsTerminal reports whether the status no longer changes through reconciliation.
func IsTerminal(status string) bool {
	switch status {
	case TradeStatusFilled, TradeStatusCancelled, TradeStatusFailed, TradeStatusClosed:
		return true
	}
	return false
}

// ReconcilableStatuses are the local statuses a reconcile pass looks at.
var ReconcilableStatuses = []string{
	TradeStatusPending,
	TradeStatusOpen,
	TradeStatusPartiallyFilled,
}

// OppositeSide returns sell for buy and buy for sell.
func OppositeSide(side string) string {
	if side == SideBuy {
		return SideSell
	}
	return SideBuy
}
