package model

import "time"

const (
	ExceptionLevelError    = "error"
	ExceptionLevelCritical = "critical"
)

// Exception is a persisted alert. Critical rows flag conditions that need an operator,
// such as an open position whose protective orders could not be placed.
type Exception struct {
	ID uint `gorm:"primaryKey" json:"id"`

	Service string `gorm:"size:100;index" json:"service"`
	Module  string `gorm:"size:100;index" json:"module"`
	Method  string `gorm:"size:100" json:"method"`

	BotID   *uint `gorm:"index" json:"bot_id,omitempty"`
	TradeID *uint `gorm:"index" json:"trade_id,omitempty"`

	Message string `gorm:"type:text" json:"message"`
	Stack   string `gorm:"type:text" json:"stack"`
	Level   string `gorm:"size:20;index" json:"level"`

	// JSON encoded extra fields
	Context string `gorm:"type:text" json:"context,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func (Exception) TableName() string {
	return "exceptions"
}
