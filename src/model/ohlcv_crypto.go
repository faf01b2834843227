package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OHLCVRow holds the columns shared by the stored candle tables.
// Each table has a unique (symbol, datetime) index used for upserts.
type OHLCVRow struct {
	ID       uint            `gorm:"primaryKey" json:"id"`
	Symbol   string          `json:"symbol"   gorm:"type:varchar(50);not null;index:,unique,composite:symbol_datetime,priority:1"`
	Datetime time.Time       `json:"datetime" gorm:"not null;index:,unique,composite:symbol_datetime,priority:2"`
	Open     decimal.Decimal `json:"open"   gorm:"type:double precision;not null"`
	High     decimal.Decimal `json:"high"   gorm:"type:double precision;not null"`
	Low      decimal.Decimal `json:"low"    gorm:"type:double precision;not null"`
	Close    decimal.Decimal `json:"close"  gorm:"type:double precision;not null"`
	Volume   decimal.Decimal `json:"volume" gorm:"type:double precision;not null"`
}

func (r OHLCVRow) ToCandle() Candle {
	return Candle{
		Timestamp: r.Datetime,
		Open:      r.Open.InexactFloat64(),
		High:      r.High.InexactFloat64(),
		Low:       r.Low.InexactFloat64(),
		Close:     r.Close.InexactFloat64(),
		Volume:    r.Volume.InexactFloat64(),
	}
}

type OHLCVCrypto1m struct {
	OHLCVRow `gorm:"embedded"`
}

func (OHLCVCrypto1m) TableName() string {
	return "ohlcv_crypto_1m"
}

type OHLCVCrypto1h struct {
	OHLCVRow `gorm:"embedded"`
}

func (OHLCVCrypto1h) TableName() string {
	return "ohlcv_crypto_1h"
}
