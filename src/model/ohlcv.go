package model

import (
	"tradingcore/src/utils"
	"time"

	"github.com/shopspring/decimal"
)

// OHLCVBase is a venue kline before it is bucketed into a stored timeframe table.
type OHLCVBase struct {
	Datetime time.Time       `json:"datetime"`
	Open     decimal.Decimal `json:"open"`
	High     decimal.Decimal `json:"high"`
	Low      decimal.Decimal `json:"low"`
	Close    decimal.Decimal `json:"close"`
	Volume   decimal.Decimal `json:"volume"`
	Symbol   string          `json:"symbol"`
}

// NewOHLCVBaseFromCandle converts a float candle into its decimal storage form.
func NewOHLCVBaseFromCandle(symbol string, c Candle) *OHLCVBase {
	return &OHLCVBase{
		Datetime: c.Timestamp.UTC(),
		Open:     decimal.NewFromFloat(c.Open),
		High:     decimal.NewFromFloat(c.High),
		Low:      decimal.NewFromFloat(c.Low),
		Close:    decimal.NewFromFloat(c.Close),
		Volume:   decimal.NewFromFloat(c.Volume),
		Symbol:   symbol,
	}
}

func (o *OHLCVBase) ToCandle() Candle {
	return Candle{
		Timestamp: o.Datetime,
		Open:      o.Open.InexactFloat64(),
		High:      o.High.InexactFloat64(),
		Low:       o.Low.InexactFloat64(),
		Close:     o.Close.InexactFloat64(),
		Volume:    o.Volume.InexactFloat64(),
	}
}

func (o *OHLCVBase) ToHourRow() *OHLCVCrypto1h {
	return &OHLCVCrypto1h{OHLCVRow: o.row(utils.ResetTime(o.Datetime, "hour"))}
}

func (o *OHLCVBase) ToMinuteRow() *OHLCVCrypto1m {
	return &OHLCVCrypto1m{OHLCVRow: o.row(utils.ResetTime(o.Datetime, "minute"))}
}

func (o *OHLCVBase) row(at time.Time) OHLCVRow {
	return OHLCVRow{
		Symbol:   o.Symbol,
		Datetime: at,
		Open:     o.Open,
		High:     o.High,
		Low:      o.Low,
		Close:    o.Close,
		Volume:   o.Volume,
	}
}
