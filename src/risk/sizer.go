package risk

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"tradingcore/src/errs"
	"tradingcore/src/model"
)

var hundred = decimal.NewFromInt(100)

// Parameters are the inputs of one sizing decision.
// RiskPercentage and MaxRiskPerTrade are percentages of the account balance.
type Parameters struct {
	AccountBalance  float64
	RiskPercentage  float64
	RiskRewardRatio float64
	MaxPositionSize float64
	MaxRiskPerTrade float64
}

// ParametersFromSettings pairs a bot risk configuration with the current account balance.
func ParametersFromSettings(balance float64, s model.RiskSettings) Parameters {
	return Parameters{
		AccountBalance:  balance,
		RiskPercentage:  s.RiskPercentage,
		RiskRewardRatio: s.RiskRewardRatio,
		MaxPositionSize: s.MaxPositionSize,
		MaxRiskPerTrade: s.MaxRiskPerTrade,
	}
}

// SizedOrder is the sizing result. It is consumed by the executor and never stored as is.
type SizedOrder struct {
	Side            string
	EntryPrice      decimal.Decimal
	StopLoss        decimal.Decimal
	TakeProfit      decimal.Decimal
	PositionSize    decimal.Decimal
	Valid           bool
	RejectionReason string
}

// Err returns a RiskValidationError for a rejected order and nil otherwise.
func (o SizedOrder) Err() error {
	if o.Valid {
		return nil
	}
	return &errs.RiskValidationError{Reason: o.RejectionReason}
}

func reject(o SizedOrder, format string, args ...any) SizedOrder {
	o.Valid = false
	o.RejectionReason = fmt.Sprintf(format, args...)
	logger.WithFields(map[string]interface{}{
		"side":   o.Side,
		"entry":  o.EntryPrice.String(),
		"reason": o.RejectionReason,
	}).Warn("sized order rejected")
	return o
}

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// Size derives stop loss, take profit and position size for an entry at entryPrice.
//
//	stopLoss     = entry * (1 -/+ risk%)
//	positionSize = balance * risk% / |entry - stopLoss|
//	takeProfit   = entry +/- |entry - stopLoss| * rr
func Size(side string, entryPrice float64, p Parameters) SizedOrder {
	out := SizedOrder{Side: side}

	inputs := []struct {
		name string
		v    float64
	}{
		{"entry price", entryPrice},
		{"account balance", p.AccountBalance},
		{"risk percentage", p.RiskPercentage},
		{"risk reward ratio", p.RiskRewardRatio},
		{"max position size", p.MaxPositionSize},
		{"max risk per trade", p.MaxRiskPerTrade},
	}
	for _, in := range inputs {
		if !positiveFinite(in.v) {
			return reject(out, "%s must be positive and finite, got %v", in.name, in.v)
		}
	}
	if side != model.SideBuy && side != model.SideSell {
		return reject(out, "unsupported side %q", side)
	}

	entry := decimal.NewFromFloat(entryPrice)
	balance := decimal.NewFromFloat(p.AccountBalance)
	riskFraction := decimal.NewFromFloat(p.RiskPercentage).Div(hundred)
	rr := decimal.NewFromFloat(p.RiskRewardRatio)
	out.EntryPrice = entry

	if side == model.SideBuy {
		out.StopLoss = entry.Mul(decimal.NewFromInt(1).Sub(riskFraction))
	} else {
		out.StopLoss = entry.Mul(decimal.NewFromInt(1).Add(riskFraction))
	}

	distance := entry.Sub(out.StopLoss).Abs()
	if !distance.IsPositive() || !out.StopLoss.IsPositive() {
		return reject(out, "stop loss %s leaves no usable risk distance", out.StopLoss.String())
	}

	out.PositionSize = balance.Mul(riskFraction).Div(distance)

	if side == model.SideBuy {
		out.TakeProfit = entry.Add(distance.Mul(rr))
	} else {
		out.TakeProfit = entry.Sub(distance.Mul(rr))
	}

	if !out.PositionSize.IsPositive() {
		return reject(out, "position size %s is not positive", out.PositionSize.String())
	}
	if !out.TakeProfit.IsPositive() {
		return reject(out, "take profit %s is not positive", out.TakeProfit.String())
	}

	if out.PositionSize.GreaterThan(decimal.NewFromFloat(p.MaxPositionSize)) {
		return reject(out, "position size %s exceeds max position size %v", out.PositionSize.StringFixed(8), p.MaxPositionSize)
	}

	// rounded so division residue does not reject a trade sized exactly at the limit
	riskPct := distance.Mul(out.PositionSize).Div(balance).Mul(hundred).Round(8)
	if riskPct.GreaterThan(decimal.NewFromFloat(p.MaxRiskPerTrade)) {
		return reject(out, "risk %s%% exceeds max risk per trade %v%%", riskPct.StringFixed(4), p.MaxRiskPerTrade)
	}

	out.Valid = true
	return out
}

// CheckMarketSanity rejects orders whose protective levels are already crossed by the market:
// a buy needs stopLoss < market < takeProfit, a sell needs takeProfit < market < stopLoss.
func CheckMarketSanity(o SizedOrder, marketPrice float64) error {
	if err := o.Err(); err != nil {
		return err
	}
	if !positiveFinite(marketPrice) {
		return &errs.RiskValidationError{Reason: fmt.Sprintf("market price must be positive and finite, got %v", marketPrice)}
	}

	market := decimal.NewFromFloat(marketPrice)
	var ok bool
	switch o.Side {
	case model.SideBuy:
		ok = o.StopLoss.LessThan(market) && market.LessThan(o.TakeProfit)
	case model.SideSell:
		ok = o.TakeProfit.LessThan(market) && market.LessThan(o.StopLoss)
	}
	if !ok {
		return &errs.RiskValidationError{Reason: fmt.Sprintf(
			"%s order levels inconsistent with market %s (sl=%s tp=%s)",
			o.Side, market.String(), o.StopLoss.String(), o.TakeProfit.String(),
		)}
	}
	return nil
}

// Floats returns the order levels as float64 for venue and ledger calls.
func (o SizedOrder) Floats() (entry, stopLoss, takeProfit, size float64) {
	return o.EntryPrice.InexactFloat64(), o.StopLoss.InexactFloat64(), o.TakeProfit.InexactFloat64(), o.PositionSize.InexactFloat64()
}
