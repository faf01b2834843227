package signal

import (
	"fmt"

	"tradingcore/src/model"
)

const (
	percentBLower = 0.2
	percentBUpper = 0.8
)

// BollingerBand trades reversion from the band edges using %B.
type BollingerBand struct {
	params model.BollingerParams
}

func NewBollingerBand(params model.BollingerParams) (*BollingerBand, error) {
	if params.Period <= 1 {
		return nil, fmt.Errorf("bollinger period must be greater than 1, got %d", params.Period)
	}
	if params.StandardDev <= 0 {
		return nil, fmt.Errorf("bollinger standard deviation must be positive, got %v", params.StandardDev)
	}
	return &BollingerBand{params: params}, nil
}

func (b *BollingerBand) Kind() model.StrategyKind { return model.StrategyBollingerBands }

func (b *BollingerBand) Lookback() int { return b.params.Period }

func (b *BollingerBand) evaluate(closes []float64) model.Signal {
	price := closes[len(closes)-1]

	bands := BollingerBands(closes, b.params.Period, b.params.StandardDev)
	if len(bands) == 0 {
		return model.HoldSignal(price)
	}
	cur := bands[len(bands)-1]

	width := cur.Upper - cur.Lower
	if width <= 0 {
		// flat window, %B is undefined
		return model.HoldSignal(price)
	}
	percentB := (price - cur.Lower) / width

	sig := model.Signal{
		Action:         model.ActionHold,
		ReferencePrice: price,
		Indicators: map[string]float64{
			"upper":     cur.Upper,
			"middle":    cur.Middle,
			"lower":     cur.Lower,
			"percent_b": percentB,
			"price":     price,
		},
	}

	switch {
	case percentB < percentBLower:
		sig.Action = model.ActionBuy
		sig.Confidence = clamp01(1 - percentB)
	case percentB > percentBUpper:
		sig.Action = model.ActionSell
		sig.Confidence = clamp01(percentB)
	}
	return sig
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
