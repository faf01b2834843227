package signal

import (
	"math"

	"tradingcore/src/model"
)

const (
	hybridTrendWeight     = 0.6
	hybridBollingerWeight = 0.4
	hybridThreshold       = 0.5
)

// Hybrid blends the signed confidences of a TrendConfluence and a BollingerBand evaluation.
type Hybrid struct {
	trend     *TrendConfluence
	bollinger *BollingerBand
}

func NewHybrid(params model.StrategyParameters) (*Hybrid, error) {
	trend, err := NewTrendConfluence(params)
	if err != nil {
		return nil, err
	}
	bb, err := NewBollingerBand(params.Bollinger)
	if err != nil {
		return nil, err
	}
	return &Hybrid{trend: trend, bollinger: bb}, nil
}

func (h *Hybrid) Kind() model.StrategyKind { return model.StrategyHybrid }

func (h *Hybrid) Lookback() int {
	if a, b := h.trend.Lookback(), h.bollinger.Lookback(); a > b {
		return a
	}
	return h.bollinger.Lookback()
}

func (h *Hybrid) evaluate(closes []float64) model.Signal {
	return combine(h.trend.evaluate(closes), h.bollinger.evaluate(closes), closes[len(closes)-1])
}

func combine(trendSig, bbSig model.Signal, price float64) model.Signal {
	score := hybridTrendWeight*trendSig.Signed() + hybridBollingerWeight*bbSig.Signed()

	indicators := make(map[string]float64, len(trendSig.Indicators)+len(bbSig.Indicators)+3)
	for k, v := range trendSig.Indicators {
		indicators[k] = v
	}
	for k, v := range bbSig.Indicators {
		indicators[k] = v
	}
	indicators["trend_score"] = trendSig.Signed()
	indicators["bollinger_score"] = bbSig.Signed()
	indicators["score"] = score

	sig := model.Signal{
		Action:         model.ActionHold,
		Confidence:     math.Abs(score),
		ReferencePrice: price,
		Indicators:     indicators,
	}
	switch {
	case score > hybridThreshold:
		sig.Action = model.ActionBuy
	case score < -hybridThreshold:
		sig.Action = model.ActionSell
	}
	return sig
}
