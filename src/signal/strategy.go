package signal

import (
	"fmt"

	"tradingcore/src/model"
)

// Strategy is implemented only by the variants in this package: TrendConfluence, BollingerBand and Hybrid.
type Strategy interface {
	Kind() model.StrategyKind
	// Lookback is the minimum number of candles needed for a non-hold evaluation.
	Lookback() int
	evaluate(closes []float64) model.Signal
}

// New builds the strategy variant for kind after validating the parameters it reads.
func New(kind model.StrategyKind, params model.StrategyParameters) (Strategy, error) {
	switch kind {
	case model.StrategyTrendConfluence:
		return NewTrendConfluence(params)
	case model.StrategyBollingerBands:
		return NewBollingerBand(params.Bollinger)
	case model.StrategyHybrid:
		return NewHybrid(params)
	default:
		return nil, fmt.Errorf("unknown strategy %q", kind)
	}
}

// Kinds lists every supported strategy.
func Kinds() []model.StrategyKind {
	return []model.StrategyKind{
		model.StrategyTrendConfluence,
		model.StrategyBollingerBands,
		model.StrategyHybrid,
	}
}
