package signal

import (
	"fmt"

	logger "github.com/sirupsen/logrus"

	"tradingcore/src/errs"
	"tradingcore/src/model"
)

// Evaluate builds the strategy for kind and runs it over candles.
// A history shorter than the strategy lookback yields a hold signal with zero confidence;
// only invalid parameters produce an error.
func Evaluate(kind model.StrategyKind, params model.StrategyParameters, candles []model.Candle) (model.Signal, error) {
	s, err := New(kind, params)
	if err != nil {
		return model.Signal{}, err
	}
	return Run(s, candles), nil
}

// Run evaluates an already built strategy.
func Run(s Strategy, candles []model.Candle) model.Signal {
	if err := sufficient(s, candles); err != nil {
		logger.WithError(err).WithField("strategy", s.Kind()).Debug("holding")
		return model.HoldSignal(lastClose(candles))
	}
	return s.evaluate(model.Closes(candles))
}

func sufficient(s Strategy, candles []model.Candle) error {
	if len(candles) < s.Lookback() {
		return fmt.Errorf("%w: have %d, need %d", errs.ErrInsufficientData, len(candles), s.Lookback())
	}
	return nil
}

func lastClose(candles []model.Candle) float64 {
	if len(candles) == 0 {
		return 0
	}
	return candles[len(candles)-1].Close
}
