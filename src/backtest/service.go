package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	logger "github.com/sirupsen/logrus"

	"tradingcore/src/model"
)

// CandleHistory loads stored candles. *repository.OHLCVRepository satisfies it.
type CandleHistory interface {
	FetchRange(ctx context.Context, symbol, interval string, start, end time.Time) ([]model.Candle, error)
}

// ResultStore persists finished runs. *repository.BacktestResultRepository satisfies it.
type ResultStore interface {
	Create(ctx context.Context, result *model.BacktestResult) error
}

type Request struct {
	BotID      *uint
	Strategy   model.StrategyKind
	Parameters model.StrategyParameters
	Interval   string
	Start      time.Time
	End        time.Time
	Config     Config
}

type Service struct {
	history CandleHistory
	store   ResultStore
	log     *logger.Entry
}

// NewService builds a runner. store may be nil, in which case results are not persisted.
func NewService(history CandleHistory, store ResultStore) *Service {
	return &Service{
		history: history,
		store:   store,
		log:     logger.WithField("component", "backtest"),
	}
}

// Run loads the candle range, replays it and stores the result.
func (s *Service) Run(ctx context.Context, req Request) (*model.BacktestResult, error) {
	if req.Config.Symbol == "" {
		return nil, errors.New("backtest symbol is required")
	}
	if !req.End.After(req.Start) {
		return nil, fmt.Errorf("backtest end %s must be after start %s", req.End.Format(time.RFC3339), req.Start.Format(time.RFC3339))
	}

	candles, err := s.history.FetchRange(ctx, req.Config.Symbol, req.Interval, req.Start, req.End)
	if err != nil {
		return nil, fmt.Errorf("load %s %s candles: %w", req.Config.Symbol, req.Interval, err)
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("no %s %s candles between %s and %s",
			req.Config.Symbol, req.Interval, req.Start.Format(time.RFC3339), req.End.Format(time.RFC3339))
	}

	report, err := Run(req.Strategy, req.Parameters, candles, req.Config)
	if err != nil {
		return nil, err
	}
	result := report.Result(req.BotID, req.Interval, req.Parameters)

	if s.store != nil {
		if err := s.store.Create(ctx, result); err != nil {
			return nil, fmt.Errorf("store backtest result: %w", err)
		}
	}

	s.log.WithFields(map[string]interface{}{
		"symbol":       req.Config.Symbol,
		"strategy":     req.Strategy,
		"interval":     req.Interval,
		"candles":      len(candles),
		"total_trades": result.TotalTrades,
		"total_return": result.TotalReturn,
	}).Info("backtest finished")

	return result, nil
}
