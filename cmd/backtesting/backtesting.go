package backtesting

import (
	"context"
	"fmt"

	logger "github.com/sirupsen/logrus"

	"tradingcore/src/backtest"
	"tradingcore/src/handler"
	"tradingcore/src/model"
)

type botFinder interface {
	FindByID(ctx context.Context, id uint) (*model.Bot, error)
}

type runner interface {
	Run(ctx context.Context, req backtest.Request) (*model.BacktestResult, error)
}

// Backtesting runs one backtest from the command line and stores its result.
type Backtesting struct {
	Log    *logger.Entry
	Bots   botFinder
	Runner runner
}

func New(bots botFinder, r runner) *Backtesting {
	return &Backtesting{
		Log:    logger.WithField("cmd", "backtest"),
		Bots:   bots,
		Runner: r,
	}
}

func (b *Backtesting) Start(ctx context.Context, req handler.BacktestRequest) (*model.BacktestResult, error) {
	if err := handler.Validate(ctx, req); err != nil {
		return nil, fmt.Errorf("invalid backtest: %w", err)
	}

	var bot *model.Bot
	if req.BotID != nil {
		var err error
		bot, err = b.Bots.FindByID(ctx, *req.BotID)
		if err != nil {
			return nil, err
		}
		if bot == nil {
			return nil, fmt.Errorf("bot %d not found", *req.BotID)
		}
	}

	resolved := req.Resolve(bot)
	b.Log.WithFields(map[string]interface{}{
		"symbol":   resolved.Config.Symbol,
		"strategy": resolved.Strategy,
		"interval": resolved.Interval,
		"start":    resolved.Start,
		"end":      resolved.End,
	}).Info("Running backtest")

	result, err := b.Runner.Run(ctx, resolved)
	if err != nil {
		b.Log.WithError(err).Error("Backtest failed")
		return nil, err
	}

	b.Log.WithFields(map[string]interface{}{
		"id":            result.ID,
		"total_trades":  result.TotalTrades,
		"total_return":  result.TotalReturn,
		"win_rate":      result.WinRate,
		"max_drawdown":  result.MaxDrawdown,
		"sharpe_ratio":  result.SharpeRatio,
		"final_balance": result.FinalBalance,
	}).Info("Backtest finished")
	return result, nil
}
