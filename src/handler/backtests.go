package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	logger "github.com/sirupsen/logrus"

	"tradingcore/src/backtest"
	"tradingcore/src/model"
)

type backtestRunner interface {
	Run(ctx context.Context, req backtest.Request) (*model.BacktestResult, error)
}

type backtestReader interface {
	FindByBot(ctx context.Context, botID uint, limit int) ([]model.BacktestResult, error)
}

// BacktestRequest runs a strategy over stored candles. With BotID set, the bot's symbol,
// strategy, interval and parameters are used unless overridden in the request.
type BacktestRequest struct {
	BotID          *uint                     `json:"bot_id"`
	Symbol         string                    `json:"symbol" validate:"required_without=BotID,max=50"`
	Strategy       model.StrategyKind        `json:"strategy" validate:"required_without=BotID,omitempty,oneof=RSI_SMA_MACD BOLLINGER_BANDS HYBRID"`
	Interval       string                    `json:"interval" validate:"omitempty,oneof=1m 5m 15m 30m 1h 4h 1d"`
	Parameters     *model.StrategyParameters `json:"parameters"`
	Start          time.Time                 `json:"start" validate:"required"`
	End            time.Time                 `json:"end" validate:"required,gtfield=Start"`
	InitialBalance float64                   `json:"initial_balance" validate:"gte=0"`
	TradeAmount    float64                   `json:"trade_amount" validate:"gte=0"`
	FeeRate        *float64                  `json:"fee_rate" validate:"omitempty,gte=0,lt=1"`
	SlippageRate   *float64                  `json:"slippage_rate" validate:"omitempty,gte=0,lt=1"`
}

// Resolve fills unset fields from bot, then from the strategy template. Interval defaults to 1h.
func (req BacktestRequest) Resolve(bot *model.Bot) backtest.Request {
	out := backtest.Request{
		BotID:    req.BotID,
		Strategy: req.Strategy,
		Interval: req.Interval,
		Start:    req.Start.UTC(),
		End:      req.End.UTC(),
	}
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))

	if bot != nil {
		if symbol == "" {
			symbol = bot.Symbol
		}
		if out.Strategy == "" {
			out.Strategy = bot.Strategy
			out.Parameters = bot.Parameters
		}
		if out.Interval == "" {
			out.Interval = bot.Interval
		}
	}
	if out.Parameters == (model.StrategyParameters{}) {
		out.Parameters = model.BotTemplates()[out.Strategy].Parameters
	}
	if req.Parameters != nil {
		out.Parameters = *req.Parameters
	}
	if out.Interval == "" {
		out.Interval = "1h"
	}

	cfg := backtest.DefaultConfig(symbol)
	if req.InitialBalance > 0 {
		cfg.InitialBalance = req.InitialBalance
	}
	if req.TradeAmount > 0 {
		cfg.TradeAmount = req.TradeAmount
	}
	if req.FeeRate != nil {
		cfg.FeeRate = *req.FeeRate
	}
	if req.SlippageRate != nil {
		cfg.SlippageRate = *req.SlippageRate
	}
	out.Config = cfg
	return out
}

// RunBacktestHandler runs and stores a backtest synchronously.
func RunBacktestHandler(store botStore, runner backtestRunner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BacktestRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		var bot *model.Bot
		if req.BotID != nil {
			var err error
			bot, err = store.FindByID(r.Context(), *req.BotID)
			if err != nil {
				logger.WithError(err).WithField("bot_id", *req.BotID).Error("failed to load bot")
				writeError(w, http.StatusInternalServerError, "Internal Server Error")
				return
			}
			if bot == nil {
				writeError(w, http.StatusNotFound, "bot not found")
				return
			}
		}

		result, err := runner.Run(r.Context(), req.Resolve(bot))
		if err != nil {
			logger.WithError(err).Warn("backtest failed")
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		WriteJSON(w, http.StatusCreated, result)
	}
}

// BotBacktestsHandler lists stored backtests of a bot, newest first.
func BotBacktestsHandler(results backtestReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseBotID(w, r)
		if !ok {
			return
		}
		limit, ok := parseLimit(w, r, 20)
		if !ok {
			return
		}

		list, err := results.FindByBot(r.Context(), id, limit)
		if err != nil {
			logger.WithError(err).WithField("bot_id", id).Error("failed to list backtests")
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		WriteJSON(w, http.StatusOK, list)
	}
}
