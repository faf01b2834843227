package backtest

import (
	"errors"
	"fmt"
	"math"

	logger "github.com/sirupsen/logrus"

	"tradingcore/src/model"
	"tradingcore/src/signal"
)

type Config struct {
	Symbol         string
	InitialBalance float64
	FeeRate        float64
	SlippageRate   float64
	// TradeAmount is the base quantity bought or sold per signal.
	TradeAmount float64
}

func DefaultConfig(symbol string) Config {
	return Config{
		Symbol:         symbol,
		InitialBalance: 10000,
		FeeRate:        0.001,
		SlippageRate:   0.001,
		TradeAmount:    1,
	}
}

func (c Config) validate() error {
	switch {
	case !(c.InitialBalance > 0):
		return errors.New("initial balance must be positive")
	case c.FeeRate < 0 || c.FeeRate >= 1:
		return fmt.Errorf("fee rate %v out of range [0,1)", c.FeeRate)
	case c.SlippageRate < 0 || c.SlippageRate >= 1:
		return fmt.Errorf("slippage rate %v out of range [0,1)", c.SlippageRate)
	case !(c.TradeAmount > 0):
		return errors.New("trade amount must be positive")
	}
	return nil
}

// state is owned by a single run and discarded with it.
type state struct {
	balance   float64
	positions map[string]float64
	lastBuy   map[string]float64
	trades    []model.BacktestTrade
	equity    []model.EquityPoint

	sellCloses int
	sellWins   int
}

// Run replays candles through the strategy: at index i the strategy sees candles[0..i].
// Buys need balance for cost plus fee and sells need an open position; anything else is skipped.
func Run(kind model.StrategyKind, params model.StrategyParameters, candles []model.Candle, cfg Config) (Report, error) {
	if err := cfg.validate(); err != nil {
		return Report{}, err
	}
	strategy, err := signal.New(kind, params)
	if err != nil {
		return Report{}, err
	}

	st := &state{
		balance:   cfg.InitialBalance,
		positions: make(map[string]float64),
		lastBuy:   make(map[string]float64),
	}

	for i := range candles {
		sig := signal.Run(strategy, candles[:i+1])
		if sig.Action != model.ActionHold {
			st.execute(cfg, candles[i], sig)
		}
		st.equity = append(st.equity, model.EquityPoint{
			Timestamp: candles[i].Timestamp,
			Equity:    st.balance + st.positions[cfg.Symbol]*candles[i].Close,
		})
	}

	report := st.report(kind, cfg, candles)

	logger.WithFields(map[string]interface{}{
		"strategy":     kind,
		"symbol":       cfg.Symbol,
		"candles":      len(candles),
		"trades":       report.TotalTrades,
		"total_return": report.TotalReturn,
	}).Debug("backtest finished")

	return report, nil
}

func (st *state) execute(cfg Config, c model.Candle, sig model.Signal) {
	price := sig.ReferencePrice
	if price <= 0 {
		price = c.Close
	}

	var side string
	switch sig.Action {
	case model.ActionBuy:
		side = model.SideBuy
		price *= 1 + cfg.SlippageRate
	case model.ActionSell:
		side = model.SideSell
		price *= 1 - cfg.SlippageRate
	default:
		return
	}

	amount := cfg.TradeAmount
	cost := price * amount
	fee := cost * cfg.FeeRate

	if side == model.SideBuy {
		if st.balance < cost+fee {
			return
		}
		st.balance -= cost + fee
		st.positions[cfg.Symbol] += amount
		st.lastBuy[cfg.Symbol] = price
	} else {
		if st.positions[cfg.Symbol] < amount {
			return
		}
		st.balance += cost - fee
		st.positions[cfg.Symbol] -= amount
		if prev, ok := st.lastBuy[cfg.Symbol]; ok {
			st.sellCloses++
			if price > prev {
				st.sellWins++
			}
		}
	}

	st.trades = append(st.trades, model.BacktestTrade{
		Timestamp: c.Timestamp,
		Symbol:    cfg.Symbol,
		Side:      side,
		Price:     price,
		Quantity:  amount,
		Fee:       fee,
		Balance:   st.balance,
	})
}

func (st *state) report(kind model.StrategyKind, cfg Config, candles []model.Candle) Report {
	r := Report{
		Strategy:       kind,
		Symbol:         cfg.Symbol,
		InitialBalance: cfg.InitialBalance,
		FinalBalance:   st.balance,
		FinalEquity:    cfg.InitialBalance,
		Trades:         st.trades,
		EquityCurve:    st.equity,
		TotalTrades:    len(st.trades),
		Positions:      st.positions,
	}
	if r.Trades == nil {
		r.Trades = []model.BacktestTrade{}
	}
	if r.EquityCurve == nil {
		r.EquityCurve = []model.EquityPoint{}
	}
	if len(candles) > 0 {
		r.StartDate = candles[0].Timestamp
		r.EndDate = candles[len(candles)-1].Timestamp
	}
	if n := len(st.equity); n > 0 {
		r.FinalEquity = st.equity[n-1].Equity
	}

	r.TotalReturn = (r.FinalEquity - cfg.InitialBalance) / cfg.InitialBalance
	r.SharpeRatio = SharpeRatio(st.equity)
	r.MaxDrawdown = MaxDrawdown(st.equity)
	if st.sellCloses > 0 {
		r.WinRate = float64(st.sellWins) / float64(st.sellCloses)
	}
	return r
}

// SharpeRatio annualises per-candle equity returns with sqrt(252). Zero when returns do not vary.
func SharpeRatio(curve []model.EquityPoint) float64 {
	if len(curve) < 2 {
		return 0
	}
	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev == 0 {
			continue
		}
		returns = append(returns, (curve[i].Equity-prev)/prev)
	}
	if len(returns) == 0 {
		return 0
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var sq float64
	for _, r := range returns {
		sq += (r - mean) * (r - mean)
	}
	std := math.Sqrt(sq / float64(len(returns)))
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(252)
}

// MaxDrawdown is the largest fractional fall from a running equity peak.
func MaxDrawdown(curve []model.EquityPoint) float64 {
	var peak, maxDD float64
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			if dd := (peak - p.Equity) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}
