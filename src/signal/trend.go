package signal

import (
	"fmt"

	"tradingcore/src/model"
)

const trendSubSignals = 4

// TrendConfluence votes with four sub-signals: RSI extremes, price against the long SMA,
// short SMA against long SMA, and MACD crossing its signal line.
type TrendConfluence struct {
	rsi  model.RSIParams
	sma  model.SMAParams
	macd model.MACDParams
}

func NewTrendConfluence(params model.StrategyParameters) (*TrendConfluence, error) {
	r, s, m := params.RSI, params.SMA, params.MACD

	switch {
	case r.Period <= 0:
		return nil, fmt.Errorf("rsi period must be positive, got %d", r.Period)
	case r.Oversold <= 0 || r.Overbought >= 100 || r.Oversold >= r.Overbought:
		return nil, fmt.Errorf("rsi thresholds must satisfy 0 < oversold < overbought < 100, got %v/%v", r.Oversold, r.Overbought)
	case s.ShortPeriod <= 0 || s.LongPeriod <= 0:
		return nil, fmt.Errorf("sma periods must be positive, got %d/%d", s.ShortPeriod, s.LongPeriod)
	case s.ShortPeriod >= s.LongPeriod:
		return nil, fmt.Errorf("sma short period %d must be below long period %d", s.ShortPeriod, s.LongPeriod)
	case m.FastPeriod <= 0 || m.SlowPeriod <= 0 || m.SignalPeriod <= 0:
		return nil, fmt.Errorf("macd periods must be positive")
	case m.FastPeriod >= m.SlowPeriod:
		return nil, fmt.Errorf("macd fast period %d must be below slow period %d", m.FastPeriod, m.SlowPeriod)
	}

	return &TrendConfluence{rsi: r, sma: s, macd: m}, nil
}

func (t *TrendConfluence) Kind() model.StrategyKind { return model.StrategyTrendConfluence }

// Lookback covers the RSI seed bar, the long SMA window and two MACD points for the crossover check.
func (t *TrendConfluence) Lookback() int {
	n := t.rsi.Period + 1
	if t.sma.LongPeriod > n {
		n = t.sma.LongPeriod
	}
	if m := t.macd.SlowPeriod + t.macd.SignalPeriod; m > n {
		n = m
	}
	return n
}

func (t *TrendConfluence) evaluate(closes []float64) model.Signal {
	price := closes[len(closes)-1]

	rsi := RSI(closes, t.rsi.Period)
	short := SMA(closes, t.sma.ShortPeriod)
	long := SMA(closes, t.sma.LongPeriod)
	macd := MACD(closes, t.macd.FastPeriod, t.macd.SlowPeriod, t.macd.SignalPeriod)
	if len(rsi) == 0 || len(short) == 0 || len(long) == 0 || len(macd) < 2 {
		return model.HoldSignal(price)
	}

	curRSI := rsi[len(rsi)-1]
	curShort := short[len(short)-1]
	curLong := long[len(long)-1]
	cur, prev := macd[len(macd)-1], macd[len(macd)-2]

	votes := []int{
		t.rsiVote(curRSI),
		compare(price, curLong),
		compare(curShort, curLong),
		crossVote(prev, cur),
	}

	bullish, bearish := 0, 0
	for _, v := range votes {
		switch {
		case v > 0:
			bullish++
		case v < 0:
			bearish++
		}
	}

	sig := model.Signal{
		Action:         model.ActionHold,
		ReferencePrice: price,
		Indicators: map[string]float64{
			"rsi":         curRSI,
			"sma_short":   curShort,
			"sma_long":    curLong,
			"macd":        cur.MACD,
			"macd_signal": cur.Signal,
			"price":       price,
			"bullish":     float64(bullish),
			"bearish":     float64(bearish),
		},
	}

	switch {
	case bullish >= 3:
		sig.Action = model.ActionBuy
		sig.Confidence = float64(bullish) / trendSubSignals
	case bearish >= 3:
		sig.Action = model.ActionSell
		sig.Confidence = float64(bearish) / trendSubSignals
	}
	return sig
}

func (t *TrendConfluence) rsiVote(v float64) int {
	switch {
	case v < t.rsi.Oversold:
		return 1
	case v > t.rsi.Overbought:
		return -1
	}
	return 0
}

func compare(a, b float64) int {
	switch {
	case a > b:
		return 1
	case a < b:
		return -1
	}
	return 0
}

// crossVote is +1 when MACD crosses above its signal line on the current bar, -1 when it crosses below.
func crossVote(prev, cur MACDPoint) int {
	if prev.MACD <= prev.Signal && cur.MACD > cur.Signal {
		return 1
	}
	if prev.MACD >= prev.Signal && cur.MACD < cur.Signal {
		return -1
	}
	return 0
}
