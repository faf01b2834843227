package connectors

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nntaoli-project/goex"
	"github.com/nntaoli-project/goex/binance"

	"tradingcore/src/errs"
	"tradingcore/src/model"
)

// BinanceCandleSource reads public klines through goex. It backs the paper exchange
// and the ohlcv_crypto import command.
type BinanceCandleSource struct {
	api goex.API
}

func NewBinanceCandleSource(endpoint string, httpClient *http.Client) *BinanceCandleSource {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if endpoint == "" {
		endpoint = binance.GLOBAL_API_BASE_URL
	}
	return &BinanceCandleSource{api: binance.NewWithConfig(&goex.APIConfig{
		HttpClient: httpClient,
		Endpoint:   endpoint,
	})}
}

// KlinePeriod maps a bot interval onto the goex period constant.
func KlinePeriod(interval string) (goex.KlinePeriod, error) {
	switch interval {
	case "1m":
		return goex.KLINE_PERIOD_1MIN, nil
	case "5m":
		return goex.KLINE_PERIOD_5MIN, nil
	case "15m":
		return goex.KLINE_PERIOD_15MIN, nil
	case "30m":
		return goex.KLINE_PERIOD_30MIN, nil
	case "1h":
		return goex.KLINE_PERIOD_1H, nil
	case "4h":
		return goex.KLINE_PERIOD_4H, nil
	case "1d":
		return goex.KLINE_PERIOD_1DAY, nil
	}
	return 0, fmt.Errorf("unsupported kline interval %q", interval)
}

// CurrencyPair converts "BTC/USDT" style symbols to a goex pair.
func CurrencyPair(symbol string) goex.CurrencyPair {
	base, quote := SplitSymbol(symbol)
	return goex.NewCurrencyPair(goex.Currency{Symbol: base}, goex.Currency{Symbol: quote})
}

func (b *BinanceCandleSource) FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]model.Candle, error) {
	return b.FetchCandlesRange(ctx, symbol, interval, limit, time.Time{}, time.Time{})
}

// FetchCandlesRange restricts the klines to [start, end] when either bound is set.
func (b *BinanceCandleSource) FetchCandlesRange(ctx context.Context, symbol, interval string, limit int, start, end time.Time) ([]model.Candle, error) {
	period, err := KlinePeriod(interval)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	const millis = 1000
	opt := goex.OptionalParameter{}
	if !start.IsZero() {
		opt = opt.Optional("startTime", start.Unix()*millis)
	}
	if !end.IsZero() {
		opt = opt.Optional("endTime", end.Unix()*millis)
	}

	klines, err := b.api.GetKlineRecords(CurrencyPair(symbol), period, limit, opt)
	if err != nil {
		return nil, classifyGoexError("fetchCandles", err)
	}

	candles := make([]model.Candle, 0, len(klines))
	for _, k := range klines {
		candles = append(candles, model.Candle{
			Timestamp: time.Unix(k.Timestamp, 0).UTC(),
			Open:      k.Open,
			High:      k.High,
			Low:       k.Low,
			Close:     k.Close,
			Volume:    k.Vol,
		})
	}
	return candles, nil
}

func (b *BinanceCandleSource) FetchTicker(ctx context.Context, symbol string) (*Ticker, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t, err := b.api.GetTicker(CurrencyPair(symbol))
	if err != nil {
		return nil, classifyGoexError("fetchTicker", err)
	}
	return &Ticker{
		Symbol:    symbol,
		Last:      t.Last,
		Bid:       t.Buy,
		Ask:       t.Sell,
		Timestamp: int64(t.Date),
	}, nil
}

// goex returns plain errors carrying the HTTP status text; 5xx and throttling are transient.
func classifyGoexError(op string, err error) error {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"timeout", "connection", "eof", "429", "500", "502", "503", "504"} {
		if strings.Contains(msg, marker) {
			return &errs.TransientVenueError{Venue: "binance", Op: op, Err: err}
		}
	}
	return fmt.Errorf("%s on binance: %w", op, err)
}
