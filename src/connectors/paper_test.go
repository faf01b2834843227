package connectors

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tradingcore/src/errs"
	"tradingcore/src/model"
)

type staticFeed struct {
	candles []model.Candle
}

func (f staticFeed) FetchCandles(_ context.Context, _, _ string, limit int) ([]model.Candle, error) {
	if limit < len(f.candles) {
		return f.candles[len(f.candles)-limit:], nil
	}
	return f.candles, nil
}

func newPaper(feed CandleSource) *PaperExchange {
	return NewPaperExchange(Config{PaperBalance: 1000, PaperQuote: "USDT", PaperFeeRate: 0.001}, feed)
}

func TestPaperExchangeMarketBuyAndSell(t *testing.T) {
	ctx := context.Background()
	p := newPaper(nil)
	p.SetPrice("BTC/USDT", 100)

	buy, err := p.PlaceOrder(ctx, OrderRequest{Symbol: "BTC/USDT", Side: "buy", Type: OrderTypeMarket, Amount: 2})
	require.NoError(t, err)
	require.True(t, buy.FullyFilled())
	require.InDelta(t, 200, buy.Cost, 1e-9)
	require.InDelta(t, 0.2, buy.Fee, 1e-9)

	bal, err := p.FetchBalance(ctx)
	require.NoError(t, err)
	require.InDelta(t, 799.8, bal.Free("USDT"), 1e-9)
	require.InDelta(t, 2, bal.Free("BTC"), 1e-9)

	p.SetPrice("BTC/USDT", 110)
	sell, err := p.PlaceOrder(ctx, OrderRequest{Symbol: "BTC/USDT", Side: "sell", Type: OrderTypeMarket, Amount: 2})
	require.NoError(t, err)
	require.InDelta(t, 110, sell.Average, 1e-9)

	bal, _ = p.FetchBalance(ctx)
	require.InDelta(t, 799.8+220-0.22, bal.Free("USDT"), 1e-9)
}

func TestPaperExchangeRejections(t *testing.T) {
	ctx := context.Background()
	p := newPaper(nil)

	_, err := p.PlaceOrder(ctx, OrderRequest{Symbol: "BTC/USDT", Side: "buy", Type: OrderTypeMarket, Amount: 1})
	require.True(t, errs.IsTransient(err), "no price yet is transient")

	p.SetPrice("BTC/USDT", 100)
	_, err = p.PlaceOrder(ctx, OrderRequest{Symbol: "BTC/USDT", Side: "buy", Type: OrderTypeMarket, Amount: 50})
	require.True(t, errs.IsInvalidOrder(err), "insufficient balance is an order rejection")

	_, err = p.PlaceOrder(ctx, OrderRequest{Symbol: "BTC/USDT", Side: "sell", Type: OrderTypeMarket, Amount: 1})
	require.True(t, errs.IsInvalidOrder(err))

	err = p.CancelOrder(ctx, "missing", "BTC/USDT")
	require.True(t, errs.IsInvalidOrder(err))
}

func TestPaperExchangeTriggers(t *testing.T) {
	ctx := context.Background()
	p := newPaper(nil)
	p.SetPrice("BTC/USDT", 100)

	_, err := p.PlaceOrder(ctx, OrderRequest{Symbol: "BTC/USDT", Side: "buy", Type: OrderTypeMarket, Amount: 1})
	require.NoError(t, err)

	sl, err := p.PlaceOrder(ctx, OrderRequest{Symbol: "BTC/USDT", Side: "sell", Type: OrderTypeStopLoss, Amount: 1, StopPrice: 99, ReduceOnly: true})
	require.NoError(t, err)
	tp, err := p.PlaceOrder(ctx, OrderRequest{Symbol: "BTC/USDT", Side: "sell", Type: OrderTypeTakeProfit, Amount: 1, StopPrice: 102, ReduceOnly: true})
	require.NoError(t, err)
	require.Equal(t, OrderStatusOpen, sl.Status)

	bal, _ := p.FetchBalance(ctx)
	require.InDelta(t, 0, bal.Free("BTC"), 1e-9, "open sell triggers reserve the position")

	p.SetPrice("BTC/USDT", 98.5)

	orders, err := p.ListOrders(ctx, "BTC/USDT")
	require.NoError(t, err)
	require.Len(t, orders, 3)

	byID := map[string]VenueOrder{}
	for _, o := range orders {
		byID[o.ID] = o
	}
	require.Equal(t, OrderStatusClosed, byID[sl.ID].Status)
	require.InDelta(t, 98.5, byID[sl.ID].Average, 1e-9)
	require.Equal(t, OrderStatusOpen, byID[tp.ID].Status)

	require.NoError(t, p.CancelOrder(ctx, tp.ID, "BTC/USDT"))
	orders, _ = p.ListOrders(ctx, "BTC/USDT")
	for _, o := range orders {
		if o.ID == tp.ID {
			require.True(t, IsCancelledStatus(o.Status))
		}
	}
}

func TestPaperExchangeFeedSetsPrice(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	feed := staticFeed{candles: []model.Candle{
		{Timestamp: base, Close: 10},
		{Timestamp: base.Add(time.Hour), Close: 12},
	}}
	p := newPaper(feed)

	candles, err := p.FetchCandles(context.Background(), "ETH/USDT", "1h", 200)
	require.NoError(t, err)
	require.Len(t, candles, 2)

	ticker, err := p.FetchTicker(context.Background(), "ETH/USDT")
	require.NoError(t, err)
	require.InDelta(t, 12, ticker.Last, 1e-9)
}
