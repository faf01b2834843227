package connectors

import (
	"context"

	"tradingcore/src/model"
	"tradingcore/src/resilience"
)

// ResilientExchange routes every venue call of the wrapped Exchange through the
// shared breaker registry, so all bots on one venue see the same failure count.
type ResilientExchange struct {
	inner    Exchange
	registry *resilience.Registry
}

func NewResilientExchange(inner Exchange, registry *resilience.Registry) *ResilientExchange {
	return &ResilientExchange{inner: inner, registry: registry}
}

func (e *ResilientExchange) Name() string { return e.inner.Name() }

// Unwrap returns the undecorated venue.
func (e *ResilientExchange) Unwrap() Exchange { return e.inner }

func (e *ResilientExchange) FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]model.Candle, error) {
	return resilience.Execute(ctx, e.registry, e.Name(), func(ctx context.Context) ([]model.Candle, error) {
		return e.inner.FetchCandles(ctx, symbol, interval, limit)
	})
}

func (e *ResilientExchange) FetchBalance(ctx context.Context) (*Balance, error) {
	return resilience.Execute(ctx, e.registry, e.Name(), e.inner.FetchBalance)
}

func (e *ResilientExchange) FetchTicker(ctx context.Context, symbol string) (*Ticker, error) {
	return resilience.Execute(ctx, e.registry, e.Name(), func(ctx context.Context) (*Ticker, error) {
		return e.inner.FetchTicker(ctx, symbol)
	})
}

func (e *ResilientExchange) PlaceOrder(ctx context.Context, req OrderRequest) (*VenueOrder, error) {
	return resilience.Execute(ctx, e.registry, e.Name(), func(ctx context.Context) (*VenueOrder, error) {
		return e.inner.PlaceOrder(ctx, req)
	})
}

func (e *ResilientExchange) CancelOrder(ctx context.Context, orderID, symbol string) error {
	return resilience.Do(ctx, e.registry, e.Name(), func(ctx context.Context) error {
		return e.inner.CancelOrder(ctx, orderID, symbol)
	})
}

func (e *ResilientExchange) ListOrders(ctx context.Context, symbol string) ([]VenueOrder, error) {
	return resilience.Execute(ctx, e.registry, e.Name(), func(ctx context.Context) ([]VenueOrder, error) {
		return e.inner.ListOrders(ctx, symbol)
	})
}
