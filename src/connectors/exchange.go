package connectors

import (
	"context"
	"strings"

	"tradingcore/src/model"
)

// Venue order statuses as reported by exchanges. Reconciliation maps them onto trade statuses.
const (
	OrderStatusOpen      = "open"
	OrderStatusClosed    = "closed"
	OrderStatusDone      = "done"
	OrderStatusCanceled  = "canceled"
	OrderStatusCancelled = "cancelled"
	OrderStatusExpired   = "expired"
	OrderStatusRejected  = "rejected"
)

const (
	OrderTypeMarket     = "market"
	OrderTypeLimit      = "limit"
	OrderTypeStopLoss   = "stop_loss"
	OrderTypeTakeProfit = "take_profit"
)

// CandleSource is the market data half of an Exchange.
type CandleSource interface {
	FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]model.Candle, error)
}

// Exchange is the capability a bot trades through. Implementations must be safe for
// concurrent use by several bots.
type Exchange interface {
	CandleSource
	Name() string
	FetchBalance(ctx context.Context) (*Balance, error)
	FetchTicker(ctx context.Context, symbol string) (*Ticker, error)
	PlaceOrder(ctx context.Context, req OrderRequest) (*VenueOrder, error)
	CancelOrder(ctx context.Context, orderID, symbol string) error
	ListOrders(ctx context.Context, symbol string) ([]VenueOrder, error)
}

type OrderRequest struct {
	Symbol        string  `json:"symbol"`
	Side          string  `json:"side"`
	Type          string  `json:"type"`
	Amount        float64 `json:"amount"`
	Price         float64 `json:"price,omitempty"`
	StopPrice     float64 `json:"stopPrice,omitempty"`
	ReduceOnly    bool    `json:"reduceOnly,omitempty"`
	ClientOrderID string  `json:"clientOrderId,omitempty"`
}

type VenueOrder struct {
	ID            string  `json:"id"`
	ClientOrderID string  `json:"clientOrderId,omitempty"`
	Symbol        string  `json:"symbol"`
	Side          string  `json:"side"`
	Type          string  `json:"type"`
	Status        string  `json:"status"`
	Amount        float64 `json:"amount"`
	Filled        float64 `json:"filled"`
	Price         float64 `json:"price"`
	Average       float64 `json:"average"`
	Cost          float64 `json:"cost"`
	Fee           float64 `json:"fee"`
	Timestamp     int64   `json:"timestamp"`
}

// FullyFilled reports a closed order whose filled quantity reached the requested amount.
func (o *VenueOrder) FullyFilled() bool {
	return isClosedStatus(o.Status) && o.Amount > 0 && o.Filled >= o.Amount
}

type Ticker struct {
	Symbol    string  `json:"symbol"`
	Last      float64 `json:"last"`
	Bid       float64 `json:"bid"`
	Ask       float64 `json:"ask"`
	Timestamp int64   `json:"timestamp"`
}

type BalanceEntry struct {
	Free  float64 `json:"free"`
	Used  float64 `json:"used"`
	Total float64 `json:"total"`
}

type Balance struct {
	Balances map[string]BalanceEntry `json:"balances"`
}

// Free returns the free amount held in currency, zero when the currency is absent.
func (b *Balance) Free(currency string) float64 {
	if b == nil {
		return 0
	}
	return b.Balances[strings.ToUpper(currency)].Free
}

// SplitSymbol splits "BTC/USDT", "BTC_USDT" or "BTC-USDT" into base and quote.
// A bare symbol such as "BTCUSDT" is split on a known quote suffix.
func SplitSymbol(symbol string) (base, quote string) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	for _, sep := range []string{"/", "_", "-"} {
		if i := strings.Index(s, sep); i > 0 {
			return s[:i], s[i+1:]
		}
	}
	for _, q := range []string{"USDT", "USDC", "BUSD", "USD", "EUR", "BTC", "ETH"} {
		if strings.HasSuffix(s, q) && len(s) > len(q) {
			return strings.TrimSuffix(s, q), q
		}
	}
	return s, ""
}

func isClosedStatus(status string) bool {
	switch strings.ToLower(status) {
	case OrderStatusClosed, OrderStatusDone, "filled":
		return true
	}
	return false
}

// IsCancelledStatus covers the venue spellings of a dead order.
func IsCancelledStatus(status string) bool {
	switch strings.ToLower(status) {
	case OrderStatusCanceled, OrderStatusCancelled, OrderStatusExpired, OrderStatusRejected:
		return true
	}
	return false
}

// IsClosedStatus reports a venue status meaning the order is done trading.
func IsClosedStatus(status string) bool {
	return isClosedStatus(status)
}
