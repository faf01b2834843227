package connectors

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"

	"tradingcore/src/errs"
	"tradingcore/src/model"
)

// PaperExchange simulates a spot venue in memory. Market orders fill at the last price,
// stop and take profit orders rest until the price crosses their trigger.
// Candles come from an optional feed; prices can be pinned with SetPrice.
type PaperExchange struct {
	name    string
	feed    CandleSource
	feeRate float64
	now     func() time.Time

	mu       sync.Mutex
	prices   map[string]float64
	balances map[string]float64
	orders   map[string]*VenueOrder
	seq      []string
}

func NewPaperExchange(cfg Config, feed CandleSource) *PaperExchange {
	quote := cfg.PaperQuote
	if quote == "" {
		quote = "USDT"
	}
	return &PaperExchange{
		name:     "paper",
		feed:     feed,
		feeRate:  cfg.PaperFeeRate,
		now:      time.Now,
		prices:   make(map[string]float64),
		balances: map[string]float64{quote: cfg.PaperBalance},
		orders:   make(map[string]*VenueOrder),
	}
}

func (p *PaperExchange) Name() string { return p.name }

// SetPrice pins the last price of symbol and fires any resting trigger orders it crosses.
func (p *PaperExchange) SetPrice(symbol string, price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices[symbol] = price
	p.triggerLocked(symbol, price)
}

// Deposit credits currency, mostly for tests and dry-run setup.
func (p *PaperExchange) Deposit(currency string, amount float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.balances[currency] += amount
}

func (p *PaperExchange) FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]model.Candle, error) {
	if p.feed == nil {
		return nil, fmt.Errorf("paper exchange has no candle feed for %s", symbol)
	}
	candles, err := p.feed.FetchCandles(ctx, symbol, interval, limit)
	if err != nil {
		return nil, err
	}
	if n := len(candles); n > 0 {
		p.SetPrice(symbol, candles[n-1].Close)
	}
	return candles, nil
}

func (p *PaperExchange) FetchBalance(context.Context) (*Balance, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := &Balance{Balances: make(map[string]BalanceEntry, len(p.balances))}
	for cur, amt := range p.balances {
		used := math.Min(p.reservedLocked(cur), amt)
		out.Balances[cur] = BalanceEntry{Free: amt - used, Used: used, Total: amt}
	}
	return out, nil
}

func (p *PaperExchange) FetchTicker(_ context.Context, symbol string) (*Ticker, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	price, ok := p.prices[symbol]
	if !ok || price <= 0 {
		return nil, &errs.TransientVenueError{Venue: p.name, Op: "fetchTicker", Err: fmt.Errorf("no price for %s yet", symbol)}
	}
	return &Ticker{Symbol: symbol, Last: price, Bid: price, Ask: price, Timestamp: p.now().UnixMilli()}, nil
}

func (p *PaperExchange) PlaceOrder(_ context.Context, req OrderRequest) (*VenueOrder, error) {
	if err := validateOrderRequest(p.name, req); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	order := &VenueOrder{
		ID:            "P-" + uuid.NewString(),
		ClientOrderID: req.ClientOrderID,
		Symbol:        req.Symbol,
		Side:          req.Side,
		Type:          req.Type,
		Status:        OrderStatusOpen,
		Amount:        req.Amount,
		Price:         req.StopPrice,
		Timestamp:     p.now().UnixMilli(),
	}

	if req.Type == OrderTypeMarket || req.Type == OrderTypeLimit {
		price, ok := p.prices[req.Symbol]
		if !ok || price <= 0 {
			return nil, &errs.TransientVenueError{Venue: p.name, Op: "placeOrder", Err: fmt.Errorf("no price for %s yet", req.Symbol)}
		}
		if req.Type == OrderTypeLimit {
			price = req.Price
		}
		if err := p.fillLocked(order, price); err != nil {
			return nil, err
		}
	}

	p.orders[order.ID] = order
	p.seq = append(p.seq, order.ID)

	logger.WithFields(map[string]interface{}{
		"venue":  p.name,
		"id":     order.ID,
		"symbol": order.Symbol,
		"side":   order.Side,
		"type":   order.Type,
		"status": order.Status,
	}).Debug("paper order accepted")

	cp := *order
	return &cp, nil
}

func (p *PaperExchange) CancelOrder(_ context.Context, orderID, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	o, ok := p.orders[orderID]
	if !ok {
		return &errs.InvalidOrderError{Venue: p.name, Code: "11062", Reason: "order not found"}
	}
	if o.Status == OrderStatusOpen {
		o.Status = OrderStatusCanceled
	}
	return nil
}

func (p *PaperExchange) ListOrders(_ context.Context, symbol string) ([]VenueOrder, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]VenueOrder, 0, len(p.seq))
	for _, id := range p.seq {
		o := p.orders[id]
		if symbol != "" && o.Symbol != symbol {
			continue
		}
		out = append(out, *o)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}

func (p *PaperExchange) fillLocked(o *VenueOrder, price float64) error {
	base, quote := SplitSymbol(o.Symbol)
	cost := price * o.Amount
	fee := cost * p.feeRate

	switch o.Side {
	case model.SideBuy:
		if p.balances[quote] < cost+fee {
			return &errs.InvalidOrderError{Venue: p.name, Code: "11051", Reason: fmt.Sprintf("insufficient balance: have %.2f, need %.2f", p.balances[quote], cost+fee)}
		}
		p.balances[quote] -= cost + fee
		p.balances[base] += o.Amount
	case model.SideSell:
		if p.balances[base] < o.Amount {
			return &errs.InvalidOrderError{Venue: p.name, Code: "11051", Reason: fmt.Sprintf("insufficient position: have %.8f, need %.8f", p.balances[base], o.Amount)}
		}
		p.balances[base] -= o.Amount
		p.balances[quote] += cost - fee
	}

	o.Status = OrderStatusClosed
	o.Filled = o.Amount
	o.Average = price
	o.Cost = cost
	o.Fee = fee
	return nil
}

// triggerLocked fills resting stop and take profit orders crossed by price.
// A trigger whose fill fails is marked rejected.
func (p *PaperExchange) triggerLocked(symbol string, price float64) {
	for _, id := range p.seq {
		o := p.orders[id]
		if o.Symbol != symbol || o.Status != OrderStatusOpen {
			continue
		}
		if !crossed(o, price) {
			continue
		}
		if err := p.fillLocked(o, price); err != nil {
			o.Status = OrderStatusRejected
			logger.WithError(err).WithField("id", o.ID).Warn("paper trigger order rejected")
		}
	}
}

func crossed(o *VenueOrder, price float64) bool {
	switch o.Type {
	case OrderTypeStopLoss:
		if o.Side == model.SideSell {
			return price <= o.Price
		}
		return price >= o.Price
	case OrderTypeTakeProfit:
		if o.Side == model.SideSell {
			return price >= o.Price
		}
		return price <= o.Price
	}
	return false
}

// reservedLocked is the base currency held back by open sell triggers.
func (p *PaperExchange) reservedLocked(currency string) float64 {
	var used float64
	for _, o := range p.orders {
		if o.Status != OrderStatusOpen || o.Side != model.SideSell {
			continue
		}
		if base, _ := SplitSymbol(o.Symbol); base == currency {
			used += o.Amount
		}
	}
	return used
}
