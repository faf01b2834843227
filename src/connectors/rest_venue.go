package connectors

// REST client for a signed JSON venue API.
// RESTY ONLY, retries are owned by the resilient executor unless VENUE_HTTP_RETRIES is set.

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	logger "github.com/sirupsen/logrus"

	"tradingcore/src/errs"
	"tradingcore/src/model"
)

const (
	defaultRetryBaseDelay  = 500 * time.Millisecond
	defaultRetryMaxBackoff = 8 * time.Second
	apiPrefix              = "/api/v1"
)

// APIResponse is the envelope every venue endpoint answers with. Code 0 is success.
type APIResponse struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type RESTVenue struct {
	name      string
	apiKey    string
	apiSecret string
	baseURL   string
	http      *resty.Client
	now       func() time.Time
}

func isRetryableResp(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}

	if r == nil {
		return false
	}

	code := r.StatusCode()

	if code >= 500 && code <= 599 {
		return true
	}
	if code == 429 {
		return true
	}
	if code == 408 {
		return true
	}
	return false
}

func NewRESTVenue(cfg Config) (*RESTVenue, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.VenueBaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("VENUE_BASE_URL is required for a REST venue")
	}
	name := cfg.VenueName
	if name == "" {
		name = "rest"
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(cfg.HTTPTimeout).
		SetRetryCount(cfg.HTTPRetries).
		SetRetryWaitTime(defaultRetryBaseDelay).
		SetRetryMaxWaitTime(defaultRetryMaxBackoff).
		AddRetryCondition(isRetryableResp)

	return &RESTVenue{
		name:      name,
		apiKey:    cfg.VenueAPIKey,
		apiSecret: cfg.VenueAPISecret,
		baseURL:   baseURL,
		http:      httpClient,
		now:       time.Now,
	}, nil
}

func (v *RESTVenue) Name() string { return v.name }

func signRequest(path, query, body string, expiry int64, secret string) string {
	base := path
	if query != "" {
		base += query
	}
	base += strconv.FormatInt(expiry, 10)
	if body != "" {
		base += body
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(base))
	return hex.EncodeToString(mac.Sum(nil))
}

// doRequest signs and sends one call and classifies failures:
// transport errors, 5xx/429/408 and transient business codes become TransientVenueError,
// other business codes and 4xx on order endpoints become InvalidOrderError.
func (v *RESTVenue) doRequest(ctx context.Context, op, method, path string, query url.Values, body any, out any) error {
	path = apiPrefix + path
	rawQuery := query.Encode()

	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: marshal body: %w", op, err)
		}
		payload = b
	}

	expiry := v.now().Add(time.Minute).Unix()
	sig := signRequest(path, rawQuery, string(payload), expiry, v.apiSecret)

	req := v.http.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetHeader("X-API-KEY", v.apiKey).
		SetHeader("X-API-EXPIRY", strconv.FormatInt(expiry, 10)).
		SetHeader("X-API-SIGNATURE", sig)

	if rawQuery != "" {
		req = req.SetQueryString(rawQuery)
	}
	if payload != nil {
		req = req.SetBody(payload).SetHeader("Content-Type", "application/json")
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return &errs.TransientVenueError{Venue: v.name, Op: op, Err: err}
	}

	raw := resp.Body()
	if isRetryableResp(resp, nil) {
		return &errs.TransientVenueError{Venue: v.name, Op: op, Err: fmt.Errorf("HTTP %d: %s", resp.StatusCode(), string(raw))}
	}

	var apiResp APIResponse
	if jerr := json.Unmarshal(raw, &apiResp); jerr != nil {
		if resp.StatusCode() != 200 {
			return v.rejection(op, 0, fmt.Sprintf("HTTP %d: %s", resp.StatusCode(), string(raw)))
		}
		return fmt.Errorf("%s: json unmarshal failed: %w. raw=%s", op, jerr, string(raw))
	}

	if apiResp.Code != 0 {
		if isTransientCode(apiResp.Code) {
			return &errs.TransientVenueError{Venue: v.name, Op: op, Err: fmt.Errorf("%s: %s", GetErrorMsg(apiResp.Code), apiResp.Msg)}
		}
		return v.rejection(op, apiResp.Code, apiResp.Msg)
	}
	if resp.StatusCode() != 200 {
		return v.rejection(op, 0, fmt.Sprintf("HTTP %d: %s", resp.StatusCode(), string(raw)))
	}

	if out != nil && len(apiResp.Data) > 0 {
		if err := json.Unmarshal(apiResp.Data, out); err != nil {
			return fmt.Errorf("%s: json unmarshal into output failed: %w. raw=%s", op, err, string(apiResp.Data))
		}
	}
	return nil
}

func (v *RESTVenue) rejection(op string, code int, msg string) error {
	reason := msg
	codeStr := ""
	if code != 0 {
		codeStr = strconv.Itoa(code)
		reason = GetErrorMsg(code)
		if msg != "" {
			reason += ": " + msg
		}
	}
	logger.WithFields(map[string]interface{}{
		"venue": v.name,
		"op":    op,
		"code":  code,
	}).Warn(reason)

	switch op {
	case "placeOrder", "cancelOrder":
		return &errs.InvalidOrderError{Venue: v.name, Code: codeStr, Reason: reason}
	}
	return fmt.Errorf("%s on %s: %s", op, v.name, reason)
}

// FetchCandles decodes klines as [timestampMillis, open, high, low, close, volume] rows.
func (v *RESTVenue) FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]model.Candle, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("limit", strconv.Itoa(limit))

	var rows [][]float64
	if err := v.doRequest(ctx, "fetchCandles", "GET", "/klines", q, nil, &rows); err != nil {
		return nil, err
	}

	candles := make([]model.Candle, 0, len(rows))
	for _, r := range rows {
		if len(r) < 6 {
			continue
		}
		candles = append(candles, model.Candle{
			Timestamp: time.UnixMilli(int64(r[0])).UTC(),
			Open:      r[1],
			High:      r[2],
			Low:       r[3],
			Close:     r[4],
			Volume:    r[5],
		})
	}
	return candles, nil
}

func (v *RESTVenue) FetchBalance(ctx context.Context) (*Balance, error) {
	var out Balance
	if err := v.doRequest(ctx, "fetchBalance", "GET", "/balance", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (v *RESTVenue) FetchTicker(ctx context.Context, symbol string) (*Ticker, error) {
	if strings.TrimSpace(symbol) == "" {
		return nil, errors.New("symbol is required")
	}
	q := url.Values{}
	q.Set("symbol", symbol)

	var out Ticker
	if err := v.doRequest(ctx, "fetchTicker", "GET", "/ticker", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (v *RESTVenue) PlaceOrder(ctx context.Context, req OrderRequest) (*VenueOrder, error) {
	if err := validateOrderRequest(v.name, req); err != nil {
		return nil, err
	}

	var out VenueOrder
	if err := v.doRequest(ctx, "placeOrder", "POST", "/orders", nil, req, &out); err != nil {
		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"venue":  v.name,
		"symbol": req.Symbol,
		"side":   req.Side,
		"type":   req.Type,
		"amount": req.Amount,
		"id":     out.ID,
		"status": out.Status,
	}).Info("order placed")
	return &out, nil
}

func (v *RESTVenue) CancelOrder(ctx context.Context, orderID, symbol string) error {
	q := url.Values{}
	q.Set("symbol", symbol)
	return v.doRequest(ctx, "cancelOrder", "DELETE", "/orders/"+url.PathEscape(orderID), q, nil, nil)
}

func (v *RESTVenue) ListOrders(ctx context.Context, symbol string) ([]VenueOrder, error) {
	q := url.Values{}
	q.Set("symbol", symbol)

	var out []VenueOrder
	if err := v.doRequest(ctx, "listOrders", "GET", "/orders", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func validateOrderRequest(venue string, req OrderRequest) error {
	reject := func(reason string) error {
		return &errs.InvalidOrderError{Venue: venue, Reason: reason}
	}
	if strings.TrimSpace(req.Symbol) == "" {
		return reject("symbol is required")
	}
	if req.Side != model.SideBuy && req.Side != model.SideSell {
		return reject("side must be buy or sell")
	}
	if req.Amount <= 0 {
		return reject("amount must be > 0")
	}
	switch req.Type {
	case OrderTypeMarket:
	case OrderTypeLimit:
		if req.Price <= 0 {
			return reject("limit order requires a price")
		}
	case OrderTypeStopLoss, OrderTypeTakeProfit:
		if req.StopPrice <= 0 {
			return reject("trigger order requires a stop price")
		}
	default:
		return reject("unsupported order type " + req.Type)
	}
	return nil
}
