package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"tradingcore/src/connectors"
	"tradingcore/src/executors"
	"tradingcore/src/ledger"
	"tradingcore/src/model"
	"tradingcore/src/monitoring"
	"tradingcore/src/repository"
	"tradingcore/src/resilience"
)

type flatFeed struct{}

func (flatFeed) FetchCandles(_ context.Context, _, _ string, limit int) ([]model.Candle, error) {
	out := make([]model.Candle, limit)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range out {
		out[i] = model.Candle{Timestamp: start.Add(time.Duration(i) * time.Hour), Open: 100, High: 100, Low: 100, Close: 100, Volume: 1}
	}
	return out, nil
}

type testServer struct {
	srv    *httptest.Server
	bots   *repository.BotRepository
	alerts *repository.ExceptionRepository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Bot{}, &model.TradeRecord{}, &model.BacktestResult{}, &model.Exception{}))

	reg := prometheus.NewRegistry()
	recorder := monitoring.New(reg)
	breakers := resilience.NewRegistry(resilience.DefaultRetryPolicy(), resilience.DefaultBreakerSettings(), resilience.WithObserver(recorder))

	paper := connectors.NewPaperExchange(connectors.Config{PaperBalance: 1000, PaperQuote: "USDT"}, flatFeed{})
	exchange := connectors.NewResilientExchange(paper, breakers)

	bots := (&repository.BotRepository{}).WithDB(db)
	trades := (&repository.TradeRepository{}).WithDB(db)
	l := ledger.New(trades, ledger.WithRecorder(recorder))

	cfg := executors.DefaultConfig()
	cfg.StopTimeout = time.Second
	manager := executors.NewBotManager(executors.Deps{
		Exchange: exchange,
		Ledger:   l,
		Bots:     bots,
		Recorder: recorder,
		Config:   cfg,
	})
	t.Cleanup(func() { _ = manager.StopAll(context.Background()) })

	alerts := (&repository.ExceptionRepository{}).WithDB(db)
	h := NewRouter(Deps{
		Bots:      bots,
		Trades:    trades,
		Backtests: (&repository.BacktestResultRepository{}).WithDB(db),
		Alerts:    alerts,
		Ledger:    l,
		Manager:   manager,
		Breakers:  breakers,
		Executor:  cfg,
		Gatherer:  reg,
	})

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, bots: bots, alerts: alerts}
}

func (s *testServer) do(t *testing.T, method, path, body string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(method, s.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(b)
}

func TestHealthcheck(t *testing.T) {
	s := newTestServer(t)
	code, body := s.do(t, http.MethodGet, "/healthcheck", "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "OK", body)
}

func TestBotLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(t, http.MethodPost, "/bots", `{"name":"flat","venue":"paper","symbol":"BTC/USDT","strategy":"BOLLINGER_BANDS"}`)
	require.Equal(t, http.StatusCreated, code, body)

	var created model.Bot
	require.NoError(t, json.Unmarshal([]byte(body), &created))
	require.NotZero(t, created.ID)

	code, body = s.do(t, http.MethodPost, "/bots/1/start", "")
	require.Equal(t, http.StatusAccepted, code, body)

	code, _ = s.do(t, http.MethodPost, "/bots/1/start", "")
	require.Equal(t, http.StatusConflict, code)

	code, body = s.do(t, http.MethodGet, "/bots/running", "")
	require.Equal(t, http.StatusOK, code)
	var running []executors.BotStatus
	require.NoError(t, json.Unmarshal([]byte(body), &running))
	require.Len(t, running, 1)

	stored, err := s.bots.FindByID(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, stored.IsActive)

	code, _ = s.do(t, http.MethodPost, "/bots/1/stop", "")
	require.Equal(t, http.StatusNoContent, code)

	stored, err = s.bots.FindByID(context.Background(), 1)
	require.NoError(t, err)
	require.False(t, stored.IsActive)

	code, body = s.do(t, http.MethodGet, "/bots/1/statistics", "")
	require.Equal(t, http.StatusOK, code, body)
}

func TestMetricsAndBreakers(t *testing.T) {
	s := newTestServer(t)

	// one call through the resilient exchange registers the venue breaker and its metrics
	code, _ := s.do(t, http.MethodPost, "/bots", `{"name":"flat","venue":"paper","symbol":"BTC/USDT","strategy":"BOLLINGER_BANDS"}`)
	require.Equal(t, http.StatusCreated, code)
	code, _ = s.do(t, http.MethodPost, "/bots/1/start", "")
	require.Equal(t, http.StatusAccepted, code)

	require.Eventually(t, func() bool {
		_, body := s.do(t, http.MethodGet, "/metrics", "")
		return strings.Contains(body, "tradingcore_bot_cycles_total")
	}, 2*time.Second, 10*time.Millisecond)

	code, body := s.do(t, http.MethodGet, "/breakers", "")
	require.Equal(t, http.StatusOK, code)
	var snaps []resilience.Snapshot
	require.NoError(t, json.Unmarshal([]byte(body), &snaps))
	require.Len(t, snaps, 1)
	require.Equal(t, "paper", snaps[0].Venue)
}

func TestAlerts(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, s.alerts.Create(ctx, &model.Exception{Service: "tradingcore", Module: "ledger", Level: model.ExceptionLevelError, Message: "reconcile failed"}))
	require.NoError(t, s.alerts.Create(ctx, &model.Exception{Service: "tradingcore", Module: "ledger", Level: model.ExceptionLevelCritical, Message: "position unprotected"}))

	code, body := s.do(t, http.MethodGet, "/alerts?level=critical", "")
	require.Equal(t, http.StatusOK, code, body)
	var got []model.Exception
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	require.Len(t, got, 1)
	require.Equal(t, "position unprotected", got[0].Message)

	code, body = s.do(t, http.MethodGet, "/alerts", "")
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	require.Len(t, got, 2)
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t)
	code, _ := s.do(t, http.MethodGet, "/orders", "")
	require.Equal(t, http.StatusNotFound, code)
}
