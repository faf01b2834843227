package executor

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tradingcore/src/cache"
	"tradingcore/src/connectors"
	"tradingcore/src/database"
	"tradingcore/src/executors"
	"tradingcore/src/model"
	"tradingcore/src/resilience"
)

func setupMockBinanceServer() *httptest.Server {
	handler := http.NewServeMux()
	handler.HandleFunc("/api/v3/klines", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte(`[
			[1499040000000, "100", "100", "100", "100", "1", 1499043599999, "100", 1, "0", "0", "0"]
		]`))
		if err != nil {
			return
		}
	})
	return httptest.NewServer(handler)
}

func setupDB(t *testing.T) *gorm.DB {
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func testSettings(binanceURL string) Settings {
	bots := executors.DefaultConfig()
	bots.StopTimeout = time.Second
	return Settings{
		Process: Config{ServiceName: "tradingcore-test", ShutdownTimeout: time.Second},
		Bots:    bots,
		Venue: connectors.Config{
			VenueName:       "paper",
			BinanceEndpoint: binanceURL,
			HTTPTimeout:     time.Second,
			PaperBalance:    1000,
			PaperQuote:      "USDT",
		},
		Resilience: resilience.Config{
			MaxRetries:        0,
			InitialDelay:      time.Millisecond,
			MaxDelay:          time.Millisecond,
			BackoffMultiplier: 2,
			FailureThreshold:  5,
			SuccessThreshold:  1,
			BreakerTimeout:    time.Second,
		},
		Cache: cache.Config{Backend: "memory", TTL: time.Second},
		Port:  "0",
	}
}

func buildApp(t *testing.T, s Settings) (*App, *gorm.DB) {
	t.Helper()
	db := setupDB(t)
	reg := prometheus.NewRegistry()
	app, err := Build(s, db, nil, reg, reg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Manager.StopAll(context.Background()) })
	return app, db
}

func TestBuildWiresPaperVenue(t *testing.T) {
	feed := setupMockBinanceServer()
	defer feed.Close()

	app, _ := buildApp(t, testSettings(feed.URL))
	require.Equal(t, "paper", app.Exchange.Name())

	srv := httptest.NewServer(app.Handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthcheck")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "OK", string(body))
}

func TestBuildRejectsBadSettings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{name: "rest venue without url", mutate: func(s *Settings) { s.Venue.VenueName = "kraken" }},
		{name: "unknown cache", mutate: func(s *Settings) { s.Cache.Backend = "memcached" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testSettings("http://127.0.0.1:1")
			tt.mutate(&s)
			reg := prometheus.NewRegistry()
			if _, err := Build(s, setupDB(t), nil, reg, reg); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestNewVenue(t *testing.T) {
	paper, err := NewVenue(connectors.Config{VenueName: "PAPER"})
	require.NoError(t, err)
	require.Equal(t, "paper", paper.Name())

	rest, err := NewVenue(connectors.Config{VenueName: "kraken", VenueBaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)
	require.Equal(t, "kraken", rest.Name())
}

func TestRestoreBots(t *testing.T) {
	feed := setupMockBinanceServer()
	defer feed.Close()

	app, db := buildApp(t, testSettings(feed.URL))
	ctx := context.Background()

	tpl := model.BotTemplates()[model.StrategyBollingerBands]
	bots := []*model.Bot{
		{Name: "restored", Venue: "paper", Symbol: "BTC/USDT", Strategy: model.StrategyBollingerBands, Parameters: tpl.Parameters, RiskManagement: tpl.RiskManagement, Interval: "1h"},
		{Name: "wrong venue", Venue: "kraken", Symbol: "BTC/USDT", Strategy: model.StrategyBollingerBands, Parameters: tpl.Parameters, RiskManagement: tpl.RiskManagement, Interval: "1h"},
		{Name: "idle", Venue: "paper", Symbol: "ETH/USDT", Strategy: model.StrategyBollingerBands, Parameters: tpl.Parameters, RiskManagement: tpl.RiskManagement, Interval: "1h"},
	}
	for _, b := range bots {
		require.NoError(t, app.Bots.Create(ctx, b))
	}
	require.NoError(t, db.Model(&model.Bot{}).Where("id IN ?", []uint{bots[0].ID, bots[1].ID}).Update("is_active", true).Error)

	started, err := app.RestoreBots(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, started)

	running := app.Manager.Running()
	require.Len(t, running, 1)
	require.Equal(t, bots[0].ID, running[0].BotID)

	sctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, app.Manager.Shutdown(sctx))

	stored, err := app.Bots.FindByID(ctx, bots[0].ID)
	require.NoError(t, err)
	require.True(t, stored.IsActive, "shutdown keeps the bot restorable")
}
