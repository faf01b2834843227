package executor

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tradingcore/src/backtest"
	"tradingcore/src/cache"
	"tradingcore/src/connectors"
	"tradingcore/src/executors"
	"tradingcore/src/ledger"
	"tradingcore/src/monitoring"
	"tradingcore/src/repository"
	"tradingcore/src/resilience"
	"tradingcore/src/risk"
	"tradingcore/src/server"
)

// App is the wired process: one venue, one bot manager and the HTTP API in front of them.
type App struct {
	Settings  Settings
	Exchange  *connectors.ResilientExchange
	Breakers  *resilience.Registry
	Recorder  *monitoring.Recorder
	Bots      *repository.BotRepository
	Trades    *repository.TradeRepository
	Backtests *repository.BacktestResultRepository
	Ledger    *ledger.Ledger
	Manager   *executors.BotManager
	Worker    *executors.ReconcileWorker
	Runner    *backtest.Service
	Handler   http.Handler
}

// Build wires every component. db is the main database; history serves backtest candles and
// may be the same handle.
func Build(s Settings, db, history *gorm.DB, reg prometheus.Registerer, gatherer prometheus.Gatherer) (*App, error) {
	if history == nil {
		history = db
	}

	recorder := monitoring.New(reg)
	breakers := resilience.NewRegistry(
		s.Resilience.RetryPolicy(),
		s.Resilience.BreakerSettings(),
		resilience.WithObserver(recorder),
	)

	venue, err := NewVenue(s.Venue)
	if err != nil {
		return nil, err
	}
	exchange := connectors.NewResilientExchange(venue, breakers)

	store, err := cache.NewFromConfig(s.Cache)
	if err != nil {
		return nil, err
	}
	var candles connectors.CandleSource
	if store != nil {
		candles = cache.NewCandleCache(exchange, store, s.Cache.TTL)
	}

	bots := (&repository.BotRepository{}).WithDB(db)
	trades := (&repository.TradeRepository{}).WithDB(db)
	backtests := (&repository.BacktestResultRepository{}).WithDB(db)
	exceptions := (&repository.ExceptionRepository{}).WithDB(db)
	alerter := monitoring.NewAlerter(s.Process.ServiceName, exceptions, recorder)

	l := ledger.New(trades, ledger.WithAlerter(alerter), ledger.WithRecorder(recorder))

	sessions := risk.DefaultSessionSizer()
	sessions.NoTradeWindow = s.Process.NoTradeWindow

	manager := executors.NewBotManager(executors.Deps{
		Exchange: exchange,
		Candles:  candles,
		Ledger:   l,
		Bots:     bots,
		Recorder: recorder,
		Sessions: sessions,
		Config:   s.Bots,
	})
	runner := backtest.NewService(repository.NewOHLCVRepositoryWithDB(history), backtests)

	app := &App{
		Settings:  s,
		Exchange:  exchange,
		Breakers:  breakers,
		Recorder:  recorder,
		Bots:      bots,
		Trades:    trades,
		Backtests: backtests,
		Ledger:    l,
		Manager:   manager,
		Worker:    executors.NewReconcileWorker(bots, l, exchange, s.Bots.ReconcileInterval),
		Runner:    runner,
	}
	app.Handler = server.NewRouter(server.Deps{
		Bots:      bots,
		Trades:    trades,
		Backtests: backtests,
		Alerts:    exceptions,
		Ledger:    l,
		Manager:   manager,
		Runner:    runner,
		Breakers:  breakers,
		Executor:  s.Bots,
		Gatherer:  gatherer,
	})

	logger.WithFields(map[string]interface{}{
		"venue":   exchange.Name(),
		"cache":   s.Cache.Backend,
		"service": s.Process.ServiceName,
	}).Info("Components wired")

	return app, nil
}

// NewVenue builds the unwrapped venue connector. "paper" simulates fills on Binance klines,
// any other name is served by the REST venue at VENUE_BASE_URL.
func NewVenue(cfg connectors.Config) (connectors.Exchange, error) {
	if strings.EqualFold(cfg.VenueName, "paper") || cfg.VenueName == "" {
		feed := connectors.NewBinanceCandleSource(cfg.BinanceEndpoint, &http.Client{Timeout: cfg.HTTPTimeout})
		return connectors.NewPaperExchange(cfg, feed), nil
	}
	venue, err := connectors.NewRESTVenue(cfg)
	if err != nil {
		return nil, fmt.Errorf("venue %s: %w", cfg.VenueName, err)
	}
	return venue, nil
}

// RestoreBots restarts the bots flagged active. Bots that cannot start are logged and skipped.
func (a *App) RestoreBots(ctx context.Context) (int, error) {
	active, err := a.Bots.FindActive(ctx)
	if err != nil {
		return 0, err
	}

	started := 0
	for i := range active {
		b := &active[i]
		if err := a.Manager.Start(ctx, executors.BotConfigFromModel(b, a.Settings.Bots)); err != nil {
			logger.WithError(err).WithField("bot_id", b.ID).Warn("Failed to restore bot")
			continue
		}
		started++
	}

	logger.WithFields(map[string]interface{}{
		"active":  len(active),
		"started": started,
	}).Info("Active bots restored")
	return started, nil
}

// Run serves the API and the reconcile worker until ctx is done, then shuts the bots down.
func (a *App) Run(ctx context.Context) error {
	if a.Settings.Process.RestoreBots {
		if _, err := a.RestoreBots(ctx); err != nil {
			logger.WithError(err).Error("Failed to load active bots")
		}
	}

	go func() {
		_ = a.Worker.Run(ctx)
	}()

	serveErr := server.StartServer(ctx, a.Settings.Port, a.Handler)

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.Settings.Process.ShutdownTimeout)
	defer cancel()
	if err := a.Manager.Shutdown(sctx); err != nil {
		logger.WithError(err).Error("Bot shutdown incomplete")
	}
	return serveErr
}
