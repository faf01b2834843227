package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	logger "github.com/sirupsen/logrus"

	"tradingcore/src/backtest"
	"tradingcore/src/executors"
	"tradingcore/src/handler"
	"tradingcore/src/ledger"
	"tradingcore/src/repository"
	"tradingcore/src/resilience"
)

// Deps are the collaborators the HTTP API reads from. Nil Manager disables the bot lifecycle routes.
type Deps struct {
	Bots      *repository.BotRepository
	Trades    *repository.TradeRepository
	Backtests *repository.BacktestResultRepository
	Alerts    *repository.ExceptionRepository
	Ledger    *ledger.Ledger
	Manager   *executors.BotManager
	Runner    *backtest.Service
	Breakers  *resilience.Registry
	Executor  executors.Config
	Gatherer  prometheus.Gatherer
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	// === Global Middleware ===
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	// Public routes
	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error(" \"/health error")
		}
	})

	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	if d.Breakers != nil {
		r.Get("/breakers", func(w http.ResponseWriter, r *http.Request) {
			handler.WriteJSON(w, http.StatusOK, d.Breakers.Snapshots())
		})
	}

	if d.Alerts != nil {
		r.Get("/alerts", handler.AlertsHandler(d.Alerts))
	}

	r.Route("/bots", func(r chi.Router) {
		r.Get("/templates", handler.TemplatesHandler())
		if d.Bots != nil {
			r.Get("/", handler.ListBotsHandler(d.Bots))
			r.Post("/", handler.CreateBotHandler(d.Bots))
		}
		if d.Manager != nil {
			r.Get("/running", handler.RunningBotsHandler(d.Manager))
			r.Post("/{id}/stop", handler.StopBotHandler(d.Manager))
			if d.Bots != nil {
				r.Get("/{id}", handler.GetBotHandler(d.Bots, d.Manager))
				r.Post("/{id}/start", handler.StartBotHandler(d.Bots, d.Manager, d.Executor))
			}
		}
		if d.Trades != nil {
			r.Get("/{id}/trades", handler.BotTradesHandler(d.Trades))
		}
		if d.Ledger != nil {
			r.Get("/{id}/statistics", handler.BotStatisticsHandler(d.Ledger))
		}
		if d.Backtests != nil {
			r.Get("/{id}/backtests", handler.BotBacktestsHandler(d.Backtests))
		}
	})

	if d.Runner != nil && d.Bots != nil {
		r.Post("/backtests", handler.RunBacktestHandler(d.Bots, d.Runner))
	}

	return r
}

// StartServer serves h until ctx is cancelled, then shuts down gracefully.
func StartServer(ctx context.Context, port string, h http.Handler) error {
	// Graceful server
	addr := ":" + port
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Shutdown error")
		return err
	}
	return nil
}
