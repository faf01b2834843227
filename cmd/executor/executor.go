package executor

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"tradingcore/src/database"
)

type Executor struct{}

func connect() error {
	// Initialize main (read/write) database
	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Error("Failed to connect to main database")
		return err
	}

	// Initialize read-only database
	if err := database.InitReadOnlyDB(); err != nil {
		logrus.WithError(err).Error("Failed to connect to read-only database")
		return err
	}
	return nil
}

func build() (*App, error) {
	if err := connect(); err != nil {
		return nil, err
	}
	return Build(LoadSettings(), database.MainDB, database.ReadOnlyDB, prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

// Start runs the bots, the reconcile worker and the HTTP API until SIGINT or SIGTERM.
func (t *Executor) Start() error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	app, err := build()
	if err != nil {
		return err
	}

	logrus.WithField("venue", app.Exchange.Name()).Info("Starting trading core")

	return app.Run(ctx)
}

// Reconcile runs a single reconciliation pass over the active bots and exits.
func (t *Executor) Reconcile() (int, error) {
	app, err := build()
	if err != nil {
		return 0, err
	}
	return app.Worker.RunOnce(context.Background()), nil
}
