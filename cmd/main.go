package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"tradingcore/cmd/backtesting"
	"tradingcore/cmd/executor"
	"tradingcore/cmd/ohlcvcrypto"
	"tradingcore/src/backtest"
	"tradingcore/src/connectors"
	"tradingcore/src/database"
	"tradingcore/src/handler"
	"tradingcore/src/model"
	"tradingcore/src/repository"
)

var Version string

func main() {
	app := cli.NewApp()
	app.Name = "tradingcore"
	app.Usage = "The trading core command line interface"
	app.Version = Version

	app.Commands = []cli.Command{
		executorCMD,
		reconcileCMD,
		backtestCMD,
		ohlcvCryptoCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	executorCMD = cli.Command{
		Name:        "executor",
		Usage:       "run Executor",
		Action:      executorAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Run the bots, the reconcile worker and the HTTP API`,
	}
	reconcileCMD = cli.Command{
		Name:        "reconcile",
		Usage:       "reconcile open trades once",
		Action:      reconcileAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Reconcile the trades of every active bot against the venue and exit`,
	}
	backtestCMD = cli.Command{
		Name:      "backtest",
		Usage:     "run a backtest over stored candles",
		Action:    backtestAction,
		ArgsUsage: "",
		Flags: []cli.Flag{
			cli.UintFlag{Name: "bot-id", Usage: "take symbol, strategy, interval and parameters from this bot"},
			cli.StringFlag{Name: "symbol", Usage: "pair such as BTC/USDT"},
			cli.StringFlag{Name: "strategy", Usage: "RSI_SMA_MACD, BOLLINGER_BANDS or HYBRID"},
			cli.StringFlag{Name: "interval", Usage: "1m, 5m, 15m, 30m, 1h, 4h or 1d"},
			cli.StringFlag{Name: "start", Usage: "RFC3339 start of the window"},
			cli.StringFlag{Name: "end", Usage: "RFC3339 end of the window, defaults to now"},
			cli.Float64Flag{Name: "initial-balance", Usage: "starting quote balance"},
			cli.Float64Flag{Name: "trade-amount", Usage: "quote amount spent per buy"},
		},
		Description: `Run a backtest and store its result`,
	}
	ohlcvCryptoCMD = cli.Command{
		Name:        "ohlcv_crypto",
		Usage:       "run OHLCV crypto",
		Action:      ohlcvCryptoAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Import Binance klines into the candle history tables`,
	}
)

func executorAction(_ *cli.Context) error {

	logrus.Info("Starting executor CMD")

	executorStrategy := &executor.Executor{}
	err := executorStrategy.Start()
	if err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}

	return nil
}

func reconcileAction(_ *cli.Context) error {

	logrus.Info("Starting reconcile CMD")

	n, err := (&executor.Executor{}).Reconcile()
	if err != nil {
		logrus.WithError(err).Error("Reconcile cmd")
		return err
	}

	logrus.WithField("updated", n).Info("Reconcile done")
	return nil
}

func backtestAction(c *cli.Context) error {

	logrus.Info("Starting backtest CMD")

	req, err := backtestRequestFromFlags(c, time.Now())
	if err != nil {
		return err
	}

	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Error("Failed to connect to database")
		return err
	}
	if err := database.InitReadOnlyDB(); err != nil {
		logrus.WithError(err).Error("Failed to connect to read-only database")
		return err
	}

	runner := backtest.NewService(repository.NewOHLCVHistoryRepository(), repository.NewBacktestResultRepository())
	if _, err := backtesting.New(repository.NewBotRepository(), runner).Start(context.Background(), req); err != nil {
		logrus.WithError(err).Error("Backtest cmd")
		return err
	}
	return nil
}

func backtestRequestFromFlags(c *cli.Context, now time.Time) (handler.BacktestRequest, error) {
	req := handler.BacktestRequest{
		Symbol:         c.String("symbol"),
		Strategy:       model.StrategyKind(c.String("strategy")),
		Interval:       c.String("interval"),
		InitialBalance: c.Float64("initial-balance"),
		TradeAmount:    c.Float64("trade-amount"),
		End:            now.UTC(),
	}
	if id := c.Uint("bot-id"); id > 0 {
		req.BotID = &id
	}

	var err error
	if req.Start, err = time.Parse(time.RFC3339, c.String("start")); err != nil {
		return req, fmt.Errorf("--start: %w", err)
	}
	if s := c.String("end"); s != "" {
		if req.End, err = time.Parse(time.RFC3339, s); err != nil {
			return req, fmt.Errorf("--end: %w", err)
		}
	}
	return req, nil
}

// ohlcvCryptoAction imports OHLCV candles for the configured pair
func ohlcvCryptoAction(_ *cli.Context) error {

	logrus.Info("Starting OHLCV crypto CMD")
	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Error("Failed to connect to database")
		return err
	}

	venue := connectors.GetConfig()
	source := connectors.NewBinanceCandleSource(venue.BinanceEndpoint, &http.Client{Timeout: venue.HTTPTimeout})
	_ohlcv := ohlcvcrypto.New(ohlcvcrypto.GetConfig(), source, repository.NewOHLCVRepository())

	if _, err := _ohlcv.Start(context.Background()); err != nil {
		logrus.WithError(err).Error("Starting OHLCV cmd")
		return err
	}

	return nil
}
