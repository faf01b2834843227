package ohlcvcrypto

import (
	"context"
	"fmt"
	"time"

	logger "github.com/sirupsen/logrus"

	"tradingcore/src/model"
	"tradingcore/src/repository"
)

const (
	Duration1m = repository.Timeframe1m
	Duration1h = repository.Timeframe1h
)

// CandleRangeSource is satisfied by connectors.BinanceCandleSource.
type CandleRangeSource interface {
	FetchCandlesRange(ctx context.Context, symbol, interval string, limit int, start, end time.Time) ([]model.Candle, error)
}

// CandleStore is satisfied by repository.OHLCVRepository.
type CandleStore interface {
	Upsert(ctx context.Context, timeframe string, bases []*model.OHLCVBase) error
	LatestDatetime(ctx context.Context, timeframe, symbol string) (*time.Time, error)
}

// OHLCVCrypto imports venue klines into the candle history tables used by backtests.
type OHLCVCrypto struct {
	Log    *logger.Entry
	Config *Config
	Source CandleRangeSource
	Store  CandleStore
	now    func() time.Time
}

func New(cfg *Config, source CandleRangeSource, store CandleStore) *OHLCVCrypto {
	return &OHLCVCrypto{
		Log:    logger.WithField("component", "ohlcv_crypto"),
		Config: cfg,
		Source: source,
		Store:  store,
		now:    time.Now,
	}
}

// Start runs one import window. Returns the number of stored candles.
func (o *OHLCVCrypto) Start(ctx context.Context) (int, error) {
	if _, err := o.parseDuration(); err != nil {
		return 0, err
	}

	if o.Config.AutoMode {
		if err := o.determineStartPoint(ctx); err != nil {
			return 0, err
		}
	}

	return o.aggregateAndSave(ctx)
}

func (o *OHLCVCrypto) aggregateAndSave(ctx context.Context) (int, error) {
	series, err := o.fetchOHLCVSeries(ctx)
	if err != nil {
		o.Log.WithError(err).Error("aggregateAndSave, fetch")
		return 0, err
	}

	symbol := repository.StorageSymbol(o.Config.Pair())
	bases := make([]*model.OHLCVBase, 0, len(series))
	for _, c := range series {
		bases = append(bases, model.NewOHLCVBaseFromCandle(symbol, c))
	}

	if err := o.Store.Upsert(ctx, o.Config.DurationStr, bases); err != nil {
		o.Log.WithError(err).Error("aggregateAndSave, upsert")
		return 0, err
	}

	o.Log.WithFields(map[string]interface{}{
		"symbol":   symbol,
		"duration": o.Config.DurationStr,
		"rows":     len(bases),
		"start":    o.Config.StartDt.String(),
		"end":      o.Config.EndDt.String(),
	}).Info("OHLCV data inserted or updated in database")

	return len(bases), nil
}

// determineStartPoint moves the window to [latest stored candle - one interval, now]. The last
// stored candle is fetched again since it may have been written before it closed.
func (o *OHLCVCrypto) determineStartPoint(ctx context.Context) error {
	step, err := o.parseDuration()
	if err != nil {
		return err
	}
	o.Config.EndDt = o.now()

	latest, err := o.Store.LatestDatetime(ctx, o.Config.DurationStr, o.Config.Pair())
	if err != nil {
		o.Log.WithError(err).Error("Failed to query latest datetime")
		return err
	}

	if latest == nil {
		o.Log.
			WithField("StartDt", o.Config.StartDt.String()).
			WithField("EndDt", o.Config.EndDt.String()).
			Warn("no records found, start from the configured StartDt")
		return nil
	}

	o.Config.StartDt = latest.Add(-step)
	o.Log.
		WithField("StartDt", o.Config.StartDt.String()).
		WithField("EndDt", o.Config.EndDt.String()).
		Info("determineStartPoint valid date found")
	return nil
}

func (o *OHLCVCrypto) fetchOHLCVSeries(ctx context.Context) ([]model.Candle, error) {
	return o.Source.FetchCandlesRange(ctx, o.Config.Pair(), o.Config.DurationStr, o.Config.Limit, o.Config.StartDt, o.Config.EndDt)
}

func (o *OHLCVCrypto) parseDuration() (time.Duration, error) {
	switch o.Config.DurationStr {
	case Duration1m:
		return time.Minute, nil
	case Duration1h:
		return time.Hour, nil
	}
	return 0, fmt.Errorf("invalid DURATION %q, use %s or %s", o.Config.DurationStr, Duration1m, Duration1h)
}
