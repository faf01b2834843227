package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tradingcore/src/database"
	"tradingcore/src/model"
)

const (
	Timeframe1m = "1m"
	Timeframe1h = "1h"
)

var ErrInvalidInterval = errors.New("invalid interval. allowed: 1m,5m,15m,30m,1h,4h,1d")

// OHLCVRepository reads and writes the stored candle history tables.
type OHLCVRepository struct {
	db *gorm.DB
}

// NewOHLCVRepository creates a new repository on the main database.
func NewOHLCVRepository() *OHLCVRepository {
	logger.WithField("component", "OHLCVRepository").
		Info("Creating new OHLCVRepository with MainDB")

	return &OHLCVRepository{
		db: database.MainDB,
	}
}

// NewOHLCVHistoryRepository reads from the read-only history database, falling back to MainDB.
func NewOHLCVHistoryRepository() *OHLCVRepository {
	db := database.ReadOnlyDB
	if db == nil {
		db = database.MainDB
	}
	return &OHLCVRepository{
		db: db,
	}
}

func NewOHLCVRepositoryWithDB(db *gorm.DB) *OHLCVRepository {
	return &OHLCVRepository{
		db: db,
	}
}

// StorageSymbol converts "BTC/USDT" or "btc-usdt" to the stored "BTC_USDT" form.
func StorageSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	s = strings.ReplaceAll(s, "/", "_")
	return strings.ReplaceAll(s, "-", "_")
}

func (s *OHLCVRepository) model(timeframe string) (*gorm.DB, error) {
	switch timeframe {
	case Timeframe1m:
		return s.db.Model(&model.OHLCVCrypto1m{}), nil
	case Timeframe1h:
		return s.db.Model(&model.OHLCVCrypto1h{}), nil
	}
	return nil, fmt.Errorf("%w: table %q", ErrInvalidInterval, timeframe)
}

func (s *OHLCVRepository) FetchRecentOHLCV1m(
	ctx context.Context,
	symbol string,
	to time.Time,
	limit int,
) ([]model.OHLCVCrypto1m, error) {
	if limit <= 0 {
		limit = 200
	}

	var rows []model.OHLCVCrypto1m
	err := s.db.WithContext(ctx).
		Where("symbol = ? AND datetime <= ?", StorageSymbol(symbol), to).
		Order("datetime DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	// reverse to ascending chronological order for easier logic
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}

// Upsert stores klines into the timeframe table; on conflict on (symbol, datetime) prices are updated.
func (s *OHLCVRepository) Upsert(
	ctx context.Context,
	timeframe string,
	bases []*model.OHLCVBase,
) error {
	if len(bases) == 0 {
		return nil
	}

	var target interface{}
	switch timeframe {
	case Timeframe1m:
		rows := make([]*model.OHLCVCrypto1m, 0, len(bases))
		for _, b := range bases {
			rows = append(rows, b.ToMinuteRow())
		}
		target = rows
	case Timeframe1h:
		rows := make([]*model.OHLCVCrypto1h, 0, len(bases))
		for _, b := range bases {
			rows = append(rows, b.ToHourRow())
		}
		target = rows
	default:
		return fmt.Errorf("%w: table %q", ErrInvalidInterval, timeframe)
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}, {Name: "datetime"}},
		DoUpdates: clause.AssignmentColumns([]string{"open", "high", "low", "close", "volume"}),
	}).Create(target).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":      "OHLCVRepository",
			"op":        "Upsert",
			"timeframe": timeframe,
			"rows":      len(bases),
		}).WithError(err).Error("Failed to upsert candles")
		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":      "OHLCVRepository",
		"op":        "Upsert",
		"timeframe": timeframe,
		"rows":      len(bases),
	}).Info("OHLCV data inserted or updated in database")
	return nil
}

// LatestDatetime returns the newest stored candle time for symbol, nil when the table has none.
func (s *OHLCVRepository) LatestDatetime(
	ctx context.Context,
	timeframe string,
	symbol string,
) (*time.Time, error) {
	tx, err := s.model(timeframe)
	if err != nil {
		return nil, err
	}

	var latest struct {
		Max *time.Time
	}
	if err := tx.WithContext(ctx).
		Select("MAX(datetime) AS max").
		Where("symbol = ?", StorageSymbol(symbol)).
		Scan(&latest).Error; err != nil {
		return nil, err
	}
	return latest.Max, nil
}

// FetchRange loads candles for [start, end] in ascending order. Intervals below one hour are
// built from the minute table, longer ones from the hour table.
func (s *OHLCVRepository) FetchRange(
	ctx context.Context,
	symbol string,
	interval string,
	start, end time.Time,
) ([]model.Candle, error) {

	step, err := intervalDuration(interval)
	if err != nil {
		return nil, err
	}

	source := Timeframe1m
	if step >= time.Hour {
		source = Timeframe1h
	}
	tx, err := s.model(source)
	if err != nil {
		return nil, err
	}

	var rows []model.OHLCVRow
	err = tx.WithContext(ctx).
		Where("symbol = ? AND datetime >= ? AND datetime <= ?", StorageSymbol(symbol), start, end).
		Order("datetime ASC").
		Find(&rows).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "OHLCVRepository",
			"op":       "FetchRange",
			"symbol":   symbol,
			"interval": interval,
		}).WithError(err).Error("Failed to fetch candles")
		return nil, err
	}

	if (source == Timeframe1m && step > time.Minute) || (source == Timeframe1h && step > time.Hour) {
		rows = AggregateOHLCV(rows, step)
	}

	candles := make([]model.Candle, 0, len(rows))
	for _, r := range rows {
		candles = append(candles, r.ToCandle())
	}
	return candles, nil
}

func intervalDuration(interval string) (time.Duration, error) {
	switch interval {
	case "1m":
		return time.Minute, nil
	case "5m":
		return 5 * time.Minute, nil
	case "15m":
		return 15 * time.Minute, nil
	case "30m":
		return 30 * time.Minute, nil
	case "1h":
		return time.Hour, nil
	case "4h":
		return 4 * time.Hour, nil
	case "1d":
		return 24 * time.Hour, nil
	}
	return 0, ErrInvalidInterval
}

func bucketStart(t time.Time, interval time.Duration) time.Time {
	// Align to wall-clock boundaries: 12:07 with 5m => 12:05
	secs := t.Unix()
	step := int64(interval.Seconds())
	return time.Unix((secs/step)*step, 0).UTC()
}

// AggregateOHLCV folds ascending rows into interval buckets keyed by the bucket open time.
func AggregateOHLCV(rows []model.OHLCVRow, interval time.Duration) []model.OHLCVRow {
	if len(rows) == 0 || interval <= 0 {
		return rows
	}

	out := make([]model.OHLCVRow, 0, len(rows)/2+1)

	var cur model.OHLCVRow
	var curBucket time.Time
	hasCur := false

	for _, c := range rows {
		b := bucketStart(c.Datetime, interval)

		if !hasCur || !b.Equal(curBucket) {
			if hasCur {
				out = append(out, cur)
			}
			curBucket = b
			hasCur = true
			cur = model.OHLCVRow{
				Symbol:   c.Symbol,
				Datetime: curBucket,
				Open:     c.Open,
				High:     c.High,
				Low:      c.Low,
				Close:    c.Close,
				Volume:   c.Volume,
			}
			continue
		}

		if c.High.GreaterThan(cur.High) {
			cur.High = c.High
		}
		if c.Low.LessThan(cur.Low) {
			cur.Low = c.Low
		}
		cur.Close = c.Close
		cur.Volume = cur.Volume.Add(c.Volume)
	}

	if hasCur {
		out = append(out, cur)
	}

	return out
}
