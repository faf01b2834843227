package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	logger "github.com/sirupsen/logrus"

	"tradingcore/src/connectors"
	"tradingcore/src/model"
)

// CandleCache sits in front of a CandleSource so bots sharing a symbol and interval
// fetch the series from the venue once per TTL.
type CandleCache struct {
	source connectors.CandleSource
	store  BytesCache
	ttl    time.Duration
}

func NewCandleCache(source connectors.CandleSource, store BytesCache, ttl time.Duration) *CandleCache {
	return &CandleCache{source: source, store: store, ttl: ttl}
}

func CandleKey(symbol, interval string, limit int) string {
	return fmt.Sprintf("candles:%s:%s:%d", symbol, interval, limit)
}

// FetchCandles serves from the store when possible. Store failures fall through to the source.
func (c *CandleCache) FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]model.Candle, error) {
	key := CandleKey(symbol, interval, limit)

	b, err := c.store.GetBytes(ctx, key)
	switch {
	case err == nil:
		var candles []model.Candle
		if uerr := json.Unmarshal(b, &candles); uerr == nil {
			return candles, nil
		}
		logger.WithField("key", key).Warn("Discarding undecodable cached candles")
	case !errors.Is(err, ErrCacheMiss):
		logger.WithError(err).WithField("key", key).Warn("Candle cache read failed")
	}

	candles, err := c.source.FetchCandles(ctx, symbol, interval, limit)
	if err != nil {
		return nil, err
	}

	if raw, merr := json.Marshal(candles); merr == nil {
		if serr := c.store.SetBytes(ctx, key, raw, c.ttl); serr != nil {
			logger.WithError(serr).WithField("key", key).Warn("Candle cache write failed")
		}
	}
	return candles, nil
}
