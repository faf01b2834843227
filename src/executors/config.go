package executors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	CooldownPeriod    time.Duration `envconfig:"BOT_COOLDOWN" default:"5m"`
	MinConfidence     float64       `envconfig:"BOT_MIN_CONFIDENCE" default:"0.7"`
	CandleLimit       int           `envconfig:"BOT_CANDLE_LIMIT" default:"200"`
	CycleTimeout      time.Duration `envconfig:"BOT_CYCLE_TIMEOUT" default:"2m"`
	StopTimeout       time.Duration `envconfig:"BOT_STOP_TIMEOUT" default:"30s"`
	ProtectiveOrders  bool          `envconfig:"BOT_PROTECTIVE_ORDERS" default:"true"`
	ReconcileInterval time.Duration `envconfig:"RECONCILE_INTERVAL" default:"5m"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

// DefaultConfig mirrors the envconfig defaults.
func DefaultConfig() Config {
	return Config{
		CooldownPeriod:    5 * time.Minute,
		MinConfidence:     0.7,
		CandleLimit:       200,
		CycleTimeout:      2 * time.Minute,
		StopTimeout:       30 * time.Second,
		ProtectiveOrders:  true,
		ReconcileInterval: 5 * time.Minute,
	}
}

var intervals = map[string]time.Duration{
	"1m":  time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"4h":  4 * time.Hour,
	"1d":  24 * time.Hour,
}

// IntervalDuration maps a timeframe label to the loop period. Unknown labels run hourly.
func IntervalDuration(label string) time.Duration {
	if d, ok := intervals[label]; ok {
		return d
	}
	return time.Hour
}
