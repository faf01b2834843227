package resilience

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	MaxRetries        int           `envconfig:"RETRY_MAX_RETRIES" default:"3"`
	InitialDelay      time.Duration `envconfig:"RETRY_INITIAL_DELAY" default:"1s"`
	MaxDelay          time.Duration `envconfig:"RETRY_MAX_DELAY" default:"10s"`
	BackoffMultiplier float64       `envconfig:"RETRY_BACKOFF_MULTIPLIER" default:"2"`
	FailureThreshold  int           `envconfig:"BREAKER_FAILURE_THRESHOLD" default:"5"`
	SuccessThreshold  int           `envconfig:"BREAKER_SUCCESS_THRESHOLD" default:"2"`
	BreakerTimeout    time.Duration `envconfig:"BREAKER_TIMEOUT" default:"60s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

func (c Config) RetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   c.MaxRetries,
		InitialDelay: c.InitialDelay,
		MaxDelay:     c.MaxDelay,
		Multiplier:   c.BackoffMultiplier,
		Retryable:    IsRetryable,
	}
}

func (c Config) BreakerSettings() BreakerSettings {
	return BreakerSettings{
		FailureThreshold: c.FailureThreshold,
		SuccessThreshold: c.SuccessThreshold,
		Timeout:          c.BreakerTimeout,
	}
}
