package executor

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"tradingcore/src/cache"
	"tradingcore/src/connectors"
	"tradingcore/src/executors"
	"tradingcore/src/resilience"
	"tradingcore/src/server"
)

type Config struct {
	ServiceName     string        `envconfig:"SERVICE_NAME" default:"tradingcore"`
	RestoreBots     bool          `envconfig:"RESTORE_ACTIVE_BOTS" default:"true"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"45s"`
	NoTradeWindow   bool          `envconfig:"NO_TRADE_WINDOW" default:"false"`
}

func GetConfig() *Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return &config
}

// Settings gathers the env config of every component the process wires.
type Settings struct {
	Process    Config
	Bots       executors.Config
	Venue      connectors.Config
	Resilience resilience.Config
	Cache      cache.Config
	Port       string
}

func LoadSettings() Settings {
	return Settings{
		Process:    *GetConfig(),
		Bots:       executors.GetConfig(),
		Venue:      connectors.GetConfig(),
		Resilience: resilience.GetConfig(),
		Cache:      cache.GetConfig(),
		Port:       server.GetConfig().Port,
	}
}
