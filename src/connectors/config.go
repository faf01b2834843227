package connectors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	VenueName      string        `envconfig:"VENUE_NAME" default:"paper"`
	VenueBaseURL   string        `envconfig:"VENUE_BASE_URL" default:""`
	VenueAPIKey    string        `envconfig:"VENUE_API_KEY" default:""`
	VenueAPISecret string        `envconfig:"VENUE_API_SECRET" default:""`
	HTTPTimeout    time.Duration `envconfig:"VENUE_HTTP_TIMEOUT" default:"15s"`
	// resty level retries on 5xx/429/408. Left at 0 when calls already go through the resilient executor.
	HTTPRetries int `envconfig:"VENUE_HTTP_RETRIES" default:"0"`

	BinanceEndpoint string `envconfig:"BINANCE_ENDPOINT" default:"https://api.binance.com"`

	PaperBalance float64 `envconfig:"PAPER_BALANCE" default:"10000"`
	PaperQuote   string  `envconfig:"PAPER_QUOTE" default:"USDT"`
	PaperFeeRate float64 `envconfig:"PAPER_FEE_RATE" default:"0.001"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
