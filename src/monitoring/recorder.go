package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"tradingcore/src/resilience"
)

// Recorder exposes trading metrics through Prometheus. It also observes the resilient executor.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	cycles             *prometheus.CounterVec
	trades             *prometheus.CounterVec
	signals            *prometheus.CounterVec
	breakerState       *prometheus.GaugeVec
	breakerTransitions *prometheus.CounterVec
	venueLatency       *prometheus.HistogramVec
	alerts             *prometheus.CounterVec
	reconciled         *prometheus.CounterVec
}

var _ resilience.Observer = (*Recorder)(nil)

// New registers the metrics on reg. Pass prometheus.DefaultRegisterer to serve them from /metrics.
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		cycles: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradingcore_bot_cycles_total",
				Help: "Trading cycles run per bot by outcome",
			},
			[]string{"bot", "outcome"},
		),
		trades: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradingcore_trades_total",
				Help: "Orders recorded in the ledger",
			},
			[]string{"venue", "side", "status"},
		),
		signals: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradingcore_signals_total",
				Help: "Signals produced per strategy and action",
			},
			[]string{"strategy", "action"},
		),
		breakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tradingcore_circuit_breaker_state",
				Help: "Circuit breaker state per venue: 0 closed, 1 half open, 2 open",
			},
			[]string{"venue"},
		),
		breakerTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradingcore_circuit_breaker_transitions_total",
				Help: "Circuit breaker transitions per venue and target state",
			},
			[]string{"venue", "to"},
		),
		venueLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tradingcore_venue_call_duration_seconds",
				Help:    "Duration of resilient venue calls including retries",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"venue", "outcome"},
		),
		alerts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradingcore_alerts_total",
				Help: "Alerts raised by level",
			},
			[]string{"level"},
		),
		reconciled: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradingcore_reconciled_trades_total",
				Help: "Trades updated by reconciliation",
			},
			[]string{"venue"},
		),
	}
}

func (r *Recorder) RecordCycle(bot, outcome string) {
	if r == nil {
		return
	}
	r.cycles.WithLabelValues(bot, outcome).Inc()
}

func (r *Recorder) RecordTrade(venue, side, status string) {
	if r == nil {
		return
	}
	r.trades.WithLabelValues(venue, side, status).Inc()
}

func (r *Recorder) RecordSignal(strategy, action string) {
	if r == nil {
		return
	}
	r.signals.WithLabelValues(strategy, action).Inc()
}

func (r *Recorder) RecordAlert(level string) {
	if r == nil {
		return
	}
	r.alerts.WithLabelValues(level).Inc()
}

func (r *Recorder) RecordReconciled(venue string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.reconciled.WithLabelValues(venue).Add(float64(n))
}

func (r *Recorder) BreakerStateChanged(venue string, _, to resilience.State) {
	if r == nil {
		return
	}
	r.breakerState.WithLabelValues(venue).Set(stateValue(to))
	r.breakerTransitions.WithLabelValues(venue, string(to)).Inc()
}

func (r *Recorder) VenueCallObserved(venue string, elapsed time.Duration, err error) {
	if r == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.venueLatency.WithLabelValues(venue, outcome).Observe(elapsed.Seconds())
}

func stateValue(s resilience.State) float64 {
	switch s {
	case resilience.StateHalfOpen:
		return 1
	case resilience.StateOpen:
		return 2
	}
	return 0
}
