package resilience

import (
	"context"
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"

	"tradingcore/src/errs"
)

type State string

const (
	StateClosed   State = "CLOSED"
	StateOpen     State = "OPEN"
	StateHalfOpen State = "HALF_OPEN"
)

type BreakerSettings struct {
	FailureThreshold int
	SuccessThreshold int
	Timeout          time.Duration
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{FailureThreshold: 5, SuccessThreshold: 2, Timeout: 60 * time.Second}
}

// Snapshot is a copy of the breaker state for reporting.
type Snapshot struct {
	Venue           string    `json:"venue"`
	State           State     `json:"state"`
	FailureCount    int       `json:"failure_count"`
	SuccessCount    int       `json:"success_count"`
	NextAttemptTime time.Time `json:"next_attempt_time"`
}

// CircuitBreaker guards one venue. All state lives behind mu so concurrent bots
// trading the same venue see one consistent failure count.
type CircuitBreaker struct {
	venue    string
	settings BreakerSettings
	now      func() time.Time
	onChange func(venue string, from, to State)

	mu           sync.Mutex
	state        State
	failureCount int
	successCount int
	nextAttempt  time.Time
}

func NewCircuitBreaker(venue string, settings BreakerSettings) *CircuitBreaker {
	return &CircuitBreaker{
		venue:    venue,
		settings: settings,
		now:      time.Now,
		state:    StateClosed,
	}
}

func (b *CircuitBreaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		Venue:           b.venue,
		State:           b.state,
		FailureCount:    b.failureCount,
		SuccessCount:    b.successCount,
		NextAttemptTime: b.nextAttempt,
	}
}

func (b *CircuitBreaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// allow decides whether a call may proceed, moving OPEN to HALF_OPEN once the timeout elapsed.
func (b *CircuitBreaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateOpen {
		return nil
	}
	if b.now().Before(b.nextAttempt) {
		return &errs.CircuitOpenError{Venue: b.venue, NextAttempt: b.nextAttempt.Format(time.RFC3339)}
	}
	b.transition(StateHalfOpen)
	b.successCount = 0
	return nil
}

func (b *CircuitBreaker) onSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount = 0
	if b.state == StateHalfOpen {
		b.successCount++
		if b.successCount >= b.settings.SuccessThreshold {
			b.successCount = 0
			b.transition(StateClosed)
		}
	}
}

func (b *CircuitBreaker) onFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount++
	switch {
	case b.state == StateHalfOpen:
		b.successCount = 0
		b.trip()
	case b.failureCount >= b.settings.FailureThreshold:
		b.trip()
	}
}

func (b *CircuitBreaker) trip() {
	b.nextAttempt = b.now().Add(b.settings.Timeout)
	b.transition(StateOpen)
}

func (b *CircuitBreaker) transition(to State) {
	from := b.state
	b.state = to
	if from == to {
		return
	}
	logger.WithFields(map[string]interface{}{
		"venue":    b.venue,
		"from":     from,
		"to":       to,
		"failures": b.failureCount,
	}).Warn("circuit breaker state change")
	if b.onChange != nil {
		b.onChange(b.venue, from, to)
	}
}

// Call runs op through the breaker. While OPEN and before the next attempt time,
// op is not invoked and a CircuitOpenError is returned.
func Call[T any](ctx context.Context, b *CircuitBreaker, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := b.allow(); err != nil {
		return zero, err
	}

	res, err := op(ctx)
	if err != nil {
		b.onFailure()
		return zero, err
	}
	b.onSuccess()
	return res, nil
}
