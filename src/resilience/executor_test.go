package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tradingcore/src/errs"
)

type recordingObserver struct {
	transitions []State
	calls       int
}

func (o *recordingObserver) BreakerStateChanged(_ string, _, to State) {
	o.transitions = append(o.transitions, to)
}

func (o *recordingObserver) VenueCallObserved(string, time.Duration, error) {
	o.calls++
}

func TestExecuteBreakerWrapsRetry(t *testing.T) {
	rec := &sleepRecorder{}
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	obs := &recordingObserver{}
	reg := NewRegistry(testPolicy(rec), DefaultBreakerSettings(), WithClock(clock.Now), WithObserver(obs))

	attempts := 0
	op := func(context.Context) (int, error) {
		attempts++
		return 0, &errs.TransientVenueError{Venue: "paper", Op: "ticker", Err: errors.New("timeout")}
	}

	for i := 0; i < 5; i++ {
		_, err := Execute(context.Background(), reg, "paper", op)
		require.Error(t, err)
	}

	require.Equal(t, 20, attempts, "each execute retries 4 times")
	require.Equal(t, StateOpen, reg.Breaker("paper").State(), "5 exhausted sequences open the breaker")
	require.Equal(t, []State{StateOpen}, obs.transitions)
	require.Equal(t, 5, obs.calls)

	_, err := Execute(context.Background(), reg, "paper", op)
	require.True(t, errs.IsCircuitOpen(err))
	require.Equal(t, 20, attempts)
}

func TestRegistrySharesBreakerPerVenue(t *testing.T) {
	reg := NewRegistry(DefaultRetryPolicy(), DefaultBreakerSettings())

	a := reg.Breaker("binance")
	b := reg.Breaker("binance")
	c := reg.Breaker("kraken")

	require.Same(t, a, b)
	require.NotSame(t, a, c)

	snaps := reg.Snapshots()
	require.Len(t, snaps, 2)
	require.Equal(t, "binance", snaps[0].Venue)
	require.Equal(t, StateClosed, snaps[1].State)
}

func TestDoInvalidOrderNotRetried(t *testing.T) {
	rec := &sleepRecorder{}
	reg := NewRegistry(testPolicy(rec), DefaultBreakerSettings())

	calls := 0
	err := Do(context.Background(), reg, "paper", func(context.Context) error {
		calls++
		return &errs.InvalidOrderError{Venue: "paper", Reason: "min notional"}
	})

	require.True(t, errs.IsInvalidOrder(err))
	require.Equal(t, 1, calls)
	require.Equal(t, 1, reg.Breaker("paper").Snapshot().FailureCount)
}
