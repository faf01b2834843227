package resilience

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Observer receives breaker transitions and venue call outcomes, typically for metrics.
type Observer interface {
	BreakerStateChanged(venue string, from, to State)
	VenueCallObserved(venue string, elapsed time.Duration, err error)
}

// Registry owns one CircuitBreaker per venue and composes it with the retry policy.
// It is created once per process and shared by every bot.
type Registry struct {
	policy   RetryPolicy
	settings BreakerSettings
	observer Observer
	now      func() time.Time

	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
}

type Option func(*Registry)

func WithObserver(o Observer) Option {
	return func(r *Registry) { r.observer = o }
}

// WithClock replaces time.Now for every breaker created by the registry.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func NewRegistry(policy RetryPolicy, settings BreakerSettings, opts ...Option) *Registry {
	r := &Registry{
		policy:   policy,
		settings: settings,
		now:      time.Now,
		breakers: make(map[string]*CircuitBreaker),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Breaker returns the breaker for venue, creating it on first use.
func (r *Registry) Breaker(venue string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.breakers[venue]
	if !ok {
		b = NewCircuitBreaker(venue, r.settings)
		b.now = r.now
		if r.observer != nil {
			b.onChange = r.observer.BreakerStateChanged
		}
		r.breakers[venue] = b
	}
	return b
}

// Snapshots lists all breakers sorted by venue.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.Lock()
	list := make([]*CircuitBreaker, 0, len(r.breakers))
	for _, b := range r.breakers {
		list = append(list, b)
	}
	r.mu.Unlock()

	out := make([]Snapshot, 0, len(list))
	for _, b := range list {
		out = append(out, b.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Venue < out[j].Venue })
	return out
}

// Execute runs op against venue: the breaker wraps the retrying call, so an exhausted
// retry sequence counts as a single breaker failure.
func Execute[T any](ctx context.Context, r *Registry, venue string, op func(ctx context.Context) (T, error)) (T, error) {
	b := r.Breaker(venue)
	start := time.Now()

	res, err := Call(ctx, b, func(ctx context.Context) (T, error) {
		return Retry(ctx, r.policy, op)
	})

	if r.observer != nil {
		r.observer.VenueCallObserved(venue, time.Since(start), err)
	}
	return res, err
}

// Do is Execute for operations without a result.
func Do(ctx context.Context, r *Registry, venue string, op func(ctx context.Context) error) error {
	_, err := Execute(ctx, r, venue, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}
