package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net"
	"strings"
	"syscall"
	"time"

	logger "github.com/sirupsen/logrus"

	"tradingcore/src/errs"
)

// RetryPolicy controls Retry. MaxRetries counts retries, so a call is attempted at most MaxRetries+1 times.
type RetryPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Retryable    func(error) bool

	// test hooks
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() float64
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   3,
		InitialDelay: time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2,
		Retryable:    IsRetryable,
	}
}

// Delay returns the backoff before retry number attempt (0 based) without jitter.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(p.InitialDelay) * math.Pow(mult, float64(attempt))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	return time.Duration(d)
}

func (p RetryPolicy) withJitter(d time.Duration) time.Duration {
	j := p.jitter
	if j == nil {
		j = rand.Float64
	}
	return d + time.Duration(float64(d)*0.1*j())
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Retry runs op until it succeeds, returns a non-retryable error, or MaxRetries is exhausted.
// The last error is returned wrapped.
func Retry[T any](ctx context.Context, p RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsRetryable
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error
	var prevDelay time.Duration
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		res, err := op(ctx)
		if err == nil {
			return res, nil
		}
		lastErr = err

		if !retryable(err) {
			return zero, err
		}
		if attempt == p.MaxRetries {
			break
		}

		// once Delay is capped the jitter alone could make a delay shorter than the last one
		delay := p.withJitter(p.Delay(attempt))
		if delay < prevDelay {
			delay = prevDelay
		}
		prevDelay = delay
		logger.WithFields(map[string]interface{}{
			"attempt": attempt + 1,
			"max":     p.MaxRetries + 1,
			"delay":   delay.String(),
		}).WithError(err).Warn("retrying after transient failure")

		if serr := sleep(ctx, delay); serr != nil {
			return zero, fmt.Errorf("retry aborted: %w", errors.Join(serr, lastErr))
		}
	}

	return zero, fmt.Errorf("retries exhausted after %d attempts: %w", p.MaxRetries+1, lastErr)
}

// IsRetryable treats transient venue errors, timeouts and refused connections as retryable.
// Invalid orders, risk rejections and an open circuit never are.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errs.IsInvalidOrder(err) || errs.IsRiskValidation(err) || errs.IsCircuitOpen(err) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errs.IsTransient(err) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"timeout", "econnrefused", "etimedout", "connection refused", "connection reset"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
