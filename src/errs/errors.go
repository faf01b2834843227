package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientData is returned when a candle history is shorter than the strategy lookback.
	// The signal engine recovers from it locally and emits a hold signal.
	ErrInsufficientData = errors.New("insufficient candle data")

	// ErrCircuitOpen is returned when a venue breaker rejects a call without invoking it.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	ErrBotAlreadyRunning = errors.New("bot is already running")
	ErrBotNotRunning     = errors.New("bot is not running")
	ErrTradeNotFound     = errors.New("trade not found")
)

// RiskValidationError means sizing or the market sanity gate rejected the order.
type RiskValidationError struct {
	Reason string
}

func (e *RiskValidationError) Error() string {
	return "risk validation failed: " + e.Reason
}

// TransientVenueError wraps network or timeout failures that are safe to retry.
type TransientVenueError struct {
	Venue string
	Op    string
	Err   error
}

func (e *TransientVenueError) Error() string {
	return fmt.Sprintf("transient venue error (%s %s): %v", e.Venue, e.Op, e.Err)
}

func (e *TransientVenueError) Unwrap() error { return e.Err }

// InvalidOrderError is a venue rejection of the order semantics. Never retried.
type InvalidOrderError struct {
	Venue  string
	Code   string
	Reason string
}

func (e *InvalidOrderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("invalid order on %s (code %s): %s", e.Venue, e.Code, e.Reason)
	}
	return fmt.Sprintf("invalid order on %s: %s", e.Venue, e.Reason)
}

// CircuitOpenError carries the venue and the moment the breaker allows a probe again.
type CircuitOpenError struct {
	Venue       string
	NextAttempt string
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("venue %s unavailable until %s: %v", e.Venue, e.NextAttempt, ErrCircuitOpen)
}

func (e *CircuitOpenError) Unwrap() error { return ErrCircuitOpen }

// ReconciliationError is logged per trade and never aborts a reconcile pass.
type ReconciliationError struct {
	TradeID uint
	Err     error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("reconcile trade %d: %v", e.TradeID, e.Err)
}

func (e *ReconciliationError) Unwrap() error { return e.Err }

func IsInvalidOrder(err error) bool {
	var target *InvalidOrderError
	return errors.As(err, &target)
}

func IsTransient(err error) bool {
	var target *TransientVenueError
	return errors.As(err, &target)
}

func IsRiskValidation(err error) bool {
	var target *RiskValidationError
	return errors.As(err, &target)
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen)
}
