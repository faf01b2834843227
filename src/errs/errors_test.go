package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifiers(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		invalid   bool
		transient bool
		circuit   bool
		risk      bool
	}{
		{name: "invalid order wrapped", err: fmt.Errorf("place: %w", &InvalidOrderError{Venue: "v", Reason: "qty"}), invalid: true},
		{name: "transient", err: &TransientVenueError{Venue: "v", Op: "ticker", Err: errors.New("timeout")}, transient: true},
		{name: "circuit open", err: fmt.Errorf("exec: %w", &CircuitOpenError{Venue: "v"}), circuit: true},
		{name: "risk", err: &RiskValidationError{Reason: "too big"}, risk: true},
		{name: "plain", err: errors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsInvalidOrder(tt.err); got != tt.invalid {
				t.Fatalf("IsInvalidOrder = %v, want %v", got, tt.invalid)
			}
			if got := IsTransient(tt.err); got != tt.transient {
				t.Fatalf("IsTransient = %v, want %v", got, tt.transient)
			}
			if got := IsCircuitOpen(tt.err); got != tt.circuit {
				t.Fatalf("IsCircuitOpen = %v, want %v", got, tt.circuit)
			}
			if got := IsRiskValidation(tt.err); got != tt.risk {
				t.Fatalf("IsRiskValidation = %v, want %v", got, tt.risk)
			}
		})
	}
}

func TestReconciliationErrorUnwraps(t *testing.T) {
	inner := errors.New("db down")
	err := &ReconciliationError{TradeID: 7, Err: inner}
	if !errors.Is(err, inner) {
		t.Fatalf("expected reconciliation error to unwrap to inner error")
	}
	if err.Error() != "reconcile trade 7: db down" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
