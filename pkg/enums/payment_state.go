package enums

import "fmt"

// PaymentState tracks a transaction through the confirmation state machine.
// Transitions only move forward: NOT_STARTED -> UNKNOWN -> PENDING -> terminal.
type PaymentState string

const (
	PaymentStateNotStarted PaymentState = "NOT_STARTED"
	PaymentStateUnknown    PaymentState = "UNKNOWN"
	PaymentStatePending    PaymentState = "PENDING"
	PaymentStateSuccess    PaymentState = "SUCCESS"
	PaymentStateFailed     PaymentState = "FAILED"
	PaymentStateExpired    PaymentState = "EXPIRED"
)

var validPaymentStates = []PaymentState{
	PaymentStateNotStarted,
	PaymentStateUnknown,
	PaymentStatePending,
	PaymentStateSuccess,
	PaymentStateFailed,
	PaymentStateExpired,
}

// String implements fmt.Stringer.
func (p PaymentState) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentState.
func (p PaymentState) IsValid() bool {
	for _, candidate := range validPaymentStates {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the state admits no further transitions.
func (p PaymentState) IsTerminal() bool {
	switch p {
	case PaymentStateSuccess, PaymentStateFailed, PaymentStateExpired:
		return true
	}
	return false
}

// ParsePaymentState converts raw input into a PaymentState.
func ParsePaymentState(value string) (PaymentState, error) {
	for _, candidate := range validPaymentStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment state %q", value)
}
