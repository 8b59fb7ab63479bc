package payment

import (
	"errors"
	"time"
)

var (
	ErrVerificationFailed = errors.New("payment: verification failed")
	ErrNoSecret           = errors.New("payment: no shared secret configured")
	ErrNotPayable         = errors.New("payment: order is not awaiting payment")
)

// Verifier checks a proof code bound to one order against the current time step.
type Verifier interface {
	Verify(orderID, code string, at time.Time) (bool, error)
}

// FailureReason classifies an unsuccessful verification for the caller.
type FailureReason string

const (
	ReasonInvalidCode       FailureReason = "invalid_code"
	ReasonNotPayable        FailureReason = "not_payable"
	ReasonInsufficientStock FailureReason = "insufficient_stock"
)
