package strategy

import (
	"context"
	"errors"

	"github.com/betbot/deltamm/internal/domain"
)

// ErrorClass drives how the loop reacts to a cycle error.
type ErrorClass int

const (
	ClassNone ErrorClass = iota
	// ClassStopped is user termination: exit cleanly, no further order mutation.
	ClassStopped
	// ClassNoPrice means no action this cycle for the affected group.
	ClassNoPrice
	// ClassRetryable is a collaborator failure expected to clear; it counts toward the circuit breaker.
	ClassRetryable
	// ClassFatal is everything unrecognised. The loop terminates.
	ClassFatal
)

func (c ErrorClass) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassStopped:
		return "stopped"
	case ClassNoPrice:
		return "no_price"
	case ClassRetryable:
		return "retryable"
	default:
		return "fatal"
	}
}

// Classify maps an error chain onto an ErrorClass. Unknown errors are fatal.
func Classify(err error) ErrorClass {
	switch {
	case err == nil:
		return ClassNone
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ClassStopped
	case errors.Is(err, domain.ErrNoPrice), errors.Is(err, domain.ErrNoQuote):
		return ClassNoPrice
	case domain.IsTransient(err):
		return ClassRetryable
	default:
		return ClassFatal
	}
}
