package domain

import "errors"

var (
	// ErrNoPrice 无法得到可用价格（盘口单边为空等）
	ErrNoPrice = errors.New("no price available")
	// ErrNoQuote means the quote policy produced a crossed or empty pair.
	ErrNoQuote = errors.New("no valid quote")
	// ErrOrderNotFound is returned when cancelling an order that is already filled or cancelled.
	ErrOrderNotFound = errors.New("order not found")
	// ErrTransient marks collaborator failures that may succeed on retry.
	ErrTransient = errors.New("transient exchange error")
	// ErrUnknownInstrument 未知标的
	ErrUnknownInstrument = errors.New("unknown instrument")
)

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }
func (e *transientError) Is(target error) bool {
	return target == ErrTransient
}

// Transient marks err as retryable while keeping it unwrappable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err carries the ErrTransient marker.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}
