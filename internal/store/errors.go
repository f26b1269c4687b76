package store

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrValidation           = errors.New("validation error")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrInconsistentReversal = errors.New("inconsistent reversal")
	ErrConflict             = errors.New("conflict")
	ErrForbidden            = errors.New("forbidden")
)

type Kind string

const (
	KindNotFound             Kind = "not_found"
	KindValidation           Kind = "validation_error"
	KindInsufficientStock    Kind = "insufficient_stock"
	KindInconsistentReversal Kind = "inconsistent_reversal"
	KindConflict             Kind = "conflict"
	KindForbidden            Kind = "forbidden"
	KindServer               Kind = "server_error"
)

func NotFound(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}

func Invalid(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrValidation)
}

func Inconsistent(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInconsistentReversal)
}

// KindOf classifies err into one of the tagged error kinds. Anything not
// recognised is a server error.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrInsufficientStock):
		return KindInsufficientStock
	case errors.Is(err, ErrInconsistentReversal):
		return KindInconsistentReversal
	case errors.Is(err, ErrConflict), errors.Is(err, context.DeadlineExceeded):
		return KindConflict
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	default:
		return KindServer
	}
}

// Retryable reports whether the caller may retry the same request.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindConflict, KindServer:
		return true
	}
	return false
}
