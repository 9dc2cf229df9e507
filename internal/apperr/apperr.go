// Package apperr defines the error categories shared across the practice flow.
// Callers wrap a category with context and match it with errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks missing or empty required input.
	ErrValidation = errors.New("validation failed")
	// ErrPermission marks local device access denied by the user or OS.
	ErrPermission = errors.New("permission denied")
	// ErrDevice marks a local capture device that is missing or failed to open.
	ErrDevice = errors.New("device unavailable")
	// ErrUnsupported marks a capability the platform does not provide.
	ErrUnsupported = errors.New("unsupported")
	// ErrService marks any failure of the feedback backend.
	ErrService = errors.New("feedback service failed")
	// ErrNoMatch marks a filter combination with zero candidate questions.
	ErrNoMatch = errors.New("no matching question")
	// ErrBusy marks an operation rejected because an exclusive one is in progress.
	ErrBusy = errors.New("operation already in progress")
	// ErrCorrupt marks persisted local state that cannot be decoded.
	ErrCorrupt = errors.New("corrupted local state")
)

var categories = []error{
	ErrValidation,
	ErrPermission,
	ErrDevice,
	ErrUnsupported,
	ErrService,
	ErrNoMatch,
	ErrBusy,
	ErrCorrupt,
}

// Validation returns an ErrValidation with a caller-facing message.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Service wraps a backend failure as ErrService, keeping the cause in the chain.
func Service(op string, err error) error {
	if err == nil {
		return fmt.Errorf("%w: %s", ErrService, op)
	}
	return fmt.Errorf("%w: %s: %w", ErrService, op, err)
}

// Category returns the first known category in err's chain, or nil.
func Category(err error) error {
	for _, c := range categories {
		if errors.Is(err, c) {
			return c
		}
	}
	return nil
}
