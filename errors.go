package tally

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound             = errors.New("tally: not found")
	ErrAlreadyExists        = errors.New("tally: already exists")
	ErrInvalidInput         = errors.New("tally: invalid input")
	ErrForbidden            = errors.New("tally: forbidden")
	ErrConflict             = errors.New("tally: conflict")
	ErrUnsupportedOperation = errors.New("tally: unsupported operation")

	// Lookup errors
	ErrOwnerNotFound        = fmt.Errorf("%w: owner", ErrNotFound)
	ErrAssetNotFound        = fmt.Errorf("%w: asset", ErrNotFound)
	ErrValueNotFound        = fmt.Errorf("%w: value", ErrNotFound)
	ErrActivityNotFound     = fmt.Errorf("%w: activity", ErrNotFound)
	ErrSystemNotInitialized = fmt.Errorf("%w: system owner not initialized", ErrNotFound)

	// Ledger errors
	ErrInsufficientFunds = errors.New("tally: insufficient funds")
	ErrInvalidState      = errors.New("tally: invalid state")
	ErrNotAssetOwner     = fmt.Errorf("%w: asset not owned by transferor", ErrInvalidState)
	ErrRoleMismatch      = fmt.Errorf("%w: owner role mismatch", ErrInvalidState)

	// Store errors
	ErrStore         = errors.New("tally: store failure")
	ErrStoreNotReady = errors.New("tally: store not ready")
	ErrStoreClosed   = errors.New("tally: store is closed")
	ErrLockTimeout   = errors.New("tally: lock acquisition timed out")
)

// storeErr wraps a backend failure so callers can match ErrStore while
// keeping the original cause. Domain sentinels pass through unchanged.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if isDomainErr(err) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}

func isDomainErr(err error) bool {
	for _, target := range []error{
		ErrNotFound, ErrAlreadyExists, ErrInvalidInput, ErrForbidden, ErrConflict,
		ErrUnsupportedOperation, ErrInsufficientFunds, ErrInvalidState, ErrStore,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("tally: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrInvalidInput.
func (e ValidationError) Unwrap() error { return ErrInvalidInput }

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "tally: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("tally: %d errors occurred", len(e.Errors))
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e MultiError) Unwrap() []error { return e.Errors }

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// First returns the first error or nil.
func (e MultiError) First() error {
	if len(e.Errors) > 0 {
		return e.Errors[0]
	}
	return nil
}

// ErrOrNil returns e when it holds errors, nil otherwise.
func (e MultiError) ErrOrNil() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInsufficientFunds returns true if a pool or owner could not cover a transfer.
func IsInsufficientFunds(err error) bool {
	return errors.Is(err, ErrInsufficientFunds)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStore) ||
		errors.Is(err, ErrStoreNotReady) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrLockTimeout)
}
