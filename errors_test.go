package tally_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/xraph/tally"
)

func TestClassifiers(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		notFound     bool
		insufficient bool
		retryable    bool
	}{
		{"owner not found", tally.ErrOwnerNotFound, true, false, false},
		{"wrapped asset not found", fmt.Errorf("get: %w", tally.ErrAssetNotFound), true, false, false},
		{"system missing", tally.ErrSystemNotInitialized, true, false, false},
		{"insufficient", tally.ErrInsufficientFunds, false, true, false},
		{"store", fmt.Errorf("%w: boom", tally.ErrStore), false, false, true},
		{"conflict", tally.ErrConflict, false, false, true},
		{"lock timeout", tally.ErrLockTimeout, false, false, true},
		{"invalid state", tally.ErrNotAssetOwner, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tally.IsNotFound(tt.err); got != tt.notFound {
				t.Errorf("IsNotFound = %v, want %v", got, tt.notFound)
			}
			if got := tally.IsInsufficientFunds(tt.err); got != tt.insufficient {
				t.Errorf("IsInsufficientFunds = %v, want %v", got, tt.insufficient)
			}
			if got := tally.IsRetryable(tt.err); got != tt.retryable {
				t.Errorf("IsRetryable = %v, want %v", got, tt.retryable)
			}
		})
	}
}

func TestSubSentinelsMatchParents(t *testing.T) {
	if !errors.Is(tally.ErrRoleMismatch, tally.ErrInvalidState) {
		t.Error("ErrRoleMismatch should match ErrInvalidState")
	}
	if !errors.Is(tally.ErrNotAssetOwner, tally.ErrInvalidState) {
		t.Error("ErrNotAssetOwner should match ErrInvalidState")
	}
	if errors.Is(tally.ErrOwnerNotFound, tally.ErrAssetNotFound) {
		t.Error("distinct not-found sentinels must not match each other")
	}
}

func TestValidationErrorIsInvalidInput(t *testing.T) {
	err := error(tally.ValidationError{Field: "amount", Message: "must be positive"})
	if !errors.Is(err, tally.ErrInvalidInput) {
		t.Error("ValidationError should match ErrInvalidInput")
	}
	if err.Error() != "tally: validation failed for amount: must be positive" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestMultiError(t *testing.T) {
	var me tally.MultiError
	if me.ErrOrNil() != nil {
		t.Fatal("empty MultiError should be nil")
	}
	me.Add(nil)
	me.Add(tally.ErrInsufficientFunds)
	me.Add(tally.ErrOwnerNotFound)

	err := me.ErrOrNil()
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, tally.ErrInsufficientFunds) || !errors.Is(err, tally.ErrNotFound) {
		t.Error("MultiError should unwrap to its members")
	}
	if me.First() != tally.ErrInsufficientFunds {
		t.Errorf("First = %v", me.First())
	}
	if err.Error() != "tally: 2 errors occurred" {
		t.Errorf("unexpected message %q", err.Error())
	}
}
