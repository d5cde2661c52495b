package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Is(t *testing.T) {
	wrapped := WrapError(ErrNoData, fmt.Errorf("file missing"))
	if !errors.Is(wrapped, ErrNoData) {
		t.Error("wrapped error should match its sentinel by code")
	}
	if errors.Is(wrapped, ErrNoTrades) {
		t.Error("wrapped error must not match a different code")
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	wrapped := WrapError(ErrArchiveFailed, cause)
	if !errors.Is(wrapped, cause) {
		t.Error("errors.Is should reach the cause through Unwrap")
	}
}

func TestError_Format(t *testing.T) {
	err := WrapError(ErrNoData, fmt.Errorf("boom"))
	want := "[NO_DATA] no market data available: boom"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestValidationError_CollectsViolations(t *testing.T) {
	verr := &ValidationError{}
	if verr.Err() != nil {
		t.Error("empty validation error should yield nil")
	}

	verr.Addf("field a bad: %d", 1)
	verr.Addf("field b bad: %s", "x")

	err := verr.Err()
	if err == nil {
		t.Fatal("expected error after violations recorded")
	}
	if len(verr.Violations) != 2 {
		t.Errorf("violations = %d, want 2", len(verr.Violations))
	}
	if !errors.Is(err, ErrConfigInvalid) {
		t.Error("validation error should match ErrConfigInvalid")
	}
}
