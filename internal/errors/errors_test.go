// Package errors tests for error code handling.
package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

// TestNew verifies error creation with code and message.
func TestNew(t *testing.T) {
	err := New(ErrStorageFull, "queue cap exceeded")

	if err.Code != ErrStorageFull {
		t.Errorf("Code = %v, want ErrStorageFull", err.Code)
	}

	want := "[STORAGE_FULL] queue cap exceeded"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

// TestWrap verifies wrapping preserves the underlying error.
func TestWrap(t *testing.T) {
	inner := stderrors.New("connection refused")
	err := Wrap(ErrTransientDelivery, "delivery failed", inner)

	if !stderrors.Is(err, inner) {
		t.Error("wrapped error should match inner via errors.Is")
	}

	if err.Unwrap() != inner {
		t.Error("Unwrap() should return inner error")
	}
}

// TestIs verifies code matching through wrapping layers.
func TestIs(t *testing.T) {
	err := New(ErrDeliveryConflict, "precondition failed")

	if !Is(err, ErrDeliveryConflict) {
		t.Error("Is() should match the error code")
	}

	if Is(err, ErrStorageFull) {
		t.Error("Is() should not match a different code")
	}

	// Wrapped with fmt.Errorf, code should still be found
	wrapped := fmt.Errorf("drain: %w", err)
	if !Is(wrapped, ErrDeliveryConflict) {
		t.Error("Is() should match through fmt.Errorf wrapping")
	}

	if Is(nil, ErrDeliveryConflict) {
		t.Error("Is(nil) should be false")
	}
}

// TestIsTransient verifies the transient classification.
func TestIsTransient(t *testing.T) {
	cases := []struct {
		code ErrorCode
		want bool
	}{
		{ErrTransientDelivery, true},
		{ErrDeliveryTimeout, true},
		{ErrNetworkFailure, true},
		{ErrPermanentRejection, false},
		{ErrDeliveryConflict, false},
	}

	for _, tc := range cases {
		err := New(tc.code, "x")
		if got := IsTransient(err); got != tc.want {
			t.Errorf("IsTransient(%s) = %v, want %v", tc.code, got, tc.want)
		}
	}
}

// TestIsPermanent verifies the permanent classification.
func TestIsPermanent(t *testing.T) {
	if !IsPermanent(New(ErrPermanentRejection, "422")) {
		t.Error("PERMANENT_REJECTION should be permanent")
	}
	if IsPermanent(New(ErrTransientDelivery, "503")) {
		t.Error("TRANSIENT_DELIVERY should not be permanent")
	}
}

// TestCodeOf verifies code extraction defaults.
func TestCodeOf(t *testing.T) {
	if CodeOf(stderrors.New("plain")) != ErrInternal {
		t.Error("plain errors should map to ErrInternal")
	}
	if CodeOf(New(ErrNotFound, "x")) != ErrNotFound {
		t.Error("CodeOf should return the carried code")
	}
}
