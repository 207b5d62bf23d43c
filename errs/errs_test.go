package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassOfUnwrapsThroughFmt(t *testing.T) {
	base := New(Transient, "store.Exec", "deadlock detected")
	wrapped := fmt.Errorf("retry loop: %w", base)

	if got := ClassOf(wrapped); got != Transient {
		t.Errorf("ClassOf(wrapped) = %v, want %v", got, Transient)
	}
	if !IsTransient(wrapped) {
		t.Error("IsTransient(wrapped) = false, want true")
	}
}

func TestClassOfDefaultsToInternal(t *testing.T) {
	if got := ClassOf(errors.New("plain")); got != Internal {
		t.Errorf("ClassOf(plain) = %v, want %v", got, Internal)
	}
	if got := ClassOf(nil); got != Internal {
		t.Errorf("ClassOf(nil) = %v, want %v", got, Internal)
	}
}

func TestWrapNilCauseIsNil(t *testing.T) {
	if err := Wrap(Internal, "op", nil); err != nil {
		t.Errorf("Wrap(_, _, nil) = %v, want nil", err)
	}
	if err := Wrapf(Internal, "op", nil, "detail %d", 1); err != nil {
		t.Errorf("Wrapf(_, _, nil, ...) = %v, want nil", err)
	}
}

func TestErrorMessageIncludesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(Transient, "store.Connect", cause)

	want := "store.Connect: connection refused: connection refused"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, cause) && errors.Unwrap(err) != cause {
		t.Error("Unwrap() did not return the original cause")
	}
}

func TestClassString(t *testing.T) {
	cases := map[Class]string{
		Internal:         "Internal",
		InvalidInput:     "InvalidInput",
		NotFound:         "NotFound",
		Conflict:         "Conflict",
		Transient:        "Transient",
		PermissionDenied: "PermissionDenied",
		Corruption:       "Corruption",
	}
	for class, want := range cases {
		if got := class.String(); got != want {
			t.Errorf("Class(%d).String() = %q, want %q", class, got, want)
		}
	}
}
