package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeOf(t *testing.T) {
	err := NewError(CodeTaken, "taken")
	wrapped := fmt.Errorf("register: %w", err)

	code, ok := CodeOf(wrapped)
	if !ok || code != CodeTaken {
		t.Fatalf("CodeOf(wrapped) = (%s, %v), want (TAKEN, true)", code, ok)
	}

	if _, ok := CodeOf(errors.New("plain")); ok {
		t.Fatalf("plain errors must not carry a policy code")
	}
}

func TestErrorString(t *testing.T) {
	if got := NewError(CodeLocked, "locked out").Error(); got != "LOCKD: locked out" {
		t.Fatalf("unexpected error string %q", got)
	}
	if got := NewError(CodeLocked, "").Error(); got != "LOCKD" {
		t.Fatalf("unexpected error string %q", got)
	}
}
