package errs

import (
	"errors"
	"testing"
)

func TestInvalid(t *testing.T) {
	err := Invalid("image exceeds %d bytes", 10)
	if err.Error() != "image exceeds 10 bytes" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatal("expected ErrInvalidInput")
	}
	if !errors.Is(Wrap("create issue", err), ErrInvalidInput) {
		t.Fatal("wrapping must keep ErrInvalidInput")
	}
}

func TestWrap(t *testing.T) {
	err := Wrap("issue 5", ErrNotFound)
	if err.Error() != "issue 5: not found" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if !errors.Is(err, ErrNotFound) {
		t.Fatal("expected ErrNotFound")
	}
}
