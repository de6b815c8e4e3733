package errs

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

func Wrap(message string, err error) error {
	return fmt.Errorf("%s: %w", message, err)
}

// Invalid returns an ErrInvalidInput carrying a message meant for the caller.
func Invalid(format string, args ...any) error {
	return &InputError{msg: fmt.Sprintf(format, args...)}
}

type InputError struct {
	msg string
}

func (e *InputError) Error() string { return e.msg }

func (e *InputError) Unwrap() error { return ErrInvalidInput }
