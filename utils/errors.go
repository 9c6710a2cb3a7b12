package utils

import (
	"errors"
	"fmt"
)

// Error kinds observed by the engine core. The propagation engine itself
// never returns these; the outer operation (assert, retract, run, load)
// is the error boundary.
var (
	ErrParse               = errors.New("parse error")
	ErrConstraintViolation = errors.New("constraint violation")
	ErrUnboundVariable     = errors.New("unbound variable")
	ErrEvaluation          = errors.New("evaluation error")
	ErrBinaryFormat        = errors.New("binary format mismatch")
	ErrNotDeletable        = errors.New("construct not deletable")
)

// NewError creates a new error with a message
func NewError(msg string) error {
	return fmt.Errorf("%s", msg)
}

// WrapError wraps an error with additional context
func WrapError(err error, msg string) error {
	if err == nil {
		return fmt.Errorf("%s", msg)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
