package services

import (
	"errors"
	"fmt"
)

// ErrValidation marks malformed caller input.
var ErrValidation = errors.New("invalid input")

// SafetyRejection is returned when a question asks for diagnosis or
// treatment. Advisory is the user-facing message.
type SafetyRejection struct {
	Advisory string
}

func (e *SafetyRejection) Error() string { return e.Advisory }

// UpstreamError wraps a failed call to the model, embedding or index
// provider.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *UpstreamError) Unwrap() error { return e.Err }

func upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return err
	}
	return &UpstreamError{Op: op, Err: err}
}
