package model

import (
	"errors"
	"fmt"
)

// ErrInvalidSnapshot is the kind of every snapshot validation failure.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// ValidationError describes why a snapshot was rejected.
type ValidationError struct {
	MatchID string
	Field   string
	Reason  string
}

func newValidationError(id, field, reason string) *ValidationError {
	return &ValidationError{MatchID: id, Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.MatchID == "" {
		return fmt.Sprintf("invalid snapshot: %s %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid snapshot %s: %s %s", e.MatchID, e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrInvalidSnapshot.
func (e *ValidationError) Unwrap() error { return ErrInvalidSnapshot }
