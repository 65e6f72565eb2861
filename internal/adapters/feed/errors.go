package feed

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// Kind classifies a feed failure by how the caller should react.
type Kind int

// Failure kinds.
const (
	// Transient failures are retried with backoff.
	Transient Kind = iota
	// RateLimited failures are retried after the upstream's wait hint.
	RateLimited
	// Fatal failures abort the poll without retrying.
	Fatal
)

func (k Kind) String() string {
	switch k {
	case Transient:
		return "transient"
	case RateLimited:
		return "rate_limited"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Sentinel kinds for errors.Is.
var (
	ErrTransient   = errors.New("feed: transient failure")
	ErrRateLimited = errors.New("feed: rate limited")
	ErrFatal       = errors.New("feed: fatal failure")
)

// Error is a classified feed failure.
type Error struct {
	Kind       Kind
	Op         string        // what was attempted, e.g. "GET /matches"
	StatusCode int           // upstream HTTP status, 0 when none
	RetryAfter time.Duration // upstream wait hint, RateLimited only
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("feed %s: %s", e.Kind, e.Op)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	switch target { //nolint:errorlint // comparing sentinels
	case ErrTransient:
		return e.Kind == Transient
	case ErrRateLimited:
		return e.Kind == RateLimited
	case ErrFatal:
		return e.Kind == Fatal
	}
	return false
}

// NewError builds a classified error.
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Classify returns err as a classified *Error.
//
// Already classified errors pass through. Deadlines and network timeouts are
// Transient, as is anything unrecognised: a feed that fails in a new way is
// retried rather than abandoned. Callers check context cancellation before
// calling Classify.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	op := "fetch"
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		op = "fetch timeout"
	}
	return &Error{Kind: Transient, Op: op, Err: err}
}
