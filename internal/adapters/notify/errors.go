package notify

import (
	"errors"
	"fmt"
)

// Sentinel kinds for sink errors.
var (
	ErrDelivery      = errors.New("notification delivery failed")
	ErrNotConfigured = errors.New("sink not configured")
)

// SinkError is a failed delivery on one sink.
type SinkError struct {
	Sink string
	Err  error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sink %s: %v", e.Sink, e.Err)
}

func (e *SinkError) Unwrap() error { return e.Err }

// Is reports ErrDelivery for every SinkError.
func (e *SinkError) Is(target error) bool {
	return target == ErrDelivery //nolint:errorlint // sentinel comparison
}

// Wrap tags err with the sink name; nil stays nil.
func Wrap(sink string, err error) error {
	if err == nil {
		return nil
	}
	var se *SinkError
	if errors.As(err, &se) {
		return err
	}
	return &SinkError{Sink: sink, Err: err}
}
