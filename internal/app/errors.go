package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrPollInFlight   = errors.New("poll already in flight")
	ErrFetchExhausted = errors.New("feed fetch attempts exhausted")
	ErrNoFeedClient   = errors.New("no feed client configured")
	ErrNotStarted     = errors.New("service not started")
)
