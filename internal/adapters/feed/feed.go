// Package feed defines the contract of upstream match feeds and the error
// taxonomy the poll scheduler uses to decide between retry, wait and abort.
package feed

import (
	"context"

	"github.com/okian/scoreline/internal/domain/model"
)

// Client fetches the full set of matches the upstream currently reports.
//
// One call is one upstream request; retries and waits belong to the caller.
// Errors should be *Error values, anything else is classified by Classify.
type Client interface {
	FetchSnapshots(ctx context.Context) ([]model.Snapshot, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context) ([]model.Snapshot, error)

// FetchSnapshots calls f.
func (f ClientFunc) FetchSnapshots(ctx context.Context) ([]model.Snapshot, error) {
	return f(ctx)
}
