// Package feedsim provides deterministic and simulated match feeds for tests
// and local end-to-end runs.
package feedsim

import (
	"context"
	"sync"

	"github.com/okian/scoreline/internal/domain/model"
)

// Step is one scripted poll result: a batch or an error.
type Step struct {
	Snapshots []model.Snapshot
	Err       error
}

// Batch is a Step returning snapshots.
func Batch(s ...model.Snapshot) Step { return Step{Snapshots: s} }

// Fail is a Step returning err.
func Fail(err error) Step { return Step{Err: err} }

// Scripted replays steps in order, one per call. Once exhausted it keeps
// returning the last step, like a feed that stopped changing.
type Scripted struct {
	mu    sync.Mutex
	steps []Step
	next  int // index of the next unserved step
	calls int
}

// NewScripted creates a scripted feed.
func NewScripted(steps ...Step) *Scripted {
	return &Scripted{steps: steps}
}

// FetchSnapshots returns the next scripted step.
func (s *Scripted) FetchSnapshots(ctx context.Context) ([]model.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.steps) == 0 {
		return nil, nil
	}
	st := s.steps[len(s.steps)-1]
	if s.next < len(s.steps) {
		st = s.steps[s.next]
		s.next++
	}
	if st.Err != nil {
		return nil, st.Err
	}
	out := make([]model.Snapshot, len(st.Snapshots))
	copy(out, st.Snapshots)
	return out, nil
}

// Push appends steps to the script.
func (s *Scripted) Push(steps ...Step) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, steps...)
}

// Calls returns how many fetches were served.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
