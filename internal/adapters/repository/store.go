// Package repository holds the in-memory match state store.
package repository

import (
	"github.com/okian/scoreline/internal/domain/model"
	"github.com/okian/scoreline/internal/domain/types"
)

// Store provides read/write access to per-match reconciliation state.
//
// A Store is owned by exactly one reconciliation worker. It performs no I/O
// and no locking; sharing one instance across concurrent passes is a bug.
type Store interface {
	// Get returns the record for matchID, if tracked.
	Get(matchID string) (types.Record, bool)

	// Upsert creates or refreshes a record and resets its absence counter.
	Upsert(s model.Snapshot)

	// MarkAbsent counts one more consecutive absence for matchID.
	// Returns true if the record crossed the absence threshold and was evicted.
	MarkAbsent(matchID string) bool

	// HasAnnounced reports whether fp was already emitted for matchID.
	HasAnnounced(matchID string, fp model.Fingerprint) bool

	// RecordAnnounced remembers fp for matchID. Unknown ids are ignored.
	RecordAnnounced(matchID string, fp model.Fingerprint)

	// Evict removes the record together with its fingerprints.
	Evict(matchID string)

	// SweepEnded evicts records that stayed ended past the retention window
	// and returns their ids in ascending order.
	SweepEnded() []string

	// IDs returns the tracked ids in ascending order.
	IDs() []string

	// Len returns the number of tracked matches.
	Len() int

	// View returns an immutable copy of the tracked state for readers.
	View() []types.MatchView
}
