// Package dedupe tracks announced event fingerprints for at-most-once emission.
package dedupe

import (
	"github.com/okian/scoreline/internal/domain/model"
)

// Deduper records announced fingerprints.
//
// Implementations are not safe for concurrent use; a Deduper belongs to exactly
// one match record, which in turn belongs to a single reconciliation worker.
type Deduper interface {
	// Seen reports whether fp was already recorded.
	Seen(fp model.Fingerprint) bool

	// Record marks fp as announced. Recording twice is a no-op.
	Record(fp model.Fingerprint)

	// Reset forgets every fingerprint.
	Reset()

	Len() int
}

// fingerprintSet implements Deduper on a map. It is never trimmed: a
// fingerprint forgotten while its match is tracked could be announced again.
// Memory is released when the owning match is evicted.
type fingerprintSet struct {
	seen map[model.Fingerprint]struct{}
}

// NewFingerprintSet creates an empty set.
func NewFingerprintSet() Deduper {
	return &fingerprintSet{seen: make(map[model.Fingerprint]struct{})}
}

func (d *fingerprintSet) Seen(fp model.Fingerprint) bool {
	_, ok := d.seen[fp]
	return ok
}

func (d *fingerprintSet) Record(fp model.Fingerprint) {
	d.seen[fp] = struct{}{}
}

func (d *fingerprintSet) Reset() {
	clear(d.seen)
}

func (d *fingerprintSet) Len() int {
	return len(d.seen)
}
