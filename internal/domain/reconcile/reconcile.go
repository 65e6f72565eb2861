// Package reconcile turns polled match snapshots into announceable events.
//
// A Reconciler diffs each batch against the match store it owns and emits
// GoalScored and MatchEnded events at most once per fingerprint. It performs
// no I/O and cannot fail: malformed snapshots are counted and skipped.
package reconcile

import (
	"errors"
	"sort"
	"strings"

	"github.com/okian/scoreline/internal/domain/model"
	"github.com/okian/scoreline/internal/domain/types"
	"github.com/okian/scoreline/pkg/metrics"
)

// Result is the outcome of one reconciliation pass.
type Result struct {
	// Events are ordered by match id, then GoalScored before MatchEnded.
	Events []model.Event

	Accepted   int // distinct valid snapshots applied
	Rejected   int // snapshots that failed validation
	Duplicates int // earlier occurrences overridden by a later one for the same id
	Baselined  int // first sightings
	Suppressed int // transitions whose fingerprint was already announced

	Evicted []string                 // ids dropped by absence or ended retention
	Invalid []*model.ValidationError // why snapshots were rejected
}

// Store is the per-match state a Reconciler diffs against and mutates.
type Store interface {
	Get(matchID string) (types.Record, bool)
	Upsert(s model.Snapshot)
	// MarkAbsent reports whether the absence evicted the match.
	MarkAbsent(matchID string) bool
	HasAnnounced(matchID string, fp model.Fingerprint) bool
	RecordAnnounced(matchID string, fp model.Fingerprint)
	// SweepEnded evicts matches past the ended retention window.
	SweepEnded() []string
	IDs() []string
}

// Reconciler applies batches to a single store. It is not safe for
// concurrent use; one poll loop owns one Reconciler.
type Reconciler struct {
	store Store
}

// New creates a Reconciler over store.
func New(store Store) *Reconciler {
	return &Reconciler{store: store}
}

// Reconcile applies one batch and returns the events it produced.
// The batch is the full set of matches the feed currently reports.
func (r *Reconciler) Reconcile(batch []model.Snapshot) Result {
	var res Result

	// Ids of invalid snapshots still count as reported, so a single bad
	// record never pushes a tracked match toward eviction.
	present := make(map[string]struct{}, len(batch))
	latest := make(map[string]model.Snapshot, len(batch))
	for i := range batch {
		s := batch[i]
		if id := strings.TrimSpace(s.ID); id != "" {
			present[s.ID] = struct{}{}
		}
		if err := s.Validate(); err != nil {
			res.Rejected++
			var ve *model.ValidationError
			if errors.As(err, &ve) {
				res.Invalid = append(res.Invalid, ve)
			}
			continue
		}
		if _, dup := latest[s.ID]; dup {
			res.Duplicates++
		}
		latest[s.ID] = s
	}

	ids := make([]string, 0, len(latest))
	for id := range latest {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	// Walking ids in order and emitting goals before full time yields the
	// documented event order without a final sort.
	for _, id := range ids {
		r.apply(latest[id], &res)
	}
	res.Accepted = len(ids)

	for _, id := range r.store.IDs() {
		if _, ok := present[id]; ok {
			continue
		}
		if r.store.MarkAbsent(id) {
			res.Evicted = append(res.Evicted, id)
		}
	}
	res.Evicted = append(res.Evicted, r.store.SweepEnded()...)

	metrics.RecordSnapshots(res.Accepted, res.Rejected, res.Duplicates)
	return res
}

// apply diffs one snapshot against its record and always upserts it.
func (r *Reconciler) apply(s model.Snapshot, res *Result) { //nolint:gocritic // hugeParam: snapshots are passed by value
	rec, ok := r.store.Get(s.ID)
	if !ok {
		r.store.Upsert(s)
		res.Baselined++
		return
	}
	prev := rec.Last

	switch {
	case s.HomeScore < prev.HomeScore || s.AwayScore < prev.AwayScore:
		// Upstream correction: the lower score becomes the new baseline.
	case s.Status == model.StatusLive && (s.HomeScore > prev.HomeScore || s.AwayScore > prev.AwayScore):
		r.emit(model.NewEvent(model.KindGoalScored, s), res)
	}

	if s.Status == model.StatusEnded && prev.Status != model.StatusEnded {
		r.emit(model.NewEvent(model.KindMatchEnded, s), res)
	}

	r.store.Upsert(s)
}

// emit records the fingerprint before the event leaves the reconciler.
func (r *Reconciler) emit(ev model.Event, res *Result) { //nolint:gocritic // hugeParam: events are passed by value
	if r.store.HasAnnounced(ev.MatchID, ev.Fingerprint) {
		res.Suppressed++
		metrics.RecordEventDuplicate()
		return
	}
	r.store.RecordAnnounced(ev.MatchID, ev.Fingerprint)
	res.Events = append(res.Events, ev)
	metrics.RecordEventEmitted(ev.Kind.String())
}
