package repository

import (
	"sort"

	"github.com/okian/scoreline/internal/domain/dedupe"
	"github.com/okian/scoreline/internal/domain/model"
	"github.com/okian/scoreline/internal/domain/types"
	"github.com/okian/scoreline/pkg/metrics"
)

// Default store configuration constants.
const (
	defaultAbsenceThreshold = 3
	defaultEndedRetention   = 10 // ~10 minutes at the default 60s poll interval
)

// entry is the mutable per-match state behind a Record.
type entry struct {
	last        model.Snapshot
	announced   dedupe.Deduper
	missedPolls int
	endedPolls  int
}

func (e *entry) record() types.Record {
	return types.Record{
		Last:        e.last,
		Announced:   e.announced.Len(),
		MissedPolls: e.missedPolls,
		EndedPolls:  e.endedPolls,
	}
}

// MatchStore implements Store on a plain map.
type MatchStore struct {
	records map[string]*entry

	absenceThreshold int // evict after this many consecutive absences
	endedRetention   int // evict after this many accepted polls in the ended phase
}

// NewMatchStore creates an empty store.
func NewMatchStore(opts ...Option) *MatchStore {
	s := &MatchStore{
		records:          make(map[string]*entry),
		absenceThreshold: defaultAbsenceThreshold,
		endedRetention:   defaultEndedRetention,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the record for matchID, if tracked.
func (s *MatchStore) Get(matchID string) (types.Record, bool) {
	e, ok := s.records[matchID]
	if !ok {
		return types.Record{}, false
	}
	return e.record(), true
}

// Upsert creates or refreshes a record and resets its absence counter.
func (s *MatchStore) Upsert(snap model.Snapshot) { //nolint:gocritic // hugeParam: snapshots are passed by value
	e, ok := s.records[snap.ID]
	if !ok {
		e = &entry{announced: dedupe.NewFingerprintSet()}
		s.records[snap.ID] = e
	}
	e.last = snap
	e.missedPolls = 0
	if snap.Status == model.StatusEnded {
		e.endedPolls++
	} else {
		e.endedPolls = 0
	}
	metrics.UpdateTrackedMatches(len(s.records))
}

// MarkAbsent counts one more consecutive absence for matchID.
func (s *MatchStore) MarkAbsent(matchID string) bool {
	e, ok := s.records[matchID]
	if !ok {
		return false
	}
	e.missedPolls++
	if e.missedPolls >= s.absenceThreshold {
		s.Evict(matchID)
		metrics.RecordEviction("absent")
		return true
	}
	return false
}

// HasAnnounced reports whether fp was already emitted for matchID.
func (s *MatchStore) HasAnnounced(matchID string, fp model.Fingerprint) bool {
	e, ok := s.records[matchID]
	if !ok {
		return false
	}
	return e.announced.Seen(fp)
}

// RecordAnnounced remembers fp for matchID.
func (s *MatchStore) RecordAnnounced(matchID string, fp model.Fingerprint) {
	if e, ok := s.records[matchID]; ok {
		e.announced.Record(fp)
	}
}

// Evict removes the record together with its fingerprints.
func (s *MatchStore) Evict(matchID string) {
	e, ok := s.records[matchID]
	if !ok {
		return
	}
	e.announced.Reset()
	delete(s.records, matchID)
	metrics.UpdateTrackedMatches(len(s.records))
}

// SweepEnded evicts records that stayed ended past the retention window.
func (s *MatchStore) SweepEnded() []string {
	var expired []string
	for id, e := range s.records {
		if e.last.Status == model.StatusEnded && e.endedPolls > s.endedRetention {
			expired = append(expired, id)
		}
	}
	sort.Strings(expired)
	for _, id := range expired {
		s.Evict(id)
		metrics.RecordEviction("ended")
	}
	return expired
}

// IDs returns the tracked ids in ascending order.
func (s *MatchStore) IDs() []string {
	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of tracked matches.
func (s *MatchStore) Len() int {
	return len(s.records)
}

// View returns an immutable copy of the tracked state ordered by match id.
func (s *MatchStore) View() []types.MatchView {
	out := make([]types.MatchView, 0, len(s.records))
	for _, id := range s.IDs() {
		e := s.records[id]
		out = append(out, types.MatchView{
			MatchID:      id,
			Competition:  e.last.Competition,
			HomeName:     e.last.HomeName,
			AwayName:     e.last.AwayName,
			HomeScore:    e.last.HomeScore,
			AwayScore:    e.last.AwayScore,
			ClockMinutes: e.last.ClockMinutes,
			Status:       e.last.Status.String(),
			Announced:    e.announced.Len(),
			MissedPolls:  e.missedPolls,
			EndedPolls:   e.endedPolls,
		})
	}
	return out
}
