// Package repository holds the in-memory match state store.
package repository

// Option applies a configuration option to the MatchStore.
type Option func(*MatchStore)

// WithAbsenceThreshold sets how many consecutive absent polls evict a match.
func WithAbsenceThreshold(n int) Option {
	return func(s *MatchStore) {
		if n > 0 {
			s.absenceThreshold = n
		}
	}
}

// WithEndedRetention sets how many accepted polls an ended match is kept for.
func WithEndedRetention(polls int) Option {
	return func(s *MatchStore) {
		if polls > 0 {
			s.endedRetention = polls
		}
	}
}
