// Package journal appends every delivered event to a Postgres table.
package journal

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/okian/scoreline/internal/adapters/notify"
	"github.com/okian/scoreline/internal/domain/model"
)

const defaultTable = "match_events"

// Execer is the slice of *sql.DB the sink uses.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Sink inserts one row per event. The fingerprint is the primary key so a
// replayed event is a no-op.
type Sink struct {
	db     Execer
	table  string
	insert string
	close  func() error
}

// New opens dsn and creates the table if needed.
func New(ctx context.Context, dsn, table string) (*Sink, error) {
	if dsn == "" {
		return nil, fmt.Errorf("journal: %w", notify.ErrNotConfigured)
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	s := NewWithExecer(db, table)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.close = db.Close
	return s, nil
}

// NewWithExecer creates a sink over an existing handle.
func NewWithExecer(db Execer, table string) *Sink {
	if table == "" {
		table = defaultTable
	}
	quoted := pq.QuoteIdentifier(table)
	return &Sink{db: db, table: quoted, insert: insertQuery(quoted)}
}

func insertQuery(table string) string {
	return "INSERT INTO " + table + ` (fingerprint, kind, match_id, competition, home_name, away_name, home_score, away_score, clock_minutes, emitted_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (fingerprint) DO NOTHING`
}

// Migrate creates the journal table.
func (s *Sink) Migrate(ctx context.Context) error {
	q := `CREATE TABLE IF NOT EXISTS ` + s.table + ` (
	fingerprint TEXT PRIMARY KEY,
	kind VARCHAR(32) NOT NULL,
	match_id VARCHAR(100) NOT NULL,
	competition VARCHAR(50),
	home_name TEXT,
	away_name TEXT,
	home_score INTEGER NOT NULL,
	away_score INTEGER NOT NULL,
	clock_minutes INTEGER NOT NULL DEFAULT 0,
	emitted_at TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
)`
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("failed to migrate journal: %w", err)
	}
	return nil
}

// Name identifies the sink in logs and metrics.
func (s *Sink) Name() string { return "journal" }

// Render builds the shared event card.
func (s *Sink) Render(ev model.Event) notify.Message { return notify.Render(ev) } //nolint:gocritic // hugeParam

// Send inserts the event row; a known fingerprint is ignored.
func (s *Sink) Send(ctx context.Context, msg notify.Message) error { //nolint:gocritic // hugeParam
	ev := msg.Event
	_, err := s.db.ExecContext(ctx, s.insert,
		string(ev.Fingerprint), ev.Kind.String(), ev.MatchID, ev.Competition,
		ev.HomeName, ev.AwayName, ev.HomeScore, ev.AwayScore, ev.ClockMinutes,
		msg.Timestamp,
	)
	return notify.Wrap(s.Name(), err)
}

// Close releases the connection pool.
func (s *Sink) Close() error {
	if s.close != nil {
		return s.close()
	}
	return nil
}
