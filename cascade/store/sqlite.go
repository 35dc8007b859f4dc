package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/gridsim/blackout/cascade"
)

// RunSummary is one stored cascade run.
type RunSummary struct {
	ID           string
	Kind         string
	CreatedAt    time.Time
	Steps        int
	Removed      int
	FinalIslands int
}

// StoredEvent is one stored cascade step.
type StoredEvent struct {
	Step     int
	Removed  []int
	Criteria string
	Islands  int
	Loading  []float64 // per-branch loading the step was decided on; nil when not captured
}

// Row converts the event into a report table row.
func (e StoredEvent) Row() cascade.Row {
	return cascade.Row{Step: cascade.StepLabel(e.Step), Failed: len(e.Removed), Criteria: e.Criteria}
}

// SQLiteStore persists cascade logs.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating when needed) the database at path. ":memory:" gives a
// private in-memory database.
func Open(path string) (*SQLiteStore, error) {
	dsn := path
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		dsn = path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite works best with a single writer; it also keeps ":memory:" on one connection.
	db.SetMaxOpenConns(1)

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Save stores a log, replacing any earlier copy with the same run ID.
func (s *SQLiteStore) Save(ctx context.Context, l *cascade.Log) error {
	if l == nil {
		return fmt.Errorf("save: nil log")
	}
	summary := cascade.Summarize(l)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE run_id = ?`, l.RunID); err != nil {
		return fmt.Errorf("failed to clear events for run %s: %w", l.RunID, err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (id, kind, created_at, steps, removed, final_islands)
		VALUES (?, ?, ?, ?, ?, ?)`,
		l.RunID, l.Kind.String(), s.now().UnixNano(), summary.Steps, summary.RemovedBranches, summary.FinalIslands)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", l.RunID, err)
	}

	for i, ev := range l.Events {
		removed, err := json.Marshal(ev.Removed)
		if err != nil {
			return fmt.Errorf("failed to encode removed indices: %w", err)
		}
		var loading any
		if ev.Results != nil {
			data, err := json.Marshal(ev.Results.Loading())
			if err != nil {
				return fmt.Errorf("failed to encode loading: %w", err)
			}
			loading = string(data)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO events (run_id, step, removed, criteria, islands, loading)
			VALUES (?, ?, ?, ?, ?, ?)`,
			l.RunID, i+1, string(removed), ev.Criteria, ev.Islands, loading)
		if err != nil {
			return fmt.Errorf("failed to insert step %d of run %s: %w", i+1, l.RunID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", l.RunID, err)
	}
	logrus.Debugf("stored run %s (%d steps)", l.RunID, summary.Steps)
	return nil
}

// Runs lists stored runs, newest first.
func (s *SQLiteStore) Runs(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, created_at, steps, removed, final_islands
		FROM runs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	out := make([]RunSummary, 0)
	for rows.Next() {
		var r RunSummary
		var created int64
		if err := rows.Scan(&r.ID, &r.Kind, &created, &r.Steps, &r.Removed, &r.FinalIslands); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// Events returns the stored steps of a run in step order.
func (s *SQLiteStore) Events(ctx context.Context, runID string) ([]StoredEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT step, removed, criteria, islands, loading
		FROM events WHERE run_id = ? ORDER BY step`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events of run %s: %w", runID, err)
	}
	defer rows.Close()

	out := make([]StoredEvent, 0)
	for rows.Next() {
		var ev StoredEvent
		var removed string
		var loading sql.NullString
		if err := rows.Scan(&ev.Step, &removed, &ev.Criteria, &ev.Islands, &loading); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if err := json.Unmarshal([]byte(removed), &ev.Removed); err != nil {
			return nil, fmt.Errorf("failed to decode removed indices of step %d: %w", ev.Step, err)
		}
		if loading.Valid {
			if err := json.Unmarshal([]byte(loading.String), &ev.Loading); err != nil {
				return nil, fmt.Errorf("failed to decode loading of step %d: %w", ev.Step, err)
			}
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
