// Package history keeps a SQLite ledger of finished compose and image cycles
// for the status command.
package history

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver

	"github.com/mrz1836/autocompose/internal/errors"
)

// Stage names as stored in the ledger.
const (
	StageCompose = "compose"
	StageImages  = "images"
)

// Cycle is one finished batch.
type Cycle struct {
	ID         string    `json:"id"`
	Stage      string    `json:"stage"`
	Version    int       `json:"version"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Success    bool      `json:"success"`
	Changed    bool      `json:"changed"`
	// PublishedSlot is set when the cycle swapped the publish link.
	PublishedSlot *int   `json:"published_slot,omitempty"`
	Tasks         []Task `json:"tasks,omitempty"`
}

// Task is the outcome of one task in a cycle.
type Task struct {
	Key            string        `json:"key"`
	Name           string        `json:"name,omitempty"`
	Success        bool          `json:"success"`
	Changed        bool          `json:"changed"`
	RevisionBefore string        `json:"revision_before,omitempty"`
	RevisionAfter  string        `json:"revision_after,omitempty"`
	Duration       time.Duration `json:"duration_ns"`
	Error          string        `json:"error,omitempty"`
}

// Store is the SQLite-backed ledger.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the ledger at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, errors.Wrap(err, "failed to create history directory")
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrapf(errors.ErrHistoryUnavailable, "open %s: %v", path, err)
	}
	// One writer: the scheduler loop. Keeps sqlite from seeing concurrent writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(errors.ErrHistoryUnavailable, "initialize schema: %v", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordCycle stores a cycle and its tasks in one transaction.
func (s *Store) RecordCycle(ctx context.Context, c Cycle) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin history transaction")
	}
	defer func() { _ = tx.Rollback() }()

	var slot sql.NullInt64
	if c.PublishedSlot != nil {
		slot = sql.NullInt64{Int64: int64(*c.PublishedSlot), Valid: true}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO cycles (id, stage, version, started_at, finished_at, success, changed, published_slot)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Stage, c.Version, c.StartedAt.UTC(), c.FinishedAt.UTC(), c.Success, c.Changed, slot,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to record cycle %s", c.ID)
	}

	for _, t := range c.Tasks {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO tasks (cycle_id, key, name, success, changed, revision_before, revision_after, duration_ms, error)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, t.Key, t.Name, t.Success, t.Changed, t.RevisionBefore, t.RevisionAfter, t.Duration.Milliseconds(), t.Error,
		)
		if err != nil {
			return errors.Wrapf(err, "failed to record task %s of cycle %s", t.Key, c.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit history transaction")
	}
	return nil
}

// Recent returns up to limit cycles, newest first, with their tasks.
func (s *Store) Recent(ctx context.Context, limit int) ([]Cycle, error) {
	if limit <= 0 {
		return nil, errors.Wrapf(errors.ErrInvalidArgument, "limit must be positive, got %d", limit)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, stage, version, started_at, finished_at, success, changed, published_slot
		 FROM cycles ORDER BY finished_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query cycles")
	}
	defer func() { _ = rows.Close() }()

	var cycles []Cycle
	for rows.Next() {
		var (
			c    Cycle
			slot sql.NullInt64
		)
		if err := rows.Scan(&c.ID, &c.Stage, &c.Version, &c.StartedAt, &c.FinishedAt, &c.Success, &c.Changed, &slot); err != nil {
			return nil, errors.Wrap(err, "failed to scan cycle")
		}
		if slot.Valid {
			v := int(slot.Int64)
			c.PublishedSlot = &v
		}
		cycles = append(cycles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read cycles")
	}

	for i := range cycles {
		tasks, err := s.tasks(ctx, cycles[i].ID)
		if err != nil {
			return nil, err
		}
		cycles[i].Tasks = tasks
	}
	return cycles, nil
}

func (s *Store) tasks(ctx context.Context, cycleID string) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, name, success, changed, revision_before, revision_after, duration_ms, error
		 FROM tasks WHERE cycle_id = ? ORDER BY rowid`, cycleID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query tasks")
	}
	defer func() { _ = rows.Close() }()

	var tasks []Task
	for rows.Next() {
		var (
			t  Task
			ms int64
		)
		if err := rows.Scan(&t.Key, &t.Name, &t.Success, &t.Changed, &t.RevisionBefore, &t.RevisionAfter, &ms, &t.Error); err != nil {
			return nil, errors.Wrap(err, "failed to scan task")
		}
		t.Duration = time.Duration(ms) * time.Millisecond
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
