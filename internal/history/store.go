// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package history keeps terminal session outcomes in SQLite. Outcomes are
// queued by RecordOutcome and written by a single background writer, so the
// scheduler never waits on disk.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ManuGH/mediatranscoding/internal/domain/session/model"
	"github.com/ManuGH/mediatranscoding/internal/domain/session/ports"
	"github.com/ManuGH/mediatranscoding/internal/log"
	"github.com/ManuGH/mediatranscoding/internal/persistence/sqlite"
)

const (
	schemaVersion = 1

	// DefaultQueueSize bounds outcomes waiting for the writer.
	DefaultQueueSize = 256
	// DefaultListLimit applies when a query sets no limit.
	DefaultListLimit = 100
	maxListLimit     = 1000
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("history store closed")

// Record is one stored outcome.
type Record struct {
	ID string `json:"id"`
	model.Outcome
}

// Filter narrows List. Zero fields match everything.
type Filter struct {
	Client *model.ClientID
	Kind   model.OutcomeKind
	Limit  int
}

var _ ports.OutcomeRecorder = (*Store)(nil)

// Store implements ports.OutcomeRecorder over SQLite.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
	newID  func() string

	mu     sync.RWMutex
	closed bool
	queue  chan Record
	done   chan struct{}
}

// Open opens or creates the database at path, checks an existing file for
// corruption and starts the writer.
func Open(path string) (*Store, error) {
	if _, err := os.Stat(path); err == nil {
		issues, err := sqlite.VerifyIntegrity(path, "quick")
		if err != nil {
			return nil, fmt.Errorf("history: verify %s: %w", path, err)
		}
		if issues != nil {
			return nil, fmt.Errorf("history: %s is corrupt: %s", path, strings.Join(issues, "; "))
		}
	}

	db, err := sqlite.Open(path, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}

	s := &Store{
		db:     db,
		logger: log.WithComponent("history"),
		newID:  func() string { return uuid.NewString() },
		queue:  make(chan Record, DefaultQueueSize),
		done:   make(chan struct{}),
	}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: migration failed: %w", err)
	}

	go s.writer()
	return s, nil
}

func (s *Store) migrate() error {
	var currentVersion int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&currentVersion); err != nil {
		return err
	}
	if currentVersion >= schemaVersion {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	schema := `
	CREATE TABLE IF NOT EXISTS outcomes (
		id TEXT PRIMARY KEY,
		client_id INTEGER NOT NULL,
		session_id INTEGER NOT NULL,
		uid INTEGER NOT NULL,
		kind TEXT NOT NULL,
		error_code TEXT NOT NULL DEFAULT '',
		last_progress INTEGER NOT NULL,
		started BOOLEAN NOT NULL,
		priority TEXT NOT NULL,
		source_path TEXT NOT NULL,
		destination_path TEXT NOT NULL,
		submitted_at_ms INTEGER NOT NULL,
		ended_at_ms INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_outcomes_ended ON outcomes(ended_at_ms);
	CREATE INDEX IF NOT EXISTS idx_outcomes_client ON outcomes(client_id, ended_at_ms);
	`
	if _, err := tx.Exec(schema); err != nil {
		return err
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return err
	}
	return tx.Commit()
}

// RecordOutcome queues o for writing. It never blocks; when the queue is
// full the outcome is dropped and counted.
func (s *Store) RecordOutcome(o model.Outcome) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		outcomesTotal.WithLabelValues("closed").Inc()
		return
	}
	select {
	case s.queue <- Record{ID: s.newID(), Outcome: o}:
		queueDepth.Set(float64(len(s.queue)))
	default:
		outcomesTotal.WithLabelValues("dropped").Inc()
		s.logger.Warn().Str("session", o.Key.String()).Msg("history queue full, dropping outcome")
	}
}

func (s *Store) writer() {
	defer close(s.done)
	for rec := range s.queue {
		queueDepth.Set(float64(len(s.queue)))
		if err := s.insert(context.Background(), rec); err != nil {
			outcomesTotal.WithLabelValues("error").Inc()
			s.logger.Error().Err(err).Str(log.FieldRecordID, rec.ID).Msg("failed to store outcome")
			continue
		}
		outcomesTotal.WithLabelValues("stored").Inc()
	}
}

func (s *Store) insert(ctx context.Context, rec Record) error {
	o := rec.Outcome
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO outcomes (id, client_id, session_id, uid, kind, error_code, last_progress, started,
		priority, source_path, destination_path, submitted_at_ms, ended_at_ms)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, int64(o.Key.Client), int32(o.Key.Session), int32(o.UID), string(o.Kind), string(o.Error),
		o.LastProgress, o.Started, string(o.Request.Priority), o.Request.SourcePath, o.Request.DestinationPath,
		o.SubmittedAt.UnixMilli(), o.EndedAt.UnixMilli(),
	)
	return err
}

// List returns stored outcomes, most recent first.
func (s *Store) List(ctx context.Context, f Filter) ([]Record, error) {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}

	limit := f.Limit
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > maxListLimit:
		limit = maxListLimit
	}

	var (
		where []string
		args  []any
	)
	if f.Client != nil {
		where = append(where, "client_id = ?")
		args = append(args, int64(*f.Client))
	}
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(f.Kind))
	}
	query := `SELECT id, client_id, session_id, uid, kind, error_code, last_progress, started,
		priority, source_path, destination_path, submitted_at_ms, ended_at_ms FROM outcomes`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY ended_at_ms DESC, rowid DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec                Record
			client             int64
			session, uid       int32
			kind, code, prio   string
			submitted, endedAt int64
		)
		if err := rows.Scan(&rec.ID, &client, &session, &uid, &kind, &code, &rec.LastProgress, &rec.Started,
			&prio, &rec.Request.SourcePath, &rec.Request.DestinationPath, &submitted, &endedAt); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		rec.Key = model.Key(model.ClientID(client), model.SessionID(session))
		rec.UID = model.UID(uid)
		rec.Kind = model.OutcomeKind(kind)
		rec.Error = model.ErrorCode(code)
		rec.Request.Priority = model.Priority(prio)
		rec.SubmittedAt = time.UnixMilli(submitted).UTC()
		rec.EndedAt = time.UnixMilli(endedAt).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close stops accepting outcomes, writes the queued ones and closes the
// database. If ctx ends first the remaining outcomes are abandoned.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	var err error
	select {
	case <-s.done:
	case <-ctx.Done():
		err = fmt.Errorf("history: drain: %w", ctx.Err())
	}
	if cerr := s.db.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
