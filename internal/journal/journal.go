// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package journal records ingestion outcomes in PostgreSQL.
// Operators use the journal to find batches that were broken or could not be
// submitted, together with the service error identifier Capture Center reported.
package journal

import (
	"context"
	"fmt"
	"time"

	"occingest/cli/internal/dsn"
	apperr "occingest/cli/internal/errors"
	"occingest/cli/internal/ingest"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS occingest_batches (
	id          BIGSERIAL PRIMARY KEY,
	run_id      TEXT        NOT NULL,
	batch_id    TEXT        NOT NULL DEFAULT '',
	profile     TEXT        NOT NULL,
	batch_name  TEXT        NOT NULL,
	mode        TEXT        NOT NULL,
	files       INTEGER     NOT NULL,
	bytes       BIGINT      NOT NULL,
	stage       TEXT        NOT NULL,
	broken      BOOLEAN     NOT NULL DEFAULT FALSE,
	recovered   BOOLEAN     NOT NULL DEFAULT FALSE,
	error_kind  TEXT        NOT NULL DEFAULT '',
	error_id    TEXT        NOT NULL DEFAULT '',
	error       TEXT        NOT NULL DEFAULT '',
	started_at  TIMESTAMPTZ NOT NULL,
	duration_ms BIGINT      NOT NULL
)`

// Entry is one journaled ingestion.
type Entry struct {
	RunID     string
	BatchID   string
	Profile   string
	BatchName string
	Mode      string
	Files     int
	Bytes     int64
	Stage     string
	Broken    bool
	Recovered bool
	ErrorKind string
	ErrorID   string
	Error     string
	StartedAt time.Time
	Duration  time.Duration
}

// EntryFromOutcome flattens an outcome into a journal row.
func EntryFromOutcome(o ingest.Outcome) Entry {
	e := Entry{
		RunID:     o.RunID,
		BatchID:   o.BatchID,
		Profile:   o.Profile,
		BatchName: o.BatchName,
		Mode:      o.Mode.String(),
		Files:     o.Files,
		Bytes:     o.Bytes,
		Stage:     string(o.Stage),
		Broken:    o.Broken,
		Recovered: o.Recovered,
		StartedAt: o.Started,
		Duration:  o.Duration,
	}
	if o.Err != nil {
		e.ErrorKind = string(apperr.KindOf(o.Err))
		e.ErrorID = apperr.ErrorIDOf(o.Err)
		e.Error = o.Err.Error()
	}
	return e
}

// Store writes entries to a connection pool. It implements ingest.Observer.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to connString, verifies the connection and creates the table
// if needed. URLs with unescaped special characters in the password are accepted.
func Open(ctx context.Context, connString string) (*Store, error) {
	normalized, err := dsn.Normalize(connString)
	if err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}

	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctxPing, normalized)
	if err != nil {
		return nil, fmt.Errorf("journal: invalid connection string: %w", err)
	}
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("journal: connect: %w", err)
	}
	if _, err := pool.Exec(ctxPing, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("journal: create table: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Observe implements ingest.Observer.
func (s *Store) Observe(ctx context.Context, o ingest.Outcome) error {
	return s.Append(ctx, EntryFromOutcome(o))
}

// Append inserts one entry.
func (s *Store) Append(ctx context.Context, e Entry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO occingest_batches
			(run_id, batch_id, profile, batch_name, mode, files, bytes, stage,
			 broken, recovered, error_kind, error_id, error, started_at, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		e.RunID, e.BatchID, e.Profile, e.BatchName, e.Mode, e.Files, e.Bytes, e.Stage,
		e.Broken, e.Recovered, e.ErrorKind, e.ErrorID, e.Error, e.StartedAt, e.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("journal: insert: %w", err)
	}
	return nil
}

// Failed returns the most recent failed ingestions, newest first.
func (s *Store) Failed(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT run_id, batch_id, profile, batch_name, mode, files, bytes, stage,
		       broken, recovered, error_kind, error_id, error, started_at, duration_ms
		FROM occingest_batches
		WHERE error <> ''
		ORDER BY started_at DESC, id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: query: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var ms int64
		if err := rows.Scan(&e.RunID, &e.BatchID, &e.Profile, &e.BatchName, &e.Mode, &e.Files, &e.Bytes, &e.Stage,
			&e.Broken, &e.Recovered, &e.ErrorKind, &e.ErrorID, &e.Error, &e.StartedAt, &ms); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		e.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}
