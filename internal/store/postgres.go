package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonathan/candidate-intake/internal/types"
)

const createReportsTable = `CREATE TABLE IF NOT EXISTS intake_reports (
	session_id UUID PRIMARY KEY,
	report     JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// PostgresStore keeps reports in the intake_reports table. Merges lock the row.
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPostgresStore connects to databaseURL and verifies the connection.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{pool: pool, now: time.Now}, nil
}

// EnsureSchema creates the reports table if it is missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, createReportsTable); err != nil {
		return fmt.Errorf("failed to create intake_reports: %w", err)
	}
	return nil
}

// WriteInitial implements Store.
func (s *PostgresStore) WriteInitial(ctx context.Context, sessionID string, parsedExperience, customizedQuestions json.RawMessage) error {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidSession, sessionID)
	}

	data, err := initialDocument(sessionID, parsedExperience, customizedQuestions, s.now())
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO intake_reports (session_id, report, updated_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (session_id) DO UPDATE SET report = $2, updated_at = NOW()`,
		id, data,
	)
	if err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// MergeField implements Store.
func (s *PostgresStore) MergeField(ctx context.Context, sessionID, field string, value any, next types.Phase) error {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidSession, sessionID)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var existing []byte
	err = tx.QueryRow(ctx,
		`SELECT report FROM intake_reports WHERE session_id = $1 FOR UPDATE`,
		id,
	).Scan(&existing)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to read report: %w", err)
	}

	updated, err := mergeDocument(existing, field, value, next, s.now())
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE intake_reports SET report = $2, updated_at = NOW() WHERE session_id = $1`,
		id, updated,
	); err != nil {
		return fmt.Errorf("failed to update report: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit report: %w", err)
	}
	return nil
}

// Read implements Store.
func (s *PostgresStore) Read(ctx context.Context, sessionID string) (json.RawMessage, error) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSession, sessionID)
	}

	var report []byte
	err = s.pool.QueryRow(ctx,
		`SELECT report FROM intake_reports WHERE session_id = $1`,
		id,
	).Scan(&report)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	return json.RawMessage(report), nil
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
