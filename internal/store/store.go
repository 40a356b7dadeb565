// Package store persists per-session candidate reports and answer snapshots.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/candidate-intake/internal/types"
)

var (
	// ErrNotFound is returned when a session has no report yet.
	ErrNotFound = errors.New("report not found")
	// ErrUnknownField is returned when a merge names a field outside the report.
	ErrUnknownField = errors.New("unknown report field")
	// ErrInvalidSession is returned for session IDs that are not UUIDs.
	ErrInvalidSession = errors.New("invalid session id")
)

// Store keeps one report per session.
type Store interface {
	// WriteInitial replaces the session's report with the two upload fields and
	// sets its phase to experience.
	WriteInitial(ctx context.Context, sessionID string, parsedExperience, customizedQuestions json.RawMessage) error
	// MergeField sets one top-level field and advances the phase to next.
	// It is atomic per session: concurrent merges of different fields all survive.
	MergeField(ctx context.Context, sessionID, field string, value any, next types.Phase) error
	// Read returns the stored report.
	Read(ctx context.Context, sessionID string) (json.RawMessage, error)
	// Close releases backend resources.
	Close() error
}

// ValidateSessionID checks that id is a UUID.
func ValidateSessionID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidSession, id)
	}
	return nil
}

// initialDocument builds the report written on upload.
func initialDocument(sessionID string, parsedExperience, customizedQuestions json.RawMessage, now time.Time) ([]byte, error) {
	doc := types.Document{}
	if err := doc.Set(types.FieldSessionID, sessionID); err != nil {
		return nil, err
	}
	if err := doc.Set(types.FieldPhase, types.PhaseExperience); err != nil {
		return nil, err
	}
	if err := doc.Set(types.FieldUpdatedAt, now.UTC().Format(time.RFC3339Nano)); err != nil {
		return nil, err
	}
	if err := doc.Set(types.FieldParsedExperience, parsedExperience); err != nil {
		return nil, err
	}
	if err := doc.Set(types.FieldCustomizedQuestions, customizedQuestions); err != nil {
		return nil, err
	}
	return doc.Marshal()
}

// mergeDocument applies one field update to a stored report.
func mergeDocument(existing []byte, field string, value any, next types.Phase, now time.Time) ([]byte, error) {
	if !types.IsDataField(field) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}

	doc, err := types.ParseDocument(existing)
	if err != nil {
		return nil, err
	}

	phase := types.Advance(doc.Phase(), next)

	if err := doc.Set(field, value); err != nil {
		return nil, err
	}
	if err := doc.Set(types.FieldPhase, phase); err != nil {
		return nil, err
	}
	if err := doc.Set(types.FieldUpdatedAt, now.UTC().Format(time.RFC3339Nano)); err != nil {
		return nil, err
	}
	return doc.Marshal()
}
