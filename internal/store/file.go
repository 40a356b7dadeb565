package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/jonathan/candidate-intake/internal/types"
)

// lockStripes bounds the number of mutexes regardless of how many sessions exist.
const lockStripes = 64

// FileStore keeps each report in <dir>/<sessionID>.json.
// Writes go through a temp file and rename, so readers never see a partial report.
type FileStore struct {
	dir   string
	locks [lockStripes]sync.Mutex
	now   func() time.Time
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("report directory is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}
	return &FileStore{dir: dir, now: time.Now}, nil
}

// Dir returns the report directory.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(sessionID string) string {
	return filepath.Join(s.dir, sessionID+".json")
}

// stripe returns the index of the mutex guarding sessionID.
func stripe(sessionID string) int {
	return int(xxhash.Sum64String(sessionID) % lockStripes)
}

func (s *FileStore) lock(sessionID string) func() {
	mu := &s.locks[stripe(sessionID)]
	mu.Lock()
	return mu.Unlock
}

// WriteInitial implements Store.
func (s *FileStore) WriteInitial(ctx context.Context, sessionID string, parsedExperience, customizedQuestions json.RawMessage) error {
	if err := ValidateSessionID(sessionID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := initialDocument(sessionID, parsedExperience, customizedQuestions, s.now())
	if err != nil {
		return err
	}

	unlock := s.lock(sessionID)
	defer unlock()
	return s.writeAtomic(sessionID, data)
}

// MergeField implements Store.
func (s *FileStore) MergeField(ctx context.Context, sessionID, field string, value any, next types.Phase) error {
	if err := ValidateSessionID(sessionID); err != nil {
		return err
	}

	unlock := s.lock(sessionID)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	existing, err := s.readFile(sessionID)
	if err != nil {
		return err
	}

	updated, err := mergeDocument(existing, field, value, next, s.now())
	if err != nil {
		return err
	}
	return s.writeAtomic(sessionID, updated)
}

// Read implements Store.
func (s *FileStore) Read(_ context.Context, sessionID string) (json.RawMessage, error) {
	if err := ValidateSessionID(sessionID); err != nil {
		return nil, err
	}
	data, err := s.readFile(sessionID)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

// Close implements Store.
func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) readFile(sessionID string) ([]byte, error) {
	data, err := os.ReadFile(s.path(sessionID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	return data, nil
}

func (s *FileStore) writeAtomic(sessionID string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, sessionID+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp report: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to sync report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close report: %w", err)
	}
	if err := os.Rename(tmpName, s.path(sessionID)); err != nil {
		cleanup()
		return fmt.Errorf("failed to replace report: %w", err)
	}
	return nil
}
