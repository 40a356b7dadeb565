package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jonathan/candidate-intake/internal/types"
	"github.com/redis/go-redis/v9"
)

// ReportKeyPrefix prefixes every report key.
const ReportKeyPrefix = "intake:report:"

// maxMergeRetries bounds optimistic retries when another writer touches the key.
const maxMergeRetries = 10

// RedisStore keeps each report under intake:report:<sessionID>.
// Merges use WATCH/MULTI and retry when the key changes underneath them.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisStore connects to redisURL (redis://[:password@]host:port/db).
// A zero ttl keeps reports forever.
func NewRedisStore(ctx context.Context, redisURL string, ttl time.Duration) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opt.Addr, err)
	}

	return NewRedisStoreWithClient(client, ttl), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl, now: time.Now}
}

func (s *RedisStore) key(sessionID string) string {
	return ReportKeyPrefix + sessionID
}

// WriteInitial implements Store.
func (s *RedisStore) WriteInitial(ctx context.Context, sessionID string, parsedExperience, customizedQuestions json.RawMessage) error {
	if err := ValidateSessionID(sessionID); err != nil {
		return err
	}

	data, err := initialDocument(sessionID, parsedExperience, customizedQuestions, s.now())
	if err != nil {
		return err
	}

	if err := s.client.Set(ctx, s.key(sessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// MergeField implements Store.
func (s *RedisStore) MergeField(ctx context.Context, sessionID, field string, value any, next types.Phase) error {
	if err := ValidateSessionID(sessionID); err != nil {
		return err
	}
	key := s.key(sessionID)

	merge := func(tx *redis.Tx) error {
		existing, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to read report: %w", err)
		}

		updated, err := mergeDocument(existing, field, value, next, s.now())
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, s.ttl)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxMergeRetries; attempt++ {
		err := s.client.Watch(ctx, merge, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil && !errors.Is(err, ErrNotFound) && !isDomainError(err) {
			return fmt.Errorf("failed to merge report: %w", err)
		}
		return err
	}
	return fmt.Errorf("failed to merge report: too much contention on %s", key)
}

// Read implements Store.
func (s *RedisStore) Read(ctx context.Context, sessionID string) (json.RawMessage, error) {
	if err := ValidateSessionID(sessionID); err != nil {
		return nil, err
	}

	data, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	return json.RawMessage(data), nil
}

// Close implements Store.
func (s *RedisStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// isDomainError reports errors produced by the merge itself rather than by redis.
func isDomainError(err error) bool {
	return errors.Is(err, ErrUnknownField)
}
