package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jonathan/candidate-intake/internal/logging"
)

// RetryPolicy bounds every model call.
type RetryPolicy struct {
	MaxAttempts    int           // 1 disables retries
	Timeout        time.Duration // per attempt, 0 for none
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryPolicy returns three attempts of up to a minute each.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		Timeout:        60 * time.Second,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     8 * time.Second,
	}
}

// Validator checks a cleaned JSON payload. A non-nil error marks the response malformed.
type Validator func(payload string) error

// Retrier runs JSON generation under a RetryPolicy and classifies failures.
type Retrier struct {
	client Client
	policy RetryPolicy
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewRetrier wraps client with policy. Zero fields fall back to DefaultRetryPolicy.
func NewRetrier(client Client, policy RetryPolicy) *Retrier {
	def := DefaultRetryPolicy()
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = def.MaxAttempts
	}
	if policy.InitialBackoff <= 0 {
		policy.InitialBackoff = def.InitialBackoff
	}
	if policy.MaxBackoff < policy.InitialBackoff {
		policy.MaxBackoff = max(def.MaxBackoff, policy.InitialBackoff)
	}
	return &Retrier{client: client, policy: policy, sleep: sleepCtx}
}

// Client returns the wrapped client.
func (r *Retrier) Client() Client {
	return r.client
}

// Policy returns the effective policy.
func (r *Retrier) Policy() RetryPolicy {
	return r.policy
}

// GenerateJSON asks the model for JSON, strips fences and prose, checks that the
// payload parses and passes validate. It returns the cleaned payload or an *Error.
func (r *Retrier) GenerateJSON(ctx context.Context, op, prompt string, tier ModelTier, validate Validator) (string, error) {
	log := logging.Ctx(ctx)
	backoff := r.policy.InitialBackoff

	var last *Error
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		payload, err := r.attempt(ctx, prompt, tier, validate)
		if err == nil {
			if attempt > 1 {
				log.Info().Str("op", op).Int("attempt", attempt).Msg("llm call recovered")
			}
			return payload, nil
		}

		last = err
		last.Op = op
		last.Attempts = attempt

		if ctx.Err() != nil {
			if last.Kind != KindTimeout {
				last = &Error{Kind: KindTimeout, Op: op, Attempts: attempt, Err: ctx.Err()}
			}
			return "", last
		}
		if !last.Retryable() || attempt == r.policy.MaxAttempts {
			break
		}

		log.Warn().
			Err(last.Err).
			Str("op", op).
			Str("kind", string(last.Kind)).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Msg("llm call failed, retrying")

		if err := r.sleep(ctx, backoff); err != nil {
			return "", &Error{Kind: KindTimeout, Op: op, Attempts: attempt, Err: err}
		}
		backoff = min(backoff*2, r.policy.MaxBackoff)
	}

	log.Error().
		Err(last.Err).
		Str("op", op).
		Str("kind", string(last.Kind)).
		Int("attempts", last.Attempts).
		Msg("llm call failed")
	return "", last
}

func (r *Retrier) attempt(ctx context.Context, prompt string, tier ModelTier, validate Validator) (string, *Error) {
	attemptCtx := ctx
	if r.policy.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, r.policy.Timeout)
		defer cancel()
	}

	raw, err := r.client.GenerateJSON(attemptCtx, prompt, tier)
	if err != nil {
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return "", &Error{Kind: KindTimeout, Err: err}
		}
		return "", classify(err)
	}

	payload := CleanJSON(raw)
	if payload == "" || !json.Valid([]byte(payload)) {
		return "", &Error{Kind: KindMalformed, Err: fmt.Errorf("response is not valid JSON: %.120q", raw)}
	}
	if validate != nil {
		if err := validate(payload); err != nil {
			return "", &Error{Kind: KindMalformed, Err: err}
		}
	}
	return payload, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
