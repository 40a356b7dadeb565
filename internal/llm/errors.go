package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
)

// Kind classifies a failed model call.
type Kind string

const (
	// KindTimeout means an attempt ran past its deadline.
	KindTimeout Kind = "timeout"
	// KindRejected means the upstream refused or failed the request.
	KindRejected Kind = "rejected"
	// KindMalformed means the upstream answered with something that is not the expected JSON.
	KindMalformed Kind = "malformed"
)

// Error is a classified model call failure.
type Error struct {
	Kind     Kind
	Op       string // pipeline stage, e.g. "experience_extraction"
	Attempts int
	Status   int // HTTP status reported by the API, 0 when unknown
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("llm %s", e.Kind)
	if e.Op != "" {
		msg = fmt.Sprintf("llm %s: %s", e.Op, e.Kind)
	}
	if e.Attempts > 1 {
		msg = fmt.Sprintf("%s after %d attempts", msg, e.Attempts)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether another attempt may succeed.
// Client errors from the API (4xx other than 429) and blocked prompts are final.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindTimeout, KindMalformed:
		return true
	case KindRejected:
		if e.Status == http.StatusTooManyRequests {
			return true
		}
		if e.Status >= 400 && e.Status < 500 {
			return false
		}
		var blocked *genai.BlockedError
		return !errors.As(e.Err, &blocked)
	}
	return false
}

// KindOf returns the kind of a classified error anywhere in err's chain.
func KindOf(err error) (Kind, bool) {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Kind, true
	}
	return "", false
}

// classify turns a raw client error into an *Error.
func classify(err error) *Error {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Err: err}
	}
	classified := &Error{Kind: KindRejected, Err: err}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		classified.Status = apiErr.Code
	}
	return classified
}
