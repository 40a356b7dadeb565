package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/candidate-intake/internal/assessment"
	"github.com/jonathan/candidate-intake/internal/ingestion"
	"github.com/jonathan/candidate-intake/internal/llm"
	"github.com/jonathan/candidate-intake/internal/store"
)

func TestErrValidation(t *testing.T) {
	err := &ErrValidation{Field: "resume", Message: "file is required"}
	assert.Equal(t, "validation error: resume - file is required", err.Error())
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(err))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
		kind     string
	}{
		{
			name:     "ErrValidation",
			err:      &ErrValidation{Field: "resume", Message: "missing"},
			expected: http.StatusBadRequest,
			kind:     KindInvalidInput,
		},
		{
			name:     "InputError",
			err:      &assessment.InputError{Err: errors.New("invalid JSON format")},
			expected: http.StatusInternalServerError,
			kind:     KindInvalidInput,
		},
		{
			name:     "invalid session",
			err:      fmt.Errorf("%w: %q", store.ErrInvalidSession, "x"),
			expected: http.StatusBadRequest,
			kind:     KindInvalidInput,
		},
		{
			name:     "body too large",
			err:      &http.MaxBytesError{Limit: 10},
			expected: http.StatusRequestEntityTooLarge,
			kind:     KindTooLarge,
		},
		{
			name:     "report not found",
			err:      store.ErrNotFound,
			expected: http.StatusNotFound,
			kind:     KindNotFound,
		},
		{
			name:     "wrapped input error",
			err:      fmt.Errorf("submit: %w", &assessment.InputError{Err: &ErrValidation{Field: "resume", Message: "file is required"}}),
			expected: http.StatusInternalServerError,
			kind:     KindInvalidInput,
		},
		{
			name:     "extraction",
			err:      &ingestion.ExtractionError{Err: ingestion.ErrNotPDF},
			expected: http.StatusInternalServerError,
			kind:     KindExtraction,
		},
		{
			name:     "upstream timeout",
			err:      &llm.Error{Kind: llm.KindTimeout, Err: context.DeadlineExceeded},
			expected: http.StatusGatewayTimeout,
			kind:     KindTimeout,
		},
		{
			name:     "upstream rejection",
			err:      &llm.Error{Kind: llm.KindRejected, Status: 503, Err: errors.New("unavailable")},
			expected: http.StatusBadGateway,
			kind:     KindUpstream,
		},
		{
			name:     "malformed upstream",
			err:      fmt.Errorf("upload: %w", &llm.Error{Kind: llm.KindMalformed, Err: errors.New("bad json")}),
			expected: http.StatusBadGateway,
			kind:     KindMalformed,
		},
		{
			name:     "Unknown error",
			err:      assert.AnError,
			expected: http.StatusInternalServerError,
			kind:     KindInternal,
		},
		{
			name:     "Nil error",
			err:      nil,
			expected: http.StatusInternalServerError,
			kind:     KindInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, HTTPStatus(tt.err))
			assert.Equal(t, tt.kind, ErrorKind(tt.err))
		})
	}
}
