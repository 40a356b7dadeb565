package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/candidate-intake/internal/assessment"
	"github.com/jonathan/candidate-intake/internal/ingestion"
	"github.com/jonathan/candidate-intake/internal/llm"
	"github.com/jonathan/candidate-intake/internal/store"
)

// Error kinds reported in the "kind" field of error responses.
const (
	KindInvalidInput = "invalid_input"
	KindTooLarge     = "too_large"
	KindNotFound     = "not_found"
	KindExtraction   = "extraction"
	KindTimeout      = "timeout"
	KindUpstream     = "upstream"
	KindMalformed    = "malformed"
	KindInternal     = "internal"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Kind    string `json:"kind"`
	Message string `json:"message,omitempty"`
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	status, _ := classify(err)
	return status
}

// ErrorKind returns the kind reported to clients for err.
func ErrorKind(err error) string {
	_, kind := classify(err)
	return kind
}

func classify(err error) (int, string) {
	var (
		validationErr *ErrValidation
		inputErr      *assessment.InputError
		tooLarge      *http.MaxBytesError
		extractionErr *ingestion.ExtractionError
	)

	switch {
	case err == nil:
		return http.StatusInternalServerError, KindInternal
	case errors.As(err, &inputErr):
		// Malformed submission bodies keep the 500 the browser client expects.
		return http.StatusInternalServerError, KindInvalidInput
	case errors.As(err, &validationErr), errors.Is(err, store.ErrInvalidSession):
		return http.StatusBadRequest, KindInvalidInput
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, KindTooLarge
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, KindNotFound
	case errors.As(err, &extractionErr):
		return http.StatusInternalServerError, KindExtraction
	}

	if kind, ok := llm.KindOf(err); ok {
		switch kind {
		case llm.KindTimeout:
			return http.StatusGatewayTimeout, KindTimeout
		case llm.KindMalformed:
			return http.StatusBadGateway, KindMalformed
		default:
			return http.StatusBadGateway, KindUpstream
		}
	}
	return http.StatusInternalServerError, KindInternal
}
