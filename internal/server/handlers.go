package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/jonathan/candidate-intake/internal/assessment"
	"github.com/jonathan/candidate-intake/internal/logging"
	"github.com/jonathan/candidate-intake/internal/server/middleware"
	"github.com/jonathan/candidate-intake/internal/store"
	"github.com/jonathan/candidate-intake/internal/types"
)

// resumeField is the multipart field holding the uploaded PDF.
const resumeField = "resume"

// maxAnswerBytes bounds answer submissions.
const maxAnswerBytes = 1 << 20

// UploadResponse represents the response for /upload
type UploadResponse struct {
	Success   bool        `json:"success"`
	SessionID string      `json:"sessionId"`
	Phase     types.Phase `json:"phase"`
}

// SaveResponse represents the response for the answer endpoints
type SaveResponse struct {
	Success bool   `json:"success"`
	File    string `json:"file"`
}

// SessionResponse represents the response for /session
type SessionResponse struct {
	SessionID string      `json:"sessionId"`
	Phase     types.Phase `json:"phase"`
}

// sessionID returns the session resolved by the session middleware.
func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := middleware.GetSessionID(r)
	if err != nil {
		s.errorResponse(w, r, &ErrValidation{Field: "session", Message: err.Error()})
		return "", false
	}
	return id, true
}

// readResume pulls the uploaded PDF out of a multipart request.
func (s *Server) readResume(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	if r.ContentLength > s.maxUploadBytes {
		return "", nil, &http.MaxBytesError{Limit: s.maxUploadBytes}
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", nil, tooLarge
		}
		return "", nil, &assessment.InputError{Err: &ErrValidation{Field: resumeField, Message: "multipart form with a PDF file is required"}}
	}

	file, header, err := r.FormFile(resumeField)
	if err != nil {
		return "", nil, &assessment.InputError{Err: &ErrValidation{Field: resumeField, Message: "file is required"}}
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read upload: %w", err)
	}
	return header.Filename, data, nil
}

// handleUpload extracts and analyses a resume and replaces the session's report
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := s.sessionID(w, r)
	if !ok {
		return
	}

	filename, data, err := s.readResume(w, r)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}

	if _, err := s.service.Upload(r.Context(), assessment.UploadRequest{
		SessionID: sessionID,
		Filename:  filename,
		Data:      data,
	}); err != nil {
		s.errorResponse(w, r, err)
		return
	}

	s.jsonResponse(w, r, http.StatusOK, UploadResponse{
		Success:   true,
		SessionID: sessionID,
		Phase:     types.PhaseExperience,
	})
}

// handleUploadStream runs an upload and streams stage progress via SSE
func (s *Server) handleUploadStream(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := s.sessionID(w, r)
	if !ok {
		return
	}

	filename, data, err := s.readResume(w, r)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}

	log := logging.Ctx(r.Context())
	_, err = s.service.Upload(r.Context(), assessment.UploadRequest{
		SessionID: sessionID,
		Filename:  filename,
		Data:      data,
		OnProgress: func(event assessment.ProgressEvent) {
			if err := sse.WriteEvent("step", event); err != nil {
				log.Warn().Err(err).Msg("failed to write SSE event")
			}
		},
	})
	if err != nil {
		log.Warn().Err(err).Str("kind", ErrorKind(err)).Msg("streaming upload failed")
		sse.WriteError(err)
		return
	}

	sse.WriteComplete(sessionID, string(types.PhaseExperience))
}

// handleReport returns the session's stored report verbatim
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := s.sessionID(w, r)
	if !ok {
		return
	}

	raw, err := s.service.Store().Read(r.Context(), sessionID)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	s.rawJSONResponse(w, r, http.StatusOK, raw)
}

type submitFunc func(svc *assessment.Service, r *http.Request, sessionID string, body []byte) (*assessment.SubmitResult, error)

func submitCustomized(svc *assessment.Service, r *http.Request, sessionID string, body []byte) (*assessment.SubmitResult, error) {
	return svc.SubmitCustomized(r.Context(), sessionID, body)
}

func submitBehavioral(svc *assessment.Service, r *http.Request, sessionID string, body []byte) (*assessment.SubmitResult, error) {
	return svc.SubmitBehavioral(r.Context(), sessionID, body)
}

// handleSave returns a handler that merges a raw JSON answer list into the report
func (s *Server) handleSave(submit submitFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, ok := s.sessionID(w, r)
		if !ok {
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxAnswerBytes))
		if err != nil {
			s.errorResponse(w, r, err)
			return
		}

		result, err := submit(s.service, r, sessionID, body)
		if err != nil {
			s.errorResponse(w, r, err)
			return
		}

		s.jsonResponse(w, r, http.StatusOK, SaveResponse{Success: true, File: result.File})
	}
}

// handleFinalReport returns the recruiter analysis for the session
func (s *Server) handleFinalReport(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := s.sessionID(w, r)
	if !ok {
		return
	}

	_, raw, err := s.service.FinalAnalysis(r.Context(), sessionID)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	s.rawJSONResponse(w, r, http.StatusOK, raw)
}

// handleBehaviorQuestions returns the behavioral question set
func (s *Server) handleBehaviorQuestions(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := s.sessionID(w, r)
	if !ok {
		return
	}

	generate := false
	if v := r.URL.Query().Get("generate"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			s.errorResponse(w, r, &ErrValidation{Field: "generate", Message: "must be a boolean"})
			return
		}
		generate = parsed
	}

	set, err := s.service.BehavioralQuestions(r.Context(), sessionID, generate)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	s.jsonResponse(w, r, http.StatusOK, set)
}

// handleSession returns the session ID and its stored phase
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := s.sessionID(w, r)
	if !ok {
		return
	}

	phase, err := s.service.Phase(r.Context(), sessionID)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	s.jsonResponse(w, r, http.StatusOK, SessionResponse{SessionID: sessionID, Phase: phase})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("failed to encode JSON response")
	}
}

// rawJSONResponse writes an already encoded JSON document
func (s *Server) rawJSONResponse(w http.ResponseWriter, r *http.Request, status int, raw json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(raw); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("failed to write JSON response")
	}
}

// errorResponse logs err and writes it with the status its kind maps to
func (s *Server) errorResponse(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := classify(err)

	log := logging.Ctx(r.Context())
	event := log.Warn()
	if status >= http.StatusInternalServerError {
		event = log.Error()
	}
	event.Err(err).Str("kind", kind).Int("status", status).Msg("request failed")

	resp := ErrorResponse{Success: false, Error: err.Error(), Kind: kind}
	if errors.Is(err, store.ErrNotFound) {
		resp.Message = "Report not found"
	}
	s.jsonResponse(w, r, status, resp)
}
