// Package assessment runs the candidate intake pipeline: resume upload, answer
// submissions and the recruiter analysis.
package assessment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jonathan/candidate-intake/internal/ingestion"
	"github.com/jonathan/candidate-intake/internal/llm"
	"github.com/jonathan/candidate-intake/internal/logging"
	"github.com/jonathan/candidate-intake/internal/prompts"
	"github.com/jonathan/candidate-intake/internal/schemas"
	"github.com/jonathan/candidate-intake/internal/store"
	"github.com/jonathan/candidate-intake/internal/types"
)

// TextExtractor turns document bytes into text.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
	PageCount(data []byte) (int, error)
}

// Options tunes a Service. Zero values use defaults.
type Options struct {
	Extractor    TextExtractor
	GenerateTier llm.ModelTier // experience extraction and question generation
	AnalysisTier llm.ModelTier // final analysis
	Now          func() time.Time
}

// Service orchestrates the intake pipeline over a report store.
type Service struct {
	store     store.Store
	snapshots store.SnapshotSink
	llm       *llm.Retrier
	extractor TextExtractor

	generateTier llm.ModelTier
	analysisTier llm.ModelTier
	now          func() time.Time

	analyses singleflight.Group
}

// NewService wires a Service.
func NewService(st store.Store, snapshots store.SnapshotSink, retrier *llm.Retrier, opts Options) *Service {
	s := &Service{
		store:        st,
		snapshots:    snapshots,
		llm:          retrier,
		extractor:    opts.Extractor,
		generateTier: opts.GenerateTier,
		analysisTier: opts.AnalysisTier,
		now:          opts.Now,
	}
	if s.extractor == nil {
		s.extractor = ingestion.NewExtractor()
	}
	if s.generateTier == "" {
		s.generateTier = llm.TierStandard
	}
	if s.analysisTier == "" {
		s.analysisTier = llm.TierAdvanced
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Store returns the report store.
func (s *Service) Store() store.Store {
	return s.store
}

// UploadRequest holds the input of an upload.
type UploadRequest struct {
	SessionID  string
	Filename   string
	Data       []byte
	OnProgress ProgressFunc
}

// UploadResult is what an upload stored.
type UploadResult struct {
	SessionID           string              `json:"sessionId"`
	ParsedExperience    json.RawMessage     `json:"parsedExperience"`
	CustomizedQuestions json.RawMessage     `json:"customizedQuestions"`
	Metadata            *ingestion.Metadata `json:"metadata"`
}

// SubmitResult names the snapshot written for an answer submission.
type SubmitResult struct {
	File     string `json:"file"`
	Location string `json:"location"`
}

// Upload extracts the resume text, asks the model for the structured experience
// and the customized questions, and replaces the session's report. Any failure
// returns before the write, so an existing report is left as it was.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	if err := store.ValidateSessionID(req.SessionID); err != nil {
		return nil, err
	}
	log := logging.Ctx(ctx).With().Str("session", req.SessionID).Logger()

	text, err := s.extractor.Extract(ctx, req.Data)
	if err != nil {
		log.Warn().Err(err).Str("filename", req.Filename).Msg("resume extraction failed")
		return nil, err
	}
	pages, err := s.extractor.PageCount(req.Data)
	if err != nil {
		return nil, err
	}
	meta := ingestion.NewMetadata(req.Filename, req.Data, pages, text)
	req.emit(StepExtractText, CategoryIngestion,
		fmt.Sprintf("Extracted %d characters from %d pages", meta.TextChars, meta.Pages), meta)

	experience, err := s.generate(ctx, prompts.ExperienceExtraction, map[string]string{
		"ResumeText": text,
	}, schemas.Experience, s.generateTier)
	if err != nil {
		return nil, err
	}
	req.emit(StepParseExperience, CategoryGeneration, "Parsed resume experience", experience)

	questions, err := s.generate(ctx, prompts.QuestionGeneration, map[string]string{
		"ParsedExperience": string(experience),
	}, schemas.Questions, s.generateTier)
	if err != nil {
		return nil, err
	}
	req.emit(StepGenerateQuestions, CategoryGeneration, "Generated customized questions", questions)

	if err := s.store.WriteInitial(ctx, req.SessionID, experience, questions); err != nil {
		log.Error().Err(err).Msg("failed to write report")
		return nil, err
	}
	req.emit(StepSaveReport, CategoryStorage, "Saved report", nil)

	log.Info().
		Str("filename", req.Filename).
		Int("pages", meta.Pages).
		Int("text_chars", meta.TextChars).
		Str("hash", meta.Hash).
		Msg("resume processed")

	return &UploadResult{
		SessionID:           req.SessionID,
		ParsedExperience:    experience,
		CustomizedQuestions: questions,
		Metadata:            meta,
	}, nil
}

// SubmitCustomized stores the customized answers in body and snapshots them.
func (s *Service) SubmitCustomized(ctx context.Context, sessionID string, body []byte) (*SubmitResult, error) {
	return s.submit(ctx, sessionID, body, answerField{
		name:     types.FieldCustomizedAnswers,
		schema:   schemas.AnswersCustomized,
		next:     types.PhaseBehavioral,
		snapshot: store.SnapshotCustomized,
		check: func(b []byte) error {
			_, err := types.DecodeCustomizedAnswers(b)
			return err
		},
	})
}

// SubmitBehavioral stores the behavioral answers in body and snapshots them.
func (s *Service) SubmitBehavioral(ctx context.Context, sessionID string, body []byte) (*SubmitResult, error) {
	return s.submit(ctx, sessionID, body, answerField{
		name:     types.FieldBehavioralAnswers,
		schema:   schemas.AnswersBehavioral,
		next:     types.PhaseSummary,
		snapshot: store.SnapshotBehavioral,
		check: func(b []byte) error {
			_, err := types.DecodeBehavioralAnswers(b)
			return err
		},
	})
}

// answerField describes where a submission is merged and how it is checked.
type answerField struct {
	name     string
	schema   string
	next     types.Phase
	snapshot string
	// check reports answers that do not match the typed view; they are stored anyway.
	check func([]byte) error
}

// submit merges first and snapshots second. A snapshot failure is returned
// after the merge has already been stored. Any JSON array is accepted.
func (s *Service) submit(ctx context.Context, sessionID string, body []byte, f answerField) (*SubmitResult, error) {
	if err := store.ValidateSessionID(sessionID); err != nil {
		return nil, err
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, body); err != nil {
		return nil, &InputError{Err: fmt.Errorf("invalid JSON format: %w", err)}
	}
	if err := schemas.ValidateEmbedded(f.schema, compact.String()); err != nil {
		return nil, &InputError{Err: err}
	}
	answers := json.RawMessage(compact.Bytes())

	log := logging.Ctx(ctx).With().Str("session", sessionID).Str("field", f.name).Logger()
	if err := f.check(answers); err != nil {
		log.Warn().Err(err).Msg("storing answers that do not match the expected shape")
	}

	if err := s.store.MergeField(ctx, sessionID, f.name, answers, f.next); err != nil {
		log.Warn().Err(err).Msg("failed to merge answers")
		return nil, err
	}

	name, loc, err := s.saveSnapshot(ctx, f.snapshot, sessionID, answers)
	if err != nil {
		log.Error().Err(err).Str("snapshot", name).Msg("answers merged but snapshot failed")
		return nil, fmt.Errorf("failed to save snapshot: %w", err)
	}

	log.Info().Str("snapshot", loc).Msg("answers saved")
	return &SubmitResult{File: name, Location: loc}, nil
}

// maxSnapshotNames bounds how many numbered names are tried after a collision.
const maxSnapshotNames = 5

func (s *Service) saveSnapshot(ctx context.Context, kind, sessionID string, answers json.RawMessage) (string, string, error) {
	base := store.SnapshotName(kind, sessionID, s.now())
	name := base
	for n := 1; ; n++ {
		loc, err := s.snapshots.Save(ctx, name, answers)
		if !errors.Is(err, store.ErrSnapshotExists) || n >= maxSnapshotNames {
			return name, loc, err
		}
		name = store.NumberedSnapshotName(base, n)
	}
}

type analysisResult struct {
	analysis *types.Analysis
	raw      json.RawMessage
}

// FinalAnalysis asks the model for the recruiter summary of whatever answers the
// session has stored; a missing answer set is sent as an empty list. The result is
// not stored. Concurrent calls for one
// session share a single upstream request.
func (s *Service) FinalAnalysis(ctx context.Context, sessionID string) (*types.Analysis, json.RawMessage, error) {
	if err := store.ValidateSessionID(sessionID); err != nil {
		return nil, nil, err
	}

	ch := s.analyses.DoChan(sessionID, func() (any, error) {
		return s.finalAnalysis(context.WithoutCancel(ctx), sessionID)
	})
	select {
	case <-ctx.Done():
		return nil, nil, &llm.Error{Kind: llm.KindTimeout, Op: prompts.FinalAnalysis, Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return nil, nil, res.Err
		}
		out := res.Val.(*analysisResult)
		return out.analysis, out.raw, nil
	}
}

func (s *Service) finalAnalysis(ctx context.Context, sessionID string) (*analysisResult, error) {
	doc, err := s.readDocument(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	raw, err := s.generate(ctx, prompts.FinalAnalysis, map[string]string{
		"CustomizedAnswers": fieldOrEmptyList(doc, types.FieldCustomizedAnswers),
		"BehavioralAnswers": fieldOrEmptyList(doc, types.FieldBehavioralAnswers),
	}, schemas.Analysis, s.analysisTier)
	if err != nil {
		return nil, err
	}

	var analysis types.Analysis
	if err := json.Unmarshal(raw, &analysis); err != nil {
		return nil, &llm.Error{Kind: llm.KindMalformed, Op: prompts.FinalAnalysis, Err: err}
	}
	return &analysisResult{analysis: &analysis, raw: raw}, nil
}

// BehavioralQuestions returns the built-in question bank, or questions generated
// from the session's parsed experience when generate is set.
func (s *Service) BehavioralQuestions(ctx context.Context, sessionID string, generate bool) (*types.QuestionSet, error) {
	if !generate {
		return DefaultBehavioralQuestions(), nil
	}
	if err := store.ValidateSessionID(sessionID); err != nil {
		return nil, err
	}

	doc, err := s.readDocument(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	raw, err := s.generate(ctx, prompts.BehavioralQuestions, map[string]string{
		"ParsedExperience": string(doc[types.FieldParsedExperience]),
	}, schemas.Questions, s.generateTier)
	if err != nil {
		return nil, err
	}

	var set types.QuestionSet
	if err := json.Unmarshal(raw, &set); err != nil {
		return nil, &llm.Error{Kind: llm.KindMalformed, Op: prompts.BehavioralQuestions, Err: err}
	}
	return &set, nil
}

// Phase returns the stored phase of a session, or PhaseUpload when it has no report.
func (s *Service) Phase(ctx context.Context, sessionID string) (types.Phase, error) {
	doc, err := s.readDocument(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.PhaseUpload, nil
		}
		return "", err
	}
	return doc.Phase(), nil
}

func (s *Service) readDocument(ctx context.Context, sessionID string) (types.Document, error) {
	raw, err := s.store.Read(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return types.ParseDocument(raw)
}

// generate renders a prompt, calls the model and checks the reply against schema.
func (s *Service) generate(ctx context.Context, key string, data map[string]string, schema string, tier llm.ModelTier) (json.RawMessage, error) {
	prompt, err := prompts.Build(key, data)
	if err != nil {
		return nil, err
	}
	payload, err := s.llm.GenerateJSON(ctx, key, prompt, tier, func(p string) error {
		return schemas.ValidateEmbedded(schema, p)
	})
	if err != nil {
		return nil, err
	}
	return json.RawMessage(payload), nil
}

// fieldOrEmptyList renders a report field compactly, so the prompt text does
// not depend on how the backend formats stored JSON.
func fieldOrEmptyList(doc types.Document, field string) string {
	raw, ok := doc[field]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return "[]"
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return string(raw)
	}
	return compact.String()
}
