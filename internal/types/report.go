// Package types provides type definitions for the candidate report and its pipeline stages.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"encoding/json"
	"fmt"
)

// Top-level report fields.
const (
	FieldParsedExperience    = "parsedExperience"
	FieldCustomizedQuestions = "customizedQuestions"
	FieldCustomizedAnswers   = "customizedAnswers"
	FieldBehavioralAnswers   = "behavioralAnswers"

	FieldSessionID = "sessionId"
	FieldPhase     = "phase"
	FieldUpdatedAt = "updatedAt"
)

// IsDataField reports whether name is one of the four pipeline fields a merge may set.
func IsDataField(name string) bool {
	switch name {
	case FieldParsedExperience, FieldCustomizedQuestions, FieldCustomizedAnswers, FieldBehavioralAnswers:
		return true
	}
	return false
}

// ExperienceItem is one free-form entry of an Experience or Projects list
// (Role, Company, Location, Dates, Responsibilities, Name, Description, ...).
type ExperienceItem map[string]any

// ParsedExperience is the structured experience extracted from resume text.
type ParsedExperience struct {
	Experience []ExperienceItem `json:"Experience"`
	Projects   []ExperienceItem `json:"Projects"`
	Roles      []any            `json:"Roles"`
}

// Question is a customized multiple-choice question.
type Question struct {
	Question string   `json:"question"`
	BasedOn  string   `json:"basedOn"`
	Options  []string `json:"options"`
}

// QuestionSet wraps questions the way the model returns them.
type QuestionSet struct {
	Questions []Question `json:"questions"`
}

// Analysis is the recruiter-facing executive summary.
type Analysis struct {
	LoyaltyPercent       float64 `json:"loyaltyPercent"`
	EmotionalIQPercent   float64 `json:"emotionalIQPercent"`
	CompanyGrowthPercent float64 `json:"companyGrowthPercent"`
	ResultsFocusPercent  float64 `json:"resultsFocusPercent"`
	AverageResponseTime  float64 `json:"averageResponseTime"`
	InstinctivenessScore string  `json:"instinctivenessScore"`
	OverallAnalysis      string  `json:"overallAnalysis"`
	DesirabilityScore    float64 `json:"desirabilityScore"`
}

// Report is the typed view of a stored report document.
type Report struct {
	SessionID           string             `json:"sessionId,omitempty"`
	Phase               Phase              `json:"phase,omitempty"`
	UpdatedAt           string             `json:"updatedAt,omitempty"`
	ParsedExperience    *ParsedExperience  `json:"parsedExperience,omitempty"`
	CustomizedQuestions *QuestionSet       `json:"customizedQuestions,omitempty"`
	CustomizedAnswers   []CustomizedAnswer `json:"customizedAnswers,omitempty"`
	BehavioralAnswers   []BehavioralAnswer `json:"behavioralAnswers,omitempty"`
}

// Document is a report as stored: a JSON object whose fields are kept verbatim.
// Fields this package does not know about survive a merge untouched.
type Document map[string]json.RawMessage

// ParseDocument decodes a stored report. Empty input yields an empty document.
func ParseDocument(data []byte) (Document, error) {
	doc := Document{}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return doc, nil
}

// Set marshals value into field.
func (d Document) Set(field string, value any) error {
	raw, ok := value.(json.RawMessage)
	if !ok {
		b, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to marshal %s: %w", field, err)
		}
		raw = b
	}
	d[field] = raw
	return nil
}

// Phase returns the stored phase, or PhaseUpload when absent or unreadable.
func (d Document) Phase() Phase {
	raw, ok := d[FieldPhase]
	if !ok {
		return PhaseUpload
	}
	var p Phase
	if err := json.Unmarshal(raw, &p); err != nil || !p.Valid() {
		return PhaseUpload
	}
	return p
}

// Marshal encodes the document with two-space indentation.
func (d Document) Marshal() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// Report decodes the typed view. Fields with unexpected shapes produce an error.
func (d Document) Report() (*Report, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	var r Report
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}
	return &r, nil
}
