package resumeqa

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jonathan/candidate-intake/internal/llm"
	"github.com/jonathan/candidate-intake/internal/logging"
	"github.com/jonathan/candidate-intake/internal/prompts"
)

var (
	// ErrEmptyResume is returned when the resume yields no text.
	ErrEmptyResume = errors.New("resume has no text")
	// ErrEmptyQuestion is returned for a blank question.
	ErrEmptyQuestion = errors.New("question is empty")
)

// Index holds one resume prepared for questions.
type Index struct {
	Contact  Contact
	Sections []Section
	Chunks   []Chunk
}

// NewIndex splits cleaned resume text into sections and chunks.
func NewIndex(text string) (*Index, error) {
	sections := SplitSections(text)
	if len(sections) == 0 {
		return nil, ErrEmptyResume
	}
	ix := &Index{
		Contact:  ExtractContact(text),
		Sections: sections,
		Chunks:   BuildChunks(sections),
	}
	logging.Debug().
		Int("sections", len(ix.Sections)).
		Int("chunks", len(ix.Chunks)).
		Msg("resume indexed")
	return ix, nil
}

// SectionNames lists the sections in document order.
func (ix *Index) SectionNames() []string {
	names := make([]string, len(ix.Sections))
	for i, s := range ix.Sections {
		names[i] = s.Name
	}
	return names
}

// Retrieve returns the topK chunks most related to question.
func (ix *Index) Retrieve(question string, topK int) []Match {
	return Rank(ix.Chunks, question, topK)
}

// Answer is the model's reply and the excerpts it was given.
type Answer struct {
	Question string  `json:"question"`
	Text     string  `json:"answer"`
	Matches  []Match `json:"matches"`
}

// Ask retrieves the topK chunks for question and has the model answer from them.
func (ix *Index) Ask(ctx context.Context, client llm.Client, question string, topK int) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	matches := ix.Retrieve(question, topK)
	prompt, err := prompts.Build(prompts.ResumeQuestion, map[string]string{
		"Contact":  ix.Contact.String(),
		"Excerpts": formatExcerpts(matches),
		"Question": question,
	})
	if err != nil {
		return nil, err
	}

	text, err := client.GenerateContent(ctx, prompt, llm.TierLite)
	if err != nil {
		return nil, fmt.Errorf("failed to answer question: %w", err)
	}
	return &Answer{Question: question, Text: strings.TrimSpace(text), Matches: matches}, nil
}

func formatExcerpts(matches []Match) string {
	var b strings.Builder
	for i, m := range matches {
		fmt.Fprintf(&b, "[%d] (%s) %s\n", i+1, m.Section, m.Text)
	}
	return strings.TrimSuffix(b.String(), "\n")
}
