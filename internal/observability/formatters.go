// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/candidate-intake/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// truncate shortens s to n runes, marking the cut with "...".
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}

// field returns a string field of a free-form experience entry.
func field(item types.ExperienceItem, key string) string {
	if v, ok := item[key].(string); ok {
		return v
	}
	return ""
}

// PrintParsedExperience outputs the roles and projects read from a resume.
func (p *Printer) PrintParsedExperience(exp *types.ParsedExperience) {
	if exp == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Roles: %d   Projects: %d\n", len(exp.Experience), len(exp.Projects)))

	count := min(len(exp.Experience), maxItemsToShow)
	for i := 0; i < count; i++ {
		item := exp.Experience[i]
		sb.WriteString("\n")
		title := field(item, "Role")
		if company := field(item, "Company"); company != "" {
			title += " at " + company
		}
		sb.WriteString(fmt.Sprintf("• %s\n", title))
		if dates := field(item, "Dates"); dates != "" {
			sb.WriteString(fmt.Sprintf("  %s\n", dates))
		}
	}
	if len(exp.Experience) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more roles\n", len(exp.Experience)-maxItemsToShow))
	}

	if len(exp.Projects) > 0 {
		sb.WriteString("\nProjects:\n")
		count := min(len(exp.Projects), 3)
		for i := 0; i < count; i++ {
			name := field(exp.Projects[i], "Role")
			if name == "" {
				name = field(exp.Projects[i], "Name")
			}
			sb.WriteString(fmt.Sprintf("  • %s\n", name))
		}
		if len(exp.Projects) > 3 {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(exp.Projects)-3))
		}
	}

	p.printBox("PARSED EXPERIENCE", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintQuestions outputs a question set with its options.
func (p *Printer) PrintQuestions(title string, set *types.QuestionSet) {
	if set == nil || len(set.Questions) == 0 {
		return
	}

	var sb strings.Builder
	for i, q := range set.Questions {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, q.Question))
		if q.BasedOn != "" {
			sb.WriteString(fmt.Sprintf("   (based on %s)\n", q.BasedOn))
		}
		for j, option := range q.Options {
			sb.WriteString(fmt.Sprintf("   %c) %s\n", 'a'+j, option))
		}
		if i < len(set.Questions)-1 {
			sb.WriteString("\n")
		}
	}

	p.printBox(title, strings.TrimSuffix(sb.String(), "\n"))
}

// PrintAnswers outputs the submitted answers of a report.
func (p *Printer) PrintAnswers(customized []types.CustomizedAnswer, behavioral []types.BehavioralAnswer) {
	if len(customized) == 0 && len(behavioral) == 0 {
		return
	}

	var sb strings.Builder
	if len(customized) > 0 {
		sb.WriteString(fmt.Sprintf("Customized (%d):\n", len(customized)))
		for _, a := range customized {
			sb.WriteString(fmt.Sprintf("  • %s\n    → %s\n", a.Question, a.SelectedAnswer))
		}
	}
	if len(behavioral) > 0 {
		if len(customized) > 0 {
			sb.WriteString("\n")
		}
		avg := types.BehavioralAnswers(behavioral).AverageResponseTime()
		sb.WriteString(fmt.Sprintf("Behavioral (%d, avg %.1fs):\n", len(behavioral), avg))
		for _, a := range behavioral {
			sb.WriteString(fmt.Sprintf("  • %s\n    → %s (%.1fs)\n", a.Question, a.Answer, a.ResponseTime))
		}
	}

	p.printBox("ANSWERS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintAnalysis outputs the recruiter analysis scores and summary.
func (p *Printer) PrintAnalysis(a *types.Analysis) {
	if a == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Desirability:      %.0f\n", a.DesirabilityScore))
	sb.WriteString(fmt.Sprintf("Loyalty:           %.0f%%\n", a.LoyaltyPercent))
	sb.WriteString(fmt.Sprintf("Emotional IQ:      %.0f%%\n", a.EmotionalIQPercent))
	sb.WriteString(fmt.Sprintf("Company growth:    %.0f%%\n", a.CompanyGrowthPercent))
	sb.WriteString(fmt.Sprintf("Results focus:     %.0f%%\n", a.ResultsFocusPercent))
	sb.WriteString(fmt.Sprintf("Avg response time: %.1fs\n", a.AverageResponseTime))
	sb.WriteString(fmt.Sprintf("Instinctiveness:   %s\n", a.InstinctivenessScore))
	sb.WriteString("\n")
	sb.WriteString(wrap(a.OverallAnalysis, boxWidth-4))

	p.printBox("RECRUITER ANALYSIS", sb.String())
}

// PrintReport outputs every populated section of a stored report.
func (p *Printer) PrintReport(r *types.Report) {
	if r == nil {
		return
	}
	p.printBox("REPORT", fmt.Sprintf("Session: %s\nPhase:   %s\nUpdated: %s", r.SessionID, r.Phase, r.UpdatedAt))
	p.PrintParsedExperience(r.ParsedExperience)
	p.PrintQuestions("CUSTOMIZED QUESTIONS", r.CustomizedQuestions)
	p.PrintAnswers(r.CustomizedAnswers, r.BehavioralAnswers)
}

// wrap breaks text into lines of at most width runes at word boundaries.
func wrap(text string, width int) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}

	var sb strings.Builder
	lineLen := 0
	for _, w := range words {
		n := len([]rune(w))
		if lineLen > 0 && lineLen+1+n > width {
			sb.WriteString("\n")
			lineLen = 0
		} else if lineLen > 0 {
			sb.WriteString(" ")
			lineLen++
		}
		sb.WriteString(w)
		lineLen += n
	}
	return sb.String()
}
