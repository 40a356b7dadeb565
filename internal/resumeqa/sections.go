// Package resumeqa answers free-form questions about a single resume. The
// extracted text is split into sections and small chunks, the chunks closest
// to the question are selected and the model answers from those alone.
package resumeqa

import (
	"regexp"
	"strings"
)

// DefaultSection names the whole text when no section header is found.
const DefaultSection = "Resume"

// Section is one headed block of a resume. Content includes the header line.
type Section struct {
	Name    string
	Content string
}

var sectionHeaders = []string{
	"Education", "Experience", "Work Experience", "Employment",
	"Skills", "Technical Skills", "Projects", "Certifications",
	"Awards", "Achievements", "Publications", "Languages",
	"Volunteer", "Leadership", "Activities", "Interests",
	"Professional Summary", "Summary", "Objective", "Profile",
	"References", "Personal Information", "Contact", "Internships",
	"Professional Experience", "Work History", "Career Experience",
	"Academic Background", "Qualifications", "Core Competencies",
	"Professional Development", "Training", "Research", "Patents",
	"Expertise", "Relevant Experience", "Academic Projects",
	"Additional Skills", "Tools", "Technologies",
}

// headerLine matches a line holding only a known header, optionally followed by a colon.
var headerLine = func() *regexp.Regexp {
	quoted := make([]string, len(sectionHeaders))
	for i, h := range sectionHeaders {
		quoted[i] = regexp.QuoteMeta(h)
	}
	return regexp.MustCompile(`(?im)^[ \t]*(` + strings.Join(quoted, "|") + `)[ \t]*(?::|$)`)
}()

// SplitSections cuts text at every known header line. Text before the first
// header is dropped unless no header is found at all, in which case the whole
// text becomes a single DefaultSection. A header seen twice keeps its last block.
func SplitSections(text string) []Section {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	matches := headerLine.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return []Section{{Name: DefaultSection, Content: text}}
	}

	sections := make([]Section, 0, len(matches))
	index := make(map[string]int, len(matches))
	for i, m := range matches {
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		s := Section{
			Name:    strings.TrimSpace(text[m[2]:m[3]]),
			Content: strings.TrimSpace(text[m[0]:end]),
		}
		key := strings.ToLower(s.Name)
		if at, ok := index[key]; ok {
			sections[at] = s
			continue
		}
		index[key] = len(sections)
		sections = append(sections, s)
	}
	return sections
}

// Contact is the identifying information found at the top of a resume.
type Contact struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	LinkedIn string `json:"linkedin,omitempty"`
}

var (
	emailPattern    = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phonePattern    = regexp.MustCompile(`(?:\+\d{1,3}[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)
	linkedInPattern = regexp.MustCompile(`(?i)linkedin\.com/\S+`)
)

// maxNameWords bounds the first line taken as the candidate's name.
const maxNameWords = 5

// ExtractContact reads the name from the first non-empty line among the first
// few and the email, phone and LinkedIn URL from anywhere in text.
func ExtractContact(text string) Contact {
	var c Contact
	for _, line := range strings.SplitN(strings.TrimSpace(text), "\n", 5) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(strings.Fields(line)) <= maxNameWords && !headerLine.MatchString(line) {
			c.Name = line
		}
		break
	}
	c.Email = emailPattern.FindString(text)
	c.Phone = phonePattern.FindString(text)
	c.LinkedIn = linkedInPattern.FindString(text)
	return c
}

// String renders the non-empty fields one per line.
func (c Contact) String() string {
	var b strings.Builder
	for _, f := range [][2]string{{"Name", c.Name}, {"Email", c.Email}, {"Phone", c.Phone}, {"LinkedIn", c.LinkedIn}} {
		if f[1] != "" {
			b.WriteString(f[0] + ": " + f[1] + "\n")
		}
	}
	if b.Len() == 0 {
		return "unknown"
	}
	return strings.TrimSuffix(b.String(), "\n")
}
