package ingestion

import (
	"regexp"
	"strings"
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	blankLineRun  = regexp.MustCompile(`\n\n\n+`)
)

// normalizeRow collapses whitespace inside one extracted text row.
func normalizeRow(row string) string {
	return whitespaceRun.ReplaceAllString(strings.TrimSpace(row), " ")
}

// CleanText normalizes extracted text for display: line endings become LF,
// trailing spaces are dropped, runs of blank lines shrink to one and the
// result is trimmed. Bullet markers are kept.
func CleanText(content string) string {
	if content == "" {
		return ""
	}

	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = cleanLine(line)
	}

	result := strings.Join(lines, "\n")
	result = blankLineRun.ReplaceAllString(result, "\n\n")
	return strings.TrimSpace(result)
}

func cleanLine(line string) string {
	if strings.TrimSpace(line) == "" {
		return ""
	}
	if isBulletLine(line) {
		return strings.TrimSpace(line)
	}
	return normalizeRow(line)
}

// isBulletLine checks if a line is a bullet list item
func isBulletLine(line string) bool {
	trimmed := strings.TrimLeft(line, " \t")
	return strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* ") ||
		strings.HasPrefix(trimmed, "• ") || strings.HasPrefix(trimmed, "· ")
}
