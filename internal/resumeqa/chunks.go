package resumeqa

import (
	"regexp"
	"strings"
)

// ChunkKind tells how a chunk was cut from its section.
type ChunkKind string

const (
	KindHeader  ChunkKind = "header"
	KindBullets ChunkKind = "bullets"
	KindText    ChunkKind = "text"
)

// maxChunkWords caps the words grouped into one chunk. A single bullet or
// sentence longer than this still forms its own chunk.
const maxChunkWords = 100

// Chunk is a retrievable piece of a section. Section is lower-cased.
type Chunk struct {
	Text    string    `json:"text"`
	Section string    `json:"section"`
	Kind    ChunkKind `json:"kind"`
}

var (
	bulletStart = regexp.MustCompile(`^\s*(?:[-*•●◦▪▫·]|\d+\.|[a-z]\)|\([A-Za-z0-9]+\))\s+`)
	sentenceEnd = regexp.MustCompile(`[.!?]+(?:\s+|$)`)
)

// BuildChunks turns every section into a header chunk followed by groups of
// its bullets, or of its sentences when the section has no bullets.
func BuildChunks(sections []Section) []Chunk {
	var chunks []Chunk
	for _, s := range sections {
		name := strings.ToLower(s.Name)
		chunks = append(chunks, Chunk{Text: s.Name, Section: name, Kind: KindHeader})

		body := sectionBody(s)
		kind := KindBullets
		pieces := bullets(body)
		if len(pieces) == 0 {
			kind = KindText
			pieces = sentences(body)
		}
		for _, text := range group(pieces) {
			chunks = append(chunks, Chunk{Text: text, Section: name, Kind: kind})
		}
	}
	return chunks
}

// sectionBody drops the header line unless it also carries content after a colon.
func sectionBody(s Section) string {
	if s.Name == DefaultSection {
		return s.Content
	}
	first, rest, _ := strings.Cut(s.Content, "\n")
	if _, after, ok := strings.Cut(first, ":"); ok && strings.TrimSpace(after) != "" {
		return strings.TrimSpace(after) + "\n" + rest
	}
	return rest
}

// bullets collects bullet items. Lines following a bullet belong to it until
// the next bullet or a blank line.
func bullets(body string) []string {
	var items []string
	open := false
	for _, line := range strings.Split(body, "\n") {
		switch {
		case bulletStart.MatchString(line):
			items = append(items, strings.TrimSpace(bulletStart.ReplaceAllString(line, "")))
			open = true
		case strings.TrimSpace(line) == "":
			open = false
		case open:
			items[len(items)-1] += " " + strings.TrimSpace(line)
		}
	}

	kept := items[:0]
	for _, item := range items {
		if item != "" {
			kept = append(kept, item)
		}
	}
	return kept
}

func sentences(body string) []string {
	flat := strings.Join(strings.Fields(body), " ")
	var out []string
	start := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(flat, -1) {
		if s := strings.TrimSpace(flat[start:loc[1]]); s != "" {
			out = append(out, s)
		}
		start = loc[1]
	}
	if s := strings.TrimSpace(flat[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

// group joins consecutive pieces while they stay within maxChunkWords.
func group(pieces []string) []string {
	var (
		out   []string
		cur   []string
		words int
	)
	for _, p := range pieces {
		n := len(strings.Fields(p))
		if len(cur) > 0 && words+n > maxChunkWords {
			out = append(out, strings.Join(cur, " "))
			cur, words = nil, 0
		}
		cur = append(cur, p)
		words += n
	}
	if len(cur) > 0 {
		out = append(out, strings.Join(cur, " "))
	}
	return out
}
