package resumeqa

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// DefaultTopK is how many chunks back an answer unless told otherwise.
const DefaultTopK = 5

// sectionWeights favours the sections most questions are about.
var sectionWeights = map[string]float64{
	"experience":           1.3,
	"work experience":      1.3,
	"employment":           1.3,
	"education":            1.2,
	"skills":               1.2,
	"technical skills":     1.2,
	"projects":             1.1,
	"certifications":       1.0,
	"summary":              0.9,
	"profile":              0.9,
	"professional summary": 0.9,
	"objective":            0.8,
}

// SectionWeight returns the ranking weight of a lower-cased section name.
func SectionWeight(section string) float64 {
	if w, ok := sectionWeights[section]; ok {
		return w
	}
	return 1.0
}

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}+#]+`)

var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true, "be": true,
	"by": true, "did": true, "do": true, "does": true, "for": true, "from": true, "has": true,
	"have": true, "he": true, "her": true, "his": true, "how": true, "i": true, "in": true,
	"is": true, "it": true, "of": true, "on": true, "or": true, "she": true, "that": true,
	"the": true, "their": true, "them": true, "they": true, "this": true, "to": true,
	"was": true, "were": true, "what": true, "when": true, "where": true, "which": true,
	"who": true, "with": true, "you": true, "your": true, "candidate": true, "resume": true,
}

// terms counts the lower-cased content words of text. A trailing plural "s"
// is dropped so that "projects" and "project" meet.
func terms(text string) map[string]float64 {
	counts := make(map[string]float64)
	for _, w := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		if stopWords[w] {
			continue
		}
		if len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") {
			w = w[:len(w)-1]
		}
		counts[w]++
	}
	return counts
}

func cosine(a, b map[string]float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var dot, na, nb float64
	for w, x := range a {
		dot += x * b[w]
		na += x * x
	}
	for _, y := range b {
		nb += y * y
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Match is a chunk scored against a question.
type Match struct {
	Chunk
	// Similarity is the raw term similarity in [0, 1].
	Similarity float64 `json:"similarity"`
	// Score is Similarity times the section weight; matches sort on it.
	Score float64 `json:"score"`
}

// Rank scores every chunk against question and returns the best topK, highest
// score first. Ties keep document order. topK <= 0 returns every chunk.
func Rank(chunks []Chunk, question string, topK int) []Match {
	q := terms(question)
	matches := make([]Match, len(chunks))
	for i, c := range chunks {
		sim := cosine(q, terms(c.Text))
		matches[i] = Match{Chunk: c, Similarity: sim, Score: sim * SectionWeight(c.Section)}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if topK > 0 && topK < len(matches) {
		matches = matches[:topK]
	}
	return matches
}
