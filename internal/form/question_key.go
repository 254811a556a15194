package form

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/a3tai/mcp-form-reader/internal/textnorm"
)

// QuestionKey fingerprints a recurring question independent of any one instance
type QuestionKey struct {
	ID            string   `json:"id"`
	Type          Taxonomy `json:"type"`
	Phrases       []string `json:"phrases"`
	SectionHints  []string `json:"section_hints,omitempty"`
	ChoiceSetHash string   `json:"choice_set_hash,omitempty"`
}

// NewQuestionKey derives a question key for field classified as t
func NewQuestionKey(id string, t Taxonomy, field *FieldContext) QuestionKey {
	qk := QuestionKey{ID: id, Type: t, Phrases: []string{}}
	if field == nil {
		return qk
	}

	qk.Phrases = dedupNormalized(field.LabelText, field.Name(), field.ID(), field.Placeholder())
	if hints := dedupNormalized(field.SectionTitle); len(hints) > 0 {
		qk.SectionHints = hints
	}
	qk.ChoiceSetHash = ChoiceSetHash(field.OptionsText)
	return qk
}

// ChoiceSetHash digests the normalized, sorted, deduplicated option texts.
// Empty option sets hash to "".
func ChoiceSetHash(options []string) string {
	set := dedupNormalized(options...)
	if len(set) == 0 {
		return ""
	}
	sort.Strings(set)
	sum := sha256.Sum256([]byte(strings.Join(set, "\n")))
	return hex.EncodeToString(sum[:16])
}

func dedupNormalized(values ...string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		n := textnorm.Normalize(v)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
