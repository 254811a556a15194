// Package classifier infers the semantic taxonomy of a FieldContext by running
// a priority-ordered registry of signal parsers and merging their candidates.
package classifier

import (
	"fmt"

	"github.com/a3tai/mcp-form-reader/internal/form"
)

// Weights are the behavior-defining confidence constants. Only their relative
// order is a contract: Autocomplete > Type > Name > Label, and agreement
// between two signals outranks either alone.
type Weights struct {
	Autocomplete float64 `json:"autocomplete" yaml:"autocomplete"`
	Type         float64 `json:"type" yaml:"type"`
	Name         float64 `json:"name" yaml:"name"`
	Label        float64 `json:"label" yaml:"label"`
	DateFallback float64 `json:"date_fallback" yaml:"date_fallback"`
	Agreement    float64 `json:"agreement" yaml:"agreement"`
	Section      float64 `json:"section" yaml:"section"`
}

// DefaultWeights returns the standard confidence constants
func DefaultWeights() Weights {
	return Weights{
		Autocomplete: 0.95,
		Type:         0.85,
		Name:         0.75,
		Label:        0.65,
		DateFallback: 0.5,
		Agreement:    0.1,
		Section:      0.15,
	}
}

// Validate checks ranges and the signal ordering
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"autocomplete":  w.Autocomplete,
		"type":          w.Type,
		"name":          w.Name,
		"label":         w.Label,
		"date_fallback": w.DateFallback,
	} {
		if v <= 0 || v > 1 {
			return fmt.Errorf("weight %s must be in (0,1], got %v", name, v)
		}
	}
	if w.Agreement < 0 || w.Agreement > 1 || w.Section < 0 || w.Section > 1 {
		return fmt.Errorf("boosts must be in [0,1], got agreement=%v section=%v", w.Agreement, w.Section)
	}
	if !(w.Autocomplete >= w.Type && w.Type >= w.Name && w.Name >= w.Label) {
		return fmt.Errorf("weights must satisfy autocomplete >= type >= name >= label")
	}
	return nil
}

// Parser is one independent signal extractor. Parse returns at most one
// candidate per field.
type Parser interface {
	Name() string
	// Priority orders parsers; lower runs first. Earlier parsers own a type
	// and later agreeing parsers merge into it.
	Priority() int
	Parse(field *form.FieldContext) (form.CandidateType, bool)
}

// MergePolicy decides what happens when a parser names a type an earlier
// parser already produced
type MergePolicy int

const (
	// MergeBoost adds the agreement boost and appends reasons
	MergeBoost MergePolicy = iota
	// MergeDrop discards the later candidate as redundant
	MergeDrop
)

// PolicyParser is implemented by parsers that do not use MergeBoost
type PolicyParser interface {
	Parser
	MergePolicy() MergePolicy
}

// Rule maps an ordered set of patterns to a taxonomy. Any pattern matching
// fires the rule unless an exclude pattern also matches.
type Rule struct {
	Type     form.Taxonomy
	Patterns []string
	Exclude  []string
}

// SectionBoost raises the label score of Types when the section title matches Pattern
type SectionBoost struct {
	Pattern string
	Types   []form.Taxonomy
}
