package classifier

import (
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/a3tai/mcp-form-reader/internal/form"
)

// Classifier runs registered parsers in priority order and merges their
// candidates. It is safe for concurrent use.
type Classifier struct {
	mu      sync.RWMutex
	parsers []Parser
	weights Weights
	logger  *zap.Logger

	name  *ruleParser
	label *ruleParser
}

// New creates a classifier with the built-in parsers and default weights
func New(logger *zap.Logger) *Classifier {
	return NewWithWeights(logger, DefaultWeights())
}

// NewWithWeights creates a classifier with custom confidence constants
func NewWithWeights(logger *zap.Logger, w Weights) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Classifier{
		weights: w,
		logger:  logger,
		name:    newNameParser(w.Name),
		label:   newLabelParser(w.Label, w.Section),
	}
	c.Register(&autocompleteParser{score: w.Autocomplete})
	c.Register(&typeParser{score: w.Type, fallback: w.DateFallback})
	c.Register(c.name)
	c.Register(c.label)
	return c
}

// Register adds a parser. Parsers with equal priority keep registration order.
func (c *Classifier) Register(p Parser) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.parsers = append(c.parsers, p)
	sort.SliceStable(c.parsers, func(i, j int) bool {
		return c.parsers[i].Priority() < c.parsers[j].Priority()
	})
}

// Parsers returns the registered parser names in evaluation order
func (c *Classifier) Parsers() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, len(c.parsers))
	for i, p := range c.parsers {
		names[i] = p.Name()
	}
	return names
}

// Weights returns the confidence constants in use
func (c *Classifier) Weights() Weights {
	return c.weights
}

// Classify returns candidates sorted by descending score. The list is never
// empty: a single UNKNOWN candidate with score 0 means no parser matched.
func (c *Classifier) Classify(field *form.FieldContext) []form.CandidateType {
	if field == nil {
		return []form.CandidateType{unknown()}
	}

	c.mu.RLock()
	parsers := make([]Parser, len(c.parsers))
	copy(parsers, c.parsers)
	c.mu.RUnlock()

	var out []form.CandidateType
	index := make(map[form.Taxonomy]int)
	for _, p := range parsers {
		cand, ok := p.Parse(field)
		if !ok || cand.Type == "" || cand.Type == form.TaxonomyUnknown {
			continue
		}
		cand.Score = round(clamp(cand.Score))

		i, exists := index[cand.Type]
		if !exists {
			index[cand.Type] = len(out)
			out = append(out, cand)
			continue
		}
		if policyOf(p) == MergeDrop {
			continue
		}
		out[i].Score = round(clamp(out[i].Score + c.weights.Agreement))
		out[i].Reasons = append(out[i].Reasons, cand.Reasons...)
	}

	if len(out) == 0 {
		return []form.CandidateType{unknown()}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })

	c.logger.Debug("field classified",
		zap.String("locator", field.Locator),
		zap.String("type", string(out[0].Type)),
		zap.Float64("score", out[0].Score))
	return out
}

// Best returns the top candidate
func (c *Classifier) Best(field *form.FieldContext) form.CandidateType {
	return c.Classify(field)[0]
}

func policyOf(p Parser) MergePolicy {
	if pp, ok := p.(PolicyParser); ok {
		return pp.MergePolicy()
	}
	return MergeBoost
}

func unknown() form.CandidateType {
	return form.CandidateType{
		Type:    form.TaxonomyUnknown,
		Score:   0,
		Reasons: []string{"no signal matched"},
	}
}

// round trims float noise from repeated boosts
func round(v float64) float64 {
	return math.Round(v*1000) / 1000
}
