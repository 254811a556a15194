// Package transform converts one canonically stored value into the textual
// variant a target control expects. Transformers only read the target's
// FieldContext; a value no transformer can handle passes through unchanged.
package transform

import (
	"sync"

	"go.uber.org/zap"

	"github.com/a3tai/mcp-form-reader/internal/form"
	"github.com/a3tai/mcp-form-reader/internal/textnorm"
)

// Transformer converts values for a family of taxonomies
type Transformer interface {
	Name() string
	// Types lists the source and target taxonomies the transformer serves
	Types() []form.Taxonomy
	CanTransform(value string, target *form.FieldContext) bool
	Transform(value string, target *form.FieldContext) string
}

// Request describes one conversion. TargetType is optional and widens the
// set of transformers considered.
type Request struct {
	Value      string             `json:"value"`
	Source     form.Taxonomy      `json:"source"`
	TargetType form.Taxonomy      `json:"target_type,omitempty"`
	Target     *form.FieldContext `json:"target"`
}

// Result is the outcome of Apply
type Result struct {
	Value       string `json:"value"`
	Transformer string `json:"transformer,omitempty"`
	Changed     bool   `json:"changed"`
}

// Registry dispatches to registered transformers in registration order
type Registry struct {
	mu           sync.RWMutex
	transformers []Transformer
	logger       *zap.Logger
}

// NewRegistry creates an empty registry
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{logger: logger}
}

// Default creates a registry with the built-in transformers
func Default(logger *zap.Logger) *Registry {
	r := NewRegistry(logger)
	r.Register(NewNameTransformer())
	r.Register(NewDateTransformer())
	r.Register(NewPhoneTransformer())
	r.Register(NewBooleanTransformer())
	r.Register(NewDegreeTransformer())
	return r
}

// Register appends a transformer
func (r *Registry) Register(t Transformer) {
	r.mu.Lock()
	r.transformers = append(r.transformers, t)
	r.mu.Unlock()
}

// Names lists the registered transformers in dispatch order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.transformers))
	for i, t := range r.transformers {
		out[i] = t.Name()
	}
	return out
}

// Transform returns the value the target should receive for a source value of type source
func (r *Registry) Transform(value string, source form.Taxonomy, target *form.FieldContext) string {
	return r.Apply(Request{Value: value, Source: source, Target: target}).Value
}

// Apply runs the first transformer that serves the requested types and
// reports it can handle the value
func (r *Registry) Apply(req Request) Result {
	if req.Target == nil {
		return Result{Value: req.Value}
	}

	r.mu.RLock()
	candidates := make([]Transformer, len(r.transformers))
	copy(candidates, r.transformers)
	r.mu.RUnlock()

	for _, t := range candidates {
		if !serves(t, req.Source, req.TargetType) {
			continue
		}
		if !t.CanTransform(req.Value, req.Target) {
			continue
		}
		out := t.Transform(req.Value, req.Target)
		r.logger.Debug("value transformed",
			zap.String("transformer", t.Name()),
			zap.String("source", string(req.Source)),
			zap.String("locator", req.Target.Locator))
		return Result{Value: out, Transformer: t.Name(), Changed: out != req.Value}
	}
	return Result{Value: req.Value}
}

func serves(t Transformer, types ...form.Taxonomy) bool {
	for _, have := range t.Types() {
		for _, want := range types {
			if want != "" && have == want {
				return true
			}
		}
	}
	return false
}

// targetTexts returns the normalized label, humanized name and id, and
// placeholder of a target, in that order of authority
func targetTexts(target *form.FieldContext) []string {
	var out []string
	for _, s := range []string{
		textnorm.Normalize(target.LabelText),
		textnorm.Humanize(target.Name()),
		textnorm.Humanize(target.ID()),
		textnorm.Normalize(target.Placeholder()),
	} {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// hasOptions reports whether the target picks from a live option set
func hasOptions(target *form.FieldContext) bool {
	return len(target.OptionsText) > 0
}
