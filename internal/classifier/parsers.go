package classifier

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/a3tai/mcp-form-reader/internal/form"
	"github.com/a3tai/mcp-form-reader/internal/textnorm"
)

// Built-in parser priorities
const (
	PriorityAutocomplete = 10
	PriorityType         = 20
	PriorityName         = 30
	PriorityLabel        = 40
)

// compiledRule is a Rule with its patterns compiled
type compiledRule struct {
	typ      form.Taxonomy
	patterns []*regexp.Regexp
	exclude  []*regexp.Regexp
	section  *regexp.Regexp
}

func compileRule(r Rule) (compiledRule, error) {
	cr := compiledRule{typ: r.Type}
	for _, p := range r.Patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return cr, fmt.Errorf("invalid pattern %q for %s: %w", p, r.Type, err)
		}
		cr.patterns = append(cr.patterns, re)
	}
	for _, p := range r.Exclude {
		re, err := regexp.Compile(p)
		if err != nil {
			return cr, fmt.Errorf("invalid exclude pattern %q for %s: %w", p, r.Type, err)
		}
		cr.exclude = append(cr.exclude, re)
	}
	return cr, nil
}

func mustCompileRules(rules []Rule) []compiledRule {
	out := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		cr, err := compileRule(r)
		if err != nil {
			panic(err)
		}
		out = append(out, cr)
	}
	return out
}

// match returns the first pattern that fires on text
func (r compiledRule) match(text string) (*regexp.Regexp, bool) {
	for _, ex := range r.exclude {
		if ex.MatchString(text) {
			return nil, false
		}
	}
	for _, re := range r.patterns {
		if re.MatchString(text) {
			return re, true
		}
	}
	return nil, false
}

// firstMatch evaluates rules top to bottom
func firstMatch(rules []compiledRule, text string) (compiledRule, *regexp.Regexp, bool) {
	if text == "" {
		return compiledRule{}, nil, false
	}
	for _, r := range rules {
		if re, ok := r.match(text); ok {
			return r, re, true
		}
	}
	return compiledRule{}, nil, false
}

// autocompleteParser looks the autocomplete attribute up in a fixed table
type autocompleteParser struct {
	score float64
}

func (p *autocompleteParser) Name() string  { return "autocomplete" }
func (p *autocompleteParser) Priority() int { return PriorityAutocomplete }

func (p *autocompleteParser) Parse(field *form.FieldContext) (form.CandidateType, bool) {
	raw := strings.ToLower(strings.TrimSpace(field.Autocomplete()))
	if raw == "" || raw == "off" || raw == "on" {
		return form.CandidateType{}, false
	}
	// "section-x shipping tel" carries the field name last
	tokens := strings.Fields(raw)
	for i := len(tokens) - 1; i >= 0; i-- {
		if t, ok := autocompleteTypes[tokens[i]]; ok {
			return form.CandidateType{
				Type:    t,
				Score:   p.score,
				Reasons: []string{fmt.Sprintf("autocomplete=%q", tokens[i])},
			}, true
		}
	}
	return form.CandidateType{}, false
}

// typeParser reads the input type and falls back to GRAD_DATE for date widgets
type typeParser struct {
	score    float64
	fallback float64
}

func (p *typeParser) Name() string             { return "widget_type" }
func (p *typeParser) Priority() int            { return PriorityType }
func (p *typeParser) MergePolicy() MergePolicy { return MergeDrop }

func (p *typeParser) Parse(field *form.FieldContext) (form.CandidateType, bool) {
	typ := field.Type()
	if t, ok := inputTypes[typ]; ok {
		return form.CandidateType{
			Type:    t,
			Score:   p.score,
			Reasons: []string{fmt.Sprintf("type=%q", typ)},
		}, true
	}
	if field.WidgetSignature.Kind == form.WidgetDate {
		return form.CandidateType{
			Type:    form.TaxonomyGradDate,
			Score:   p.fallback,
			Reasons: []string{fmt.Sprintf("date widget (type=%q)", typ)},
		}, true
	}
	return form.CandidateType{}, false
}

// ruleParser runs an ordered rule table against one text view of the field
type ruleParser struct {
	name     string
	priority int
	score    float64
	text     func(*form.FieldContext) string
	rules    []compiledRule
	boosts   []compiledBoost
	boost    float64

	mu     sync.RWMutex
	custom []compiledRule // evaluated before rules
}

// addCustom appends rules that take precedence over the built-in table
func (p *ruleParser) addCustom(rules ...compiledRule) {
	p.mu.Lock()
	p.custom = append(p.custom, rules...)
	p.mu.Unlock()
}

func (p *ruleParser) customRules() []compiledRule {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.custom
}

type compiledBoost struct {
	pattern *regexp.Regexp
	types   map[form.Taxonomy]bool
}

func compileBoosts(boosts []SectionBoost) []compiledBoost {
	out := make([]compiledBoost, 0, len(boosts))
	for _, b := range boosts {
		cb := compiledBoost{pattern: regexp.MustCompile(b.Pattern), types: make(map[form.Taxonomy]bool)}
		for _, t := range b.Types {
			cb.types[t] = true
		}
		out = append(out, cb)
	}
	return out
}

func newNameParser(score float64) *ruleParser {
	return &ruleParser{
		name:     "name_id",
		priority: PriorityName,
		score:    score,
		text:     nameIDText,
		rules:    mustCompileRules(nameRules),
	}
}

func newLabelParser(score, boost float64) *ruleParser {
	return &ruleParser{
		name:     "label",
		priority: PriorityLabel,
		score:    score,
		text:     labelText,
		rules:    mustCompileRules(labelRules),
		boosts:   compileBoosts(sectionBoosts),
		boost:    boost,
	}
}

func nameIDText(field *form.FieldContext) string {
	return strings.TrimSpace(strings.ToLower(field.Name() + " " + field.ID()))
}

func labelText(field *form.FieldContext) string {
	return textnorm.Normalize(field.LabelText)
}

func (p *ruleParser) Name() string  { return p.name }
func (p *ruleParser) Priority() int { return p.priority }

func (p *ruleParser) Parse(field *form.FieldContext) (form.CandidateType, bool) {
	text := p.text(field)
	rule, re, ok := firstMatch(p.customRules(), text)
	if !ok {
		rule, re, ok = firstMatch(p.rules, text)
	}
	if !ok {
		return form.CandidateType{}, false
	}

	cand := form.CandidateType{
		Type:    rule.typ,
		Score:   p.score,
		Reasons: []string{fmt.Sprintf("%s matched /%s/", p.name, re.String())},
	}
	if p.boost > 0 && field.SectionTitle != "" {
		section := textnorm.Normalize(field.SectionTitle)
		if p.sectionMatches(rule, section) {
			cand.Score = clamp(cand.Score + p.boost)
			cand.Reasons = append(cand.Reasons, fmt.Sprintf("section %q supports %s", field.SectionTitle, rule.typ))
		}
	}
	return cand, true
}

func (p *ruleParser) sectionMatches(rule compiledRule, section string) bool {
	if rule.section != nil && rule.section.MatchString(section) {
		return true
	}
	for _, b := range p.boosts {
		if b.types[rule.typ] && b.pattern.MatchString(section) {
			return true
		}
	}
	return false
}

func clamp(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}
