// Package scanner discovers every independently fillable control under a
// document root and attaches its best human-readable label, enclosing
// section title and widget signature.
package scanner

import (
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/a3tai/mcp-form-reader/internal/dom"
	"github.com/a3tai/mcp-form-reader/internal/form"
	"github.com/a3tai/mcp-form-reader/internal/textnorm"
)

// Input types that never receive profile data
var excludedInputTypes = map[string]bool{
	"hidden": true,
	"submit": true,
	"button": true,
	"reset":  true,
	"image":  true,
}

// Attributes carried into FieldContext.Attributes
var keptAttributes = []string{
	"name", "id", "type", "autocomplete", "placeholder", "pattern",
	"maxlength", "minlength", "required", "inputmode", "role",
	"aria-label", "title", "min", "max", "step", "multiple", "list",
}

// Stats are scan-wide counters. Excluded controls still count as candidates.
type Stats struct {
	Candidates   int `json:"candidates"`
	Fillable     int `json:"fillable"`
	Hidden       int `json:"hidden"`
	Disabled     int `json:"disabled"`
	ExcludedType int `json:"excluded_type"`
	RadioGroups  int `json:"radio_groups"`
	ShadowRoots  int `json:"shadow_roots"`
	Frames       int `json:"frames"`
}

// Result is the output of one scan
type Result struct {
	Fields []form.FieldContext `json:"fields"`
	Stats  Stats               `json:"stats"`
}

// Options tunes the label heuristics
type Options struct {
	MaxAncestorLevels int
	MinLabelLength    int
	IdealLabelLength  int
	MaxLabelLength    int
}

// DefaultOptions returns the standard heuristic parameters
func DefaultOptions() Options {
	return Options{
		MaxAncestorLevels: 6,
		MinLabelLength:    5,
		IdealLabelLength:  50,
		MaxLabelLength:    200,
	}
}

// Scanner walks documents and produces FieldContexts
type Scanner struct {
	opts   Options
	logger *zap.Logger
}

// New creates a scanner with default options
func New(logger *zap.Logger) *Scanner {
	return NewWithOptions(logger, DefaultOptions())
}

// NewWithOptions creates a scanner with custom heuristic parameters
func NewWithOptions(logger *zap.Logger, opts Options) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{opts: opts, logger: logger}
}

// scan carries the per-call state of one traversal
type scan struct {
	doc        *dom.Document
	framePath  []string
	result     *Result
	seenRadios map[string]bool
}

// Scan enumerates every fillable control in doc, including nested shadow
// roots and srcdoc frames
func (s *Scanner) Scan(doc *dom.Document) *Result {
	return s.ScanRoot(doc, doc.Root)
}

// ScanRoot scans the subtree under root, which may be the document node, an
// element or a shadow root
func (s *Scanner) ScanRoot(doc *dom.Document, root *html.Node) *Result {
	result := &Result{Fields: []form.FieldContext{}}
	st := &scan{doc: doc, result: result, seenRadios: make(map[string]bool)}
	s.walk(st, root)

	s.logger.Debug("scan complete",
		zap.String("url", doc.URL),
		zap.Int("fields", len(result.Fields)),
		zap.Int("candidates", result.Stats.Candidates),
		zap.Int("shadow_roots", result.Stats.ShadowRoots))
	return result
}

func (s *Scanner) walk(st *scan, root *html.Node) {
	dom.Walk(root, func(n *html.Node) bool {
		if n.DataAtom == atom.Iframe {
			if frame := st.doc.Frame(n); frame != nil {
				st.result.Stats.Frames++
				inner := &scan{
					doc:        frame,
					framePath:  append(append([]string{}, st.framePath...), dom.Locator(n)),
					result:     st.result,
					seenRadios: make(map[string]bool),
				}
				s.walk(inner, frame.Root)
			}
			return false
		}

		descend := true
		if kind, ok := candidateKind(n); ok {
			s.visitCandidate(st, n, kind)
			// editable regions own their markup
			descend = n.DataAtom == atom.Input || n.DataAtom == atom.Select ||
				n.DataAtom == atom.Textarea || kind == form.WidgetCombobox
		}

		if sr := dom.ShadowRoot(n); sr != nil {
			st.result.Stats.ShadowRoots++
			s.walk(st, sr)
		}
		return descend
	})
}

func (s *Scanner) visitCandidate(st *scan, n *html.Node, kind form.WidgetKind) {
	stats := &st.result.Stats
	stats.Candidates++

	if n.DataAtom == atom.Input && excludedInputTypes[dom.InputType(n)] {
		stats.ExcludedType++
		return
	}
	if isDisabled(n) {
		stats.Disabled++
		return
	}
	if st.doc.IsHidden(n) {
		stats.Hidden++
		return
	}

	if kind == form.WidgetRadio {
		name := dom.GetAttr(n, "name")
		if name != "" {
			key := dom.RadioGroupLocator(n, name)
			if st.seenRadios[key] {
				return
			}
			st.seenRadios[key] = true
			stats.RadioGroups++
		}
	}

	field := s.describe(st.doc, n, kind)
	field.FramePath = append([]string(nil), st.framePath...)
	st.result.Fields = append(st.result.Fields, *field)
	stats.Fillable++
}

// Describe re-derives the FieldContext of a single element, as the recorder
// needs for a control that just lost focus. Radio buttons describe their
// whole group. It reports false for elements that are not fillable controls.
func (s *Scanner) Describe(doc *dom.Document, el *html.Node) (*form.FieldContext, bool) {
	kind, ok := candidateKind(el)
	if !ok {
		return nil, false
	}
	if el.DataAtom == atom.Input && excludedInputTypes[dom.InputType(el)] {
		return nil, false
	}
	if kind == form.WidgetRadio && dom.GetAttr(el, "name") != "" {
		if group := doc.RadioGroup(el); len(group) > 0 {
			el = group[0]
		}
	}
	return s.describe(doc, el, kind), true
}

func (s *Scanner) describe(doc *dom.Document, n *html.Node, kind form.WidgetKind) *form.FieldContext {
	field := &form.FieldContext{
		Element:         n,
		Locator:         dom.Locator(n),
		Attributes:      keptAttrs(n),
		ShadowPath:      dom.ShadowPath(n),
		WidgetSignature: widgetSignature(n, kind),
	}

	sectionFrom := n
	if kind == form.WidgetRadio && dom.GetAttr(n, "name") != "" {
		group := doc.RadioGroup(n)
		field.Locator = dom.RadioGroupLocator(n, dom.GetAttr(n, "name"))
		field.Attributes["type"] = "radio"
		field.OptionsText = radioOptionTexts(group)
		field.LabelText, field.LabelSource, sectionFrom = s.radioGroupLabel(n, group)
	} else {
		field.OptionsText = optionTexts(n, kind)
		field.LabelText, field.LabelSource = s.inferLabel(n)
	}
	field.SectionTitle = inferSectionTitle(sectionFrom)
	return field
}

// candidateKind reports whether n is a discovery candidate and its widget kind
func candidateKind(n *html.Node) (form.WidgetKind, bool) {
	role := strings.ToLower(dom.GetAttr(n, "role"))
	switch n.DataAtom {
	case atom.Input:
		if role == "combobox" || dom.HasAttr(n, "list") || comboboxAncestor(n) {
			return form.WidgetCombobox, true
		}
		switch dom.InputType(n) {
		case "checkbox":
			return form.WidgetCheckbox, true
		case "radio":
			return form.WidgetRadio, true
		case "date", "month", "week", "datetime-local", "time":
			return form.WidgetDate, true
		}
		return form.WidgetText, true
	case atom.Select:
		return form.WidgetSelect, true
	case atom.Textarea:
		return form.WidgetTextarea, true
	case atom.Button, atom.Option, atom.Optgroup, atom.Datalist:
		return "", false
	}

	if !dom.IsElement(n) {
		return "", false
	}
	if role == "combobox" {
		if len(dom.FindAll(n, func(c *html.Node) bool { return c.DataAtom == atom.Input })) > 0 {
			return "", false
		}
		return form.WidgetCombobox, true
	}
	if role == "textbox" || isEditable(n) {
		if editableAncestor(n) != nil {
			return "", false
		}
		return form.WidgetTextarea, true
	}
	return "", false
}

func comboboxAncestor(n *html.Node) bool {
	p := dom.ParentElement(n)
	return p != nil && strings.EqualFold(dom.GetAttr(p, "role"), "combobox")
}

func isEditable(n *html.Node) bool {
	v, ok := dom.Attr(n, "contenteditable")
	if !ok {
		return false
	}
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "" || v == "true" || v == "plaintext-only"
}

func editableAncestor(n *html.Node) *html.Node {
	for cur := dom.ParentElement(n); cur != nil; cur = dom.ParentElement(cur) {
		if isEditable(cur) || strings.EqualFold(dom.GetAttr(cur, "role"), "textbox") {
			return cur
		}
	}
	return nil
}

func isDisabled(n *html.Node) bool {
	if dom.HasAttr(n, "disabled") {
		return true
	}
	if fs := dom.Closest(n, "fieldset"); fs != nil && dom.HasAttr(fs, "disabled") {
		return true
	}
	return false
}

func keptAttrs(n *html.Node) map[string]string {
	out := make(map[string]string)
	for _, key := range keptAttributes {
		if v, ok := dom.Attr(n, key); ok {
			out[key] = v
		}
	}
	if n.DataAtom == atom.Input {
		if _, ok := out["type"]; !ok {
			out["type"] = "text"
		}
	}
	return out
}

func widgetSignature(n *html.Node, kind form.WidgetKind) form.WidgetSignature {
	sig := form.WidgetSignature{Kind: kind, Role: strings.ToLower(dom.GetAttr(n, "role"))}
	switch kind {
	case form.WidgetSelect:
		sig.InteractionPlan = form.PlanSelectOption
		sig.OptionLocator = "option"
	case form.WidgetRadio:
		sig.InteractionPlan = form.PlanClickOption
		if name := dom.GetAttr(n, "name"); name != "" {
			sig.OptionLocator = dom.RadioGroupLocator(n, name)
		}
	case form.WidgetCheckbox:
		sig.InteractionPlan = form.PlanToggle
	case form.WidgetDate:
		sig.InteractionPlan = form.PlanPickDate
	case form.WidgetCombobox:
		sig.InteractionPlan = form.PlanTypeAndPick
		if list := dom.GetAttr(n, "list"); list != "" {
			sig.OptionLocator = "datalist#" + list + " > option"
		} else {
			sig.OptionLocator = `[role="option"]`
		}
	default:
		sig.InteractionPlan = form.PlanType
		if sig.Role == "" && n.DataAtom != atom.Input && n.DataAtom != atom.Textarea {
			sig.Role = "textbox"
		}
	}
	return sig
}

// optionTexts reads the choice set of selects, datalist-backed inputs and
// ARIA comboboxes
func optionTexts(n *html.Node, kind form.WidgetKind) []string {
	var opts []*html.Node
	switch {
	case kind == form.WidgetSelect:
		opts = dom.Options(n)
	case kind == form.WidgetCombobox && dom.HasAttr(n, "list"):
		if dl := dom.GetElementByID(dom.ScopeRoot(n), dom.GetAttr(n, "list")); dl != nil {
			opts = dom.Options(dl)
		}
	case kind == form.WidgetCombobox:
		for _, attr := range []string{"aria-controls", "aria-owns"} {
			for _, id := range strings.Fields(dom.GetAttr(n, attr)) {
				if lb := dom.GetElementByID(dom.ScopeRoot(n), id); lb != nil {
					opts = append(opts, dom.FindAll(lb, func(c *html.Node) bool {
						return strings.EqualFold(dom.GetAttr(c, "role"), "option")
					})...)
				}
			}
		}
	default:
		return nil
	}

	var out []string
	for _, o := range opts {
		text := dom.Text(o)
		if text == "" {
			text = dom.GetAttr(o, "label")
		}
		if text == "" {
			text = dom.GetAttr(o, "value")
		}
		if text = textnorm.CollapseSpaces(text); text != "" {
			out = append(out, text)
		}
	}
	return out
}

func radioOptionTexts(group []*html.Node) []string {
	var out []string
	for _, r := range group {
		text, _ := directLabel(r)
		if text == "" {
			text = dom.GetAttr(r, "value")
		}
		if text != "" {
			out = append(out, text)
		}
	}
	return out
}
