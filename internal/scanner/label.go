package scanner

import (
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/a3tai/mcp-form-reader/internal/dom"
	"github.com/a3tai/mcp-form-reader/internal/textnorm"
)

// Label sources, in cascade order
const (
	LabelForID          = "label_for"
	LabelAria           = "aria_label"
	LabelAriaLabelledBy = "aria_labelledby"
	LabelWrapping       = "wrapping_label"
	LabelSibling        = "sibling_label"
	LabelHeuristic      = "ancestor_text"
	LabelPlaceholder    = "placeholder"
	LabelInlineText     = "inline_text"
	LabelName           = "name"
	LabelLegend         = "legend"
	LabelNone           = ""
)

// Candidate type bonuses for the ancestor-text search
const (
	bonusLabel   = 50
	bonusLegend  = 40
	bonusHeading = 30
	bonusText    = 10

	levelPenalty     = 15
	questionBonus    = 20
	errorWordPenalty = 30
	overLongPenalty  = 50
)

var errorWords = regexp.MustCompile(`(?i)(\berror\b|\binvalid\b|is required|must be|please enter a valid|cannot be blank|不能为空|错误|无效|格式不正确)`)

var errorMarkers = regexp.MustCompile(`(?i)(error|invalid|alert|warning|validation)`)

var inlineTags = map[atom.Atom]bool{
	atom.Span: true, atom.B: true, atom.Strong: true, atom.Em: true,
	atom.I: true, atom.Small: true, atom.Font: true, atom.U: true,
}

// inferLabel runs the label cascade for a single control. First success wins.
func (s *Scanner) inferLabel(n *html.Node) (string, string) {
	if text, source := directLabel(n); text != "" {
		return text, source
	}
	if text := siblingLabel(n); text != "" {
		return text, LabelSibling
	}
	if text := s.ancestorText(n, n, nil); text != "" {
		return text, LabelHeuristic
	}
	if ph := textnorm.CollapseSpaces(dom.GetAttr(n, "placeholder")); ph != "" {
		return ph, LabelPlaceholder
	}
	if text := precedingInlineText(n); text != "" {
		return text, LabelInlineText
	}
	if name := textnorm.Humanize(dom.GetAttr(n, "name")); name != "" {
		return name, LabelName
	}
	return "", LabelNone
}

// directLabel covers the explicitly associated sources: label[for],
// aria-label, aria-labelledby and a wrapping label
func directLabel(n *html.Node) (string, string) {
	scope := dom.ScopeRoot(n)

	if id := dom.GetAttr(n, "id"); id != "" {
		if text := labelForText(scope, id); text != "" {
			return text, LabelForID
		}
	}
	if name := dom.GetAttr(n, "name"); name != "" {
		if text := labelForText(scope, name); text != "" {
			return text, LabelForID
		}
	}
	if aria := textnorm.CollapseSpaces(dom.GetAttr(n, "aria-label")); aria != "" {
		return aria, LabelAria
	}
	if text := labelledByText(scope, dom.GetAttr(n, "aria-labelledby")); text != "" {
		return text, LabelAriaLabelledBy
	}
	if wrap := dom.Closest(dom.ParentElement(n), "label"); wrap != nil {
		if text := controlFreeText(wrap); text != "" {
			return text, LabelWrapping
		}
	}
	return "", LabelNone
}

func labelForText(scope *html.Node, target string) string {
	for _, l := range dom.FindAll(scope, func(c *html.Node) bool { return c.DataAtom == atom.Label }) {
		if dom.GetAttr(l, "for") == target {
			if text := controlFreeText(l); text != "" {
				return text
			}
		}
	}
	return ""
}

func labelledByText(scope *html.Node, ids string) string {
	var parts []string
	for _, id := range strings.Fields(ids) {
		if el := dom.GetElementByID(scope, id); el != nil {
			if text := dom.Text(el); text != "" {
				parts = append(parts, text)
			}
		}
	}
	return strings.Join(parts, " ")
}

// controlFreeText is the text of n with nested controls stripped
func controlFreeText(n *html.Node) string {
	return dom.TextExcluding(n, isControl)
}

func isControl(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Input, atom.Select, atom.Textarea, atom.Button:
		return true
	}
	return false
}

func containsControl(n *html.Node) bool {
	if isControl(n) {
		return true
	}
	return len(dom.FindAll(n, isControl)) > 0
}

// siblingLabel finds an unbound label placed before the control in the same
// parent
func siblingLabel(n *html.Node) string {
	for sib := n.PrevSibling; sib != nil; sib = sib.PrevSibling {
		if sib.DataAtom != atom.Label {
			continue
		}
		if boundElsewhere(sib, n) {
			continue
		}
		if text := controlFreeText(sib); text != "" {
			return text
		}
	}
	return ""
}

// boundElsewhere reports whether label l is associated with a control other than n
func boundElsewhere(l, n *html.Node) bool {
	target := dom.GetAttr(l, "for")
	if target != "" {
		return target != dom.GetAttr(n, "id") && target != dom.GetAttr(n, "name")
	}
	for _, c := range dom.FindAll(l, isControl) {
		if c != n {
			return true
		}
	}
	return false
}

type textCandidate struct {
	text  string
	bonus int
	level int
}

// ancestorText is the heuristic ancestor search. It walks up from start,
// scoring the label-like siblings found at each level, and returns the best
// candidate with a positive score. exclude holds controls whose own labels
// must not be picked (a radio group's options).
func (s *Scanner) ancestorText(control, start *html.Node, exclude []*html.Node) string {
	placeholderLen := utf8.RuneCountInString(textnorm.CollapseSpaces(dom.GetAttr(control, "placeholder")))

	best, bestScore := "", 0
	child := start
	for level := 1; level <= s.opts.MaxAncestorLevels; level++ {
		parent := dom.ParentElement(child)
		if parent == nil {
			break
		}
		switch parent.DataAtom {
		case atom.Form, atom.Body, atom.Html:
			return best
		}

		for _, cand := range collectCandidates(parent, child, control, exclude) {
			cand.level = level
			if score := s.scoreCandidate(cand, placeholderLen); score > bestScore {
				best, bestScore = cand.text, score
			}
		}
		child = parent
	}
	return best
}

func collectCandidates(parent, skip, control *html.Node, exclude []*html.Node) []textCandidate {
	var out []textCandidate
	for _, c := range dom.Children(parent) {
		if c == skip {
			continue
		}
		switch c.Type {
		case html.TextNode:
			if text := textnorm.CollapseSpaces(c.Data); text != "" {
				out = append(out, textCandidate{text: text, bonus: bonusText})
			}
		case html.ElementNode:
			if c.DataAtom == atom.Script || c.DataAtom == atom.Style || c.DataAtom == atom.Template {
				continue
			}
			if containsControl(c) || isErrorNode(c) {
				continue
			}
			if c.DataAtom == atom.Label && labelsOther(c, control, exclude) {
				continue
			}
			text := dom.Text(c)
			if text == "" {
				continue
			}
			out = append(out, textCandidate{text: text, bonus: typeBonus(c)})
		}
	}
	return out
}

func labelsOther(l, control *html.Node, exclude []*html.Node) bool {
	target := dom.GetAttr(l, "for")
	if target == "" {
		return false
	}
	for _, ex := range exclude {
		if target == dom.GetAttr(ex, "id") {
			return true
		}
	}
	return target != dom.GetAttr(control, "id") && target != dom.GetAttr(control, "name")
}

func typeBonus(n *html.Node) int {
	switch n.DataAtom {
	case atom.Label:
		return bonusLabel
	case atom.Legend:
		return bonusLegend
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		return bonusHeading
	}
	if strings.EqualFold(dom.GetAttr(n, "role"), "heading") {
		return bonusHeading
	}
	return bonusText
}

func isErrorNode(n *html.Node) bool {
	if strings.EqualFold(dom.GetAttr(n, "role"), "alert") || dom.HasAttr(n, "aria-live") {
		return true
	}
	return errorMarkers.MatchString(dom.GetAttr(n, "class")) || errorMarkers.MatchString(dom.GetAttr(n, "id"))
}

// scoreCandidate implements the length-proximity scoring. A return of -1
// disqualifies the candidate.
func (s *Scanner) scoreCandidate(c textCandidate, placeholderLen int) int {
	length := utf8.RuneCountInString(c.text)
	if length <= placeholderLen || length < s.opts.MinLabelLength {
		return -1
	}

	score := 100 - int(math.Abs(float64(length-s.opts.IdealLabelLength)))
	if score < 0 {
		score = 0
	}
	if length > s.opts.MaxLabelLength {
		score -= overLongPenalty
	}
	score += c.bonus
	score -= levelPenalty * c.level
	if strings.ContainsAny(c.text, "?*？") {
		score += questionBonus
	}
	if errorWords.MatchString(c.text) {
		score -= errorWordPenalty
	}
	return score
}

// precedingInlineText returns the nearest text node or inline element text
// directly before the control
func precedingInlineText(n *html.Node) string {
	for sib := n.PrevSibling; sib != nil; sib = sib.PrevSibling {
		switch sib.Type {
		case html.TextNode:
			if text := textnorm.CollapseSpaces(sib.Data); text != "" {
				return text
			}
		case html.ElementNode:
			if isControl(sib) {
				return ""
			}
			if inlineTags[sib.DataAtom] {
				if text := dom.Text(sib); text != "" {
					return text
				}
			}
		}
	}
	return ""
}

// radioGroupLabel labels a radio group as a whole. It also returns the node
// the section-title search should start from, so a fieldset whose legend
// became the label is not reported as the section too.
func (s *Scanner) radioGroupLabel(first *html.Node, group []*html.Node) (string, string, *html.Node) {
	scope := dom.ScopeRoot(first)

	for cur := dom.ParentElement(first); cur != nil; cur = dom.ParentElement(cur) {
		if cur.DataAtom == atom.Form {
			break
		}
		if strings.EqualFold(dom.GetAttr(cur, "role"), "radiogroup") {
			if aria := textnorm.CollapseSpaces(dom.GetAttr(cur, "aria-label")); aria != "" {
				return aria, LabelAria, cur
			}
			if text := labelledByText(scope, dom.GetAttr(cur, "aria-labelledby")); text != "" {
				return text, LabelAriaLabelledBy, cur
			}
		}
		if cur.DataAtom == atom.Fieldset {
			if legend := legendOf(cur); legend != "" {
				return legend, LabelLegend, cur
			}
		}
	}

	container := commonAncestor(group)
	if container != nil {
		if text := s.ancestorText(first, lastWithin(container, first), group); text != "" {
			return text, LabelHeuristic, first
		}
	}
	if name := textnorm.Humanize(dom.GetAttr(first, "name")); name != "" {
		return name, LabelName, first
	}
	return "", LabelNone, first
}

// lastWithin returns the child of container on the path to n. The heuristic
// search starts there so the group's container is the first level searched.
func lastWithin(container, n *html.Node) *html.Node {
	cur := n
	for cur != nil && dom.ParentElement(cur) != container {
		cur = dom.ParentElement(cur)
	}
	if cur == nil {
		return n
	}
	return cur
}

func commonAncestor(nodes []*html.Node) *html.Node {
	if len(nodes) == 0 {
		return nil
	}
	anc := dom.ParentElement(nodes[0])
	for anc != nil {
		all := true
		for _, n := range nodes[1:] {
			if !isAncestor(anc, n) {
				all = false
				break
			}
		}
		if all {
			return anc
		}
		anc = dom.ParentElement(anc)
	}
	return nil
}

func isAncestor(anc, n *html.Node) bool {
	for cur := n.Parent; cur != nil; cur = cur.Parent {
		if cur == anc {
			return true
		}
	}
	return false
}

func legendOf(fieldset *html.Node) string {
	for _, c := range dom.Children(fieldset) {
		if c.DataAtom == atom.Legend {
			return dom.Text(c)
		}
	}
	return ""
}
