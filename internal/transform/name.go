package transform

import (
	"regexp"
	"strings"

	"github.com/a3tai/mcp-form-reader/internal/form"
	"github.com/a3tai/mcp-form-reader/internal/textnorm"
)

type namePart int

const (
	partUnknown namePart = iota
	partFull
	partFirst
	partLast
)

// Ordered: "姓名" must resolve to full before "姓" can resolve to last
var namePartRules = []struct {
	part    namePart
	pattern *regexp.Regexp
}{
	{partFull, regexp.MustCompile(`full name|legal name|your name|姓名|^name$`)},
	{partFirst, regexp.MustCompile(`\bfirst\b|given|forename|名字|^名$`)},
	{partLast, regexp.MustCompile(`\blast\b|family|surname|^姓$|姓氏`)},
	{partFull, regexp.MustCompile(`\bname\b`)},
}

// NameTransformer splits or merges personal names. CJK names put the surname
// first; Latin names are split on whitespace with middle names dropped.
type NameTransformer struct{}

// NewNameTransformer creates a name transformer
func NewNameTransformer() *NameTransformer { return &NameTransformer{} }

func (t *NameTransformer) Name() string { return "name" }

func (t *NameTransformer) Types() []form.Taxonomy {
	return []form.Taxonomy{form.TaxonomyFullName, form.TaxonomyFirstName, form.TaxonomyLastName}
}

func (t *NameTransformer) CanTransform(value string, target *form.FieldContext) bool {
	_, ok := t.convert(value, target)
	return ok
}

func (t *NameTransformer) Transform(value string, target *form.FieldContext) string {
	if out, ok := t.convert(value, target); ok {
		return out
	}
	return value
}

func (t *NameTransformer) convert(value string, target *form.FieldContext) (string, bool) {
	value = textnorm.CollapseSpaces(value)
	if value == "" || target == nil {
		return "", false
	}
	part := targetNamePart(target)
	if part == partUnknown {
		return "", false
	}

	first, last, full := splitName(value)
	var out string
	switch part {
	case partFirst:
		out = first
	case partLast:
		out = last
	default:
		out = full
	}
	if out == "" {
		return "", false
	}
	return out, true
}

// targetNamePart re-derives which part of a name the target wants from the
// target's own label, name and id
func targetNamePart(target *form.FieldContext) namePart {
	for _, text := range targetTexts(target) {
		for _, r := range namePartRules {
			if r.pattern.MatchString(text) {
				return r.part
			}
		}
	}
	return partUnknown
}

// splitName returns the given name, surname and joined full name
func splitName(value string) (first, last, full string) {
	if textnorm.IsMostlyCJK(value) {
		runes := []rune(strings.Join(strings.Fields(value), ""))
		if len(runes) < 2 {
			return "", string(runes), string(runes)
		}
		return string(runes[1:]), string(runes[:1]), string(runes)
	}

	// "Doe, John" lists the surname first
	if before, after, ok := strings.Cut(value, ","); ok {
		if b, a := strings.TrimSpace(before), strings.TrimSpace(after); b != "" && a != "" {
			value = a + " " + b
		}
	}

	tokens := strings.Fields(value)
	switch len(tokens) {
	case 0:
		return "", "", ""
	case 1:
		return tokens[0], tokens[0], tokens[0]
	}
	return tokens[0], tokens[len(tokens)-1], strings.Join(tokens, " ")
}
