package transform

import (
	"regexp"

	"github.com/a3tai/mcp-form-reader/internal/form"
	"github.com/a3tai/mcp-form-reader/internal/textnorm"
)

// Falsy phrases are checked first: "not authorized" contains a truthy word
var (
	falsyRe  = regexp.MustCompile(`^(no|n|false|0|off|否|不|不是|没有)$|^no\b|\bnot authori[sz]ed\b|\bi decline\b|\bdecline\b|\bi do not\b|\bi don't\b|不需要|不同意`)
	truthyRe = regexp.MustCompile(`^(yes|y|true|1|on|是|对|有)$|^yes\b|\bauthori[sz]ed\b|\bi agree\b|\bagree\b|\bi do\b|需要|同意`)
)

// BooleanTransformer renders yes/no answers for checkboxes, choice widgets and text
type BooleanTransformer struct{}

// NewBooleanTransformer creates a boolean transformer
func NewBooleanTransformer() *BooleanTransformer { return &BooleanTransformer{} }

func (t *BooleanTransformer) Name() string { return "boolean" }

func (t *BooleanTransformer) Types() []form.Taxonomy {
	return []form.Taxonomy{form.TaxonomyWorkAuth, form.TaxonomyNeedSponsorship}
}

func (t *BooleanTransformer) CanTransform(value string, target *form.FieldContext) bool {
	_, ok := parseBool(value)
	return ok && target != nil
}

func (t *BooleanTransformer) Transform(value string, target *form.FieldContext) string {
	want, ok := parseBool(value)
	if !ok || target == nil {
		return value
	}

	if target.WidgetSignature.Kind == form.WidgetCheckbox {
		if want {
			return "true"
		}
		return "false"
	}

	for _, opt := range target.OptionsText {
		if got, ok := parseBool(opt); ok && got == want {
			return opt
		}
	}
	if want {
		return "Yes"
	}
	return "No"
}

// parseBool recognizes bilingual truthy and falsy tokens
func parseBool(s string) (bool, bool) {
	v := textnorm.Normalize(s)
	if v == "" {
		return false, false
	}
	if falsyRe.MatchString(v) {
		return false, true
	}
	if truthyRe.MatchString(v) {
		return true, true
	}
	return false, false
}
