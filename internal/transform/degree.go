package transform

import (
	"regexp"
	"strings"

	"github.com/a3tai/mcp-form-reader/internal/form"
	"github.com/a3tai/mcp-form-reader/internal/textnorm"
)

type degreeAlias struct {
	key     string
	aliases []string
}

// Ordered so the most advanced degree wins when text mentions several
var degreeAliases = []degreeAlias{
	{"doctorate", []string{"phd", "doctorate", "doctoral", "doctor of philosophy", "doctor of", "dphil", "edd", "博士"}},
	{"master", []string{"master", "masters", "ms", "msc", "ma", "mba", "meng", "mfa", "mphil", "graduate degree", "硕士", "研究生"}},
	{"bachelor", []string{"bachelor", "bachelors", "ba", "bs", "bsc", "beng", "bfa", "undergraduate", "学士", "本科"}},
	{"associate", []string{"associate", "associates", "aa", "as", "aas", "大专", "专科"}},
	{"high_school", []string{"high school", "secondary school", "ged", "hs diploma", "高中", "中专"}},
}

var degreePatterns = compileDegreeAliases()

func compileDegreeAliases() map[string][]*regexp.Regexp {
	out := make(map[string][]*regexp.Regexp, len(degreeAliases))
	for _, d := range degreeAliases {
		for _, a := range d.aliases {
			pattern := regexp.QuoteMeta(a)
			if !textnorm.HasCJK(a) {
				pattern = `(^|[^a-z])` + pattern + `([^a-z]|$)`
			}
			out[d.key] = append(out[d.key], regexp.MustCompile(pattern))
		}
	}
	return out
}

// DegreeTransformer maps a degree name onto the matching live option
type DegreeTransformer struct{}

// NewDegreeTransformer creates a degree transformer
func NewDegreeTransformer() *DegreeTransformer { return &DegreeTransformer{} }

func (t *DegreeTransformer) Name() string { return "degree" }

func (t *DegreeTransformer) Types() []form.Taxonomy {
	return []form.Taxonomy{form.TaxonomyDegree}
}

func (t *DegreeTransformer) CanTransform(value string, target *form.FieldContext) bool {
	_, ok := t.convert(value, target)
	return ok
}

func (t *DegreeTransformer) Transform(value string, target *form.FieldContext) string {
	if out, ok := t.convert(value, target); ok {
		return out
	}
	return value
}

func (t *DegreeTransformer) convert(value string, target *form.FieldContext) (string, bool) {
	if target == nil || !hasOptions(target) {
		return "", false
	}
	key := canonicalDegree(value)
	if key == "" {
		return "", false
	}
	for _, opt := range target.OptionsText {
		if canonicalDegree(opt) == key {
			return opt, true
		}
	}
	return "", false
}

// canonicalDegree returns the alias-table key for a degree name, "" when unknown
func canonicalDegree(s string) string {
	v := textnorm.Normalize(s)
	v = strings.NewReplacer(".", "", "'", "", "’", "").Replace(v)
	if v == "" {
		return ""
	}
	for _, d := range degreeAliases {
		for _, re := range degreePatterns[d.key] {
			if re.MatchString(v) {
				return d.key
			}
		}
	}
	return ""
}
