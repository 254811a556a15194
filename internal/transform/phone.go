package transform

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/a3tai/mcp-form-reader/internal/form"
	"github.com/a3tai/mcp-form-reader/internal/textnorm"
)

var (
	countryCodeFieldRe = regexp.MustCompile(`country code|dial(ing)? code|calling code|phone code|区号|国家代码|国际区号`)
	phoneTemplateRe    = regexp.MustCompile(`^[+(]?[\dxX#][\dxX#()\s.\-]*$`)
	numericSampleRe    = regexp.MustCompile(`^[\d()\s.\-]+$`)
	// +code inside an option, with dash or space separated extensions such as +1-684
	optionCodeRe       = regexp.MustCompile(`\+(\d+(?:[- ]\d+)*)`)
)

// phoneNumber is a parsed number; Code is empty for local numbers
type phoneNumber struct {
	Code     string
	National string
}

func (p phoneNumber) international() string {
	return fmt.Sprintf("+%s %s", p.Code, p.National)
}

// PhoneTransformer splits international numbers into calling code and
// national number and renders them in the shape the target asks for
type PhoneTransformer struct{}

// NewPhoneTransformer creates a phone transformer
func NewPhoneTransformer() *PhoneTransformer { return &PhoneTransformer{} }

func (t *PhoneTransformer) Name() string { return "phone" }

func (t *PhoneTransformer) Types() []form.Taxonomy {
	return []form.Taxonomy{form.TaxonomyPhone, form.TaxonomyCountryCode}
}

func (t *PhoneTransformer) CanTransform(value string, target *form.FieldContext) bool {
	_, ok := t.convert(value, target)
	return ok
}

func (t *PhoneTransformer) Transform(value string, target *form.FieldContext) string {
	if out, ok := t.convert(value, target); ok {
		return out
	}
	return value
}

func (t *PhoneTransformer) convert(value string, target *form.FieldContext) (string, bool) {
	if target == nil {
		return "", false
	}
	num, ok := parsePhone(value)
	if !ok {
		return "", false
	}

	if isCountryCodeField(target) {
		if num.Code == "" {
			return "", false
		}
		return matchCodeOption(num.Code, target)
	}

	if limit := target.MaxLength(); limit > 0 && limit <= 11 {
		if len(num.National) > limit {
			return "", false
		}
		return num.National, true
	}

	ph := strings.TrimSpace(target.Placeholder())
	if phoneTemplateRe.MatchString(ph) {
		if out, ok := fillTemplate(ph, num); ok {
			return out, true
		}
	}
	if target.Type() == "tel" && ph != "" && numericSampleRe.MatchString(ph) {
		return num.National, true
	}

	if num.Code == "" {
		return "", false
	}
	return num.international(), true
}

// parsePhone strips formatting and splits a leading calling code
func parsePhone(value string) (phoneNumber, bool) {
	s := strings.TrimSpace(value)
	plus := strings.HasPrefix(s, "+")
	digits := textnorm.DigitsOnly(s)
	if !plus && strings.HasPrefix(digits, "00") && len(digits) > 10 {
		plus, digits = true, digits[2:]
	}

	if plus {
		return splitCountryCode(digits)
	}
	if len(digits) >= 10 && len(digits) <= 11 {
		return phoneNumber{National: digits}, true
	}
	return phoneNumber{}, false
}

// splitCountryCode tries table codes longest first, then boundary heuristics
func splitCountryCode(digits string) (phoneNumber, bool) {
	for size := 3; size >= 1; size-- {
		if len(digits) <= size {
			continue
		}
		code, rest := digits[:size], digits[size:]
		if lengths, ok := countryCodes[code]; ok && slices.Contains(lengths, len(rest)) {
			return phoneNumber{Code: code, National: rest}, true
		}
	}
	for size := 3; size >= 1; size-- {
		if len(digits) <= size {
			continue
		}
		code, rest := digits[:size], digits[size:]
		if _, known := countryCodes[code]; known {
			continue
		}
		if len(rest) >= minNationalDigits[size] && len(rest) <= 12 {
			return phoneNumber{Code: code, National: rest}, true
		}
	}
	return phoneNumber{}, false
}

func isCountryCodeField(target *form.FieldContext) bool {
	if strings.EqualFold(target.Autocomplete(), "tel-country-code") {
		return true
	}
	for _, text := range targetTexts(target) {
		if countryCodeFieldRe.MatchString(text) {
			return true
		}
	}
	return false
}

// matchCodeOption returns the option naming +code, or "+code" for free text
func matchCodeOption(code string, target *form.FieldContext) (string, bool) {
	if !hasOptions(target) {
		return "+" + code, true
	}
	bareRe := regexp.MustCompile(`^` + code + `$`)
	for _, opt := range target.OptionsText {
		for _, m := range optionCodeRe.FindAllStringSubmatch(opt, -1) {
			// "+1-684" names 1684, not 1
			if strings.NewReplacer("-", "", " ", "").Replace(m[1]) == code {
				return opt, true
			}
		}
	}
	for _, opt := range target.OptionsText {
		if bareRe.MatchString(strings.TrimSpace(opt)) {
			return opt, true
		}
	}
	return "", false
}

// fillTemplate writes digits into the digit slots of a placeholder such as
// "(555) 555-5555" or "+1 xxx xxx xxxx"
func fillTemplate(tmpl string, num phoneNumber) (string, bool) {
	slots := 0
	for _, r := range tmpl {
		if isSlot(r) {
			slots++
		}
	}

	digits := num.National
	if strings.HasPrefix(tmpl, "+") {
		if num.Code == "" {
			return "", false
		}
		digits = num.Code + num.National
	}
	if slots != len(digits) {
		return "", false
	}

	var b strings.Builder
	i := 0
	for _, r := range tmpl {
		if isSlot(r) {
			b.WriteByte(digits[i])
			i++
			continue
		}
		b.WriteRune(r)
	}
	return b.String(), true
}

func isSlot(r rune) bool {
	return (r >= '0' && r <= '9') || r == 'x' || r == 'X' || r == '#'
}
