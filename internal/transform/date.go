package transform

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/a3tai/mcp-form-reader/internal/form"
	"github.com/a3tai/mcp-form-reader/internal/textnorm"
)

var monthNames = []string{
	"january", "february", "march", "april", "may", "june",
	"july", "august", "september", "october", "november", "december",
}

var (
	isoDateRe   = regexp.MustCompile(`^(\d{4})[-/.](\d{1,2})(?:[-/.](\d{1,2}))?(?:[t ].*)?$`)
	usDateRe    = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)
	monthYearRe = regexp.MustCompile(`^(\d{1,2})/(\d{4})$`)
	yearRe      = regexp.MustCompile(`^(\d{4})$`)
	namedRe     = regexp.MustCompile(`^([a-z]+)\.?,? (\d{4})$`)
	cjkDateRe   = regexp.MustCompile(`^(\d{4})年(\d{1,2})月(?:(\d{1,2})日)?$`)

	yearWordRe  = regexp.MustCompile(`\byear\b|年份|^年$`)
	monthWordRe = regexp.MustCompile(`\bmonth\b|月份|^月$`)
)

type dateParts struct {
	Year, Month, Day int
}

type dateFormat int

const (
	formatNone dateFormat = iota
	formatISODate
	formatISOMonth
	formatUSDate
	formatMonthSlashYear
	formatYear
	formatMonthName
	formatMonthNumber
)

// DateTransformer re-renders dates for date inputs, month inputs, month and
// year selects and placeholder-shaped text fields
type DateTransformer struct{}

// NewDateTransformer creates a date transformer
func NewDateTransformer() *DateTransformer { return &DateTransformer{} }

func (t *DateTransformer) Name() string { return "date" }

func (t *DateTransformer) Types() []form.Taxonomy {
	return []form.Taxonomy{form.TaxonomyGradDate, form.TaxonomyGradYear, form.TaxonomyGradMonth}
}

func (t *DateTransformer) CanTransform(value string, target *form.FieldContext) bool {
	_, ok := t.convert(value, target)
	return ok
}

func (t *DateTransformer) Transform(value string, target *form.FieldContext) string {
	if out, ok := t.convert(value, target); ok {
		return out
	}
	return value
}

func (t *DateTransformer) convert(value string, target *form.FieldContext) (string, bool) {
	if target == nil {
		return "", false
	}
	d, ok := parseDate(value)
	if !ok {
		return "", false
	}

	switch targetDateFormat(target) {
	case formatISODate:
		if d.Month == 0 {
			return "", false
		}
		return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, max(d.Day, 1)), true
	case formatISOMonth:
		if d.Month == 0 {
			return "", false
		}
		return fmt.Sprintf("%04d-%02d", d.Year, d.Month), true
	case formatUSDate:
		if d.Month == 0 {
			return "", false
		}
		return fmt.Sprintf("%02d/%02d/%04d", d.Month, max(d.Day, 1), d.Year), true
	case formatMonthSlashYear:
		if d.Month == 0 {
			return "", false
		}
		return fmt.Sprintf("%02d/%04d", d.Month, d.Year), true
	case formatYear:
		year := strconv.Itoa(d.Year)
		if !hasOptions(target) {
			return year, true
		}
		for _, opt := range target.OptionsText {
			if strings.TrimSpace(opt) == year {
				return opt, true
			}
		}
		return "", false
	case formatMonthName:
		if d.Month == 0 {
			return "", false
		}
		for _, opt := range target.OptionsText {
			if optionMonth(opt) == d.Month {
				return opt, true
			}
		}
		return capitalize(monthNames[d.Month-1]), true
	case formatMonthNumber:
		if d.Month == 0 {
			return "", false
		}
		for _, opt := range target.OptionsText {
			if n, err := strconv.Atoi(strings.TrimSpace(opt)); err == nil && n == d.Month {
				return opt, true
			}
		}
		return "", false
	}
	return "", false
}

// parseDate accepts ISO, US slash, month/year, "May 2024", CJK and bare-year forms
func parseDate(value string) (dateParts, bool) {
	v := strings.ToLower(textnorm.CollapseSpaces(value))
	var d dateParts

	switch {
	case isoDateRe.MatchString(v):
		m := isoDateRe.FindStringSubmatch(v)
		d = dateParts{Year: atoi(m[1]), Month: atoi(m[2]), Day: atoi(m[3])}
	case usDateRe.MatchString(v):
		m := usDateRe.FindStringSubmatch(v)
		d = dateParts{Year: atoi(m[3]), Month: atoi(m[1]), Day: atoi(m[2])}
	case monthYearRe.MatchString(v):
		m := monthYearRe.FindStringSubmatch(v)
		d = dateParts{Year: atoi(m[2]), Month: atoi(m[1])}
	case yearRe.MatchString(v):
		d = dateParts{Year: atoi(v)}
	case cjkDateRe.MatchString(v):
		m := cjkDateRe.FindStringSubmatch(v)
		d = dateParts{Year: atoi(m[1]), Month: atoi(m[2]), Day: atoi(m[3])}
	case namedRe.MatchString(v):
		m := namedRe.FindStringSubmatch(v)
		d = dateParts{Year: atoi(m[2]), Month: monthFromName(m[1])}
		if d.Month == 0 {
			return d, false
		}
	default:
		return d, false
	}

	if d.Year < 1900 || d.Year > 2100 || d.Month < 0 || d.Month > 12 || d.Day < 0 || d.Day > 31 {
		return d, false
	}
	if d.Day > 0 {
		if d.Month == 0 {
			return d, false
		}
		// Feb 30 normalizes to March and is rejected
		t := time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC)
		if t.Month() != time.Month(d.Month) || t.Day() != d.Day {
			return d, false
		}
	}
	return d, true
}

// targetDateFormat decides the representation a target wants, from its input
// type, its option list, its placeholder and finally its label wording
func targetDateFormat(target *form.FieldContext) dateFormat {
	switch target.Type() {
	case "date":
		return formatISODate
	case "month":
		return formatISOMonth
	}

	if hasOptions(target) {
		return sniffOptions(target.OptionsText)
	}

	ph := strings.ToUpper(strings.ReplaceAll(target.Placeholder(), " ", ""))
	switch {
	case strings.Contains(ph, "MM/DD/YYYY"):
		return formatUSDate
	case strings.Contains(ph, "YYYY-MM-DD"):
		return formatISODate
	case strings.Contains(ph, "MM/YYYY"):
		return formatMonthSlashYear
	case strings.Contains(ph, "YYYY-MM"):
		return formatISOMonth
	case ph == "YYYY":
		return formatYear
	}

	for _, text := range targetTexts(target) {
		year, month := yearWordRe.MatchString(text), monthWordRe.MatchString(text)
		switch {
		case year && month:
			return formatMonthSlashYear
		case year:
			return formatYear
		case month:
			return formatMonthName
		}
	}
	return formatNone
}

// sniffOptions classifies a live option list as month names, month numbers or years
func sniffOptions(options []string) dateFormat {
	var names, numbers, years int
	for _, opt := range options {
		o := strings.TrimSpace(opt)
		if monthFromName(normalizeMonthToken(o)) > 0 || cjkMonth(o) > 0 {
			names++
			continue
		}
		n, err := strconv.Atoi(o)
		if err != nil {
			continue
		}
		switch {
		case n >= 1900 && n <= 2100 && len(o) == 4:
			years++
		case n >= 1 && n <= 12:
			numbers++
		}
	}

	// placeholder rows such as "Select year" do not count against the list
	recognized := names + years + numbers
	if recognized == 0 || 2*recognized < len(options) {
		return formatNone
	}
	threshold := min(3, recognized)
	switch {
	case names >= threshold:
		return formatMonthName
	case years >= threshold:
		return formatYear
	case numbers >= threshold:
		return formatMonthNumber
	}
	return formatNone
}

// optionMonth returns the month an option denotes by name, abbreviation,
// number or CJK suffix, 0 when none
func optionMonth(opt string) int {
	o := strings.TrimSpace(opt)
	if m := monthFromName(normalizeMonthToken(o)); m > 0 {
		return m
	}
	if m := cjkMonth(o); m > 0 {
		return m
	}
	if n, err := strconv.Atoi(o); err == nil && n >= 1 && n <= 12 {
		return n
	}
	return 0
}

func normalizeMonthToken(s string) string {
	return strings.TrimSuffix(strings.ToLower(textnorm.CollapseSpaces(s)), ".")
}

func monthFromName(s string) int {
	if len(s) < 3 {
		return 0
	}
	if s == "sept" {
		return 9
	}
	for i, name := range monthNames {
		if s == name || s == name[:3] {
			return i + 1
		}
	}
	return 0
}

func cjkMonth(s string) int {
	num, ok := strings.CutSuffix(s, "月")
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(num))
	if err != nil || n < 1 || n > 12 {
		return 0
	}
	return n
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
