// Package textnorm normalizes label, option and attribute text before it is
// matched against rule tables.
//
// Pipeline order
// 1 drop invalid UTF-8
// 2 NFKC
// 3 case fold
// 4 strip format characters (ZWJ, ZWNJ, BOM)
// 5 width fold fullwidth forms
// 6 collapse whitespace and trim
package textnorm

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

var chainPool = sync.Pool{
	New: func() any {
		return transform.Chain(
			norm.NFKC,
			cases.Fold(),
			runes.Remove(runes.In(unicode.Cf)),
			width.Fold,
		)
	},
}

// Normalize returns the folded, whitespace-collapsed form of s
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ToValidUTF8(s, "")

	tr := chainPool.Get().(transform.Transformer)
	out, _, err := transform.String(tr, s)
	tr.Reset()
	chainPool.Put(tr)
	if err != nil {
		out = strings.ToLower(s)
	}
	return CollapseSpaces(out)
}

// CollapseSpaces converts every whitespace run to one ASCII space and trims the ends
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Humanize turns an identifier such as "firstName", "school_name" or
// "grad-year" into lowercase space-separated words
func Humanize(id string) string {
	if id == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(id) + 4)
	rs := []rune(id)
	for i, r := range rs {
		switch {
		case r == '_' || r == '-' || r == '.' || r == '[' || r == ']' || unicode.IsSpace(r):
			b.WriteRune(' ')
			continue
		case unicode.IsUpper(r) && i > 0:
			prev := rs[i-1]
			nextLower := i+1 < len(rs) && unicode.IsLower(rs[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteRune(' ')
			}
		case unicode.IsDigit(r) && i > 0 && unicode.IsLetter(rs[i-1]):
			b.WriteRune(' ')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return CollapseSpaces(b.String())
}

// IsCJK reports whether r is a Han, Hiragana, Katakana or Hangul character
func IsCJK(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul)
}

// HasCJK reports whether s contains any CJK character
func HasCJK(s string) bool {
	for _, r := range s {
		if IsCJK(r) {
			return true
		}
	}
	return false
}

// IsMostlyCJK reports whether every letter in s is CJK and there is at least one
func IsMostlyCJK(s string) bool {
	seen := false
	for _, r := range s {
		if unicode.IsSpace(r) || unicode.IsPunct(r) {
			continue
		}
		if !IsCJK(r) {
			return false
		}
		seen = true
	}
	return seen
}

// DigitsOnly drops every rune that is not an ASCII digit
func DigitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
