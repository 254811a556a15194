package dom

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// ShadowPiercer joins the locators of successive shadow scopes
const ShadowPiercer = " >>> "

var cssIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// Locator returns a selector that identifies n within the whole document:
// the scoped selector of every enclosing shadow host, then n's own scoped
// selector, joined by ShadowPiercer
func Locator(n *html.Node) string {
	parts := append(ShadowPath(n), ScopedLocator(n))
	return strings.Join(parts, ShadowPiercer)
}

// ShadowPath returns the scoped selectors of the shadow hosts enclosing n,
// outermost first
func ShadowPath(n *html.Node) []string {
	var hosts []string
	root := ScopeRoot(n)
	for IsShadowRoot(root) {
		host := ShadowHost(root)
		hosts = append([]string{ScopedLocator(host)}, hosts...)
		root = ScopeRoot(host)
	}
	return hosts
}

// RadioGroupLocator returns the selector addressing every radio button named
// name that shares n's tree scope and owning form
func RadioGroupLocator(n *html.Node, name string) string {
	own := fmt.Sprintf(`input[type="radio"][name="%s"]`, escapeAttr(name))
	if owner := Closest(n, "form"); owner != nil {
		own = ScopedLocator(owner) + " " + own
	}
	return strings.Join(append(ShadowPath(n), own), ShadowPiercer)
}

// ScopedLocator returns a selector unique within n's own tree scope
func ScopedLocator(n *html.Node) string {
	if !IsElement(n) {
		return ""
	}
	var segments []string
	for cur := n; cur != nil; cur = ParentElement(cur) {
		tag := Tag(cur)
		if id := GetAttr(cur, "id"); id != "" {
			segments = append([]string{idSelector(tag, id)}, segments...)
			break
		}
		seg := tag
		if idx, total := typeIndex(cur); total > 1 {
			seg = fmt.Sprintf("%s:nth-of-type(%d)", tag, idx)
		}
		segments = append([]string{seg}, segments...)
	}
	return strings.Join(segments, " > ")
}

func idSelector(tag, id string) string {
	if cssIdent.MatchString(id) {
		return tag + "#" + id
	}
	return fmt.Sprintf(`%s[id="%s"]`, tag, escapeAttr(id))
}

func escapeAttr(v string) string {
	return strings.ReplaceAll(strings.ReplaceAll(v, `\`, `\\`), `"`, `\"`)
}

// typeIndex returns the 1-based position of n among same-tag siblings and
// the number of such siblings
func typeIndex(n *html.Node) (int, int) {
	if n.Parent == nil {
		return 1, 1
	}
	idx, total := 0, 0
	for _, sib := range Children(n.Parent) {
		if sib.Type == html.ElementNode && sib.Data == n.Data {
			total++
			if sib == n {
				idx = total
			}
		}
	}
	return idx, total
}

// WalkComposed visits every element under root in document order, descending
// into open shadow roots right after their host
func WalkComposed(root *html.Node, fn func(*html.Node)) {
	Walk(root, func(n *html.Node) bool {
		fn(n)
		if sr := ShadowRoot(n); sr != nil {
			WalkComposed(sr, fn)
		}
		return true
	})
}

// Find resolves a selector produced by Locator or RadioGroupLocator. As a
// convenience "#id" and a bare name attribute value are also accepted.
func (d *Document) Find(selector string) *html.Node {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return nil
	}

	var exact, byID, byName *html.Node
	WalkComposed(d.Root, func(n *html.Node) {
		if exact != nil {
			return
		}
		if Locator(n) == selector {
			exact = n
			return
		}
		if name := GetAttr(n, "name"); name != "" {
			if byName == nil && name == selector {
				byName = n
			}
			if isRadio(n) && RadioGroupLocator(n, name) == selector {
				exact = n
				return
			}
		}
		if byID == nil && strings.HasPrefix(selector, "#") && GetAttr(n, "id") == selector[1:] {
			byID = n
		}
	})

	switch {
	case exact != nil:
		return exact
	case byID != nil:
		return byID
	default:
		return byName
	}
}

func isRadio(n *html.Node) bool {
	return Tag(n) == "input" && strings.EqualFold(GetAttr(n, "type"), "radio")
}
