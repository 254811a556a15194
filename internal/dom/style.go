package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// VisibilityFunc reports whether an element is hidden from the user
type VisibilityFunc func(*html.Node) bool

// InlineStyle parses the style attribute into lowercase property/value pairs
func InlineStyle(n *html.Node) map[string]string {
	raw, ok := Attr(n, "style")
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}
	out := make(map[string]string)
	for _, decl := range strings.Split(raw, ";") {
		prop, val, found := strings.Cut(decl, ":")
		if !found {
			continue
		}
		prop = strings.ToLower(strings.TrimSpace(prop))
		val = strings.ToLower(strings.TrimSpace(val))
		val = strings.TrimSpace(strings.TrimSuffix(val, "!important"))
		if prop != "" {
			out[prop] = val
		}
	}
	return out
}

// IsHidden reports whether n would not be rendered: the hidden attribute or
// display:none on itself or any ancestor (crossing shadow hosts), or an
// effective visibility of hidden/collapse.
func (d *Document) IsHidden(n *html.Node) bool {
	d.mu.Lock()
	custom := d.hidden
	d.mu.Unlock()
	if custom != nil {
		return custom(n)
	}
	return InlineHidden(n)
}

// InlineHidden is the default VisibilityFunc, driven by markup only
func InlineHidden(n *html.Node) bool {
	visibilityDecided := false
	for cur := n; cur != nil; cur = composedParent(cur) {
		if cur.Type != html.ElementNode {
			continue
		}
		if HasAttr(cur, "hidden") {
			return true
		}
		style := InlineStyle(cur)
		if style["display"] == "none" {
			return true
		}
		if !visibilityDecided {
			switch style["visibility"] {
			case "hidden", "collapse":
				return true
			case "visible":
				visibilityDecided = true
			}
		}
	}
	return false
}

// composedParent steps from a node to its parent, jumping from a shadow
// root to its host
func composedParent(n *html.Node) *html.Node {
	if n.Parent == nil {
		return nil
	}
	if IsShadowRoot(n.Parent) {
		return n.Parent.Parent
	}
	return n.Parent
}
