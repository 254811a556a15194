package scanner

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/a3tai/mcp-form-reader/internal/dom"
)

// inferSectionTitle returns the legend of the closest enclosing fieldset or,
// failing that, the nearest heading that precedes n in document order. Shadow
// boundaries are crossed so a field inside a component still picks up the
// host page's section.
func inferSectionTitle(n *html.Node) string {
	for cur := n; cur != nil; cur = composedParentElement(cur) {
		if cur != n && cur.DataAtom == atom.Fieldset {
			if legend := legendOf(cur); legend != "" {
				return legend
			}
		}
	}

	for cur := n; cur != nil; cur = composedParentElement(cur) {
		for sib := cur.PrevSibling; sib != nil; sib = sib.PrevSibling {
			if dom.IsShadowRoot(sib) || sib.Type != html.ElementNode {
				continue
			}
			if isHeading(sib) {
				if text := dom.Text(sib); text != "" {
					return text
				}
			}
			if h := lastHeading(sib); h != "" {
				return h
			}
		}
	}
	return ""
}

func isHeading(n *html.Node) bool {
	switch n.DataAtom {
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		return true
	}
	return strings.EqualFold(dom.GetAttr(n, "role"), "heading")
}

// lastHeading returns the text of the last heading inside n
func lastHeading(n *html.Node) string {
	headings := dom.FindAll(n, isHeading)
	for i := len(headings) - 1; i >= 0; i-- {
		if text := dom.Text(headings[i]); text != "" {
			return text
		}
	}
	return ""
}

func composedParentElement(n *html.Node) *html.Node {
	if p := dom.ParentElement(n); p != nil {
		return p
	}
	root := dom.ScopeRoot(n)
	if dom.IsShadowRoot(root) {
		return dom.ShadowHost(root)
	}
	return nil
}
