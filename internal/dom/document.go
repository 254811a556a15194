// Package dom provides the tree capabilities the form pipeline needs on top of
// golang.org/x/net/html: attribute lookup, child enumeration that understands
// declarative shadow roots, visibility, stable locators, live control values
// and an in-memory event dispatcher.
package dom

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document is a parsed page plus the mutable state a browser would keep
// outside the markup (live values, listeners).
type Document struct {
	Root *html.Node
	URL  string

	mu        sync.Mutex
	values    map[*html.Node]string
	checked   map[*html.Node]bool
	listeners map[string][]*listener
	nextID    int
	hidden    VisibilityFunc
	frames    map[*html.Node]*Document
}

// Parse reads an HTML document from r
func Parse(r io.Reader, url string) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return NewDocument(root, url), nil
}

// ParseString parses markup held in memory
func ParseString(markup, url string) (*Document, error) {
	return Parse(strings.NewReader(markup), url)
}

// NewDocument wraps an already parsed tree
func NewDocument(root *html.Node, url string) *Document {
	return &Document{
		Root:      root,
		URL:       url,
		values:    make(map[*html.Node]string),
		checked:   make(map[*html.Node]bool),
		listeners: make(map[string][]*listener),
		frames:    make(map[*html.Node]*Document),
	}
}

// SetVisibilityFunc overrides the inline-style visibility heuristic, for
// trees whose computed style is known from elsewhere
func (d *Document) SetVisibilityFunc(fn VisibilityFunc) {
	d.mu.Lock()
	d.hidden = fn
	d.mu.Unlock()
}

// IsElement reports whether n is an element node
func IsElement(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode
}

// Tag returns the lowercase tag name of an element, "" for other nodes
func Tag(n *html.Node) string {
	if !IsElement(n) {
		return ""
	}
	return strings.ToLower(n.Data)
}

// Attr returns the value of attribute key and whether it is present
func Attr(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

// GetAttr returns the value of attribute key or ""
func GetAttr(n *html.Node, key string) string {
	v, _ := Attr(n, key)
	return v
}

// HasAttr reports whether attribute key is present
func HasAttr(n *html.Node, key string) bool {
	_, ok := Attr(n, key)
	return ok
}

// Attributes copies every attribute of n into a map
func Attributes(n *html.Node) map[string]string {
	out := make(map[string]string, len(n.Attr))
	for _, a := range n.Attr {
		if a.Namespace == "" {
			out[strings.ToLower(a.Key)] = a.Val
		}
	}
	return out
}

// IsShadowRoot reports whether n is a declarative open shadow root template
func IsShadowRoot(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode || n.DataAtom != atom.Template {
		return false
	}
	mode, ok := Attr(n, "shadowrootmode")
	if !ok {
		mode, ok = Attr(n, "shadowroot")
	}
	return ok && strings.EqualFold(strings.TrimSpace(mode), "open")
}

// ShadowRoot returns the open shadow root attached to host, or nil
func ShadowRoot(host *html.Node) *html.Node {
	if !IsElement(host) {
		return nil
	}
	for c := host.FirstChild; c != nil; c = c.NextSibling {
		if IsShadowRoot(c) {
			return c
		}
	}
	return nil
}

// ShadowHost returns the host element of a shadow root node
func ShadowHost(root *html.Node) *html.Node {
	if !IsShadowRoot(root) {
		return nil
	}
	return root.Parent
}

// Children returns the light-tree children of n; shadow root templates are skipped
func Children(n *html.Node) []*html.Node {
	if n == nil {
		return nil
	}
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if IsShadowRoot(c) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// ParentElement returns the parent element within the same tree scope. It
// stops at shadow root boundaries.
func ParentElement(n *html.Node) *html.Node {
	if n == nil || n.Parent == nil || IsShadowRoot(n.Parent) {
		return nil
	}
	if n.Parent.Type != html.ElementNode {
		return nil
	}
	return n.Parent
}

// ScopeRoot returns the node that roots n's tree scope: the document node or
// the shadow root template that contains it
func ScopeRoot(n *html.Node) *html.Node {
	cur := n
	for cur != nil && cur.Parent != nil {
		if IsShadowRoot(cur.Parent) {
			return cur.Parent
		}
		cur = cur.Parent
	}
	return cur
}

// Walk visits every element under root in document order without crossing
// into shadow roots. Returning false from fn skips the element's subtree.
func Walk(root *html.Node, fn func(*html.Node) bool) {
	if root == nil {
		return
	}
	for _, c := range Children(root) {
		if c.Type != html.ElementNode {
			continue
		}
		if fn(c) {
			Walk(c, fn)
		}
	}
}

// FindAll returns every element under root matching pred, light tree only
func FindAll(root *html.Node, pred func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	Walk(root, func(n *html.Node) bool {
		if pred(n) {
			out = append(out, n)
		}
		return true
	})
	return out
}

// GetElementByID finds the first element with the given id in n's tree scope
func GetElementByID(scope *html.Node, id string) *html.Node {
	if id == "" {
		return nil
	}
	var found *html.Node
	Walk(scope, func(n *html.Node) bool {
		if found != nil {
			return false
		}
		if GetAttr(n, "id") == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// Closest returns the nearest ancestor-or-self element with one of the given
// tags, within the same tree scope
func Closest(n *html.Node, tags ...string) *html.Node {
	for cur := n; cur != nil; cur = ParentElement(cur) {
		t := Tag(cur)
		for _, want := range tags {
			if t == want {
				return cur
			}
		}
	}
	return nil
}

// Text returns the collapsed text content of n, skipping script, style and
// shadow root content
func Text(n *html.Node) string {
	return TextExcluding(n, nil)
}

// TextExcluding is Text with an extra predicate to skip whole subtrees
func TextExcluding(n *html.Node, skip func(*html.Node) bool) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	var visit func(*html.Node)
	visit = func(cur *html.Node) {
		switch cur.Type {
		case html.TextNode:
			b.WriteString(cur.Data)
			b.WriteByte(' ')
			return
		case html.ElementNode:
			if IsShadowRoot(cur) || cur.DataAtom == atom.Script || cur.DataAtom == atom.Style {
				return
			}
			if skip != nil && cur != n && skip(cur) {
				return
			}
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

// OwnText returns only the text nodes that are direct children of n
func OwnText(n *html.Node) string {
	var parts []string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			parts = append(parts, c.Data)
		}
	}
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

// Frame returns the document embedded by an iframe's srcdoc, parsing it on
// first use. It returns nil for iframes without srcdoc.
func (d *Document) Frame(iframe *html.Node) *Document {
	if iframe == nil || iframe.DataAtom != atom.Iframe {
		return nil
	}
	srcdoc, ok := Attr(iframe, "srcdoc")
	if !ok {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if f, ok := d.frames[iframe]; ok {
		return f
	}
	f, err := ParseString(srcdoc, d.URL)
	if err != nil {
		return nil
	}
	d.frames[iframe] = f
	return f
}
