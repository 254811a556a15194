package dom

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// InputType returns the lowercase type of an input, defaulting to "text"
func InputType(n *html.Node) string {
	t := strings.ToLower(strings.TrimSpace(GetAttr(n, "type")))
	if t == "" {
		return "text"
	}
	return t
}

// Options returns the option elements of a select or datalist, optgroups included
func Options(n *html.Node) []*html.Node {
	return FindAll(n, func(c *html.Node) bool { return c.DataAtom == atom.Option })
}

// OptionValue returns an option's value attribute, falling back to its text
func OptionValue(opt *html.Node) string {
	if v, ok := Attr(opt, "value"); ok {
		return v
	}
	return Text(opt)
}

// Value returns the live value of a control the way a browser's .value
// property would: the typed value for text-like inputs, the selected
// option's value for selects, the checked value for checkboxes and radio
// groups ("" when nothing is checked).
func (d *Document) Value(n *html.Node) string {
	switch n.DataAtom {
	case atom.Input:
		switch InputType(n) {
		case "checkbox":
			if !d.Checked(n) {
				return ""
			}
			return checkedValue(n)
		case "radio":
			for _, r := range d.RadioGroup(n) {
				if d.Checked(r) {
					return checkedValue(r)
				}
			}
			return ""
		}
		if v, ok := d.liveValue(n); ok {
			return v
		}
		return GetAttr(n, "value")
	case atom.Select:
		if v, ok := d.liveValue(n); ok {
			return v
		}
		if opt := d.SelectedOption(n); opt != nil {
			return OptionValue(opt)
		}
		return ""
	default:
		if v, ok := d.liveValue(n); ok {
			return v
		}
		return Text(n)
	}
}

// SelectedOption returns the option a select currently shows
func (d *Document) SelectedOption(sel *html.Node) *html.Node {
	opts := Options(sel)
	if len(opts) == 0 {
		return nil
	}
	if v, ok := d.liveValue(sel); ok {
		for _, o := range opts {
			if OptionValue(o) == v {
				return o
			}
		}
		return nil
	}
	for _, o := range opts {
		if HasAttr(o, "selected") {
			return o
		}
	}
	return opts[0]
}

// SetValue records a live value for a text-like control, select or
// editable region
func (d *Document) SetValue(n *html.Node, value string) {
	d.mu.Lock()
	d.values[n] = value
	d.mu.Unlock()
}

// Checked reports the live checked state of a checkbox or radio
func (d *Document) Checked(n *html.Node) bool {
	d.mu.Lock()
	v, ok := d.checked[n]
	d.mu.Unlock()
	if ok {
		return v
	}
	return HasAttr(n, "checked")
}

// SetChecked toggles a checkbox or radio; checking a radio unchecks the rest
// of its group
func (d *Document) SetChecked(n *html.Node, on bool) {
	var group []*html.Node
	if InputType(n) == "radio" && on {
		group = d.RadioGroup(n)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, r := range group {
		d.checked[r] = false
	}
	d.checked[n] = on
}

// RadioGroup returns every radio sharing n's name, tree scope and form owner
func (d *Document) RadioGroup(n *html.Node) []*html.Node {
	name := GetAttr(n, "name")
	if name == "" {
		return []*html.Node{n}
	}
	owner := Closest(n, "form")
	return FindAll(ScopeRoot(n), func(c *html.Node) bool {
		return c.DataAtom == atom.Input && InputType(c) == "radio" &&
			GetAttr(c, "name") == name && Closest(c, "form") == owner
	})
}

func (d *Document) liveValue(n *html.Node) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.values[n]
	return v, ok
}

func checkedValue(n *html.Node) string {
	if v, ok := Attr(n, "value"); ok {
		return v
	}
	return "on"
}
