package dom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

const shadowPage = `<!DOCTYPE html>
<html><body>
<form id="apply">
  <div><input name="first"></div>
  <div><input name="last"></div>
  <x-field id="host">
    <template shadowrootmode="open">
      <label for="inner">Inner</label><input id="inner" name="inner">
    </template>
  </x-field>
</form>
</body></html>`

func mustParse(t *testing.T, markup string) *Document {
	t.Helper()
	doc, err := ParseString(markup, "https://jobs.example.com/apply")
	require.NoError(t, err)
	return doc
}

func TestShadowRootAccess(t *testing.T) {
	doc := mustParse(t, shadowPage)

	host := doc.Find("#host")
	require.NotNil(t, host)

	root := ShadowRoot(host)
	require.NotNil(t, root)
	assert.True(t, IsShadowRoot(root))
	assert.Equal(t, host, ShadowHost(root))

	for _, c := range Children(host) {
		assert.False(t, IsShadowRoot(c), "light children must not include the shadow root")
	}

	inner := GetElementByID(root, "inner")
	require.NotNil(t, inner)
	assert.Equal(t, root, ScopeRoot(inner))
	assert.Nil(t, GetElementByID(doc.Root, "inner"), "light-tree lookup must not pierce shadow roots")
}

func TestLocators(t *testing.T) {
	doc := mustParse(t, shadowPage)

	var inputs []*html.Node
	WalkComposed(doc.Root, func(n *html.Node) {
		if Tag(n) == "input" {
			inputs = append(inputs, n)
		}
	})
	require.Len(t, inputs, 3)

	assert.Equal(t, "form#apply > div:nth-of-type(1) > input", Locator(inputs[0]))
	assert.Equal(t, "form#apply > div:nth-of-type(2) > input", Locator(inputs[1]))
	assert.Equal(t, "x-field#host >>> input#inner", Locator(inputs[2]))
	assert.Equal(t, []string{"x-field#host"}, ShadowPath(inputs[2]))

	for _, in := range inputs {
		assert.Equal(t, in, doc.Find(Locator(in)), "locator must round-trip")
	}
	assert.Equal(t, inputs[1], doc.Find("last"))
}

func TestInlineHidden(t *testing.T) {
	doc := mustParse(t, `<div style="display: none"><input id="a"></div>
<input id="b" hidden>
<div style="visibility:hidden"><input id="c"><input id="d" style="visibility: visible"></div>
<input id="e" style="color:red">`)

	assert.True(t, doc.IsHidden(doc.Find("#a")))
	assert.True(t, doc.IsHidden(doc.Find("#b")))
	assert.True(t, doc.IsHidden(doc.Find("#c")))
	assert.False(t, doc.IsHidden(doc.Find("#d")))
	assert.False(t, doc.IsHidden(doc.Find("#e")))

	doc.SetVisibilityFunc(func(*html.Node) bool { return true })
	assert.True(t, doc.IsHidden(doc.Find("#e")))
}

func TestLiveValues(t *testing.T) {
	doc := mustParse(t, `<form>
<input id="t" value="initial">
<select id="s"><option value="">Pick</option><option value="ms" selected>Master</option></select>
<input type="checkbox" id="c" value="yes">
<input type="radio" name="g" id="r1" value="m"><input type="radio" name="g" id="r2" value="f" checked>
<textarea id="ta">hello   world</textarea>
</form>`)

	text := doc.Find("#t")
	assert.Equal(t, "initial", doc.Value(text))
	doc.SetValue(text, "typed")
	assert.Equal(t, "typed", doc.Value(text))

	sel := doc.Find("#s")
	assert.Equal(t, "ms", doc.Value(sel))
	doc.SetValue(sel, "")
	assert.Equal(t, "", doc.Value(sel))

	cb := doc.Find("#c")
	assert.Equal(t, "", doc.Value(cb))
	doc.SetChecked(cb, true)
	assert.Equal(t, "yes", doc.Value(cb))

	r1, r2 := doc.Find("#r1"), doc.Find("#r2")
	assert.Equal(t, "f", doc.Value(r1))
	doc.SetChecked(r1, true)
	assert.False(t, doc.Checked(r2))
	assert.Equal(t, "m", doc.Value(r2))

	assert.Equal(t, "hello world", doc.Value(doc.Find("#ta")))
}

func TestEventDispatch(t *testing.T) {
	doc := mustParse(t, `<input id="x">`)
	target := doc.Find("#x")

	var got []string
	remove := doc.AddEventListener(EventBlur, func(e Event) {
		got = append(got, e.Type)
		assert.Equal(t, target, e.Target)
	})
	doc.AddEventListener(EventChange, func(e Event) { got = append(got, "change") })

	doc.Dispatch(Event{Type: EventBlur, Target: target})
	assert.Equal(t, []string{"blur"}, got)
	assert.Equal(t, 1, doc.ListenerCount(EventBlur))

	remove()
	remove()
	doc.Dispatch(Event{Type: EventBlur, Target: target})
	assert.Equal(t, []string{"blur"}, got)
	assert.Equal(t, 0, doc.ListenerCount(EventBlur))
	assert.Equal(t, 1, doc.ListenerCount(EventChange))
}

func TestTextHelpers(t *testing.T) {
	doc := mustParse(t, `<label id="l">Email <span>address</span><input value="x"><script>bad()</script></label>`)
	label := doc.Find("#l")

	assert.Equal(t, "Email address", Text(label))
	assert.Equal(t, "Email", OwnText(label))
	assert.Equal(t, "Email", TextExcluding(label, func(n *html.Node) bool { return Tag(n) == "span" }))
}

func TestFrame(t *testing.T) {
	doc := mustParse(t, `<iframe id="f" srcdoc="&lt;input name=&quot;inside&quot;&gt;"></iframe><iframe id="g"></iframe>`)

	frame := doc.Frame(doc.Find("#f"))
	require.NotNil(t, frame)
	assert.NotNil(t, frame.Find("inside"))
	assert.Same(t, frame, doc.Frame(doc.Find("#f")))
	assert.Nil(t, doc.Frame(doc.Find("#g")))
}
