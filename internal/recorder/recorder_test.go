package recorder

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/a3tai/mcp-form-reader/internal/classifier"
	"github.com/a3tai/mcp-form-reader/internal/dom"
	"github.com/a3tai/mcp-form-reader/internal/form"
	"github.com/a3tai/mcp-form-reader/internal/scanner"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const applyForm = `<form id="apply" action="/submit">
  <label for="email">Email address</label><input id="email" name="email" type="email">
  <label for="phone">Phone number</label><input id="phone" name="phone" type="tel">
  <label for="degree">Highest degree</label>
  <select id="degree" name="degree"><option value="">Choose</option><option value="bs">Bachelor</option></select>
  <fieldset><legend>Do you require visa sponsorship?</legend>
    <label><input type="radio" id="sp-yes" name="sponsor" value="yes"> Yes</label>
    <label><input type="radio" id="sp-no" name="sponsor" value="no"> No</label>
  </fieldset>
  <button type="button" id="next">Next step</button>
  <button type="button" id="help">Help</button>
</form>
<label for="news">Newsletter email</label><input id="news" name="newsletter_email">`

// sink collects callback output
type sink struct {
	mu           sync.Mutex
	observations []form.Observation
	commits      map[string]int
}

func (s *sink) observe(o form.Observation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observations = append(s.observations, o)
}

func (s *sink) commit(formID string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.commits == nil {
		s.commits = make(map[string]int)
	}
	s.commits[formID] += n
}

func (s *sink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.observations)
}

func newRecorder(t *testing.T, settle time.Duration) (*Recorder, *dom.Document, *sink) {
	t.Helper()
	doc, err := dom.ParseString(applyForm, "https://Jobs.Example.com/apply?id=7")
	require.NoError(t, err)

	seq := 0
	rec := New(doc, scanner.New(zap.NewNop()), classifier.New(zap.NewNop()), Options{
		SettleDelay: settle,
		Now:         func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) },
		NewID: func() string {
			seq++
			return fmt.Sprintf("id-%d", seq)
		},
	})
	out := &sink{}
	rec.OnObservation(out.observe)
	rec.OnCommit(out.commit)
	return rec, doc, out
}

func typeInto(doc *dom.Document, selector, value string) {
	el := doc.Find(selector)
	doc.SetValue(el, value)
	doc.Dispatch(dom.Event{Type: dom.EventBlur, Target: el})
}

func TestStartStopIdempotent(t *testing.T) {
	rec, doc, _ := newRecorder(t, -1)

	assert.True(t, rec.Start())
	assert.False(t, rec.Start())
	assert.True(t, rec.Running())
	for _, ev := range []string{dom.EventBlur, dom.EventChange, dom.EventSubmit, dom.EventClick, dom.EventBeforeUnload} {
		assert.Equal(t, 1, doc.ListenerCount(ev), ev)
	}

	assert.True(t, rec.Stop())
	assert.False(t, rec.Stop())
	assert.False(t, rec.Running())
	for _, ev := range []string{dom.EventBlur, dom.EventChange, dom.EventSubmit, dom.EventClick, dom.EventBeforeUnload} {
		assert.Zero(t, doc.ListenerCount(ev), ev)
	}

	// nothing is captured once detached
	typeInto(doc, "#email", "jane@example.com")
	assert.Zero(t, rec.PendingCount())
}

func TestUnchangedValueRecordedOnce(t *testing.T) {
	rec, doc, _ := newRecorder(t, -1)
	rec.Start()
	defer rec.Stop()

	typeInto(doc, "#email", "jane@example.com")
	typeInto(doc, "#email", "jane@example.com")

	pending := rec.Pending("apply")
	require.Len(t, pending, 1)
	assert.Equal(t, "id-1", pending[0].ID)
	assert.Equal(t, form.TaxonomyEmail, pending[0].ClassifiedType)
	assert.Equal(t, form.StatusPending, pending[0].Status)
	assert.Equal(t, "jobs.example.com", pending[0].SiteKey)
	assert.Equal(t, "jane@example.com", pending[0].RawValue)

	el := doc.Find("#email")
	assert.False(t, rec.Capture(el))
	doc.SetValue(el, "jane.doe@example.com")
	assert.True(t, rec.Capture(el))

	pending = rec.Pending("apply")
	require.Len(t, pending, 1, "same locator is upserted")
	assert.Equal(t, "jane.doe@example.com", pending[0].RawValue)
}

func TestEmptyValueIgnored(t *testing.T) {
	rec, doc, _ := newRecorder(t, -1)
	rec.Start()
	defer rec.Stop()

	typeInto(doc, "#email", "   ")
	assert.Zero(t, rec.PendingCount())
}

func TestSubmitCommitsDistinctFields(t *testing.T) {
	rec, doc, out := newRecorder(t, -1)
	rec.Start()
	defer rec.Stop()

	typeInto(doc, "#email", "jane@example.com")
	typeInto(doc, "#phone", "555 0100")
	typeInto(doc, "#email", "jane.doe@example.com")
	assert.Equal(t, 2, rec.PendingCount())

	doc.Dispatch(dom.Event{Type: dom.EventSubmit, Target: doc.Find("#apply")})

	require.Equal(t, 2, out.count())
	assert.Equal(t, 2, out.commits["apply"])
	assert.Zero(t, rec.PendingCount())

	email := out.observations[0]
	assert.Equal(t, form.TaxonomyEmail, email.Type)
	assert.Equal(t, "jane.doe@example.com", email.Value)
	require.NotNil(t, email.QuestionKey)
	assert.Equal(t, email.QuestionKey.ID, email.QuestionKeyID)
	assert.Contains(t, email.QuestionKey.Phrases, "email address")
	assert.NotEmpty(t, email.AnswerID)
	assert.NotEqual(t, email.ID, email.AnswerID)

	assert.Equal(t, form.TaxonomyPhone, out.observations[1].Type)

	assert.Zero(t, rec.Commit("apply"), "second commit finds nothing")
	assert.Equal(t, 2, out.count())
}

func TestChangeOnlyForChoiceWidgets(t *testing.T) {
	rec, doc, _ := newRecorder(t, -1)
	rec.Start()
	defer rec.Stop()

	email := doc.Find("#email")
	doc.SetValue(email, "jane@example.com")
	doc.Dispatch(dom.Event{Type: dom.EventChange, Target: email})
	assert.Zero(t, rec.PendingCount())

	sel := doc.Find("#degree")
	doc.SetValue(sel, "bs")
	doc.Dispatch(dom.Event{Type: dom.EventChange, Target: sel})

	radio := doc.Find("#sp-no")
	doc.SetChecked(radio, true)
	doc.Dispatch(dom.Event{Type: dom.EventChange, Target: radio})

	pending := rec.Pending("apply")
	require.Len(t, pending, 2)
	assert.Equal(t, "bs", pending[0].RawValue)
	assert.Equal(t, "no", pending[1].RawValue)
	assert.Equal(t, form.TaxonomyNeedSponsorship, pending[1].ClassifiedType)
	assert.Equal(t, `form#apply input[type="radio"][name="sponsor"]`, pending[1].FieldLocator)
}

func TestBeforeUnloadDiscards(t *testing.T) {
	rec, doc, out := newRecorder(t, -1)
	rec.Start()
	defer rec.Stop()

	typeInto(doc, "#email", "jane@example.com")
	typeInto(doc, "#news", "jane@example.com")
	assert.Equal(t, 2, rec.PendingCount())

	doc.Dispatch(dom.Event{Type: dom.EventBeforeUnload})

	assert.Zero(t, rec.PendingCount())
	assert.Zero(t, rec.Commit("apply"))
	assert.Zero(t, rec.Commit(DefaultFormID))
	assert.Zero(t, out.count())
}

func TestFieldOutsideFormUsesDefault(t *testing.T) {
	rec, doc, _ := newRecorder(t, -1)
	rec.Start()
	defer rec.Stop()

	typeInto(doc, "#news", "jane@example.com")
	assert.Len(t, rec.Pending(DefaultFormID), 1)
	assert.Empty(t, rec.Pending("apply"))
}

func TestClickCommitsAfterSettle(t *testing.T) {
	rec, doc, out := newRecorder(t, 10*time.Millisecond)
	rec.Start()
	defer rec.Stop()

	typeInto(doc, "#email", "jane@example.com")

	doc.Dispatch(dom.Event{Type: dom.EventClick, Target: doc.Find("#help")})
	doc.Dispatch(dom.Event{Type: dom.EventClick, Target: doc.Find("#next")})

	require.Eventually(t, func() bool { return out.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, rec.PendingCount())
}

func TestStopCancelsSettleTimer(t *testing.T) {
	rec, doc, out := newRecorder(t, 50*time.Millisecond)
	rec.Start()

	typeInto(doc, "#email", "jane@example.com")
	doc.Dispatch(dom.Event{Type: dom.EventClick, Target: doc.Find("#next")})
	rec.Stop()

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, out.count())
	assert.Equal(t, 1, rec.PendingCount(), "stop keeps the buffer")
}

func TestFormID(t *testing.T) {
	tests := []struct {
		name   string
		markup string
		want   string
	}{
		{"id", `<form id="a" name="b" action="/c"><input id="x"></form>`, "a"},
		{"name", `<form name="b" action="/c"><input id="x"></form>`, "b"},
		{"action", `<form action="/c"><input id="x"></form>`, "/c"},
		{"bare form", `<form><input id="x"></form>`, DefaultFormID},
		{"no form", `<div><input id="x"></div>`, DefaultFormID},
		{"form attribute", `<form id="a"></form><input id="x" form="a">`, "a"},
		{"shadow host in form", `<form id="outer"><div><template shadowrootmode="open"><input id="x"></template></div></form>`, "outer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := dom.ParseString(tt.markup, "")
			require.NoError(t, err)
			el := doc.Find("#x")
			require.NotNil(t, el)
			assert.Equal(t, tt.want, FormID(el))
		})
	}
}

func TestSubmitLike(t *testing.T) {
	tests := []struct {
		markup string
		want   bool
	}{
		{`<button id="x">Submit application</button>`, true},
		{`<button id="x" type="submit">Go</button>`, true},
		{`<input id="x" type="submit" value="Go">`, true},
		{`<input id="x" type="button" value="Save">`, true},
		{`<div role="button" id="x">下一步</div>`, true},
		{`<button><span id="x">Continue</span></button>`, true},
		{`<button id="x">Cancel</button>`, false},
		{`<input id="x" type="text" value="submit">`, false},
		{`<span id="x">Submit</span>`, false},
	}
	for _, tt := range tests {
		t.Run(tt.markup, func(t *testing.T) {
			doc, err := dom.ParseString(tt.markup, "")
			require.NoError(t, err)
			assert.Equal(t, tt.want, submitLike(doc.Find("#x")) != nil)
		})
	}
}

func TestSiteKey(t *testing.T) {
	assert.Equal(t, "jobs.example.com", siteKey("https://JOBS.example.com:8443/x"))
	assert.Equal(t, "local", siteKey(""))
	assert.Equal(t, "local", siteKey("::bad"))
}
