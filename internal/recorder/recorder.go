// Package recorder passively learns from a user's own typing. Field values are
// captured into a per-form pending buffer on blur/change and only become
// Observations once the owning form is judged submitted; a page unload
// discards everything still pending.
package recorder

import (
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/a3tai/mcp-form-reader/internal/dom"
	"github.com/a3tai/mcp-form-reader/internal/form"
)

// DefaultFormID keys fields that have no enclosing form
const DefaultFormID = "default"

// DefaultSettleDelay lets client-side validation run before a click commits
const DefaultSettleDelay = 400 * time.Millisecond

var submitLikeRe = regexp.MustCompile(`(?i)submit|\bnext\b|continue|\bsave\b|\bapply\b|提交|保存|下一步|继续|申请`)

// Describer re-derives the context of one element
type Describer interface {
	Describe(doc *dom.Document, el *html.Node) (*form.FieldContext, bool)
}

// Classifier guesses what a field holds
type Classifier interface {
	Classify(field *form.FieldContext) []form.CandidateType
}

// ObservationFunc receives each committed observation
type ObservationFunc func(form.Observation)

// CommitFunc receives the number of observations a commit produced
type CommitFunc func(formID string, count int)

// Options configures a Recorder. Zero values select defaults.
type Options struct {
	SettleDelay time.Duration
	SiteKey     string
	Now         func() time.Time
	NewID       func() string
	Logger      *zap.Logger
}

// Recorder owns the pending buffer and the listener lifecycle for one document
type Recorder struct {
	doc        *dom.Document
	describer  Describer
	classifier Classifier
	opts       Options

	mu            sync.Mutex
	running       bool
	removers      []func()
	lastValues    map[*html.Node]string
	pending       map[string]*formBuffer
	timers        map[int]*time.Timer
	nextTimer     int
	onObservation []ObservationFunc
	onCommit      []CommitFunc
}

// formBuffer keeps one form's pending entries keyed by field locator, in
// first-capture order
type formBuffer struct {
	order   []string
	entries map[string]*form.PendingObservation
}

// New creates a stopped recorder for doc
func New(doc *dom.Document, describer Describer, classifier Classifier, opts Options) *Recorder {
	if opts.SettleDelay < 0 {
		opts.SettleDelay = 0
	} else if opts.SettleDelay == 0 {
		opts.SettleDelay = DefaultSettleDelay
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.SiteKey == "" {
		opts.SiteKey = siteKey(doc.URL)
	}
	return &Recorder{
		doc:        doc,
		describer:  describer,
		classifier: classifier,
		opts:       opts,
		lastValues: make(map[*html.Node]string),
		pending:    make(map[string]*formBuffer),
		timers:     make(map[int]*time.Timer),
	}
}

// SiteKey returns the site key stamped on every capture
func (r *Recorder) SiteKey() string {
	return r.opts.SiteKey
}

// OnObservation registers a callback for committed observations
func (r *Recorder) OnObservation(fn ObservationFunc) {
	r.mu.Lock()
	r.onObservation = append(r.onObservation, fn)
	r.mu.Unlock()
}

// OnCommit registers a callback for commit counts
func (r *Recorder) OnCommit(fn CommitFunc) {
	r.mu.Lock()
	r.onCommit = append(r.onCommit, fn)
	r.mu.Unlock()
}

// Start attaches the capture listeners. It reports false when already running.
func (r *Recorder) Start() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return false
	}
	r.running = true
	r.removers = []func(){
		r.doc.AddEventListener(dom.EventBlur, r.handleBlur),
		r.doc.AddEventListener(dom.EventChange, r.handleChange),
		r.doc.AddEventListener(dom.EventSubmit, r.handleSubmit),
		r.doc.AddEventListener(dom.EventClick, r.handleClick),
		r.doc.AddEventListener(dom.EventBeforeUnload, r.handleUnload),
	}
	r.opts.Logger.Debug("recorder started", zap.String("site", r.opts.SiteKey))
	return true
}

// Stop detaches every listener, cancels pending settle timers and clears the
// last-value cache. It reports false when already stopped.
func (r *Recorder) Stop() bool {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return false
	}
	r.running = false
	removers := r.removers
	r.removers = nil
	for id, t := range r.timers {
		t.Stop()
		delete(r.timers, id)
	}
	r.lastValues = make(map[*html.Node]string)
	r.mu.Unlock()

	for _, remove := range removers {
		remove()
	}
	r.opts.Logger.Debug("recorder stopped", zap.String("site", r.opts.SiteKey))
	return true
}

// Running reports whether listeners are attached
func (r *Recorder) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *Recorder) handleBlur(e dom.Event) {
	r.Capture(e.Target)
}

func (r *Recorder) handleChange(e dom.Event) {
	if e.Target == nil {
		return
	}
	switch {
	case e.Target.DataAtom == atom.Select:
	case e.Target.DataAtom == atom.Input && (dom.InputType(e.Target) == "checkbox" || dom.InputType(e.Target) == "radio"):
	default:
		return
	}
	r.Capture(e.Target)
}

func (r *Recorder) handleSubmit(e dom.Event) {
	if e.Target == nil || e.Target.DataAtom != atom.Form {
		return
	}
	r.Commit(FormID(e.Target))
}

func (r *Recorder) handleClick(e dom.Event) {
	btn := submitLike(e.Target)
	if btn == nil {
		return
	}
	formID := FormID(btn)
	if r.opts.SettleDelay == 0 {
		r.Commit(formID)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return
	}
	r.nextTimer++
	id := r.nextTimer
	r.timers[id] = time.AfterFunc(r.opts.SettleDelay, func() {
		r.mu.Lock()
		_, live := r.timers[id]
		delete(r.timers, id)
		r.mu.Unlock()
		if live {
			r.Commit(formID)
		}
	})
}

func (r *Recorder) handleUnload(dom.Event) {
	r.Discard()
}

// Capture records the current value of el if it is a fillable field whose
// value is non-empty and differs from the last capture of the same element.
// It reports whether the pending buffer was written.
func (r *Recorder) Capture(el *html.Node) bool {
	if el == nil {
		return false
	}
	field, ok := r.describer.Describe(r.doc, el)
	if !ok {
		return false
	}
	// radio groups are cached under the group's first button
	key := field.Element
	if key == nil {
		key = el
	}
	value := strings.TrimSpace(r.doc.Value(el))
	if value == "" {
		return false
	}

	r.mu.Lock()
	if last, seen := r.lastValues[key]; seen && last == value {
		r.mu.Unlock()
		return false
	}
	r.lastValues[key] = value
	r.mu.Unlock()

	top := r.classifier.Classify(field)[0]
	formID := FormID(el)
	obs := &form.PendingObservation{
		ID:              r.opts.NewID(),
		Timestamp:       r.opts.Now(),
		SiteKey:         r.opts.SiteKey,
		URL:             r.doc.URL,
		FormID:          formID,
		QuestionKeyID:   r.opts.NewID(),
		FieldLocator:    field.Locator,
		WidgetSignature: field.WidgetSignature,
		Confidence:      top.Score,
		RawValue:        value,
		ClassifiedType:  top.Type,
		Status:          form.StatusPending,
		Field:           field,
	}

	r.mu.Lock()
	buf, ok := r.pending[formID]
	if !ok {
		buf = &formBuffer{entries: make(map[string]*form.PendingObservation)}
		r.pending[formID] = buf
	}
	if _, exists := buf.entries[obs.FieldLocator]; !exists {
		buf.order = append(buf.order, obs.FieldLocator)
	}
	buf.entries[obs.FieldLocator] = obs
	r.mu.Unlock()

	r.opts.Logger.Debug("field captured",
		zap.String("form", formID),
		zap.String("locator", obs.FieldLocator),
		zap.String("type", string(obs.ClassifiedType)),
		zap.Float64("confidence", obs.Confidence))
	return true
}

// Pending returns a copy of the pending entries of formID in capture order
func (r *Recorder) Pending(formID string) []form.PendingObservation {
	r.mu.Lock()
	defer r.mu.Unlock()
	buf, ok := r.pending[formID]
	if !ok {
		return nil
	}
	out := make([]form.PendingObservation, 0, len(buf.order))
	for _, loc := range buf.order {
		out = append(out, *buf.entries[loc])
	}
	return out
}

// PendingCount returns the number of pending entries across all forms
func (r *Recorder) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, buf := range r.pending {
		n += len(buf.entries)
	}
	return n
}

// Commit converts every pending entry of formID into an Observation, invokes
// the observation callbacks and then the commit callbacks. It returns the
// number committed; committing the same form again returns 0.
func (r *Recorder) Commit(formID string) int {
	r.mu.Lock()
	buf, ok := r.pending[formID]
	delete(r.pending, formID)
	obsFns := append([]ObservationFunc(nil), r.onObservation...)
	commitFns := append([]CommitFunc(nil), r.onCommit...)
	r.mu.Unlock()
	if !ok || len(buf.order) == 0 {
		return 0
	}

	observations := make([]form.Observation, 0, len(buf.order))
	for _, loc := range buf.order {
		p := buf.entries[loc]
		p.Status = form.StatusCommitted
		observations = append(observations, r.observe(p))
	}

	for _, obs := range observations {
		for _, fn := range obsFns {
			fn(obs)
		}
	}
	for _, fn := range commitFns {
		fn(formID, len(observations))
	}

	r.opts.Logger.Debug("form committed",
		zap.String("form", formID),
		zap.Int("observations", len(observations)))
	return len(observations)
}

// observe builds the durable observation with a freshly derived question key
func (r *Recorder) observe(p *form.PendingObservation) form.Observation {
	qk := form.NewQuestionKey(r.opts.NewID(), p.ClassifiedType, p.Field)
	return form.Observation{
		ID:              r.opts.NewID(),
		Timestamp:       r.opts.Now(),
		SiteKey:         p.SiteKey,
		URL:             p.URL,
		QuestionKeyID:   qk.ID,
		AnswerID:        r.opts.NewID(),
		WidgetSignature: p.WidgetSignature,
		Confidence:      p.Confidence,
		Type:            p.ClassifiedType,
		Value:           p.RawValue,
		QuestionKey:     &qk,
	}
}

// Discard drops every pending entry of every form and returns how many were dropped
func (r *Recorder) Discard() int {
	r.mu.Lock()
	n := 0
	for _, buf := range r.pending {
		n += len(buf.entries)
	}
	r.pending = make(map[string]*formBuffer)
	for id, t := range r.timers {
		t.Stop()
		delete(r.timers, id)
	}
	r.mu.Unlock()

	if n > 0 {
		r.opts.Logger.Debug("pending observations discarded", zap.Int("count", n))
	}
	return n
}

// FormID derives the key of the form owning el: the form's id, else its
// name, else its action, else DefaultFormID. A form attribute on the
// control names its owner directly.
func FormID(el *html.Node) string {
	if owner := dom.GetAttr(el, "form"); owner != "" && el.DataAtom != atom.Form {
		return owner
	}
	f := owningForm(el)
	if f == nil {
		return DefaultFormID
	}
	for _, attr := range []string{"id", "name", "action"} {
		if v := strings.TrimSpace(dom.GetAttr(f, attr)); v != "" {
			return v
		}
	}
	return DefaultFormID
}

// owningForm finds the nearest form, crossing shadow boundaries
func owningForm(el *html.Node) *html.Node {
	for cur := el; cur != nil; {
		if f := dom.Closest(cur, "form"); f != nil {
			return f
		}
		root := dom.ScopeRoot(cur)
		if !dom.IsShadowRoot(root) {
			return nil
		}
		cur = dom.ShadowHost(root)
	}
	return nil
}

// submitLike returns the button-like element at or above target whose type
// or text marks it as submitting, or nil
func submitLike(target *html.Node) *html.Node {
	for cur := target; cur != nil; cur = dom.ParentElement(cur) {
		var text string
		switch {
		case cur.DataAtom == atom.Button:
			if strings.EqualFold(dom.GetAttr(cur, "type"), "submit") {
				return cur
			}
			text = dom.Text(cur)
		case cur.DataAtom == atom.Input:
			switch dom.InputType(cur) {
			case "submit", "image":
				return cur
			case "button":
				text = dom.GetAttr(cur, "value")
			default:
				return nil
			}
		case strings.EqualFold(dom.GetAttr(cur, "role"), "button"), cur.DataAtom == atom.A:
			text = dom.Text(cur)
		default:
			continue
		}
		if submitLikeRe.MatchString(text) || submitLikeRe.MatchString(dom.GetAttr(cur, "aria-label")) {
			return cur
		}
		return nil
	}
	return nil
}

func siteKey(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "local"
	}
	return strings.ToLower(u.Hostname())
}
