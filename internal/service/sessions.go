package service

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/a3tai/mcp-form-reader/internal/dom"
	"github.com/a3tai/mcp-form-reader/internal/form"
	"github.com/a3tai/mcp-form-reader/internal/formerr"
	"github.com/a3tai/mcp-form-reader/internal/recorder"
	"github.com/a3tai/mcp-form-reader/internal/security"
	"github.com/a3tai/mcp-form-reader/internal/textnorm"
)

// DefaultObservationLimit caps store listings when the request sets no limit
const DefaultObservationLimit = 100

// session is one recorder attached to one loaded document
type session struct {
	id       string
	source   string
	doc      *dom.Document
	recorder *recorder.Recorder

	mu           sync.Mutex
	observations []form.Observation
}

func (sess *session) add(obs form.Observation) {
	sess.mu.Lock()
	sess.observations = append(sess.observations, obs)
	sess.mu.Unlock()
}

func (sess *session) committed() []form.Observation {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return append([]form.Observation{}, sess.observations...)
}

func (sess *session) state() *SessionState {
	return &SessionState{
		SessionID: sess.id,
		Pending:   sess.recorder.PendingCount(),
		Committed: len(sess.committed()),
		Running:   sess.recorder.Running(),
	}
}

// RecordStart loads a document, attaches a recorder to it and starts it
func (s *Service) RecordStart(ctx context.Context, req RecordStartRequest) (*RecordStartResult, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	doc, source, err := s.loadDocument(ctx, req)
	if err != nil {
		return nil, err
	}

	// a zero settle delay in config means commit on click immediately
	settle := s.cfg.SettleDelay
	if settle == 0 {
		settle = -1
	}
	rec := recorder.New(doc, s.scanner, s.classifier, recorder.Options{
		SettleDelay: settle,
		SiteKey:     req.SiteKey,
		Logger:      s.logger.Named("recorder"),
	})

	sess := &session{id: uuid.NewString(), source: source, doc: doc, recorder: rec}
	rec.OnObservation(sess.add)
	if s.store != nil {
		rec.OnObservation(s.persist)
	}
	rec.OnCommit(func(formID string, count int) {
		s.logger.Info("form committed",
			zap.String("session", sess.id),
			zap.String("form", formID),
			zap.Int("observations", count))
	})
	rec.Start()

	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	fields := len(s.scanner.Scan(doc).Fields)
	s.logger.Info("recording started",
		zap.String("session", sess.id),
		zap.String("source", source),
		zap.Int("fields", fields))
	return &RecordStartResult{
		SessionID: sess.id,
		Source:    source,
		SiteKey:   rec.SiteKey(),
		Fields:    fields,
	}, nil
}

// RecordInput sets a control's live value. Choice controls fire change the
// way a browser does; text controls fire input and wait for a blur.
func (s *Service) RecordInput(req RecordInputRequest) (*SessionState, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	sess, err := s.session(req.SessionID)
	if err != nil {
		return nil, err
	}
	el := sess.doc.Find(req.Selector)
	if el == nil {
		return nil, formerr.Newf(formerr.ErrorTypeNotFound, "no element matches %q", req.Selector)
	}

	event := dom.EventInput
	switch {
	case el.DataAtom == atom.Input && dom.InputType(el) == "checkbox":
		on, err := parseChecked(req.Value)
		if err != nil {
			return nil, err
		}
		sess.doc.SetChecked(el, on)
		event = dom.EventChange
	case el.DataAtom == atom.Input && dom.InputType(el) == "radio":
		opt := radioOption(sess.doc, el, req.Value)
		if opt == nil {
			return nil, formerr.Newf(formerr.ErrorTypeInvalidInput, "radio group %q has no option %q", req.Selector, req.Value)
		}
		sess.doc.SetChecked(opt, true)
		el, event = opt, dom.EventChange
	case el.DataAtom == atom.Select:
		sess.doc.SetValue(el, selectValue(el, req.Value))
		event = dom.EventChange
	default:
		sess.doc.SetValue(el, req.Value)
	}

	sess.doc.Dispatch(dom.Event{Type: event, Target: el})
	return sess.state(), nil
}

// RecordEvent dispatches a DOM event at the element a selector resolves to
func (s *Service) RecordEvent(req RecordEventRequest) (*SessionState, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	sess, err := s.session(req.SessionID)
	if err != nil {
		return nil, err
	}

	var target *html.Node
	if req.Selector != "" {
		if target = sess.doc.Find(req.Selector); target == nil {
			return nil, formerr.Newf(formerr.ErrorTypeNotFound, "no element matches %q", req.Selector)
		}
	}
	if req.Type == dom.EventBeforeUnload {
		target = nil
	}
	sess.doc.Dispatch(dom.Event{Type: req.Type, Target: target})
	return sess.state(), nil
}

// RecordStop stops and forgets a session. Entries never committed are
// reported as pending and dropped.
func (s *Service) RecordStop(req RecordStopRequest) (*RecordStopResult, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	s.mu.Lock()
	sess, ok := s.sessions[req.SessionID]
	delete(s.sessions, req.SessionID)
	s.mu.Unlock()
	if !ok {
		return nil, formerr.Newf(formerr.ErrorTypeNotFound, "no recording session %q", req.SessionID)
	}

	sess.recorder.Stop()
	result := &RecordStopResult{
		SessionID:    sess.id,
		Pending:      sess.recorder.PendingCount(),
		Observations: sess.committed(),
	}
	s.logger.Info("recording stopped",
		zap.String("session", sess.id),
		zap.Int("committed", len(result.Observations)),
		zap.Int("pending", result.Pending))
	return result, nil
}

// Observations lists committed observations of a session, or from the store
func (s *Service) Observations(ctx context.Context, req ObservationsRequest) (*ObservationsResult, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	var filter form.Taxonomy
	if req.Type != "" {
		t, ok := form.ParseTaxonomy(req.Type)
		if !ok {
			return nil, formerr.Newf(formerr.ErrorTypeInvalidInput, "unknown type %q", req.Type)
		}
		filter = t
	}

	if req.SessionID != "" {
		sess, err := s.session(req.SessionID)
		if err != nil {
			return nil, err
		}
		out := filterObservations(sess.committed(), req.SiteKey, filter)
		total := len(out)
		if req.Limit > 0 && len(out) > req.Limit {
			out = out[:req.Limit]
		}
		return &ObservationsResult{Source: "session " + sess.id, Observations: out, Total: total}, nil
	}

	if s.store == nil {
		return nil, formerr.New(formerr.ErrorTypeInvalidInput, "persistence is disabled; pass a session_id or configure a database")
	}
	limit := req.Limit
	if limit == 0 {
		limit = DefaultObservationLimit
	}

	var (
		out []form.Observation
		err error
	)
	if filter != "" {
		out, err = s.store.ListByType(ctx, filter)
		out = filterObservations(out, req.SiteKey, "")
	} else {
		out, err = s.store.ListBySite(ctx, req.SiteKey, 0)
	}
	if err != nil {
		return nil, formerr.Wrap(formerr.ErrorTypeStore, err, "failed to list observations")
	}
	total := len(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return &ObservationsResult{Source: "store " + s.store.Path(), Observations: out, Total: total}, nil
}

// ActiveSessions returns the ids of running sessions, sorted
func (s *Service) ActiveSessions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Service) persist(obs form.Observation) {
	if err := s.store.Save(context.Background(), obs); err != nil {
		s.logger.Error("failed to persist observation",
			zap.String("observation", obs.ID),
			zap.Error(err))
	}
}

func (s *Service) session(id string) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, formerr.Newf(formerr.ErrorTypeNotFound, "no recording session %q", id)
	}
	return sess, nil
}

func (s *Service) loadDocument(ctx context.Context, req RecordStartRequest) (*dom.Document, string, error) {
	switch {
	case req.Path != "":
		abs, kind, err := s.pathValidator.ResolveFormFile(req.Path)
		if err != nil {
			return nil, "", err
		}
		if kind != security.KindHTML {
			return nil, "", formerr.New(formerr.ErrorTypeInvalidInput, "recording needs an HTML document").WithFile(abs)
		}
		doc, err := loadHTML(abs)
		return doc, abs, err
	case req.HTML != "":
		url := req.URL
		if url == "" {
			url = blankURL
		}
		doc, err := dom.ParseString(req.HTML, url)
		if err != nil {
			return nil, "", formerr.Wrap(formerr.ErrorTypeParse, err, "failed to parse markup")
		}
		return doc, KindInline, nil
	default:
		doc, err := s.browser.Document(ctx, req.URL)
		if err != nil {
			return nil, "", browserError(err, req.URL)
		}
		return doc, doc.URL, nil
	}
}

func parseChecked(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "on", "yes", "checked":
		return true, nil
	case "", "off", "no", "unchecked":
		return false, nil
	}
	on, err := strconv.ParseBool(value)
	if err != nil {
		return false, formerr.Newf(formerr.ErrorTypeInvalidInput, "cannot read %q as a checkbox state", value)
	}
	return on, nil
}

// radioOption picks the radio of el's group whose value, id or label text
// matches value
func radioOption(doc *dom.Document, el *html.Node, value string) *html.Node {
	want := textnorm.Normalize(value)
	group := doc.RadioGroup(el)
	for _, r := range group {
		if v, ok := dom.Attr(r, "value"); ok && v == value {
			return r
		}
	}
	for _, r := range group {
		if want != "" && (textnorm.Normalize(dom.GetAttr(r, "id")) == want || textnorm.Normalize(radioText(r)) == want) {
			return r
		}
	}
	return nil
}

func radioText(r *html.Node) string {
	if l := dom.Closest(r, "label"); l != nil {
		return dom.Text(l)
	}
	if id := dom.GetAttr(r, "id"); id != "" {
		for _, l := range dom.FindAll(dom.ScopeRoot(r), func(c *html.Node) bool { return c.DataAtom == atom.Label }) {
			if dom.GetAttr(l, "for") == id {
				return dom.Text(l)
			}
		}
	}
	return ""
}

// selectValue maps an option's visible text onto its value
func selectValue(sel *html.Node, value string) string {
	want := textnorm.Normalize(value)
	for _, opt := range dom.Options(sel) {
		if dom.OptionValue(opt) == value {
			return value
		}
	}
	for _, opt := range dom.Options(sel) {
		if textnorm.Normalize(dom.Text(opt)) == want {
			return dom.OptionValue(opt)
		}
	}
	return value
}

func filterObservations(in []form.Observation, site string, t form.Taxonomy) []form.Observation {
	out := make([]form.Observation, 0, len(in))
	for _, obs := range in {
		if site != "" && obs.SiteKey != site {
			continue
		}
		if t != "" && obs.Type != t {
			continue
		}
		out = append(out, obs)
	}
	return out
}
