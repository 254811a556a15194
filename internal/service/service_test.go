package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-form-reader/internal/config"
	"github.com/a3tai/mcp-form-reader/internal/descriptions"
	"github.com/a3tai/mcp-form-reader/internal/form"
	"github.com/a3tai/mcp-form-reader/internal/formerr"
)

const applyPage = `<!DOCTYPE html>
<html><body>
<form id="apply" action="/submit">
  <label for="email">Email address</label>
  <input id="email" name="email" type="email" autocomplete="email">
  <label for="terms">I accept the terms</label>
  <input id="terms" name="terms" type="checkbox">
  <label for="degree">Highest degree</label>
  <select id="degree" name="degree"><option value="">Choose</option><option value="bs">Bachelor</option></select>
  <fieldset><legend>Do you require visa sponsorship?</legend>
    <label><input type="radio" id="sp-yes" name="sponsor" value="yes"> Yes</label>
    <label><input type="radio" id="sp-no" name="sponsor" value="no"> No</label>
  </fieldset>
  <button type="submit">Submit</button>
</form>
</body></html>`

func newTestService(t *testing.T, mutate ...func(*config.Config)) (*Service, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.FormDirectory = dir
	cfg.SettleDelay = 0
	for _, fn := range mutate {
		fn(cfg)
	}
	svc, err := New(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc, dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func fieldByName(t *testing.T, fields []FieldReport, name string) FieldReport {
	t.Helper()
	for _, f := range fields {
		if f.Name() == name {
			return f
		}
	}
	t.Fatalf("no field named %q", name)
	return FieldReport{}
}

func TestNew(t *testing.T) {
	svc, dir := newTestService(t)

	assert.NotNil(t, svc.scanner)
	assert.NotNil(t, svc.classifier)
	assert.NotNil(t, svc.transforms)
	assert.NotNil(t, svc.acroform)
	assert.NotNil(t, svc.browser)
	assert.Nil(t, svc.store, "store is only opened with a database path")
	assert.Equal(t, dir, svc.GetConfiguredDirectory())
	assert.Equal(t, int64(config.DefaultMaxFileSize), svc.GetMaxFileSize())
}

func TestNewErrors(t *testing.T) {
	_, err := New(nil, nil)
	assert.True(t, formerr.Is(err, formerr.ErrorTypeInvalidInput))

	cfg := config.DefaultConfig()
	cfg.FormDirectory = t.TempDir()
	cfg.RulesFile = filepath.Join(cfg.FormDirectory, "missing.yaml")
	_, err = New(cfg, nil)
	assert.True(t, formerr.Is(err, formerr.ErrorTypeParse))
}

func TestNewWithRules(t *testing.T) {
	rules := filepath.Join(t.TempDir(), "rules.yaml")
	writeFile(t, rules, "rules:\n  - type: SALARY\n    patterns: [\"wunschgehalt\"]\n")

	svc, _ := newTestService(t, func(c *config.Config) { c.RulesFile = rules })
	res, err := svc.ScanHTML(ScanHTMLRequest{HTML: `<label for="g">Wunschgehalt</label><input id="g" name="g">`})
	require.NoError(t, err)
	require.Len(t, res.Fields, 1)
	assert.Equal(t, form.TaxonomySalary, res.Fields[0].Best().Type)
}

func TestScanFile(t *testing.T) {
	svc, dir := newTestService(t)
	writeFile(t, filepath.Join(dir, "apply.html"), applyPage)

	res, err := svc.ScanFile(ScanFileRequest{Path: "apply.html"})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "apply.html"), res.Source)
	assert.Equal(t, "html", res.Kind)
	assert.Equal(t, 4, res.Stats.Fillable)
	assert.Equal(t, 1, res.Stats.RadioGroups)
	require.Len(t, res.Fields, 4)

	email := fieldByName(t, res.Fields, "email")
	assert.Equal(t, form.TaxonomyEmail, email.Best().Type)
	assert.Equal(t, "Email address", email.LabelText)

	for _, f := range res.Fields {
		assert.NotEmpty(t, f.Candidates, f.Locator)
		assert.LessOrEqual(t, len(f.Candidates), MaxCandidates, f.Locator)
	}
}

func TestScanFileErrors(t *testing.T) {
	svc, dir := newTestService(t)
	writeFile(t, filepath.Join(dir, "notes.txt"), "hello")

	tests := []struct {
		name string
		path string
		want formerr.ErrorType
	}{
		{"empty path", "", formerr.ErrorTypeInvalidInput},
		{"escapes directory", "../outside.html", formerr.ErrorTypeSecurity},
		{"missing file", "missing.html", formerr.ErrorTypeNotFound},
		{"unsupported type", "notes.txt", formerr.ErrorTypeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ScanFile(ScanFileRequest{Path: tt.path})
			require.Error(t, err)
			assert.Equal(t, tt.want, formerr.TypeOf(err), err.Error())
		})
	}
}

func TestScanHTML(t *testing.T) {
	svc, _ := newTestService(t)

	res, err := svc.ScanHTML(ScanHTMLRequest{HTML: applyPage, URL: "https://jobs.example.com/apply"})
	require.NoError(t, err)
	assert.Equal(t, KindInline, res.Kind)
	assert.Equal(t, "https://jobs.example.com/apply", res.Source)
	assert.Len(t, res.Fields, 4)

	_, err = svc.ScanHTML(ScanHTMLRequest{HTML: applyPage, URL: "not a url"})
	assert.True(t, formerr.Is(err, formerr.ErrorTypeInvalidInput))

	_, err = svc.ScanHTML(ScanHTMLRequest{})
	assert.True(t, formerr.Is(err, formerr.ErrorTypeInvalidInput))
}

func TestScanURLRejectsBadAddress(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.ScanURL(context.Background(), ScanURLRequest{URL: "nope"})
	assert.True(t, formerr.Is(err, formerr.ErrorTypeInvalidInput))
}

func TestScanDirectory(t *testing.T) {
	svc, dir := newTestService(t)
	writeFile(t, filepath.Join(dir, "a.html"), applyPage)
	writeFile(t, filepath.Join(dir, "b.htm"), `<input name="city" autocomplete="address-level2">`)
	writeFile(t, filepath.Join(dir, "broken.pdf"), "not a pdf")
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")
	writeFile(t, filepath.Join(dir, ".cache", "hidden.html"), applyPage)

	res, err := svc.ScanDirectory(context.Background(), ScanDirectoryRequest{})
	require.NoError(t, err)

	assert.Equal(t, dir, res.Directory)
	require.Len(t, res.Files, 2)
	assert.Equal(t, filepath.Join(dir, "a.html"), res.Files[0].Source)
	assert.Equal(t, filepath.Join(dir, "b.htm"), res.Files[1].Source)
	assert.Equal(t, 5, res.Total.Fillable)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "broken.pdf")
	assert.Contains(t, res.Summary, "Found 1 error(s)")
}

func TestScanDirectoryLimit(t *testing.T) {
	svc, dir := newTestService(t)
	writeFile(t, filepath.Join(dir, "a.html"), applyPage)
	writeFile(t, filepath.Join(dir, "b.html"), applyPage)

	res, err := svc.ScanDirectory(context.Background(), ScanDirectoryRequest{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, res.Files, 1)
}

func TestScanDirectoryCancelled(t *testing.T) {
	svc, dir := newTestService(t)
	writeFile(t, filepath.Join(dir, "a.html"), applyPage)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.ScanDirectory(ctx, ScanDirectoryRequest{})
	assert.True(t, formerr.Is(err, formerr.ErrorTypeTimeout))
}

func TestTransformValue(t *testing.T) {
	svc, _ := newTestService(t)

	tests := []struct {
		name string
		req  TransformRequest
		want string
	}{
		{
			name: "phone fits placeholder",
			req: TransformRequest{
				Value:  "+14155551234",
				Source: "PHONE",
				Target: FieldSpec{Label: "Phone", Placeholder: "(555) 555-5555"},
			},
			want: "(415) 555-1234",
		},
		{
			name: "date into month options",
			req: TransformRequest{
				Value:  "2024-05-15",
				Source: "grad_date",
				Target: FieldSpec{
					Label:   "Graduation month",
					Options: []string{"January", "February", "March", "April", "May", "June"},
				},
			},
			want: "May",
		},
		{
			name: "cjk family name",
			req: TransformRequest{
				Value:  "张三",
				Source: "FULL_NAME",
				Target: FieldSpec{Label: "姓"},
			},
			want: "张",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.TransformValue(tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Value)
			assert.True(t, res.Changed)
			assert.NotEmpty(t, res.Transformer)
		})
	}
}

func TestTransformValueErrors(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.TransformValue(TransformRequest{Value: "x", Source: "SHOE_SIZE"})
	assert.True(t, formerr.Is(err, formerr.ErrorTypeInvalidInput))

	_, err = svc.TransformValue(TransformRequest{Value: "x", Source: "EMAIL", TargetType: "SHOE_SIZE"})
	assert.True(t, formerr.Is(err, formerr.ErrorTypeInvalidInput))

	_, err = svc.TransformValue(TransformRequest{Value: "x", Source: "EMAIL", Target: FieldSpec{Widget: "slider"}})
	assert.True(t, formerr.Is(err, formerr.ErrorTypeInvalidInput))

	res, err := svc.TransformValue(TransformRequest{Value: "jane@example.com", Source: "EMAIL"})
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", res.Value)
	assert.False(t, res.Changed)
}

func TestRecordingSession(t *testing.T) {
	svc, _ := newTestService(t)

	start, err := svc.RecordStart(context.Background(), RecordStartRequest{
		HTML: applyPage,
		URL:  "https://Jobs.Example.com/apply",
	})
	require.NoError(t, err)
	assert.Equal(t, "jobs.example.com", start.SiteKey)
	assert.Equal(t, 4, start.Fields)
	assert.Equal(t, []string{start.SessionID}, svc.ActiveSessions())

	state, err := svc.RecordInput(RecordInputRequest{SessionID: start.SessionID, Selector: "#email", Value: "jane@example.com"})
	require.NoError(t, err)
	assert.Equal(t, 0, state.Pending, "text inputs wait for blur")

	state, err = svc.RecordEvent(RecordEventRequest{SessionID: start.SessionID, Type: "blur", Selector: "#email"})
	require.NoError(t, err)
	assert.Equal(t, 1, state.Pending)

	state, err = svc.RecordInput(RecordInputRequest{SessionID: start.SessionID, Selector: "sponsor", Value: "No"})
	require.NoError(t, err)
	assert.Equal(t, 2, state.Pending)

	state, err = svc.RecordInput(RecordInputRequest{SessionID: start.SessionID, Selector: "#degree", Value: "Bachelor"})
	require.NoError(t, err)
	assert.Equal(t, 3, state.Pending)

	state, err = svc.RecordEvent(RecordEventRequest{SessionID: start.SessionID, Type: "submit", Selector: "#apply"})
	require.NoError(t, err)
	assert.Equal(t, 0, state.Pending)
	assert.Equal(t, 3, state.Committed)
	assert.True(t, state.Running)

	listed, err := svc.Observations(context.Background(), ObservationsRequest{SessionID: start.SessionID, Type: "EMAIL"})
	require.NoError(t, err)
	require.Len(t, listed.Observations, 1)
	assert.Equal(t, "jane@example.com", listed.Observations[0].Value)

	stop, err := svc.RecordStop(RecordStopRequest{SessionID: start.SessionID})
	require.NoError(t, err)
	assert.Len(t, stop.Observations, 3)
	assert.Equal(t, 0, stop.Pending)

	values := map[string]string{}
	for _, obs := range stop.Observations {
		assert.Equal(t, "jobs.example.com", obs.SiteKey)
		require.NotNil(t, obs.QuestionKey)
		values[string(obs.WidgetSignature.InteractionPlan)] = obs.Value
	}
	assert.Equal(t, "no", values[string(form.PlanClickOption)])
	assert.Equal(t, "bs", values[string(form.PlanSelectOption)])

	_, err = svc.RecordStop(RecordStopRequest{SessionID: start.SessionID})
	assert.True(t, formerr.Is(err, formerr.ErrorTypeNotFound))
	assert.Empty(t, svc.ActiveSessions())
}

func TestRecordingBeforeUnloadDiscards(t *testing.T) {
	svc, _ := newTestService(t)
	start, err := svc.RecordStart(context.Background(), RecordStartRequest{HTML: applyPage})
	require.NoError(t, err)
	assert.Equal(t, "local", start.SiteKey)

	_, err = svc.RecordInput(RecordInputRequest{SessionID: start.SessionID, Selector: "#terms", Value: "true"})
	require.NoError(t, err)

	state, err := svc.RecordEvent(RecordEventRequest{SessionID: start.SessionID, Type: "beforeunload"})
	require.NoError(t, err)
	assert.Equal(t, 0, state.Pending)

	stop, err := svc.RecordStop(RecordStopRequest{SessionID: start.SessionID})
	require.NoError(t, err)
	assert.Empty(t, stop.Observations)
}

func TestRecordingFromFile(t *testing.T) {
	svc, dir := newTestService(t)
	writeFile(t, filepath.Join(dir, "apply.html"), applyPage)
	writeFile(t, filepath.Join(dir, "form.pdf"), "%PDF-1.7")

	start, err := svc.RecordStart(context.Background(), RecordStartRequest{Path: "apply.html"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "apply.html"), start.Source)

	_, err = svc.RecordStart(context.Background(), RecordStartRequest{Path: "form.pdf"})
	assert.True(t, formerr.Is(err, formerr.ErrorTypeInvalidInput))

	_, err = svc.RecordStart(context.Background(), RecordStartRequest{})
	assert.True(t, formerr.Is(err, formerr.ErrorTypeInvalidInput))
}

func TestRecordingErrors(t *testing.T) {
	svc, _ := newTestService(t)
	start, err := svc.RecordStart(context.Background(), RecordStartRequest{HTML: applyPage})
	require.NoError(t, err)
	id := start.SessionID

	tests := []struct {
		name string
		call func() error
		want formerr.ErrorType
	}{
		{"unknown session", func() error {
			_, err := svc.RecordInput(RecordInputRequest{SessionID: "nope", Selector: "#email"})
			return err
		}, formerr.ErrorTypeNotFound},
		{"unknown selector", func() error {
			_, err := svc.RecordInput(RecordInputRequest{SessionID: id, Selector: "#fax"})
			return err
		}, formerr.ErrorTypeNotFound},
		{"bad checkbox state", func() error {
			_, err := svc.RecordInput(RecordInputRequest{SessionID: id, Selector: "#terms", Value: "maybe"})
			return err
		}, formerr.ErrorTypeInvalidInput},
		{"unknown radio option", func() error {
			_, err := svc.RecordInput(RecordInputRequest{SessionID: id, Selector: "#sp-yes", Value: "perhaps"})
			return err
		}, formerr.ErrorTypeInvalidInput},
		{"unknown event", func() error {
			_, err := svc.RecordEvent(RecordEventRequest{SessionID: id, Type: "focus", Selector: "#email"})
			return err
		}, formerr.ErrorTypeInvalidInput},
		{"event without selector", func() error {
			_, err := svc.RecordEvent(RecordEventRequest{SessionID: id, Type: "blur"})
			return err
		}, formerr.ErrorTypeInvalidInput},
		{"store disabled", func() error {
			_, err := svc.Observations(context.Background(), ObservationsRequest{})
			return err
		}, formerr.ErrorTypeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.Equal(t, tt.want, formerr.TypeOf(err), err.Error())
		})
	}
}

func TestRecordingPersists(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "observations.db")
	svc, _ := newTestService(t, func(c *config.Config) { c.DatabasePath = dbPath })
	require.NotNil(t, svc.store)

	start, err := svc.RecordStart(context.Background(), RecordStartRequest{HTML: applyPage, URL: "https://jobs.example.com/"})
	require.NoError(t, err)
	_, err = svc.RecordInput(RecordInputRequest{SessionID: start.SessionID, Selector: "#email", Value: "jane@example.com"})
	require.NoError(t, err)
	_, err = svc.RecordEvent(RecordEventRequest{SessionID: start.SessionID, Type: "blur", Selector: "#email"})
	require.NoError(t, err)
	_, err = svc.RecordEvent(RecordEventRequest{SessionID: start.SessionID, Type: "submit", Selector: "#apply"})
	require.NoError(t, err)

	stored, err := svc.Observations(context.Background(), ObservationsRequest{SiteKey: "jobs.example.com"})
	require.NoError(t, err)
	require.Len(t, stored.Observations, 1)
	assert.Equal(t, form.TaxonomyEmail, stored.Observations[0].Type)
	require.NotNil(t, stored.Observations[0].QuestionKey)

	byType, err := svc.Observations(context.Background(), ObservationsRequest{Type: "EMAIL"})
	require.NoError(t, err)
	assert.Equal(t, 1, byType.Total)

	info, err := svc.ServerInfo(context.Background())
	require.NoError(t, err)
	assert.True(t, info.Persistence)
	assert.Equal(t, 1, info.StoredCount)
}

func TestServerInfo(t *testing.T) {
	svc, dir := newTestService(t)
	writeFile(t, filepath.Join(dir, "apply.html"), applyPage)

	info, err := svc.ServerInfo(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "mcp-form-reader", info.ServerName)
	assert.Equal(t, dir, info.DefaultDirectory)
	assert.False(t, info.Persistence)
	require.Len(t, info.DirectoryContents, 1)
	assert.Equal(t, "apply.html", info.DirectoryContents[0].Name)
	assert.Len(t, info.AvailableTools, len(descriptions.GetAllToolNames()))
	assert.Contains(t, info.Parsers, "autocomplete")
	assert.NotEmpty(t, info.Transformers)
	assert.Contains(t, info.Taxonomies, "UNKNOWN")
	assert.Contains(t, info.UsageGuidance, dir)
}

func TestFieldFromSpec(t *testing.T) {
	tests := []struct {
		name string
		spec FieldSpec
		kind form.WidgetKind
		plan form.InteractionPlan
	}{
		{"plain text", FieldSpec{Label: "City"}, form.WidgetText, form.PlanType},
		{"options imply select", FieldSpec{Options: []string{"Yes", "No"}}, form.WidgetSelect, form.PlanSelectOption},
		{"checkbox type", FieldSpec{Type: "CHECKBOX"}, form.WidgetCheckbox, form.PlanToggle},
		{"date type", FieldSpec{Type: "date"}, form.WidgetDate, form.PlanPickDate},
		{"explicit widget wins", FieldSpec{Widget: "combobox", Options: []string{"a"}}, form.WidgetCombobox, form.PlanTypeAndPick},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			field := FieldFromSpec(tt.spec)
			assert.Equal(t, tt.kind, field.WidgetSignature.Kind)
			assert.Equal(t, tt.plan, field.WidgetSignature.InteractionPlan)
		})
	}

	field := FieldFromSpec(FieldSpec{Name: "tel", Placeholder: "555", MaxLength: 10, Type: "Tel"})
	assert.Equal(t, "tel", field.Name())
	assert.Equal(t, "tel", field.Type())
	assert.Equal(t, 10, field.MaxLength())
	assert.Equal(t, "555", field.Placeholder())
	assert.Empty(t, field.ID())
}

func TestParseChecked(t *testing.T) {
	tests := []struct {
		in      string
		want    bool
		wantErr bool
	}{
		{"true", true, false},
		{"on", true, false},
		{"Yes", true, false},
		{"1", true, false},
		{"", false, false},
		{"off", false, false},
		{"false", false, false},
		{"maybe", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseChecked(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
