// Package form holds the data model shared by the scanner, classifier,
// transformer and recorder.
package form

import (
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// WidgetKind describes how a control is driven, independent of its meaning
type WidgetKind string

const (
	WidgetText     WidgetKind = "text"
	WidgetTextarea WidgetKind = "textarea"
	WidgetSelect   WidgetKind = "select"
	WidgetRadio    WidgetKind = "radio"
	WidgetCheckbox WidgetKind = "checkbox"
	WidgetDate     WidgetKind = "date"
	WidgetCombobox WidgetKind = "combobox"
)

// InteractionPlan names the strategy an executor uses to set a value
type InteractionPlan string

const (
	PlanType         InteractionPlan = "type"
	PlanSelectOption InteractionPlan = "select_option"
	PlanClickOption  InteractionPlan = "click_option"
	PlanToggle       InteractionPlan = "toggle"
	PlanPickDate     InteractionPlan = "pick_date"
	PlanTypeAndPick  InteractionPlan = "type_and_pick"
)

// WidgetSignature describes how a control must be interacted with
type WidgetSignature struct {
	Kind            WidgetKind      `json:"kind"`
	Role            string          `json:"role,omitempty"`
	InteractionPlan InteractionPlan `json:"interaction_plan"`
	OptionLocator   string          `json:"option_locator,omitempty"`
}

// IsChoice reports whether the widget picks from a finite option set
func (w WidgetSignature) IsChoice() bool {
	switch w.Kind {
	case WidgetSelect, WidgetRadio, WidgetCombobox:
		return true
	}
	return false
}

// FieldContext is one discovered fillable control plus everything extracted about it
type FieldContext struct {
	Element         *html.Node        `json:"-"`
	Locator         string            `json:"locator"`
	LabelText       string            `json:"label_text"`
	LabelSource     string            `json:"label_source,omitempty"`
	SectionTitle    string            `json:"section_title,omitempty"`
	Attributes      map[string]string `json:"attributes,omitempty"`
	OptionsText     []string          `json:"options_text,omitempty"`
	FramePath       []string          `json:"frame_path,omitempty"`
	ShadowPath      []string          `json:"shadow_path,omitempty"`
	WidgetSignature WidgetSignature   `json:"widget_signature"`
}

// Attr returns the named attribute, or "" when absent
func (f *FieldContext) Attr(name string) string {
	if f == nil || f.Attributes == nil {
		return ""
	}
	return f.Attributes[name]
}

func (f *FieldContext) Name() string         { return f.Attr("name") }
func (f *FieldContext) ID() string           { return f.Attr("id") }
func (f *FieldContext) Type() string         { return strings.ToLower(f.Attr("type")) }
func (f *FieldContext) Autocomplete() string { return f.Attr("autocomplete") }
func (f *FieldContext) Placeholder() string  { return f.Attr("placeholder") }

// MaxLength returns the maxlength attribute, 0 when absent or malformed
func (f *FieldContext) MaxLength() int {
	n, err := strconv.Atoi(strings.TrimSpace(f.Attr("maxlength")))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// CandidateType is one scored, justified guess at a field's taxonomy
type CandidateType struct {
	Type    Taxonomy `json:"type"`
	Score   float64  `json:"score"`
	Reasons []string `json:"reasons"`
}

// ObservationStatus is the lifecycle state of a pending capture
type ObservationStatus string

const (
	StatusPending   ObservationStatus = "pending"
	StatusCommitted ObservationStatus = "committed"
)

// Observation is durable evidence linking a question to a value
type Observation struct {
	ID              string          `json:"id"`
	Timestamp       time.Time       `json:"timestamp"`
	SiteKey         string          `json:"site_key"`
	URL             string          `json:"url"`
	QuestionKeyID   string          `json:"question_key_id"`
	AnswerID        string          `json:"answer_id"`
	WidgetSignature WidgetSignature `json:"widget_signature"`
	Confidence      float64         `json:"confidence"`

	Type        Taxonomy     `json:"type"`
	Value       string       `json:"value"`
	QuestionKey *QuestionKey `json:"question_key,omitempty"`
}

// PendingObservation is an uncommitted, form-scoped capture
type PendingObservation struct {
	ID              string            `json:"id"`
	Timestamp       time.Time         `json:"timestamp"`
	SiteKey         string            `json:"site_key"`
	URL             string            `json:"url"`
	FormID          string            `json:"form_id"`
	QuestionKeyID   string            `json:"question_key_id"`
	FieldLocator    string            `json:"field_locator"`
	WidgetSignature WidgetSignature   `json:"widget_signature"`
	Confidence      float64           `json:"confidence"`
	RawValue        string            `json:"raw_value"`
	ClassifiedType  Taxonomy          `json:"classified_type"`
	Status          ObservationStatus `json:"status"`

	// Field is the context captured at record time; commit re-derives the
	// question key from it.
	Field *FieldContext `json:"-"`
}
