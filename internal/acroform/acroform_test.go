package acroform

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/a3tai/mcp-form-reader/internal/form"
	"github.com/a3tai/mcp-form-reader/internal/scanner"
)

// buildPDF assembles a single-page PDF whose objects are numbered from 1 in
// the order given, with a correct cross-reference table
func buildPDF(objects ...string) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n")
	offsets := make([]int, len(objects))
	for i, body := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func applicationPDF() []byte {
	return buildPDF(
		`<< /Type /Catalog /Pages 2 0 R /AcroForm << /Fields [4 0 R 5 0 R 6 0 R 9 0 R 10 0 R 11 0 R 12 0 R 14 0 R] >> >>`,
		`<< /Type /Pages /Kids [3 0 R] /Count 1 >>`,
		`<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>`,
		`<< /FT /Tx /T (email) /TU (Email address) /MaxLen 80 /Ff 2 /V (jane@example.com) >>`,
		`<< /FT /Tx /T (cover_letter) /Ff 4096 >>`,
		`<< /FT /Btn /T (visa) /TU (Do you require visa sponsorship?) /Ff 49152 /Kids [7 0 R 8 0 R] /V /No >>`,
		`<< /Type /Annot /Subtype /Widget /Parent 6 0 R /AP << /N << /Yes 0 /Off 0 >> >> >>`,
		`<< /Type /Annot /Subtype /Widget /Parent 6 0 R /AP << /N << /No 0 /Off 0 >> >> >>`,
		`<< /FT /Ch /T (degree) /Ff 131072 /Opt [(Bachelor) [(ms) (Master)]] >>`,
		`<< /FT /Btn /T (send) /Ff 65536 >>`,
		`<< /FT /Tx /T (reference) /Ff 1 >>`,
		`<< /T (education) /FT /Tx /Kids [13 0 R] >>`,
		`<< /T (schoolName) /Parent 12 0 R >>`,
		`<< /FT /Btn /T (agree) /TU (I agree to the terms) >>`,
	)
}

func TestReadFields(t *testing.T) {
	fields, err := NewReader(zap.NewNop()).Read(bytes.NewReader(applicationPDF()))
	require.NoError(t, err)

	want := []Field{
		{Name: "email", Partial: "email", Tooltip: "Email address", Type: TypeText, Flags: FlagRequired, MaxLen: 80, Value: "jane@example.com"},
		{Name: "cover_letter", Partial: "cover_letter", Type: TypeText, Flags: FlagMultiline},
		{Name: "visa", Partial: "visa", Tooltip: "Do you require visa sponsorship?", Type: TypeButton, Flags: 49152, Options: []string{"Yes", "No"}, Value: "No"},
		{Name: "degree", Partial: "degree", Type: TypeChoice, Flags: FlagCombo, Options: []string{"Bachelor", "Master"}},
		{Name: "send", Partial: "send", Type: TypeButton, Flags: FlagPushbutton},
		{Name: "reference", Partial: "reference", Type: TypeText, Flags: FlagReadOnly},
		{Name: "education.schoolName", Partial: "schoolName", Parent: "education", Type: TypeText},
		{Name: "agree", Partial: "agree", Tooltip: "I agree to the terms", Type: TypeButton},
	}
	if diff := cmp.Diff(want, fields); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "application.pdf")
	require.NoError(t, os.WriteFile(path, applicationPDF(), 0o600))

	res, err := NewReader(nil).ScanFile(path)
	require.NoError(t, err)
	assert.Equal(t, scanner.Stats{Candidates: 8, Fillable: 6, Disabled: 1, ExcludedType: 1, RadioGroups: 1}, res.Stats)

	_, err = NewReader(nil).ReadFile(filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, err)
}

func TestReadWithoutAcroForm(t *testing.T) {
	pdf := buildPDF(
		`<< /Type /Catalog /Pages 2 0 R >>`,
		`<< /Type /Pages /Kids [3 0 R] /Count 1 >>`,
		`<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>`,
	)
	fields, err := NewReader(nil).Read(bytes.NewReader(pdf))
	require.NoError(t, err)
	assert.Empty(t, fields)
}

func TestReadGarbage(t *testing.T) {
	_, err := NewReader(nil).Read(bytes.NewReader([]byte("not a pdf")))
	assert.Error(t, err)
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name  string
		field Field
		ok    bool
		want  form.FieldContext
	}{
		{
			name:  "text with tooltip",
			field: Field{Name: "email", Partial: "email", Tooltip: "Email  address", Type: TypeText, Flags: FlagRequired, MaxLen: 80},
			ok:    true,
			want: form.FieldContext{
				Locator:         `acroform:field("email")`,
				LabelText:       "Email address",
				LabelSource:     LabelTooltip,
				Attributes:      map[string]string{"name": "email", "type": "text", "maxlength": "80", "required": ""},
				WidgetSignature: form.WidgetSignature{Kind: form.WidgetText, InteractionPlan: form.PlanType},
			},
		},
		{
			name:  "multiline in section",
			field: Field{Name: "education.notes", Partial: "notes", Parent: "education", Type: TypeText, Flags: FlagMultiline},
			ok:    true,
			want: form.FieldContext{
				Locator:         `acroform:field("education.notes")`,
				LabelText:       "notes",
				LabelSource:     scanner.LabelName,
				SectionTitle:    "education",
				Attributes:      map[string]string{"name": "education.notes"},
				WidgetSignature: form.WidgetSignature{Kind: form.WidgetTextarea, InteractionPlan: form.PlanType},
			},
		},
		{
			name:  "radio",
			field: Field{Name: "visa", Partial: "visa", Type: TypeButton, Flags: FlagRadio, Options: []string{"Yes", "No"}},
			ok:    true,
			want: form.FieldContext{
				Locator:     `acroform:field("visa")`,
				LabelText:   "visa",
				LabelSource: scanner.LabelName,
				Attributes:  map[string]string{"name": "visa", "type": "radio"},
				OptionsText: []string{"Yes", "No"},
				WidgetSignature: form.WidgetSignature{
					Kind:            form.WidgetRadio,
					InteractionPlan: form.PlanClickOption,
					OptionLocator:   `acroform:field("visa")`,
				},
			},
		},
		{
			name:  "editable combo",
			field: Field{Name: "city", Partial: "city", Type: TypeChoice, Flags: FlagCombo | FlagEdit, Options: []string{"Paris"}},
			ok:    true,
			want: form.FieldContext{
				Locator:     `acroform:field("city")`,
				LabelText:   "city",
				LabelSource: scanner.LabelName,
				Attributes:  map[string]string{"name": "city"},
				OptionsText: []string{"Paris"},
				WidgetSignature: form.WidgetSignature{
					Kind:            form.WidgetCombobox,
					Role:            "combobox",
					InteractionPlan: form.PlanTypeAndPick,
					OptionLocator:   `acroform:field("city")`,
				},
			},
		},
		{name: "pushbutton", field: Field{Name: "go", Type: TypeButton, Flags: FlagPushbutton}},
		{name: "signature", field: Field{Name: "sig", Type: TypeSignature}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Describe(tt.field)
			assert.Equal(t, tt.ok, ok)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Describe mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
