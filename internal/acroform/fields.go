package acroform

import (
	"fmt"
	"io"
	"strconv"

	"github.com/a3tai/mcp-form-reader/internal/form"
	"github.com/a3tai/mcp-form-reader/internal/scanner"
	"github.com/a3tai/mcp-form-reader/internal/textnorm"
)

// LabelTooltip marks labels taken from the TU entry
const LabelTooltip = "tooltip"

// Describe converts a terminal field into a FieldContext. Pushbuttons,
// signatures and unknown field types are not fillable.
func Describe(f Field) (form.FieldContext, bool) {
	ctx := form.FieldContext{
		Locator:     fieldLocator(f.Name),
		Attributes:  map[string]string{"name": f.Name},
		OptionsText: append([]string(nil), f.Options...),
	}

	switch f.Type {
	case TypeText:
		ctx.Attributes["type"] = "text"
		if f.Has(FlagPassword) {
			ctx.Attributes["type"] = "password"
		}
		ctx.WidgetSignature = form.WidgetSignature{Kind: form.WidgetText, InteractionPlan: form.PlanType}
		if f.Has(FlagMultiline) {
			delete(ctx.Attributes, "type")
			ctx.WidgetSignature.Kind = form.WidgetTextarea
		}
		if f.MaxLen > 0 {
			ctx.Attributes["maxlength"] = strconv.Itoa(f.MaxLen)
		}
	case TypeButton:
		switch {
		case f.Has(FlagPushbutton):
			return form.FieldContext{}, false
		case f.Has(FlagRadio):
			ctx.Attributes["type"] = "radio"
			ctx.WidgetSignature = form.WidgetSignature{
				Kind:            form.WidgetRadio,
				InteractionPlan: form.PlanClickOption,
				OptionLocator:   ctx.Locator,
			}
		default:
			ctx.Attributes["type"] = "checkbox"
			ctx.WidgetSignature = form.WidgetSignature{Kind: form.WidgetCheckbox, InteractionPlan: form.PlanToggle}
		}
	case TypeChoice:
		if f.Has(FlagCombo) && f.Has(FlagEdit) {
			ctx.WidgetSignature = form.WidgetSignature{
				Kind:            form.WidgetCombobox,
				Role:            "combobox",
				InteractionPlan: form.PlanTypeAndPick,
				OptionLocator:   ctx.Locator,
			}
		} else {
			ctx.WidgetSignature = form.WidgetSignature{
				Kind:            form.WidgetSelect,
				InteractionPlan: form.PlanSelectOption,
				OptionLocator:   ctx.Locator,
			}
		}
		if f.Has(FlagMultiSelect) {
			ctx.Attributes["multiple"] = ""
		}
	default:
		return form.FieldContext{}, false
	}

	if f.Has(FlagRequired) {
		ctx.Attributes["required"] = ""
	}
	if f.Tooltip != "" {
		ctx.LabelText, ctx.LabelSource = textnorm.CollapseSpaces(f.Tooltip), LabelTooltip
	} else if label := textnorm.Humanize(f.Partial); label != "" {
		ctx.LabelText, ctx.LabelSource = label, scanner.LabelName
	}
	ctx.SectionTitle = textnorm.Humanize(f.Parent)
	return ctx, true
}

// fieldLocator addresses a field by its fully qualified name
func fieldLocator(name string) string {
	return fmt.Sprintf("acroform:field(%q)", name)
}

// Scan reads rs and describes every fillable field, counting the rest the
// way the HTML scanner does
func (r *Reader) Scan(rs io.ReadSeeker) (*scanner.Result, error) {
	fields, err := r.Read(rs)
	if err != nil {
		return nil, err
	}
	return Summarize(fields), nil
}

// ScanFile is Scan over the PDF at path
func (r *Reader) ScanFile(path string) (*scanner.Result, error) {
	fields, err := r.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Summarize(fields), nil
}

// Summarize describes fields and tallies scan statistics
func Summarize(fields []Field) *scanner.Result {
	result := &scanner.Result{Fields: []form.FieldContext{}}
	for _, f := range fields {
		result.Stats.Candidates++
		if f.Has(FlagReadOnly) {
			result.Stats.Disabled++
			continue
		}
		ctx, ok := Describe(f)
		if !ok {
			result.Stats.ExcludedType++
			continue
		}
		if ctx.WidgetSignature.Kind == form.WidgetRadio {
			result.Stats.RadioGroups++
		}
		result.Stats.Fillable++
		result.Fields = append(result.Fields, ctx)
	}
	return result
}
