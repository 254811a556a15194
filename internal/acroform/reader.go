// Package acroform reads the interactive form of a PDF (its AcroForm field
// tree) so the classifier and transformers can run over PDF forms the same
// way they run over HTML.
package acroform

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"go.uber.org/zap"
)

// Field flag bits, numbered from bit 1 as in ISO 32000
const (
	FlagReadOnly    = 1 << 0
	FlagRequired    = 1 << 1
	FlagMultiline   = 1 << 12
	FlagPassword    = 1 << 13
	FlagRadio       = 1 << 15
	FlagPushbutton  = 1 << 16
	FlagCombo       = 1 << 17
	FlagEdit        = 1 << 18
	FlagMultiSelect = 1 << 21
)

// Field types as they appear in FT
const (
	TypeText      = "Tx"
	TypeButton    = "Btn"
	TypeChoice    = "Ch"
	TypeSignature = "Sig"
)

// maxDepth bounds the field-tree walk against reference cycles
const maxDepth = 32

// Field is one terminal AcroForm field with its inherited attributes resolved
type Field struct {
	Name    string   `json:"name"`
	Partial string   `json:"partial_name"`
	Parent  string   `json:"parent,omitempty"`
	Tooltip string   `json:"tooltip,omitempty"`
	Type    string   `json:"type"`
	Flags   int      `json:"flags"`
	Options []string `json:"options,omitempty"`
	MaxLen  int      `json:"max_len,omitempty"`
	Value   string   `json:"value,omitempty"`
}

// Has reports whether every bit of flag is set
func (f Field) Has(flag int) bool {
	return f.Flags&flag == flag
}

// Reader extracts AcroForm fields with pdfcpu
type Reader struct {
	logger *zap.Logger
}

// NewReader creates a reader. A nil logger discards output.
func NewReader(logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{logger: logger}
}

// ReadFile extracts every terminal field of the PDF at path
func (r *Reader) ReadFile(path string) ([]Field, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF file: %w", err)
	}
	defer file.Close()

	return r.Read(file)
}

// Read extracts every terminal field of the PDF in rs
func (r *Reader) Read(rs io.ReadSeeker) ([]Field, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(rs, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF context: %w", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("failed to ensure page count: %w", err)
	}
	return r.fields(ctx)
}

func (r *Reader) fields(ctx *model.Context) ([]Field, error) {
	fields := []Field{}

	rootDict, err := ctx.Catalog()
	if err != nil {
		return nil, fmt.Errorf("failed to get catalog: %w", err)
	}
	acroFormObj, found := rootDict.Find("AcroForm")
	if !found {
		r.logger.Debug("no AcroForm dictionary in document")
		return fields, nil
	}
	acroFormDict, err := ctx.DereferenceDict(acroFormObj)
	if err != nil {
		return nil, fmt.Errorf("failed to dereference AcroForm: %w", err)
	}
	if acroFormDict == nil {
		return fields, nil
	}
	fieldsObj, found := acroFormDict.Find("Fields")
	if !found {
		return fields, nil
	}
	fieldsArray, err := ctx.DereferenceArray(fieldsObj)
	if err != nil {
		return nil, fmt.Errorf("failed to dereference Fields array: %w", err)
	}

	w := &walker{ctx: ctx, logger: r.logger}
	for _, obj := range fieldsArray {
		w.walk(obj, inherited{}, 0)
	}
	r.logger.Debug("acroform read", zap.Int("fields", len(w.out)))
	return append(fields, w.out...), nil
}

// inherited carries the inheritable entries of non-terminal ancestors
type inherited struct {
	name    string
	partial string
	ft      string
	flags   int
}

type walker struct {
	ctx    *model.Context
	logger *zap.Logger
	out    []Field
}

func (w *walker) walk(obj types.Object, parent inherited, depth int) {
	if depth > maxDepth {
		w.logger.Warn("acroform field tree too deep", zap.String("parent", parent.name))
		return
	}
	dict, err := w.ctx.DereferenceDict(obj)
	if err != nil || dict == nil {
		return
	}

	cur := parent
	if partial := w.str(dict, "T"); partial != "" {
		cur.partial = partial
		cur.name = partial
		if parent.name != "" {
			cur.name = parent.name + "." + partial
		}
	}
	if ft := w.name(dict, "FT"); ft != "" {
		cur.ft = ft
	}
	if flags, ok := w.integer(dict, "Ff"); ok {
		cur.flags = flags
	}

	kids := w.array(dict, "Kids")
	var fieldKids []types.Object
	for _, kid := range kids {
		if kd, err := w.ctx.DereferenceDict(kid); err == nil && kd != nil {
			if _, named := kd.Find("T"); named {
				fieldKids = append(fieldKids, kid)
			}
		}
	}
	if len(fieldKids) > 0 {
		for _, kid := range fieldKids {
			w.walk(kid, cur, depth+1)
		}
		return
	}
	if cur.name == "" {
		return
	}

	field := Field{
		Name:    cur.name,
		Partial: cur.partial,
		Parent:  parent.partial,
		Tooltip: w.str(dict, "TU"),
		Type:    cur.ft,
		Flags:   cur.flags,
		Options: w.options(dict),
	}
	if n, ok := w.integer(dict, "MaxLen"); ok {
		field.MaxLen = n
	}
	if field.Type == TypeButton && len(field.Options) == 0 {
		field.Options = w.exportValues(append([]types.Object{dict}, kids...))
	}
	if v, found := dict.Find("V"); found {
		field.Value = w.value(v)
	}
	w.out = append(w.out, field)
}

// options reads Opt, preferring the display text of [export display] pairs
func (w *walker) options(dict types.Dict) []string {
	var out []string
	for _, opt := range w.array(dict, "Opt") {
		if s, err := w.ctx.DereferenceStringOrHexLiteral(opt, model.V10, nil); err == nil {
			out = append(out, s)
		} else if pair, err := w.ctx.DereferenceArray(opt); err == nil && len(pair) >= 2 {
			if display, err := w.ctx.DereferenceStringOrHexLiteral(pair[1], model.V10, nil); err == nil {
				out = append(out, display)
			}
		}
	}
	return out
}

// exportValues collects the on-state appearance names of a button's widgets
func (w *walker) exportValues(widgets []types.Object) []string {
	seen := make(map[string]bool)
	var out []string
	for _, obj := range widgets {
		widget, err := w.ctx.DereferenceDict(obj)
		if err != nil || widget == nil {
			continue
		}
		apObj, found := widget.Find("AP")
		if !found {
			continue
		}
		ap, err := w.ctx.DereferenceDict(apObj)
		if err != nil || ap == nil {
			continue
		}
		nObj, found := ap.Find("N")
		if !found {
			continue
		}
		normal, err := w.ctx.DereferenceDict(nObj)
		if err != nil || normal == nil {
			continue
		}
		keys := make([]string, 0, len(normal))
		for k := range normal {
			if k != "Off" && !seen[k] {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

func (w *walker) value(obj types.Object) string {
	if s, err := w.ctx.DereferenceStringOrHexLiteral(obj, model.V10, nil); err == nil {
		return s
	}
	if n, err := w.ctx.DereferenceName(obj, model.V10, nil); err == nil && string(n) != "Off" {
		return string(n)
	}
	if arr, err := w.ctx.DereferenceArray(obj); err == nil {
		var values []string
		for _, item := range arr {
			if s, err := w.ctx.DereferenceStringOrHexLiteral(item, model.V10, nil); err == nil {
				values = append(values, s)
			}
		}
		return strings.Join(values, ", ")
	}
	return ""
}

func (w *walker) str(dict types.Dict, key string) string {
	obj, found := dict.Find(key)
	if !found {
		return ""
	}
	s, err := w.ctx.DereferenceStringOrHexLiteral(obj, model.V10, nil)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func (w *walker) name(dict types.Dict, key string) string {
	obj, found := dict.Find(key)
	if !found {
		return ""
	}
	n, err := w.ctx.DereferenceName(obj, model.V10, nil)
	if err != nil {
		return ""
	}
	return string(n)
}

func (w *walker) integer(dict types.Dict, key string) (int, bool) {
	obj, found := dict.Find(key)
	if !found {
		return 0, false
	}
	n, err := w.ctx.DereferenceInteger(obj)
	if err != nil || n == nil {
		return 0, false
	}
	return int(*n), true
}

func (w *walker) array(dict types.Dict, key string) types.Array {
	obj, found := dict.Find(key)
	if !found {
		return nil
	}
	arr, err := w.ctx.DereferenceArray(obj)
	if err != nil {
		return nil
	}
	return arr
}
