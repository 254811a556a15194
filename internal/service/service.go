// Package service orchestrates the scanner, classifier, transformer and
// recorder behind the request/response types the MCP tools and the CLI use.
package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/a3tai/mcp-form-reader/internal/acroform"
	"github.com/a3tai/mcp-form-reader/internal/browser"
	"github.com/a3tai/mcp-form-reader/internal/classifier"
	"github.com/a3tai/mcp-form-reader/internal/config"
	"github.com/a3tai/mcp-form-reader/internal/dom"
	"github.com/a3tai/mcp-form-reader/internal/form"
	"github.com/a3tai/mcp-form-reader/internal/formerr"
	"github.com/a3tai/mcp-form-reader/internal/scanner"
	"github.com/a3tai/mcp-form-reader/internal/security"
	"github.com/a3tai/mcp-form-reader/internal/store"
	"github.com/a3tai/mcp-form-reader/internal/transform"
)

const (
	// MaxCandidates caps the candidates reported per field
	MaxCandidates = 3

	// KindURL marks scans of live pages
	KindURL = "url"
	// KindInline marks scans of markup passed in the request
	KindInline = "inline"

	blankURL = "about:blank"
)

// Service provides form operations with security validation
type Service struct {
	cfg           *config.Config
	logger        *zap.Logger
	pathValidator *security.PathValidator
	validate      *validator.Validate

	scanner    *scanner.Scanner
	classifier *classifier.Classifier
	transforms *transform.Registry
	acroform   *acroform.Reader
	browser    *browser.Snapshotter
	store      *store.Store

	mu       sync.Mutex
	sessions map[string]*session
}

// New creates the service and every component it orchestrates. The
// observation store is opened only when a database path is configured.
func New(cfg *config.Config, logger *zap.Logger) (*Service, error) {
	if cfg == nil {
		return nil, formerr.New(formerr.ErrorTypeInvalidInput, "config cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	pathValidator, err := security.NewPathValidator(cfg.FormDirectory, cfg.MaxFileSize)
	if err != nil {
		return nil, err
	}

	cls := classifier.NewWithWeights(logger.Named("classifier"), cfg.Weights)
	if cfg.RulesFile != "" {
		if err := cls.LoadRules(cfg.RulesFile); err != nil {
			return nil, formerr.Wrap(formerr.ErrorTypeParse, err, "failed to load label rules").WithFile(cfg.RulesFile)
		}
	}

	s := &Service{
		cfg:           cfg,
		logger:        logger,
		pathValidator: pathValidator,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		scanner:       scanner.New(logger.Named("scanner")),
		classifier:    cls,
		transforms:    transform.Default(logger.Named("transform")),
		acroform:      acroform.NewReader(logger.Named("acroform")),
		browser: browser.New(browser.Options{
			ControlURL: cfg.ChromeURL,
			Headless:   true,
			Logger:     logger.Named("browser"),
		}),
		sessions: make(map[string]*session),
	}

	if cfg.PersistenceEnabled() {
		st, err := store.Open(cfg.DatabasePath, logger.Named("store"))
		if err != nil {
			return nil, formerr.Wrap(formerr.ErrorTypeStore, err, "failed to open observation store").WithFile(cfg.DatabasePath)
		}
		s.store = st
	}

	logger.Info("form service ready",
		zap.String("directory", pathValidator.Directory()),
		zap.Bool("persistence", s.store != nil),
		zap.Strings("parsers", cls.Parsers()))
	return s, nil
}

// GetConfiguredDirectory returns the directory file tools are confined to
func (s *Service) GetConfiguredDirectory() string {
	return s.pathValidator.Directory()
}

// GetMaxFileSize returns the maximum allowed file size
func (s *Service) GetMaxFileSize() int64 {
	return s.cfg.MaxFileSize
}

// Classifier exposes the classifier, for callers that register extra parsers
func (s *Service) Classifier() *classifier.Classifier {
	return s.classifier
}

// ScanFile discovers and classifies the fields of an HTML or PDF file
func (s *Service) ScanFile(req ScanFileRequest) (*ScanResult, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	abs, kind, err := s.pathValidator.ResolveFormFile(req.Path)
	if err != nil {
		return nil, fmt.Errorf("security validation failed: %w", err)
	}
	return s.scanFile(abs, kind)
}

// ScanHTML discovers and classifies the fields of inline markup
func (s *Service) ScanHTML(req ScanHTMLRequest) (*ScanResult, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	url := req.URL
	if url == "" {
		url = blankURL
	}
	doc, err := dom.ParseString(req.HTML, url)
	if err != nil {
		return nil, formerr.Wrap(formerr.ErrorTypeParse, err, "failed to parse markup")
	}
	return s.report(url, KindInline, s.scanner.Scan(doc)), nil
}

// ScanURL snapshots a live page and scans it
func (s *Service) ScanURL(ctx context.Context, req ScanURLRequest) (*ScanResult, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	doc, err := s.browser.Document(ctx, req.URL)
	if err != nil {
		return nil, browserError(err, req.URL)
	}
	return s.report(doc.URL, KindURL, s.scanner.Scan(doc)), nil
}

// ScanDirectory scans every form file under a directory, in parallel.
// Per-file failures are collected rather than aborting the batch.
func (s *Service) ScanDirectory(ctx context.Context, req ScanDirectoryRequest) (*ScanDirectoryResult, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	dir, err := s.pathValidator.ResolveDirectory(req.Directory)
	if err != nil {
		return nil, fmt.Errorf("security validation failed: %w", err)
	}
	files, err := s.findForms(dir, req.Limit)
	if err != nil {
		return nil, formerr.Wrap(formerr.ErrorTypeFileAccess, err, "failed to list directory").WithFile(dir)
	}

	results := make([]*ScanResult, len(files))
	errs := make([]error, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			abs, kind, err := s.pathValidator.ResolveFormFile(f.Path)
			if err != nil {
				errs[i] = err
				return nil
			}
			results[i], errs[i] = s.scanFile(abs, kind)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, formerr.Wrap(formerr.ErrorTypeTimeout, err, "directory scan interrupted").WithFile(dir)
	}

	out := &ScanDirectoryResult{Directory: dir, Files: []ScanResult{}}
	collection := formerr.NewErrorCollection()
	for i, res := range results {
		if errs[i] != nil {
			collection.Add(files[i].Path, errs[i])
			continue
		}
		out.Files = append(out.Files, *res)
		addStats(&out.Total, res.Stats)
	}
	if collection.Count() > 0 {
		for _, e := range collection.Errors {
			out.Errors = append(out.Errors, fmt.Sprintf("%s: %s", filepath.Base(e.FilePath), e.Error()))
		}
		out.Summary = collection.Summary()
	}

	s.logger.Info("directory scanned",
		zap.String("directory", dir),
		zap.Int("files", len(out.Files)),
		zap.Int("errors", collection.Count()))
	return out, nil
}

// TransformValue converts a stored value into the variant the target expects
func (s *Service) TransformValue(req TransformRequest) (*TransformResult, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	source, ok := form.ParseTaxonomy(req.Source)
	if !ok {
		return nil, formerr.Newf(formerr.ErrorTypeInvalidInput, "unknown source type %q", req.Source)
	}
	var targetType form.Taxonomy
	if req.TargetType != "" {
		if targetType, ok = form.ParseTaxonomy(req.TargetType); !ok {
			return nil, formerr.Newf(formerr.ErrorTypeInvalidInput, "unknown target type %q", req.TargetType)
		}
	}

	res := s.transforms.Apply(transform.Request{
		Value:      req.Value,
		Source:     source,
		TargetType: targetType,
		Target:     FieldFromSpec(req.Target),
	})
	return &TransformResult{
		Input:       req.Value,
		Value:       res.Value,
		Source:      string(source),
		Transformer: res.Transformer,
		Changed:     res.Changed,
	}, nil
}

// Close stops every recording session and releases the browser and store
func (s *Service) Close() error {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*session)
	s.mu.Unlock()
	for _, sess := range sessions {
		sess.recorder.Stop()
	}

	var errs []error
	if err := s.browser.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close browser: %w", err))
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (s *Service) check(req any) error {
	if err := s.validate.Struct(req); err != nil {
		return formerr.Wrap(formerr.ErrorTypeInvalidInput, err, "invalid request")
	}
	return nil
}

func (s *Service) scanFile(abs, kind string) (*ScanResult, error) {
	if kind == security.KindPDF {
		res, err := s.acroform.ScanFile(abs)
		if err != nil {
			return nil, formerr.Wrap(formerr.ErrorTypeParse, err, "failed to read AcroForm").WithFile(abs)
		}
		return s.report(abs, kind, res), nil
	}

	doc, err := loadHTML(abs)
	if err != nil {
		return nil, err
	}
	return s.report(abs, kind, s.scanner.Scan(doc)), nil
}

func loadHTML(abs string) (*dom.Document, error) {
	f, err := os.Open(abs)
	if err != nil {
		return nil, formerr.Wrap(formerr.ErrorTypeFileAccess, err, "failed to open form file").WithFile(abs)
	}
	defer f.Close()

	doc, err := dom.Parse(f, "file://"+filepath.ToSlash(abs))
	if err != nil {
		return nil, formerr.Wrap(formerr.ErrorTypeParse, err, "failed to parse HTML").WithFile(abs)
	}
	return doc, nil
}

// report classifies every field of a scan
func (s *Service) report(source, kind string, res *scanner.Result) *ScanResult {
	out := &ScanResult{
		Source: source,
		Kind:   kind,
		Fields: make([]FieldReport, 0, len(res.Fields)),
		Stats:  res.Stats,
	}
	for i := range res.Fields {
		field := res.Fields[i]
		candidates := s.classifier.Classify(&field)
		if len(candidates) > MaxCandidates {
			candidates = candidates[:MaxCandidates]
		}
		out.Fields = append(out.Fields, FieldReport{FieldContext: field, Candidates: candidates})
	}
	return out
}

// findForms lists HTML and PDF files under directory, skipping hidden
// directories. limit <= 0 means no limit.
func (s *Service) findForms(directory string, limit int) ([]FileInfo, error) {
	var files []FileInfo
	err := filepath.WalkDir(directory, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			// keep walking past unreadable entries
			return nil
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != directory {
				return filepath.SkipDir
			}
			return nil
		}
		if limit > 0 && len(files) >= limit {
			return filepath.SkipAll
		}
		kind, ok := security.FormKind(d.Name())
		if !ok {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		files = append(files, FileInfo{
			Path:         path,
			Name:         info.Name(),
			Kind:         kind,
			Size:         info.Size(),
			ModifiedTime: info.ModTime().Format("2006-01-02 15:04:05"),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error walking directory: %w", err)
	}
	return files, nil
}

func addStats(total *scanner.Stats, s scanner.Stats) {
	total.Candidates += s.Candidates
	total.Fillable += s.Fillable
	total.Hidden += s.Hidden
	total.Disabled += s.Disabled
	total.ExcludedType += s.ExcludedType
	total.RadioGroups += s.RadioGroups
	total.ShadowRoots += s.ShadowRoots
	total.Frames += s.Frames
}

func browserError(err error, url string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return formerr.Wrap(formerr.ErrorTypeTimeout, err, "page snapshot interrupted").WithContext(url)
	}
	return formerr.Wrap(formerr.ErrorTypeBrowser, err, "page snapshot failed").WithContext(url)
}

// FieldFromSpec builds the FieldContext of a hand-described control
func FieldFromSpec(spec FieldSpec) *form.FieldContext {
	attrs := make(map[string]string)
	for key, value := range map[string]string{
		"name":        spec.Name,
		"id":          spec.ID,
		"type":        strings.ToLower(spec.Type),
		"placeholder": spec.Placeholder,
	} {
		if value != "" {
			attrs[key] = value
		}
	}
	if spec.MaxLength > 0 {
		attrs["maxlength"] = strconv.Itoa(spec.MaxLength)
	}

	kind := form.WidgetKind(spec.Widget)
	if kind == "" {
		kind = inferWidget(attrs["type"], len(spec.Options) > 0)
	}
	return &form.FieldContext{
		Locator:         "field",
		LabelText:       spec.Label,
		SectionTitle:    spec.Section,
		Attributes:      attrs,
		OptionsText:     append([]string(nil), spec.Options...),
		WidgetSignature: form.WidgetSignature{Kind: kind, InteractionPlan: planFor(kind)},
	}
}

func inferWidget(inputType string, hasOptions bool) form.WidgetKind {
	switch inputType {
	case "checkbox":
		return form.WidgetCheckbox
	case "radio":
		return form.WidgetRadio
	case "date", "month", "week", "datetime-local":
		return form.WidgetDate
	}
	if hasOptions {
		return form.WidgetSelect
	}
	return form.WidgetText
}

func planFor(kind form.WidgetKind) form.InteractionPlan {
	switch kind {
	case form.WidgetSelect:
		return form.PlanSelectOption
	case form.WidgetRadio:
		return form.PlanClickOption
	case form.WidgetCheckbox:
		return form.PlanToggle
	case form.WidgetDate:
		return form.PlanPickDate
	case form.WidgetCombobox:
		return form.PlanTypeAndPick
	}
	return form.PlanType
}
