// Package security keeps file tools inside the configured form directory.
package security

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/a3tai/mcp-form-reader/internal/formerr"
)

// Form file kinds by extension
const (
	KindHTML = "html"
	KindPDF  = "pdf"
)

var formExtensions = map[string]string{
	".html":  KindHTML,
	".htm":   KindHTML,
	".xhtml": KindHTML,
	".pdf":   KindPDF,
}

// PathValidator resolves user-supplied paths against the configured
// directory and refuses anything that escapes it, symlinks included
type PathValidator struct {
	configuredDirectory string
	maxFileSize         int64
}

// NewPathValidator creates a validator rooted at dir. maxFileSize <= 0
// disables the size check.
func NewPathValidator(dir string, maxFileSize int64) (*PathValidator, error) {
	if dir == "" {
		return nil, formerr.New(formerr.ErrorTypeInvalidInput, "configured directory cannot be empty")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, formerr.Wrap(formerr.ErrorTypeFileAccess, err, "failed to resolve configured directory")
	}
	return &PathValidator{configuredDirectory: abs, maxFileSize: maxFileSize}, nil
}

// Directory returns the absolute configured directory
func (v *PathValidator) Directory() string {
	return v.configuredDirectory
}

// Resolve turns path (absolute, or relative to the configured directory)
// into a cleaned absolute path inside the directory
func (v *PathValidator) Resolve(path string) (string, error) {
	path = strings.ReplaceAll(path, "\x00", "")
	if strings.TrimSpace(path) == "" {
		return "", formerr.New(formerr.ErrorTypeInvalidInput, "path cannot be empty")
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(v.configuredDirectory, path)
	}
	abs := filepath.Clean(path)

	if !v.within(abs) {
		return "", formerr.New(formerr.ErrorTypeSecurity, "path is outside configured directory").WithFile(path)
	}
	return abs, nil
}

// within checks both the lexical path and, when it exists, its real path
// against both the lexical and real directory
func (v *PathValidator) within(abs string) bool {
	dir := v.configuredDirectory
	realDir := dir
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		realDir = resolved
	}
	realPath := abs
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		realPath = resolved
	}
	return isUnder(abs, dir, realDir) && isUnder(realPath, dir, realDir)
}

func isUnder(path string, dirs ...string) bool {
	for _, d := range dirs {
		if path == d || strings.HasPrefix(path, d+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// ResolveFormFile resolves path and checks it names a readable HTML or PDF
// file within the size limit. It returns the absolute path and its kind.
func (v *PathValidator) ResolveFormFile(path string) (string, string, error) {
	abs, err := v.Resolve(path)
	if err != nil {
		return "", "", err
	}
	kind, ok := FormKind(abs)
	if !ok {
		return "", "", formerr.Newf(formerr.ErrorTypeInvalidInput, "unsupported form file type %q", filepath.Ext(abs)).WithFile(abs)
	}

	info, err := os.Stat(abs)
	if os.IsNotExist(err) {
		return "", "", formerr.Wrap(formerr.ErrorTypeNotFound, err, "form file not found").WithFile(abs)
	}
	if err != nil {
		return "", "", formerr.Wrap(formerr.ErrorTypeFileAccess, err, "cannot access form file").WithFile(abs)
	}
	if info.IsDir() {
		return "", "", formerr.New(formerr.ErrorTypeInvalidInput, "path is a directory").WithFile(abs)
	}
	if v.maxFileSize > 0 && info.Size() > v.maxFileSize {
		return "", "", formerr.Newf(formerr.ErrorTypeInvalidInput, "file is %d bytes, limit is %d", info.Size(), v.maxFileSize).WithFile(abs)
	}
	return abs, kind, nil
}

// ResolveDirectory resolves path and checks it is an existing directory
func (v *PathValidator) ResolveDirectory(path string) (string, error) {
	if path == "" {
		path = v.configuredDirectory
	}
	abs, err := v.Resolve(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", formerr.Wrap(formerr.ErrorTypeNotFound, err, "cannot access directory").WithFile(abs)
	}
	if !info.IsDir() {
		return "", formerr.New(formerr.ErrorTypeInvalidInput, "path is not a directory").WithFile(abs)
	}
	return abs, nil
}

// FormKind maps a file name to KindHTML or KindPDF
func FormKind(path string) (string, bool) {
	kind, ok := formExtensions[strings.ToLower(filepath.Ext(path))]
	return kind, ok
}
