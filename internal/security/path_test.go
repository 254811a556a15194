package security

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-form-reader/internal/formerr"
)

func setup(t *testing.T) (string, *PathValidator) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "apply.html"), []byte("<form></form>"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "w4.PDF"), []byte("%PDF-1.7"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "big.html"), make([]byte, 2048), 0o600))

	v, err := NewPathValidator(dir, 1024)
	require.NoError(t, err)
	return dir, v
}

func TestNewPathValidator(t *testing.T) {
	_, err := NewPathValidator("", 0)
	assert.True(t, formerr.Is(err, formerr.ErrorTypeInvalidInput))

	v, err := NewPathValidator("relative/forms", 0)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(v.Directory()))
}

func TestResolve(t *testing.T) {
	dir, v := setup(t)

	tests := []struct {
		name     string
		path     string
		want     string
		wantType formerr.ErrorType
	}{
		{name: "relative", path: "apply.html", want: filepath.Join(dir, "apply.html")},
		{name: "absolute", path: filepath.Join(dir, "sub", "w4.PDF"), want: filepath.Join(dir, "sub", "w4.PDF")},
		{name: "directory itself", path: dir, want: dir},
		{name: "dot segments inside", path: "sub/../apply.html", want: filepath.Join(dir, "apply.html")},
		{name: "null bytes stripped", path: "apply\x00.html", want: filepath.Join(dir, "apply.html")},
		{name: "traversal", path: "../outside.html", wantType: formerr.ErrorTypeSecurity},
		{name: "absolute outside", path: "/etc/passwd", wantType: formerr.ErrorTypeSecurity},
		{name: "sibling prefix", path: dir + "-evil/x.html", wantType: formerr.ErrorTypeSecurity},
		{name: "empty", path: "  ", wantType: formerr.ErrorTypeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.Resolve(tt.path)
			if tt.wantType != formerr.ErrorTypeUnknown {
				assert.True(t, formerr.Is(err, tt.wantType), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveSymlinkEscape(t *testing.T) {
	dir, v := setup(t)
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.html"), []byte("x"), 0o600))
	if err := os.Symlink(filepath.Join(outside, "secret.html"), filepath.Join(dir, "link.html")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	_, err := v.Resolve("link.html")
	assert.True(t, formerr.Is(err, formerr.ErrorTypeSecurity))
}

func TestResolveFormFile(t *testing.T) {
	_, v := setup(t)

	abs, kind, err := v.ResolveFormFile("apply.html")
	require.NoError(t, err)
	assert.Equal(t, KindHTML, kind)
	assert.True(t, filepath.IsAbs(abs))

	_, kind, err = v.ResolveFormFile("sub/w4.PDF")
	require.NoError(t, err)
	assert.Equal(t, KindPDF, kind)

	tests := []struct {
		path     string
		wantType formerr.ErrorType
	}{
		{"notes.txt", formerr.ErrorTypeInvalidInput},
		{"missing.html", formerr.ErrorTypeNotFound},
		{"big.html", formerr.ErrorTypeInvalidInput},
		{"../x.pdf", formerr.ErrorTypeSecurity},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			_, _, err := v.ResolveFormFile(tt.path)
			assert.True(t, formerr.Is(err, tt.wantType), "got %v", err)
		})
	}
}

func TestResolveDirectory(t *testing.T) {
	dir, v := setup(t)

	got, err := v.ResolveDirectory("")
	require.NoError(t, err)
	assert.Equal(t, dir, got)

	got, err = v.ResolveDirectory("sub")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "sub"), got)

	_, err = v.ResolveDirectory("apply.html")
	assert.True(t, formerr.Is(err, formerr.ErrorTypeInvalidInput))

	_, err = v.ResolveDirectory("nope")
	assert.True(t, formerr.Is(err, formerr.ErrorTypeNotFound))
}

func TestFormKind(t *testing.T) {
	for path, want := range map[string]string{"a.htm": KindHTML, "b.XHTML": KindHTML, "c.pdf": KindPDF} {
		kind, ok := FormKind(path)
		assert.True(t, ok, path)
		assert.Equal(t, want, kind, path)
	}
	_, ok := FormKind("d.docx")
	assert.False(t, ok)
}
