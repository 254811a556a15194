package formerr

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorTypeString(t *testing.T) {
	tests := []struct {
		et   ErrorType
		want string
	}{
		{ErrorTypeInvalidInput, "INVALID_INPUT"},
		{ErrorTypeFileAccess, "FILE_ACCESS"},
		{ErrorTypeParse, "PARSE"},
		{ErrorTypeBrowser, "BROWSER"},
		{ErrorTypeStore, "STORE"},
		{ErrorTypeNotFound, "NOT_FOUND"},
		{ErrorTypeSecurity, "SECURITY"},
		{ErrorTypeTimeout, "TIMEOUT"},
		{ErrorTypeUnknown, "UNKNOWN"},
		{ErrorType(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.et.String())
		})
	}
}

func TestFormErrorMessage(t *testing.T) {
	e := New(ErrorTypeInvalidInput, "selector required")
	assert.Equal(t, "[INVALID_INPUT] selector required", e.Error())
	assert.True(t, e.Recoverable)

	e = Wrap(ErrorTypeFileAccess, fs.ErrNotExist, "cannot open form").WithContext("apply.html").WithFile("/forms/apply.html")
	assert.Equal(t, "[FILE_ACCESS] cannot open form: apply.html: file does not exist", e.Error())
	assert.Equal(t, "/forms/apply.html", e.FilePath)
	assert.ErrorIs(t, e, fs.ErrNotExist)

	assert.Nil(t, Wrap(ErrorTypeStore, nil, "ignored"))
	assert.Equal(t, "[NOT_FOUND] session abc", Newf(ErrorTypeNotFound, "session %s", "abc").Error())
}

func TestClassification(t *testing.T) {
	wrapped := fmt.Errorf("scan failed: %w", New(ErrorTypeSecurity, "path escapes directory"))

	assert.Equal(t, ErrorTypeSecurity, TypeOf(wrapped))
	assert.True(t, Is(wrapped, ErrorTypeSecurity))
	assert.False(t, IsRecoverable(wrapped))

	assert.Equal(t, ErrorTypeUnknown, TypeOf(errors.New("plain")))
	assert.False(t, Is(nil, ErrorTypeUnknown))
	assert.True(t, IsRecoverable(New(ErrorTypeTimeout, "slow page")))
	assert.False(t, IsRecoverable(errors.New("plain")))
}

func TestErrorCollection(t *testing.T) {
	ec := NewErrorCollection()
	assert.Equal(t, "No errors", ec.Summary())

	ec.Add("a.html", New(ErrorTypeParse, "bad markup"))
	ec.Add("b.pdf", errors.New("boom"))
	ec.Add("c.html", nil)

	require.Equal(t, 2, ec.Count())
	assert.Equal(t, "a.html", ec.Errors[0].FilePath)
	assert.Equal(t, ErrorTypeUnknown, ec.Errors[1].Type)
	assert.Equal(t, "b.pdf", ec.Errors[1].FilePath)
	assert.Equal(t, "Found 2 error(s) (1 unrecoverable)", ec.Summary())
}
