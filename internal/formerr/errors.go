// Package formerr classifies host failures (I/O, parsing, browser, storage,
// bad requests) at the service boundary. No-signal outcomes such as an
// empty label or an UNKNOWN classification are never FormErrors.
package formerr

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents different categories of failures
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeInvalidInput
	ErrorTypeFileAccess
	ErrorTypeParse
	ErrorTypeBrowser
	ErrorTypeStore
	ErrorTypeNotFound
	ErrorTypeSecurity
	ErrorTypeTimeout
)

// String returns a string representation of the ErrorType
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeInvalidInput:
		return "INVALID_INPUT"
	case ErrorTypeFileAccess:
		return "FILE_ACCESS"
	case ErrorTypeParse:
		return "PARSE"
	case ErrorTypeBrowser:
		return "BROWSER"
	case ErrorTypeStore:
		return "STORE"
	case ErrorTypeNotFound:
		return "NOT_FOUND"
	case ErrorTypeSecurity:
		return "SECURITY"
	case ErrorTypeTimeout:
		return "TIMEOUT"
	default:
		return "UNKNOWN"
	}
}

// IsRecoverable reports whether a caller can reasonably retry or fix the
// request and try again
func (et ErrorType) IsRecoverable() bool {
	switch et {
	case ErrorTypeInvalidInput, ErrorTypeNotFound, ErrorTypeTimeout, ErrorTypeBrowser:
		return true
	case ErrorTypeParse, ErrorTypeFileAccess:
		return true // another file may work
	default:
		return false
	}
}

// FormError is a classified failure with context
type FormError struct {
	Type        ErrorType `json:"type"`
	Message     string    `json:"message"`
	Context     string    `json:"context,omitempty"`
	FilePath    string    `json:"file_path,omitempty"`
	Recoverable bool      `json:"recoverable"`
	Timestamp   time.Time `json:"timestamp"`

	err error
}

// Error implements the error interface
func (e *FormError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Type, e.Message)
	if e.Context != "" {
		msg += ": " + e.Context
	}
	if e.err != nil {
		msg += ": " + e.err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *FormError) Unwrap() error {
	return e.err
}

// New creates a FormError
func New(errorType ErrorType, message string) *FormError {
	return &FormError{
		Type:        errorType,
		Message:     message,
		Recoverable: errorType.IsRecoverable(),
		Timestamp:   time.Now(),
	}
}

// Newf creates a FormError with a formatted message
func Newf(errorType ErrorType, format string, args ...any) *FormError {
	return New(errorType, fmt.Sprintf(format, args...))
}

// Wrap classifies err, keeping it as the cause. A nil err returns nil.
func Wrap(errorType ErrorType, err error, message string) *FormError {
	if err == nil {
		return nil
	}
	e := New(errorType, message)
	e.err = err
	return e
}

// WithContext adds context to an existing FormError
func (e *FormError) WithContext(context string) *FormError {
	e.Context = context
	return e
}

// WithFile adds file path information to an existing FormError
func (e *FormError) WithFile(filePath string) *FormError {
	e.FilePath = filePath
	return e
}

// TypeOf returns the type of the first FormError in err's chain, or
// ErrorTypeUnknown
func TypeOf(err error) ErrorType {
	var fe *FormError
	if errors.As(err, &fe) {
		return fe.Type
	}
	return ErrorTypeUnknown
}

// IsRecoverable reports whether err carries a recoverable FormError
func IsRecoverable(err error) bool {
	var fe *FormError
	return errors.As(err, &fe) && fe.Recoverable
}

// Is reports whether err carries a FormError of type t
func Is(err error, t ErrorType) bool {
	return err != nil && TypeOf(err) == t
}

// ErrorCollection gathers per-file failures of a batch operation
type ErrorCollection struct {
	Errors []*FormError `json:"errors"`
}

// NewErrorCollection creates an empty collection
func NewErrorCollection() *ErrorCollection {
	return &ErrorCollection{Errors: make([]*FormError, 0)}
}

// Add appends err, classifying plain errors as unknown
func (ec *ErrorCollection) Add(path string, err error) {
	if err == nil {
		return
	}
	var fe *FormError
	if !errors.As(err, &fe) {
		fe = Wrap(ErrorTypeUnknown, err, "operation failed")
	}
	if fe.FilePath == "" {
		fe.FilePath = path
	}
	ec.Errors = append(ec.Errors, fe)
}

// Count returns the number of collected errors
func (ec *ErrorCollection) Count() int {
	return len(ec.Errors)
}

// Summary returns a text summary of the collected errors
func (ec *ErrorCollection) Summary() string {
	if len(ec.Errors) == 0 {
		return "No errors"
	}
	unrecoverable := 0
	for _, e := range ec.Errors {
		if !e.Recoverable {
			unrecoverable++
		}
	}
	summary := fmt.Sprintf("Found %d error(s)", len(ec.Errors))
	if unrecoverable > 0 {
		summary += fmt.Sprintf(" (%d unrecoverable)", unrecoverable)
	}
	return summary
}
