package service

import (
	"github.com/a3tai/mcp-form-reader/internal/form"
	"github.com/a3tai/mcp-form-reader/internal/scanner"
)

// FileInfo represents a form file found in a directory
type FileInfo struct {
	Path         string `json:"path"`
	Name         string `json:"name"`
	Kind         string `json:"kind"`
	Size         int64  `json:"size"`
	ModifiedTime string `json:"modified_time"`
}

// FieldReport is a discovered field with its best classifications
type FieldReport struct {
	form.FieldContext
	Candidates []form.CandidateType `json:"candidates"`
}

// Best returns the top candidate
func (f FieldReport) Best() form.CandidateType {
	if len(f.Candidates) == 0 {
		return form.CandidateType{Type: form.TaxonomyUnknown}
	}
	return f.Candidates[0]
}

// FieldSpec describes a target control by hand, for transforms that have no
// document to scan
type FieldSpec struct {
	Label       string   `json:"label"`
	Name        string   `json:"name"`
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	Placeholder string   `json:"placeholder"`
	Section     string   `json:"section"`
	MaxLength   int      `json:"max_length" validate:"gte=0"`
	Options     []string `json:"options"`
	Widget      string   `json:"widget" validate:"omitempty,oneof=text textarea select radio checkbox date combobox"`
}

// Request Types

// ScanFileRequest represents a request to scan an HTML or PDF form file
type ScanFileRequest struct {
	Path string `json:"path" validate:"required"`
}

// ScanHTMLRequest represents a request to scan inline markup
type ScanHTMLRequest struct {
	HTML string `json:"html" validate:"required"`
	URL  string `json:"url" validate:"omitempty,url"`
}

// ScanURLRequest represents a request to scan a live page
type ScanURLRequest struct {
	URL string `json:"url" validate:"required,url"`
}

// ScanDirectoryRequest represents a request to scan every form in a directory
type ScanDirectoryRequest struct {
	Directory string `json:"directory"`
	Limit     int    `json:"limit" validate:"gte=0"`
}

// TransformRequest represents a request to convert a stored value for a target field
type TransformRequest struct {
	Value      string    `json:"value"`
	Source     string    `json:"source" validate:"required"`
	TargetType string    `json:"target_type"`
	Target     FieldSpec `json:"target"`
}

// RecordStartRequest loads a document and starts recording on it. Path wins
// over HTML, HTML over a live URL. With HTML, URL is the page's address.
type RecordStartRequest struct {
	Path    string `json:"path" validate:"required_without_all=HTML URL"`
	HTML    string `json:"html"`
	URL     string `json:"url" validate:"omitempty,url"`
	SiteKey string `json:"site_key"`
}

// RecordInputRequest sets the live value of a control in a session
type RecordInputRequest struct {
	SessionID string `json:"session_id" validate:"required"`
	Selector  string `json:"selector" validate:"required"`
	Value     string `json:"value"`
}

// RecordEventRequest dispatches a DOM event in a session
type RecordEventRequest struct {
	SessionID string `json:"session_id" validate:"required"`
	Type      string `json:"type" validate:"required,oneof=blur change click submit beforeunload"`
	Selector  string `json:"selector" validate:"required_unless=Type beforeunload"`
}

// RecordStopRequest ends a session
type RecordStopRequest struct {
	SessionID string `json:"session_id" validate:"required"`
}

// ObservationsRequest lists committed observations of a session, or from
// the store when no session is given
type ObservationsRequest struct {
	SessionID string `json:"session_id"`
	SiteKey   string `json:"site_key"`
	Type      string `json:"type"`
	Limit     int    `json:"limit" validate:"gte=0"`
}

// Response Types

// ScanResult represents the fields found in one document
type ScanResult struct {
	Source string        `json:"source"`
	Kind   string        `json:"kind"`
	Fields []FieldReport `json:"fields"`
	Stats  scanner.Stats `json:"stats"`
}

// ScanDirectoryResult represents a batch scan
type ScanDirectoryResult struct {
	Directory string        `json:"directory"`
	Files     []ScanResult  `json:"files"`
	Errors    []string      `json:"errors,omitempty"`
	Summary   string        `json:"summary,omitempty"`
	Total     scanner.Stats `json:"total"`
}

// TransformResult represents the outcome of a transform
type TransformResult struct {
	Input       string `json:"input"`
	Value       string `json:"value"`
	Source      string `json:"source"`
	Transformer string `json:"transformer,omitempty"`
	Changed     bool   `json:"changed"`
}

// RecordStartResult identifies a new recording session
type RecordStartResult struct {
	SessionID string `json:"session_id"`
	Source    string `json:"source"`
	SiteKey   string `json:"site_key"`
	Fields    int    `json:"fields"`
}

// SessionState summarizes a session after an input or event
type SessionState struct {
	SessionID string `json:"session_id"`
	Pending   int    `json:"pending"`
	Committed int    `json:"committed"`
	Running   bool   `json:"running"`
}

// RecordStopResult is the final state of a stopped session
type RecordStopResult struct {
	SessionID    string             `json:"session_id"`
	Pending      int                `json:"pending"`
	Observations []form.Observation `json:"observations"`
}

// ObservationsResult lists committed observations
type ObservationsResult struct {
	Source       string             `json:"source"`
	Observations []form.Observation `json:"observations"`
	Total        int                `json:"total"`
}

// ToolInfo describes one MCP tool for the server info reply
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Usage       string `json:"usage"`
	Parameters  string `json:"parameters"`
}

// ServerInfoResult represents server configuration and capabilities
type ServerInfoResult struct {
	ServerName        string     `json:"server_name"`
	Version           string     `json:"version"`
	DefaultDirectory  string     `json:"default_directory"`
	MaxFileSize       int64      `json:"max_file_size"`
	Persistence       bool       `json:"persistence"`
	StoredCount       int        `json:"stored_count"`
	ActiveSessions    int        `json:"active_sessions"`
	Parsers           []string   `json:"parsers"`
	Transformers      []string   `json:"transformers"`
	Taxonomies        []string   `json:"taxonomies"`
	AvailableTools    []ToolInfo `json:"available_tools"`
	DirectoryContents []FileInfo `json:"directory_contents"`
	UsageGuidance     string     `json:"usage_guidance"`
}
