package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/a3tai/mcp-form-reader/internal/descriptions"
	"github.com/a3tai/mcp-form-reader/internal/form"
)

// serverInfoFileLimit caps the directory listing in ServerInfo
const serverInfoFileLimit = 100

// ServerInfo reports configuration, loaded components, tools and the forms
// in the default directory. A failing directory listing is not an error.
func (s *Service) ServerInfo(ctx context.Context) (*ServerInfoResult, error) {
	dir := s.pathValidator.Directory()
	contents, err := s.findForms(dir, serverInfoFileLimit)
	if err != nil {
		s.logger.Warn("directory listing failed", zap.String("directory", dir), zap.Error(err))
	}
	if contents == nil {
		contents = []FileInfo{}
	}

	stored := 0
	if s.store != nil {
		if stored, err = s.store.Count(ctx); err != nil {
			return nil, fmt.Errorf("failed to count observations: %w", err)
		}
	}

	taxonomies := form.Taxonomies()
	names := make([]string, len(taxonomies))
	for i, t := range taxonomies {
		names[i] = string(t)
	}

	return &ServerInfoResult{
		ServerName:        s.cfg.ServerName,
		Version:           s.cfg.Version,
		DefaultDirectory:  dir,
		MaxFileSize:       s.cfg.MaxFileSize,
		Persistence:       s.store != nil,
		StoredCount:       stored,
		ActiveSessions:    len(s.ActiveSessions()),
		Parsers:           s.classifier.Parsers(),
		Transformers:      s.transforms.Names(),
		Taxonomies:        names,
		AvailableTools:    availableTools(),
		DirectoryContents: contents,
		UsageGuidance:     s.usageGuidance(),
	}, nil
}

func availableTools() []ToolInfo {
	return []ToolInfo{
		{
			Name:        descriptions.ToolScanFile,
			Description: descriptions.GetToolDescription(descriptions.ToolScanFile),
			Usage:       "Discover and classify the fields of an HTML page or PDF AcroForm on disk.",
			Parameters:  "path (required): file path, absolute or relative to the default directory",
		},
		{
			Name:        descriptions.ToolScanHTML,
			Description: descriptions.GetToolDescription(descriptions.ToolScanHTML),
			Usage:       "Discover and classify the fields of markup passed inline.",
			Parameters:  "html (required): the markup, url (optional): the page address",
		},
		{
			Name:        descriptions.ToolScanURL,
			Description: descriptions.GetToolDescription(descriptions.ToolScanURL),
			Usage:       "Snapshot a live page in Chrome and classify its fields.",
			Parameters:  "url (required): page address",
		},
		{
			Name:        descriptions.ToolScanDirectory,
			Description: descriptions.GetToolDescription(descriptions.ToolScanDirectory),
			Usage:       "Scan every HTML and PDF form in a directory in parallel.",
			Parameters: "directory (optional): directory to scan (uses default if empty), " +
				"limit (optional): maximum number of files",
		},
		{
			Name:        descriptions.ToolTransform,
			Description: descriptions.GetToolDescription(descriptions.ToolTransform),
			Usage:       "Convert a stored profile value into the variant a target field expects.",
			Parameters: "value, source (required): value and its type, target_type (optional), " +
				"label/name/id/type/placeholder/max_length/options/widget (optional): the target field",
		},
		{
			Name:        descriptions.ToolRecordStart,
			Description: descriptions.GetToolDescription(descriptions.ToolRecordStart),
			Usage:       "Load a form and start recording answers entered into it.",
			Parameters:  "path, html or url (one required), site_key (optional)",
		},
		{
			Name:        descriptions.ToolRecordInput,
			Description: descriptions.GetToolDescription(descriptions.ToolRecordInput),
			Usage:       "Set a control's live value in a recording session.",
			Parameters:  "session_id, selector (required), value",
		},
		{
			Name:        descriptions.ToolRecordEvent,
			Description: descriptions.GetToolDescription(descriptions.ToolRecordEvent),
			Usage:       "Dispatch blur, change, click, submit or beforeunload in a recording session.",
			Parameters:  "session_id, type (required), selector (required except for beforeunload)",
		},
		{
			Name:        descriptions.ToolRecordStop,
			Description: descriptions.GetToolDescription(descriptions.ToolRecordStop),
			Usage:       "Stop a recording session and return its committed observations.",
			Parameters:  "session_id (required)",
		},
		{
			Name:        descriptions.ToolObservations,
			Description: descriptions.GetToolDescription(descriptions.ToolObservations),
			Usage:       "List committed observations of a session or from the store.",
			Parameters:  "session_id, site_key, type, limit (all optional)",
		},
		{
			Name:        descriptions.ToolServerInfo,
			Description: descriptions.GetToolDescription(descriptions.ToolServerInfo),
			Usage:       "Show configuration, loaded components and available forms.",
			Parameters:  "none",
		},
	}
}

func (s *Service) usageGuidance() string {
	persistence := "disabled (start with --db to keep observations across sessions)"
	if s.store != nil {
		persistence = "enabled at " + s.store.Path()
	}
	return `Form Reader MCP Server Usage Guide:

1. DISCOVER FIELDS:
   - Use 'form_scan_file' for saved HTML pages and fillable PDFs
   - Use 'form_scan_url' for pages rendered by JavaScript or web components
   - Use 'form_scan_directory' for a whole folder of forms

2. READ THE CLASSIFICATION:
   - Each field lists up to ` + fmt.Sprintf("%d", MaxCandidates) + ` candidate types, best first, with reasons
   - UNKNOWN with score 0 means no signal matched

3. PREPARE VALUES:
   - Use 'form_transform_value' with the field's label, placeholder, max_length and options

4. LEARN ANSWERS:
   - 'form_record_start' → 'form_record_input' / 'form_record_event' → submit → 'form_record_stop'
   - Only submitted forms produce observations; beforeunload discards the rest

IMPORTANT NOTES:
- File paths are confined to ` + s.pathValidator.Directory() + `
- The server can handle files up to ` + fmt.Sprintf("%d", s.cfg.MaxFileSize/(1024*1024)) + `MB
- Persistence is ` + persistence
}
