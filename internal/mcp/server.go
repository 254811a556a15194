package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/a3tai/mcp-form-reader/internal/config"
	"github.com/a3tai/mcp-form-reader/internal/descriptions"
	"github.com/a3tai/mcp-form-reader/internal/form"
	"github.com/a3tai/mcp-form-reader/internal/service"
)

const (
	formatText = "text"
	formatJSON = "json"

	shutdownTimeout = 5 * time.Second
)

// Server represents the MCP server instance
type Server struct {
	config      *config.Config
	formService *service.Service
	mcpServer   *server.MCPServer
	logger      *zap.Logger
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, formService *service.Service, logger *zap.Logger) (*Server, error) {
	if formService == nil {
		return nil, fmt.Errorf("formService cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false), // the tool set is fixed
		server.WithRecovery(),
	)

	s := &Server{
		config:      cfg,
		formService: formService,
		mcpServer:   mcpServer,
		logger:      logger,
	}
	s.registerTools()
	return s, nil
}

func formatOption() mcp.ToolOption {
	return mcp.WithString("format",
		mcp.Description("Reply format: text (default) or json"),
		mcp.Enum(formatText, formatJSON),
	)
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(descriptions.ToolScanFile,
		mcp.WithDescription(descriptions.ScanFileDescription),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("HTML or PDF file, absolute or relative to the form directory"),
		),
		formatOption(),
	), s.handleScanFile)

	s.mcpServer.AddTool(mcp.NewTool(descriptions.ToolScanHTML,
		mcp.WithDescription(descriptions.ScanHTMLDescription),
		mcp.WithString("html",
			mcp.Required(),
			mcp.Description("Markup to scan"),
		),
		mcp.WithString("url",
			mcp.Description("Address the markup was taken from"),
		),
		formatOption(),
	), s.handleScanHTML)

	s.mcpServer.AddTool(mcp.NewTool(descriptions.ToolScanURL,
		mcp.WithDescription(descriptions.ScanURLDescription),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Page to open in Chrome"),
		),
		formatOption(),
	), s.handleScanURL)

	s.mcpServer.AddTool(mcp.NewTool(descriptions.ToolScanDirectory,
		mcp.WithDescription(descriptions.ScanDirectoryDescription),
		mcp.WithString("directory",
			mcp.Description("Directory to scan (uses default if empty)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of files to scan"),
			mcp.Min(0),
		),
		formatOption(),
	), s.handleScanDirectory)

	s.mcpServer.AddTool(mcp.NewTool(descriptions.ToolTransform,
		mcp.WithDescription(descriptions.TransformDescription),
		mcp.WithString("value",
			mcp.Required(),
			mcp.Description("Canonical stored value"),
		),
		mcp.WithString("source",
			mcp.Required(),
			mcp.Description("Type of the stored value, e.g. FULL_NAME, PHONE, GRAD_DATE"),
		),
		mcp.WithString("target_type", mcp.Description("Classified type of the target field")),
		mcp.WithString("label", mcp.Description("Target field label")),
		mcp.WithString("name", mcp.Description("Target name attribute")),
		mcp.WithString("id", mcp.Description("Target id attribute")),
		mcp.WithString("type", mcp.Description("Target input type")),
		mcp.WithString("placeholder", mcp.Description("Target placeholder")),
		mcp.WithString("section", mcp.Description("Target section title")),
		mcp.WithNumber("max_length", mcp.Description("Target maxlength"), mcp.Min(0)),
		mcp.WithArray("options",
			mcp.Description("Option texts of a choice field"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithString("widget",
			mcp.Description("Widget kind"),
			mcp.Enum("text", "textarea", "select", "radio", "checkbox", "date", "combobox"),
		),
	), s.handleTransform)

	s.mcpServer.AddTool(mcp.NewTool(descriptions.ToolRecordStart,
		mcp.WithDescription(descriptions.RecordStartDescription),
		mcp.WithString("path", mcp.Description("HTML file to load")),
		mcp.WithString("html", mcp.Description("Markup to load")),
		mcp.WithString("url", mcp.Description("Page address; opened live when neither path nor html is given")),
		mcp.WithString("site_key", mcp.Description("Override the site key derived from the URL")),
	), s.handleRecordStart)

	s.mcpServer.AddTool(mcp.NewTool(descriptions.ToolRecordInput,
		mcp.WithDescription(descriptions.RecordInputDescription),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Recording session")),
		mcp.WithString("selector", mcp.Required(), mcp.Description("Field locator, #id or name")),
		mcp.WithString("value", mcp.Description("New value; true/false for checkboxes")),
	), s.handleRecordInput)

	s.mcpServer.AddTool(mcp.NewTool(descriptions.ToolRecordEvent,
		mcp.WithDescription(descriptions.RecordEventDescription),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Recording session")),
		mcp.WithString("type",
			mcp.Required(),
			mcp.Description("Event type"),
			mcp.Enum("blur", "change", "click", "submit", "beforeunload"),
		),
		mcp.WithString("selector", mcp.Description("Event target; not needed for beforeunload")),
	), s.handleRecordEvent)

	s.mcpServer.AddTool(mcp.NewTool(descriptions.ToolRecordStop,
		mcp.WithDescription(descriptions.RecordStopDescription),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Recording session")),
		formatOption(),
	), s.handleRecordStop)

	s.mcpServer.AddTool(mcp.NewTool(descriptions.ToolObservations,
		mcp.WithDescription(descriptions.ObservationsDescription),
		mcp.WithString("session_id", mcp.Description("Live session; the store is used when empty")),
		mcp.WithString("site_key", mcp.Description("Only observations from this site")),
		mcp.WithString("type", mcp.Description("Only observations of this type")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of observations"), mcp.Min(0)),
		formatOption(),
	), s.handleObservations)

	s.mcpServer.AddTool(mcp.NewTool(descriptions.ToolServerInfo,
		mcp.WithDescription(descriptions.ServerInfoDescription),
	), s.handleServerInfo)
}

// Handler functions

func (s *Server) handleScanFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result, err := s.formService.ScanFile(service.ScanFileRequest{Path: path})
	if err != nil {
		return s.toolError(descriptions.ToolScanFile, err), nil
	}
	return reply(request, result, formatScanResult), nil
}

func (s *Server) handleScanHTML(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	markup, err := request.RequireString("html")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result, err := s.formService.ScanHTML(service.ScanHTMLRequest{
		HTML: markup,
		URL:  request.GetString("url", ""),
	})
	if err != nil {
		return s.toolError(descriptions.ToolScanHTML, err), nil
	}
	return reply(request, result, formatScanResult), nil
}

func (s *Server) handleScanURL(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url, err := request.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result, err := s.formService.ScanURL(ctx, service.ScanURLRequest{URL: url})
	if err != nil {
		return s.toolError(descriptions.ToolScanURL, err), nil
	}
	return reply(request, result, formatScanResult), nil
}

func (s *Server) handleScanDirectory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.formService.ScanDirectory(ctx, service.ScanDirectoryRequest{
		Directory: request.GetString("directory", ""),
		Limit:     request.GetInt("limit", 0),
	})
	if err != nil {
		return s.toolError(descriptions.ToolScanDirectory, err), nil
	}
	return reply(request, result, formatScanDirectoryResult), nil
}

func (s *Server) handleTransform(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	value, err := request.RequireString("value")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	source, err := request.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.formService.TransformValue(service.TransformRequest{
		Value:      value,
		Source:     source,
		TargetType: request.GetString("target_type", ""),
		Target: service.FieldSpec{
			Label:       request.GetString("label", ""),
			Name:        request.GetString("name", ""),
			ID:          request.GetString("id", ""),
			Type:        request.GetString("type", ""),
			Placeholder: request.GetString("placeholder", ""),
			Section:     request.GetString("section", ""),
			MaxLength:   request.GetInt("max_length", 0),
			Options:     request.GetStringSlice("options", nil),
			Widget:      request.GetString("widget", ""),
		},
	})
	if err != nil {
		return s.toolError(descriptions.ToolTransform, err), nil
	}

	text := fmt.Sprintf("Value: %s\n", result.Value)
	if result.Changed {
		text += fmt.Sprintf("Transformed from %q by the %s transformer\n", result.Input, result.Transformer)
	} else {
		text += "Unchanged: no transformer applies to this value and target\n"
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleRecordStart(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.formService.RecordStart(ctx, service.RecordStartRequest{
		Path:    request.GetString("path", ""),
		HTML:    request.GetString("html", ""),
		URL:     request.GetString("url", ""),
		SiteKey: request.GetString("site_key", ""),
	})
	if err != nil {
		return s.toolError(descriptions.ToolRecordStart, err), nil
	}

	text := fmt.Sprintf("Recording started\nSession: %s\n", result.SessionID)
	text += fmt.Sprintf("Source: %s\n", result.Source)
	text += fmt.Sprintf("Site: %s\n", result.SiteKey)
	text += fmt.Sprintf("Fillable fields: %d\n", result.Fields)
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleRecordInput(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	selector, err := request.RequireString("selector")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	state, err := s.formService.RecordInput(service.RecordInputRequest{
		SessionID: sessionID,
		Selector:  selector,
		Value:     request.GetString("value", ""),
	})
	if err != nil {
		return s.toolError(descriptions.ToolRecordInput, err), nil
	}
	return mcp.NewToolResultText(formatSessionState(state)), nil
}

func (s *Server) handleRecordEvent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	eventType, err := request.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	state, err := s.formService.RecordEvent(service.RecordEventRequest{
		SessionID: sessionID,
		Type:      eventType,
		Selector:  request.GetString("selector", ""),
	})
	if err != nil {
		return s.toolError(descriptions.ToolRecordEvent, err), nil
	}
	return mcp.NewToolResultText(formatSessionState(state)), nil
}

func (s *Server) handleRecordStop(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result, err := s.formService.RecordStop(service.RecordStopRequest{SessionID: sessionID})
	if err != nil {
		return s.toolError(descriptions.ToolRecordStop, err), nil
	}
	return reply(request, result, func(r *service.RecordStopResult) string {
		text := fmt.Sprintf("Recording stopped\nSession: %s\n", r.SessionID)
		if r.Pending > 0 {
			text += fmt.Sprintf("Dropped %d uncommitted entr%s\n", r.Pending, plural(r.Pending, "y", "ies"))
		}
		return text + formatObservations(r.Observations)
	}), nil
}

func (s *Server) handleObservations(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.formService.Observations(ctx, service.ObservationsRequest{
		SessionID: request.GetString("session_id", ""),
		SiteKey:   request.GetString("site_key", ""),
		Type:      request.GetString("type", ""),
		Limit:     request.GetInt("limit", 0),
	})
	if err != nil {
		return s.toolError(descriptions.ToolObservations, err), nil
	}
	return reply(request, result, func(r *service.ObservationsResult) string {
		text := fmt.Sprintf("Observations from %s (%d total)\n", r.Source, r.Total)
		return text + formatObservations(r.Observations)
	}), nil
}

func (s *Server) handleServerInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.formService.ServerInfo(ctx)
	if err != nil {
		return s.toolError(descriptions.ToolServerInfo, err), nil
	}
	return mcp.NewToolResultText(formatServerInfoResult(result)), nil
}

// toolError logs a failed call and turns it into a tool-level error result
func (s *Server) toolError(tool string, err error) *mcp.CallToolResult {
	s.logger.Warn("tool call failed", zap.String("tool", tool), zap.Error(err))
	return mcp.NewToolResultError(err.Error())
}

// reply renders result as text, or as indented JSON when requested
func reply[T any](request mcp.CallToolRequest, result T, text func(T) string) *mcp.CallToolResult {
	if strings.EqualFold(request.GetString("format", formatText), formatJSON) {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err))
		}
		return mcp.NewToolResultText(string(data))
	}
	return mcp.NewToolResultText(text(result))
}

// Formatting methods

func formatScanResult(result *service.ScanResult) string {
	text := fmt.Sprintf("Scanned %s form: %s\n", result.Kind, result.Source)
	st := result.Stats
	text += fmt.Sprintf("Fillable fields: %d of %d candidates", st.Fillable, st.Candidates)
	text += fmt.Sprintf(" (hidden %d, disabled %d, excluded %d)\n", st.Hidden, st.Disabled, st.ExcludedType)
	if st.ShadowRoots > 0 || st.Frames > 0 {
		text += fmt.Sprintf("Shadow roots: %d, frames: %d\n", st.ShadowRoots, st.Frames)
	}
	if len(result.Fields) == 0 {
		return text + "\nNo fillable fields found.\n"
	}

	text += "\nFields:\n"
	for i, f := range result.Fields {
		label := f.LabelText
		if label == "" {
			label = "(no label)"
		}
		text += fmt.Sprintf("%d. %s [%s]\n", i+1, label, f.WidgetSignature.Kind)
		text += fmt.Sprintf("   Locator: %s\n", f.Locator)
		if f.SectionTitle != "" {
			text += fmt.Sprintf("   Section: %s\n", f.SectionTitle)
		}
		if len(f.OptionsText) > 0 {
			text += fmt.Sprintf("   Options: %s\n", strings.Join(f.OptionsText, " | "))
		}
		for j, c := range f.Candidates {
			prefix := "Best"
			if j > 0 {
				prefix = "Also"
			}
			text += fmt.Sprintf("   %s: %s (%.2f)", prefix, c.Type, c.Score)
			if len(c.Reasons) > 0 {
				text += " - " + strings.Join(c.Reasons, "; ")
			}
			text += "\n"
		}
	}
	return text
}

func formatScanDirectoryResult(result *service.ScanDirectoryResult) string {
	text := fmt.Sprintf("Scanned %d form file(s) in directory: %s\n", len(result.Files), result.Directory)
	text += fmt.Sprintf("Total fillable fields: %d\n", result.Total.Fillable)

	for i, f := range result.Files {
		text += fmt.Sprintf("\n%d. %s (%s, %d field(s))\n", i+1, f.Source, f.Kind, len(f.Fields))
		for _, field := range f.Fields {
			best := field.Best()
			text += fmt.Sprintf("   - %s: %s (%.2f)\n", fieldName(field.FieldContext), best.Type, best.Score)
		}
	}

	if len(result.Errors) > 0 {
		text += "\n" + result.Summary + ":\n"
		for _, e := range result.Errors {
			text += fmt.Sprintf("   - %s\n", e)
		}
	}
	return text
}

func formatSessionState(state *service.SessionState) string {
	text := fmt.Sprintf("Session: %s\n", state.SessionID)
	text += fmt.Sprintf("Pending: %d\n", state.Pending)
	text += fmt.Sprintf("Committed: %d\n", state.Committed)
	if !state.Running {
		text += "Recorder is stopped\n"
	}
	return text
}

func formatObservations(observations []form.Observation) string {
	if len(observations) == 0 {
		return "No observations.\n"
	}
	text := fmt.Sprintf("\nObservations (%d):\n", len(observations))
	for i, o := range observations {
		text += fmt.Sprintf("%d. %s = %q (%.2f)\n", i+1, o.Type, o.Value, o.Confidence)
		text += fmt.Sprintf("   Site: %s, recorded %s\n", o.SiteKey, o.Timestamp.Format(time.RFC3339))
		if o.QuestionKey != nil && len(o.QuestionKey.Phrases) > 0 {
			text += fmt.Sprintf("   Question: %s\n", strings.Join(o.QuestionKey.Phrases, " / "))
		}
	}
	return text
}

func formatServerInfoResult(result *service.ServerInfoResult) string {
	text := fmt.Sprintf("📋 %s v%s - Server Information\n", result.ServerName, result.Version)
	text += fmt.Sprintf("📁 Default Directory: %s\n", result.DefaultDirectory)
	text += fmt.Sprintf("📏 Max File Size: %d MB\n", result.MaxFileSize/(1024*1024))
	if result.Persistence {
		text += fmt.Sprintf("💾 Stored observations: %d\n", result.StoredCount)
	}
	text += fmt.Sprintf("🎙️  Active recording sessions: %d\n\n", result.ActiveSessions)

	if len(result.DirectoryContents) > 0 {
		text += fmt.Sprintf("📂 Directory Contents (%d form files found):\n", len(result.DirectoryContents))
		for i, file := range result.DirectoryContents {
			if i >= 10 { // first 10 only
				text += fmt.Sprintf("   ... and %d more files\n", len(result.DirectoryContents)-10)
				break
			}
			text += fmt.Sprintf("   %d. %s (%s, %d bytes)\n", i+1, file.Name, file.Kind, file.Size)
		}
		text += "\n"
	} else {
		text += "📂 Directory Contents: No form files found in default directory\n\n"
	}

	text += fmt.Sprintf("🧠 Classifier parsers: %s\n", strings.Join(result.Parsers, ", "))
	text += fmt.Sprintf("🔁 Transformers: %s\n\n", strings.Join(result.Transformers, ", "))

	text += "🛠️  Available Tools:\n"
	for _, tool := range result.AvailableTools {
		text += fmt.Sprintf("\n• %s\n", tool.Name)
		text += fmt.Sprintf("  Usage: %s\n", tool.Usage)
		text += fmt.Sprintf("  Parameters: %s\n", tool.Parameters)
	}

	text += "\n" + result.UsageGuidance
	return text
}

func fieldName(f form.FieldContext) string {
	switch {
	case f.LabelText != "":
		return f.LabelText
	case f.Name() != "":
		return f.Name()
	}
	return f.Locator
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// Run starts the MCP server in the configured mode
func (s *Server) Run(ctx context.Context) error {
	if s.config.IsServerMode() {
		return s.runServerMode(ctx)
	}
	return s.runStdioMode(ctx)
}

// runStdioMode serves MCP over stdin/stdout until ctx is done or input ends
func (s *Server) runStdioMode(ctx context.Context) error {
	s.logger.Info("starting form MCP server in stdio mode",
		zap.String("directory", s.config.FormDirectory))

	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(zap.NewStdLog(s.logger))
	if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}

// runServerMode serves MCP over SSE on the configured address until ctx is done
func (s *Server) runServerMode(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := s.config.Address()
	sse := server.NewSSEServer(s.mcpServer, server.WithBaseURL("http://"+addr))
	s.logger.Info("starting form MCP server in server mode",
		zap.String("address", addr),
		zap.String("directory", s.config.FormDirectory))

	errCh := make(chan error, 1)
	go func() {
		errCh <- sse.Start(addr)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve sse: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := sse.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down sse server: %w", err)
		}
		return ctx.Err()
	}
}
