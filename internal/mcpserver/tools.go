package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/pyanalyze/internal/hostapi"
	"github.com/Sumatoshi-tech/pyanalyze/internal/modkey"
)

// Tool name constants.
const (
	ToolNameGetAnalysis   = "pyanalyze_get_analysis"
	ToolNameLint          = "pyanalyze_lint"
	ToolNameWaitComplete  = "pyanalyze_wait_for_complete"
	ToolNameGraphSnapshot = "pyanalyze_graph_snapshot"
)

// Sentinel errors for tool input validation.
var (
	ErrEmptyModuleName = errors.New("module_name parameter is required and must not be empty")
	ErrEmptyFilePath   = errors.New("file_path parameter is required and must not be empty")
)

// GetAnalysisInput is the input schema for the pyanalyze_get_analysis tool.
type GetAnalysisInput struct {
	ModuleName string `json:"module_name"          jsonschema:"dotted import name of the module"`
	FilePath   string `json:"file_path"            jsonschema:"path the module was loaded from"`
	IsTypeshed bool   `json:"is_typeshed,omitempty" jsonschema:"whether the module resolved from typeshed stubs"`
	WaitMS     int64  `json:"wait_ms,omitempty"     jsonschema:"milliseconds to wait for a fresh analysis (0 waits indefinitely)"`
}

// LintInput is the input schema for the pyanalyze_lint tool.
type LintInput struct {
	ModuleName string `json:"module_name"           jsonschema:"dotted import name of the module"`
	FilePath   string `json:"file_path"             jsonschema:"path the module was loaded from"`
	IsTypeshed bool   `json:"is_typeshed,omitempty" jsonschema:"whether the module resolved from typeshed stubs"`
}

// WaitForCompleteInput is the input schema for the pyanalyze_wait_for_complete tool.
type WaitForCompleteInput struct {
	TimeoutMS int64 `json:"timeout_ms,omitempty" jsonschema:"milliseconds to wait before giving up (0 waits indefinitely)"`
}

// GraphSnapshotInput is the input schema for the pyanalyze_graph_snapshot tool.
type GraphSnapshotInput struct{}

// ToolOutput is a generic wrapper for tool results, used as the structured
// output type for the generic mcpsdk.AddTool.
type ToolOutput struct {
	Data any `json:"data"`
}

func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}

func keyFromInput(moduleName, filePath string, isTypeshed bool) (modkey.Key, error) {
	if moduleName == "" {
		return modkey.Key{}, ErrEmptyModuleName
	}

	if filePath == "" {
		return modkey.NewBuiltin(moduleName), nil
	}

	return modkey.New(moduleName, filePath, isTypeshed), nil
}

// diagnosticView is the JSON-friendly projection of hostapi.Diagnostic.
type diagnosticView struct {
	Message  string `json:"message"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
	Severity string `json:"severity"`
}

func viewDiagnostics(diags []hostapi.Diagnostic) []diagnosticView {
	out := make([]diagnosticView, 0, len(diags))

	for _, d := range diags {
		out = append(out, diagnosticView{
			Message:  d.Message,
			Line:     d.Line,
			Column:   d.Column,
			Severity: severityName(d.Severity),
		})
	}

	return out
}

func severityName(s hostapi.DiagnosticSeverity) string {
	switch s {
	case hostapi.SeverityError:
		return "error"
	case hostapi.SeverityWarning:
		return "warning"
	default:
		return "info"
	}
}

// analysisView is the JSON-friendly projection of hostapi.Analysis: Scope
// is opaque to the core, so only its module name (if any) and the error
// string are surfaced.
type analysisView struct {
	ModuleName string `json:"module_name,omitempty"`
	HasScope   bool   `json:"has_scope"`
	Error      string `json:"error,omitempty"`
}

func viewAnalysis(a hostapi.Analysis) analysisView {
	v := analysisView{HasScope: a.Scope != nil}

	if a.Scope != nil {
		v.ModuleName = a.Scope.ModuleName()
	}

	if a.Err != nil {
		v.Error = a.Err.Error()
	}

	return v
}

func (s *Server) handleGetAnalysis(
	ctx context.Context, _ *mcpsdk.CallToolRequest, input GetAnalysisInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	key, err := keyFromInput(input.ModuleName, input.FilePath, input.IsTypeshed)
	if err != nil {
		return errorResult(err)
	}

	analysis := s.facade.GetAnalysis(ctx, key, input.WaitMS)

	return jsonResult(viewAnalysis(analysis))
}

func (s *Server) handleLint(
	ctx context.Context, _ *mcpsdk.CallToolRequest, input LintInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	key, err := keyFromInput(input.ModuleName, input.FilePath, input.IsTypeshed)
	if err != nil {
		return errorResult(err)
	}

	diags := s.facade.Lint(ctx, key)

	return jsonResult(viewDiagnostics(diags))
}

func (s *Server) handleWaitForComplete(
	ctx context.Context, _ *mcpsdk.CallToolRequest, input WaitForCompleteInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	waitCtx := ctx

	if input.TimeoutMS > 0 {
		var cancel context.CancelFunc

		waitCtx, cancel = withTimeoutMS(ctx, input.TimeoutMS)
		defer cancel()
	}

	s.facade.WaitForComplete(waitCtx)

	return jsonResult(map[string]bool{"complete": waitCtx.Err() == nil})
}

// vertexView is the JSON-friendly projection of one depgraph.Vertex.
type vertexView struct {
	Name           string   `json:"name"`
	FilePath       string   `json:"file_path,omitempty"`
	Dependencies   []string `json:"dependencies"`
	HasMissingDeps bool     `json:"has_missing_deps"`
}

func (s *Server) handleGraphSnapshot(
	_ context.Context, _ *mcpsdk.CallToolRequest, _ GraphSnapshotInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	snap := s.facade.GraphSnapshot()

	views := make([]vertexView, 0, len(snap.Vertices))

	for _, v := range snap.Vertices {
		deps := make([]string, 0, len(v.IncomingKeys))
		for _, k := range v.IncomingKeys {
			deps = append(deps, k.Name)
		}

		views = append(views, vertexView{
			Name:           v.Key.Name,
			FilePath:       v.Key.FilePath,
			Dependencies:   deps,
			HasMissingDeps: v.HasMissingKeys,
		})
	}

	return jsonResult(map[string]any{
		"version":  snap.Version,
		"vertices": views,
	})
}
