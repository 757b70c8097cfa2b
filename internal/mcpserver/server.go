// Package mcpserver exposes an analyzer.Facade as a Model Context Protocol
// server over stdio, grounded on the teacher's pkg/mcp server: the same
// generic tracing/metrics wrapper pattern around mcpsdk.AddTool, four tools
// instead of three.
package mcpserver

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/pyanalyze/internal/analyzer"
	"github.com/Sumatoshi-tech/pyanalyze/internal/obs"
)

const (
	serverName    = "pyanalyze"
	serverVersion = "1.0.0"
	toolCount     = 4
)

// ServerDeps holds injectable dependencies for the MCP server. Zero-value
// fields disable the corresponding cross-cutting concern.
type ServerDeps struct {
	Logger  *slog.Logger
	Metrics *obs.REDMetrics
	Tracer  trace.Tracer
}

// Server wraps the MCP SDK server with pyanalyze's tool registrations.
type Server struct {
	inner   *mcpsdk.Server
	facade  *analyzer.Facade
	mu      sync.RWMutex
	tools   []string
	metrics *obs.REDMetrics
	tracer  trace.Tracer
}

// NewServer creates an MCP server backed by facade with every tool registered.
func NewServer(facade *analyzer.Facade, deps ServerDeps) *Server {
	opts := &mcpsdk.ServerOptions{}
	if deps.Logger != nil {
		opts.Logger = deps.Logger
	}

	inner := mcpsdk.NewServer(
		&mcpsdk.Implementation{Name: serverName, Version: serverVersion},
		opts,
	)

	s := &Server{
		inner:   inner,
		facade:  facade,
		tools:   make([]string, 0, toolCount),
		metrics: deps.Metrics,
		tracer:  deps.Tracer,
	}

	s.registerTools()

	return s
}

// ListToolNames returns the sorted names of all registered tools.
func (s *Server) ListToolNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, len(s.tools))
	copy(names, s.tools)
	sort.Strings(names)

	return names
}

// Run starts the MCP server on stdio transport, blocking until the context
// is canceled or the connection closes.
func (s *Server) Run(ctx context.Context) error {
	if err := s.inner.Run(ctx, &mcpsdk.StdioTransport{}); err != nil {
		return fmt.Errorf("mcpserver: %w", err)
	}

	return nil
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameGetAnalysis,
		Description: getAnalysisDescription,
	}, withMetrics(s.metrics, ToolNameGetAnalysis, withTracing(s.tracer, ToolNameGetAnalysis, s.handleGetAnalysis)))
	s.trackTool(ToolNameGetAnalysis)

	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameLint,
		Description: lintDescription,
	}, withMetrics(s.metrics, ToolNameLint, withTracing(s.tracer, ToolNameLint, s.handleLint)))
	s.trackTool(ToolNameLint)

	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameWaitComplete,
		Description: waitForCompleteDescription,
	}, withMetrics(s.metrics, ToolNameWaitComplete, withTracing(s.tracer, ToolNameWaitComplete, s.handleWaitForComplete)))
	s.trackTool(ToolNameWaitComplete)

	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameGraphSnapshot,
		Description: graphSnapshotDescription,
	}, withMetrics(s.metrics, ToolNameGraphSnapshot, withTracing(s.tracer, ToolNameGraphSnapshot, s.handleGraphSnapshot)))
	s.trackTool(ToolNameGraphSnapshot)
}

func (s *Server) trackTool(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tools = append(s.tools, name)
}

const (
	getAnalysisDescription = "Fetch the current (or in-progress) analysis for a module, " +
		"waiting up to wait_ms for a fresh result."
	lintDescription = "Run the linter against a module's current analysis and return its diagnostics."
	waitForCompleteDescription = "Block until no analysis session is in flight, or until timeout_ms elapses."
	graphSnapshotDescription = "Return a snapshot of the module dependency graph: every module, " +
		"its declared dependencies, and whether any of them are unresolved."
)

const mcpSpanPrefix = "mcp."

const traceIDMetaKey = "trace_id"

func withTracing[Input any](
	tracer trace.Tracer,
	toolName string,
	handler func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error),
) func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if tracer == nil {
		return handler
	}

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		ctx, span := tracer.Start(ctx, mcpSpanPrefix+toolName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("mcp.tool", toolName)),
		)
		defer span.End()

		result, output, err := handler(ctx, req, input)

		sc := span.SpanContext()
		if sc.IsSampled() && result != nil {
			result.Content = append(result.Content, &mcpsdk.TextContent{
				Text: fmt.Sprintf("%s=%s", traceIDMetaKey, sc.TraceID().String()),
			})
		}

		return result, output, err
	}
}

func withMetrics[Input any](
	metrics *obs.REDMetrics,
	toolName string,
	handler func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error),
) func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if metrics == nil {
		return handler
	}

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		start := time.Now()

		decInflight := metrics.TrackInflight(ctx, mcpSpanPrefix+toolName)
		defer decInflight()

		result, output, err := handler(ctx, req, input)

		status := "ok"
		if err != nil || (result != nil && result.IsError) {
			status = "error"
		}

		metrics.RecordRequest(ctx, mcpSpanPrefix+toolName, status, time.Since(start))

		return result, output, err
	}
}

func withTimeoutMS(ctx context.Context, ms int64) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, time.Duration(ms)*time.Millisecond)
}
