// Package obslog provides the structured logger used by the facade and
// the session: a log/slog logger whose handler injects the
// active OpenTelemetry span's trace context and static service metadata
// into every record.
package obslog

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

const (
	attrTraceID = "trace_id"
	attrSpanID  = "span_id"
	attrService = "service"
	attrEnv     = "env"
	attrMode    = "mode"
)

// Mode identifies how the scheduler was launched, attached to every record.
type Mode string

const (
	ModeCLI   Mode = "cli"
	ModeLSP   Mode = "lsp"
	ModeMCP   Mode = "mcp"
	ModeServe Mode = "serve"
)

// TracingHandler is an slog.Handler that injects OpenTelemetry trace context
// (trace_id, span_id) and service metadata into every record. Service
// attributes are pre-attached at construction so they remain top-level even
// after WithGroup.
type TracingHandler struct {
	inner slog.Handler
}

// NewTracingHandler wraps inner, pre-attaching service/env/mode attributes.
func NewTracingHandler(inner slog.Handler, service, env string, mode Mode) *TracingHandler {
	attrs := []slog.Attr{
		slog.String(attrService, service),
		slog.String(attrMode, string(mode)),
	}

	if env != "" {
		attrs = append(attrs, slog.String(attrEnv, env))
	}

	return &TracingHandler{inner: inner.WithAttrs(attrs)}
}

// Enabled delegates to the inner handler.
func (h *TracingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle adds trace context attributes from the span in ctx, then delegates.
func (h *TracingHandler) Handle(ctx context.Context, record slog.Record) error {
	sc := trace.SpanContextFromContext(ctx)
	if sc.IsValid() {
		record.AddAttrs(
			slog.String(attrTraceID, sc.TraceID().String()),
			slog.String(attrSpanID, sc.SpanID().String()),
		)
	}

	if err := h.inner.Handle(ctx, record); err != nil {
		return fmt.Errorf("obslog: handle record: %w", err)
	}

	return nil
}

// WithAttrs returns a new TracingHandler with additional attributes on the
// inner handler.
func (h *TracingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TracingHandler{inner: h.inner.WithAttrs(attrs)}
}

// WithGroup returns a new TracingHandler with a group prefix on the inner
// handler.
func (h *TracingHandler) WithGroup(name string) slog.Handler {
	return &TracingHandler{inner: h.inner.WithGroup(name)}
}

// Options configures New.
type Options struct {
	Service string
	Env     string
	Mode    Mode
	Level   slog.Level
	JSON    bool
}

// New builds a *slog.Logger writing to w (os.Stderr in production) wrapped
// in a TracingHandler, matching the shape of every *slog.Logger field on
// session.Config and analyzer.Config.
func New(w io.Writer, opts Options) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: opts.Level}

	var inner slog.Handler
	if opts.JSON {
		inner = slog.NewJSONHandler(w, handlerOpts)
	} else {
		inner = slog.NewTextHandler(w, handlerOpts)
	}

	return slog.New(NewTracingHandler(inner, opts.Service, opts.Env, opts.Mode))
}
