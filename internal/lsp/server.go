// Package lsp provides a Language Server Protocol server over the
// scheduler: didOpen/didChange/didClose drive analyzer.Facade directly, and
// diagnostics are published from the facade's own linter rather than a
// separate document store, grounded on the teacher's glsp wiring.
package lsp

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/Sumatoshi-tech/pyanalyze/internal/analyzer"
	"github.com/Sumatoshi-tech/pyanalyze/internal/hostapi"
	"github.com/Sumatoshi-tech/pyanalyze/internal/modkey"
	"github.com/Sumatoshi-tech/pyanalyze/internal/pyast"
)

const serverName = "pyanalyze"

// bufferVersions tracks the monotonically increasing version Enqueue needs
// per URI; the LSP protocol's own document version resets per session and
// is not guaranteed to start at zero, so the server keeps its own counter.
type bufferVersions struct {
	mu       sync.Mutex
	versions map[string]int64
}

func (b *bufferVersions) next(uri string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.versions[uri]++

	return b.versions[uri]
}

// Server is the LSP front end for a *analyzer.Facade. Every open document
// becomes a user module; Parser turns its text into the pyast.Tree the
// facade enqueues.
type Server struct {
	facade  *analyzer.Facade
	parser  hostapi.Parser
	log     *slog.Logger
	handler protocol.Handler
	bufvers bufferVersions
}

// NewServer creates an LSP server backed by facade, parsing documents with
// parser.
func NewServer(facade *analyzer.Facade, parser hostapi.Parser, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}

	srv := &Server{
		facade:  facade,
		parser:  parser,
		log:     log,
		bufvers: bufferVersions{versions: make(map[string]int64)},
	}

	srv.handler = protocol.Handler{
		Initialize:            srv.initialize,
		Initialized:           srv.initialized,
		Shutdown:              srv.shutdown,
		SetTrace:              srv.setTrace,
		TextDocumentDidOpen:   srv.didOpen,
		TextDocumentDidChange: srv.didChange,
		TextDocumentDidClose:  srv.didClose,
	}

	return srv
}

// Run starts the LSP server on stdio, blocking until the client
// disconnects or the process is killed.
func (srv *Server) Run() error {
	return glspserver.NewServer(&srv.handler, serverName, false).RunStdio()
}

func (srv *Server) initialize(_ *glsp.Context, _ *protocol.InitializeParams) (any, error) {
	capabilities := srv.handler.CreateServerCapabilities()
	version := "0.1.0"

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    serverName,
			Version: &version,
		},
	}, nil
}

func (srv *Server) initialized(_ *glsp.Context, _ *protocol.InitializedParams) error { return nil }

func (srv *Server) shutdown(_ *glsp.Context) error {
	protocol.SetTraceValue(protocol.TraceValueOff)
	return nil
}

func (srv *Server) setTrace(_ *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

func (srv *Server) didOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	srv.analyze(ctx, params.TextDocument.URI, params.TextDocument.Text)
	return nil
}

func (srv *Server) didChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI
	if len(params.ContentChanges) == 0 {
		return nil
	}

	change, ok := params.ContentChanges[0].(map[string]any)
	if !ok {
		return nil
	}

	text, ok := change["text"].(string)
	if !ok {
		return nil
	}

	srv.analyze(ctx, uri, text)

	return nil
}

func (srv *Server) didClose(_ *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	srv.facade.Remove(moduleKeyForURI(uri))

	return nil
}

// analyze parses text, enqueues it with the facade, and publishes
// diagnostics from the facade's linter once the module's current analysis
// is available. It does not block on a full session: Lint runs against
// whatever analysis is already on the entry, matching the facade's own
// "best effort, never stall the editor" contract.
func (srv *Server) analyze(ctx *glsp.Context, uri, text string) {
	module := moduleForURI(uri)

	tree, err := srv.parser.Parse(text)
	if err != nil {
		srv.log.Warn("lsp: parse failed", "uri", uri, "error", err)
		srv.publishDiagnostics(ctx, uri, nil)

		return
	}

	version := srv.bufvers.next(uri)

	srv.facade.Enqueue(context.Background(), module, tree, version)

	key := modkey.New(module.Name, module.FilePath, module.IsTypeshed)
	diags := srv.facade.Lint(context.Background(), key)

	srv.publishDiagnostics(ctx, uri, diags)
}

func (srv *Server) publishDiagnostics(ctx *glsp.Context, uri string, diags []hostapi.Diagnostic) {
	out := make([]protocol.Diagnostic, 0, len(diags))

	for _, d := range diags {
		sev := toProtocolSeverity(d.Severity)
		line := uint32(0)
		col := uint32(0)

		if d.Line > 0 {
			line = uint32(d.Line - 1)
		}

		if d.Column > 0 {
			col = uint32(d.Column - 1)
		}

		out = append(out, protocol.Diagnostic{
			Range: protocol.Range{
				Start: protocol.Position{Line: line, Character: col},
				End:   protocol.Position{Line: line, Character: col + 1},
			},
			Severity: &sev,
			Source:   strPtr(serverName),
			Message:  d.Message,
		})
	}

	ctx.Notify("textDocument/publishDiagnostics", &protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: out,
	})
}

func toProtocolSeverity(s hostapi.DiagnosticSeverity) protocol.DiagnosticSeverity {
	switch s {
	case hostapi.SeverityError:
		return protocol.DiagnosticSeverityError
	case hostapi.SeverityWarning:
		return protocol.DiagnosticSeverityWarning
	default:
		return protocol.DiagnosticSeverityInformation
	}
}

func strPtr(s string) *string { return &s }

// moduleForURI builds the pyast.Module a document's LSP URI stands for. The
// module name is derived from the file's full path (extension stripped,
// path separators turned into dots) since the editor has no
// notion of the project's import-root layout; path resolution for imports
// is unaffected since it is keyed on path, not this name.
func moduleForURI(uri string) *pyast.Module {
	path := filePathFromURI(uri)

	return &pyast.Module{
		Name:     moduleNameFromPath(path),
		FilePath: path,
		Type:     pyast.ModuleTypeUser,
	}
}

func moduleKeyForURI(uri string) modkey.Key {
	m := moduleForURI(uri)
	return modkey.New(m.Name, m.FilePath, m.IsTypeshed)
}

func filePathFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return uri
	}

	if u.Scheme != "file" {
		return uri
	}

	return u.Path
}

func moduleNameFromPath(path string) string {
	trimmed := strings.TrimSuffix(path, ".py")
	trimmed = strings.TrimPrefix(trimmed, "/")

	return strings.ReplaceAll(trimmed, "/", ".")
}
