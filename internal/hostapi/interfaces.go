// Package hostapi declares every external collaborator the scheduler core
// calls out to but does not implement: the parser, the import-to-path
// resolver, the module loader, the symbol evaluator, the optional analysis
// cache, and the linter. Per spec §6 these are supplied by the host;
// internal/pyparse and internal/memcache provide reference implementations
// used by the CLI and by tests, but the core only ever depends on these
// interfaces.
package hostapi

import (
	"context"

	"github.com/Sumatoshi-tech/pyanalyze/internal/modkey"
	"github.com/Sumatoshi-tech/pyanalyze/internal/pyast"
)

// Parser turns source text into the AST contract the core walks.
type Parser interface {
	Parse(text string) (pyast.Tree, error)
}

// ImportResolution is the sum type the path resolver returns for one
// import/from-import statement. Exactly one field is populated; which one
// is indicated by the Kind.
type ImportResolution struct {
	Kind ImportResolutionKind

	// ModuleImport.
	FullName   string
	ModulePath string

	// PossibleModuleImport: the longest resolved prefix plus the remaining
	// unresolved dotted parts (e.g. `a.b` resolved, `.c.d` remaining).
	PrecedingFullName string
	PrecedingPath     string
	RemainingParts    []string

	// PackageImport: modules that make up a `from pkg import *`-style
	// package exposure.
	Modules []modkey.Key
}

// ImportResolutionKind discriminates ImportResolution's populated fields.
type ImportResolutionKind int

const (
	ResolutionNone ImportResolutionKind = iota
	ResolutionModuleImport
	ResolutionPossibleModuleImport
	ResolutionPackageImport
)

// PathResolver maps `import`/`from-import` syntax to file paths.
type PathResolver interface {
	// FindImports resolves the dotted names referenced from fromFile. When
	// forceAbsolute is set, relative imports (leading dots) are rejected
	// rather than resolved against the importing package.
	FindImports(fromFile string, names []string, forceAbsolute bool) ImportResolution
}

// ModuleLoader resolves a module name (optionally pinned to typeshed) to a
// loaded module object.
type ModuleLoader interface {
	GetOrLoad(ctx context.Context, name string, isTypeshed bool) (*pyast.Module, error)
}

// GlobalScope is the evaluator's output: a symbol table the evaluator and
// linter can query. The core treats it opaquely.
type GlobalScope interface {
	ModuleName() string
}

// Analysis is the per-module result written back into an entry. The empty
// Analysis{} value is the "nothing produced yet" sentinel referenced by
// spec §3 ("previous analysis, possibly an empty sentinel").
type Analysis struct {
	Scope       GlobalScope
	Diagnostics []Diagnostic
	// Err is set when evaluation faulted; the analysis is still usable by
	// dependents (degraded), per spec §7 item 4.
	Err error
}

// IsZero reports whether this is the empty sentinel analysis.
func (a Analysis) IsZero() bool {
	return a.Scope == nil && a.Diagnostics == nil && a.Err == nil
}

// Diagnostic is a single linter/evaluator finding.
type Diagnostic struct {
	Message  string
	Line     int
	Column   int
	Severity DiagnosticSeverity
}

// DiagnosticSeverity orders diagnostics by urgency.
type DiagnosticSeverity int

const (
	SeverityInfo DiagnosticSeverity = iota
	SeverityWarning
	SeverityError
)

// Evaluator produces a fresh analysis for one module given its AST. The
// core invokes this synchronously from a worker goroutine; the evaluator
// itself is assumed safe to call concurrently from distinct goroutines, one
// call per module at a time.
type Evaluator interface {
	Evaluate(ctx context.Context, module *pyast.Module, tree pyast.Tree, deps []Analysis) (Analysis, error)
}

// CacheService is the optional on-disk (or otherwise durable) analysis
// cache. A nil CacheService disables caching entirely.
type CacheService interface {
	Exists(ctx context.Context, name, filePath string) bool
	Restore(ctx context.Context, module *pyast.Module) (GlobalScope, bool, error)
	Store(ctx context.Context, module *pyast.Module, analysis Analysis) error
}

// Linter runs lint checks against a completed analysis.
type Linter interface {
	Lint(ctx context.Context, module *pyast.Module, analysis Analysis) []Diagnostic
}

// ProgressReporter receives scheduler progress updates. Implementations
// must not block meaningfully; the session calls this after every
// commit/skip.
type ProgressReporter interface {
	ReportRemaining(sessionVersion int64, remaining int)
}

// CompletionEvent is fired with the module count and elapsed wall-clock
// time when an analysis pass reaches steady state (§4.G "Progress").
type CompletionEvent struct {
	Modules int
	Elapsed int64 // nanoseconds; kept as int64 so callers needn't import time.
}
