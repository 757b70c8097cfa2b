// Package session implements one analysis pass (spec §4.G): it owns a
// walker over a walk plan, spawns a bounded pool of workers that call out
// to the host's evaluator and cache service, handles cancellation, reports
// progress, and triggers hand-off to a queued successor session.
package session

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Sumatoshi-tech/pyanalyze/internal/chainwalk"
	"github.com/Sumatoshi-tech/pyanalyze/internal/entry"
	"github.com/Sumatoshi-tech/pyanalyze/internal/hostapi"
	"github.com/Sumatoshi-tech/pyanalyze/internal/pyast"
	"github.com/Sumatoshi-tech/pyanalyze/internal/walkplan"
)

// State is a session's two-state lifecycle plus its initial value.
type State int32

const (
	NotStarted State = iota
	Started
	Completed
)

// DefaultMaxWorkers is the task pool bound used when Config.MaxWorkers is
// left at zero: one worker per logical CPU, matching spec §6
// ("the desired maximum task concurrency (default: CPU count)").
func DefaultMaxWorkers() int {
	return max(runtime.GOMAXPROCS(0), 1)
}

// Config bundles a session's external collaborators and tuning knobs.
type Config struct {
	Evaluator hostapi.Evaluator
	Cache     hostapi.CacheService // nil disables caching.
	Linter    hostapi.Linter       // unused by the worker loop; exposed for facade.Lint.
	Progress  hostapi.ProgressReporter
	Logger    *slog.Logger

	// MaxWorkers bounds concurrently running tasks. Zero means
	// DefaultMaxWorkers().
	MaxWorkers int

	// OnComplete is the facade's start-next hook: invoked exactly once, on
	// the goroutine that drains the last walker node, after the session
	// reaches Completed.
	OnComplete func(s *Session)

	// OnSteadyState fires when the walk finished with no remaining nodes
	// and no missing dependency keys (spec §4.G "Progress").
	OnSteadyState func(evt hostapi.CompletionEvent)
}

// Session drives one walk plan (or, in fast-path mode, a single entry) to
// completion. Create with New or NewFastPath; call Start exactly once.
type Session struct {
	cfg     Config
	version int64

	plan   *walkplan.Plan
	walker *chainwalk.Walker

	// fastPath, when non-nil, makes Start analyze exactly this one entry
	// (with no dependency context) and skip the walker entirely — the
	// mechanism that lets an open editor buffer jump the queue.
	fastPath      *entry.Entry
	fastPathModID string

	state      atomic.Int32
	cancelled  atomic.Bool
	running    atomic.Int32
	maxWorkers int

	startedAt time.Time
}

// New creates a session that walks plan in full.
func New(version int64, plan *walkplan.Plan, cfg Config) *Session {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = DefaultMaxWorkers()
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Session{
		cfg:        cfg,
		version:    version,
		plan:       plan,
		walker:     chainwalk.New(plan),
		maxWorkers: cfg.MaxWorkers,
	}
}

// NewFastPath creates a lightweight session that analyzes a single entry
// ahead of whatever full session is queued behind it.
func NewFastPath(version int64, modID string, e *entry.Entry, cfg Config) *Session {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Session{
		cfg:           cfg,
		version:       version,
		fastPath:      e,
		fastPathModID: modID,
	}
}

// Version returns the graph version this session was built for.
func (s *Session) Version() int64 { return s.version }

// State returns the session's current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// Cancel requests that in-flight and future workers skip remaining nodes.
// The session still reaches Completed; it does not stop early.
func (s *Session) Cancel() {
	s.cancelled.Store(true)
}

// Cancelled reports whether Cancel was called.
func (s *Session) Cancelled() bool {
	return s.cancelled.Load()
}

// Start runs the session to completion, blocking the calling goroutine
// until every node (or the fast-path entry) has been handled and OnComplete
// has returned.
func (s *Session) Start(ctx context.Context) {
	if !s.state.CompareAndSwap(int32(NotStarted), int32(Started)) {
		return
	}

	s.startedAt = time.Now()

	if s.fastPath != nil {
		s.runFastPath(ctx)
	} else {
		s.runWalker(ctx)
	}

	s.state.Store(int32(Completed))

	if s.cfg.OnComplete != nil {
		s.cfg.OnComplete(s)
	}
}

func (s *Session) runFastPath(ctx context.Context) {
	if !s.fastPath.CanUpdateForVersion(s.version) {
		return
	}

	analysis, err := s.cfg.Evaluator.Evaluate(ctx, s.fastPath.Module(), s.fastPath.Tree(), nil)
	if err != nil {
		if ctx.Err() != nil {
			s.fastPath.RecordCancellation()
		} else {
			s.fastPath.RecordFatal(err)
			s.cfg.Logger.Error("fast-path evaluation faulted",
				slog.String("module", s.fastPathModID), slog.String("error", err.Error()))
		}

		return
	}

	s.fastPath.TrySetAnalysis(s.version, analysis)
}

// runWalker drains the chain walker with a bounded worker pool. Per spec
// §4.G, when spawning a new worker would exceed the configured maximum the
// current goroutine runs the node inline instead; the very last node is
// always run inline so Completed and OnComplete happen on the thread that
// drained the walker.
func (s *Session) runWalker(ctx context.Context) {
	var wg sync.WaitGroup

	for {
		node, ok := s.walker.GetNext()
		if !ok {
			break
		}

		if s.walker.Remaining() == 1 {
			// node is the only one still outstanding: run it inline so
			// Completed and OnComplete fire on this goroutine.
			s.processNode(ctx, node)

			continue
		}

		if !s.tryAcquireWorker() {
			s.processNode(ctx, node)

			continue
		}

		wg.Add(1)

		go func(n *walkplan.Node) {
			defer wg.Done()
			defer s.running.Add(-1)

			s.processNode(ctx, n)
		}(node)
	}

	wg.Wait()
}

func (s *Session) tryAcquireWorker() bool {
	for {
		cur := s.running.Load()
		if int(cur) >= s.maxWorkers {
			return false
		}

		if s.running.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

// processNode implements the per-node worker loop of spec §4.G.
func (s *Session) processNode(ctx context.Context, node *walkplan.Node) {
	e, ok := node.Dep.Value.(*entry.Entry)
	if !ok || e == nil {
		s.walker.Skip(node)
		s.reportProgress()

		return
	}

	if s.shouldSkip(node, e) {
		s.walker.Skip(node)
		s.reportProgress()

		return
	}

	if s.restoreFromCache(ctx, node, e) {
		node.WalkedWithDependencies = true
		s.walker.Commit(node)
		s.reportProgress()

		return
	}

	s.evaluateFresh(ctx, node, e)
	s.reportProgress()
}

// shouldSkip implements step 1: a cancelled session skips nodes that are
// not strictly required, and any node whose entry can no longer accept a
// write at this session's version is always skipped.
func (s *Session) shouldSkip(node *walkplan.Node, e *entry.Entry) bool {
	if !e.CanUpdateForVersion(s.version) {
		return true
	}

	if s.Cancelled() && !nodeRequired(node, e) {
		return true
	}

	return false
}

// nodeRequired reports whether node must still be processed despite
// cancellation: it has no analysis yet, or it belongs to a genuine cycle,
// which must still be driven through both passes to satisfy the
// cycle-completeness invariant regardless of cancellation.
func nodeRequired(node *walkplan.Node, e *entry.Entry) bool {
	if e.LastAnalysis().IsZero() {
		return true
	}

	return node.LoopNumber >= 0
}

// restoreFromCache implements step 2.
func (s *Session) restoreFromCache(ctx context.Context, node *walkplan.Node, e *entry.Entry) bool {
	if s.cfg.Cache == nil {
		return false
	}

	module := e.Module()
	if module == nil {
		return false
	}

	if !s.cfg.Cache.Exists(ctx, module.Name, module.FilePath) {
		return false
	}

	scope, ok, err := s.cfg.Cache.Restore(ctx, module)
	if err != nil || !ok {
		return false
	}

	analysis := hostapi.Analysis{Scope: scope}

	return e.TrySetAnalysis(s.version, analysis)
}

// evaluateFresh implements steps 3-4: call the evaluator, commit, and
// optionally persist+downgrade a library module whose dependencies are
// all fully walked.
func (s *Session) evaluateFresh(ctx context.Context, node *walkplan.Node, e *entry.Entry) {
	deps := s.collectDependencyAnalyses(node)

	analysis, err := s.cfg.Evaluator.Evaluate(ctx, e.Module(), e.Tree(), deps)
	if err != nil {
		if ctx.Err() != nil {
			e.RecordCancellation()
			s.walker.Skip(node)

			return
		}

		e.RecordFatal(err)
		s.cfg.Logger.Error("evaluation faulted",
			slog.String("module", node.Key.String()), slog.String("error", err.Error()))
		node.WalkedWithDependencies = true
		s.walker.Commit(node)

		return
	}

	e.TrySetAnalysis(s.version, analysis)
	node.WalkedWithDependencies = true
	s.walker.Commit(node)

	if s.qualifiesForCacheStore(node, e) {
		if storeErr := s.cfg.Cache.Store(ctx, e.Module(), analysis); storeErr == nil {
			e.DowngradeToSkeleton()
		}
	}
}

func (s *Session) collectDependencyAnalyses(node *walkplan.Node) []hostapi.Analysis {
	if len(node.Incoming) == 0 {
		return nil
	}

	deps := make([]hostapi.Analysis, 0, len(node.Incoming))

	for _, pred := range node.Incoming {
		if e, ok := pred.Dep.Value.(*entry.Entry); ok && e != nil {
			deps = append(deps, e.LastAnalysis())
		}
	}

	return deps
}

// qualifiesForCacheStore implements the library/open-document/"all
// dependencies walked" gate of spec §4.G step 3.
func (s *Session) qualifiesForCacheStore(node *walkplan.Node, e *entry.Entry) bool {
	if s.cfg.Cache == nil {
		return false
	}

	module := e.Module()
	if module == nil || module.Type != pyast.ModuleTypeLibrary {
		return false
	}

	return node.AllDependenciesWalkedWithDependencies()
}

func (s *Session) reportProgress() {
	if s.cfg.Progress == nil {
		return
	}

	remaining := 0
	if s.walker != nil {
		remaining = s.walker.Remaining()
	}

	s.cfg.Progress.ReportRemaining(s.version, remaining)

	if remaining == 0 && s.plan != nil && len(s.plan.MissingKeys) == 0 && s.cfg.OnSteadyState != nil {
		s.cfg.OnSteadyState(hostapi.CompletionEvent{
			Modules: s.plan.TotalNodes,
			Elapsed: int64(time.Since(s.startedAt)),
		})
	}
}
