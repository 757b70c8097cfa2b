// Package analyzer implements the process-wide registry of spec §4.H: the
// single entry point the host calls into, which owns every module's
// entry.Entry, the dependency graph, and the hand-off between the current
// and next analysis sessions.
package analyzer

import (
	"context"
	"sync"
	"time"

	"github.com/Sumatoshi-tech/pyanalyze/internal/depgraph"
	"github.com/Sumatoshi-tech/pyanalyze/internal/entry"
	"github.com/Sumatoshi-tech/pyanalyze/internal/hostapi"
	"github.com/Sumatoshi-tech/pyanalyze/internal/importscan"
	"github.com/Sumatoshi-tech/pyanalyze/internal/modkey"
	"github.com/Sumatoshi-tech/pyanalyze/internal/pyast"
	"github.com/Sumatoshi-tech/pyanalyze/internal/session"
	"github.com/Sumatoshi-tech/pyanalyze/internal/walkplan"
)

// Config bundles the facade's external collaborators, shared by every
// session it starts.
type Config struct {
	Loader   hostapi.ModuleLoader
	Resolver hostapi.PathResolver
	session.Config
}

// Facade is the process-wide scheduler entry point. The zero value is not
// usable; use New.
type Facade struct {
	mu sync.Mutex

	cfg   Config
	graph *depgraph.Graph

	entries map[modkey.Key]*entry.Entry
	modules map[modkey.Key]*pyast.Module

	current *session.Session
	next    *session.Session

	disposed bool
}

// New creates an empty facade.
func New(cfg Config) *Facade {
	return &Facade{
		cfg:     cfg,
		graph:   depgraph.New(),
		entries: make(map[modkey.Key]*entry.Entry),
		modules: make(map[modkey.Key]*pyast.Module),
	}
}

// Invalidate increments the module's graph version and resets its
// completion handle, without supplying a new AST (used when a module's
// dependency changed without a new edit to the module itself).
func (f *Facade) Invalidate(key modkey.Key) {
	f.mu.Lock()
	e, ok := f.entries[key]
	f.mu.Unlock()

	if !ok {
		return
	}

	e.Invalidate(e.Tree(), e.BufferVersion()+1, f.graph.Version()+1)
}

// Remove drops the entry from the registry. The graph keeps the vertex
// until the next topology-changing snapshot, per spec §4.H.
func (f *Facade) Remove(key modkey.Key) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.entries, key)
	delete(f.modules, key)
}

// Enqueue submits a fresh AST for module at bufferVersion: if the version
// does not exceed the entry's current one, the edit is dropped (spec §7
// item 1). Otherwise the entry is updated, its import set recomputed via
// the extractor, the dependency graph updated, and a session constructed
// or superseded per the hand-off rules of spec §4.G.
func (f *Facade) Enqueue(ctx context.Context, module *pyast.Module, tree pyast.Tree, bufferVersion int64) {
	key := moduleKey(module)

	f.mu.Lock()
	e, ok := f.entries[key]

	if !ok {
		e = entry.New(module, module.Type == pyast.ModuleTypeUser)
		f.entries[key] = e
		f.modules[key] = module
	}
	f.mu.Unlock()

	graphVersion := f.graph.Version() + 1
	if !e.Invalidate(tree, bufferVersion, graphVersion) {
		return
	}

	deps := f.extractDeps(module, tree)
	f.graph.AddOrUpdate(key, e, deps)

	f.submitChange(ctx, key, graphVersion)
}

// EnqueueOpened is the variant of Enqueue used for the buffer a user is
// actively editing: besides the normal graph update and hand-off, it starts
// an immediate fast-path session over just this one entry (no dependency
// context), so an open editor gets feedback without waiting behind the
// walk plan the rest of the graph triggers.
func (f *Facade) EnqueueOpened(ctx context.Context, module *pyast.Module, tree pyast.Tree, bufferVersion int64) {
	key := moduleKey(module)

	f.mu.Lock()
	e, ok := f.entries[key]

	if !ok {
		e = entry.New(module, module.Type == pyast.ModuleTypeUser)
		f.entries[key] = e
		f.modules[key] = module
	}
	f.mu.Unlock()

	graphVersion := f.graph.Version() + 1
	if !e.Invalidate(tree, bufferVersion, graphVersion) {
		return
	}

	deps := f.extractDeps(module, tree)
	f.graph.AddOrUpdate(key, e, deps)

	fastCfg := f.cfg.Config
	fastCfg.OnComplete = nil
	go session.NewFastPath(graphVersion, key.Name, e, fastCfg).Start(ctx)

	f.submitChange(ctx, key, graphVersion)
}

// EnqueueDeps is the variant of Enqueue that updates a module's dependency
// set without a new AST (spec §4.H "enqueue(module, analysis-deps)").
func (f *Facade) EnqueueDeps(ctx context.Context, module *pyast.Module, deps []modkey.Key) {
	key := moduleKey(module)

	f.mu.Lock()
	e, ok := f.entries[key]

	if !ok {
		e = entry.New(module, module.Type == pyast.ModuleTypeUser)
		f.entries[key] = e
		f.modules[key] = module
	}
	f.mu.Unlock()

	graphVersion := f.graph.Version() + 1
	f.graph.AddOrUpdate(key, e, deps)

	f.submitChange(ctx, key, graphVersion)
}

func (f *Facade) extractDeps(module *pyast.Module, tree pyast.Tree) []modkey.Key {
	if tree == nil {
		return nil
	}

	result := importscan.Extract(module, tree, f.cfg.Resolver)

	return result.Keys
}

// submitChange implements the session hand-off rules of spec §4.G.
func (f *Facade) submitChange(ctx context.Context, changedKey modkey.Key, graphVersion int64) {
	f.mu.Lock()

	if f.superseded(graphVersion) {
		f.mu.Unlock()

		return
	}

	if f.current == nil {
		f.startSessionLocked(ctx, []modkey.Key{changedKey})
		f.mu.Unlock()

		return
	}

	if f.current.State() == session.Completed || graphVersion > f.current.Version() {
		f.current.Cancel()
		f.queueNextLocked(ctx, []modkey.Key{changedKey})
	}

	f.mu.Unlock()
}

// superseded reports whether graphVersion is already covered by a session
// that is running or queued at an equal or newer version.
func (f *Facade) superseded(graphVersion int64) bool {
	if f.current != nil && f.current.State() != session.Completed && f.current.Version() >= graphVersion {
		return true
	}

	if f.next != nil && f.next.Version() >= graphVersion {
		return true
	}

	return false
}

// startSessionLocked builds a plan from changedKeys and starts it as the
// current session. Callers must hold f.mu.
func (f *Facade) startSessionLocked(ctx context.Context, changedKeys []modkey.Key) {
	snap := f.graph.Snapshot()
	plan := walkplan.Build(snap, changedKeys)

	f.resolveMissingKeys(ctx, plan.MissingKeys)

	cfg := f.cfg.Config
	cfg.OnComplete = f.onSessionComplete

	sess := session.New(snap.Version, plan, cfg)
	f.current = sess

	for _, k := range changedKeys {
		f.graph.ForgetChanged(k)
	}

	go sess.Start(ctx)
}

// queueNextLocked builds the successor plan eagerly from the latest
// snapshot (including changedKeys) and holds it as next until the current
// session signals completion.
func (f *Facade) queueNextLocked(ctx context.Context, changedKeys []modkey.Key) {
	snap := f.graph.Snapshot()
	allChanged := f.graph.ChangedKeys()
	allChanged = append(allChanged, changedKeys...)

	plan := walkplan.Build(snap, allChanged)

	cfg := f.cfg.Config
	cfg.OnComplete = f.onSessionComplete

	f.next = session.New(snap.Version, plan, cfg)
}

// onSessionComplete is session.Config.OnComplete: it promotes a queued
// next session to current and starts it.
func (f *Facade) onSessionComplete(completed *session.Session) {
	f.mu.Lock()

	if f.current != completed {
		f.mu.Unlock()

		return
	}

	nxt := f.next
	f.next = nil
	f.current = nxt

	f.mu.Unlock()

	if nxt != nil {
		go nxt.Start(context.Background())
	}
}

// resolveMissingKeys kicks the module loader for every key the walk
// planner could not resolve, per spec §7 item 3. Loaded modules are
// enqueued with no AST; the next snapshot will pick them up. Callers must
// hold f.mu.
func (f *Facade) resolveMissingKeys(ctx context.Context, missing []modkey.Key) {
	if f.cfg.Loader == nil {
		return
	}

	for _, k := range missing {
		module, err := f.cfg.Loader.GetOrLoad(ctx, k.Name, k.IsTypeshed)
		if err != nil || module == nil {
			continue
		}

		if _, ok := f.entries[k]; !ok {
			e := entry.New(module, false)
			f.entries[k] = e
			f.modules[k] = module
			f.graph.AddOrUpdate(k, e, nil)
		}
	}
}

// GetAnalysis awaits the entry's completion handle, returning the last
// known analysis if waitMS elapses first (spec §5 "Timeouts"). waitMS <= 0
// means wait indefinitely.
func (f *Facade) GetAnalysis(ctx context.Context, key modkey.Key, waitMS int64) hostapi.Analysis {
	f.mu.Lock()
	e, ok := f.entries[key]
	f.mu.Unlock()

	if !ok {
		return hostapi.Analysis{}
	}

	if waitMS <= 0 {
		return e.Wait(ctx)
	}

	waitCtx, cancel := context.WithTimeout(ctx, time.Duration(waitMS)*time.Millisecond)
	defer cancel()

	return e.Wait(waitCtx)
}

// WaitForComplete blocks until no session is in flight. It is a best-effort
// poll rather than a true event, since the scheduler has no single
// "analysis-complete" channel independent of individual sessions; callers
// needing the CompletionEvent payload should use Config.OnSteadyState.
func (f *Facade) WaitForComplete(ctx context.Context) {
	const pollInterval = 5 * time.Millisecond

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		f.mu.Lock()
		idle := f.current == nil || f.current.State() == session.Completed
		f.mu.Unlock()

		if idle {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Lint runs the linter against the module's current analysis. Non-user
// modules always return an empty diagnostics list, per spec §4.H.
func (f *Facade) Lint(ctx context.Context, key modkey.Key) []hostapi.Diagnostic {
	f.mu.Lock()
	e, ok := f.entries[key]
	f.mu.Unlock()

	if !ok || !e.IsUserModule() || f.cfg.Linter == nil {
		return nil
	}

	analysis := e.LastAnalysis()

	return f.cfg.Linter.Lint(ctx, e.Module(), analysis)
}

// Reset clears every non-typeshed, non-builtin entry and drops their graph
// vertices, per spec §4.H.
func (f *Facade) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	var toRemove []modkey.Key

	for k := range f.entries {
		if k.IsTypeshed || !k.HasFile() {
			continue
		}

		toRemove = append(toRemove, k)
	}

	for _, k := range toRemove {
		delete(f.entries, k)
		delete(f.modules, k)
	}

	f.graph.Remove(toRemove)
}

// Dispose cancels any in-flight session and marks the facade disposed;
// subsequent calls are no-ops (spec §5, "global disposal token").
func (f *Facade) Dispose() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.disposed {
		return
	}

	f.disposed = true

	if f.current != nil {
		f.current.Cancel()
	}

	if f.next != nil {
		f.next.Cancel()
	}
}

// GraphSnapshot returns the current dependency graph snapshot, for
// diagnostics and the MCP graph_snapshot tool. It never blocks on an
// in-flight session.
func (f *Facade) GraphSnapshot() *depgraph.Snapshot {
	return f.graph.Snapshot()
}

func moduleKey(module *pyast.Module) modkey.Key {
	if module.FilePath == "" {
		return modkey.NewBuiltin(module.Name)
	}

	return modkey.New(module.Name, module.FilePath, module.IsTypeshed)
}
