// Package entry implements the per-module analyzer entry: the mutable cell
// the rest of the scheduler reads and writes as edits, cancellations, and
// completed analyses flow through the system.
package entry

import (
	"context"
	"sync"

	"github.com/Sumatoshi-tech/pyanalyze/internal/hostapi"
	"github.com/Sumatoshi-tech/pyanalyze/internal/pyast"
)

// completion is a one-shot broadcast used to implement Entry's "await the
// next result" contract without forcing every caller onto channels of their
// own. It is reset on invalidation and fulfilled exactly once per session.
type completion struct {
	mu   sync.Mutex
	done chan struct{}
}

func newCompletion() *completion {
	return &completion{done: make(chan struct{})}
}

// reset arms a fresh, unfulfilled completion. Safe to call concurrently
// with Wait; a goroutine already waiting on the old channel is unaffected
// (it keeps waiting on the channel it captured, which is fulfilled
// separately if the invalidated round still completes, or leaked only for
// the lifetime of that goroutine — callers always pair Wait with a
// context deadline).
func (c *completion) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.done = make(chan struct{})
}

func (c *completion) fulfill() {
	c.mu.Lock()
	ch := c.done
	c.mu.Unlock()

	select {
	case <-ch:
		// Already fulfilled (e.g. double commit after cancel); no-op.
	default:
		close(ch)
	}
}

func (c *completion) channel() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.done
}

// Entry is the mutable, per-module state cell described in spec §3.
//
// All exported methods are safe for concurrent use. Workers never mutate
// graph structure through an Entry — only the result fields below, via the
// setters here.
type Entry struct {
	mu sync.RWMutex

	module       *pyast.Module
	tree         pyast.Tree
	bufferVer    int64
	lastAnalysis hostapi.Analysis
	version      int64 // graph version at which this entry was last updated
	isUserModule bool
	cancelled    bool
	fatal        error

	completion *completion
}

// New creates an entry for module, initially holding the empty sentinel
// analysis and an already-fulfilled completion (so a get-analysis issued
// before any edit returns immediately with the sentinel rather than
// hanging).
func New(module *pyast.Module, isUserModule bool) *Entry {
	e := &Entry{
		module:       module,
		isUserModule: isUserModule,
		completion:   newCompletion(),
	}
	e.completion.fulfill()

	return e
}

// Module returns the owning module reference.
func (e *Entry) Module() *pyast.Module {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.module
}

// IsUserModule reports whether this entry backs a module owned by the user
// (as opposed to a library/stub/builtin dependency).
func (e *Entry) IsUserModule() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.isUserModule
}

// BufferVersion returns the current buffer version.
func (e *Entry) BufferVersion() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.bufferVer
}

// Version returns the graph version this entry was last updated at.
func (e *Entry) Version() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.version
}

// Tree returns the current AST, or nil if the entry has been downgraded to
// an import-only skeleton (spec §4.G step 3) or never parsed.
func (e *Entry) Tree() pyast.Tree {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.tree
}

// LastAnalysis returns the last completed analysis, or the empty sentinel.
func (e *Entry) LastAnalysis() hostapi.Analysis {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.lastAnalysis
}

// Invalidate records a new buffer version and AST and arms a fresh
// completion handle. bufferVersion must be monotone: a call with a version
// that does not exceed the current one is a silent no-op (spec §7 item 1,
// "version stale").
//
// Returns true if the invalidation was applied.
func (e *Entry) Invalidate(tree pyast.Tree, bufferVersion, graphVersion int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if bufferVersion <= e.bufferVer {
		return false
	}

	e.tree = tree
	e.bufferVer = bufferVersion
	e.version = graphVersion
	e.cancelled = false
	e.fatal = nil
	e.completion.reset()

	return true
}

// DowngradeToSkeleton drops the full AST after a library module's analysis
// has been stored in the cache service and every dependency was itself
// walked-with-dependencies (spec §4.G step 3). Keeping only the fact that
// the module was parsed lets the entry be restored from cache on the next
// session without holding the full tree in memory.
func (e *Entry) DowngradeToSkeleton() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.tree = nil
}

// CanUpdateForVersion reports whether a worker operating at sessionVersion
// is still allowed to write an analysis into this entry: the entry must not
// have moved on to a newer buffer edit in the meantime.
func (e *Entry) CanUpdateForVersion(sessionVersion int64) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return sessionVersion >= e.version
}

// TrySetAnalysis writes a freshly produced analysis, rejecting writes whose
// sessionVersion is older than the entry's current version (spec §5,
// "Entry writes"). Returns true if the write was applied.
func (e *Entry) TrySetAnalysis(sessionVersion int64, analysis hostapi.Analysis) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if sessionVersion < e.version {
		return false
	}

	e.lastAnalysis = analysis
	e.cancelled = false
	e.fulfillLocked()

	return true
}

// RecordCancellation marks the entry cancelled and unblocks any pending
// GetAnalysis caller with the previous analysis (spec §7 item 2).
func (e *Entry) RecordCancellation() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cancelled = true
	e.fulfillLocked()
}

// RecordFatal marks the entry fatally failed (spec §7 item 5, surfaced as
// cancellation to callers) and unblocks pending waiters.
func (e *Entry) RecordFatal(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.fatal = err
	e.cancelled = true
	e.fulfillLocked()
}

func (e *Entry) fulfillLocked() {
	e.completion.fulfill()
}

// IsCancelled reports whether the most recent round ended in cancellation
// or fatal failure.
func (e *Entry) IsCancelled() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.cancelled
}

// Wait blocks until the entry's completion handle is fulfilled or the
// context is done. It returns the last known analysis either way — spec §4.H: "returns the last known
// analysis if wait elapses" rather than failing.
func (e *Entry) Wait(ctx context.Context) hostapi.Analysis {
	e.mu.RLock()
	ch := e.completion.channel()
	e.mu.RUnlock()

	select {
	case <-ch:
	case <-ctx.Done():
	}

	return e.LastAnalysis()
}
