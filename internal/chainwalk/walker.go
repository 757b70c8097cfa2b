// Package chainwalk implements the priority producer/consumer walker of
// spec §4.F: it hands out ready walking-graph nodes to a worker pool and
// receives their commit/skip verdicts, decrementing downstream counters as
// each node resolves.
package chainwalk

import (
	"sync"

	"github.com/Sumatoshi-tech/pyanalyze/internal/walkplan"
)

// Walker drives a single walk plan to completion. It is not safe to share
// across sessions; one Walker is created per session's plan.
type Walker struct {
	mu   sync.Mutex
	cond *sync.Cond

	ready     []*walkplan.Node
	remaining int
	done      map[*walkplan.Node]bool
}

// New creates a Walker seeded with the plan's initially-ready nodes.
func New(plan *walkplan.Plan) *Walker {
	w := &Walker{
		ready:     append([]*walkplan.Node(nil), plan.Starting...),
		remaining: plan.TotalNodes,
		done:      make(map[*walkplan.Node]bool, plan.TotalNodes),
	}
	w.cond = sync.NewCond(&w.mu)

	return w
}

// Remaining reports how many nodes have not yet been committed or skipped.
func (w *Walker) Remaining() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.remaining
}

// GetNext pops the next ready node, in FIFO order. If none are currently
// ready it blocks until another worker's Commit or Skip makes one ready,
// returning nil, false only once the walker is fully drained (no ready
// nodes and none still outstanding).
func (w *Walker) GetNext() (*walkplan.Node, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for len(w.ready) == 0 && w.remaining > 0 {
		w.cond.Wait()
	}

	if len(w.ready) == 0 {
		return nil, false
	}

	n := w.ready[0]
	w.ready = w.ready[1:]

	return n, true
}

// Commit marks node as walked-with-dependencies: its own dependents may now
// count it toward AllDependenciesWalkedWithDependencies, and any downstream
// node whose last incoming edge was node becomes ready.
//
// Calling Commit twice on the same node, or Commit after Skip, is a caller
// bug and panics rather than silently corrupting the remaining count.
func (w *Walker) Commit(node *walkplan.Node) {
	w.mu.Lock()
	defer w.mu.Unlock()
	defer w.cond.Broadcast()

	w.markDoneLocked(node)

	node.WalkedWithDependencies = true

	for _, succ := range node.Outgoing {
		succ.WalkedIncomingCount++
		w.decrementLocked(succ)
	}
}

// Skip marks node as handled without running analysis on it (e.g. it was
// already up to date), still unblocking its dependents' incoming counters
// but without crediting it as walked-with-dependencies.
func (w *Walker) Skip(node *walkplan.Node) {
	w.mu.Lock()
	defer w.mu.Unlock()
	defer w.cond.Broadcast()

	w.markDoneLocked(node)

	for _, succ := range node.Outgoing {
		w.decrementLocked(succ)
	}
}

func (w *Walker) markDoneLocked(node *walkplan.Node) {
	if w.done[node] {
		panic("chainwalk: node committed or skipped twice")
	}

	w.done[node] = true
	w.remaining--
}

func (w *Walker) decrementLocked(succ *walkplan.Node) {
	succ.IncomingCount--

	if succ.IncomingCount == 0 {
		w.ready = append(w.ready, succ)
	}
}
