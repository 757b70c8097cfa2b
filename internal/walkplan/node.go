package walkplan

import (
	"github.com/Sumatoshi-tech/pyanalyze/internal/depgraph"
	"github.com/Sumatoshi-tech/pyanalyze/internal/modkey"
)

// loopNumber sentinels, per spec §3/§4.E. A node's loop-number is -1 until
// Tarjan assigns it, -2 for a trivial singleton SCC (whether or not it has
// a genuine self-loop — see DESIGN.md for why this implementation treats
// both uniformly), and a non-negative sequential SCC id for every SCC of
// size ≥ 2, which receives the two-pass loop-breaking treatment.
const (
	LoopNumberUnset     = -1
	LoopNumberAcyclic   = -2
	firstCyclicLoopID   = 0
)

// Pass discriminates a walking node's role when its SCC required two-pass
// loop breaking.
type Pass int

const (
	PassOnly Pass = iota // no loop breaking applied; this is the only pass.
	PassFirst
	PassSecond
)

// Node is a planning-only vertex wrapping one dependency-graph vertex for a
// single session's walking graph (spec §3 "Walking vertex").
type Node struct {
	Dep *depgraph.Vertex
	Key modkey.Key

	// Incoming is fixed once the walking graph's edges are built; it is the
	// set of nodes this node must wait on. IncomingCount is the live
	// countdown the chain walker decrements.
	Incoming      []*Node
	IncomingCount int

	// Outgoing is mutable: the two-pass transform rewrites it for nodes
	// inside a cyclic SCC.
	Outgoing []*Node

	// WalkedIncomingCount counts how many of Incoming have committed having
	// themselves been walked-with-dependencies (spec §4.G step 3). Compared
	// against len(Incoming) to decide cache-store eligibility.
	WalkedIncomingCount     int
	WalkedWithDependencies  bool
	HasMissingDependencies  bool

	// Tarjan bookkeeping, retained post-build for inspection/tests.
	TarjanIndex int
	LoopNumber  int

	Pass       Pass
	FirstPass  *Node // set on a second-pass node: its first-pass mirror.
	SecondPass *Node // set on a first-pass node in a cyclic SCC: its mirror.

	// lowlink and onStack are scratch state for tarjan's algorithm; they
	// have no meaning once Build returns.
	lowlink int
	onStack bool

	sealed bool
}

// Sealed reports whether the walk planner has finished building this node's
// edges (spec §4.E step 5, "seal every walking vertex").
func (n *Node) Sealed() bool { return n.sealed }

// AllDependenciesWalkedWithDependencies reports whether every incoming
// neighbor committed as walked-with-dependencies — the gate the session
// worker checks before it is allowed to store this module's analysis in the
// cache service and downgrade its AST (spec §4.G step 3).
func (n *Node) AllDependenciesWalkedWithDependencies() bool {
	return n.WalkedIncomingCount == len(n.Incoming)
}
