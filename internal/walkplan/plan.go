// Package walkplan builds, for one changed set, the walking graph of
// affected dependency-graph vertices, assigns Tarjan SCC loop numbers, and
// applies the two-pass loop-breaking transform described in spec §4.E.
package walkplan

import (
	"github.com/Sumatoshi-tech/pyanalyze/internal/depgraph"
	"github.com/Sumatoshi-tech/pyanalyze/internal/modkey"
)

// Plan is the output of Build: every node the session must walk, the
// initially-ready starting set, and any missing dependency keys discovered
// while building the graph.
type Plan struct {
	// Version is the graph version the snapshot was taken at; a session
	// built from this plan is superseded once the graph moves past it.
	Version int64

	Nodes       []*Node
	Starting    []*Node
	MissingKeys []modkey.Key
	TotalNodes  int
}

// Build constructs the walking graph reachable from changedKeys, runs
// Tarjan SCC discovery, and applies two-pass loop breaking to every SCC of
// size ≥ 2.
func Build(snapshot *depgraph.Snapshot, changedKeys []modkey.Key) *Plan {
	seeds := snapshot.ChangedVertices(changedKeys)

	order := collectReachable(snapshot, seeds)
	wireEdges(order)

	tarjan(order)

	firstPassNodes, secondPassNodes := breakLoops(order)
	allNodes := append(firstPassNodes, secondPassNodes...)

	missing := collectMissingKeys(snapshot, firstPassNodes)

	starting := make([]*Node, 0)

	for _, n := range allNodes {
		n.sealed = true

		if n.IncomingCount == 0 {
			starting = append(starting, n)
		}
	}

	return &Plan{
		Version:     snapshot.Version,
		Nodes:       allNodes,
		Starting:    starting,
		MissingKeys: missing,
		TotalNodes:  len(allNodes),
	}
}

// collectReachable performs a BFS forward through each seed vertex's
// Outgoing edges, materializing exactly one Node per reachable dependency
// vertex, in discovery order (seeds first, each in the order given).
func collectReachable(snapshot *depgraph.Snapshot, seeds []*depgraph.Vertex) []*Node {
	byIndex := make(map[int]*Node)
	order := make([]*Node, 0, len(seeds))

	newNode := func(v *depgraph.Vertex) *Node {
		return &Node{
			Dep:                    v,
			Key:                    v.Key,
			LoopNumber:             LoopNumberUnset,
			HasMissingDependencies: v.HasMissingKeys,
		}
	}

	var queue []*depgraph.Vertex

	for _, v := range seeds {
		if _, ok := byIndex[v.Index]; ok {
			continue
		}

		n := newNode(v)
		byIndex[v.Index] = n
		order = append(order, n)
		queue = append(queue, v)
	}

	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]

		for _, outIdx := range v.Outgoing {
			if _, ok := byIndex[outIdx]; ok {
				continue
			}

			target := snapshot.Vertices[outIdx]

			n := newNode(target)
			byIndex[outIdx] = n
			order = append(order, n)
			queue = append(queue, target)
		}
	}

	return order
}

// wireEdges populates each node's fixed Incoming list and mutable Outgoing
// list, restricted to edges whose both endpoints are in the walking graph.
// Outgoing[v] ⊆ visited always holds by construction (collectReachable
// enqueues every outgoing target); Incoming[v] is filtered since a node's
// dependency is only part of the walking graph when reached via another
// path (a diamond convergence or a cycle back to it).
func wireEdges(order []*Node) {
	byIndex := make(map[int]*Node, len(order))
	for _, n := range order {
		byIndex[n.Dep.Index] = n
	}

	for _, n := range order {
		for _, outIdx := range n.Dep.Outgoing {
			if target, ok := byIndex[outIdx]; ok {
				n.Outgoing = append(n.Outgoing, target)
			}
		}

		for _, inIdx := range n.Dep.Incoming {
			if source, ok := byIndex[inIdx]; ok {
				n.Incoming = append(n.Incoming, source)
			}
		}

		n.IncomingCount = len(n.Incoming)
	}
}

// collectMissingKeys gathers the declared-but-absent dependency keys across
// every first-pass node with HasMissingDependencies set, by re-checking each
// declared key against the snapshot that produced this walking graph.
func collectMissingKeys(snapshot *depgraph.Snapshot, firstPassNodes []*Node) []modkey.Key {
	seen := make(map[modkey.Key]bool)

	var out []modkey.Key

	for _, n := range firstPassNodes {
		if !n.HasMissingDependencies {
			continue
		}

		for _, k := range n.Dep.IncomingKeys {
			if _, ok := snapshot.Lookup(k); ok {
				continue
			}

			if !seen[k] {
				seen[k] = true

				out = append(out, k)
			}
		}
	}

	return out
}
