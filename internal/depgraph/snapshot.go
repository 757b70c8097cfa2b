package depgraph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Sumatoshi-tech/pyanalyze/internal/modkey"
)

// Snapshot is an immutable view of the dependency graph at a specific
// version, with every vertex sealed and edges resolved.
type Snapshot struct {
	Version     int64
	Vertices    []*Vertex
	MissingKeys []modkey.Key

	keyToIndex map[modkey.Key]int
}

// Lookup returns the sealed vertex for key in this snapshot.
func (s *Snapshot) Lookup(key modkey.Key) (*Vertex, bool) {
	idx, ok := s.keyToIndex[key]
	if !ok {
		return nil, false
	}

	return s.Vertices[idx], true
}

// ChangedVertices resolves the graph's "changed since last session" key set
// against this snapshot, returning the vertices that still exist. Keys that
// were changed and then removed before this snapshot was taken are silently
// dropped — the caller only cares about vertices it could still walk.
func (s *Snapshot) ChangedVertices(changedKeys []modkey.Key) []*Vertex {
	out := make([]*Vertex, 0, len(changedKeys))

	for _, k := range changedKeys {
		if v, ok := s.Lookup(k); ok {
			out = append(out, v)
		}
	}

	return out
}

// Serialize renders the snapshot as a Graphviz digraph, edges sorted by
// source then destination index for deterministic output. Grounded on
// toposort.Graph.Serialize's own "quoted index-prefixed name" node labels.
func (s *Snapshot) Serialize() string {
	var buf strings.Builder

	buf.WriteString("digraph pyanalyze {\n")

	names := make([]string, len(s.Vertices))
	for _, v := range s.Vertices {
		names[v.Index] = v.Key.Name
	}

	type edge struct{ from, to int }

	var edges []edge

	for _, v := range s.Vertices {
		for _, dst := range v.Outgoing {
			edges = append(edges, edge{from: v.Index, to: dst})
		}
	}

	sort.Slice(edges, func(i, j int) bool {
		if edges[i].from != edges[j].from {
			return edges[i].from < edges[j].from
		}

		return edges[i].to < edges[j].to
	})

	for _, e := range edges {
		fmt.Fprintf(&buf, "  %q -> %q\n", nodeLabel(e.from, names), nodeLabel(e.to, names))
	}

	buf.WriteString("}\n")

	return buf.String()
}

func nodeLabel(index int, names []string) string {
	return fmt.Sprintf("%d %s", index, names[index])
}
