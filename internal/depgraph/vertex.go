package depgraph

import "github.com/Sumatoshi-tech/pyanalyze/internal/modkey"

// Vertex is an immutable, sealed-once-snapshotted node in the dependency
// graph. Per spec §3 a vertex can be replaced by a new instance at the same
// stable index; readers always hold a reference to one generation and never
// observe a torn mix of old/new fields.
type Vertex struct {
	// Index is stable for the lifetime of the key in the graph, until a
	// Remove triggers reindexing of the remaining vertices.
	Index int
	Key   modkey.Key
	Value Value

	// IncomingKeys is the declared dependency set this vertex's module
	// imports, as produced by the import extractor.
	IncomingKeys []modkey.Key

	// Incoming/Outgoing are resolved index lists, populated by Snapshot.
	// Unsealed vertices (created by AddOrUpdate but not yet snapshotted)
	// have both nil.
	Incoming []int
	Outgoing []int

	// HasMissingKeys is set when one of IncomingKeys has no corresponding
	// vertex in the graph as of the snapshot that sealed this vertex.
	HasMissingKeys bool

	// Version is the graph version at which this vertex was last changed
	// (created or updated by AddOrUpdate).
	Version int64

	sealed bool
}

// Value is the opaque per-vertex payload the graph carries on behalf of
// callers (the analyzer entry, in this scheduler). It is declared as an
// interface so depgraph has no compile-time dependency on package entry.
type Value interface{}

// Sealed reports whether Incoming/Outgoing/HasMissingKeys reflect the most
// recent Snapshot.
func (v *Vertex) Sealed() bool {
	return v != nil && v.sealed
}

// withResolvedEdges returns a sealed copy of v with the given resolved
// edges, leaving the original untouched (vertices are immutable once
// published into the arena).
func (v *Vertex) withResolvedEdges(incoming, outgoing []int, hasMissing bool) *Vertex {
	cp := *v
	cp.Incoming = incoming
	cp.Outgoing = outgoing
	cp.HasMissingKeys = hasMissing
	cp.sealed = true

	return &cp
}

// withIndex returns a copy of v addressed at a new stable index, used when
// Remove compacts the index space.
func (v *Vertex) withIndex(idx int) *Vertex {
	cp := *v
	cp.Index = idx

	return &cp
}
