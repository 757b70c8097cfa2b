// Package depgraph implements the versioned dependency graph of spec §4.D:
// a key→vertex map plus an index-ordered arena, mutated under a single lock
// and exposing an idempotent Snapshot that resolves edges and accumulates
// missing keys.
//
// The "mutable vertex replaces itself" idiom from the original is modeled
// per spec §9: vertices are immutable records addressed by a stable index,
// held in an arena; writers allocate a new record and swap the arena slot
// under the graph mutex, readers always see one complete generation.
package depgraph

import (
	"sort"
	"sync"

	"github.com/Sumatoshi-tech/pyanalyze/internal/modkey"
)

// Graph is the versioned dependency DAG. The zero value is not usable; use
// New.
type Graph struct {
	mu sync.Mutex

	keyToIndex map[modkey.Key]int
	arena      []*Vertex // arena[i] is nil for a removed/unused slot

	version int64

	// changed tracks vertices added/updated since the last call to
	// ForgetChanged for that key, i.e. "changed since last session"
	// (spec §4.E, §4.F).
	changed map[modkey.Key]bool

	snapshotVersion int64
	snapshotCached  *Snapshot
}

// New creates an empty dependency graph.
func New() *Graph {
	return &Graph{
		keyToIndex: make(map[modkey.Key]int),
		changed:    make(map[modkey.Key]bool),
	}
}

// Version returns the current graph version without taking a snapshot.
func (g *Graph) Version() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.version
}

// Lookup returns the vertex for key as of the last mutation (not
// necessarily sealed). Returns nil, false if key is not present.
func (g *Graph) Lookup(key modkey.Key) (*Vertex, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	idx, ok := g.keyToIndex[key]
	if !ok {
		return nil, false
	}

	return g.arena[idx], true
}

// AddOrUpdate creates a new vertex at a fresh index, or replaces the
// existing vertex for key, and bumps the graph version by one. Outgoing
// edges of other vertices referencing key are left stale until the next
// Snapshot, per spec §4.D.
func (g *Graph) AddOrUpdate(key modkey.Key, value Value, incomingKeys []modkey.Key) *Vertex {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.version++

	keysCopy := append([]modkey.Key(nil), incomingKeys...)

	idx, exists := g.keyToIndex[key]
	if !exists {
		idx = len(g.arena)
		g.arena = append(g.arena, nil)
		g.keyToIndex[key] = idx
	}

	v := &Vertex{
		Index:        idx,
		Key:          key,
		Value:        value,
		IncomingKeys: keysCopy,
		Version:      g.version,
	}
	g.arena[idx] = v

	g.changed[key] = true
	g.invalidateSnapshotLocked()

	return v
}

// Remove drops the vertices for keys and reindexes the remaining vertices
// into a compact [0, n) range. Version bumps by one regardless of how many
// keys were actually present.
func (g *Graph) Remove(keys []modkey.Key) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.version++

	for _, k := range keys {
		idx, ok := g.keyToIndex[k]
		if !ok {
			continue
		}

		g.arena[idx] = nil
		delete(g.keyToIndex, k)
		delete(g.changed, k)
	}

	g.reindexLocked()
	g.invalidateSnapshotLocked()
}

// reindexLocked compacts the arena, dropping nil slots and reassigning
// stable indices to the survivors in their previous relative order.
func (g *Graph) reindexLocked() {
	newArena := make([]*Vertex, 0, len(g.arena))

	for _, v := range g.arena {
		if v == nil {
			continue
		}

		newArena = append(newArena, v.withIndex(len(newArena)))
	}

	g.arena = newArena

	for i, v := range g.arena {
		g.keyToIndex[v.Key] = i
	}
}

// ForgetChanged drops key from the "changed since last session" set. The
// analyzer facade calls this for each changed key when it starts a session
// from those keys; the chain walker's Commit and Skip do not call it.
func (g *Graph) ForgetChanged(key modkey.Key) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.changed, key)
}

// ChangedKeys returns the keys marked changed since the last ForgetChanged
// call for each, in no particular order.
func (g *Graph) ChangedKeys() []modkey.Key {
	g.mu.Lock()
	defer g.mu.Unlock()

	keys := make([]modkey.Key, 0, len(g.changed))
	for k, isChanged := range g.changed {
		if isChanged {
			keys = append(keys, k)
		}
	}

	return keys
}

func (g *Graph) invalidateSnapshotLocked() {
	g.snapshotCached = nil
}

// Snapshot returns an immutable view of the graph: the current version,
// every vertex sealed with resolved Incoming/Outgoing edges, and the set of
// keys referenced by some vertex's IncomingKeys but absent from the graph.
//
// Snapshot is idempotent: repeated calls with no intervening mutation
// return the same cached result.
func (g *Graph) Snapshot() *Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.snapshotCached != nil && g.snapshotVersion == g.version {
		return g.snapshotCached
	}

	n := len(g.arena)
	incoming := make([][]int, n)
	outgoing := make([][]int, n)
	hasMissing := make([]bool, n)
	missingSet := make(map[modkey.Key]bool)

	for _, v := range g.arena {
		if v == nil {
			continue
		}

		for _, depKey := range v.IncomingKeys {
			srcIdx, ok := g.keyToIndex[depKey]
			if !ok {
				missingSet[depKey] = true
				hasMissing[v.Index] = true

				continue
			}

			incoming[v.Index] = append(incoming[v.Index], srcIdx)
			outgoing[srcIdx] = append(outgoing[srcIdx], v.Index)
		}
	}

	for _, adj := range [][][]int{incoming, outgoing} {
		for i := range adj {
			sort.Ints(adj[i])
		}
	}

	vertices := make([]*Vertex, n)
	for _, v := range g.arena {
		if v == nil {
			continue
		}

		vertices[v.Index] = v.withResolvedEdges(incoming[v.Index], outgoing[v.Index], hasMissing[v.Index])
		g.arena[v.Index] = vertices[v.Index]
	}

	missing := make([]modkey.Key, 0, len(missingSet))
	for k := range missingSet {
		missing = append(missing, k)
	}

	keyToIndexCopy := make(map[modkey.Key]int, len(g.keyToIndex))
	for k, v := range g.keyToIndex {
		keyToIndexCopy[k] = v
	}

	snap := &Snapshot{
		Version:     g.version,
		Vertices:    vertices,
		MissingKeys: missing,
		keyToIndex:  keyToIndexCopy,
	}

	g.snapshotCached = snap
	g.snapshotVersion = g.version

	return snap
}
