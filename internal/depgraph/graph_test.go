package depgraph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/pyanalyze/internal/depgraph"
	"github.com/Sumatoshi-tech/pyanalyze/internal/modkey"
)

func key(name string) modkey.Key {
	return modkey.New(name, name+".py", false)
}

func TestAddOrUpdateAssignsStableIndices(t *testing.T) {
	g := depgraph.New()

	a := g.AddOrUpdate(key("a"), nil, nil)
	b := g.AddOrUpdate(key("b"), nil, nil)

	assert.Equal(t, 0, a.Index)
	assert.Equal(t, 1, b.Index)
	assert.Equal(t, int64(1), a.Version)
	assert.Equal(t, int64(2), b.Version)
}

func TestSnapshotResolvesSymmetricEdges(t *testing.T) {
	g := depgraph.New()

	g.AddOrUpdate(key("a"), "value-a", []modkey.Key{key("b")})
	g.AddOrUpdate(key("b"), "value-b", nil)

	snap := g.Snapshot()
	require.Len(t, snap.Vertices, 2)

	va, ok := snap.Lookup(key("a"))
	require.True(t, ok)
	vb, ok := snap.Lookup(key("b"))
	require.True(t, ok)

	assert.Equal(t, []int{vb.Index}, va.Incoming)
	assert.Equal(t, []int{va.Index}, vb.Outgoing)
	assert.Empty(t, snap.MissingKeys)
	assert.True(t, va.Sealed())
	assert.Equal(t, "value-a", va.Value)
}

func TestSnapshotRecordsMissingKeys(t *testing.T) {
	g := depgraph.New()

	g.AddOrUpdate(key("x"), nil, []modkey.Key{key("y")})

	snap := g.Snapshot()

	require.Len(t, snap.MissingKeys, 1)
	assert.Equal(t, key("y"), snap.MissingKeys[0])

	vx, ok := snap.Lookup(key("x"))
	require.True(t, ok)
	assert.True(t, vx.HasMissingKeys)
}

func TestSnapshotIsIdempotentUntilMutation(t *testing.T) {
	g := depgraph.New()
	g.AddOrUpdate(key("a"), nil, nil)

	first := g.Snapshot()
	second := g.Snapshot()
	assert.Same(t, first, second)

	g.AddOrUpdate(key("b"), nil, nil)
	third := g.Snapshot()
	assert.NotSame(t, first, third)
}

func TestRemoveReindexesSurvivors(t *testing.T) {
	g := depgraph.New()
	g.AddOrUpdate(key("a"), nil, nil)
	g.AddOrUpdate(key("b"), nil, nil)
	g.AddOrUpdate(key("c"), nil, nil)

	g.Remove([]modkey.Key{key("b")})

	snap := g.Snapshot()
	require.Len(t, snap.Vertices, 2)

	va, ok := snap.Lookup(key("a"))
	require.True(t, ok)
	vc, ok := snap.Lookup(key("c"))
	require.True(t, ok)

	assert.Equal(t, 0, va.Index)
	assert.Equal(t, 1, vc.Index)

	_, ok = snap.Lookup(key("b"))
	assert.False(t, ok)
}

func TestChangedKeysTrackingAndForget(t *testing.T) {
	g := depgraph.New()
	g.AddOrUpdate(key("a"), nil, nil)
	g.AddOrUpdate(key("b"), nil, nil)

	changed := g.ChangedKeys()
	assert.ElementsMatch(t, []modkey.Key{key("a"), key("b")}, changed)

	g.ForgetChanged(key("a"))
	assert.ElementsMatch(t, []modkey.Key{key("b")}, g.ChangedKeys())
}

func TestChangedVerticesDropsRemovedKeys(t *testing.T) {
	g := depgraph.New()
	g.AddOrUpdate(key("a"), nil, nil)
	g.AddOrUpdate(key("b"), nil, nil)
	g.Remove([]modkey.Key{key("b")})

	snap := g.Snapshot()
	vs := snap.ChangedVertices([]modkey.Key{key("a"), key("b")})
	require.Len(t, vs, 1)
	assert.Equal(t, key("a"), vs[0].Key)
}

func TestSnapshotSerializeRendersDigraph(t *testing.T) {
	g := depgraph.New()
	g.AddOrUpdate(key("a"), nil, []modkey.Key{key("b")})
	g.AddOrUpdate(key("b"), nil, nil)

	dot := g.Snapshot().Serialize()

	assert.Contains(t, dot, "digraph pyanalyze {")
	assert.Contains(t, dot, `"1 b" -> "0 a"`)
}
