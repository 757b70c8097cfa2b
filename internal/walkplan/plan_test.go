package walkplan_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/pyanalyze/internal/depgraph"
	"github.com/Sumatoshi-tech/pyanalyze/internal/modkey"
	"github.com/Sumatoshi-tech/pyanalyze/internal/walkplan"
)

func key(name string) modkey.Key {
	return modkey.New(name, name+".py", false)
}

func nodeFor(plan *walkplan.Plan, k modkey.Key) *walkplan.Node {
	for _, n := range plan.Nodes {
		if n.Key == k && n.Pass != walkplan.PassSecond {
			return n
		}
	}

	return nil
}

// commitOrder drains the plan the way the chain walker would: repeatedly
// pick any ready node (IncomingCount == 0, not yet committed), commit it,
// and decrement its successors. With a true topological structure the
// result is deterministic modulo ties, which these fixtures avoid by
// construction.
func commitOrder(t *testing.T, plan *walkplan.Plan) []modkey.Key {
	t.Helper()

	ready := append([]*walkplan.Node(nil), plan.Starting...)
	committed := make(map[*walkplan.Node]bool)

	var order []modkey.Key

	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]

		require.False(t, committed[n], "double commit of %s", n.Key)
		committed[n] = true
		order = append(order, n.Key)

		for _, succ := range n.Outgoing {
			succ.IncomingCount--
			if succ.IncomingCount == 0 {
				ready = append(ready, succ)
			}
		}
	}

	require.Len(t, committed, plan.TotalNodes, "not every node became ready")

	return order
}

// TestAcyclicChainWalksLeafToRoot covers spec §8 scenario 1: A depends on B,
// B depends on C; C changes. Expected walk order is C, B, A.
func TestAcyclicChainWalksLeafToRoot(t *testing.T) {
	g := depgraph.New()
	g.AddOrUpdate(key("a"), nil, []modkey.Key{key("b")})
	g.AddOrUpdate(key("b"), nil, []modkey.Key{key("c")})
	g.AddOrUpdate(key("c"), nil, nil)

	snap := g.Snapshot()
	plan := walkplan.Build(snap, []modkey.Key{key("c")})

	require.Equal(t, 3, plan.TotalNodes)
	assert.Empty(t, plan.MissingKeys)

	order := commitOrder(t, plan)
	assert.Equal(t, []modkey.Key{key("c"), key("b"), key("a")}, order)

	for _, n := range plan.Nodes {
		assert.Equal(t, walkplan.LoopNumberAcyclic, n.LoopNumber)
		assert.Equal(t, walkplan.PassOnly, n.Pass)
	}
}

// TestCycleWithExternalDependentUsesTwoPasses covers spec §8 scenario 2: A
// and B import each other, C imports A; A changes. The cycle must be walked
// twice (A, B, then A again, B again) before C, the external dependent, is
// allowed to walk.
func TestCycleWithExternalDependentUsesTwoPasses(t *testing.T) {
	g := depgraph.New()
	g.AddOrUpdate(key("a"), nil, []modkey.Key{key("b")})
	g.AddOrUpdate(key("b"), nil, []modkey.Key{key("a")})
	g.AddOrUpdate(key("c"), nil, []modkey.Key{key("a")})

	snap := g.Snapshot()
	plan := walkplan.Build(snap, []modkey.Key{key("a")})

	// a, b walked twice (first + second pass) plus c once.
	require.Equal(t, 5, plan.TotalNodes)

	order := commitOrder(t, plan)
	require.Len(t, order, 5)

	assert.Equal(t, key("a"), order[0])
	assert.Equal(t, key("b"), order[1])
	assert.Equal(t, key("a"), order[2])
	assert.Equal(t, key("b"), order[3])
	assert.Equal(t, key("c"), order[4])

	a := nodeFor(plan, key("a"))
	require.NotNil(t, a)
	assert.Equal(t, walkplan.PassFirst, a.Pass)
	require.NotNil(t, a.SecondPass)
	assert.Equal(t, walkplan.PassSecond, a.SecondPass.Pass)
	assert.NotEqual(t, walkplan.LoopNumberAcyclic, a.LoopNumber)

	b := nodeFor(plan, key("b"))
	require.NotNil(t, b)
	assert.Equal(t, a.LoopNumber, b.LoopNumber)
}

// TestSelfImportDoesNotDeadlock covers the degenerate case of a module that
// depends on itself: the self edge must be stripped so the node can still
// be walked exactly once.
func TestSelfImportDoesNotDeadlock(t *testing.T) {
	g := depgraph.New()
	g.AddOrUpdate(key("a"), nil, []modkey.Key{key("a")})

	snap := g.Snapshot()
	plan := walkplan.Build(snap, []modkey.Key{key("a")})

	require.Equal(t, 1, plan.TotalNodes)
	require.Len(t, plan.Starting, 1)

	order := commitOrder(t, plan)
	assert.Equal(t, []modkey.Key{key("a")}, order)
	assert.Equal(t, walkplan.LoopNumberAcyclic, plan.Nodes[0].LoopNumber)
}

// TestMissingDependencyIsReported covers a changed vertex that declares an
// import with no corresponding vertex in the graph.
func TestMissingDependencyIsReported(t *testing.T) {
	g := depgraph.New()
	g.AddOrUpdate(key("a"), nil, []modkey.Key{key("ghost")})

	snap := g.Snapshot()
	plan := walkplan.Build(snap, []modkey.Key{key("a")})

	require.Len(t, plan.MissingKeys, 1)
	assert.Equal(t, key("ghost"), plan.MissingKeys[0])

	node := nodeFor(plan, key("a"))
	require.NotNil(t, node)
	assert.True(t, node.HasMissingDependencies)
}

// TestPlanIsDeltaMinimal checks that an unrelated vertex with no path to or
// from the changed seed never enters the plan.
func TestPlanIsDeltaMinimal(t *testing.T) {
	g := depgraph.New()
	g.AddOrUpdate(key("a"), nil, []modkey.Key{key("b")})
	g.AddOrUpdate(key("b"), nil, nil)
	g.AddOrUpdate(key("unrelated"), nil, nil)

	snap := g.Snapshot()
	plan := walkplan.Build(snap, []modkey.Key{key("b")})

	require.Equal(t, 2, plan.TotalNodes)
	assert.Nil(t, nodeFor(plan, key("unrelated")))
}
