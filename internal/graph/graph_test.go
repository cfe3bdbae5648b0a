package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/pipegrid/internal/token"
)

func ids(ns ...uint64) []token.ID {
	out := make([]token.ID, len(ns))
	for i, n := range ns {
		out[i] = token.ID(n)
	}
	return out
}

func TestAddEdge(t *testing.T) {
	g := New(ids(1, 2, 3))

	require.NoError(t, g.AddEdge(1, 2))
	require.NoError(t, g.AddEdge(1, 2)) // duplicate collapses
	assert.Equal(t, ids(2), g.Successors(1))
	assert.Equal(t, ids(1), g.Predecessors(2))

	// Endpoints outside the node set are ignored.
	require.NoError(t, g.AddEdge(1, 99))
	assert.Equal(t, ids(2), g.Successors(1))

	err := g.AddEdge(2, 2)
	assert.ErrorContains(t, err, "self-referential")
}

func TestTopoSortDeterministic(t *testing.T) {
	// Diamond: 1 -> {2,3} -> 4; 2 and 3 are simultaneously ready and
	// must order by ascending id.
	g := New(ids(1, 2, 3, 4))
	require.NoError(t, g.AddEdge(1, 2))
	require.NoError(t, g.AddEdge(1, 3))
	require.NoError(t, g.AddEdge(2, 4))
	require.NoError(t, g.AddEdge(3, 4))

	order, err := g.TopoSort()
	require.NoError(t, err)
	assert.Equal(t, ids(1, 2, 3, 4), order)

	// Re-sorting an unchanged graph yields the identical order.
	again, err := g.TopoSort()
	require.NoError(t, err)
	assert.Equal(t, order, again)
}

func TestTopoSortTieBreakByID(t *testing.T) {
	// No edges at all: pure tie-break.
	g := New(ids(7, 3, 5))
	order, err := g.TopoSort()
	require.NoError(t, err)
	assert.Equal(t, ids(3, 5, 7), order)
}

func TestTopoSortCycle(t *testing.T) {
	g := New(ids(1, 2, 3))
	require.NoError(t, g.AddEdge(1, 2))
	require.NoError(t, g.AddEdge(2, 3))
	require.NoError(t, g.AddEdge(3, 1))

	_, err := g.TopoSort()
	assert.ErrorIs(t, err, ErrCycle)
}

func TestSources(t *testing.T) {
	g := New(ids(1, 2, 3))
	require.NoError(t, g.AddEdge(1, 2))
	require.NoError(t, g.AddEdge(1, 3))
	assert.Equal(t, ids(1), g.Sources())
}

func TestProjections(t *testing.T) {
	edges := []token.Edge{
		{From: 1, To: 2, Kind: token.Push},
		{From: 3, To: 2, Kind: token.Pull},      // 3 pulls from 2
		{From: 3, To: 1, Kind: token.DependsOn}, // 3 depends on 1
	}
	nodeSet := ids(1, 2, 3)

	t.Run("actor: caller to callee", func(t *testing.T) {
		g := Actor(edges, nodeSet)
		assert.Equal(t, ids(2), g.Successors(1))
		assert.Equal(t, ids(2), g.Successors(3))
		assert.Empty(t, g.Successors(2))
	})

	t.Run("item-flow: pull edges reverse", func(t *testing.T) {
		g := ItemFlow(edges, nodeSet)
		assert.Equal(t, ids(2), g.Successors(1))
		assert.Equal(t, ids(3), g.Successors(2))
		assert.Empty(t, g.Successors(3))
	})

	t.Run("dependency: producer first", func(t *testing.T) {
		g := Dependency(edges, nodeSet)
		assert.Equal(t, ids(3), g.Successors(1))
		assert.Empty(t, g.Successors(3))
	})
}

func TestProjectionRestrictsToNodeSet(t *testing.T) {
	edges := []token.Edge{
		{From: 1, To: 2, Kind: token.Push},
		{From: 2, To: 9, Kind: token.Push}, // 9 outside the set
	}
	g := ItemFlow(edges, ids(1, 2))
	assert.Equal(t, ids(2), g.Successors(1))
	assert.Empty(t, g.Successors(2))
}
