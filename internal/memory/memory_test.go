package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/pipegrid/internal/testutil"
)

func TestAssignProportionalSplit(t *testing.T) {
	consumers := []Consumer{
		{Kind: KindNode, ID: 1, Min: 1, Max: 10, Weight: 1},
		{Kind: KindNode, ID: 2, Min: 1, Max: 10, Weight: 3},
	}

	grants, err := Assign(testutil.Context(), consumers, 8)
	require.NoError(t, err)
	assert.Equal(t, []uint64{2, 6}, grants)
}

func TestAssignClampsAtMax(t *testing.T) {
	consumers := []Consumer{
		{Kind: KindNode, ID: 1, Min: 1, Max: 10, Weight: 1},
		{Kind: KindNode, ID: 2, Min: 1, Max: 10, Weight: 3},
	}

	grants, err := Assign(testutil.Context(), consumers, 100)
	require.NoError(t, err)
	assert.Equal(t, []uint64{10, 10}, grants)
}

func TestAssignExactMinimum(t *testing.T) {
	consumers := []Consumer{
		{Kind: KindNode, ID: 1, Min: 5, Max: 50, Weight: 1},
		{Kind: KindNode, ID: 2, Min: 3, Max: 30, Weight: 2},
	}

	grants, err := Assign(testutil.Context(), consumers, 8)
	require.NoError(t, err)
	assert.Equal(t, []uint64{5, 3}, grants)
}

func TestAssignInsufficientMemory(t *testing.T) {
	consumers := []Consumer{
		{Kind: KindNode, ID: 1, Min: 6, Max: 10, Weight: 1},
		{Kind: KindNode, ID: 2, Min: 3, Max: 10, Weight: 1},
	}

	_, err := Assign(testutil.Context(), consumers, 8)
	assert.ErrorIs(t, err, ErrInsufficientMemory)
}

func TestAssignZeroConsumerSkipped(t *testing.T) {
	consumers := []Consumer{
		{Kind: KindNode, ID: 1, Min: 0, Max: 0, Weight: 0},
		{Kind: KindNode, ID: 2, Min: 1, Max: 100, Weight: 1},
	}

	grants, err := Assign(testutil.Context(), consumers, 50)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), grants[0])
	assert.Equal(t, uint64(50), grants[1])
}

func TestAssignRespectsBoundsAndBudget(t *testing.T) {
	consumers := []Consumer{
		{Kind: KindNode, ID: 1, Min: 10, Max: 40, Weight: 2},
		{Kind: KindNode, ID: 2, Min: 5, Max: 25, Weight: 1},
		{Kind: KindDatastructure, Name: "table", Min: 20, Max: 200, Weight: 4},
	}
	budget := uint64(120)

	grants, err := Assign(testutil.Context(), consumers, budget)
	require.NoError(t, err)

	var total uint64
	for i, g := range grants {
		assert.GreaterOrEqual(t, g, consumers[i].Min, "consumer %d below min", i)
		assert.LessOrEqual(t, g, consumers[i].Max, "consumer %d above max", i)
		total += g
	}
	assert.LessOrEqual(t, total, budget)
}

func TestAssignRedistributesClampedExcess(t *testing.T) {
	// The heavy consumer clamps early; its excess flows to the others.
	consumers := []Consumer{
		{Kind: KindNode, ID: 1, Min: 0, Max: 5, Weight: 10},
		{Kind: KindNode, ID: 2, Min: 0, Max: 100, Weight: 1},
	}

	grants, err := Assign(testutil.Context(), consumers, 60)
	require.NoError(t, err)
	assert.Equal(t, []uint64{5, 55}, grants)
}

func TestAssignDeterministic(t *testing.T) {
	consumers := []Consumer{
		{Kind: KindNode, ID: 3, Min: 0, Max: 100, Weight: 1},
		{Kind: KindNode, ID: 1, Min: 0, Max: 100, Weight: 1},
		{Kind: KindNode, ID: 2, Min: 0, Max: 100, Weight: 1},
	}

	first, err := Assign(testutil.Context(), consumers, 100)
	require.NoError(t, err)
	second, err := Assign(testutil.Context(), consumers, 100)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// 100 over three equal weights: the leftover unit lands on the
	// lowest id.
	byID := map[uint64]uint64{1: 0, 2: 0, 3: 0}
	for i, c := range consumers {
		byID[uint64(c.ID)] = first[i]
	}
	assert.Equal(t, uint64(34), byID[1])
	assert.Equal(t, uint64(33), byID[2])
	assert.Equal(t, uint64(33), byID[3])
}

func TestAssignInvalidBounds(t *testing.T) {
	consumers := []Consumer{
		{Kind: KindNode, ID: 1, Min: 10, Max: 5, Weight: 1},
	}
	_, err := Assign(testutil.Context(), consumers, 100)
	assert.ErrorContains(t, err, "below min")
}
