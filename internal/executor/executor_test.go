package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/pipegrid/internal/node"
	"github.com/vk/pipegrid/internal/phase"
	"github.com/vk/pipegrid/internal/progress"
	"github.com/vk/pipegrid/internal/testutil"
)

func plan(t *testing.T, n *node.Node) *phase.Plan {
	t.Helper()
	p, err := phase.Compute(testutil.Context(), n.Map())
	require.NoError(t, err)
	return p
}

func TestLinearPushPipeline(t *testing.T) {
	rec := &testutil.Recorder{}
	a := testutil.NewScriptedNode(rec, "a")
	b := testutil.NewScriptedNode(rec, "b")
	c := testutil.NewScriptedNode(rec, "c")
	a.Initiator = true
	require.NoError(t, a.AddPushDestination(b.Node))
	require.NoError(t, b.AddPushDestination(c.Node))

	exec := New(a.Map(), plan(t, a.Node), 90, nil)
	require.NoError(t, exec.Run(testutil.Context()))

	assert.Equal(t, []string{
		"prepare:a", "prepare:b", "prepare:c",
		"propagate:a", "propagate:b", "propagate:c",
		"begin:c", "begin:b", "begin:a",
		"go:a",
		"end:a", "end:b", "end:c",
	}, rec.Events())

	for _, n := range []*testutil.ScriptedNode{a, b, c} {
		assert.Equal(t, node.StateAfterEnd, n.State())
	}
}

func TestBufferedSplitRunsTwoPhases(t *testing.T) {
	rec := &testutil.Recorder{}
	a := testutil.NewScriptedNode(rec, "a")
	b := testutil.NewScriptedNode(rec, "b")
	c := testutil.NewScriptedNode(rec, "c")
	a.Initiator = true
	c.Initiator = true
	b.Evacuable = true
	require.NoError(t, a.AddPushDestination(b.Node))
	require.NoError(t, b.AddBufferedPushDestination(c.Node))

	exec := New(a.Map(), plan(t, a.Node), 90, nil)
	require.NoError(t, exec.Run(testutil.Context()))

	// end(b) strictly precedes begin(c), and b evacuates in between.
	endB := rec.Index("end:b")
	evacB := rec.Index("evacuate:b")
	beginC := rec.Index("begin:c")
	require.NotEqual(t, -1, endB)
	require.NotEqual(t, -1, evacB)
	require.NotEqual(t, -1, beginC)
	assert.Less(t, endB, evacB)
	assert.Less(t, evacB, beginC)
}

func TestMemoryAssignmentFiresBeforePropagate(t *testing.T) {
	rec := &testutil.Recorder{}
	a := testutil.NewScriptedNode(rec, "a")
	b := testutil.NewScriptedNode(rec, "b")
	a.Initiator = true
	require.NoError(t, a.AddPushDestination(b.Node))

	a.SetMinimumMemory(1)
	a.SetMaximumMemory(10)
	a.SetMemoryFraction(1)
	b.SetMinimumMemory(1)
	b.SetMaximumMemory(10)
	b.SetMemoryFraction(3)

	var seenA, seenB uint64
	a.OnPropagate = func(ctx context.Context) error {
		seenA = a.AvailableMemory()
		return nil
	}
	b.OnPropagate = func(ctx context.Context) error {
		seenB = b.AvailableMemory()
		return nil
	}

	exec := New(a.Map(), plan(t, a.Node), 8, nil)
	require.NoError(t, exec.Run(testutil.Context()))

	assert.Equal(t, uint64(2), seenA)
	assert.Equal(t, uint64(6), seenB)
}

func TestInsufficientMemoryFailsPhase(t *testing.T) {
	rec := &testutil.Recorder{}
	a := testutil.NewScriptedNode(rec, "a")
	a.Initiator = true
	a.SetMinimumMemory(100)

	exec := New(a.Map(), plan(t, a.Node), 8, nil)
	err := exec.Run(testutil.Context())
	assert.Error(t, err)
	assert.NotContains(t, rec.Events(), "begin:a")
}

func TestForwardOverride(t *testing.T) {
	rec := &testutil.Recorder{}
	a := testutil.NewScriptedNode(rec, "a")
	b := testutil.NewScriptedNode(rec, "b")
	c := testutil.NewScriptedNode(rec, "c")
	a.Initiator = true
	require.NoError(t, a.AddPushDestination(b.Node))
	require.NoError(t, b.AddPushDestination(c.Node))

	a.OnPropagate = func(ctx context.Context) error {
		a.Forward("n_items", cty.NumberIntVal(100))
		return nil
	}
	b.OnPropagate = func(ctx context.Context) error {
		b.ForwardImplicit("n_items", cty.NumberIntVal(50))
		return nil
	}
	var got int64
	c.OnBegin = func(ctx context.Context) error {
		v, err := node.FetchAs[int64](c.Node, "n_items")
		got = v
		return err
	}

	exec := New(a.Map(), plan(t, a.Node), 90, nil)
	require.NoError(t, exec.Run(testutil.Context()))
	assert.Equal(t, int64(100), got)
}

func TestForwardCrossesBufferedEdge(t *testing.T) {
	rec := &testutil.Recorder{}
	a := testutil.NewScriptedNode(rec, "a")
	b := testutil.NewScriptedNode(rec, "b")
	a.Initiator = true
	b.Initiator = true
	require.NoError(t, a.AddBufferedPushDestination(b.Node))

	a.OnPropagate = func(ctx context.Context) error {
		a.Forward("n_items", cty.NumberIntVal(7))
		return nil
	}
	var got int64
	b.OnPropagate = func(ctx context.Context) error {
		v, err := node.FetchAs[int64](b.Node, "n_items")
		got = v
		return err
	}

	exec := New(a.Map(), plan(t, a.Node), 90, nil)
	require.NoError(t, exec.Run(testutil.Context()))
	assert.Equal(t, int64(7), got)
}

func TestStepOverflowIsNonFatal(t *testing.T) {
	rec := &testutil.Recorder{}
	a := testutil.NewScriptedNode(rec, "a")
	a.Initiator = true
	a.SetSteps(10)
	a.OnGo = func(ctx context.Context) error {
		a.Step(15)
		return nil
	}

	exec := New(a.Map(), plan(t, a.Node), 90, nil)
	require.NoError(t, exec.Run(testutil.Context()))

	require.Len(t, a.StepOverflows(), 1)
	assert.Equal(t, uint64(0), a.StepsLeft())
	assert.Contains(t, rec.Events(), "end:a")
}

func TestHookErrorUnwindsPhase(t *testing.T) {
	rec := &testutil.Recorder{}
	a := testutil.NewScriptedNode(rec, "a")
	b := testutil.NewScriptedNode(rec, "b")
	a.Initiator = true
	require.NoError(t, a.AddPushDestination(b.Node))

	boom := errors.New("disk full")
	b.OnBegin = func(ctx context.Context) error { return boom }

	exec := New(a.Map(), plan(t, a.Node), 90, nil)
	err := exec.Run(testutil.Context())
	assert.ErrorIs(t, err, boom)
	assert.NotContains(t, rec.Events(), "go:a")
	assert.NotContains(t, rec.Events(), "end:a")
}

// countingIndicator tallies the phase indicator calls.
type countingIndicator struct {
	inited  uint64
	stepped uint64
	done    int
}

func (c *countingIndicator) Init(total uint64) { c.inited = total }
func (c *countingIndicator) Step(k uint64)     { c.stepped += k }
func (c *countingIndicator) Refresh()          {}
func (c *countingIndicator) Done()             { c.done++ }

func TestProgressIndicatorLifecycle(t *testing.T) {
	rec := &testutil.Recorder{}
	a := testutil.NewScriptedNode(rec, "a")
	b := testutil.NewScriptedNode(rec, "b")
	a.Initiator = true
	require.NoError(t, a.AddPushDestination(b.Node))
	a.SetSteps(5)
	b.SetSteps(3)
	a.OnGo = func(ctx context.Context) error {
		a.Step(5)
		b.Step(3)
		return nil
	}

	pi := &countingIndicator{}
	exec := New(a.Map(), plan(t, a.Node), 90, func(string) progress.Indicator {
		return pi
	})
	require.NoError(t, exec.Run(testutil.Context()))

	// Initialized with the summed declared budget, stepped through the
	// nodes, closed once.
	assert.Equal(t, uint64(8), pi.inited)
	assert.Equal(t, uint64(8), pi.stepped)
	assert.Equal(t, 1, pi.done)
}

func TestNodesReleasedAfterPhase(t *testing.T) {
	rec := &testutil.Recorder{}
	a := testutil.NewScriptedNode(rec, "a")
	a.Initiator = true
	m := a.Map()
	id := a.ID()

	exec := New(m, plan(t, a.Node), 90, nil)
	require.NoError(t, exec.Run(testutil.Context()))

	_, ok := m.Get(id)
	assert.False(t, ok)
}
