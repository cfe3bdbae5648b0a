package nodes

import (
	"context"
	"sort"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/pipegrid/internal/node"
)

// Buffer accumulates everything pushed into it, sorts at end of phase,
// and either pushes the sorted run to same-phase destinations or spills
// it into a shared datastructure for a later phase to replay.
type Buffer struct {
	*node.Node

	spillKey string
	items    []cty.Value
	targets  []ItemPusher
}

// SpillKey returns the shared datastructure name a buffer instance
// spills under.
func SpillKey(instance string) string {
	return "spill." + instance
}

// NewBuffer builds a sorting buffer. No parameters.
func NewBuffer(cfg Config) (node.Carrier, error) {
	b := &Buffer{Node: node.New(), spillKey: SpillKey(cfg.Name)}
	b.Bind(b)
	b.SetName(cfg.Name, node.PriorityUser)
	b.SetPlotOptions(node.PlotBuffered)
	b.RegisterDatastructureUsage(b.spillKey, 1)
	return b, nil
}

// Propagate sizes the step budget from the announced item count.
func (b *Buffer) Propagate(ctx context.Context) error {
	if !b.CanFetch("n_items") {
		return nil
	}
	n, err := node.FetchAs[int64](b.Node, "n_items")
	if err != nil {
		return err
	}
	b.SetSteps(uint64(n))
	return nil
}

// Begin resolves same-phase push destinations; a buffer feeding only a
// later phase has none.
func (b *Buffer) Begin(ctx context.Context) error {
	targets, err := pushTargets(b.Node)
	if err != nil {
		return err
	}
	b.targets = targets
	return nil
}

// PushItem accumulates one item.
func (b *Buffer) PushItem(ctx context.Context, v cty.Value) error {
	b.items = append(b.items, v)
	b.Step(1)
	return nil
}

// End sorts the accumulated run and drains it to same-phase targets.
func (b *Buffer) End(ctx context.Context) error {
	sort.SliceStable(b.items, func(i, j int) bool {
		return b.items[i].AsBigFloat().Cmp(b.items[j].AsBigFloat()) < 0
	})
	for _, v := range b.items {
		if err := pushAll(ctx, b.targets, v); err != nil {
			return err
		}
	}
	return nil
}

// CanEvacuate reports that the sorted run can be spilled.
func (b *Buffer) CanEvacuate() bool {
	return true
}

// Evacuate moves the sorted run into the shared datastructure and drops
// the in-memory copy.
func (b *Buffer) Evacuate(ctx context.Context) error {
	if err := b.SetDatastructure(b.spillKey, b.items); err != nil {
		return err
	}
	b.items = nil
	return nil
}
