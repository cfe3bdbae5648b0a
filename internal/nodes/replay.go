package nodes

import (
	"context"
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/pipegrid/internal/node"
	"github.com/vk/pipegrid/internal/token"
)

// Replay is an initiator that reads a spilled run from a shared
// datastructure and pushes it downstream. It pairs with Buffer across a
// phase boundary.
type Replay struct {
	*node.Node

	spillKey string
	targets  []ItemPusher
}

// NewReplay builds a replay source. Parameters: from (string, required):
// the buffer instance whose spill to replay.
func NewReplay(cfg Config) (node.Carrier, error) {
	from, ok, err := stringParam(cfg.Params, "from")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("replay %q: parameter %q is required", cfg.Name, "from")
	}

	r := &Replay{Node: node.New(), spillKey: SpillKey(from)}
	r.Bind(r)
	r.SetName(cfg.Name, node.PriorityUser)
	r.RegisterDatastructureUsage(r.spillKey, 1)
	r.SetMemoryFraction(0)
	r.SetMaximumMemory(0)
	return r, nil
}

// Propagate sizes the step budget from the upstream item count when the
// producer announced one.
func (r *Replay) Propagate(ctx context.Context) error {
	if !r.CanFetch("n_items") {
		return nil
	}
	n, err := node.FetchAs[int64](r.Node, "n_items")
	if err != nil {
		return err
	}
	r.SetSteps(uint64(n))
	return nil
}

// Begin resolves the push destinations.
func (r *Replay) Begin(ctx context.Context) error {
	targets, err := pushTargets(r.Node)
	if err != nil {
		return err
	}
	r.targets = targets
	return nil
}

// Go replays the spilled run.
func (r *Replay) Go(ctx context.Context) error {
	items, err := token.DatastructureAs[[]cty.Value](r.Map(), r.spillKey)
	if err != nil {
		return fmt.Errorf("replaying %q: %w", r.spillKey, err)
	}
	for _, v := range items {
		if err := pushAll(ctx, r.targets, v); err != nil {
			return err
		}
		r.Step(1)
	}
	return nil
}
