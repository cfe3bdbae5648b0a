package nodes

import (
	"context"
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/pipegrid/internal/node"
)

// Generator is an initiator that pushes the integers [0, count).
type Generator struct {
	*node.Node

	count   int64
	targets []ItemPusher
}

// NewGenerator builds a generator from its parameter object. Parameters:
// count (number, required).
func NewGenerator(cfg Config) (node.Carrier, error) {
	count, ok, err := intParam(cfg.Params, "count")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("generator %q: parameter %q is required", cfg.Name, "count")
	}
	if count < 0 {
		return nil, fmt.Errorf("generator %q: count cannot be negative, got %d", cfg.Name, count)
	}

	g := &Generator{Node: node.New(), count: count}
	g.Bind(g)
	g.SetName(cfg.Name, node.PriorityUser)
	g.SetSteps(uint64(count))
	// A generator holds no working set.
	g.SetMemoryFraction(0)
	g.SetMaximumMemory(0)
	return g, nil
}

// Propagate announces the item count to everything downstream.
func (g *Generator) Propagate(ctx context.Context) error {
	return node.ForwardAs(g.Node, "n_items", g.count)
}

// Begin resolves the push destinations.
func (g *Generator) Begin(ctx context.Context) error {
	targets, err := pushTargets(g.Node)
	if err != nil {
		return err
	}
	g.targets = targets
	return nil
}

// Go pushes all items.
func (g *Generator) Go(ctx context.Context) error {
	for i := int64(0); i < g.count; i++ {
		if err := pushAll(ctx, g.targets, cty.NumberIntVal(i)); err != nil {
			return err
		}
		g.Step(1)
	}
	return nil
}
