package nodes

import (
	"context"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/pipegrid/internal/node"
)

// Collect is a terminal sink gathering every pushed item into a shared
// datastructure readable after the run.
type Collect struct {
	*node.Node

	resultKey string
	items     []cty.Value
}

// ResultKey returns the shared datastructure name a collect instance
// publishes under.
func ResultKey(instance string) string {
	return "result." + instance
}

// NewCollect builds a collecting sink. No parameters.
func NewCollect(cfg Config) (node.Carrier, error) {
	c := &Collect{Node: node.New(), resultKey: ResultKey(cfg.Name)}
	c.Bind(c)
	c.SetName(cfg.Name, node.PriorityUser)
	c.RegisterDatastructureUsage(c.resultKey, 1)
	return c, nil
}

// Propagate sizes the step budget from the announced item count.
func (c *Collect) Propagate(ctx context.Context) error {
	if !c.CanFetch("n_items") {
		return nil
	}
	n, err := node.FetchAs[int64](c.Node, "n_items")
	if err != nil {
		return err
	}
	c.SetSteps(uint64(n))
	return nil
}

// PushItem gathers one item.
func (c *Collect) PushItem(ctx context.Context, v cty.Value) error {
	c.items = append(c.items, v)
	c.Step(1)
	return nil
}

// End publishes the gathered items.
func (c *Collect) End(ctx context.Context) error {
	return c.SetDatastructure(c.resultKey, c.items)
}
