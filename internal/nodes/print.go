package nodes

import (
	"context"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/pipegrid/internal/ctxlog"
	"github.com/vk/pipegrid/internal/node"
)

// Print logs every item flowing through it and passes it on unchanged.
type Print struct {
	*node.Node

	targets []ItemPusher
}

// NewPrint builds a logging pass-through. No parameters.
func NewPrint(cfg Config) (node.Carrier, error) {
	p := &Print{Node: node.New()}
	p.Bind(p)
	p.SetName(cfg.Name, node.PriorityUser)
	p.SetMemoryFraction(0)
	p.SetMaximumMemory(0)
	return p, nil
}

// Begin resolves the push destinations.
func (p *Print) Begin(ctx context.Context) error {
	targets, err := pushTargets(p.Node)
	if err != nil {
		return err
	}
	p.targets = targets
	return nil
}

// PushItem logs one item and forwards it.
func (p *Print) PushItem(ctx context.Context, v cty.Value) error {
	ctxlog.FromContext(ctx).Info("item", "value", v.GoString())
	return pushAll(ctx, p.targets, v)
}
