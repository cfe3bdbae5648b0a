package nodes

import (
	"context"
	"fmt"
	"math/big"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/pipegrid/internal/node"
)

// Scale multiplies numeric items by a constant factor and pushes them on.
type Scale struct {
	*node.Node

	factor  *big.Float
	targets []ItemPusher
}

// NewScale builds a scale transform. Parameters: factor (number,
// default 1).
func NewScale(cfg Config) (node.Carrier, error) {
	factor := big.NewFloat(1)
	if v, ok := param(cfg.Params, "factor"); ok {
		if v.Type() != cty.Number {
			return nil, fmt.Errorf("scale %q: factor must be a number, got %s",
				cfg.Name, v.Type().FriendlyName())
		}
		factor = v.AsBigFloat()
	}

	s := &Scale{Node: node.New(), factor: factor}
	s.Bind(s)
	s.SetName(cfg.Name, node.PriorityUser)
	// Pass-through transform: no working set.
	s.SetMemoryFraction(0)
	s.SetMaximumMemory(0)
	return s, nil
}

// Begin resolves the push destinations.
func (s *Scale) Begin(ctx context.Context) error {
	targets, err := pushTargets(s.Node)
	if err != nil {
		return err
	}
	s.targets = targets
	return nil
}

// PushItem scales one item and pushes the result downstream.
func (s *Scale) PushItem(ctx context.Context, v cty.Value) error {
	if v.Type() != cty.Number {
		return fmt.Errorf("scale: expected a number, got %s", v.Type().FriendlyName())
	}
	scaled := new(big.Float).Mul(v.AsBigFloat(), s.factor)
	return pushAll(ctx, s.targets, cty.NumberVal(scaled))
}
