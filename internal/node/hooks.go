package node

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotInitiatorNode is returned by the default Go hook: only the
// phase's initiator may be driven.
var ErrNotInitiatorNode = errors.New("not an initiator node")

// Hooks is the lifecycle contract concrete node kinds override. Every
// hook has a default on *Node, so an embedding kind implements only what
// it needs.
//
// Prepare runs after depending phases have ended and before memory
// assignment; it may fetch and forward. Propagate runs after memory
// assignment, in item-flow topological order, and may fetch and forward.
// Begin runs in reverse item-flow topological order and may push and
// pull. Go runs on the phase initiator only and pushes all items. End
// runs in item-flow topological order and may push and pull. CanEvacuate
// and Evacuate let a node spill buffered data after its phase ends.
type Hooks interface {
	Prepare(ctx context.Context) error
	Propagate(ctx context.Context) error
	Begin(ctx context.Context) error
	Go(ctx context.Context) error
	End(ctx context.Context) error
	CanEvacuate() bool
	Evacuate(ctx context.Context) error
}

// Dispatch returns the bound hook target: the embedding node kind, or
// this node's defaults if nothing was bound.
func (n *Node) Dispatch() Hooks {
	return n.hooks
}

// Prepare is the default prepare hook. It does nothing.
func (n *Node) Prepare(ctx context.Context) error {
	return nil
}

// Propagate is the default propagate hook. It does nothing.
func (n *Node) Propagate(ctx context.Context) error {
	return nil
}

// Begin is the default begin hook. It does nothing.
func (n *Node) Begin(ctx context.Context) error {
	return nil
}

// Go is the default go hook. Only initiator nodes override it; driving
// any other node is an error.
func (n *Node) Go(ctx context.Context) error {
	return fmt.Errorf("node %d: %w", n.ID(), ErrNotInitiatorNode)
}

// End is the default end hook. It does nothing.
func (n *Node) End(ctx context.Context) error {
	return nil
}

// CanEvacuate reports whether the node has data to spill between phases.
// The default has none.
func (n *Node) CanEvacuate() bool {
	return false
}

// Evacuate is the default evacuate hook. It does nothing.
func (n *Node) Evacuate(ctx context.Context) error {
	return nil
}
