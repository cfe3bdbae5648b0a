package node

import (
	"errors"
	"fmt"
)

// ErrLifecycleViolation is returned when a lifecycle transition or hook
// is attempted out of order. It is fatal to the running phase.
var ErrLifecycleViolation = errors.New("lifecycle violation")

// State tracks the order of lifecycle method calls on a node.
type State int

const (
	StateFresh State = iota
	StateInPrepare
	StateAfterPrepare
	StateInPropagate
	StateAfterPropagate
	StateInBegin
	StateAfterBegin
	StateInEnd
	StateAfterEnd
)

var stateNames = map[State]string{
	StateFresh:          "FRESH",
	StateInPrepare:      "IN_PREPARE",
	StateAfterPrepare:   "AFTER_PREPARE",
	StateInPropagate:    "IN_PROPAGATE",
	StateAfterPropagate: "AFTER_PROPAGATE",
	StateInBegin:        "IN_BEGIN",
	StateAfterBegin:     "AFTER_BEGIN",
	StateInEnd:          "IN_END",
	StateAfterEnd:       "AFTER_END",
}

// String returns the state name used in diagnostics.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// State returns the node's current lifecycle state.
func (n *Node) State() State {
	return n.state
}

// Advance moves the node one step forward in the lifecycle. Only the
// executor advances state; skipping or revisiting a state is a
// lifecycle violation.
func (n *Node) Advance(to State) error {
	if to != n.state+1 {
		return fmt.Errorf("node %d: cannot enter %v from %v: %w",
			n.ID(), to, n.state, ErrLifecycleViolation)
	}
	n.state = to
	return nil
}
