// Package node defines the base dataflow unit of the pipelining
// framework.
//
// A Node owns a token in a shared NodeMap, declares its relations to
// other nodes (push destinations, pull sources, execution dependencies),
// its memory requests, its progress step budget, and the named
// datastructures it uses. Concrete node kinds embed *Node and override
// the lifecycle hooks they care about; hooks not overridden fall back to
// their defaults.
//
// The lifecycle executor drives every node through a fixed state machine:
//
//	FRESH → IN_PREPARE → AFTER_PREPARE → IN_PROPAGATE → AFTER_PROPAGATE
//	      → IN_BEGIN → AFTER_BEGIN → IN_END → AFTER_END
//
// Transitions are monotonic and single-step; anything else is a lifecycle
// violation and fatal to the phase.
package node
