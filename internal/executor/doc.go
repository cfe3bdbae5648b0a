// Package executor drives a planned pipeline through the lifecycle state
// machine, one phase at a time.
//
// Per phase: prepare in item-flow topological order, memory assignment,
// propagate (with metadata forwarding) in item-flow order, begin in
// reverse item-flow order, go on the phase initiator, end in item-flow
// order, then evacuation of buffering producers. Phases execute strictly
// sequentially on the calling goroutine; push and pull between concrete
// nodes are synchronous calls on the same stack.
//
// Any hook error is fatal to the phase and unwinds with one wrapped
// diagnostic. Step-budget overflows are the exception: they are recorded
// on the node, logged after the phase, and execution continues.
package executor
