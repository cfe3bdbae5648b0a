package node

import (
	"slices"
)

// RegisterDatastructureUsage declares that this node uses the named
// shared datastructure, with the given memory weight. Multiple nodes may
// register the same name; they share one instance and one memory grant.
func (n *Node) RegisterDatastructureUsage(name string, priority float64) {
	n.dsUsed[name] = struct{}{}
	n.Map().RegisterDatastructure(name, priority)
}

// SetDatastructureMemoryLimits narrows the named datastructure's memory
// bounds. Requests from all registrants are merged: max of mins, min of
// maxes.
func (n *Node) SetDatastructureMemoryLimits(name string, minMem, maxMem uint64) error {
	return n.Map().SetDatastructureLimits(name, minMem, maxMem)
}

// DatastructureMemory returns the memory granted to the named
// datastructure for the current phase.
func (n *Node) DatastructureMemory(name string) (uint64, error) {
	return n.Map().DatastructureMemory(name)
}

// SetDatastructure stores the shared instance under the registered name.
func (n *Node) SetDatastructure(name string, value any) error {
	return n.Map().SetDatastructure(name, value)
}

// Datastructure retrieves the shared instance stored under name.
func (n *Node) Datastructure(name string) (any, error) {
	return n.Map().Datastructure(name)
}

// DatastructureUsage returns the names this node registered, ascending.
func (n *Node) DatastructureUsage() []string {
	names := make([]string, 0, len(n.dsUsed))
	for name := range n.dsUsed {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
