package node

import (
	"fmt"

	"github.com/vk/pipegrid/internal/token"
)

// AddPushDestination declares that this node pushes items to dest. The
// two maps are linked if they were separate.
func (n *Node) AddPushDestination(dest *Node) error {
	return token.Relate(n.tok, dest.tok, token.Push, false)
}

// AddBufferedPushDestination declares a push destination behind a phase
// boundary: this node must end before dest begins.
func (n *Node) AddBufferedPushDestination(dest *Node) error {
	return token.Relate(n.tok, dest.tok, token.Push, true)
}

// AddPullSource declares that this node pulls items from src.
func (n *Node) AddPullSource(src *Node) error {
	return token.Relate(n.tok, src.tok, token.Pull, false)
}

// AddBufferedPullSource declares a pull source behind a phase boundary.
func (n *Node) AddBufferedPullSource(src *Node) error {
	return token.Relate(n.tok, src.tok, token.Pull, true)
}

// AddDependency declares that dep must have ended before this node
// begins. Dependency edges always induce a phase boundary.
func (n *Node) AddDependency(dep *Node) error {
	return token.Relate(n.tok, dep.tok, token.DependsOn, false)
}

// SetMinimumMemory declares the node's memory floor.
func (n *Node) SetMinimumMemory(m uint64) {
	n.params.minimumMemory = m
}

// SetMaximumMemory declares the node's memory ceiling. To signal that no
// memory is wanted, set minimum memory and the memory fraction to zero.
func (n *Node) SetMaximumMemory(m uint64) {
	n.params.maximumMemory = m
}

// SetMemoryFraction sets the weight used when distributing a phase's
// remaining memory. The weight must not be negative.
func (n *Node) SetMemoryFraction(w float64) {
	if w < 0 {
		panic(fmt.Sprintf("node %d: negative memory fraction %v", n.ID(), w))
	}
	n.params.memoryFraction = w
}

// SetName names the node for breadcrumbs and plots. A name of lower
// priority never displaces one of higher priority.
func (n *Node) SetName(name string, priority NamePriority) {
	if priority < n.params.namePriority && n.params.name != "" {
		return
	}
	n.params.name = name
	n.params.namePriority = priority
}

// SetBreadcrumb prefixes the node's name with a crumb, joining with
// " | " when a name is already present.
func (n *Node) SetBreadcrumb(crumb string) {
	if n.params.name == "" {
		n.params.name = crumb
		return
	}
	n.params.name = crumb + " | " + n.params.name
}
