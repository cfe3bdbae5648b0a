package graph

import (
	"errors"
	"fmt"
	"slices"

	"github.com/vk/pipegrid/internal/token"
)

// ErrCycle is returned by TopoSort when the graph is not acyclic.
var ErrCycle = errors.New("cycle detected")

// Graph is a directed graph over a fixed set of token ids. Parallel
// edges collapse to one.
type Graph struct {
	nodes []token.ID
	succ  map[token.ID][]token.ID
	pred  map[token.ID][]token.ID
}

// New creates a graph over the given node set with no edges.
func New(ids []token.ID) *Graph {
	nodes := make([]token.ID, len(ids))
	copy(nodes, ids)
	slices.Sort(nodes)
	g := &Graph{
		nodes: nodes,
		succ:  make(map[token.ID][]token.ID, len(nodes)),
		pred:  make(map[token.ID][]token.ID, len(nodes)),
	}
	return g
}

// AddEdge inserts a directed edge. Endpoints outside the node set and
// duplicate edges are ignored, self-edges are rejected.
func (g *Graph) AddEdge(from, to token.ID) error {
	if from == to {
		return fmt.Errorf("self-referential edge not allowed: %d -> %d", from, from)
	}
	if !g.Has(from) || !g.Has(to) {
		return nil
	}
	if slices.Contains(g.succ[from], to) {
		return nil
	}
	g.succ[from] = append(g.succ[from], to)
	g.pred[to] = append(g.pred[to], from)
	return nil
}

// Has reports whether id belongs to the graph's node set.
func (g *Graph) Has(id token.ID) bool {
	_, found := slices.BinarySearch(g.nodes, id)
	return found
}

// Nodes returns the node set in ascending id order.
func (g *Graph) Nodes() []token.ID {
	out := make([]token.ID, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Successors returns the direct successors of id in ascending order.
func (g *Graph) Successors(id token.ID) []token.ID {
	out := make([]token.ID, len(g.succ[id]))
	copy(out, g.succ[id])
	slices.Sort(out)
	return out
}

// Predecessors returns the direct predecessors of id in ascending order.
func (g *Graph) Predecessors(id token.ID) []token.ID {
	out := make([]token.ID, len(g.pred[id]))
	copy(out, g.pred[id])
	slices.Sort(out)
	return out
}

// Sources returns the nodes with no predecessors, ascending.
func (g *Graph) Sources() []token.ID {
	var out []token.ID
	for _, id := range g.nodes {
		if len(g.pred[id]) == 0 {
			out = append(out, id)
		}
	}
	return out
}

// TopoSort returns a topological order of the node set. The order is
// deterministic: among simultaneously ready nodes the lowest id goes
// first. A remaining cycle is an error naming one involved node.
func (g *Graph) TopoSort() ([]token.ID, error) {
	indegree := make(map[token.ID]int, len(g.nodes))
	for _, id := range g.nodes {
		indegree[id] = len(g.pred[id])
	}

	// ready holds nodes with no unvisited predecessors, kept sorted so
	// the lowest id is always picked next.
	var ready []token.ID
	for _, id := range g.nodes {
		if indegree[id] == 0 {
			ready = append(ready, id)
		}
	}

	order := make([]token.ID, 0, len(g.nodes))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		for _, succ := range g.Successors(id) {
			indegree[succ]--
			if indegree[succ] == 0 {
				at, _ := slices.BinarySearch(ready, succ)
				ready = slices.Insert(ready, at, succ)
			}
		}
	}

	if len(order) != len(g.nodes) {
		for _, id := range g.nodes {
			if indegree[id] > 0 {
				return nil, fmt.Errorf("%w involving node %d", ErrCycle, id)
			}
		}
		return nil, ErrCycle
	}
	return order, nil
}

// Actor builds the actor projection: push and pull edges as caller →
// callee, restricted to the given node set. Dependency edges do not
// appear; they order phases, not calls.
func Actor(edges []token.Edge, ids []token.ID) *Graph {
	g := New(ids)
	for _, e := range edges {
		switch e.Kind {
		case token.Push, token.Pull:
			g.AddEdge(e.From, e.To)
		}
	}
	return g
}

// ItemFlow builds the item-flow projection: push edges keep direction,
// pull edges are reversed so every edge points producer → consumer.
func ItemFlow(edges []token.Edge, ids []token.ID) *Graph {
	g := New(ids)
	for _, e := range edges {
		switch e.Kind {
		case token.Push:
			g.AddEdge(e.From, e.To)
		case token.Pull:
			g.AddEdge(e.To, e.From)
		}
	}
	return g
}

// Dependency builds the dependency projection: a depends-on edge from a
// to b means b must end before a begins, so the producer-first edge runs
// b → a.
func Dependency(edges []token.Edge, ids []token.ID) *Graph {
	g := New(ids)
	for _, e := range edges {
		if e.Kind == token.DependsOn {
			g.AddEdge(e.To, e.From)
		}
	}
	return g
}
