package phase

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/vk/pipegrid/internal/ctxlog"
	"github.com/vk/pipegrid/internal/graph"
	"github.com/vk/pipegrid/internal/node"
	"github.com/vk/pipegrid/internal/token"
)

// ErrCyclicPhases is returned when the phase graph induced by buffered
// edges has a cycle.
var ErrCyclicPhases = errors.New("cyclic phases")

// ErrNoOrMultipleInitiators is returned when a phase's actor graph does
// not have exactly one source node.
var ErrNoOrMultipleInitiators = errors.New("no or multiple initiators")

// Phase is one maximal set of nodes connected by non-buffered actor
// edges, ready for execution.
type Phase struct {
	// Name is the phase breadcrumb, derived from the highest-priority
	// node name in the phase.
	Name string
	// Nodes is the phase's node set in item-flow topological order.
	Nodes []token.ID
	// Initiator is the unique source of the phase's actor graph; it
	// receives go().
	Initiator token.ID
	// Buffering lists the phase's nodes that produce across a buffered
	// edge into a later phase; candidates for evacuation.
	Buffering []token.ID

	// ItemFlow is the phase-internal item-flow projection that Nodes is
	// ordered over; boundary edges are not part of it.
	ItemFlow *graph.Graph
}

// Plan is an ordered partition of a node map into phases.
type Plan struct {
	Phases []*Phase
}

// Compute plans the given node map. It fails if the phase graph has a
// cycle or any phase lacks a unique initiator.
func Compute(ctx context.Context, m *token.NodeMap) (*Plan, error) {
	logger := ctxlog.FromContext(ctx)
	ids := m.IDs()
	edges := m.Edges()
	logger.Debug("Planner started.", "nodes", len(ids), "edges", len(edges))

	// Connected components under the non-boundary actor edges.
	comp := newComponents(ids)
	for _, e := range edges {
		if boundary(e) {
			continue
		}
		comp.union(e.From, e.To)
	}

	members := comp.members()
	logger.Debug("Components computed.", "phases", len(members))

	// The phase graph: one vertex per component, represented by its
	// smallest member id so the topological tie-break is inherited from
	// the node ids. Edges are the removed boundary edges, oriented
	// producer phase → consumer phase.
	reps := make([]token.ID, 0, len(members))
	for rep := range members {
		reps = append(reps, rep)
	}
	slices.Sort(reps)
	pg := graph.New(reps)

	for _, e := range edges {
		if !boundary(e) {
			continue
		}
		producer, consumer := orient(e)
		pFrom, pTo := comp.find(producer), comp.find(consumer)
		if pFrom == pTo {
			return nil, fmt.Errorf("buffered %v edge %d -> %d stays inside one phase: %w",
				e.Kind, e.From, e.To, ErrCyclicPhases)
		}
		if err := pg.AddEdge(pFrom, pTo); err != nil {
			return nil, err
		}
	}

	order, err := pg.TopoSort()
	if err != nil {
		return nil, fmt.Errorf("ordering phases: %w", ErrCyclicPhases)
	}

	phaseIndex := make(map[token.ID]int, len(order))
	for i, rep := range order {
		phaseIndex[rep] = i
	}

	plan := &Plan{}
	for i, rep := range order {
		p, err := buildPhase(m, members[rep], edges, comp, phaseIndex, i)
		if err != nil {
			return nil, err
		}
		logger.Debug("Phase planned.", "index", i, "name", p.Name,
			"nodes", len(p.Nodes), "initiator", p.Initiator)
		plan.Phases = append(plan.Phases, p)
	}
	return plan, nil
}

// buildPhase orders one component and locates its initiator.
func buildPhase(m *token.NodeMap, ids []token.ID, edges []token.Edge,
	comp *components, phaseIndex map[token.ID]int, index int) (*Phase, error) {

	intra := intraEdges(edges, comp, ids[0])

	flow := graph.ItemFlow(intra, ids)
	ordered, err := flow.TopoSort()
	if err != nil {
		return nil, fmt.Errorf("ordering phase %d: %w", index, err)
	}

	actor := graph.Actor(intra, ids)
	sources := actor.Sources()
	if len(sources) != 1 {
		return nil, fmt.Errorf("phase %d has %d initiators: %w",
			index, len(sources), ErrNoOrMultipleInitiators)
	}

	p := &Phase{
		Name:      phaseName(m, ids, index),
		Nodes:     ordered,
		Initiator: sources[0],
		ItemFlow:  flow,
	}

	// A node buffers when it produces across any boundary edge into a
	// later phase.
	self := phaseIndex[comp.find(ids[0])]
	seen := make(map[token.ID]struct{})
	for _, e := range edges {
		if !boundary(e) {
			continue
		}
		producer, consumer := orient(e)
		if comp.find(producer) != comp.find(ids[0]) {
			continue
		}
		if phaseIndex[comp.find(consumer)] <= self {
			continue
		}
		if _, dup := seen[producer]; dup {
			continue
		}
		seen[producer] = struct{}{}
		p.Buffering = append(p.Buffering, producer)
	}
	slices.Sort(p.Buffering)
	return p, nil
}

// intraEdges returns the non-boundary edges with both endpoints inside
// the component identified by rep.
func intraEdges(edges []token.Edge, comp *components, member token.ID) []token.Edge {
	rep := comp.find(member)
	var out []token.Edge
	for _, e := range edges {
		if boundary(e) {
			continue
		}
		if comp.find(e.From) == rep && comp.find(e.To) == rep {
			out = append(out, e)
		}
	}
	return out
}

// phaseName derives the breadcrumb from the highest-priority node name
// present, ties by ascending id. Unnamed phases get a positional name.
func phaseName(m *token.NodeMap, ids []token.ID, index int) string {
	best := ""
	bestPriority := node.NamePriority(-1)
	for _, id := range ids {
		owner, ok := m.Get(id)
		if !ok {
			continue
		}
		carrier, ok := owner.(node.Carrier)
		if !ok {
			continue
		}
		name, priority := carrier.Base().Name()
		if name == "" {
			continue
		}
		if priority > bestPriority {
			best = name
			bestPriority = priority
		}
	}
	if best == "" {
		return fmt.Sprintf("phase %d", index)
	}
	return best
}

// boundary reports whether an edge induces a phase boundary.
func boundary(e token.Edge) bool {
	return e.Kind == token.DependsOn || e.Buffered
}

// orient returns the producer and consumer of a boundary edge. For a
// depends-on edge a -> b, b produces first; for buffered push and pull
// the item-flow direction decides.
func orient(e token.Edge) (producer, consumer token.ID) {
	switch e.Kind {
	case token.DependsOn:
		return e.To, e.From
	case token.Pull:
		return e.To, e.From
	default:
		return e.From, e.To
	}
}

// components is a union-find over token ids.
type components struct {
	parent map[token.ID]token.ID
}

func newComponents(ids []token.ID) *components {
	c := &components{parent: make(map[token.ID]token.ID, len(ids))}
	for _, id := range ids {
		c.parent[id] = id
	}
	return c
}

// find returns the smallest id of the component, which doubles as its
// representative.
func (c *components) find(id token.ID) token.ID {
	for c.parent[id] != id {
		c.parent[id] = c.parent[c.parent[id]]
		id = c.parent[id]
	}
	return id
}

func (c *components) union(a, b token.ID) {
	ra, rb := c.find(a), c.find(b)
	if ra == rb {
		return
	}
	// Keep the smaller id as representative so component order follows
	// token order.
	if rb < ra {
		ra, rb = rb, ra
	}
	c.parent[rb] = ra
}

func (c *components) members() map[token.ID][]token.ID {
	out := make(map[token.ID][]token.ID)
	for id := range c.parent {
		out[c.find(id)] = append(out[c.find(id)], id)
	}
	for _, ids := range out {
		slices.Sort(ids)
	}
	return out
}
