package token

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

// ErrUnknownNode is returned when an id cannot be resolved in the map,
// either because it was never registered or because its owner released it.
var ErrUnknownNode = errors.New("unknown node")

// EdgeKind distinguishes the three relation sets kept per map.
type EdgeKind int

const (
	// Push declares that From pushes items to To.
	Push EdgeKind = iota
	// Pull declares that From pulls items from To.
	Pull
	// DependsOn declares that From must not begin before To has ended.
	DependsOn
)

// String returns the relation name used in diagnostics.
func (k EdgeKind) String() string {
	switch k {
	case Push:
		return "push"
	case Pull:
		return "pull"
	case DependsOn:
		return "depends_on"
	default:
		return fmt.Sprintf("edge_kind(%d)", int(k))
	}
}

// Edge is one declared relation between two registered nodes. Buffered is
// meaningful for push and pull edges only; a buffered edge forces a phase
// boundary between producer and consumer.
type Edge struct {
	From     ID
	To       ID
	Kind     EdgeKind
	Buffered bool
}

// NodeMap is the shared registry of a linked set of nodes: the id table,
// the relation sets, and the shared datastructure table.
//
// The id table uses a lock-free map so that hot executor lookups never
// contend with one another; structural mutation (edges, datastructures,
// merging) is serialized by mu.
type NodeMap struct {
	mu sync.Mutex

	// parent is non-nil once this map has been merged away; find chases
	// it to the canonical map.
	parent *NodeMap
	rank   int

	nodes *xsync.MapOf[ID, Owner]

	edges []Edge

	datastructures map[string]*datastructure
}

// linkMu serializes merges across all maps. Merging touches two maps at
// once; a single package lock sidesteps lock ordering entirely, and
// linking only happens during pipeline construction.
var linkMu sync.Mutex

func newMap() *NodeMap {
	return &NodeMap{
		nodes:          xsync.NewMapOf[ID, Owner](),
		datastructures: make(map[string]*datastructure),
	}
}

// find resolves the canonical map, halving the path as it goes.
func (m *NodeMap) find() *NodeMap {
	for m.parent != nil {
		if m.parent.parent != nil {
			m.parent = m.parent.parent
		}
		m = m.parent
	}
	return m
}

// Link merges the map holding other into the map holding m. Linking is
// idempotent and commutative; afterwards both resolve to one canonical
// map holding the union of entries, relations and datastructures.
func (m *NodeMap) Link(other *NodeMap) *NodeMap {
	linkMu.Lock()
	defer linkMu.Unlock()

	a, b := m.find(), other.find()
	if a == b {
		return a
	}
	if a.rank < b.rank {
		a, b = b, a
	}
	if a.rank == b.rank {
		a.rank++
	}

	b.nodes.Range(func(id ID, owner Owner) bool {
		a.nodes.Store(id, owner)
		return true
	})
	a.edges = append(a.edges, b.edges...)
	for name, ds := range b.datastructures {
		if existing, ok := a.datastructures[name]; ok {
			existing.merge(ds)
			continue
		}
		a.datastructures[name] = ds
	}

	b.nodes = nil
	b.edges = nil
	b.datastructures = nil
	b.parent = a
	return a
}

// Relate records a relation between two tokens. Tokens registered in
// different maps are linked first, so relating is also how independently
// built nodes end up in one pipeline. Both endpoints must still resolve
// to live owners.
func Relate(from, to *Token, kind EdgeKind, buffered bool) error {
	if from.ID() == to.ID() {
		return fmt.Errorf("relating node %d to itself", from.ID())
	}
	m := from.Map().Link(to.Map())

	if _, ok := m.Get(from.ID()); !ok {
		return fmt.Errorf("relating %v edge from node %d: %w", kind, from.ID(), ErrUnknownNode)
	}
	if _, ok := m.Get(to.ID()); !ok {
		return fmt.Errorf("relating %v edge to node %d: %w", kind, to.ID(), ErrUnknownNode)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.edges = append(m.edges, Edge{From: from.ID(), To: to.ID(), Kind: kind, Buffered: buffered})
	return nil
}

// Get resolves an id to its registered owner.
func (m *NodeMap) Get(id ID) (Owner, bool) {
	return m.find().nodes.Load(id)
}

// Resolve is Get with an error for callers that treat absence as fatal.
func (m *NodeMap) Resolve(id ID) (Owner, error) {
	owner, ok := m.Get(id)
	if !ok {
		return nil, fmt.Errorf("resolving node %d: %w", id, ErrUnknownNode)
	}
	return owner, nil
}

// Len returns the number of registered nodes.
func (m *NodeMap) Len() int {
	return m.find().nodes.Size()
}

// IDs returns all registered ids in ascending order.
func (m *NodeMap) IDs() []ID {
	c := m.find()
	ids := make([]ID, 0, c.nodes.Size())
	c.nodes.Range(func(id ID, _ Owner) bool {
		ids = append(ids, id)
		return true
	})
	slices.Sort(ids)
	return ids
}

// Edges returns a snapshot of the declared relations, optionally filtered
// by kind. Pass no kinds for all of them.
func (m *NodeMap) Edges(kinds ...EdgeKind) []Edge {
	c := m.find()
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(kinds) == 0 {
		out := make([]Edge, len(c.edges))
		copy(out, c.edges)
		return out
	}
	var out []Edge
	for _, e := range c.edges {
		for _, k := range kinds {
			if e.Kind == k {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

func (m *NodeMap) register(id ID, owner Owner) {
	m.find().nodes.Store(id, owner)
}

func (m *NodeMap) deregister(id ID) {
	m.find().nodes.Delete(id)
}
