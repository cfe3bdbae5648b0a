package node

import (
	"math"

	"github.com/vk/pipegrid/internal/progress"
	"github.com/vk/pipegrid/internal/token"
)

// NamePriority ranks competing names when the planner derives a phase
// breadcrumb. Higher wins.
type NamePriority int

const (
	// PriorityDefault is the priority of a name nobody chose.
	PriorityDefault NamePriority = iota
	// PriorityHint marks a name suggested by framework plumbing.
	PriorityHint
	// PriorityUser marks a name chosen by the pipeline author.
	PriorityUser
)

// PlotOptions is a small bitset consumed by graph visualization.
type PlotOptions uint8

const (
	// PlotSimplifiedHide omits the node from simplified plots.
	PlotSimplifiedHide PlotOptions = 1 << iota
	// PlotBuffered renders the node as a phase-buffering element.
	PlotBuffered
)

// parameters are the declarative knobs a node sets before planning.
// They mirror what the memory runtime and progress accounting consume.
type parameters struct {
	minimumMemory  uint64
	maximumMemory  uint64
	memoryFraction float64

	name         string
	namePriority NamePriority

	stepsTotal uint64
}

// Node is the base type of all dataflow units. Concrete kinds embed
// *Node; the zero value is not usable, construct with New or NewIn.
type Node struct {
	tok *token.Token

	params          parameters
	availableMemory uint64

	state State

	values map[string]ForwardedValue

	// dsUsed records the shared datastructure names this node declared
	// usage of; the request info itself lives merged in the NodeMap.
	dsUsed map[string]struct{}

	stepsLeft uint64
	overflows []StepOverflow
	pi        progress.Indicator
	piProxy   *proxyIndicator

	plotOptions   PlotOptions
	flushPriority uint64

	// hooks is the dispatch target for lifecycle calls: the embedding
	// node kind once bound, this node's own defaults otherwise.
	hooks Hooks
}

// New creates a node with a fresh token in a new map.
func New() *Node {
	n := &Node{
		params: parameters{maximumMemory: math.MaxUint64, memoryFraction: 1},
		values: make(map[string]ForwardedValue),
		dsUsed: make(map[string]struct{}),
		pi:     progress.Null{},
		state:  StateFresh,
	}
	n.tok = token.New(n)
	n.hooks = n
	return n
}

// NewIn creates a node registered in an existing map.
func NewIn(m *token.NodeMap) *Node {
	n := New()
	n.tok.Map().Link(m)
	return n
}

// Bind makes h the dispatch target for lifecycle hooks. A node kind that
// embeds *Node calls Bind(itself) from its constructor so overridden
// hooks are reached; the map entry is redirected to the new owner, with
// the token id preserved.
func (n *Node) Bind(h Hooks) {
	n.hooks = h
	if owner, ok := h.(token.Owner); ok {
		n.tok.Redirect(owner)
	}
}

// NodeToken returns the token mapping this node's id to its owner.
func (n *Node) NodeToken() *token.Token {
	return n.tok
}

// ID returns the node's stable id.
func (n *Node) ID() token.ID {
	return n.tok.ID()
}

// Map returns the canonical NodeMap this node is registered in.
func (n *Node) Map() *token.NodeMap {
	return n.tok.Map()
}

// Base returns the embedded framework node. Promoted through embedding,
// it lets the executor recover *Node from whatever owner type is
// registered in the map.
func (n *Node) Base() *Node {
	return n
}

// Carrier is any registered owner from which the base node can be
// recovered.
type Carrier interface {
	token.Owner
	Base() *Node
}

// MinimumMemory returns the declared memory floor. Zero when unset.
func (n *Node) MinimumMemory() uint64 {
	return n.params.minimumMemory
}

// MaximumMemory returns the declared memory ceiling. Unbounded when unset.
func (n *Node) MaximumMemory() uint64 {
	return n.params.maximumMemory
}

// MemoryFraction returns the weight used for proportional assignment.
func (n *Node) MemoryFraction() float64 {
	return n.params.memoryFraction
}

// AvailableMemory returns the memory granted by the memory runtime for
// the current phase.
func (n *Node) AvailableMemory() uint64 {
	return n.availableMemory
}

// SetAvailableMemory is called by the memory runtime when assignments are
// final. Nodes needing to size internal buffers may override behavior by
// reading AvailableMemory from begin().
func (n *Node) SetAvailableMemory(m uint64) {
	n.availableMemory = m
}

// Name returns the node's name; priority says how authoritative it is.
func (n *Node) Name() (string, NamePriority) {
	return n.params.name, n.params.namePriority
}

// PlotOptions returns the visualization option bitset.
func (n *Node) PlotOptions() PlotOptions {
	return n.plotOptions
}

// SetPlotOptions replaces the visualization option bitset.
func (n *Node) SetPlotOptions(opts PlotOptions) {
	n.plotOptions = opts
}

// FlushPriority returns the evacuation ordering weight; higher priority
// nodes evacuate first.
func (n *Node) FlushPriority() uint64 {
	return n.flushPriority
}

// SetFlushPriority sets the evacuation ordering weight.
func (n *Node) SetFlushPriority(p uint64) {
	n.flushPriority = p
}
