package executor

import (
	"context"
	"fmt"
	"slices"

	"github.com/vk/pipegrid/internal/ctxlog"
	"github.com/vk/pipegrid/internal/graph"
	"github.com/vk/pipegrid/internal/memory"
	"github.com/vk/pipegrid/internal/node"
	"github.com/vk/pipegrid/internal/phase"
	"github.com/vk/pipegrid/internal/progress"
	"github.com/vk/pipegrid/internal/token"
)

// IndicatorFactory builds the progress indicator for a phase, given the
// phase breadcrumb. Nil factories and nil indicators fall back to the
// null indicator.
type IndicatorFactory func(phaseName string) progress.Indicator

// Executor runs a planned node map with a fixed per-phase memory budget.
type Executor struct {
	m      *token.NodeMap
	plan   *phase.Plan
	budget uint64

	newIndicator IndicatorFactory

	// flow is the item-flow projection over the whole map, buffered
	// edges included; metadata forwarding crosses phase boundaries.
	flow *graph.Graph
}

// New creates an executor for the plan. budget is the memory available
// to each phase.
func New(m *token.NodeMap, plan *phase.Plan, budget uint64, factory IndicatorFactory) *Executor {
	if factory == nil {
		factory = func(string) progress.Indicator { return progress.Null{} }
	}
	return &Executor{
		m:            m,
		plan:         plan,
		budget:       budget,
		newIndicator: factory,
		flow:         graph.ItemFlow(m.Edges(), m.IDs()),
	}
}

// Run executes all phases in planner order. The first fatal error
// unwinds the current phase and is returned wrapped with its phase name.
func (e *Executor) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Executor starting.", "phases", len(e.plan.Phases), "budget", e.budget)

	for i, p := range e.plan.Phases {
		phaseCtx := ctxlog.With(ctx, "phase", p.Name)
		if err := e.runPhase(phaseCtx, p); err != nil {
			return fmt.Errorf("phase %q: %w", p.Name, err)
		}
		logger.Debug("Phase complete.", "index", i, "name", p.Name)
	}

	logger.Debug("Executor finished.")
	return nil
}

func (e *Executor) runPhase(ctx context.Context, p *phase.Phase) error {
	logger := ctxlog.FromContext(ctx)

	nodes, err := e.resolve(p.Nodes)
	if err != nil {
		return err
	}

	// 1. prepare, item-flow order.
	for _, n := range nodes {
		if err := e.callHook(ctx, n, node.StateInPrepare, node.StateAfterPrepare,
			"prepare", n.Dispatch().Prepare); err != nil {
			return err
		}
	}

	// 2. memory assignment.
	if err := e.assignMemory(ctx, nodes); err != nil {
		return err
	}

	// 3. propagate, item-flow order; forwarded metadata flows to
	// item-flow successors, buffered ones included.
	for _, n := range nodes {
		if err := e.callHook(ctx, n, node.StateInPropagate, node.StateAfterPropagate,
			"propagate", n.Dispatch().Propagate); err != nil {
			return err
		}
		if err := e.forwardFrom(n); err != nil {
			return err
		}
	}

	// Progress: one indicator per phase, initialized with the summed
	// step budget before any node may step. Done fires on every exit
	// path so an unwinding phase still releases its indicator.
	pi := e.newIndicator(p.Name)
	if pi == nil {
		pi = progress.Null{}
	}
	var totalSteps uint64
	for _, n := range nodes {
		totalSteps += n.Steps()
	}
	pi.Init(totalSteps)
	defer pi.Done()
	for _, n := range nodes {
		n.SetProgressIndicator(pi)
	}

	// 4. begin, reverse item-flow order.
	for i := len(nodes) - 1; i >= 0; i-- {
		n := nodes[i]
		if err := e.callHook(ctx, n, node.StateInBegin, node.StateAfterBegin,
			"begin", n.Dispatch().Begin); err != nil {
			return err
		}
	}

	// 5. go on the initiator.
	initiator, err := e.node(p.Initiator)
	if err != nil {
		return err
	}
	logger.Debug("Driving initiator.", "node", initiator.ID())
	if err := initiator.Dispatch().Go(ctx); err != nil {
		return fmt.Errorf("go on node %d: %w", initiator.ID(), err)
	}

	// 6. end, item-flow order.
	for _, n := range nodes {
		if err := e.callHook(ctx, n, node.StateInEnd, node.StateAfterEnd,
			"end", n.Dispatch().End); err != nil {
			return err
		}
	}

	e.reportOverflows(ctx, nodes)

	// 7. evacuate buffering producers, descending flush priority.
	if err := e.evacuate(ctx, p); err != nil {
		return err
	}

	// Nodes are done once their phase has ended; release their map
	// entries so the ids can no longer be resolved.
	for _, n := range nodes {
		n.NodeToken().Release()
	}
	return nil
}

// callHook advances the node into the in-state, runs the hook, and
// advances into the after-state. A failed transition is a lifecycle
// violation; a hook error is fatal to the phase.
func (e *Executor) callHook(ctx context.Context, n *node.Node, in, after node.State,
	name string, hook func(context.Context) error) error {

	if err := n.Advance(in); err != nil {
		return err
	}
	if err := hook(ctx); err != nil {
		return fmt.Errorf("%s on node %d: %w", name, n.ID(), err)
	}
	return n.Advance(after)
}

// assignMemory solves the phase's proportional allocation and applies
// the grants to nodes and shared datastructures.
func (e *Executor) assignMemory(ctx context.Context, nodes []*node.Node) error {
	var consumers []memory.Consumer
	for _, n := range nodes {
		consumers = append(consumers, memory.Consumer{
			Kind:   memory.KindNode,
			ID:     n.ID(),
			Min:    n.MinimumMemory(),
			Max:    n.MaximumMemory(),
			Weight: n.MemoryFraction(),
		})
	}

	// Shared datastructures used anywhere in the phase participate
	// once, under their merged bounds.
	dsNames := make(map[string]struct{})
	for _, n := range nodes {
		for _, name := range n.DatastructureUsage() {
			dsNames[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(dsNames))
	for name := range dsNames {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		info, ok := e.m.DatastructureInfoFor(name)
		if !ok {
			return fmt.Errorf("phase uses datastructure %q: %w", name, token.ErrUnregisteredDatastructure)
		}
		consumers = append(consumers, memory.Consumer{
			Kind:   memory.KindDatastructure,
			Name:   name,
			Min:    info.Min,
			Max:    info.Max,
			Weight: info.Priority,
		})
	}

	grants, err := memory.Assign(ctx, consumers, e.budget)
	if err != nil {
		return err
	}

	for i, c := range consumers {
		switch c.Kind {
		case memory.KindNode:
			n, err := e.node(c.ID)
			if err != nil {
				return err
			}
			n.SetAvailableMemory(grants[i])
		case memory.KindDatastructure:
			if err := e.m.SetDatastructureMemory(c.Name, grants[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

// forwardFrom flows n's metadata entries along its outgoing item-flow
// edges.
func (e *Executor) forwardFrom(n *node.Node) error {
	for _, succ := range e.flow.Successors(n.ID()) {
		dst, err := e.node(succ)
		if err != nil {
			return err
		}
		n.ForwardTo(dst)
	}
	return nil
}

func (e *Executor) reportOverflows(ctx context.Context, nodes []*node.Node) {
	logger := ctxlog.FromContext(ctx)
	for _, n := range nodes {
		for _, o := range n.StepOverflows() {
			logger.Warn("Step budget exceeded.", "node", o.Node, "id", o.ID,
				"requested", o.Requested, "remaining", o.Remaining)
		}
	}
}

// evacuate spills buffering producers that report data to evacuate, in
// descending flush priority, ties by ascending id.
func (e *Executor) evacuate(ctx context.Context, p *phase.Phase) error {
	logger := ctxlog.FromContext(ctx)

	candidates := make([]*node.Node, 0, len(p.Buffering))
	for _, id := range p.Buffering {
		n, err := e.node(id)
		if err != nil {
			return err
		}
		if n.Dispatch().CanEvacuate() {
			candidates = append(candidates, n)
		}
	}
	slices.SortFunc(candidates, func(a, b *node.Node) int {
		if a.FlushPriority() != b.FlushPriority() {
			if a.FlushPriority() > b.FlushPriority() {
				return -1
			}
			return 1
		}
		if a.ID() < b.ID() {
			return -1
		}
		return 1
	})

	for _, n := range candidates {
		logger.Debug("Evacuating node.", "node", n.ID(), "flush_priority", n.FlushPriority())
		if err := n.Dispatch().Evacuate(ctx); err != nil {
			return fmt.Errorf("evacuate on node %d: %w", n.ID(), err)
		}
	}
	return nil
}

func (e *Executor) resolve(ids []token.ID) ([]*node.Node, error) {
	nodes := make([]*node.Node, 0, len(ids))
	for _, id := range ids {
		n, err := e.node(id)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func (e *Executor) node(id token.ID) (*node.Node, error) {
	owner, err := e.m.Resolve(id)
	if err != nil {
		return nil, err
	}
	carrier, ok := owner.(node.Carrier)
	if !ok {
		return nil, fmt.Errorf("node %d: owner %T does not carry a framework node", id, owner)
	}
	return carrier.Base(), nil
}
