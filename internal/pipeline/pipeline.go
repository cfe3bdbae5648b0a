// Package pipeline is the facade tying the framework together: it links
// a set of nodes into one map, plans their phases, and runs the
// lifecycle executor over the plan.
package pipeline

import (
	"context"
	"fmt"

	"github.com/vk/pipegrid/internal/ctxlog"
	"github.com/vk/pipegrid/internal/executor"
	"github.com/vk/pipegrid/internal/node"
	"github.com/vk/pipegrid/internal/phase"
	"github.com/vk/pipegrid/internal/token"
)

// Options configures a pipeline run.
type Options struct {
	// MemoryBudget is the memory available to each phase, in bytes.
	MemoryBudget uint64
	// Indicator builds the per-phase progress indicator. Nil means no
	// progress reporting.
	Indicator executor.IndicatorFactory
}

// Pipeline is a linked set of nodes ready for planning and execution.
type Pipeline struct {
	m    *token.NodeMap
	opts Options

	plan *phase.Plan
}

// New links the given nodes into a single map and wraps them as a
// pipeline. Nodes already related to one another are naturally in the
// same map; isolated groups are linked here.
func New(opts Options, nodes ...*node.Node) (*Pipeline, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("pipeline needs at least one node")
	}
	m := nodes[0].Map()
	for _, n := range nodes[1:] {
		m = m.Link(n.Map())
	}
	return &Pipeline{m: m, opts: opts}, nil
}

// Map exposes the canonical node map, mainly for inspection and tests.
func (p *Pipeline) Map() *token.NodeMap {
	return p.m
}

// Plan computes (and caches) the phase partition.
func (p *Pipeline) Plan(ctx context.Context) (*phase.Plan, error) {
	if p.plan != nil {
		return p.plan, nil
	}
	plan, err := phase.Compute(ctx, p.m)
	if err != nil {
		return nil, fmt.Errorf("planning pipeline: %w", err)
	}
	p.plan = plan
	return plan, nil
}

// Run plans if needed and executes all phases. The map itself stays
// open so results held in shared datastructures remain readable; call
// Close when done with them.
func (p *Pipeline) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	plan, err := p.Plan(ctx)
	if err != nil {
		return err
	}
	logger.Info("Pipeline planned.", "phases", len(plan.Phases), "nodes", p.m.Len())

	exec := executor.New(p.m, plan, p.opts.MemoryBudget, p.opts.Indicator)
	if err := exec.Run(ctx); err != nil {
		return fmt.Errorf("executing pipeline: %w", err)
	}
	logger.Info("Pipeline finished.")
	return nil
}

// Close tears down the map and the shared datastructures it owns.
func (p *Pipeline) Close() error {
	return p.m.Close()
}
