package node

import (
	"github.com/vk/pipegrid/internal/progress"
)

// StepOverflow is the diagnostic recorded when a node steps past its
// declared budget. Overflow is non-fatal for the data path; the executor
// reports recorded overflows after the phase.
type StepOverflow struct {
	Node      string
	ID        uint64
	Requested uint64
	Remaining uint64
}

// SetSteps declares the maximum number of progress steps this node will
// take during its phase.
func (n *Node) SetSteps(steps uint64) {
	n.params.stepsTotal = steps
	n.stepsLeft = steps
}

// Steps returns the declared step budget.
func (n *Node) Steps() uint64 {
	return n.params.stepsTotal
}

// StepsLeft returns the remaining step budget. Never negative: overflow
// clamps to zero rather than wrapping.
func (n *Node) StepsLeft() uint64 {
	return n.stepsLeft
}

// StepOverflows returns the overflow diagnostics recorded so far.
func (n *Node) StepOverflows() []StepOverflow {
	return n.overflows
}

// SetProgressIndicator points the node at the indicator steps are
// forwarded to. The indicator is owned by the caller.
func (n *Node) SetProgressIndicator(pi progress.Indicator) {
	if pi == nil {
		pi = progress.Null{}
	}
	n.pi = pi
}

// ProgressIndicator returns the indicator currently in use.
func (n *Node) ProgressIndicator() progress.Indicator {
	return n.pi
}

// Step charges k steps against the declared budget and forwards them to
// the progress indicator. Stepping past the budget records exactly one
// overflow diagnostic per violating call and clamps the residual to zero;
// execution continues.
func (n *Node) Step(k uint64) {
	if n.stepsLeft < k {
		n.stepOverflow(k)
	} else {
		n.stepsLeft -= k
	}
	n.pi.Step(k)
}

func (n *Node) stepOverflow(requested uint64) {
	name, _ := n.Name()
	n.overflows = append(n.overflows, StepOverflow{
		Node:      name,
		ID:        uint64(n.ID()),
		Requested: requested,
		Remaining: n.stepsLeft,
	})
	n.stepsLeft = 0
}

// proxyIndicator translates an external sub-computation's progress scale
// into this node's declared step budget. Steps reported against the
// external total are mapped proportionally onto stepsTotal, so a library
// that steps its own indicator N times advances the node by its declared
// budget overall.
type proxyIndicator struct {
	n *Node

	externalTotal uint64
	current       uint64
	charged       uint64
}

// ProxyProgressIndicator returns the node's proxy indicator, creating it
// on first use. The proxy is reusable across sub-computations; each
// Init resets the external scale.
func (n *Node) ProxyProgressIndicator() progress.Indicator {
	if n.piProxy == nil {
		n.piProxy = &proxyIndicator{n: n}
	}
	return n.piProxy
}

func (p *proxyIndicator) Init(total uint64) {
	p.externalTotal = total
	p.current = 0
	p.charged = 0
}

func (p *proxyIndicator) Step(k uint64) {
	p.current += k
	if p.externalTotal == 0 {
		return
	}
	target := p.n.Steps() * p.current / p.externalTotal
	if target > p.charged {
		p.n.Step(target - p.charged)
		p.charged = target
	}
}

func (p *proxyIndicator) Refresh() {}

// Done charges whatever part of the declared budget the proportional
// mapping has not reached yet, so truncated external totals still land
// exactly on the budget.
func (p *proxyIndicator) Done() {
	if p.externalTotal == 0 {
		return
	}
	if p.charged < p.n.Steps() {
		p.n.Step(p.n.Steps() - p.charged)
		p.charged = p.n.Steps()
	}
}
