package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/vk/pipegrid/internal/node"
)

// Recorder collects lifecycle events in call order across a set of
// scripted nodes.
type Recorder struct {
	mu     sync.Mutex
	events []string
}

// Record appends one event.
func (r *Recorder) Record(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns the events recorded so far.
func (r *Recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	copy(out, r.events)
	return out
}

// Index returns the position of the first matching event, or -1.
func (r *Recorder) Index(event string) int {
	for i, e := range r.Events() {
		if e == event {
			return i
		}
	}
	return -1
}

// ScriptedNode is a framework node that records every lifecycle call
// under its label and defers to optional per-hook callbacks.
type ScriptedNode struct {
	*node.Node

	rec   *Recorder
	label string

	// Initiator makes Go succeed; non-initiators keep the framework
	// default of refusing to be driven.
	Initiator bool
	// Evacuable makes CanEvacuate report true.
	Evacuable bool

	OnPrepare   func(ctx context.Context) error
	OnPropagate func(ctx context.Context) error
	OnBegin     func(ctx context.Context) error
	OnGo        func(ctx context.Context) error
	OnEnd       func(ctx context.Context) error
	OnEvacuate  func(ctx context.Context) error
}

// NewScriptedNode builds a recording node named label.
func NewScriptedNode(rec *Recorder, label string) *ScriptedNode {
	s := &ScriptedNode{Node: node.New(), rec: rec, label: label}
	s.Bind(s)
	s.SetName(label, node.PriorityUser)
	return s
}

func (s *ScriptedNode) record(hook string) {
	s.rec.Record(fmt.Sprintf("%s:%s", hook, s.label))
}

func (s *ScriptedNode) Prepare(ctx context.Context) error {
	s.record("prepare")
	if s.OnPrepare != nil {
		return s.OnPrepare(ctx)
	}
	return nil
}

func (s *ScriptedNode) Propagate(ctx context.Context) error {
	s.record("propagate")
	if s.OnPropagate != nil {
		return s.OnPropagate(ctx)
	}
	return nil
}

func (s *ScriptedNode) Begin(ctx context.Context) error {
	s.record("begin")
	if s.OnBegin != nil {
		return s.OnBegin(ctx)
	}
	return nil
}

func (s *ScriptedNode) Go(ctx context.Context) error {
	if !s.Initiator {
		return s.Node.Go(ctx)
	}
	s.record("go")
	if s.OnGo != nil {
		return s.OnGo(ctx)
	}
	return nil
}

func (s *ScriptedNode) End(ctx context.Context) error {
	s.record("end")
	if s.OnEnd != nil {
		return s.OnEnd(ctx)
	}
	return nil
}

func (s *ScriptedNode) CanEvacuate() bool {
	return s.Evacuable
}

func (s *ScriptedNode) Evacuate(ctx context.Context) error {
	s.record("evacuate")
	if s.OnEvacuate != nil {
		return s.OnEvacuate(ctx)
	}
	return nil
}
