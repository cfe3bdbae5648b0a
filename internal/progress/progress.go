// Package progress defines the progress indicator contract consumed by
// the pipelining framework and a few stock implementations.
//
// The executor drives one indicator per phase: Init with the phase's
// total declared steps, Step as nodes report work, Done when the phase
// ends. Refresh lets display-oriented indicators redraw without new
// progress.
package progress

// Indicator receives progress events for one phase of execution.
type Indicator interface {
	Init(total uint64)
	Step(k uint64)
	Refresh()
	Done()
}

// Null is the indicator used when nobody is watching.
type Null struct{}

func (Null) Init(total uint64) {}
func (Null) Step(k uint64)     {}
func (Null) Refresh()          {}
func (Null) Done()             {}
