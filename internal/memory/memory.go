// Package memory implements the per-phase proportional memory runtime.
//
// Each phase enumerates its memory consumers: one per participating node
// and one per shared datastructure used in the phase. Every consumer
// declares a minimum, a maximum and a weight. The runtime grants every
// consumer its minimum, then distributes the remaining budget
// proportionally to weight, clamping at each consumer's maximum and
// redistributing the excess until a fixed point. Grants are integral and
// deterministic: fractional leftovers go to the larger remainder first,
// then the heavier weight, then the lower (id, name).
package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/vk/pipegrid/internal/ctxlog"
	"github.com/vk/pipegrid/internal/token"
)

// ErrInsufficientMemory is returned when the consumers' summed minimum
// exceeds the phase budget.
var ErrInsufficientMemory = errors.New("insufficient memory")

// Kind distinguishes node consumers from shared datastructure consumers.
type Kind int

const (
	// KindNode is a node's own memory request.
	KindNode Kind = iota
	// KindDatastructure is the merged request of a named shared
	// datastructure; one consumer regardless of how many nodes use it.
	KindDatastructure
)

// Consumer is one memory request participating in a phase's assignment.
type Consumer struct {
	Kind Kind
	// ID is the owning node for KindNode; zero for datastructures.
	ID token.ID
	// Name is the datastructure name for KindDatastructure; empty for
	// nodes.
	Name string

	Min    uint64
	Max    uint64
	Weight float64
}

func (c Consumer) label() string {
	if c.Kind == KindDatastructure {
		return fmt.Sprintf("datastructure %q", c.Name)
	}
	return fmt.Sprintf("node %d", c.ID)
}

// less orders consumers for deterministic redistribution: ascending
// (token id, name).
func less(a, b Consumer) bool {
	if a.ID != b.ID {
		return a.ID < b.ID
	}
	return a.Name < b.Name
}

// Assign distributes budget across the consumers. The returned grants
// align with the input slice. Every grant g satisfies min ≤ g ≤ max and
// the grants sum to at most budget.
func Assign(ctx context.Context, consumers []Consumer, budget uint64) ([]uint64, error) {
	logger := ctxlog.FromContext(ctx)

	var sumMin uint64
	for _, c := range consumers {
		if c.Max < c.Min {
			return nil, fmt.Errorf("%s declares max %d below min %d", c.label(), c.Max, c.Min)
		}
		sumMin += c.Min
	}
	if sumMin > budget {
		return nil, fmt.Errorf("consumers require %d of %d available: %w",
			sumMin, budget, ErrInsufficientMemory)
	}

	grants := make([]uint64, len(consumers))
	for i, c := range consumers {
		grants[i] = c.Min
	}

	remaining := budget - sumMin

	// active indexes the consumers still competing for the remainder,
	// in deterministic order.
	var active []int
	for i, c := range consumers {
		if c.Weight > 0 && c.Max > c.Min {
			active = append(active, i)
		}
	}
	sort.Slice(active, func(x, y int) bool {
		return less(consumers[active[x]], consumers[active[y]])
	})

	// Clamp to fixed point: any consumer whose proportional share meets
	// its ceiling takes the ceiling and leaves the pool; its excess is
	// redistributed in the next round. Each round clamps at least one
	// consumer, so this terminates in at most len(consumers) rounds.
	for remaining > 0 && len(active) > 0 {
		var totalWeight float64
		for _, i := range active {
			totalWeight += consumers[i].Weight
		}

		clamped := false
		next := active[:0]
		for _, i := range active {
			c := consumers[i]
			share := float64(remaining) * c.Weight / totalWeight
			headroom := c.Max - c.Min
			if share >= float64(headroom) {
				grants[i] = c.Max
				remaining -= headroom
				clamped = true
				continue
			}
			next = append(next, i)
		}
		active = next
		if !clamped {
			break
		}
	}

	if remaining > 0 && len(active) > 0 {
		distributeRemainder(consumers, grants, active, remaining)
	}

	var total uint64
	for _, g := range grants {
		total += g
	}
	logger.Debug("Memory assigned.", "budget", budget, "granted", total,
		"consumers", len(consumers))
	return grants, nil
}

// distributeRemainder hands out the remainder proportionally with
// largest-remainder integer rounding.
func distributeRemainder(consumers []Consumer, grants []uint64, active []int, remaining uint64) {
	var totalWeight float64
	for _, i := range active {
		totalWeight += consumers[i].Weight
	}

	type share struct {
		index int
		base  uint64
		frac  float64
	}
	shares := make([]share, 0, len(active))
	var distributed uint64
	for _, i := range active {
		ideal := float64(remaining) * consumers[i].Weight / totalWeight
		base := uint64(math.Floor(ideal))
		shares = append(shares, share{index: i, base: base, frac: ideal - float64(base)})
		distributed += base
	}

	// Leftover units go to the largest fractional part; ties prefer the
	// heavier weight, then the lower (id, name).
	leftover := remaining - distributed
	sort.SliceStable(shares, func(x, y int) bool {
		if shares[x].frac != shares[y].frac {
			return shares[x].frac > shares[y].frac
		}
		cx, cy := consumers[shares[x].index], consumers[shares[y].index]
		if cx.Weight != cy.Weight {
			return cx.Weight > cy.Weight
		}
		return less(cx, cy)
	})
	for s := range shares {
		i := shares[s].index
		extra := shares[s].base
		if leftover > 0 && consumers[i].Max-grants[i]-extra >= 1 {
			extra++
			leftover--
		}
		grants[i] += extra
	}
}
