package token

import (
	"errors"
	"fmt"
	"io"
	"math"
	"slices"

	"github.com/hashicorp/go-multierror"
)

// ErrUnregisteredDatastructure is returned when a value is set or fetched
// under a name no node has registered, and when a registered name is
// fetched before any value has been set.
var ErrUnregisteredDatastructure = errors.New("unregistered datastructure")

// ErrTypeMismatch is returned when a stored value does not have the type
// the caller asked for.
var ErrTypeMismatch = errors.New("type mismatch")

// DatastructureInfo describes the memory request of a named shared
// datastructure: the merged bounds and the weight used by the memory
// runtime.
type DatastructureInfo struct {
	Min      uint64
	Max      uint64
	Priority float64
}

// datastructure is one entry in the shared table: the merged request info,
// the assigned memory, and the opaque value once a node has set it.
type datastructure struct {
	info     DatastructureInfo
	assigned uint64
	value    any
	hasValue bool
}

// merge folds another registration of the same name into this one:
// the tighter of the two bounds wins on both ends, the higher priority
// wins.
func (d *datastructure) merge(other *datastructure) {
	d.info.Min = max(d.info.Min, other.info.Min)
	d.info.Max = min(d.info.Max, other.info.Max)
	d.info.Priority = math.Max(d.info.Priority, other.info.Priority)
	if !d.hasValue && other.hasValue {
		d.value = other.value
		d.hasValue = true
	}
}

// RegisterDatastructure declares usage of a named shared datastructure.
// Registration is idempotent per name; repeated calls keep the highest
// requested priority.
func (m *NodeMap) RegisterDatastructure(name string, priority float64) {
	c := m.find()
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.datastructures[name]; ok {
		existing.info.Priority = math.Max(existing.info.Priority, priority)
		return
	}
	c.datastructures[name] = &datastructure{
		info: DatastructureInfo{Min: 0, Max: math.MaxUint64, Priority: priority},
	}
}

// SetDatastructureLimits narrows the memory bounds of a registered
// datastructure. Repeated calls take the max of mins and the min of maxes,
// so every registrant's requirement holds.
func (m *NodeMap) SetDatastructureLimits(name string, minMem, maxMem uint64) error {
	c := m.find()
	c.mu.Lock()
	defer c.mu.Unlock()

	ds, ok := c.datastructures[name]
	if !ok {
		return fmt.Errorf("setting limits for %q: %w", name, ErrUnregisteredDatastructure)
	}
	ds.info.Min = max(ds.info.Min, minMem)
	ds.info.Max = min(ds.info.Max, maxMem)
	return nil
}

// SetDatastructure stores the opaque value of a registered datastructure.
func (m *NodeMap) SetDatastructure(name string, value any) error {
	c := m.find()
	c.mu.Lock()
	defer c.mu.Unlock()

	ds, ok := c.datastructures[name]
	if !ok {
		return fmt.Errorf("setting datastructure %q: %w", name, ErrUnregisteredDatastructure)
	}
	ds.value = value
	ds.hasValue = true
	return nil
}

// Datastructure retrieves the stored opaque value of a registered
// datastructure.
func (m *NodeMap) Datastructure(name string) (any, error) {
	c := m.find()
	c.mu.Lock()
	defer c.mu.Unlock()

	ds, ok := c.datastructures[name]
	if !ok {
		return nil, fmt.Errorf("getting datastructure %q: %w", name, ErrUnregisteredDatastructure)
	}
	if !ds.hasValue {
		return nil, fmt.Errorf("getting datastructure %q: no value set: %w", name, ErrUnregisteredDatastructure)
	}
	return ds.value, nil
}

// DatastructureAs retrieves a datastructure value with a checked downcast.
// A stored value of a different type is ErrTypeMismatch, not a panic.
func DatastructureAs[T any](m *NodeMap, name string) (T, error) {
	var zero T
	v, err := m.Datastructure(name)
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("datastructure %q holds %T: %w", name, v, ErrTypeMismatch)
	}
	return typed, nil
}

// DatastructureInfoFor returns the merged request info for a name.
func (m *NodeMap) DatastructureInfoFor(name string) (DatastructureInfo, bool) {
	c := m.find()
	c.mu.Lock()
	defer c.mu.Unlock()

	ds, ok := c.datastructures[name]
	if !ok {
		return DatastructureInfo{}, false
	}
	return ds.info, true
}

// DatastructureNames returns the registered names in ascending order.
func (m *NodeMap) DatastructureNames() []string {
	c := m.find()
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.datastructures))
	for name := range c.datastructures {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// SetDatastructureMemory records the memory granted to a datastructure by
// the memory runtime for the current phase.
func (m *NodeMap) SetDatastructureMemory(name string, v uint64) error {
	c := m.find()
	c.mu.Lock()
	defer c.mu.Unlock()

	ds, ok := c.datastructures[name]
	if !ok {
		return fmt.Errorf("assigning memory to %q: %w", name, ErrUnregisteredDatastructure)
	}
	ds.assigned = v
	return nil
}

// DatastructureMemory returns the memory granted to a datastructure.
func (m *NodeMap) DatastructureMemory(name string) (uint64, error) {
	c := m.find()
	c.mu.Lock()
	defer c.mu.Unlock()

	ds, ok := c.datastructures[name]
	if !ok {
		return 0, fmt.Errorf("reading memory of %q: %w", name, ErrUnregisteredDatastructure)
	}
	return ds.assigned, nil
}

// Close tears the map down, closing every datastructure value that
// implements io.Closer. All close errors are reported, not just the first.
func (m *NodeMap) Close() error {
	c := m.find()
	c.mu.Lock()
	defer c.mu.Unlock()

	var result *multierror.Error
	for name, ds := range c.datastructures {
		if !ds.hasValue {
			continue
		}
		if closer, ok := ds.value.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				result = multierror.Append(result, fmt.Errorf("closing datastructure %q: %w", name, err))
			}
		}
		ds.value = nil
		ds.hasValue = false
	}
	return result.ErrorOrNil()
}
