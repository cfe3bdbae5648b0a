package node

import (
	"errors"
	"fmt"
	"slices"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/vk/pipegrid/internal/token"
)

// ErrNoSuchKey is returned by Fetch for a key nothing has forwarded.
var ErrNoSuchKey = errors.New("no forwarded value under key")

// ForwardedValue is one piece of side-band metadata held by a node. An
// explicit value is sticky: implicit writes never displace it.
type ForwardedValue struct {
	Value    cty.Value
	Explicit bool
}

// Forward stores an explicit metadata value on this node. The executor
// flows it to item-flow successors during the propagate pass.
func (n *Node) Forward(key string, v cty.Value) {
	n.addForwarded(key, ForwardedValue{Value: v, Explicit: true})
}

// ForwardImplicit stores a metadata value that yields to any explicit
// value already present downstream.
func (n *Node) ForwardImplicit(key string, v cty.Value) {
	n.addForwarded(key, ForwardedValue{Value: v, Explicit: false})
}

// addForwarded applies the override rule: a write lands unless the
// existing entry is explicit and the incoming one is not.
func (n *Node) addForwarded(key string, fv ForwardedValue) {
	if existing, ok := n.values[key]; ok && existing.Explicit && !fv.Explicit {
		return
	}
	n.values[key] = fv
}

// ForwardTo flows every entry held by this node into dst, subject to the
// same override rule. The executor calls it once per item-flow edge
// during the propagate pass.
func (n *Node) ForwardTo(dst *Node) {
	for _, key := range n.forwardedKeys() {
		dst.addForwarded(key, n.values[key])
	}
}

// forwardedKeys returns the held keys in ascending order so propagation
// is deterministic.
func (n *Node) forwardedKeys() []string {
	keys := make([]string, 0, len(n.values))
	for key := range n.values {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

// CanFetch reports whether a value is held under key.
func (n *Node) CanFetch(key string) bool {
	_, ok := n.values[key]
	return ok
}

// Fetch returns the metadata value held under key.
func (n *Node) Fetch(key string) (cty.Value, error) {
	fv, ok := n.values[key]
	if !ok {
		return cty.NilVal, fmt.Errorf("node %d: key %q: %w", n.ID(), key, ErrNoSuchKey)
	}
	return fv.Value, nil
}

// Forwarded returns the full entry under key, including its explicitness.
func (n *Node) Forwarded(key string) (ForwardedValue, bool) {
	fv, ok := n.values[key]
	return fv, ok
}

// ForwardAs converts a native Go value into the typed value universe and
// forwards it explicitly.
func ForwardAs[T any](n *Node, key string, v T) error {
	ty, err := gocty.ImpliedType(v)
	if err != nil {
		return fmt.Errorf("node %d: forwarding %q: %w", n.ID(), key, err)
	}
	val, err := gocty.ToCtyValue(v, ty)
	if err != nil {
		return fmt.Errorf("node %d: forwarding %q: %w", n.ID(), key, err)
	}
	n.Forward(key, val)
	return nil
}

// FetchAs fetches the value under key converted to a native Go type. A
// held value that cannot convert is a type mismatch, reported as a
// result, not a panic.
func FetchAs[T any](n *Node, key string) (T, error) {
	var out T
	v, err := n.Fetch(key)
	if err != nil {
		return out, err
	}
	if err := gocty.FromCtyValue(v, &out); err != nil {
		return out, fmt.Errorf("node %d: key %q holds %s: %w",
			n.ID(), key, v.Type().FriendlyName(), token.ErrTypeMismatch)
	}
	return out, nil
}
