package nodes

import (
	"context"
	"fmt"
	"sort"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/pipegrid/internal/node"
	"github.com/vk/pipegrid/internal/token"
)

// ItemPusher is implemented by node kinds that accept pushed items.
// Pushes are synchronous calls on the caller's stack.
type ItemPusher interface {
	PushItem(ctx context.Context, v cty.Value) error
}

// Config is what a factory gets from the pipeline file: the instance
// name and the kind-specific parameter object.
type Config struct {
	Name   string
	Params cty.Value
}

// Factory builds one node instance. The returned carrier exposes the
// framework node for edge wiring.
type Factory func(cfg Config) (node.Carrier, error)

// Registry maps kind names to factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates a registry with every built-in kind registered.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register("generator", NewGenerator)
	r.Register("scale", NewScale)
	r.Register("buffer", NewBuffer)
	r.Register("replay", NewReplay)
	r.Register("collect", NewCollect)
	r.Register("print", NewPrint)
	return r
}

// Register adds a kind. Registering a taken name is a programmer error.
func (r *Registry) Register(kind string, f Factory) {
	if _, exists := r.factories[kind]; exists {
		panic(fmt.Sprintf("node kind %q already registered", kind))
	}
	r.factories[kind] = f
}

// Build instantiates a node of the given kind.
func (r *Registry) Build(kind string, cfg Config) (node.Carrier, error) {
	f, ok := r.factories[kind]
	if !ok {
		return nil, fmt.Errorf("unknown node kind %q (have %v)", kind, r.Kinds())
	}
	return f(cfg)
}

// Kinds returns the registered kind names, ascending.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// pushTargets resolves the nodes n pushes to, as ItemPushers. Kinds call
// it from begin, after all wiring is done.
func pushTargets(n *node.Node) ([]ItemPusher, error) {
	m := n.Map()
	var targets []ItemPusher
	for _, e := range m.Edges(token.Push) {
		if e.From != n.ID() || e.Buffered {
			continue
		}
		owner, err := m.Resolve(e.To)
		if err != nil {
			return nil, err
		}
		pusher, ok := owner.(ItemPusher)
		if !ok {
			return nil, fmt.Errorf("push destination %d (%T) does not accept items", e.To, owner)
		}
		targets = append(targets, pusher)
	}
	return targets, nil
}

// pushAll fans one item out to every target.
func pushAll(ctx context.Context, targets []ItemPusher, v cty.Value) error {
	for _, t := range targets {
		if err := t.PushItem(ctx, v); err != nil {
			return err
		}
	}
	return nil
}

// param extracts an attribute from a kind's parameter object.
func param(params cty.Value, key string) (cty.Value, bool) {
	if params.IsNull() || !params.Type().IsObjectType() || !params.Type().HasAttribute(key) {
		return cty.NilVal, false
	}
	return params.GetAttr(key), true
}

// intParam extracts an integer attribute.
func intParam(params cty.Value, key string) (int64, bool, error) {
	v, ok := param(params, key)
	if !ok {
		return 0, false, nil
	}
	if v.Type() != cty.Number {
		return 0, false, fmt.Errorf("parameter %q must be a number, got %s", key, v.Type().FriendlyName())
	}
	i, _ := v.AsBigFloat().Int64()
	return i, true, nil
}

// stringParam extracts a string attribute.
func stringParam(params cty.Value, key string) (string, bool, error) {
	v, ok := param(params, key)
	if !ok {
		return "", false, nil
	}
	if v.Type() != cty.String {
		return "", false, fmt.Errorf("parameter %q must be a string, got %s", key, v.Type().FriendlyName())
	}
	return v.AsString(), true, nil
}
