// Package hclpipe loads declarative pipeline definitions from HCL files
// and builds runnable node sets from them.
//
// A pipeline file declares node instances and their relations:
//
//	pipeline "sort_numbers" {
//	  node "gen" {
//	    kind    = "generator"
//	    params  = { count = 100 }
//	    push_to = ["sorter"]
//	  }
//	  node "sorter" {
//	    kind             = "buffer"
//	    buffered_push_to = ["rep"]
//	  }
//	  node "rep" {
//	    kind    = "replay"
//	    params  = { from = "sorter" }
//	    push_to = ["out"]
//	  }
//	  node "out" {
//	    kind = "collect"
//	  }
//	}
//
// Attributes are plain values; there is no expression language across
// nodes. Edge attributes name other node instances in the same pipeline
// block.
package hclpipe

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/pipegrid/internal/ctxlog"
	"github.com/vk/pipegrid/internal/node"
	"github.com/vk/pipegrid/internal/nodes"
)

// File is the decoded form of one pipeline definition file.
type File struct {
	Pipelines []*PipelineDef `hcl:"pipeline,block"`
}

// PipelineDef is one pipeline block.
type PipelineDef struct {
	Name  string     `hcl:"name,label"`
	Nodes []*NodeDef `hcl:"node,block"`
}

// NodeDef is one node block inside a pipeline.
type NodeDef struct {
	Name string `hcl:"name,label"`
	Kind string `hcl:"kind"`

	Params cty.Value `hcl:"params,optional"`

	PushTo           []string `hcl:"push_to,optional"`
	BufferedPushTo   []string `hcl:"buffered_push_to,optional"`
	PullFrom         []string `hcl:"pull_from,optional"`
	BufferedPullFrom []string `hcl:"buffered_pull_from,optional"`
	DependsOn        []string `hcl:"depends_on,optional"`

	MinMemory      *uint64  `hcl:"min_memory,optional"`
	MaxMemory      *uint64  `hcl:"max_memory,optional"`
	MemoryFraction *float64 `hcl:"memory_fraction,optional"`
	Steps          *uint64  `hcl:"steps,optional"`
}

// Parse decodes pipeline definitions from file contents.
func Parse(filename string, src []byte) (*File, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parsing %s: %w", filename, diags)
	}
	var f File
	if diags := gohcl.DecodeBody(hclFile.Body, nil, &f); diags.HasErrors() {
		return nil, fmt.Errorf("decoding %s: %w", filename, diags)
	}
	return &f, nil
}

// ParseFile reads and decodes one pipeline definition file from disk.
func ParseFile(filename string) (*File, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parsing %s: %w", filename, diags)
	}
	var f File
	if diags := gohcl.DecodeBody(hclFile.Body, nil, &f); diags.HasErrors() {
		return nil, fmt.Errorf("decoding %s: %w", filename, diags)
	}
	return &f, nil
}

// Build instantiates and wires a pipeline definition against a kind
// registry, returning the framework nodes ready for planning.
func Build(ctx context.Context, def *PipelineDef, reg *nodes.Registry) ([]*node.Node, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Building pipeline from definition.", "pipeline", def.Name, "nodes", len(def.Nodes))

	// First pass: create all instances.
	instances := make(map[string]node.Carrier, len(def.Nodes))
	order := make([]*node.Node, 0, len(def.Nodes))
	for _, nd := range def.Nodes {
		if _, exists := instances[nd.Name]; exists {
			return nil, fmt.Errorf("pipeline %q: duplicate node name %q", def.Name, nd.Name)
		}
		carrier, err := reg.Build(nd.Kind, nodes.Config{Name: nd.Name, Params: nd.Params})
		if err != nil {
			return nil, fmt.Errorf("pipeline %q: node %q: %w", def.Name, nd.Name, err)
		}
		applyTuning(carrier.Base(), nd)
		instances[nd.Name] = carrier
		order = append(order, carrier.Base())
	}

	// Second pass: wire relations.
	for _, nd := range def.Nodes {
		n := instances[nd.Name].Base()
		link := func(names []string, wire func(*node.Node) error, label string) error {
			for _, target := range names {
				other, ok := instances[target]
				if !ok {
					return fmt.Errorf("pipeline %q: node %q: %s names unknown node %q",
						def.Name, nd.Name, label, target)
				}
				if err := wire(other.Base()); err != nil {
					return fmt.Errorf("pipeline %q: node %q: %w", def.Name, nd.Name, err)
				}
			}
			return nil
		}
		if err := link(nd.PushTo, n.AddPushDestination, "push_to"); err != nil {
			return nil, err
		}
		if err := link(nd.BufferedPushTo, n.AddBufferedPushDestination, "buffered_push_to"); err != nil {
			return nil, err
		}
		if err := link(nd.PullFrom, n.AddPullSource, "pull_from"); err != nil {
			return nil, err
		}
		if err := link(nd.BufferedPullFrom, n.AddBufferedPullSource, "buffered_pull_from"); err != nil {
			return nil, err
		}
		if err := link(nd.DependsOn, n.AddDependency, "depends_on"); err != nil {
			return nil, err
		}
	}

	logger.Debug("Pipeline built.", "pipeline", def.Name)
	return order, nil
}

// applyTuning applies the optional memory and progress attributes.
func applyTuning(n *node.Node, nd *NodeDef) {
	if nd.MinMemory != nil {
		n.SetMinimumMemory(*nd.MinMemory)
	}
	if nd.MaxMemory != nil {
		n.SetMaximumMemory(*nd.MaxMemory)
	}
	if nd.MemoryFraction != nil {
		n.SetMemoryFraction(*nd.MemoryFraction)
	}
	if nd.Steps != nil {
		n.SetSteps(*nd.Steps)
	}
}
