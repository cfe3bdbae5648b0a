package pipeline

import (
	"fmt"
	"io"

	"github.com/vk/pipegrid/internal/node"
	"github.com/vk/pipegrid/internal/token"
)

// Plot writes the pipeline's item-flow structure in Graphviz dot format.
// Buffered edges render dashed, pull edges are labelled, and nodes
// carrying the buffered plot option render as boxes. With simplified
// set, nodes flagged SIMPLIFIED_HIDE are omitted along with their edges.
func (p *Pipeline) Plot(w io.Writer, simplified bool) error {
	if _, err := fmt.Fprintln(w, "digraph pipeline {"); err != nil {
		return err
	}

	hidden := make(map[token.ID]bool)
	for _, id := range p.m.IDs() {
		n, ok := p.nodeFor(id)
		if !ok {
			continue
		}
		if simplified && n.PlotOptions()&node.PlotSimplifiedHide != 0 {
			hidden[id] = true
			continue
		}
		name, _ := n.Name()
		if name == "" {
			name = fmt.Sprintf("node %d", id)
		}
		shape := "ellipse"
		if n.PlotOptions()&node.PlotBuffered != 0 {
			shape = "box"
		}
		if _, err := fmt.Fprintf(w, "\tn%d [label=%q, shape=%s];\n", id, name, shape); err != nil {
			return err
		}
	}

	for _, e := range p.m.Edges(token.Push, token.Pull) {
		from, to := e.From, e.To
		attrs := ""
		if e.Kind == token.Pull {
			// Item-flow direction: the pulled node produces.
			from, to = to, from
			attrs = `, label="pull"`
		}
		if hidden[from] || hidden[to] {
			continue
		}
		style := "solid"
		if e.Buffered {
			style = "dashed"
		}
		if _, err := fmt.Fprintf(w, "\tn%d -> n%d [style=%s%s];\n", from, to, style, attrs); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintln(w, "}")
	return err
}

func (p *Pipeline) nodeFor(id token.ID) (*node.Node, bool) {
	owner, ok := p.m.Get(id)
	if !ok {
		return nil, false
	}
	carrier, ok := owner.(node.Carrier)
	if !ok {
		return nil, false
	}
	return carrier.Base(), true
}
