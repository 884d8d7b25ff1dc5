package dsl

import (
	"fmt"

	"github.com/aretw0/quorum/pkg/flow"
)

// Builder manages the flow construction.
type Builder struct {
	flowID  string
	name    string
	version string
	nodes   map[string]*NodeBuilder
	order   []string
}

// New creates a new flow builder.
func New(flowID, version string) *Builder {
	return &Builder{
		flowID:  flowID,
		version: version,
		nodes:   make(map[string]*NodeBuilder),
	}
}

// Named sets the display name of the flow.
func (b *Builder) Named(name string) *Builder {
	b.name = name
	return b
}

// Add creates a new node in the flow.
// If the node already exists, it returns the existing builder.
func (b *Builder) Add(id string) *NodeBuilder {
	if nb, ok := b.nodes[id]; ok {
		return nb
	}
	nb := &NodeBuilder{
		node: flow.NodeDocument{
			ID: id,
		},
		builder: b,
	}
	b.nodes[id] = nb
	b.order = append(b.order, id)
	return nb
}

// Document returns the wire document, nodes in insertion order.
func (b *Builder) Document() *flow.Document {
	doc := &flow.Document{
		FlowID:  b.flowID,
		Name:    b.name,
		Version: b.version,
		Nodes:   make([]flow.NodeDocument, 0, len(b.order)),
	}
	for _, id := range b.order {
		doc.Nodes = append(doc.Nodes, b.nodes[id].Build())
	}
	return doc
}

// Build validates the document and compiles it into a Graph.
func (b *Builder) Build() (*flow.Graph, error) {
	g, err := flow.Load(b.Document())
	if err != nil {
		return nil, fmt.Errorf("failed to build flow %q: %w", b.flowID, err)
	}
	return g, nil
}

// MustBuild is like Build but panics on error.
func (b *Builder) MustBuild() *flow.Graph {
	g, err := b.Build()
	if err != nil {
		panic(err)
	}
	return g
}
