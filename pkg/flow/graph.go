package flow

import (
	"github.com/aretw0/quorum/pkg/domain"
)

// Graph is an immutable, validated flow.
// It is safe for concurrent use by any number of runs.
type Graph struct {
	flowID  string
	name    string
	version string
	start   string
	nodes   map[string]*Node
	order   []string
}

func (g *Graph) FlowID() string      { return g.flowID }
func (g *Graph) Name() string        { return g.name }
func (g *Graph) Version() string     { return g.version }
func (g *Graph) StartNodeID() string { return g.start }
func (g *Graph) Len() int            { return len(g.order) }

// Ref returns "flow_id@version".
func (g *Graph) Ref() string {
	return Ref(g.flowID, g.version)
}

// Ref formats a flow reference.
func Ref(flowID, version string) string {
	if version == "" {
		return flowID
	}
	return flowID + "@" + version
}

// NodeByID returns a copy of the node with the given id. Changing the copy
// does not affect the graph.
func (g *Graph) NodeByID(id string) (*Node, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, &domain.NotFoundError{NodeID: id}
	}
	return n.clone(), nil
}

// Nodes returns copies of the nodes in declaration order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id].clone())
	}
	return out
}

// Outgoing returns the ordered outgoing edges of a node.
// Branch edges keep their declaration order; merge nodes list their fork
// edges first and the join edge last.
func (g *Graph) Outgoing(id string) ([]Edge, error) {
	n, err := g.NodeByID(id)
	if err != nil {
		return nil, err
	}
	return edgesOf(n), nil
}

// Document re-serializes the graph. Conditions are emitted in canonical form.
func (g *Graph) Document() *Document {
	doc := &Document{
		FlowID:  g.flowID,
		Name:    g.name,
		Version: g.version,
		Nodes:   make([]NodeDocument, 0, len(g.order)),
	}
	for _, n := range g.Nodes() {
		nd := NodeDocument{
			ID:   n.ID,
			Type: string(n.Type),
			Name: n.Name,
			Next: n.Next,
		}
		switch c := n.Config.(type) {
		case ApproveConfig:
			nd.Approver = c.Approver
		case RiskEvalConfig:
			nd.Params = map[string]any{"fields": append([]string(nil), c.Fields...)}
			if c.Provider != "" {
				nd.Params["llm_provider"] = c.Provider
			}
		case BranchConfig:
			for _, b := range c.Branches {
				nd.Branches = append(nd.Branches, BranchDocument{Condition: b.Condition.String(), Next: b.Next})
			}
		case MergeConfig:
			nd.Params = map[string]any{"paths": append([]string(nil), c.Paths...)}
			if c.BestEffort {
				nd.Params["best_effort"] = true
			}
		}
		doc.Nodes = append(doc.Nodes, nd)
	}
	return doc
}
