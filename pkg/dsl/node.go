package dsl

import (
	"github.com/aretw0/quorum/pkg/domain"
	"github.com/aretw0/quorum/pkg/flow"
)

// NodeBuilder provides a fluent API for configuring a node.
type NodeBuilder struct {
	node    flow.NodeDocument
	builder *Builder
}

// Named sets the display label of the node.
func (n *NodeBuilder) Named(name string) *NodeBuilder {
	n.node.Name = name
	return n
}

// Start marks the node as the entry point.
func (n *NodeBuilder) Start() *NodeBuilder {
	n.node.Type = string(domain.NodeTypeStart)
	return n
}

// Approve marks the node as a sign-off by the given approver.
func (n *NodeBuilder) Approve(approver string) *NodeBuilder {
	n.node.Type = string(domain.NodeTypeApprove)
	n.node.Approver = approver
	return n
}

// RiskEval marks the node as an oracle consultation reading the given fields.
func (n *NodeBuilder) RiskEval(fields ...string) *NodeBuilder {
	n.node.Type = string(domain.NodeTypeRiskEval)
	n.param("fields", fields)
	return n
}

// Provider selects the oracle provider of a risk_eval node.
func (n *NodeBuilder) Provider(name string) *NodeBuilder {
	n.param("llm_provider", name)
	return n
}

// Merge marks the node as a fork/join over the given lane entry nodes.
func (n *NodeBuilder) Merge(paths ...string) *NodeBuilder {
	n.node.Type = string(domain.NodeTypeMerge)
	n.param("paths", paths)
	return n
}

// BestEffort lets a merge continue with the lanes that succeeded.
func (n *NodeBuilder) BestEffort() *NodeBuilder {
	n.param("best_effort", true)
	return n
}

// Go sets the single successor (the join target for merge nodes).
func (n *NodeBuilder) Go(target string) *NodeBuilder {
	n.node.Next = target
	return n
}

// Branch appends a routing rule and marks the node as a branch node.
func (n *NodeBuilder) Branch(condition string, target string) *NodeBuilder {
	n.node.Type = string(domain.NodeTypeBranch)
	n.node.Branches = append(n.node.Branches, flow.BranchDocument{
		Condition: condition,
		Next:      target,
	})
	return n
}

// End marks the node as terminal.
func (n *NodeBuilder) End() *NodeBuilder {
	n.node.Type = string(domain.NodeTypeEnd)
	n.node.Next = ""
	return n
}

// Set writes an arbitrary params key. Load rejects keys the node type does not know.
func (n *NodeBuilder) Set(key string, value any) *NodeBuilder {
	n.param(key, value)
	return n
}

// Build returns the underlying node document.
// This is primarily used by the Builder, but exposed for advanced usage.
func (n *NodeBuilder) Build() flow.NodeDocument {
	return n.node
}

func (n *NodeBuilder) param(key string, value any) {
	if n.node.Params == nil {
		n.node.Params = make(map[string]any)
	}
	n.node.Params[key] = value
}
