package flow

import (
	"slices"

	"github.com/aretw0/quorum/pkg/condition"
	"github.com/aretw0/quorum/pkg/domain"
)

// Node is a validated node of a Graph.
type Node struct {
	ID   string
	Type domain.NodeType
	Name string

	// Next is the single successor. Empty for branch and end nodes.
	// For merge nodes it is the join target.
	Next string

	Config Config
}

func (n *Node) clone() *Node {
	c := *n
	switch cfg := n.Config.(type) {
	case RiskEvalConfig:
		cfg.Fields = slices.Clone(cfg.Fields)
		c.Config = cfg
	case BranchConfig:
		branches := make([]Branch, len(cfg.Branches))
		for i, b := range cfg.Branches {
			branches[i] = Branch{Next: b.Next}
			if b.Condition != nil {
				cond := *b.Condition
				branches[i].Condition = &cond
			}
		}
		c.Config = BranchConfig{Branches: branches}
	case MergeConfig:
		cfg.Paths = slices.Clone(cfg.Paths)
		c.Config = cfg
	}
	return &c
}

// Accept dispatches the node to the visitor method matching its variant.
func (n *Node) Accept(v Visitor) error {
	return n.Config.accept(n, v)
}

// Label returns the display name, falling back to the id.
func (n *Node) Label() string {
	if n.Name != "" {
		return n.Name
	}
	return n.ID
}

// Config is the closed set of per-variant node configurations.
// Only the types declared in this package implement it.
type Config interface {
	NodeType() domain.NodeType
	accept(n *Node, v Visitor) error
}

// Visitor has one method per node variant. Introducing a new Config type
// means adding a method here, so every visitor stops compiling until it
// handles the new variant.
type Visitor interface {
	VisitStart(n *Node, c StartConfig) error
	VisitApprove(n *Node, c ApproveConfig) error
	VisitRiskEval(n *Node, c RiskEvalConfig) error
	VisitBranch(n *Node, c BranchConfig) error
	VisitMerge(n *Node, c MergeConfig) error
	VisitEnd(n *Node, c EndConfig) error
}

// StartConfig configures the entry node.
type StartConfig struct{}

// ApproveConfig configures a sign-off step.
type ApproveConfig struct {
	Approver string
}

// RiskEvalConfig configures an oracle consultation.
type RiskEvalConfig struct {
	// Fields are the context fields handed to the oracle.
	Fields []string
	// Provider selects the oracle backend, e.g. "deepseek". Empty means the default.
	Provider string
}

// Branch is one ordered routing rule.
type Branch struct {
	Condition *condition.Condition
	Next      string
}

// BranchConfig configures a routing node.
type BranchConfig struct {
	Branches []Branch
}

// MergeConfig configures a fork/join barrier.
type MergeConfig struct {
	// Paths are the entry nodes of the lanes that run concurrently.
	Paths []string
	// BestEffort lets the join continue with the lanes that succeeded.
	BestEffort bool
}

// EndConfig configures a terminal node.
type EndConfig struct{}

func (StartConfig) NodeType() domain.NodeType    { return domain.NodeTypeStart }
func (ApproveConfig) NodeType() domain.NodeType  { return domain.NodeTypeApprove }
func (RiskEvalConfig) NodeType() domain.NodeType { return domain.NodeTypeRiskEval }
func (BranchConfig) NodeType() domain.NodeType   { return domain.NodeTypeBranch }
func (MergeConfig) NodeType() domain.NodeType    { return domain.NodeTypeMerge }
func (EndConfig) NodeType() domain.NodeType      { return domain.NodeTypeEnd }

func (c StartConfig) accept(n *Node, v Visitor) error    { return v.VisitStart(n, c) }
func (c ApproveConfig) accept(n *Node, v Visitor) error  { return v.VisitApprove(n, c) }
func (c RiskEvalConfig) accept(n *Node, v Visitor) error { return v.VisitRiskEval(n, c) }
func (c BranchConfig) accept(n *Node, v Visitor) error   { return v.VisitBranch(n, c) }
func (c MergeConfig) accept(n *Node, v Visitor) error    { return v.VisitMerge(n, c) }
func (c EndConfig) accept(n *Node, v Visitor) error      { return v.VisitEnd(n, c) }

// EdgeKind distinguishes how an edge is taken.
type EdgeKind string

const (
	// EdgeNext is the single linear successor.
	EdgeNext EdgeKind = "next"
	// EdgeBranch is a conditional routing edge.
	EdgeBranch EdgeKind = "branch"
	// EdgeFork starts a merge lane.
	EdgeFork EdgeKind = "fork"
)

// Edge is an outgoing connection of a node.
type Edge struct {
	Kind      EdgeKind
	Condition *condition.Condition // nil unless Kind is EdgeBranch
	Target    string
}

func edgesOf(n *Node) []Edge {
	switch c := n.Config.(type) {
	case BranchConfig:
		edges := make([]Edge, 0, len(c.Branches))
		for _, b := range c.Branches {
			edges = append(edges, Edge{Kind: EdgeBranch, Condition: b.Condition, Target: b.Next})
		}
		return edges
	case MergeConfig:
		edges := make([]Edge, 0, len(c.Paths)+1)
		for _, p := range c.Paths {
			edges = append(edges, Edge{Kind: EdgeFork, Target: p})
		}
		if n.Next != "" {
			edges = append(edges, Edge{Kind: EdgeNext, Target: n.Next})
		}
		return edges
	}
	if n.Next == "" {
		return nil
	}
	return []Edge{{Kind: EdgeNext, Target: n.Next}}
}
