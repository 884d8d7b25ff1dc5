package domain

import "fmt"

// NodeType identifies one of the closed set of node variants a flow can contain.
type NodeType string

const (
	// NodeTypeStart is the single entry point of a flow.
	NodeTypeStart NodeType = "start"
	// NodeTypeApprove records a (synchronous) sign-off.
	NodeTypeApprove NodeType = "approve"
	// NodeTypeRiskEval consults the risk oracle and stores the assessment.
	NodeTypeRiskEval NodeType = "risk_eval"
	// NodeTypeBranch routes to exactly one target based on ordered conditions.
	NodeTypeBranch NodeType = "branch"
	// NodeTypeMerge forks concurrent sub-paths and joins them.
	NodeTypeMerge NodeType = "merge"
	// NodeTypeEnd is terminal.
	NodeTypeEnd NodeType = "end"
)

// NodeTypes lists every known variant in declaration order.
var NodeTypes = []NodeType{
	NodeTypeStart,
	NodeTypeApprove,
	NodeTypeRiskEval,
	NodeTypeBranch,
	NodeTypeMerge,
	NodeTypeEnd,
}

// ParseNodeType converts a document type name into a NodeType.
func ParseNodeType(s string) (NodeType, error) {
	for _, t := range NodeTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown node type %q", s)
}

func (t NodeType) String() string {
	return string(t)
}
