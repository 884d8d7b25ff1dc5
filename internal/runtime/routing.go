package runtime

import (
	"github.com/aretw0/quorum/pkg/condition"
	"github.com/aretw0/quorum/pkg/domain"
	"github.com/aretw0/quorum/pkg/flow"
)

// Route resolves the successor of a branch node: the target of the first
// branch, in declaration order, whose condition holds. It also returns the
// field values the evaluated conditions read.
func Route(n *flow.Node, c flow.BranchConfig, r condition.Resolver) (string, map[string]any, error) {
	in := make(map[string]any, len(c.Branches))
	tried := make([]string, 0, len(c.Branches))
	for _, b := range c.Branches {
		if v, ok := r.Lookup(b.Condition.Field); ok {
			in[b.Condition.Field] = v
		}
		if b.Condition.Eval(r) {
			return b.Next, in, nil
		}
		tried = append(tried, b.Condition.String())
	}
	return "", in, &domain.UnroutableBranchError{NodeID: n.ID, Conditions: tried}
}
