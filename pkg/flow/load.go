package flow

import (
	"fmt"
	"os"
	"strings"

	"github.com/aretw0/quorum/pkg/condition"
	"github.com/aretw0/quorum/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// Violation codes reported in a domain.GraphValidationError.
const (
	CodeMalformedFlow      = "malformed_flow"
	CodeDuplicateID        = "duplicate_id"
	CodeMissingStart       = "missing_start"
	CodeDuplicateStart     = "duplicate_start"
	CodeDanglingReference  = "dangling_reference"
	CodeCycle              = "cycle"
	CodeMalformedNode      = "malformed_node"
	CodeEmptyBranch        = "empty_branch"
	CodeMalformedCondition = "malformed_condition"
	CodeMissingFields      = "missing_fields"
	CodeMergeOverlap       = "merge_overlap"
	CodeMergeEscape        = "merge_escape"
)

type riskEvalParams struct {
	Fields   []string `mapstructure:"fields"`
	Provider string   `mapstructure:"llm_provider"`
}

type mergeParams struct {
	Paths      []string `mapstructure:"paths"`
	BestEffort bool     `mapstructure:"best_effort"`
}

// LoadBytes parses and loads a document in one step.
func LoadBytes(data []byte, format Format) (*Graph, error) {
	doc, err := Parse(data, format)
	if err != nil {
		return nil, &domain.GraphValidationError{
			Violations: []domain.Violation{{Code: CodeMalformedFlow, Message: err.Error()}},
		}
	}
	return Load(doc)
}

// Load validates a document and builds the immutable Graph.
// Every violation found is reported; no Graph is returned alongside an error.
func Load(doc *Document) (*Graph, error) {
	v := &violations{}
	if doc == nil {
		v.add(CodeMalformedFlow, "", "document is empty")
		return nil, v.err("")
	}
	if strings.TrimSpace(doc.FlowID) == "" {
		v.add(CodeMalformedFlow, "", "flow_id is required")
	}

	g := &Graph{
		flowID:  doc.FlowID,
		name:    doc.Name,
		version: doc.Version,
		nodes:   make(map[string]*Node, len(doc.Nodes)),
	}

	declared := make(map[string]bool, len(doc.Nodes))
	var starts []string
	for i, nd := range doc.Nodes {
		if strings.TrimSpace(nd.ID) == "" {
			v.add(CodeMalformedNode, "", fmt.Sprintf("node #%d has no id", i))
			continue
		}
		if declared[nd.ID] {
			v.add(CodeDuplicateID, nd.ID, "id is declared more than once")
			continue
		}
		declared[nd.ID] = true

		n := buildNode(nd, v)
		if n == nil {
			continue
		}
		g.nodes[n.ID] = n
		g.order = append(g.order, n.ID)
		if n.Type == domain.NodeTypeStart {
			starts = append(starts, n.ID)
		}
	}

	switch len(starts) {
	case 0:
		v.add(CodeMissingStart, "", "no start node declared")
	case 1:
		g.start = starts[0]
	default:
		v.add(CodeDuplicateStart, "", fmt.Sprintf("%d start nodes declared: %s", len(starts), strings.Join(starts, ", ")))
	}

	for _, n := range g.Nodes() {
		for _, e := range edgesOf(n) {
			if !declared[e.Target] {
				v.add(CodeDanglingReference, n.ID, fmt.Sprintf("%s target %q does not exist", e.Kind, e.Target))
			}
		}
	}

	if g.start != "" {
		if at, found := g.findCycle(g.start); found {
			v.add(CodeCycle, at, "node is reachable from itself")
		} else {
			g.checkMerges(v)
		}
	}

	if !v.empty() {
		return nil, v.err(doc.FlowID)
	}
	return g, nil
}

func buildNode(nd NodeDocument, v *violations) *Node {
	t, err := domain.ParseNodeType(nd.Type)
	if err != nil {
		v.add(CodeMalformedNode, nd.ID, err.Error())
		return nil
	}
	n := &Node{ID: nd.ID, Type: t, Name: nd.Name, Next: nd.Next}

	if nd.Next != "" && len(nd.Branches) > 0 {
		v.add(CodeMalformedNode, nd.ID, "node has both next and branches")
	}
	if t != domain.NodeTypeApprove && nd.Approver != "" {
		v.add(CodeMalformedNode, nd.ID, "approver is only valid on approve nodes")
	}
	if t != domain.NodeTypeRiskEval && t != domain.NodeTypeMerge && len(nd.Params) > 0 {
		v.add(CodeMalformedNode, nd.ID, fmt.Sprintf("params are not valid on %s nodes", t))
	}
	if t != domain.NodeTypeBranch && len(nd.Branches) > 0 {
		v.add(CodeMalformedNode, nd.ID, "branches are only valid on branch nodes")
	}

	requireNext := func() {
		if nd.Next == "" {
			v.add(CodeMalformedNode, nd.ID, fmt.Sprintf("%s nodes require next", t))
		}
	}

	switch t {
	case domain.NodeTypeStart:
		requireNext()
		n.Config = StartConfig{}

	case domain.NodeTypeApprove:
		requireNext()
		if strings.TrimSpace(nd.Approver) == "" {
			v.add(CodeMalformedNode, nd.ID, "approve nodes require an approver")
		}
		n.Config = ApproveConfig{Approver: nd.Approver}

	case domain.NodeTypeRiskEval:
		requireNext()
		var p riskEvalParams
		if err := decodeParams(nd.Params, &p); err != nil {
			v.add(CodeMalformedNode, nd.ID, fmt.Sprintf("params: %v", err))
		}
		if len(p.Fields) == 0 {
			v.add(CodeMissingFields, nd.ID, "risk_eval nodes must declare the fields they read")
		}
		for _, f := range p.Fields {
			if strings.TrimSpace(f) == "" {
				v.add(CodeMissingFields, nd.ID, "field names must not be empty")
			}
		}
		n.Config = RiskEvalConfig{Fields: p.Fields, Provider: p.Provider}

	case domain.NodeTypeBranch:
		if nd.Next != "" && len(nd.Branches) == 0 {
			v.add(CodeMalformedNode, nd.ID, "branch nodes route through branches, not next")
		}
		if len(nd.Branches) == 0 {
			v.add(CodeEmptyBranch, nd.ID, "branch nodes need at least one branch")
		}
		cfg := BranchConfig{Branches: make([]Branch, 0, len(nd.Branches))}
		for i, b := range nd.Branches {
			cond, err := condition.Parse(b.Condition)
			if err != nil {
				v.add(CodeMalformedCondition, nd.ID, fmt.Sprintf("branch #%d: %v", i, err))
			}
			if b.Next == "" {
				v.add(CodeMalformedNode, nd.ID, fmt.Sprintf("branch #%d has no next", i))
			}
			cfg.Branches = append(cfg.Branches, Branch{Condition: cond, Next: b.Next})
		}
		n.Config = cfg

	case domain.NodeTypeMerge:
		requireNext()
		var p mergeParams
		if err := decodeParams(nd.Params, &p); err != nil {
			v.add(CodeMalformedNode, nd.ID, fmt.Sprintf("params: %v", err))
		}
		if len(p.Paths) == 0 {
			v.add(CodeMalformedNode, nd.ID, "merge nodes need at least one path")
		}
		n.Config = MergeConfig{Paths: p.Paths, BestEffort: p.BestEffort}

	case domain.NodeTypeEnd:
		if nd.Next != "" {
			v.add(CodeMalformedNode, nd.ID, "end nodes cannot have next")
		}
		n.Config = EndConfig{}
	}
	return n
}

func decodeParams(raw map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		Result:      out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

// findCycle runs a depth-first search from the given node and returns the
// first node found on a back edge.
func (g *Graph) findCycle(from string) (string, bool) {
	const (
		unvisited = iota
		inProgress
		done
	)
	state := make(map[string]int, len(g.nodes))

	var visit func(id string) (string, bool)
	visit = func(id string) (string, bool) {
		state[id] = inProgress
		for _, e := range edgesOf(g.nodes[id]) {
			if _, ok := g.nodes[e.Target]; !ok {
				continue
			}
			switch state[e.Target] {
			case inProgress:
				return e.Target, true
			case unvisited:
				if at, found := visit(e.Target); found {
					return at, true
				}
			}
		}
		state[id] = done
		return "", false
	}
	return visit(from)
}

// lane returns every node reachable from entry without passing through join.
func (g *Graph) lane(entry, join string) map[string]bool {
	seen := map[string]bool{}
	stack := []string{entry}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == join || seen[id] {
			continue
		}
		n, ok := g.nodes[id]
		if !ok {
			continue
		}
		seen[id] = true
		for _, e := range edgesOf(n) {
			stack = append(stack, e.Target)
		}
	}
	return seen
}

// checkMerges verifies that merge lanes are independent and all converge on the join.
func (g *Graph) checkMerges(v *violations) {
	for _, n := range g.Nodes() {
		mc, ok := n.Config.(MergeConfig)
		if !ok {
			continue
		}

		owner := map[string]string{}
		reported := map[string]bool{}
		listed := map[string]bool{}
		for _, p := range mc.Paths {
			if listed[p] {
				v.add(CodeMergeOverlap, n.ID, fmt.Sprintf("path %q is listed twice", p))
				continue
			}
			listed[p] = true
			if p == n.Next {
				v.add(CodeMalformedNode, n.ID, fmt.Sprintf("path %q is the join target itself", p))
				continue
			}

			reach := g.lane(p, n.Next)
			for _, id := range g.order {
				if !reach[id] {
					continue
				}
				if prev, taken := owner[id]; taken {
					key := prev + "|" + p
					if !reported[key] {
						reported[key] = true
						v.add(CodeMergeOverlap, n.ID, fmt.Sprintf("paths %q and %q both reach %q", prev, p, id))
					}
					continue
				}
				owner[id] = p
				if g.nodes[id].Type == domain.NodeTypeEnd {
					v.add(CodeMergeEscape, n.ID, fmt.Sprintf("path %q reaches end node %q before joining at %q", p, id, n.Next))
				}
			}
		}
	}
}

type violations struct {
	list []domain.Violation
}

func (v *violations) add(code, nodeID, msg string) {
	v.list = append(v.list, domain.Violation{Code: code, NodeID: nodeID, Message: msg})
}

func (v *violations) empty() bool {
	return len(v.list) == 0
}

func (v *violations) err(flowID string) error {
	return &domain.GraphValidationError{FlowID: flowID, Violations: v.list}
}

// LoadFile reads a document from disk, picking the format from the extension.
func LoadFile(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read flow file: %w", err)
	}
	return LoadBytes(data, FormatFromPath(path))
}
