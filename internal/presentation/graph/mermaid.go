// Package graph renders flows as Mermaid flowcharts.
package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/quorum/pkg/domain"
	"github.com/aretw0/quorum/pkg/flow"
)

// Overlay marks the nodes of one run on the chart.
type Overlay struct {
	Visited []string
	// Final is the end node of a completed run.
	Final string
	// Failed is the node a failed run stopped at.
	Failed string
}

// OverlayFromResult builds the overlay of a finished run.
func OverlayFromResult(res *domain.ExecutionResult) *Overlay {
	if res == nil {
		return nil
	}
	o := &Overlay{Visited: res.Visited(), Final: res.FinalNodeID}
	if res.Error != nil {
		o.Failed = res.Error.NodeID
	}
	return o
}

// GenerateMermaid produces Mermaid flowchart syntax for g.
// Shapes follow the node type:
//   - start: ((circle))
//   - end: (((double circle)))
//   - approve: [/parallelogram/], labelled with the approver
//   - risk_eval: {{hexagon}}
//   - branch: {rhombus}
//   - merge: [[subroutine]]
//
// Fork edges are dotted and the merge's join edge is thick.
func GenerateMermaid(g *flow.Graph, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, n := range g.Nodes() {
		safeID := sanitizeMermaidID(n.ID)
		label := escape(n.Label())

		opener, closer := "[", "]"
		switch c := n.Config.(type) {
		case flow.StartConfig:
			opener, closer = "((", "))"
		case flow.EndConfig:
			opener, closer = "(((", ")))"
		case flow.ApproveConfig:
			opener, closer = "[/", "/]"
			label = fmt.Sprintf("%s <br/> %s", label, escape(c.Approver))
		case flow.RiskEvalConfig:
			opener, closer = "{{", "}}"
		case flow.BranchConfig:
			opener, closer = "{", "}"
		case flow.MergeConfig:
			opener, closer = "[[", "]]"
			if c.BestEffort {
				label += " <br/> best effort"
			}
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, label, closer)

		edges, _ := g.Outgoing(n.ID)
		for _, e := range edges {
			safeTo := sanitizeMermaidID(e.Target)
			switch {
			case e.Kind == flow.EdgeBranch && e.Condition != nil:
				fmt.Fprintf(&sb, "    %s -- \"%s\" --> %s\n", safeID, escape(e.Condition.String()), safeTo)
			case e.Kind == flow.EdgeFork:
				fmt.Fprintf(&sb, "    %s -.-> %s\n", safeID, safeTo)
			case n.Type == domain.NodeTypeMerge:
				fmt.Fprintf(&sb, "    %s == join ==> %s\n", safeID, safeTo)
			default:
				fmt.Fprintf(&sb, "    %s --> %s\n", safeID, safeTo)
			}
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Black text keeps the overlay readable on light and dark themes.
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef final fill:#c8e6c9,stroke:#2e7d32,stroke-width:4px,color:#000;\n")
		sb.WriteString("    classDef failed fill:#ffcdd2,stroke:#c62828,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.Visited {
			if _, err := g.NodeByID(id); err != nil || seen[id] || id == overlay.Failed {
				continue
			}
			seen[id] = true
			fmt.Fprintf(&sb, "    class %s visited;\n", sanitizeMermaidID(id))
		}
		if overlay.Final != "" {
			fmt.Fprintf(&sb, "    class %s final;\n", sanitizeMermaidID(overlay.Final))
		}
		if overlay.Failed != "" {
			fmt.Fprintf(&sb, "    class %s failed;\n", sanitizeMermaidID(overlay.Failed))
		}
	}

	return sb.String()
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", " ", "_")
	return r.Replace(id)
}
