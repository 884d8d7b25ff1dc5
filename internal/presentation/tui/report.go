package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/quorum/pkg/domain"
)

// TraceMarkdown renders a run result as a markdown report.
func TraceMarkdown(res *domain.ExecutionResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Run `%s`\n\n", res.InstanceID)
	fmt.Fprintf(&sb, "- **Flow:** %s", res.FlowID)
	if res.FlowVersion != "" {
		fmt.Fprintf(&sb, "@%s", res.FlowVersion)
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "- **Status:** %s\n", res.Status)
	if res.FinalNodeID != "" {
		fmt.Fprintf(&sb, "- **Final node:** %s\n", res.FinalNodeID)
	}
	if !res.StartedAt.IsZero() && !res.FinishedAt.IsZero() {
		fmt.Fprintf(&sb, "- **Duration:** %s\n", res.FinishedAt.Sub(res.StartedAt))
	}
	if res.Error != nil {
		fmt.Fprintf(&sb, "- **Error:** `%s` at `%s`: %s\n", res.Error.Kind, res.Error.NodeID, cell(res.Error.Message))
	}

	sb.WriteString("\n## Trace\n\n")
	sb.WriteString("| # | Node | Type | Lane | Writes | Error |\n")
	sb.WriteString("|---|------|------|------|--------|-------|\n")
	for i, e := range res.Trace {
		fmt.Fprintf(&sb, "| %d | %s | %s | %s | %s | %s |\n",
			i+1, e.NodeID, e.NodeType, e.Path, cell(writes(e.ContextOut)), cell(e.Error))
	}

	if res.Context != nil && res.Context.Risk != nil {
		r := res.Context.Risk
		sb.WriteString("\n## Risk assessment\n\n")
		fmt.Fprintf(&sb, "- **Level:** %s\n", r.Level)
		if r.RecommendedPath != "" {
			fmt.Fprintf(&sb, "- **Recommended path:** %s\n", r.RecommendedPath)
		}
		if r.Rationale != "" {
			fmt.Fprintf(&sb, "- **Rationale:** %s\n", r.Rationale)
		}
		if r.Provider != "" {
			fmt.Fprintf(&sb, "- **Provider:** %s\n", r.Provider)
		}
	}
	return sb.String()
}

func writes(d *domain.ContextDelta) string {
	if d.IsEmpty() {
		return ""
	}
	parts := make([]string, 0, len(d.Fields)+1)
	keys := make([]string, 0, len(d.Fields))
	for k := range d.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, d.Fields[k]))
	}
	if d.Risk != nil {
		parts = append(parts, "risk="+string(d.Risk.Level))
	}
	return strings.Join(parts, ", ")
}

// cell keeps a value inside one markdown table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
