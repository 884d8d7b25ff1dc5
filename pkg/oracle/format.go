package oracle

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/aretw0/quorum/pkg/domain"
	"github.com/aretw0/quorum/pkg/ports"
)

// ErrMalformedResponse is returned when a model answer has no usable risk level.
var ErrMalformedResponse = errors.New("malformed oracle response")

// Line labels of the response format. Models answer in either language.
var (
	levelLabels     = []string{"风险等级", "risk level", "risk"}
	pathLabels      = []string{"推荐路径", "recommended path", "path"}
	rationaleLabels = []string{"建议", "rationale", "suggestion"}
)

// Instructions is the system prompt sent to language models.
const Instructions = `You are an enterprise approval assistant. Assess the risk of the request below.
Decide the risk level (high, medium or low; 高, 中 or 低 are also accepted), recommend an approval path and give a short rationale.
Answer with exactly three lines:
Risk Level: <high|medium|low>
Recommended Path: <approval node>
Rationale: <one sentence>`

// BuildPrompt renders the request fields, one per line, sorted by name.
func BuildPrompt(req ports.RiskRequest) string {
	names := make([]string, 0, len(req.Fields))
	for name := range req.Fields {
		names = append(names, name)
	}
	slices.Sort(names)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Flow: %s\nStep: %s\n", req.FlowID, req.NodeID)
	sb.WriteString("Request:\n")
	for _, name := range names {
		fmt.Fprintf(&sb, "- %s: %v\n", name, req.Fields[name])
	}
	if len(names) == 0 {
		sb.WriteString("- (no fields provided)\n")
	}
	return sb.String()
}

// ParseAssessment reads the three-line answer format. Labels are matched
// case-insensitively, ASCII and full-width colons are both accepted, and
// unknown lines are ignored. A missing or unknown level is an error.
func ParseAssessment(text string) (domain.RiskAssessment, error) {
	var (
		a        domain.RiskAssessment
		rawLevel string
	)
	for _, line := range strings.Split(text, "\n") {
		label, value, ok := splitLine(line)
		if !ok {
			continue
		}
		switch {
		case hasLabel(levelLabels, label):
			rawLevel = value
		case hasLabel(pathLabels, label):
			a.RecommendedPath = value
		case hasLabel(rationaleLabels, label):
			a.Rationale = value
		}
	}

	if rawLevel == "" {
		return domain.RiskAssessment{}, fmt.Errorf("%w: no risk level line", ErrMalformedResponse)
	}
	level, err := domain.ParseRiskLevel(strings.Trim(rawLevel, "*`<> "))
	if err != nil {
		return domain.RiskAssessment{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	a.Level = level
	return a, nil
}

func splitLine(line string) (string, string, bool) {
	line = strings.TrimSpace(strings.ReplaceAll(line, "：", ":"))
	label, value, ok := strings.Cut(line, ":")
	if !ok {
		return "", "", false
	}
	label = strings.ToLower(strings.Trim(label, "*-# "))
	return label, strings.TrimSpace(value), true
}

func hasLabel(labels []string, label string) bool {
	return slices.Contains(labels, label)
}
