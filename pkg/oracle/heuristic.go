package oracle

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/quorum/pkg/domain"
	"github.com/aretw0/quorum/pkg/ports"
)

// HeuristicProvider is the provider name the heuristic oracle reports.
const HeuristicProvider = "heuristic"

// Heuristic is an offline, deterministic oracle. It grades the amount field
// against two thresholds and raises the level by one step for urgent requests
// or applicants with a recorded violation.
type Heuristic struct {
	HighAmount   float64
	MediumAmount float64
}

// NewHeuristic returns a heuristic with the thresholds used by the demo flows.
func NewHeuristic() *Heuristic {
	return &Heuristic{HighAmount: 10000, MediumAmount: 2000}
}

// Evaluate implements ports.RiskOracle.
func (h *Heuristic) Evaluate(ctx context.Context, req ports.RiskRequest) (domain.RiskAssessment, error) {
	if err := ctx.Err(); err != nil {
		return domain.RiskAssessment{}, err
	}

	amount, _ := number(req.Fields["amount"])
	rank := 1
	var reasons []string
	switch {
	case amount >= h.HighAmount:
		rank = 3
		reasons = append(reasons, fmt.Sprintf("amount %v is at or above %v", amount, h.HighAmount))
	case amount >= h.MediumAmount:
		rank = 2
		reasons = append(reasons, fmt.Sprintf("amount %v is at or above %v", amount, h.MediumAmount))
	default:
		reasons = append(reasons, "amount is small")
	}

	if urgent(req.Fields["urgency"]) {
		rank++
		reasons = append(reasons, "request is urgent")
	}
	if history, ok := req.Fields["applicant_history"].(string); ok && flagged(history) {
		rank++
		reasons = append(reasons, "applicant has a recorded violation")
	}
	rank = min(rank, 3)

	level := []domain.RiskLevel{domain.RiskLow, domain.RiskMedium, domain.RiskHigh}[rank-1]
	return domain.RiskAssessment{
		Level:           level,
		RecommendedPath: recommendedPath(level),
		Rationale:       strings.Join(reasons, "; "),
		Provider:        HeuristicProvider,
	}, nil
}

func recommendedPath(level domain.RiskLevel) string {
	switch level {
	case domain.RiskHigh:
		return "cfo_approve"
	case domain.RiskMedium:
		return "manager_approve"
	default:
		return "auto_approve"
	}
}

func number(v any) (float64, bool) {
	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return f, err == nil
	}
	return domain.ToFloat(v)
}

func urgent(v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "high" || s == "urgent" || s == "高"
}

func flagged(history string) bool {
	h := strings.ToLower(history)
	return strings.Contains(h, "violation") || strings.Contains(history, "违规")
}
