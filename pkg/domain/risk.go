package domain

import (
	"fmt"
	"strings"
	"time"
)

// RiskLevel is the severity reported by a risk oracle.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// riskLabels maps every accepted spelling to its canonical level.
// The CJK labels are what the legacy evaluator prompt asks models to answer with.
var riskLabels = map[string]RiskLevel{
	"low":    RiskLow,
	"medium": RiskMedium,
	"high":   RiskHigh,
	"低":      RiskLow,
	"中":      RiskMedium,
	"高":      RiskHigh,
}

// ParseRiskLevel accepts high/medium/low (case-insensitive) or 高/中/低.
func ParseRiskLevel(s string) (RiskLevel, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if level, ok := riskLabels[key]; ok {
		return level, nil
	}
	return "", fmt.Errorf("invalid risk level %q", s)
}

// Rank orders levels by severity: low < medium < high.
// It returns 0 for an unknown level.
func (l RiskLevel) Rank() int {
	switch l {
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	default:
		return 0
	}
}

// Valid reports whether l is one of the canonical levels.
func (l RiskLevel) Valid() bool {
	return l.Rank() > 0
}

func (l RiskLevel) String() string {
	return string(l)
}

// RiskAssessment is the oracle's verdict for one risk_eval visit.
// RecommendedPath and Rationale are advisory; routing only looks at Level.
type RiskAssessment struct {
	Level           RiskLevel `json:"level" yaml:"level"`
	RecommendedPath string    `json:"recommended_path,omitempty" yaml:"recommended_path,omitempty"`
	Rationale       string    `json:"rationale,omitempty" yaml:"rationale,omitempty"`
	Provider        string    `json:"provider,omitempty" yaml:"provider,omitempty"`
}

// AssessmentRecord is a historical entry of one oracle verdict.
type AssessmentRecord struct {
	InstanceID string         `json:"instance_id"`
	FlowID     string         `json:"flow_id"`
	NodeID     string         `json:"node_id"`
	Assessment RiskAssessment `json:"assessment"`
	RecordedAt time.Time      `json:"recorded_at"`
}
