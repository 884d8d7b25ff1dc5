// Package llm implements the risk oracle on top of eino chat models.
//
// The oracle sends the instructions and the rendered request fields to a
// chat model and parses its three-line answer with oracle.ParseAssessment.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/quorum/internal/logging"
	"github.com/aretw0/quorum/pkg/domain"
	"github.com/aretw0/quorum/pkg/oracle"
	"github.com/aretw0/quorum/pkg/ports"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

// ChatModel is the part of an eino chat model the oracle needs.
type ChatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// Oracle asks a chat model for a risk assessment.
type Oracle struct {
	model    ChatModel
	provider string
	template prompt.ChatTemplate
	logger   *slog.Logger
}

// Option configures an Oracle.
type Option func(*Oracle)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Oracle) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New wraps a chat model. provider is reported in every assessment.
func New(m ChatModel, provider string, opts ...Option) *Oracle {
	o := &Oracle{
		model:    m,
		provider: provider,
		template: prompt.FromMessages(schema.FString,
			schema.SystemMessage(oracle.Instructions),
			schema.UserMessage("{request}"),
		),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Evaluate implements ports.RiskOracle.
func (o *Oracle) Evaluate(ctx context.Context, req ports.RiskRequest) (domain.RiskAssessment, error) {
	messages, err := o.template.Format(ctx, map[string]any{
		"request": oracle.BuildPrompt(req),
	})
	if err != nil {
		return domain.RiskAssessment{}, fmt.Errorf("error formatting risk prompt: %w", err)
	}

	started := time.Now()
	out, err := o.model.Generate(ctx, messages)
	if err != nil {
		return domain.RiskAssessment{}, fmt.Errorf("error generating risk assessment: %w", err)
	}
	o.logger.DebugContext(ctx, "model answered",
		"provider", o.provider,
		"node_id", req.NodeID,
		"duration", time.Since(started),
		"length", len(out.Content),
	)

	a, err := oracle.ParseAssessment(out.Content)
	if err != nil {
		return domain.RiskAssessment{}, err
	}
	a.Provider = o.provider
	return a, nil
}
