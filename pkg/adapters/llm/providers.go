package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/quorum/pkg/oracle"
	"github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino-ext/components/model/openai"
)

// Supported providers.
const (
	ProviderDeepSeek = "deepseek"
	ProviderOpenAI   = "openai"
	ProviderOllama   = "ollama"
)

// Config selects and configures one chat model backend.
type Config struct {
	Provider string
	Model    string
	BaseURL  string
	APIKey   string
}

// NewChatModel builds the eino chat model for cfg.Provider.
func NewChatModel(ctx context.Context, cfg Config) (ChatModel, error) {
	switch cfg.Provider {
	case ProviderDeepSeek, "":
		m, err := deepseek.NewChatModel(ctx, &deepseek.ChatModelConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   orDefault(cfg.Model, "deepseek-chat"),
		})
		if err != nil {
			return nil, fmt.Errorf("error creating deepseek chat model: %w", err)
		}
		return m, nil

	case ProviderOpenAI:
		m, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   orDefault(cfg.Model, "gpt-4o-mini"),
		})
		if err != nil {
			return nil, fmt.Errorf("error creating openai chat model: %w", err)
		}
		return m, nil

	case ProviderOllama:
		m, err := ollama.NewChatModel(ctx, &ollama.ChatModelConfig{
			BaseURL: orDefault(cfg.BaseURL, "http://localhost:11434"),
			Model:   orDefault(cfg.Model, "llama3"),
		})
		if err != nil {
			return nil, fmt.Errorf("error creating ollama chat model: %w", err)
		}
		return m, nil
	}
	return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
}

// Register builds one oracle per config and adds it to the registry under
// its provider name.
func Register(ctx context.Context, reg *oracle.Registry, logger *slog.Logger, cfgs ...Config) error {
	for _, cfg := range cfgs {
		m, err := NewChatModel(ctx, cfg)
		if err != nil {
			return err
		}
		name := orDefault(cfg.Provider, ProviderDeepSeek)
		reg.Register(name, New(m, name, WithLogger(logger)))
	}
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
