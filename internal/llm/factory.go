package llm

import (
	"context"
	"fmt"
	"time"
)

// Config selects and configures the generative and embedding services.
type Config struct {
	// Provider is "openai" or "none".
	Provider       string
	APIKey         string
	BaseURL        string
	ChatModel      string
	EmbeddingModel string
	Timeout        time.Duration
	OnStateChange  func(name, from, to string)
}

// NewClients builds the text and embedding generators for the provider.
// The "none" provider returns clients that always fail with ErrDisabled, so
// every caller degrades to its fallback text.
func NewClients(cfg Config) (TextGenerator, EmbeddingGenerator, error) {
	switch cfg.Provider {
	case "openai":
		if cfg.APIKey == "" {
			return nil, nil, fmt.Errorf("openai provider requires an API key")
		}
		oc := OpenAIConfig{
			APIKey:         cfg.APIKey,
			BaseURL:        cfg.BaseURL,
			ChatModel:      cfg.ChatModel,
			EmbeddingModel: cfg.EmbeddingModel,
			Timeout:        cfg.Timeout,
			OnStateChange:  cfg.OnStateChange,
		}
		return NewOpenAIClient(oc), NewOpenAIEmbeddingClient(oc), nil
	case "none", "":
		return disabledClient{}, disabledClient{}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported LLM provider: %q", cfg.Provider)
	}
}

type disabledClient struct{}

func (disabledClient) Complete(context.Context, Prompt) (string, error) { return "", ErrDisabled }
func (disabledClient) Embed(context.Context, string) ([]float32, error) { return nil, ErrDisabled }
func (disabledClient) GetModel() string                                 { return "none" }
