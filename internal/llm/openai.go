package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultChatModel is the default model for personality sentences.
	DefaultChatModel = "gpt-4o-mini"
	// DefaultEmbeddingModel is the default model for tag embeddings.
	DefaultEmbeddingModel = string(openai.SmallEmbedding3)
)

// OpenAIConfig holds configuration for the OpenAI clients. BaseURL may point
// at any OpenAI-compatible API and must include the version path (".../v1").
type OpenAIConfig struct {
	APIKey         string
	BaseURL        string
	ChatModel      string        // default: gpt-4o-mini
	EmbeddingModel string        // default: text-embedding-3-small
	Timeout        time.Duration // default: 60s

	// OnStateChange is forwarded to both circuit breakers.
	OnStateChange func(name, from, to string)
}

func (c *OpenAIConfig) applyDefaults() {
	if c.ChatModel == "" {
		c.ChatModel = DefaultChatModel
	}
	if c.EmbeddingModel == "" {
		c.EmbeddingModel = DefaultEmbeddingModel
	}
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
}

func newOpenAIClient(cfg OpenAIConfig) *openai.Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return openai.NewClientWithConfig(clientConfig)
}

// OpenAIClient implements TextGenerator using the chat completions API.
type OpenAIClient struct {
	cfg            OpenAIConfig
	client         *openai.Client
	circuitBreaker *CircuitBreaker
}

// NewOpenAIClient creates a chat client guarded by its own circuit breaker.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	cfg.applyDefaults()
	return &OpenAIClient{
		cfg:    cfg,
		client: newOpenAIClient(cfg),
		circuitBreaker: NewCircuitBreakerWithConfig(CircuitBreakerConfig{
			Name:                 "openai-chat",
			MaxFailures:          3,
			Timeout:              30 * time.Second,
			HalfOpenMaxSuccesses: 2,
			OnStateChange:        cfg.OnStateChange,
		}),
	}
}

// Complete sends the prompt as a system + user exchange and returns the
// trimmed reply.
func (c *OpenAIClient) Complete(ctx context.Context, prompt Prompt) (string, error) {
	result, err := c.circuitBreaker.Execute(ctx, func() (interface{}, error) {
		return c.complete(ctx, prompt)
	})
	if err != nil {
		if errors.Is(err, ErrCircuitOpen) {
			return "", fmt.Errorf("openai circuit breaker open: %w", err)
		}
		return "", err
	}
	return result.(string), nil
}

func (c *OpenAIClient) complete(ctx context.Context, prompt Prompt) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if prompt.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: prompt.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt.Render()})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.cfg.ChatModel,
		Messages:    messages,
		MaxTokens:   prompt.MaxTokens,
		Temperature: prompt.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion (%s): %w", prompt.Name, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("openai returned an empty completion")
	}
	return text, nil
}

// GetModel returns the configured chat model name.
func (c *OpenAIClient) GetModel() string {
	return c.cfg.ChatModel
}

// CircuitState returns the chat breaker state.
func (c *OpenAIClient) CircuitState() string {
	return c.circuitBreaker.State()
}

var _ TextGenerator = (*OpenAIClient)(nil)

// OpenAIEmbeddingClient implements EmbeddingGenerator using the embeddings API.
type OpenAIEmbeddingClient struct {
	cfg            OpenAIConfig
	client         *openai.Client
	circuitBreaker *CircuitBreaker
}

// NewOpenAIEmbeddingClient creates an embedding client guarded by its own circuit breaker.
func NewOpenAIEmbeddingClient(cfg OpenAIConfig) *OpenAIEmbeddingClient {
	cfg.applyDefaults()
	return &OpenAIEmbeddingClient{
		cfg:    cfg,
		client: newOpenAIClient(cfg),
		circuitBreaker: NewCircuitBreakerWithConfig(CircuitBreakerConfig{
			Name:                 "openai-embeddings",
			MaxFailures:          3,
			Timeout:              30 * time.Second,
			HalfOpenMaxSuccesses: 2,
			OnStateChange:        cfg.OnStateChange,
		}),
	}
}

// Embed generates an embedding vector for the given text.
func (c *OpenAIEmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("cannot embed empty text")
	}

	result, err := c.circuitBreaker.Execute(ctx, func() (interface{}, error) {
		return c.embed(ctx, text)
	})
	if err != nil {
		if errors.Is(err, ErrCircuitOpen) {
			return nil, fmt.Errorf("openai embedding circuit breaker open: %w", err)
		}
		return nil, err
	}
	return result.([]float32), nil
}

func (c *OpenAIEmbeddingClient) embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: []string{text},
		Model: openai.EmbeddingModel(c.cfg.EmbeddingModel),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, errors.New("openai returned no embedding")
	}
	return resp.Data[0].Embedding, nil
}

// GetModel returns the configured embedding model name.
func (c *OpenAIEmbeddingClient) GetModel() string {
	return c.cfg.EmbeddingModel
}

// CircuitState returns the embedding breaker state.
func (c *OpenAIEmbeddingClient) CircuitState() string {
	return c.circuitBreaker.State()
}

var _ EmbeddingGenerator = (*OpenAIEmbeddingClient)(nil)
