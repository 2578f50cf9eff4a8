// Package llm wraps the hosted OpenAI-compatible inference API (OpenRouter)
// behind a small chat provider. Failures here are generation errors: they
// never unwind conversation state that has already been persisted.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/J12003LPZ/Chatbot/internal/profile"
)

// Config holds the inference provider configuration.
type Config struct {
	BaseURL     string
	APIKey      string
	ChatModel   string
	VisionModel string
	MaxTokens   int
	Temperature float32
	MaxRetries  int
	Timeout     time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:     "https://openrouter.ai/api/v1",
		APIKey:      "",
		ChatModel:   "google/gemma-3n-e2b-it:free",
		VisionModel: "meta-llama/llama-3.2-11b-vision-instruct:free",
		MaxTokens:   1000,
		Temperature: 0.7,
		MaxRetries:  3,
		Timeout:     30 * time.Second,
	}
}

// ConfigFromProfile builds the provider configuration from the profile.
func ConfigFromProfile(p *profile.Profile) *Config {
	cfg := DefaultConfig()
	cfg.APIKey = p.OpenRouterAPIKey
	if p.OpenRouterBaseURL != "" {
		cfg.BaseURL = p.OpenRouterBaseURL
	}
	if p.ChatModel != "" {
		cfg.ChatModel = p.ChatModel
	}
	if p.VisionModel != "" {
		cfg.VisionModel = p.VisionModel
	}
	if p.MaxTokens > 0 {
		cfg.MaxTokens = p.MaxTokens
	}
	if p.Temperature > 0 {
		cfg.Temperature = p.Temperature
	}
	if p.LLMTimeout > 0 {
		cfg.Timeout = p.LLMTimeout
	}
	return cfg
}

// Provider performs chat completions against the configured endpoint.
type Provider struct {
	client *openai.Client
	config *Config
}

// NewProvider creates a new inference provider.
func NewProvider(cfg *Config) (*Provider, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &Provider{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
	}, nil
}

// IsConfigured reports whether an API key is present.
func (p *Provider) IsConfigured() bool {
	return p.config.APIKey != ""
}

// Models returns the configured text and vision model names.
func (p *Provider) Models() (chat string, vision string) {
	return p.config.ChatModel, p.config.VisionModel
}

// Chat performs a chat completion over the assembled prompt. The vision
// model is selected when any message carries multimodal content.
func (p *Provider) Chat(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	model := p.config.ChatModel
	if hasMultimodalContent(messages) {
		model = p.config.VisionModel
	}

	var result string
	err := p.doWithRetry(ctx, func() error {
		req := openai.ChatCompletionRequest{
			Model:       model,
			Messages:    messages,
			MaxTokens:   p.config.MaxTokens,
			Temperature: p.config.Temperature,
		}

		resp, err := p.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("empty chat response")
		}
		result = resp.Choices[0].Message.Content
		return nil
	})

	if err != nil {
		return "", fmt.Errorf("failed to complete chat: %w", err)
	}

	return result, nil
}

func hasMultimodalContent(messages []openai.ChatCompletionMessage) bool {
	for _, msg := range messages {
		if len(msg.MultiContent) > 0 {
			return true
		}
	}
	return false
}

// doWithRetry executes a function with exponential backoff retry.
func (p *Provider) doWithRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < p.config.MaxRetries; attempt++ {
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			if attempt < p.config.MaxRetries-1 {
				waitTime := time.Duration(math.Pow(2, float64(attempt))) * time.Second
				slog.Debug("inference request failed, retrying",
					"attempt", attempt+1,
					"wait_time", waitTime,
					"error", err)
				select {
				case <-time.After(waitTime):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
	return lastErr
}
