// Package generator wraps the chat-completion service that turns retrieved
// context into an answer. The retrieval engine treats the model as opaque:
// it supplies a system instruction, a bounded history window, and one user
// turn, and gets free text back.
package generator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	// RoleUser is a turn written by the student.
	RoleUser Role = "user"
	// RoleAssistant is a turn produced by the model.
	RoleAssistant Role = "assistant"
)

// Turn is a single prior exchange in the conversation history.
type Turn struct {
	// Role is the turn's author.
	Role Role
	// Content is the turn text.
	Content string
}

// Generator produces an answer from a system instruction, prior turns, and
// the current user message. Implementations must be safe to call from
// multiple goroutines.
type Generator interface {
	Generate(ctx context.Context, system string, history []Turn, userMessage string) (string, error)
}

// DefaultModel is the chat model used when none is configured.
const DefaultModel = "gpt-4o-mini"

// OpenAIConfig holds the settings for constructing an OpenAIGenerator.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key. Required.
	APIKey string
	// BaseURL overrides the API base for OpenAI-compatible endpoints.
	BaseURL string
	// Model is the chat model name. Defaults to DefaultModel.
	Model string
	// Temperature controls response randomness. Defaults to 0.7.
	Temperature float32
	// MaxTokens bounds the response length. Defaults to 1000.
	MaxTokens int
	// Timeout bounds each completion call. Defaults to 60s.
	Timeout time.Duration
}

// OpenAIGenerator implements Generator using the OpenAI chat completions
// API. It is safe for concurrent use.
type OpenAIGenerator struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

// NewOpenAIGenerator constructs an OpenAIGenerator from the given config.
func NewOpenAIGenerator(cfg *OpenAIConfig) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("generator: OPENAI_API_KEY is required")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.7
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1000
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	return &OpenAIGenerator{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
	}, nil
}

// Generate sends the assembled messages to the chat model and returns the
// first choice's content.
func (g *OpenAIGenerator) Generate(ctx context.Context, system string, history []Turn, userMessage string) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: system,
	})
	for _, turn := range history {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(turn.Role),
			Content: turn.Content,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userMessage,
	})

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    messages,
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("generator: completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("generator: completion returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}

// Ping verifies API reachability and credentials via ListModels, which
// consumes no tokens.
func (g *OpenAIGenerator) Ping(ctx context.Context) error {
	if _, err := g.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}
