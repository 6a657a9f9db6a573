// Package genai implements the reply generator on the OpenAI API.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/BTreeMap/CallPipe/internal/models"
)

// Generation limits tuned for short spoken replies.
const (
	// DefaultMaxTokens bounds reply length; phone answers stay short.
	DefaultMaxTokens int64 = 100
	// DefaultTemperature is the sampling temperature for replies.
	DefaultTemperature = 0.7
)

// Error variables for better error handling and testability.
var (
	ErrNoChoicesReturned = errors.New("no choices returned")
	ErrEmptyReply        = errors.New("empty reply returned")
)

// Generator produces the assistant's next words from an ordered turn
// history. It either terminates with text or fails; no semantic guarantee is
// made about the content.
type Generator interface {
	GenerateReply(ctx context.Context, turns []models.Turn) (string, error)
}

// chatService defines the minimal interface for chat completions.
type chatService interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey      string
	Model       openai.ChatModel
	MaxTokens   int64
	Temperature float64
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key (overrides $OPENAI_API_KEY).
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel sets the chat model used for reply generation.
func WithModel(model openai.ChatModel) Option {
	return func(o *Opts) { o.Model = model }
}

// WithMaxTokens sets the reply token budget.
func WithMaxTokens(n int64) Option {
	return func(o *Opts) { o.MaxTokens = n }
}

// Client wraps the OpenAI chat completion service for generating replies.
type Client struct {
	chat        chatService
	model       openai.ChatModel
	maxTokens   int64
	temperature float64
}

// NewClient initializes a GenAI client. The API key falls back to the
// OPENAI_API_KEY environment variable when not provided via options.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{
		Model:       openai.ChatModelGPT4oMini,
		MaxTokens:   DefaultMaxTokens,
		Temperature: DefaultTemperature,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}

	cli := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	slog.Debug("genai.NewClient: client initialized", "model", cfg.Model, "max_tokens", cfg.MaxTokens)
	return &Client{
		chat:        &cli.Chat.Completions,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}, nil
}

// GenerateReply generates the assistant's next reply from the ordered turn
// history, which must start with the system turn and end with the newest
// user turn.
func (c *Client) GenerateReply(ctx context.Context, turns []models.Turn) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case models.RoleSystem:
			messages = append(messages, openai.SystemMessage(t.Content))
		case models.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(t.Content))
		default:
			messages = append(messages, openai.UserMessage(t.Content))
		}
	}

	resp, err := c.chat.New(ctx, openai.ChatCompletionNewParams{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   openai.Int(c.maxTokens),
		Temperature: openai.Float(c.temperature),
	})
	if err != nil {
		slog.Error("genai.GenerateReply: chat completion failed", "error", err, "turns", len(turns))
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		slog.Error("genai.GenerateReply: no choices returned", "turns", len(turns))
		return "", ErrNoChoicesReturned
	}

	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		slog.Error("genai.GenerateReply: empty reply returned", "turns", len(turns))
		return "", ErrEmptyReply
	}
	slog.Debug("genai.GenerateReply: reply generated", "turns", len(turns), "reply_length", len(reply))
	return reply, nil
}
