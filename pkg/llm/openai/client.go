// Package openai provides the OpenAI implementation of llm.Provider.
package openai

import (
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"

	"github.com/brightclass/teachmem/pkg/llm"
)

// Client is an OpenAI chat backend implementing llm.Provider.
type Client struct {
	client *openai.Client
	model  string
}

// Config is the configuration for the OpenAI backend.
type Config struct {
	// APIKey is the OpenAI API key (required).
	APIKey string

	// Model is the model name to use (default: "gpt-4").
	Model string

	// BaseURL overrides the official API endpoint (optional).
	BaseURL string
}

// NewClient creates a new OpenAI chat client.
//
// Parameters:
//   - cfg: Configuration containing APIKey, Model, and BaseURL
//
// Returns the client instance, or an error if the configuration is
// invalid.
func NewClient(cfg *Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4"
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	return &Client{
		client: openai.NewClientWithConfig(config),
		model:  cfg.Model,
	}, nil
}

// Reply generates the assistant's next message for a conversation.
//
// Parameters:
//   - ctx: Context for controlling the request lifecycle
//   - messages: Conversation history, each message carrying role and content
//   - opts: Optional generation parameters (temperature, max tokens, top-p)
//
// Returns the generated reply text, or an error if the request fails or
// the API returns no choices.
func (c *Client) Reply(ctx context.Context, messages []llm.Message, opts ...llm.ReplyOption) (string, error) {
	options := llm.ApplyReplyOptions(opts)

	chatMessages := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		chatMessages[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    chatMessages,
		Temperature: float32(options.Temperature),
		MaxTokens:   options.MaxTokens,
		TopP:        float32(options.TopP),
		Stop:        options.Stop,
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: no choices returned")
	}

	return resp.Choices[0].Message.Content, nil
}

// Close closes the client connection.
//
// The OpenAI SDK requires no explicit teardown; Close is retained for
// interface compatibility and always returns nil.
func (c *Client) Close() error {
	return nil
}
