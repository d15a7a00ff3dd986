// Package llm defines the chat-model collaborator contract.
//
// The memory engine itself never calls a model; composed context is
// injected into the conversation and handed to a Provider by the caller.
// This package defines the message shape the composer works with and the
// Provider interface chat backends implement.
package llm

import "context"

// Message represents a single message in a conversation.
type Message struct {
	// Role is the message role: "system", "user", or "assistant".
	Role string `json:"role"`

	// Content is the message content text.
	Content string `json:"content"`
}

// Conversation roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Provider defines the interface for chat-model backends.
//
// Implementations receive the full conversation, including any
// memory-derived system message the composer prepended, and return the
// assistant's reply.
type Provider interface {
	// Reply generates the assistant's next message for a conversation.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - messages: Conversation history (system, user, assistant messages)
	//   - opts: Optional generation parameters
	//
	// Returns the generated reply text and any error.
	Reply(ctx context.Context, messages []Message, opts ...ReplyOption) (string, error)

	// Close closes the provider and releases resources.
	Close() error
}

// ReplyOptions contains options for reply generation.
type ReplyOptions struct {
	// Temperature controls randomness (0.0-2.0). Higher = more random.
	Temperature float64

	// MaxTokens limits the maximum number of tokens in the reply.
	MaxTokens int

	// TopP controls nucleus sampling (0.0-1.0). Higher = more diverse.
	TopP float64

	// Stop contains stop sequences that will end generation.
	Stop []string
}

// ReplyOption is a function type for configuring reply options.
type ReplyOption func(*ReplyOptions)

// WithTemperature sets the temperature for reply generation.
//
// Example:
//
//	reply, _ := provider.Reply(ctx, messages, llm.WithTemperature(0.4))
func WithTemperature(temp float64) ReplyOption {
	return func(opts *ReplyOptions) {
		opts.Temperature = temp
	}
}

// WithMaxTokens sets the maximum number of tokens in the reply.
func WithMaxTokens(max int) ReplyOption {
	return func(opts *ReplyOptions) {
		opts.MaxTokens = max
	}
}

// WithTopP sets the top-p (nucleus sampling) parameter.
func WithTopP(topP float64) ReplyOption {
	return func(opts *ReplyOptions) {
		opts.TopP = topP
	}
}

// WithStop sets the stop sequences that end generation.
func WithStop(stop []string) ReplyOption {
	return func(opts *ReplyOptions) {
		opts.Stop = stop
	}
}

// ApplyReplyOptions applies a slice of ReplyOption functions to create
// ReplyOptions.
//
// This is a helper used internally by provider implementations.
// Default values: Temperature=0.7, MaxTokens=1000, TopP=1.0.
func ApplyReplyOptions(opts []ReplyOption) *ReplyOptions {
	options := &ReplyOptions{
		Temperature: 0.7,
		MaxTokens:   1000,
		TopP:        1.0,
	}
	for _, opt := range opts {
		opt(options)
	}
	return options
}
