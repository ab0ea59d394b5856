// Package providers implements clients for the translation backend.
//
// The backend contract is the chat-completions wire shape: a request with
// model, messages, max tokens, and temperature; a response with a list of
// choices carrying message content. Any backend conforming to that shape is
// pluggable.
package providers

import (
	"context"
	"time"
)

// ChatClient is the interface the translation pipeline depends on.
type ChatClient interface {
	// Chat sends a chat completion request.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error)

	// Name returns the client identifier (e.g. "openai-compat").
	Name() string
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// ChatRequest is a request to the translation backend.
type ChatRequest struct {
	Messages []Message `json:"messages"`

	// Model selection (client default if empty)
	Model string `json:"model,omitempty"`

	// Generation parameters
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Timeout     time.Duration `json:"-"`

	// Request tracking
	RequestID string `json:"-"`
}

// ChatResult is the response from a backend call.
type ChatResult struct {
	Content   string `json:"content"`
	ModelUsed string `json:"model_used"`

	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`

	ExecutionTime time.Duration `json:"execution_time"`

	Provider  string `json:"provider"`
	RequestID string `json:"request_id"`
	Attempts  int    `json:"attempts"`

	Success      bool   `json:"success"`
	ErrorType    string `json:"error_type,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}
