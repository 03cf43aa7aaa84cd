// Package vision sends workout log images to a hosted multimodal model.
package vision

import (
	"context"
	"errors"
)

var (
	// ErrNoChoices is returned when the endpoint answers without any choice.
	ErrNoChoices = errors.New("response contained no choices")
	// ErrEmptyContent is returned when the first choice has no text content.
	ErrEmptyContent = errors.New("response contained no content")
)

// Request is a single chat-completion call: one user message with a text part and an image part.
type Request struct {
	Prompt    string
	ImageURL  string // data URI or remote URL
	Model     string
	MaxTokens int
}

// Result is the first choice of a chat-completion response.
type Result struct {
	Content          string `json:"content"`
	FinishReason     string `json:"finish_reason,omitempty"`
	Model            string `json:"model,omitempty"`
	PromptTokens     int    `json:"prompt_tokens,omitempty"`
	CompletionTokens int    `json:"completion_tokens,omitempty"`
}

// Completer performs a blocking multimodal chat-completion request.
// This interface is implemented by OpenAIClient.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Result, error)
}

// Ensure OpenAIClient implements Completer.
var _ Completer = (*OpenAIClient)(nil)
