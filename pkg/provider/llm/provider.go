// Package llm defines the Provider interface for Large Language Model backends.
//
// soundwatch only needs single-shot completions: the LLM-backed sentiment
// classifier sends one short prompt per utterance and reads back a label.
//
// Implementors must be safe for concurrent use.
package llm

import "context"

// Message is a single message in a conversation.
type Message struct {
	// Role is one of "system", "user" or "assistant".
	Role string

	// Content is the text content of the message.
	Content string
}

// Usage holds token accounting information returned by the backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries everything the model needs to produce a reply.
// At minimum Messages must be non-empty.
type CompletionRequest struct {
	Messages []Message

	// SystemPrompt is injected before Messages as a "system" message.
	SystemPrompt string

	// Temperature in [0, 2]. Zero requests the provider default.
	Temperature float64

	// MaxTokens caps the completion length. Zero means provider default.
	MaxTokens int
}

// CompletionResponse is the full reply to a CompletionRequest.
type CompletionResponse struct {
	Content string
	Usage   Usage
}

// Provider is the abstraction over any LLM backend.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
