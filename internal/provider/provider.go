// Package provider is the boundary to the external LLM collaborators:
// summarization, fact extraction, semantic comparison and embeddings.
package provider

import (
	"context"
	"fmt"
)

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Response represents the output from the model.
type Response struct {
	Content string `json:"content"`
	Usage   Usage  `json:"usage"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Provider defines the interface for AI model interactions.
type Provider interface {
	// Chat sends a list of messages to the model and returns a response.
	Chat(ctx context.Context, messages []Message) (*Response, error)

	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Name returns the provider identifier (e.g. "stub", "openai").
	Name() string
}

// CollaboratorError wraps a failed or timed-out collaborator call. The
// caller decides whether to retry with a smaller batch (compression) or
// defer the cycle (consolidation); the error itself is never swallowed.
type CollaboratorError struct {
	Op      string
	Timeout bool
	Err     error
}

func (e *CollaboratorError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("collaborator %s timed out: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("collaborator %s failed: %v", e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}
