// Package model defines the narrow language-model collaborator boundary the
// coordination core calls through. Agents that need completions depend on the
// Completer interface only; the provider subpackages (anthropic, openai)
// translate the normalized request into vendor wire formats and back. None of
// the provider internals leak into the coordination core.
package model

import (
	"context"
	"strings"
)

// Message is one turn of a normalized conversation.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Request captures the normalized completion input.
type Request struct {
	// Instructions is the system prompt, kept separate because providers
	// carry it outside the message list.
	Instructions string    `json:"instructions,omitempty"`
	Messages     []Message `json:"messages"`
}

// Usage captures token accounting for a completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a complete (non-streaming) model answer.
type Response struct {
	Content      string `json:"content"`
	Usage        Usage  `json:"usage"`
	FinishReason string `json:"finish_reason,omitempty"`
}

// Chunk is one fragment of a streaming answer. Done marks the final chunk;
// the final chunk carries the accumulated usage when the provider reports it.
type Chunk struct {
	Content string `json:"content"`
	Done    bool   `json:"done"`
	Usage   *Usage `json:"usage,omitempty"`
}

// Info contains metadata about a completer implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "anthropic", "openai", "mock"
}

// Completer is the minimal interface agents use to drive generation.
type Completer interface {
	// Complete returns the full answer for the request.
	Complete(ctx context.Context, req Request) (*Response, error)

	// CompleteStream emits the answer incrementally. The chunk channel is
	// closed after the final chunk; terminal errors arrive on the error
	// channel (buffered size 1).
	CompleteStream(ctx context.Context, req Request) (<-chan Chunk, <-chan error)

	// Info returns metadata about the completer implementation.
	Info() Info
}

// MockCompleter is a lightweight in-memory Completer useful for tests and
// examples. It answers with canned responses keyed by substring match against
// the last user message, falling back to Default.
type MockCompleter struct {
	// Responses maps a substring of the last user message to the reply.
	Responses map[string]string
	// Default is returned when no substring matches.
	Default string
}

// Complete implements Completer.
func (m *MockCompleter) Complete(_ context.Context, req Request) (*Response, error) {
	content := m.Default
	if content == "" {
		content = "ok"
	}
	var last string
	for _, msg := range req.Messages {
		if msg.Role == "user" {
			last = msg.Content
		}
	}
	for needle, reply := range m.Responses {
		if strings.Contains(last, needle) {
			content = reply
			break
		}
	}
	return &Response{
		Content:      content,
		Usage:        Usage{PromptTokens: len(last) / 4, CompletionTokens: len(content) / 4, TotalTokens: (len(last) + len(content)) / 4},
		FinishReason: "stop",
	}, nil
}

// CompleteStream implements Completer by emitting the canned answer as a
// single final chunk.
func (m *MockCompleter) CompleteStream(ctx context.Context, req Request) (<-chan Chunk, <-chan error) {
	out := make(chan Chunk, 1)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errCh)
		resp, err := m.Complete(ctx, req)
		if err != nil {
			errCh <- err
			return
		}
		out <- Chunk{Content: resp.Content, Done: true, Usage: &resp.Usage}
	}()
	return out, errCh
}

// Info implements Completer.
func (m *MockCompleter) Info() Info {
	return Info{Name: "mock", Provider: "mock"}
}
