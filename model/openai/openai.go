// Package openai provides a Completer backed by the OpenAI Chat Completions
// API, including streaming.
package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/coordmesh/coordmesh/model"
	"github.com/openai/openai-go"
)

// Options configure the OpenAI completer. Fields mirror a subset of Chat
// Completion parameters intentionally kept minimal; extend via functional
// options without breaking callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Completer wraps the OpenAI Chat Completions API behind the generic
// model.Completer interface.
type Completer struct {
	client *openai.Client
	opts   Options
}

// New creates a Completer using the official client.
func New(optFns ...func(o *Options)) *Completer {
	client := openai.NewClient()
	return NewFromClient(&client, optFns...)
}

// NewFromClient creates a Completer from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Completer {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Completer{client: client, opts: opts}
}

// Complete implements model.Completer over Chat Completions.
func (c *Completer) Complete(ctx context.Context, req model.Request) (*model.Response, error) {
	resp, err := c.client.Chat.Completions.New(ctx, c.buildParams(req))
	if err != nil {
		return nil, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned")
	}

	choice := resp.Choices[0]
	return &model.Response{
		Content: choice.Message.Content,
		Usage: model.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
		FinishReason: choice.FinishReason,
	}, nil
}

// CompleteStream implements model.Completer. Text deltas are forwarded as
// partial chunks; the final chunk carries the accumulated content.
func (c *Completer) CompleteStream(ctx context.Context, req model.Request) (<-chan model.Chunk, <-chan error) {
	out := make(chan model.Chunk, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		stream := c.client.Chat.Completions.NewStreaming(ctx, c.buildParams(req))
		var builder strings.Builder
		for stream.Next() {
			chunk := stream.Current()
			for _, choice := range chunk.Choices {
				if choice.Delta.Content != "" {
					builder.WriteString(choice.Delta.Content)
					out <- model.Chunk{Content: choice.Delta.Content}
				}
				if choice.FinishReason != "" {
					out <- model.Chunk{Content: builder.String(), Done: true}
				}
			}
		}
		if err := stream.Err(); err != nil {
			errCh <- fmt.Errorf("openai streaming error: %w", err)
		}
	}()

	return out, errCh
}

// Info returns metadata describing this OpenAI completer.
func (c *Completer) Info() model.Info {
	return model.Info{Name: c.opts.Model, Provider: "openai"}
}

func (c *Completer) buildParams(req model.Request) openai.ChatCompletionNewParams {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.Instructions != "" {
		messages = append(messages, openai.SystemMessage(req.Instructions))
	}
	for _, msg := range req.Messages {
		switch msg.Role {
		case "assistant":
			messages = append(messages, openai.AssistantMessage(msg.Content))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}

	return openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               c.opts.Model,
		Temperature:         openai.Float(c.opts.Temperature),
		MaxCompletionTokens: openai.Int(c.opts.MaxCompletionTokens),
	}
}

var _ model.Completer = (*Completer)(nil)
