package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// ChatClient captures the subset of the go-openai client used by the backend.
// The concrete *openai.Client satisfies it; tests can substitute a fake.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	CreateChatCompletionStream(ctx context.Context, request openai.ChatCompletionRequest) (*openai.ChatCompletionStream, error)
}

// OpenAI implements Client via the OpenAI Chat Completions API.
// It supports structured tool calls.
type OpenAI struct {
	chat  ChatClient
	model string
}

// OpenAIOption configures the OpenAI backend.
type OpenAIOption func(*OpenAI)

// WithChatClient substitutes the underlying API client.
func WithChatClient(c ChatClient) OpenAIOption {
	return func(o *OpenAI) { o.chat = c }
}

// NewOpenAI creates an OpenAI-backed client.
// Returns an error if apiKey is empty and no client override is given.
func NewOpenAI(apiKey, defaultModel string, opts ...OpenAIOption) (*OpenAI, error) {
	o := &OpenAI{model: defaultModel}
	for _, opt := range opts {
		opt(o)
	}
	if o.chat == nil {
		if apiKey == "" {
			return nil, errors.New("llm: openai api key is required")
		}
		o.chat = openai.NewClient(apiKey)
	}
	if o.model == "" {
		return nil, errors.New("llm: default model is required")
	}
	return o, nil
}

// SupportsToolCalls reports true: the Chat Completions API accepts tool
// definitions and returns structured tool calls.
func (o *OpenAI) SupportsToolCalls() bool { return true }

// Complete implements Client.
func (o *OpenAI) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	resp, err := o.chat.CreateChatCompletion(ctx, o.buildRequest(req, false))
	if err != nil {
		if ctx.Err() != nil {
			return nil, NewError("complete", ctx.Err(), false)
		}
		return nil, NewError("complete", err, isRetryableMessage(err.Error()))
	}

	out := &CompletionResponse{
		Model:    resp.Model,
		Duration: time.Since(start),
		Usage: TokenUsage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
	}

	if len(resp.Choices) > 0 {
		choice := resp.Choices[0]
		out.Content = choice.Message.Content
		out.FinishReason = string(choice.FinishReason)
		for _, call := range choice.Message.ToolCalls {
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:        call.ID,
				Name:      call.Function.Name,
				Arguments: json.RawMessage(call.Function.Arguments),
			})
		}
	}

	return out, nil
}

// Stream implements Client.
// Tool call deltas are accumulated and delivered in the final chunk.
func (o *OpenAI) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error) {
	stream, err := o.chat.CreateChatCompletionStream(ctx, o.buildRequest(req, true))
	if err != nil {
		if ctx.Err() != nil {
			return nil, NewError("stream", ctx.Err(), false)
		}
		return nil, NewError("stream", err, isRetryableMessage(err.Error()))
	}

	ch := make(chan StreamChunk)
	go func() {
		defer close(ch)
		defer stream.Close()

		// Tool call fragments arrive spread over deltas keyed by index.
		pending := make(map[int]*ToolCall)
		var order []int
		var usage *TokenUsage

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				if ctx.Err() != nil {
					ch <- StreamChunk{Error: NewError("stream", ctx.Err(), false)}
					return
				}
				ch <- StreamChunk{Error: NewError("stream", err, isRetryableMessage(err.Error()))}
				return
			}

			if resp.Usage != nil {
				usage = &TokenUsage{
					InputTokens:  resp.Usage.PromptTokens,
					OutputTokens: resp.Usage.CompletionTokens,
					TotalTokens:  resp.Usage.TotalTokens,
				}
			}

			if len(resp.Choices) == 0 {
				continue
			}
			delta := resp.Choices[0].Delta

			for _, call := range delta.ToolCalls {
				idx := 0
				if call.Index != nil {
					idx = *call.Index
				}
				tc, ok := pending[idx]
				if !ok {
					tc = &ToolCall{}
					pending[idx] = tc
					order = append(order, idx)
				}
				if call.ID != "" {
					tc.ID = call.ID
				}
				if call.Function.Name != "" {
					tc.Name = call.Function.Name
				}
				if call.Function.Arguments != "" {
					tc.Arguments = append(tc.Arguments, call.Function.Arguments...)
				}
			}

			if delta.Content != "" {
				select {
				case ch <- StreamChunk{Content: delta.Content}:
				case <-ctx.Done():
					ch <- StreamChunk{Error: NewError("stream", ctx.Err(), false)}
					return
				}
			}
		}

		final := StreamChunk{Done: true, Usage: usage}
		for _, idx := range order {
			final.ToolCalls = append(final.ToolCalls, *pending[idx])
		}
		select {
		case ch <- final:
		case <-ctx.Done():
		}
	}()

	return ch, nil
}

// buildRequest translates a CompletionRequest into the go-openai shape.
func (o *OpenAI) buildRequest(req CompletionRequest, streaming bool) openai.ChatCompletionRequest {
	model := o.model
	if req.Model != "" {
		model = req.Model
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	for _, msg := range req.Messages {
		m := openai.ChatCompletionMessage{
			Role:       string(msg.Role),
			Content:    msg.Content,
			Name:       msg.Name,
			ToolCallID: msg.ToolCallID,
		}
		for _, call := range msg.ToolCalls {
			m.ToolCalls = append(m.ToolCalls, openai.ToolCall{
				ID:   call.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      call.Name,
					Arguments: string(call.Arguments),
				},
			})
		}
		messages = append(messages, m)
	}

	out := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
	}
	if streaming {
		out.StreamOptions = &openai.StreamOptions{IncludeUsage: true}
	}

	for _, tool := range req.Tools {
		out.Tools = append(out.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}

	return out
}
