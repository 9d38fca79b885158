package openai_provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/alexwday/web-research/models"
)

// client implements the provider interface on an OpenAI-compatible
// chat-completions API with native tool calling and token streaming.
type client struct {
	api         *openai.Client
	model       string
	temperature float64
	maxTokens   int
}

// NewClient creates a new OpenAI client. baseURL may point at any
// OpenAI-compatible endpoint; empty means the public API.
func NewClient(apiKey, baseURL, model string, temperature float64, maxTokens int, timeout time.Duration) *client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return &client{
		api:         openai.NewClientWithConfig(cfg),
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

// ChatStream runs one streamed chat-completion round. Content deltas are
// forwarded through onDelta as they arrive; tool-call fragments are
// accumulated by index into complete calls.
func (c *client) ChatStream(ctx context.Context, turns []models.Turn, tools []models.ToolSpec, onDelta func(chunk string)) (models.Completion, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    toMessages(turns),
		Temperature: float32(c.temperature),
		MaxTokens:   c.maxTokens,
	}
	for _, t := range tools {
		req.Tools = append(req.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}

	stream, err := c.api.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return models.Completion{}, fmt.Errorf("chat completion request failed: %w", err)
	}
	defer stream.Close()

	var content strings.Builder
	var calls []openai.ToolCall
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return models.Completion{}, fmt.Errorf("stream read failed: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta
		if delta.Content != "" {
			content.WriteString(delta.Content)
			if onDelta != nil {
				onDelta(delta.Content)
			}
		}
		for _, tc := range delta.ToolCalls {
			idx := 0
			if tc.Index != nil {
				idx = *tc.Index
			}
			for len(calls) <= idx {
				calls = append(calls, openai.ToolCall{Type: openai.ToolTypeFunction})
			}
			if tc.ID != "" {
				calls[idx].ID = tc.ID
			}
			if tc.Function.Name != "" {
				calls[idx].Function.Name += tc.Function.Name
			}
			calls[idx].Function.Arguments += tc.Function.Arguments
		}
	}

	out := models.Completion{Content: content.String()}
	for _, tc := range calls {
		if tc.Function.Name == "" {
			return models.Completion{}, errors.New("model emitted a tool call without a name")
		}
		args := strings.TrimSpace(tc.Function.Arguments)
		if args == "" {
			args = "{}"
		}
		out.ToolCalls = append(out.ToolCalls, models.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(args),
		})
	}
	return out, nil
}

// toMessages converts transcript turns to the wire message format,
// round-tripping assistant tool calls and tool-result tags.
func toMessages(turns []models.Turn) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(turns))
	for _, t := range turns {
		msg := openai.ChatCompletionMessage{
			Role:       t.Role,
			Content:    t.Content,
			ToolCallID: t.ToolCallID,
		}
		for _, tc := range t.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: string(tc.Arguments),
				},
			})
		}
		msgs = append(msgs, msg)
	}
	return msgs
}
