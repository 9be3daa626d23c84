package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sashabaranov/go-openai"

	"recipeagent"
	"recipeagent/tools"
)

// Client talks to any OpenAI compatible chat completions endpoint.
type Client struct {
	client      *openai.Client
	model       string
	temperature float32
	topP        float32
	maxTokens   int
}

type ClientOpts struct {
	APIKey      string
	BaseURL     string
	ModelID     string
	Temperature float32
	TopP        float32
	MaxTokens   int32
	HTTPClient  recipeagent.HTTPClient
}

func NewClient(opts ClientOpts) (*Client, error) {
	if opts.ModelID == "" {
		return nil, fmt.Errorf("model id is required")
	}

	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(opts.BaseURL, "/")
	}
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	}

	return &Client{
		client:      openai.NewClientWithConfig(cfg),
		model:       opts.ModelID,
		temperature: opts.Temperature,
		topP:        opts.TopP,
		maxTokens:   int(opts.MaxTokens),
	}, nil
}

func (c *Client) Invoke(ctx context.Context, prompt recipeagent.Prompt) (recipeagent.Response, error) {
	slog.Info("LLM_CLIENT: Invoked", "messages_len", len(prompt.Messages))

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    buildMessages(prompt),
		Tools:       buildTools(prompt.Tools),
		Temperature: c.temperature,
		TopP:        c.topP,
		MaxTokens:   c.maxTokens,
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		slog.Error("LLM_CLIENT: OpenAI request failed", "error", err, "model", c.model)
		return recipeagent.Response{}, fmt.Errorf("openai request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return recipeagent.Response{}, fmt.Errorf("no choices returned")
	}

	choice := resp.Choices[0]
	slog.Info("LLM_CLIENT: OpenAI request succeeded",
		"finish_reason", choice.FinishReason,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"tool_calls", len(choice.Message.ToolCalls),
	)

	if choice.FinishReason == openai.FinishReasonContentFilter {
		return recipeagent.Response{}, fmt.Errorf("model response blocked by content filter")
	}

	out := recipeagent.Response{Content: choice.Message.Content}
	for i, tc := range choice.Message.ToolCalls {
		id := tc.ID
		if id == "" {
			id = fmt.Sprintf("call_%d", i+1)
		}
		out.ToolCalls = append(out.ToolCalls, tools.Call{
			ID:   id,
			Name: tc.Function.Name,
			Args: decodeArguments(tc.Function.Name, tc.Function.Arguments),
		})
	}
	return out, nil
}

// decodeArguments parses the JSON argument string of a tool call. Unparseable arguments
// become an empty map so validation can report what is missing.
func decodeArguments(name, raw string) map[string]any {
	args := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return args
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		slog.Warn("LLM_CLIENT: Failed to decode tool arguments", "name", name, "error", err)
		return map[string]any{}
	}
	return args
}

// buildMessages maps the conversation onto chat messages, leaving out assistant tool calls
// that have no tool message answering them.
func buildMessages(prompt recipeagent.Prompt) []openai.ChatCompletionMessage {
	answered := prompt.AnsweredCallIDs()

	msgs := make([]openai.ChatCompletionMessage, 0, len(prompt.Messages))
	for _, m := range prompt.Messages {
		msg := openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		}

		switch m.Role {
		case recipeagent.RoleAssistant:
			for _, call := range m.ToolCalls {
				if !answered[call.ID] {
					continue
				}
				args, err := json.Marshal(call.Args)
				if err != nil || call.Args == nil {
					args = []byte("{}")
				}
				msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
					ID:   call.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      call.Name,
						Arguments: string(args),
					},
				})
			}
			if msg.Content == "" && len(msg.ToolCalls) == 0 {
				continue
			}
		case recipeagent.RoleTool:
			msg.ToolCallID = m.ToolCallID
		}

		msgs = append(msgs, msg)
	}
	return msgs
}

func buildTools(specs []recipeagent.ToolSpec) []openai.Tool {
	if len(specs) == 0 {
		return nil
	}
	out := make([]openai.Tool, 0, len(specs))
	for _, t := range specs {
		var params any = map[string]any{"type": "object", "properties": map[string]any{}}
		if t.InputSchema != nil {
			params = t.InputSchema
		}
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	return out
}
