package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/oklog/ulid/v2"

	"recipeagent"
	"recipeagent/tools"
)

type Client struct {
	endpoint   string
	model      string
	httpClient recipeagent.HTTPClient
	options    options
}

type ClientOpts struct {
	BaseEndpoint string
	ModelID      string
	Temperature  float32
	TopP         float32
	MaxTokens    int32
	HTTPClient   recipeagent.HTTPClient
}

func NewClient(opts ClientOpts) (*Client, error) {
	if opts.ModelID == "" {
		return nil, fmt.Errorf("model id is required")
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Client{
		model:      opts.ModelID,
		httpClient: opts.HTTPClient,
		endpoint:   strings.TrimRight(opts.BaseEndpoint, "/") + "/api/chat",
		options: options{
			Temperature:   opts.Temperature,
			TopP:          opts.TopP,
			RepeatPenalty: 1.05,
			NumCtx:        16384,
			NumPredict:    opts.MaxTokens,
		},
	}, nil
}

// Invoke sends the conversation to Ollama's chat endpoint. Tool calls in the reply are
// given fresh IDs since Ollama does not return any.
func (c *Client) Invoke(ctx context.Context, prompt recipeagent.Prompt) (recipeagent.Response, error) {
	slog.Info("LLM_CLIENT: Invoked", "messages_len", len(prompt.Messages))

	reqBody := wireRequest{
		Model:    c.model,
		Messages: buildMessages(prompt.Messages),
		Tools:    buildTools(prompt.Tools),
		Stream:   false,
		Options:  c.options,
	}
	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return recipeagent.Response{}, fmt.Errorf("failed to marshal ollama request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(reqBytes))
	if err != nil {
		return recipeagent.Response{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return recipeagent.Response{}, fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return recipeagent.Response{}, fmt.Errorf("failed to read ollama response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return recipeagent.Response{}, fmt.Errorf("ollama returned %s: %s", resp.Status, string(body))
	}

	var wr wireResponse
	if err := json.Unmarshal(body, &wr); err != nil {
		slog.Error("LLM_CLIENT: Failed to decode ollama response", "error", err, "body", string(body))
		return recipeagent.Response{}, fmt.Errorf("failed to decode ollama response: %w", err)
	}

	out := recipeagent.Response{Content: wr.Message.Content}
	for _, call := range wr.Message.ToolCalls {
		args := call.Function.Arguments
		if args == nil {
			args = map[string]any{}
		}
		out.ToolCalls = append(out.ToolCalls, tools.Call{
			ID:   "call_" + ulid.Make().String(),
			Name: call.Function.Name,
			Args: args,
		})
	}
	return out, nil
}

// buildMessages converts the conversation into Ollama chat messages. Tool results carry
// the tool name since Ollama correlates by name rather than call ID.
func buildMessages(in []recipeagent.Message) []Message {
	messages := make([]Message, 0, len(in))
	for _, m := range in {
		switch m.Role {
		case recipeagent.RoleSystem, recipeagent.RoleUser:
			messages = append(messages, Message{Role: string(m.Role), Content: m.Content})

		case recipeagent.RoleAssistant:
			msg := Message{Role: "assistant", Content: m.Content}
			for _, call := range m.ToolCalls {
				msg.ToolCalls = append(msg.ToolCalls, ToolCall{
					Function: FunctionCall{Name: call.Name, Arguments: call.Args},
				})
			}
			messages = append(messages, msg)

		case recipeagent.RoleTool:
			messages = append(messages, Message{Role: "tool", ToolName: m.ToolName, Content: m.Content})

		default:
			slog.Warn("LLM_CLIENT: unknown role, coercing to user", "role", m.Role)
			messages = append(messages, Message{Role: "user", Content: m.Content})
		}
	}
	return messages
}

func buildTools(specs []recipeagent.ToolSpec) []Tool {
	out := make([]Tool, 0, len(specs))
	for _, spec := range specs {
		parameters := map[string]any{"type": "object", "properties": map[string]any{}}
		if spec.InputSchema != nil {
			parameters["properties"] = spec.InputSchema.Properties
			if len(spec.InputSchema.Required) > 0 {
				parameters["required"] = spec.InputSchema.Required
			}
		}
		out = append(out, Tool{
			Type: "function",
			Function: ToolSchema{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  parameters,
			},
		})
	}
	return out
}
