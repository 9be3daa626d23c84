package recipeagent

import (
	"context"
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"

	"recipeagent/tools"
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type SlackClient interface {
	PostMessage(ctx context.Context, channel string, message string) error
}

type ToolProvider interface {
	GetTools() []tools.Tool
	GetTool(name string) (tools.Tool, error)
}

// LLMClient is the chat capability every backend implements.
type LLMClient interface {
	Invoke(ctx context.Context, prompt Prompt) (Response, error)
}

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry of a conversation. Assistant messages may carry the tool calls the
// model asked for; tool messages carry the ID of the call they answer.
type Message struct {
	Role       Role         `json:"role"`
	Content    string       `json:"content"`
	ToolCalls  []tools.Call `json:"tool_calls,omitempty"`
	ToolCallID string       `json:"tool_call_id,omitempty"`
	ToolName   string       `json:"tool_name,omitempty"`
}

// ToolSpec is the backend-neutral description of a tool offered to the model.
type ToolSpec struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	InputSchema *jsonschema.Schema `json:"input_schema"`
}

type Prompt struct {
	Messages []Message  `json:"messages"`
	Tools    []ToolSpec `json:"tools,omitempty"`
}

// Response represents the model's reply. Either field may be empty.
type Response struct {
	Content   string       `json:"content,omitempty"`
	ToolCalls []tools.Call `json:"tool_calls,omitempty"`
}

// NewToolSpecs describes every tool of the provider for the model.
func NewToolSpecs(tp ToolProvider) []ToolSpec {
	ts := tp.GetTools()
	specs := make([]ToolSpec, 0, len(ts))
	for _, t := range ts {
		specs = append(specs, ToolSpec{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.InputSchema(),
		})
	}
	return specs
}

// HasToolResult reports whether any tool message is present in the conversation.
func (p *Prompt) HasToolResult() bool {
	for _, msg := range p.Messages {
		if msg.Role == RoleTool {
			return true
		}
	}
	return false
}

// LastToolResult returns the content of the most recent tool message.
func (p *Prompt) LastToolResult() (string, bool) {
	for i := len(p.Messages) - 1; i >= 0; i-- {
		if p.Messages[i].Role == RoleTool {
			return p.Messages[i].Content, true
		}
	}
	return "", false
}

// AnsweredCallIDs returns the IDs of every tool call that has a tool message answering it.
// Backends with strict pairing rules drop assistant calls missing from this set.
func (p *Prompt) AnsweredCallIDs() map[string]bool {
	ids := make(map[string]bool)
	for _, msg := range p.Messages {
		if msg.Role == RoleTool && msg.ToolCallID != "" {
			ids[msg.ToolCallID] = true
		}
	}
	return ids
}

// SystemText joins the content of every system message.
func (p *Prompt) SystemText() string {
	var parts []string
	for _, msg := range p.Messages {
		if msg.Role == RoleSystem && msg.Content != "" {
			parts = append(parts, msg.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}
