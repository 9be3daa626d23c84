package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
)

type Tool interface {
	Name() string
	Title() string
	Description() string
	InputSchema() *jsonschema.Schema
	// Run executes the tool. The returned string is fed back to the model verbatim.
	Run(ctx context.Context, input map[string]any) (output string, err error)
}

// Call is a tool invocation requested by the model, either natively or recovered from
// the text of its reply.
type Call struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}
