package coordinator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recipeagent"
	"recipeagent/recipe"
	"recipeagent/tools"
	"recipeagent/tools/search"
)

// Mock LLM Client
type mockLLMClient struct {
	responses []recipeagent.Response
	prompts   []recipeagent.Prompt
	err       error
}

func (m *mockLLMClient) Invoke(ctx context.Context, prompt recipeagent.Prompt) (recipeagent.Response, error) {
	snapshot := prompt
	snapshot.Messages = append([]recipeagent.Message(nil), prompt.Messages...)
	m.prompts = append(m.prompts, snapshot)

	if m.err != nil {
		return recipeagent.Response{}, m.err
	}
	if len(m.prompts) > len(m.responses) {
		return m.responses[len(m.responses)-1], nil
	}
	return m.responses[len(m.prompts)-1], nil
}

// Mock Searcher
type mockSearcher struct {
	results search.Results
	err     error
	queries []string
}

func (m *mockSearcher) Search(ctx context.Context, query string, maxCalories *int) (search.Results, error) {
	m.queries = append(m.queries, query)
	return m.results, m.err
}

func newRegistry(t *testing.T, s search.Searcher) *tools.Registry {
	t.Helper()
	registry, err := tools.NewRegistry(s)
	require.NoError(t, err)
	return registry
}

func chickenResults() search.Results {
	return search.Results{Recipes: []recipe.Record{
		{Title: "Lemon Chicken", Nutrition: map[string]any{"calories": "410 kcal", "proteinContent": "38 g"}},
		{Title: "Chicken Corn Soup", Nutrition: map[string]any{"calories": "300 kcal", "proteinContent": "15 g"}},
	}}
}

func toolCall(id string, args map[string]any) tools.Call {
	return tools.Call{ID: id, Name: "find_recipes", Args: args}
}

func messagesWithRole(msgs []recipeagent.Message, role recipeagent.Role) []recipeagent.Message {
	var out []recipeagent.Message
	for _, m := range msgs {
		if m.Role == role {
			out = append(out, m)
		}
	}
	return out
}

func TestCoordinator_Run(t *testing.T) {
	t.Run("direct answer without tools", func(t *testing.T) {
		llm := &mockLLMClient{responses: []recipeagent.Response{{Content: "Hello! Ask me about recipes."}}}
		c := NewCoordinator(llm, newRegistry(t, &mockSearcher{}), 5, nil, nil, nil)

		result, err := c.Run(context.Background(), "hi")
		require.NoError(t, err)

		assert.Equal(t, StateDone, result.State)
		assert.Equal(t, "Hello! Ask me about recipes.", result.Answer)
		assert.Equal(t, 1, result.Iterations)
		assert.Equal(t, []FallbackStatus{FallbackNotJSON}, result.Fallbacks)

		require.Len(t, llm.prompts, 1)
		first := llm.prompts[0]
		require.Len(t, first.Messages, 2)
		assert.Equal(t, recipeagent.RoleSystem, first.Messages[0].Role)
		assert.Equal(t, SystemPrompt, first.Messages[0].Content)
		assert.Equal(t, "hi", first.Messages[1].Content)
		require.Len(t, first.Tools, 1)
		assert.Equal(t, "find_recipes", first.Tools[0].Name)
	})

	t.Run("native tool call then answer", func(t *testing.T) {
		searcher := &mockSearcher{results: chickenResults()}
		llm := &mockLLMClient{responses: []recipeagent.Response{
			{ToolCalls: []tools.Call{toolCall("call_1", map[string]any{"query_text": "chicken", "min_protein_g": 25.0})}},
			{Content: "Try the Lemon Chicken."},
		}}
		c := NewCoordinator(llm, newRegistry(t, searcher), 5, nil, nil, nil)

		result, err := c.Run(context.Background(), "high protein chicken")
		require.NoError(t, err)

		assert.Equal(t, StateDone, result.State)
		assert.Equal(t, "Try the Lemon Chicken.", result.Answer)
		assert.Equal(t, 2, result.Iterations)
		assert.Equal(t, []string{"chicken"}, searcher.queries)

		require.Len(t, result.Calls, 1)
		assert.Equal(t, OutcomeOK, result.Calls[0].Outcome)

		second := llm.prompts[1].Messages
		require.Len(t, second, 4)
		assert.Equal(t, recipeagent.RoleAssistant, second[2].Role)
		assert.Len(t, second[2].ToolCalls, 1)
		assert.Equal(t, recipeagent.RoleTool, second[3].Role)
		assert.Equal(t, "call_1", second[3].ToolCallID)

		var recipes []recipe.Record
		require.NoError(t, json.Unmarshal([]byte(second[3].Content), &recipes))
		require.Len(t, recipes, 1)
		assert.Equal(t, "Lemon Chicken", recipes[0].Title)
	})

	t.Run("fallback call recovered from fenced json", func(t *testing.T) {
		searcher := &mockSearcher{results: chickenResults()}
		llm := &mockLLMClient{responses: []recipeagent.Response{
			{Content: "```json\n{\"name\": \"find_recipes\", \"parameters\": {\"query_text\": \"corn\"}}\n```"},
			{Content: "Here is what I found."},
		}}
		c := NewCoordinator(llm, newRegistry(t, searcher), 5, nil, nil, nil)

		result, err := c.Run(context.Background(), "something with corn")
		require.NoError(t, err)

		assert.Equal(t, StateDone, result.State)
		assert.Equal(t, []string{"corn"}, searcher.queries)
		require.Len(t, result.Calls, 1)
		assert.Equal(t, "fallback-0", result.Calls[0].Call.ID)
		assert.Equal(t, map[string]any{"query_text": "corn"}, result.Calls[0].Call.Args)
		assert.Equal(t, []FallbackStatus{FallbackParsed, FallbackNotJSON}, result.Fallbacks)

		toolMsgs := messagesWithRole(llm.prompts[1].Messages, recipeagent.RoleTool)
		require.Len(t, toolMsgs, 1)
		assert.Equal(t, "fallback-0", toolMsgs[0].ToolCallID)
	})

	t.Run("budget exhausted after exactly max invocations", func(t *testing.T) {
		searcher := &mockSearcher{results: chickenResults()}
		llm := &mockLLMClient{responses: []recipeagent.Response{
			{ToolCalls: []tools.Call{toolCall("", map[string]any{"query_text": "chicken"})}},
		}}
		c := NewCoordinator(llm, newRegistry(t, searcher), 5, nil, nil, nil)

		result, err := c.Run(context.Background(), "loop forever")
		require.NoError(t, err)

		assert.Equal(t, StateBudgetExhausted, result.State)
		assert.Equal(t, BudgetExhaustedMessage, result.Answer)
		assert.Equal(t, 5, result.Iterations)
		assert.Len(t, llm.prompts, 5)
		assert.Len(t, searcher.queries, 5)
		assert.Equal(t, "call-1-0", result.Calls[0].Call.ID)
	})

	t.Run("unknown tool is skipped without a message", func(t *testing.T) {
		searcher := &mockSearcher{results: chickenResults()}
		llm := &mockLLMClient{responses: []recipeagent.Response{
			{ToolCalls: []tools.Call{
				{ID: "a", Name: "get_weather", Args: map[string]any{}},
				toolCall("b", map[string]any{"query_text": "chicken"}),
			}},
			{Content: "Done."},
		}}
		c := NewCoordinator(llm, newRegistry(t, searcher), 5, nil, nil, nil)

		result, err := c.Run(context.Background(), "weather and chicken")
		require.NoError(t, err)

		require.Len(t, result.Calls, 2)
		assert.Equal(t, OutcomeSkippedUnknownTool, result.Calls[0].Outcome)
		assert.Equal(t, OutcomeOK, result.Calls[1].Outcome)

		toolMsgs := messagesWithRole(llm.prompts[1].Messages, recipeagent.RoleTool)
		require.Len(t, toolMsgs, 1)
		assert.Equal(t, "b", toolMsgs[0].ToolCallID)
	})

	t.Run("calls are answered in order", func(t *testing.T) {
		searcher := &mockSearcher{results: chickenResults()}
		llm := &mockLLMClient{responses: []recipeagent.Response{
			{ToolCalls: []tools.Call{
				toolCall("first", map[string]any{"query_text": "chicken"}),
				toolCall("second", map[string]any{"query_text": "corn"}),
			}},
			{Content: "Done."},
		}}
		c := NewCoordinator(llm, newRegistry(t, searcher), 5, nil, nil, nil)

		_, err := c.Run(context.Background(), "chicken or corn")
		require.NoError(t, err)

		assert.Equal(t, []string{"chicken", "corn"}, searcher.queries)
		toolMsgs := messagesWithRole(llm.prompts[1].Messages, recipeagent.RoleTool)
		require.Len(t, toolMsgs, 2)
		assert.Equal(t, "first", toolMsgs[0].ToolCallID)
		assert.Equal(t, "second", toolMsgs[1].ToolCallID)
	})

	t.Run("invalid arguments are fed back to the model", func(t *testing.T) {
		searcher := &mockSearcher{results: chickenResults()}
		llm := &mockLLMClient{responses: []recipeagent.Response{
			{ToolCalls: []tools.Call{toolCall("bad", map[string]any{"max_calories": "lots"})}},
			{ToolCalls: []tools.Call{toolCall("good", map[string]any{"query_text": "chicken"})}},
			{Content: "Lemon Chicken it is."},
		}}
		c := NewCoordinator(llm, newRegistry(t, searcher), 5, nil, nil, nil)

		result, err := c.Run(context.Background(), "chicken")
		require.NoError(t, err)

		assert.Equal(t, StateDone, result.State)
		require.Len(t, result.Calls, 2)
		assert.Equal(t, OutcomeInvalidArguments, result.Calls[0].Outcome)
		assert.Equal(t, OutcomeOK, result.Calls[1].Outcome)
		assert.Equal(t, []string{"chicken"}, searcher.queries)

		toolMsgs := messagesWithRole(llm.prompts[1].Messages, recipeagent.RoleTool)
		require.Len(t, toolMsgs, 1)
		assert.Contains(t, toolMsgs[0].Content, "Error: invalid find_recipes arguments")
		assert.Contains(t, toolMsgs[0].Content, "max_calories")
		assert.Contains(t, toolMsgs[0].Content, "query_text")
	})

	t.Run("search failure aborts the run", func(t *testing.T) {
		boom := errors.New("connection refused")
		llm := &mockLLMClient{responses: []recipeagent.Response{
			{ToolCalls: []tools.Call{toolCall("x", map[string]any{"query_text": "chicken"})}},
			{Content: "never reached"},
		}}
		c := NewCoordinator(llm, newRegistry(t, &mockSearcher{err: boom}), 5, nil, nil, nil)

		result, err := c.Run(context.Background(), "chicken")
		require.ErrorIs(t, err, boom)
		assert.Len(t, llm.prompts, 1)
		require.Len(t, result.Calls, 1)
		assert.Equal(t, OutcomeFailed, result.Calls[0].Outcome)
		assert.False(t, result.State.IsTerminal())
	})

	t.Run("llm failure aborts the run", func(t *testing.T) {
		llm := &mockLLMClient{err: errors.New("model unavailable")}
		c := NewCoordinator(llm, newRegistry(t, &mockSearcher{}), 5, nil, nil, nil)

		_, err := c.Run(context.Background(), "chicken")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to invoke LLM")
	})

	t.Run("zero max iterations uses the default", func(t *testing.T) {
		llm := &mockLLMClient{responses: []recipeagent.Response{
			{ToolCalls: []tools.Call{toolCall("", map[string]any{"query_text": "chicken"})}},
		}}
		c := NewCoordinator(llm, newRegistry(t, &mockSearcher{results: search.NoResults()}), 0, nil, nil, nil)

		result, err := c.Run(context.Background(), "chicken")
		require.NoError(t, err)
		assert.Equal(t, DefaultMaxIterations, result.Iterations)
	})
}

func TestCoordinator_LogsIterations(t *testing.T) {
	var buf bytes.Buffer
	logger := recipeagent.NewFileCoordinationLogger(&buf)

	llm := &mockLLMClient{responses: []recipeagent.Response{
		{ToolCalls: []tools.Call{toolCall("c1", map[string]any{"query_text": "chicken"})}},
		{Content: "Done."},
	}}
	c := NewCoordinator(llm, newRegistry(t, &mockSearcher{results: chickenResults()}), 5, logger, nil, nil)

	_, err := c.Run(context.Background(), "chicken")
	require.NoError(t, err)
	require.NoError(t, logger.Flush())

	var doc struct {
		Session struct {
			Iterations []recipeagent.IterationLog `json:"iterations"`
		} `json:"coordination_session"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	require.Len(t, doc.Session.Iterations, 2)
	assert.Equal(t, "handling_tool_call", doc.Session.Iterations[0].State)
	require.Len(t, doc.Session.Iterations[0].ToolCalls, 1)
	assert.Equal(t, "ok", doc.Session.Iterations[0].ToolCalls[0].Outcome)
	assert.Equal(t, "done", doc.Session.Iterations[1].State)
}

// failingTool returns a plain error so the coordinator treats it as fatal.
type failingTool struct{}

func (failingTool) Name() string                    { return "find_recipes" }
func (failingTool) Title() string                   { return "Failing" }
func (failingTool) Description() string             { return "always fails" }
func (failingTool) InputSchema() *jsonschema.Schema { return &jsonschema.Schema{Type: "object"} }
func (failingTool) Run(ctx context.Context, input map[string]any) (string, error) {
	return "", fmt.Errorf("disk on fire")
}

type mockToolProvider struct{ tools []tools.Tool }

func (m *mockToolProvider) GetTools() []tools.Tool { return m.tools }
func (m *mockToolProvider) GetTool(name string) (tools.Tool, error) {
	for _, tool := range m.tools {
		if tool.Name() == name {
			return tool, nil
		}
	}
	return nil, fmt.Errorf("tool not found: %s", name)
}

func TestCoordinator_ToolProviderError(t *testing.T) {
	llm := &mockLLMClient{responses: []recipeagent.Response{
		{ToolCalls: []tools.Call{toolCall("c1", map[string]any{"query_text": "chicken"})}},
	}}
	c := NewCoordinator(llm, &mockToolProvider{tools: []tools.Tool{failingTool{}}}, 5, nil, nil, nil)

	_, err := c.Run(context.Background(), "chicken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `failed to run tool "find_recipes": disk on fire`)
}

func TestState(t *testing.T) {
	assert.True(t, StateDone.IsTerminal())
	assert.True(t, StateBudgetExhausted.IsTerminal())
	assert.False(t, StateAwaitingModel.IsTerminal())
	assert.False(t, StateHandlingToolCall.IsTerminal())
	assert.Equal(t, "budget_exhausted", StateBudgetExhausted.String())
}
