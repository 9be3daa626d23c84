package bedrock

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	smithydocument "github.com/aws/smithy-go/document"
	"github.com/modelcontextprotocol/go-sdk/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recipeagent"
	"recipeagent/tools"
)

// mockBedrockClient implements bedrockRuntimeClient for testing
type mockBedrockClient struct {
	response *bedrockruntime.ConverseOutput
	err      error
	input    *bedrockruntime.ConverseInput
}

func (m *mockBedrockClient) Converse(ctx context.Context, input *bedrockruntime.ConverseInput, opts ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	m.input = input
	return m.response, m.err
}

func outputWith(stop types.StopReason, blocks ...types.ContentBlock) *bedrockruntime.ConverseOutput {
	return &bedrockruntime.ConverseOutput{
		StopReason: stop,
		Output: &types.ConverseOutputMemberMessage{
			Value: types.Message{Role: types.ConversationRoleAssistant, Content: blocks},
		},
		Usage:   &types.TokenUsage{InputTokens: aws.Int32(10), OutputTokens: aws.Int32(20)},
		Metrics: &types.ConverseMetrics{LatencyMs: aws.Int64(100)},
	}
}

func userPrompt(text string) recipeagent.Prompt {
	return recipeagent.Prompt{
		Messages: []recipeagent.Message{
			{Role: recipeagent.RoleSystem, Content: "You find recipes."},
			{Role: recipeagent.RoleUser, Content: text},
		},
		Tools: []recipeagent.ToolSpec{{
			Name:        tools.FindRecipesName,
			Description: "Search recipes",
			InputSchema: &jsonschema.Schema{Type: "object", Required: []string{"query_text"}},
		}},
	}
}

func TestNewLLMClient(t *testing.T) {
	tests := []struct {
		name     string
		input    LLMOptions
		expected LLMOptions
	}{
		{
			name:  "empty options uses defaults",
			input: LLMOptions{},
			expected: LLMOptions{
				ModelID:     defaultModelID,
				MaxTokens:   defaultMaxTokens,
				Temperature: defaultTemperature,
				TopP:        defaultTopP,
			},
		},
		{
			name:     "custom options preserved",
			input:    LLMOptions{ModelID: "custom-model", MaxTokens: 2048, Temperature: 0.5, TopP: 0.8},
			expected: LLMOptions{ModelID: "custom-model", MaxTokens: 2048, Temperature: 0.5, TopP: 0.8},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockClient := &mockBedrockClient{}
			client := NewLLMClient(mockClient, tt.input)

			assert.Equal(t, tt.expected, client.opts)
			assert.Equal(t, mockClient, client.brc)
		})
	}
}

func TestLLMClient_Invoke(t *testing.T) {
	tests := []struct {
		name          string
		mockResponse  *bedrockruntime.ConverseOutput
		mockError     error
		expectedResp  recipeagent.Response
		expectedError string
	}{
		{
			name:         "final text",
			mockResponse: outputWith(types.StopReasonEndTurn, &types.ContentBlockMemberText{Value: "Try the chicken salad."}),
			expectedResp: recipeagent.Response{Content: "Try the chicken salad."},
		},
		{
			name: "tool use",
			mockResponse: outputWith(types.StopReasonToolUse,
				&types.ContentBlockMemberToolUse{Value: types.ToolUseBlock{
					ToolUseId: aws.String("tooluse-1"),
					Name:      aws.String(tools.FindRecipesName),
					Input:     document.NewLazyDocument(map[string]any{"query_text": "chicken"}),
				}},
			),
			expectedResp: recipeagent.Response{
				ToolCalls: []tools.Call{
					{ID: "tooluse-1", Name: tools.FindRecipesName, Args: map[string]any{"query_text": "chicken"}},
				},
			},
		},
		{
			name:          "max tokens",
			mockResponse:  outputWith(types.StopReasonMaxTokens),
			expectedError: "model hit MaxTokens limit",
		},
		{
			name:          "content filtered",
			mockResponse:  outputWith(types.StopReasonContentFiltered),
			expectedError: "model response blocked by Bedrock safety filters",
		},
		{
			name:          "api error",
			mockError:     assert.AnError,
			expectedError: "bedrock converse failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockClient := &mockBedrockClient{response: tt.mockResponse, err: tt.mockError}

			resp, err := NewLLMClient(mockClient, LLMOptions{}).Invoke(context.Background(), userPrompt("chicken please"))

			if tt.expectedError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expectedResp, resp)
		})
	}
}

func TestLLMClient_InvokeBuildsInput(t *testing.T) {
	mockClient := &mockBedrockClient{response: outputWith(types.StopReasonEndTurn, &types.ContentBlockMemberText{Value: "ok"})}

	_, err := NewLLMClient(mockClient, LLMOptions{ModelID: "m"}).Invoke(context.Background(), userPrompt("chicken please"))
	require.NoError(t, err)

	in := mockClient.input
	require.NotNil(t, in)
	assert.Equal(t, "m", aws.ToString(in.ModelId))
	require.Len(t, in.System, 1)
	assert.Equal(t, "You find recipes.", in.System[0].(*types.SystemContentBlockMemberText).Value)
	require.Len(t, in.Messages, 1)
	assert.Equal(t, types.ConversationRoleUser, in.Messages[0].Role)

	require.NotNil(t, in.ToolConfig)
	require.Len(t, in.ToolConfig.Tools, 1)
	spec := in.ToolConfig.Tools[0].(*types.ToolMemberToolSpec).Value
	assert.Equal(t, tools.FindRecipesName, aws.ToString(spec.Name))
}

func TestBuildMessages(t *testing.T) {
	prompt := recipeagent.Prompt{
		Messages: []recipeagent.Message{
			{Role: recipeagent.RoleSystem, Content: "sys"},
			{Role: recipeagent.RoleUser, Content: "chicken under 500 calories"},
			{Role: recipeagent.RoleAssistant, ToolCalls: []tools.Call{
				{ID: "a", Name: tools.FindRecipesName, Args: map[string]any{"query_text": "chicken"}},
				{ID: "b", Name: "unknown_tool"},
			}},
			{Role: recipeagent.RoleTool, ToolCallID: "a", ToolName: tools.FindRecipesName, Content: `[{"title":"Chicken"}]`},
			{Role: recipeagent.RoleAssistant, Content: "```json\n{\"name\":\"find_recipes\"}\n```", ToolCalls: []tools.Call{
				{ID: "fallback-0", Name: tools.FindRecipesName, Args: map[string]any{}},
			}},
			{Role: recipeagent.RoleTool, ToolCallID: "fallback-0", ToolName: tools.FindRecipesName, Content: "Error: invalid find_recipes arguments: query_text is required"},
		},
	}

	msgs := buildMessages(prompt)
	require.Len(t, msgs, 5)

	roles := make([]types.ConversationRole, 0, len(msgs))
	for _, m := range msgs {
		roles = append(roles, m.Role)
	}
	assert.Equal(t, []types.ConversationRole{
		types.ConversationRoleUser,
		types.ConversationRoleAssistant,
		types.ConversationRoleUser,
		types.ConversationRoleAssistant,
		types.ConversationRoleUser,
	}, roles)

	// The unanswered call "b" is dropped.
	require.Len(t, msgs[1].Content, 1)
	use := msgs[1].Content[0].(*types.ContentBlockMemberToolUse).Value
	assert.Equal(t, "a", aws.ToString(use.ToolUseId))

	result := msgs[2].Content[0].(*types.ContentBlockMemberToolResult).Value
	assert.Equal(t, "a", aws.ToString(result.ToolUseId))
	assert.Equal(t, types.ToolResultStatusSuccess, result.Status)

	// Fallback reply keeps its text and gains the synthesized tool use.
	require.Len(t, msgs[3].Content, 2)
	assert.IsType(t, &types.ContentBlockMemberText{}, msgs[3].Content[0])
	assert.IsType(t, &types.ContentBlockMemberToolUse{}, msgs[3].Content[1])

	errResult := msgs[4].Content[0].(*types.ContentBlockMemberToolResult).Value
	assert.Equal(t, types.ToolResultStatusError, errResult.Status)
}

func TestTextFromOutput(t *testing.T) {
	tests := []struct {
		name     string
		output   *bedrockruntime.ConverseOutput
		expected string
	}{
		{name: "nil output", output: nil, expected: ""},
		{
			name:     "single text block",
			output:   outputWith(types.StopReasonEndTurn, &types.ContentBlockMemberText{Value: "Hello world"}),
			expected: "Hello world",
		},
		{
			name: "multiple text blocks",
			output: outputWith(types.StopReasonEndTurn,
				&types.ContentBlockMemberText{Value: "First"},
				&types.ContentBlockMemberText{Value: "Second"},
			),
			expected: "First\nSecond",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, textFromOutput(tt.output))
		})
	}
}

func TestNormalizeInput(t *testing.T) {
	in := map[string]any{
		"max_calories":          float64(500),
		"min_protein_g":         smithydocument.Number("25"),
		"available_ingredients": `[{"name":"corn","quantity_g":200}]`,
		"query_text":            "chicken",
	}

	out := normalizeInput(in).(map[string]any)
	assert.Equal(t, 500, out["max_calories"])
	assert.Equal(t, 25, out["min_protein_g"])
	assert.Equal(t, "chicken", out["query_text"])
	assert.Equal(t, []any{map[string]any{"name": "corn", "quantity_g": 200}}, out["available_ingredients"])
}
