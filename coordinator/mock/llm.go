package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"recipeagent"
	"recipeagent/recipe"
	"recipeagent/tools"
)

// LLMClient is a deterministic stand-in for a model. It applies the same extraction rules
// the system prompt gives a real model, asks for one recipe search, then summarises the
// tool output. It is useful offline and for exercising the coordinator end to end.
type LLMClient struct {
	native bool
}

// NewLLMClient returns a mock model. With native set it emits structured tool calls;
// otherwise it writes the call as fenced JSON the way small local models tend to.
func NewLLMClient(native bool) *LLMClient {
	return &LLMClient{native: native}
}

func (m *LLMClient) Invoke(ctx context.Context, prompt recipeagent.Prompt) (recipeagent.Response, error) {
	slog.Info("LLM_CLIENT: Invoked", "messages_len", len(prompt.Messages))

	if result, ok := prompt.LastToolResult(); ok {
		slog.Info("LLM_CLIENT: Summarising tool result")
		return recipeagent.Response{Content: summarise(result)}, nil
	}

	question := lastUserMessage(prompt)
	args := ExtractSearchArgs(question)

	if m.native {
		slog.Info("LLM_CLIENT: Returning native tool call", "args", args)
		return recipeagent.Response{ToolCalls: []tools.Call{{Name: tools.FindRecipesName, Args: args}}}, nil
	}

	b, err := json.MarshalIndent(map[string]any{"name": tools.FindRecipesName, "parameters": args}, "", "  ")
	if err != nil {
		return recipeagent.Response{}, fmt.Errorf("failed to marshal tool call: %w", err)
	}
	slog.Info("LLM_CLIENT: Returning tool call as text")
	return recipeagent.Response{Content: "```json\n" + string(b) + "\n```"}, nil
}

func lastUserMessage(prompt recipeagent.Prompt) string {
	for i := len(prompt.Messages) - 1; i >= 0; i-- {
		if prompt.Messages[i].Role == recipeagent.RoleUser {
			return prompt.Messages[i].Content
		}
	}
	return ""
}

func summarise(result string) string {
	if strings.HasPrefix(result, "Error:") {
		return "I couldn't search the recipe database with that request. " + result
	}

	var recipes []recipe.Record
	if err := json.Unmarshal([]byte(result), &recipes); err != nil {
		return "I couldn't find anything in the recipe database for that. (" + result + ")"
	}
	if len(recipes) == 0 {
		return "I couldn't find anything in the recipe database for that."
	}

	var b strings.Builder
	b.WriteString("Here is what I found in the recipe database:\n")
	for _, r := range recipes {
		fmt.Fprintf(&b, "- %s", r.Title)
		var facts []string
		if cal := r.Calories(); cal != "" {
			facts = append(facts, cal)
		}
		if protein := r.ProteinContent(); protein != "" {
			facts = append(facts, protein+" protein")
		}
		if len(facts) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(facts, ", "))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

var (
	underCalories = regexp.MustCompile(`(?:under|below|less than|max(?:imum)?)\s+(\d+)\s*(?:calories|calorie|kcal|cal)\b`)
	gramsOf       = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:g|grams?)\s+(?:of\s+)?([a-z][a-z ]*?)\s*(?:[,.;!?]|\band\b|$)`)
	wordPattern   = regexp.MustCompile(`[a-z]+`)

	descriptorPhrases = []string{
		"high protein", "post workout", "post-workout", "strength training", "leg day",
		"big meal", "muscle gain", "light", "healthy", "hungry",
	}

	stopWords = map[string]bool{
		"i": true, "im": true, "am": true, "want": true, "need": true, "would": true, "like": true,
		"a": true, "an": true, "the": true, "some": true, "something": true, "any": true,
		"meal": true, "meals": true, "recipe": true, "recipes": true, "idea": true, "ideas": true,
		"dish": true, "food": true, "for": true, "with": true, "me": true, "my": true, "to": true,
		"give": true, "find": true, "show": true, "suggest": true, "please": true, "can": true,
		"you": true, "what": true, "should": true, "make": true, "cook": true, "eat": true,
		"and": true, "of": true, "in": true, "today": true, "tonight": true, "quick": true,
		"easy": true, "vegan": true, "after": true, "m": true, "s": true, "is": true, "it": true,
	}
)

// ExtractSearchArgs maps a free-text request to find_recipes arguments:
//   - "under X calories" sets max_calories to X; "light"/"healthy" to 500; "hungry"/"big meal" to 1000
//   - "post workout", "strength training" or "leg day" sets min_protein_g to 30; "high protein" to 25
//   - amounts such as "200g corn" become available_ingredients
//   - query_text keeps only the remaining dish and ingredient words
func ExtractSearchArgs(text string) map[string]any {
	lower := strings.ToLower(text)
	args := map[string]any{}

	switch {
	case underCalories.MatchString(lower):
		n, _ := strconv.Atoi(underCalories.FindStringSubmatch(lower)[1])
		args[tools.FieldMaxCalories] = n
	case containsAny(lower, "light", "healthy"):
		args[tools.FieldMaxCalories] = 500
	case containsAny(lower, "hungry", "big meal"):
		args[tools.FieldMaxCalories] = 1000
	}

	switch {
	case containsAny(lower, "post workout", "post-workout", "strength training", "leg day"):
		args[tools.FieldMinProteinG] = 30
	case strings.Contains(lower, "high protein"):
		args[tools.FieldMinProteinG] = 25
	}

	// Everything after "i have" describes the pantry rather than the dish.
	dishPart := lower
	pantryPart := ""
	if i := strings.Index(lower, "i have"); i >= 0 {
		dishPart, pantryPart = lower[:i], lower[i:]
	}

	var ingredients []any
	var ingredientNames []string
	for _, part := range []string{pantryPart, dishPart} {
		for _, m := range gramsOf.FindAllStringSubmatch(part, -1) {
			qty, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				continue
			}
			name := strings.TrimSpace(m[2])
			ingredients = append(ingredients, map[string]any{"name": name, "quantity_g": qty})
			ingredientNames = append(ingredientNames, name)
		}
	}

	// Pantry items mentioned without an amount get no quantity.
	rest := gramsOf.ReplaceAllString(strings.TrimPrefix(pantryPart, "i have"), ",")
	for _, item := range strings.FieldsFunc(rest, func(r rune) bool { return r == ',' || r == '.' || r == ';' }) {
		for _, piece := range strings.Split(item, " and ") {
			words := contentWords(piece)
			if len(words) == 0 {
				continue
			}
			name := strings.Join(words, " ")
			ingredients = append(ingredients, map[string]any{"name": name})
			ingredientNames = append(ingredientNames, name)
		}
	}

	if len(ingredients) > 0 {
		args[tools.FieldAvailableIngredients] = ingredients
	}

	dishPart = underCalories.ReplaceAllString(dishPart, " ")
	dishPart = gramsOf.ReplaceAllString(dishPart, " ")
	for _, phrase := range descriptorPhrases {
		dishPart = strings.ReplaceAll(dishPart, phrase, " ")
	}

	query := strings.Join(contentWords(dishPart), " ")
	if query == "" {
		query = strings.Join(ingredientNames, " ")
	}
	args[tools.FieldQueryText] = query
	return args
}

func contentWords(s string) []string {
	var words []string
	for _, w := range wordPattern.FindAllString(s, -1) {
		if !stopWords[w] {
			words = append(words, w)
		}
	}
	return words
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
