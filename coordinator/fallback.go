package coordinator

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"recipeagent/tools"
)

// FallbackCallID is the ID given to a tool call recovered from reply text.
const FallbackCallID = "fallback-0"

var fenceMarker = regexp.MustCompile("```(?:json)?")

// ParseFallbackCall looks for a tool call written out as JSON in the model's text, as
// smaller local models often do instead of using native tool calling. Code fence markers
// are removed before parsing. The object must carry a "name" key; arguments come from
// "parameters" when it is a non-empty object, otherwise from "args".
func ParseFallbackCall(content string) (tools.Call, FallbackStatus) {
	if strings.TrimSpace(content) == "" {
		return tools.Call{}, FallbackSkipped
	}

	raw := strings.TrimSpace(fenceMarker.ReplaceAllString(content, ""))

	var parsed map[string]any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return tools.Call{}, FallbackNotJSON
	}

	rawName, ok := parsed["name"]
	if !ok {
		return tools.Call{}, FallbackNoName
	}
	name, ok := rawName.(string)
	if !ok {
		name = fmt.Sprint(rawName)
	}

	args, _ := parsed["parameters"].(map[string]any)
	if len(args) == 0 {
		args, _ = parsed["args"].(map[string]any)
	}
	if args == nil {
		args = map[string]any{}
	}

	return tools.Call{ID: FallbackCallID, Name: name, Args: args}, FallbackParsed
}
