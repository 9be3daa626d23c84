package tools

import (
	"fmt"
	"sort"

	"recipeagent/tools/search"
)

// Registry maps tool names to implementations
type Registry map[string]Tool

// NewRegistry creates a registry exposing recipe search over the given searcher.
func NewRegistry(searcher search.Searcher) (*Registry, error) {
	if searcher == nil {
		return nil, fmt.Errorf("searcher is required")
	}

	findRecipes := NewFindRecipes(searcher)
	registry := Registry{findRecipes.Name(): findRecipes}
	return &registry, nil
}

// GetTools returns all tools in the registry ordered by name
func (r *Registry) GetTools() []Tool {
	tools := make([]Tool, 0, len(*r))
	for _, tool := range *r {
		tools = append(tools, tool)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name() < tools[j].Name() })
	return tools
}

// GetTool retrieves a tool by name from the registry
func (r Registry) GetTool(name string) (Tool, error) {
	tool, exists := r[name]
	if !exists {
		return nil, fmt.Errorf("tool %q not found in registry", name)
	}
	return tool, nil
}
