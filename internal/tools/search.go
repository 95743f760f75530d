package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// SearchResult is one hit from the vector-search collaborator.
type SearchResult struct {
	Title   string
	Content string
	Score   float64
}

// SearchProvider is the vector-search collaborator, scoped to one agent's
// knowledge base.
type SearchProvider interface {
	Search(ctx context.Context, agentID, query string, limit int) ([]SearchResult, error)
}

// SearchTool surfaces agent-scoped context search to the model.
type SearchTool struct {
	Provider SearchProvider
	AgentID  string
}

func (t *SearchTool) Name() string { return "search_knowledge" }

func (t *SearchTool) Description() string {
	return "Search the agent's knowledge base for information relevant to the user's question."
}

func (t *SearchTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {"type": "string", "description": "The search query"}
		},
		"required": ["query"]
	}`)
}

func (t *SearchTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var in struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("tools: search args: %w", err)
	}
	if in.Query == "" {
		return "", fmt.Errorf("tools: search query is required")
	}

	results, err := t.Provider.Search(ctx, t.AgentID, in.Query, 5)
	if err != nil {
		return "", fmt.Errorf("tools: search: %w", err)
	}
	if len(results) == 0 {
		return "No relevant information found.", nil
	}

	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if r.Title != "" {
			fmt.Fprintf(&b, "[%s]\n", r.Title)
		}
		b.WriteString(r.Content)
	}
	return b.String(), nil
}

// WebSearcher is the external web-search collaborator.
type WebSearcher interface {
	SearchWeb(ctx context.Context, query string, limit int) ([]SearchResult, error)
}

// WebSearchTool surfaces plan-gated web search to the model.
type WebSearchTool struct {
	Searcher WebSearcher
}

func (t *WebSearchTool) Name() string { return "web_search" }

func (t *WebSearchTool) Description() string {
	return "Search the web for current information not in the knowledge base."
}

func (t *WebSearchTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {"type": "string", "description": "The search query"}
		},
		"required": ["query"]
	}`)
}

func (t *WebSearchTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var in struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("tools: web search args: %w", err)
	}
	if in.Query == "" {
		return "", fmt.Errorf("tools: web search query is required")
	}

	results, err := t.Searcher.SearchWeb(ctx, in.Query, 3)
	if err != nil {
		return "", fmt.Errorf("tools: web search: %w", err)
	}
	if len(results) == 0 {
		return "No results found.", nil
	}

	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "%s\n%s", r.Title, r.Content)
	}
	return b.String(), nil
}
