// Package llm defines the model-provider boundary: chat message types and a
// streaming completion client.
package llm

import (
	"context"
	"encoding/json"
)

// Message roles on the provider wire.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall is one tool invocation requested by the model.
type ToolCall struct {
	ID   string
	Name string
	Args json.RawMessage
}

// Message is one entry in the provider conversation.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall // assistant messages only
	ToolCallID string     // tool-result messages only
}

// ToolDef describes a callable tool offered to the model.
type ToolDef struct {
	Name        string
	Description string
	Schema      json.RawMessage
}

// Usage is the provider's token report for one completion.
type Usage struct {
	InputTokens  int
	OutputTokens int
	CachedTokens int
}

// Add accumulates usage across loop steps.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.CachedTokens += other.CachedTokens
}

// Request is one streaming completion call.
type Request struct {
	Model       string
	Messages    []Message
	Tools       []ToolDef
	Temperature *float64
}

// Result is the completed output of one streaming call.
type Result struct {
	Text         string
	ToolCalls    []ToolCall
	Usage        Usage
	FinishReason string
}

// Client streams one completion, invoking onDelta for each visible text
// fragment as it arrives.
type Client interface {
	Stream(ctx context.Context, req Request, onDelta func(text string)) (*Result, error)
}
