package models

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
)

// Part types.
const (
	PartText     = "text"
	PartToolCall = "tool-call"
)

// Tool-call part states.
const (
	ToolStateResult  = "result"
	ToolStatePending = "pending"
)

// Part is one element of a message's structured content: either a text
// segment or a tool-call record with its matched output.
type Part struct {
	Type       string          `json:"type"`
	Text       string          `json:"text,omitempty"`
	ToolCallID string          `json:"toolCallId,omitempty"`
	ToolName   string          `json:"toolName,omitempty"`
	State      string          `json:"state,omitempty"`
	Args       json.RawMessage `json:"args,omitempty"`
	Output     string          `json:"output,omitempty"`
}

// Validate checks the tagged-union shape of a part.
func (p Part) Validate() error {
	switch p.Type {
	case PartText:
		if p.Text == "" {
			return fmt.Errorf("models: text part with empty text")
		}
	case PartToolCall:
		if p.ToolCallID == "" || p.ToolName == "" {
			return fmt.Errorf("models: tool-call part missing toolCallId or toolName")
		}
	default:
		return fmt.Errorf("models: unknown part type %q", p.Type)
	}
	return nil
}

// EncodeParts validates and marshals a parts list for storage.
func EncodeParts(parts []Part) (datatypes.JSON, error) {
	for i, p := range parts {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("parts[%d]: %w", i, err)
		}
	}
	data, err := json.Marshal(parts)
	if err != nil {
		return nil, fmt.Errorf("models: encode parts: %w", err)
	}
	return datatypes.JSON(data), nil
}

// DecodeParts unmarshals a stored parts column. A null or empty column
// decodes to nil, meaning the flat Content field is the fallback.
func DecodeParts(data datatypes.JSON) ([]Part, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var parts []Part
	if err := json.Unmarshal(data, &parts); err != nil {
		return nil, fmt.Errorf("models: decode parts: %w", err)
	}
	return parts, nil
}
