package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// Lead is contact information captured during a conversation.
type Lead struct {
	AgentID        string
	ConversationID string
	Name           string
	Email          string
	Phone          string
	Notes          string
}

// LeadStore is the lead-capture collaborator.
type LeadStore interface {
	SaveLead(ctx context.Context, lead Lead) error
}

// SaveLeadTool lets the model record visitor contact details, scoped to the
// current agent and conversation.
type SaveLeadTool struct {
	Store          LeadStore
	AgentID        string
	ConversationID string
}

func (t *SaveLeadTool) Name() string { return "save_lead" }

func (t *SaveLeadTool) Description() string {
	return "Save the visitor's contact information when they share it."
}

func (t *SaveLeadTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"name": {"type": "string"},
			"email": {"type": "string"},
			"phone": {"type": "string"},
			"notes": {"type": "string"}
		},
		"required": ["email"]
	}`)
}

func (t *SaveLeadTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var in struct {
		Name  string `json:"name"`
		Email string `json:"email"`
		Phone string `json:"phone"`
		Notes string `json:"notes"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("tools: save lead args: %w", err)
	}
	if in.Email == "" {
		return "", fmt.Errorf("tools: lead email is required")
	}

	err := t.Store.SaveLead(ctx, Lead{
		AgentID:        t.AgentID,
		ConversationID: t.ConversationID,
		Name:           in.Name,
		Email:          in.Email,
		Phone:          in.Phone,
		Notes:          in.Notes,
	})
	if err != nil {
		return "", fmt.Errorf("tools: save lead: %w", err)
	}
	return "Contact information saved.", nil
}
