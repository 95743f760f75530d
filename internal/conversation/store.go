// Package conversation manages chat session state: atomic find-or-create by
// session id, history reconstruction, and the append-only message writers.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/formloom/gateway/internal/apierr"
	"github.com/formloom/gateway/internal/llm"
	"github.com/formloom/gateway/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// sessionIDPattern is the allowed shape of externally supplied session ids.
var sessionIDPattern = regexp.MustCompile(`^[\w\-.]+$`)

// ValidSessionID reports whether a caller-supplied session id is acceptable.
func ValidSessionID(s string) bool {
	return s != "" && len(s) <= 255 && sessionIDPattern.MatchString(s)
}

// QuotaChecker is the plan-limit collaborator consulted before creating a
// new conversation.
type QuotaChecker interface {
	CheckConversationQuota(ctx context.Context, tenantID string) error
}

// Store reads and writes conversations and messages.
type Store struct {
	db    *gorm.DB
	quota QuotaChecker
}

// NewStore creates a Store. quota may be nil, which disables quota checks.
func NewStore(db *gorm.DB, quota QuotaChecker) *Store {
	return &Store{db: db, quota: quota}
}

// Resolve finds the conversation for a session id, creating it if absent.
// Creation checks the tenant's monthly quota first, then runs the find-or-
// create inside one transaction so concurrent first messages for the same
// session collapse to a single row and the agent's counters increment
// exactly once. A session id stays bound to the agent that first used it;
// resolving it under any other agent fails with FORBIDDEN.
func (s *Store) Resolve(ctx context.Context, agent *models.Agent, sessionID, visitorID string) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.db.WithContext(ctx).Where("session_id = ? AND agent_id = ?", sessionID, agent.ID).First(&conv).Error
	if err == nil {
		return &conv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("conversation: lookup %s: %w", sessionID, err)
	}

	if s.quota != nil {
		if err := s.quota.CheckConversationQuota(ctx, agent.TenantID); err != nil {
			return nil, err
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Re-check inside the transaction: another request may have created
		// the row between our read and here. The unique index is on
		// session_id alone, so the row found here may belong to a different
		// agent; never adopt one this agent does not own.
		var existing models.Conversation
		err := tx.Where("session_id = ?", sessionID).First(&existing).Error
		if err == nil {
			if existing.AgentID != agent.ID {
				return apierr.Forbidden("session id is already in use by another agent")
			}
			conv = existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("conversation: re-check %s: %w", sessionID, err)
		}

		conv = models.Conversation{
			ID:        uuid.NewString(),
			AgentID:   agent.ID,
			SessionID: sessionID,
			VisitorID: visitorID,
			Status:    models.ConversationActive,
		}
		if err := tx.Create(&conv).Error; err != nil {
			return fmt.Errorf("conversation: create %s: %w", sessionID, err)
		}

		if err := tx.Model(&models.Agent{}).Where("id = ?", agent.ID).Updates(map[string]interface{}{
			"conversation_count": gorm.Expr("conversation_count + 1"),
			"monthly_usage":      gorm.Expr("monthly_usage + 1"),
		}).Error; err != nil {
			return fmt.Errorf("conversation: bump agent counters: %w", err)
		}
		return nil
	})

	if err != nil {
		// A concurrent transaction may have won the insert; the unique index
		// on session_id rejects the loser. Fall back to the winner's row,
		// but only when this agent owns it.
		if isDuplicateKey(err) {
			var existing models.Conversation
			ferr := s.db.WithContext(ctx).Where("session_id = ? AND agent_id = ?", sessionID, agent.ID).First(&existing).Error
			if ferr == nil {
				return &existing, nil
			}
			if errors.Is(ferr, gorm.ErrRecordNotFound) {
				return nil, apierr.Forbidden("session id is already in use by another agent")
			}
			return nil, fmt.Errorf("conversation: post-conflict lookup %s: %w", sessionID, ferr)
		}
		return nil, err
	}
	return &conv, nil
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint") || strings.Contains(msg, "Duplicate entry")
}

// LoadHistory fetches the non-deleted, non-system messages of a conversation
// in creation order and maps them to model-ready messages. Parts, when
// present, are authoritative; otherwise a single text segment is synthesized
// from the flat content.
func (s *Store) LoadHistory(ctx context.Context, conversationID string) ([]llm.Message, error) {
	var rows []models.Message
	err := s.db.WithContext(ctx).
		Where("conversation_id = ? AND deleted = ? AND role != ?", conversationID, false, models.RoleSystem).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("conversation: load history %s: %w", conversationID, err)
	}

	var history []llm.Message
	for _, row := range rows {
		msgs, err := toModelMessages(row)
		if err != nil {
			return nil, fmt.Errorf("conversation: message %s: %w", row.ID, err)
		}
		history = append(history, msgs...)
	}
	return history, nil
}

// toModelMessages converts one stored row into provider messages. An
// assistant row with tool-call parts expands into the assistant message plus
// one tool-result message per completed call, so replayed history matches
// what the provider originally saw.
func toModelMessages(row models.Message) ([]llm.Message, error) {
	parts, err := models.DecodeParts(row.Parts)
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return []llm.Message{{Role: row.Role, Content: row.Content}}, nil
	}

	var text strings.Builder
	var toolCalls []llm.ToolCall
	var toolResults []llm.Message
	for _, p := range parts {
		switch p.Type {
		case models.PartText:
			text.WriteString(p.Text)
		case models.PartToolCall:
			toolCalls = append(toolCalls, llm.ToolCall{ID: p.ToolCallID, Name: p.ToolName, Args: p.Args})
			if p.State == models.ToolStateResult {
				toolResults = append(toolResults, llm.Message{
					Role:       llm.RoleTool,
					Content:    p.Output,
					ToolCallID: p.ToolCallID,
				})
			}
		}
	}

	msgs := []llm.Message{{Role: row.Role, Content: text.String(), ToolCalls: toolCalls}}
	return append(msgs, toolResults...), nil
}

// AppendUserMessage persists the caller's turn before the model is invoked,
// so the user message is durable even if the model call fails. The supplied
// parts omit a role; it is always tagged user here.
func (s *Store) AppendUserMessage(ctx context.Context, conv *models.Conversation, parts []models.Part) (*models.Message, error) {
	encoded, err := models.EncodeParts(parts)
	if err != nil {
		return nil, apierr.Validation(err.Error())
	}

	var content strings.Builder
	for _, p := range parts {
		if p.Type == models.PartText {
			content.WriteString(p.Text)
		}
	}

	msg := models.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Role:           models.RoleUser,
		Content:        content.String(),
		Parts:          encoded,
	}
	if err := s.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return nil, fmt.Errorf("conversation: append user message: %w", err)
	}
	s.bumpMessageCount(ctx, conv.ID)
	return &msg, nil
}

// AssistantTurn carries everything the completion handler learned about one
// assistant response.
type AssistantTurn struct {
	Content        string
	Parts          []models.Part
	InputTokens    int
	OutputTokens   int
	CachedTokens   int
	TotalCost      float64
	Provider       string
	Model          string
	ResponseTimeMs int
	FirstTokenMs   int
}

// AddAssistantMessage is the single place token, cost, provider, model and
// latency fields are attached to a stored message.
func (s *Store) AddAssistantMessage(ctx context.Context, conversationID string, turn AssistantTurn) (*models.Message, error) {
	encoded, err := models.EncodeParts(turn.Parts)
	if err != nil {
		return nil, fmt.Errorf("conversation: assistant parts: %w", err)
	}

	msg := models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           models.RoleAssistant,
		Content:        turn.Content,
		Parts:          encoded,
		InputTokens:    turn.InputTokens,
		OutputTokens:   turn.OutputTokens,
		CachedTokens:   turn.CachedTokens,
		TotalCost:      turn.TotalCost,
		Provider:       turn.Provider,
		Model:          turn.Model,
		ResponseTimeMs: turn.ResponseTimeMs,
		FirstTokenMs:   turn.FirstTokenMs,
	}
	if err := s.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return nil, fmt.Errorf("conversation: add assistant message: %w", err)
	}
	s.bumpMessageCount(ctx, conversationID)
	return &msg, nil
}

// bumpMessageCount keeps the conversation-scoped counter current.
// Best-effort: a failure is not worth failing the turn over.
func (s *Store) bumpMessageCount(ctx context.Context, conversationID string) {
	_ = s.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ?", conversationID).
		Updates(map[string]interface{}{
			"message_count": gorm.Expr("message_count + 1"),
		}).Error
}

// SetExternalMessageID records the outbound-channel correlation id for a
// message after delivery.
func (s *Store) SetExternalMessageID(ctx context.Context, messageID, externalID string) error {
	err := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ?", messageID).
		Update("external_message_id", externalID).Error
	if err != nil {
		return fmt.Errorf("conversation: set external id: %w", err)
	}
	return nil
}

// List returns a tenant's conversations, newest first, optionally filtered
// to one agent. Access is scoped through agent ownership.
func (s *Store) List(ctx context.Context, tenantID, agentID string, limit, offset int) ([]models.Conversation, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	q := s.db.WithContext(ctx).
		Joins("JOIN agents ON agents.id = conversations.agent_id").
		Where("agents.tenant_id = ? AND conversations.status != ?", tenantID, models.ConversationDeleted)
	if agentID != "" {
		q = q.Where("conversations.agent_id = ?", agentID)
	}

	var convs []models.Conversation
	err := q.Order("conversations.created_at DESC").Limit(limit).Offset(offset).Find(&convs).Error
	if err != nil {
		return nil, fmt.Errorf("conversation: list for tenant %s: %w", tenantID, err)
	}
	return convs, nil
}

// Get returns one conversation, enforcing tenant ownership through the agent.
func (s *Store) Get(ctx context.Context, tenantID, conversationID string) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.db.WithContext(ctx).
		Joins("JOIN agents ON agents.id = conversations.agent_id").
		Where("conversations.id = ? AND agents.tenant_id = ?", conversationID, tenantID).
		First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.NotFound("conversation not found")
		}
		return nil, fmt.Errorf("conversation: get %s: %w", conversationID, err)
	}
	return &conv, nil
}

// Messages returns the raw stored rows of a conversation for the history
// intent, tenant-scoped and oldest first.
func (s *Store) Messages(ctx context.Context, tenantID, conversationID string) ([]models.Message, error) {
	if _, err := s.Get(ctx, tenantID, conversationID); err != nil {
		return nil, err
	}
	var rows []models.Message
	err := s.db.WithContext(ctx).
		Where("conversation_id = ? AND deleted = ?", conversationID, false).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("conversation: messages %s: %w", conversationID, err)
	}
	return rows, nil
}
