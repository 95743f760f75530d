// Package agents provides tenant-scoped CRUD over Agent rows. All access is
// gated by the owning tenant id; cross-tenant reads surface as not-found.
package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/formloom/gateway/internal/apierr"
	"github.com/formloom/gateway/internal/modelcat"
	"github.com/formloom/gateway/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Store reads and writes agents.
type Store struct {
	db *gorm.DB
}

// NewStore creates a Store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// List returns the tenant's non-deleted agents, newest first.
func (s *Store) List(ctx context.Context, tenantID string) ([]models.Agent, error) {
	var agents []models.Agent
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND status != ?", tenantID, models.AgentDeleted).
		Order("created_at DESC").
		Find(&agents).Error
	if err != nil {
		return nil, fmt.Errorf("agents: list for tenant %s: %w", tenantID, err)
	}
	return agents, nil
}

// Get returns one agent, scoped to the tenant.
func (s *Store) Get(ctx context.Context, tenantID, agentID string) (*models.Agent, error) {
	var agent models.Agent
	err := s.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ? AND status != ?", agentID, tenantID, models.AgentDeleted).
		First(&agent).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.NotFound("agent not found")
		}
		return nil, fmt.Errorf("agents: get %s: %w", agentID, err)
	}
	return &agent, nil
}

// CreateParams are the caller-supplied fields for a new agent.
type CreateParams struct {
	Name               string `json:"name"`
	Slug               string `json:"slug"`
	Model              string `json:"model"`
	Instructions       string `json:"instructions"`
	CustomInstructions string `json:"customInstructions"`
	WelcomeMessage     string `json:"welcomeMessage"`
}

// Create inserts a new agent for the tenant.
func (s *Store) Create(ctx context.Context, tenantID string, p CreateParams) (*models.Agent, error) {
	if strings.TrimSpace(p.Name) == "" {
		return nil, apierr.Validation("agent name is required")
	}
	if p.Model != "" && !modelcat.Known(p.Model) {
		return nil, apierr.Validation(fmt.Sprintf("unknown model %q", p.Model))
	}
	if p.Slug == "" {
		p.Slug = slugify(p.Name)
	}

	agent := models.Agent{
		ID:                 uuid.NewString(),
		TenantID:           tenantID,
		Name:               p.Name,
		Slug:               p.Slug,
		Model:              p.Model,
		Instructions:       p.Instructions,
		CustomInstructions: p.CustomInstructions,
		WelcomeMessage:     p.WelcomeMessage,
		Status:             models.AgentActive,
	}
	if err := s.db.WithContext(ctx).Create(&agent).Error; err != nil {
		return nil, fmt.Errorf("agents: create: %w", err)
	}
	return &agent, nil
}

// UpdateParams are the mutable fields; nil pointers are left unchanged.
type UpdateParams struct {
	Name               *string `json:"name"`
	Model              *string `json:"model"`
	Instructions       *string `json:"instructions"`
	CustomInstructions *string `json:"customInstructions"`
	WelcomeMessage     *string `json:"welcomeMessage"`
	Status             *string `json:"status"`
}

// Update applies a partial update, scoped to the tenant.
func (s *Store) Update(ctx context.Context, tenantID, agentID string, p UpdateParams) (*models.Agent, error) {
	agent, err := s.Get(ctx, tenantID, agentID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if p.Name != nil {
		if strings.TrimSpace(*p.Name) == "" {
			return nil, apierr.Validation("agent name cannot be empty")
		}
		updates["name"] = *p.Name
	}
	if p.Model != nil {
		if *p.Model != "" && !modelcat.Known(*p.Model) {
			return nil, apierr.Validation(fmt.Sprintf("unknown model %q", *p.Model))
		}
		updates["model"] = *p.Model
	}
	if p.Instructions != nil {
		updates["instructions"] = *p.Instructions
	}
	if p.CustomInstructions != nil {
		updates["custom_instructions"] = *p.CustomInstructions
	}
	if p.WelcomeMessage != nil {
		updates["welcome_message"] = *p.WelcomeMessage
	}
	if p.Status != nil {
		switch *p.Status {
		case models.AgentActive, models.AgentInactive, models.AgentDeleted:
			updates["status"] = *p.Status
		default:
			return nil, apierr.Validation(fmt.Sprintf("invalid status %q", *p.Status))
		}
	}
	if len(updates) == 0 {
		return agent, nil
	}

	if err := s.db.WithContext(ctx).Model(agent).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("agents: update %s: %w", agentID, err)
	}

	// Re-read without the deleted filter so a soft-delete returns its row.
	var out models.Agent
	if err := s.db.WithContext(ctx).First(&out, "id = ?", agentID).Error; err != nil {
		return nil, fmt.Errorf("agents: reload %s: %w", agentID, err)
	}
	return &out, nil
}

// slugify lowercases a name and collapses runs of non-alphanumerics to
// single hyphens.
func slugify(name string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}
