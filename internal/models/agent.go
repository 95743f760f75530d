package models

import (
	"time"

	"gorm.io/datatypes"
)

// Agent statuses.
const (
	AgentActive   = "active"
	AgentInactive = "inactive"
	AgentDeleted  = "deleted"
)

// Agent is a tenant-owned chatbot configuration. Created and updated only
// through secret-scoped calls.
type Agent struct {
	ID                 string `gorm:"primaryKey;size:36"`
	TenantID           string `gorm:"size:36;not null;index"`
	Name               string `gorm:"size:128;not null"`
	Slug               string `gorm:"size:128;index"`
	Model              string `gorm:"size:64"`
	Instructions       string `gorm:"type:text"`
	CustomInstructions string `gorm:"type:text"`
	WelcomeMessage     string `gorm:"type:text"`
	Status             string `gorm:"size:16;default:active;index"`
	// ToolsConfig holds the per-agent custom HTTP tool definitions as a JSON
	// array; decoded by the tool registry at request time.
	ToolsConfig       datatypes.JSON `gorm:"type:json"`
	ConversationCount int64          `gorm:"default:0"`
	MonthlyUsage      int64          `gorm:"default:0"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
