package models

import (
	"time"

	"gorm.io/datatypes"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one turn in a conversation. Rows are append-only. Assistant rows
// are the only place token/cost fields are populated.
type Message struct {
	ID             string `gorm:"primaryKey;size:36"`
	ConversationID string `gorm:"size:36;not null;index"`
	Role           string `gorm:"size:16;not null"`
	Content        string `gorm:"type:text"`
	// Parts is the structured representation of the turn (ordered text and
	// tool-call records). When present it is authoritative over Content for
	// model-history reconstruction.
	Parts             datatypes.JSON `gorm:"type:json"`
	InputTokens       int
	OutputTokens      int
	CachedTokens      int
	TotalCost         float64
	Provider          string `gorm:"size:32"`
	Model             string `gorm:"size:64"`
	ResponseTimeMs    int
	FirstTokenMs      int
	ExternalMessageID string `gorm:"size:128"`
	Deleted           bool   `gorm:"default:false;index"`
	CreatedAt         time.Time
}
