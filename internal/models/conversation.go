package models

import "time"

// Conversation statuses.
const (
	ConversationActive    = "active"
	ConversationCompleted = "completed"
	ConversationTimeout   = "timeout"
	ConversationDeleted   = "deleted"
)

// Conversation groups the messages of one chat session. SessionID is supplied
// by the caller and globally unique: concurrent first messages for the same
// session must collapse to a single row, and the session stays bound to the
// agent that created it.
type Conversation struct {
	ID           string `gorm:"primaryKey;size:36"`
	AgentID      string `gorm:"size:36;not null;index"`
	SessionID    string `gorm:"uniqueIndex;size:255;not null"`
	VisitorID    string `gorm:"size:64"`
	Status       string `gorm:"size:16;default:active;index"`
	MessageCount int64  `gorm:"default:0"`
	IsFavorite   bool   `gorm:"default:false"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
