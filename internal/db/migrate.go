package db

import (
	"fmt"

	"github.com/formloom/gateway/internal/models"
	"gorm.io/gorm"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.ApiKey{},
		&models.Agent{},
		&models.Conversation{},
		&models.Message{},
	}
}

// AutoMigrate creates or updates all gateway tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}
