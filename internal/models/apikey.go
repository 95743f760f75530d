package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// Key scopes. Publishable keys are frontend-safe and domain-restricted;
// secret keys are backend-only with full tenant access.
const (
	ScopePublishable = "publishable"
	ScopeSecret      = "secret"
)

// ApiKey is a caller credential. Usage counters are approximate: they are
// bumped best-effort on every validated call and tolerate lost updates.
type ApiKey struct {
	ID             string         `gorm:"primaryKey;size:36"`
	Key            string         `gorm:"uniqueIndex;size:128;not null"`
	TenantID       string         `gorm:"size:36;not null;index"`
	Scope          string         `gorm:"size:16;not null;default:publishable"`
	AllowedDomains datatypes.JSON `gorm:"type:json"`
	// No column default: gorm omits zero-valued defaulted fields on insert,
	// which would store a key minted inactive as active. Minting sets this
	// explicitly.
	IsActive        bool       `gorm:"index"`
	LastUsedAt      *time.Time
	RequestCount    int64      `gorm:"default:0"`
	MonthlyRequests int64      `gorm:"default:0"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// EncodeDomains marshals an allowed-domains list for storage.
func EncodeDomains(domains []string) (datatypes.JSON, error) {
	data, err := json.Marshal(domains)
	if err != nil {
		return nil, fmt.Errorf("models: encode domains: %w", err)
	}
	return datatypes.JSON(data), nil
}

// DecodeDomains unmarshals a stored allowed-domains column. A null or empty
// column decodes to nil.
func DecodeDomains(data datatypes.JSON) ([]string, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var domains []string
	if err := json.Unmarshal(data, &domains); err != nil {
		return nil, fmt.Errorf("models: decode domains: %w", err)
	}
	return domains, nil
}
