// Package quota enforces per-tenant plan limits and handles monthly
// counter rollover.
package quota

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/formloom/gateway/internal/apierr"
	"github.com/formloom/gateway/internal/config"
	"github.com/formloom/gateway/internal/models"
	"gorm.io/gorm"
)

// Notifier receives operational alerts. Implemented by internal/notify.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Service checks plan limits against stored usage.
type Service struct {
	db       *gorm.DB
	plans    config.PlansConfig
	notifier Notifier

	mu      sync.Mutex
	alerted map[string]bool // tenants alerted since the last rollover
}

// NewService creates a quota service. notifier may be nil.
func NewService(db *gorm.DB, plans config.PlansConfig, notifier Notifier) *Service {
	return &Service{db: db, plans: plans, notifier: notifier, alerted: map[string]bool{}}
}

// CheckConversationQuota fails with 429 MONTHLY_LIMIT_EXCEEDED when the
// tenant has used up its plan's monthly conversation allowance. The first
// time a tenant crosses the limit in a month, an alert is sent.
func (s *Service) CheckConversationQuota(ctx context.Context, tenantID string) error {
	plan := s.plans.ForTenant(tenantID)
	if plan.MonthlyConversations <= 0 {
		return nil
	}

	var used int64
	err := s.db.WithContext(ctx).Model(&models.Agent{}).
		Select("COALESCE(SUM(monthly_usage),0)").
		Where("tenant_id = ?", tenantID).
		Scan(&used).Error
	if err != nil {
		return fmt.Errorf("quota: usage for tenant %s: %w", tenantID, err)
	}

	if used >= plan.MonthlyConversations {
		s.alertOnce(ctx, tenantID, used, plan.MonthlyConversations)
		return apierr.MonthlyLimit("Monthly conversation limit reached")
	}
	return nil
}

// alertOnce notifies the ops channel the first time a tenant exhausts its
// quota in the current month. Best-effort.
func (s *Service) alertOnce(ctx context.Context, tenantID string, used, limit int64) {
	if s.notifier == nil {
		return
	}
	s.mu.Lock()
	already := s.alerted[tenantID]
	s.alerted[tenantID] = true
	s.mu.Unlock()
	if already {
		return
	}

	msg := fmt.Sprintf("tenant %s hit its monthly conversation quota (%d/%d)", tenantID, used, limit)
	if err := s.notifier.Notify(ctx, msg); err != nil {
		log.Printf("quota: alert for tenant %s: %v", tenantID, err)
	}
}

// ResetMonthly zeroes the monthly usage counters. Scheduled for the first of
// each month by the serve command.
func (s *Service) ResetMonthly(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Model(&models.Agent{}).
		Where("monthly_usage > 0").
		Update("monthly_usage", 0).Error; err != nil {
		return fmt.Errorf("quota: reset agent usage: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&models.ApiKey{}).
		Where("monthly_requests > 0").
		Update("monthly_requests", 0).Error; err != nil {
		return fmt.Errorf("quota: reset key requests: %w", err)
	}

	s.mu.Lock()
	s.alerted = map[string]bool{}
	s.mu.Unlock()

	log.Printf("quota: monthly counters reset at %s", time.Now().UTC().Format(time.RFC3339))
	return nil
}
