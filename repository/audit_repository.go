package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"correlation-service/models"
)

// AuditRepository is append-only: one entry per received delivery, never
// updated, never deleted. This is the system-of-record for what the provider
// actually sent.
type AuditRepository interface {
	Append(ctx context.Context, entry *models.AuditEntry) error
	ListByPaymentIntentID(ctx context.Context, paymentIntentID string) ([]models.AuditEntry, error)
}

type gormAuditRepo struct {
	db *gorm.DB
}

func (r *gormAuditRepo) Append(ctx context.Context, entry *models.AuditEntry) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("append audit entry for event %s: %w", entry.EventID, err)
	}
	return nil
}

func (r *gormAuditRepo) ListByPaymentIntentID(ctx context.Context, paymentIntentID string) ([]models.AuditEntry, error) {
	var entries []models.AuditEntry
	err := r.db.WithContext(ctx).
		Where("payment_intent_id = ?", paymentIntentID).
		Order("created_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("list audit entries for intent %s: %w", paymentIntentID, err)
	}
	return entries, nil
}
