package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"correlation-service/models"
)

// CorrelationRepository persists correlation records. The unique index on
// payment_intent_id is what enforces at-most-one record per payment attempt;
// a racing create surfaces as ErrConcurrentModification.
type CorrelationRepository interface {
	GetByPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.CorrelationRecord, error)
	// LockByPaymentIntentID loads the record with a row lock. Only meaningful
	// inside Store.Transact; this is the per-intent serialization point.
	LockByPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.CorrelationRecord, error)
	Create(ctx context.Context, record *models.CorrelationRecord) error
	Update(ctx context.Context, record *models.CorrelationRecord) error
	ListByClientID(ctx context.Context, clientID uuid.UUID) ([]models.CorrelationRecord, error)
}

type gormCorrelationRepo struct {
	db *gorm.DB
}

func (r *gormCorrelationRepo) GetByPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.CorrelationRecord, error) {
	var record models.CorrelationRecord
	err := r.db.WithContext(ctx).Where("payment_intent_id = ?", paymentIntentID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load correlation %s: %w", paymentIntentID, err)
	}
	return &record, nil
}

func (r *gormCorrelationRepo) LockByPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.CorrelationRecord, error) {
	var record models.CorrelationRecord
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("payment_intent_id = ?", paymentIntentID).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock correlation %s: %w", paymentIntentID, err)
	}
	return &record, nil
}

func (r *gormCorrelationRepo) Create(ctx context.Context, record *models.CorrelationRecord) error {
	err := r.db.WithContext(ctx).Create(record).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Another delivery for the same intent created the record first.
		return ErrConcurrentModification
	}
	if err != nil {
		return fmt.Errorf("create correlation %s: %w", record.PaymentIntentID, err)
	}
	return nil
}

func (r *gormCorrelationRepo) Update(ctx context.Context, record *models.CorrelationRecord) error {
	// Compare-and-swap on the version column backs up the row lock when the
	// record was loaded outside a transaction.
	updated := *record
	updated.Version = record.Version + 1
	res := r.db.WithContext(ctx).
		Model(&models.CorrelationRecord{}).
		Where("id = ? AND version = ?", record.ID, record.Version).
		Select("outcome_type", "journey_snapshot", "conversion_duration_seconds",
			"amount_minor_units", "currency", "failure_reason", "failure_code",
			"source_event_ids", "needs_review", "version", "updated_at").
		Updates(&updated)
	if res.Error != nil {
		return fmt.Errorf("update correlation %s: %w", record.PaymentIntentID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConcurrentModification
	}
	record.Version++
	return nil
}

func (r *gormCorrelationRepo) ListByClientID(ctx context.Context, clientID uuid.UUID) ([]models.CorrelationRecord, error) {
	var records []models.CorrelationRecord
	err := r.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		Order("correlated_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list correlations for client %s: %w", clientID, err)
	}
	return records, nil
}
