package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"correlation-service/models"
)

// IdempotencyRepository answers "have I handled this exact delivery before?".
// A store failure must surface to the caller so the HTTP layer can return a
// retryable status instead of silently reprocessing.
type IdempotencyRepository interface {
	HasProcessed(ctx context.Context, eventID string) (bool, error)
	// RecordSeen marks the delivery as handled. Recording an already-seen id
	// is a no-op, not an error.
	RecordSeen(ctx context.Context, eventID, paymentIntentID string) error
}

type gormIdempotencyRepo struct {
	db *gorm.DB
}

func (r *gormIdempotencyRepo) HasProcessed(ctx context.Context, eventID string) (bool, error) {
	var seen models.ProcessedEvent
	err := r.db.WithContext(ctx).Where("event_id = ?", eventID).First(&seen).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check processed event %s: %w", eventID, err)
	}
	return true, nil
}

func (r *gormIdempotencyRepo) RecordSeen(ctx context.Context, eventID, paymentIntentID string) error {
	record := models.ProcessedEvent{EventID: eventID, PaymentIntentID: paymentIntentID}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&record).Error
	if err != nil {
		return fmt.Errorf("record processed event %s: %w", eventID, err)
	}
	return nil
}
