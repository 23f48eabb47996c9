package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"correlation-service/models"
)

// ClientRepository is the engine's narrow contract against the externally
// owned clients table: look up identity by reference, write back the payment
// projection. Nothing else on the client row is touched here.
type ClientRepository interface {
	GetByReference(ctx context.Context, reference string) (*models.Client, error)
	UpdatePaymentProjection(ctx context.Context, clientID uuid.UUID, outcome models.OutcomeType, amountMinorUnits int64, currency string, at time.Time) error
}

type gormClientRepo struct {
	db *gorm.DB
}

func (r *gormClientRepo) GetByReference(ctx context.Context, reference string) (*models.Client, error) {
	var client models.Client
	err := r.db.WithContext(ctx).Where("reference = ?", reference).First(&client).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load client by reference %q: %w", reference, err)
	}
	return &client, nil
}

func (r *gormClientRepo) UpdatePaymentProjection(ctx context.Context, clientID uuid.UUID, outcome models.OutcomeType, amountMinorUnits int64, currency string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.Client{}).
		Where("id = ?", clientID).
		Updates(map[string]interface{}{
			"payment_outcome":            string(outcome),
			"payment_amount_minor_units": amountMinorUnits,
			"payment_currency":           currency,
			"payment_updated_at":         at,
		})
	if res.Error != nil {
		return fmt.Errorf("update payment projection for client %s: %w", clientID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
