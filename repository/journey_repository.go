package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"correlation-service/models"
)

// JourneyRepository reads the in-flight journey state owned by the
// journey/content side of the application. Read-only from this engine.
type JourneyRepository interface {
	// GetActiveContext returns the journey state live for the client right
	// now. ErrNotFound when the client has no active journey.
	GetActiveContext(ctx context.Context, clientID uuid.UUID) (*models.JourneyContext, error)
}

type gormJourneyRepo struct {
	db *gorm.DB
}

func (r *gormJourneyRepo) GetActiveContext(ctx context.Context, clientID uuid.UUID) (*models.JourneyContext, error) {
	var journey models.ClientJourney
	err := r.db.WithContext(ctx).
		Where("client_id = ? AND active = ?", clientID, true).
		Order("started_at DESC").
		First(&journey).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load active journey for client %s: %w", clientID, err)
	}
	return &models.JourneyContext{
		ClientID:         journey.ClientID,
		ContentVersionID: journey.ContentVersionID,
		PageType:         journey.PageType,
		Hypothesis:       journey.Hypothesis,
		StartedAt:        journey.StartedAt,
	}, nil
}
