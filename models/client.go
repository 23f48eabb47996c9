package models

import (
	"time"

	"github.com/google/uuid"
)

// Client is the engine's view of the externally owned clients table. The
// engine reads identity columns and writes back only the payment projection
// (outcome, amount, timestamp); everything else belongs to the dashboard.
type Client struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Reference string    `gorm:"uniqueIndex;not null" json:"reference"`
	Name      string    `json:"name"`

	PaymentOutcome          *string    `json:"payment_outcome,omitempty"`
	PaymentAmountMinorUnits *int64     `json:"payment_amount_minor_units,omitempty"`
	PaymentCurrency         *string    `json:"payment_currency,omitempty"`
	PaymentUpdatedAt        *time.Time `json:"payment_updated_at,omitempty"`
}

func (Client) TableName() string { return "clients" }

// ClientJourney is the engine's read-only view of the in-flight journey rows
// owned by the journey/content side of the application.
type ClientJourney struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ClientID         uuid.UUID `gorm:"type:uuid;index;not null" json:"client_id"`
	ContentVersionID string    `json:"content_version_id"`
	PageType         string    `json:"page_type"`
	Hypothesis       string    `json:"hypothesis"`
	Active           bool      `gorm:"index" json:"active"`
	StartedAt        time.Time `json:"started_at"`
}

func (ClientJourney) TableName() string { return "client_journeys" }

// JourneyContext is what the resolver hands to the correlation writer: the
// journey state live at correlation time, snapshotted into the record.
type JourneyContext struct {
	ClientID         uuid.UUID
	ContentVersionID string
	PageType         string
	Hypothesis       string
	StartedAt        time.Time
}

// Snapshot copies the context into the write-once record payload.
func (j *JourneyContext) Snapshot() *JourneySnapshot {
	return &JourneySnapshot{
		ContentVersionID: j.ContentVersionID,
		PageType:         j.PageType,
		Hypothesis:       j.Hypothesis,
		StartedAt:        j.StartedAt,
	}
}
