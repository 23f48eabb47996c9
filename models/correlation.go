package models

import (
	"time"

	"github.com/google/uuid"
)

// OutcomeType is the correlation state machine value.
// Pending -> Paid or Failed; Failed -> Paid (retry succeeded); Paid is terminal.
type OutcomeType string

const (
	OutcomePaid    OutcomeType = "paid"
	OutcomeFailed  OutcomeType = "failed"
	OutcomePending OutcomeType = "pending"
)

// JourneySnapshot is a point-in-time copy of the journey state active when
// the payment was correlated. Write-once: never mutated after the record is
// created.
type JourneySnapshot struct {
	ContentVersionID string    `json:"content_version_id"`
	PageType         string    `json:"page_type"`
	Hypothesis       string    `json:"hypothesis"`
	StartedAt        time.Time `json:"started_at"`
}

// CorrelationRecord links one payment attempt to the client journey that was
// live at the time. At most one record exists per PaymentIntentID.
type CorrelationRecord struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	PaymentIntentID string     `gorm:"uniqueIndex;not null" json:"payment_intent_id"`
	ClientID        *uuid.UUID `gorm:"type:uuid;index" json:"client_id,omitempty"`

	OutcomeType OutcomeType `gorm:"type:varchar(20);not null" json:"outcome_type"`

	// JourneySnapshot is nil when the client reference could not be resolved;
	// such records carry NeedsReview for manual attribution.
	JourneySnapshot *JourneySnapshot `gorm:"type:jsonb;serializer:json" json:"journey_snapshot,omitempty"`

	ConversionDurationSeconds *int64 `json:"conversion_duration_seconds,omitempty"`

	AmountMinorUnits int64  `gorm:"not null" json:"amount_minor_units"`
	Currency         string `gorm:"type:varchar(10);not null" json:"currency"`

	FailureReason *string `json:"failure_reason,omitempty"`
	FailureCode   *string `json:"failure_code,omitempty"`

	// SourceEventIDs is the set of delivery ids matched to this payment
	// intent. Re-adding a present id is a no-op.
	SourceEventIDs []string `gorm:"type:jsonb;serializer:json" json:"source_event_ids"`

	NeedsReview bool `gorm:"not null;default:false" json:"needs_review"`

	// Version backs the optimistic-concurrency check on updates.
	Version int64 `gorm:"not null;default:0" json:"-"`

	CorrelatedAt time.Time `gorm:"not null" json:"correlated_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// HasSourceEvent reports whether eventID is already recorded on this record.
func (r *CorrelationRecord) HasSourceEvent(eventID string) bool {
	for _, id := range r.SourceEventIDs {
		if id == eventID {
			return true
		}
	}
	return false
}

// AddSourceEvent appends eventID with set semantics. Returns false if the id
// was already present.
func (r *CorrelationRecord) AddSourceEvent(eventID string) bool {
	if r.HasSourceEvent(eventID) {
		return false
	}
	r.SourceEventIDs = append(r.SourceEventIDs, eventID)
	return true
}
