package models

import (
	"time"

	"github.com/google/uuid"
)

// Verification outcomes recorded on audit entries.
const (
	VerificationVerified  = "verified"
	VerificationSimulated = "simulated"
)

// Ingest outcomes recorded on audit entries.
const (
	IngestCorrelated = "correlated"
	IngestDuplicate  = "duplicate"
	IngestUnresolved = "unresolved"
	IngestFailed     = "failed"
)

// AuditEntry is the append-only record of one received delivery: what the
// provider actually sent, independent of what correlation did with it.
// Entries are never updated or deleted.
type AuditEntry struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	EventID         string    `gorm:"index" json:"event_id"`
	PaymentIntentID string    `gorm:"index" json:"payment_intent_id"`

	RawBody         string `gorm:"type:text;not null" json:"raw_body"`
	SignatureHeader string `gorm:"type:text" json:"signature_header,omitempty"`

	VerificationOutcome string `gorm:"type:varchar(20);not null" json:"verification_outcome"`
	IngestOutcome       string `gorm:"type:varchar(20);not null" json:"ingest_outcome"`

	ReceivedAt time.Time `gorm:"not null" json:"received_at"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}
