package models

import "time"

// ProcessedEvent marks one delivery id as handled. Providers redeliver the
// identical event id on timeout, so this table is what lets the webhook
// handler short-circuit exact duplicates.
type ProcessedEvent struct {
	EventID         string    `gorm:"primaryKey" json:"event_id"`
	PaymentIntentID string    `gorm:"index" json:"payment_intent_id"`
	SeenAt          time.Time `gorm:"autoCreateTime" json:"seen_at"`
}
