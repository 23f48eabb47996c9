package models

import "time"

// CorrelationEvent is the message published to Kafka whenever a correlation
// is created or its outcome changes, consumed by the analytics dashboard.
type CorrelationEvent struct {
	Type                      string    `json:"type"` // "correlation_created" or "correlation_updated"
	PaymentIntentID           string    `json:"payment_intent_id"`
	ClientID                  string    `json:"client_id,omitempty"`
	Outcome                   string    `json:"outcome"`
	AmountMinorUnits          int64     `json:"amount_minor_units"`
	Currency                  string    `json:"currency"`
	ConversionDurationSeconds *int64    `json:"conversion_duration_seconds,omitempty"`
	Timestamp                 time.Time `json:"timestamp"`
}
