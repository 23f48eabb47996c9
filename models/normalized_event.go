package models

import "time"

// EventKind discriminates the three provider event shapes this engine handles.
type EventKind string

const (
	EventPaymentSucceeded  EventKind = "payment_succeeded"
	EventPaymentFailed     EventKind = "payment_failed"
	EventCheckoutCompleted EventKind = "checkout_completed"
)

// NormalizedPaymentEvent is the internal representation of one webhook
// delivery, built once by the verifier and immutable afterwards.
//
// EventID identifies the delivery itself; PaymentIntentID identifies the
// underlying payment attempt and is stable across redeliveries.
type NormalizedPaymentEvent struct {
	EventID          string    `json:"event_id"`
	PaymentIntentID  string    `json:"payment_intent_id"`
	Kind             EventKind `json:"kind"`
	AmountMinorUnits int64     `json:"amount_minor_units"`
	Currency         string    `json:"currency"`
	FailureReason    string    `json:"failure_reason,omitempty"`
	FailureCode      string    `json:"failure_code,omitempty"`
	// CheckoutPaid reports whether a checkout_completed event already carried
	// a paid payment status (card checkouts) or is still pending (delayed
	// payment methods).
	CheckoutPaid    bool      `json:"checkout_paid,omitempty"`
	ClientReference string    `json:"client_reference"`
	ReceivedAt      time.Time `json:"received_at"`

	// RawBody is the verbatim provider payload, kept for the audit log.
	RawBody []byte `json:"-"`
}

// Outcome maps the event kind to the correlation outcome it implies.
func (e *NormalizedPaymentEvent) Outcome() OutcomeType {
	switch e.Kind {
	case EventPaymentSucceeded:
		return OutcomePaid
	case EventPaymentFailed:
		return OutcomeFailed
	case EventCheckoutCompleted:
		if e.CheckoutPaid {
			return OutcomePaid
		}
		return OutcomePending
	}
	return OutcomePending
}
