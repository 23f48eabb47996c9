package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/webhook"

	"correlation-service/models"
)

var (
	// ErrInvalidSignature means the delivery failed the HMAC check and must
	// not be processed.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrMalformedPayload means the body passed the signature check but
	// could not be decoded into a known event shape.
	ErrMalformedPayload = errors.New("malformed webhook payload")
	// ErrUnsupportedEventKind means the provider event type is real but not
	// one this engine handles; such deliveries are acked and dropped.
	ErrUnsupportedEventKind = errors.New("unsupported webhook event kind")
)

// metadataClientRef is the provider metadata key carrying the business
// client token set when the checkout was created.
const metadataClientRef = "client_reference"

// EventVerifier authenticates raw webhook deliveries and normalizes them
// into the engine's internal event shape.
type EventVerifier struct {
	webhookSecret string

	// Now is the clock used for ReceivedAt; overridable in tests.
	Now func() time.Time
}

func NewEventVerifier(webhookSecret string) *EventVerifier {
	return &EventVerifier{webhookSecret: webhookSecret, Now: time.Now}
}

// Verify checks the provider signature over rawBody and parses the payload
// into a NormalizedPaymentEvent. It has no side effects.
func (v *EventVerifier) Verify(rawBody []byte, signatureHeader string) (*models.NormalizedPaymentEvent, error) {
	event, err := webhook.ConstructEventWithOptions(rawBody, signatureHeader, v.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		if isSignatureError(err) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return v.normalize(event, rawBody)
}

func isSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld)
}

func (v *EventVerifier) normalize(event stripe.Event, rawBody []byte) (*models.NormalizedPaymentEvent, error) {
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return nil, fmt.Errorf("%w: missing event data object", ErrMalformedPayload)
	}

	out := &models.NormalizedPaymentEvent{
		EventID:    event.ID,
		ReceivedAt: v.Now().UTC(),
		RawBody:    rawBody,
	}

	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded, stripe.EventTypePaymentIntentPaymentFailed:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("%w: decode payment intent: %v", ErrMalformedPayload, err)
		}
		out.PaymentIntentID = pi.ID
		out.AmountMinorUnits = pi.Amount
		out.Currency = string(pi.Currency)
		out.ClientReference = pi.Metadata[metadataClientRef]
		if event.Type == stripe.EventTypePaymentIntentSucceeded {
			out.Kind = models.EventPaymentSucceeded
		} else {
			out.Kind = models.EventPaymentFailed
			if pi.LastPaymentError != nil {
				out.FailureCode = string(pi.LastPaymentError.Code)
				out.FailureReason = string(pi.LastPaymentError.DeclineCode)
				if out.FailureReason == "" {
					out.FailureReason = pi.LastPaymentError.Msg
				}
			}
		}

	case stripe.EventTypeCheckoutSessionCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("%w: decode checkout session: %v", ErrMalformedPayload, err)
		}
		out.Kind = models.EventCheckoutCompleted
		out.AmountMinorUnits = sess.AmountTotal
		out.Currency = string(sess.Currency)
		out.CheckoutPaid = sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid
		if sess.PaymentIntent != nil && sess.PaymentIntent.ID != "" {
			out.PaymentIntentID = sess.PaymentIntent.ID
		} else {
			// Sessions with delayed payment methods may not carry an intent
			// yet; correlate on the session id until one arrives.
			out.PaymentIntentID = sess.ID
		}
		out.ClientReference = sess.Metadata[metadataClientRef]
		if out.ClientReference == "" {
			out.ClientReference = sess.ClientReferenceID
		}

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEventKind, event.Type)
	}

	if out.PaymentIntentID == "" {
		return nil, fmt.Errorf("%w: missing payment intent id", ErrMalformedPayload)
	}
	if out.ClientReference == "" {
		return nil, fmt.Errorf("%w: missing client reference metadata", ErrMalformedPayload)
	}
	if out.EventID == "" {
		out.EventID = "evt_" + uuid.NewString()
	}
	return out, nil
}
