package services

import (
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v80/webhook"

	"correlation-service/models"
)

const testSecret = "whsec_test_secret"

func signHeader(at time.Time, payload []byte, secret string) string {
	sig := webhook.ComputeSignature(at, payload, secret)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(sig))
}

func succeededPayload(intentID string, amount int64) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "evt_100",
		"type": "payment_intent.succeeded",
		"data": {
			"object": {
				"id": %q,
				"amount": %d,
				"currency": "usd",
				"metadata": {"client_reference": "cl_abc"}
			}
		}
	}`, intentID, amount))
}

func TestVerify_PaymentSucceeded(t *testing.T) {
	v := NewEventVerifier(testSecret)
	v.Now = func() time.Time { return testNow }

	payload := succeededPayload("pi_1", 50000)
	event, err := v.Verify(payload, signHeader(time.Now(), payload, testSecret))
	require.NoError(t, err)

	assert.Equal(t, "evt_100", event.EventID)
	assert.Equal(t, "pi_1", event.PaymentIntentID)
	assert.Equal(t, models.EventPaymentSucceeded, event.Kind)
	assert.Equal(t, int64(50000), event.AmountMinorUnits)
	assert.Equal(t, "usd", event.Currency)
	assert.Equal(t, "cl_abc", event.ClientReference)
	assert.Equal(t, testNow, event.ReceivedAt)
	assert.Equal(t, payload, event.RawBody)
}

func TestVerify_WrongSecretRejected(t *testing.T) {
	v := NewEventVerifier(testSecret)
	payload := succeededPayload("pi_1", 50000)

	_, err := v.Verify(payload, signHeader(time.Now(), payload, "whsec_other"))
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerify_StaleTimestampRejected(t *testing.T) {
	v := NewEventVerifier(testSecret)
	payload := succeededPayload("pi_1", 50000)

	_, err := v.Verify(payload, signHeader(time.Now().Add(-time.Hour), payload, testSecret))
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerify_MissingHeaderRejected(t *testing.T) {
	v := NewEventVerifier(testSecret)
	_, err := v.Verify(succeededPayload("pi_1", 50000), "")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerify_UnsupportedEventKind(t *testing.T) {
	v := NewEventVerifier(testSecret)
	payload := []byte(`{
		"id": "evt_101",
		"type": "customer.created",
		"data": {"object": {"id": "cus_1"}}
	}`)

	_, err := v.Verify(payload, signHeader(time.Now(), payload, testSecret))
	assert.ErrorIs(t, err, ErrUnsupportedEventKind)
}

func TestVerify_MissingClientReferenceRejected(t *testing.T) {
	v := NewEventVerifier(testSecret)
	payload := []byte(`{
		"id": "evt_102",
		"type": "payment_intent.succeeded",
		"data": {
			"object": {"id": "pi_1", "amount": 100, "currency": "usd"}
		}
	}`)

	_, err := v.Verify(payload, signHeader(time.Now(), payload, testSecret))
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestVerify_PaymentFailedCarriesReason(t *testing.T) {
	v := NewEventVerifier(testSecret)
	payload := []byte(`{
		"id": "evt_103",
		"type": "payment_intent.payment_failed",
		"data": {
			"object": {
				"id": "pi_2",
				"amount": 50000,
				"currency": "usd",
				"metadata": {"client_reference": "cl_abc"},
				"last_payment_error": {
					"code": "card_declined",
					"decline_code": "insufficient_funds",
					"message": "Your card has insufficient funds."
				}
			}
		}
	}`)

	event, err := v.Verify(payload, signHeader(time.Now(), payload, testSecret))
	require.NoError(t, err)

	assert.Equal(t, models.EventPaymentFailed, event.Kind)
	assert.Equal(t, "insufficient_funds", event.FailureReason)
	assert.Equal(t, "card_declined", event.FailureCode)
}

func TestVerify_CheckoutCompletedPaid(t *testing.T) {
	v := NewEventVerifier(testSecret)
	payload := []byte(`{
		"id": "evt_104",
		"type": "checkout.session.completed",
		"data": {
			"object": {
				"id": "cs_1",
				"payment_intent": "pi_3",
				"amount_total": 50000,
				"currency": "usd",
				"client_reference_id": "cl_abc",
				"payment_status": "paid"
			}
		}
	}`)

	event, err := v.Verify(payload, signHeader(time.Now(), payload, testSecret))
	require.NoError(t, err)

	assert.Equal(t, models.EventCheckoutCompleted, event.Kind)
	assert.Equal(t, "pi_3", event.PaymentIntentID)
	assert.True(t, event.CheckoutPaid)
	assert.Equal(t, "cl_abc", event.ClientReference)
	assert.Equal(t, models.OutcomePaid, event.Outcome())
}

func TestVerify_CheckoutCompletedUnpaidIsPending(t *testing.T) {
	v := NewEventVerifier(testSecret)
	payload := []byte(`{
		"id": "evt_105",
		"type": "checkout.session.completed",
		"data": {
			"object": {
				"id": "cs_2",
				"amount_total": 50000,
				"currency": "usd",
				"metadata": {"client_reference": "cl_abc"},
				"payment_status": "unpaid"
			}
		}
	}`)

	event, err := v.Verify(payload, signHeader(time.Now(), payload, testSecret))
	require.NoError(t, err)

	assert.False(t, event.CheckoutPaid)
	// No intent yet: correlate on the session id until one arrives.
	assert.Equal(t, "cs_2", event.PaymentIntentID)
	assert.Equal(t, models.OutcomePending, event.Outcome())
}
