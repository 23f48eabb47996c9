package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"correlation-service/models"
	"correlation-service/repository"
)

var testNow = time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

func seededStore(t *testing.T, journeyStart time.Time) (*repository.MemoryStore, uuid.UUID) {
	t.Helper()
	store := repository.NewMemoryStore()
	clientID := uuid.New()
	store.SeedClient(models.Client{
		ID:        clientID,
		Reference: "cl_abc",
		Name:      "Acme Recruiting",
	}, &models.JourneyContext{
		ContentVersionID: "cv_7",
		PageType:         "agreement",
		Hypothesis:       "shorter agreement copy converts better",
		StartedAt:        journeyStart,
	})
	return store, clientID
}

func resolve(t *testing.T, store *repository.MemoryStore, reference string) *ResolvedJourney {
	t.Helper()
	resolver := NewJourneyResolver(store.Clients(), store.Journeys(), zap.NewNop())
	resolved, err := resolver.Resolve(context.Background(), reference)
	require.NoError(t, err)
	return resolved
}

func paidEvent(eventID, intentID string, amount int64, receivedAt time.Time) *models.NormalizedPaymentEvent {
	return &models.NormalizedPaymentEvent{
		EventID:          eventID,
		PaymentIntentID:  intentID,
		Kind:             models.EventPaymentSucceeded,
		AmountMinorUnits: amount,
		Currency:         "usd",
		ClientReference:  "cl_abc",
		ReceivedAt:       receivedAt,
	}
}

func failedEvent(eventID, intentID, reason string, receivedAt time.Time) *models.NormalizedPaymentEvent {
	return &models.NormalizedPaymentEvent{
		EventID:          eventID,
		PaymentIntentID:  intentID,
		Kind:             models.EventPaymentFailed,
		AmountMinorUnits: 50000,
		Currency:         "usd",
		FailureReason:    reason,
		FailureCode:      "card_declined",
		ClientReference:  "cl_abc",
		ReceivedAt:       receivedAt,
	}
}

func TestCorrelate_PaidCreatesRecordWithConversionDuration(t *testing.T) {
	store, clientID := seededStore(t, testNow.Add(-90*time.Second))
	writer := NewCorrelationWriter(store, zap.NewNop())

	result, err := writer.Correlate(context.Background(),
		paidEvent("evt_1", "pi_1", 50000, testNow), resolve(t, store, "cl_abc"))
	require.NoError(t, err)

	require.True(t, result.Created)
	require.True(t, result.OutcomeChanged)
	rec := result.Record
	assert.Equal(t, models.OutcomePaid, rec.OutcomeType)
	assert.Equal(t, int64(50000), rec.AmountMinorUnits)
	assert.Equal(t, "usd", rec.Currency)
	require.NotNil(t, rec.ConversionDurationSeconds)
	assert.Equal(t, int64(90), *rec.ConversionDurationSeconds)
	require.NotNil(t, rec.JourneySnapshot)
	assert.Equal(t, "cv_7", rec.JourneySnapshot.ContentVersionID)
	assert.False(t, rec.NeedsReview)
	require.NotNil(t, rec.ClientID)
	assert.Equal(t, clientID, *rec.ClientID)

	client, ok := store.ClientByID(clientID)
	require.True(t, ok)
	require.NotNil(t, client.PaymentOutcome)
	assert.Equal(t, "paid", *client.PaymentOutcome)
	require.NotNil(t, client.PaymentAmountMinorUnits)
	assert.Equal(t, int64(50000), *client.PaymentAmountMinorUnits)
}

func TestCorrelate_FailedThenPaidPromotes(t *testing.T) {
	store, _ := seededStore(t, testNow.Add(-5*time.Minute))
	writer := NewCorrelationWriter(store, zap.NewNop())
	resolved := resolve(t, store, "cl_abc")
	ctx := context.Background()

	first, err := writer.Correlate(ctx, failedEvent("evt_a", "pi_2", "insufficient_funds", testNow), resolved)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeFailed, first.Record.OutcomeType)
	require.NotNil(t, first.Record.FailureReason)
	assert.Equal(t, "insufficient_funds", *first.Record.FailureReason)

	second, err := writer.Correlate(ctx, paidEvent("evt_b", "pi_2", 50000, testNow.Add(time.Minute)), resolved)
	require.NoError(t, err)

	rec := second.Record
	assert.False(t, second.Created)
	assert.True(t, second.OutcomeChanged)
	assert.Equal(t, models.OutcomePaid, rec.OutcomeType)
	assert.Nil(t, rec.FailureReason)
	assert.Nil(t, rec.FailureCode)
	assert.ElementsMatch(t, []string{"evt_a", "evt_b"}, rec.SourceEventIDs)

	stored, err := store.Correlations().GetByPaymentIntentID(ctx, "pi_2")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomePaid, stored.OutcomeType)
}

func TestCorrelate_PaidThenFailedKeepsPaid(t *testing.T) {
	store, _ := seededStore(t, testNow.Add(-time.Minute))
	writer := NewCorrelationWriter(store, zap.NewNop())
	resolved := resolve(t, store, "cl_abc")
	ctx := context.Background()

	_, err := writer.Correlate(ctx, paidEvent("evt_1", "pi_3", 50000, testNow), resolved)
	require.NoError(t, err)

	result, err := writer.Correlate(ctx, failedEvent("evt_2", "pi_3", "insufficient_funds", testNow.Add(time.Minute)), resolved)
	require.NoError(t, err)

	assert.False(t, result.OutcomeChanged)
	assert.Equal(t, models.OutcomePaid, result.Record.OutcomeType)
	assert.ElementsMatch(t, []string{"evt_1", "evt_2"}, result.Record.SourceEventIDs)
}

func TestCorrelate_NoOpEventLeavesProjectionAlone(t *testing.T) {
	store, clientID := seededStore(t, testNow.Add(-time.Minute))
	writer := NewCorrelationWriter(store, zap.NewNop())
	resolved := resolve(t, store, "cl_abc")
	ctx := context.Background()

	_, err := writer.Correlate(ctx, paidEvent("evt_1", "pi_11", 50000, testNow), resolved)
	require.NoError(t, err)

	// Ignored downgrade: the projection keeps the paid outcome and the
	// timestamp of the last real state change.
	result, err := writer.Correlate(ctx, failedEvent("evt_2", "pi_11", "insufficient_funds", testNow.Add(time.Minute)), resolved)
	require.NoError(t, err)
	require.False(t, result.OutcomeChanged)

	client, ok := store.ClientByID(clientID)
	require.True(t, ok)
	require.NotNil(t, client.PaymentOutcome)
	assert.Equal(t, "paid", *client.PaymentOutcome)
	require.NotNil(t, client.PaymentUpdatedAt)
	assert.Equal(t, testNow, *client.PaymentUpdatedAt)
}

func TestCorrelate_SameEventIDIsAbsorbed(t *testing.T) {
	store, _ := seededStore(t, testNow.Add(-time.Minute))
	writer := NewCorrelationWriter(store, zap.NewNop())
	resolved := resolve(t, store, "cl_abc")
	ctx := context.Background()

	_, err := writer.Correlate(ctx, paidEvent("evt_1", "pi_4", 50000, testNow), resolved)
	require.NoError(t, err)

	result, err := writer.Correlate(ctx, paidEvent("evt_1", "pi_4", 50000, testNow), resolved)
	require.NoError(t, err)

	assert.True(t, result.DuplicateEvent)
	assert.False(t, result.OutcomeChanged)
	assert.Equal(t, []string{"evt_1"}, result.Record.SourceEventIDs)
}

func TestCorrelate_UnresolvedClientStillCorrelated(t *testing.T) {
	store := repository.NewMemoryStore()
	writer := NewCorrelationWriter(store, zap.NewNop())

	resolved := resolve(t, store, "cl_unknown")
	require.Nil(t, resolved.ClientID)

	result, err := writer.Correlate(context.Background(),
		paidEvent("evt_1", "pi_5", 50000, testNow), resolved)
	require.NoError(t, err)

	rec := result.Record
	assert.Nil(t, rec.ClientID)
	assert.Nil(t, rec.JourneySnapshot)
	assert.Nil(t, rec.ConversionDurationSeconds)
	assert.True(t, rec.NeedsReview)
	assert.Equal(t, models.OutcomePaid, rec.OutcomeType)
}

func TestCorrelate_ProjectionFailureRollsBackRecord(t *testing.T) {
	store, _ := seededStore(t, testNow.Add(-time.Minute))
	store.FailProjection = errors.New("projection write refused")
	writer := NewCorrelationWriter(store, zap.NewNop())

	_, err := writer.Correlate(context.Background(),
		paidEvent("evt_1", "pi_6", 50000, testNow), resolve(t, store, "cl_abc"))
	require.Error(t, err)

	_, err = store.Correlations().GetByPaymentIntentID(context.Background(), "pi_6")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCorrelate_RetriesOnConcurrentCreate(t *testing.T) {
	store, _ := seededStore(t, testNow.Add(-time.Minute))
	store.CreateConflicts = 1
	writer := NewCorrelationWriter(store, zap.NewNop())

	result, err := writer.Correlate(context.Background(),
		paidEvent("evt_1", "pi_7", 50000, testNow), resolve(t, store, "cl_abc"))
	require.NoError(t, err)
	assert.True(t, result.Created)
}

func TestCorrelate_CheckoutPendingThenPaid(t *testing.T) {
	store, _ := seededStore(t, testNow.Add(-125*time.Second))
	writer := NewCorrelationWriter(store, zap.NewNop())
	resolved := resolve(t, store, "cl_abc")
	ctx := context.Background()

	checkout := &models.NormalizedPaymentEvent{
		EventID:          "evt_c1",
		PaymentIntentID:  "pi_8",
		Kind:             models.EventCheckoutCompleted,
		AmountMinorUnits: 50000,
		Currency:         "usd",
		CheckoutPaid:     false,
		ClientReference:  "cl_abc",
		ReceivedAt:       testNow,
	}
	first, err := writer.Correlate(ctx, checkout, resolved)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomePending, first.Record.OutcomeType)
	assert.Nil(t, first.Record.ConversionDurationSeconds)

	paid, err := writer.Correlate(ctx, paidEvent("evt_c2", "pi_8", 50000, testNow), resolved)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomePaid, paid.Record.OutcomeType)
	require.NotNil(t, paid.Record.ConversionDurationSeconds)
	assert.Equal(t, int64(125), *paid.Record.ConversionDurationSeconds)
	assert.ElementsMatch(t, []string{"evt_c1", "evt_c2"}, paid.Record.SourceEventIDs)
}

func TestCorrelate_AmountChangeOnPromotionKeepsNewest(t *testing.T) {
	store, _ := seededStore(t, testNow.Add(-time.Minute))
	writer := NewCorrelationWriter(store, zap.NewNop())
	resolved := resolve(t, store, "cl_abc")
	ctx := context.Background()

	_, err := writer.Correlate(ctx, failedEvent("evt_1", "pi_9", "insufficient_funds", testNow), resolved)
	require.NoError(t, err)

	result, err := writer.Correlate(ctx, paidEvent("evt_2", "pi_9", 45000, testNow.Add(time.Minute)), resolved)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomePaid, result.Record.OutcomeType)
	assert.Equal(t, int64(45000), result.Record.AmountMinorUnits)
}

func TestCorrelate_PendingThenFailedRecordsReason(t *testing.T) {
	store, _ := seededStore(t, testNow.Add(-time.Minute))
	writer := NewCorrelationWriter(store, zap.NewNop())
	resolved := resolve(t, store, "cl_abc")
	ctx := context.Background()

	checkout := &models.NormalizedPaymentEvent{
		EventID:          "evt_1",
		PaymentIntentID:  "pi_10",
		Kind:             models.EventCheckoutCompleted,
		AmountMinorUnits: 50000,
		Currency:         "usd",
		ClientReference:  "cl_abc",
		ReceivedAt:       testNow,
	}
	_, err := writer.Correlate(ctx, checkout, resolved)
	require.NoError(t, err)

	result, err := writer.Correlate(ctx, failedEvent("evt_2", "pi_10", "insufficient_funds", testNow.Add(time.Minute)), resolved)
	require.NoError(t, err)
	assert.True(t, result.OutcomeChanged)
	assert.Equal(t, models.OutcomeFailed, result.Record.OutcomeType)
	require.NotNil(t, result.Record.FailureReason)
	assert.Equal(t, "insufficient_funds", *result.Record.FailureReason)
}
