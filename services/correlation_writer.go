package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"correlation-service/models"
	"correlation-service/repository"
)

// CorrelationResult reports what one event did to the correlation state.
type CorrelationResult struct {
	Record *models.CorrelationRecord
	// Created is true when this event produced the record.
	Created bool
	// OutcomeChanged is true when the outcome transitioned (including
	// creation). Downstream events are published only on change.
	OutcomeChanged bool
	// DuplicateEvent is true when the event id was already recorded on the
	// record; the delivery is logged and absorbed.
	DuplicateEvent bool
}

// CorrelationWriter owns the correlation state machine:
//
//	NoRecord -> Pending -> {Paid, Failed}
//
// Paid is terminal. Failed -> Paid is allowed (payment succeeded on retry);
// Paid -> Failed is silently ignored as out-of-order delivery. Each event is
// applied inside one store transaction together with the client payment
// projection, serialized per payment intent by the row lock.
type CorrelationWriter struct {
	store       repository.Store
	logger      *zap.Logger
	maxAttempts uint
}

func NewCorrelationWriter(store repository.Store, logger *zap.Logger) *CorrelationWriter {
	return &CorrelationWriter{store: store, logger: logger, maxAttempts: 3}
}

// Correlate applies one normalized event. Concurrent-modification conflicts
// are retried with backoff before surfacing; the transaction is idempotent,
// so retries (internal or provider redeliveries) are safe.
func (w *CorrelationWriter) Correlate(ctx context.Context, event *models.NormalizedPaymentEvent, resolved *ResolvedJourney) (*CorrelationResult, error) {
	operation := func() (*CorrelationResult, error) {
		result, err := w.correlateOnce(ctx, event, resolved)
		if err != nil {
			if errors.Is(err, repository.ErrConcurrentModification) {
				w.logger.Warn("concurrent correlation write, retrying",
					zap.String("payment_intent_id", event.PaymentIntentID),
					zap.String("event_id", event.EventID),
				)
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		return result, nil
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = 50 * time.Millisecond
	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(w.maxAttempts),
	)
}

func (w *CorrelationWriter) correlateOnce(ctx context.Context, event *models.NormalizedPaymentEvent, resolved *ResolvedJourney) (*CorrelationResult, error) {
	var result CorrelationResult
	err := w.store.Transact(ctx, func(tx repository.Store) error {
		record, err := tx.Correlations().LockByPaymentIntentID(ctx, event.PaymentIntentID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			record = w.newRecord(event, resolved)
			if err := tx.Correlations().Create(ctx, record); err != nil {
				return err
			}
			result = CorrelationResult{Record: record, Created: true, OutcomeChanged: true}

		case err != nil:
			return err

		default:
			changed, duplicate := w.applyTransition(record, event)
			if err := tx.Correlations().Update(ctx, record); err != nil {
				return err
			}
			result = CorrelationResult{Record: record, OutcomeChanged: changed, DuplicateEvent: duplicate}
		}

		// The projection write and the record write commit or roll back
		// together; a correlation must never exist without its projection.
		// No-op events (absorbed duplicates, ignored downgrades) leave the
		// projection alone so payment_updated_at tracks real state changes.
		if record.ClientID != nil && result.OutcomeChanged {
			err := tx.Clients().UpdatePaymentProjection(ctx, *record.ClientID,
				record.OutcomeType, record.AmountMinorUnits, record.Currency, event.ReceivedAt)
			if err != nil {
				return fmt.Errorf("client projection write: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (w *CorrelationWriter) newRecord(event *models.NormalizedPaymentEvent, resolved *ResolvedJourney) *models.CorrelationRecord {
	record := &models.CorrelationRecord{
		ID:               uuid.New(),
		PaymentIntentID:  event.PaymentIntentID,
		ClientID:         resolved.ClientID,
		OutcomeType:      event.Outcome(),
		AmountMinorUnits: event.AmountMinorUnits,
		Currency:         event.Currency,
		SourceEventIDs:   []string{event.EventID},
		NeedsReview:      resolved.ClientID == nil,
		CorrelatedAt:     event.ReceivedAt,
	}
	if resolved.Context != nil {
		record.JourneySnapshot = resolved.Context.Snapshot()
	}
	if event.Kind == models.EventPaymentFailed {
		record.FailureReason = optional(event.FailureReason)
		record.FailureCode = optional(event.FailureCode)
	}
	if record.OutcomeType == models.OutcomePaid {
		record.ConversionDurationSeconds = conversionDuration(record.JourneySnapshot, event.ReceivedAt)
	}
	return record
}

// applyTransition mutates record in place per the state machine and returns
// whether the outcome changed and whether the event id was already present.
func (w *CorrelationWriter) applyTransition(record *models.CorrelationRecord, event *models.NormalizedPaymentEvent) (changed, duplicate bool) {
	duplicate = !record.AddSourceEvent(event.EventID)
	if duplicate {
		w.logger.Info("duplicate delivery for correlated intent",
			zap.String("payment_intent_id", event.PaymentIntentID),
			zap.String("event_id", event.EventID),
		)
	}

	desired := event.Outcome()
	switch {
	case record.OutcomeType == models.OutcomePaid:
		// Terminal. A late failure event is expected out-of-order delivery,
		// not a bug; record the event id and move on.
		if desired == models.OutcomeFailed {
			w.logger.Warn("ignoring paid to failed downgrade",
				zap.String("payment_intent_id", event.PaymentIntentID),
				zap.String("event_id", event.EventID),
			)
		}

	case desired == models.OutcomePaid:
		if record.OutcomeType == models.OutcomeFailed && record.AmountMinorUnits != event.AmountMinorUnits {
			// Retried charge came through at a different amount. Keep the
			// newest amount, pending product clarification.
			w.logger.Warn("amount changed on promotion to paid, keeping newest",
				zap.String("payment_intent_id", event.PaymentIntentID),
				zap.Int64("previous_amount", record.AmountMinorUnits),
				zap.Int64("new_amount", event.AmountMinorUnits),
			)
		}
		record.OutcomeType = models.OutcomePaid
		record.AmountMinorUnits = event.AmountMinorUnits
		record.Currency = event.Currency
		record.FailureReason = nil
		record.FailureCode = nil
		if record.ConversionDurationSeconds == nil {
			record.ConversionDurationSeconds = conversionDuration(record.JourneySnapshot, event.ReceivedAt)
		}
		changed = true

	case desired == models.OutcomeFailed && record.OutcomeType == models.OutcomePending:
		record.OutcomeType = models.OutcomeFailed
		record.AmountMinorUnits = event.AmountMinorUnits
		record.Currency = event.Currency
		record.FailureReason = optional(event.FailureReason)
		record.FailureCode = optional(event.FailureCode)
		changed = true

	default:
		// pending -> pending and failed -> failed carry no new state.
	}
	return changed, duplicate
}

func conversionDuration(snapshot *models.JourneySnapshot, receivedAt time.Time) *int64 {
	if snapshot == nil {
		return nil
	}
	seconds := int64(receivedAt.Sub(snapshot.StartedAt) / time.Second)
	return &seconds
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
