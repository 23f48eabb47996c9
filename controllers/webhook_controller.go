package controllers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"correlation-service/models"
	"correlation-service/repository"
	"correlation-service/services"
)

// maxWebhookBodySize caps provider payloads (they are small JSON documents);
// anything larger is abuse.
const maxWebhookBodySize = 64 * 1024

// CorrelationPublisher is the downstream event sink. Publishing is
// best-effort and never affects the webhook ack.
type CorrelationPublisher interface {
	Send(ctx context.Context, event models.CorrelationEvent) error
}

// WebhookController drives the ingestion pipeline: verify, dedupe, resolve,
// correlate, audit, ack. A 200 is returned only once the delivery has been
// durably recorded; everything retryable surfaces as a 5xx so the provider's
// redelivery is the recovery mechanism.
type WebhookController struct {
	Verifier  *services.EventVerifier
	Resolver  *services.JourneyResolver
	Writer    *services.CorrelationWriter
	Store     repository.Store
	Publisher CorrelationPublisher
	Logger    *zap.Logger
	// Timeout bounds total processing per delivery. On expiry the pending
	// store call fails and a retryable status goes back, never a 200.
	Timeout time.Duration
}

// HandlePaymentWebhook implements POST /webhooks/payments.
func (wc *WebhookController) HandlePaymentWebhook(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), wc.Timeout)
	defer cancel()

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodySize)
	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		wc.Logger.Warn("failed to read webhook body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	event, err := wc.Verifier.Verify(rawBody, c.GetHeader("Stripe-Signature"))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUnsupportedEventKind):
			// Real provider event we don't handle: ack so it stops retrying.
			wc.Logger.Info("ignoring unsupported webhook event", zap.Error(err))
			c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		case errors.Is(err, services.ErrInvalidSignature):
			wc.Logger.Warn("webhook signature verification failed", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		default:
			wc.Logger.Warn("malformed webhook payload", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed payload"})
		}
		return
	}

	wc.process(ctx, c, event, models.VerificationVerified, c.GetHeader("Stripe-Signature"))
}

// process is the shared pipeline behind the real and simulated endpoints.
func (wc *WebhookController) process(ctx context.Context, c *gin.Context, event *models.NormalizedPaymentEvent, verification, signatureHeader string) {
	seen, err := wc.Store.ProcessedEvents().HasProcessed(ctx, event.EventID)
	if err != nil {
		wc.Logger.Error("idempotency store unavailable", zap.Error(err),
			zap.String("event_id", event.EventID))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
		return
	}
	if seen {
		// Exact redelivery. Still audited: the audit log records every
		// delivery the provider made, duplicates included.
		if err := wc.appendAudit(ctx, event, verification, signatureHeader, models.IngestDuplicate); err != nil {
			wc.Logger.Error("audit append failed for duplicate delivery", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "audit write failed"})
			return
		}
		wc.Logger.Info("duplicate webhook delivery short-circuited",
			zap.String("event_id", event.EventID),
			zap.String("payment_intent_id", event.PaymentIntentID),
		)
		c.JSON(http.StatusOK, gin.H{"status": "already_processed"})
		return
	}

	resolved, err := wc.Resolver.Resolve(ctx, event.ClientReference)
	if err != nil {
		wc.Logger.Error("journey resolution store failure", zap.Error(err),
			zap.String("client_reference", event.ClientReference))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
		return
	}

	result, err := wc.Writer.Correlate(ctx, event, resolved)
	if err != nil {
		// Best-effort audit of the failed attempt; the redelivery will be
		// audited again either way.
		if auditErr := wc.appendAudit(ctx, event, verification, signatureHeader, models.IngestFailed); auditErr != nil {
			wc.Logger.Error("audit append failed after correlation failure", zap.Error(auditErr))
		}
		wc.Logger.Error("correlation write failed", zap.Error(err),
			zap.String("payment_intent_id", event.PaymentIntentID))
		status := http.StatusInternalServerError
		if errors.Is(err, repository.ErrConcurrentModification) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"error": "correlation failed"})
		return
	}

	if err := wc.Store.ProcessedEvents().RecordSeen(ctx, event.EventID, event.PaymentIntentID); err != nil {
		// Safe to 5xx here: the correlation transaction is idempotent, the
		// redelivery will converge.
		wc.Logger.Error("failed to record processed event", zap.Error(err),
			zap.String("event_id", event.EventID))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
		return
	}

	ingestOutcome := models.IngestCorrelated
	if resolved.ClientID == nil {
		ingestOutcome = models.IngestUnresolved
	}
	if err := wc.appendAudit(ctx, event, verification, signatureHeader, ingestOutcome); err != nil {
		wc.Logger.Error("audit append failed", zap.Error(err),
			zap.String("event_id", event.EventID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "audit write failed"})
		return
	}

	if result.OutcomeChanged {
		wc.publish(event, result)
	}

	c.JSON(http.StatusOK, gin.H{
		"status":            "recorded",
		"payment_intent_id": event.PaymentIntentID,
		"outcome":           result.Record.OutcomeType,
	})
}

func (wc *WebhookController) appendAudit(ctx context.Context, event *models.NormalizedPaymentEvent, verification, signatureHeader, ingestOutcome string) error {
	return wc.Store.Audit().Append(ctx, &models.AuditEntry{
		EventID:             event.EventID,
		PaymentIntentID:     event.PaymentIntentID,
		RawBody:             string(event.RawBody),
		SignatureHeader:     signatureHeader,
		VerificationOutcome: verification,
		IngestOutcome:       ingestOutcome,
		ReceivedAt:          event.ReceivedAt,
	})
}

// publish emits the correlation outcome for the analytics dashboard.
// Failures are logged inside the producer and never fail the webhook ack.
func (wc *WebhookController) publish(event *models.NormalizedPaymentEvent, result *services.CorrelationResult) {
	if wc.Publisher == nil {
		return
	}
	eventType := "correlation_updated"
	if result.Created {
		eventType = "correlation_created"
	}
	msg := models.CorrelationEvent{
		Type:                      eventType,
		PaymentIntentID:           result.Record.PaymentIntentID,
		Outcome:                   string(result.Record.OutcomeType),
		AmountMinorUnits:          result.Record.AmountMinorUnits,
		Currency:                  result.Record.Currency,
		ConversionDurationSeconds: result.Record.ConversionDurationSeconds,
		Timestamp:                 event.ReceivedAt,
	}
	if result.Record.ClientID != nil {
		msg.ClientID = result.Record.ClientID.String()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = wc.Publisher.Send(ctx, msg)
}
