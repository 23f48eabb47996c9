package controllers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"correlation-service/models"
)

// SimulateRequest is the simplified payload accepted by the non-production
// simulation endpoint. It bypasses signature verification and feeds the same
// pipeline as real deliveries.
type SimulateRequest struct {
	Action          string `json:"action" binding:"required"`
	ClientReference string `json:"client_reference" binding:"required"`
	PaymentData     struct {
		PaymentIntentID  string `json:"payment_intent_id"`
		EventID          string `json:"event_id"`
		AmountMinorUnits int64  `json:"amount_minor_units"`
		Currency         string `json:"currency"`
		FailureReason    string `json:"failure_reason"`
		FailureCode      string `json:"failure_code"`
		Paid             bool   `json:"paid"`
	} `json:"payment_data"`
}

// HandleSimulated implements POST /webhooks/simulate. Only registered
// outside production.
func (wc *WebhookController) HandleSimulated(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), wc.Timeout)
	defer cancel()

	var req SimulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var kind models.EventKind
	switch req.Action {
	case "payment_succeeded":
		kind = models.EventPaymentSucceeded
	case "payment_failed":
		kind = models.EventPaymentFailed
	case "checkout_completed":
		kind = models.EventCheckoutCompleted
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action"})
		return
	}

	event := &models.NormalizedPaymentEvent{
		EventID:          req.PaymentData.EventID,
		PaymentIntentID:  req.PaymentData.PaymentIntentID,
		Kind:             kind,
		AmountMinorUnits: req.PaymentData.AmountMinorUnits,
		Currency:         req.PaymentData.Currency,
		FailureReason:    req.PaymentData.FailureReason,
		FailureCode:      req.PaymentData.FailureCode,
		CheckoutPaid:     req.PaymentData.Paid,
		ClientReference:  req.ClientReference,
		ReceivedAt:       wc.Verifier.Now().UTC(),
	}
	if event.EventID == "" {
		event.EventID = "sim_evt_" + uuid.NewString()
	}
	if event.PaymentIntentID == "" {
		event.PaymentIntentID = "sim_pi_" + uuid.NewString()
	}
	raw, _ := json.Marshal(req)
	event.RawBody = raw

	wc.Logger.Info("processing simulated payment event",
		zap.String("action", req.Action),
		zap.String("payment_intent_id", event.PaymentIntentID),
	)
	wc.process(ctx, c, event, models.VerificationSimulated, "")
}
