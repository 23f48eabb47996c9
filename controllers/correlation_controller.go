package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"correlation-service/repository"
)

// CorrelationController serves the read-only query surface consumed by the
// analytics dashboard.
type CorrelationController struct {
	Store  repository.Store
	Logger *zap.Logger
}

// GetForClient implements GET /correlations/client/:clientId.
func (cc *CorrelationController) GetForClient(c *gin.Context) {
	clientID, err := uuid.Parse(c.Param("clientId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid client id"})
		return
	}

	records, err := cc.Store.Correlations().ListByClientID(c.Request.Context(), clientID)
	if err != nil {
		cc.Logger.Error("failed to list correlations", zap.Error(err),
			zap.String("client_id", clientID.String()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"correlations": records})
}

// GetByPaymentIntent implements GET /correlations/intent/:paymentIntentId.
func (cc *CorrelationController) GetByPaymentIntent(c *gin.Context) {
	record, err := cc.Store.Correlations().GetByPaymentIntentID(c.Request.Context(), c.Param("paymentIntentId"))
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if err != nil {
		cc.Logger.Error("failed to load correlation", zap.Error(err),
			zap.String("payment_intent_id", c.Param("paymentIntentId")))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, record)
}
