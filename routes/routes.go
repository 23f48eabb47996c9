package routes

import (
	"github.com/gin-gonic/gin"

	"correlation-service/controllers"
	"correlation-service/middleware"
)

// Register wires the webhook and query routes. The simulation endpoint is
// registered only outside production.
func Register(r *gin.Engine, wc *controllers.WebhookController, cc *controllers.CorrelationController, environment, internalToken string) {
	// Provider webhook (no auth; authenticated by signature)
	r.POST("/webhooks/payments", wc.HandlePaymentWebhook)

	if environment != "production" {
		r.POST("/webhooks/simulate", wc.HandleSimulated)
	}

	queries := r.Group("/correlations")
	queries.Use(middleware.InternalAuth(internalToken))
	queries.GET("/client/:clientId", cc.GetForClient)
	queries.GET("/intent/:paymentIntentId", cc.GetByPaymentIntent)
}
