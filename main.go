package main

import (
	"log"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"correlation-service/config"
	"correlation-service/controllers"
	"correlation-service/database"
	"correlation-service/kafka"
	"correlation-service/middleware"
	"correlation-service/repository"
	"correlation-service/routes"
	"correlation-service/services"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("[CorrelationService] failed to load config:", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("[CorrelationService] failed to initialize logger:", err)
	}
	defer logger.Sync()

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatal("[CorrelationService] failed to connect to DB:", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal("[CorrelationService] failed to migrate:", err)
	}

	store := repository.NewStore(db)

	producer := kafka.NewCorrelationEventProducer(
		strings.Split(cfg.KafkaBrokers, ","), cfg.KafkaTopic, logger)
	defer producer.Close()

	verifier := services.NewEventVerifier(cfg.StripeWebhookKey)
	resolver := services.NewJourneyResolver(store.Clients(), store.Journeys(), logger)
	writer := services.NewCorrelationWriter(store, logger)

	wc := &controllers.WebhookController{
		Verifier:  verifier,
		Resolver:  resolver,
		Writer:    writer,
		Store:     store,
		Publisher: producer,
		Logger:    logger,
		Timeout:   cfg.WebhookTimeout,
	}
	cc := &controllers.CorrelationController{Store: store, Logger: logger}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))
	routes.Register(r, wc, cc, cfg.Environment, cfg.InternalToken)

	logger.Info("correlation service running", zap.String("port", cfg.Port))
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal("[CorrelationService] server failed:", err)
	}
}
