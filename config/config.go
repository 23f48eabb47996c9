package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port             string
	Environment      string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string
	PostgresTimeZone string
	StripeWebhookKey string
	KafkaBrokers     string
	KafkaTopic       string
	InternalToken    string
	// WebhookTimeout bounds total processing of one delivery; on expiry the
	// handler returns a retryable status.
	WebhookTimeout time.Duration
}

func LoadConfig() (*Config, error) {
	// Best-effort .env for local development.
	_ = godotenv.Load()

	timeoutSeconds, err := strconv.Atoi(getEnv("WEBHOOK_TIMEOUT_SECONDS", "8"))
	if err != nil || timeoutSeconds <= 0 {
		return nil, fmt.Errorf("invalid WEBHOOK_TIMEOUT_SECONDS")
	}

	cfg := &Config{
		Port:             getEnv("PORT", "8087"),
		Environment:      getEnv("APP_ENV", "development"),
		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     os.Getenv("POSTGRES_HOST"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresTimeZone: getEnv("POSTGRES_TIMEZONE", "UTC"),
		StripeWebhookKey: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		KafkaBrokers:     getEnv("KAFKA_BROKERS", "localhost:9092"),
		KafkaTopic:       getEnv("KAFKA_CORRELATION_TOPIC", "correlation-events"),
		InternalToken:    os.Getenv("INTERNAL_API_TOKEN"),
		WebhookTimeout:   time.Duration(timeoutSeconds) * time.Second,
	}

	if cfg.PostgresUser == "" || cfg.PostgresPassword == "" || cfg.PostgresDB == "" || cfg.PostgresHost == "" ||
		cfg.StripeWebhookKey == "" || cfg.InternalToken == "" {
		return nil, fmt.Errorf("missing required environment variables")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
