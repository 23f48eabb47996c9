package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"correlation-service/config"
	"correlation-service/models"
)

// Connect opens the Postgres connection. TranslateError is on so duplicate
// key violations surface as gorm.ErrDuplicatedKey, which the correlation
// repository maps to its concurrency error.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		cfg.PostgresHost, cfg.PostgresUser, cfg.PostgresPassword,
		cfg.PostgresDB, cfg.PostgresPort, cfg.PostgresSSLMode, cfg.PostgresTimeZone,
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	return db, nil
}

// Migrate creates the tables this engine owns. The clients and
// client_journeys tables belong to the dashboard application and are managed
// by its migrations.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.CorrelationRecord{},
		&models.AuditEntry{},
		&models.ProcessedEvent{},
	)
}
