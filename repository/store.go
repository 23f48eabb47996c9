package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConcurrentModification is returned when two events for the same
	// payment intent race on create or update. Callers retry the whole
	// transaction.
	ErrConcurrentModification = errors.New("concurrent modification")
)

// Store bundles the engine's repositories behind one handle so that a
// transaction can hand callers the same interfaces bound to the tx
// connection. All coordination between webhook handlers goes through the
// database; nothing here holds in-process locks.
type Store interface {
	Correlations() CorrelationRepository
	Clients() ClientRepository
	Journeys() JourneyRepository
	Audit() AuditRepository
	ProcessedEvents() IdempotencyRepository

	// Transact runs fn inside one database transaction. The Store passed to
	// fn is bound to that transaction; returning an error rolls everything
	// back.
	Transact(ctx context.Context, fn func(Store) error) error
}

type gormStore struct {
	db *gorm.DB
}

// NewStore wraps a gorm connection in the Store interface.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Correlations() CorrelationRepository    { return &gormCorrelationRepo{db: s.db} }
func (s *gormStore) Clients() ClientRepository              { return &gormClientRepo{db: s.db} }
func (s *gormStore) Journeys() JourneyRepository            { return &gormJourneyRepo{db: s.db} }
func (s *gormStore) Audit() AuditRepository                 { return &gormAuditRepo{db: s.db} }
func (s *gormStore) ProcessedEvents() IdempotencyRepository { return &gormIdempotencyRepo{db: s.db} }

func (s *gormStore) Transact(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}
