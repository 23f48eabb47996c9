package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"correlation-service/models"
)

// MemoryStore is an in-memory Store used by tests and the local simulation
// environment. Transactions snapshot the whole state and restore it on
// error, mirroring the all-or-nothing behavior of the Postgres store.
//
// The Fail* fields let tests force specific store failures.
type MemoryStore struct {
	mu     sync.Mutex
	locked bool
	state  *memoryState

	FailProjection  error
	FailAudit       error
	FailIdempotency error
	// CreateConflicts makes the next N correlation creates fail with
	// ErrConcurrentModification, simulating a racing delivery.
	CreateConflicts int
}

type memoryState struct {
	correlations map[string]*models.CorrelationRecord
	clients      map[uuid.UUID]*models.Client
	clientsByRef map[string]uuid.UUID
	journeys     map[uuid.UUID]*models.JourneyContext
	audit        []models.AuditEntry
	processed    map[string]models.ProcessedEvent
}

func newMemoryState() *memoryState {
	return &memoryState{
		correlations: make(map[string]*models.CorrelationRecord),
		clients:      make(map[uuid.UUID]*models.Client),
		clientsByRef: make(map[string]uuid.UUID),
		journeys:     make(map[uuid.UUID]*models.JourneyContext),
		processed:    make(map[string]models.ProcessedEvent),
	}
}

func (s *memoryState) clone() *memoryState {
	out := newMemoryState()
	for k, v := range s.correlations {
		rec := *v
		rec.SourceEventIDs = append([]string(nil), v.SourceEventIDs...)
		out.correlations[k] = &rec
	}
	for k, v := range s.clients {
		c := *v
		out.clients[k] = &c
	}
	for k, v := range s.clientsByRef {
		out.clientsByRef[k] = v
	}
	for k, v := range s.journeys {
		j := *v
		out.journeys[k] = &j
	}
	out.audit = append([]models.AuditEntry(nil), s.audit...)
	for k, v := range s.processed {
		out.processed[k] = v
	}
	return out
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemoryState()}
}

// SeedClient registers a client row and, when journey is non-nil, an active
// journey for it.
func (m *MemoryStore) SeedClient(client models.Client, journey *models.JourneyContext) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := client
	m.state.clients[client.ID] = &c
	m.state.clientsByRef[client.Reference] = client.ID
	if journey != nil {
		j := *journey
		j.ClientID = client.ID
		m.state.journeys[client.ID] = &j
	}
}

// ClientByID returns a copy of the stored client row, for test assertions.
func (m *MemoryStore) ClientByID(id uuid.UUID) (models.Client, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.state.clients[id]
	if !ok {
		return models.Client{}, false
	}
	return *c, true
}

// AuditEntries returns a copy of all appended entries, for test assertions.
func (m *MemoryStore) AuditEntries() []models.AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.AuditEntry(nil), m.state.audit...)
}

func (m *MemoryStore) Correlations() CorrelationRepository    { return (*memCorrelationRepo)(m) }
func (m *MemoryStore) Clients() ClientRepository              { return (*memClientRepo)(m) }
func (m *MemoryStore) Journeys() JourneyRepository            { return (*memJourneyRepo)(m) }
func (m *MemoryStore) Audit() AuditRepository                 { return (*memAuditRepo)(m) }
func (m *MemoryStore) ProcessedEvents() IdempotencyRepository { return (*memIdempotencyRepo)(m) }

func (m *MemoryStore) Transact(ctx context.Context, fn func(Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot := m.state.clone()
	tx := &MemoryStore{
		locked:          true,
		state:           m.state,
		FailProjection:  m.FailProjection,
		FailAudit:       m.FailAudit,
		FailIdempotency: m.FailIdempotency,
		CreateConflicts: m.CreateConflicts,
	}
	if err := fn(tx); err != nil {
		m.state = snapshot
		m.CreateConflicts = tx.CreateConflicts
		return err
	}
	m.CreateConflicts = tx.CreateConflicts
	return nil
}

func (m *MemoryStore) enter() func() {
	if m.locked {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

type memCorrelationRepo MemoryStore

func (r *memCorrelationRepo) GetByPaymentIntentID(_ context.Context, paymentIntentID string) (*models.CorrelationRecord, error) {
	defer (*MemoryStore)(r).enter()()
	rec, ok := r.state.correlations[paymentIntentID]
	if !ok {
		return nil, ErrNotFound
	}
	out := *rec
	out.SourceEventIDs = append([]string(nil), rec.SourceEventIDs...)
	return &out, nil
}

func (r *memCorrelationRepo) LockByPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.CorrelationRecord, error) {
	return r.GetByPaymentIntentID(ctx, paymentIntentID)
}

func (r *memCorrelationRepo) Create(_ context.Context, record *models.CorrelationRecord) error {
	defer (*MemoryStore)(r).enter()()
	if r.CreateConflicts > 0 {
		r.CreateConflicts--
		return ErrConcurrentModification
	}
	if _, exists := r.state.correlations[record.PaymentIntentID]; exists {
		return ErrConcurrentModification
	}
	rec := *record
	rec.SourceEventIDs = append([]string(nil), record.SourceEventIDs...)
	r.state.correlations[record.PaymentIntentID] = &rec
	return nil
}

func (r *memCorrelationRepo) Update(_ context.Context, record *models.CorrelationRecord) error {
	defer (*MemoryStore)(r).enter()()
	existing, ok := r.state.correlations[record.PaymentIntentID]
	if !ok {
		return ErrNotFound
	}
	if existing.Version != record.Version {
		return ErrConcurrentModification
	}
	rec := *record
	rec.Version++
	rec.UpdatedAt = time.Now().UTC()
	rec.SourceEventIDs = append([]string(nil), record.SourceEventIDs...)
	r.state.correlations[record.PaymentIntentID] = &rec
	record.Version = rec.Version
	return nil
}

func (r *memCorrelationRepo) ListByClientID(_ context.Context, clientID uuid.UUID) ([]models.CorrelationRecord, error) {
	defer (*MemoryStore)(r).enter()()
	var out []models.CorrelationRecord
	for _, rec := range r.state.correlations {
		if rec.ClientID != nil && *rec.ClientID == clientID {
			cp := *rec
			cp.SourceEventIDs = append([]string(nil), rec.SourceEventIDs...)
			out = append(out, cp)
		}
	}
	return out, nil
}

type memClientRepo MemoryStore

func (r *memClientRepo) GetByReference(_ context.Context, reference string) (*models.Client, error) {
	defer (*MemoryStore)(r).enter()()
	id, ok := r.state.clientsByRef[reference]
	if !ok {
		return nil, ErrNotFound
	}
	client := *r.state.clients[id]
	return &client, nil
}

func (r *memClientRepo) UpdatePaymentProjection(_ context.Context, clientID uuid.UUID, outcome models.OutcomeType, amountMinorUnits int64, currency string, at time.Time) error {
	defer (*MemoryStore)(r).enter()()
	if r.FailProjection != nil {
		return r.FailProjection
	}
	client, ok := r.state.clients[clientID]
	if !ok {
		return ErrNotFound
	}
	o := string(outcome)
	amt := amountMinorUnits
	cur := currency
	ts := at
	client.PaymentOutcome = &o
	client.PaymentAmountMinorUnits = &amt
	client.PaymentCurrency = &cur
	client.PaymentUpdatedAt = &ts
	return nil
}

type memJourneyRepo MemoryStore

func (r *memJourneyRepo) GetActiveContext(_ context.Context, clientID uuid.UUID) (*models.JourneyContext, error) {
	defer (*MemoryStore)(r).enter()()
	journey, ok := r.state.journeys[clientID]
	if !ok {
		return nil, ErrNotFound
	}
	out := *journey
	return &out, nil
}

type memAuditRepo MemoryStore

func (r *memAuditRepo) Append(_ context.Context, entry *models.AuditEntry) error {
	defer (*MemoryStore)(r).enter()()
	if r.FailAudit != nil {
		return r.FailAudit
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CreatedAt = time.Now().UTC()
	r.state.audit = append(r.state.audit, *entry)
	return nil
}

func (r *memAuditRepo) ListByPaymentIntentID(_ context.Context, paymentIntentID string) ([]models.AuditEntry, error) {
	defer (*MemoryStore)(r).enter()()
	var out []models.AuditEntry
	for _, entry := range r.state.audit {
		if entry.PaymentIntentID == paymentIntentID {
			out = append(out, entry)
		}
	}
	return out, nil
}

type memIdempotencyRepo MemoryStore

func (r *memIdempotencyRepo) HasProcessed(_ context.Context, eventID string) (bool, error) {
	defer (*MemoryStore)(r).enter()()
	if r.FailIdempotency != nil {
		return false, r.FailIdempotency
	}
	_, ok := r.state.processed[eventID]
	return ok, nil
}

func (r *memIdempotencyRepo) RecordSeen(_ context.Context, eventID, paymentIntentID string) error {
	defer (*MemoryStore)(r).enter()()
	if r.FailIdempotency != nil {
		return r.FailIdempotency
	}
	if _, ok := r.state.processed[eventID]; ok {
		return nil
	}
	r.state.processed[eventID] = models.ProcessedEvent{
		EventID:         eventID,
		PaymentIntentID: paymentIntentID,
		SeenAt:          time.Now().UTC(),
	}
	return nil
}
