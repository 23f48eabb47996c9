package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"correlation-service/models"
	"correlation-service/repository"
)

// ResolvedJourney is the resolver's answer for one client reference.
// ClientID is nil when the reference does not resolve (stale or tampered
// metadata); Context is nil when the client exists but has no journey in
// flight. Either way the event is still correlated, just without a snapshot.
type ResolvedJourney struct {
	ClientID *uuid.UUID
	Context  *models.JourneyContext
}

// JourneyResolver looks up the in-flight journey state for the client token
// embedded in event metadata.
type JourneyResolver struct {
	clients  repository.ClientRepository
	journeys repository.JourneyRepository
	logger   *zap.Logger
}

func NewJourneyResolver(clients repository.ClientRepository, journeys repository.JourneyRepository, logger *zap.Logger) *JourneyResolver {
	return &JourneyResolver{clients: clients, journeys: journeys, logger: logger}
}

// Resolve returns the journey context live for clientReference. A reference
// that does not resolve is a normal outcome, not an error; only store
// failures are returned as errors.
func (r *JourneyResolver) Resolve(ctx context.Context, clientReference string) (*ResolvedJourney, error) {
	client, err := r.clients.GetByReference(ctx, clientReference)
	if errors.Is(err, repository.ErrNotFound) {
		r.logger.Warn("client reference did not resolve, correlating without journey",
			zap.String("client_reference", clientReference),
		)
		return &ResolvedJourney{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve client reference %q: %w", clientReference, err)
	}

	journey, err := r.journeys.GetActiveContext(ctx, client.ID)
	if errors.Is(err, repository.ErrNotFound) {
		r.logger.Warn("client has no active journey, correlating without snapshot",
			zap.String("client_reference", clientReference),
			zap.String("client_id", client.ID.String()),
		)
		return &ResolvedJourney{ClientID: &client.ID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve journey for client %s: %w", client.ID, err)
	}

	return &ResolvedJourney{ClientID: &client.ID, Context: journey}, nil
}
