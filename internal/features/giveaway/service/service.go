package service

import (
	"context"
	"time"

	"community-bot-backend/internal/common/cache"
	"community-bot-backend/internal/common/config"
	apperrors "community-bot-backend/internal/common/errors"
	"community-bot-backend/internal/features/giveaway/models"
	lifecycle "community-bot-backend/internal/features/lifecycle/models"
	"community-bot-backend/internal/features/lifecycle/repository"
	lifecycleservice "community-bot-backend/internal/features/lifecycle/service"
)

// Giveaway is the entity type managed by this service.
type Giveaway = lifecycle.Entity[models.Payload]

// Service is the giveaway instantiation of the lifecycle engine: single
// entry per user, timed expiry, crypto-random winner draw, reroll support.
type Service struct {
	manager *lifecycleservice.Manager[models.Payload, models.Result]
}

func NewService(store repository.Store[models.Payload, models.Result], publisher lifecycleservice.Publisher, snapshots *cache.CacheService, cfg *config.Config) *Service {
	manager := lifecycleservice.NewManager(lifecycleservice.Options[models.Payload, models.Result]{
		Kind:                     "giveaway",
		Store:                    store,
		Publisher:                publisher,
		Renderer:                 renderer{},
		Compute:                  models.ComputeResult,
		Policy:                   lifecycle.SingleContribution,
		Retention:                cfg.Lifecycle.CacheRetention,
		AnnounceOnStartupCatchup: cfg.Lifecycle.AnnounceOnStartupCatchup,
		Snapshots:                snapshots,
	})
	return &Service{manager: manager}
}

// Manager exposes the underlying lifecycle manager to the reconciler wiring.
func (s *Service) Manager() *lifecycleservice.Manager[models.Payload, models.Result] {
	return s.manager
}

func (s *Service) LoadActive(ctx context.Context) error {
	return s.manager.LoadActive(ctx)
}

// Create starts a new giveaway and publishes its announcement.
func (s *Service) Create(ctx context.Context, ownerID, channelID string, payload models.Payload, duration time.Duration) (*Giveaway, error) {
	if err := payload.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid giveaway")
	}
	if duration <= 0 {
		return nil, apperrors.NewValidationError("duration", "must be positive")
	}
	return s.manager.Create(ctx, ownerID, channelID, payload, &duration)
}

// Join records a user entry.
func (s *Service) Join(ctx context.Context, id, userID string) error {
	return s.manager.AddContribution(ctx, id, userID, 0)
}

// End finalizes the giveaway now. Owner-only.
func (s *Service) End(ctx context.Context, id, requesterID string) error {
	return s.manager.EndNow(ctx, id, requesterID)
}

// Reroll redraws the winners of an ended giveaway.
func (s *Service) Reroll(ctx context.Context, id string) (models.Result, error) {
	return s.manager.Reroll(ctx, id)
}

// Result returns the current winner set.
func (s *Service) Result(ctx context.Context, id string) (models.Result, error) {
	return s.manager.Result(ctx, id)
}

// Summary returns the denormalized status view.
func (s *Service) Summary(ctx context.Context, id string) (*lifecycleservice.Snapshot, error) {
	return s.manager.Summary(ctx, id)
}
