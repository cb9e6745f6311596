package service

import (
	"context"
	"time"

	"community-bot-backend/internal/common/cache"
	"community-bot-backend/internal/common/config"
	apperrors "community-bot-backend/internal/common/errors"
	lifecycle "community-bot-backend/internal/features/lifecycle/models"
	"community-bot-backend/internal/features/lifecycle/repository"
	lifecycleservice "community-bot-backend/internal/features/lifecycle/service"
	"community-bot-backend/internal/features/poll/models"
)

const (
	KindScheduled = "poll"
	KindLive      = "livepoll"
)

// Poll is the entity type managed by this service.
type Poll = lifecycle.Entity[models.Payload]

// Service runs the two poll instantiations of the lifecycle engine:
// scheduled polls expire on a timer and take one vote per user; live polls
// never auto-expire and let users change their vote.
type Service struct {
	scheduled *lifecycleservice.Manager[models.Payload, models.Result]
	live      *lifecycleservice.Manager[models.Payload, models.Result]
}

func NewService(
	scheduledStore repository.Store[models.Payload, models.Result],
	liveStore repository.Store[models.Payload, models.Result],
	publisher lifecycleservice.Publisher,
	snapshots *cache.CacheService,
	cfg *config.Config,
) *Service {
	common := func(kind string, store repository.Store[models.Payload, models.Result], policy lifecycle.ContributionPolicy) *lifecycleservice.Manager[models.Payload, models.Result] {
		return lifecycleservice.NewManager(lifecycleservice.Options[models.Payload, models.Result]{
			Kind:                     kind,
			Store:                    store,
			Publisher:                publisher,
			Renderer:                 renderer{kind: kind},
			Compute:                  models.ComputeResult,
			Policy:                   policy,
			Retention:                cfg.Lifecycle.CacheRetention,
			AnnounceOnStartupCatchup: cfg.Lifecycle.AnnounceOnStartupCatchup,
			Snapshots:                snapshots,
		})
	}
	return &Service{
		scheduled: common(KindScheduled, scheduledStore, lifecycle.SingleContribution),
		live:      common(KindLive, liveStore, lifecycle.ReplaceContribution),
	}
}

func (s *Service) manager(kind string) *lifecycleservice.Manager[models.Payload, models.Result] {
	if kind == KindLive {
		return s.live
	}
	return s.scheduled
}

// Managers exposes both lifecycle managers to the reconciler wiring.
func (s *Service) Managers() (scheduled, live *lifecycleservice.Manager[models.Payload, models.Result]) {
	return s.scheduled, s.live
}

func (s *Service) LoadActive(ctx context.Context) error {
	if err := s.scheduled.LoadActive(ctx); err != nil {
		return err
	}
	return s.live.LoadActive(ctx)
}

// Create opens a poll. A nil duration creates a live poll that stays open
// until the author closes it.
func (s *Service) Create(ctx context.Context, ownerID, channelID string, payload models.Payload, duration *time.Duration) (*Poll, error) {
	if err := payload.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid poll")
	}
	if duration == nil {
		return s.live.Create(ctx, ownerID, channelID, payload, nil)
	}
	if *duration <= 0 {
		return nil, apperrors.NewValidationError("duration", "must be positive")
	}
	return s.scheduled.Create(ctx, ownerID, channelID, payload, duration)
}

// Vote records a vote for an option. kind routes to the scheduled or live
// manager; live polls replace the previous vote.
func (s *Service) Vote(ctx context.Context, kind, id, userID string, option int) error {
	m := s.manager(kind)
	entity, err := m.Get(ctx, id)
	if err != nil {
		return err
	}
	if !entity.Payload.ValidOption(option) {
		return apperrors.NewValidationError("option", models.ErrInvalidOption.Error())
	}
	return m.AddContribution(ctx, id, userID, option)
}

// Close finalizes the poll now. Owner-only.
func (s *Service) Close(ctx context.Context, kind, id, requesterID string) error {
	return s.manager(kind).EndNow(ctx, id, requesterID)
}

// Result returns the tally of a closed poll.
func (s *Service) Result(ctx context.Context, kind, id string) (models.Result, error) {
	return s.manager(kind).Result(ctx, id)
}

// Summary returns the denormalized status view.
func (s *Service) Summary(ctx context.Context, kind, id string) (*lifecycleservice.Snapshot, error) {
	return s.manager(kind).Summary(ctx, id)
}
