package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"community-bot-backend/internal/common/cache"
	apperrors "community-bot-backend/internal/common/errors"
	"community-bot-backend/internal/common/logger"
	"community-bot-backend/internal/features/lifecycle/models"
	"community-bot-backend/internal/features/lifecycle/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultRetention = 24 * time.Hour
	snapshotTTL      = time.Minute
)

// Options configures a Manager for one entity kind.
type Options[P, R any] struct {
	Kind      string
	Store     repository.Store[P, R]
	Publisher Publisher
	Renderer  Renderer[P, R]
	Compute   ComputeFunc[P, R]
	Policy    models.ContributionPolicy

	// Retention bounds how long ended entities stay in the in-memory cache.
	// Store rows are never deleted.
	Retention time.Duration

	// AnnounceOnStartupCatchup controls whether entities that expired while
	// the process was down are re-announced when LoadActive finalizes them.
	AnnounceOnStartupCatchup bool

	// Snapshots is optional; when set, denormalized snapshots are kept in
	// Redis for status lookups.
	Snapshots *cache.CacheService

	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

// entry is the live in-memory representation of one entity. entry.mu
// serializes every mutating operation for that id, which makes the
// check-then-set on the ended flag an exclusive critical section.
type entry[P, R any] struct {
	mu       sync.Mutex
	entity   *models.Entity[P]
	contribs []models.Contribution
	byUser   map[string]int
	result   *R
}

// Manager is the in-process authoritative view over one timed-entity kind,
// backed by the Store for durability. Giveaways, scheduled polls and live
// polls are three instances of this one component, parameterized by payload,
// result and compute strategy.
type Manager[P, R any] struct {
	kind      string
	store     repository.Store[P, R]
	publisher Publisher
	renderer  Renderer[P, R]
	compute   ComputeFunc[P, R]
	policy    models.ContributionPolicy
	retention time.Duration
	announce  bool
	snapshots *cache.CacheService
	now       func() time.Time
	logger    zerolog.Logger

	mu      sync.RWMutex
	entries map[string]*entry[P, R]
}

func NewManager[P, R any](opts Options[P, R]) *Manager[P, R] {
	if opts.Retention <= 0 {
		opts.Retention = defaultRetention
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager[P, R]{
		kind:      opts.Kind,
		store:     opts.Store,
		publisher: opts.Publisher,
		renderer:  opts.Renderer,
		compute:   opts.Compute,
		policy:    opts.Policy,
		retention: opts.Retention,
		announce:  opts.AnnounceOnStartupCatchup,
		snapshots: opts.Snapshots,
		now:       opts.Now,
		logger:    logger.With(opts.Kind + "-manager"),
		entries:   make(map[string]*entry[P, R]),
	}
}

func (m *Manager[P, R]) Kind() string {
	return m.kind
}

// LoadActive pulls all active entities from the store into the cache. Any
// entity whose expiry already passed is finalized immediately; by default
// the announcement is suppressed so a long outage does not flood channels
// with stale "ended" messages.
func (m *Manager[P, R]) LoadActive(ctx context.Context) error {
	entities, err := m.store.ListActive(ctx)
	if err != nil {
		return apperrors.NewStoreError("list_active", err)
	}

	now := m.now()
	var expired []string
	for _, entity := range entities {
		if _, err := m.insertEntry(ctx, entity); err != nil {
			m.logger.Error().Err(err).Str("id", entity.ID).Msg("Failed to load entity into cache")
			continue
		}
		if entity.HasExpired(now) {
			expired = append(expired, entity.ID)
		}
	}

	m.logger.Info().Int("active", len(entities)).Int("expired", len(expired)).Msg("Loaded active entities")

	for _, id := range expired {
		if _, err := m.Terminate(ctx, id, m.announce); err != nil {
			m.logger.Error().Err(err).Str("id", id).Msg("Startup catch-up failed")
		}
	}
	return nil
}

// Create inserts a new entity into the store and the cache, publishes the
// opening announcement and binds the resulting message id. duration nil
// means the entity never auto-expires and must be ended manually.
func (m *Manager[P, R]) Create(ctx context.Context, ownerID, channelID string, payload P, duration *time.Duration) (*models.Entity[P], error) {
	now := m.now()
	entity := &models.Entity[P]{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		ChannelID: channelID,
		Payload:   payload,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if duration != nil {
		expires := now.Add(*duration)
		entity.ExpiresAt = &expires
	}

	if err := m.store.Create(ctx, entity); err != nil {
		return nil, apperrors.NewStoreError("create", err)
	}
	e, err := m.insertEntry(ctx, entity)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ann := m.renderer.RenderOpen(e.entity, 0)
	msgID, err := m.publisher.Publish(ctx, channelID, ann)
	if err != nil {
		// The entity stays live without a bound message; termination falls
		// back to a standalone announcement.
		m.logger.Error().Err(err).Str("id", entity.ID).Msg("Failed to publish opening announcement")
	} else if err := m.store.SetMessageID(ctx, entity.ID, msgID); err != nil {
		m.logger.Error().Err(err).Str("id", entity.ID).Msg("Failed to bind announcement message id")
	} else {
		e.entity.MessageID = msgID
	}

	m.writeSnapshot(ctx, e)
	return e.entity.Clone(), nil
}

// Get returns the current state of an entity.
func (m *Manager[P, R]) Get(ctx context.Context, id string) (*models.Entity[P], error) {
	e, err := m.loadEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.entity.Clone(), nil
}

// Result returns the computed outcome of an ended entity.
func (m *Manager[P, R]) Result(ctx context.Context, id string) (R, error) {
	var zero R
	e, err := m.loadEntry(ctx, id)
	if err != nil {
		return zero, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.entity.Ended {
		return zero, apperrors.NewNotEndedError(id)
	}
	if e.result != nil {
		return *e.result, nil
	}
	result, err := m.store.GetResult(ctx, id)
	if err != nil {
		return zero, apperrors.NewStoreError("get_result", err)
	}
	e.result = &result
	return result, nil
}

// AddContribution records an entry or vote. The store write is the source
// of truth; the cache is updated only after the store confirms, so a failed
// write leaves the two converged.
func (m *Manager[P, R]) AddContribution(ctx context.Context, id, userID string, option int) error {
	e, err := m.loadEntry(ctx, id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	now := m.now()
	if err := e.entity.AcceptsContributions(now); err != nil {
		return m.stateError(id, err)
	}
	if m.policy == models.SingleContribution {
		if _, ok := e.byUser[userID]; ok {
			return apperrors.NewDuplicateContributionError(id, userID)
		}
	}

	c := models.Contribution{UserID: userID, Option: option, At: now}
	if err := m.store.AddContribution(ctx, id, c, m.policy); err != nil {
		if errors.Is(err, repository.ErrDuplicateContribution) {
			return apperrors.NewDuplicateContributionError(id, userID)
		}
		return apperrors.NewStoreError("add_contribution", err)
	}

	if idx, ok := e.byUser[userID]; ok {
		e.contribs[idx] = c
	} else {
		e.byUser[userID] = len(e.contribs)
		e.contribs = append(e.contribs, c)
	}
	m.invalidateSnapshot(ctx, id)
	return nil
}

// EndNow runs the termination transition on behalf of the owner. The owner
// check applies only to this manual path; the reconciler bypasses it.
func (m *Manager[P, R]) EndNow(ctx context.Context, id, requesterID string) error {
	e, err := m.loadEntry(ctx, id)
	if err != nil {
		return err
	}
	if e.entity.OwnerID != requesterID {
		return apperrors.NewForbiddenError("only the owner can end this")
	}
	performed, err := m.Terminate(ctx, id, true)
	if err != nil {
		return err
	}
	if !performed {
		return apperrors.New(apperrors.ErrCodeEntityEnded, "already ended").WithDetail("id", id)
	}
	return nil
}

// Reroll recomputes the result of an already-ended entity from the stored
// contribution set using the same strategy. Active/Ended are untouched.
func (m *Manager[P, R]) Reroll(ctx context.Context, id string) (R, error) {
	var zero R
	e, err := m.loadEntry(ctx, id)
	if err != nil {
		return zero, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.entity.Ended {
		return zero, apperrors.NewNotEndedError(id)
	}

	contribs, err := m.store.GetContributions(ctx, id)
	if err != nil {
		return zero, apperrors.NewStoreError("get_contributions", err)
	}
	result, err := m.compute(e.entity, contribs)
	if err != nil {
		return zero, apperrors.Wrap(err, apperrors.ErrCodeInternal, "result computation failed")
	}
	if err := m.store.SaveResult(ctx, id, result); err != nil {
		return zero, apperrors.NewStoreError("save_result", err)
	}
	e.result = &result

	ann := m.renderer.RenderReroll(e.entity, result)
	if _, err := m.publisher.Publish(ctx, e.entity.ChannelID, ann); err != nil {
		m.logger.Error().Err(err).Str("id", id).Msg("Failed to publish reroll announcement")
	}
	m.invalidateSnapshot(ctx, id)
	return result, nil
}

// Terminate drives the one-time termination transition. The store-level
// compare-and-set on the ended flag is the commit point; everything after it
// (result, announcement) happens at most once, and a publish failure is
// logged without rolling the commit back. Returns whether this call
// performed the transition.
func (m *Manager[P, R]) Terminate(ctx context.Context, id string, announce bool) (bool, error) {
	e, err := m.loadEntry(ctx, id)
	if err != nil {
		return false, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.entity.Ended {
		return false, nil
	}

	now := m.now()
	won, err := m.store.MarkEnded(ctx, id, now)
	if err != nil {
		return false, apperrors.NewStoreError("mark_ended", err)
	}

	// Mirror the committed store state whether or not this caller won.
	e.entity.Active = false
	e.entity.Ended = true
	e.entity.EndedAt = &now
	e.entity.UpdatedAt = now

	if !won {
		return false, nil
	}

	contribs, err := m.store.GetContributions(ctx, id)
	if err != nil {
		m.logger.Error().Err(err).Str("id", id).Msg("Falling back to cached contributions")
		contribs = append([]models.Contribution(nil), e.contribs...)
	}

	result, err := m.compute(e.entity, contribs)
	if err != nil {
		// The ended commit stands; the result can be recomputed via reroll.
		return true, apperrors.Wrap(err, apperrors.ErrCodeInternal, "result computation failed")
	}
	e.result = &result

	if err := m.store.SaveResult(ctx, id, result); err != nil {
		m.logger.Error().Err(err).Str("id", id).Msg("Failed to persist result")
	}
	if announce {
		m.announceResult(ctx, e, result, len(contribs))
	}
	m.invalidateSnapshot(ctx, id)
	return true, nil
}

// announceResult edits the original announcement when it can still be
// located and publishes a standalone message when it cannot. The outcome
// message is never silently dropped just because the original is gone; a
// transport failure, however, is logged and accepted.
func (m *Manager[P, R]) announceResult(ctx context.Context, e *entry[P, R], result R, contributions int) {
	ann := m.renderer.RenderResult(e.entity, result, contributions)

	if e.entity.MessageID != "" {
		err := m.publisher.Edit(ctx, e.entity.ChannelID, e.entity.MessageID, ann)
		if err == nil {
			return
		}
		if !errors.Is(err, ErrMessageNotFound) {
			m.logger.Error().Err(err).Str("id", e.entity.ID).Msg("Failed to edit result announcement")
			return
		}
	}

	if _, err := m.publisher.Publish(ctx, e.entity.ChannelID, ann); err != nil {
		m.logger.Error().Err(err).Str("id", e.entity.ID).Msg("Failed to publish result announcement")
	}
}

// ExpiredIDs lists cached entities whose expiry has passed and that are not
// yet finalized. Used by the reconciliation loop.
func (m *Manager[P, R]) ExpiredIDs(now time.Time) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []string
	for id, e := range m.entries {
		e.mu.Lock()
		if e.entity.Active && e.entity.HasExpired(now) {
			ids = append(ids, id)
		}
		e.mu.Unlock()
	}
	return ids
}

// EvictEnded drops cache entries that have been ended for longer than the
// retention window. Store rows persist indefinitely; an evicted entity is
// reloaded on demand.
func (m *Manager[P, R]) EvictEnded(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for id, e := range m.entries {
		e.mu.Lock()
		stale := e.entity.EndedAt != nil && now.Sub(*e.entity.EndedAt) > m.retention
		e.mu.Unlock()
		if stale {
			delete(m.entries, id)
			evicted++
		}
	}
	if evicted > 0 {
		m.logger.Debug().Int("evicted", evicted).Msg("Evicted ended entities from cache")
	}
	return evicted
}

// Summary returns the denormalized snapshot, served from Redis when
// available.
func (m *Manager[P, R]) Summary(ctx context.Context, id string) (*Snapshot, error) {
	if m.snapshots != nil {
		var snap Snapshot
		if err := m.snapshots.GetSnapshot(ctx, m.kind, id, &snap); err == nil {
			return &snap, nil
		}
	}

	e, err := m.loadEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	snap := m.snapshot(e)
	e.mu.Unlock()

	if m.snapshots != nil {
		if err := m.snapshots.SetSnapshot(ctx, m.kind, id, snap, snapshotTTL); err != nil {
			m.logger.Debug().Err(err).Str("id", id).Msg("Failed to cache snapshot")
		}
	}
	return snap, nil
}

func (m *Manager[P, R]) snapshot(e *entry[P, R]) *Snapshot {
	return &Snapshot{
		ID:            e.entity.ID,
		Kind:          m.kind,
		OwnerID:       e.entity.OwnerID,
		ChannelID:     e.entity.ChannelID,
		Active:        e.entity.Active,
		Ended:         e.entity.Ended,
		Contributions: len(e.contribs),
		CreatedAt:     e.entity.CreatedAt,
		ExpiresAt:     e.entity.ExpiresAt,
		EndedAt:       e.entity.EndedAt,
	}
}

func (m *Manager[P, R]) writeSnapshot(ctx context.Context, e *entry[P, R]) {
	if m.snapshots == nil {
		return
	}
	if err := m.snapshots.SetSnapshot(ctx, m.kind, e.entity.ID, m.snapshot(e), snapshotTTL); err != nil {
		m.logger.Debug().Err(err).Str("id", e.entity.ID).Msg("Failed to cache snapshot")
	}
}

func (m *Manager[P, R]) invalidateSnapshot(ctx context.Context, id string) {
	if m.snapshots == nil {
		return
	}
	if err := m.snapshots.InvalidateEntity(ctx, m.kind, id); err != nil {
		m.logger.Debug().Err(err).Str("id", id).Msg("Failed to invalidate snapshot")
	}
}

// insertEntry adds a store-confirmed entity to the cache.
func (m *Manager[P, R]) insertEntry(ctx context.Context, entity *models.Entity[P]) (*entry[P, R], error) {
	contribs, err := m.store.GetContributions(ctx, entity.ID)
	if err != nil && !errors.Is(err, repository.ErrEntityNotFound) {
		return nil, apperrors.NewStoreError("get_contributions", err)
	}

	e := &entry[P, R]{
		entity:   entity.Clone(),
		contribs: contribs,
		byUser:   make(map[string]int, len(contribs)),
	}
	for i, c := range contribs {
		e.byUser[c.UserID] = i
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.entries[entity.ID]; ok {
		return existing, nil
	}
	m.entries[entity.ID] = e
	return e, nil
}

// loadEntry returns the cached entry, loading it from the store on a miss
// (e.g. an ended entity evicted after the retention window).
func (m *Manager[P, R]) loadEntry(ctx context.Context, id string) (*entry[P, R], error) {
	m.mu.RLock()
	e, ok := m.entries[id]
	m.mu.RUnlock()
	if ok {
		return e, nil
	}

	entity, err := m.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrEntityNotFound) {
			return nil, apperrors.NewEntityNotFoundError(m.kind, id)
		}
		return nil, apperrors.NewStoreError("get_by_id", err)
	}
	return m.insertEntry(ctx, entity)
}

func (m *Manager[P, R]) stateError(id string, err error) error {
	switch {
	case errors.Is(err, models.ErrEntityEnded), errors.Is(err, models.ErrEntityInactive):
		return apperrors.Wrap(err, apperrors.ErrCodeEntityEnded, "no longer accepting entries").WithDetail("id", id)
	case errors.Is(err, models.ErrEntityExpired):
		return apperrors.Wrap(err, apperrors.ErrCodeEntityExpired, "entry period is over").WithDetail("id", id)
	default:
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "unexpected entity state")
	}
}
