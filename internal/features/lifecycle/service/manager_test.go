package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apperrors "community-bot-backend/internal/common/errors"
	"community-bot-backend/internal/features/lifecycle/models"
	"community-bot-backend/internal/features/lifecycle/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPayload struct {
	Name string `json:"name"`
}

type testResult struct {
	Winner string `json:"winner"`
}

type fakePublisher struct {
	mu         sync.Mutex
	published  int
	edited     int
	publishErr error
	editErr    error
}

func (p *fakePublisher) Publish(ctx context.Context, channelID string, a Announcement) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.publishErr != nil {
		return "", p.publishErr
	}
	p.published++
	return fmt.Sprintf("msg-%d", p.published), nil
}

func (p *fakePublisher) Edit(ctx context.Context, channelID, messageID string, a Announcement) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.editErr != nil {
		return p.editErr
	}
	p.edited++
	return nil
}

func (p *fakePublisher) counts() (published, edited int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.published, p.edited
}

type testRenderer struct{}

func (testRenderer) RenderOpen(e *models.Entity[testPayload], contributions int) Announcement {
	return Announcement{Title: e.Payload.Name}
}

func (testRenderer) RenderResult(e *models.Entity[testPayload], result testResult, contributions int) Announcement {
	return Announcement{Title: e.Payload.Name, Description: result.Winner}
}

func (testRenderer) RenderReroll(e *models.Entity[testPayload], result testResult) Announcement {
	return Announcement{Title: e.Payload.Name, Description: result.Winner}
}

type testEnv struct {
	manager      *Manager[testPayload, testResult]
	store        *memory.Store[testPayload, testResult]
	publisher    *fakePublisher
	computeCalls *int64
}

func newTestEnv(policy models.ContributionPolicy, announceOnCatchup bool) *testEnv {
	store := memory.NewStore[testPayload, testResult]()
	publisher := &fakePublisher{}
	var computeCalls int64

	manager := NewManager(Options[testPayload, testResult]{
		Kind:      "test",
		Store:     store,
		Publisher: publisher,
		Renderer:  testRenderer{},
		Compute: func(e *models.Entity[testPayload], contribs []models.Contribution) (testResult, error) {
			atomic.AddInt64(&computeCalls, 1)
			if len(contribs) == 0 {
				return testResult{}, nil
			}
			return testResult{Winner: contribs[0].UserID}, nil
		},
		Policy:                   policy,
		AnnounceOnStartupCatchup: announceOnCatchup,
	})

	return &testEnv{manager: manager, store: store, publisher: publisher, computeCalls: &computeCalls}
}

func duration(d time.Duration) *time.Duration {
	return &d
}

func TestCreatePublishesAndBindsMessage(t *testing.T) {
	env := newTestEnv(models.SingleContribution, false)
	ctx := context.Background()

	entity, err := env.manager.Create(ctx, "owner", "chan", testPayload{Name: "first"}, duration(time.Hour))
	require.NoError(t, err)
	require.NotEmpty(t, entity.ID)
	assert.True(t, entity.Active)
	assert.False(t, entity.Ended)
	assert.Equal(t, "msg-1", entity.MessageID)

	stored, err := env.store.GetByID(ctx, entity.ID)
	require.NoError(t, err)
	assert.Equal(t, "msg-1", stored.MessageID)
	require.NotNil(t, stored.ExpiresAt)
}

func TestCreateWithoutExpiry(t *testing.T) {
	env := newTestEnv(models.ReplaceContribution, false)

	entity, err := env.manager.Create(context.Background(), "owner", "chan", testPayload{}, nil)
	require.NoError(t, err)
	assert.Nil(t, entity.ExpiresAt)
}

func TestAddContributionDuplicate(t *testing.T) {
	env := newTestEnv(models.SingleContribution, false)
	ctx := context.Background()

	entity, err := env.manager.Create(ctx, "owner", "chan", testPayload{}, duration(time.Hour))
	require.NoError(t, err)

	require.NoError(t, env.manager.AddContribution(ctx, entity.ID, "alice", 0))

	err = env.manager.AddContribution(ctx, entity.ID, "alice", 0)
	require.Error(t, err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeDuplicateContribution, appErr.Code)

	count, err := env.store.CountContributions(ctx, entity.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestAddContributionReplace(t *testing.T) {
	env := newTestEnv(models.ReplaceContribution, false)
	ctx := context.Background()

	entity, err := env.manager.Create(ctx, "owner", "chan", testPayload{}, nil)
	require.NoError(t, err)

	require.NoError(t, env.manager.AddContribution(ctx, entity.ID, "alice", 0))
	require.NoError(t, env.manager.AddContribution(ctx, entity.ID, "alice", 2))

	contribs, err := env.store.GetContributions(ctx, entity.ID)
	require.NoError(t, err)
	require.Len(t, contribs, 1)
	assert.Equal(t, 2, contribs[0].Option)
}

func TestAddContributionAfterExpiry(t *testing.T) {
	env := newTestEnv(models.SingleContribution, false)
	ctx := context.Background()

	entity, err := env.manager.Create(ctx, "owner", "chan", testPayload{}, duration(-time.Minute))
	require.NoError(t, err)

	err = env.manager.AddContribution(ctx, entity.ID, "alice", 0)
	require.Error(t, err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeEntityExpired, appErr.Code)
}

func TestAddContributionUnknownEntity(t *testing.T) {
	env := newTestEnv(models.SingleContribution, false)

	err := env.manager.AddContribution(context.Background(), "missing", "alice", 0)
	require.Error(t, err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.True(t, appErr.IsNotFound())
}

func TestCacheRollsBackWhenStoreFails(t *testing.T) {
	env := newTestEnv(models.SingleContribution, false)
	ctx := context.Background()

	entity, err := env.manager.Create(ctx, "owner", "chan", testPayload{}, duration(time.Hour))
	require.NoError(t, err)

	env.store.FailWith("add", errors.New("connection refused"))
	err = env.manager.AddContribution(ctx, entity.ID, "alice", 0)
	require.Error(t, err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeStoreUnavailable, appErr.Code)

	// The cache must not remember the failed write: the same user can
	// contribute again once the store recovers.
	env.store.FailWith("add", nil)
	require.NoError(t, env.manager.AddContribution(ctx, entity.ID, "alice", 0))

	count, err := env.store.CountContributions(ctx, entity.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestTerminateIdempotent(t *testing.T) {
	env := newTestEnv(models.SingleContribution, false)
	ctx := context.Background()

	entity, err := env.manager.Create(ctx, "owner", "chan", testPayload{}, duration(time.Hour))
	require.NoError(t, err)
	require.NoError(t, env.manager.AddContribution(ctx, entity.ID, "alice", 0))

	performed, err := env.manager.Terminate(ctx, entity.ID, true)
	require.NoError(t, err)
	assert.True(t, performed)

	performed, err = env.manager.Terminate(ctx, entity.ID, true)
	require.NoError(t, err)
	assert.False(t, performed)

	assert.EqualValues(t, 1, atomic.LoadInt64(env.computeCalls))
	_, edited := env.publisher.counts()
	assert.Equal(t, 1, edited)

	stored, err := env.store.GetByID(ctx, entity.ID)
	require.NoError(t, err)
	assert.True(t, stored.Ended)
	assert.False(t, stored.Active)
}

func TestTerminateConcurrent(t *testing.T) {
	env := newTestEnv(models.SingleContribution, false)
	ctx := context.Background()

	entity, err := env.manager.Create(ctx, "owner", "chan", testPayload{}, duration(-time.Minute))
	require.NoError(t, err)

	var performedCount int64
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			performed, err := env.manager.Terminate(ctx, entity.ID, true)
			assert.NoError(t, err)
			if performed {
				atomic.AddInt64(&performedCount, 1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, performedCount)
	assert.EqualValues(t, 1, atomic.LoadInt64(env.computeCalls))
	_, edited := env.publisher.counts()
	assert.Equal(t, 1, edited)
}

func TestTerminateFallsBackWhenMessageGone(t *testing.T) {
	env := newTestEnv(models.SingleContribution, false)
	ctx := context.Background()

	entity, err := env.manager.Create(ctx, "owner", "chan", testPayload{}, duration(-time.Minute))
	require.NoError(t, err)

	env.publisher.editErr = ErrMessageNotFound
	performed, err := env.manager.Terminate(ctx, entity.ID, true)
	require.NoError(t, err)
	assert.True(t, performed)

	published, edited := env.publisher.counts()
	assert.Equal(t, 0, edited)
	assert.Equal(t, 2, published) // opening announcement + standalone fallback
}

func TestTerminateKeepsCommitWhenPublishFails(t *testing.T) {
	env := newTestEnv(models.SingleContribution, false)
	ctx := context.Background()

	entity, err := env.manager.Create(ctx, "owner", "chan", testPayload{}, duration(-time.Minute))
	require.NoError(t, err)

	env.publisher.editErr = errors.New("network down")
	env.publisher.publishErr = errors.New("network down")

	performed, err := env.manager.Terminate(ctx, entity.ID, true)
	require.NoError(t, err)
	assert.True(t, performed)

	stored, err := env.store.GetByID(ctx, entity.ID)
	require.NoError(t, err)
	assert.True(t, stored.Ended)
}

func TestEndNowForbiddenForNonOwner(t *testing.T) {
	env := newTestEnv(models.SingleContribution, false)
	ctx := context.Background()

	entity, err := env.manager.Create(ctx, "owner", "chan", testPayload{}, duration(time.Hour))
	require.NoError(t, err)

	err = env.manager.EndNow(ctx, entity.ID, "intruder")
	require.Error(t, err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeForbidden, appErr.Code)

	require.NoError(t, env.manager.EndNow(ctx, entity.ID, "owner"))

	err = env.manager.EndNow(ctx, entity.ID, "owner")
	require.Error(t, err)
	appErr, ok = apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeEntityEnded, appErr.Code)
}

func TestRerollRequiresEnded(t *testing.T) {
	env := newTestEnv(models.SingleContribution, false)
	ctx := context.Background()

	entity, err := env.manager.Create(ctx, "owner", "chan", testPayload{}, duration(time.Hour))
	require.NoError(t, err)

	_, err = env.manager.Reroll(ctx, entity.ID)
	require.Error(t, err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeNotEnded, appErr.Code)
}

func TestRerollRecomputesWithoutReopening(t *testing.T) {
	env := newTestEnv(models.SingleContribution, false)
	ctx := context.Background()

	entity, err := env.manager.Create(ctx, "owner", "chan", testPayload{}, duration(time.Hour))
	require.NoError(t, err)
	require.NoError(t, env.manager.AddContribution(ctx, entity.ID, "alice", 0))
	require.NoError(t, env.manager.EndNow(ctx, entity.ID, "owner"))

	result, err := env.manager.Reroll(ctx, entity.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", result.Winner)

	current, err := env.manager.Get(ctx, entity.ID)
	require.NoError(t, err)
	assert.True(t, current.Ended)
	assert.False(t, current.Active)

	stored, err := env.store.GetResult(ctx, entity.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", stored.Winner)
}

func TestLoadActiveStartupCatchupIsSilent(t *testing.T) {
	env := newTestEnv(models.SingleContribution, false)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	created := past.Add(-time.Hour)
	require.NoError(t, env.store.Create(ctx, &models.Entity[testPayload]{
		ID:        "stale",
		OwnerID:   "owner",
		ChannelID: "chan",
		MessageID: "old-msg",
		Active:    true,
		CreatedAt: created,
		UpdatedAt: created,
		ExpiresAt: &past,
	}))

	require.NoError(t, env.manager.LoadActive(ctx))

	stored, err := env.store.GetByID(ctx, "stale")
	require.NoError(t, err)
	assert.True(t, stored.Ended)
	assert.False(t, stored.Active)

	published, edited := env.publisher.counts()
	assert.Equal(t, 0, published)
	assert.Equal(t, 0, edited)
}

func TestLoadActiveStartupCatchupAnnouncesWhenConfigured(t *testing.T) {
	env := newTestEnv(models.SingleContribution, true)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	require.NoError(t, env.store.Create(ctx, &models.Entity[testPayload]{
		ID:        "stale",
		OwnerID:   "owner",
		ChannelID: "chan",
		MessageID: "old-msg",
		Active:    true,
		CreatedAt: past,
		UpdatedAt: past,
		ExpiresAt: &past,
	}))

	require.NoError(t, env.manager.LoadActive(ctx))

	published, edited := env.publisher.counts()
	assert.Equal(t, 1, published+edited)
}

func TestEvictEndedRespectsRetention(t *testing.T) {
	env := newTestEnv(models.SingleContribution, false)
	ctx := context.Background()

	entity, err := env.manager.Create(ctx, "owner", "chan", testPayload{}, duration(-time.Minute))
	require.NoError(t, err)
	_, err = env.manager.Terminate(ctx, entity.ID, false)
	require.NoError(t, err)

	assert.Equal(t, 0, env.manager.EvictEnded(time.Now()))
	assert.Equal(t, 1, env.manager.EvictEnded(time.Now().Add(25*time.Hour)))

	// Evicted entities are reloaded from the store on demand.
	current, err := env.manager.Get(ctx, entity.ID)
	require.NoError(t, err)
	assert.True(t, current.Ended)
}
