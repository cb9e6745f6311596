package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"community-bot-backend/internal/features/lifecycle/models"
)

func TestTickTerminatesOnlyExpired(t *testing.T) {
	env := newTestEnv(models.SingleContribution, false)
	ctx := context.Background()

	expired, err := env.manager.Create(ctx, "owner", "chan", testPayload{Name: "expired"}, duration(-time.Minute))
	require.NoError(t, err)
	active, err := env.manager.Create(ctx, "owner", "chan", testPayload{Name: "active"}, duration(time.Hour))
	require.NoError(t, err)
	forever, err := env.manager.Create(ctx, "owner", "chan", testPayload{Name: "forever"}, nil)
	require.NoError(t, err)

	r := NewReconciler(env.manager, time.Minute)
	r.Tick()
	r.Wait()

	ended, err := env.manager.Get(ctx, expired.ID)
	require.NoError(t, err)
	assert.True(t, ended.Ended)

	still, err := env.manager.Get(ctx, active.ID)
	require.NoError(t, err)
	assert.False(t, still.Ended)

	open, err := env.manager.Get(ctx, forever.ID)
	require.NoError(t, err)
	assert.False(t, open.Ended)

	assert.EqualValues(t, 1, r.metrics.Processed.Value())
	assert.EqualValues(t, 0, r.metrics.Errors.Value())

	// Three opening announcements, one result edit.
	published, edited := env.publisher.counts()
	assert.Equal(t, 3, published)
	assert.Equal(t, 1, edited)
}

func TestTickIsIdempotentAcrossPasses(t *testing.T) {
	env := newTestEnv(models.SingleContribution, false)
	ctx := context.Background()

	entity, err := env.manager.Create(ctx, "owner", "chan", testPayload{}, duration(-time.Minute))
	require.NoError(t, err)

	r := NewReconciler(env.manager, time.Minute)
	r.Tick()
	r.Wait()
	r.Tick()
	r.Wait()

	current, err := env.manager.Get(ctx, entity.ID)
	require.NoError(t, err)
	assert.True(t, current.Ended)

	_, edited := env.publisher.counts()
	assert.Equal(t, 1, edited)
}

func TestStartStopDrainsCleanly(t *testing.T) {
	env := newTestEnv(models.SingleContribution, false)

	r := NewReconciler(env.manager, 10*time.Millisecond)
	r.Start()
	time.Sleep(30 * time.Millisecond)
	r.Stop()
}
