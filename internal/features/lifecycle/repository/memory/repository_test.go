package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"community-bot-backend/internal/features/lifecycle/models"
	"community-bot-backend/internal/features/lifecycle/repository"
)

type payload struct {
	Name string
}

type result struct {
	Winner string
}

func newEntity(id string, expiresAt *time.Time) *models.Entity[payload] {
	now := time.Now()
	return &models.Entity[payload]{
		ID:        id,
		OwnerID:   "owner",
		ChannelID: "chan",
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: expiresAt,
	}
}

func TestCreateRejectsDuplicateID(t *testing.T) {
	s := NewStore[payload, result]()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, newEntity("e1", nil)))
	err := s.Create(ctx, newEntity("e1", nil))
	assert.ErrorIs(t, err, repository.ErrDuplicateEntity)
}

func TestGetByIDUnknown(t *testing.T) {
	s := NewStore[payload, result]()

	_, err := s.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrEntityNotFound)
}

func TestMarkEndedIsCompareAndSet(t *testing.T) {
	s := NewStore[payload, result]()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, newEntity("e1", nil)))

	at := time.Now()
	won, err := s.MarkEnded(ctx, "e1", at)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = s.MarkEnded(ctx, "e1", at.Add(time.Second))
	require.NoError(t, err)
	assert.False(t, won)

	e, err := s.GetByID(ctx, "e1")
	require.NoError(t, err)
	assert.True(t, e.Ended)
	assert.False(t, e.Active)
	require.NotNil(t, e.EndedAt)
	assert.True(t, e.EndedAt.Equal(at))
}

func TestListActiveExpired(t *testing.T) {
	s := NewStore[payload, result]()
	ctx := context.Background()
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	require.NoError(t, s.Create(ctx, newEntity("past", &past)))
	require.NoError(t, s.Create(ctx, newEntity("future", &future)))
	require.NoError(t, s.Create(ctx, newEntity("forever", nil)))

	expired, err := s.ListActiveExpired(ctx, now)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "past", expired[0].ID)

	active, err := s.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 3)
}

func TestAddContributionSinglePolicy(t *testing.T) {
	s := NewStore[payload, result]()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, newEntity("e1", nil)))

	c := models.Contribution{UserID: "alice", Option: 0, At: time.Now()}
	require.NoError(t, s.AddContribution(ctx, "e1", c, models.SingleContribution))

	err := s.AddContribution(ctx, "e1", c, models.SingleContribution)
	assert.ErrorIs(t, err, repository.ErrDuplicateContribution)

	count, err := s.CountContributions(ctx, "e1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestAddContributionReplacePolicy(t *testing.T) {
	s := NewStore[payload, result]()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, newEntity("e1", nil)))

	require.NoError(t, s.AddContribution(ctx, "e1", models.Contribution{UserID: "alice", Option: 0}, models.ReplaceContribution))
	require.NoError(t, s.AddContribution(ctx, "e1", models.Contribution{UserID: "alice", Option: 1}, models.ReplaceContribution))

	contribs, err := s.GetContributions(ctx, "e1")
	require.NoError(t, err)
	require.Len(t, contribs, 1)
	assert.Equal(t, 1, contribs[0].Option)
}

func TestAddContributionUnknownEntity(t *testing.T) {
	s := NewStore[payload, result]()

	err := s.AddContribution(context.Background(), "missing", models.Contribution{UserID: "alice"}, models.SingleContribution)
	assert.ErrorIs(t, err, repository.ErrEntityNotFound)
}

func TestResultRoundTrip(t *testing.T) {
	s := NewStore[payload, result]()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, newEntity("e1", nil)))

	_, err := s.GetResult(ctx, "e1")
	assert.ErrorIs(t, err, repository.ErrResultNotFound)

	require.NoError(t, s.SaveResult(ctx, "e1", result{Winner: "alice"}))
	r, err := s.GetResult(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "alice", r.Winner)

	// Rerolls overwrite.
	require.NoError(t, s.SaveResult(ctx, "e1", result{Winner: "bob"}))
	r, err = s.GetResult(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "bob", r.Winner)
}

func TestSetMessageID(t *testing.T) {
	s := NewStore[payload, result]()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, newEntity("e1", nil)))

	require.NoError(t, s.SetMessageID(ctx, "e1", "msg-1"))
	e, err := s.GetByID(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "msg-1", e.MessageID)
}

func TestFailWithInjectsErrors(t *testing.T) {
	s := NewStore[payload, result]()
	ctx := context.Background()

	s.FailWith("create", assert.AnError)
	assert.ErrorIs(t, s.Create(ctx, newEntity("e1", nil)), assert.AnError)

	s.FailWith("create", nil)
	assert.NoError(t, s.Create(ctx, newEntity("e1", nil)))
}
