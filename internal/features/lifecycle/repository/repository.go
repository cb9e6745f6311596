package repository

import (
	"context"
	"errors"
	"time"

	"community-bot-backend/internal/features/lifecycle/models"
)

var (
	ErrEntityNotFound        = errors.New("entity not found")
	ErrDuplicateEntity       = errors.New("entity already exists")
	ErrDuplicateContribution = errors.New("user already contributed")
	ErrResultNotFound        = errors.New("result not found")
)

// Store is the durable side of a timed-entity kind. The postgres
// implementation backs production; the memory implementation backs tests.
//
// MarkEnded is the commit point of the termination transition: it flips
// active/ended atomically and reports whether this caller won the flip, so
// two concurrent reconciliation passes never both perform the announcement.
type Store[P, R any] interface {
	Create(ctx context.Context, entity *models.Entity[P]) error
	GetByID(ctx context.Context, id string) (*models.Entity[P], error)
	ListActive(ctx context.Context) ([]*models.Entity[P], error)
	ListActiveExpired(ctx context.Context, now time.Time) ([]*models.Entity[P], error)
	MarkEnded(ctx context.Context, id string, at time.Time) (bool, error)
	SetMessageID(ctx context.Context, id, messageID string) error

	AddContribution(ctx context.Context, id string, c models.Contribution, policy models.ContributionPolicy) error
	GetContributions(ctx context.Context, id string) ([]models.Contribution, error)
	CountContributions(ctx context.Context, id string) (int64, error)

	SaveResult(ctx context.Context, id string, result R) error
	GetResult(ctx context.Context, id string) (R, error)
}
