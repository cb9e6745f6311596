package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"community-bot-backend/internal/features/lifecycle/models"
	"community-bot-backend/internal/features/lifecycle/repository"

	"github.com/lib/pq"
)

// Store persists one entity kind in two tables: an entity table with the
// payload/result as JSONB, and a contribution table keyed (entity_id,
// user_id) so the duplicate policy is enforced by the schema.
type Store[P, R any] struct {
	db           *sql.DB
	entityTable  string
	contribTable string
}

func NewStore[P, R any](db *sql.DB, entityTable, contribTable string) *Store[P, R] {
	return &Store[P, R]{
		db:           db,
		entityTable:  entityTable,
		contribTable: contribTable,
	}
}

// EnsureSchema creates the tables and indexes if they do not exist yet.
func (s *Store[P, R]) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id         TEXT PRIMARY KEY,
			owner_id   TEXT NOT NULL,
			channel_id TEXT NOT NULL,
			message_id TEXT NOT NULL DEFAULT '',
			payload    JSONB NOT NULL,
			result     JSONB,
			active     BOOLEAN NOT NULL,
			ended      BOOLEAN NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ,
			ended_at   TIMESTAMPTZ
		)`, s.entityTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_active_expires_idx ON %s (active, expires_at)`,
			s.entityTable, s.entityTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			entity_id    TEXT NOT NULL REFERENCES %s (id),
			user_id      TEXT NOT NULL,
			option_index INT NOT NULL DEFAULT 0,
			created_at   TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (entity_id, user_id)
		)`, s.contribTable, s.entityTable),
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema for %s: %w", s.entityTable, err)
		}
	}
	return nil
}

func (s *Store[P, R]) Create(ctx context.Context, entity *models.Entity[P]) error {
	payload, err := json.Marshal(entity.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	query := fmt.Sprintf(`INSERT INTO %s
		(id, owner_id, channel_id, message_id, payload, active, ended, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`, s.entityTable)

	_, err = s.db.ExecContext(ctx, query,
		entity.ID, entity.OwnerID, entity.ChannelID, entity.MessageID, payload,
		entity.Active, entity.Ended, entity.CreatedAt, entity.UpdatedAt, entity.ExpiresAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return repository.ErrDuplicateEntity
		}
		return fmt.Errorf("failed to insert entity: %w", err)
	}
	return nil
}

const entityColumns = `id, owner_id, channel_id, message_id, payload, active, ended, created_at, updated_at, expires_at, ended_at`

func (s *Store[P, R]) scanEntity(row interface{ Scan(...interface{}) error }) (*models.Entity[P], error) {
	var (
		e       models.Entity[P]
		payload []byte
	)
	err := row.Scan(&e.ID, &e.OwnerID, &e.ChannelID, &e.MessageID, &payload,
		&e.Active, &e.Ended, &e.CreatedAt, &e.UpdatedAt, &e.ExpiresAt, &e.EndedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payload, &e.Payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return &e, nil
}

func (s *Store[P, R]) GetByID(ctx context.Context, id string) (*models.Entity[P], error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, entityColumns, s.entityTable)
	entity, err := s.scanEntity(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, repository.ErrEntityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entity: %w", err)
	}
	return entity, nil
}

func (s *Store[P, R]) ListActive(ctx context.Context) ([]*models.Entity[P], error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE active = true`, entityColumns, s.entityTable)
	return s.queryEntities(ctx, query)
}

func (s *Store[P, R]) ListActiveExpired(ctx context.Context, now time.Time) ([]*models.Entity[P], error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE active = true AND expires_at IS NOT NULL AND expires_at <= $1`,
		entityColumns, s.entityTable)
	return s.queryEntities(ctx, query, now)
}

func (s *Store[P, R]) queryEntities(ctx context.Context, query string, args ...interface{}) ([]*models.Entity[P], error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()

	var entities []*models.Entity[P]
	for rows.Next() {
		entity, err := s.scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	return entities, rows.Err()
}

// MarkEnded flips the entity to ended exactly once. The WHERE ended = false
// guard makes the flip a compare-and-set; the caller that sees true owns the
// rest of the termination transition.
func (s *Store[P, R]) MarkEnded(ctx context.Context, id string, at time.Time) (bool, error) {
	query := fmt.Sprintf(`UPDATE %s SET active = false, ended = true, ended_at = $2, updated_at = $2
		WHERE id = $1 AND ended = false`, s.entityTable)
	res, err := s.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return false, fmt.Errorf("failed to mark entity ended: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (s *Store[P, R]) SetMessageID(ctx context.Context, id, messageID string) error {
	query := fmt.Sprintf(`UPDATE %s SET message_id = $2, updated_at = now() WHERE id = $1`, s.entityTable)
	res, err := s.db.ExecContext(ctx, query, id, messageID)
	if err != nil {
		return fmt.Errorf("failed to set message id: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return repository.ErrEntityNotFound
	}
	return nil
}

func (s *Store[P, R]) AddContribution(ctx context.Context, id string, c models.Contribution, policy models.ContributionPolicy) error {
	var query string
	switch policy {
	case models.ReplaceContribution:
		query = fmt.Sprintf(`INSERT INTO %s (entity_id, user_id, option_index, created_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (entity_id, user_id)
			DO UPDATE SET option_index = EXCLUDED.option_index, created_at = EXCLUDED.created_at`, s.contribTable)
	default:
		query = fmt.Sprintf(`INSERT INTO %s (entity_id, user_id, option_index, created_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (entity_id, user_id) DO NOTHING`, s.contribTable)
	}

	res, err := s.db.ExecContext(ctx, query, id, c.UserID, c.Option, c.At)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "foreign_key_violation" {
			return repository.ErrEntityNotFound
		}
		return fmt.Errorf("failed to add contribution: %w", err)
	}

	if policy == models.SingleContribution {
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return repository.ErrDuplicateContribution
		}
	}
	return nil
}

func (s *Store[P, R]) GetContributions(ctx context.Context, id string) ([]models.Contribution, error) {
	query := fmt.Sprintf(`SELECT user_id, option_index, created_at FROM %s
		WHERE entity_id = $1 ORDER BY created_at`, s.contribTable)
	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query contributions: %w", err)
	}
	defer rows.Close()

	var contribs []models.Contribution
	for rows.Next() {
		var c models.Contribution
		if err := rows.Scan(&c.UserID, &c.Option, &c.At); err != nil {
			return nil, err
		}
		contribs = append(contribs, c)
	}
	return contribs, rows.Err()
}

func (s *Store[P, R]) CountContributions(ctx context.Context, id string) (int64, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE entity_id = $1`, s.contribTable)
	var count int64
	if err := s.db.QueryRowContext(ctx, query, id).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count contributions: %w", err)
	}
	return count, nil
}

func (s *Store[P, R]) SaveResult(ctx context.Context, id string, result R) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	query := fmt.Sprintf(`UPDATE %s SET result = $2, updated_at = now() WHERE id = $1`, s.entityTable)
	res, err := s.db.ExecContext(ctx, query, id, data)
	if err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return repository.ErrEntityNotFound
	}
	return nil
}

func (s *Store[P, R]) GetResult(ctx context.Context, id string) (R, error) {
	var result R
	query := fmt.Sprintf(`SELECT result FROM %s WHERE id = $1`, s.entityTable)
	var data []byte
	err := s.db.QueryRowContext(ctx, query, id).Scan(&data)
	if err == sql.ErrNoRows {
		return result, repository.ErrEntityNotFound
	}
	if err != nil {
		return result, fmt.Errorf("failed to get result: %w", err)
	}
	if data == nil {
		return result, repository.ErrResultNotFound
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return result, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return result, nil
}
