package memory

import (
	"context"
	"sync"
	"time"

	"community-bot-backend/internal/features/lifecycle/models"
	"community-bot-backend/internal/features/lifecycle/repository"
)

// Store is an in-process Store implementation. It backs unit tests and keeps
// the same semantics as the postgres store, including the compare-and-set on
// MarkEnded and the per-(entity, user) contribution key.
type Store[P, R any] struct {
	mu       sync.Mutex
	entities map[string]*models.Entity[P]
	contribs map[string][]models.Contribution
	byUser   map[string]map[string]int // entity id -> user id -> index into contribs
	results  map[string]R

	// failures maps an operation name ("create", "add", "mark", "save",
	// "message") to an error returned instead of performing it. Used by
	// tests to exercise rollback paths.
	failures map[string]error
}

func NewStore[P, R any]() *Store[P, R] {
	return &Store[P, R]{
		entities: make(map[string]*models.Entity[P]),
		contribs: make(map[string][]models.Contribution),
		byUser:   make(map[string]map[string]int),
		results:  make(map[string]R),
		failures: make(map[string]error),
	}
}

// FailWith makes the named operation return err until cleared with nil.
func (s *Store[P, R]) FailWith(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

func (s *Store[P, R]) Create(ctx context.Context, entity *models.Entity[P]) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failures["create"]; err != nil {
		return err
	}
	if _, ok := s.entities[entity.ID]; ok {
		return repository.ErrDuplicateEntity
	}
	s.entities[entity.ID] = entity.Clone()
	s.byUser[entity.ID] = make(map[string]int)
	return nil
}

func (s *Store[P, R]) GetByID(ctx context.Context, id string) (*models.Entity[P], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entity, ok := s.entities[id]
	if !ok {
		return nil, repository.ErrEntityNotFound
	}
	return entity.Clone(), nil
}

func (s *Store[P, R]) ListActive(ctx context.Context) ([]*models.Entity[P], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Entity[P]
	for _, e := range s.entities {
		if e.Active {
			out = append(out, e.Clone())
		}
	}
	return out, nil
}

func (s *Store[P, R]) ListActiveExpired(ctx context.Context, now time.Time) ([]*models.Entity[P], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Entity[P]
	for _, e := range s.entities {
		if e.Active && e.HasExpired(now) {
			out = append(out, e.Clone())
		}
	}
	return out, nil
}

func (s *Store[P, R]) MarkEnded(ctx context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failures["mark"]; err != nil {
		return false, err
	}
	entity, ok := s.entities[id]
	if !ok || entity.Ended {
		return false, nil
	}
	entity.Active = false
	entity.Ended = true
	t := at
	entity.EndedAt = &t
	entity.UpdatedAt = at
	return true, nil
}

func (s *Store[P, R]) SetMessageID(ctx context.Context, id, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failures["message"]; err != nil {
		return err
	}
	entity, ok := s.entities[id]
	if !ok {
		return repository.ErrEntityNotFound
	}
	entity.MessageID = messageID
	return nil
}

func (s *Store[P, R]) AddContribution(ctx context.Context, id string, c models.Contribution, policy models.ContributionPolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failures["add"]; err != nil {
		return err
	}
	if _, ok := s.entities[id]; !ok {
		return repository.ErrEntityNotFound
	}
	users := s.byUser[id]
	if idx, ok := users[c.UserID]; ok {
		if policy == models.SingleContribution {
			return repository.ErrDuplicateContribution
		}
		s.contribs[id][idx] = c
		return nil
	}
	users[c.UserID] = len(s.contribs[id])
	s.contribs[id] = append(s.contribs[id], c)
	return nil
}

func (s *Store[P, R]) GetContributions(ctx context.Context, id string) ([]models.Contribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entities[id]; !ok {
		return nil, repository.ErrEntityNotFound
	}
	out := make([]models.Contribution, len(s.contribs[id]))
	copy(out, s.contribs[id])
	return out, nil
}

func (s *Store[P, R]) CountContributions(ctx context.Context, id string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.contribs[id])), nil
}

func (s *Store[P, R]) SaveResult(ctx context.Context, id string, result R) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failures["save"]; err != nil {
		return err
	}
	if _, ok := s.entities[id]; !ok {
		return repository.ErrEntityNotFound
	}
	s.results[id] = result
	return nil
}

func (s *Store[P, R]) GetResult(ctx context.Context, id string) (R, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero R
	if _, ok := s.entities[id]; !ok {
		return zero, repository.ErrEntityNotFound
	}
	result, ok := s.results[id]
	if !ok {
		return zero, repository.ErrResultNotFound
	}
	return result, nil
}
