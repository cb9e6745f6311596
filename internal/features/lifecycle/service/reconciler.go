package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"community-bot-backend/internal/common/logger"

	"github.com/rs/zerolog"
)

const (
	maxRetries = 3
	// Retention eviction runs much less often than expiry scans.
	evictionInterval = 30 * time.Minute
	// Maximum number of entities terminated concurrently per tick.
	maxConcurrentTerminations = 10
)

type counter struct {
	value int64
}

func (c *counter) Inc() {
	atomic.AddInt64(&c.value, 1)
}

func (c *counter) Value() int64 {
	return atomic.LoadInt64(&c.value)
}

type reconcilerMetrics struct {
	Processed *counter
	Errors    *counter
}

// Reconciler periodically drives expired entities of one kind through the
// termination transition. It is a single-process loop; catch-up after
// downtime is LoadActive's job, not this one's.
type Reconciler[P, R any] struct {
	ctx     context.Context
	cancel  context.CancelFunc
	manager *Manager[P, R]

	interval   time.Duration
	wg         sync.WaitGroup
	processing sync.Map
	sem        chan struct{}
	metrics    *reconcilerMetrics
	logger     zerolog.Logger
}

func NewReconciler[P, R any](manager *Manager[P, R], interval time.Duration) *Reconciler[P, R] {
	ctx, cancel := context.WithCancel(context.Background())
	return &Reconciler[P, R]{
		ctx:      ctx,
		cancel:   cancel,
		manager:  manager,
		interval: interval,
		sem:      make(chan struct{}, maxConcurrentTerminations),
		metrics: &reconcilerMetrics{
			Processed: &counter{},
			Errors:    &counter{},
		},
		logger: logger.With(manager.Kind() + "-reconciler"),
	}
}

func (r *Reconciler[P, R]) Start() {
	r.logger.Info().Dur("interval", r.interval).Msg("Starting reconciler")
	r.wg.Add(2)

	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				r.Tick()
			case <-r.ctx.Done():
				return
			}
		}
	}()

	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(evictionInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				r.manager.EvictEnded(time.Now())
			case <-r.ctx.Done():
				return
			}
		}
	}()
}

func (r *Reconciler[P, R]) Stop() {
	r.logger.Info().Msg("Stopping reconciler")
	r.cancel()
	r.wg.Wait()
	r.logger.Info().
		Int64("processed", r.metrics.Processed.Value()).
		Int64("errors", r.metrics.Errors.Value()).
		Msg("Reconciler stopped")
}

// Tick runs one reconciliation pass: every cached entity with
// active && expiresAt <= now is driven through the termination transition.
// An entity already in flight from a previous tick is skipped; the
// idempotent ended check resolves any remaining race with manual EndNow.
func (r *Reconciler[P, R]) Tick() {
	expired := r.manager.ExpiredIDs(time.Now())
	for _, id := range expired {
		if _, inFlight := r.processing.LoadOrStore(id, struct{}{}); inFlight {
			continue
		}

		r.wg.Add(1)
		go func(id string) {
			defer r.wg.Done()
			defer r.processing.Delete(id)

			r.sem <- struct{}{}
			defer func() { <-r.sem }()

			if err := r.terminateWithRetry(id); err != nil {
				r.logger.Error().Err(err).Str("id", id).Msg("Failed to terminate expired entity")
				r.metrics.Errors.Inc()
				return
			}
			r.metrics.Processed.Inc()
		}(id)
	}
}

// Wait blocks until in-flight terminations finish. Tests call this after
// Tick; Stop covers it in production.
func (r *Reconciler[P, R]) Wait() {
	r.wg.Wait()
}

func (r *Reconciler[P, R]) terminateWithRetry(id string) error {
	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		performed, err := r.manager.Terminate(r.ctx, id, true)
		if err == nil {
			if performed {
				r.logger.Info().Str("id", id).Msg("Entity finalized")
			}
			return nil
		}
		lastErr = err
		r.logger.Warn().Err(err).Str("id", id).Int("attempt", attempt).Msg("Termination attempt failed")
		select {
		case <-r.ctx.Done():
			return lastErr
		case <-time.After(time.Second * time.Duration(attempt)):
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", maxRetries, lastErr)
}
