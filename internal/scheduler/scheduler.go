// Package scheduler drives periodic re-evaluation of active alerts.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"portfolio-alerts/internal/engine"
	apperrors "portfolio-alerts/internal/errors"
	"portfolio-alerts/internal/feed"
	"portfolio-alerts/internal/metrics"
	"portfolio-alerts/internal/models"
	"portfolio-alerts/internal/store"
)

// Scheduler ticks on a fixed interval, pulls due alerts from the store,
// evaluates each against a fresh metric snapshot and applies the resulting
// state transition. Alerts are independent, so evaluation fans out across a
// bounded worker pool; all store writes are single statements, which keeps a
// stop request between ticks safe.
type Scheduler struct {
	store       store.AlertStore
	feed        feed.Feed
	sink        *engine.TriggerSink
	logger      zerolog.Logger
	interval    time.Duration
	feedTimeout time.Duration
	workers     int

	// now is swappable for tests.
	now func() time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the scheduler's time source.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New creates a Scheduler.
func New(alertStore store.AlertStore, metricFeed feed.Feed, sink *engine.TriggerSink, logger zerolog.Logger, interval, feedTimeout time.Duration, workers int, opts ...Option) *Scheduler {
	if workers <= 0 {
		workers = 1
	}
	s := &Scheduler{
		store:       alertStore,
		feed:        metricFeed,
		sink:        sink,
		logger:      logger.With().Str("component", "scheduler").Logger(),
		interval:    interval,
		feedTimeout: feedTimeout,
		workers:     workers,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run starts the tick loop and blocks until ctx is cancelled. It refuses to
// run when the store is unreachable: evaluating against missing state is the
// one fatal condition.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return apperrors.Wrap(err, "scheduler refusing to start")
	}

	s.logger.Info().
		Dur("interval", s.interval).
		Int("workers", s.workers).
		Msg("scheduler started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Evaluate immediately rather than waiting out the first interval.
	s.Tick(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("scheduler stopped")
			return nil
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one evaluation pass over all due alerts.
func (s *Scheduler) Tick(ctx context.Context) {
	start := s.now()
	metrics.TicksTotal.Inc()

	due, err := s.store.ListDue(ctx, start)
	if err != nil {
		metrics.StoreErrorsTotal.WithLabelValues("list_due").Inc()
		s.logger.Error().Err(err).Msg("failed to list due alerts")
		return
	}
	metrics.DueAlerts.Set(float64(len(due)))

	if len(due) == 0 {
		return
	}

	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup
	for i := range due {
		alert := due[i]
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			s.evaluate(ctx, &alert, start)
		}()
	}
	wg.Wait()

	metrics.TickDuration.Observe(time.Since(start).Seconds())
}

// evaluate runs one alert through the rule evaluator and applies the
// resulting transition. A feed failure or timeout means the alert is retried
// on a later tick; it is never disabled or deleted.
func (s *Scheduler) evaluate(ctx context.Context, alert *models.Alert, at time.Time) {
	fctx, cancel := context.WithTimeout(ctx, s.feedTimeout)
	defer cancel()

	snap, err := s.feed.GetSnapshot(fctx, alert.Symbol, alert.AssetType)
	if err != nil {
		metrics.EvaluationsTotal.WithLabelValues("feed_error").Inc()
		s.logger.Warn().
			Err(err).
			Str("alert_id", alert.ID).
			Str("symbol", alert.Symbol).
			Msg("snapshot unavailable, retrying next tick")
		return
	}

	triggered, err := engine.Evaluate(alert, snap)
	if err != nil {
		// Malformed alerts are rejected at creation; reaching this means the
		// stored row is corrupt. Skip it rather than guessing.
		s.logger.Error().
			Err(err).
			Str("alert_id", alert.ID).
			Msg("unevaluable alert")
		return
	}

	if triggered {
		metrics.EvaluationsTotal.WithLabelValues("triggered").Inc()
		if err := s.sink.Fire(ctx, alert, snap, at); err != nil {
			s.logger.Error().
				Err(err).
				Str("alert_id", alert.ID).
				Msg("failed to commit trigger, will re-evaluate next tick")
		}
		return
	}

	metrics.EvaluationsTotal.WithLabelValues("not_satisfied").Inc()

	// Once alerts are checked every tick anyway; only recurring alerts record
	// the attempt to arm their next re-check window.
	if alert.Recurring != models.RecurrenceOnce {
		if err := s.store.UpdateLastChecked(ctx, alert.ID, at); err != nil {
			metrics.StoreErrorsTotal.WithLabelValues("update_last_checked").Inc()
			s.logger.Warn().
				Err(err).
				Str("alert_id", alert.ID).
				Msg("failed to record evaluation time")
		}
	}
}
