package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"portfolio-alerts/internal/metrics"
	"portfolio-alerts/internal/models"
	"portfolio-alerts/internal/notify"
	"portfolio-alerts/internal/store"
)

// TriggerSink commits the Active to Triggered transition and forwards the
// trigger event to the notification channels. The store write is a single
// atomic update, so triggered=true is never observable without triggeredAt.
type TriggerSink struct {
	store    store.AlertStore
	notifier notify.Notifier
	logger   zerolog.Logger
}

// NewTriggerSink creates a new TriggerSink.
func NewTriggerSink(alertStore store.AlertStore, notifier notify.Notifier, logger zerolog.Logger) *TriggerSink {
	return &TriggerSink{
		store:    alertStore,
		notifier: notifier,
		logger:   logger.With().Str("component", "trigger_sink").Logger(),
	}
}

// Fire records the trigger and notifies. A store failure aborts the fire so
// the next tick re-evaluates cleanly; a notification failure is logged and
// counted but never rolls back the committed trigger state.
func (s *TriggerSink) Fire(ctx context.Context, alert *models.Alert, snap models.Snapshot, at time.Time) error {
	if err := s.store.TriggerAlert(ctx, alert.ID, at); err != nil {
		metrics.StoreErrorsTotal.WithLabelValues("trigger").Inc()
		return err
	}

	alert.Triggered = true
	alert.TriggeredAt = &at
	metrics.TriggersTotal.Inc()

	s.logger.Info().
		Str("alert_id", alert.ID).
		Str("symbol", alert.Symbol).
		Str("rule", alert.Describe()).
		Time("triggered_at", at).
		Msg("alert triggered")

	if s.notifier != nil {
		if err := s.notifier.SendTrigger(ctx, alert, snap, at); err != nil {
			s.logger.Warn().
				Err(err).
				Str("alert_id", alert.ID).
				Msg("trigger notification failed")
		}
	}

	return nil
}
