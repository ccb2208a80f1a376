// Package store provides alert persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"portfolio-alerts/internal/models"
)

// AlertStore defines the interface for alert persistence.
// Implementations must make per-alert updates atomic: TriggerAlert sets the
// triggered flag and timestamp in a single statement, so a half-applied
// transition is never observable.
type AlertStore interface {
	// Alerts
	SaveAlert(ctx context.Context, alert *models.Alert) error
	GetAlert(ctx context.Context, id string) (*models.Alert, error)
	ListBySymbol(ctx context.Context, symbol string) ([]models.Alert, error)
	ListActive(ctx context.Context) ([]models.Alert, error)
	ListDue(ctx context.Context, now time.Time) ([]models.Alert, error)
	UpdateLastChecked(ctx context.Context, id string, t time.Time) error
	TriggerAlert(ctx context.Context, id string, at time.Time) error
	ResetAlert(ctx context.Context, id string) error
	DeleteAlert(ctx context.Context, id string) error

	// Watchlist
	AddWatch(ctx context.Context, entry models.WatchEntry) error
	RemoveWatch(ctx context.Context, symbol string) error
	ListWatches(ctx context.Context) ([]models.WatchEntry, error)
	SetWatchTarget(ctx context.Context, symbol string, target float64) error

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
}

// dueAlerts filters active alerts by their recurrence policy. Both backends
// share this so the due-time thresholds have a single source of truth.
func dueAlerts(alerts []models.Alert, now time.Time) []models.Alert {
	var due []models.Alert
	for i := range alerts {
		if alerts[i].Due(now) {
			due = append(due, alerts[i])
		}
	}
	return due
}
