// Package engine evaluates alert rules against metric snapshots.
package engine

import (
	apperrors "portfolio-alerts/internal/errors"
	"portfolio-alerts/internal/models"
)

// EvaluateCondition evaluates one atomic condition against a snapshot.
// Comparisons are strict: a value sitting exactly on the threshold satisfies
// neither comparator, so repeated ticks at the threshold cannot double-fire.
// When the snapshot lacks the required metric it returns ErrMetricMissing;
// callers treat that as not-satisfied this tick, never as a terminal failure.
func EvaluateCondition(cond models.Condition, snap models.Snapshot) (bool, error) {
	current, ok := snap.Metric(cond.Metric)
	if !ok {
		return false, apperrors.Wrapf(apperrors.ErrMetricMissing, "metric %s", cond.Metric)
	}

	switch cond.Comparator {
	case models.ComparatorAbove:
		return current > cond.Value, nil
	case models.ComparatorBelow:
		return current < cond.Value, nil
	}
	return false, nil
}
