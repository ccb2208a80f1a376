package engine

import (
	"fmt"
	"math"

	"portfolio-alerts/internal/models"
)

// Evaluate composes an alert's conditions into a single boolean verdict.
// It never partially triggers: the result is one verdict for the whole rule.
// A missing metric makes the affected condition false and the alert is simply
// retried on a later tick.
func Evaluate(alert *models.Alert, snap models.Snapshot) (bool, error) {
	switch alert.Type {
	case models.AlertTypePrice:
		return satisfied(models.Condition{
			Metric:     models.MetricPrice,
			Comparator: alert.Condition,
			Value:      alert.TargetPrice,
		}, snap), nil

	case models.AlertTypePercentage:
		return satisfied(percentageCondition(alert), snap), nil

	case models.AlertTypeMulti:
		return evaluateCompound(alert, snap), nil
	}
	return false, fmt.Errorf("unknown alert type %q", alert.Type)
}

// percentageCondition derives the threshold test for a percentage alert.
// A gain of p% over the base price arms an "above" test at base*(1+p/100);
// a loss arms a "below" test at base*(1-p/100). The magnitude of the change
// is used so the stored sign is irrelevant.
func percentageCondition(alert *models.Alert) models.Condition {
	change := math.Abs(alert.PercentageChange)
	if alert.PercentCondition == models.PercentGain {
		return models.Condition{
			Metric:     models.MetricPrice,
			Comparator: models.ComparatorAbove,
			Value:      alert.BasePrice * (1 + change/100),
		}
	}
	return models.Condition{
		Metric:     models.MetricPrice,
		Comparator: models.ComparatorBelow,
		Value:      alert.BasePrice * (1 - change/100),
	}
}

// evaluateCompound combines every condition with the alert's operator.
// AND requires all conditions true, OR at least one. Short-circuiting is an
// optimization only; the combination is commutative.
func evaluateCompound(alert *models.Alert, snap models.Snapshot) bool {
	switch alert.Operator {
	case models.OperatorAnd:
		for _, c := range alert.Conditions {
			if !satisfied(c, snap) {
				return false
			}
		}
		return true
	case models.OperatorOr:
		for _, c := range alert.Conditions {
			if satisfied(c, snap) {
				return true
			}
		}
		return false
	}
	return false
}

// satisfied maps a missing metric to false rather than surfacing the error.
// A condition whose metric is absent must never be skipped or counted true.
func satisfied(cond models.Condition, snap models.Snapshot) bool {
	ok, err := EvaluateCondition(cond, snap)
	if err != nil {
		return false
	}
	return ok
}
