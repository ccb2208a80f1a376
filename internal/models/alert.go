// Package models defines the core domain entities for the alert engine.
package models

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "portfolio-alerts/internal/errors"
)

// AssetType identifies the market an alert's symbol trades on.
type AssetType string

const (
	AssetCrypto AssetType = "crypto"
	AssetStock  AssetType = "stock"
)

// AlertType identifies which payload an alert carries.
type AlertType string

const (
	// AlertTypePrice watches the price against a fixed target.
	AlertTypePrice AlertType = "price"
	// AlertTypePercentage watches the price against a move relative to a base price.
	AlertTypePercentage AlertType = "percentage"
	// AlertTypeMulti combines several metric conditions with AND/OR.
	AlertTypeMulti AlertType = "multi_condition"
)

// Metric identifies which snapshot value a condition reads.
type Metric string

const (
	MetricPrice     Metric = "price"
	MetricVolume    Metric = "volume"
	MetricMarketCap Metric = "market_cap"
)

// Comparator is the direction of a threshold test.
type Comparator string

const (
	// ComparatorAbove is satisfied when the current value is strictly greater
	// than the threshold. Equality never satisfies it.
	ComparatorAbove Comparator = "above"
	// ComparatorBelow is satisfied when the current value is strictly less
	// than the threshold.
	ComparatorBelow Comparator = "below"
)

// PercentCondition is the direction of a percentage alert.
type PercentCondition string

const (
	PercentGain PercentCondition = "gain"
	PercentLoss PercentCondition = "loss"
)

// Operator combines the conditions of a multi-condition alert.
type Operator string

const (
	OperatorAnd Operator = "AND"
	OperatorOr  Operator = "OR"
)

// Recurrence governs how often a not-yet-triggered alert is re-evaluated.
type Recurrence string

const (
	// RecurrenceOnce alerts are evaluated every tick until they trigger.
	RecurrenceOnce Recurrence = "once"
	// RecurrenceDaily alerts are re-evaluated at most every 24 hours.
	RecurrenceDaily Recurrence = "daily"
	// RecurrenceWeekly alerts are re-evaluated at most every 168 hours.
	RecurrenceWeekly Recurrence = "weekly"
)

// Re-check intervals for recurring alerts.
const (
	DailyInterval  = 24 * time.Hour
	WeeklyInterval = 168 * time.Hour
)

// Condition is an atomic comparator test against one snapshot metric.
// A zero Value is a legitimate threshold, not an unset field.
type Condition struct {
	Metric     Metric     `json:"metric"`
	Comparator Comparator `json:"comparator"`
	Value      float64    `json:"value"`
}

// Alert is a persisted rule watching one symbol's metrics.
// Exactly one of the type-specific payloads is populated, selected by Type.
type Alert struct {
	ID        string
	Symbol    string
	AssetType AssetType
	Type      AlertType

	// price payload
	TargetPrice float64
	Condition   Comparator

	// percentage payload
	PercentageChange float64
	PercentCondition PercentCondition
	BasePrice        float64

	// multi-condition payload
	Conditions []Condition
	Operator   Operator

	Recurring   Recurrence
	Notes       string
	Triggered   bool
	CreatedAt   time.Time
	LastChecked *time.Time
	TriggeredAt *time.Time
}

// Snapshot is a point-in-time read of an asset's metrics. Nil fields mean the
// feed did not report that metric, which is distinct from a reported zero.
type Snapshot struct {
	Price     *float64
	Volume    *float64
	MarketCap *float64
}

// Metric returns the snapshot value for m and whether it was reported.
func (s Snapshot) Metric(m Metric) (float64, bool) {
	switch m {
	case MetricPrice:
		if s.Price != nil {
			return *s.Price, true
		}
	case MetricVolume:
		if s.Volume != nil {
			return *s.Volume, true
		}
	case MetricMarketCap:
		if s.MarketCap != nil {
			return *s.MarketCap, true
		}
	}
	return 0, false
}

// NewPriceAlert creates a price alert.
func NewPriceAlert(symbol string, assetType AssetType, cond Comparator, targetPrice float64, recurring Recurrence) *Alert {
	return &Alert{
		ID:          uuid.NewString(),
		Symbol:      strings.ToUpper(strings.TrimSpace(symbol)),
		AssetType:   assetType,
		Type:        AlertTypePrice,
		TargetPrice: targetPrice,
		Condition:   cond,
		Recurring:   recurring,
		CreatedAt:   time.Now().UTC(),
	}
}

// NewPercentageAlert creates a percentage-move alert relative to basePrice.
func NewPercentageAlert(symbol string, assetType AssetType, cond PercentCondition, change, basePrice float64, recurring Recurrence) *Alert {
	return &Alert{
		ID:               uuid.NewString(),
		Symbol:           strings.ToUpper(strings.TrimSpace(symbol)),
		AssetType:        assetType,
		Type:             AlertTypePercentage,
		PercentageChange: change,
		PercentCondition: cond,
		BasePrice:        basePrice,
		Recurring:        recurring,
		CreatedAt:        time.Now().UTC(),
	}
}

// NewMultiConditionAlert creates a compound alert over several metric conditions.
func NewMultiConditionAlert(symbol string, assetType AssetType, op Operator, conditions []Condition, recurring Recurrence) *Alert {
	return &Alert{
		ID:         uuid.NewString(),
		Symbol:     strings.ToUpper(strings.TrimSpace(symbol)),
		AssetType:  assetType,
		Type:       AlertTypeMulti,
		Conditions: conditions,
		Operator:   op,
		Recurring:  recurring,
		CreatedAt:  time.Now().UTC(),
	}
}

// Validate checks the alert definition. The engine never receives an alert
// that fails validation; management surfaces reject it at creation time.
func (a *Alert) Validate() error {
	if strings.TrimSpace(a.Symbol) == "" {
		return apperrors.NewValidationError("symbol", a.Symbol, "symbol is required")
	}
	if a.AssetType != AssetCrypto && a.AssetType != AssetStock {
		return apperrors.NewValidationError("asset_type", string(a.AssetType), "must be crypto or stock")
	}
	switch a.Recurring {
	case RecurrenceOnce, RecurrenceDaily, RecurrenceWeekly:
	default:
		return apperrors.NewValidationError("recurring", string(a.Recurring), "must be once, daily or weekly")
	}

	switch a.Type {
	case AlertTypePrice:
		if len(a.Conditions) > 0 || a.BasePrice != 0 || a.PercentCondition != "" {
			return apperrors.NewValidationError("type", string(a.Type), "price alert carries a foreign payload")
		}
		if a.TargetPrice <= 0 || !isFinite(a.TargetPrice) {
			return apperrors.NewValidationError("target_price", a.TargetPrice, "must be a positive number")
		}
		if a.Condition != ComparatorAbove && a.Condition != ComparatorBelow {
			return apperrors.NewValidationError("condition", string(a.Condition), "must be above or below")
		}
	case AlertTypePercentage:
		if len(a.Conditions) > 0 || a.TargetPrice != 0 || a.Condition != "" {
			return apperrors.NewValidationError("type", string(a.Type), "percentage alert carries a foreign payload")
		}
		if a.BasePrice <= 0 || !isFinite(a.BasePrice) {
			return apperrors.NewValidationError("base_price", a.BasePrice, "must be a positive number")
		}
		if !isFinite(a.PercentageChange) {
			return apperrors.NewValidationError("percentage_change", a.PercentageChange, "must be a finite number")
		}
		if a.PercentCondition != PercentGain && a.PercentCondition != PercentLoss {
			return apperrors.NewValidationError("percentage_condition", string(a.PercentCondition), "must be gain or loss")
		}
	case AlertTypeMulti:
		if a.TargetPrice != 0 || a.Condition != "" || a.BasePrice != 0 || a.PercentCondition != "" {
			return apperrors.NewValidationError("type", string(a.Type), "multi-condition alert carries a foreign payload")
		}
		if len(a.Conditions) == 0 {
			return apperrors.NewValidationError("conditions", nil, "at least one condition is required")
		}
		if a.Operator != OperatorAnd && a.Operator != OperatorOr {
			return apperrors.NewValidationError("operator", string(a.Operator), "must be AND or OR")
		}
		for i, c := range a.Conditions {
			if err := c.Validate(); err != nil {
				return apperrors.NewValidationError(fmt.Sprintf("conditions[%d]", i), c, err.Error())
			}
		}
	default:
		return apperrors.NewValidationError("type", string(a.Type), "unknown alert type")
	}
	return nil
}

// Validate checks a single condition. Zero is a valid threshold; only
// non-finite values and unknown enum members are rejected.
func (c Condition) Validate() error {
	switch c.Metric {
	case MetricPrice, MetricVolume, MetricMarketCap:
	default:
		return fmt.Errorf("unknown metric %q", c.Metric)
	}
	if c.Comparator != ComparatorAbove && c.Comparator != ComparatorBelow {
		return fmt.Errorf("unknown comparator %q", c.Comparator)
	}
	if !isFinite(c.Value) {
		return fmt.Errorf("value must be a finite number")
	}
	return nil
}

// Due reports whether the alert's recurrence policy permits evaluation at now.
// Triggered alerts are terminal and never due again. Once alerts are due every
// tick. Daily and weekly alerts gate on the time since the last evaluation
// attempt, falling back to the creation time before the first attempt.
func (a *Alert) Due(now time.Time) bool {
	if a.Triggered {
		return false
	}
	if a.Recurring == RecurrenceOnce {
		return true
	}
	since := a.CreatedAt
	if a.LastChecked != nil {
		since = *a.LastChecked
	}
	switch a.Recurring {
	case RecurrenceDaily:
		return now.Sub(since) >= DailyInterval
	case RecurrenceWeekly:
		return now.Sub(since) >= WeeklyInterval
	}
	return false
}

// Describe returns a human-readable summary of the rule, used in notifications.
func (a *Alert) Describe() string {
	switch a.Type {
	case AlertTypePrice:
		return fmt.Sprintf("%s price %s %.2f", a.Symbol, a.Condition, a.TargetPrice)
	case AlertTypePercentage:
		return fmt.Sprintf("%s %.2f%% %s from %.2f", a.Symbol, math.Abs(a.PercentageChange), a.PercentCondition, a.BasePrice)
	case AlertTypeMulti:
		parts := make([]string, 0, len(a.Conditions))
		for _, c := range a.Conditions {
			parts = append(parts, fmt.Sprintf("%s %s %v", c.Metric, c.Comparator, c.Value))
		}
		return fmt.Sprintf("%s %s", a.Symbol, strings.Join(parts, fmt.Sprintf(" %s ", a.Operator)))
	}
	return a.Symbol
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
