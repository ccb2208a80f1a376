// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrAlertNotFound    = errors.New("alert not found")
	ErrAlertTriggered   = errors.New("alert already triggered")
	ErrMetricMissing    = errors.New("metric missing from snapshot")
	ErrFeedUnavailable  = errors.New("metric feed unavailable")
	ErrStoreUnavailable = errors.New("alert store unavailable")
	ErrSymbolNotFound   = errors.New("symbol not found")
	ErrTimeout          = errors.New("operation timed out")
	ErrConfigInvalid    = errors.New("invalid configuration")
)

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// FeedError represents an error from the metric feed.
type FeedError struct {
	Symbol  string
	Message string
	Err     error
}

func (e *FeedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("feed error [%s]: %s: %v", e.Symbol, e.Message, e.Err)
	}
	return fmt.Sprintf("feed error [%s]: %s", e.Symbol, e.Message)
}

func (e *FeedError) Unwrap() error {
	return e.Err
}

// NewFeedError creates a new FeedError.
func NewFeedError(symbol, message string, err error) *FeedError {
	return &FeedError{
		Symbol:  symbol,
		Message: message,
		Err:     err,
	}
}

// StoreError represents an error from the alert store.
type StoreError struct {
	Op      string
	AlertID string
	Err     error
}

func (e *StoreError) Error() string {
	if e.AlertID != "" {
		return fmt.Sprintf("store error [%s] alert %s: %v", e.Op, e.AlertID, e.Err)
	}
	return fmt.Sprintf("store error [%s]: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError.
func NewStoreError(op, alertID string, err error) *StoreError {
	return &StoreError{
		Op:      op,
		AlertID: alertID,
		Err:     err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
