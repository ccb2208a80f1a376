// Package watchlist derives price alerts from watched assets.
package watchlist

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	apperrors "portfolio-alerts/internal/errors"
	"portfolio-alerts/internal/models"
	"portfolio-alerts/internal/store"
)

// Bridge connects the watchlist to the alert store. Setting a target price on
// a watched asset creates a one-shot price alert; the bridge is a convenience
// constructor and plays no part in the evaluation loop.
type Bridge struct {
	store  store.AlertStore
	logger zerolog.Logger
}

// NewBridge creates a new Bridge.
func NewBridge(alertStore store.AlertStore, logger zerolog.Logger) *Bridge {
	return &Bridge{
		store:  alertStore,
		logger: logger.With().Str("component", "watchlist_bridge").Logger(),
	}
}

// Watch adds a symbol to the watchlist.
func (b *Bridge) Watch(ctx context.Context, symbol string, assetType models.AssetType) (*models.WatchEntry, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, apperrors.NewValidationError("symbol", symbol, "symbol is required")
	}
	if assetType != models.AssetCrypto && assetType != models.AssetStock {
		return nil, apperrors.NewValidationError("asset_type", string(assetType), "must be crypto or stock")
	}

	entry := models.WatchEntry{
		Symbol:    symbol,
		AssetType: assetType,
		CreatedAt: time.Now().UTC(),
	}
	if err := b.store.AddWatch(ctx, entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Unwatch removes a symbol from the watchlist.
func (b *Bridge) Unwatch(ctx context.Context, symbol string) error {
	return b.store.RemoveWatch(ctx, strings.ToUpper(strings.TrimSpace(symbol)))
}

// List returns all watchlist entries.
func (b *Bridge) List(ctx context.Context) ([]models.WatchEntry, error) {
	return b.store.ListWatches(ctx)
}

// OnTargetPriceSet records the target on the watch entry and derives a
// one-shot price alert armed above the target.
func (b *Bridge) OnTargetPriceSet(ctx context.Context, symbol string, assetType models.AssetType, targetPrice float64) (*models.Alert, error) {
	if targetPrice <= 0 || math.IsNaN(targetPrice) || math.IsInf(targetPrice, 0) {
		return nil, apperrors.NewValidationError("target_price", targetPrice, "must be a positive number")
	}

	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	if err := b.store.SetWatchTarget(ctx, symbol, targetPrice); err != nil && err != apperrors.ErrSymbolNotFound {
		return nil, err
	}

	alert := models.NewPriceAlert(symbol, assetType, models.ComparatorAbove, targetPrice, models.RecurrenceOnce)
	if err := alert.Validate(); err != nil {
		return nil, err
	}
	if err := b.store.SaveAlert(ctx, alert); err != nil {
		return nil, err
	}

	b.logger.Info().
		Str("symbol", symbol).
		Float64("target_price", targetPrice).
		Str("alert_id", alert.ID).
		Msg("derived price alert from watch target")

	return alert, nil
}
