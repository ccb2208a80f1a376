// Package feed provides pull-based metric snapshot lookups.
package feed

import (
	"context"

	"portfolio-alerts/internal/models"
)

// Feed returns the current metric snapshot for a symbol. Absent metrics are
// reported as nil fields in the snapshot, which callers must distinguish from
// a reported zero.
type Feed interface {
	GetSnapshot(ctx context.Context, symbol string, assetType models.AssetType) (models.Snapshot, error)
}
