package models

import "time"

// WatchEntry is a watched asset, optionally carrying a target price.
// Setting a target price derives a one-shot price alert via the watchlist bridge.
type WatchEntry struct {
	Symbol      string
	AssetType   AssetType
	TargetPrice float64 // 0 means no target set
	CreatedAt   time.Time
}
