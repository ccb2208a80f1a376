package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	apperrors "portfolio-alerts/internal/errors"
	"portfolio-alerts/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "alerts.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndGetAlert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alert := models.NewMultiConditionAlert("BTC", models.AssetCrypto, models.OperatorAnd, []models.Condition{
		{Metric: models.MetricPrice, Comparator: models.ComparatorAbove, Value: 50000},
		{Metric: models.MetricVolume, Comparator: models.ComparatorAbove, Value: 1e9},
	}, models.RecurrenceDaily)
	alert.Notes = "watch the breakout"

	if err := s.SaveAlert(ctx, alert); err != nil {
		t.Fatalf("SaveAlert() error = %v", err)
	}

	got, err := s.GetAlert(ctx, alert.ID)
	if err != nil {
		t.Fatalf("GetAlert() error = %v", err)
	}

	if got.Symbol != "BTC" || got.Type != models.AlertTypeMulti || got.Operator != models.OperatorAnd {
		t.Errorf("roundtrip mismatch: %+v", got)
	}
	if len(got.Conditions) != 2 || got.Conditions[1].Value != 1e9 {
		t.Errorf("conditions roundtrip mismatch: %+v", got.Conditions)
	}
	if got.Notes != "watch the breakout" {
		t.Errorf("Notes = %q", got.Notes)
	}
	if got.Triggered || got.TriggeredAt != nil || got.LastChecked != nil {
		t.Errorf("fresh alert has unexpected state: %+v", got)
	}
}

func TestGetAlertNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetAlert(context.Background(), "missing")
	if !apperrors.Is(err, apperrors.ErrAlertNotFound) {
		t.Errorf("error = %v, want ErrAlertNotFound", err)
	}
}

func TestListBySymbol(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	btc := models.NewPriceAlert("BTC", models.AssetCrypto, models.ComparatorAbove, 50000, models.RecurrenceOnce)
	eth := models.NewPriceAlert("ETH", models.AssetCrypto, models.ComparatorBelow, 3000, models.RecurrenceOnce)
	for _, a := range []*models.Alert{btc, eth} {
		if err := s.SaveAlert(ctx, a); err != nil {
			t.Fatalf("SaveAlert() error = %v", err)
		}
	}

	alerts, err := s.ListBySymbol(ctx, "BTC")
	if err != nil {
		t.Fatalf("ListBySymbol() error = %v", err)
	}
	if len(alerts) != 1 || alerts[0].ID != btc.ID {
		t.Errorf("ListBySymbol(BTC) = %+v", alerts)
	}
}

func TestTriggerAlert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alert := models.NewPriceAlert("BTC", models.AssetCrypto, models.ComparatorAbove, 50000, models.RecurrenceOnce)
	if err := s.SaveAlert(ctx, alert); err != nil {
		t.Fatalf("SaveAlert() error = %v", err)
	}

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if err := s.TriggerAlert(ctx, alert.ID, at); err != nil {
		t.Fatalf("TriggerAlert() error = %v", err)
	}

	got, err := s.GetAlert(ctx, alert.ID)
	if err != nil {
		t.Fatalf("GetAlert() error = %v", err)
	}
	// triggered and triggeredAt commit together
	if !got.Triggered || got.TriggeredAt == nil || !got.TriggeredAt.Equal(at) {
		t.Errorf("triggered state = %v at %v, want true at %v", got.Triggered, got.TriggeredAt, at)
	}

	// replaying the transition is a guarded no-op
	err = s.TriggerAlert(ctx, alert.ID, at.Add(time.Hour))
	if !apperrors.Is(err, apperrors.ErrAlertTriggered) {
		t.Errorf("second trigger error = %v, want ErrAlertTriggered", err)
	}
	got, _ = s.GetAlert(ctx, alert.ID)
	if !got.TriggeredAt.Equal(at) {
		t.Errorf("TriggeredAt moved to %v after replay, want %v", got.TriggeredAt, at)
	}

	if err := s.TriggerAlert(ctx, "missing", at); !apperrors.Is(err, apperrors.ErrAlertNotFound) {
		t.Errorf("trigger missing error = %v, want ErrAlertNotFound", err)
	}
}

func TestListActiveExcludesTriggered(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	active := models.NewPriceAlert("BTC", models.AssetCrypto, models.ComparatorAbove, 50000, models.RecurrenceOnce)
	fired := models.NewPriceAlert("ETH", models.AssetCrypto, models.ComparatorAbove, 3000, models.RecurrenceOnce)
	for _, a := range []*models.Alert{active, fired} {
		if err := s.SaveAlert(ctx, a); err != nil {
			t.Fatalf("SaveAlert() error = %v", err)
		}
	}
	if err := s.TriggerAlert(ctx, fired.ID, time.Now()); err != nil {
		t.Fatalf("TriggerAlert() error = %v", err)
	}

	alerts, err := s.ListActive(ctx)
	if err != nil {
		t.Fatalf("ListActive() error = %v", err)
	}
	if len(alerts) != 1 || alerts[0].ID != active.ID {
		t.Errorf("ListActive() = %+v, want only the untriggered alert", alerts)
	}
}

func TestListDueAppliesRecurrencePolicy(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	once := models.NewPriceAlert("BTC", models.AssetCrypto, models.ComparatorAbove, 50000, models.RecurrenceOnce)

	dailyFresh := models.NewPriceAlert("ETH", models.AssetCrypto, models.ComparatorAbove, 3000, models.RecurrenceDaily)
	checked := now.Add(-time.Hour)
	dailyFresh.LastChecked = &checked

	dailyStale := models.NewPriceAlert("SOL", models.AssetCrypto, models.ComparatorAbove, 150, models.RecurrenceDaily)
	staleCheck := now.Add(-25 * time.Hour)
	dailyStale.LastChecked = &staleCheck

	for _, a := range []*models.Alert{once, dailyFresh, dailyStale} {
		if err := s.SaveAlert(ctx, a); err != nil {
			t.Fatalf("SaveAlert() error = %v", err)
		}
	}

	due, err := s.ListDue(ctx, now)
	if err != nil {
		t.Fatalf("ListDue() error = %v", err)
	}

	ids := make(map[string]bool, len(due))
	for _, a := range due {
		ids[a.ID] = true
	}
	if !ids[once.ID] {
		t.Error("once alert must be due every tick")
	}
	if ids[dailyFresh.ID] {
		t.Error("daily alert checked an hour ago must not be due")
	}
	if !ids[dailyStale.ID] {
		t.Error("daily alert checked 25h ago must be due")
	}
}

func TestUpdateLastChecked(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alert := models.NewPriceAlert("BTC", models.AssetCrypto, models.ComparatorAbove, 50000, models.RecurrenceDaily)
	if err := s.SaveAlert(ctx, alert); err != nil {
		t.Fatalf("SaveAlert() error = %v", err)
	}

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if err := s.UpdateLastChecked(ctx, alert.ID, at); err != nil {
		t.Fatalf("UpdateLastChecked() error = %v", err)
	}

	got, _ := s.GetAlert(ctx, alert.ID)
	if got.LastChecked == nil || !got.LastChecked.Equal(at) {
		t.Errorf("LastChecked = %v, want %v", got.LastChecked, at)
	}
}

func TestResetAlert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alert := models.NewPriceAlert("BTC", models.AssetCrypto, models.ComparatorAbove, 50000, models.RecurrenceOnce)
	if err := s.SaveAlert(ctx, alert); err != nil {
		t.Fatalf("SaveAlert() error = %v", err)
	}
	if err := s.TriggerAlert(ctx, alert.ID, time.Now()); err != nil {
		t.Fatalf("TriggerAlert() error = %v", err)
	}

	if err := s.ResetAlert(ctx, alert.ID); err != nil {
		t.Fatalf("ResetAlert() error = %v", err)
	}

	got, _ := s.GetAlert(ctx, alert.ID)
	if got.Triggered || got.TriggeredAt != nil || got.LastChecked != nil {
		t.Errorf("reset alert state = %+v, want fully re-armed", got)
	}
}

func TestDeleteAlert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alert := models.NewPriceAlert("BTC", models.AssetCrypto, models.ComparatorAbove, 50000, models.RecurrenceOnce)
	if err := s.SaveAlert(ctx, alert); err != nil {
		t.Fatalf("SaveAlert() error = %v", err)
	}

	if err := s.DeleteAlert(ctx, alert.ID); err != nil {
		t.Fatalf("DeleteAlert() error = %v", err)
	}
	if _, err := s.GetAlert(ctx, alert.ID); !apperrors.Is(err, apperrors.ErrAlertNotFound) {
		t.Errorf("GetAlert() after delete = %v, want ErrAlertNotFound", err)
	}
	if err := s.DeleteAlert(ctx, alert.ID); !apperrors.Is(err, apperrors.ErrAlertNotFound) {
		t.Errorf("double delete error = %v, want ErrAlertNotFound", err)
	}
}

func TestWatchlist(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entry := models.WatchEntry{Symbol: "BTC", AssetType: models.AssetCrypto}
	if err := s.AddWatch(ctx, entry); err != nil {
		t.Fatalf("AddWatch() error = %v", err)
	}

	if err := s.SetWatchTarget(ctx, "BTC", 50000); err != nil {
		t.Fatalf("SetWatchTarget() error = %v", err)
	}
	if err := s.SetWatchTarget(ctx, "DOGE", 1); !apperrors.Is(err, apperrors.ErrSymbolNotFound) {
		t.Errorf("SetWatchTarget(unwatched) = %v, want ErrSymbolNotFound", err)
	}

	entries, err := s.ListWatches(ctx)
	if err != nil {
		t.Fatalf("ListWatches() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Symbol != "BTC" || entries[0].TargetPrice != 50000 {
		t.Errorf("ListWatches() = %+v", entries)
	}

	if err := s.RemoveWatch(ctx, "BTC"); err != nil {
		t.Fatalf("RemoveWatch() error = %v", err)
	}
	if err := s.RemoveWatch(ctx, "BTC"); !apperrors.Is(err, apperrors.ErrSymbolNotFound) {
		t.Errorf("double remove error = %v, want ErrSymbolNotFound", err)
	}
}
