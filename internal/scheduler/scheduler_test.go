package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"portfolio-alerts/internal/engine"
	apperrors "portfolio-alerts/internal/errors"
	"portfolio-alerts/internal/models"
	"portfolio-alerts/internal/notify"
	"portfolio-alerts/internal/store"
)

type stubFeed struct {
	mu    sync.Mutex
	snaps map[string]models.Snapshot
	errs  map[string]error
}

func (f *stubFeed) GetSnapshot(_ context.Context, symbol string, _ models.AssetType) (models.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errs[symbol]; ok {
		return models.Snapshot{}, err
	}
	return f.snaps[symbol], nil
}

type countingNotifier struct {
	notify.NoOpNotifier

	mu       sync.Mutex
	triggers []string
}

func (n *countingNotifier) SendTrigger(_ context.Context, alert *models.Alert, _ models.Snapshot, _ time.Time) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.triggers = append(n.triggers, alert.ID)
	return nil
}

func (n *countingNotifier) sent() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.triggers...)
}

func price(v float64) models.Snapshot {
	return models.Snapshot{Price: &v}
}

func newScheduler(t *testing.T, f *stubFeed, at time.Time) (*Scheduler, store.AlertStore, *countingNotifier) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "alerts.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })

	notifier := &countingNotifier{}
	logger := zerolog.Nop()
	sink := engine.NewTriggerSink(s, notifier, logger)
	sched := New(s, f, sink, logger, time.Minute, time.Second, 4,
		WithClock(func() time.Time { return at }))
	return sched, s, notifier
}

func TestTickTriggersMatchingAlert(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f := &stubFeed{snaps: map[string]models.Snapshot{"BTC": price(51000)}}
	sched, s, notifier := newScheduler(t, f, now)

	alert := models.NewPriceAlert("BTC", models.AssetCrypto, models.ComparatorAbove, 50000, models.RecurrenceOnce)
	if err := s.SaveAlert(ctx, alert); err != nil {
		t.Fatalf("SaveAlert() error = %v", err)
	}

	sched.Tick(ctx)

	got, err := s.GetAlert(ctx, alert.ID)
	if err != nil {
		t.Fatalf("GetAlert() error = %v", err)
	}
	if !got.Triggered || got.TriggeredAt == nil || !got.TriggeredAt.Equal(now) {
		t.Errorf("alert after tick = %+v, want triggered at %v", got, now)
	}
	if sent := notifier.sent(); len(sent) != 1 || sent[0] != alert.ID {
		t.Errorf("notifications = %v, want exactly one for %s", sent, alert.ID)
	}
}

func TestTriggeredAlertNeverFiresAgain(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f := &stubFeed{snaps: map[string]models.Snapshot{"BTC": price(51000)}}
	sched, s, notifier := newScheduler(t, f, now)

	alert := models.NewPriceAlert("BTC", models.AssetCrypto, models.ComparatorAbove, 50000, models.RecurrenceDaily)
	if err := s.SaveAlert(ctx, alert); err != nil {
		t.Fatalf("SaveAlert() error = %v", err)
	}

	sched.Tick(ctx)
	sched.Tick(ctx)
	sched.Tick(ctx)

	if sent := notifier.sent(); len(sent) != 1 {
		t.Errorf("notifications = %v, want exactly one", sent)
	}
}

func TestUncheckedAlertRecordsEvaluationTime(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f := &stubFeed{snaps: map[string]models.Snapshot{
		"BTC": price(40000),
		"ETH": price(2000),
	}}
	sched, s, notifier := newScheduler(t, f, now)

	daily := models.NewPriceAlert("BTC", models.AssetCrypto, models.ComparatorAbove, 50000, models.RecurrenceDaily)
	once := models.NewPriceAlert("ETH", models.AssetCrypto, models.ComparatorAbove, 3000, models.RecurrenceOnce)
	for _, a := range []*models.Alert{daily, once} {
		// Backdate creation so recurring alerts are inside their first window.
		a.CreatedAt = now.Add(-48 * time.Hour)
		if err := s.SaveAlert(ctx, a); err != nil {
			t.Fatalf("SaveAlert() error = %v", err)
		}
	}

	sched.Tick(ctx)

	if sent := notifier.sent(); len(sent) != 0 {
		t.Fatalf("notifications = %v, want none for unsatisfied alerts", sent)
	}

	gotDaily, _ := s.GetAlert(ctx, daily.ID)
	if gotDaily.LastChecked == nil || !gotDaily.LastChecked.Equal(now) {
		t.Errorf("daily LastChecked = %v, want %v", gotDaily.LastChecked, now)
	}

	// Once alerts are re-evaluated every tick, so no check time is kept.
	gotOnce, _ := s.GetAlert(ctx, once.ID)
	if gotOnce.LastChecked != nil {
		t.Errorf("once LastChecked = %v, want nil", gotOnce.LastChecked)
	}
}

func TestFeedFailureLeavesAlertUntouched(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f := &stubFeed{errs: map[string]error{"BTC": apperrors.ErrFeedUnavailable}}
	sched, s, notifier := newScheduler(t, f, now)

	alert := models.NewPriceAlert("BTC", models.AssetCrypto, models.ComparatorAbove, 50000, models.RecurrenceDaily)
	alert.CreatedAt = now.Add(-48 * time.Hour)
	if err := s.SaveAlert(ctx, alert); err != nil {
		t.Fatalf("SaveAlert() error = %v", err)
	}

	sched.Tick(ctx)

	got, _ := s.GetAlert(ctx, alert.ID)
	if got.Triggered || got.LastChecked != nil {
		t.Errorf("alert after failed feed = %+v, want untouched so it retries", got)
	}
	if sent := notifier.sent(); len(sent) != 0 {
		t.Errorf("notifications = %v, want none", sent)
	}
}

func TestDailyAlertSkippedInsideWindow(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f := &stubFeed{snaps: map[string]models.Snapshot{"BTC": price(51000)}}
	sched, s, notifier := newScheduler(t, f, now)

	alert := models.NewPriceAlert("BTC", models.AssetCrypto, models.ComparatorAbove, 50000, models.RecurrenceDaily)
	alert.CreatedAt = now.Add(-48 * time.Hour)
	checked := now.Add(-time.Hour)
	alert.LastChecked = &checked
	if err := s.SaveAlert(ctx, alert); err != nil {
		t.Fatalf("SaveAlert() error = %v", err)
	}

	sched.Tick(ctx)

	if sent := notifier.sent(); len(sent) != 0 {
		t.Errorf("notifications = %v, want none before the window reopens", sent)
	}
}

type deadStore struct {
	store.AlertStore
}

func (deadStore) Ping(context.Context) error { return errors.New("connection refused") }

func TestRunRefusesUnreachableStore(t *testing.T) {
	sched := New(deadStore{}, &stubFeed{}, nil, zerolog.Nop(), time.Minute, time.Second, 1)

	if err := sched.Run(context.Background()); err == nil {
		t.Fatal("Run() = nil, want error when the store is unreachable")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f := &stubFeed{}
	sched, _, _ := newScheduler(t, f, now)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() after cancel = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not stop after cancel")
	}
}
