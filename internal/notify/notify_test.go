package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"portfolio-alerts/internal/config"
	"portfolio-alerts/internal/models"
)

func TestWebhookNotifierSend(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("invalid payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(config.WebhookConfig{Enabled: true, URL: srv.URL})
	err := n.Send(context.Background(), Notification{
		Title:     "Alert Triggered: BTC",
		Message:   "price above 50000",
		Timestamp: time.Now(),
	})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if got["title"] != "Alert Triggered: BTC" || got["message"] != "price above 50000" {
		t.Errorf("payload = %v", got)
	}
}

func TestWebhookNotifierNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(config.WebhookConfig{Enabled: true, URL: srv.URL})
	if err := n.Send(context.Background(), Notification{Title: "t"}); err == nil {
		t.Error("Send() = nil, want error on 502")
	}
}

func TestWebhookNotifierDisabledWithoutURL(t *testing.T) {
	n := NewWebhookNotifier(config.WebhookConfig{Enabled: true})
	if n.IsEnabled() {
		t.Error("IsEnabled() = true without a URL")
	}
	if err := n.Send(context.Background(), Notification{Title: "t"}); err != nil {
		t.Errorf("disabled Send() error = %v, want nil", err)
	}
}

type fakeChannel struct {
	name    string
	enabled bool
	err     error
	sent    int
}

func (f *fakeChannel) Name() string    { return f.name }
func (f *fakeChannel) IsEnabled() bool { return f.enabled }
func (f *fakeChannel) Send(context.Context, Notification) error {
	f.sent++
	return f.err
}

func TestMultiNotifierFansOut(t *testing.T) {
	a := &fakeChannel{name: "a", enabled: true}
	b := &fakeChannel{name: "b", enabled: true}
	off := &fakeChannel{name: "off"}

	mn := &MultiNotifier{}
	for _, ch := range []*fakeChannel{a, b, off} {
		mn.AddChannel(ch)
	}

	if err := mn.Send(context.Background(), Notification{Title: "t"}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if a.sent != 1 || b.sent != 1 {
		t.Errorf("sends = %d/%d, want 1/1", a.sent, b.sent)
	}
	if off.sent != 0 {
		t.Errorf("disabled channel received %d sends", off.sent)
	}
}

func TestMultiNotifierAggregatesFailures(t *testing.T) {
	ok := &fakeChannel{name: "ok", enabled: true}
	bad := &fakeChannel{name: "bad", enabled: true, err: errors.New("connection reset")}

	mn := &MultiNotifier{}
	mn.AddChannel(bad)
	mn.AddChannel(ok)

	err := mn.Send(context.Background(), Notification{Title: "t"})
	if err == nil {
		t.Fatal("Send() = nil, want aggregated error")
	}
	if !strings.Contains(err.Error(), "bad") {
		t.Errorf("error = %v, want failing channel named", err)
	}
	// one channel failing never starves the others
	if ok.sent != 1 {
		t.Errorf("healthy channel sends = %d, want 1", ok.sent)
	}
}

func TestSendTriggerPayload(t *testing.T) {
	ch := &fakeChannel{name: "rec", enabled: true}
	rec := &recordingChannel{fakeChannel: ch}

	mn := &MultiNotifier{}
	mn.AddChannel(rec)

	alert := models.NewPriceAlert("BTC", models.AssetCrypto, models.ComparatorAbove, 50000, models.RecurrenceOnce)
	p := 51000.0
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if err := mn.SendTrigger(context.Background(), alert, models.Snapshot{Price: &p}, at); err != nil {
		t.Fatalf("SendTrigger() error = %v", err)
	}

	n := rec.last
	if n.Title != "Alert Triggered: BTC" {
		t.Errorf("Title = %q", n.Title)
	}
	if !strings.Contains(n.Message, "51000") {
		t.Errorf("Message = %q, want current price included", n.Message)
	}
	if n.Data["symbol"] != "BTC" || n.Data["triggered_at"] != at.Format(time.RFC3339) {
		t.Errorf("Data = %v", n.Data)
	}
}

type recordingChannel struct {
	*fakeChannel
	last Notification
}

func (r *recordingChannel) Send(ctx context.Context, n Notification) error {
	r.last = n
	return r.fakeChannel.Send(ctx, n)
}

func TestEscapeHTML(t *testing.T) {
	if got := escapeHTML(`<b>&`); got != "&lt;b&gt;&amp;" {
		t.Errorf("escapeHTML() = %q", got)
	}
}
