package feed

import (
	"testing"
	"time"
)

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	b := newBreaker(3, 1, time.Hour)

	for i := 0; i < 2; i++ {
		if err := b.allow(); err != nil {
			t.Fatalf("allow() before threshold = %v", err)
		}
		b.record(false)
	}
	b.record(false)

	if err := b.allow(); err == nil {
		t.Error("allow() = nil after threshold failures, want suspended")
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := newBreaker(3, 1, time.Hour)

	b.record(false)
	b.record(false)
	b.record(true)
	b.record(false)
	b.record(false)

	if err := b.allow(); err != nil {
		t.Errorf("allow() = %v, want nil when failures never ran consecutive", err)
	}
}

func TestBreakerProbesAfterCooldown(t *testing.T) {
	b := newBreaker(1, 2, 10 * time.Millisecond)

	b.record(false)
	if err := b.allow(); err == nil {
		t.Fatal("allow() = nil while open")
	}

	time.Sleep(20 * time.Millisecond)

	// First probe is allowed; one success is not enough to close.
	if err := b.allow(); err != nil {
		t.Fatalf("allow() after cooldown = %v", err)
	}
	b.record(true)
	if err := b.allow(); err != nil {
		t.Fatalf("allow() in half-open = %v", err)
	}
	b.record(true)

	if b.state != breakerClosed {
		t.Errorf("state = %v after successThreshold probes, want closed", b.state)
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := newBreaker(1, 2, 10 * time.Millisecond)

	b.record(false)
	time.Sleep(20 * time.Millisecond)

	if err := b.allow(); err != nil {
		t.Fatalf("allow() after cooldown = %v", err)
	}
	b.record(false)

	if err := b.allow(); err == nil {
		t.Error("allow() = nil after failed probe, want suspended again")
	}
}
