package feed

import (
	"sync"
	"time"

	apperrors "portfolio-alerts/internal/errors"
)

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

// breaker suspends requests to a quote endpoint after consecutive failures.
// While open it fails fast instead of burning the tick's feed timeout on an
// endpoint that is known to be down; after the cooldown a single probe is let
// through and the endpoint must answer successThreshold times to close again.
type breaker struct {
	failThreshold    int
	successThreshold int
	cooldown         time.Duration

	mu          sync.Mutex
	state       breakerState
	failures    int
	successes   int
	lastFailure time.Time
}

func newBreaker(failThreshold, successThreshold int, cooldown time.Duration) *breaker {
	return &breaker{
		failThreshold:    failThreshold,
		successThreshold: successThreshold,
		cooldown:         cooldown,
	}
}

// allow reports whether a request may go out right now.
func (b *breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == breakerOpen {
		if time.Since(b.lastFailure) < b.cooldown {
			return apperrors.Wrap(apperrors.ErrFeedUnavailable, "quote endpoint suspended")
		}
		b.state = breakerHalfOpen
		b.successes = 0
	}
	return nil
}

// record feeds the outcome of one request back into the state machine.
// Healthy means the endpoint answered, even if the answer was "no such
// symbol"; only transport failures and server errors count against it.
func (b *breaker) record(healthy bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if healthy {
		switch b.state {
		case breakerHalfOpen:
			b.successes++
			if b.successes >= b.successThreshold {
				b.state = breakerClosed
				b.failures = 0
			}
		case breakerClosed:
			b.failures = 0
		}
		return
	}

	b.lastFailure = time.Now()
	switch b.state {
	case breakerClosed:
		b.failures++
		if b.failures >= b.failThreshold {
			b.state = breakerOpen
		}
	case breakerHalfOpen:
		b.state = breakerOpen
	}
}
