package execution

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by Breaker.Allow when the breaker is currently
// open and the cooldown has not yet elapsed.
var ErrCircuitOpen = errors.New("circuit_open")

// BreakerState mirrors the router's reported circuit state.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
)

func (s BreakerState) String() string {
	if s == BreakerOpen {
		return "open"
	}
	return "closed"
}

// BreakerConfig configures the sliding-window order breaker from
// spec.md §4.7: it trips when FailureThreshold failures are recorded
// within WindowSec of each other, and re-admits requests exactly
// CooldownSec after the trip.
type BreakerConfig struct {
	FailureThreshold int
	WindowSec        float64
	CooldownSec      float64
}

// Breaker is a sliding-window circuit breaker for the execution router's
// order-placement path. Unlike a consecutive-failure breaker, it opens when
// FailureThreshold failures fall within the last WindowSec of wall-clock
// time, regardless of how many successes were interleaved — this matches
// the router's "N failures within the window" semantics rather than "N
// failures in a row".
type Breaker struct {
	cfg BreakerConfig

	mu         sync.Mutex
	failures   []time.Time
	state      BreakerState
	openedAt   time.Time
}

// NewBreaker constructs a closed breaker with the given config.
func NewBreaker(cfg BreakerConfig) *Breaker {
	return &Breaker{cfg: cfg, state: BreakerClosed}
}

// Allow reports whether a request may proceed at time now. It transitions
// the breaker from open to closed exactly when now is at or after
// openedAt+CooldownSec — never before, never with extra slack.
func (b *Breaker) Allow(now time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerOpen {
		if now.Sub(b.openedAt).Seconds() >= b.cfg.CooldownSec {
			b.state = BreakerClosed
			b.failures = nil
		} else {
			return ErrCircuitOpen
		}
	}
	return nil
}

// RecordSuccess has no effect on the sliding failure window; the window
// evicts old failures purely by age, not by subsequent successes.
func (b *Breaker) RecordSuccess(now time.Time) {}

// RecordFailure appends a failure at time now and opens the breaker the
// instant FailureThreshold failures fall within the trailing WindowSec —
// i.e. on the Nth failure, not the (N-1)th.
func (b *Breaker) RecordFailure(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerOpen {
		return
	}

	cutoff := now.Add(time.Duration(-b.cfg.WindowSec * float64(time.Second)))
	kept := b.failures[:0]
	for _, t := range b.failures {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	kept = append(kept, now)
	b.failures = kept

	if b.cfg.FailureThreshold > 0 && len(b.failures) >= b.cfg.FailureThreshold {
		b.state = BreakerOpen
		b.openedAt = now
	}
}

// State returns the breaker's current state without mutating it.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// FailuresInWindow returns the count of failures currently counted toward
// the trip threshold.
func (b *Breaker) FailuresInWindow() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.failures)
}
