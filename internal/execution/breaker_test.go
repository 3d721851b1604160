package execution

import (
	"testing"
	"time"
)

// TestBreaker_S3Scenario mirrors spec scenario S3: threshold=3, window=60s,
// cooldown=30s. Three failures land within 10s; the breaker must open on
// the 3rd failure (not the 4th), the 4th place_order attempt within 30s
// must see circuit_open, and after 30s a 5th attempt is evaluated normally.
func TestBreaker_S3Scenario(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBreaker(BreakerConfig{FailureThreshold: 3, WindowSec: 60, CooldownSec: 30})

	b.RecordFailure(base)
	if b.State() != BreakerClosed {
		t.Fatal("expected closed after 1st failure")
	}
	b.RecordFailure(base.Add(3 * time.Second))
	if b.State() != BreakerClosed {
		t.Fatal("expected closed after 2nd failure")
	}
	b.RecordFailure(base.Add(10 * time.Second))
	if b.State() != BreakerOpen {
		t.Fatal("expected open exactly on the 3rd failure")
	}

	if err := b.Allow(base.Add(15 * time.Second)); err != ErrCircuitOpen {
		t.Fatalf("expected circuit_open within cooldown, got %v", err)
	}

	if err := b.Allow(base.Add(10*time.Second + 30*time.Second)); err != nil {
		t.Fatalf("expected breaker closed exactly at cooldown end, got %v", err)
	}
	if b.State() != BreakerClosed {
		t.Fatal("expected closed state after cooldown elapses")
	}
}

func TestBreaker_OpensOnNthNotNMinus1(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBreaker(BreakerConfig{FailureThreshold: 3, WindowSec: 60, CooldownSec: 30})

	b.RecordFailure(base)
	b.RecordFailure(base.Add(time.Second))
	if b.State() == BreakerOpen {
		t.Fatal("breaker must not open before the Nth failure")
	}
}

func TestBreaker_FailuresOutsideWindowDoNotAccumulate(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBreaker(BreakerConfig{FailureThreshold: 3, WindowSec: 60, CooldownSec: 30})

	b.RecordFailure(base)
	b.RecordFailure(base.Add(70 * time.Second))
	b.RecordFailure(base.Add(75 * time.Second))
	if b.State() != BreakerClosed {
		t.Fatal("expected closed since first failure fell out of the window")
	}
	if got := b.FailuresInWindow(); got != 2 {
		t.Fatalf("expected 2 failures in window, got %d", got)
	}
}

func TestBreaker_CooldownDoesNotCloseEarly(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBreaker(BreakerConfig{FailureThreshold: 1, WindowSec: 60, CooldownSec: 30})

	b.RecordFailure(base)
	if err := b.Allow(base.Add(29900 * time.Millisecond)); err != ErrCircuitOpen {
		t.Fatalf("expected still open 100ms before cooldown end, got %v", err)
	}
}
