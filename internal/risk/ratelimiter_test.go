package risk

import (
	"testing"
)

// TestRateLimiter_S4Enforcement mirrors spec scenario S4: global_rate=2,
// window_sec=60. Three orders submitted within 1s; the first two succeed,
// the third is denied with rate_limit_global.
func TestRateLimiter_S4Enforcement(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Enabled: true, GlobalRate: 2, PerSymbolRate: 100, WindowSec: 60})

	ok1, _ := rl.TryConsume("EURUSD")
	ok2, _ := rl.TryConsume("EURUSD")
	ok3, reason3 := rl.TryConsume("EURUSD")

	if !ok1 || !ok2 {
		t.Fatalf("expected first two orders admitted, got ok1=%v ok2=%v", ok1, ok2)
	}
	if ok3 {
		t.Fatal("expected third order denied")
	}
	if reason3 != "rate_limit_global" {
		t.Fatalf("expected rate_limit_global, got %s", reason3)
	}
}

func TestRateLimiter_DisabledAlwaysAllows(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Enabled: false, GlobalRate: 1, PerSymbolRate: 1, WindowSec: 60})
	for i := 0; i < 5; i++ {
		ok, _ := rl.TryConsume("EURUSD")
		if !ok {
			t.Fatal("disabled limiter should always allow")
		}
	}
}

func TestRateLimiter_PerSymbolIndependent(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Enabled: true, GlobalRate: 100, PerSymbolRate: 1, WindowSec: 60})

	ok1, _ := rl.TryConsume("EURUSD")
	ok2, reason2 := rl.TryConsume("EURUSD")
	ok3, _ := rl.TryConsume("GBPUSD")

	if !ok1 {
		t.Fatal("first EURUSD order should be admitted")
	}
	if ok2 {
		t.Fatal("second EURUSD order should be denied by per-symbol bucket")
	}
	if reason2 != "rate_limit_symbol" {
		t.Fatalf("expected rate_limit_symbol, got %s", reason2)
	}
	if !ok3 {
		t.Fatal("GBPUSD should be unaffected by EURUSD's per-symbol bucket")
	}
}
