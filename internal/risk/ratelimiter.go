package risk

import (
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter enforces a global token bucket and a per-symbol token bucket,
// per spec.md §4.6. Consuming an order ticket costs exactly one token from
// each applicable bucket; either bucket being empty denies the order.
type RateLimiter struct {
	enabled bool

	mu            sync.Mutex
	global        *rate.Limiter
	perSymbol     map[string]*rate.Limiter
	globalRate    int
	perSymbolRate int
	windowSec     float64
}

// RateLimiterConfig configures a RateLimiter from spec.md §6's Rate limit
// config group.
type RateLimiterConfig struct {
	Enabled       bool
	GlobalRate    int // capacity, refilled at GlobalRate/WindowSec per second
	PerSymbolRate int
	WindowSec     float64
}

// NewRateLimiter builds a limiter whose bucket capacity is GlobalRate (and
// PerSymbolRate per symbol), refilled continuously at rate/window_sec
// tokens per second — the token-bucket equivalent of "N per window".
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	if cfg.WindowSec <= 0 {
		cfg.WindowSec = 60
	}
	globalPerSec := float64(cfg.GlobalRate) / cfg.WindowSec
	return &RateLimiter{
		enabled:       cfg.Enabled,
		global:        rate.NewLimiter(rate.Limit(globalPerSec), cfg.GlobalRate),
		perSymbol:     make(map[string]*rate.Limiter),
		globalRate:    cfg.GlobalRate,
		perSymbolRate: cfg.PerSymbolRate,
		windowSec:     cfg.WindowSec,
	}
}

func (r *RateLimiter) symbolLimiter(symbol string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.perSymbol[symbol]
	if !ok {
		perSec := float64(r.perSymbolRate) / r.windowSec
		l = rate.NewLimiter(rate.Limit(perSec), r.perSymbolRate)
		r.perSymbol[symbol] = l
	}
	return l
}

// TryConsume attempts to consume one token from both the global and the
// symbol bucket. It denies (consuming nothing) if either is empty, and
// reports which bucket caused the denial via reason.
func (r *RateLimiter) TryConsume(symbol string) (allowed bool, reason string) {
	if !r.enabled {
		return true, ""
	}

	symLimiter := r.symbolLimiter(symbol)

	globalRes := r.global.Reserve()
	if !globalRes.OK() || globalRes.Delay() > 0 {
		globalRes.Cancel()
		return false, "rate_limit_global"
	}

	symRes := symLimiter.Reserve()
	if !symRes.OK() || symRes.Delay() > 0 {
		symRes.Cancel()
		globalRes.Cancel()
		return false, "rate_limit_symbol"
	}
	return true, ""
}

// GlobalTokensAvailable reports the current global bucket fill level.
func (r *RateLimiter) GlobalTokensAvailable() float64 {
	return r.global.Tokens()
}

// SymbolTokensAvailable reports the current per-symbol bucket fill level.
func (r *RateLimiter) SymbolTokensAvailable(symbol string) float64 {
	return r.symbolLimiter(symbol).Tokens()
}
