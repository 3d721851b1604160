// Package health implements the composite health monitor from spec.md §4.9:
// latency, market-data freshness, and heartbeat signals combined into a
// single TTL-cached is_system_healthy() boolean plus a structured reasons
// map for degraded/failing signals.
package health

import (
	"fmt"
	"sync"
	"time"

	"github.com/sawpanic/ictengine/internal/cache"
)

// Config holds the thresholds for each composite signal. A *_warn variant
// below its corresponding fail threshold marks the signal degraded-but-
// healthy (reported under a *_warn reasons key, never flipping the overall
// health flag).
type Config struct {
	LatencyWarnMs         float64
	LatencyFailMs         float64
	MarketDataWarnAgeSec  float64
	MarketDataFailAgeSec  float64
	HeartbeatWarnAgeSec   float64
	HeartbeatFailAgeSec   float64
	CacheTTL              time.Duration
}

// DefaultConfig mirrors spec.md §4.9's 1-second default cache TTL and
// reasonable defaults for the remaining thresholds.
func DefaultConfig() Config {
	return Config{
		LatencyWarnMs:        300,
		LatencyFailMs:        1000,
		MarketDataWarnAgeSec: 30,
		MarketDataFailAgeSec: 120,
		HeartbeatWarnAgeSec:  30,
		HeartbeatFailAgeSec:  90,
		CacheTTL:             time.Second,
	}
}

// AliveCheck is an optional user-supplied liveness callable (e.g. pinging
// the broker adapter). A nil AliveCheck is treated as always-alive.
type AliveCheck func() bool

// Monitor combines the three signals behind a single cached health flag.
type Monitor struct {
	cfg Config

	mu              sync.Mutex
	lastLatencyMs   float64
	haveLatency     bool
	lastTickAt      time.Time
	haveTick        bool
	lastHeartbeatAt time.Time
	haveHeartbeat   bool
	aliveCheck      AliveCheck

	cached *cache.TTLBool
}

// New constructs a Monitor. aliveCheck may be nil.
func New(cfg Config, aliveCheck AliveCheck) *Monitor {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Second
	}
	return &Monitor{cfg: cfg, aliveCheck: aliveCheck, cached: cache.NewTTLBool(cfg.CacheTTL)}
}

// ReportLatency records the latency monitor's latest reading, in
// milliseconds.
func (m *Monitor) ReportLatency(ms float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastLatencyMs = ms
	m.haveLatency = true
}

// ReportTick records the timestamp of the last observed market-data tick.
func (m *Monitor) ReportTick(at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastTickAt = at
	m.haveTick = true
}

// ReportHeartbeat records the timestamp of the last received external
// heartbeat.
func (m *Monitor) ReportHeartbeat(at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastHeartbeatAt = at
	m.haveHeartbeat = true
}

// IsHealthy returns the composite health flag, recomputing at most once per
// CacheTTL.
func (m *Monitor) IsHealthy(now time.Time) bool {
	return m.cached.GetOrCompute(func() bool {
		return len(m.failingReasons(now)) == 0
	})
}

// failingReasons computes the hard-fail reasons only (ignoring *_warn
// degradations), used by IsHealthy's cached computation.
func (m *Monitor) failingReasons(now time.Time) map[string]string {
	reasons := make(map[string]string)

	m.mu.Lock()
	lastLatencyMs, haveLatency := m.lastLatencyMs, m.haveLatency
	lastTickAt, haveTick := m.lastTickAt, m.haveTick
	lastHeartbeatAt, haveHeartbeat := m.lastHeartbeatAt, m.haveHeartbeat
	aliveCheck := m.aliveCheck
	m.mu.Unlock()

	if haveLatency && lastLatencyMs > m.cfg.LatencyFailMs {
		reasons["latency"] = fmt.Sprintf("high:%.0fms", lastLatencyMs)
	}
	if haveTick {
		age := now.Sub(lastTickAt).Seconds()
		if age > m.cfg.MarketDataFailAgeSec {
			reasons["market_data"] = fmt.Sprintf("stale:%.0fs", age)
		}
	}
	if haveHeartbeat {
		age := now.Sub(lastHeartbeatAt).Seconds()
		if age > m.cfg.HeartbeatFailAgeSec {
			reasons["heartbeat"] = fmt.Sprintf("stale:%.0fs", age)
		}
	}
	if aliveCheck != nil && !aliveCheck() {
		reasons["heartbeat_alive_check"] = "failed"
	}
	return reasons
}

// Reasons returns the full structured signal map: hard failures plus
// *_warn entries for degraded-but-healthy signals. This bypasses the TTL
// cache since callers invoking Reasons() want the current detail, not the
// cached boolean.
func (m *Monitor) Reasons(now time.Time) map[string]string {
	reasons := m.failingReasons(now)

	m.mu.Lock()
	lastLatencyMs, haveLatency := m.lastLatencyMs, m.haveLatency
	lastTickAt, haveTick := m.lastTickAt, m.haveTick
	lastHeartbeatAt, haveHeartbeat := m.lastHeartbeatAt, m.haveHeartbeat
	m.mu.Unlock()

	if haveLatency {
		if _, failing := reasons["latency"]; !failing && lastLatencyMs > m.cfg.LatencyWarnMs {
			reasons["latency_warn"] = fmt.Sprintf("elevated:%.0fms", lastLatencyMs)
		}
	}
	if haveTick {
		age := now.Sub(lastTickAt).Seconds()
		if _, failing := reasons["market_data"]; !failing && age > m.cfg.MarketDataWarnAgeSec {
			reasons["market_data_warn"] = fmt.Sprintf("aging:%.0fs", age)
		}
	}
	if haveHeartbeat {
		age := now.Sub(lastHeartbeatAt).Seconds()
		if _, failing := reasons["heartbeat"]; !failing && age > m.cfg.HeartbeatWarnAgeSec {
			reasons["heartbeat_warn"] = fmt.Sprintf("aging:%.0fs", age)
		}
	}
	return reasons
}
