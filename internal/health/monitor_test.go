package health

import (
	"testing"
	"time"
)

func TestMonitor_HealthyWithFreshSignals(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := New(DefaultConfig(), nil)
	m.ReportLatency(50)
	m.ReportTick(now)
	m.ReportHeartbeat(now)

	if !m.IsHealthy(now) {
		t.Fatalf("expected healthy, got reasons=%v", m.Reasons(now))
	}
}

func TestMonitor_S5LatencyBlock(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := DefaultConfig()
	cfg.LatencyFailMs = 500
	m := New(cfg, nil)
	m.ReportLatency(800)
	m.ReportTick(now)
	m.ReportHeartbeat(now)

	reasons := m.Reasons(now)
	if reasons["latency"] != "high:800ms" {
		t.Fatalf("expected latency high:800ms, got %v", reasons)
	}
}

func TestMonitor_StaleMarketDataFailsHealthCheck(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := New(DefaultConfig(), nil)
	m.ReportTick(now.Add(-300 * time.Second))
	m.ReportHeartbeat(now)
	m.ReportLatency(10)

	if m.IsHealthy(now) {
		t.Fatal("expected unhealthy due to stale market data")
	}
}

func TestMonitor_WarnBandDoesNotFlipHealthy(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := DefaultConfig()
	cfg.LatencyWarnMs = 100
	cfg.LatencyFailMs = 1000
	m := New(cfg, nil)
	m.ReportLatency(300)
	m.ReportTick(now)
	m.ReportHeartbeat(now)

	if !m.IsHealthy(now) {
		t.Fatal("expected healthy despite warn-band latency")
	}
	reasons := m.Reasons(now)
	if reasons["latency_warn"] == "" {
		t.Fatalf("expected latency_warn reason, got %v", reasons)
	}
	if _, hardFail := reasons["latency"]; hardFail {
		t.Fatal("warn-band signal must not also appear as a hard failure")
	}
}

func TestMonitor_AliveCheckFailureMarksUnhealthy(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := New(DefaultConfig(), func() bool { return false })
	m.ReportLatency(10)
	m.ReportTick(now)
	m.ReportHeartbeat(now)

	if m.IsHealthy(now) {
		t.Fatal("expected unhealthy when alive check fails")
	}
}
