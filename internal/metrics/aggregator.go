// Package metrics aggregates per-order execution metrics and persists three
// artifacts (live, summary, cumulative) under a metrics directory, following
// the atomic write-then-rename discipline used throughout this engine.
package metrics

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/sawpanic/ictengine/internal/fsutil"
	"github.com/sawpanic/ictengine/internal/ringstat"
)

// Config controls ring sizing and history retention, per spec.md §4.8.
type Config struct {
	LatencySamplesLimit int
	HistoryLimit        int
	Dir                 string
}

// DefaultConfig mirrors spec.md §4.8's stated defaults.
func DefaultConfig(dir string) Config {
	return Config{LatencySamplesLimit: 500, HistoryLimit: 100, Dir: dir}
}

// LiveSnapshot is the current-moment metrics view, written to
// metrics_live.json by Persist.
type LiveSnapshot struct {
	Timestamp      time.Time          `json:"timestamp"`
	OrdersTotal    int64              `json:"orders_total"`
	OrdersOK       int64              `json:"orders_ok"`
	OrdersFailed   int64              `json:"orders_failed"`
	BlockedReasons map[string]int64   `json:"blocked_reasons"`
	LatencyP50Ms   float64            `json:"latency_p50_ms"`
	LatencyP75Ms   float64            `json:"latency_p75_ms"`
	LatencyP90Ms   float64            `json:"latency_p90_ms"`
	LatencyP95Ms   float64            `json:"latency_p95_ms"`
	LatencyP99Ms   float64            `json:"latency_p99_ms"`
	AvgSlippagePip float64            `json:"avg_slippage_pips"`
}

// Summary holds recent-history aggregates, written to metrics_summary.json.
type Summary struct {
	History []LiveSnapshot `json:"history"`
}

// Cumulative holds lifetime counters, surviving process restarts, written to
// metrics_cumulative.json.
type Cumulative struct {
	OrdersTotal  int64     `json:"orders_total"`
	OrdersOK     int64     `json:"orders_ok"`
	OrdersFailed int64     `json:"orders_failed"`
	Sessions     int64     `json:"sessions"`
	StartedAt    time.Time `json:"started_at"`
}

// Aggregator tracks per-order metrics in-memory and persists snapshots.
type Aggregator struct {
	cfg Config

	mu             sync.Mutex
	ordersTotal    int64
	ordersOK       int64
	ordersFailed   int64
	blockedReasons map[string]int64
	slippageSum    float64
	slippageCount  int64
	latency        *ringstat.Ring
	history        []LiveSnapshot

	cumulative Cumulative
}

// New constructs an Aggregator, loading the cumulative artifact if present
// (initializing to zeros otherwise) and incrementing its session counter.
func New(cfg Config) *Aggregator {
	if cfg.LatencySamplesLimit <= 0 {
		cfg.LatencySamplesLimit = 500
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 100
	}
	a := &Aggregator{
		cfg:            cfg,
		blockedReasons: make(map[string]int64),
		latency:        ringstat.New(cfg.LatencySamplesLimit),
	}
	var cum Cumulative
	if err := fsutil.ReadJSON(a.path("metrics_cumulative.json"), &cum); err == nil {
		a.cumulative = cum
	} else {
		a.cumulative = Cumulative{StartedAt: time.Now()}
	}
	a.cumulative.Sessions++
	return a
}

func (a *Aggregator) path(name string) string {
	return filepath.Join(a.cfg.Dir, name)
}

// RecordSuccess records a successful order's latency and signed slippage
// in pips.
func (a *Aggregator) RecordSuccess(latencyMs float64, slippagePips float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ordersTotal++
	a.ordersOK++
	a.latency.Add(latencyMs)
	a.slippageSum += slippagePips
	a.slippageCount++
	a.cumulative.OrdersTotal++
	a.cumulative.OrdersOK++
}

// RecordFailure records a failed order's latency.
func (a *Aggregator) RecordFailure(latencyMs float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ordersTotal++
	a.ordersFailed++
	a.latency.Add(latencyMs)
	a.cumulative.OrdersTotal++
	a.cumulative.OrdersFailed++
}

// RecordBlocked increments the blocked_reasons counter for reason without
// affecting orders_total (a blocked order never reaches an executor).
func (a *Aggregator) RecordBlocked(reason string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.blockedReasons[reason]++
}

// Snapshot computes a LiveSnapshot from current state.
func (a *Aggregator) Snapshot() LiveSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	ps := a.latency.Percentiles(50, 75, 90, 95, 99)
	reasons := make(map[string]int64, len(a.blockedReasons))
	for k, v := range a.blockedReasons {
		reasons[k] = v
	}
	avgSlip := 0.0
	if a.slippageCount > 0 {
		avgSlip = a.slippageSum / float64(a.slippageCount)
	}
	return LiveSnapshot{
		Timestamp:      time.Now(),
		OrdersTotal:    a.ordersTotal,
		OrdersOK:       a.ordersOK,
		OrdersFailed:   a.ordersFailed,
		BlockedReasons: reasons,
		LatencyP50Ms:   ps[50],
		LatencyP75Ms:   ps[75],
		LatencyP90Ms:   ps[90],
		LatencyP95Ms:   ps[95],
		LatencyP99Ms:   ps[99],
		AvgSlippagePip: avgSlip,
	}
}

// Persist writes all three artifacts atomically, appending the current
// snapshot to the bounded history.
func (a *Aggregator) Persist() error {
	snap := a.Snapshot()

	a.mu.Lock()
	a.history = append(a.history, snap)
	if len(a.history) > a.cfg.HistoryLimit {
		a.history = a.history[len(a.history)-a.cfg.HistoryLimit:]
	}
	historyCopy := make([]LiveSnapshot, len(a.history))
	copy(historyCopy, a.history)
	a.mu.Unlock()

	if err := fsutil.WriteJSONAtomic(a.path("metrics_live.json"), snap); err != nil {
		return err
	}
	if err := fsutil.WriteJSONAtomic(a.path("metrics_summary.json"), Summary{History: historyCopy}); err != nil {
		return err
	}
	a.mu.Lock()
	cum := a.cumulative
	a.mu.Unlock()
	return fsutil.WriteJSONAtomic(a.path("metrics_cumulative.json"), cum)
}

// Shutdown persists a final snapshot; callers invoke this once at process
// exit.
func (a *Aggregator) Shutdown() error {
	return a.Persist()
}
