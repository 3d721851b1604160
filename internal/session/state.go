// Package session persists lightweight execution state across restarts:
// a snapshot of recently-placed orders keyed by ticket, recent final
// failures, and an append-only event log, per spec.md §6
// (session/session_snapshot.json, session/session_events.jsonl).
package session

import (
	"sync"
	"time"

	"github.com/sawpanic/ictengine/internal/audit"
	"github.com/sawpanic/ictengine/internal/fsutil"
)

// Config configures a Manager's persistence paths and flush cadence.
type Config struct {
	SnapshotPath     string
	EventsPath       string
	MaxEventsBuffer  int
	FlushInterval    time.Duration
	MaxFailedRecent  int
}

// DefaultConfig returns sane defaults rooted at dataRoot.
func DefaultConfig(dataRoot string) Config {
	return Config{
		SnapshotPath:    dataRoot + "/session/session_snapshot.json",
		EventsPath:      dataRoot + "/session/session_events.jsonl",
		MaxEventsBuffer: 500,
		FlushInterval:   15 * time.Second,
		MaxFailedRecent: 50,
	}
}

// OrderRecord is one placed order kept in the session snapshot.
type OrderRecord struct {
	Ticket   string         `json:"ticket"`
	Symbol   string         `json:"symbol"`
	Action   string         `json:"action"`
	Volume   float64        `json:"volume"`
	PlacedAt time.Time      `json:"placed_at"`
	Extra    map[string]any `json:"extra,omitempty"`
}

// FailedOrder is one final-failure record kept for recent-failure analysis.
type FailedOrder struct {
	Timestamp time.Time `json:"ts"`
	Symbol    string    `json:"symbol"`
	Action    string    `json:"action"`
	Volume    float64   `json:"volume"`
	Reason    string    `json:"reason"`
}

type sessionEvent struct {
	Timestamp time.Time `json:"ts"`
	Type      string    `json:"type"`
	Ticket    string    `json:"ticket,omitempty"`
	Symbol    string    `json:"symbol"`
	Action    string    `json:"action"`
	Volume    float64   `json:"volume"`
	Reason    string    `json:"reason,omitempty"`
}

type snapshot struct {
	Generated   time.Time              `json:"generated"`
	Orders      map[string]OrderRecord `json:"orders"`
	FailedRecent []FailedOrder         `json:"failed_recent"`
}

// Manager tracks in-flight/recent order state for warm restart, buffering
// events in memory and flushing them to disk when a record call finds the
// flush interval elapsed or the buffer at its size threshold, following
// the source's SessionStateManager.
type Manager struct {
	cfg Config
	mu  sync.Mutex

	orders      map[string]OrderRecord
	failed      []FailedOrder
	events      []sessionEvent
	lastFlush   time.Time
	appender    *fsutil.Appender
}

// New constructs a Manager, restoring any prior snapshot found at
// cfg.SnapshotPath. A missing snapshot is not an error — the manager starts
// empty.
func New(cfg Config) (*Manager, error) {
	if cfg.MaxEventsBuffer <= 0 {
		cfg.MaxEventsBuffer = 500
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 15 * time.Second
	}
	if cfg.MaxFailedRecent <= 0 {
		cfg.MaxFailedRecent = 50
	}

	appender, err := fsutil.NewAppender(cfg.EventsPath)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		cfg:       cfg,
		orders:    make(map[string]OrderRecord),
		lastFlush: time.Now(),
		appender:  appender,
	}

	var snap snapshot
	if err := fsutil.ReadJSON(cfg.SnapshotPath, &snap); err == nil {
		if snap.Orders != nil {
			m.orders = snap.Orders
		}
		m.failed = snap.FailedRecent
	}

	return m, nil
}

// RecordSuccess records a successfully placed order, keyed by ticket.
func (m *Manager) RecordSuccess(ticket, symbol, action string, volume float64, extra map[string]any) {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()

	m.orders[ticket] = OrderRecord{Ticket: ticket, Symbol: symbol, Action: action, Volume: volume, PlacedAt: now, Extra: extra}
	m.events = append(m.events, sessionEvent{Timestamp: now, Type: string(audit.EventOrderOK), Ticket: ticket, Symbol: symbol, Action: action, Volume: volume})
	m.maybeFlushLocked()
}

// RecordFailure records a final execution failure for recent-failure
// analysis; it does not track a ticket since none was produced.
func (m *Manager) RecordFailure(symbol, action string, volume float64, reason string) {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()

	m.failed = append(m.failed, FailedOrder{Timestamp: now, Symbol: symbol, Action: action, Volume: volume, Reason: reason})
	if len(m.failed) > m.cfg.MaxFailedRecent {
		m.failed = m.failed[len(m.failed)-m.cfg.MaxFailedRecent:]
	}
	m.events = append(m.events, sessionEvent{Timestamp: now, Type: string(audit.EventOrderFail), Symbol: symbol, Action: action, Volume: volume, Reason: reason})
	m.maybeFlushLocked()
}

// maybeFlushLocked appends buffered events to the JSONL log once the flush
// interval has elapsed or the buffer threshold is reached. Caller holds m.mu.
func (m *Manager) maybeFlushLocked() {
	now := time.Now()
	if now.Sub(m.lastFlush) < m.cfg.FlushInterval && len(m.events) < m.cfg.MaxEventsBuffer {
		return
	}
	m.flushLocked()
}

func (m *Manager) flushLocked() {
	m.lastFlush = time.Now()
	if len(m.events) == 0 {
		return
	}
	for _, ev := range m.events {
		_ = m.appender.AppendJSON(ev)
	}
	m.events = m.events[:0]
}

// Flush forces any buffered events to disk.
func (m *Manager) Flush() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushLocked()
}

// PersistSnapshot writes the current orders/failed-recent state atomically.
func (m *Manager) PersistSnapshot() error {
	m.mu.Lock()
	snap := snapshot{
		Generated:    time.Now(),
		Orders:       make(map[string]OrderRecord, len(m.orders)),
		FailedRecent: append([]FailedOrder(nil), m.failed...),
	}
	for k, v := range m.orders {
		snap.Orders[k] = v
	}
	m.mu.Unlock()

	return fsutil.WriteJSONAtomic(m.cfg.SnapshotPath, snap)
}

// Shutdown flushes buffered events and writes a final snapshot.
func (m *Manager) Shutdown() error {
	m.Flush()
	return m.PersistSnapshot()
}
