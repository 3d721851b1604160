// Package audit implements the append-only execution audit log from
// spec.md §4.11.
package audit

import (
	"time"

	"github.com/sawpanic/ictengine/internal/fsutil"
)

// EventType identifies the kind of execution event recorded.
type EventType string

const (
	EventOrderOK        EventType = "ORDER_OK"
	EventOrderFail      EventType = "ORDER_FAIL"
	EventOrderException EventType = "ORDER_EXCEPTION"
	EventOrderFinalFail EventType = "ORDER_FINAL_FAIL"
	EventShutdown       EventType = "SHUTDOWN"
)

// Event is one line of the audit log.
type Event struct {
	Timestamp     time.Time      `json:"timestamp"`
	Type          EventType      `json:"type"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	Symbol        string         `json:"symbol,omitempty"`
	Status        string         `json:"status,omitempty"`
	LatencyMs     float64        `json:"latency_ms,omitempty"`
	Extra         map[string]any `json:"extra,omitempty"`
}

// Log wraps the JSONL appender with the event vocabulary from spec.md §4.11.
// Writes never block the execution path beyond a single line append; a
// write failure is returned to the caller to log, never panicked on.
type Log struct {
	appender *fsutil.Appender
}

// New opens (or creates) the audit log at path.
func New(path string) (*Log, error) {
	app, err := fsutil.NewAppender(path)
	if err != nil {
		return nil, err
	}
	return &Log{appender: app}, nil
}

// Record appends ev, stamping its timestamp if unset.
func (l *Log) Record(ev Event) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	return l.appender.AppendJSON(ev)
}

// OrderOK records a successful order placement.
func (l *Log) OrderOK(correlationID, symbol string, latencyMs float64, extra map[string]any) error {
	return l.Record(Event{Type: EventOrderOK, CorrelationID: correlationID, Symbol: symbol, Status: "ok", LatencyMs: latencyMs, Extra: extra})
}

// OrderFail records a failed send_order attempt that may still be retried.
func (l *Log) OrderFail(correlationID, symbol, status string, latencyMs float64, extra map[string]any) error {
	return l.Record(Event{Type: EventOrderFail, CorrelationID: correlationID, Symbol: symbol, Status: status, LatencyMs: latencyMs, Extra: extra})
}

// OrderException records a send_order call that raised rather than failing
// cleanly.
func (l *Log) OrderException(correlationID, symbol, status string, extra map[string]any) error {
	return l.Record(Event{Type: EventOrderException, CorrelationID: correlationID, Symbol: symbol, Status: status, Extra: extra})
}

// OrderFinalFail records exhaustion of all retry attempts.
func (l *Log) OrderFinalFail(correlationID, symbol, status string, extra map[string]any) error {
	return l.Record(Event{Type: EventOrderFinalFail, CorrelationID: correlationID, Symbol: symbol, Status: status, Extra: extra})
}

// Shutdown records process shutdown.
func (l *Log) Shutdown(extra map[string]any) error {
	return l.Record(Event{Type: EventShutdown, Extra: extra})
}
