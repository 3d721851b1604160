// Package alerts implements the structured alert dispatcher from
// spec.md §4.10: append-only JSON-Lines records with size-based rotation,
// guarded by a single internal lock.
package alerts

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/sawpanic/ictengine/internal/domain"
	"github.com/sawpanic/ictengine/internal/fsutil"
)

// Severity classifies an alert's urgency.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// Category classifies an alert's origin.
type Category string

const (
	CategoryRisk      Category = "RISK"
	CategoryLatency   Category = "LATENCY"
	CategoryExecution Category = "EXECUTION"
	CategorySystem    Category = "SYSTEM"
)

// DefaultMaxFileSize is the rotation threshold per spec.md §4.10.
const DefaultMaxFileSize = 512 * 1024

// Alert is the structured record emitted to the JSONL file.
type Alert struct {
	Timestamp time.Time      `json:"timestamp"`
	Severity  Severity       `json:"severity"`
	Category  Category       `json:"category"`
	Message   string         `json:"message"`
	Meta      map[string]any `json:"meta,omitempty"`
	Signature string         `json:"signature,omitempty"`
}

// Dispatcher appends alerts to a JSONL file, rotating by size.
type Dispatcher struct {
	mu          sync.Mutex
	appender    *fsutil.Appender
	dir         string
	maxFileSize int64
}

// New constructs a Dispatcher writing to dir/alerts.jsonl.
func New(dir string, maxFileSize int64) (*Dispatcher, error) {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	app, err := fsutil.NewAppender(filepath.Join(dir, "alerts.jsonl"))
	if err != nil {
		return nil, err
	}
	return &Dispatcher{appender: app, dir: dir, maxFileSize: maxFileSize}, nil
}

// Emit appends an alert, rotating the file first if it has grown beyond
// maxFileSize. The rotated sibling is named alerts_<UTC-timestamp>.jsonl
// per spec.md §6. A signature (shared concept with FVG signatures, see
// domain.Signature) is written with the record when the caller sets
// Alert.Signature; Emit itself does not drop or throttle repeated alerts.
func (d *Dispatcher) Emit(a Alert) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.appender.Size() >= d.maxFileSize {
		suffix := time.Now().UTC().Format("20060102T150405Z")
		if err := d.appender.RotateTo(filepath.Join(d.dir, "alerts_"+suffix+".jsonl")); err != nil {
			return err
		}
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now()
	}
	return d.appender.AppendJSON(a)
}

// Info emits an INFO-severity alert.
func (d *Dispatcher) Info(category Category, message string, meta map[string]any) error {
	return d.Emit(Alert{Severity: SeverityInfo, Category: category, Message: message, Meta: meta})
}

// Warning emits a WARNING-severity alert.
func (d *Dispatcher) Warning(category Category, message string, meta map[string]any) error {
	return d.Emit(Alert{Severity: SeverityWarning, Category: category, Message: message, Meta: meta})
}

// Critical emits a CRITICAL-severity alert.
func (d *Dispatcher) Critical(category Category, message string, meta map[string]any) error {
	return d.Emit(Alert{Severity: SeverityCritical, Category: category, Message: message, Meta: meta})
}

// Signature computes the shared dedup signature (per SPEC_FULL.md §D.b) for
// an alert keyed on symbol/timeframe/kind/price, reusing the FVG signature
// hash so alerts and FVGs share one identity concept. The Dispatcher
// records the signature and does not dedup or throttle on it.
func Signature(symbol string, timeframe domain.Timeframe, kind string, price float64) string {
	return domain.Signature(symbol, timeframe, kind, price)
}
