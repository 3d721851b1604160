// Package memory persists detected pattern records and their outcomes per
// (symbol, timeframe, pattern kind), answering historical-bias queries used
// to bias future detection confidence (spec.md §4.5).
package memory

import (
	"os"
	"sync"
	"time"

	"github.com/sawpanic/ictengine/internal/domain"
	"github.com/sawpanic/ictengine/internal/fsutil"
)

// Record is a stored pattern entry. Only the fields the memory store
// itself needs to track lifecycle are promoted here; detector-specific
// payload travels in Payload for persistence/recall.
type Record struct {
	ID         string
	Symbol     string
	Timeframe  domain.Timeframe
	Kind       domain.PatternKind
	Status     domain.FVGStatus
	FillPct    float64
	FilledAt   *time.Time
	CreatedAt  time.Time
	BreakLevel float64
	Outcome    *domain.Outcome
	Payload    map[string]any
}

var (
	errUnknownTransition = storeError("memory: unknown status transition")
)

type storeError string

func (e storeError) Error() string { return string(e) }

type table struct {
	records []*Record
	byID    map[string]*Record
	maxLen  int
}

func newTable(maxLen int) *table {
	return &table{byID: make(map[string]*Record), maxLen: maxLen}
}

func (t *table) add(r *Record) {
	t.records = append(t.records, r)
	t.byID[r.ID] = r
	if len(t.records) > t.maxLen {
		evicted := t.records[0]
		t.records = t.records[1:]
		delete(t.byID, evicted.ID)
	}
}

// snapshotSchema is the on-disk representation, matching spec.md §4.5's
// persistence contract: metadata plus per-(symbol,timeframe) record lists.
type snapshotSchema struct {
	Version         int                     `json:"version"`
	CreatedAt       time.Time               `json:"created_at"`
	LastCleanup     time.Time               `json:"last_cleanup"`
	Tables          map[string][]*Record    `json:"tables"`
	GlobalStatistics map[string]domain.Statistics `json:"global_statistics"`
}

// Store is the memory store described in spec.md §4.5. All mutation
// methods serialize per-record via the store's single mutex; cross-record
// mutations are otherwise independent in practice since the store is the
// only writer.
type Store struct {
	mu             sync.Mutex
	tables         map[string]*table
	maxRecords     int
	maxAgeDays     float64
	persistPath    string
	createdAt      time.Time
	lastCleanup    time.Time
}

// Config configures a Store instance.
type Config struct {
	MaxRecordsPerSymbol int
	MaxAgeDays          float64
	PersistPath         string
}

// New constructs an empty store, loading a prior snapshot from
// cfg.PersistPath if one exists.
func New(cfg Config) (*Store, error) {
	s := &Store{
		tables:      make(map[string]*table),
		maxRecords:  cfg.MaxRecordsPerSymbol,
		maxAgeDays:  cfg.MaxAgeDays,
		persistPath: cfg.PersistPath,
		createdAt:   time.Now().UTC(),
	}
	if cfg.PersistPath == "" {
		return s, nil
	}

	var snap snapshotSchema
	err := fsutil.ReadJSON(cfg.PersistPath, &snap)
	if err != nil {
		// Absent snapshot initializes an empty schema; any other read
		// failure quarantines the corrupt file and starts fresh rather
		// than refusing to boot, per spec.md §7's invariant-violation policy.
		if !os.IsNotExist(err) {
			_ = fsutil.QuarantineCorrupt(cfg.PersistPath, time.Now().UTC().Format("20060102T150405"))
		}
		return s, nil
	}

	s.createdAt = snap.CreatedAt
	s.lastCleanup = snap.LastCleanup
	for key, records := range snap.Tables {
		t := newTable(cfg.MaxRecordsPerSymbol)
		for _, r := range records {
			t.add(r)
		}
		s.tables[key] = t
	}
	return s, nil
}

func tableKey(symbol string, tf domain.Timeframe, kind domain.PatternKind) string {
	return symbol + "|" + string(tf) + "|" + string(kind)
}

// Add inserts a record and returns its stable id. O(1) amortized.
func (s *Store) Add(r *Record) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := tableKey(r.Symbol, r.Timeframe, r.Kind)
	t, ok := s.tables[key]
	if !ok {
		t = newTable(s.maxRecords)
		s.tables[key] = t
	}
	t.add(r)
	return r.ID
}

// UpdateStatus advances a record's status, enforcing the monotonic
// UNFILLED -> PARTIALLY_FILLED -> FILLED transition and stamping
// FilledAt on the first non-UNFILLED transition (Statistics derives fill
// durations from FilledAt and CreatedAt).
func (s *Store) UpdateStatus(id string, status domain.FVGStatus, fillPct float64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.tables {
		r, ok := t.byID[id]
		if !ok {
			continue
		}
		if fvgStatusRank(status) < fvgStatusRank(r.Status) {
			return errUnknownTransition
		}
		r.Status = status
		r.FillPct = fillPct
		if status != domain.FVGUnfilled && r.FilledAt == nil {
			stamped := at
			r.FilledAt = &stamped
		}
		return nil
	}
	return errUnknownTransition
}

func fvgStatusRank(s domain.FVGStatus) int {
	switch s {
	case domain.FVGUnfilled:
		return 0
	case domain.FVGPartiallyFilled:
		return 1
	case domain.FVGFilled:
		return 2
	default:
		return -1
	}
}

// ActiveFor returns every record not in FILLED status, optionally filtered
// by symbol and/or timeframe (empty string/zero value means "any").
func (s *Store) ActiveFor(symbol string, tf domain.Timeframe) []*Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Record
	for key, t := range s.tables {
		if !matchesKey(key, symbol, tf) {
			continue
		}
		for _, r := range t.records {
			if r.Status != domain.FVGFilled {
				out = append(out, r)
			}
		}
	}
	return out
}

func matchesKey(key, symbol string, tf domain.Timeframe) bool {
	if symbol != "" {
		want := symbol + "|"
		if len(key) < len(want) || key[:len(want)] != want {
			return false
		}
	}
	if tf != "" {
		needle := "|" + string(tf) + "|"
		if !contains(key, needle) {
			return false
		}
	}
	return true
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

// Statistics computes count/filled/partial/unfilled/avg_fill_time/success_rate
// across tables matching symbol/tf.
func (s *Store) Statistics(symbol string, tf domain.Timeframe) domain.Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats domain.Statistics
	var totalFillDuration time.Duration
	var filledWithDuration int

	for key, t := range s.tables {
		if !matchesKey(key, symbol, tf) {
			continue
		}
		for _, r := range t.records {
			stats.Count++
			switch r.Status {
			case domain.FVGFilled:
				stats.Filled++
				if r.FilledAt != nil {
					totalFillDuration += r.FilledAt.Sub(r.CreatedAt)
					filledWithDuration++
				}
			case domain.FVGPartiallyFilled:
				stats.Partial++
			default:
				stats.Unfilled++
			}
		}
	}

	if stats.Count > 0 {
		stats.SuccessRate = float64(stats.Filled) / float64(stats.Count)
	}
	if filledWithDuration > 0 {
		stats.AvgFillTime = totalFillDuration / time.Duration(filledWithDuration)
	}
	return stats
}

// HistoricalBonus computes a confidence bonus for a (symbol, timeframe,
// break_level), biasing future CHoCH confidence toward historically
// profitable levels (spec.md §4.5 and §4.3.3).
func (s *Store) HistoricalBonus(symbol string, tf domain.Timeframe, breakLevel, tolerancePips, cap float64) domain.HistoricalBonus {
	s.mu.Lock()
	defer s.mu.Unlock()

	var wins, samples int
	for key, t := range s.tables {
		if !matchesKey(key, symbol, tf) {
			continue
		}
		for _, r := range t.records {
			if r.Outcome == nil {
				continue
			}
			if absF(r.BreakLevel-breakLevel)*domain.PipFactor(symbol) > tolerancePips {
				continue
			}
			samples++
			if r.Outcome.Win {
				wins++
			}
		}
	}
	if samples == 0 {
		return domain.HistoricalBonus{}
	}
	winRate := float64(wins) / float64(samples)
	bonus := winRate * cap
	if bonus > cap {
		bonus = cap
	}
	return domain.HistoricalBonus{Bonus: bonus, Samples: samples}
}

// Cleanup drops records older than maxAgeDays. Idempotent; returns the
// number of records removed.
func (s *Store) Cleanup(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, t := range s.tables {
		kept := t.records[:0]
		for _, r := range t.records {
			ageDays := now.Sub(r.CreatedAt).Hours() / 24
			if ageDays > s.maxAgeDays {
				delete(t.byID, r.ID)
				removed++
				continue
			}
			kept = append(kept, r)
		}
		t.records = kept
	}
	s.lastCleanup = now
	return removed
}

// Save persists the store atomically to its configured path.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.persistPath == "" {
		return nil
	}

	snap := snapshotSchema{
		Version:     1,
		CreatedAt:   s.createdAt,
		LastCleanup: s.lastCleanup,
		Tables:      make(map[string][]*Record, len(s.tables)),
	}
	for key, t := range s.tables {
		snap.Tables[key] = t.records
	}
	return fsutil.WriteJSONAtomic(s.persistPath, snap)
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
