package memory

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/ictengine/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{MaxRecordsPerSymbol: 10, MaxAgeDays: 30, PersistPath: filepath.Join(t.TempDir(), "fvg_memory.json")})
	require.NoError(t, err)
	return s
}

func TestStore_AddThenActiveForContainsRecord(t *testing.T) {
	s := newTestStore(t)
	r := &Record{ID: "abc123", Symbol: "EURUSD", Timeframe: domain.M15, Kind: domain.PatternFVG, Status: domain.FVGUnfilled, CreatedAt: time.Now().UTC()}
	id := s.Add(r)
	assert.Equal(t, "abc123", id)

	active := s.ActiveFor("EURUSD", domain.M15)
	require.Len(t, active, 1)
	assert.Equal(t, r.ID, active[0].ID)
}

// TestStore_S2MitigationTransition mirrors spec scenario S2: a gap first
// transitions to PARTIALLY_FILLED then to FILLED, stamping filled_at once.
func TestStore_S2MitigationTransition(t *testing.T) {
	s := newTestStore(t)
	created := time.Now().UTC()
	r := &Record{ID: "fvg-1", Symbol: "EURUSD", Timeframe: domain.M15, Kind: domain.PatternFVG, Status: domain.FVGUnfilled, CreatedAt: created}
	s.Add(r)

	require.NoError(t, s.UpdateStatus("fvg-1", domain.FVGPartiallyFilled, 0.512, created.Add(time.Minute)))
	active := s.ActiveFor("EURUSD", domain.M15)
	require.Len(t, active, 1)
	assert.Equal(t, domain.FVGPartiallyFilled, active[0].Status)
	assert.NotNil(t, active[0].FilledAt)

	require.NoError(t, s.UpdateStatus("fvg-1", domain.FVGFilled, 1.0, created.Add(2*time.Minute)))
	assert.Empty(t, s.ActiveFor("EURUSD", domain.M15), "filled records should no longer be active")

	stats := s.Statistics("EURUSD", domain.M15)
	assert.Equal(t, 1, stats.Count)
	assert.Equal(t, 1, stats.Filled)
	assert.Equal(t, 1.0, stats.SuccessRate)
}

func TestStore_UpdateStatus_RejectsRegression(t *testing.T) {
	s := newTestStore(t)
	created := time.Now().UTC()
	r := &Record{ID: "fvg-2", Symbol: "EURUSD", Timeframe: domain.M15, Kind: domain.PatternFVG, Status: domain.FVGUnfilled, CreatedAt: created}
	s.Add(r)
	require.NoError(t, s.UpdateStatus("fvg-2", domain.FVGFilled, 1.0, created))
	assert.Error(t, s.UpdateStatus("fvg-2", domain.FVGUnfilled, 0, created))
}

func TestStore_CleanupIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	old := &Record{ID: "old-1", Symbol: "EURUSD", Timeframe: domain.M15, Kind: domain.PatternFVG, Status: domain.FVGUnfilled, CreatedAt: time.Now().UTC().Add(-60 * 24 * time.Hour)}
	s.Add(old)

	removed := s.Cleanup(time.Now().UTC())
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, s.Cleanup(time.Now().UTC()))
}

func TestStore_SaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fvg_memory.json")
	s, err := New(Config{MaxRecordsPerSymbol: 10, MaxAgeDays: 30, PersistPath: path})
	require.NoError(t, err)
	s.Add(&Record{ID: "r1", Symbol: "EURUSD", Timeframe: domain.M15, Kind: domain.PatternFVG, Status: domain.FVGUnfilled, CreatedAt: time.Now().UTC()})
	require.NoError(t, s.Save())

	reloaded, err := New(Config{MaxRecordsPerSymbol: 10, MaxAgeDays: 30, PersistPath: path})
	require.NoError(t, err)
	active := reloaded.ActiveFor("EURUSD", domain.M15)
	require.Len(t, active, 1)
	assert.Equal(t, "r1", active[0].ID)
}
