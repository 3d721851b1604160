package risk

import (
	"sync"

	"github.com/sawpanic/ictengine/internal/domain"
	"github.com/sawpanic/ictengine/internal/fsutil"
)

// ExposureTracker keeps per-symbol net exposure — the signed sum of
// confirmed-fill volumes — persisted atomically after each mutation.
// Updates for a single symbol are serialized by the tracker's mutex;
// cross-symbol updates proceed independently in practice since the map
// itself is the only shared structure.
type ExposureTracker struct {
	mu          sync.Mutex
	bySymbol    map[string]float64
	persistPath string
}

// NewExposureTracker constructs a tracker, loading any prior snapshot from
// persistPath (ignored if empty or absent).
func NewExposureTracker(persistPath string) *ExposureTracker {
	t := &ExposureTracker{bySymbol: make(map[string]float64), persistPath: persistPath}
	if persistPath != "" {
		var snap map[string]float64
		if err := fsutil.ReadJSON(persistPath, &snap); err == nil {
			t.bySymbol = snap
		}
	}
	return t
}

// ApplyExecution updates net exposure for symbol given a confirmed fill's
// signed volume (positive for BUY, negative for SELL) and persists the
// updated snapshot atomically.
func (t *ExposureTracker) ApplyExecution(symbol string, volume float64, action domain.OrderAction) {
	signed := volume
	if action == domain.ActionSell {
		signed = -volume
	}

	t.mu.Lock()
	t.bySymbol[symbol] += signed
	snapshot := make(map[string]float64, len(t.bySymbol))
	for k, v := range t.bySymbol {
		snapshot[k] = v
	}
	t.mu.Unlock()

	if t.persistPath != "" {
		_ = fsutil.WriteJSONAtomic(t.persistPath, snapshot)
	}
}

// Snapshot returns a copy of the current per-symbol exposure map.
func (t *ExposureTracker) Snapshot() map[string]float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]float64, len(t.bySymbol))
	for k, v := range t.bySymbol {
		out[k] = v
	}
	return out
}

// Exposure returns the current net exposure for symbol.
func (t *ExposureTracker) Exposure(symbol string) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bySymbol[symbol]
}
