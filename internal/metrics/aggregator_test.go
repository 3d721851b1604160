package metrics

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAggregator_RecordAndSnapshot(t *testing.T) {
	a := New(DefaultConfig(t.TempDir()))
	a.RecordSuccess(100, 1.5)
	a.RecordSuccess(200, -0.5)
	a.RecordFailure(900)
	a.RecordBlocked("rate_limit_global")

	snap := a.Snapshot()
	if snap.OrdersTotal != 3 || snap.OrdersOK != 2 || snap.OrdersFailed != 1 {
		t.Fatalf("unexpected counters: %+v", snap)
	}
	if snap.BlockedReasons["rate_limit_global"] != 1 {
		t.Fatalf("expected blocked reason recorded, got %+v", snap.BlockedReasons)
	}
	if snap.AvgSlippagePip != 0.5 {
		t.Fatalf("expected avg slippage 0.5, got %f", snap.AvgSlippagePip)
	}
}

func TestAggregator_PersistWritesThreeArtifacts(t *testing.T) {
	dir := t.TempDir()
	a := New(DefaultConfig(dir))
	a.RecordSuccess(50, 0)
	if err := a.Persist(); err != nil {
		t.Fatalf("persist failed: %v", err)
	}
	for _, name := range []string{"metrics_live.json", "metrics_summary.json", "metrics_cumulative.json"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("expected artifact %s to be written: %v", name, err)
		}
	}
}

func TestAggregator_CumulativeSurvivesReload(t *testing.T) {
	dir := t.TempDir()
	a1 := New(DefaultConfig(dir))
	a1.RecordSuccess(10, 0)
	a1.RecordFailure(10)
	if err := a1.Shutdown(); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}

	a2 := New(DefaultConfig(dir))
	if a2.cumulative.OrdersTotal != 2 {
		t.Fatalf("expected cumulative orders_total=2 after reload, got %d", a2.cumulative.OrdersTotal)
	}
	if a2.cumulative.Sessions != 2 {
		t.Fatalf("expected sessions incremented to 2, got %d", a2.cumulative.Sessions)
	}
}
