package risk

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/sawpanic/ictengine/internal/domain"
)

func TestPositionSizer_ComputesAndCaps(t *testing.T) {
	sizer := PositionSizer{RiskPct: 0.01, MaxSymbolVolume: 1}
	volume, ok := sizer.Size(10000, 20, 10)
	if !ok {
		t.Fatal("expected valid sizing")
	}
	want := (10000 * 0.01) / (20 * 10)
	if volume != want {
		t.Fatalf("expected %f, got %f", want, volume)
	}

	capped, ok := sizer.Size(1000000, 1, 1)
	if !ok {
		t.Fatal("expected valid sizing")
	}
	if capped != sizer.MaxSymbolVolume {
		t.Fatalf("expected cap at %f, got %f", sizer.MaxSymbolVolume, capped)
	}
}

func TestPositionSizer_InvalidInputsLeaveIntentUnchanged(t *testing.T) {
	sizer := PositionSizer{RiskPct: 0.01, MaxSymbolVolume: 1}
	intent := domain.ExecutionIntent{Symbol: "EURUSD", Action: domain.ActionBuy, Volume: 0.1}
	result := sizer.ApplyTo(intent, 10000, 0, 10)
	if result.Volume != 0.1 {
		t.Fatalf("expected volume unchanged on invalid sizing inputs, got %f", result.Volume)
	}
}

func TestExposureTracker_MatchesSignedSumOfFills(t *testing.T) {
	tracker := NewExposureTracker(filepath.Join(t.TempDir(), "exposure.json"))
	tracker.ApplyExecution("EURUSD", 0.1, domain.ActionBuy)
	tracker.ApplyExecution("EURUSD", 0.03, domain.ActionSell)
	tracker.ApplyExecution("GBPUSD", 0.2, domain.ActionBuy)

	if got := tracker.Exposure("EURUSD"); got < 0.069 || got > 0.071 {
		t.Fatalf("expected EURUSD exposure ~0.07, got %f", got)
	}
	snap := tracker.Snapshot()
	if snap["GBPUSD"] != 0.2 {
		t.Fatalf("expected GBPUSD exposure 0.2, got %f", snap["GBPUSD"])
	}
}

func TestComplianceChecker_Violations(t *testing.T) {
	cfg := ComplianceConfig{
		Blacklist:          map[string]bool{"XXXYYY": true},
		RestrictedHoursUTC: map[int]bool{22: true},
		MaxSpreadPoints:    3,
		LossCooldownSec:    60,
	}
	checker := NewComplianceChecker(cfg)
	now := time.Date(2026, 1, 1, 22, 0, 0, 0, time.UTC)

	violations := checker.Check("XXXYYY", 1, now)
	if len(violations) != 2 {
		t.Fatalf("expected blacklist + restricted hour violations, got %v", violations)
	}

	clean := checker.Check("EURUSD", 1, time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC))
	if len(clean) != 0 {
		t.Fatalf("expected no violations, got %v", clean)
	}

	lossAt := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	checker.RecordLoss("EURUSD", lossAt)
	cooldown := checker.Check("EURUSD", 1, lossAt.Add(10*time.Second))
	if len(cooldown) != 1 || cooldown[0] != "loss_cooldown_active" {
		t.Fatalf("expected loss_cooldown_active, got %v", cooldown)
	}
}
