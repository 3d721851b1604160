package detect

import (
	"testing"
	"time"

	"github.com/sawpanic/ictengine/internal/domain"
)

// TestDetectFVGs_S1BullishDetection mirrors spec scenario S1: three EURUSD
// M15 candles where the third candle's low exceeds the first candle's high.
func TestDetectFVGs_S1BullishDetection(t *testing.T) {
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	candles := []domain.Candle{
		{Open: 1.0900, High: 1.0910, Low: 1.0890, Close: 1.0905},
		{Open: 1.0915, High: 1.0950, Low: 1.0912, Close: 1.0948},
		{Open: 1.0955, High: 1.0970, Low: 1.0951, Close: 1.0965},
	}

	in := FVGInputs{
		Thresholds:      Thresholds{MinGapSizePips: 5, FillTolerancePips: 0.5},
		VolumeAvailable: false,
		ContextStrength: 0.6,
		Session:         domain.SessionLondon,
		Now:             now,
	}

	gaps := DetectFVGs(candles, "EURUSD", domain.M15, in)
	if len(gaps) != 1 {
		t.Fatalf("expected exactly one FVG, got %d", len(gaps))
	}

	gap := gaps[0]
	if gap.Type != domain.FVGBullish {
		t.Fatalf("expected bullish FVG, got %s", gap.Type)
	}
	if gap.High != 1.0951 || gap.Low != 1.0910 {
		t.Fatalf("expected bounds [1.0910, 1.0951], got [%f, %f]", gap.Low, gap.High)
	}
	if size := gap.SizePips(); size < 40.9 || size > 41.1 {
		t.Fatalf("expected size_pips ~41.0, got %f", size)
	}
	if gap.Status != domain.FVGUnfilled {
		t.Fatalf("expected UNFILLED status, got %s", gap.Status)
	}
	if gap.QualityScore <= 50 {
		t.Fatalf("expected quality_score > 50 absent volume data, got %f", gap.QualityScore)
	}
}

func TestDetectFVGs_DiscardsBelowMinSize(t *testing.T) {
	now := time.Now().UTC()
	candles := []domain.Candle{
		{Open: 1.0900, High: 1.0910, Low: 1.0890, Close: 1.0905},
		{Open: 1.0911, High: 1.0913, Low: 1.0909, Close: 1.0912},
		{Open: 1.0914, High: 1.0916, Low: 1.0911, Close: 1.0915},
	}
	in := FVGInputs{
		Thresholds: Thresholds{MinGapSizePips: 5},
		Now:        now,
		Session:    domain.SessionLondon,
	}
	gaps := DetectFVGs(candles, "EURUSD", domain.M15, in)
	if len(gaps) != 0 {
		t.Fatalf("expected gap below threshold to be discarded, got %d", len(gaps))
	}
}

func TestComputeMitigationProbability_ClampedRange(t *testing.T) {
	now := time.Now().UTC()
	p := ComputeMitigationProbability(now, now, 30, 100, 1.0)
	if p < 0.1 || p > 0.95 {
		t.Fatalf("expected probability within [0.1,0.95], got %f", p)
	}
	pOld := ComputeMitigationProbability(now.Add(-60*24*time.Hour), now, 30, 10, 1.0)
	if pOld < 0.1 {
		t.Fatalf("expected probability floor 0.1, got %f", pOld)
	}
}
