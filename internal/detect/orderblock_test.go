package detect

import (
	"testing"
	"time"

	"github.com/sawpanic/ictengine/internal/domain"
)

func flatCandles(n int, base float64) []domain.Candle {
	out := make([]domain.Candle, n)
	for i := range out {
		out[i] = domain.Candle{Open: base, High: base + 0.0010, Low: base - 0.0010, Close: base, Volume: 100, TickCount: 50}
	}
	return out
}

func TestDetectOrderBlocks_FormsDemandOnSwingLow(t *testing.T) {
	candles := flatCandles(25, 1.0900)
	// Plant a strict swing low at the midpoint.
	mid := 12
	candles[mid].Low = 1.0850
	candles[mid].High = 1.0880
	candles[mid].Volume = 500
	candles[mid].TickCount = 200

	in := DefaultOrderBlockInputs()
	in.CurrentPrice = 1.0900
	in.HealthScore = 0.8
	in.Now = time.Now().UTC()
	in.MaxDistancePips = 1000
	in.MinConfidence = 0

	blocks := DetectOrderBlocks(candles, "EURUSD", domain.M15, in)
	found := false
	for _, b := range blocks {
		if b.Type == domain.OBDemand {
			found = true
			if b.Entry < b.Stop {
				t.Fatalf("demand block invariant violated: entry %f < stop %f", b.Entry, b.Stop)
			}
		}
	}
	if !found {
		t.Fatal("expected at least one demand order block from planted swing low")
	}
}

func TestTierFromCombinedScore_Thresholds(t *testing.T) {
	if tier := tierFromCombinedScore(1.0, 1.0, 10, 0); tier != domain.TierPremium {
		t.Fatalf("expected PREMIUM for maxed inputs, got %s", tier)
	}
	if tier := tierFromCombinedScore(0.1, 0.1, 0.1, 100); tier != domain.TierLow {
		t.Fatalf("expected LOW for minimal inputs, got %s", tier)
	}
}
