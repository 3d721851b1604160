package detect

import (
	"testing"
	"time"

	"github.com/sawpanic/ictengine/internal/domain"
)

// TestDetectBOS_S6 mirrors spec scenario S6: a BEARISH structure with last
// structure high at 1.1000 sees a breakout candle with high=1.1008.
func TestDetectBOS_S6(t *testing.T) {
	in := SmartMoneyInputs{
		Structure:         StructureBearish,
		LastStructureHigh: 1.1000,
		LastStructureLow:  1.0950,
		Session:           domain.SessionSydney,
		HealthScore:       0.7,
		Now:               time.Now().UTC(),
	}
	candle := domain.Candle{Open: 1.0995, High: 1.1008, Low: 1.0990, Close: 1.1005}

	sig := DetectBOS(candle, "EURUSD", domain.M15, in)
	if sig == nil {
		t.Fatal("expected a BOS signal")
	}
	if sig.Type != domain.SignalBOS {
		t.Fatalf("expected BOS type, got %s", sig.Type)
	}
	if sig.Direction != domain.Bullish {
		t.Fatalf("expected bullish direction, got %s", sig.Direction)
	}
	if sig.PriceLevel != 1.1000 {
		t.Fatalf("expected price_level 1.1000, got %f", sig.PriceLevel)
	}
	if sig.Entry < 1.1000 || sig.Entry > 1.1003 {
		t.Fatalf("expected entry near 1.10013, got %f", sig.Entry)
	}
	if sig.Stop != 1.0980 {
		t.Fatalf("expected stop 1.0980, got %f", sig.Stop)
	}
	wantTP := sig.Entry + 2.5*(sig.Entry-sig.Stop)
	if sig.Targets[0] != wantTP {
		t.Fatalf("expected take_profit %f, got %f", wantTP, sig.Targets[0])
	}
	if sig.Confidence < 85 {
		t.Fatalf("expected confidence >= 85, got %f", sig.Confidence)
	}
}

func TestDetectBOS_NoSignalWhenStructureHolds(t *testing.T) {
	in := SmartMoneyInputs{
		Structure:         StructureBearish,
		LastStructureHigh: 1.1000,
		LastStructureLow:  1.0950,
		Now:               time.Now().UTC(),
	}
	candle := domain.Candle{Open: 1.0990, High: 1.0995, Low: 1.0985, Close: 1.0992}
	if sig := DetectBOS(candle, "EURUSD", domain.M15, in); sig != nil {
		t.Fatalf("expected no BOS signal when structure holds, got %+v", sig)
	}
}

func TestClassifyStructure(t *testing.T) {
	if got := ClassifyStructure(1.10, 1.11, 1.08, 1.09); got != StructureBullish {
		t.Fatalf("expected BULLISH, got %s", got)
	}
	if got := ClassifyStructure(1.11, 1.10, 1.09, 1.08); got != StructureBearish {
		t.Fatalf("expected BEARISH, got %s", got)
	}
	if got := ClassifyStructure(1.10, 1.10, 1.08, 1.08); got != StructureRanging {
		t.Fatalf("expected RANGING, got %s", got)
	}
}

func TestTopN_SortsDescendingByQualityScore(t *testing.T) {
	sigs := []*domain.SmartMoneySignal{
		{QualityScore: 50},
		{QualityScore: 90},
		{QualityScore: 70},
	}
	top := TopN(sigs, 2)
	if len(top) != 2 || top[0].QualityScore != 90 || top[1].QualityScore != 70 {
		t.Fatalf("unexpected top signals: %+v", top)
	}
}
