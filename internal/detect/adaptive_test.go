package detect

import (
	"testing"
	"time"

	"github.com/sawpanic/ictengine/internal/domain"
)

func TestModulate_ClampsToHardFloorAndCeiling(t *testing.T) {
	base := BaseThresholds{MinGapSizePips: 100, FillTolerancePips: 100}
	th := Modulate(base, Conditions{Volatility: 10, VolatilityHigh: 1})
	if th.MinGapSizePips != gapSizeCeiling {
		t.Fatalf("expected gap size clamped to ceiling %f, got %f", gapSizeCeiling, th.MinGapSizePips)
	}
	if th.FillTolerancePips != fillTolCeiling {
		t.Fatalf("expected fill tolerance clamped to ceiling %f, got %f", fillTolCeiling, th.FillTolerancePips)
	}
}

func TestModulate_KillZoneRelaxesGapSize(t *testing.T) {
	base := BaseThresholds{MinGapSizePips: 2, FillTolerancePips: 0.5}
	without := Modulate(base, Conditions{VolatilityHigh: 1, Volatility: 1})
	withKillZone := Modulate(base, Conditions{VolatilityHigh: 1, Volatility: 1, KillZone: true})
	if withKillZone.MinGapSizePips >= without.MinGapSizePips {
		t.Fatalf("expected kill zone to relax (lower) gap size threshold: without=%f with=%f", without.MinGapSizePips, withKillZone.MinGapSizePips)
	}
}

func TestDeriveConditions_SessionAndTrend(t *testing.T) {
	at := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC) // London session
	ticks := []domain.Tick{
		{Bid: 1.0900, Timestamp: at.Add(-2 * time.Second)},
		{Bid: 1.0950, Timestamp: at.Add(-1 * time.Second)},
	}
	c := DeriveConditions(at, ticks, 10000, 2, 0.01)
	if c.Session != domain.SessionLondon {
		t.Fatalf("expected LONDON session, got %s", c.Session)
	}
	if !c.MomentumBullish {
		t.Fatalf("expected bullish momentum for strong upward move")
	}
}
