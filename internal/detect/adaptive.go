// Package detect holds the stateless pattern detectors: Fair Value Gap,
// Order Block, Smart Money structure, and Displacement. Each detector is a
// pure function of a market window, symbol/timeframe, and a memory
// snapshot, per spec.md §4.3 — deterministic, with no owned goroutines.
package detect

import (
	"time"

	"github.com/sawpanic/ictengine/internal/domain"
)

// Thresholds is the set of adaptively-modulated detector tunables computed
// fresh before each detection pass (spec.md §4.4).
type Thresholds struct {
	MinGapSizePips float64
	FillTolerancePips float64
}

// BaseThresholds are the unmodulated configured values before adaptation.
type BaseThresholds struct {
	MinGapSizePips    float64
	FillTolerancePips float64
}

// Conditions are the current market-read inputs feeding adaptive modulation.
type Conditions struct {
	Volatility      float64
	VolatilityHigh  float64 // threshold above which volatility is "high"
	MomentumBearish bool
	MomentumBullish bool
	Session         domain.Session
	KillZone        bool
	LondonNYOverlap bool
}

const (
	gapSizeFloor   = 0.8
	gapSizeCeiling = 6.0
	fillTolFloor   = 0.1
	fillTolCeiling = 1.0
)

// Modulate derives the active detector thresholds from base config and
// current market conditions, per spec.md §4.4. Order of multipliers
// matches the spec's listed precedence: volatility, momentum, kill zone,
// session, then hard floor/ceiling clamp.
func Modulate(base BaseThresholds, c Conditions) Thresholds {
	gap := base.MinGapSizePips
	tol := base.FillTolerancePips

	if c.Volatility < c.VolatilityHigh {
		gap *= 0.85
		tol *= 0.85
	} else if c.Volatility > c.VolatilityHigh {
		gap *= 1.15
		tol *= 1.15
	}

	if c.MomentumBearish {
		tol *= 0.7
	} else if c.MomentumBullish {
		tol *= 1.2
	}

	if c.KillZone {
		gap *= 0.85
	}

	switch {
	case c.Session == domain.SessionSydney || c.Session == domain.SessionTokyo:
		gap *= 0.7
	case c.LondonNYOverlap:
		gap *= 0.9
		tol *= 1.1
	}

	return Thresholds{
		MinGapSizePips:    clamp(gap, gapSizeFloor, gapSizeCeiling),
		FillTolerancePips: clamp(tol, fillTolFloor, fillTolCeiling),
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// DeriveConditions computes current Conditions from wall clock and recent
// ticks, the input adaptive modulation draws from on every detection pass.
func DeriveConditions(at time.Time, recentTicks []domain.Tick, pipFactor, trendThresholdPips, volatilityHigh float64) Conditions {
	vol := domain.RollingVolatility(recentTicks)
	trend := domain.DeriveTrend(recentTicks, pipFactor, trendThresholdPips)
	session := domain.SessionFromTime(at)
	return Conditions{
		Volatility:      vol,
		VolatilityHigh:  volatilityHigh,
		MomentumBearish: trend == domain.TrendDown,
		MomentumBullish: trend == domain.TrendUp,
		Session:         session,
		KillZone:        domain.IsKillZone(at),
		LondonNYOverlap: domain.IsLondonNewYorkOverlap(at),
	}
}
