package risk

import "github.com/sawpanic/ictengine/internal/domain"

// PositionSizer computes order volume from account balance, stop distance,
// and a configured risk percentage, per spec.md §4.6. It is optional: the
// router only invokes it when configured, and only overrides an intent's
// volume when sizing is valid (stop distance and pip value both positive).
type PositionSizer struct {
	RiskPct         float64
	MaxSymbolVolume float64
}

// Size computes volume = (balance * risk_pct) / (stop_distance * pip_value),
// capped at MaxSymbolVolume. It returns ok=false when inputs can't produce a
// valid size (zero stop distance or pip value), in which case the caller
// must leave intent.Volume untouched.
func (s PositionSizer) Size(balance, stopDistancePips, pipValue float64) (volume float64, ok bool) {
	if stopDistancePips <= 0 || pipValue <= 0 {
		return 0, false
	}
	volume = (balance * s.RiskPct) / (stopDistancePips * pipValue)
	if volume > s.MaxSymbolVolume {
		volume = s.MaxSymbolVolume
	}
	return volume, true
}

// ApplyTo overrides intent.Volume in place if sizing succeeds, returning
// the (possibly unchanged) intent.
func (s PositionSizer) ApplyTo(intent domain.ExecutionIntent, balance, stopDistancePips, pipValue float64) domain.ExecutionIntent {
	if volume, ok := s.Size(balance, stopDistancePips, pipValue); ok {
		intent.Volume = volume
	}
	return intent
}
