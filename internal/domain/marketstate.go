package domain

import (
	"math"
	"time"
)

// Trend is the coarse directional read on a symbol.
type Trend string

const (
	TrendUp       Trend = "UP"
	TrendDown     Trend = "DOWN"
	TrendSideways Trend = "SIDEWAYS"
	TrendUnknown  Trend = "UNKNOWN"
)

// Session tags the active trading session by wall-clock UTC hour.
type Session string

const (
	SessionSydney     Session = "SYDNEY"
	SessionTokyo      Session = "TOKYO"
	SessionLondon     Session = "LONDON"
	SessionNewYork    Session = "NEW_YORK"
	SessionTransition Session = "TRANSITION"
)

// SessionFromTime classifies t (UTC) into a trading session. Boundaries
// follow the conventional FX session clock.
func SessionFromTime(t time.Time) Session {
	h := t.UTC().Hour()
	switch {
	case h >= 21 || h < 6:
		return SessionSydney
	case h >= 6 && h < 7:
		return SessionTransition
	case h >= 7 && h < 8:
		return SessionTokyo
	case h >= 8 && h < 12:
		return SessionLondon
	case h >= 12 && h < 13:
		return SessionTransition // London-NY overlap opens at 12
	case h >= 13 && h < 17:
		return SessionNewYork
	default:
		return SessionTransition
	}
}

// IsKillZone reports whether t falls inside a high-liquidity kill zone
// (London open 07:00-10:00 UTC, New York open 12:00-15:00 UTC).
func IsKillZone(t time.Time) bool {
	h := t.UTC().Hour()
	return (h >= 7 && h < 10) || (h >= 12 && h < 15)
}

// IsLondonNewYorkOverlap reports whether t is in the 12:00-13:00 UTC overlap.
func IsLondonNewYorkOverlap(t time.Time) bool {
	h := t.UTC().Hour()
	return h == 12
}

// MarketState is the pipeline's per-symbol live view. It is exclusively
// written by the pipeline loop; readers take a Snapshot copy.
type MarketState struct {
	Symbol       string
	LastTick     Tick
	HasTick      bool
	OpenCandles  map[Timeframe]*Candle
	Trend        Trend
	Volatility   float64
	SessionTag   Session
	IsActive     bool
}

// NewMarketState initializes an empty state for symbol.
func NewMarketState(symbol string) *MarketState {
	return &MarketState{
		Symbol:      symbol,
		OpenCandles: make(map[Timeframe]*Candle),
		Trend:       TrendUnknown,
	}
}

// Snapshot is a read-only, value-copy view of MarketState safe to hand to
// detectors and callbacks without holding the pipeline's lock.
type Snapshot struct {
	Symbol     string
	LastTick   Tick
	HasTick    bool
	Trend      Trend
	Volatility float64
	SessionTag Session
	IsActive   bool
}

// Snapshot produces a value copy of the current state.
func (s *MarketState) Snapshot() Snapshot {
	return Snapshot{
		Symbol:     s.Symbol,
		LastTick:   s.LastTick,
		HasTick:    s.HasTick,
		Trend:      s.Trend,
		Volatility: s.Volatility,
		SessionTag: s.SessionTag,
		IsActive:   s.IsActive,
	}
}

// RollingVolatility computes the sample standard deviation of bid prices.
func RollingVolatility(ticks []Tick) float64 {
	n := len(ticks)
	if n < 2 {
		return 0
	}
	var sum float64
	for _, t := range ticks {
		sum += t.Bid
	}
	mean := sum / float64(n)

	var variance float64
	for _, t := range ticks {
		d := t.Bid - mean
		variance += d * d
	}
	variance /= float64(n - 1)
	return math.Sqrt(variance)
}

// DeriveTrend computes sign-of-change trend over ticks using a minimum pip
// threshold to avoid noise near zero.
func DeriveTrend(ticks []Tick, pipFactor, thresholdPips float64) Trend {
	if len(ticks) < 2 {
		return TrendUnknown
	}
	first := ticks[0].Bid
	last := ticks[len(ticks)-1].Bid
	deltaPips := (last - first) * pipFactor
	switch {
	case deltaPips > thresholdPips:
		return TrendUp
	case deltaPips < -thresholdPips:
		return TrendDown
	default:
		return TrendSideways
	}
}
