package domain

import (
	"errors"
	"time"
)

// FVGType is the directional classification of a fair value gap.
type FVGType string

const (
	FVGBullish FVGType = "BULLISH"
	FVGBearish FVGType = "BEARISH"
)

// FVGStatus tracks a gap's fill lifecycle. Transitions are monotonic:
// UNFILLED -> PARTIALLY_FILLED -> FILLED, never backward.
type FVGStatus string

const (
	FVGUnfilled        FVGStatus = "UNFILLED"
	FVGPartiallyFilled FVGStatus = "PARTIALLY_FILLED"
	FVGFilled          FVGStatus = "FILLED"
)

var fvgStatusRank = map[FVGStatus]int{
	FVGUnfilled:        0,
	FVGPartiallyFilled: 1,
	FVGFilled:          2,
}

var ErrFVGStatusRegression = errors.New("fvg: status cannot regress")
var ErrFVGInvalidBand = errors.New("fvg: high must exceed low")

// FairValueGap is a detected imbalance between candle wicks, tracked until
// filled or aged out.
type FairValueGap struct {
	ID                   string
	Symbol               string
	Timeframe            Timeframe
	Type                 FVGType
	High                 float64
	Low                  float64
	CreatedAt            time.Time
	Status               FVGStatus
	FillPct              float64
	FilledAt             *time.Time
	FillDuration         *time.Duration
	SessionTagAtCreation Session
	Confluences          map[string]bool
	QualityScore         float64
	MitigationProbability float64
}

// SizePips returns the gap width in pips for symbol's pip convention.
func (g FairValueGap) SizePips() float64 {
	return (g.High - g.Low) * PipFactor(g.Symbol)
}

// NewFairValueGap constructs a gap and assigns its stable signature id.
func NewFairValueGap(symbol string, tf Timeframe, typ FVGType, high, low float64, at time.Time, session Session) (*FairValueGap, error) {
	if high <= low {
		return nil, ErrFVGInvalidBand
	}
	return &FairValueGap{
		ID:                   Signature(symbol, tf, "FVG:"+string(typ), (high+low)/2),
		Symbol:               symbol,
		Timeframe:            tf,
		Type:                 typ,
		High:                 high,
		Low:                  low,
		CreatedAt:            at,
		Status:               FVGUnfilled,
		SessionTagAtCreation: session,
		Confluences:          make(map[string]bool),
	}, nil
}

// ApplyFill advances fill_pct and status given the fraction of the gap
// consumed by subsequent price action. It rejects any regression below the
// gap's current status rank.
func (g *FairValueGap) ApplyFill(fillPct float64, at time.Time) error {
	if fillPct < 0 {
		fillPct = 0
	}
	if fillPct > 1 {
		fillPct = 1
	}

	newStatus := FVGUnfilled
	switch {
	case fillPct >= 1:
		newStatus = FVGFilled
	case fillPct > 0:
		newStatus = FVGPartiallyFilled
	}

	if fvgStatusRank[newStatus] < fvgStatusRank[g.Status] {
		return ErrFVGStatusRegression
	}

	g.Status = newStatus
	if fillPct > g.FillPct {
		g.FillPct = fillPct
	}

	if newStatus == FVGFilled {
		g.FillPct = 1
		if g.FilledAt == nil {
			t := at
			g.FilledAt = &t
			d := at.Sub(g.CreatedAt)
			g.FillDuration = &d
		}
	}
	return nil
}

// IsExpired reports whether the gap has aged past maxAge from createdAt.
func (g FairValueGap) IsExpired(now time.Time, maxAge time.Duration) bool {
	return now.Sub(g.CreatedAt) > maxAge
}
