package detect

import (
	"time"

	"github.com/sawpanic/ictengine/internal/domain"
)

var fvgTimeframeTier = map[domain.Timeframe]float64{
	domain.M1:  5,
	domain.M5:  9,
	domain.M15: 13,
	domain.H1:  16,
	domain.H4:  18,
	domain.D1:  20,
}

// FVGInputs carries the per-pass inputs a detection run needs beyond the
// candle window itself.
type FVGInputs struct {
	Thresholds      Thresholds
	VolumeAvailable bool
	VolumeScore     float64 // 0-1, only meaningful if VolumeAvailable
	ContextStrength float64 // 0-1, strength of surrounding structure
	Session         domain.Session
	Now             time.Time
}

// DetectFVGs scans a candle window for three-candle fair value gaps (spec.md
// §4.3.1). candles must be ordered oldest-first. Gaps smaller than
// in.Thresholds.MinGapSizePips are discarded.
func DetectFVGs(candles []domain.Candle, symbol string, tf domain.Timeframe, in FVGInputs) []*domain.FairValueGap {
	var out []*domain.FairValueGap
	pipFactor := domain.PipFactor(symbol)

	for i := 2; i < len(candles); i++ {
		cur := candles[i]
		ref := candles[i-2]

		if cur.Low > ref.High {
			gap := buildFVG(symbol, tf, domain.FVGBullish, cur.Low, ref.High, pipFactor, in)
			if gap != nil {
				out = append(out, gap)
			}
		} else if cur.High < ref.Low {
			gap := buildFVG(symbol, tf, domain.FVGBearish, ref.Low, cur.High, pipFactor, in)
			if gap != nil {
				out = append(out, gap)
			}
		}
	}
	return out
}

func buildFVG(symbol string, tf domain.Timeframe, typ domain.FVGType, high, low, pipFactor float64, in FVGInputs) *domain.FairValueGap {
	sizePips := (high - low) * pipFactor
	if sizePips < in.Thresholds.MinGapSizePips {
		return nil
	}

	gap, err := domain.NewFairValueGap(symbol, tf, typ, high, low, in.Now, in.Session)
	if err != nil {
		return nil
	}

	gap.QualityScore = fvgQualityScore(sizePips, in.VolumeAvailable, in.VolumeScore, tf, in.ContextStrength)
	gap.MitigationProbability = ComputeMitigationProbability(gap.CreatedAt, in.Now, 30, gap.QualityScore, 1.0)
	return gap
}

// fvgQualityScore composes the 0-100 score from size (<=30), volume (<=25),
// timeframe tier (<=20), and context strength (<=25), per spec.md §4.3.1.
func fvgQualityScore(sizePips float64, volumeAvailable bool, volumeScore float64, tf domain.Timeframe, contextStrength float64) float64 {
	size := clamp(sizePips*0.6, 0, 30)

	volume := 0.0
	if volumeAvailable {
		volume = clamp(volumeScore*25, 0, 25)
	}

	tfScore := fvgTimeframeTier[tf]

	context := clamp(contextStrength*25, 0, 25)

	return size + volume + tfScore + context
}

// ComputeMitigationProbability derives a 0.75-anchored mitigation estimate
// per spec.md §4.3.1, clamped to [0.1, 0.95]. Age factor decays linearly
// toward 0.5 as the gap approaches maxAgeDays; quality factor is the
// detector's own quality score normalized to [0,1].
func ComputeMitigationProbability(createdAt, now time.Time, maxAgeDays float64, qualityScore, volatilityFactor float64) float64 {
	ageDays := now.Sub(createdAt).Hours() / 24
	ageFactor := clamp(1.0-0.5*(ageDays/maxAgeDays), 0.5, 1.0)
	qualityFactor := clamp(qualityScore/100, 0, 1)

	p := 0.75 * ageFactor * qualityFactor * volatilityFactor
	return clamp(p, 0.1, 0.95)
}
