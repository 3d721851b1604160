package detect

import (
	"time"

	"github.com/sawpanic/ictengine/internal/domain"
)

// DisplacementInputs carries per-pass inputs for displacement detection.
type DisplacementInputs struct {
	MinDisplacementPips float64 // default 50
	MomentumThreshold   float64 // default 0.7
	HistoricalSuccessRate float64
	Now                 time.Time
}

// DefaultDisplacementInputs returns spec.md's documented defaults.
func DefaultDisplacementInputs() DisplacementInputs {
	return DisplacementInputs{MinDisplacementPips: 50, MomentumThreshold: 0.7}
}

// DetectDisplacement scans a ~16-candle sliding window for a high-momentum
// directional impulse, per spec.md §4.3.4. candles must be ordered
// oldest-first and should already be windowed to roughly 16 candles by the
// caller.
func DetectDisplacement(candles []domain.Candle, symbol string, tf domain.Timeframe, in DisplacementInputs) *domain.DisplacementSignal {
	if len(candles) < 2 {
		return nil
	}

	start := candles[0].Open
	end := candles[len(candles)-1].Close
	pips := (end - start) * domain.PipFactor(symbol)
	absPips := absF(pips)
	if absPips < in.MinDisplacementPips {
		return nil
	}

	velocity := clamp(absPips/float64(len(candles))/10, 0, 1)
	volumeScore := volumeMomentumScore(candles)
	consistency := directionalConsistency(candles)

	momentum := 0.4*velocity + 0.3*volumeScore + 0.3*consistency
	if momentum < in.MomentumThreshold {
		return nil
	}

	typ := domain.DisplacementBullish
	if pips < 0 {
		typ = domain.DisplacementBearish
	}

	sig := domain.NewDisplacementSignal(symbol, tf, typ, start, end, in.Now)
	sig.MomentumScore = momentum
	sig.InstitutionalSignature = volumeScore > 0.7 && (hasLargeCandle(candles) || hasSignificantWicks(candles))
	sig.TargetEstimation = end + targetMultiplier(absPips)*(end-start)
	sig.HistoricalSuccessRate = in.HistoricalSuccessRate
	return sig
}

func volumeMomentumScore(candles []domain.Candle) float64 {
	if len(candles) < 2 {
		return 0
	}
	first := candles[0].Volume
	last := candles[len(candles)-1].Volume
	if first == 0 {
		if last > 0 {
			return 1
		}
		return 0
	}
	ratio := float64(last) / float64(first)
	return clamp((ratio-1)/2, 0, 1)
}

func directionalConsistency(candles []domain.Candle) float64 {
	if len(candles) < 2 {
		return 0
	}
	sameDir := 0
	total := 0
	overallUp := candles[len(candles)-1].Close >= candles[0].Open
	for _, c := range candles {
		up := c.Close >= c.Open
		if up == overallUp {
			sameDir++
		}
		total++
	}
	if total == 0 {
		return 0
	}
	return float64(sameDir) / float64(total)
}

func hasLargeCandle(candles []domain.Candle) bool {
	if len(candles) == 0 {
		return false
	}
	var sum float64
	for _, c := range candles {
		sum += c.High - c.Low
	}
	mean := sum / float64(len(candles))
	for _, c := range candles {
		if (c.High - c.Low) > 2*mean {
			return true
		}
	}
	return false
}

func hasSignificantWicks(candles []domain.Candle) bool {
	for _, c := range candles {
		body := absF(c.Close - c.Open)
		rng := c.High - c.Low
		if rng <= 0 {
			continue
		}
		if (rng-body)/rng > 0.5 {
			return true
		}
	}
	return false
}

// targetMultiplier implements spec.md §4.3.4's move-size-dependent target
// multiplier.
func targetMultiplier(absPips float64) float64 {
	switch {
	case absPips > 100:
		return 2.0
	case absPips >= 75:
		return 2.5
	default:
		return 3.0
	}
}
