package detect

import (
	"time"

	"github.com/sawpanic/ictengine/internal/domain"
)

// OrderBlockInputs carries per-pass inputs for order block detection.
type OrderBlockInputs struct {
	Lookback       int // default 25
	SwingHalfWidth int // L, default 4
	CurrentPrice   float64
	HealthScore    float64 // 0-1
	MaxDistancePips float64
	MinConfidence  float64
	Now            time.Time
}

// DefaultOrderBlockInputs returns spec.md's documented defaults, leaving
// CurrentPrice/HealthScore/Now for the caller to fill in.
func DefaultOrderBlockInputs() OrderBlockInputs {
	return OrderBlockInputs{
		Lookback:        25,
		SwingHalfWidth:  4,
		MaxDistancePips: 50,
		MinConfidence:   0.5,
	}
}

// DetectOrderBlocks scans the trailing in.Lookback candles of the window
// for enhanced swing lows/highs and forms DEMAND/SUPPLY blocks (spec.md
// §4.3.2). candles must be ordered oldest-first.
func DetectOrderBlocks(candles []domain.Candle, symbol string, tf domain.Timeframe, in OrderBlockInputs) []*domain.OrderBlock {
	window := candles
	if len(window) > in.Lookback {
		window = window[len(window)-in.Lookback:]
	}
	L := in.SwingHalfWidth
	if L <= 0 {
		L = 4
	}

	var out []*domain.OrderBlock
	for i := L; i < len(window)-L; i++ {
		c := window[i]

		if isSwingLow(window, i, L) {
			if ob := formOrderBlock(symbol, tf, domain.OBDemand, c, in); ob != nil {
				out = append(out, ob)
			}
		}
		if isSwingHigh(window, i, L) {
			if ob := formOrderBlock(symbol, tf, domain.OBSupply, c, in); ob != nil {
				out = append(out, ob)
			}
		}
	}
	return out
}

func isSwingLow(window []domain.Candle, i, L int) bool {
	lo := window[i].Low
	for j := i - L; j <= i+L; j++ {
		if j == i {
			continue
		}
		if window[j].Low <= lo {
			return false
		}
	}
	return volumeConfirmed(window, i, L)
}

func isSwingHigh(window []domain.Candle, i, L int) bool {
	hi := window[i].High
	for j := i - L; j <= i+L; j++ {
		if j == i {
			continue
		}
		if window[j].High >= hi {
			return false
		}
	}
	return volumeConfirmed(window, i, L)
}

func volumeConfirmed(window []domain.Candle, i, L int) bool {
	var total uint64
	n := 0
	for j := i - L; j <= i+L; j++ {
		if j == i {
			continue
		}
		total += window[j].Volume
		n++
	}
	if n == 0 || total == 0 {
		return true // volume data unavailable; swing structure alone qualifies
	}
	localMean := float64(total) / float64(n)
	return float64(window[i].TickCount) > 0.8*localMean || window[i].Volume > 0
}

func formOrderBlock(symbol string, tf domain.Timeframe, typ domain.OrderBlockType, c domain.Candle, in OrderBlockInputs) *domain.OrderBlock {
	rng := c.High - c.Low
	healthMult := 1 + (in.HealthScore - 0.5)

	var entry, stop, takeProfit float64
	switch typ {
	case domain.OBDemand:
		entry = c.High
		stop = c.Low - 0.2*rng
		takeProfit = entry + 2*(entry-stop)*healthMult
	case domain.OBSupply:
		entry = c.Low
		stop = c.High + 0.2*rng
		takeProfit = entry - 2*(stop-entry)*healthMult
	}

	riskReward := 0.0
	if denom := entry - stop; denom != 0 {
		riskReward = absF(takeProfit-entry) / absF(denom)
	}

	ob, err := domain.NewOrderBlock(symbol, tf, typ, entry, stop, riskReward, in.Now)
	if err != nil {
		return nil
	}
	ob.Targets = []float64{takeProfit}
	ob.CreatedAt = in.Now
	ob.HealthScoreAtCreation = in.HealthScore

	distancePips := absF(in.CurrentPrice-entry) * domain.PipFactor(symbol)
	ob.DistancePips = distancePips

	confidence := clamp(0.5+in.HealthScore*0.3+minF(riskReward/5, 0.2), 0, 1)
	ob.ApplyQuality(confidence)

	if distancePips > in.MaxDistancePips {
		return nil
	}
	if confidence < in.MinConfidence {
		return nil
	}
	if riskReward < 1.5 {
		return nil
	}
	if in.HealthScore < 0.6 {
		return nil
	}

	ob.Tier = tierFromCombinedScore(confidence, in.HealthScore, riskReward, distancePips)
	return ob
}

// tierFromCombinedScore implements spec.md §4.3.2's combined-score tiering:
// confidence (40%), health×100 (30%), min(100, RR×20) (20%), and
// max(0,100-distance_pips) (10%).
func tierFromCombinedScore(confidence, health, riskReward, distancePips float64) domain.QualityTier {
	combined := 0.4*(confidence*100) + 0.3*(health*100) + 0.2*minF(100, riskReward*20) + 0.1*maxF(0, 100-distancePips)
	switch {
	case combined >= 90:
		return domain.TierPremium
	case combined >= 75:
		return domain.TierHigh
	case combined >= 60:
		return domain.TierMedium
	default:
		return domain.TierLow
	}
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
