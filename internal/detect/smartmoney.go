package detect

import (
	"time"

	"github.com/sawpanic/ictengine/internal/domain"
)

// StructureRead is the market-structure classification derived from the
// two most recent confirmed swing points.
type StructureRead string

const (
	StructureBullish    StructureRead = "BULLISH"
	StructureBearish    StructureRead = "BEARISH"
	StructureRanging    StructureRead = "RANGING"
	StructureTransition StructureRead = "TRANSITION"
)

// ClassifyStructure reads the latest vs. prior swing high/low to tag the
// market structure, per spec.md §4.3.3.
func ClassifyStructure(priorHigh, latestHigh, priorLow, latestLow float64) StructureRead {
	switch {
	case latestHigh > priorHigh && latestLow > priorLow:
		return StructureBullish
	case latestHigh < priorHigh && latestLow < priorLow:
		return StructureBearish
	default:
		return StructureRanging
	}
}

// SmartMoneyInputs carries per-pass inputs for smart money detection.
type SmartMoneyInputs struct {
	Structure          StructureRead
	LastStructureHigh  float64
	LastStructureLow   float64
	OrderBlockLevels   []float64 // price levels of nearby order blocks
	VolumeAboveAverage bool
	Session            domain.Session
	HealthScore        float64
	Now                time.Time
}

const bosBaseConfidence = 85.0
const chochBaseConfidence = 55.0

// DetectBOS checks a breakout candle against the prior structure for a
// break of structure, per spec.md §4.3.3 and scenario S6.
func DetectBOS(candle domain.Candle, symbol string, tf domain.Timeframe, in SmartMoneyInputs) *domain.SmartMoneySignal {
	var sig *domain.SmartMoneySignal

	if in.Structure == StructureBearish && candle.High > in.LastStructureHigh {
		entry := in.LastStructureHigh + 0.15*(candle.High-in.LastStructureHigh)
		stop := in.LastStructureHigh - 20/domain.PipFactor(symbol)
		sig = domain.NewSmartMoneySignal(symbol, tf, domain.SignalBOS, domain.Bullish, in.LastStructureHigh, in.Now)
		sig.Entry = entry
		sig.Stop = stop
		sig.Targets = []float64{entry + 2.5*(entry-stop)}
		sig.Confidence = bosBaseConfidence
	} else if in.Structure == StructureBullish && candle.Low < in.LastStructureLow {
		entry := in.LastStructureLow - 0.15*(in.LastStructureLow-candle.Low)
		stop := in.LastStructureLow + 20/domain.PipFactor(symbol)
		sig = domain.NewSmartMoneySignal(symbol, tf, domain.SignalBOS, domain.Bearish, in.LastStructureLow, in.Now)
		sig.Entry = entry
		sig.Stop = stop
		sig.Targets = []float64{entry - 2.5*(stop-entry)}
		sig.Confidence = bosBaseConfidence
	}

	if sig != nil {
		applyConfluences(sig, in)
		sig.ApplySilverBullet(in.Now)
	}
	return sig
}

// DetectCHoCH examines the last 10 candles' close-to-close momentum for a
// sign flip whose magnitude is significant relative to recent momentum,
// per spec.md §4.3.3.
func DetectCHoCH(candles []domain.Candle, symbol string, tf domain.Timeframe, in SmartMoneyInputs) *domain.SmartMoneySignal {
	window := candles
	if len(window) > 11 {
		window = window[len(window)-11:]
	}
	if len(window) < 5 {
		return nil
	}

	diffs := make([]float64, 0, len(window)-1)
	for i := 1; i < len(window); i++ {
		diffs = append(diffs, window[i].Close-window[i-1].Close)
	}

	n := len(diffs)
	current := diffs[n-1]
	priorCount := 3
	if n-1 < priorCount {
		priorCount = n - 1
	}
	if priorCount == 0 {
		return nil
	}

	var priorSum float64
	for _, d := range diffs[n-1-priorCount : n-1] {
		priorSum += d
	}
	priorMean := priorSum / float64(priorCount)

	signFlipped := (current > 0 && priorMean < 0) || (current < 0 && priorMean > 0)
	if !signFlipped {
		return nil
	}
	if absF(current) < 0.5*absF(priorMean) {
		return nil
	}

	dir := domain.Bullish
	if current < 0 {
		dir = domain.Bearish
	}

	sig := domain.NewSmartMoneySignal(symbol, tf, domain.SignalCHoCH, dir, window[len(window)-1].Close, in.Now)
	sig.Confidence = chochBaseConfidence
	sig.Strength = clamp(absF(current)/absF(priorMean), 0, 2)
	applyConfluences(sig, in)
	sig.ApplySilverBullet(in.Now)
	return sig
}

// DetectManipulation flags a candle whose range dwarfs both neighbors while
// its close sits in the opposite 30% of its own body — a fake breakout.
func DetectManipulation(prev, cur, next domain.Candle, symbol string, tf domain.Timeframe, in SmartMoneyInputs) *domain.SmartMoneySignal {
	curRange := cur.High - cur.Low
	if curRange <= 0 {
		return nil
	}
	prevRange := prev.High - prev.Low
	nextRange := next.High - next.Low
	if !(curRange >= 1.5*prevRange && curRange >= 1.5*nextRange) {
		return nil
	}

	closePos := (cur.Close - cur.Low) / curRange
	var dir domain.Direction
	switch {
	case cur.Close > cur.Open && closePos <= 0.3:
		dir = domain.Bearish
	case cur.Close < cur.Open && closePos >= 0.7:
		dir = domain.Bullish
	default:
		return nil
	}

	sig := domain.NewSmartMoneySignal(symbol, tf, domain.SignalManipulation, dir, cur.Close, in.Now)
	sig.Confidence = 60
	sig.Strength = clamp(curRange/maxF(prevRange, 0.0001), 0, 3)
	applyConfluences(sig, in)
	sig.ApplySilverBullet(in.Now)
	return sig
}

// DetectInstitutionalFlow flags divergence between short-window price
// momentum and volume momentum.
func DetectInstitutionalFlow(candles []domain.Candle, symbol string, tf domain.Timeframe, in SmartMoneyInputs) *domain.SmartMoneySignal {
	if len(candles) < 4 {
		return nil
	}
	window := candles[len(candles)-4:]

	priceMomentum := window[3].Close - window[0].Close
	volMomentum := float64(window[3].Volume) - float64(window[0].Volume)

	priceDir := sign(priceMomentum)
	volDir := sign(volMomentum)
	if priceDir == 0 || volDir == 0 || priceDir == volDir {
		return nil
	}

	dir := domain.Bearish
	if priceDir > 0 {
		dir = domain.Bullish
	}

	sig := domain.NewSmartMoneySignal(symbol, tf, domain.SignalInstitutionalFlow, dir, window[3].Close, in.Now)
	sig.Confidence = 55
	sig.Strength = clamp(absF(priceMomentum)*domain.PipFactor(symbol)/20, 0, 2)
	applyConfluences(sig, in)
	sig.ApplySilverBullet(in.Now)
	return sig
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func applyConfluences(sig *domain.SmartMoneySignal, in SmartMoneyInputs) {
	for _, level := range in.OrderBlockLevels {
		if absF(sig.PriceLevel-level)*domain.PipFactor(sig.Symbol) <= 10 {
			sig.Confluences.OrderBlock = true
			sig.Confidence = minF(98, sig.Confidence+8)
			break
		}
	}
	if in.VolumeAboveAverage {
		sig.Confluences.Volume = true
		sig.Confidence = minF(98, sig.Confidence+5)
	}
	if in.Session == domain.SessionLondon || in.Session == domain.SessionNewYork {
		sig.Confluences.SessionTime = true
		sig.Confidence = minF(98, sig.Confidence+3)
	}

	sig.Structure = domain.MarketStructureSnapshot{
		LastSwingHigh: in.LastStructureHigh,
		LastSwingLow:  in.LastStructureLow,
	}

	riskReward := 0.0
	if len(sig.Targets) > 0 && sig.Entry != sig.Stop {
		riskReward = absF(sig.Targets[0]-sig.Entry) / absF(sig.Entry-sig.Stop)
	}
	sig.QualityScore = 0.4*sig.Confidence + 0.3*sig.Strength + 0.2*(in.HealthScore*100) + 0.1*(riskReward*10)
}

// TopN keeps the top n signals sorted descending by quality_score, per
// spec.md §4.3.3's "keep top 3" rule.
func TopN(signals []*domain.SmartMoneySignal, n int) []*domain.SmartMoneySignal {
	sorted := make([]*domain.SmartMoneySignal, len(signals))
	copy(sorted, signals)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].QualityScore > sorted[j-1].QualityScore; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	if n > len(sorted) {
		n = len(sorted)
	}
	return sorted[:n]
}
