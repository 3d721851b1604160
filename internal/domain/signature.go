package domain

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"math"
)

// Signature computes a stable identity hash for a pattern record from its
// symbol, timeframe, kind, and a price rounded to a coarse band so that
// near-identical detections across adjacent ticks collapse to the same id.
// Used by FVGs, order blocks, and alerts alike.
func Signature(symbol string, timeframe Timeframe, kind string, price float64) string {
	band := math.Round(price*10000) / 10000
	raw := fmt.Sprintf("%s|%s|%s|%.4f", symbol, timeframe, kind, band)
	sum := sha1.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])[:16]
}

// ScorePercent converts an internal 0-1 confidence/quality score to a
// 0-100 presentation value. All internal scoring stays in [0,1]; this is
// the single conversion point at the presentation edge.
func ScorePercent(score float64) float64 {
	return math.Round(score*10000) / 100
}
