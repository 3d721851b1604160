package domain

import (
	"errors"
	"time"
)

// Timeframe enumerates candle aggregation buckets.
type Timeframe string

const (
	M1  Timeframe = "M1"
	M5  Timeframe = "M5"
	M15 Timeframe = "M15"
	H1  Timeframe = "H1"
	H4  Timeframe = "H4"
	D1  Timeframe = "D1"
)

// Duration returns the bucket width for a timeframe.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case M1:
		return time.Minute
	case M5:
		return 5 * time.Minute
	case M15:
		return 15 * time.Minute
	case H1:
		return time.Hour
	case H4:
		return 4 * time.Hour
	case D1:
		return 24 * time.Hour
	default:
		return time.Minute
	}
}

// BucketStart aligns t down to the start of its timeframe bucket (UTC).
func (tf Timeframe) BucketStart(t time.Time) time.Time {
	t = t.UTC()
	d := tf.Duration()
	if tf == D1 {
		y, m, day := t.Date()
		return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
	}
	return t.Truncate(d)
}

// Candle is an OHLCV bar for one symbol/timeframe bucket.
type Candle struct {
	Symbol     string
	Timeframe  Timeframe
	BucketTime time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     uint64
	TickCount  int
}

var ErrCandleInvariant = errors.New("candle: low/high must bound open and close")

// Validate enforces spec.md §3.2: low <= min(open,close) <= max(open,close) <= high.
func (c Candle) Validate() error {
	lo := c.Open
	if c.Close < lo {
		lo = c.Close
	}
	hi := c.Open
	if c.Close > hi {
		hi = c.Close
	}
	if c.Low > lo || c.High < hi {
		return ErrCandleInvariant
	}
	return nil
}

// NewCandle opens a fresh candle from the first tick in its bucket.
func NewCandle(symbol string, tf Timeframe, t Tick) *Candle {
	price := t.Mid()
	return &Candle{
		Symbol:     symbol,
		Timeframe:  tf,
		BucketTime: tf.BucketStart(t.Timestamp),
		Open:       price,
		High:       price,
		Low:        price,
		Close:      price,
		Volume:     t.Volume,
		TickCount:  1,
	}
}

// Fold incorporates a tick into the open candle (same bucket).
func (c *Candle) Fold(t Tick) {
	price := t.Mid()
	if price > c.High {
		c.High = price
	}
	if price < c.Low {
		c.Low = price
	}
	c.Close = price
	c.Volume += t.Volume
	c.TickCount++
}

// CandleHistory is a bounded, append-only sequence of sealed candles for one
// (symbol, timeframe) pair.
type CandleHistory struct {
	candles []Candle
	maxLen  int
}

// NewCandleHistory creates a history retaining at most maxLen candles.
func NewCandleHistory(maxLen int) *CandleHistory {
	if maxLen <= 0 {
		maxLen = 1
	}
	return &CandleHistory{maxLen: maxLen}
}

// Append seals a candle into the history, evicting the oldest if full.
func (h *CandleHistory) Append(c Candle) {
	h.candles = append(h.candles, c)
	if len(h.candles) > h.maxLen {
		h.candles = h.candles[len(h.candles)-h.maxLen:]
	}
}

// Recent returns a copy of the last n candles, oldest first.
func (h *CandleHistory) Recent(n int) []Candle {
	if n > len(h.candles) {
		n = len(h.candles)
	}
	out := make([]Candle, n)
	copy(out, h.candles[len(h.candles)-n:])
	return out
}

// Len returns the number of sealed candles retained.
func (h *CandleHistory) Len() int { return len(h.candles) }
