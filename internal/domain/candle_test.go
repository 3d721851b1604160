package domain

import (
	"testing"
	"time"
)

func TestCandle_Validate(t *testing.T) {
	c := Candle{Open: 1.09, High: 1.095, Low: 1.089, Close: 1.092}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected valid candle, got %v", err)
	}

	bad := Candle{Open: 1.09, High: 1.091, Low: 1.089, Close: 1.092}
	if err := bad.Validate(); err != ErrCandleInvariant {
		t.Fatalf("expected ErrCandleInvariant, got %v", err)
	}
}

func TestCandle_FoldAndSeal(t *testing.T) {
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	first := Tick{Symbol: "EURUSD", Timestamp: base, Bid: 1.0900, Ask: 1.0902}
	c := NewCandle("EURUSD", M15, first)
	if !c.BucketTime.Equal(M15.BucketStart(base)) {
		t.Fatalf("bucket start mismatch")
	}

	c.Fold(Tick{Symbol: "EURUSD", Timestamp: base.Add(time.Minute), Bid: 1.0950, Ask: 1.0952})
	c.Fold(Tick{Symbol: "EURUSD", Timestamp: base.Add(2 * time.Minute), Bid: 1.0880, Ask: 1.0882})

	if c.High < 1.0951 {
		t.Errorf("expected high to track highest mid, got %f", c.High)
	}
	if c.Low > 1.0881 {
		t.Errorf("expected low to track lowest mid, got %f", c.Low)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("folded candle should remain valid: %v", err)
	}
}

func TestCandleHistory_BoundedAndOrdered(t *testing.T) {
	h := NewCandleHistory(2)
	h.Append(Candle{Close: 1})
	h.Append(Candle{Close: 2})
	h.Append(Candle{Close: 3})

	if h.Len() != 2 {
		t.Fatalf("expected bounded length 2, got %d", h.Len())
	}
	recent := h.Recent(2)
	if recent[0].Close != 2 || recent[1].Close != 3 {
		t.Fatalf("unexpected history contents: %+v", recent)
	}
}
