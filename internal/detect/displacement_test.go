package detect

import (
	"testing"
	"time"

	"github.com/sawpanic/ictengine/internal/domain"
)

func buildImpulseCandles(startPrice float64, pips float64, n int) []domain.Candle {
	step := pips / 10000 / float64(n)
	out := make([]domain.Candle, n)
	price := startPrice
	for i := 0; i < n; i++ {
		volume := uint64(100 + i*50)
		out[i] = domain.Candle{
			Open:   price,
			Close:  price + step,
			High:   price + step + 0.0002,
			Low:    price - 0.0001,
			Volume: volume,
		}
		price += step
	}
	return out
}

func TestDetectDisplacement_DetectsLargeBullishMove(t *testing.T) {
	candles := buildImpulseCandles(1.0900, 80, 16)
	in := DefaultDisplacementInputs()
	in.Now = time.Now().UTC()
	in.MomentumThreshold = 0

	sig := DetectDisplacement(candles, "EURUSD", domain.M15, in)
	if sig == nil {
		t.Fatal("expected a displacement signal")
	}
	if sig.Type != domain.DisplacementBullish {
		t.Fatalf("expected bullish displacement, got %s", sig.Type)
	}
	if sig.Pips < 79 || sig.Pips > 81 {
		t.Fatalf("expected ~80 pips, got %f", sig.Pips)
	}
}

func TestDetectDisplacement_DiscardsSmallMove(t *testing.T) {
	candles := buildImpulseCandles(1.0900, 10, 16)
	in := DefaultDisplacementInputs()
	in.Now = time.Now().UTC()

	if sig := DetectDisplacement(candles, "EURUSD", domain.M15, in); sig != nil {
		t.Fatalf("expected no signal below min_displacement_pips, got %+v", sig)
	}
}

func TestTargetMultiplier(t *testing.T) {
	if targetMultiplier(150) != 2.0 {
		t.Fatal("expected 2.0 multiplier for >100 pip moves")
	}
	if targetMultiplier(80) != 2.5 {
		t.Fatal("expected 2.5 multiplier for 75-100 pip moves")
	}
	if targetMultiplier(60) != 3.0 {
		t.Fatal("expected 3.0 multiplier for 50-75 pip moves")
	}
}
