package domain

import "time"

// SmartMoneySignalType enumerates the structural read a signal represents.
type SmartMoneySignalType string

const (
	SignalBOS                 SmartMoneySignalType = "BOS"
	SignalCHoCH                SmartMoneySignalType = "CHOCH"
	SignalLiquiditySweep       SmartMoneySignalType = "LIQUIDITY_SWEEP"
	SignalManipulation         SmartMoneySignalType = "MANIPULATION"
	SignalInstitutionalFlow    SmartMoneySignalType = "INSTITUTIONAL_FLOW"
)

// Direction is the bias a signal or pattern carries.
type Direction string

const (
	Bullish Direction = "bullish"
	Bearish Direction = "bearish"
)

// StructureConfluences tracks the boolean confirmations considered when
// scoring a smart money signal.
type StructureConfluences struct {
	OrderBlock  bool
	Volume      bool
	SessionTime bool
}

// MarketStructureSnapshot is a compact record of the swing context a
// signal was detected against.
type MarketStructureSnapshot struct {
	LastSwingHigh float64
	LastSwingLow  float64
	TrendAtSignal Trend
}

// SmartMoneySignal is a detected structural event (break of structure,
// change of character, liquidity sweep, manipulation, or institutional flow).
type SmartMoneySignal struct {
	ID                string
	Symbol            string
	Timeframe         Timeframe
	Type              SmartMoneySignalType
	Direction         Direction
	Confidence        float64
	Strength          float64
	PriceLevel        float64
	Entry             float64
	Stop              float64
	Targets           []float64
	Structure         MarketStructureSnapshot
	InstitutionalBias Direction
	Confluences       StructureConfluences
	QualityScore      float64
	SilverBullet      bool
	CreatedAt         time.Time
}

// NewSmartMoneySignal constructs a signal with its stable signature id.
func NewSmartMoneySignal(symbol string, tf Timeframe, typ SmartMoneySignalType, dir Direction, priceLevel float64, at time.Time) *SmartMoneySignal {
	return &SmartMoneySignal{
		ID:         Signature(symbol, tf, "SMS:"+string(typ)+":"+string(dir), priceLevel),
		Symbol:     symbol,
		Timeframe:  tf,
		Type:       typ,
		Direction:  dir,
		PriceLevel: priceLevel,
		CreatedAt:  at,
	}
}

// ApplySilverBullet tags the signal as a Silver Bullet setup when detected
// inside a kill zone. This is additive: it never creates a distinct signal
// type, only a confirmation tag on an existing one.
func (s *SmartMoneySignal) ApplySilverBullet(at time.Time) {
	s.SilverBullet = IsKillZone(at)
}
