// Package signals wires the stateless pattern detectors in internal/detect
// to the memory store and execution router, closing the loop described in
// spec.md §2: Pipeline -> (Detectors <-> Memory) -> Signal Stream -> Router.
//
// Engine is registered as a single pipeline.Callback. It runs on the
// pipeline's own goroutine, per spec.md §4.2's scheduling model ("detectors
// run on demand... on the same loop thread when invoked from a callback").
package signals

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sawpanic/ictengine/internal/detect"
	"github.com/sawpanic/ictengine/internal/domain"
	"github.com/sawpanic/ictengine/internal/execution"
	"github.com/sawpanic/ictengine/internal/memory"
	"github.com/sawpanic/ictengine/internal/pipeline"
)

// Config tunes the detection pass and the demonstration auto-trading policy
// that turns a qualifying Smart Money signal into an ExecutionIntent. Spec.md
// explicitly scopes trade-intent policy above the core ("the core reports
// signals; human/algorithmic policy decides trade intent") — this is the
// minimal policy that gives the router a live caller, not a strategy.
type Config struct {
	Base               detect.BaseThresholds
	VolatilityHigh     float64
	VolatilityWindow   int
	TrendThresholdPips float64
	CandleLookback     int
	MinBOSConfidence   float64
	AccountBalance     float64
	PipValuePerLot     float64
}

// DefaultConfig returns the detector thresholds spec.md §6 documents as
// defaults, plus conservative demonstration-policy sizing inputs.
func DefaultConfig() Config {
	return Config{
		Base:               detect.BaseThresholds{MinGapSizePips: 0.8, FillTolerancePips: 0.1},
		VolatilityHigh:     0.0006,
		VolatilityWindow:   20,
		TrendThresholdPips: 2.0,
		CandleLookback:     60,
		MinBOSConfidence:   90,
		AccountBalance:     10000,
		PipValuePerLot:     10,
	}
}

// Engine tracks active FVGs per symbol and runs the FVG/Smart Money
// detectors against freshly-sealed candles.
type Engine struct {
	cfg    Config
	pl     *pipeline.Pipeline
	mem    *memory.Store
	router *execution.Router
	log    zerolog.Logger

	mu              sync.Mutex
	active          map[string]map[string]*domain.FairValueGap // symbol -> gap id -> gap
	lastCandleCount map[string]int                              // "symbol|tf" -> bucket start (Unix seconds) of the newest candle last scanned
}

// New constructs an Engine bound to the pipeline it will be registered
// against, the memory store it populates, and the router it drives.
func New(cfg Config, pl *pipeline.Pipeline, mem *memory.Store, router *execution.Router, logger zerolog.Logger) *Engine {
	return &Engine{
		cfg:             cfg,
		pl:              pl,
		mem:             mem,
		router:          router,
		log:             logger.With().Str("component", "signals").Logger(),
		active:          make(map[string]map[string]*domain.FairValueGap),
		lastCandleCount: make(map[string]int),
	}
}

// OnTick is a pipeline.Callback: it advances live FVG mitigation on every
// tick, and runs a detection pass whenever the fan-out tf's candle history
// has grown since the last pass.
func (e *Engine) OnTick(symbol string, tf domain.Timeframe, tick domain.Tick, snap domain.Snapshot) {
	e.trackMitigation(symbol, tick)
	e.maybeDetect(symbol, tf, tick, snap)
}

// trackMitigation advances every active FVG for symbol whose band the tick
// has crossed, per spec.md §3.4/§4.2 ("updated by pipeline as new ticks
// cross the gap") and scenario S2's fill_pct arithmetic.
func (e *Engine) trackMitigation(symbol string, tick domain.Tick) {
	e.mu.Lock()
	gaps := e.active[symbol]
	var toUpdate []*domain.FairValueGap
	for _, g := range gaps {
		toUpdate = append(toUpdate, g)
	}
	e.mu.Unlock()

	for _, gap := range toUpdate {
		fillPct, crossed := fillFraction(gap, tick)
		if !crossed {
			continue
		}
		if err := gap.ApplyFill(fillPct, tick.Timestamp); err != nil {
			continue
		}
		if e.mem != nil {
			_ = e.mem.UpdateStatus(gap.ID, gap.Status, gap.FillPct, tick.Timestamp)
		}
		if gap.Status == domain.FVGFilled {
			e.mu.Lock()
			delete(e.active[symbol], gap.ID)
			e.mu.Unlock()
		}
	}
}

// fillFraction computes the fraction of gap consumed by tick's price,
// mirroring scenario S2: a bullish gap fills as bid retraces down through
// [low, high]; a bearish gap fills as ask advances up through [low, high].
func fillFraction(gap *domain.FairValueGap, tick domain.Tick) (fillPct float64, crossed bool) {
	switch gap.Type {
	case domain.FVGBullish:
		if tick.Bid >= gap.High {
			return 0, false
		}
		pct := (gap.High - tick.Bid) / (gap.High - gap.Low)
		return pct, true
	case domain.FVGBearish:
		if tick.Ask <= gap.Low {
			return 0, false
		}
		pct := (tick.Ask - gap.Low) / (gap.High - gap.Low)
		return pct, true
	default:
		return 0, false
	}
}

// maybeDetect runs the FVG and Smart Money detectors against symbol/tf's
// sealed candle history once it has grown since the last pass.
func (e *Engine) maybeDetect(symbol string, tf domain.Timeframe, tick domain.Tick, snap domain.Snapshot) {
	candles := e.pl.RecentCandles(symbol, tf, e.cfg.CandleLookback)
	if len(candles) < 5 {
		return
	}

	key := symbol + "|" + string(tf)
	newest := int(candles[len(candles)-1].BucketTime.Unix())
	e.mu.Lock()
	if newest <= e.lastCandleCount[key] {
		e.mu.Unlock()
		return
	} else {
		e.lastCandleCount[key] = newest
	}
	e.mu.Unlock()

	ticks := e.pl.RecentTicks(symbol, e.cfg.VolatilityWindow)
	conditions := detect.DeriveConditions(tick.Timestamp, ticks, domain.PipFactor(symbol), e.cfg.TrendThresholdPips, e.cfg.VolatilityHigh)
	thresholds := detect.Modulate(e.cfg.Base, conditions)

	e.runFVGPass(symbol, tf, candles, snap, thresholds, tick.Timestamp)
	e.runSmartMoneyPass(symbol, tf, candles, snap, conditions, tick.Timestamp)
}

func (e *Engine) runFVGPass(symbol string, tf domain.Timeframe, candles []domain.Candle, snap domain.Snapshot, thresholds detect.Thresholds, now time.Time) {
	gaps := detect.DetectFVGs(candles, symbol, tf, detect.FVGInputs{
		Thresholds:      thresholds,
		ContextStrength: 0.5,
		Session:         snap.SessionTag,
		Now:             now,
	})

	for _, gap := range gaps {
		e.mu.Lock()
		bySymbol, ok := e.active[symbol]
		if !ok {
			bySymbol = make(map[string]*domain.FairValueGap)
			e.active[symbol] = bySymbol
		}
		_, known := bySymbol[gap.ID]
		if !known {
			bySymbol[gap.ID] = gap
		}
		e.mu.Unlock()
		if known {
			continue
		}

		if e.mem != nil {
			e.mem.Add(&memory.Record{
				ID:        gap.ID,
				Symbol:    gap.Symbol,
				Timeframe: gap.Timeframe,
				Kind:      domain.PatternFVG,
				Status:    gap.Status,
				FillPct:   gap.FillPct,
				CreatedAt: gap.CreatedAt,
				Payload: map[string]any{
					"type":                   string(gap.Type),
					"high":                   gap.High,
					"low":                    gap.Low,
					"quality_score":          gap.QualityScore,
					"mitigation_probability": gap.MitigationProbability,
				},
			})
		}
		e.log.Debug().Str("symbol", symbol).Str("timeframe", string(tf)).Str("fvg_id", gap.ID).Float64("quality_score", gap.QualityScore).Msg("signals: fvg detected")
	}
}

func (e *Engine) runSmartMoneyPass(symbol string, tf domain.Timeframe, candles []domain.Candle, snap domain.Snapshot, conditions detect.Conditions, now time.Time) {
	split := len(candles) - 2
	priorHigh, priorLow := rangeOf(candles[:split])
	latestHigh, latestLow := rangeOf(candles[split:])
	structure := detect.ClassifyStructure(priorHigh, latestHigh, priorLow, latestLow)

	sig := detect.DetectBOS(candles[len(candles)-1], symbol, tf, detect.SmartMoneyInputs{
		Structure:          structure,
		LastStructureHigh:  priorHigh,
		LastStructureLow:   priorLow,
		VolumeAboveAverage: false,
		Session:            snap.SessionTag,
		HealthScore:        1.0,
		Now:                now,
	})
	if sig == nil {
		return
	}

	if e.mem != nil {
		e.mem.Add(&memory.Record{
			ID:        sig.ID,
			Symbol:    sig.Symbol,
			Timeframe: sig.Timeframe,
			Kind:      domain.PatternSmartMoney,
			CreatedAt: sig.CreatedAt,
			BreakLevel: sig.PriceLevel,
			Payload: map[string]any{
				"type":          string(sig.Type),
				"direction":     string(sig.Direction),
				"confidence":    sig.Confidence,
				"quality_score": sig.QualityScore,
				"silver_bullet": sig.SilverBullet,
			},
		})
	}
	e.log.Info().Str("symbol", symbol).Str("timeframe", string(tf)).Float64("confidence", sig.Confidence).Msg("signals: smart money signal")

	if sig.Confidence < e.cfg.MinBOSConfidence || e.router == nil {
		return
	}
	e.placeOrder(symbol, sig)
}

func (e *Engine) placeOrder(symbol string, sig *domain.SmartMoneySignal) {
	action := domain.ActionBuy
	if sig.Direction == domain.Bearish {
		action = domain.ActionSell
	}
	entry := sig.Entry
	stop := sig.Stop
	intent := domain.ExecutionIntent{
		Symbol:        symbol,
		Action:        action,
		Price:         &entry,
		Stop:          &stop,
		CorrelationID: uuid.NewString(),
	}

	stopDistancePips := (entry - stop) * domain.PipFactor(symbol)
	if stopDistancePips < 0 {
		stopDistancePips = -stopDistancePips
	}

	result := e.router.PlaceOrder(context.Background(), intent, e.cfg.AccountBalance, stopDistancePips, e.cfg.PipValuePerLot)
	if !result.Success {
		e.log.Warn().Str("symbol", symbol).Str("error", result.Error).Msg("signals: order not placed")
		return
	}
	e.log.Info().Str("symbol", symbol).Str("ticket", result.Ticket).Msg("signals: order placed")
}

func rangeOf(candles []domain.Candle) (high, low float64) {
	if len(candles) == 0 {
		return 0, 0
	}
	high, low = candles[0].High, candles[0].Low
	for _, c := range candles[1:] {
		if c.High > high {
			high = c.High
		}
		if c.Low < low {
			low = c.Low
		}
	}
	return high, low
}
