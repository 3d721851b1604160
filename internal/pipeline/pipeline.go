// Package pipeline owns per-symbol market state: it pulls ticks from a
// broker.Adapter, validates them, folds them into candles, derives
// trend/volatility/session state, and fans out to registered subscribers.
package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/sawpanic/ictengine/internal/broker"
	"github.com/sawpanic/ictengine/internal/domain"
	"github.com/sawpanic/ictengine/internal/ringstat"
)

// Callback is invoked per (symbol, tick) with the market state snapshot at
// delivery time. It must return within Config.CallbackBudgetMs; the
// pipeline does not kill slow callbacks, but it measures and tags them.
type Callback func(symbol string, tf domain.Timeframe, tick domain.Tick, snap domain.Snapshot)

// Config holds the pipeline's tunables, all drawn from spec.md §6's
// Pipeline config group.
type Config struct {
	Symbols                       []string
	Timeframes                    []domain.Timeframe
	TickInterval                  time.Duration
	MaxTickAge                    time.Duration
	MaxClockSkew                  time.Duration
	SpreadCapPips                 float64
	BufferSize                    int
	CandleHistorySize             int
	ShutdownTimeout               time.Duration
	CallbackBudgetMs              int
	MaxConsecutiveCallbackFailures int
	MaxConsecutiveFetchFailures   int
	VolatilityWindow              int
	TrendWindow                   int
	TrendThresholdPips            float64
	// SimMode is an explicit boot-time choice: when true, fetch failures
	// never fall back to a live adapter, and the adapter supplied must
	// itself be a broker.SimAdapter (or behave deterministically).
	SimMode bool
}

// DefaultConfig returns spec.md's documented defaults.
func DefaultConfig() Config {
	return Config{
		TickInterval:                   100 * time.Millisecond,
		MaxTickAge:                     60 * time.Second,
		MaxClockSkew:                   2 * time.Second,
		SpreadCapPips:                  5.0,
		BufferSize:                     10000,
		CandleHistorySize:              500,
		ShutdownTimeout:                2 * time.Second,
		CallbackBudgetMs:               50,
		MaxConsecutiveCallbackFailures: 5,
		MaxConsecutiveFetchFailures:    5,
		VolatilityWindow:               20,
		TrendWindow:                    20,
		TrendThresholdPips:             2.0,
		Timeframes:                     []domain.Timeframe{domain.M1, domain.M5, domain.M15, domain.H1, domain.H4, domain.D1},
	}
}

type symbolState struct {
	mu       sync.RWMutex
	state    *domain.MarketState
	ticks    *domain.RingBuffer
	candles  map[domain.Timeframe]*domain.CandleHistory
	openTF   map[domain.Timeframe]*domain.Candle
	consecutiveFetchFailures int
}

type subscriber struct {
	id       int
	fn       Callback
	latency  *ringstat.Ring
	failures int
	disabled bool
}

// Pipeline is the market data pipeline described in spec.md §4.2.
type Pipeline struct {
	cfg     Config
	adapter broker.Adapter
	log     zerolog.Logger

	running int32
	stopCh  chan struct{}
	doneCh  chan struct{}

	mu          sync.RWMutex
	symbols     map[string]*symbolState
	subsMu      sync.Mutex
	subs        []*subscriber
	nextSubID   int

	rejectedCount  atomic.Int64
	fetchErrors    atomic.Int64
}

// New constructs a pipeline over adapter for the configured symbols.
func New(cfg Config, adapter broker.Adapter, logger zerolog.Logger) *Pipeline {
	p := &Pipeline{
		cfg:     cfg,
		adapter: adapter,
		log:     logger.With().Str("component", "pipeline").Logger(),
		symbols: make(map[string]*symbolState),
	}
	for _, sym := range cfg.Symbols {
		ss := &symbolState{
			state:   domain.NewMarketState(sym),
			ticks:   domain.NewRingBuffer(cfg.BufferSize),
			candles: make(map[domain.Timeframe]*domain.CandleHistory),
			openTF:  make(map[domain.Timeframe]*domain.Candle),
		}
		for _, tf := range cfg.Timeframes {
			ss.candles[tf] = domain.NewCandleHistory(cfg.CandleHistorySize)
		}
		p.symbols[sym] = ss
	}
	return p
}

// Start begins the loop goroutine(s). Idempotent: returns true on first
// call, false if already running.
func (p *Pipeline) Start(ctx context.Context) bool {
	if !atomic.CompareAndSwapInt32(&p.running, 0, 1) {
		return false
	}
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})

	go p.run(ctx)
	return true
}

// Stop signals shutdown and blocks up to Config.ShutdownTimeout. Idempotent:
// returns true on first call and on any subsequent call.
func (p *Pipeline) Stop() bool {
	if !atomic.CompareAndSwapInt32(&p.running, 1, 0) {
		return true
	}
	close(p.stopCh)
	select {
	case <-p.doneCh:
	case <-time.After(p.cfg.ShutdownTimeout):
		p.log.Warn().Msg("pipeline: shutdown timeout exceeded")
	}
	return true
}

func (p *Pipeline) run(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, sym := range p.cfg.Symbols {
				select {
				case <-p.stopCh:
					return
				default:
				}
				p.processSymbol(ctx, sym)
			}
		}
	}
}

func (p *Pipeline) processSymbol(ctx context.Context, symbol string) {
	ss := p.symbols[symbol]
	if ss == nil {
		return
	}

	fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.TickInterval)
	tick, err := p.adapter.Tick(fetchCtx, symbol)
	cancel()
	if err != nil {
		p.fetchErrors.Add(1)
		ss.mu.Lock()
		ss.consecutiveFetchFailures++
		fails := ss.consecutiveFetchFailures
		ss.mu.Unlock()
		if fails >= p.cfg.MaxConsecutiveFetchFailures {
			p.log.Warn().Str("symbol", symbol).Int("consecutive_failures", fails).Msg("pipeline: adapter fetch degraded")
		}
		return
	}

	now := time.Now().UTC()
	if verr := domain.ValidateTick(tick, now, p.cfg.SpreadCapPips, domain.PipFactor(symbol), p.cfg.MaxTickAge, p.cfg.MaxClockSkew); verr != nil {
		p.rejectedCount.Add(1)
		p.log.Debug().Str("symbol", symbol).Err(verr).Msg("pipeline: tick rejected")
		return
	}

	ss.mu.Lock()
	ss.consecutiveFetchFailures = 0
	ss.ticks.Push(tick)

	var sealedTF []domain.Timeframe
	for _, tf := range p.cfg.Timeframes {
		bucket := tf.BucketStart(tick.Timestamp)
		open := ss.openTF[tf]
		if open == nil {
			ss.openTF[tf] = domain.NewCandle(symbol, tf, tick)
		} else if open.BucketTime.Equal(bucket) {
			open.Fold(tick)
		} else {
			ss.candles[tf].Append(*open)
			ss.openTF[tf] = domain.NewCandle(symbol, tf, tick)
			sealedTF = append(sealedTF, tf)
		}
	}

	recent := ss.ticks.Recent(p.cfg.TrendWindow)
	volSamples := ss.ticks.Recent(p.cfg.VolatilityWindow)
	ss.state.LastTick = tick
	ss.state.HasTick = true
	ss.state.Trend = domain.DeriveTrend(recent, domain.PipFactor(symbol), p.cfg.TrendThresholdPips)
	ss.state.Volatility = domain.RollingVolatility(volSamples)
	ss.state.SessionTag = domain.SessionFromTime(tick.Timestamp)
	ss.state.IsActive = true
	snap := ss.state.Snapshot()
	ss.mu.Unlock()

	// Step 7: fan out with the real (symbol, timeframe, tick) per sealed
	// timeframe, plus one delivery at the primary timeframe so callbacks
	// that track state tick-by-tick (e.g. FVG mitigation) see every tick,
	// not only candle closes.
	primary := domain.M1
	if len(p.cfg.Timeframes) > 0 {
		primary = p.cfg.Timeframes[0]
	}
	p.fanOut(symbol, primary, tick, snap)
	for _, tf := range sealedTF {
		if tf == primary {
			continue
		}
		p.fanOut(symbol, tf, tick, snap)
	}
}

func (p *Pipeline) fanOut(symbol string, tf domain.Timeframe, tick domain.Tick, snap domain.Snapshot) {
	p.subsMu.Lock()
	subs := make([]*subscriber, len(p.subs))
	copy(subs, p.subs)
	p.subsMu.Unlock()

	for _, sub := range subs {
		if sub.disabled {
			continue
		}
		p.invokeCallback(sub, symbol, tf, tick, snap)
	}
}

func (p *Pipeline) invokeCallback(sub *subscriber, symbol string, tf domain.Timeframe, tick domain.Tick, snap domain.Snapshot) {
	start := time.Now()
	panicked := false
	func() {
		defer func() {
			if r := recover(); r != nil {
				panicked = true
				p.log.Error().Interface("panic", r).Int("subscriber_id", sub.id).Msg("pipeline: callback panicked")
				p.subsMu.Lock()
				sub.failures++
				if sub.failures >= p.cfg.MaxConsecutiveCallbackFailures {
					sub.disabled = true
					p.log.Warn().Int("subscriber_id", sub.id).Msg("pipeline: subscriber auto-disabled")
				}
				p.subsMu.Unlock()
			}
		}()
		sub.fn(symbol, tf, tick, snap)
	}()

	elapsed := time.Since(start)
	sub.latency.Add(float64(elapsed.Milliseconds()))

	p.subsMu.Lock()
	if !panicked && elapsed <= time.Duration(p.cfg.CallbackBudgetMs)*time.Millisecond {
		sub.failures = 0
	}
	p.subsMu.Unlock()
}

// RegisterCallback adds a subscriber and returns its id for CallbackStats
// lookups.
func (p *Pipeline) RegisterCallback(fn Callback) int {
	p.subsMu.Lock()
	defer p.subsMu.Unlock()
	p.nextSubID++
	sub := &subscriber{id: p.nextSubID, fn: fn, latency: ringstat.New(256)}
	p.subs = append(p.subs, sub)
	return sub.id
}

// SubscriberStat reports one subscriber's latency percentiles and
// slow/disabled status.
type SubscriberStat struct {
	ID       int
	P50Ms    float64
	P95Ms    float64
	Slow     bool
	Disabled bool
}

// CallbackStats returns per-subscriber latency introspection. A subscriber
// is tagged "slow" when its p95 latency exceeds CallbackBudgetMs.
func (p *Pipeline) CallbackStats() []SubscriberStat {
	p.subsMu.Lock()
	subs := make([]*subscriber, len(p.subs))
	copy(subs, p.subs)
	p.subsMu.Unlock()

	out := make([]SubscriberStat, 0, len(subs))
	budget := float64(p.cfg.CallbackBudgetMs)
	for _, sub := range subs {
		pcts := sub.latency.Percentiles(50, 95)
		out = append(out, SubscriberStat{
			ID:       sub.id,
			P50Ms:    pcts[50],
			P95Ms:    pcts[95],
			Slow:     pcts[95] > budget,
			Disabled: sub.disabled,
		})
	}
	return out
}

// CurrentTick returns the most recent admitted tick for symbol.
func (p *Pipeline) CurrentTick(symbol string) (domain.Tick, bool) {
	ss := p.symbols[symbol]
	if ss == nil {
		return domain.Tick{}, false
	}
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return ss.state.LastTick, ss.state.HasTick
}

// CurrentCandle returns the open (not yet sealed) candle for symbol/tf.
func (p *Pipeline) CurrentCandle(symbol string, tf domain.Timeframe) (domain.Candle, bool) {
	ss := p.symbols[symbol]
	if ss == nil {
		return domain.Candle{}, false
	}
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	open := ss.openTF[tf]
	if open == nil {
		return domain.Candle{}, false
	}
	return *open, true
}

// RecentTicks returns a copy of the last n admitted ticks for symbol.
func (p *Pipeline) RecentTicks(symbol string, n int) []domain.Tick {
	ss := p.symbols[symbol]
	if ss == nil {
		return nil
	}
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return ss.ticks.Recent(n)
}

// RecentCandles returns a copy of the last n sealed candles for symbol/tf.
func (p *Pipeline) RecentCandles(symbol string, tf domain.Timeframe, n int) []domain.Candle {
	ss := p.symbols[symbol]
	if ss == nil {
		return nil
	}
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	hist := ss.candles[tf]
	if hist == nil {
		return nil
	}
	return hist.Recent(n)
}

// Snapshot returns a read-only copy of a symbol's current market state.
func (p *Pipeline) Snapshot(symbol string) (domain.Snapshot, bool) {
	ss := p.symbols[symbol]
	if ss == nil {
		return domain.Snapshot{}, false
	}
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return ss.state.Snapshot(), true
}

// RejectedCount returns the lifetime count of ticks dropped at validation.
func (p *Pipeline) RejectedCount() int64 { return p.rejectedCount.Load() }

// FetchErrorCount returns the lifetime count of adapter fetch failures.
func (p *Pipeline) FetchErrorCount() int64 { return p.fetchErrors.Load() }

// IsRunning reports whether the loop goroutine is active.
func (p *Pipeline) IsRunning() bool { return atomic.LoadInt32(&p.running) == 1 }
