package broker

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/sawpanic/ictengine/internal/domain"
)

var ErrSimulatedFailure = errInternal("broker: simulated order failure")

type errInternal string

func (e errInternal) Error() string { return string(e) }

// SimAdapter is a deterministic, in-memory broker used for tests and for
// the pipeline's explicit sim-mode boot flag. It never falls back silently
// from a live adapter: callers choose it up front via Pipeline.Config.SimMode.
type SimAdapter struct {
	mu       sync.Mutex
	ticks    map[string][]domain.Tick
	cursor   map[string]int
	candles  map[string][]domain.Candle
	account  Account
	connected bool
	fail     bool
}

// NewSimAdapter creates a simulator pre-seeded with no data; call SeedTicks
// and SeedCandles before use.
func NewSimAdapter() *SimAdapter {
	return &SimAdapter{
		ticks:     make(map[string][]domain.Tick),
		cursor:    make(map[string]int),
		candles:   make(map[string][]domain.Candle),
		connected: true,
		account: Account{
			Balance:     10000,
			Equity:      10000,
			MarginLevel: 100,
			Connected:   true,
			Server:      "sim",
		},
	}
}

// SeedTicks loads a deterministic sequence of ticks returned one-per-call,
// in order, for symbol. Once exhausted, the last tick repeats.
func (s *SimAdapter) SeedTicks(symbol string, ticks []domain.Tick) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticks[symbol] = ticks
	s.cursor[symbol] = 0
}

// SeedCandles loads a fixed candle history for symbol/timeframe.
func (s *SimAdapter) SeedCandles(symbol string, tf domain.Timeframe, candles []domain.Candle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candles[symbol+"|"+string(tf)] = candles
}

// SetConnected toggles the simulated connection state.
func (s *SimAdapter) SetConnected(connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = connected
	s.account.Connected = connected
}

// SetFailNextOrders makes subsequent SendOrder calls fail until cleared.
func (s *SimAdapter) SetFailNextOrders(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = fail
}

func (s *SimAdapter) Tick(ctx context.Context, symbol string) (domain.Tick, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return domain.Tick{}, ErrNoTick
	}
	seq := s.ticks[symbol]
	if len(seq) == 0 {
		return domain.Tick{}, ErrNoTick
	}
	idx := s.cursor[symbol]
	if idx >= len(seq) {
		idx = len(seq) - 1
	} else {
		s.cursor[symbol] = idx + 1
	}
	return seq[idx], nil
}

func (s *SimAdapter) Candles(ctx context.Context, symbol string, tf domain.Timeframe, count int) ([]domain.Candle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.candles[symbol+"|"+string(tf)]
	if count > len(all) {
		count = len(all)
	}
	out := make([]domain.Candle, count)
	copy(out, all[len(all)-count:])
	return out, nil
}

func (s *SimAdapter) Account(ctx context.Context) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account, nil
}

func (s *SimAdapter) SendOrder(ctx context.Context, intent domain.ExecutionIntent) (SendResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return SendResult{Success: false, Error: ErrSimulatedFailure}, nil
	}
	price := 0.0
	if intent.Price != nil {
		price = *intent.Price
	}
	return SendResult{Success: true, Ticket: simTicket(), ExecutedPrice: &price}, nil
}

func (s *SimAdapter) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

var simTicketCounter int
var simTicketMu sync.Mutex

func simTicket() string {
	simTicketMu.Lock()
	defer simTicketMu.Unlock()
	simTicketCounter++
	return "SIM-" + time.Now().UTC().Format("20060102150405") + "-" + strconv.Itoa(simTicketCounter)
}
