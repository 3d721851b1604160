package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/sawpanic/ictengine/internal/domain"
)

// ErrNoOrderSender is reported by SendOrder when the adapter was built
// without an order-send function.
var ErrNoOrderSender = errInternal("broker_ws: no order sender configured")

// WSTickMessage is the wire shape of an inbound tick update.
type WSTickMessage struct {
	Symbol    string  `json:"symbol"`
	Bid       float64 `json:"bid"`
	Ask       float64 `json:"ask"`
	Volume    uint64  `json:"volume"`
	Timestamp int64   `json:"timestamp_ms"`
}

// WSAdapterConfig configures a WSAdapter.
type WSAdapterConfig struct {
	URL                string
	HandshakeTimeout   time.Duration
	BreakerMaxRequests uint32
	BreakerInterval    time.Duration
	BreakerTimeout     time.Duration
	BreakerFailRatio   float64
}

// DefaultWSAdapterConfig returns sane defaults for a live feed connection.
func DefaultWSAdapterConfig(url string) WSAdapterConfig {
	return WSAdapterConfig{
		URL:                url,
		HandshakeTimeout:   10 * time.Second,
		BreakerMaxRequests: 3,
		BreakerInterval:    60 * time.Second,
		BreakerTimeout:     30 * time.Second,
		BreakerFailRatio:   0.6,
	}
}

// WSAdapter is a generic websocket-backed broker adapter. Connection-level
// resilience (repeated dial/send failures) is delegated to a gobreaker
// circuit breaker; this is distinct from the execution router's own
// sliding-window order breaker, which governs trading decisions rather
// than transport health.
type WSAdapter struct {
	cfg     WSAdapterConfig
	log     zerolog.Logger
	breaker *gobreaker.CircuitBreaker

	mu        sync.RWMutex
	conn      *websocket.Conn
	connected bool
	latest    map[string]domain.Tick
	sendOrder func(ctx context.Context, intent domain.ExecutionIntent) (SendResult, error)
	account   Account
}

// NewWSAdapter builds an adapter. sendOrder is injected so the transport
// can be exercised independently of a specific order-entry wire protocol,
// which is explicitly out of scope (spec's broker terminal SDK boundary).
func NewWSAdapter(cfg WSAdapterConfig, logger zerolog.Logger, sendOrder func(ctx context.Context, intent domain.ExecutionIntent) (SendResult, error)) *WSAdapter {
	st := gobreaker.Settings{
		Name:        "broker-ws",
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.BreakerFailRatio
		},
	}
	return &WSAdapter{
		cfg:       cfg,
		log:       logger.With().Str("component", "broker_ws").Logger(),
		breaker:   gobreaker.NewCircuitBreaker(st),
		latest:    make(map[string]domain.Tick),
		sendOrder: sendOrder,
	}
}

// Connect dials the feed and starts the background read loop. It is safe
// to call once; reconnection is the caller's responsibility (typically the
// pipeline, which treats IsConnected()==false as a health signal).
func (w *WSAdapter) Connect(ctx context.Context) error {
	u, err := url.Parse(w.cfg.URL)
	if err != nil {
		return fmt.Errorf("broker_ws: invalid url: %w", err)
	}

	_, err = w.breaker.Execute(func() (any, error) {
		dialer := websocket.DefaultDialer
		dialer.HandshakeTimeout = w.cfg.HandshakeTimeout
		conn, _, dialErr := dialer.DialContext(ctx, u.String(), nil)
		if dialErr != nil {
			return nil, dialErr
		}
		w.mu.Lock()
		w.conn = conn
		w.connected = true
		w.mu.Unlock()
		return nil, nil
	})
	if err != nil {
		w.log.Warn().Err(err).Str("url", w.cfg.URL).Msg("broker_ws: connect failed")
		return err
	}

	go w.readLoop(ctx)
	return nil
}

func (w *WSAdapter) readLoop(ctx context.Context) {
	for {
		w.mu.RLock()
		conn := w.conn
		w.mu.RUnlock()
		if conn == nil {
			return
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			w.log.Warn().Err(err).Msg("broker_ws: read failed, marking disconnected")
			w.mu.Lock()
			w.connected = false
			w.mu.Unlock()
			return
		}

		var msg WSTickMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			w.log.Debug().Err(err).Msg("broker_ws: malformed message dropped")
			continue
		}

		tick := domain.Tick{
			Symbol:    msg.Symbol,
			Timestamp: time.UnixMilli(msg.Timestamp).UTC(),
			Bid:       msg.Bid,
			Ask:       msg.Ask,
			Volume:    msg.Volume,
		}
		w.mu.Lock()
		w.latest[msg.Symbol] = tick
		w.mu.Unlock()

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (w *WSAdapter) Tick(ctx context.Context, symbol string) (domain.Tick, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	t, ok := w.latest[symbol]
	if !ok {
		return domain.Tick{}, ErrNoTick
	}
	return t, nil
}

func (w *WSAdapter) Candles(ctx context.Context, symbol string, tf domain.Timeframe, count int) ([]domain.Candle, error) {
	// Candle history is derived by the pipeline from streamed ticks, not
	// fetched from this transport; the broker terminal's own candle wire
	// format is out of scope.
	return nil, nil
}

func (w *WSAdapter) Account(ctx context.Context) (Account, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.account, nil
}

func (w *WSAdapter) SendOrder(ctx context.Context, intent domain.ExecutionIntent) (SendResult, error) {
	if w.sendOrder == nil {
		return SendResult{Success: false, Error: ErrNoOrderSender}, nil
	}
	result, err := w.breaker.Execute(func() (any, error) {
		return w.sendOrder(ctx, intent)
	})
	if err != nil {
		return SendResult{Success: false, Error: err}, nil
	}
	return result.(SendResult), nil
}

func (w *WSAdapter) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
}

// BreakerState exposes the transport breaker's current state for health
// reporting.
func (w *WSAdapter) BreakerState() gobreaker.State {
	return w.breaker.State()
}
