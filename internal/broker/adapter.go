// Package broker defines the replaceable capability the engine pulls market
// data from and sends orders through, plus two concrete implementations: a
// deterministic simulator for tests and offline runs, and a generic
// websocket-backed adapter for live feeds.
package broker

import (
	"context"
	"errors"

	"github.com/sawpanic/ictengine/internal/domain"
)

// Account summarizes the broker-side account state.
type Account struct {
	Balance     float64
	Equity      float64
	MarginLevel float64
	Connected   bool
	Server      string
}

// SendResult is the broker's raw reply to an order send, before the router
// wraps it into a domain.ExecutionResult.
type SendResult struct {
	Success       bool
	Ticket        string
	ExecutedPrice *float64
	Error         error
}

var ErrNoTick = errors.New("broker: no tick available")

// Adapter is the capability every broker implementation exposes. Every
// method is fail-safe: a connection problem surfaces as a typed error or
// through IsConnected, never a panic.
type Adapter interface {
	Tick(ctx context.Context, symbol string) (domain.Tick, error)
	Candles(ctx context.Context, symbol string, tf domain.Timeframe, count int) ([]domain.Candle, error)
	Account(ctx context.Context) (Account, error)
	SendOrder(ctx context.Context, intent domain.ExecutionIntent) (SendResult, error)
	IsConnected() bool
}
