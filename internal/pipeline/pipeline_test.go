package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/ictengine/internal/broker"
	"github.com/sawpanic/ictengine/internal/domain"
)

func seededAdapter(symbol string, n int, start time.Time) *broker.SimAdapter {
	adapter := broker.NewSimAdapter()
	ticks := make([]domain.Tick, n)
	for i := 0; i < n; i++ {
		ticks[i] = domain.Tick{
			Symbol:    symbol,
			Timestamp: start.Add(time.Duration(i) * 10 * time.Millisecond),
			Bid:       1.0900 + float64(i)*0.0001,
			Ask:       1.0902 + float64(i)*0.0001,
			Volume:    10,
		}
	}
	adapter.SeedTicks(symbol, ticks)
	return adapter
}

func TestPipeline_StartStopIdempotent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Symbols = []string{"EURUSD"}
	cfg.TickInterval = 5 * time.Millisecond

	adapter := seededAdapter("EURUSD", 3, time.Now().UTC())
	p := New(cfg, adapter, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	assert.True(t, p.Start(ctx))
	assert.False(t, p.Start(ctx))

	assert.True(t, p.Stop())
	assert.True(t, p.Stop())
}

func TestPipeline_FeedsCallbackInOrder(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Symbols = []string{"EURUSD"}
	cfg.TickInterval = 5 * time.Millisecond

	start := time.Now().UTC()
	adapter := seededAdapter("EURUSD", 5, start)
	p := New(cfg, adapter, zerolog.Nop())

	var seen []time.Time
	done := make(chan struct{})
	p.RegisterCallback(func(symbol string, tf domain.Timeframe, tick domain.Tick, snap domain.Snapshot) {
		seen = append(seen, tick.Timestamp)
		if len(seen) == 5 {
			close(done)
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.True(t, p.Start(ctx))
	defer p.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for all ticks to be delivered")
	}

	for i := 1; i < len(seen); i++ {
		assert.True(t, seen[i].After(seen[i-1]) || seen[i].Equal(seen[i-1]), "ticks must be delivered in monotonic timestamp order")
	}
}

func TestPipeline_RejectsInvalidTicks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Symbols = []string{"EURUSD"}
	cfg.TickInterval = 5 * time.Millisecond

	adapter := broker.NewSimAdapter()
	adapter.SeedTicks("EURUSD", []domain.Tick{
		{Symbol: "EURUSD", Timestamp: time.Now().UTC(), Bid: 1.09, Ask: 1.0895}, // inverted spread
	})
	p := New(cfg, adapter, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.True(t, p.Start(ctx))
	time.Sleep(50 * time.Millisecond)
	p.Stop()

	assert.Greater(t, p.RejectedCount(), int64(0))
	_, ok := p.CurrentTick("EURUSD")
	assert.False(t, ok)
}

func TestPipeline_SlowSubscriberTagged(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Symbols = []string{"EURUSD"}
	cfg.TickInterval = 5 * time.Millisecond
	cfg.CallbackBudgetMs = 1

	adapter := seededAdapter("EURUSD", 10, time.Now().UTC())
	p := New(cfg, adapter, zerolog.Nop())
	id := p.RegisterCallback(func(symbol string, tf domain.Timeframe, tick domain.Tick, snap domain.Snapshot) {
		time.Sleep(5 * time.Millisecond)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.True(t, p.Start(ctx))
	time.Sleep(150 * time.Millisecond)
	p.Stop()

	var stat SubscriberStat
	for _, s := range p.CallbackStats() {
		if s.ID == id {
			stat = s
		}
	}
	assert.True(t, stat.Slow, "subscriber exceeding callback budget should be tagged slow")
}
