// Package execution implements the router from spec.md §4.7: a short-
// circuiting pre-check pipeline in front of a primary/backup send-order
// retry loop, with its own sliding-window circuit breaker, metrics, alerts,
// and audit trail.
package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/sawpanic/ictengine/internal/alerts"
	"github.com/sawpanic/ictengine/internal/audit"
	"github.com/sawpanic/ictengine/internal/broker"
	"github.com/sawpanic/ictengine/internal/cache"
	"github.com/sawpanic/ictengine/internal/domain"
	"github.com/sawpanic/ictengine/internal/health"
	"github.com/sawpanic/ictengine/internal/metrics"
	"github.com/sawpanic/ictengine/internal/risk"
	"github.com/sawpanic/ictengine/internal/session"
)

// OrderSender is the narrow capability the router needs from an executor —
// satisfied by broker.Adapter, but named separately so the router doesn't
// depend on the rest of the adapter surface.
type OrderSender interface {
	SendOrder(ctx context.Context, intent domain.ExecutionIntent) (broker.SendResult, error)
}

// RiskValidator is the pre-check pipeline's risk-validator hook (e.g.
// exposure/margin limits). It returns a block reason, or "" to allow.
type RiskValidator func(intent domain.ExecutionIntent) (reason string)

// CustomHook is an additional pre-check the router runs after the circuit
// breaker and before the market-data validator.
type CustomHook func(intent domain.ExecutionIntent) (reason string)

// MarketDataValidator reports whether market data backing intent.Symbol is
// fresh enough to trade on. The router wraps it in a short TTL cache.
type MarketDataValidator func(symbol string) bool

// Config wires every collaborator the router's pre-check pipeline and
// retry loop depend on.
type Config struct {
	RateLimiter      *risk.RateLimiter
	Compliance       *risk.ComplianceChecker
	Sizer            *risk.PositionSizer
	Exposure         *risk.ExposureTracker
	Health           *health.Monitor
	Breaker          *Breaker
	RiskValidator    RiskValidator
	CustomHooks      []CustomHook
	MarketDataCheck  MarketDataValidator
	MarketDataTTL    time.Duration
	LatencyProvider  func() float64
	MaxLatencyMs     float64
	MaxRetries       int
	RetryDelay       time.Duration
	SpreadPoints     func(symbol string) float64
	Metrics          *metrics.Aggregator
	Alerts           *alerts.Dispatcher
	Audit            *audit.Log
	Session          *session.Manager
}

// Router implements spec.md §4.7's execution algorithm against a primary
// executor with an optional backup.
type Router struct {
	cfg             Config
	primary         OrderSender
	backup          OrderSender
	marketDataCache *cache.TTLBool
}

// New constructs a Router. backup may be nil.
func New(cfg Config, primary, backup OrderSender) *Router {
	ttl := cfg.MarketDataTTL
	if ttl <= 0 {
		ttl = time.Second
	}
	return &Router{cfg: cfg, primary: primary, backup: backup, marketDataCache: cache.NewTTLBool(ttl)}
}

func (r *Router) alertFor(reason string) {
	if r.cfg.Alerts == nil {
		return
	}
	switch {
	case reason == "circuit_open":
		_ = r.cfg.Alerts.Warning(alerts.CategoryExecution, "circuit_open", nil)
	case reason == "risk_validation_failed":
		_ = r.cfg.Alerts.Warning(alerts.CategoryRisk, "risk_validation_failed", nil)
	case len(reason) >= len("latency_too_high") && reason[:len("latency_too_high")] == "latency_too_high":
		_ = r.cfg.Alerts.Warning(alerts.CategoryLatency, reason, nil)
	case reason == "system_unhealthy":
		_ = r.cfg.Alerts.Critical(alerts.CategorySystem, "system_unhealthy", nil)
	}
}

// preCheck runs the short-circuiting pipeline: rate limit → health check →
// latency check → risk validator → circuit breaker → custom hooks →
// market-data validator. It returns the first blocking reason, or "".
func (r *Router) preCheck(intent domain.ExecutionIntent, now time.Time) string {
	if r.cfg.RateLimiter != nil {
		if allowed, reason := r.cfg.RateLimiter.TryConsume(intent.Symbol); !allowed {
			return reason
		}
	}

	if r.cfg.Health != nil && !r.cfg.Health.IsHealthy(now) {
		return "system_unhealthy"
	}

	if r.cfg.LatencyProvider != nil && r.cfg.MaxLatencyMs > 0 {
		latency := r.cfg.LatencyProvider()
		if latency > r.cfg.MaxLatencyMs {
			return fmt.Sprintf("latency_too_high:%.0fms", latency)
		}
	}

	if r.cfg.RiskValidator != nil {
		if reason := r.cfg.RiskValidator(intent); reason != "" {
			return reason
		}
	}

	if r.cfg.Breaker != nil {
		if err := r.cfg.Breaker.Allow(now); err != nil {
			return "circuit_open"
		}
	}

	for _, hook := range r.cfg.CustomHooks {
		if reason := hook(intent); reason != "" {
			return reason
		}
	}

	if r.cfg.MarketDataCheck != nil {
		fresh := r.marketDataCache.GetOrCompute(func() bool {
			return r.cfg.MarketDataCheck(intent.Symbol)
		})
		if !fresh {
			return "market_data_stale"
		}
	}

	return ""
}

// PlaceOrder runs the full algorithm from spec.md §4.7: optional sizing,
// optional compliance block, the pre-check pipeline, then a bounded
// primary/backup retry loop.
func (r *Router) PlaceOrder(ctx context.Context, intent domain.ExecutionIntent, balance, stopDistancePips, pipValue float64) domain.ExecutionResult {
	now := time.Now()

	if r.cfg.Sizer != nil {
		intent = r.cfg.Sizer.ApplyTo(intent, balance, stopDistancePips, pipValue)
	}

	if r.cfg.Compliance != nil {
		spread := 0.0
		if r.cfg.SpreadPoints != nil {
			spread = r.cfg.SpreadPoints(intent.Symbol)
		}
		if violations := r.cfg.Compliance.Check(intent.Symbol, spread, now); len(violations) > 0 {
			return r.blocked(violations[0], now)
		}
	}

	if reason := r.preCheck(intent, now); reason != "" {
		return r.blocked(reason, now)
	}

	return r.attemptLoop(ctx, intent, now)
}

func (r *Router) blocked(reason string, now time.Time) domain.ExecutionResult {
	if r.cfg.Metrics != nil {
		r.cfg.Metrics.RecordBlocked(reason)
	}
	r.alertFor(reason)
	return domain.NewExecutionResult(false, now, domain.WithExtra("reason", reason))
}

func (r *Router) attemptLoop(ctx context.Context, intent domain.ExecutionIntent, start time.Time) domain.ExecutionResult {
	executors := []struct {
		name   string
		sender OrderSender
	}{{"primary", r.primary}}
	if r.backup != nil {
		executors = append(executors, struct {
			name   string
			sender OrderSender
		}{"backup", r.backup})
	}

	var lastErr string
	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		for _, ex := range executors {
			sendResult, err := ex.sender.SendOrder(ctx, intent)
			latencyMs := float64(time.Since(start).Milliseconds())

			if err != nil {
				lastErr = err.Error()
				if r.cfg.Breaker != nil {
					r.cfg.Breaker.RecordFailure(time.Now())
				}
				if r.cfg.Audit != nil {
					_ = r.cfg.Audit.OrderException(intent.CorrelationID, intent.Symbol, lastErr, nil)
				}
				if r.cfg.Alerts != nil {
					_ = r.cfg.Alerts.Warning(alerts.CategoryExecution, "order_exception", map[string]any{"error": lastErr, "executor": ex.name})
				}
				continue
			}

			if sendResult.Success {
				if r.cfg.Metrics != nil {
					slippage := r.slippagePips(intent, sendResult)
					r.cfg.Metrics.RecordSuccess(latencyMs, slippage)
				}
				if r.cfg.Exposure != nil {
					r.cfg.Exposure.ApplyExecution(intent.Symbol, intent.Volume, intent.Action)
				}
				if r.cfg.Audit != nil {
					_ = r.cfg.Audit.OrderOK(intent.CorrelationID, intent.Symbol, latencyMs, map[string]any{"executor": ex.name, "attempt": attempt})
				}
				if r.cfg.Session != nil {
					r.cfg.Session.RecordSuccess(sendResult.Ticket, intent.Symbol, string(intent.Action), intent.Volume, map[string]any{"executor": ex.name, "attempt": attempt})
				}
				return domain.NewExecutionResult(true, start,
					domain.WithExtra("ticket", sendResult.Ticket),
					domain.WithExtra("executor", ex.name),
					domain.WithExtra("attempt", attempt),
				)
			}

			lastErr = "order_rejected"
			if sendResult.Error != nil {
				lastErr = sendResult.Error.Error()
			}
			if r.cfg.Metrics != nil {
				r.cfg.Metrics.RecordFailure(latencyMs)
			}
			if r.cfg.Audit != nil {
				_ = r.cfg.Audit.OrderFail(intent.CorrelationID, intent.Symbol, lastErr, latencyMs, nil)
			}
		}

		if attempt < r.cfg.MaxRetries {
			select {
			case <-ctx.Done():
				return r.finalFailure(intent, start, ctx.Err().Error())
			case <-time.After(r.cfg.RetryDelay):
			}
		}
	}

	return r.finalFailure(intent, start, lastErr)
}

func (r *Router) finalFailure(intent domain.ExecutionIntent, start time.Time, lastErr string) domain.ExecutionResult {
	if r.cfg.Audit != nil {
		_ = r.cfg.Audit.OrderFinalFail(intent.CorrelationID, intent.Symbol, lastErr, nil)
	}
	if r.cfg.Alerts != nil {
		_ = r.cfg.Alerts.Critical(alerts.CategoryExecution, "order_failure", map[string]any{"error": lastErr})
	}
	if r.cfg.Session != nil {
		r.cfg.Session.RecordFailure(intent.Symbol, string(intent.Action), intent.Volume, lastErr)
	}
	return domain.NewExecutionResult(false, start, domain.WithExtra("error", lastErr))
}

// slippagePips computes signed slippage (executed minus expected) in pips
// between the intended price and the executed price, using the standard
// FX pip factor.
func (r *Router) slippagePips(intent domain.ExecutionIntent, result broker.SendResult) float64 {
	if intent.Price == nil || result.ExecutedPrice == nil {
		return 0
	}
	return (*result.ExecutedPrice - *intent.Price) * domain.PipFactor(intent.Symbol)
}
