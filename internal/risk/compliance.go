package risk

import (
	"sync"
	"time"
)

// ComplianceConfig holds the rule parameters from spec.md §6's Risk config
// group.
type ComplianceConfig struct {
	Blacklist          map[string]bool
	RestrictedHoursUTC map[int]bool
	MaxSpreadPoints    float64
	LossCooldownSec    float64
}

// ComplianceChecker runs the blacklist/restricted-hours/spread/cooldown
// rules from spec.md §4.6. Any non-empty violation list blocks the order.
type ComplianceChecker struct {
	cfg ComplianceConfig

	mu              sync.Mutex
	lastLossBySymbol map[string]time.Time
}

// NewComplianceChecker builds a checker from cfg.
func NewComplianceChecker(cfg ComplianceConfig) *ComplianceChecker {
	return &ComplianceChecker{cfg: cfg, lastLossBySymbol: make(map[string]time.Time)}
}

// RecordLoss marks symbol as having just incurred a loss, starting its
// post-loss cooldown window.
func (c *ComplianceChecker) RecordLoss(symbol string, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastLossBySymbol[symbol] = at
}

// Check evaluates all compliance rules and returns the list of violated
// rule names (empty if compliant).
func (c *ComplianceChecker) Check(symbol string, spreadPoints float64, now time.Time) []string {
	var violations []string

	if c.cfg.Blacklist[symbol] {
		violations = append(violations, "blacklisted_symbol")
	}
	if c.cfg.RestrictedHoursUTC[now.UTC().Hour()] {
		violations = append(violations, "restricted_hour")
	}
	if c.cfg.MaxSpreadPoints > 0 && spreadPoints > c.cfg.MaxSpreadPoints {
		violations = append(violations, "spread_too_wide")
	}

	c.mu.Lock()
	lastLoss, hadLoss := c.lastLossBySymbol[symbol]
	c.mu.Unlock()
	if hadLoss && c.cfg.LossCooldownSec > 0 {
		if now.Sub(lastLoss).Seconds() < c.cfg.LossCooldownSec {
			violations = append(violations, "loss_cooldown_active")
		}
	}

	return violations
}
