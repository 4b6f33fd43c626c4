// internal/risk/governor.go
package risk

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quietlabs/edgebot/internal/types"
)

// Config is the global risk limit set. Mutable only through Governor.UpdateConfig.
type Config struct {
	MaxPositionSize        float64       // SOL cap per entry
	DailyLossLimit         float64       // SOL of realized loss that blocks new entries
	MaxDrawdownPercent     float64       // realized+unrealized drawdown that trips the pause
	MaxConcurrentPositions int
	CooldownAfterLoss      time.Duration // per-strategy entry cooldown after a realized loss
	AutoPauseOnDrawdown    bool
}

// Decision is the outcome of a pre-trade check.
type Decision struct {
	Allowed      bool
	Reason       types.RejectReason
	AdjustedSize float64
}

// Governor enforces pre-trade limits and the standing circuit breaker. All
// counters live behind one mutex so a limit check and the entry that follows
// it cannot interleave with a concurrent check against stale numbers.
type Governor struct {
	mu     sync.Mutex
	config Config

	paused            bool
	dailyRealizedLoss float64
	dailyDay          time.Time // UTC midnight of the day the counter belongs to
	lastLossAt        map[string]time.Time
	lastEntryAt       map[string]time.Time // token mint -> successful entry time

	logger *zap.Logger
	now    func() time.Time
}

// NewGovernor creates a governor with the given limits.
func NewGovernor(config Config, logger *zap.Logger) *Governor {
	now := time.Now
	return &Governor{
		config:      config,
		dailyDay:    midnightUTC(now()),
		lastLossAt:  make(map[string]time.Time),
		lastEntryAt: make(map[string]time.Time),
		logger:      logger.Named("risk"),
		now:         now,
	}
}

// CheckEntry runs the pre-trade checks in order and, when allowed, returns
// the risk-scaled position size. openPositions is the current count of
// capital-holding positions; availableBudget is the strategy's unreserved
// capital. No side effects on rejection.
func (g *Governor) CheckEntry(strategyID, tokenMint string, proposedSize, riskScore float64, openPositions int, availableBudget float64) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.rolloverLocked()

	if g.paused {
		return Decision{Reason: types.RejectPaused}
	}
	if g.config.DailyLossLimit > 0 && g.dailyRealizedLoss >= g.config.DailyLossLimit {
		return Decision{Reason: types.RejectDailyLossLimit}
	}
	if proposedSize > availableBudget {
		return Decision{Reason: types.RejectBudget}
	}
	if openPositions >= g.config.MaxConcurrentPositions {
		return Decision{Reason: types.RejectConcurrency}
	}
	if g.config.CooldownAfterLoss > 0 {
		if lossAt, ok := g.lastLossAt[strategyID]; ok {
			if g.now().Sub(lossAt) < g.config.CooldownAfterLoss {
				return Decision{Reason: types.RejectCooldown}
			}
		}
	}
	if entryAt, ok := g.lastEntryAt[tokenMint]; ok {
		if g.config.CooldownAfterLoss > 0 && g.now().Sub(entryAt) < g.config.CooldownAfterLoss {
			return Decision{Reason: types.RejectCooldown}
		}
	}

	factor := 1 - riskScore/200
	if factor < 0.25 {
		factor = 0.25
	}
	adjusted := proposedSize * factor
	if adjusted > g.config.MaxPositionSize {
		adjusted = g.config.MaxPositionSize
	}

	return Decision{Allowed: true, AdjustedSize: adjusted}
}

// RecordEntry registers a successful entry for the per-token cooldown. Failed
// submissions must not call this; an immediate retry has to stay possible.
func (g *Governor) RecordEntry(tokenMint string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastEntryAt[tokenMint] = g.now()
}

// RecordOutcome feeds a realized PnL into the daily counters. Losses arm the
// strategy cooldown and accumulate toward the daily loss limit.
func (g *Governor) RecordOutcome(strategyID string, realizedPnl float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.rolloverLocked()

	if realizedPnl >= 0 {
		return
	}
	g.dailyRealizedLoss += -realizedPnl
	g.lastLossAt[strategyID] = g.now()

	g.logger.Warn("Realized loss recorded",
		zap.String("strategy", strategyID),
		zap.Float64("loss", -realizedPnl),
		zap.Float64("daily_total", g.dailyRealizedLoss),
		zap.Float64("daily_limit", g.config.DailyLossLimit))
}

// ObserveDrawdown trips the sticky pause when the combined drawdown breaches
// the configured maximum and auto-pause is on.
func (g *Governor) ObserveDrawdown(drawdownPercent float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.config.AutoPauseOnDrawdown || g.paused {
		return
	}
	if g.config.MaxDrawdownPercent > 0 && drawdownPercent >= g.config.MaxDrawdownPercent {
		g.paused = true
		g.logger.Error("Drawdown limit breached, pausing all entries",
			zap.Float64("drawdown_percent", drawdownPercent),
			zap.Float64("limit", g.config.MaxDrawdownPercent))
	}
}

// Pause blocks all new entries until Resume.
func (g *Governor) Pause() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.paused = true
	g.logger.Warn("Trading paused")
}

// Resume clears the pause flag. The only way out of a drawdown pause.
func (g *Governor) Resume() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.paused = false
	g.logger.Info("Trading resumed")
}

// Paused reports the circuit-breaker state.
func (g *Governor) Paused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}

// DailyLoss returns the realized loss accumulated today.
func (g *Governor) DailyLoss() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rolloverLocked()
	return g.dailyRealizedLoss
}

// UpdateConfig swaps the limit set. Takes effect on the next check.
func (g *Governor) UpdateConfig(config Config) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.config = config
	g.logger.Info("Risk config updated",
		zap.Float64("max_position_size", config.MaxPositionSize),
		zap.Float64("daily_loss_limit", config.DailyLossLimit),
		zap.Int("max_concurrent_positions", config.MaxConcurrentPositions))
}

// ConfigSnapshot returns a copy of the current limits.
func (g *Governor) ConfigSnapshot() Config {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.config
}

// rolloverLocked resets the daily loss counter when the UTC day has changed.
// Lazy: checked on every counter access rather than by a timer.
func (g *Governor) rolloverLocked() {
	today := midnightUTC(g.now())
	if today.After(g.dailyDay) {
		g.logger.Info("Daily loss counter reset",
			zap.Float64("previous_day_loss", g.dailyRealizedLoss))
		g.dailyRealizedLoss = 0
		g.dailyDay = today
	}
}

func midnightUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
