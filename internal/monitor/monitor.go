// internal/monitor/monitor.go
package monitor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/quietlabs/edgebot/internal/capital"
	"github.com/quietlabs/edgebot/internal/position"
	"github.com/quietlabs/edgebot/internal/risk"
	"github.com/quietlabs/edgebot/internal/types"
)

// PriceSource supplies current prices for held tokens.
type PriceSource interface {
	Price(ctx context.Context, tokenMint, poolID string, venue types.VenueType) (float64, error)
}

// CommandSink receives exit commands. Implemented by the executor's queue.
type CommandSink interface {
	Push(cmd types.ExitCommand) error
}

// Config tunes the monitor loop.
type Config struct {
	Interval time.Duration
	Rules    RuleConfig
	// ReconcileEvery runs the balance reconciliation pass once per this many
	// ticks. 0 disables reconciliation.
	ReconcileEvery int
}

// DefaultConfig returns the standard monitor settings.
func DefaultConfig() Config {
	return Config{
		Interval:       2 * time.Second,
		Rules:          DefaultRuleConfig(),
		ReconcileEvery: 30,
	}
}

// Monitor drives the exit-evaluation loop. It refreshes prices and momentum,
// fires exit rules and emits commands; it never executes a transaction
// itself.
type Monitor struct {
	config     Config
	positions  *position.Manager
	prices     PriceSource
	sink       CommandSink
	governor   *risk.Governor
	capital    *capital.Manager
	reconciler *Reconciler // may be nil
	logger     *zap.Logger
}

// New creates a monitor. reconciler may be nil when no balance source exists.
func New(
	config Config,
	positions *position.Manager,
	prices PriceSource,
	sink CommandSink,
	governor *risk.Governor,
	capitalMgr *capital.Manager,
	reconciler *Reconciler,
	logger *zap.Logger,
) *Monitor {
	return &Monitor{
		config:     config,
		positions:  positions,
		prices:     prices,
		sink:       sink,
		governor:   governor,
		capital:    capitalMgr,
		reconciler: reconciler,
		logger:     logger.Named("monitor"),
	}
}

// Run ticks until the context ends.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("Position monitor started",
		zap.Duration("interval", m.config.Interval))

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	tick := 0
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Position monitor stopped")
			return ctx.Err()
		case <-ticker.C:
			tick++
			m.Tick(ctx)
			if m.reconciler != nil && m.config.ReconcileEvery > 0 && tick%m.config.ReconcileEvery == 0 {
				m.reconciler.Reconcile(ctx)
			}
		}
	}
}

// Tick evaluates every managed position once. Exported for tests.
func (m *Monitor) Tick(ctx context.Context) {
	now := time.Now().UTC()

	for _, pos := range m.positions.Managed() {
		price, err := m.prices.Price(ctx, pos.TokenMint, pos.PoolID, pos.Venue)
		if err != nil {
			m.logger.Warn("Price refresh failed",
				zap.String("position", pos.ID),
				zap.String("token", pos.TokenMint),
				zap.Error(err))
			continue
		}

		updated, err := m.positions.RefreshPrice(pos.ID, price, now)
		if err != nil {
			m.logger.Warn("Position refresh failed",
				zap.String("position", pos.ID),
				zap.Error(err))
			continue
		}

		if !updated.AutoExit {
			continue
		}

		trigger, fired := Evaluate(&updated, m.config.Rules, now)
		if !fired {
			continue
		}

		cmd := types.NewExitCommand(updated.ID, trigger.Reason, trigger.Fraction, "monitor")
		if err := m.sink.Push(cmd); err != nil {
			m.logger.Error("Exit command rejected by queue",
				zap.String("position", updated.ID),
				zap.String("reason", string(trigger.Reason)),
				zap.Error(err))
			continue
		}

		m.logger.Info("Exit triggered",
			zap.String("position", updated.ID),
			zap.String("token", updated.TokenMint),
			zap.String("reason", string(trigger.Reason)),
			zap.Float64("fraction", trigger.Fraction),
			zap.Float64("pnl_percent", updated.UnrealizedPnlPercent),
			zap.Float64("momentum_score", updated.Momentum.Score))
	}

	m.observeDrawdown()
}

// observeDrawdown feeds the governor the portfolio-wide drawdown: today's
// realized losses plus current unrealized losses, as a share of total funds.
func (m *Monitor) observeDrawdown() {
	total := m.capital.Total()
	if total <= 0 {
		return
	}

	var unrealizedLoss float64
	for _, pos := range m.positions.Managed() {
		if pos.EntryQuantity <= 0 || pos.UnrealizedPnlPercent >= 0 {
			continue
		}
		heldCost := pos.RemainingAmount / pos.EntryQuantity * pos.EntryAmount
		unrealizedLoss += heldCost * -pos.UnrealizedPnlPercent / 100
	}

	drawdownPct := (m.governor.DailyLoss() + unrealizedLoss) / total * 100
	m.governor.ObserveDrawdown(drawdownPct)
}
