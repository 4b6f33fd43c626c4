// internal/monitor/rules.go
package monitor

import (
	"time"

	"github.com/quietlabs/edgebot/internal/position"
	"github.com/quietlabs/edgebot/internal/types"
)

// emergencyFloorPercent is the unconditional loss floor. A position at or
// below it exits regardless of its configured stop loss.
const emergencyFloorPercent = -50.0

// RuleConfig tunes the evaluation thresholds shared by all positions.
type RuleConfig struct {
	// StrongMomentumScore and above extends profit targets.
	StrongMomentumScore float64
	// WeakMomentumScore and below halves profit targets.
	WeakMomentumScore float64
	// ReversalScore and below forces an immediate full exit.
	ReversalScore float64
	// MomentumPartialFraction is sold when a strong-momentum extended target
	// is reached.
	MomentumPartialFraction float64
	// PartialCooldown suppresses back-to-back partial exits on the same
	// position.
	PartialCooldown time.Duration
	// PeakDropFraction: exit when unrealized PnL has given back this share of
	// its own peak.
	PeakDropFraction float64
	// MinPeakForDrop is the minimum peak PnL (percent) before the peak-drop
	// rule arms.
	MinPeakForDrop float64
}

// DefaultRuleConfig returns the standard evaluation thresholds.
func DefaultRuleConfig() RuleConfig {
	return RuleConfig{
		StrongMomentumScore:     50,
		WeakMomentumScore:       10,
		ReversalScore:           -50,
		MomentumPartialFraction: 0.5,
		PartialCooldown:         time.Minute,
		PeakDropFraction:        0.5,
		MinPeakForDrop:          10,
	}
}

// Trigger is one fired exit rule.
type Trigger struct {
	Reason   types.ExitReason
	Fraction float64 // 0..1 of remaining amount
}

// Evaluate runs the exit rules for one position in fixed priority order and
// returns the first trigger, if any. Priority: emergency floor, stop loss,
// profit targets (tiered and momentum-adjusted), trailing stop, peak drop,
// momentum reversal and decay, time limit.
func Evaluate(pos *position.Position, cfg RuleConfig, now time.Time) (Trigger, bool) {
	pnl := pos.UnrealizedPnlPercent
	exit := pos.ExitConfig

	if pnl <= emergencyFloorPercent {
		return Trigger{Reason: types.ExitEmergency, Fraction: 1}, true
	}

	if exit.StopLossPercent > 0 && pnl <= -exit.StopLossPercent {
		return Trigger{Reason: types.ExitStopLoss, Fraction: 1}, true
	}

	if trig, ok := evaluateProfitTargets(pos, cfg, now); ok {
		return trig, true
	}

	if exit.TrailingStopPercent > 0 && pos.HighWaterMark > pos.EntryPrice {
		dropPct := (pos.HighWaterMark - pos.CurrentPrice) / pos.HighWaterMark * 100
		if dropPct >= exit.TrailingStopPercent {
			return Trigger{Reason: types.ExitTrailingStop, Fraction: 1}, true
		}
	}

	if cfg.PeakDropFraction > 0 && pos.PeakPnlPercent >= cfg.MinPeakForDrop {
		if pos.PeakPnlPercent-pnl >= pos.PeakPnlPercent*cfg.PeakDropFraction {
			return Trigger{Reason: types.ExitPeakDrop, Fraction: 1}, true
		}
	}

	if exit.MomentumAdaptive {
		if pos.Momentum.Score <= cfg.ReversalScore {
			return Trigger{Reason: types.ExitMomentumReversal, Fraction: 1}, true
		}
		if pos.Momentum.DecayCount >= decayThreshold(pos.HoldDuration(now)) {
			return Trigger{Reason: types.ExitMomentumDecay, Fraction: 1}, true
		}
	}

	if exit.TimeLimit > 0 && pos.HoldDuration(now) >= exit.TimeLimit {
		return Trigger{Reason: types.ExitTimeLimit, Fraction: 1}, true
	}

	return Trigger{}, false
}

// evaluateProfitTargets handles the configured partial tiers and the
// momentum-adjusted take-profit target. Under strong momentum the target is
// doubled and only a fraction is sold when it is hit; under weak momentum the
// target is halved and the remainder exits in full.
func evaluateProfitTargets(pos *position.Position, cfg RuleConfig, now time.Time) (Trigger, bool) {
	pnl := pos.UnrealizedPnlPercent
	exit := pos.ExitConfig

	if pos.TiersTaken < len(exit.PartialExitTiers) {
		tier := exit.PartialExitTiers[pos.TiersTaken]
		if pnl >= tier.TriggerPercent && partialAllowed(pos, cfg, now) {
			return Trigger{Reason: types.ExitPartialTakeProfit, Fraction: tier.Fraction}, true
		}
	}

	if exit.TakeProfitPercent <= 0 {
		return Trigger{}, false
	}

	if !exit.MomentumAdaptive {
		if pnl >= exit.TakeProfitPercent {
			return Trigger{Reason: types.ExitTakeProfit, Fraction: 1}, true
		}
		return Trigger{}, false
	}

	switch {
	case pos.Momentum.Score >= cfg.StrongMomentumScore:
		extended := exit.TakeProfitPercent * 2
		if pnl >= extended && partialAllowed(pos, cfg, now) {
			return Trigger{Reason: types.ExitPartialTakeProfit, Fraction: cfg.MomentumPartialFraction}, true
		}
	case pos.Momentum.Score <= cfg.ReversalScore:
		// A reversal exits through its own rule so the command carries
		// reversal urgency, not a profit-taking one.
	case pos.Momentum.Score <= cfg.WeakMomentumScore:
		if pnl >= exit.TakeProfitPercent/2 {
			return Trigger{Reason: types.ExitTakeProfit, Fraction: 1}, true
		}
	default:
		if pnl >= exit.TakeProfitPercent {
			return Trigger{Reason: types.ExitTakeProfit, Fraction: 1}, true
		}
	}

	return Trigger{}, false
}

func partialAllowed(pos *position.Position, cfg RuleConfig, now time.Time) bool {
	if pos.LastExitTime.IsZero() {
		return true
	}
	return now.Sub(pos.LastExitTime) >= cfg.PartialCooldown
}

// decayThreshold buckets the required consecutive decay ticks by hold age.
// Short holds demand more confirmation because early reversals are noisy.
func decayThreshold(held time.Duration) int {
	switch {
	case held < 5*time.Minute:
		return 6
	case held < 30*time.Minute:
		return 4
	default:
		return 3
	}
}
