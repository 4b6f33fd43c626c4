// internal/monitor/rules_test.go
package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quietlabs/edgebot/internal/position"
	"github.com/quietlabs/edgebot/internal/types"
)

func rulePosition(pnl float64) *position.Position {
	now := time.Now().UTC()
	entry := 1.0
	current := entry * (1 + pnl/100)
	pos := &position.Position{
		ID:                   "p1",
		TokenMint:            "mintA",
		StrategyID:           "s1",
		EntryAmount:          1.0,
		EntryQuantity:        1000,
		EntryPrice:           entry,
		EntryTime:            now.Add(-10 * time.Minute),
		CurrentPrice:         current,
		RemainingAmount:      1000,
		HighWaterMark:        current,
		UnrealizedPnlPercent: pnl,
		PeakPnlPercent:       pnl,
		ExitConfig: types.ExitConfig{
			StopLossPercent:   10,
			TakeProfitPercent: 15,
		},
		Status:   position.StatusOpen,
		AutoExit: true,
	}
	if pnl > 0 {
		pos.HighWaterMark = current
	} else {
		pos.HighWaterMark = entry
		pos.PeakPnlPercent = 0
	}
	return pos
}

func TestEmergencyOverridesStopLoss(t *testing.T) {
	pos := rulePosition(-55)
	pos.ExitConfig.StopLossPercent = 40

	trig, ok := Evaluate(pos, DefaultRuleConfig(), time.Now().UTC())
	require.True(t, ok)
	assert.Equal(t, types.ExitEmergency, trig.Reason)
	assert.Equal(t, 1.0, trig.Fraction)
}

func TestStopLossBeforeTakeProfit(t *testing.T) {
	pos := rulePosition(-12)
	trig, ok := Evaluate(pos, DefaultRuleConfig(), time.Now().UTC())
	require.True(t, ok)
	assert.Equal(t, types.ExitStopLoss, trig.Reason)
}

func TestTakeProfitPlain(t *testing.T) {
	pos := rulePosition(16)
	trig, ok := Evaluate(pos, DefaultRuleConfig(), time.Now().UTC())
	require.True(t, ok)
	assert.Equal(t, types.ExitTakeProfit, trig.Reason)
	assert.Equal(t, 1.0, trig.Fraction)
}

func TestNoTriggerInsideBands(t *testing.T) {
	pos := rulePosition(5)
	_, ok := Evaluate(pos, DefaultRuleConfig(), time.Now().UTC())
	assert.False(t, ok)
}

func TestPartialTiersFireInOrder(t *testing.T) {
	pos := rulePosition(22)
	pos.ExitConfig.TakeProfitPercent = 40
	pos.ExitConfig.PartialExitTiers = []types.PartialExitTier{
		{TriggerPercent: 20, Fraction: 0.25},
		{TriggerPercent: 35, Fraction: 0.5},
	}

	trig, ok := Evaluate(pos, DefaultRuleConfig(), time.Now().UTC())
	require.True(t, ok)
	assert.Equal(t, types.ExitPartialTakeProfit, trig.Reason)
	assert.Equal(t, 0.25, trig.Fraction)

	// First tier consumed, second not yet triggered.
	pos.TiersTaken = 1
	pos.LastExitTime = time.Now().UTC().Add(-5 * time.Minute)
	_, ok = Evaluate(pos, DefaultRuleConfig(), time.Now().UTC())
	assert.False(t, ok)
}

func TestPartialCooldownSuppressesRepeat(t *testing.T) {
	now := time.Now().UTC()
	pos := rulePosition(22)
	pos.ExitConfig.TakeProfitPercent = 40
	pos.ExitConfig.PartialExitTiers = []types.PartialExitTier{
		{TriggerPercent: 20, Fraction: 0.25},
		{TriggerPercent: 21, Fraction: 0.25},
	}
	pos.TiersTaken = 1
	pos.LastExitTime = now.Add(-10 * time.Second)

	_, ok := Evaluate(pos, DefaultRuleConfig(), now)
	assert.False(t, ok)

	pos.LastExitTime = now.Add(-2 * time.Minute)
	trig, ok := Evaluate(pos, DefaultRuleConfig(), now)
	require.True(t, ok)
	assert.Equal(t, types.ExitPartialTakeProfit, trig.Reason)
}

func TestTrailingStopFromHighWaterMark(t *testing.T) {
	pos := rulePosition(8)
	pos.ExitConfig.TrailingStopPercent = 8
	pos.HighWaterMark = 1.20 // +20% peak, now at 1.08: 10% off the high
	pos.PeakPnlPercent = 20
	pos.ExitConfig.TakeProfitPercent = 50

	cfg := DefaultRuleConfig()
	cfg.PeakDropFraction = 0 // isolate the trailing stop
	trig, ok := Evaluate(pos, cfg, time.Now().UTC())
	require.True(t, ok)
	assert.Equal(t, types.ExitTrailingStop, trig.Reason)
}

func TestPeakDropFiresWhereTrailingStopMisses(t *testing.T) {
	// Peaked at +40%, now at +15%: only ~18% off the price high, under a wide
	// 25% trailing stop, but 62% of the PnL peak is gone.
	pos := rulePosition(15)
	pos.ExitConfig.TakeProfitPercent = 50
	pos.ExitConfig.TrailingStopPercent = 25
	pos.HighWaterMark = 1.40
	pos.PeakPnlPercent = 40

	trig, ok := Evaluate(pos, DefaultRuleConfig(), time.Now().UTC())
	require.True(t, ok)
	assert.Equal(t, types.ExitPeakDrop, trig.Reason)
}

func TestMomentumStrongExtendsTargetAndExitsPartially(t *testing.T) {
	pos := rulePosition(16)
	pos.ExitConfig.MomentumAdaptive = true
	pos.Momentum = position.MomentumData{Score: 70}

	// At +16% the nominal target is hit but the extended (30%) is not.
	cfg := DefaultRuleConfig()
	cfg.PeakDropFraction = 0
	_, ok := Evaluate(pos, cfg, time.Now().UTC())
	assert.False(t, ok)

	pos = rulePosition(31)
	pos.ExitConfig.MomentumAdaptive = true
	pos.Momentum = position.MomentumData{Score: 70}
	trig, ok := Evaluate(pos, cfg, time.Now().UTC())
	require.True(t, ok)
	assert.Equal(t, types.ExitPartialTakeProfit, trig.Reason)
	assert.Equal(t, 0.5, trig.Fraction)
}

func TestMomentumWeakHalvesTarget(t *testing.T) {
	pos := rulePosition(8)
	pos.ExitConfig.MomentumAdaptive = true
	pos.Momentum = position.MomentumData{Score: 2}

	trig, ok := Evaluate(pos, DefaultRuleConfig(), time.Now().UTC())
	require.True(t, ok)
	assert.Equal(t, types.ExitTakeProfit, trig.Reason)
	assert.Equal(t, 1.0, trig.Fraction)
}

func TestMomentumReversalExitsImmediately(t *testing.T) {
	pos := rulePosition(12)
	pos.ExitConfig.MomentumAdaptive = true
	pos.Momentum = position.MomentumData{Score: -60}

	cfg := DefaultRuleConfig()
	cfg.PeakDropFraction = 0
	trig, ok := Evaluate(pos, cfg, time.Now().UTC())
	require.True(t, ok)
	assert.Equal(t, types.ExitMomentumReversal, trig.Reason)
	assert.Equal(t, 1.0, trig.Fraction)
}

func TestMomentumDecayBucketedByHoldAge(t *testing.T) {
	now := time.Now().UTC()
	cfg := DefaultRuleConfig()
	cfg.PeakDropFraction = 0

	pos := rulePosition(5)
	pos.ExitConfig.MomentumAdaptive = true
	pos.Momentum = position.MomentumData{Score: 5, DecayCount: 4}

	// Held 2 minutes: a young position needs 6 decay ticks.
	pos.EntryTime = now.Add(-2 * time.Minute)
	_, ok := Evaluate(pos, cfg, now)
	assert.False(t, ok)

	// Held 10 minutes: 4 ticks suffice.
	pos.EntryTime = now.Add(-10 * time.Minute)
	trig, ok := Evaluate(pos, cfg, now)
	require.True(t, ok)
	assert.Equal(t, types.ExitMomentumDecay, trig.Reason)

	// Held an hour: 3 ticks.
	pos.Momentum.DecayCount = 3
	pos.EntryTime = now.Add(-time.Hour)
	trig, ok = Evaluate(pos, cfg, now)
	require.True(t, ok)
	assert.Equal(t, types.ExitMomentumDecay, trig.Reason)
}

func TestTimeLimitLastResort(t *testing.T) {
	now := time.Now().UTC()
	pos := rulePosition(3)
	pos.ExitConfig.TimeLimit = 30 * time.Minute
	pos.EntryTime = now.Add(-31 * time.Minute)

	trig, ok := Evaluate(pos, DefaultRuleConfig(), now)
	require.True(t, ok)
	assert.Equal(t, types.ExitTimeLimit, trig.Reason)
}
