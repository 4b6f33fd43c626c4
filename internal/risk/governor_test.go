// internal/risk/governor_test.go
package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/quietlabs/edgebot/internal/types"
)

func testConfig() Config {
	return Config{
		MaxPositionSize:        1.0,
		DailyLossLimit:         0.5,
		MaxDrawdownPercent:     20,
		MaxConcurrentPositions: 3,
		CooldownAfterLoss:      5 * time.Minute,
		AutoPauseOnDrawdown:    true,
	}
}

func TestCheckEntryAllowsAndScales(t *testing.T) {
	g := NewGovernor(testConfig(), zaptest.NewLogger(t))

	d := g.CheckEntry("s1", "mintA", 0.8, 40, 0, 1.0)
	require.True(t, d.Allowed)
	// 0.8 * (1 - 40/200) = 0.64
	assert.InDelta(t, 0.64, d.AdjustedSize, 1e-9)
}

func TestCheckEntryScaleFloorAndCap(t *testing.T) {
	g := NewGovernor(testConfig(), zaptest.NewLogger(t))

	// Extreme risk score floors the factor at 0.25.
	d := g.CheckEntry("s1", "mintA", 0.8, 200, 0, 1.0)
	require.True(t, d.Allowed)
	assert.InDelta(t, 0.2, d.AdjustedSize, 1e-9)

	// Scaled size still caps at max_position_size.
	cfg := testConfig()
	cfg.MaxPositionSize = 0.5
	g.UpdateConfig(cfg)
	d = g.CheckEntry("s1", "mintA", 0.9, 0, 0, 1.0)
	require.True(t, d.Allowed)
	assert.InDelta(t, 0.5, d.AdjustedSize, 1e-9)
}

func TestCheckEntryBudgetRejection(t *testing.T) {
	g := NewGovernor(testConfig(), zaptest.NewLogger(t))

	d := g.CheckEntry("s1", "mintA", 1.2, 0, 0, 1.0)
	assert.False(t, d.Allowed)
	assert.Equal(t, types.RejectBudget, d.Reason)
}

func TestCheckEntryConcurrencyRejection(t *testing.T) {
	g := NewGovernor(testConfig(), zaptest.NewLogger(t))

	d := g.CheckEntry("s1", "mintA", 0.5, 0, 3, 1.0)
	assert.False(t, d.Allowed)
	assert.Equal(t, types.RejectConcurrency, d.Reason)
}

func TestDailyLossLimitBlocksEntries(t *testing.T) {
	g := NewGovernor(testConfig(), zaptest.NewLogger(t))

	g.RecordOutcome("s1", -0.3)
	d := g.CheckEntry("s2", "mintA", 0.5, 0, 0, 1.0)
	assert.True(t, d.Allowed, "below limit should still allow")

	g.RecordOutcome("s2", -0.25)
	d = g.CheckEntry("s2", "mintA", 0.5, 0, 0, 1.0)
	assert.False(t, d.Allowed)
	assert.Equal(t, types.RejectDailyLossLimit, d.Reason)
}

func TestDailyRollover(t *testing.T) {
	g := NewGovernor(testConfig(), zaptest.NewLogger(t))
	current := time.Date(2025, 3, 10, 23, 50, 0, 0, time.UTC)
	g.now = func() time.Time { return current }
	g.dailyDay = midnightUTC(current)

	g.RecordOutcome("s1", -0.6)
	assert.False(t, g.CheckEntry("s1", "mintA", 0.5, 0, 0, 1.0).Allowed)

	// Past UTC midnight the counter resets; the strategy cooldown has also
	// elapsed by then.
	current = current.Add(20 * time.Minute)
	assert.InDelta(t, 0.0, g.DailyLoss(), 1e-9)
	assert.True(t, g.CheckEntry("s1", "mintA", 0.5, 0, 0, 1.0).Allowed)
}

func TestCooldownAfterLoss(t *testing.T) {
	cfg := testConfig()
	cfg.DailyLossLimit = 100 // keep the loss limit out of the way
	g := NewGovernor(cfg, zaptest.NewLogger(t))
	current := time.Now().UTC()
	g.now = func() time.Time { return current }

	g.RecordOutcome("s1", -0.1)

	d := g.CheckEntry("s1", "mintA", 0.5, 0, 0, 1.0)
	assert.False(t, d.Allowed)
	assert.Equal(t, types.RejectCooldown, d.Reason)

	// Other strategies are unaffected.
	assert.True(t, g.CheckEntry("s2", "mintA", 0.5, 0, 0, 1.0).Allowed)

	current = current.Add(6 * time.Minute)
	assert.True(t, g.CheckEntry("s1", "mintA", 0.5, 0, 0, 1.0).Allowed)
}

func TestTokenCooldownOnlyAfterSuccess(t *testing.T) {
	g := NewGovernor(testConfig(), zaptest.NewLogger(t))

	// A failed attempt records nothing, so an immediate retry passes.
	assert.True(t, g.CheckEntry("s1", "mintA", 0.5, 0, 0, 1.0).Allowed)
	assert.True(t, g.CheckEntry("s1", "mintA", 0.5, 0, 0, 1.0).Allowed)

	g.RecordEntry("mintA")
	d := g.CheckEntry("s1", "mintA", 0.5, 0, 0, 1.0)
	assert.False(t, d.Allowed)
	assert.Equal(t, types.RejectCooldown, d.Reason)
}

func TestDrawdownPauseSticky(t *testing.T) {
	g := NewGovernor(testConfig(), zaptest.NewLogger(t))

	g.ObserveDrawdown(25)
	assert.True(t, g.Paused())

	d := g.CheckEntry("s1", "mintA", 0.5, 0, 0, 1.0)
	assert.False(t, d.Allowed)
	assert.Equal(t, types.RejectPaused, d.Reason)

	// Drawdown recovering does not clear the pause.
	g.ObserveDrawdown(5)
	assert.True(t, g.Paused())

	g.Resume()
	assert.False(t, g.Paused())
	assert.True(t, g.CheckEntry("s1", "mintA", 0.5, 0, 0, 1.0).Allowed)
}

func TestDrawdownPauseDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.AutoPauseOnDrawdown = false
	g := NewGovernor(cfg, zaptest.NewLogger(t))

	g.ObserveDrawdown(50)
	assert.False(t, g.Paused())
}
