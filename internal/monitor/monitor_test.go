// internal/monitor/monitor_test.go
package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/quietlabs/edgebot/internal/capital"
	"github.com/quietlabs/edgebot/internal/position"
	"github.com/quietlabs/edgebot/internal/risk"
	"github.com/quietlabs/edgebot/internal/types"
)

type fakePrices struct {
	mu     sync.Mutex
	prices map[string]float64
	err    error
}

func (f *fakePrices) set(mint string, price float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.prices == nil {
		f.prices = make(map[string]float64)
	}
	f.prices[mint] = price
}

func (f *fakePrices) Price(_ context.Context, mint, _ string, _ types.VenueType) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	return f.prices[mint], nil
}

type collectSink struct {
	mu   sync.Mutex
	cmds []types.ExitCommand
}

func (c *collectSink) Push(cmd types.ExitCommand) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cmds = append(c.cmds, cmd)
	return nil
}

func (c *collectSink) last() (types.ExitCommand, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.cmds) == 0 {
		return types.ExitCommand{}, false
	}
	return c.cmds[len(c.cmds)-1], true
}

func (c *collectSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cmds)
}

type monitorHarness struct {
	monitor   *Monitor
	positions *position.Manager
	prices    *fakePrices
	sink      *collectSink
	governor  *risk.Governor
}

func newMonitorHarness(t *testing.T, rules RuleConfig) *monitorHarness {
	logger := zaptest.NewLogger(t)
	positions := position.NewManager(logger)
	prices := &fakePrices{}
	sink := &collectSink{}
	governor := risk.NewGovernor(risk.Config{
		MaxPositionSize:        1.0,
		DailyLossLimit:         5,
		MaxDrawdownPercent:     20,
		MaxConcurrentPositions: 5,
		AutoPauseOnDrawdown:    true,
	}, logger)
	capitalMgr := capital.NewManager(2.0, logger)
	capitalMgr.Rebalance([]string{"s1"})

	cfg := DefaultConfig()
	cfg.Rules = rules

	return &monitorHarness{
		monitor:   New(cfg, positions, prices, sink, governor, capitalMgr, nil, logger),
		positions: positions,
		prices:    prices,
		sink:      sink,
		governor:  governor,
	}
}

func (h *monitorHarness) open(t *testing.T, id string, exitCfg types.ExitConfig) {
	t.Helper()
	require.NoError(t, h.positions.Register(&position.Position{
		ID:              id,
		TokenMint:       "mint-" + id,
		PoolID:          "pool-" + id,
		StrategyID:      "s1",
		Venue:           types.VenueBondingCurve,
		EntryAmount:     1.0,
		EntryQuantity:   1000,
		EntryPrice:      1.0,
		EntryTime:       time.Now().UTC(),
		RemainingAmount: 1000,
		ExitConfig:      exitCfg,
		Status:          position.StatusOpen,
		AutoExit:        true,
	}))
	h.prices.set("mint-"+id, 1.0)
}

// tick spaces monitor ticks far enough apart that every price sample gets a
// distinct timestamp.
func (h *monitorHarness) tick(price float64, id string) {
	time.Sleep(3 * time.Millisecond)
	h.prices.set("mint-"+id, price)
	h.monitor.Tick(context.Background())
}

func TestMonitorEmitsStopLossCommand(t *testing.T) {
	h := newMonitorHarness(t, DefaultRuleConfig())
	h.open(t, "p1", types.ExitConfig{StopLossPercent: 10, TakeProfitPercent: 15})

	h.tick(0.88, "p1")

	cmd, ok := h.sink.last()
	require.True(t, ok)
	assert.Equal(t, types.ExitStopLoss, cmd.Reason)
	assert.Equal(t, types.UrgencyHigh, cmd.Urgency)
	assert.Equal(t, "monitor", cmd.Source)
}

func TestMonitorSkipsAutoExitDisabled(t *testing.T) {
	h := newMonitorHarness(t, DefaultRuleConfig())
	h.open(t, "p1", types.ExitConfig{StopLossPercent: 10})
	require.NoError(t, h.positions.SetAutoExit("p1", false))

	h.tick(0.80, "p1")

	assert.Equal(t, 0, h.sink.count())
	// Price and momentum still refresh for disabled positions.
	pos, _ := h.positions.Get("p1")
	assert.InDelta(t, -20.0, pos.UnrealizedPnlPercent, 1e-9)
}

func TestMonitorPriceFailureDegradesGracefully(t *testing.T) {
	h := newMonitorHarness(t, DefaultRuleConfig())
	h.open(t, "p1", types.ExitConfig{StopLossPercent: 10})
	h.prices.err = errors.New("venue rate limited")

	h.monitor.Tick(context.Background())
	assert.Equal(t, 0, h.sink.count())
}

func TestMonitorObservesDrawdown(t *testing.T) {
	h := newMonitorHarness(t, DefaultRuleConfig())
	h.open(t, "p1", types.ExitConfig{StopLossPercent: 60, TakeProfitPercent: 100})

	// -45% on a 1.0 SOL position against 2.0 total: 22.5% drawdown, over the
	// 20% limit.
	h.tick(0.55, "p1")

	assert.True(t, h.governor.Paused())
}

// The momentum scenario: a winner under strong momentum holds past its
// nominal target, takes a partial at the extended target, then exits the
// remainder the moment momentum reverses.
func TestMonitorMomentumExtensionThenReversal(t *testing.T) {
	rules := DefaultRuleConfig()
	rules.PeakDropFraction = 0 // isolate the momentum path
	h := newMonitorHarness(t, rules)
	h.open(t, "p1", types.ExitConfig{
		StopLossPercent:   10,
		TakeProfitPercent: 15,
		MomentumAdaptive:  true,
	})

	// Climb through the nominal +15% target at full speed: no exit yet.
	h.tick(1.05, "p1")
	h.tick(1.15, "p1")
	assert.Equal(t, 0, h.sink.count(), "strong momentum should extend past the nominal target")

	// Extended target (+30%) reached: partial exit only.
	h.tick(1.30, "p1")
	cmd, ok := h.sink.last()
	require.True(t, ok)
	assert.Equal(t, types.ExitPartialTakeProfit, cmd.Reason)
	assert.Equal(t, 0.5, cmd.Fraction)

	// Simulate the executor settling the partial.
	require.NoError(t, h.positions.MarkPendingExit("p1"))
	_, err := h.positions.ApplyExit("p1", 500, 0.65, false)
	require.NoError(t, err)

	before := h.sink.count()

	// Sharp drop: still profitable, stop loss untouched, but the reversal
	// takes the remainder out immediately.
	h.tick(1.10, "p1")
	h.tick(0.95, "p1")

	require.Greater(t, h.sink.count(), before, "reversal must emit a command")
	cmd, _ = h.sink.last()
	assert.Equal(t, types.ExitMomentumReversal, cmd.Reason)
	assert.Equal(t, 1.0, cmd.Fraction)
	assert.Equal(t, types.UrgencyHigh, cmd.Urgency)
}
