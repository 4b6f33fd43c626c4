// internal/bot/service_test.go
package bot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/quietlabs/edgebot/internal/capital"
	"github.com/quietlabs/edgebot/internal/events"
	"github.com/quietlabs/edgebot/internal/executor"
	"github.com/quietlabs/edgebot/internal/position"
	"github.com/quietlabs/edgebot/internal/risk"
	"github.com/quietlabs/edgebot/internal/store"
	"github.com/quietlabs/edgebot/internal/strategy"
	"github.com/quietlabs/edgebot/internal/types"
)

type serviceHarness struct {
	service   *Service
	store     store.Store
	positions *position.Manager
	capital   *capital.Manager
	governor  *risk.Governor
	queue     *executor.ExitQueue
	bus       *events.Bus
}

func newServiceHarness(t *testing.T) *serviceHarness {
	logger := zaptest.NewLogger(t)
	st := store.NewMemory()
	registry := strategy.NewRegistry(logger)
	positions := position.NewManager(logger)
	capitalMgr := capital.NewManager(2.0, logger)
	governor := risk.NewGovernor(risk.Config{
		MaxPositionSize:        1,
		DailyLossLimit:         1,
		MaxDrawdownPercent:     50,
		MaxConcurrentPositions: 5,
	}, logger)
	queue := executor.NewExitQueue(16, logger)
	bus := events.NewBus(logger, 16)
	t.Cleanup(func() { _ = bus.Shutdown(context.Background()) })

	return &serviceHarness{
		service:   NewService(st, registry, positions, capitalMgr, governor, queue, bus, logger),
		store:     st,
		positions: positions,
		capital:   capitalMgr,
		governor:  governor,
		queue:     queue,
		bus:       bus,
	}
}

func openPosition(t *testing.T, positions *position.Manager, id string) {
	t.Helper()
	require.NoError(t, positions.Register(&position.Position{
		ID:              id,
		TokenMint:       "mint-" + id,
		StrategyID:      "s1",
		EntryAmount:     0.5,
		EntryQuantity:   1000,
		EntryPrice:      0.0005,
		RemainingAmount: 1000,
		Status:          position.StatusOpen,
		AutoExit:        true,
	}))
}

func TestServicePauseAndResume(t *testing.T) {
	h := newServiceHarness(t)

	h.service.PauseAll("drawdown inspection")
	assert.True(t, h.service.Paused())

	h.service.Resume()
	assert.False(t, h.service.Paused())
}

func TestServiceManualExitGoesThroughQueue(t *testing.T) {
	h := newServiceHarness(t)
	openPosition(t, h.positions, "p1")

	require.NoError(t, h.service.TriggerManualExit("p1", 0.5))

	cmd, ok := h.queue.TryPop()
	require.True(t, ok)
	assert.Equal(t, "p1", cmd.PositionID)
	assert.Equal(t, types.ExitManual, cmd.Reason)
	assert.Equal(t, types.UrgencyHigh, cmd.Urgency)
	assert.Equal(t, 0.5, cmd.Fraction)

	assert.Error(t, h.service.TriggerManualExit("ghost", 1))
}

func TestServiceSetAutoExit(t *testing.T) {
	h := newServiceHarness(t)
	openPosition(t, h.positions, "p1")

	require.NoError(t, h.service.SetAutoExit("p1", false))
	pos, ok := h.positions.Get("p1")
	require.True(t, ok)
	assert.False(t, pos.AutoExit)

	assert.Error(t, h.service.SetAutoExit("ghost", true))
}

func TestServiceStrategyToggleRebalances(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()

	for _, id := range []string{"cfg-1", "cfg-2"} {
		cfg := &store.StrategyConfig{
			ID:            id,
			Name:          id,
			StrategyType:  "graduation",
			ExecutionMode: types.ModeAutonomous,
			IsActive:      true,
		}
		cfg.SetAcceptedVenues([]types.VenueType{types.VenueBondingCurve})
		require.NoError(t, h.store.SaveStrategyConfig(ctx, cfg))
	}
	h.capital.Rebalance([]string{"cfg-1", "cfg-2"})
	assert.Equal(t, 1.0, h.capital.Available("cfg-1"))

	// Deactivating one config hands its budget to the survivor.
	require.NoError(t, h.service.SetStrategyActive(ctx, "cfg-2", false))
	assert.Equal(t, 2.0, h.capital.Available("cfg-1"))

	assert.Error(t, h.service.SetStrategyActive(ctx, "ghost", false))
}

func TestServiceUpdateRiskConfig(t *testing.T) {
	h := newServiceHarness(t)

	cfg := h.governor.ConfigSnapshot()
	cfg.MaxPositionSize = 0.25
	h.service.UpdateRiskConfig(cfg)

	assert.Equal(t, 0.25, h.governor.ConfigSnapshot().MaxPositionSize)
}

func TestServiceStatusSnapshot(t *testing.T) {
	h := newServiceHarness(t)
	openPosition(t, h.positions, "p1")
	require.NoError(t, h.queue.Push(types.NewExitCommand("p1", types.ExitTimeLimit, 1, "test")))

	status := h.service.Status()
	assert.Equal(t, 1, status.OpenPositions)
	assert.Equal(t, 1, status.ExitQueueDepth)
	assert.Equal(t, 2.0, status.TotalCapital)
	assert.False(t, status.Paused)
}
