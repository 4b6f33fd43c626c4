// internal/executor/entry_test.go
package executor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/quietlabs/edgebot/internal/broadcast"
	"github.com/quietlabs/edgebot/internal/capital"
	"github.com/quietlabs/edgebot/internal/position"
	"github.com/quietlabs/edgebot/internal/risk"
	"github.com/quietlabs/edgebot/internal/signal"
	"github.com/quietlabs/edgebot/internal/store"
	"github.com/quietlabs/edgebot/internal/types"
	"github.com/quietlabs/edgebot/internal/venue"
)

type fakeSubmitter struct {
	name    string
	fail    bool
	timeout bool
	price   float64
	balance float64
	calls   atomic.Int32
}

func (f *fakeSubmitter) Name() string { return f.name }

func (f *fakeSubmitter) Submit(_ context.Context, req broadcast.Request) (*broadcast.Result, error) {
	f.calls.Add(1)
	if f.timeout {
		return nil, broadcast.ErrSubmitTimeout
	}
	if f.fail {
		return nil, errors.New("node down")
	}
	price := f.price
	if price <= 0 {
		price = 0.001
	}
	if req.Side == broadcast.SideBuy {
		return &broadcast.Result{
			Signature:      "sig-buy",
			FilledQuantity: req.AmountSol / price,
			SolDelta:       req.AmountSol,
			Price:          price,
		}, nil
	}
	return &broadcast.Result{
		Signature:      "sig-sell",
		FilledQuantity: req.TokenQuantity,
		SolDelta:       req.TokenQuantity * price,
		Price:          price,
	}, nil
}

func (f *fakeSubmitter) Balance(_ context.Context, _ string) (float64, error) {
	return f.balance, nil
}

type fakeConsensus struct {
	approved bool
	err      error
	calls    atomic.Int32
}

func (f *fakeConsensus) Decide(_ context.Context, _ venue.EdgeSummary) (venue.Decision, error) {
	f.calls.Add(1)
	if f.err != nil {
		return venue.Decision{}, f.err
	}
	return venue.Decision{Approved: f.approved, Confidence: 0.8, Reasoning: "vote"}, nil
}

type fakeThreat struct {
	score float64
	err   error
}

func (f *fakeThreat) Score(_ context.Context, _ string) (float64, error) {
	return f.score, f.err
}

type entryHarness struct {
	exec      *EntryExecutor
	positions *position.Manager
	capital   *capital.Manager
	governor  *risk.Governor
	submitter *fakeSubmitter
}

func newEntryHarness(t *testing.T, consensus venue.ConsensusClient, threat venue.ThreatScorer) *entryHarness {
	logger := zaptest.NewLogger(t)
	positions := position.NewManager(logger)
	capitalMgr := capital.NewManager(2.0, logger)
	capitalMgr.Rebalance([]string{"s1", "s2"})
	governor := risk.NewGovernor(risk.Config{
		MaxPositionSize:        1.0,
		DailyLossLimit:         5,
		MaxConcurrentPositions: 3,
		CooldownAfterLoss:      time.Minute,
	}, logger)
	submitter := &fakeSubmitter{name: "primary"}
	router := broadcast.NewRouter(submitter, nil, time.Second, logger)

	return &entryHarness{
		exec:      NewEntryExecutor(DefaultEntryConfig(), positions, router, capitalMgr, governor, consensus, threat, logger),
		positions: positions,
		capital:   capitalMgr,
		governor:  governor,
		submitter: submitter,
	}
}

func testEdge(token string) *types.Edge {
	return &types.Edge{
		ID:              "edge-" + token,
		SignalID:        "sig-" + token,
		StrategyID:      "s1",
		TokenMint:       token,
		PoolID:          "pool-" + token,
		Venue:           types.VenueBondingCurve,
		Atomicity:       types.NonAtomic,
		EstimatedProfit: 6,
		Confidence:      0.8,
		RiskScore:       20,
		Status:          types.EdgeDetected,
		DetectedAt:      time.Now().UTC(),
	}
}

func autonomousConfig() *store.StrategyConfig {
	cfg := &store.StrategyConfig{
		ID:            "s1",
		Name:          "grad",
		StrategyType:  string(signal.TypeGraduation),
		ExecutionMode: types.ModeAutonomous,
		IsActive:      true,
		Risk:          store.RiskParams{MaxPositionSol: 0.5},
	}
	cfg.SetAcceptedVenues([]types.VenueType{types.VenueBondingCurve})
	return cfg
}

func TestEntryExecutesAutonomousEdge(t *testing.T) {
	h := newEntryHarness(t, nil, nil)
	edge := testEdge("mintA")

	require.NoError(t, h.exec.Execute(context.Background(), edge, autonomousConfig()))
	assert.Equal(t, types.EdgeExecuted, edge.Status)

	managed := h.positions.Managed()
	require.Len(t, managed, 1)
	pos := managed[0]
	assert.Equal(t, "mintA", pos.TokenMint)
	// 0.5 * (1 - 20/200) = 0.45 SOL spent.
	assert.InDelta(t, 0.45, pos.EntryAmount, 1e-9)
	assert.Equal(t, pos.EntryQuantity, pos.RemainingAmount)
	assert.True(t, pos.AutoExit)
	assert.InDelta(t, 0.45, h.capital.TotalReserved(), 1e-9)
}

func TestEntryFailedBuyReleasesCapitalAndSkipsCooldown(t *testing.T) {
	h := newEntryHarness(t, nil, nil)
	h.submitter.fail = true

	edge := testEdge("mintA")
	err := h.exec.Execute(context.Background(), edge, autonomousConfig())
	require.Error(t, err)
	assert.Equal(t, types.EdgeFailed, edge.Status)
	assert.Equal(t, 0.0, h.capital.TotalReserved())
	assert.Empty(t, h.positions.Managed())

	// Immediate retry on the same token must pass the governor.
	h.submitter.fail = false
	retry := testEdge("mintA")
	retry.ID = "edge-retry"
	require.NoError(t, h.exec.Execute(context.Background(), retry, autonomousConfig()))
	assert.Equal(t, types.EdgeExecuted, retry.Status)
}

func TestEntrySuccessArmsTokenCooldown(t *testing.T) {
	h := newEntryHarness(t, nil, nil)

	first := testEdge("mintA")
	require.NoError(t, h.exec.Execute(context.Background(), first, autonomousConfig()))

	// Different strategy, same token: the per-token cooldown rejects it.
	second := testEdge("mintA")
	second.ID = "edge-2"
	second.StrategyID = "s2"
	cfg := autonomousConfig()
	cfg.ID = "s2"
	require.NoError(t, h.exec.Execute(context.Background(), second, cfg))
	assert.Equal(t, types.EdgeRejected, second.Status)
}

func TestEntryDuplicatePairRejected(t *testing.T) {
	h := newEntryHarness(t, nil, nil)

	require.NoError(t, h.exec.Execute(context.Background(), testEdge("mintA"), autonomousConfig()))

	dup := testEdge("mintA")
	dup.ID = "edge-dup"
	require.NoError(t, h.exec.Execute(context.Background(), dup, autonomousConfig()))
	assert.Equal(t, types.EdgeRejected, dup.Status)
	assert.Contains(t, dup.Reason, "already open")
}

func TestEntryThreatScoreBlocks(t *testing.T) {
	h := newEntryHarness(t, nil, &fakeThreat{score: 0.9})

	edge := testEdge("mintA")
	require.NoError(t, h.exec.Execute(context.Background(), edge, autonomousConfig()))
	assert.Equal(t, types.EdgeRejected, edge.Status)
	assert.Contains(t, edge.Reason, "threat score")
	assert.Equal(t, int32(0), h.submitter.calls.Load())
}

func TestEntryThreatScoreUnavailableFailsClosed(t *testing.T) {
	h := newEntryHarness(t, nil, &fakeThreat{err: errors.New("scorer offline")})

	edge := testEdge("mintA")
	require.NoError(t, h.exec.Execute(context.Background(), edge, autonomousConfig()))
	assert.Equal(t, types.EdgeRejected, edge.Status)
}

func TestEntryAgentDirectedRequiresConsensus(t *testing.T) {
	consensus := &fakeConsensus{approved: true}
	h := newEntryHarness(t, consensus, nil)

	cfg := autonomousConfig()
	cfg.ExecutionMode = types.ModeAgentDirected

	edge := testEdge("mintA")
	require.NoError(t, h.exec.Execute(context.Background(), edge, cfg))
	assert.Equal(t, types.EdgeExecuted, edge.Status)
	assert.Equal(t, int32(1), consensus.calls.Load())
}

func TestEntryConsensusDenialRejects(t *testing.T) {
	h := newEntryHarness(t, &fakeConsensus{approved: false}, nil)

	cfg := autonomousConfig()
	cfg.ExecutionMode = types.ModeAgentDirected

	edge := testEdge("mintA")
	require.NoError(t, h.exec.Execute(context.Background(), edge, cfg))
	assert.Equal(t, types.EdgeRejected, edge.Status)
	assert.Equal(t, int32(0), h.submitter.calls.Load())
	assert.Equal(t, 0.0, h.capital.TotalReserved())
}

func TestEntryConsensusErrorIsNotApproved(t *testing.T) {
	h := newEntryHarness(t, &fakeConsensus{err: errors.New("voting service down")}, nil)

	cfg := autonomousConfig()
	cfg.ExecutionMode = types.ModeAgentDirected

	edge := testEdge("mintA")
	require.NoError(t, h.exec.Execute(context.Background(), edge, cfg))
	assert.Equal(t, types.EdgeRejected, edge.Status)
	assert.Contains(t, edge.Reason, "consensus unavailable")
}

func TestEntryHybridBelowThresholdSkipsConsensus(t *testing.T) {
	consensus := &fakeConsensus{approved: false}
	h := newEntryHarness(t, consensus, nil)

	cfg := autonomousConfig()
	cfg.ExecutionMode = types.ModeHybrid
	cfg.Risk.HybridSizeThresholdSol = 0.5 // adjusted size 0.45 stays below

	edge := testEdge("mintA")
	require.NoError(t, h.exec.Execute(context.Background(), edge, cfg))
	assert.Equal(t, types.EdgeExecuted, edge.Status)
	assert.Equal(t, int32(0), consensus.calls.Load())
}

func TestEntryHybridAboveThresholdRequiresConsensus(t *testing.T) {
	consensus := &fakeConsensus{approved: true}
	h := newEntryHarness(t, consensus, nil)

	cfg := autonomousConfig()
	cfg.ExecutionMode = types.ModeHybrid
	cfg.Risk.HybridSizeThresholdSol = 0.3

	edge := testEdge("mintA")
	require.NoError(t, h.exec.Execute(context.Background(), edge, cfg))
	assert.Equal(t, types.EdgeExecuted, edge.Status)
	assert.Equal(t, int32(1), consensus.calls.Load())
}

func TestEntryPausedGovernorRejects(t *testing.T) {
	h := newEntryHarness(t, nil, nil)
	h.governor.Pause()

	edge := testEdge("mintA")
	require.NoError(t, h.exec.Execute(context.Background(), edge, autonomousConfig()))
	assert.Equal(t, types.EdgeRejected, edge.Status)
	assert.Equal(t, string(types.RejectPaused), edge.Reason)
}
