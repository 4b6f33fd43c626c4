// internal/executor/entry.go
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quietlabs/edgebot/internal/broadcast"
	"github.com/quietlabs/edgebot/internal/capital"
	"github.com/quietlabs/edgebot/internal/position"
	"github.com/quietlabs/edgebot/internal/risk"
	"github.com/quietlabs/edgebot/internal/store"
	"github.com/quietlabs/edgebot/internal/types"
	"github.com/quietlabs/edgebot/internal/venue"
)

// EntryConfig tunes the entry path.
type EntryConfig struct {
	// ThreatThreshold blocks entries whose token threat score meets or
	// exceeds it. 0 disables the check even when a scorer is wired.
	ThreatThreshold float64
	// ConsensusTimeout bounds the external approval request.
	ConsensusTimeout time.Duration
	// EntrySlippagePercent is the buy-side slippage tolerance.
	EntrySlippagePercent float64
}

// DefaultEntryConfig returns the standard entry settings.
func DefaultEntryConfig() EntryConfig {
	return EntryConfig{
		ThreatThreshold:      0.7,
		ConsensusTimeout:     10 * time.Second,
		EntrySlippagePercent: 3.0,
	}
}

// EntryExecutor turns approved edges into open positions. Every rejection
// path leaves the edge terminal with a reason and spends nothing.
type EntryExecutor struct {
	config    EntryConfig
	positions *position.Manager
	router    *broadcast.Router
	capital   *capital.Manager
	governor  *risk.Governor
	consensus venue.ConsensusClient // may be nil when no directed strategies exist
	threat    venue.ThreatScorer    // may be nil
	logger    *zap.Logger
}

// NewEntryExecutor wires the entry path.
func NewEntryExecutor(
	config EntryConfig,
	positions *position.Manager,
	router *broadcast.Router,
	capitalMgr *capital.Manager,
	governor *risk.Governor,
	consensus venue.ConsensusClient,
	threat venue.ThreatScorer,
	logger *zap.Logger,
) *EntryExecutor {
	return &EntryExecutor{
		config:    config,
		positions: positions,
		router:    router,
		capital:   capitalMgr,
		governor:  governor,
		consensus: consensus,
		threat:    threat,
		logger:    logger.Named("entry_executor"),
	}
}

// Execute runs one edge through risk gating, optional consensus approval and
// the buy itself. The edge is mutated in place to its terminal status.
func (e *EntryExecutor) Execute(ctx context.Context, edge *types.Edge, cfg *store.StrategyConfig) error {
	if e.positions.HasOpenPair(edge.TokenMint, edge.StrategyID) {
		return e.reject(edge, types.RejectDuplicate, "position already open for this token and strategy")
	}

	if e.threat != nil && e.config.ThreatThreshold > 0 {
		score, err := e.threat.Score(ctx, edge.TokenMint)
		if err != nil {
			// No score means no safety evidence; fail closed.
			return e.reject(edge, types.RejectThreatScore, fmt.Sprintf("threat score unavailable: %v", err))
		}
		if score >= e.config.ThreatThreshold {
			return e.reject(edge, types.RejectThreatScore, fmt.Sprintf("threat score %.2f above threshold %.2f", score, e.config.ThreatThreshold))
		}
	}

	baseSize := cfg.Risk.MaxPositionSol
	if baseSize <= 0 {
		baseSize = e.governor.ConfigSnapshot().MaxPositionSize
	}

	decision := e.governor.CheckEntry(
		edge.StrategyID,
		edge.TokenMint,
		baseSize,
		edge.RiskScore,
		e.positions.ActiveCount(),
		e.capital.Available(edge.StrategyID),
	)
	if !decision.Allowed {
		return e.reject(edge, decision.Reason, string(decision.Reason))
	}
	size := decision.AdjustedSize

	if e.needsConsensus(cfg, size) {
		approved, reason := e.requestConsensus(ctx, edge, cfg, size)
		if !approved {
			return e.reject(edge, types.RejectNotApproved, reason)
		}
	}

	if err := edge.Transition(types.EdgeExecuting); err != nil {
		return err
	}

	positionID := uuid.New().String()
	if err := e.capital.Reserve(edge.StrategyID, positionID, size); err != nil {
		return e.reject(edge, types.RejectBudget, err.Error())
	}

	result, err := e.router.Submit(ctx, broadcast.Request{
		TokenMint:       edge.TokenMint,
		PoolID:          edge.PoolID,
		Venue:           edge.Venue,
		Side:            broadcast.SideBuy,
		AmountSol:       size,
		SlippagePercent: e.config.EntrySlippagePercent,
	})
	if err != nil {
		// Failed buys release everything and set no cooldown, so a transient
		// broadcast failure can be retried on the very next signal.
		e.capital.Release(edge.StrategyID, positionID)
		_ = edge.Transition(types.EdgeFailed)
		edge.Reason = err.Error()
		e.logger.Error("Entry submission failed",
			zap.String("edge", edge.ID),
			zap.String("token", edge.TokenMint),
			zap.Error(err))
		return err
	}

	entryPrice := result.Price
	if entryPrice <= 0 && result.FilledQuantity > 0 {
		entryPrice = result.SolDelta / result.FilledQuantity
	}

	pos := &position.Position{
		ID:              positionID,
		TokenMint:       edge.TokenMint,
		PoolID:          edge.PoolID,
		StrategyID:      edge.StrategyID,
		Venue:           edge.Venue,
		EntryAmount:     result.SolDelta,
		EntryQuantity:   result.FilledQuantity,
		EntryPrice:      entryPrice,
		EntryTime:       time.Now().UTC(),
		RemainingAmount: result.FilledQuantity,
		ExitConfig:      cfg.ExitConfig(),
		Status:          position.StatusOpen,
		AutoExit:        true,
	}
	if err := e.positions.Register(pos); err != nil {
		// The buy landed; the position must not vanish. Keep the reservation
		// and surface the failure loudly.
		_ = edge.Transition(types.EdgeFailed)
		edge.Reason = fmt.Sprintf("position registration failed after confirmed buy: %v", err)
		e.logger.Error("Position registration failed after confirmed buy",
			zap.String("edge", edge.ID),
			zap.String("token", edge.TokenMint),
			zap.Error(err))
		return err
	}

	e.governor.RecordEntry(edge.TokenMint)
	if err := edge.Transition(types.EdgeExecuted); err != nil {
		return err
	}

	e.logger.Info("Entry executed",
		zap.String("edge", edge.ID),
		zap.String("position", positionID),
		zap.String("token", edge.TokenMint),
		zap.Float64("size_sol", size),
		zap.Float64("entry_price", entryPrice),
		zap.String("route", result.Route))
	return nil
}

func (e *EntryExecutor) needsConsensus(cfg *store.StrategyConfig, size float64) bool {
	switch cfg.ExecutionMode {
	case types.ModeAgentDirected:
		return true
	case types.ModeHybrid:
		return cfg.Risk.HybridSizeThresholdSol > 0 && size > cfg.Risk.HybridSizeThresholdSol
	default:
		return false
	}
}

// requestConsensus asks the external service for approval. Any error or
// timeout is "not approved".
func (e *EntryExecutor) requestConsensus(ctx context.Context, edge *types.Edge, cfg *store.StrategyConfig, size float64) (bool, string) {
	if e.consensus == nil {
		return false, "consensus required but no client configured"
	}
	if err := edge.Transition(types.EdgePendingApproval); err != nil {
		return false, err.Error()
	}

	reqCtx, cancel := context.WithTimeout(ctx, e.config.ConsensusTimeout)
	defer cancel()

	decision, err := e.consensus.Decide(reqCtx, venue.EdgeSummary{
		EdgeID:          edge.ID,
		TokenMint:       edge.TokenMint,
		StrategyType:    cfg.StrategyType,
		EstimatedProfit: edge.EstimatedProfit,
		Confidence:      edge.Confidence,
		RiskScore:       edge.RiskScore,
		SizeSol:         size,
	})
	if err != nil {
		e.logger.Warn("Consensus request failed, treating as not approved",
			zap.String("edge", edge.ID),
			zap.Error(err))
		return false, fmt.Sprintf("consensus unavailable: %v", err)
	}
	if !decision.Approved {
		return false, decision.Reasoning
	}
	return true, ""
}

func (e *EntryExecutor) reject(edge *types.Edge, reason types.RejectReason, detail string) error {
	if err := edge.Reject(detail); err != nil {
		return err
	}
	e.logger.Info("Edge rejected",
		zap.String("edge", edge.ID),
		zap.String("token", edge.TokenMint),
		zap.String("reason", string(reason)),
		zap.String("detail", detail))
	return nil
}
