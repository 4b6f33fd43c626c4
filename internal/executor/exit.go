// internal/executor/exit.go
package executor

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/quietlabs/edgebot/internal/broadcast"
	"github.com/quietlabs/edgebot/internal/capital"
	"github.com/quietlabs/edgebot/internal/learning"
	"github.com/quietlabs/edgebot/internal/position"
	"github.com/quietlabs/edgebot/internal/risk"
	"github.com/quietlabs/edgebot/internal/types"
)

// dustBalance is the token amount below which a wallet is considered empty.
const dustBalance = 1e-6

// ExitExecutor is the single consumer of exit commands. It owns every status
// change that involves a market transaction, so the monitor and
// reconciliation never race an in-flight sell.
type ExitExecutor struct {
	queue     *ExitQueue
	positions *position.Manager
	router    *broadcast.Router
	capital   *capital.Manager
	governor  *risk.Governor
	recorder  learning.Recorder
	slippage  types.SlippageConfig
	logger    *zap.Logger
}

// NewExitExecutor wires the exit consumer.
func NewExitExecutor(
	queue *ExitQueue,
	positions *position.Manager,
	router *broadcast.Router,
	capitalMgr *capital.Manager,
	governor *risk.Governor,
	recorder learning.Recorder,
	logger *zap.Logger,
) *ExitExecutor {
	return &ExitExecutor{
		queue:     queue,
		positions: positions,
		router:    router,
		capital:   capitalMgr,
		governor:  governor,
		recorder:  recorder,
		slippage:  types.DefaultSlippageConfig(),
		logger:    logger.Named("exit_executor"),
	}
}

// Run consumes commands until the context ends.
func (e *ExitExecutor) Run(ctx context.Context) error {
	e.logger.Info("Exit executor started")
	for {
		cmd, err := e.queue.Pop(ctx)
		if err != nil {
			e.logger.Info("Exit executor stopped")
			return err
		}
		e.Process(ctx, cmd)
	}
}

// Process executes one exit command end to end. Exported for tests; the run
// loop is the only production caller.
func (e *ExitExecutor) Process(ctx context.Context, cmd types.ExitCommand) {
	pos, ok := e.positions.Get(cmd.PositionID)
	if !ok {
		e.logger.Debug("Exit command for unknown position, dropping",
			zap.String("position", cmd.PositionID))
		return
	}
	if pos.Status.Terminal() {
		return
	}
	if pos.RemainingAmount <= dustBalance {
		// Nothing left to sell (reconciliation zeroed the balance); close the
		// book entry without touching the market.
		if err := e.positions.MarkPendingExit(cmd.PositionID); err != nil {
			e.logger.Warn("Cannot take drained position for close",
				zap.String("position", cmd.PositionID),
				zap.Error(err))
			return
		}
		e.settle(ctx, cmd, 0, 0, true)
		return
	}

	if err := e.positions.MarkPendingExit(cmd.PositionID); err != nil {
		e.logger.Warn("Cannot take position for exit",
			zap.String("position", cmd.PositionID),
			zap.Error(err))
		return
	}

	quantity := pos.RemainingAmount * cmd.Fraction
	full := cmd.Fraction >= 1 || quantity >= pos.RemainingAmount
	tolerance := e.slippage.Tolerance(pos.UnrealizedPnlPercent, cmd.Urgency)

	e.logger.Info("Executing exit",
		zap.String("position", cmd.PositionID),
		zap.String("reason", string(cmd.Reason)),
		zap.String("urgency", cmd.Urgency.String()),
		zap.Float64("quantity", quantity),
		zap.Float64("slippage_percent", tolerance))

	result, err := e.router.Submit(ctx, broadcast.Request{
		TokenMint:       pos.TokenMint,
		PoolID:          pos.PoolID,
		Venue:           pos.Venue,
		Side:            broadcast.SideSell,
		TokenQuantity:   quantity,
		SlippagePercent: tolerance,
	})

	switch {
	case err == nil:
		e.settle(ctx, cmd, result.FilledQuantity, result.SolDelta, full)

	case errors.Is(err, broadcast.ErrSubmitTimeout):
		e.resolveAmbiguous(ctx, cmd, pos, quantity, full)

	default:
		e.logger.Error("Exit submission failed on all routes",
			zap.String("position", cmd.PositionID),
			zap.Error(err))
		e.resolveAmbiguous(ctx, cmd, pos, quantity, full)
	}
}

// resolveAmbiguous checks the wallet balance to decide whether a failed or
// timed-out sell actually landed. An empty wallet means the sell went
// through and confirmation was lost; tokens still held put the position back
// under management so the monitor re-emits on the next tick.
func (e *ExitExecutor) resolveAmbiguous(ctx context.Context, cmd types.ExitCommand, pos position.Position, quantity float64, full bool) {
	balanceCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	balance, err := e.router.Balance(balanceCtx, pos.TokenMint)
	if err != nil {
		e.logger.Error("Balance check failed after ambiguous exit, returning position to management",
			zap.String("position", cmd.PositionID),
			zap.Error(err))
		e.returnToManagement(cmd.PositionID)
		return
	}

	expectedAfter := pos.RemainingAmount - quantity
	if balance <= expectedAfter+dustBalance {
		// The sell landed. Estimate proceeds from the last observed price.
		sold := pos.RemainingAmount - balance
		estimated := sold * pos.CurrentPrice
		e.logger.Warn("Inferred exit success from balance",
			zap.String("position", cmd.PositionID),
			zap.Float64("balance", balance),
			zap.Float64("estimated_sol", estimated))
		e.settle(ctx, cmd, sold, estimated, full || balance <= dustBalance)
		return
	}

	e.returnToManagement(cmd.PositionID)
}

func (e *ExitExecutor) returnToManagement(positionID string) {
	if err := e.positions.ReturnFromPendingExit(positionID); err != nil {
		e.logger.Error("Failed to return position to management",
			zap.String("position", positionID),
			zap.Error(err))
	}
}

// settle applies a confirmed (or inferred) sell to the position, releases
// capital and, on close, records the outcome.
func (e *ExitExecutor) settle(ctx context.Context, cmd types.ExitCommand, soldQuantity, solReceived float64, full bool) {
	pos, err := e.positions.ApplyExit(cmd.PositionID, soldQuantity, solReceived, full)
	if err != nil {
		e.logger.Error("Failed to apply exit",
			zap.String("position", cmd.PositionID),
			zap.Error(err))
		return
	}

	if pos.Status == position.StatusClosed {
		e.capital.Release(pos.StrategyID, pos.ID)
		e.governor.RecordOutcome(pos.StrategyID, pos.RealizedPnl)
		e.record(ctx, pos, cmd.Reason)
		if err := e.positions.Remove(pos.ID); err != nil {
			e.logger.Warn("Failed to remove closed position",
				zap.String("position", pos.ID),
				zap.Error(err))
		}
		e.logger.Info("Position closed",
			zap.String("position", pos.ID),
			zap.String("reason", string(cmd.Reason)),
			zap.Float64("realized_pnl", pos.RealizedPnl))
		return
	}

	// Partial exit: give back the principal share of the reservation.
	if pos.EntryQuantity > 0 {
		principalShare := soldQuantity / pos.EntryQuantity * pos.EntryAmount
		e.capital.ReleasePartial(pos.StrategyID, pos.ID, principalShare)
	}
	e.logger.Info("Partial exit settled",
		zap.String("position", pos.ID),
		zap.String("reason", string(cmd.Reason)),
		zap.Float64("remaining", pos.RemainingAmount))
}

// record emits the learning row for a closed position. Failures here are
// logged and swallowed; the learning sink must never block trading.
func (e *ExitExecutor) record(ctx context.Context, pos position.Position, reason types.ExitReason) {
	if e.recorder == nil {
		return
	}
	rec := learning.TradeRecord{
		PositionID:  pos.ID,
		StrategyID:  pos.StrategyID,
		TokenMint:   pos.TokenMint,
		EntryAmount: pos.EntryAmount,
		EntryPrice:  pos.EntryPrice,
		ExitPrice:   pos.CurrentPrice,
		RealizedPnl: pos.RealizedPnl,
		ExitReason:  string(reason),
		HoldSeconds: pos.HoldDuration(time.Now().UTC()).Seconds(),
		FinalStatus: string(pos.Status),
		OpenedAt:    pos.EntryTime,
		ClosedAt:    time.Now().UTC(),
	}
	if err := e.recorder.RecordTrade(ctx, rec); err != nil {
		e.logger.Warn("Learning record failed",
			zap.String("position", pos.ID),
			zap.Error(err))
	}
}
