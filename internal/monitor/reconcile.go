// internal/monitor/reconcile.go
package monitor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/quietlabs/edgebot/internal/position"
	"github.com/quietlabs/edgebot/internal/types"
)

// BalanceSource queries the external source of truth for token holdings.
type BalanceSource interface {
	Balance(ctx context.Context, tokenMint string) (float64, error)
}

// Reconciler periodically checks tracked positions against external
// balances. It only ever shrinks positions and routes closes through the
// exit queue at low urgency; anything already in the execution path wins.
type Reconciler struct {
	positions *position.Manager
	balances  BalanceSource
	sink      CommandSink
	logger    *zap.Logger
}

// NewReconciler wires the reconciliation pass.
func NewReconciler(positions *position.Manager, balances BalanceSource, sink CommandSink, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		positions: positions,
		balances:  balances,
		sink:      sink,
		logger:    logger.Named("reconcile"),
	}
}

// Reconcile runs one pass over all managed positions.
func (r *Reconciler) Reconcile(ctx context.Context) {
	for _, pos := range r.positions.Managed() {
		balanceCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		balance, err := r.balances.Balance(balanceCtx, pos.TokenMint)
		cancel()
		if err != nil {
			r.logger.Warn("Balance query failed",
				zap.String("position", pos.ID),
				zap.String("token", pos.TokenMint),
				zap.Error(err))
			continue
		}

		adjusted, changed, err := r.positions.AdjustRemaining(pos.ID, balance)
		if err != nil || !changed {
			continue
		}

		if adjusted.RemainingAmount <= 0 {
			// The tokens are gone; close the book entry via the queue so the
			// executor stays the single point of status change.
			cmd := types.NewExitCommand(adjusted.ID, types.ExitReconciliation, 1, "reconcile")
			if err := r.sink.Push(cmd); err != nil {
				r.logger.Error("Reconciliation close rejected by queue",
					zap.String("position", adjusted.ID),
					zap.Error(err))
			}
			continue
		}

		r.logger.Info("Position shrunk to external balance",
			zap.String("position", adjusted.ID),
			zap.Float64("remaining", adjusted.RemainingAmount))
	}
}
