// internal/bot/service.go
package bot

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/quietlabs/edgebot/internal/capital"
	"github.com/quietlabs/edgebot/internal/events"
	"github.com/quietlabs/edgebot/internal/executor"
	"github.com/quietlabs/edgebot/internal/position"
	"github.com/quietlabs/edgebot/internal/risk"
	"github.com/quietlabs/edgebot/internal/store"
	"github.com/quietlabs/edgebot/internal/strategy"
	"github.com/quietlabs/edgebot/internal/types"
)

// Service is the operator-facing control surface: pausing, strategy toggles,
// manual exits and risk limit updates. It changes state through the same
// components the pipeline uses, never around them.
type Service struct {
	store     store.Store
	registry  *strategy.Registry
	positions *position.Manager
	capital   *capital.Manager
	governor  *risk.Governor
	queue     *executor.ExitQueue
	bus       *events.Bus
	logger    *zap.Logger
}

// NewService wires the control surface.
func NewService(
	st store.Store,
	registry *strategy.Registry,
	positions *position.Manager,
	capitalMgr *capital.Manager,
	governor *risk.Governor,
	queue *executor.ExitQueue,
	bus *events.Bus,
	logger *zap.Logger,
) *Service {
	return &Service{
		store:     st,
		registry:  registry,
		positions: positions,
		capital:   capitalMgr,
		governor:  governor,
		queue:     queue,
		bus:       bus,
		logger:    logger.Named("service"),
	}
}

// PauseAll stops new entries. Open positions keep being monitored and exited.
func (s *Service) PauseAll(reason string) {
	s.governor.Pause()
	_ = s.bus.Publish(events.NewControlEvent(events.TradingPaused, reason))
	s.logger.Warn("Trading paused", zap.String("reason", reason))
}

// Resume re-enables entries, clearing a drawdown pause as well.
func (s *Service) Resume() {
	s.governor.Resume()
	_ = s.bus.Publish(events.NewControlEvent(events.TradingResumed, "operator resume"))
	s.logger.Info("Trading resumed")
}

// Paused reports whether entries are currently blocked.
func (s *Service) Paused() bool {
	return s.governor.Paused()
}

// SetStrategyActive toggles a persisted strategy config and rebalances
// per-strategy budgets over the remaining active set.
func (s *Service) SetStrategyActive(ctx context.Context, configID string, active bool) error {
	if err := s.store.SetStrategyConfigActive(ctx, configID, active); err != nil {
		return err
	}

	configs, err := s.store.ListStrategyConfigs(ctx, true)
	if err != nil {
		return err
	}
	ids := make([]string, len(configs))
	for i, cfg := range configs {
		ids[i] = cfg.ID
	}
	s.capital.Rebalance(ids)

	s.logger.Info("Strategy config toggled",
		zap.String("config", configID),
		zap.Bool("active", active),
		zap.Int("active_configs", len(ids)))
	return nil
}

// SetAutoExit toggles automatic exit evaluation for one position. With it
// off the monitor still refreshes prices but fires no rules.
func (s *Service) SetAutoExit(positionID string, enabled bool) error {
	return s.positions.SetAutoExit(positionID, enabled)
}

// TriggerManualExit queues an operator-initiated exit for the given fraction
// of the position. It goes through the same queue as rule-triggered exits.
func (s *Service) TriggerManualExit(positionID string, fraction float64) error {
	if _, ok := s.positions.Get(positionID); !ok {
		return fmt.Errorf("position %s not found", positionID)
	}
	cmd := types.NewExitCommand(positionID, types.ExitManual, fraction, "operator")
	if err := s.queue.Push(cmd); err != nil {
		return fmt.Errorf("queue manual exit: %w", err)
	}
	s.logger.Info("Manual exit queued",
		zap.String("position", positionID),
		zap.Float64("fraction", cmd.Fraction))
	return nil
}

// UpdateRiskConfig swaps the governor's limits at runtime.
func (s *Service) UpdateRiskConfig(cfg risk.Config) {
	s.governor.UpdateConfig(cfg)
	s.logger.Info("Risk limits updated",
		zap.Float64("max_position_size", cfg.MaxPositionSize),
		zap.Float64("daily_loss_limit", cfg.DailyLossLimit),
		zap.Int("max_concurrent", cfg.MaxConcurrentPositions))
}

// Status is a point-in-time operational snapshot.
type Status struct {
	Paused          bool     `json:"paused"`
	OpenPositions   int      `json:"open_positions"`
	ExitQueueDepth  int      `json:"exit_queue_depth"`
	DailyLoss       float64  `json:"daily_loss"`
	ReservedCapital float64  `json:"reserved_capital"`
	TotalCapital    float64  `json:"total_capital"`
	Strategies      []string `json:"strategies"`
}

// Status reports the current operational state.
func (s *Service) Status() Status {
	return Status{
		Paused:          s.governor.Paused(),
		OpenPositions:   s.positions.ActiveCount(),
		ExitQueueDepth:  s.queue.Len(),
		DailyLoss:       s.governor.DailyLoss(),
		ReservedCapital: s.capital.TotalReserved(),
		TotalCapital:    s.capital.Total(),
		Strategies:      s.registry.List(),
	}
}
