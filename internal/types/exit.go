// internal/types/exit.go
package types

import "time"

// PartialExitTier sells a fraction of the remaining position when unrealized
// profit reaches the trigger.
type PartialExitTier struct {
	TriggerPercent float64 `json:"trigger_percent"`
	Fraction       float64 `json:"fraction"` // 0..1 of remaining amount
}

// ExitConfig is copied from the owning strategy config onto a position at
// entry and is immutable for the position's lifetime. Momentum-driven target
// adjustments are derived at evaluation time, never written back here.
type ExitConfig struct {
	StopLossPercent     float64           `json:"stop_loss_percent"`     // positive, e.g. 10 = exit at -10%
	TakeProfitPercent   float64           `json:"take_profit_percent"`   // e.g. 15 = exit at +15%
	TrailingStopPercent float64           `json:"trailing_stop_percent"` // drop from high-water mark; 0 disables
	TimeLimit           time.Duration     `json:"time_limit"`            // 0 disables
	PartialExitTiers    []PartialExitTier `json:"partial_exit_tiers,omitempty"`
	MomentumAdaptive    bool              `json:"momentum_adaptive"`
}

// DefaultExitConfig returns conservative exit defaults.
func DefaultExitConfig() ExitConfig {
	return ExitConfig{
		StopLossPercent:     10,
		TakeProfitPercent:   15,
		TrailingStopPercent: 8,
		TimeLimit:           30 * time.Minute,
	}
}
