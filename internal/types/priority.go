// internal/types/priority.go
package types

// Urgency orders exit commands in the executor queue. Higher is serviced first.
type Urgency int

const (
	UrgencyLow Urgency = iota
	UrgencyNormal
	UrgencyHigh
	UrgencyCritical
)

func (u Urgency) String() string {
	switch u {
	case UrgencyLow:
		return "low"
	case UrgencyNormal:
		return "normal"
	case UrgencyHigh:
		return "high"
	case UrgencyCritical:
		return "critical"
	}
	return "unknown"
}

// ExitReason identifies which rule produced an exit command.
type ExitReason string

const (
	ExitEmergency         ExitReason = "emergency"
	ExitStopLoss          ExitReason = "stop_loss"
	ExitTakeProfit        ExitReason = "take_profit"
	ExitPartialTakeProfit ExitReason = "partial_take_profit"
	ExitTrailingStop      ExitReason = "trailing_stop"
	ExitPeakDrop          ExitReason = "peak_drop"
	ExitMomentumReversal  ExitReason = "momentum_reversal"
	ExitMomentumDecay     ExitReason = "momentum_decay"
	ExitTimeLimit         ExitReason = "time_limit"
	ExitManual            ExitReason = "manual"
	ExitReconciliation    ExitReason = "reconciliation"
)

// Urgency maps an exit reason to its queue urgency. The emergency floor and
// reversals jump the queue; reconciliation-driven closes never preempt
// anything already in flight.
func (r ExitReason) Urgency() Urgency {
	switch r {
	case ExitEmergency:
		return UrgencyCritical
	case ExitStopLoss, ExitMomentumReversal, ExitManual:
		return UrgencyHigh
	case ExitTakeProfit, ExitPartialTakeProfit, ExitTrailingStop, ExitPeakDrop, ExitMomentumDecay:
		return UrgencyNormal
	case ExitTimeLimit, ExitReconciliation:
		return UrgencyLow
	}
	return UrgencyNormal
}
