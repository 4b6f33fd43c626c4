// internal/types/types.go
package types

// VenueType identifies the class of market a signal or config refers to.
type VenueType string

const (
	VenueBondingCurve VenueType = "bonding_curve"
	VenueDEX          VenueType = "dex"
)

// ExecutionMode controls whether edges execute without external approval.
type ExecutionMode string

const (
	// ModeAutonomous executes approved edges immediately.
	ModeAutonomous ExecutionMode = "autonomous"
	// ModeAgentDirected requires an external consensus decision per edge.
	ModeAgentDirected ExecutionMode = "agent_directed"
	// ModeHybrid requires consensus only above the strategy's size threshold;
	// below it behaves autonomously.
	ModeHybrid ExecutionMode = "hybrid"
)

// Atomicity describes how much of a trade's profit is protected.
type Atomicity string

const (
	FullyAtomic     Atomicity = "fully_atomic"
	PartiallyAtomic Atomicity = "partially_atomic"
	NonAtomic       Atomicity = "non_atomic"
)

// RejectReason enumerates pre-trade rejection causes.
type RejectReason string

const (
	RejectNone           RejectReason = ""
	RejectDailyLossLimit RejectReason = "daily_loss_limit"
	RejectBudget         RejectReason = "insufficient_budget"
	RejectConcurrency    RejectReason = "max_concurrent_positions"
	RejectCooldown       RejectReason = "cooldown_after_loss"
	RejectPaused         RejectReason = "paused"
	RejectThreatScore    RejectReason = "threat_score"
	RejectNotApproved    RejectReason = "not_approved"
	RejectDuplicate      RejectReason = "duplicate_position"
)
