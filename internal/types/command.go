// internal/types/command.go
package types

import "time"

// ExitCommand is an intent to reduce or close a position. Produced by the
// monitor, manual triggers and reconciliation; consumed only by the position
// executor.
type ExitCommand struct {
	PositionID  string
	Reason      ExitReason
	Urgency     Urgency
	Fraction    float64 // 0..1 of remaining amount; 1 exits everything
	Source      string  // producer tag for the audit trail
	RequestedAt time.Time
}

// NewExitCommand builds a command with urgency derived from the reason.
func NewExitCommand(positionID string, reason ExitReason, fraction float64, source string) ExitCommand {
	if fraction <= 0 || fraction > 1 {
		fraction = 1
	}
	return ExitCommand{
		PositionID:  positionID,
		Reason:      reason,
		Urgency:     reason.Urgency(),
		Fraction:    fraction,
		Source:      source,
		RequestedAt: time.Now().UTC(),
	}
}
