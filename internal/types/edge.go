// internal/types/edge.go
package types

import (
	"fmt"
	"time"
)

// EdgeStatus is the lifecycle state of an Edge.
type EdgeStatus string

const (
	EdgeDetected        EdgeStatus = "detected"
	EdgePendingApproval EdgeStatus = "pending_approval"
	EdgeExecuting       EdgeStatus = "executing"
	EdgeExecuted        EdgeStatus = "executed"
	EdgeFailed          EdgeStatus = "failed"
	EdgeRejected        EdgeStatus = "rejected"
	EdgeExpired         EdgeStatus = "expired"
)

// Terminal reports whether no further transitions are allowed from s.
func (s EdgeStatus) Terminal() bool {
	switch s {
	case EdgeExecuted, EdgeFailed, EdgeRejected, EdgeExpired:
		return true
	}
	return false
}

// CanTransition reports whether s -> to is a legal status transition.
func (s EdgeStatus) CanTransition(to EdgeStatus) bool {
	switch s {
	case EdgeDetected:
		switch to {
		case EdgePendingApproval, EdgeExecuting, EdgeRejected, EdgeExpired:
			return true
		}
	case EdgePendingApproval:
		switch to {
		case EdgeExecuting, EdgeRejected, EdgeExpired:
			return true
		}
	case EdgeExecuting:
		switch to {
		case EdgeExecuted, EdgeFailed:
			return true
		}
	}
	return false
}

// Edge is a Signal validated against a strategy configuration.
type Edge struct {
	ID              string
	SignalID        string
	StrategyID      string
	TokenMint       string
	PoolID          string
	Venue           VenueType
	Atomicity       Atomicity
	EstimatedProfit float64 // expected profit in percent of position size
	Confidence      float64
	RiskScore       float64 // 0-100, scales position size down
	Status          EdgeStatus
	Reason          string // rejection/failure reason, empty otherwise
	DetectedAt      time.Time
}

// Transition moves the edge to the given status, validating the state machine.
func (e *Edge) Transition(to EdgeStatus) error {
	if !e.Status.CanTransition(to) {
		return fmt.Errorf("illegal edge transition %s -> %s (edge %s)", e.Status, to, e.ID)
	}
	e.Status = to
	return nil
}

// Reject moves the edge to rejected with a reason, from any non-terminal state.
func (e *Edge) Reject(reason string) error {
	if e.Status.Terminal() {
		return fmt.Errorf("edge %s already terminal (%s)", e.ID, e.Status)
	}
	e.Status = EdgeRejected
	e.Reason = reason
	return nil
}
