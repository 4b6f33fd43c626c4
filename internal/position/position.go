// internal/position/position.go
package position

import (
	"time"

	"github.com/quietlabs/edgebot/internal/types"
)

// Status is the lifecycle state of a position.
type Status string

const (
	StatusOpen            Status = "open"
	StatusPartiallyExited Status = "partially_exited"
	StatusPendingExit     Status = "pending_exit"
	StatusClosed          Status = "closed"
	StatusOrphaned        Status = "orphaned"
)

// Terminal reports whether the position has left auto-management for good.
func (s Status) Terminal() bool {
	return s == StatusClosed || s == StatusOrphaned
}

// CanTransition reports whether s -> to is legal. PendingExit is re-entrant:
// a failed exit whose balance check shows tokens still held returns the
// position to its prior managed state.
func (s Status) CanTransition(to Status) bool {
	switch s {
	case StatusOpen:
		switch to {
		case StatusPartiallyExited, StatusPendingExit, StatusClosed, StatusOrphaned:
			return true
		}
	case StatusPartiallyExited:
		switch to {
		case StatusPendingExit, StatusClosed:
			return true
		}
	case StatusPendingExit:
		switch to {
		case StatusClosed, StatusOpen, StatusPartiallyExited, StatusOrphaned:
			return true
		}
	}
	return false
}

// MomentumData is recomputed every monitor tick from the rolling price
// window; it is never persisted as authoritative state.
type MomentumData struct {
	VelocityPctPerMin float64 // price velocity in percent per minute
	Score             float64 // -100..100
	DecayCount        int     // consecutive ticks of weakening momentum
}

// Position is the central mutable entity of the lifecycle. All mutation goes
// through the Manager; everything here is plain data.
type Position struct {
	ID         string
	TokenMint  string
	PoolID     string
	StrategyID string
	Venue      types.VenueType

	EntryAmount   float64 // SOL spent at entry
	EntryQuantity float64 // tokens received at entry
	EntryPrice    float64
	EntryTime     time.Time

	CurrentPrice    float64
	RemainingAmount float64 // tokens still held; monotonically non-increasing
	HighWaterMark   float64 // best price seen since entry
	PeakPnlPercent  float64 // best unrealized PnL seen since entry

	UnrealizedPnlPercent float64
	RealizedPnl          float64 // SOL

	Momentum     MomentumData
	ExitConfig   types.ExitConfig
	Status       Status
	AutoExit     bool
	TiersTaken   int // partial exit tiers already executed
	LastExitTime time.Time
}

// HoldDuration is how long the position has been held at the given instant.
func (p *Position) HoldDuration(now time.Time) time.Duration {
	return now.Sub(p.EntryTime)
}
