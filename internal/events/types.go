// internal/events/types.go
package events

import (
	"time"

	"github.com/quietlabs/edgebot/internal/types"
)

// EventType identifies a lifecycle event class.
type EventType string

const (
	EdgeDetected EventType = "edge.detected"
	EdgeExecuted EventType = "edge.executed"
	EdgeRejected EventType = "edge.rejected"
	EdgeFailed   EventType = "edge.failed"

	PositionOpened EventType = "position.opened"
	PositionClosed EventType = "position.closed"

	TradingPaused  EventType = "trading.paused"
	TradingResumed EventType = "trading.resumed"
)

// Event is the base interface for all bus events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent carries the common fields.
type BaseEvent struct {
	EventType EventType
	EventTime time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.EventTime }

func base(t EventType) BaseEvent {
	return BaseEvent{EventType: t, EventTime: time.Now().UTC()}
}

// EdgeEvent is emitted at every edge status change worth observing.
type EdgeEvent struct {
	BaseEvent
	EdgeID     string
	StrategyID string
	TokenMint  string
	Status     types.EdgeStatus
	Reason     string
}

// NewEdgeEvent maps an edge's terminal status to its event type.
func NewEdgeEvent(edge types.Edge) EdgeEvent {
	var t EventType
	switch edge.Status {
	case types.EdgeExecuted:
		t = EdgeExecuted
	case types.EdgeRejected:
		t = EdgeRejected
	case types.EdgeFailed:
		t = EdgeFailed
	default:
		t = EdgeDetected
	}
	return EdgeEvent{
		BaseEvent:  base(t),
		EdgeID:     edge.ID,
		StrategyID: edge.StrategyID,
		TokenMint:  edge.TokenMint,
		Status:     edge.Status,
		Reason:     edge.Reason,
	}
}

// PositionEvent is emitted when a position opens or closes.
type PositionEvent struct {
	BaseEvent
	PositionID  string
	StrategyID  string
	TokenMint   string
	RealizedPnl float64
	ExitReason  string
}

// NewPositionOpened builds the open event.
func NewPositionOpened(positionID, strategyID, tokenMint string) PositionEvent {
	return PositionEvent{
		BaseEvent:  base(PositionOpened),
		PositionID: positionID,
		StrategyID: strategyID,
		TokenMint:  tokenMint,
	}
}

// NewPositionClosed builds the close event.
func NewPositionClosed(positionID, strategyID, tokenMint string, realizedPnl float64, exitReason string) PositionEvent {
	return PositionEvent{
		BaseEvent:   base(PositionClosed),
		PositionID:  positionID,
		StrategyID:  strategyID,
		TokenMint:   tokenMint,
		RealizedPnl: realizedPnl,
		ExitReason:  exitReason,
	}
}

// ControlEvent is emitted on operator pause/resume.
type ControlEvent struct {
	BaseEvent
	Reason string
}

// NewControlEvent builds a pause or resume event.
func NewControlEvent(t EventType, reason string) ControlEvent {
	return ControlEvent{BaseEvent: base(t), Reason: reason}
}
