// internal/bot/events.go
package bot

import (
	"context"

	"github.com/quietlabs/edgebot/internal/events"
	"github.com/quietlabs/edgebot/internal/learning"
)

// ClosedTradePublisher bridges the learning sink chain to the event bus: every
// closed position recorded by the exit executor also becomes a PositionClosed
// event, without the executor knowing the bus exists.
type ClosedTradePublisher struct {
	bus *events.Bus
}

// NewClosedTradePublisher creates the bridge.
func NewClosedTradePublisher(bus *events.Bus) *ClosedTradePublisher {
	return &ClosedTradePublisher{bus: bus}
}

// RecordTrade implements learning.Recorder.
func (p *ClosedTradePublisher) RecordTrade(_ context.Context, rec learning.TradeRecord) error {
	return p.bus.Publish(events.NewPositionClosed(
		rec.PositionID, rec.StrategyID, rec.TokenMint, rec.RealizedPnl, rec.ExitReason))
}
