// internal/strategy/strategy.go
package strategy

import (
	"context"

	"github.com/quietlabs/edgebot/internal/signal"
	"github.com/quietlabs/edgebot/internal/types"
	"github.com/quietlabs/edgebot/internal/venue"
)

// Strategy converts market state into signals. Two shapes are supported:
// poll-driven strategies read the snapshot handed to each Scan call;
// event-buffered strategies drain an internal buffer fed by a push source and
// ignore the snapshot argument. Both present the same Scan contract so the
// downstream pipeline stays single-shaped.
type Strategy interface {
	// TypeKey is the join key against StrategyConfig.StrategyType. A config
	// whose strategy_type does not match any registered strategy silently
	// produces no edges.
	TypeKey() string
	AcceptedVenues() []types.VenueType
	Scan(ctx context.Context, snap *venue.Snapshot) []signal.Signal
	Active() bool
	SetActive(active bool)
}

// EventStrategy is implemented by event-buffered strategies that accept
// pushed events between scan cycles.
type EventStrategy interface {
	Strategy
	Enqueue(ev WalletEvent)
}
