// internal/signal/signal.go
package signal

import (
	"time"

	"github.com/google/uuid"
	"github.com/quietlabs/edgebot/internal/types"
)

// Type identifies the opportunity shape a signal describes.
type Type string

const (
	TypeGraduation Type = "graduation"
	TypeCopyTrade  Type = "copy_trade"
	TypeMigration  Type = "migration"
)

// Signal is a raw, time-bounded detection of a possible opportunity.
// Immutable once created.
type Signal struct {
	ID                 string
	Type               Type
	Venue              types.VenueType
	TokenMint          string
	PoolID             string
	EstimatedProfitBps float64
	Confidence         float64 // 0..1
	Metadata           map[string]string
	DetectedAt         time.Time
	ExpiresAt          time.Time
}

// New builds a signal with a generated id and the given time-to-live.
func New(typ Type, venue types.VenueType, tokenMint, poolID string, ttl time.Duration) Signal {
	now := time.Now().UTC()
	return Signal{
		ID:         uuid.New().String(),
		Type:       typ,
		Venue:      venue,
		TokenMint:  tokenMint,
		PoolID:     poolID,
		DetectedAt: now,
		ExpiresAt:  now.Add(ttl),
	}
}

// Expired reports whether the signal is dead at the given instant.
func (s Signal) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
