// internal/venue/venue.go
package venue

import (
	"context"
	"time"

	"github.com/quietlabs/edgebot/internal/types"
)

// TokenMetrics is one token's state inside a venue snapshot. Fields that a
// data source may omit are pointers; consumers must tolerate nil.
type TokenMetrics struct {
	Mint             string          `json:"mint"`
	PoolID           string          `json:"pool_id"`
	Venue            types.VenueType `json:"venue"`
	PriceSol         float64         `json:"price_sol"`
	ProgressPercent  float64         `json:"progress_percent"` // bonding-curve progress toward graduation
	VolumeSol5m      float64         `json:"volume_sol_5m"`
	PriceChange5mPct float64         `json:"price_change_5m_pct"`
	HolderCount      *int            `json:"holder_count,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// Snapshot is one poll of a venue's market state.
type Snapshot struct {
	Venue     types.VenueType `json:"venue"`
	Tokens    []TokenMetrics  `json:"tokens"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// SnapshotProvider supplies venue snapshots. Implementations live outside the
// core; failures must surface as errors, not panics.
type SnapshotProvider interface {
	Venue() types.VenueType
	Fetch(ctx context.Context) (*Snapshot, error)
}

// EdgeSummary is what the consensus service sees when asked to approve an edge.
type EdgeSummary struct {
	EdgeID          string  `json:"edge_id"`
	TokenMint       string  `json:"token_mint"`
	StrategyType    string  `json:"strategy_type"`
	EstimatedProfit float64 `json:"estimated_profit"`
	Confidence      float64 `json:"confidence"`
	RiskScore       float64 `json:"risk_score"`
	SizeSol         float64 `json:"size_sol"`
}

// Decision is the consensus service's verdict on an edge.
type Decision struct {
	Approved   bool    `json:"approved"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// ConsensusClient requests an external trade approval. Callers must treat any
// error or timeout as "not approved".
type ConsensusClient interface {
	Decide(ctx context.Context, summary EdgeSummary) (Decision, error)
}

// ThreatScorer returns a 0-1 risk score for a token; higher is more dangerous.
type ThreatScorer interface {
	Score(ctx context.Context, tokenMint string) (float64, error)
}
