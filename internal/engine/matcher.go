// internal/engine/matcher.go
package engine

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quietlabs/edgebot/internal/signal"
	"github.com/quietlabs/edgebot/internal/store"
	"github.com/quietlabs/edgebot/internal/types"
)

// Matcher turns raw signals into edges by matching them against active
// strategy configurations. First match wins; a signal never produces more
// than one edge.
type Matcher struct {
	dedup  *dedupSet
	logger *zap.Logger
}

// NewMatcher creates a matcher with the default dedup capacity.
func NewMatcher(logger *zap.Logger) *Matcher {
	return &Matcher{
		dedup:  newDedupSet(defaultDedupLimit),
		logger: logger.Named("matcher"),
	}
}

// Match processes one scan cycle's signals against the given active configs
// and returns the edges produced. Expired and already-seen signals are
// dropped silently.
func (m *Matcher) Match(signals []signal.Signal, configs []*store.StrategyConfig, now time.Time) []types.Edge {
	var edges []types.Edge

	for _, sig := range signals {
		if sig.Expired(now) {
			m.logger.Debug("Signal expired before matching",
				zap.String("signal", sig.ID),
				zap.Time("expires_at", sig.ExpiresAt))
			continue
		}
		if m.dedup.Contains(sig.ID) {
			continue
		}

		for _, cfg := range configs {
			if !cfg.IsActive {
				continue
			}
			if cfg.StrategyType != string(sig.Type) {
				continue
			}
			if !cfg.AcceptsVenue(sig.Venue) {
				continue
			}
			if !m.accepts(sig, cfg) {
				continue
			}

			edge := buildEdge(sig, cfg, now)
			edges = append(edges, edge)
			m.dedup.Add(sig.ID)

			m.logger.Info("Edge detected",
				zap.String("edge", edge.ID),
				zap.String("signal", sig.ID),
				zap.String("strategy", cfg.ID),
				zap.String("token", sig.TokenMint),
				zap.Float64("confidence", edge.Confidence),
				zap.Float64("risk_score", edge.RiskScore))
			break
		}
	}

	return edges
}

// accepts applies the strategy-specific predicate for a config. This is the
// one centralized switch on signal type; everything else stays behind the
// Strategy interface.
func (m *Matcher) accepts(sig signal.Signal, cfg *store.StrategyConfig) bool {
	if sig.Confidence < cfg.Risk.MinConfidence {
		return false
	}

	switch sig.Type {
	case signal.TypeGraduation:
		progress, ok := metadataFloat(sig, "progress")
		if !ok {
			return false
		}
		return progress >= cfg.Risk.MinProgressPercent
	case signal.TypeCopyTrade:
		trust, ok := metadataFloat(sig, "trust_score")
		if !ok {
			return false
		}
		return trust >= cfg.Risk.MinTrustScore
	default:
		return true
	}
}

func buildEdge(sig signal.Signal, cfg *store.StrategyConfig, now time.Time) types.Edge {
	return types.Edge{
		ID:              uuid.New().String(),
		SignalID:        sig.ID,
		StrategyID:      cfg.ID,
		TokenMint:       sig.TokenMint,
		PoolID:          sig.PoolID,
		Venue:           sig.Venue,
		Atomicity:       types.NonAtomic,
		EstimatedProfit: sig.EstimatedProfitBps / 100,
		Confidence:      sig.Confidence,
		RiskScore:       (1 - sig.Confidence) * 100,
		Status:          types.EdgeDetected,
		DetectedAt:      now,
	}
}

func metadataFloat(sig signal.Signal, key string) (float64, bool) {
	raw, ok := sig.Metadata[key]
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// DedupSize exposes the dedup set size for stats.
func (m *Matcher) DedupSize() int {
	return m.dedup.Len()
}
