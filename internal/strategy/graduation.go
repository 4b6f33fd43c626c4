// internal/strategy/graduation.go
package strategy

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/quietlabs/edgebot/internal/signal"
	"github.com/quietlabs/edgebot/internal/types"
	"github.com/quietlabs/edgebot/internal/venue"
	"go.uber.org/zap"
	"time"
)

// GraduationConfig tunes the bonding-curve graduation strategy.
type GraduationConfig struct {
	// MinProgressPercent is the lowest curve progress worth signaling.
	MinProgressPercent float64
	// MaxProgressPercent caps how close to graduation an entry still makes
	// sense; past it the pool migrates before an exit is realistic.
	MaxProgressPercent float64
	// MinVolumeSol5m filters dead curves.
	MinVolumeSol5m float64
	// SignalTTL bounds how long a detection stays actionable.
	SignalTTL time.Duration
}

// DefaultGraduationConfig returns the standard graduation thresholds.
func DefaultGraduationConfig() GraduationConfig {
	return GraduationConfig{
		MinProgressPercent: 70,
		MaxProgressPercent: 95,
		MinVolumeSol5m:     5,
		SignalTTL:          45 * time.Second,
	}
}

// Graduation detects bonding-curve tokens approaching graduation to a DEX
// pool. Poll-driven: each Scan reads the snapshot it is handed.
type Graduation struct {
	config GraduationConfig
	active atomic.Bool
	logger *zap.Logger
}

// NewGraduation creates the graduation strategy.
func NewGraduation(config GraduationConfig, logger *zap.Logger) *Graduation {
	g := &Graduation{
		config: config,
		logger: logger.Named("graduation"),
	}
	g.active.Store(true)
	return g
}

func (g *Graduation) TypeKey() string { return string(signal.TypeGraduation) }

func (g *Graduation) AcceptedVenues() []types.VenueType {
	return []types.VenueType{types.VenueBondingCurve}
}

func (g *Graduation) Active() bool          { return g.active.Load() }
func (g *Graduation) SetActive(active bool) { g.active.Store(active) }

// Scan emits one signal per token inside the progress window with enough
// recent volume. Confidence is a weighted sum over progress, velocity and
// holder count; missing holder counts redistribute their weight.
func (g *Graduation) Scan(_ context.Context, snap *venue.Snapshot) []signal.Signal {
	if snap == nil || snap.Venue != types.VenueBondingCurve {
		return nil
	}

	var signals []signal.Signal
	for _, tok := range snap.Tokens {
		if tok.Mint == "" || tok.PriceSol <= 0 {
			continue
		}
		if tok.ProgressPercent < g.config.MinProgressPercent ||
			tok.ProgressPercent > g.config.MaxProgressPercent {
			continue
		}
		if tok.VolumeSol5m < g.config.MinVolumeSol5m {
			continue
		}

		sig := signal.New(signal.TypeGraduation, types.VenueBondingCurve, tok.Mint, tok.PoolID, g.config.SignalTTL)
		sig.Confidence = g.confidence(tok)
		sig.EstimatedProfitBps = g.estimateProfitBps(tok)
		sig.Metadata = map[string]string{
			"progress": fmt.Sprintf("%.1f", tok.ProgressPercent),
		}
		signals = append(signals, sig)

		g.logger.Debug("Graduation signal",
			zap.String("token", tok.Mint),
			zap.Float64("progress", tok.ProgressPercent),
			zap.Float64("confidence", sig.Confidence))
	}

	return signals
}

func (g *Graduation) confidence(tok venue.TokenMetrics) float64 {
	span := g.config.MaxProgressPercent - g.config.MinProgressPercent
	progressNorm := 0.0
	if span > 0 {
		progressNorm = (tok.ProgressPercent - g.config.MinProgressPercent) / span
	}

	// 5m price change of +20% maps to full velocity score.
	velocityNorm := tok.PriceChange5mPct / 20.0

	factors := []Factor{
		{Name: "progress", Weight: 0.5, Value: floatPtr(progressNorm)},
		{Name: "velocity", Weight: 0.3, Value: floatPtr(velocityNorm)},
		{Name: "holders", Weight: 0.2},
	}
	if tok.HolderCount != nil {
		// 200 holders maps to full score.
		factors[2].Value = floatPtr(float64(*tok.HolderCount) / 200.0)
	}

	return ScoreFactors(factors)
}

// estimateProfitBps approximates the pop from graduation migration: closer to
// the threshold means less curve left to buy through, so a larger share of
// the migration move is captured.
func (g *Graduation) estimateProfitBps(tok venue.TokenMetrics) float64 {
	remaining := 100 - tok.ProgressPercent
	if remaining < 0 {
		remaining = 0
	}
	base := 800.0 // graduation pop, observed median
	return base * (1 - remaining/100)
}
