// internal/strategy/copytrade.go
package strategy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/quietlabs/edgebot/internal/signal"
	"github.com/quietlabs/edgebot/internal/types"
	"github.com/quietlabs/edgebot/internal/venue"
	"go.uber.org/zap"
)

// WalletEvent is a pushed notification that a tracked wallet traded.
type WalletEvent struct {
	Wallet     string          `json:"wallet"`
	TokenMint  string          `json:"token_mint"`
	PoolID     string          `json:"pool_id"`
	Venue      types.VenueType `json:"venue"`
	Action     string          `json:"action"` // "buy" or "sell"
	AmountSol  float64         `json:"amount_sol"`
	TrustScore float64         `json:"trust_score"` // 0..1, assigned upstream
	ObservedAt time.Time       `json:"observed_at"`
}

// CopyTradeConfig tunes the copy-trade strategy.
type CopyTradeConfig struct {
	BufferSize   int
	MinAmountSol float64
	SignalTTL    time.Duration
}

// DefaultCopyTradeConfig returns the standard copy-trade settings.
func DefaultCopyTradeConfig() CopyTradeConfig {
	return CopyTradeConfig{
		BufferSize:   512,
		MinAmountSol: 0.5,
		SignalTTL:    20 * time.Second,
	}
}

// CopyTrade mirrors buys of tracked wallets. Event-buffered: a push source
// enqueues wallet events between cycles and Scan drains the buffer, ignoring
// the snapshot argument.
type CopyTrade struct {
	mu      sync.Mutex
	buffer  []WalletEvent
	dropped uint64
	active  bool
	config  CopyTradeConfig
	logger  *zap.Logger
}

// NewCopyTrade creates the copy-trade strategy.
func NewCopyTrade(config CopyTradeConfig, logger *zap.Logger) *CopyTrade {
	return &CopyTrade{
		buffer: make([]WalletEvent, 0, config.BufferSize),
		active: true,
		config: config,
		logger: logger.Named("copytrade"),
	}
}

func (c *CopyTrade) TypeKey() string { return string(signal.TypeCopyTrade) }

func (c *CopyTrade) AcceptedVenues() []types.VenueType {
	return []types.VenueType{types.VenueBondingCurve, types.VenueDEX}
}

func (c *CopyTrade) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *CopyTrade) SetActive(active bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = active
}

// Enqueue buffers a pushed wallet event. When the buffer is full the oldest
// event is dropped; stale copy intents are worthless anyway.
func (c *CopyTrade) Enqueue(ev WalletEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.buffer) >= c.config.BufferSize {
		c.buffer = c.buffer[1:]
		c.dropped++
		c.logger.Warn("Copy-trade buffer full, dropping oldest event",
			zap.Uint64("dropped_total", c.dropped))
	}
	c.buffer = append(c.buffer, ev)
}

// Scan drains the event buffer and converts qualifying buys into signals.
// The snapshot argument is unused by design.
func (c *CopyTrade) Scan(_ context.Context, _ *venue.Snapshot) []signal.Signal {
	c.mu.Lock()
	events := c.buffer
	c.buffer = make([]WalletEvent, 0, c.config.BufferSize)
	c.mu.Unlock()

	var signals []signal.Signal
	for _, ev := range events {
		if ev.Action != "buy" || ev.TokenMint == "" {
			continue
		}
		if ev.AmountSol < c.config.MinAmountSol {
			continue
		}

		sig := signal.New(signal.TypeCopyTrade, ev.Venue, ev.TokenMint, ev.PoolID, c.config.SignalTTL)
		sig.Confidence = ev.TrustScore
		sig.EstimatedProfitBps = 500
		sig.Metadata = map[string]string{
			"wallet":      ev.Wallet,
			"trust_score": fmt.Sprintf("%.2f", ev.TrustScore),
			"amount_sol":  fmt.Sprintf("%.3f", ev.AmountSol),
		}
		signals = append(signals, sig)
	}

	if len(signals) > 0 {
		c.logger.Debug("Copy-trade scan drained buffer",
			zap.Int("events", len(events)),
			zap.Int("signals", len(signals)))
	}

	return signals
}

// Pending returns the number of buffered events (for tests and stats).
func (c *CopyTrade) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buffer)
}
