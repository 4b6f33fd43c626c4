// internal/learning/learning.go
package learning

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quietlabs/edgebot/internal/store"
)

// TradeRecord is one closed-position outcome for the learning sink.
type TradeRecord struct {
	PositionID  string    `json:"position_id"`
	StrategyID  string    `json:"strategy_id"`
	TokenMint   string    `json:"token_mint"`
	EntryAmount float64   `json:"entry_amount"`
	EntryPrice  float64   `json:"entry_price"`
	ExitPrice   float64   `json:"exit_price"`
	RealizedPnl float64   `json:"realized_pnl"`
	ExitReason  string    `json:"exit_reason"`
	HoldSeconds float64   `json:"hold_seconds"`
	FinalStatus string    `json:"final_status"`
	OpenedAt    time.Time `json:"opened_at"`
	ClosedAt    time.Time `json:"closed_at"`
}

// Recorder is a write-only sink for trade outcomes. Implementations must not
// block trading: callers log and drop errors.
type Recorder interface {
	RecordTrade(ctx context.Context, rec TradeRecord) error
}

func csvHeaders() []string {
	return []string{
		"position_id", "strategy_id", "token_mint",
		"entry_amount", "entry_price", "exit_price",
		"realized_pnl", "exit_reason", "hold_seconds",
		"final_status", "opened_at", "closed_at",
	}
}

func (r TradeRecord) toCSV() []string {
	return []string{
		r.PositionID,
		r.StrategyID,
		r.TokenMint,
		strconv.FormatFloat(r.EntryAmount, 'f', 9, 64),
		strconv.FormatFloat(r.EntryPrice, 'f', 18, 64),
		strconv.FormatFloat(r.ExitPrice, 'f', 18, 64),
		strconv.FormatFloat(r.RealizedPnl, 'f', 9, 64),
		r.ExitReason,
		strconv.FormatFloat(r.HoldSeconds, 'f', 2, 64),
		r.FinalStatus,
		r.OpenedAt.UTC().Format(time.RFC3339),
		r.ClosedAt.UTC().Format(time.RFC3339),
	}
}

// CSVRecorder appends records to a CSV file, one row per closed position.
type CSVRecorder struct {
	mu     sync.Mutex
	path   string
	logger *zap.Logger
}

// NewCSVRecorder creates the file (with headers) if it does not exist.
func NewCSVRecorder(path string, logger *zap.Logger) (*CSVRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create learning dir: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		file, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("create learning file: %w", err)
		}
		w := csv.NewWriter(file)
		if err := w.Write(csvHeaders()); err != nil {
			file.Close()
			return nil, fmt.Errorf("write learning headers: %w", err)
		}
		w.Flush()
		if err := file.Close(); err != nil {
			return nil, err
		}
	}

	return &CSVRecorder{
		path:   path,
		logger: logger.Named("learning"),
	}, nil
}

// RecordTrade appends one row. Open-append-close per record keeps the file
// valid even if the process dies mid-run.
func (c *CSVRecorder) RecordTrade(_ context.Context, rec TradeRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	file, err := os.OpenFile(c.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open learning file: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(rec.toCSV()); err != nil {
		return fmt.Errorf("write learning record: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush learning record: %w", err)
	}

	c.logger.Debug("Trade recorded",
		zap.String("position", rec.PositionID),
		zap.Float64("realized_pnl", rec.RealizedPnl))
	return nil
}

// StoreRecorder persists outcomes as position records.
type StoreRecorder struct {
	store store.Store
}

// NewStoreRecorder wraps a store as a learning sink.
func NewStoreRecorder(s store.Store) *StoreRecorder {
	return &StoreRecorder{store: s}
}

func (s *StoreRecorder) RecordTrade(ctx context.Context, rec TradeRecord) error {
	return s.store.SavePositionRecord(ctx, &store.PositionRecord{
		ID:          rec.PositionID,
		StrategyID:  rec.StrategyID,
		TokenMint:   rec.TokenMint,
		EntryAmount: rec.EntryAmount,
		EntryPrice:  rec.EntryPrice,
		ExitPrice:   rec.ExitPrice,
		RealizedPnl: rec.RealizedPnl,
		ExitReason:  rec.ExitReason,
		HoldSeconds: rec.HoldSeconds,
		FinalStatus: rec.FinalStatus,
		OpenedAt:    rec.OpenedAt,
		ClosedAt:    rec.ClosedAt,
	})
}

// MultiRecorder fans a record out to several sinks. The first error is
// returned but all sinks are attempted.
type MultiRecorder []Recorder

func (m MultiRecorder) RecordTrade(ctx context.Context, rec TradeRecord) error {
	var first error
	for _, r := range m {
		if err := r.RecordTrade(ctx, rec); err != nil && first == nil {
			first = err
		}
	}
	return first
}
