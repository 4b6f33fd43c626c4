// internal/store/store.go
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Store persists strategy configurations and closed-position outcomes.
type Store interface {
	SaveStrategyConfig(ctx context.Context, cfg *StrategyConfig) error
	GetStrategyConfig(ctx context.Context, id string) (*StrategyConfig, error)
	ListStrategyConfigs(ctx context.Context, onlyActive bool) ([]*StrategyConfig, error)
	SetStrategyConfigActive(ctx context.Context, id string, active bool) error

	SavePositionRecord(ctx context.Context, rec *PositionRecord) error
	ListPositionRecords(ctx context.Context, strategyID string, limit int) ([]*PositionRecord, error)

	RunMigrations() error
	Close() error
}
