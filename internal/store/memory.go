// internal/store/memory.go
package store

import (
	"context"
	"sort"
	"sync"
)

// memoryStore is an in-memory Store for tests and standalone runs.
type memoryStore struct {
	mu      sync.RWMutex
	configs map[string]*StrategyConfig
	records []*PositionRecord
}

// NewMemory creates an in-memory store.
func NewMemory() Store {
	return &memoryStore{
		configs: make(map[string]*StrategyConfig),
	}
}

func (s *memoryStore) RunMigrations() error { return nil }

func (s *memoryStore) SaveStrategyConfig(_ context.Context, cfg *StrategyConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *cfg
	s.configs[cfg.ID] = &cp
	return nil
}

func (s *memoryStore) GetStrategyConfig(_ context.Context, id string) (*StrategyConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.configs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *cfg
	return &cp, nil
}

func (s *memoryStore) ListStrategyConfigs(_ context.Context, onlyActive bool) ([]*StrategyConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	configs := make([]*StrategyConfig, 0, len(s.configs))
	for _, cfg := range s.configs {
		if onlyActive && !cfg.IsActive {
			continue
		}
		cp := *cfg
		configs = append(configs, &cp)
	}
	sort.Slice(configs, func(i, j int) bool {
		return configs[i].CreatedAt.Before(configs[j].CreatedAt)
	})
	return configs, nil
}

func (s *memoryStore) SetStrategyConfigActive(_ context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.configs[id]
	if !ok {
		return ErrNotFound
	}
	cfg.IsActive = active
	return nil
}

func (s *memoryStore) SavePositionRecord(_ context.Context, rec *PositionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.records = append(s.records, &cp)
	return nil
}

func (s *memoryStore) ListPositionRecords(_ context.Context, strategyID string, limit int) ([]*PositionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []*PositionRecord
	for i := len(s.records) - 1; i >= 0; i-- {
		rec := s.records[i]
		if strategyID != "" && rec.StrategyID != strategyID {
			continue
		}
		cp := *rec
		records = append(records, &cp)
		if limit > 0 && len(records) >= limit {
			break
		}
	}
	return records, nil
}

func (s *memoryStore) Close() error { return nil }
