// internal/strategy/registry.go
package strategy

import (
	"fmt"
	"sync"

	"github.com/quietlabs/edgebot/internal/types"
	"go.uber.org/zap"
)

// Registry manages strategy registrations. Reads vastly outnumber writes
// (toggles), so lookups take only the read lock.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
	byVenue    map[types.VenueType][]Strategy
	logger     *zap.Logger
}

// NewRegistry creates a new strategy registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		strategies: make(map[string]Strategy),
		byVenue:    make(map[types.VenueType][]Strategy),
		logger:     logger.Named("strategy_registry"),
	}
}

// Register adds a strategy to the registry, keyed by its type key.
func (r *Registry) Register(s Strategy) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := s.TypeKey()
	if _, exists := r.strategies[key]; exists {
		return fmt.Errorf("strategy %s already registered", key)
	}

	r.strategies[key] = s
	for _, v := range s.AcceptedVenues() {
		r.byVenue[v] = append(r.byVenue[v], s)
	}

	r.logger.Info("Strategy registered",
		zap.String("type_key", key),
		zap.Int("venues", len(s.AcceptedVenues())))

	return nil
}

// Get retrieves a strategy by type key.
func (r *Registry) Get(key string) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, exists := r.strategies[key]
	if !exists {
		return nil, fmt.Errorf("strategy %s not found", key)
	}
	return s, nil
}

// GetActive returns all strategies whose active flag is set.
func (r *Registry) GetActive() []Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Strategy, 0, len(r.strategies))
	for _, s := range r.strategies {
		if s.Active() {
			result = append(result, s)
		}
	}
	return result
}

// GetByVenue returns all active strategies accepting the given venue type.
func (r *Registry) GetByVenue(v types.VenueType) []Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()

	strategies := r.byVenue[v]
	result := make([]Strategy, 0, len(strategies))
	for _, s := range strategies {
		if s.Active() {
			result = append(result, s)
		}
	}
	return result
}

// SetActive toggles a strategy's active flag by type key.
func (r *Registry) SetActive(key string, active bool) error {
	r.mu.RLock()
	s, exists := r.strategies[key]
	r.mu.RUnlock()

	if !exists {
		return fmt.Errorf("strategy %s not found", key)
	}

	s.SetActive(active)
	r.logger.Info("Strategy toggled",
		zap.String("type_key", key),
		zap.Bool("active", active))
	return nil
}

// List returns all registered type keys.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.strategies))
	for key := range r.strategies {
		keys = append(keys, key)
	}
	return keys
}
