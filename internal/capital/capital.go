// internal/capital/capital.go
package capital

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Manager partitions total funds equally across active strategies and tracks
// outstanding reservations. The conservation invariant: the sum of
// reservations never exceeds total funds.
type Manager struct {
	mu           sync.Mutex
	total        float64
	perStrategy  float64
	budgets      map[string]float64 // strategy id -> budget
	reservations map[string]map[string]float64 // strategy id -> position id -> amount
	logger       *zap.Logger
}

// NewManager creates a capital manager with the given total funds in SOL.
func NewManager(total float64, logger *zap.Logger) *Manager {
	return &Manager{
		total:        total,
		budgets:      make(map[string]float64),
		reservations: make(map[string]map[string]float64),
		logger:       logger.Named("capital"),
	}
}

// Rebalance recomputes equal-split budgets for the given active strategy set.
// Eager and wholesale: budgets are always available/active_count, never
// incrementally adjusted. Reservations held by strategies no longer active
// stay on the ledger until released.
func (m *Manager) Rebalance(activeStrategyIDs []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.budgets = make(map[string]float64, len(activeStrategyIDs))
	if len(activeStrategyIDs) == 0 {
		m.perStrategy = 0
		return
	}

	m.perStrategy = m.total / float64(len(activeStrategyIDs))
	for _, id := range activeStrategyIDs {
		m.budgets[id] = m.perStrategy
	}

	m.logger.Info("Capital rebalanced",
		zap.Int("active_strategies", len(activeStrategyIDs)),
		zap.Float64("per_strategy_budget", m.perStrategy))
}

// Reserve books amount against a strategy's budget for one position. Rejected
// when it would exceed the strategy's remaining budget or total funds.
func (m *Manager) Reserve(strategyID, positionID string, amount float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if amount <= 0 {
		return fmt.Errorf("reservation amount must be positive, got %f", amount)
	}

	budget, ok := m.budgets[strategyID]
	if !ok {
		return fmt.Errorf("strategy %s has no capital allocation", strategyID)
	}

	reserved := m.reservedLocked(strategyID)
	if reserved+amount > budget {
		return fmt.Errorf("reservation %.4f exceeds remaining budget %.4f for strategy %s",
			amount, budget-reserved, strategyID)
	}
	if m.totalReservedLocked()+amount > m.total {
		return fmt.Errorf("reservation %.4f exceeds total available funds", amount)
	}

	if m.reservations[strategyID] == nil {
		m.reservations[strategyID] = make(map[string]float64)
	}
	m.reservations[strategyID][positionID] = amount

	m.logger.Debug("Capital reserved",
		zap.String("strategy", strategyID),
		zap.String("position", positionID),
		zap.Float64("amount", amount))
	return nil
}

// Release frees the reservation for a position. Releasing an unknown
// reservation is a no-op; exits may race with reconciliation.
func (m *Manager) Release(strategyID, positionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byPos, ok := m.reservations[strategyID]
	if !ok {
		return
	}
	amount, ok := byPos[positionID]
	if !ok {
		return
	}
	delete(byPos, positionID)
	if len(byPos) == 0 {
		delete(m.reservations, strategyID)
	}

	m.logger.Debug("Capital released",
		zap.String("strategy", strategyID),
		zap.String("position", positionID),
		zap.Float64("amount", amount))
}

// ReleasePartial shrinks a reservation after a partial exit returned some of
// the principal. Shrinking below zero removes the reservation.
func (m *Manager) ReleasePartial(strategyID, positionID string, amount float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byPos, ok := m.reservations[strategyID]
	if !ok {
		return
	}
	current, ok := byPos[positionID]
	if !ok {
		return
	}
	remaining := current - amount
	if remaining <= 0 {
		delete(byPos, positionID)
		if len(byPos) == 0 {
			delete(m.reservations, strategyID)
		}
		return
	}
	byPos[positionID] = remaining
}

// Available returns a strategy's unreserved budget.
func (m *Manager) Available(strategyID string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	budget, ok := m.budgets[strategyID]
	if !ok {
		return 0
	}
	return budget - m.reservedLocked(strategyID)
}

// TotalReserved returns the sum of all outstanding reservations.
func (m *Manager) TotalReserved() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalReservedLocked()
}

// Total returns the configured total funds.
func (m *Manager) Total() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}

func (m *Manager) reservedLocked(strategyID string) float64 {
	var sum float64
	for _, amount := range m.reservations[strategyID] {
		sum += amount
	}
	return sum
}

func (m *Manager) totalReservedLocked() float64 {
	var sum float64
	for id := range m.reservations {
		sum += m.reservedLocked(id)
	}
	return sum
}
