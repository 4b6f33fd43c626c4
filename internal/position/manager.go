// internal/position/manager.go
package position

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Manager owns the canonical table of open and closing positions. The
// monitor reads snapshots and refreshes prices, the executor applies
// confirmed exits, the reconciliation pass adjusts balances; all of it goes
// through these methods so the table never sees a torn update.
type Manager struct {
	mu        sync.RWMutex
	positions map[string]*Position
	history   map[string]*PriceHistory
	logger    *zap.Logger

	historyWindow int
}

// NewManager creates an empty position manager.
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		positions:     make(map[string]*Position),
		history:       make(map[string]*PriceHistory),
		logger:        logger.Named("position_manager"),
		historyWindow: 30,
	}
}

// Register adds a freshly entered position. No two concurrently-managed
// positions may share (token, strategy) while the prior one is still Open or
// PartiallyExited.
func (m *Manager) Register(pos *Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if pos.ID == "" {
		return fmt.Errorf("position id is required")
	}
	if _, exists := m.positions[pos.ID]; exists {
		return fmt.Errorf("position %s already registered", pos.ID)
	}
	for _, existing := range m.positions {
		if existing.TokenMint == pos.TokenMint && existing.StrategyID == pos.StrategyID {
			if existing.Status == StatusOpen || existing.Status == StatusPartiallyExited {
				return fmt.Errorf("open position already exists for token %s strategy %s",
					pos.TokenMint, pos.StrategyID)
			}
		}
	}

	if pos.Status == "" {
		pos.Status = StatusOpen
	}
	if pos.HighWaterMark == 0 {
		pos.HighWaterMark = pos.EntryPrice
	}
	if pos.CurrentPrice == 0 {
		pos.CurrentPrice = pos.EntryPrice
	}

	cp := *pos
	m.positions[pos.ID] = &cp
	h := NewPriceHistory(m.historyWindow)
	h.Add(pos.EntryPrice, pos.EntryTime)
	m.history[pos.ID] = h

	m.logger.Info("Position registered",
		zap.String("id", pos.ID),
		zap.String("token", pos.TokenMint),
		zap.String("strategy", pos.StrategyID),
		zap.Float64("entry_price", pos.EntryPrice),
		zap.Float64("entry_amount", pos.EntryAmount))

	return nil
}

// HasOpenPair reports whether a managed position already holds this
// (token, strategy) pair. Used as a pre-trade check before capital is spent.
func (m *Manager) HasOpenPair(tokenMint, strategyID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, pos := range m.positions {
		if pos.TokenMint == tokenMint && pos.StrategyID == strategyID {
			if pos.Status == StatusOpen || pos.Status == StatusPartiallyExited {
				return true
			}
		}
	}
	return false
}

// Get returns a copy of the position.
func (m *Manager) Get(id string) (Position, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pos, ok := m.positions[id]
	if !ok {
		return Position{}, false
	}
	return *pos, true
}

// Managed returns copies of all positions the monitor should evaluate
// (Open and PartiallyExited).
func (m *Manager) Managed() []Position {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Position, 0, len(m.positions))
	for _, pos := range m.positions {
		if pos.Status == StatusOpen || pos.Status == StatusPartiallyExited {
			result = append(result, *pos)
		}
	}
	return result
}

// ActiveCount counts positions still holding capital (not terminal).
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, pos := range m.positions {
		if !pos.Status.Terminal() {
			count++
		}
	}
	return count
}

// RefreshPrice records a new price sample, updates the high-water mark, PnL
// and momentum, and returns the updated copy.
func (m *Manager) RefreshPrice(id string, price float64, now time.Time) (Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.positions[id]
	if !ok {
		return Position{}, fmt.Errorf("position %s not found", id)
	}
	if price <= 0 {
		return *pos, fmt.Errorf("non-positive price for position %s", id)
	}

	pos.CurrentPrice = price
	if price > pos.HighWaterMark {
		pos.HighWaterMark = price
	}
	if pos.EntryPrice > 0 {
		pos.UnrealizedPnlPercent = (price - pos.EntryPrice) / pos.EntryPrice * 100
	}
	if pos.UnrealizedPnlPercent > pos.PeakPnlPercent {
		pos.PeakPnlPercent = pos.UnrealizedPnlPercent
	}

	h := m.history[id]
	h.Add(price, now)
	pos.Momentum = h.Momentum(pos.Momentum)

	return *pos, nil
}

// SetAutoExit toggles automatic exit management for a position.
func (m *Manager) SetAutoExit(id string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.positions[id]
	if !ok {
		return fmt.Errorf("position %s not found", id)
	}
	pos.AutoExit = enabled
	m.logger.Info("Auto-exit toggled",
		zap.String("id", id),
		zap.Bool("enabled", enabled))
	return nil
}

// MarkPendingExit transitions a position into the execution path. The
// monitor and reconciliation skip PendingExit positions, so this is the
// gate that serializes state changes behind the executor.
func (m *Manager) MarkPendingExit(id string) error {
	return m.transition(id, StatusPendingExit)
}

// ReturnFromPendingExit puts a position back under management after a failed
// exit attempt whose balance check showed tokens still held.
func (m *Manager) ReturnFromPendingExit(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.positions[id]
	if !ok {
		return fmt.Errorf("position %s not found", id)
	}
	target := StatusOpen
	if pos.RemainingAmount < pos.EntryQuantity {
		target = StatusPartiallyExited
	}
	if !pos.Status.CanTransition(target) {
		return fmt.Errorf("illegal position transition %s -> %s (position %s)", pos.Status, target, id)
	}
	pos.Status = target
	return nil
}

// ApplyExit records a confirmed sell of soldQuantity tokens for solReceived.
// RemainingAmount only ever decreases. A full exit closes the position.
func (m *Manager) ApplyExit(id string, soldQuantity, solReceived float64, full bool) (Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.positions[id]
	if !ok {
		return Position{}, fmt.Errorf("position %s not found", id)
	}

	if soldQuantity > pos.RemainingAmount {
		soldQuantity = pos.RemainingAmount
	}

	var costBasis float64
	if pos.EntryQuantity > 0 {
		costBasis = soldQuantity / pos.EntryQuantity * pos.EntryAmount
	}
	pos.RealizedPnl += solReceived - costBasis
	pos.RemainingAmount -= soldQuantity
	pos.LastExitTime = time.Now().UTC()

	target := StatusPartiallyExited
	if full || pos.RemainingAmount <= 0 {
		pos.RemainingAmount = 0
		target = StatusClosed
	} else {
		pos.TiersTaken++
	}

	if pos.Status != target {
		if !pos.Status.CanTransition(target) {
			return *pos, fmt.Errorf("illegal position transition %s -> %s (position %s)", pos.Status, target, id)
		}
		pos.Status = target
	}

	m.logger.Info("Exit applied",
		zap.String("id", id),
		zap.Float64("sold_quantity", soldQuantity),
		zap.Float64("sol_received", solReceived),
		zap.Float64("remaining", pos.RemainingAmount),
		zap.String("status", string(pos.Status)))

	return *pos, nil
}

// Orphan marks a position as unmanageable; no further auto-management.
func (m *Manager) Orphan(id, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.positions[id]
	if !ok {
		return fmt.Errorf("position %s not found", id)
	}
	if !pos.Status.CanTransition(StatusOrphaned) {
		return fmt.Errorf("illegal position transition %s -> orphaned (position %s)", pos.Status, id)
	}
	pos.Status = StatusOrphaned
	m.logger.Warn("Position orphaned",
		zap.String("id", id),
		zap.String("reason", reason))
	return nil
}

// AdjustRemaining reconciles the held amount against an external balance.
// It never increases RemainingAmount and never touches a position in the
// execution path (PendingExit); a queued or in-flight exit always wins.
func (m *Manager) AdjustRemaining(id string, externalBalance float64) (Position, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.positions[id]
	if !ok {
		return Position{}, false, fmt.Errorf("position %s not found", id)
	}
	if pos.Status == StatusPendingExit || pos.Status.Terminal() {
		return *pos, false, nil
	}
	if externalBalance >= pos.RemainingAmount {
		return *pos, false, nil
	}

	m.logger.Warn("Balance drift detected",
		zap.String("id", id),
		zap.Float64("tracked", pos.RemainingAmount),
		zap.Float64("external", externalBalance))

	pos.RemainingAmount = externalBalance
	return *pos, true, nil
}

// Remove drops a terminal position from the table.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.positions[id]
	if !ok {
		return fmt.Errorf("position %s not found", id)
	}
	if !pos.Status.Terminal() {
		return fmt.Errorf("cannot remove non-terminal position %s (%s)", id, pos.Status)
	}
	delete(m.positions, id)
	delete(m.history, id)
	return nil
}

func (m *Manager) transition(id string, to Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.positions[id]
	if !ok {
		return fmt.Errorf("position %s not found", id)
	}
	if !pos.Status.CanTransition(to) {
		return fmt.Errorf("illegal position transition %s -> %s (position %s)", pos.Status, to, id)
	}
	pos.Status = to
	return nil
}
