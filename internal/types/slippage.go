// internal/types/slippage.go
package types

// SlippageConfig derives a sell slippage tolerance from the position's
// current profit: a fraction of the profit is given up as tolerance, floored
// so losing exits can still fill and capped so a big winner is not sold into
// the ground.
type SlippageConfig struct {
	// ProfitFraction is the share of current profit sacrificed as tolerance
	// (e.g. 0.1 = 10% of profit).
	ProfitFraction float64 `json:"profit_fraction"`
	// FloorPercent is the minimum tolerance in percent.
	FloorPercent float64 `json:"floor_percent"`
	// CapPercent is the maximum tolerance in percent before urgency scaling.
	CapPercent float64 `json:"cap_percent"`
}

// DefaultSlippageConfig returns the standard exit slippage policy.
func DefaultSlippageConfig() SlippageConfig {
	return SlippageConfig{
		ProfitFraction: 0.10,
		FloorPercent:   1.0,
		CapPercent:     10.0,
	}
}

// hard ceiling after urgency scaling
const maxSlippagePercent = 25.0

// Tolerance computes the slippage tolerance in percent for a position with
// the given unrealized profit (percent) at the given urgency.
func (c SlippageConfig) Tolerance(profitPercent float64, urgency Urgency) float64 {
	tol := profitPercent * c.ProfitFraction
	if tol < c.FloorPercent {
		tol = c.FloorPercent
	}
	if tol > c.CapPercent {
		tol = c.CapPercent
	}

	switch urgency {
	case UrgencyHigh:
		tol *= 1.5
	case UrgencyCritical:
		tol *= 2.5
	}

	if tol > maxSlippagePercent {
		tol = maxSlippagePercent
	}
	return tol
}
