// internal/strategy/confidence.go
package strategy

// Factor is one input to a weighted confidence score. Value is nil when the
// data source did not return the underlying metric.
type Factor struct {
	Name   string
	Weight float64
	Value  *float64 // normalized to [0,1] by the caller
}

// ScoreFactors computes a weighted confidence over the available factors.
// Weights of unavailable factors are folded proportionally into the remaining
// ones instead of being zeroed, so a data-source gap does not systematically
// depress confidence.
func ScoreFactors(factors []Factor) float64 {
	var availableWeight float64
	for _, f := range factors {
		if f.Value != nil {
			availableWeight += f.Weight
		}
	}
	if availableWeight == 0 {
		return 0
	}

	var score float64
	for _, f := range factors {
		if f.Value == nil {
			continue
		}
		v := *f.Value
		if v < 0 {
			v = 0
		} else if v > 1 {
			v = 1
		}
		score += (f.Weight / availableWeight) * v
	}
	return score
}

func floatPtr(v float64) *float64 { return &v }
