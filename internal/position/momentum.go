// internal/position/momentum.go
package position

import (
	"sync"
	"time"
)

type pricePoint struct {
	price float64
	at    time.Time
}

// PriceHistory is a bounded rolling window of price samples for one position.
type PriceHistory struct {
	mu      sync.Mutex
	samples []pricePoint
	max     int
}

// NewPriceHistory creates a window holding up to max samples.
func NewPriceHistory(max int) *PriceHistory {
	if max < 4 {
		max = 4
	}
	return &PriceHistory{
		samples: make([]pricePoint, 0, max),
		max:     max,
	}
}

// Add appends a sample, evicting the oldest when full.
func (h *PriceHistory) Add(price float64, at time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.samples) >= h.max {
		h.samples = h.samples[1:]
	}
	h.samples = append(h.samples, pricePoint{price: price, at: at})
}

// Len returns the number of buffered samples.
func (h *PriceHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.samples)
}

// velocity returns percent change per minute across the given slice.
func velocity(samples []pricePoint) float64 {
	if len(samples) < 2 {
		return 0
	}
	first, last := samples[0], samples[len(samples)-1]
	if first.price <= 0 {
		return 0
	}
	minutes := last.at.Sub(first.at).Minutes()
	if minutes <= 0 {
		return 0
	}
	changePct := (last.price - first.price) / first.price * 100
	return changePct / minutes
}

// Momentum computes velocity and a -100..100 score from the window. The
// score blends overall velocity with acceleration (recent half vs older
// half), so a move that is fast but fading scores below one still building.
func (h *PriceHistory) Momentum(prev MomentumData) MomentumData {
	h.mu.Lock()
	samples := make([]pricePoint, len(h.samples))
	copy(samples, h.samples)
	h.mu.Unlock()

	if len(samples) < 3 {
		return MomentumData{DecayCount: prev.DecayCount}
	}

	vel := velocity(samples)

	mid := len(samples) / 2
	older := velocity(samples[:mid+1])
	recent := velocity(samples[mid:])
	accel := recent - older

	// 10 %/min velocity or ±5 %/min² acceleration saturate their component.
	score := clamp(vel/10*70, -70, 70) + clamp(accel/5*30, -30, 30)
	score = clamp(score, -100, 100)

	data := MomentumData{
		VelocityPctPerMin: vel,
		Score:             score,
	}

	// Decay: consecutive ticks where the score weakens meaningfully.
	if score < prev.Score-5 {
		data.DecayCount = prev.DecayCount + 1
	} else {
		data.DecayCount = 0
	}

	return data
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
