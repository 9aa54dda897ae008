package rate

import (
	"fmt"
	"math"
)

// bursty stores up to maxBurstSeconds worth of unused permits and lets
// them be spent for free.
type bursty struct {
	maxBurstSeconds float64
	stableInterval  float64
}

// NewBursty creates a smooth-bursty limiter handing out permitsPerSecond on
// average. Up to maxBurstSeconds of idle capacity is stored. A new limiter
// starts with its burst capacity full.
func NewBursty(permitsPerSecond, maxBurstSeconds float64, opts ...Option) (*Limiter, error) {
	if maxBurstSeconds < 0 || math.IsNaN(maxBurstSeconds) || math.IsInf(maxBurstSeconds, 0) {
		return nil, fmt.Errorf("%w: maxBurstSeconds %v", ErrInvalidPacing, maxBurstSeconds)
	}
	return newLimiter(&bursty{maxBurstSeconds: maxBurstSeconds}, permitsPerSecond, opts)
}

func (b *bursty) setRate(permitsPerSecond, stableIntervalMicros, oldMax, stored float64) (float64, float64) {
	b.stableInterval = stableIntervalMicros
	maxPermits := b.maxBurstSeconds * permitsPerSecond
	return maxPermits, math.Min(maxPermits, rescale(stored, oldMax, maxPermits, maxPermits))
}

func (b *bursty) storedPermitsToWaitTime(_, _ float64) float64 {
	return 0
}

func (b *bursty) coolDownIntervalMicros() float64 {
	return b.stableInterval
}

func (b *bursty) name() string { return "bursty" }
