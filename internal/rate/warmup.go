package rate

import (
	"fmt"
	"math"
	"time"
)

// DefaultColdFactor is the cold interval multiplier used when none is given.
const DefaultColdFactor = 3.0

// warmingUp charges more for stored permits the more of them there are.
//
// The per-permit cost is a function of the number of stored permits:
//
//	cold  +                  /
//	      |                 /
//	      |                /
//	      |               /
//	stable+--------------+
//	      |              |
//	      0          threshold   max
//
// Going from max to zero stored permits takes exactly the warmup period.
type warmingUp struct {
	warmupPeriodMicros float64
	coldFactor         float64

	stableInterval   float64
	thresholdPermits float64
	maxPermits       float64
	slope            float64
}

// NewWarmingUp creates a smooth-warming-up limiter. The limiter starts cold:
// its first permit costs coldFactor times the stable interval and the cost
// falls to the stable interval over warmupPeriod. A coldFactor of 0 selects
// DefaultColdFactor.
func NewWarmingUp(permitsPerSecond float64, warmupPeriod time.Duration, coldFactor float64, opts ...Option) (*Limiter, error) {
	if warmupPeriod <= 0 {
		return nil, fmt.Errorf("%w: warmup period %s", ErrInvalidPacing, warmupPeriod)
	}
	if coldFactor == 0 {
		coldFactor = DefaultColdFactor
	}
	if coldFactor < 1 || math.IsNaN(coldFactor) || math.IsInf(coldFactor, 0) {
		return nil, fmt.Errorf("%w: cold factor %v", ErrInvalidPacing, coldFactor)
	}

	w := &warmingUp{
		warmupPeriodMicros: float64(warmupPeriod.Microseconds()),
		coldFactor:         coldFactor,
	}
	return newLimiter(w, permitsPerSecond, opts)
}

func (w *warmingUp) setRate(_, stableIntervalMicros, oldMax, stored float64) (float64, float64) {
	w.stableInterval = stableIntervalMicros
	coldInterval := stableIntervalMicros * w.coldFactor

	w.thresholdPermits = 0.5 * w.warmupPeriodMicros / stableIntervalMicros
	w.maxPermits = w.thresholdPermits + 2.0*w.warmupPeriodMicros/(stableIntervalMicros+coldInterval)
	if w.maxPermits > w.thresholdPermits {
		w.slope = (coldInterval - stableIntervalMicros) / (w.maxPermits - w.thresholdPermits)
	} else {
		w.slope = 0
	}

	return w.maxPermits, math.Min(w.maxPermits, rescale(stored, oldMax, w.maxPermits, w.maxPermits))
}

func (w *warmingUp) storedPermitsToWaitTime(storedPermits, permitsToTake float64) float64 {
	aboveThreshold := storedPermits - w.thresholdPermits
	var micros float64

	if aboveThreshold > 0 {
		take := math.Min(aboveThreshold, permitsToTake)
		// Trapezoid between the cost at storedPermits and at storedPermits-take.
		length := w.permitsToTime(aboveThreshold) + w.permitsToTime(aboveThreshold-take)
		micros = take * length / 2.0
		permitsToTake -= take
	}

	return micros + w.stableInterval*permitsToTake
}

func (w *warmingUp) permitsToTime(permits float64) float64 {
	return w.stableInterval + permits*w.slope
}

func (w *warmingUp) coolDownIntervalMicros() float64 {
	return w.warmupPeriodMicros / w.maxPermits
}

func (w *warmingUp) name() string { return "warmup" }
