package rate

import (
	"math"
	"math/rand/v2"
	"time"
)

// DefaultBuckets is the Poisson parameter used to split the mean interval.
const DefaultBuckets = 10

// IntervalSource draws the cost of one fresh permit given the mean interval
// in microseconds.
type IntervalSource interface {
	Next(meanMicros float64) float64
}

// IntervalFunc adapts a function to IntervalSource.
type IntervalFunc func(meanMicros float64) float64

// Next calls f(meanMicros).
func (f IntervalFunc) Next(meanMicros float64) float64 { return f(meanMicros) }

// PoissonInterval draws k ~ Poisson(buckets) and returns k*mean/buckets.
// The expected value is the mean; larger bucket counts lower the variance.
//
// PoissonInterval is not safe for concurrent use. A Limiter only calls it
// under its own mutex.
type PoissonInterval struct {
	buckets int
	limit   float64 // e^-buckets
	rng     *rand.Rand
}

// NewPoissonInterval returns a source with the given bucket count. A nil rng
// is replaced by a time-seeded PCG generator; a non-positive bucket count
// selects DefaultBuckets.
func NewPoissonInterval(buckets int, rng *rand.Rand) *PoissonInterval {
	if buckets <= 0 {
		buckets = DefaultBuckets
	}
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
	return &PoissonInterval{
		buckets: buckets,
		limit:   math.Exp(-float64(buckets)),
		rng:     rng,
	}
}

// Next implements IntervalSource.
func (p *PoissonInterval) Next(meanMicros float64) float64 {
	return float64(p.sample()) * meanMicros / float64(p.buckets)
}

// sample uses Knuth's product-of-uniforms method.
func (p *PoissonInterval) sample() int {
	k := 0
	prod := p.rng.Float64()
	for prod > p.limit {
		k++
		prod *= p.rng.Float64()
	}
	return k
}
