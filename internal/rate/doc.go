// Package rate provides the pacing limiters used to drive load.
//
// A Limiter hands out permits at a configured mean rate. Unlike a
// metronome, the cost of every freshly generated permit is drawn from a
// Poisson process whose expected value is the mean interval, so the
// request stream looks like real, irregular client traffic while the
// long-run rate is preserved.
//
// # Strategies
//
// Two pacing strategies are available:
//
//   - Smooth bursty (NewBursty): capacity that went unused while the caller
//     was idle is stored, up to maxBurstSeconds worth of permits, and can be
//     spent at no extra cost.
//   - Smooth warming up (NewWarmingUp): a limiter that has been idle is
//     "cold" and charges up to coldFactor times the stable interval per
//     permit; the charge falls linearly to the stable interval as stored
//     permits are spent over the warmup period.
//
// # Reservations
//
// Acquire books permits under the limiter's mutex and sleeps outside of it,
// so concurrent callers are serialised on availability while their waits
// overlap:
//
//	limiter, _ := rate.NewBursty(100, 1) // 100 permits per second, 1s burst
//
//	for {
//	    if _, err := limiter.Acquire(ctx, 1); err != nil {
//	        break // Context cancelled
//	    }
//	    // Issue request
//	}
//
// # Thread Safety
//
// All methods on Limiter are safe for concurrent use from multiple goroutines.
package rate
