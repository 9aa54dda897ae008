// Package scheduler decides when the load-test driver may issue its next
// request.
//
// RateScheduler paces requests through a rate.Limiter (open model: the
// rate does not depend on response times). ConcurrencyScheduler keeps a
// fixed number of requests in flight (closed model). Both can ramp up to
// their target when the test starts running.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wesleyorama2/surge/internal/event"
)

// Scheduler blocks the driver until the next request may be issued.
type Scheduler interface {
	// Schedule blocks until a request may be issued or ctx is done.
	Schedule(ctx context.Context) error

	// Close stops background work. Blocked Schedule calls are released by
	// cancelling their context.
	Close()
}

// Canceler is implemented by schedulers that hand out resources in
// Schedule. Cancel returns the resource of a Schedule call that did not lead
// to a request.
type Canceler interface {
	Cancel()
}

// Mode selects the scheduler implementation.
type Mode string

const (
	ModeRate        Mode = "rate"
	ModeConcurrency Mode = "concurrency"
)

// MinRate is the lowest rate a ramp ever starts from.
const MinRate = 0.01

// rampTick is how often a ramp adjusts its target.
const rampTick = 100 * time.Millisecond

// Ramp describes a linear increase to the target over Duration.
type Ramp struct {
	Duration time.Duration
}

// Enabled reports whether the ramp has a duration.
func (r Ramp) Enabled() bool { return r.Duration > 0 }

// progress returns the completed fraction of the ramp after elapsed.
func (r Ramp) progress(elapsed time.Duration) float64 {
	if !r.Enabled() || elapsed >= r.Duration {
		return 1
	}
	if elapsed <= 0 {
		return 0
	}
	return float64(elapsed) / float64(r.Duration)
}

// ramper runs a ramp controller once the test is running.
type ramper struct {
	ramp  Ramp
	apply func(progress float64) // called with progress in (0, 1]

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
}

func newRamper(r Ramp, apply func(float64)) *ramper {
	return &ramper{
		ramp:  r,
		apply: apply,
		stop:  make(chan struct{}),
	}
}

// OnTestState starts the ramp when the test starts running.
func (r *ramper) OnTestState(s event.State) {
	if s == event.StateRunning {
		r.startOnce.Do(func() { go r.run(time.Now()) })
	}
}

func (r *ramper) run(start time.Time) {
	ticker := time.NewTicker(rampTick)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case now := <-ticker.C:
			p := r.ramp.progress(now.Sub(start))
			r.apply(p)
			if p >= 1 {
				return
			}
		}
	}
}

func (r *ramper) close() {
	r.stopOnce.Do(func() { close(r.stop) })
}

func validateRamp(r Ramp) error {
	if r.Duration < 0 {
		return fmt.Errorf("ramp-up duration must not be negative, got %s", r.Duration)
	}
	return nil
}
