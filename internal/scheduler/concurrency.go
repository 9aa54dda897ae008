package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/wesleyorama2/surge/internal/event"
	"github.com/wesleyorama2/surge/internal/request"
)

// ConcurrencyScheduler keeps at most N requests in flight.
//
// A slot is taken by Schedule and given back when the request's terminal
// request/response event is published, so the scheduler must be subscribed
// to the test's event bus.
type ConcurrencyScheduler struct {
	sem      *semaphore.Weighted
	slots    int64
	inFlight atomic.Int64

	// Slots withheld by the ramp.
	mu       sync.Mutex
	withheld int64
	ramp     *ramper
}

// NewConcurrencyScheduler creates a scheduler allowing n concurrent
// requests. With a ramp, a single slot is open at first and the others
// open evenly over the ramp duration once the test is running.
func NewConcurrencyScheduler(n int, ramp Ramp) (*ConcurrencyScheduler, error) {
	if n <= 0 {
		return nil, fmt.Errorf("concurrency must be positive, got %d", n)
	}
	if err := validateRamp(ramp); err != nil {
		return nil, err
	}

	s := &ConcurrencyScheduler{
		sem:   semaphore.NewWeighted(int64(n)),
		slots: int64(n),
	}

	if ramp.Enabled() && n > 1 {
		s.withheld = int64(n - 1)
		// Cannot fail: nobody else holds the semaphore yet.
		s.sem.TryAcquire(s.withheld)
		s.ramp = newRamper(ramp, s.applyRamp)
	}

	return s, nil
}

func (s *ConcurrencyScheduler) applyRamp(progress float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	open := 1 + int64(float64(s.slots-1)*progress)
	if open > s.slots {
		open = s.slots
	}
	release := s.withheld - (s.slots - open)
	if release > 0 {
		s.withheld -= release
		s.sem.Release(release)
	}
}

// Schedule implements Scheduler.
func (s *ConcurrencyScheduler) Schedule(ctx context.Context) error {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	s.inFlight.Add(1)
	return nil
}

// OnRequestResponse frees the slot of a completed request.
func (s *ConcurrencyScheduler) OnRequestResponse(*request.Request, *request.Response) {
	if s.inFlight.Add(-1) < 0 {
		// Not one of ours.
		s.inFlight.Add(1)
		return
	}
	s.sem.Release(1)
}

// Cancel gives back a slot taken by Schedule that was not used to issue a
// request.
func (s *ConcurrencyScheduler) Cancel() {
	s.OnRequestResponse(nil, nil)
}

// OnTestState starts the ramp, if any, when the test starts running.
func (s *ConcurrencyScheduler) OnTestState(st event.State) {
	if s.ramp != nil {
		s.ramp.OnTestState(st)
	}
}

// InFlight returns the number of slots currently taken by requests.
func (s *ConcurrencyScheduler) InFlight() int64 { return s.inFlight.Load() }

// Close implements Scheduler.
func (s *ConcurrencyScheduler) Close() {
	if s.ramp != nil {
		s.ramp.close()
	}
}
