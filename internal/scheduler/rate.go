package scheduler

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/wesleyorama2/surge/internal/event"
	"github.com/wesleyorama2/surge/internal/rate"
)

// RateScheduler admits one request per limiter permit.
type RateScheduler struct {
	limiter *rate.Limiter
	target  float64
	floor   float64
	ramp    *ramper
	logger  *zap.Logger
}

// NewRateScheduler creates a scheduler pacing requests through limiter.
//
// With a ramp, the limiter is set to the ramp's floor rate at once and
// raised linearly to its current rate once the test is running. Subscribe
// the scheduler to the test's event bus for the ramp to start.
func NewRateScheduler(limiter *rate.Limiter, ramp Ramp, logger *zap.Logger) (*RateScheduler, error) {
	if err := validateRamp(ramp); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &RateScheduler{
		limiter: limiter,
		target:  limiter.Rate(),
		logger:  logger,
	}

	if ramp.Enabled() {
		s.floor = rampFloor(s.target, ramp.Duration)
		if s.floor < s.target {
			if err := limiter.SetRate(s.floor); err != nil {
				return nil, err
			}
			s.ramp = newRamper(ramp, s.applyRamp)
		}
	}

	return s, nil
}

func (s *RateScheduler) applyRamp(progress float64) {
	r := math.Max(s.floor, s.target*progress)
	if err := s.limiter.SetRate(r); err != nil {
		s.logger.Warn("ramp rate rejected", zap.Float64("rate", r), zap.Error(err))
		return
	}
	if progress >= 1 {
		s.logger.Info("ramp-up complete", zap.Float64("rate", r))
	}
}

// Schedule implements Scheduler.
func (s *RateScheduler) Schedule(ctx context.Context) error {
	_, err := s.limiter.Acquire(ctx, 1)
	return err
}

// OnTestState starts the ramp, if any, when the test starts running.
func (s *RateScheduler) OnTestState(st event.State) {
	if s.ramp != nil {
		s.ramp.OnTestState(st)
	}
}

// rampFloor is the rate a ramp to target over d starts from: the rate whose
// mean interval equals the time the ramp takes to reach it. A permit booked
// at the floor is due, on average, before a linear ramp would issue its
// first request.
func rampFloor(target float64, d time.Duration) float64 {
	floor := math.Sqrt(target / d.Seconds())
	return math.Min(target, math.Max(MinRate, floor))
}

// Rate returns the current limiter rate.
func (s *RateScheduler) Rate() float64 { return s.limiter.Rate() }

// Close implements Scheduler.
func (s *RateScheduler) Close() {
	if s.ramp != nil {
		s.ramp.close()
	}
}
