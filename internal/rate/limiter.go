package rate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

var (
	// ErrInvalidRate is returned when a rate is not a positive, finite number.
	ErrInvalidRate = errors.New("rate must be positive and finite")

	// ErrInvalidPermits is returned when fewer than one permit is requested.
	ErrInvalidPermits = errors.New("permits must be positive")

	// ErrInvalidPacing is returned for an unusable burst or warmup configuration.
	ErrInvalidPacing = errors.New("invalid pacing parameters")
)

// Observer receives every committed reservation.
//
// Implementations must be safe for concurrent use; they are called outside
// the limiter's mutex.
type Observer interface {
	ObserveReservation(permits int, wait time.Duration)
}

// pacing is the strategy-specific part of a Limiter. All methods are
// called with the limiter's mutex held.
type pacing interface {
	// setRate recomputes derived fields and returns the new capacity and
	// the rescaled stored permits.
	setRate(permitsPerSecond, stableIntervalMicros, oldMaxPermits, storedPermits float64) (maxPermits, stored float64)

	// storedPermitsToWaitTime returns the cost in microseconds of spending
	// permitsToTake out of storedPermits.
	storedPermitsToWaitTime(storedPermits, permitsToTake float64) float64

	// coolDownIntervalMicros is how long it takes to store one permit.
	coolDownIntervalMicros() float64

	name() string
}

// Limiter is a token-bucket rate limiter with Poisson-jittered permit costs.
//
// Use NewBursty or NewWarmingUp to create one.
type Limiter struct {
	clock    Clock
	pacing   pacing
	interval IntervalSource
	observer Observer
	start    time.Time

	mu                   sync.Mutex
	storedPermits        float64
	maxPermits           float64
	stableIntervalMicros float64
	nextFreeTicketMicros int64 // may be in the past
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces the system clock.
func WithClock(c Clock) Option {
	return func(l *Limiter) { l.clock = c }
}

// WithObserver installs a reservation observer.
func WithObserver(o Observer) Option {
	return func(l *Limiter) { l.observer = o }
}

// WithIntervalSource replaces the default Poisson interval source.
// The source is only ever called with the limiter's mutex held.
func WithIntervalSource(src IntervalSource) Option {
	return func(l *Limiter) { l.interval = src }
}

func newLimiter(p pacing, permitsPerSecond float64, opts []Option) (*Limiter, error) {
	if err := checkRate(permitsPerSecond); err != nil {
		return nil, err
	}

	l := &Limiter{
		clock:  SystemClock(),
		pacing: p,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.interval == nil {
		l.interval = NewPoissonInterval(DefaultBuckets, nil)
	}
	l.start = l.clock.Now()
	l.applyRate(permitsPerSecond)

	return l, nil
}

func checkRate(permitsPerSecond float64) error {
	if !(permitsPerSecond > 0) || math.IsInf(permitsPerSecond, 1) {
		return fmt.Errorf("%w: %v", ErrInvalidRate, permitsPerSecond)
	}
	return nil
}

func checkPermits(permits int) error {
	if permits <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPermits, permits)
	}
	return nil
}

// SetRate updates the mean rate in permits per second.
//
// Stored permits are rescaled so that the limiter stays exactly as
// saturated as it was before the change.
func (l *Limiter) SetRate(permitsPerSecond float64) error {
	if err := checkRate(permitsPerSecond); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.resync(l.nowMicros())
	l.applyRate(permitsPerSecond)
	return nil
}

// Rate returns the current mean rate in permits per second.
func (l *Limiter) Rate() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return float64(time.Second/time.Microsecond) / l.stableIntervalMicros
}

// Acquire reserves permits and blocks until they may be used.
//
// It returns the time spent waiting. The reservation is committed before
// sleeping; if ctx is cancelled during the sleep the permits stay consumed
// and ctx.Err() is returned.
func (l *Limiter) Acquire(ctx context.Context, permits int) (time.Duration, error) {
	if err := checkPermits(permits); err != nil {
		return 0, err
	}

	l.mu.Lock()
	now := l.nowMicros()
	r := l.plan(permits, now)
	l.commit(r)
	l.mu.Unlock()

	wait := r.waitFrom(now)
	l.observe(permits, wait)

	return wait, l.clock.Sleep(ctx, wait)
}

// TryAcquire reserves permits only if the limiter is free within timeout.
//
// The decision looks at the limiter state alone, before the permits' own
// jittered cost is drawn, so polling callers get the configured mean rate.
// When the limiter is not free in time it returns false immediately and
// leaves the limiter untouched. Otherwise it commits the reservation, sleeps
// for it as Acquire does and returns true.
func (l *Limiter) TryAcquire(ctx context.Context, permits int, timeout time.Duration) (bool, error) {
	if err := checkPermits(permits); err != nil {
		return false, err
	}
	if timeout < 0 {
		timeout = 0
	}

	l.mu.Lock()
	now := l.nowMicros()
	if _, nextFree := l.replenished(now); nextFree-now > timeout.Microseconds() {
		l.mu.Unlock()
		return false, nil
	}
	r := l.plan(permits, now)
	l.commit(r)
	l.mu.Unlock()

	wait := r.waitFrom(now)
	l.observe(permits, wait)

	if err := l.clock.Sleep(ctx, wait); err != nil {
		return true, err
	}
	return true, nil
}

// Stats returns a point-in-time view of the limiter's bookkeeping.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	return Stats{
		Strategy:       l.pacing.name(),
		Rate:           float64(time.Second/time.Microsecond) / l.stableIntervalMicros,
		StoredPermits:  l.storedPermits,
		MaxPermits:     l.maxPermits,
		MeanInterval:   time.Duration(saturatedInt(l.stableIntervalMicros * float64(time.Microsecond))),
		NextFreeTicket: l.start.Add(microsToDuration(l.nextFreeTicketMicros)),
	}
}

// Stats contains the limiter state exposed for diagnostics and tests.
type Stats struct {
	Strategy       string        `json:"strategy"`
	Rate           float64       `json:"rate"`
	StoredPermits  float64       `json:"storedPermits"`
	MaxPermits     float64       `json:"maxPermits"`
	MeanInterval   time.Duration `json:"meanInterval"`
	NextFreeTicket time.Time     `json:"nextFreeTicket"`
}

// reservation is a planned change to the limiter state.
type reservation struct {
	storedPermits        float64
	nextFreeTicketMicros int64
	momentAvailable      int64
}

func (r reservation) waitFrom(nowMicros int64) time.Duration {
	if r.momentAvailable <= nowMicros {
		return 0
	}
	return microsToDuration(r.momentAvailable - nowMicros)
}

// microsToDuration converts non-negative microseconds, saturating at the
// longest Duration.
func microsToDuration(micros int64) time.Duration {
	if micros > math.MaxInt64/int64(time.Microsecond) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(micros) * time.Microsecond
}

// plan computes a reservation of permits at nowMicros without touching
// the limiter. Must be called with l.mu held.
func (l *Limiter) plan(permits int, nowMicros int64) reservation {
	stored, nextFree := l.replenished(nowMicros)

	toSpend := math.Min(float64(permits), stored)
	fresh := float64(permits) - toSpend

	waitMicros := l.pacing.storedPermitsToWaitTime(stored, toSpend)
	if fresh > 0 {
		waitMicros += fresh * l.interval.Next(l.stableIntervalMicros)
	}

	nextFree = saturatedAdd(nextFree, saturatedInt(waitMicros))

	return reservation{
		storedPermits:        stored - toSpend,
		nextFreeTicketMicros: nextFree,
		momentAvailable:      nextFree,
	}
}

func (l *Limiter) commit(r reservation) {
	l.storedPermits = r.storedPermits
	l.nextFreeTicketMicros = r.nextFreeTicketMicros
}

// resync stores the permits generated since the last free ticket.
func (l *Limiter) resync(nowMicros int64) {
	l.storedPermits, l.nextFreeTicketMicros = l.replenished(nowMicros)
}

func (l *Limiter) replenished(nowMicros int64) (float64, int64) {
	if nowMicros <= l.nextFreeTicketMicros {
		return l.storedPermits, l.nextFreeTicketMicros
	}
	newPermits := float64(nowMicros-l.nextFreeTicketMicros) / l.pacing.coolDownIntervalMicros()
	return math.Min(l.maxPermits, l.storedPermits+newPermits), nowMicros
}

func (l *Limiter) applyRate(permitsPerSecond float64) {
	stable := float64(time.Second/time.Microsecond) / permitsPerSecond
	l.maxPermits, l.storedPermits = l.pacing.setRate(permitsPerSecond, stable, l.maxPermits, l.storedPermits)
	l.stableIntervalMicros = stable
}

func (l *Limiter) nowMicros() int64 {
	return l.clock.Now().Sub(l.start).Microseconds()
}

func (l *Limiter) observe(permits int, wait time.Duration) {
	if l.observer != nil {
		l.observer.ObserveReservation(permits, wait)
	}
}

// rescale keeps the stored/max ratio across a capacity change. A limiter
// without previous capacity starts from initial.
func rescale(stored, oldMax, newMax, initial float64) float64 {
	if oldMax == 0 {
		return initial
	}
	return stored * newMax / oldMax
}

// saturatedInt truncates a non-negative float to int64, saturating where the
// float exceeds int64. NaN and negative values give 0.
func saturatedInt(f float64) int64 {
	switch {
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f > 0:
		return int64(f)
	default:
		return 0
	}
}

func saturatedAdd(a, b int64) int64 {
	sum := a + b
	if (a > 0 && b > 0 && sum < 0) || (a < 0 && b < 0 && sum >= 0) {
		if a > 0 {
			return math.MaxInt64
		}
		return math.MinInt64
	}
	return sum
}
