package request

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"
)

// ErrExhausted is returned by a Manager that will not produce any more
// requests. It ends a test without failing it.
var ErrExhausted = errors.New("request manager exhausted")

// Manager produces the requests of a load test.
type Manager interface {
	Get(ctx context.Context) (*Request, error)
	SetAbort(abort bool)
}

// Choice binds an operation to its supplier and relative weight.
type Choice struct {
	Operation Operation
	Weight    int
	Supplier  Supplier
}

// WeightedManager picks an operation at random, in proportion to its
// weight, and asks the matching supplier for a request.
//
// When the chosen supplier has no objects to work on, the remaining
// operations are tried in weighted order before ErrNoObjects is returned.
type WeightedManager struct {
	choices []Choice
	total   int
	abort   atomic.Bool

	mu  sync.Mutex
	rng *rand.Rand
}

// NewWeightedManager creates a manager over the choices with a positive
// weight. A nil rng is replaced by a time-seeded one.
func NewWeightedManager(choices []Choice, rng *rand.Rand) (*WeightedManager, error) {
	m := &WeightedManager{rng: rng}
	for _, c := range choices {
		if c.Weight < 0 {
			return nil, fmt.Errorf("operation %s: negative weight %d", c.Operation, c.Weight)
		}
		if c.Weight == 0 {
			continue
		}
		if c.Supplier == nil {
			return nil, fmt.Errorf("operation %s: no supplier", c.Operation)
		}
		m.choices = append(m.choices, c)
		m.total += c.Weight
	}
	if m.total == 0 {
		return nil, errors.New("at least one operation needs a positive weight")
	}
	if m.rng == nil {
		seed := uint64(time.Now().UnixNano())
		m.rng = rand.New(rand.NewPCG(seed, seed>>1))
	}
	return m, nil
}

// Get implements Manager.
func (m *WeightedManager) Get(ctx context.Context) (*Request, error) {
	if m.abort.Load() {
		return nil, ErrExhausted
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tried := make([]bool, len(m.choices))
	remaining := m.total
	for remaining > 0 {
		i := m.pick(tried, remaining)
		req, err := m.choices[i].Supplier.Supply(m.rng)
		if err == nil {
			return req, nil
		}
		if !errors.Is(err, ErrNoObjects) {
			return nil, fmt.Errorf("%s: %w", m.choices[i].Operation, err)
		}
		tried[i] = true
		remaining -= m.choices[i].Weight
	}
	return nil, ErrNoObjects
}

func (m *WeightedManager) pick(tried []bool, remaining int) int {
	n := m.rng.IntN(remaining)
	for i, c := range m.choices {
		if tried[i] {
			continue
		}
		if n < c.Weight {
			return i
		}
		n -= c.Weight
	}
	return len(m.choices) - 1
}

// SetAbort implements Manager. Once aborted, Get returns ErrExhausted.
func (m *WeightedManager) SetAbort(abort bool) {
	m.abort.Store(abort)
}

// LimitedManager stops handing out requests after a fixed number.
type LimitedManager struct {
	Manager
	remaining atomic.Int64
}

// Limit wraps m so that at most n requests are produced. Further calls to
// Get return ErrExhausted.
func Limit(m Manager, n int64) *LimitedManager {
	l := &LimitedManager{Manager: m}
	l.remaining.Store(n)
	return l
}

// Get implements Manager.
func (l *LimitedManager) Get(ctx context.Context) (*Request, error) {
	if l.remaining.Add(-1) < 0 {
		return nil, ErrExhausted
	}
	return l.Manager.Get(ctx)
}
