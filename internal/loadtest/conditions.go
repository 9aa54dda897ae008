package loadtest

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/wesleyorama2/surge/internal/event"
	"github.com/wesleyorama2/surge/internal/request"
)

// Stopper is the part of a LoadTest a condition monitor acts on.
type Stopper interface {
	StopTest()
	AbortTest(message string)
	Running() bool
}

// Conditions lists when a test ends on its own. Zero values disable a
// condition.
type Conditions struct {
	// Runtime stops the test this long after it starts running.
	Runtime time.Duration
	// Operations stops the test after this many completed requests.
	Operations int64
	// StatusCodes stops the test once a status code has been seen the given
	// number of times.
	StatusCodes map[int]int64
	// ClientFailures aborts the test after this many client failures.
	ClientFailures int64
}

// Empty reports whether no condition is set.
func (c Conditions) Empty() bool {
	return c.Runtime <= 0 && c.Operations <= 0 && len(c.StatusCodes) == 0 && c.ClientFailures <= 0
}

// Monitor watches the event bus and ends the test when one of its
// conditions is met.
type Monitor struct {
	cond   Conditions
	target Stopper
	logger *zap.Logger

	completed atomic.Int64
	failures  atomic.Int64

	mu    sync.Mutex
	codes map[int]int64
	timer *time.Timer
}

// NewMonitor creates a monitor acting on target. Subscribe it to the
// test's event bus.
func NewMonitor(c Conditions, target Stopper, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		cond:   c,
		target: target,
		logger: logger,
		codes:  make(map[int]int64),
	}
}

// OnTestState starts the runtime timer when the test starts running and
// stops it once the test is stopping.
func (m *Monitor) OnTestState(s event.State) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch s {
	case event.StateRunning:
		if m.cond.Runtime > 0 && m.timer == nil {
			m.timer = time.AfterFunc(m.cond.Runtime, func() {
				m.logger.Info("runtime reached", zap.Duration("runtime", m.cond.Runtime))
				m.target.StopTest()
			})
		}
	case event.StateStopping, event.StateCompleted, event.StateFailed:
		if m.timer != nil {
			m.timer.Stop()
		}
	}
}

// OnRequestResponse counts the completed request against the conditions.
func (m *Monitor) OnRequestResponse(_ *request.Request, resp *request.Response) {
	// Requests cancelled by the shutdown must not count.
	if !m.target.Running() {
		return
	}

	if resp.StatusCode == request.StatusClientFailure && m.cond.ClientFailures > 0 {
		if n := m.failures.Add(1); n == m.cond.ClientFailures {
			m.target.AbortTest(fmt.Sprintf("client failures reached %d", n))
			return
		}
	}

	if limit, ok := m.cond.StatusCodes[resp.StatusCode]; ok && limit > 0 {
		m.mu.Lock()
		m.codes[resp.StatusCode]++
		n := m.codes[resp.StatusCode]
		m.mu.Unlock()

		if n == limit {
			m.logger.Info("status code limit reached",
				zap.Int("status", resp.StatusCode),
				zap.Int64("count", n))
			m.target.StopTest()
			return
		}
	}

	if m.cond.Operations > 0 {
		if n := m.completed.Add(1); n == m.cond.Operations {
			m.logger.Info("operation limit reached", zap.Int64("operations", n))
			m.target.StopTest()
		}
	}
}
