// Package loadtest drives a load test: it pulls permits from a scheduler,
// requests from a manager, hands them to an asynchronous client and
// publishes what happens on the event bus.
//
// # Lifecycle
//
// A LoadTest runs once. Run publishes StateRunning and starts the produce
// loop; StopTest or AbortTest end it. Stopping cancels the produce loop,
// publishes StateStopping and shuts the client down off the caller's
// goroutine, so both may be called from inside a request continuation.
//
// # Delivery
//
// Every request handed to the client yields exactly one request/response
// event. Requests that fail before the server answers are reported with a
// synthesised response carrying request.StatusClientFailure.
package loadtest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/wesleyorama2/surge/internal/client"
	"github.com/wesleyorama2/surge/internal/event"
	"github.com/wesleyorama2/surge/internal/request"
	"github.com/wesleyorama2/surge/internal/scheduler"
)

// ErrAlreadyRun is returned by a second call to Run.
var ErrAlreadyRun = errors.New("load test has already been run")

// Result is the outcome of a load test.
type Result struct {
	Start    time.Time   `json:"start"`
	Finish   time.Time   `json:"finish"`
	Success  bool        `json:"success"`
	Messages []string    `json:"messages,omitempty"`
	State    event.State `json:"-"`
	Requests int64       `json:"requests"`
}

// Duration returns how long the test ran.
func (r *Result) Duration() time.Duration {
	return r.Finish.Sub(r.Start)
}

// Option configures a LoadTest.
type Option func(*LoadTest)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(lt *LoadTest) { lt.logger = l }
}

// WithImmediateShutdown makes stopping cancel in-flight requests instead of
// draining them.
func WithImmediateShutdown(immediate bool) Option {
	return func(lt *LoadTest) { lt.immediate = immediate }
}

// LoadTest issues requests until it is stopped or aborted.
type LoadTest struct {
	scheduler scheduler.Scheduler
	manager   request.Manager
	client    client.Client
	bus       *event.Bus
	logger    *zap.Logger
	immediate bool

	running atomic.Bool
	started atomic.Bool
	issued  atomic.Int64

	mu       sync.Mutex
	state    event.State
	success  bool
	messages []string
	start    time.Time
	finish   time.Time

	loopCtx    context.Context
	cancelLoop context.CancelFunc
	loopDone   chan struct{}

	completed    chan struct{}
	completeOnce sync.Once
}

// New creates a load test. The test is considered running from creation
// on, so StopTest and AbortTest may be called before Run.
func New(s scheduler.Scheduler, m request.Manager, c client.Client, bus *event.Bus, opts ...Option) *LoadTest {
	ctx, cancel := context.WithCancel(context.Background())
	lt := &LoadTest{
		scheduler:  s,
		manager:    m,
		client:     c,
		bus:        bus,
		logger:     zap.NewNop(),
		state:      event.StateNew,
		success:    true,
		loopCtx:    ctx,
		cancelLoop: cancel,
		loopDone:   make(chan struct{}),
		completed:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(lt)
	}
	lt.running.Store(true)
	return lt
}

// Run executes the test and blocks until it has completed.
//
// Cancelling ctx stops the test; Run still waits for the shutdown to
// finish. The only error is ErrAlreadyRun.
func (lt *LoadTest) Run(ctx context.Context) (*Result, error) {
	if !lt.started.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRun
	}

	lt.mu.Lock()
	lt.start = time.Now()
	lt.state = event.StateRunning
	lt.mu.Unlock()

	lt.logger.Info("load test started")
	lt.bus.PublishState(event.StateRunning)

	go lt.produce()

	stop := context.AfterFunc(ctx, func() {
		lt.logger.Info("load test interrupted")
		lt.StopTest()
	})
	defer stop()

	<-lt.completed
	<-lt.loopDone

	lt.mu.Lock()
	lt.finish = time.Now()
	if lt.success {
		lt.state = event.StateCompleted
	} else {
		lt.state = event.StateFailed
	}
	result := &Result{
		Start:    lt.start,
		Finish:   lt.finish,
		Success:  lt.success,
		Messages: append([]string(nil), lt.messages...),
		State:    lt.state,
		Requests: lt.issued.Load(),
	}
	lt.mu.Unlock()

	lt.bus.PublishState(result.State)
	lt.logger.Info("load test finished",
		zap.Stringer("state", result.State),
		zap.Duration("duration", result.Duration()),
		zap.Int64("requests", result.Requests))

	return result, nil
}

// produce is the produce loop. It is the only goroutine issuing requests.
func (lt *LoadTest) produce() {
	defer close(lt.loopDone)

	for lt.running.Load() {
		if err := lt.scheduler.Schedule(lt.loopCtx); err != nil {
			if lt.loopCtx.Err() == nil {
				lt.logger.Error("scheduler failed", zap.Error(err))
				lt.AbortTest(fmt.Sprintf("scheduler: %v", err))
			}
			return
		}

		// A stop may have been requested while we were waiting.
		if !lt.running.Load() {
			lt.unschedule()
			return
		}

		req, err := lt.manager.Get(lt.loopCtx)
		if err != nil {
			lt.unschedule()
			switch {
			case errors.Is(err, request.ErrExhausted):
				lt.logger.Info("no more requests to issue")
				lt.StopTest()
			case lt.loopCtx.Err() != nil:
			default:
				lt.logger.Error("request manager failed", zap.Error(err))
				lt.AbortTest(err.Error())
			}
			return
		}

		lt.dispatch(req)
	}
}

func (lt *LoadTest) unschedule() {
	if c, ok := lt.scheduler.(scheduler.Canceler); ok {
		c.Cancel()
	}
}

func (lt *LoadTest) dispatch(req *request.Request) {
	// Listeners see the request before any outcome of it.
	lt.issued.Add(1)
	lt.bus.PublishRequest(req)

	started := time.Now()
	future := lt.client.Execute(req)

	future.Then(func(resp *request.Response, err error) {
		if err != nil {
			lt.logger.Debug("request failed",
				zap.String("request", req.String()),
				zap.Error(err))
			resp = request.ClientFailure(started, err)
		}
		lt.bus.PublishResponse(resp)
		lt.bus.PublishPair(req, resp)
	})
}

// StopTest ends the test. Only the first call to StopTest or AbortTest
// has an effect.
func (lt *LoadTest) StopTest() {
	if !lt.running.CompareAndSwap(true, false) {
		return
	}
	lt.logger.Info("stopping load test")
	lt.stop()
}

// AbortTest ends the test as failed. The message is recorded only if this
// call is the one ending the test; later messages are logged and dropped.
func (lt *LoadTest) AbortTest(message string) {
	lt.mu.Lock()
	first := lt.running.CompareAndSwap(true, false)
	lt.success = false
	if first && message != "" {
		lt.messages = append(lt.messages, message)
	}
	lt.mu.Unlock()

	lt.manager.SetAbort(true)

	if !first {
		if message != "" {
			lt.logger.Warn("test already stopping, dropping abort message", zap.String("message", message))
		}
		return
	}
	lt.logger.Error("aborting load test", zap.String("reason", message))
	lt.stop()
}

func (lt *LoadTest) stop() {
	lt.cancelLoop()
	// The client may be waiting on the very continuation that called us.
	go lt.shutdown()
}

func (lt *LoadTest) shutdown() {
	lt.mu.Lock()
	lt.state = event.StateStopping
	lt.mu.Unlock()
	lt.bus.PublishState(event.StateStopping)

	if clean := <-lt.client.Shutdown(lt.immediate); !clean {
		lt.logger.Warn("client shut down with requests still in flight")
	}

	lt.completeOnce.Do(func() { close(lt.completed) })
}

// Running reports whether the test has not been stopped yet.
func (lt *LoadTest) Running() bool {
	return lt.running.Load()
}

// State returns the current lifecycle state.
func (lt *LoadTest) State() event.State {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	return lt.state
}

// Issued returns the number of requests handed to the client so far.
func (lt *LoadTest) Issued() int64 {
	return lt.issued.Load()
}
