// Package client executes object-storage requests asynchronously.
//
// A Pool runs every request on its own goroutine over a Transport and hands
// the outcome back through a Future. Two transports are provided: plain
// HTTP against REST-style object URLs and S3 through the AWS SDK.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/wesleyorama2/surge/internal/request"
)

// ErrClosed is the outcome of a request executed after Shutdown.
var ErrClosed = errors.New("client is shut down")

// ImmediateShutdownTimeout bounds how long an immediate shutdown waits for
// cancelled requests to return.
const ImmediateShutdownTimeout = 5 * time.Second

// Client executes requests asynchronously.
type Client interface {
	// Execute starts req and returns its pending outcome.
	Execute(req *request.Request) *Future

	// Shutdown stops accepting requests and delivers true on the returned
	// channel once every in-flight request has finished, or false if they
	// did not finish in time. Immediate shutdowns cancel in-flight requests.
	Shutdown(immediate bool) <-chan bool
}

// Transport performs a single request.
type Transport interface {
	Do(ctx context.Context, req *request.Request) (*request.Response, error)
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithLogger sets the pool logger.
func WithLogger(l *zap.Logger) PoolOption {
	return func(p *Pool) { p.logger = l }
}

// WithRequestTimeout bounds every request. Zero means no bound.
func WithRequestTimeout(d time.Duration) PoolOption {
	return func(p *Pool) { p.requestTimeout = d }
}

// WithShutdownTimeout bounds how long a graceful shutdown drains in-flight
// requests before cancelling them.
func WithShutdownTimeout(d time.Duration) PoolOption {
	return func(p *Pool) { p.shutdownTimeout = d }
}

// Pool is a Client running one goroutine per request.
type Pool struct {
	transport       Transport
	logger          *zap.Logger
	requestTimeout  time.Duration
	shutdownTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	closed   bool
	wg       sync.WaitGroup
	inFlight atomic.Int64

	shutdownOnce sync.Once
	drained      chan struct{}
	clean        atomic.Bool
}

// NewPool creates a pool executing requests over t.
func NewPool(t Transport, opts ...PoolOption) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		transport:       t,
		logger:          zap.NewNop(),
		shutdownTimeout: 30 * time.Second,
		ctx:             ctx,
		cancel:          cancel,
		drained:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Execute implements Client.
func (p *Pool) Execute(req *request.Request) *Future {
	f := newFuture()

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		f.resolve(nil, ErrClosed)
		return f
	}
	p.wg.Add(1)
	p.mu.RUnlock()

	p.inFlight.Add(1)
	go p.run(req, f)

	return f
}

func (p *Pool) run(req *request.Request, f *Future) {
	defer p.wg.Done()
	defer p.inFlight.Add(-1)

	ctx := p.ctx
	if p.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.requestTimeout)
		defer cancel()
	}

	started := time.Now()
	resp, err := p.do(ctx, req)
	if err == nil && resp != nil {
		if resp.Started.IsZero() {
			resp.Started = started
		}
		if resp.Latency == 0 {
			resp.Latency = time.Since(started)
		}
	}
	if err == nil && resp == nil {
		err = fmt.Errorf("%s: transport returned no response", req)
	}

	f.resolve(resp, err)
}

func (p *Pool) do(ctx context.Context, req *request.Request) (resp *request.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("transport panicked",
				zap.String("request", req.String()),
				zap.Any("panic", r))
			resp, err = nil, fmt.Errorf("%s: transport panic: %v", req, r)
		}
	}()
	return p.transport.Do(ctx, req)
}

// InFlight returns the number of requests currently executing.
func (p *Pool) InFlight() int64 {
	return p.inFlight.Load()
}

// Shutdown implements Client. Only the first call picks the shutdown mode;
// every call observes the same outcome.
func (p *Pool) Shutdown(immediate bool) <-chan bool {
	p.shutdownOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()

		go p.shutdown(immediate)
	})

	out := make(chan bool, 1)
	go func() {
		<-p.drained
		out <- p.clean.Load()
		close(out)
	}()
	return out
}

func (p *Pool) shutdown(immediate bool) {
	defer close(p.drained)

	idle := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(idle)
	}()

	if !immediate {
		p.logger.Info("draining in-flight requests",
			zap.Int64("in_flight", p.inFlight.Load()),
			zap.Duration("timeout", p.shutdownTimeout))
		select {
		case <-idle:
			p.cancel()
			p.clean.Store(true)
			return
		case <-time.After(p.shutdownTimeout):
			p.logger.Warn("graceful shutdown timed out, cancelling in-flight requests",
				zap.Int64("in_flight", p.inFlight.Load()))
		}
	}

	p.cancel()
	select {
	case <-idle:
		p.clean.Store(true)
	case <-time.After(ImmediateShutdownTimeout):
		p.logger.Error("requests still running after cancellation",
			zap.Int64("in_flight", p.inFlight.Load()))
	}
}
