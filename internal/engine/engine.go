// Package engine turns a test configuration into a runnable load test.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wesleyorama2/surge/internal/client"
	"github.com/wesleyorama2/surge/internal/config"
	"github.com/wesleyorama2/surge/internal/event"
	"github.com/wesleyorama2/surge/internal/loadtest"
	"github.com/wesleyorama2/surge/internal/rate"
	"github.com/wesleyorama2/surge/internal/request"
	"github.com/wesleyorama2/surge/internal/scheduler"
	"github.com/wesleyorama2/surge/internal/stats"
)

// DefaultPrefillConcurrency is the number of concurrent prefill writes.
const DefaultPrefillConcurrency = 16

// ErrPrefillFailed is returned when not a single prefill write succeeded.
var ErrPrefillFailed = errors.New("prefill failed: no object could be written")

// Engine is the main orchestrator of a load test.
//
// It coordinates:
//   - Transport, client pool and bandwidth throttle construction
//   - Scheduler and request manager construction
//   - Event bus subscriptions (object pool, scheduler, statistics, metrics, stopping conditions)
//   - Prefilling the object pool before the test starts
//
// Example usage:
//
//	cfg, _ := config.LoadConfig("test.yaml")
//	config.ApplyDefaults(cfg)
//	e, _ := engine.New(ctx, cfg)
//	result, _ := e.Run(ctx)
type Engine struct {
	cfg    *config.TestConfig
	logger *zap.Logger
	rng    *rand.Rand

	transport client.Transport
	pool      *client.Pool
	objects   *request.ObjectPool
	bus       *event.Bus
	stats     *stats.Stats
	collector *stats.Collector
	scheduler scheduler.Scheduler
	manager   request.Manager
	test      *loadtest.LoadTest
	monitor   *loadtest.Monitor

	ran atomic.Bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithTransport replaces the transport built from the endpoint config.
func WithTransport(t client.Transport) Option {
	return func(e *Engine) { e.transport = t }
}

// WithCollector sets the Prometheus collector the test reports to.
func WithCollector(c *stats.Collector) Option {
	return func(e *Engine) { e.collector = c }
}

// WithRand sets the random source used to pick operations and sizes.
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) { e.rng = rng }
}

// Result contains the complete test results.
type Result struct {
	Test  *loadtest.Result
	Stats *stats.Snapshot
	// Prefilled is the number of objects written before the test started
	Prefilled int
}

// New builds a load test from cfg. The config must have had defaults
// applied; it is validated again here.
func New(ctx context.Context, cfg *config.TestConfig, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	e := &Engine{
		cfg:     cfg,
		logger:  zap.NewNop(),
		objects: request.NewObjectPool(),
		bus:     event.NewBus(),
		stats:   stats.New(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.collector == nil {
		e.collector = stats.NewCollector()
	}
	if e.rng == nil {
		seed := uint64(time.Now().UnixNano())
		e.rng = rand.New(rand.NewPCG(seed, seed>>1))
	}

	if e.transport == nil {
		t, err := NewTransport(ctx, cfg)
		if err != nil {
			return nil, err
		}
		e.transport = t
	}

	e.pool = client.NewPool(e.transport,
		client.WithLogger(e.logger.Named("client")),
		client.WithRequestTimeout(cfg.Client.Timeout.Std()),
		client.WithShutdownTimeout(cfg.Shutdown.Timeout.Std()))

	s, err := e.newScheduler()
	if err != nil {
		return nil, err
	}
	e.scheduler = s

	m, err := e.newManager()
	if err != nil {
		return nil, err
	}
	e.manager = m

	e.test = loadtest.New(e.scheduler, e.manager, e.pool, e.bus,
		loadtest.WithLogger(e.logger.Named("loadtest")),
		loadtest.WithImmediateShutdown(cfg.Shutdown.Immediate))

	e.monitor = loadtest.NewMonitor(conditions(&cfg.Stopping), e.test, e.logger.Named("stopping"))

	// The object pool must see a pair before the scheduler frees its slot,
	// or the next request could miss a freshly written object.
	for _, sub := range []any{e.objects, e.scheduler, e.stats, e.collector, e.monitor} {
		e.bus.Subscribe(sub)
	}

	return e, nil
}

// NewTransport builds the transport for the configured endpoint.
func NewTransport(ctx context.Context, cfg *config.TestConfig) (client.Transport, error) {
	httpClient := client.NewHTTPClient(client.HTTPConfig{
		Timeout:             cfg.Client.Timeout.Std(),
		MaxIdleConns:        1000,
		MaxIdleConnsPerHost: cfg.Client.MaxIdleConnsPerHost,
		MaxConnsPerHost:     cfg.Client.MaxConnsPerHost,
		IdleConnTimeout:     90 * time.Second,
		InsecureSkipVerify:  cfg.Client.InsecureSkipVerify,
	})
	throttle := client.NewThrottle(cfg.Client.Bandwidth.Int64())

	switch cfg.Endpoint.API {
	case config.APIS3:
		t, err := client.NewS3Transport(ctx, client.S3Config{
			Endpoint:  cfg.Endpoint.Host,
			Region:    cfg.Endpoint.Region,
			AccessKey: cfg.Endpoint.AccessKey,
			SecretKey: cfg.Endpoint.SecretKey,
			PathStyle: cfg.Endpoint.PathStyle,
		}, httpClient, throttle)
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 transport: %w", err)
		}
		return t, nil
	default:
		return client.NewHTTPTransport(cfg.Endpoint.Host, httpClient, throttle, cfg.Endpoint.Headers), nil
	}
}

func (e *Engine) newScheduler() (scheduler.Scheduler, error) {
	sc := &e.cfg.Scheduler
	ramp := scheduler.Ramp{Duration: sc.Rampup.Std()}

	if sc.Mode == config.ModeConcurrency {
		s, err := scheduler.NewConcurrencyScheduler(sc.Concurrency, ramp)
		if err != nil {
			return nil, fmt.Errorf("failed to create scheduler: %w", err)
		}
		return s, nil
	}

	limiter, err := NewLimiter(sc, rate.WithObserver(e.collector))
	if err != nil {
		return nil, err
	}
	s, err := scheduler.NewRateScheduler(limiter, ramp, e.logger.Named("scheduler"))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return s, nil
}

// NewLimiter builds the rate limiter for a rate scheduler config.
func NewLimiter(sc *config.SchedulerConfig, opts ...rate.Option) (*rate.Limiter, error) {
	opts = append([]rate.Option{rate.WithIntervalSource(rate.NewPoissonInterval(sc.Buckets, nil))}, opts...)

	var (
		limiter *rate.Limiter
		err     error
	)
	switch sc.Pacing {
	case config.PacingWarmup:
		limiter, err = rate.NewWarmingUp(sc.Rate, sc.Warmup.Std(), sc.ColdFactor, opts...)
	default:
		limiter, err = rate.NewBursty(sc.Rate, sc.MaxBurstSeconds, opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s limiter: %w", sc.Pacing, err)
	}
	return limiter, nil
}

func (e *Engine) newManager() (request.Manager, error) {
	cfg := e.cfg
	weights := map[request.Operation]int{
		request.OpWrite:    cfg.Operations.Write,
		request.OpRead:     cfg.Operations.Read,
		request.OpDelete:   cfg.Operations.Delete,
		request.OpMetadata: cfg.Operations.Metadata,
	}

	var choices []request.Choice
	for _, op := range request.Operations {
		c := request.Choice{Operation: op, Weight: weights[op]}
		if op == request.OpWrite {
			c.Supplier = e.writeSupplier()
		} else {
			c.Supplier = &request.PoolSupplier{Operation: op, Pool: e.objects}
		}
		choices = append(choices, c)
	}

	m, err := request.NewWeightedManager(choices, e.rng)
	if err != nil {
		return nil, fmt.Errorf("failed to create request manager: %w", err)
	}
	if cfg.Stopping.Requests > 0 {
		return request.Limit(m, cfg.Stopping.Requests), nil
	}
	return m, nil
}

func (e *Engine) writeSupplier() *request.WriteSupplier {
	return &request.WriteSupplier{
		Container: e.cfg.Container,
		Prefix:    e.cfg.Prefix,
		Sizes: request.SizeRange{
			Min: e.cfg.ObjectSize.Min.Int64(),
			Max: e.cfg.ObjectSize.Max.Int64(),
		},
	}
}

func conditions(s *config.StoppingConfig) loadtest.Conditions {
	return loadtest.Conditions{
		Runtime:        s.Runtime.Std(),
		Operations:     s.Operations,
		StatusCodes:    s.StatusCodes,
		ClientFailures: s.ClientFailures,
	}
}

// Run prefills the object pool, if configured, and runs the test. It can
// be called once.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	if !e.ran.CompareAndSwap(false, true) {
		return nil, loadtest.ErrAlreadyRun
	}
	defer e.scheduler.Close()

	prefilled, err := e.prefill(ctx)
	if err != nil {
		return nil, err
	}

	e.logger.Info("starting load test",
		zap.String("name", e.cfg.Name),
		zap.String("target", e.Target()),
		zap.Int("objects", e.objects.Len()))

	res, err := e.test.Run(ctx)
	if err != nil {
		return nil, err
	}

	return &Result{
		Test:      res,
		Stats:     e.stats.Snapshot(),
		Prefilled: prefilled,
	}, nil
}

// prefill writes the configured number of objects straight through the
// transport. The writes are not part of the test statistics.
func (e *Engine) prefill(ctx context.Context) (int, error) {
	n := e.cfg.Prefill
	if n <= 0 {
		return 0, nil
	}
	e.logger.Info("prefilling objects", zap.Int("count", n))

	supplier := e.writeSupplier()
	reqs := make([]*request.Request, n)
	for i := range reqs {
		reqs[i], _ = supplier.Supply(e.rng)
	}

	var written atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(DefaultPrefillConcurrency)

	for _, req := range reqs {
		g.Go(func() error {
			rctx, cancel := context.WithTimeout(gctx, e.cfg.Client.Timeout.Std())
			defer cancel()

			resp, err := e.transport.Do(rctx, req)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				e.logger.Warn("prefill write failed", zap.String("object", req.Object), zap.Error(err))
				return nil
			}
			if !resp.Success() {
				e.logger.Warn("prefill write rejected", zap.String("object", req.Object), zap.Int("status", resp.StatusCode))
				return nil
			}
			e.objects.Add(request.Object{Container: req.Container, Name: req.Object, Size: req.Size})
			written.Add(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return int(written.Load()), fmt.Errorf("prefill interrupted: %w", err)
	}
	if written.Load() == 0 {
		return 0, ErrPrefillFailed
	}
	e.logger.Info("prefill complete", zap.Int64("written", written.Load()), zap.Int("requested", n))
	return int(written.Load()), nil
}

// Target describes the configured load, e.g. "250 req/s (bursty)" or
// "8 in flight".
func (e *Engine) Target() string {
	sc := &e.cfg.Scheduler
	var s string
	if sc.Mode == config.ModeConcurrency {
		s = fmt.Sprintf("%d in flight", sc.Concurrency)
	} else {
		s = fmt.Sprintf("%g req/s (%s)", sc.Rate, sc.Pacing)
	}
	if sc.Rampup > 0 {
		s += fmt.Sprintf(", %s ramp-up", sc.Rampup.Std())
	}
	return s
}

// Stats returns the statistics of the running test.
func (e *Engine) Stats() *stats.Stats { return e.stats }

// Collector returns the Prometheus collector the test reports to.
func (e *Engine) Collector() *stats.Collector { return e.collector }

// Objects returns the pool of known objects.
func (e *Engine) Objects() *request.ObjectPool { return e.objects }

// Test returns the underlying load test, e.g. to stop it.
func (e *Engine) Test() *loadtest.LoadTest { return e.test }
