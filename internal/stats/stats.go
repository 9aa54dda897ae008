// Package stats aggregates the outcome of a load test.
//
// Stats keeps HDR latency histograms per operation and a per-second
// throughput series; Collector exports the same events as Prometheus
// metrics. Both are event bus subscribers.
package stats

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/wesleyorama2/surge/internal/event"
	"github.com/wesleyorama2/surge/internal/request"
)

// Config contains configuration for Stats.
type Config struct {
	// BucketInterval is the width of a time-series bucket (default: 1s)
	BucketInterval time.Duration

	// MaxBuckets is the maximum number of buckets to retain (default: 3600)
	MaxBuckets int

	// HistogramMin is the minimum recordable value in microseconds (default: 1)
	HistogramMin int64

	// HistogramMax is the maximum recordable value in microseconds (default: 3600000000 = 1 hour)
	HistogramMax int64

	// HistogramSigFigs is the number of significant figures (default: 3)
	HistogramSigFigs int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		BucketInterval:   time.Second,
		MaxBuckets:       3600,
		HistogramMin:     1,
		HistogramMax:     3600000000, // 1 hour in microseconds
		HistogramSigFigs: 3,
	}
}

// opStats holds the counters of one operation.
type opStats struct {
	requests atomic.Int64
	success  atomic.Int64
	failed   atomic.Int64
	bytes    atomic.Int64

	// HDR histogram RecordValue is not thread-safe.
	mu   sync.Mutex
	hist *hdrhistogram.Histogram
}

// Stats collects request outcomes. It is safe for concurrent use.
type Stats struct {
	config Config

	all   *opStats
	ops   map[request.Operation]*opStats
	other *opStats // operations outside request.Operations

	clientFailures atomic.Int64

	codesMu sync.Mutex
	codes   map[int]int64

	series *Series

	timeMu sync.RWMutex
	start  time.Time
	finish time.Time
	state  event.State
}

// New creates Stats with the default configuration.
func New() *Stats {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates Stats with a custom configuration.
func NewWithConfig(config Config) *Stats {
	s := &Stats{
		config: config,
		all:    newOpStats(config),
		ops:    make(map[request.Operation]*opStats, len(request.Operations)),
		other:  newOpStats(config),
		codes:  make(map[int]int64),
		series: NewSeries(config.BucketInterval, config.MaxBuckets),
	}
	for _, op := range request.Operations {
		s.ops[op] = newOpStats(config)
	}
	return s
}

func newOpStats(c Config) *opStats {
	return &opStats{hist: hdrhistogram.New(c.HistogramMin, c.HistogramMax, c.HistogramSigFigs)}
}

// OnTestState records when the test starts and finishes.
func (s *Stats) OnTestState(st event.State) {
	s.timeMu.Lock()
	defer s.timeMu.Unlock()

	s.state = st
	switch st {
	case event.StateRunning:
		s.start = time.Now()
		s.series.SetStart(s.start)
	case event.StateCompleted, event.StateFailed:
		s.finish = time.Now()
	}
}

// OnRequestResponse records a completed request.
func (s *Stats) OnRequestResponse(req *request.Request, resp *request.Response) {
	s.Record(req.Operation, resp)
}

// Record records resp as the outcome of an op request.
func (s *Stats) Record(op request.Operation, resp *request.Response) {
	latencyMicros := resp.Latency.Microseconds()

	// Clamp to valid range
	if latencyMicros < s.config.HistogramMin {
		latencyMicros = s.config.HistogramMin
	}
	if latencyMicros > s.config.HistogramMax {
		latencyMicros = s.config.HistogramMax
	}

	success := resp.Success()
	s.all.record(latencyMicros, success, resp.Bytes)
	if o, ok := s.ops[op]; ok {
		o.record(latencyMicros, success, resp.Bytes)
	} else {
		s.other.record(latencyMicros, success, resp.Bytes)
	}

	if resp.StatusCode == request.StatusClientFailure {
		s.clientFailures.Add(1)
	}

	s.codesMu.Lock()
	s.codes[resp.StatusCode]++
	s.codesMu.Unlock()

	completed := resp.Started.Add(resp.Latency)
	if resp.Started.IsZero() {
		completed = time.Now()
	}
	s.series.Record(completed, success, resp.Bytes)
}

func (o *opStats) record(latencyMicros int64, success bool, bytes int64) {
	o.mu.Lock()
	o.hist.RecordValue(latencyMicros)
	o.mu.Unlock()

	o.requests.Add(1)
	o.bytes.Add(bytes)
	if success {
		o.success.Add(1)
	} else {
		o.failed.Add(1)
	}
}

func (o *opStats) snapshot() OperationStats {
	o.mu.Lock()
	latency := latencyStats(o.hist)
	o.mu.Unlock()

	return OperationStats{
		Requests: o.requests.Load(),
		Success:  o.success.Load(),
		Failed:   o.failed.Load(),
		Bytes:    o.bytes.Load(),
		Latency:  latency,
	}
}

func latencyStats(h *hdrhistogram.Histogram) LatencyStats {
	return LatencyStats{
		Min:    time.Duration(h.Min()) * time.Microsecond,
		Max:    time.Duration(h.Max()) * time.Microsecond,
		Mean:   time.Duration(h.Mean()) * time.Microsecond,
		StdDev: time.Duration(h.StdDev()) * time.Microsecond,
		P50:    time.Duration(h.ValueAtQuantile(50)) * time.Microsecond,
		P90:    time.Duration(h.ValueAtQuantile(90)) * time.Microsecond,
		P95:    time.Duration(h.ValueAtQuantile(95)) * time.Microsecond,
		P99:    time.Duration(h.ValueAtQuantile(99)) * time.Microsecond,
		Count:  h.TotalCount(),
	}
}

// Snapshot returns a point-in-time view of everything recorded.
func (s *Stats) Snapshot() *Snapshot {
	s.timeMu.RLock()
	start, finish, state := s.start, s.finish, s.state
	s.timeMu.RUnlock()

	var elapsed time.Duration
	switch {
	case start.IsZero():
	case finish.IsZero():
		elapsed = time.Since(start)
	default:
		elapsed = finish.Sub(start)
	}

	total := s.all.snapshot()
	snap := &Snapshot{
		Start:          start,
		Finish:         finish,
		Elapsed:        elapsed,
		State:          state.String(),
		Total:          total,
		ClientFailures: s.clientFailures.Load(),
		Operations:     make(map[request.Operation]OperationStats),
		StatusCodes:    make(map[int]int64),
		TimeSeries:     s.series.Buckets(),
	}

	if secs := elapsed.Seconds(); secs > 0 {
		snap.RPS = float64(total.Requests) / secs
		snap.Throughput = float64(total.Bytes) / secs
	}
	if total.Requests > 0 {
		snap.ErrorRate = float64(total.Failed) / float64(total.Requests)
	}

	for op, o := range s.ops {
		if opStats := o.snapshot(); opStats.Requests > 0 {
			snap.Operations[op] = opStats
		}
	}

	s.codesMu.Lock()
	for code, n := range s.codes {
		snap.StatusCodes[code] = n
	}
	s.codesMu.Unlock()

	return snap
}

// Snapshot contains a point-in-time view of a test's statistics.
type Snapshot struct {
	Start          time.Time                            `json:"start"`
	Finish         time.Time                            `json:"finish"`
	Elapsed        time.Duration                        `json:"elapsed"`
	State          string                               `json:"state"`
	Total          OperationStats                       `json:"total"`
	ClientFailures int64                                `json:"clientFailures"`
	RPS            float64                              `json:"rps"`
	Throughput     float64                              `json:"throughputBytesPerSecond"`
	ErrorRate      float64                              `json:"errorRate"`
	Operations     map[request.Operation]OperationStats `json:"operations"`
	StatusCodes    map[int]int64                        `json:"statusCodes"`
	TimeSeries     []Bucket                             `json:"timeSeries,omitempty"`
}

// SortedStatusCodes returns the recorded status codes in ascending order.
func (s *Snapshot) SortedStatusCodes() []int {
	codes := make([]int, 0, len(s.StatusCodes))
	for c := range s.StatusCodes {
		codes = append(codes, c)
	}
	sort.Ints(codes)
	return codes
}

// OperationStats contains the counters of one operation.
type OperationStats struct {
	Requests int64        `json:"requests"`
	Success  int64        `json:"success"`
	Failed   int64        `json:"failed"`
	Bytes    int64        `json:"bytes"`
	Latency  LatencyStats `json:"latency"`
}

// LatencyStats contains latency statistics.
type LatencyStats struct {
	Min    time.Duration `json:"min"`
	Max    time.Duration `json:"max"`
	Mean   time.Duration `json:"mean"`
	StdDev time.Duration `json:"stdDev"`
	P50    time.Duration `json:"p50"`
	P90    time.Duration `json:"p90"`
	P95    time.Duration `json:"p95"`
	P99    time.Duration `json:"p99"`
	Count  int64         `json:"count"`
}
