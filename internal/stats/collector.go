package stats

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wesleyorama2/surge/internal/event"
	"github.com/wesleyorama2/surge/internal/request"
)

const namespace = "surge"

// Collector exports load test events as Prometheus metrics. Each Collector
// owns its registry.
type Collector struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	bytes    *prometheus.CounterVec
	inFlight prometheus.Gauge
	issued   prometheus.Counter
	wait     prometheus.Histogram
	state    *prometheus.GaugeVec
}

// NewCollector creates a Collector and registers its metrics along with
// the Go runtime collectors.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),

		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Completed requests by operation and status code.",
			},
			[]string{"op", "status"},
		),

		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Latency of completed requests.",
				// 1ms .. ~16s
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
			},
			[]string{"op"},
		),

		bytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transferred_bytes_total",
				Help:      "Payload bytes sent or received.",
			},
			[]string{"op"},
		),

		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "in_flight_requests",
			Help:      "Requests issued and not yet completed.",
		}),

		issued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "issued_requests_total",
			Help:      "Requests handed to the client.",
		}),

		wait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "limiter_wait_seconds",
			Help:      "Time callers waited for rate limiter permits.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 16),
		}),

		state: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "test_state",
				Help:      "1 for the current load test state.",
			},
			[]string{"state"},
		),
	}

	c.registry.MustRegister(
		c.requests, c.latency, c.bytes, c.inFlight, c.issued, c.wait, c.state,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	c.setState(event.StateNew)
	return c
}

// Registry returns the registry the metrics live in.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler exposes the metrics. Mount it with mux.Handle("/metrics", c.Handler()).
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// OnTestState implements event.StateListener.
func (c *Collector) OnTestState(s event.State) {
	c.setState(s)
}

func (c *Collector) setState(current event.State) {
	for _, s := range []event.State{
		event.StateNew, event.StateRunning, event.StateStopping,
		event.StateCompleted, event.StateFailed,
	} {
		v := 0.0
		if s == current {
			v = 1
		}
		c.state.WithLabelValues(s.String()).Set(v)
	}
}

// OnRequest implements event.RequestListener.
func (c *Collector) OnRequest(*request.Request) {
	c.issued.Inc()
	c.inFlight.Inc()
}

// OnRequestResponse implements event.PairListener.
func (c *Collector) OnRequestResponse(req *request.Request, resp *request.Response) {
	op := string(req.Operation)
	c.inFlight.Dec()
	c.requests.WithLabelValues(op, strconv.Itoa(resp.StatusCode)).Inc()
	c.latency.WithLabelValues(op).Observe(resp.Latency.Seconds())
	c.bytes.WithLabelValues(op).Add(float64(resp.Bytes))
}

// ObserveReservation implements rate.Observer.
func (c *Collector) ObserveReservation(_ int, wait time.Duration) {
	c.wait.Observe(wait.Seconds())
}
