// Package config provides configuration parsing and validation for surge
// load tests.
package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// TestConfig is the root configuration of a load test.
//
// Example YAML:
//
//	name: "read heavy"
//	endpoint:
//	  api: s3
//	  host: "http://localhost:9000"
//	  accessKey: minio
//	  secretKey: minio123
//	  pathStyle: true
//	container: bench
//	objectSize: {min: 4KiB, max: 1MiB}
//	operations: {write: 1, read: 4}
//	scheduler:
//	  mode: rate
//	  rate: 200
//	  rampup: 30s
//	stopping:
//	  runtime: 5m
type TestConfig struct {
	// Name of the test (for reporting)
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Endpoint is the object store under test
	Endpoint EndpointConfig `json:"endpoint" yaml:"endpoint"`

	// Container is the bucket or container objects live in
	Container string `json:"container" yaml:"container"`

	// Prefix is prepended to the names of written objects
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`

	// ObjectSize is the size, or size range, of written objects
	ObjectSize SizeRange `json:"objectSize,omitempty" yaml:"objectSize,omitempty"`

	// Prefill writes this many objects before the test starts
	Prefill int `json:"prefill,omitempty" yaml:"prefill,omitempty"`

	// Operations are the relative weights of each operation
	Operations OperationsConfig `json:"operations" yaml:"operations"`

	Scheduler SchedulerConfig `json:"scheduler" yaml:"scheduler"`
	Stopping  StoppingConfig  `json:"stopping,omitempty" yaml:"stopping,omitempty"`
	Shutdown  ShutdownConfig  `json:"shutdown,omitempty" yaml:"shutdown,omitempty"`
	Client    ClientConfig    `json:"client,omitempty" yaml:"client,omitempty"`
	Metrics   MetricsConfig   `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Logging   LoggingConfig   `json:"logging,omitempty" yaml:"logging,omitempty"`
}

// Supported endpoint APIs.
const (
	APIHTTP = "http"
	APIS3   = "s3"
)

// EndpointConfig describes the object store under test.
type EndpointConfig struct {
	// API is "http" (plain REST object URLs) or "s3"
	API string `json:"api,omitempty" yaml:"api,omitempty"`

	// Host is the base URL, e.g. "http://localhost:9000"
	Host string `json:"host" yaml:"host"`

	Region    string `json:"region,omitempty" yaml:"region,omitempty"`
	AccessKey string `json:"accessKey,omitempty" yaml:"accessKey,omitempty"`
	SecretKey string `json:"secretKey,omitempty" yaml:"secretKey,omitempty"`
	PathStyle bool   `json:"pathStyle,omitempty" yaml:"pathStyle,omitempty"`

	// Headers are added to every request of the http API
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// OperationsConfig holds operation weights. Zero disables an operation.
type OperationsConfig struct {
	Write    int `json:"write,omitempty" yaml:"write,omitempty"`
	Read     int `json:"read,omitempty" yaml:"read,omitempty"`
	Delete   int `json:"delete,omitempty" yaml:"delete,omitempty"`
	Metadata int `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Total returns the sum of all weights.
func (o OperationsConfig) Total() int {
	return o.Write + o.Read + o.Delete + o.Metadata
}

// Scheduler modes and pacing strategies.
const (
	ModeRate        = "rate"
	ModeConcurrency = "concurrency"

	PacingBursty = "bursty"
	PacingWarmup = "warmup"
)

// SchedulerConfig controls how fast requests are issued.
type SchedulerConfig struct {
	// Mode is "rate" (requests per second) or "concurrency" (requests in flight)
	Mode string `json:"mode,omitempty" yaml:"mode,omitempty"`

	// Rate is the target request rate for the rate mode
	Rate float64 `json:"rate,omitempty" yaml:"rate,omitempty"`

	// Concurrency is the number of requests in flight for the concurrency mode
	Concurrency int `json:"concurrency,omitempty" yaml:"concurrency,omitempty"`

	// Rampup is how long it takes to reach the target rate or concurrency
	Rampup Duration `json:"rampup,omitempty" yaml:"rampup,omitempty"`

	// Pacing is the rate limiter strategy: "bursty" or "warmup"
	Pacing string `json:"pacing,omitempty" yaml:"pacing,omitempty"`

	// MaxBurstSeconds is how many seconds of unused permits a bursty limiter stores
	MaxBurstSeconds float64 `json:"maxBurstSeconds,omitempty" yaml:"maxBurstSeconds,omitempty"`

	// Warmup is the warm-up period of a warmup limiter
	Warmup Duration `json:"warmup,omitempty" yaml:"warmup,omitempty"`

	// ColdFactor is how much slower a cold warmup limiter issues permits
	ColdFactor float64 `json:"coldFactor,omitempty" yaml:"coldFactor,omitempty"`

	// Buckets is the Poisson jitter resolution
	Buckets int `json:"buckets,omitempty" yaml:"buckets,omitempty"`
}

// StoppingConfig lists when a test ends on its own.
type StoppingConfig struct {
	// Runtime stops the test after this long
	Runtime Duration `json:"runtime,omitempty" yaml:"runtime,omitempty"`

	// Operations stops the test after this many completed requests
	Operations int64 `json:"operations,omitempty" yaml:"operations,omitempty"`

	// Requests stops issuing after this many requests and drains the rest
	Requests int64 `json:"requests,omitempty" yaml:"requests,omitempty"`

	// StatusCodes stops the test when a status code has been seen this often
	StatusCodes map[int]int64 `json:"statusCodes,omitempty" yaml:"statusCodes,omitempty"`

	// ClientFailures aborts the test after this many client failures
	ClientFailures int64 `json:"clientFailures,omitempty" yaml:"clientFailures,omitempty"`
}

// ShutdownConfig controls how in-flight requests are handled on stop.
type ShutdownConfig struct {
	// Immediate cancels in-flight requests instead of draining them
	Immediate bool `json:"immediate,omitempty" yaml:"immediate,omitempty"`

	// Timeout bounds a graceful drain
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// ClientConfig contains HTTP client settings.
type ClientConfig struct {
	// Timeout is the per-request timeout
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// MaxIdleConnsPerHost limits idle connections per host
	MaxIdleConnsPerHost int `json:"maxIdleConnsPerHost,omitempty" yaml:"maxIdleConnsPerHost,omitempty"`

	// MaxConnsPerHost limits connections per host (0 = unlimited)
	MaxConnsPerHost int `json:"maxConnsPerHost,omitempty" yaml:"maxConnsPerHost,omitempty"`

	// Bandwidth caps payload bytes per second across all requests (0 = unlimited)
	Bandwidth Size `json:"bandwidth,omitempty" yaml:"bandwidth,omitempty"`

	// InsecureSkipVerify skips TLS certificate verification
	InsecureSkipVerify bool `json:"insecureSkipVerify,omitempty" yaml:"insecureSkipVerify,omitempty"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	// Listen is the address to serve /metrics on; empty disables it
	Listen string `json:"listen,omitempty" yaml:"listen,omitempty"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `json:"level,omitempty" yaml:"level,omitempty"`
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// Duration is a wrapper around time.Duration for JSON/YAML parsing.
type Duration time.Duration

// ParseDurationString parses a duration string with support for common formats.
//
// Supported formats:
//   - Standard Go duration: "30s", "2m", "1h30m", "500ms"
//   - Seconds as integer: "30" (treated as 30 seconds)
func ParseDurationString(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(s)
	if err == nil {
		return d, nil
	}

	if seconds, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}

	return 0, fmt.Errorf("invalid duration format: %s", s)
}

// Std returns the duration as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// GetDuration returns the duration or a default if empty.
func (d Duration) GetDuration(defaultValue time.Duration) time.Duration {
	if d == 0 {
		return defaultValue
	}
	return time.Duration(d)
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	// Remove quotes if present
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}

	if s == "" || s == "null" {
		*d = 0
		return nil
	}

	dur, err := ParseDurationString(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// Size is a byte count that parses from strings like "4MiB" or "100kB".
type Size int64

// ParseSize parses a human readable byte count. Plain integers are bytes.
func ParseSize(s string) (Size, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return Size(n), nil
}

// Int64 returns the size in bytes.
func (s Size) Int64() int64 {
	return int64(s)
}

func (s Size) String() string {
	return humanize.IBytes(uint64(s))
}

// MarshalJSON implements json.Marshaler.
func (s Size) MarshalJSON() ([]byte, error) {
	return json.Marshal(int64(s))
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Size) UnmarshalJSON(b []byte) error {
	str := strings.Trim(string(b), `"`)
	if str == "null" {
		*s = 0
		return nil
	}
	n, err := ParseSize(str)
	if err != nil {
		return err
	}
	*s = n
	return nil
}

// SizeRange is an object size range. In config files it is either a single
// size or an object with min and max.
type SizeRange struct {
	Min Size `json:"min" yaml:"min"`
	Max Size `json:"max" yaml:"max"`
}

// Fixed reports whether the range holds a single size.
func (r SizeRange) Fixed() bool {
	return r.Min == r.Max
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *SizeRange) UnmarshalJSON(b []byte) error {
	if trimmed := strings.TrimSpace(string(b)); !strings.HasPrefix(trimmed, "{") {
		var s Size
		if err := s.UnmarshalJSON(b); err != nil {
			return err
		}
		*r = SizeRange{Min: s, Max: s}
		return nil
	}

	var raw struct {
		Min Size `json:"min"`
		Max Size `json:"max"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	r.Min, r.Max = raw.Min, raw.Max
	if r.Max == 0 {
		r.Max = r.Min
	}
	return nil
}
