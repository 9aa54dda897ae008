package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied by ApplyDefaults.
const (
	DefaultMode            = ModeRate
	DefaultRate            = 10
	DefaultConcurrency     = 10
	DefaultPacing          = PacingBursty
	DefaultMaxBurstSeconds = 1.0
	DefaultColdFactor      = 3.0
	DefaultBuckets         = 10
	DefaultObjectSize      = Size(4096)
	DefaultTimeout         = 30 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultIdleConns       = 100
	DefaultRegion          = "us-east-1"
)

// LoadConfig loads a test configuration from a file.
//
// The file format is determined by extension:
//   - .yaml, .yml -> YAML
//   - .json -> JSON
//
// The returned config has been checked against the schema but neither
// defaulted nor validated.
func LoadConfig(path string) (*TestConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return ParseConfig(data, path)
}

// ParseConfig parses configuration data.
//
// The format is determined by the file extension in path, or defaults to YAML
// if the path is empty or has an unknown extension. Both formats are
// converted to JSON, checked against the schema and decoded.
func ParseConfig(data []byte, path string) (*TestConfig, error) {
	var doc []byte

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		doc = data
	default:
		var v interface{}
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
		if v == nil {
			v = map[string]interface{}{}
		}
		normalized, err := normalizeYAML(v)
		if err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
		if doc, err = json.Marshal(normalized); err != nil {
			return nil, fmt.Errorf("failed to convert YAML config: %w", err)
		}
	}

	if err := checkSchema(doc); err != nil {
		return nil, fmt.Errorf("config does not match schema: %w", err)
	}

	var config TestConfig
	if err := json.Unmarshal(doc, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &config, nil
}

// normalizeYAML converts YAML maps with non-string keys (e.g. status codes)
// into JSON compatible maps.
func normalizeYAML(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, val := range t {
			n, err := normalizeYAML(val)
			if err != nil {
				return nil, err
			}
			t[k] = n
		}
		return t, nil
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, val := range t {
			n, err := normalizeYAML(val)
			if err != nil {
				return nil, err
			}
			m[fmt.Sprint(k)] = n
		}
		return m, nil
	case []interface{}:
		for i, val := range t {
			n, err := normalizeYAML(val)
			if err != nil {
				return nil, err
			}
			t[i] = n
		}
		return t, nil
	case time.Time:
		return nil, fmt.Errorf("unexpected timestamp %s", t.Format(time.RFC3339))
	default:
		return v, nil
	}
}

// ApplyDefaults applies default values to a TestConfig.
func ApplyDefaults(config *TestConfig) {
	if config.Name == "" {
		config.Name = config.Container
	}

	if config.Endpoint.API == "" {
		config.Endpoint.API = APIHTTP
	}
	if config.Endpoint.API == APIS3 && config.Endpoint.Region == "" {
		config.Endpoint.Region = DefaultRegion
	}

	if config.ObjectSize.Min == 0 && config.ObjectSize.Max == 0 {
		config.ObjectSize = SizeRange{Min: DefaultObjectSize, Max: DefaultObjectSize}
	}

	applySchedulerDefaults(&config.Scheduler)

	if config.Shutdown.Timeout == 0 {
		config.Shutdown.Timeout = Duration(DefaultShutdownTimeout)
	}

	if config.Client.Timeout == 0 {
		config.Client.Timeout = Duration(DefaultTimeout)
	}
	if config.Client.MaxIdleConnsPerHost == 0 {
		config.Client.MaxIdleConnsPerHost = DefaultIdleConns
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Logging.Format == "" {
		config.Logging.Format = "console"
	}
}

// applySchedulerDefaults applies default values to the scheduler section.
func applySchedulerDefaults(sc *SchedulerConfig) {
	if sc.Mode == "" {
		sc.Mode = DefaultMode
	}

	switch sc.Mode {
	case ModeRate:
		if sc.Rate == 0 {
			sc.Rate = DefaultRate
		}
		if sc.Pacing == "" {
			sc.Pacing = DefaultPacing
		}
		if sc.Pacing == PacingBursty && sc.MaxBurstSeconds == 0 {
			sc.MaxBurstSeconds = DefaultMaxBurstSeconds
		}
		if sc.Pacing == PacingWarmup && sc.ColdFactor == 0 {
			sc.ColdFactor = DefaultColdFactor
		}
		if sc.Buckets == 0 {
			sc.Buckets = DefaultBuckets
		}
	case ModeConcurrency:
		if sc.Concurrency == 0 {
			sc.Concurrency = DefaultConcurrency
		}
	}
}
