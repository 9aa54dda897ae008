package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const yamlConfig = `
name: mixed
endpoint:
  api: s3
  host: http://localhost:9000
  accessKey: minio
  secretKey: minio123
  pathStyle: true
container: bench
objectSize:
  min: 4KiB
  max: 1MiB
operations:
  write: 1
  read: 4
scheduler:
  mode: rate
  rate: 250
  rampup: 30s
  pacing: warmup
  warmup: 10s
stopping:
  runtime: 5m
  requests: 1000
  statusCodes:
    503: 10
shutdown:
  timeout: 15
client:
  bandwidth: 10MB
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoadConfig_YAML(t *testing.T) {
	cfg, err := LoadConfig(writeFile(t, "test.yaml", yamlConfig))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Name != "mixed" {
		t.Errorf("Name = %q, want mixed", cfg.Name)
	}
	if cfg.Endpoint.API != APIS3 || !cfg.Endpoint.PathStyle {
		t.Errorf("Endpoint = %+v", cfg.Endpoint)
	}
	if cfg.ObjectSize.Min != 4096 || cfg.ObjectSize.Max != 1<<20 {
		t.Errorf("ObjectSize = %+v, want 4KiB..1MiB", cfg.ObjectSize)
	}
	if cfg.Operations.Write != 1 || cfg.Operations.Read != 4 {
		t.Errorf("Operations = %+v", cfg.Operations)
	}
	if cfg.Scheduler.Rate != 250 {
		t.Errorf("Rate = %v, want 250", cfg.Scheduler.Rate)
	}
	if cfg.Scheduler.Rampup.Std() != 30*time.Second {
		t.Errorf("Rampup = %v, want 30s", cfg.Scheduler.Rampup.Std())
	}
	if cfg.Scheduler.Warmup.Std() != 10*time.Second {
		t.Errorf("Warmup = %v, want 10s", cfg.Scheduler.Warmup.Std())
	}
	if cfg.Stopping.Runtime.Std() != 5*time.Minute {
		t.Errorf("Runtime = %v, want 5m", cfg.Stopping.Runtime.Std())
	}
	if cfg.Stopping.Requests != 1000 {
		t.Errorf("Requests = %d, want 1000", cfg.Stopping.Requests)
	}
	if cfg.Stopping.StatusCodes[503] != 10 {
		t.Errorf("StatusCodes = %v, want 503:10", cfg.Stopping.StatusCodes)
	}
	// Integer durations are seconds.
	if cfg.Shutdown.Timeout.Std() != 15*time.Second {
		t.Errorf("Shutdown.Timeout = %v, want 15s", cfg.Shutdown.Timeout.Std())
	}
	if cfg.Client.Bandwidth != 10_000_000 {
		t.Errorf("Bandwidth = %d, want 10MB", cfg.Client.Bandwidth)
	}
}

func TestLoadConfig_JSON(t *testing.T) {
	content := `{
		"endpoint": {"host": "http://localhost:8080"},
		"container": "c",
		"objectSize": "64KiB",
		"operations": {"write": 1},
		"scheduler": {"mode": "concurrency", "concurrency": 8}
	}`

	cfg, err := LoadConfig(writeFile(t, "test.json", content))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if !cfg.ObjectSize.Fixed() || cfg.ObjectSize.Min != 64*1024 {
		t.Errorf("ObjectSize = %+v, want fixed 64KiB", cfg.ObjectSize)
	}
	if cfg.Scheduler.Mode != ModeConcurrency || cfg.Scheduler.Concurrency != 8 {
		t.Errorf("Scheduler = %+v", cfg.Scheduler)
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadConfig() should fail for a missing file")
	}
}

func TestParseConfig_Schema(t *testing.T) {
	tests := []struct {
		name    string
		content string
		field   string
	}{
		{
			name:    "missing container",
			content: "endpoint: {host: http://x}\noperations: {write: 1}\n",
			field:   "container",
		},
		{
			name:    "unknown field",
			content: "endpoint: {host: http://x}\ncontainer: c\noperations: {write: 1}\nbogus: 1\n",
			field:   "bogus",
		},
		{
			name:    "unknown mode",
			content: "endpoint: {host: http://x}\ncontainer: c\noperations: {write: 1}\nscheduler: {mode: fast}\n",
			field:   "scheduler.mode",
		},
		{
			name:    "negative weight",
			content: "endpoint: {host: http://x}\ncontainer: c\noperations: {write: -1}\n",
			field:   "operations.write",
		},
		{
			name:    "bad duration",
			content: "endpoint: {host: http://x}\ncontainer: c\noperations: {write: 1}\nstopping: {runtime: soon}\n",
			field:   "stopping.runtime",
		},
		{
			name:    "bad status code",
			content: "endpoint: {host: http://x}\ncontainer: c\noperations: {write: 1}\nstopping: {statusCodes: {700: 1}}\n",
			field:   "stopping.statusCodes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.content), "test.yaml")
			if err == nil {
				t.Fatal("ParseConfig() should fail")
			}

			var verrs *ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("error %v is not a ValidationErrors", err)
			}
			found := false
			for _, e := range verrs.Errors {
				if strings.HasPrefix(e.Field, tt.field) || strings.Contains(e.Message, tt.field) {
					found = true
				}
			}
			if !found {
				t.Errorf("no error for %q in %v", tt.field, err)
			}
		})
	}
}

func TestParseConfig_InvalidYAML(t *testing.T) {
	if _, err := ParseConfig([]byte("endpoint: [\n"), "x.yml"); err == nil {
		t.Error("ParseConfig() should fail for invalid YAML")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &TestConfig{
		Endpoint:   EndpointConfig{Host: "http://localhost"},
		Container:  "bench",
		Operations: OperationsConfig{Write: 1},
	}
	ApplyDefaults(cfg)

	if cfg.Name != "bench" {
		t.Errorf("Name = %q, want container name", cfg.Name)
	}
	if cfg.Endpoint.API != APIHTTP {
		t.Errorf("API = %q, want %q", cfg.Endpoint.API, APIHTTP)
	}
	if cfg.ObjectSize.Min != DefaultObjectSize || cfg.ObjectSize.Max != DefaultObjectSize {
		t.Errorf("ObjectSize = %+v", cfg.ObjectSize)
	}
	if cfg.Scheduler.Mode != ModeRate || cfg.Scheduler.Rate != DefaultRate {
		t.Errorf("Scheduler = %+v", cfg.Scheduler)
	}
	if cfg.Scheduler.Pacing != PacingBursty || cfg.Scheduler.MaxBurstSeconds != DefaultMaxBurstSeconds {
		t.Errorf("Pacing = %q, MaxBurstSeconds = %v", cfg.Scheduler.Pacing, cfg.Scheduler.MaxBurstSeconds)
	}
	if cfg.Scheduler.Buckets != DefaultBuckets {
		t.Errorf("Buckets = %d, want %d", cfg.Scheduler.Buckets, DefaultBuckets)
	}
	if cfg.Client.Timeout.Std() != DefaultTimeout {
		t.Errorf("Client.Timeout = %v", cfg.Client.Timeout.Std())
	}
	if cfg.Shutdown.Timeout.Std() != DefaultShutdownTimeout {
		t.Errorf("Shutdown.Timeout = %v", cfg.Shutdown.Timeout.Std())
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "console" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaulted config should be valid: %v", err)
	}
}

func TestApplyDefaults_S3Region(t *testing.T) {
	cfg := &TestConfig{Endpoint: EndpointConfig{API: APIS3}}
	ApplyDefaults(cfg)
	if cfg.Endpoint.Region != DefaultRegion {
		t.Errorf("Region = %q, want %q", cfg.Endpoint.Region, DefaultRegion)
	}
}

func TestApplyDefaults_Warmup(t *testing.T) {
	cfg := &TestConfig{Scheduler: SchedulerConfig{Pacing: PacingWarmup}}
	ApplyDefaults(cfg)
	if cfg.Scheduler.ColdFactor != DefaultColdFactor {
		t.Errorf("ColdFactor = %v, want %v", cfg.Scheduler.ColdFactor, DefaultColdFactor)
	}
	if cfg.Scheduler.MaxBurstSeconds != 0 {
		t.Errorf("MaxBurstSeconds = %v, want unset for warmup", cfg.Scheduler.MaxBurstSeconds)
	}
}

func TestParseDurationString(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"30s", 30 * time.Second, false},
		{"1h30m", 90 * time.Minute, false},
		{"500ms", 500 * time.Millisecond, false},
		{"30", 30 * time.Second, false},
		{"", 0, false},
		{"soon", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseDurationString(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDurationString(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDurationString(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		input   string
		want    Size
		wantErr bool
	}{
		{"4096", 4096, false},
		{"4KiB", 4096, false},
		{"1MB", 1_000_000, false},
		{"1 MiB", 1 << 20, false},
		{"", 0, false},
		{"lots", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseSize(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSize(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseSize(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestSizeRange_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		input   string
		want    SizeRange
		wantErr bool
	}{
		{`"1KiB"`, SizeRange{Min: 1024, Max: 1024}, false},
		{`2048`, SizeRange{Min: 2048, Max: 2048}, false},
		{`{"min": "1KiB", "max": "2KiB"}`, SizeRange{Min: 1024, Max: 2048}, false},
		{`{"min": 10}`, SizeRange{Min: 10, Max: 10}, false},
		{`"huge"`, SizeRange{}, true},
	}

	for _, tt := range tests {
		var got SizeRange
		err := got.UnmarshalJSON([]byte(tt.input))
		if (err != nil) != tt.wantErr {
			t.Errorf("UnmarshalJSON(%s) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("UnmarshalJSON(%s) = %+v, want %+v", tt.input, got, tt.want)
		}
	}
}

func TestLoadConfig_Examples(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("..", "..", "examples", "*"))
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) == 0 {
		t.Skip("no example configurations")
	}

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			cfg, err := LoadConfig(path)
			if err != nil {
				t.Fatalf("LoadConfig() error = %v", err)
			}
			ApplyDefaults(cfg)
			if err := cfg.Validate(); err != nil {
				t.Errorf("Validate() = %v", err)
			}
		})
	}
}
