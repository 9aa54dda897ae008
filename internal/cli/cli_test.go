package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/surge/internal/config"
	"github.com/wesleyorama2/surge/internal/objstore"
)

// newTestCommand returns a command carrying the configuration flags, parsed
// from args.
func newTestCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	addConfigFlags(cmd.Flags())
	if err := cmd.Flags().Parse(args); err != nil {
		t.Fatalf("Parse(%v) error = %v", args, err)
	}
	return cmd
}

func TestParseMix(t *testing.T) {
	tests := []struct {
		input   string
		want    config.OperationsConfig
		wantErr bool
	}{
		{"write=1", config.OperationsConfig{Write: 1}, false},
		{"write=1,read=4", config.OperationsConfig{Write: 1, Read: 4}, false},
		{" Write = 2 , metadata=1 ,", config.OperationsConfig{Write: 2, Metadata: 1}, false},
		{"write=1,read=2,delete=3,metadata=4", config.OperationsConfig{Write: 1, Read: 2, Delete: 3, Metadata: 4}, false},
		{"write", config.OperationsConfig{}, true},
		{"write=x", config.OperationsConfig{}, true},
		{"write=-1", config.OperationsConfig{}, true},
		{"list=1", config.OperationsConfig{}, true},
		{"write=0", config.OperationsConfig{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseMix(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseMix(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseMix(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseSizeRange(t *testing.T) {
	tests := []struct {
		input   string
		want    config.SizeRange
		wantErr bool
	}{
		{"4096", config.SizeRange{Min: 4096, Max: 4096}, false},
		{"4KiB", config.SizeRange{Min: 4096, Max: 4096}, false},
		{"4KiB-1MiB", config.SizeRange{Min: 4096, Max: 1 << 20}, false},
		{"1KB - 2KB", config.SizeRange{Min: 1000, Max: 2000}, false},
		{"big", config.SizeRange{}, true},
		{"1KiB-big", config.SizeRange{}, true},
	}

	for _, tt := range tests {
		got, err := parseSizeRange(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseSizeRange(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("parseSizeRange(%q) = %+v, want %+v", tt.input, got, tt.want)
		}
	}
}

func TestBuildConfig_QuickMode(t *testing.T) {
	cmd := newTestCommand(t,
		"--host", "http://localhost:9000",
		"--container", "bench",
		"--mix", "write=1,read=3",
		"--object-size", "1KiB-4KiB",
		"--rate", "250",
		"--rampup", "10s",
		"--duration", "1m",
	)

	cfg, err := buildConfig(cmd)
	if err != nil {
		t.Fatalf("buildConfig() error = %v", err)
	}

	if cfg.Endpoint.Host != "http://localhost:9000" || cfg.Endpoint.API != config.APIHTTP {
		t.Errorf("Endpoint = %+v", cfg.Endpoint)
	}
	if cfg.Name != "bench" {
		t.Errorf("Name = %q, want container name", cfg.Name)
	}
	if cfg.Operations != (config.OperationsConfig{Write: 1, Read: 3}) {
		t.Errorf("Operations = %+v", cfg.Operations)
	}
	if cfg.ObjectSize != (config.SizeRange{Min: 1024, Max: 4096}) {
		t.Errorf("ObjectSize = %+v", cfg.ObjectSize)
	}
	if cfg.Scheduler.Mode != config.ModeRate || cfg.Scheduler.Rate != 250 {
		t.Errorf("Scheduler = %+v", cfg.Scheduler)
	}
	if cfg.Scheduler.Rampup.Std() != 10*time.Second {
		t.Errorf("Rampup = %v", cfg.Scheduler.Rampup.Std())
	}
	if cfg.Stopping.Runtime.Std() != time.Minute {
		t.Errorf("Runtime = %v", cfg.Stopping.Runtime.Std())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestBuildConfig_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.yaml")
	content := `
name: from-file
endpoint:
  host: http://localhost:9000
container: bench
operations:
  write: 1
scheduler:
  rate: 50
stopping:
  runtime: 10m
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cmd := newTestCommand(t, "--config", path, "--concurrency", "8", "--requests", "500")
	cfg, err := buildConfig(cmd)
	if err != nil {
		t.Fatalf("buildConfig() error = %v", err)
	}

	if cfg.Name != "from-file" {
		t.Errorf("Name = %q", cfg.Name)
	}
	if cfg.Scheduler.Mode != config.ModeConcurrency || cfg.Scheduler.Concurrency != 8 {
		t.Errorf("Scheduler = %+v, want concurrency 8", cfg.Scheduler)
	}
	if cfg.Stopping.Runtime.Std() != 10*time.Minute {
		t.Errorf("Runtime = %v, want value from file", cfg.Stopping.Runtime.Std())
	}
	if cfg.Stopping.Requests != 500 {
		t.Errorf("Requests = %d, want 500", cfg.Stopping.Requests)
	}
}

func TestBuildConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no source", nil},
		{"bad mix", []string{"--host", "http://x", "--mix", "write"}},
		{"bad size", []string{"--host", "http://x", "--object-size", "huge"}},
		{"missing file", []string{"--config", "/nonexistent/test.yaml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := buildConfig(newTestCommand(t, tt.args...)); err == nil {
				t.Error("buildConfig() should fail")
			}
		})
	}
}

func quickConfig(host string) *config.TestConfig {
	cfg := &config.TestConfig{
		Endpoint:   config.EndpointConfig{Host: host},
		Container:  "bench",
		ObjectSize: config.SizeRange{Min: 128, Max: 128},
		Operations: config.OperationsConfig{Write: 1, Read: 1},
		Scheduler:  config.SchedulerConfig{Rate: 1000},
		Stopping:   config.StoppingConfig{Requests: 50, Runtime: config.Duration(10 * time.Second)},
		Logging:    config.LoggingConfig{Level: "error"},
	}
	config.ApplyDefaults(cfg)
	return cfg
}

func TestRunLoadTest_ConsoleSummary(t *testing.T) {
	srv := httptest.NewServer(objstore.New(objstore.Options{}))
	defer srv.Close()

	var buf bytes.Buffer
	err := runLoadTest(context.Background(), quickConfig(srv.URL), runOptions{}, &buf)
	if err != nil {
		t.Fatalf("runLoadTest() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{"bench - Running", "bench - Completed", "Operations:", "write", "Status Codes:"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRunLoadTest_JSON(t *testing.T) {
	srv := httptest.NewServer(objstore.New(objstore.Options{}))
	defer srv.Close()

	var buf bytes.Buffer
	err := runLoadTest(context.Background(), quickConfig(srv.URL), runOptions{JSON: true}, &buf)
	if err != nil {
		t.Fatalf("runLoadTest() error = %v", err)
	}

	var decoded struct {
		Name   string `json:"name"`
		Mode   string `json:"mode"`
		Result struct {
			Success  bool  `json:"success"`
			Requests int64 `json:"requests"`
		} `json:"result"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if decoded.Name != "bench" || decoded.Mode != config.ModeRate {
		t.Errorf("decoded = %+v", decoded)
	}
	if !decoded.Result.Success || decoded.Result.Requests != 50 {
		t.Errorf("result = %+v", decoded.Result)
	}
}

func TestRunLoadTest_OutputFile(t *testing.T) {
	srv := httptest.NewServer(objstore.New(objstore.Options{}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "results", "run.json")
	var buf bytes.Buffer
	err := runLoadTest(context.Background(), quickConfig(srv.URL), runOptions{Output: path}, &buf)
	if err != nil {
		t.Fatalf("runLoadTest() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("results file not written: %v", err)
	}
	if !json.Valid(data) {
		t.Errorf("results file is not JSON: %s", data)
	}
	if !strings.Contains(buf.String(), "Results written to: "+path) {
		t.Errorf("output does not mention the results file:\n%s", buf.String())
	}
}

func TestRunLoadTest_AbortedTestFails(t *testing.T) {
	cfg := quickConfig("http://127.0.0.1:1")
	cfg.Stopping.ClientFailures = 1
	cfg.Client.Timeout = config.Duration(time.Second)

	var buf bytes.Buffer
	err := runLoadTest(context.Background(), cfg, runOptions{Quiet: true}, &buf)
	if !errors.Is(err, ErrTestFailed) {
		t.Fatalf("runLoadTest() error = %v, want ErrTestFailed", err)
	}
	if got := strings.TrimSpace(buf.String()); got != "FAILED" {
		t.Errorf("quiet output = %q, want FAILED", got)
	}
}

func TestRunLoadTest_InvalidConfig(t *testing.T) {
	cfg := quickConfig("http://localhost")
	cfg.Scheduler.Rate = -1

	if err := runLoadTest(context.Background(), cfg, runOptions{}, io.Discard); err == nil {
		t.Error("runLoadTest() should reject an invalid config")
	}
}

func TestValidateCommand(t *testing.T) {
	var buf bytes.Buffer
	RootCmd.SetOut(&buf)
	RootCmd.SetArgs([]string{"validate", "--host", "http://localhost:9000", "--container", "bench", "--rate", "20"})
	defer RootCmd.SetArgs(nil)

	if err := RootCmd.Execute(); err != nil {
		t.Fatalf("validate error = %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Configuration is valid") || !strings.Contains(out, "20 req/s (bursty)") {
		t.Errorf("validate output:\n%s", out)
	}
}

func TestPrintValidationErrors(t *testing.T) {
	errs := &config.ValidationErrors{}
	errs.Add("scheduler.rate", "rate must be a positive number")
	errs.Add("", "general problem")

	var buf bytes.Buffer
	printValidationErrors(&buf, errs)

	out := buf.String()
	for _, want := range []string{"2 problems", "scheduler.rate: rate must be a positive number", "✗ general problem"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	versionCmd.Run(versionCmd, nil)

	if !strings.HasPrefix(buf.String(), "surge "+version) {
		t.Errorf("version output = %q", buf.String())
	}
}

func TestRunLoadTest_HTMLReport(t *testing.T) {
	srv := httptest.NewServer(objstore.New(objstore.Options{}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "report.html")
	err := runLoadTest(context.Background(), quickConfig(srv.URL), runOptions{Output: path, Quiet: true}, io.Discard)
	if err != nil {
		t.Fatalf("runLoadTest() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	if !strings.Contains(string(data), "<!DOCTYPE html>") {
		t.Error("report is not HTML")
	}
}

func TestReportWriter(t *testing.T) {
	for path, ok := range map[string]bool{
		"out.json":     true,
		"dir/OUT.HTML": true,
		"report.htm":   true,
		"results.txt":  false,
		"no-extension": false,
	} {
		if got := reportWriter(path) != nil; got != ok {
			t.Errorf("reportWriter(%q) supported = %v, want %v", path, got, ok)
		}
	}
}
