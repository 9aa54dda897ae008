package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func validConfig() *TestConfig {
	cfg := &TestConfig{
		Endpoint:   EndpointConfig{Host: "http://localhost:9000"},
		Container:  "bench",
		Operations: OperationsConfig{Write: 1, Read: 3},
	}
	ApplyDefaults(cfg)
	return cfg
}

func TestValidate_MinimalValid(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Errorf("Validate() returned error for valid config: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*TestConfig)
		field  string
	}{
		{"unknown api", func(c *TestConfig) { c.Endpoint.API = "ftp" }, "endpoint.api"},
		{"missing host", func(c *TestConfig) { c.Endpoint.Host = "" }, "endpoint.host"},
		{"non-http host", func(c *TestConfig) { c.Endpoint.Host = "ftp://x" }, "endpoint.host"},
		{"half credentials", func(c *TestConfig) { c.Endpoint.AccessKey = "key" }, "endpoint.secretKey"},
		{"missing container", func(c *TestConfig) { c.Container = "" }, "container"},
		{"slash in container", func(c *TestConfig) { c.Container = "a/b" }, "container"},
		{"inverted sizes", func(c *TestConfig) { c.ObjectSize = SizeRange{Min: 10, Max: 5} }, "objectSize.max"},
		{"no operations", func(c *TestConfig) { c.Operations = OperationsConfig{} }, "operations"},
		{"negative weight", func(c *TestConfig) { c.Operations.Delete = -1 }, "operations.delete"},
		{"reads without writes", func(c *TestConfig) { c.Operations.Write = 0 }, "operations.write"},
		{"zero rate", func(c *TestConfig) { c.Scheduler.Rate = 0 }, "scheduler.rate"},
		{"unknown mode", func(c *TestConfig) { c.Scheduler.Mode = "fast" }, "scheduler.mode"},
		{"unknown pacing", func(c *TestConfig) { c.Scheduler.Pacing = "jumpy" }, "scheduler.pacing"},
		{"warmup without period", func(c *TestConfig) {
			c.Scheduler.Pacing = PacingWarmup
			c.Scheduler.ColdFactor = 3
		}, "scheduler.warmup"},
		{"cold factor below one", func(c *TestConfig) {
			c.Scheduler.Pacing = PacingWarmup
			c.Scheduler.Warmup = Duration(time.Second)
			c.Scheduler.ColdFactor = 0.5
		}, "scheduler.coldFactor"},
		{"zero concurrency", func(c *TestConfig) {
			c.Scheduler.Mode = ModeConcurrency
			c.Scheduler.Concurrency = 0
		}, "scheduler.concurrency"},
		{"negative rampup", func(c *TestConfig) { c.Scheduler.Rampup = Duration(-time.Second) }, "scheduler.rampup"},
		{"bad status code", func(c *TestConfig) { c.Stopping.StatusCodes = map[int]int64{42: 1} }, "stopping.statusCodes.42"},
		{"zero status count", func(c *TestConfig) { c.Stopping.StatusCodes = map[int]int64{503: 0} }, "stopping.statusCodes.503"},
		{"negative requests", func(c *TestConfig) { c.Stopping.Requests = -1 }, "stopping.requests"},
		{"negative bandwidth", func(c *TestConfig) { c.Client.Bandwidth = -1 }, "client.bandwidth"},
		{"unknown level", func(c *TestConfig) { c.Logging.Level = "trace" }, "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() should return an error")
			}

			var verrs *ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("error %T is not *ValidationErrors", err)
			}
			found := false
			for _, e := range verrs.Errors {
				if e.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("no error on field %q in: %v", tt.field, err)
			}
		})
	}
}

func TestValidate_PrefillAllowsReadOnly(t *testing.T) {
	cfg := validConfig()
	cfg.Operations = OperationsConfig{Read: 1}
	cfg.Prefill = 100

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestValidationErrors_Error(t *testing.T) {
	errs := &ValidationErrors{}
	if errs.Error() != "no validation errors" {
		t.Errorf("empty Error() = %q", errs.Error())
	}

	errs.Add("a", "first")
	if got := errs.Error(); got != "validation error on field 'a': first" {
		t.Errorf("single Error() = %q", got)
	}

	errs.Add("", "second")
	got := errs.Error()
	if !strings.HasPrefix(got, "2 validation errors:") {
		t.Errorf("multi Error() = %q", got)
	}
	if !strings.Contains(got, "validation error: second") {
		t.Errorf("multi Error() missing field-less error: %q", got)
	}
}
