package config

import (
	"fmt"
	"math"
	"net/url"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors struct {
	Errors []*ValidationError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e.Errors)))
	for i, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Add adds an error to the collection.
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, &ValidationError{Field: field, Message: message})
}

// HasErrors returns true if there are any errors.
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

// Validate validates the entire test configuration. Call it after
// ApplyDefaults.
//
// Returns nil if valid, or a ValidationErrors containing all validation errors.
func (c *TestConfig) Validate() error {
	errs := &ValidationErrors{}

	validateEndpoint(&c.Endpoint, errs)

	if c.Container == "" {
		errs.Add("container", "container is required")
	} else if strings.Contains(c.Container, "/") {
		errs.Add("container", "container must not contain '/'")
	}

	validateObjectSize(c.ObjectSize, errs)

	if c.Prefill < 0 {
		errs.Add("prefill", "prefill cannot be negative")
	}

	validateOperations(c, errs)
	validateScheduler(&c.Scheduler, errs)
	validateStopping(&c.Stopping, errs)

	if c.Shutdown.Timeout < 0 {
		errs.Add("shutdown.timeout", "timeout cannot be negative")
	}

	validateClient(&c.Client, errs)
	validateLogging(&c.Logging, errs)

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// validateEndpoint validates the endpoint section.
func validateEndpoint(e *EndpointConfig, errs *ValidationErrors) {
	switch e.API {
	case APIHTTP, APIS3:
	default:
		errs.Add("endpoint.api", fmt.Sprintf("unknown api: %s (must be 'http' or 's3')", e.API))
	}

	if e.Host == "" {
		errs.Add("endpoint.host", "host is required")
	} else if u, err := url.Parse(e.Host); err != nil {
		errs.Add("endpoint.host", fmt.Sprintf("invalid URL: %v", err))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs.Add("endpoint.host", "host must be an http or https URL")
	}

	if (e.AccessKey == "") != (e.SecretKey == "") {
		errs.Add("endpoint.secretKey", "accessKey and secretKey must be set together")
	}
}

// validateObjectSize validates the object size range.
func validateObjectSize(r SizeRange, errs *ValidationErrors) {
	if r.Min < 0 || r.Max < 0 {
		errs.Add("objectSize", "size cannot be negative")
	}
	if r.Max < r.Min {
		errs.Add("objectSize.max", fmt.Sprintf("max (%s) must be at least min (%s)", r.Max, r.Min))
	}
}

// validateOperations validates operation weights and that reads have
// something to read.
func validateOperations(c *TestConfig, errs *ValidationErrors) {
	ops := c.Operations
	for name, w := range map[string]int{
		"write": ops.Write, "read": ops.Read, "delete": ops.Delete, "metadata": ops.Metadata,
	} {
		if w < 0 {
			errs.Add("operations."+name, "weight cannot be negative")
		}
	}

	if ops.Total() <= 0 {
		errs.Add("operations", "at least one operation must have a positive weight")
		return
	}

	if ops.Write == 0 && c.Prefill == 0 {
		errs.Add("operations.write", "read, delete and metadata need objects: set a write weight or prefill")
	}
}

// validateScheduler validates the scheduler section.
func validateScheduler(sc *SchedulerConfig, errs *ValidationErrors) {
	switch sc.Mode {
	case ModeRate:
		if sc.Rate <= 0 || math.IsNaN(sc.Rate) || math.IsInf(sc.Rate, 0) {
			errs.Add("scheduler.rate", "rate must be a positive number")
		}
		validatePacing(sc, errs)
	case ModeConcurrency:
		if sc.Concurrency <= 0 {
			errs.Add("scheduler.concurrency", "concurrency must be greater than 0")
		}
	default:
		errs.Add("scheduler.mode", fmt.Sprintf("unknown mode: %s (must be 'rate' or 'concurrency')", sc.Mode))
	}

	if sc.Rampup < 0 {
		errs.Add("scheduler.rampup", "rampup cannot be negative")
	}
}

// validatePacing validates the rate limiter strategy.
func validatePacing(sc *SchedulerConfig, errs *ValidationErrors) {
	switch sc.Pacing {
	case PacingBursty:
		if sc.MaxBurstSeconds < 0 || math.IsNaN(sc.MaxBurstSeconds) || math.IsInf(sc.MaxBurstSeconds, 0) {
			errs.Add("scheduler.maxBurstSeconds", "maxBurstSeconds must be a non-negative number")
		}
	case PacingWarmup:
		if sc.Warmup <= 0 {
			errs.Add("scheduler.warmup", "warmup is required for warmup pacing")
		}
		if sc.ColdFactor < 1 || math.IsInf(sc.ColdFactor, 0) {
			errs.Add("scheduler.coldFactor", "coldFactor must be at least 1")
		}
	default:
		errs.Add("scheduler.pacing", fmt.Sprintf("unknown pacing: %s (must be 'bursty' or 'warmup')", sc.Pacing))
	}

	if sc.Buckets < 0 {
		errs.Add("scheduler.buckets", "buckets cannot be negative")
	}
}

// validateStopping validates the stopping conditions.
func validateStopping(s *StoppingConfig, errs *ValidationErrors) {
	if s.Runtime < 0 {
		errs.Add("stopping.runtime", "runtime cannot be negative")
	}
	if s.Operations < 0 {
		errs.Add("stopping.operations", "operations cannot be negative")
	}
	if s.Requests < 0 {
		errs.Add("stopping.requests", "requests cannot be negative")
	}
	if s.ClientFailures < 0 {
		errs.Add("stopping.clientFailures", "clientFailures cannot be negative")
	}
	for code, n := range s.StatusCodes {
		field := fmt.Sprintf("stopping.statusCodes.%d", code)
		if code < 100 || code > 599 {
			errs.Add(field, "not an HTTP status code")
		}
		if n <= 0 {
			errs.Add(field, "count must be greater than 0")
		}
	}
}

// validateClient validates HTTP client settings.
func validateClient(c *ClientConfig, errs *ValidationErrors) {
	if c.Timeout < 0 {
		errs.Add("client.timeout", "timeout cannot be negative")
	}
	if c.MaxIdleConnsPerHost < 0 {
		errs.Add("client.maxIdleConnsPerHost", "maxIdleConnsPerHost cannot be negative")
	}
	if c.MaxConnsPerHost < 0 {
		errs.Add("client.maxConnsPerHost", "maxConnsPerHost cannot be negative")
	}
	if c.Bandwidth < 0 {
		errs.Add("client.bandwidth", "bandwidth cannot be negative")
	}
}

// validateLogging validates log settings.
func validateLogging(l *LoggingConfig, errs *ValidationErrors) {
	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		errs.Add("logging.level", fmt.Sprintf("unknown level: %s", l.Level))
	}
	switch l.Format {
	case "console", "json":
	default:
		errs.Add("logging.format", fmt.Sprintf("unknown format: %s", l.Format))
	}
}
