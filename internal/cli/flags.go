package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/wesleyorama2/surge/internal/config"
)

// addConfigFlags registers the flags that build or override a test
// configuration.
func addConfigFlags(fs *pflag.FlagSet) {
	fs.StringP("config", "c", "", "Configuration file (.yaml, .yml or .json)")

	// Quick CLI mode
	fs.String("host", "", "Object store URL (alternative to --config)")
	fs.String("api", "", "Endpoint API: http or s3")
	fs.String("container", "", "Bucket or container to use")
	fs.String("mix", "", "Operation weights, e.g. 'write=1,read=4,delete=1'")
	fs.String("object-size", "", "Object size or range, e.g. '4KiB' or '4KiB-1MiB'")
	fs.Int("prefill", 0, "Objects to write before the test starts")

	// Scheduler overrides
	fs.String("mode", "", "Scheduler mode: rate or concurrency")
	fs.Float64("rate", 0, "Target requests per second")
	fs.Int("concurrency", 0, "Requests in flight for the concurrency mode")
	fs.Duration("rampup", 0, "Time to reach the target rate or concurrency")
	fs.String("pacing", "", "Rate limiter pacing: bursty or warmup")

	// Stopping overrides
	fs.DurationP("duration", "d", 0, "Stop the test after this long (e.g., 5m, 30s)")
	fs.Int64("requests", 0, "Stop issuing after this many requests")

	fs.String("metrics-listen", "", "Serve Prometheus metrics on this address, e.g. ':9090'")
	fs.String("log-level", "", "Log level: debug, info, warn or error")
	fs.String("log-format", "", "Log format: console or json")
}

// buildConfig loads the configuration file, or builds one from the quick
// mode flags, then applies flag overrides and defaults.
func buildConfig(cmd *cobra.Command) (*config.TestConfig, error) {
	fs := cmd.Flags()
	configFile, _ := fs.GetString("config")
	host, _ := fs.GetString("host")

	var (
		cfg *config.TestConfig
		err error
	)
	switch {
	case configFile != "":
		cfg, err = config.LoadConfig(configFile)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	case host != "":
		cfg = &config.TestConfig{
			Endpoint:   config.EndpointConfig{Host: host},
			Container:  "surge",
			Operations: config.OperationsConfig{Write: 1},
		}
	default:
		return nil, fmt.Errorf("either --config or --host is required")
	}

	if err := applyFlags(fs, cfg); err != nil {
		return nil, err
	}
	config.ApplyDefaults(cfg)
	return cfg, nil
}

// applyFlags overrides cfg with every flag set on the command line.
func applyFlags(fs *pflag.FlagSet, cfg *config.TestConfig) error {
	if fs.Changed("host") {
		cfg.Endpoint.Host, _ = fs.GetString("host")
	}
	if fs.Changed("api") {
		cfg.Endpoint.API, _ = fs.GetString("api")
	}
	if fs.Changed("container") {
		cfg.Container, _ = fs.GetString("container")
	}
	if fs.Changed("mix") {
		mix, _ := fs.GetString("mix")
		ops, err := parseMix(mix)
		if err != nil {
			return fmt.Errorf("invalid --mix: %w", err)
		}
		cfg.Operations = ops
	}
	if fs.Changed("object-size") {
		s, _ := fs.GetString("object-size")
		sizes, err := parseSizeRange(s)
		if err != nil {
			return fmt.Errorf("invalid --object-size: %w", err)
		}
		cfg.ObjectSize = sizes
	}
	if fs.Changed("prefill") {
		cfg.Prefill, _ = fs.GetInt("prefill")
	}

	if fs.Changed("mode") {
		cfg.Scheduler.Mode, _ = fs.GetString("mode")
	}
	if fs.Changed("rate") {
		cfg.Scheduler.Rate, _ = fs.GetFloat64("rate")
		if !fs.Changed("mode") {
			cfg.Scheduler.Mode = config.ModeRate
		}
	}
	if fs.Changed("concurrency") {
		cfg.Scheduler.Concurrency, _ = fs.GetInt("concurrency")
		if !fs.Changed("mode") {
			cfg.Scheduler.Mode = config.ModeConcurrency
		}
	}
	if fs.Changed("rampup") {
		d, _ := fs.GetDuration("rampup")
		cfg.Scheduler.Rampup = config.Duration(d)
	}
	if fs.Changed("pacing") {
		cfg.Scheduler.Pacing, _ = fs.GetString("pacing")
	}

	if fs.Changed("duration") {
		d, _ := fs.GetDuration("duration")
		cfg.Stopping.Runtime = config.Duration(d)
	}
	if fs.Changed("requests") {
		cfg.Stopping.Requests, _ = fs.GetInt64("requests")
	}

	if fs.Changed("metrics-listen") {
		cfg.Metrics.Listen, _ = fs.GetString("metrics-listen")
	}
	if fs.Changed("log-level") {
		cfg.Logging.Level, _ = fs.GetString("log-level")
	}
	if fs.Changed("log-format") {
		cfg.Logging.Format, _ = fs.GetString("log-format")
	}
	return nil
}

// parseMix parses operation weights from CLI format "write=1,read=4"
func parseMix(s string) (config.OperationsConfig, error) {
	var ops config.OperationsConfig

	for i, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		name, weightStr, ok := strings.Cut(part, "=")
		if !ok {
			return ops, fmt.Errorf("entry %d: expected 'operation=weight' format, got '%s'", i+1, part)
		}
		weight, err := strconv.Atoi(strings.TrimSpace(weightStr))
		if err != nil || weight < 0 {
			return ops, fmt.Errorf("entry %d: invalid weight '%s'", i+1, weightStr)
		}

		switch strings.ToLower(strings.TrimSpace(name)) {
		case "write":
			ops.Write = weight
		case "read":
			ops.Read = weight
		case "delete":
			ops.Delete = weight
		case "metadata":
			ops.Metadata = weight
		default:
			return ops, fmt.Errorf("entry %d: unknown operation '%s'", i+1, name)
		}
	}

	if ops.Total() == 0 {
		return ops, fmt.Errorf("at least one operation needs a positive weight")
	}
	return ops, nil
}

// parseSizeRange parses "4KiB" or "4KiB-1MiB".
func parseSizeRange(s string) (config.SizeRange, error) {
	minStr, maxStr, isRange := strings.Cut(s, "-")

	lo, err := config.ParseSize(strings.TrimSpace(minStr))
	if err != nil {
		return config.SizeRange{}, err
	}
	hi := lo
	if isRange {
		if hi, err = config.ParseSize(strings.TrimSpace(maxStr)); err != nil {
			return config.SizeRange{}, err
		}
	}
	return config.SizeRange{Min: lo, Max: hi}, nil
}
