package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wesleyorama2/surge/internal/config"
	"github.com/wesleyorama2/surge/internal/engine"
	"github.com/wesleyorama2/surge/internal/logging"
	"github.com/wesleyorama2/surge/internal/output"
)

// ErrTestFailed is returned by the run command when the load test was
// aborted.
var ErrTestFailed = errors.New("load test failed")

const progressInterval = time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a load test against an object store",
	Long: `Run a load test from a configuration file or from flags.

Config file mode:
  surge run --config test.yaml

Quick CLI mode:
  surge run --host http://localhost:9000 --container bench \
    --mix write=1,read=4 --object-size 4KiB-1MiB \
    --rate 200 --rampup 30s --duration 5m

Concurrency mode:
  surge run --config test.yaml --concurrency 32 --requests 100000`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := buildConfig(cmd)
		if err != nil {
			return err
		}
		opts, err := runOptionsFromFlags(cmd)
		if err != nil {
			return err
		}

		return runLoadTest(cmd.Context(), cfg, opts, cmd.OutOrStdout())
	},
}

// runOptions controls how results are presented.
type runOptions struct {
	JSON    bool
	Output  string
	Quiet   bool
	Verbose bool
	NoColor bool

	// engineOptions are passed to the engine; tests use them to inject
	// transports.
	engineOptions []engine.Option
}

func runOptionsFromFlags(cmd *cobra.Command) (runOptions, error) {
	fs := cmd.Flags()
	var o runOptions
	o.JSON, _ = fs.GetBool("json")
	o.Output, _ = fs.GetString("output")
	o.Quiet, _ = fs.GetBool("quiet")
	o.Verbose, _ = fs.GetBool("verbose")
	o.NoColor, _ = fs.GetBool("no-color")
	if o.Output != "" && reportWriter(o.Output) == nil {
		return o, fmt.Errorf("--output must name a .json or .html file, got %s", o.Output)
	}
	return o, nil
}

// runLoadTest builds the engine for cfg, runs it with live progress on w,
// and prints the summary. It returns ErrTestFailed if the test was aborted.
func runLoadTest(ctx context.Context, cfg *config.TestConfig, opts runOptions, w io.Writer) error {
	level := cfg.Logging.Level
	if opts.Verbose {
		level = "debug"
	}
	logger, err := logging.New(level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	eng, err := engine.New(ctx, cfg, append([]engine.Option{engine.WithLogger(logger)}, opts.engineOptions...)...)
	if err != nil {
		return err
	}

	var console *output.Console
	if !opts.JSON {
		console = output.NewConsole(output.ConsoleConfig{
			TestName: cfg.Name,
			Target:   eng.Target(),
			Runtime:  cfg.Stopping.Runtime.Std(),
			Writer:   w,
			Quiet:    opts.Quiet,
			NoColors: opts.NoColor,
		})
		console.PrintHeader()
	}

	var result *engine.Result
	g, gctx := errgroup.WithContext(ctx)

	var srv *http.Server
	if cfg.Metrics.Listen != "" {
		srv = newMetricsServer(cfg.Metrics.Listen, eng)
		g.Go(func() error {
			logger.Info("serving metrics", zap.String("listen", cfg.Metrics.Listen))
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		if srv != nil {
			defer shutdownServer(srv, logger)
		}

		done := make(chan struct{})
		if console != nil {
			go reportProgress(done, console, eng)
		}

		var err error
		result, err = eng.Run(gctx)
		close(done)
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}

	summary := &output.Summary{
		Name:   cfg.Name,
		Mode:   cfg.Scheduler.Mode,
		Target: eng.Target(),
		Result: result.Test,
		Stats:  result.Stats,
	}
	if err := writeSummary(summary, console, opts, w); err != nil {
		return err
	}

	if !result.Test.Success {
		return ErrTestFailed
	}
	return nil
}

// reportProgress updates the console every progressInterval until done is
// closed.
func reportProgress(done <-chan struct{}, console *output.Console, eng *engine.Engine) {
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if eng.Test().Running() {
				console.Update(eng.Stats().Snapshot())
			}
		}
	}
}

func newMetricsServer(addr string, eng *engine.Engine) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", eng.Collector().Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func shutdownServer(srv *http.Server, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("metrics server shutdown", zap.Error(err))
	}
}

func writeSummary(s *output.Summary, console *output.Console, opts runOptions, w io.Writer) error {
	if console != nil {
		console.PrintSummary(s)
	}

	switch {
	case opts.Output != "":
		if err := writeReportFile(opts.Output, s); err != nil {
			return err
		}
		if console != nil && !opts.Quiet {
			fmt.Fprintf(w, "Results written to: %s\n", opts.Output)
		}
	case opts.JSON:
		if err := output.WriteJSON(w, s); err != nil {
			return fmt.Errorf("writing results: %w", err)
		}
	}
	return nil
}

// reportWriter picks the report format from the file extension.
func reportWriter(path string) func(io.Writer, *output.Summary) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return output.WriteJSON
	case ".html", ".htm":
		return output.WriteHTML
	default:
		return nil
	}
}

func writeReportFile(path string, s *output.Summary) error {
	write := reportWriter(path)
	if write == nil {
		return fmt.Errorf("unsupported report format: %s", path)
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := write(f, s); err != nil {
		f.Close()
		return fmt.Errorf("writing report: %w", err)
	}
	return f.Close()
}

func init() {
	addConfigFlags(runCmd.Flags())

	runCmd.Flags().Bool("json", false, "Print results as JSON instead of the console summary")
	runCmd.Flags().StringP("output", "o", "", "Also write a report to this file (.json or .html)")
	runCmd.Flags().BoolP("quiet", "q", false, "Disable live progress output, print only PASSED or FAILED")
	runCmd.Flags().BoolP("verbose", "v", false, "Enable debug logging")
	runCmd.Flags().Bool("no-color", false, "Disable colored output")
}
