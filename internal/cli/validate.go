package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/surge/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a configuration without running it",
	Long: `Load a configuration file, apply flag overrides and defaults, and report
every problem found. Use --schema to print the JSON schema configuration
files are checked against.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		if schema, _ := cmd.Flags().GetBool("schema"); schema {
			_, err := io.WriteString(w, config.Schema())
			return err
		}

		cfg, err := buildConfig(cmd)
		if err != nil {
			printValidationErrors(w, err)
			return err
		}
		if err := cfg.Validate(); err != nil {
			printValidationErrors(w, err)
			return err
		}

		printConfigSummary(w, cfg)
		return nil
	},
}

func printValidationErrors(w io.Writer, err error) {
	var verrs *config.ValidationErrors
	if !errors.As(err, &verrs) {
		return
	}
	fmt.Fprintf(w, "Configuration is invalid (%d problems):\n", len(verrs.Errors))
	for _, e := range verrs.Errors {
		if e.Field != "" {
			fmt.Fprintf(w, "  ✗ %s: %s\n", e.Field, e.Message)
		} else {
			fmt.Fprintf(w, "  ✗ %s\n", e.Message)
		}
	}
}

func printConfigSummary(w io.Writer, cfg *config.TestConfig) {
	fmt.Fprintln(w, "✓ Configuration is valid")
	fmt.Fprintf(w, "  Name:       %s\n", cfg.Name)
	fmt.Fprintf(w, "  Endpoint:   %s (%s)\n", cfg.Endpoint.Host, cfg.Endpoint.API)
	fmt.Fprintf(w, "  Container:  %s\n", cfg.Container)
	if cfg.ObjectSize.Fixed() {
		fmt.Fprintf(w, "  Objects:    %s\n", cfg.ObjectSize.Min)
	} else {
		fmt.Fprintf(w, "  Objects:    %s - %s\n", cfg.ObjectSize.Min, cfg.ObjectSize.Max)
	}
	ops := cfg.Operations
	fmt.Fprintf(w, "  Mix:        write=%d read=%d delete=%d metadata=%d\n", ops.Write, ops.Read, ops.Delete, ops.Metadata)

	sc := cfg.Scheduler
	switch sc.Mode {
	case config.ModeConcurrency:
		fmt.Fprintf(w, "  Scheduler:  %d in flight\n", sc.Concurrency)
	default:
		fmt.Fprintf(w, "  Scheduler:  %g req/s (%s)\n", sc.Rate, sc.Pacing)
	}
	if sc.Rampup > 0 {
		fmt.Fprintf(w, "  Ramp-up:    %s\n", sc.Rampup.Std())
	}
	if cfg.Stopping.Runtime > 0 {
		fmt.Fprintf(w, "  Runtime:    %s\n", cfg.Stopping.Runtime.Std())
	}
	if cfg.Stopping.Requests > 0 {
		fmt.Fprintf(w, "  Requests:   %d\n", cfg.Stopping.Requests)
	}
}

func init() {
	addConfigFlags(validateCmd.Flags())
	validateCmd.Flags().Bool("schema", false, "Print the configuration JSON schema and exit")
}
