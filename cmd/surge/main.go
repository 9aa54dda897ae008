// Command surge is a load generator for object storage.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/wesleyorama2/surge/internal/cli"
)

// run executes the command line and returns the process exit code. An
// interrupt stops a running test gracefully; its summary is still printed.
func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(run())
}
