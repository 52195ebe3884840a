// Command worker is the serverless worker binary: it wires a handler
// into the core runtime (Process Lifecycle, Job Scaler, Heartbeat) and
// runs until the process is signalled to stop. This is NOT the
// credentials CLI group spec.md places out of scope (§1) — it is the
// worker's own entrypoint, left unspecified by spec.md and built here
// the way ChuLiYu-raft-recovery structures its cobra root command.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/runpod-worker/serverless-worker/internal/handler"
	"github.com/runpod-worker/serverless-worker/internal/lifecycle"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		idleTimeout time.Duration
		metricsAddr string
		debug       bool
	)

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Runs the serverless worker runtime against a control plane.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return lifecycle.Run(ctx, lifecycle.Options{
				Handler:               exampleHandler(),
				IdleTimeout:           idleTimeout,
				EnableDebugCollection: debug,
				MetricsAddr:           metricsAddr,
			})
		},
	}

	cmd.Flags().DurationVar(&idleTimeout, "idle-timeout", 5*time.Minute, "how long the acquisition loop may go without a job before the worker stops")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "address to serve Prometheus metrics on, empty disables it")
	cmd.Flags().BoolVar(&debug, "debug", false, "attach rp_debugger timing info to every successful job result")

	return cmd
}

// exampleHandler is a minimal plain handler used when this binary is
// run as-is. Real deployments replace this with their own handler
// wired through the same handler.NewPlain/handler.NewGenerator
// constructors; packaging the user's handler is out of scope for the
// core (§1).
func exampleHandler() *handler.Handler {
	echo := func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
		return input, nil
	}
	return handler.NewPlain(echo, handler.Config{})
}
