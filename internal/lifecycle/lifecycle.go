// Package lifecycle bootstraps Heartbeat and the Job Scaler, wires one
// cancellation signal across both, and owns the shared HTTP session's
// scoped acquisition/release (§9's "HTTP session lifetime" note). It is
// the Process Lifecycle component named in spec.md §2's component
// table, generalized from the teacher's cmd/worker/main.go (context +
// defer cancel, start heartbeat, keep the process alive).
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/runpod-worker/serverless-worker/internal/config"
	"github.com/runpod-worker/serverless-worker/internal/handler"
	"github.com/runpod-worker/serverless-worker/internal/heartbeat"
	"github.com/runpod-worker/serverless-worker/internal/jobtransport"
	"github.com/runpod-worker/serverless-worker/internal/localtest"
	"github.com/runpod-worker/serverless-worker/internal/logging"
	"github.com/runpod-worker/serverless-worker/internal/metrics"
	"github.com/runpod-worker/serverless-worker/internal/metricsserver"
	"github.com/runpod-worker/serverless-worker/internal/resourcemonitor"
	"github.com/runpod-worker/serverless-worker/internal/scaler"
	"github.com/runpod-worker/serverless-worker/internal/tracing"
	"github.com/runpod-worker/serverless-worker/internal/transport"
	"github.com/runpod-worker/serverless-worker/internal/workerstate"
)

// Options configures one worker process run.
type Options struct {
	// Handler is the user-supplied job handler, already classified into
	// a tagged variant (§4.3, §9).
	Handler *handler.Handler

	// ConcurrencyModifier is the pluggable §4.4 modifier. Nil selects
	// DefaultConcurrencyModifier.
	ConcurrencyModifier scaler.ConcurrencyModifier

	// IdleTimeout bounds the acquisition loop's idle time (§4.4.1).
	IdleTimeout time.Duration

	// EnableDebugCollection attaches the rp_debugger payload to every
	// successful (non-error) result.
	EnableDebugCollection bool

	// MetricsAddr, if non-empty, starts the ambient Prometheus endpoint
	// on this address.
	MetricsAddr string
}

const defaultIdleTimeout = 5 * time.Minute

// Run wires every component and blocks until the scaler has stopped
// (ctx cancellation, idle timeout or a refresh-worker kill) and fully
// drained, or a fatal bootstrap error occurs. When the metrics endpoint
// is enabled, Run also keeps blocking until ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	log := logging.New()
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load configuration: " + err.Error())
		return err
	}

	shutdownTracer := tracing.Start(ctx, cfg.OTELCollector, log)
	defer func() { _ = shutdownTracer(context.Background()) }()

	idleTimeout := opts.IdleTimeout
	if idleTimeout <= 0 {
		idleTimeout = defaultIdleTimeout
	}

	// Scoped acquisition of the shared session around both scaler
	// loops, released on every exit path including idle-timeout and
	// refresh-worker kills (§9).
	session := transport.NewAsyncSession(cfg)
	defer session.CloseIdleConnections()

	jobClient := jobtransport.NewClient(cfg, session, log)
	adapter := handler.NewAdapter(opts.Handler)

	if cfg.IsLocalTest && cfg.LocalJobsFixture != "" {
		fixtureJobs, err := localtest.LoadFixture(cfg.LocalJobsFixture)
		if err != nil {
			log.Error("failed to load local jobs fixture: " + err.Error())
			return err
		}
		queue := workerstate.Queue()
		for _, job := range fixtureJobs {
			queue.Add(job)
		}
		log.Info(fmt.Sprintf("loaded %d local fixture jobs, skipping control-plane acquisition", len(fixtureJobs)))
	}

	var m *metrics.Metrics
	if opts.MetricsAddr != "" {
		m = metrics.New()
	}

	sc := scaler.New(
		jobClient,
		adapter,
		log,
		opts.ConcurrencyModifier,
		scaler.WithDebugCollection(opts.EnableDebugCollection),
		scaler.WithMetrics(m),
	)

	hb, hbEnabled := heartbeat.New(cfg, log)
	if hbEnabled {
		hb.Start()
		defer hb.Stop()
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sc.AcquisitionLoop(gctx, idleTimeout)
		// AcquisitionLoop exiting (idle timeout, or ctx cancellation)
		// always means the worker should stop accepting new jobs.
		sc.KillWorker()
		return nil
	})

	g.Go(func() error {
		sc.DispatchLoop(gctx)
		return nil
	})

	if m != nil {
		monitor := resourcemonitor.New()
		ms := metricsserver.New(opts.MetricsAddr, m, monitor, log)
		g.Go(func() error { return ms.Run(gctx) })
	}

	return g.Wait()
}
