// Package metricsserver hosts the ambient Prometheus /metrics endpoint
// named in SPEC_FULL.md's DOMAIN STACK. Adapted from the teacher's
// internal/server/server.go (JobServer: an HTTP server on its own
// goroutine, started/stopped around Process Lifecycle) — repurposed
// from "receive pushed transcode jobs" to "serve pulled metrics",
// matching this worker's pull-based Job Transport instead of the
// teacher's push model.
package metricsserver

import (
	"context"
	"net/http"
	"time"

	"github.com/runpod-worker/serverless-worker/internal/logging"
	"github.com/runpod-worker/serverless-worker/internal/metrics"
	"github.com/runpod-worker/serverless-worker/internal/resourcemonitor"
)

// Server serves /metrics on addr and periodically refreshes the host
// resource gauges from monitor.
type Server struct {
	addr    string
	metrics *metrics.Metrics
	monitor *resourcemonitor.Monitor
	log     *logging.Logger

	httpServer *http.Server
}

// New builds a metrics Server bound to addr.
func New(addr string, m *metrics.Metrics, monitor *resourcemonitor.Monitor, log *logging.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	return &Server{
		addr:    addr,
		metrics: m,
		monitor: monitor,
		log:     log,
		httpServer: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Run serves /metrics and samples host resources every 15s until ctx is
// cancelled, then shuts the HTTP server down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("metrics server listening on " + s.addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return s.httpServer.Shutdown(shutdownCtx)

		case err := <-errCh:
			if err == http.ErrServerClosed {
				return nil
			}
			return err

		case <-ticker.C:
			s.metrics.ObserveResources(ctx, s.monitor)
		}
	}
}
