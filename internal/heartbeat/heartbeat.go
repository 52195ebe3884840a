// Package heartbeat implements the standalone periodic liveness
// reporter (§4.5), grounded in the teacher's internal/heartbeat
// (ticker-driven Service.Start launching a background goroutine) and in
// original_source/runpod/serverless/modules/rp_ping.py for the exact
// retry policy, query parameters, and disable preconditions.
package heartbeat

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/runpod-worker/serverless-worker/internal/config"
	"github.com/runpod-worker/serverless-worker/internal/logging"
	"github.com/runpod-worker/serverless-worker/internal/workerstate"
)

const sdkVersion = "1.0.0"

var retryableStatuses = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// Service sends a GET to PING_URL on a fixed interval, carrying the ids
// of every job JobsProgress currently tracks. It owns its own session,
// strictly separate from the scaler loops' shared session (§5), and
// runs on a dedicated goroutine that stops cooperatively.
type Service struct {
	cfg      *config.Config
	log      *logging.Logger
	progress *workerstate.JobsProgress

	client *http.Client
	stop   chan struct{}
	done   chan struct{}
}

// New builds a Heartbeat Service. Returns (nil, false) when any of the
// §4.5 disable preconditions hold: no API-key env var, no pod-id env
// var, or no ping URL configured.
func New(cfg *config.Config, log *logging.Logger) (*Service, bool) {
	if os.Getenv("RUNPOD_AI_API_KEY") == "" {
		log.Info("RUNPOD_AI_API_KEY not set, heartbeat disabled")
		return nil, false
	}
	if os.Getenv("RUNPOD_POD_ID") == "" {
		log.Info("RUNPOD_POD_ID not set, heartbeat disabled")
		return nil, false
	}
	if cfg.PingDisabled() {
		log.Info("ping URL not set, heartbeat disabled")
		return nil, false
	}

	timeout := 2 * cfg.PingInterval()

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.Logger = nil
	retryClient.HTTPClient.Timeout = timeout
	retryClient.CheckRetry = checkRetry
	retryClient.Backoff = retryablehttp.LinearJitterBackoff

	return &Service{
		cfg:      cfg,
		log:      log,
		progress: workerstate.Progress(),
		client:   retryClient.StandardClient(),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, true
}

// Start launches the ping loop on its own goroutine.
func (s *Service) Start() {
	go s.loop()
}

// Stop signals the ping loop to exit and waits for it, then closes the
// session. Cooperative, per §5: set-event then join.
func (s *Service) Stop() {
	close(s.stop)
	<-s.done
	s.client.CloseIdleConnections()
}

func (s *Service) loop() {
	defer close(s.done)

	interval := s.cfg.PingInterval()
	if interval <= 0 {
		interval = 10 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.ping()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.ping()
		}
	}
}

func (s *Service) ping() {
	interval := s.cfg.PingInterval()
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*interval)
	defer cancel()

	u, err := url.Parse(s.cfg.PingURLTemplate)
	if err != nil {
		s.log.Error("heartbeat: invalid ping URL: " + err.Error())
		return
	}

	q := u.Query()
	for _, id := range s.progress.ListIDs() {
		q.Add("job_id", id)
	}
	q.Set("runpod_version", sdkVersion)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		s.log.Error("heartbeat: failed to build request: " + err.Error())
		return
	}
	req.Header.Set("Authorization", os.Getenv("RUNPOD_AI_API_KEY"))

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Error("ping request error: " + err.Error())
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		s.log.Debug("heartbeat sent | status: " + strconv.Itoa(resp.StatusCode))
	} else {
		s.log.Error("heartbeat server error | status: " + strconv.Itoa(resp.StatusCode))
	}
}

func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	return retryableStatuses[resp.StatusCode], nil
}
