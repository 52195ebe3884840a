// Package jobtransport implements the three control-plane RPCs spec.md
// §4.2 names: acquiring jobs, posting a terminal result, and posting one
// streamed chunk. It is grounded in the teacher's
// internal/client/client.go (the doRequest + typed-wrapper pattern) and
// in original_source/runpod/serverless/modules/rp_http.py for exact wire
// semantics, including the historical Content-Type quirk and the
// local-dev "Finished." sentinel.
package jobtransport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/runpod-worker/serverless-worker/internal/config"
	"github.com/runpod-worker/serverless-worker/internal/logging"
	"github.com/runpod-worker/serverless-worker/internal/models"
	"github.com/runpod-worker/serverless-worker/internal/tracing"
	"github.com/runpod-worker/serverless-worker/internal/transport"
	"github.com/runpod-worker/serverless-worker/internal/workerstate"
)

const tracerName = "jobtransport"

// Client issues the job-acquire/post-result/post-stream RPCs over a
// shared *http.Client. Constructed once by Process Lifecycle and handed
// to the Job Scaler.
type Client struct {
	cfg    *config.Config
	http   *http.Client
	log    *logging.Logger
	doneURL, streamURL string
}

// NewClient binds a Client to the acquire/done/stream URL templates
// resolved at startup.
func NewClient(cfg *config.Config, httpClient *http.Client, log *logging.Logger) *Client {
	return &Client{
		cfg:       cfg,
		http:      httpClient,
		log:       log,
		doneURL:   cfg.PostOutputURLTemplate,
		streamURL: cfg.PostStreamURLTemplate,
	}
}

// GetJob issues a GET to the job-acquire endpoint asking for up to count
// jobs. Per §4.2, any failure (network, 5xx, malformed body) yields an
// empty slice rather than an error: the scaler treats that as a backoff
// trigger, never a fatal condition.
func (c *Client) GetJob(ctx context.Context, count int) []*workerstate.Job {
	ctx, span := tracing.StartSpan(ctx, tracerName, "jobtransport.get_job")
	defer span.End()

	if count <= 0 || c.cfg.GetJobURLTemplate == "" {
		return nil
	}

	u, err := url.Parse(c.cfg.GetJobURLTemplate)
	if err != nil {
		c.log.Error("get_job: invalid URL template: " + err.Error())
		return nil
	}
	q := u.Query()
	q.Set("count", strconv.Itoa(count))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		c.log.Error("get_job: failed to build request: " + err.Error())
		return nil
	}
	transport.WithRequestHeaders(req, c.cfg)

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error("get_job: request failed: " + err.Error())
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		c.log.Error("get_job: server error status " + strconv.Itoa(resp.StatusCode))
		return nil
	}
	if resp.StatusCode >= 400 {
		c.log.Error("get_job: client error status " + strconv.Itoa(resp.StatusCode))
		return nil
	}

	var jobs []*workerstate.Job
	if err := json.NewDecoder(resp.Body).Decode(&jobs); err != nil {
		c.log.Error("get_job: failed to decode response: " + err.Error())
		return nil
	}

	return jobs
}

// SendResult posts a terminal job_result to the result-post endpoint.
func (c *Client) SendResult(ctx context.Context, result models.JobResult, job *workerstate.Job, isStream bool) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "jobtransport.send_result")
	defer span.End()

	c.handleResult(ctx, result, job, c.doneURL, "Results sent.", isStream)
}

// StreamResult posts one generator chunk to the stream-post endpoint.
// Never logs the "Finished." finalization marker.
func (c *Client) StreamResult(ctx context.Context, chunk models.JobResult, job *workerstate.Job) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "jobtransport.stream_result")
	defer span.End()

	c.handleResult(ctx, chunk, job, c.streamURL, "Intermediate results sent.", true)
}

func (c *Client) handleResult(ctx context.Context, result models.JobResult, job *workerstate.Job, urlTemplate, logMessage string, isStream bool) {
	body, err := json.Marshal(result)
	if err != nil {
		c.log.Error("serialization error for job result: "+err.Error(), job.ID)
		return
	}

	target := strings.ReplaceAll(urlTemplate, "$ID", job.ID)
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	target = fmt.Sprintf("%s%sisStream=%t", target, sep, isStream)

	if err := transmit(ctx, c.http, target, body, c.cfg); err != nil {
		c.log.Error(fmt.Sprintf("Failed to return job results. | %v", err), job.ID)
	} else {
		c.log.Debug(logMessage, job.ID)
	}

	// job_data status is used for local development with a sentinel
	// FastAPI-style server: only the done-result path ever logs it, and
	// only once the handler is no longer mid-flight.
	if urlTemplate == c.doneURL && result.Status != "IN_PROGRESS" {
		c.log.Info("Finished.", job.ID)
	}
}

// transmit POSTs body with the historically-preserved
// application/x-www-form-urlencoded content type (§4.2, §9: the JSON
// body under a form-urlencoded header is a known quirk kept for wire
// compatibility) using a Fibonacci-backoff retry policy: up to 3
// attempts, retrying only on transport errors and 5xx.
func transmit(ctx context.Context, base *http.Client, target string, body []byte, cfg *config.Config) error {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 2 // 3 total attempts: the initial try plus 2 retries
	retryClient.Logger = nil
	retryClient.HTTPClient = base
	retryClient.Backoff = fibonacciBackoff
	retryClient.CheckRetry = retryOn5xxOrTransportError

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", transport.AuthHeader(cfg))
	req.Header.Set("User-Agent", transport.UserAgent)
	req.Header.Set("charset", "utf-8")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := retryClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}
	return nil
}

// fibonacciBackoff produces the 1, 1, 2, 3, 5... second sequence §4.2
// requires, indexed by attempt number (1-based, as retryablehttp calls
// it before each retry).
func fibonacciBackoff(_, _ time.Duration, attemptNum int, _ *http.Response) time.Duration {
	a, b := 1, 1
	for i := 1; i < attemptNum; i++ {
		a, b = b, a+b
	}
	return time.Duration(a) * time.Second
}

func retryOn5xxOrTransportError(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	if resp.StatusCode >= 500 {
		return true, nil
	}
	return false, nil
}
