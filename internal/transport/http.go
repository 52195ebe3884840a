// Package transport builds the two HTTP session flavors the core's
// other components share: an async-style session for the scaler's
// acquisition/dispatch loops, and a sync session that mounts a retry
// adapter. Grounded in the teacher's
// internal/client/client.go NewOrchestratorClient pattern, generalized
// from a single retryable client into the two flavors spec.md's HTTP
// Transport component names.
package transport

import (
	"net/http"
	"os"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/runpod-worker/serverless-worker/internal/config"
)

const (
	// UserAgent is the fixed string every request identifies itself
	// with, including the worker SDK version (§4.1).
	UserAgent = "RunPod-Go-SDK/1.0"

	asyncTimeout     = 600 * time.Second
	contentTypeJSON  = "application/json"
	headerAuthz      = "Authorization"
	headerContentTyp = "Content-Type"
	headerUserAgent  = "User-Agent"
)

// AuthHeader produces the Authorization value from the config's API key,
// falling back to the RUNPOD_AI_API_KEY environment variable, and an
// empty string if neither is present — exactly §4.1's precedence.
func AuthHeader(cfg *config.Config) string {
	if cfg.APIKey != "" {
		return cfg.APIKey
	}
	return os.Getenv("RUNPOD_AI_API_KEY")
}

// tracingTransport wraps an http.RoundTripper with OpenTelemetry
// propagation headers, the Go analogue of aiohttp's create_trace_config
// trace_configs hook in http_client.py.
type tracingTransport struct {
	base http.RoundTripper
}

func (t *tracingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	otel.GetTextMapPropagator().Inject(req.Context(), propagation.HeaderCarrier(req.Header))
	return t.base.RoundTrip(req)
}

// baseHeaders sets the three headers every core-issued request carries:
// auth, content type, and a fixed user agent naming the SDK version.
func baseHeaders(req *http.Request, cfg *config.Config) {
	req.Header.Set(headerAuthz, AuthHeader(cfg))
	req.Header.Set(headerContentTyp, contentTypeJSON)
	req.Header.Set(headerUserAgent, UserAgent)
}

// NewAsyncSession builds the reusable HTTP client the acquisition and
// dispatch loops share: unbounded per-host connections, a 600s overall
// timeout, TLS verification on, and OpenTelemetry propagation installed
// on every request. It never retains a package-level handle — ownership
// stays with the caller (Process Lifecycle), matching §9's "scoped
// acquisition ... with guaranteed release on all exit paths".
func NewAsyncSession(cfg *config.Config) *http.Client {
	transport := &http.Transport{
		MaxIdleConnsPerHost: 0, // 0 keeps net/http's default idle pool per host
		MaxConnsPerHost:     0, // unbounded, mirrors aiohttp TCPConnector(limit=0)
	}

	return &http.Client{
		Transport: &tracingTransport{base: transport},
		Timeout:   asyncTimeout,
	}
}

// NewSyncSession builds a session with the same headers and timeout
// discipline as NewAsyncSession, but additionally mounts an HTTP retry
// adapter (go-retryablehttp, the teacher's library). Heartbeat does not
// call this: it builds its own retrying client with its own retry policy.
func NewSyncSession(cfg *config.Config, retries int, timeout time.Duration) *http.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = retries
	retryClient.Logger = nil
	retryClient.HTTPClient.Timeout = timeout
	retryClient.HTTPClient.Transport = &tracingTransport{base: http.DefaultTransport}

	std := retryClient.StandardClient()
	return std
}

// WithRequestHeaders is a convenience applied by callers right before
// Do, since http.Client has no per-client default-header hook.
func WithRequestHeaders(req *http.Request, cfg *config.Config) {
	baseHeaders(req, cfg)
}
