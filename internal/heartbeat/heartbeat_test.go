package heartbeat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runpod-worker/serverless-worker/internal/config"
	"github.com/runpod-worker/serverless-worker/internal/logging"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		original, wasSet := os.LookupEnv(key)
		require.NoError(t, os.Unsetenv(key))
		t.Cleanup(func() {
			if wasSet {
				_ = os.Setenv(key, original)
			}
		})
	}
}

func TestNewDisabledWithoutAPIKey(t *testing.T) {
	clearEnv(t, "RUNPOD_AI_API_KEY", "RUNPOD_POD_ID")
	t.Setenv("RUNPOD_POD_ID", "pod-1")

	svc, enabled := New(&config.Config{PingURLTemplate: "https://example.com/ping"}, logging.New())
	assert.False(t, enabled)
	assert.Nil(t, svc)
}

func TestNewDisabledWithoutPodID(t *testing.T) {
	clearEnv(t, "RUNPOD_AI_API_KEY", "RUNPOD_POD_ID")
	t.Setenv("RUNPOD_AI_API_KEY", "key")

	svc, enabled := New(&config.Config{PingURLTemplate: "https://example.com/ping"}, logging.New())
	assert.False(t, enabled)
	assert.Nil(t, svc)
}

func TestNewDisabledWithoutPingURL(t *testing.T) {
	clearEnv(t, "RUNPOD_AI_API_KEY", "RUNPOD_POD_ID")
	t.Setenv("RUNPOD_AI_API_KEY", "key")
	t.Setenv("RUNPOD_POD_ID", "pod-1")

	svc, enabled := New(&config.Config{}, logging.New())
	assert.False(t, enabled)
	assert.Nil(t, svc)
}

func TestNewEnabledWhenAllPreconditionsHold(t *testing.T) {
	clearEnv(t, "RUNPOD_AI_API_KEY", "RUNPOD_POD_ID")
	t.Setenv("RUNPOD_AI_API_KEY", "key")
	t.Setenv("RUNPOD_POD_ID", "pod-1")

	svc, enabled := New(&config.Config{PingURLTemplate: "https://example.com/ping", PingIntervalMS: 1000}, logging.New())
	assert.True(t, enabled)
	require.NotNil(t, svc)
}

func TestServicePingsAndStopsCleanly(t *testing.T) {
	clearEnv(t, "RUNPOD_AI_API_KEY", "RUNPOD_POD_ID")
	t.Setenv("RUNPOD_AI_API_KEY", "key")
	t.Setenv("RUNPOD_POD_ID", "pod-1")

	pings := make(chan struct{}, 10)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case pings <- struct{}{}:
		default:
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := &config.Config{PingURLTemplate: srv.URL + "/ping", PingIntervalMS: 50}
	svc, enabled := New(cfg, logging.New())
	require.True(t, enabled)

	svc.Start()
	defer svc.Stop()

	select {
	case <-pings:
	case <-time.After(2 * time.Second):
		t.Fatal("heartbeat never reached the ping endpoint")
	}
}

func TestCheckRetryRetriesOnRetryableStatus(t *testing.T) {
	retry, err := checkRetry(context.Background(), &http.Response{StatusCode: http.StatusServiceUnavailable}, nil)
	require.NoError(t, err)
	assert.True(t, retry)

	retry, err = checkRetry(context.Background(), &http.Response{StatusCode: http.StatusOK}, nil)
	require.NoError(t, err)
	assert.False(t, retry)
}
