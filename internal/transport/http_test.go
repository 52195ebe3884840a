package transport

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runpod-worker/serverless-worker/internal/config"
)

func TestAuthHeaderPrefersConfigAPIKey(t *testing.T) {
	t.Setenv("RUNPOD_AI_API_KEY", "env-key")
	assert.Equal(t, "cfg-key", AuthHeader(&config.Config{APIKey: "cfg-key"}))
}

func TestAuthHeaderFallsBackToEnv(t *testing.T) {
	t.Setenv("RUNPOD_AI_API_KEY", "env-key")
	assert.Equal(t, "env-key", AuthHeader(&config.Config{}))
}

func TestAuthHeaderEmptyWhenNeitherSet(t *testing.T) {
	original, wasSet := os.LookupEnv("RUNPOD_AI_API_KEY")
	require.NoError(t, os.Unsetenv("RUNPOD_AI_API_KEY"))
	t.Cleanup(func() {
		if wasSet {
			_ = os.Setenv("RUNPOD_AI_API_KEY", original)
		}
	})

	assert.Equal(t, "", AuthHeader(&config.Config{}))
}

func TestWithRequestHeadersSetsAuthContentTypeAndUserAgent(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "http://example.com", nil)
	require.NoError(t, err)

	WithRequestHeaders(req, &config.Config{APIKey: "secret"})

	assert.Equal(t, "secret", req.Header.Get("Authorization"))
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	assert.Equal(t, UserAgent, req.Header.Get("User-Agent"))
}

func TestNewSyncSessionRetriesOnServerError(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewSyncSession(&config.Config{}, 2, 2*time.Second)

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.GreaterOrEqual(t, attempts, 2)
}
