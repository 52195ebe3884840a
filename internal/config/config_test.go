package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearRunpodEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"RUNPOD_POD_ID",
		"RUNPOD_AI_API_KEY",
		"RUNPOD_WEBHOOK_GET_JOB",
		"RUNPOD_WEBHOOK_POST_OUTPUT",
		"RUNPOD_WEBHOOK_POST_STREAM",
		"RUNPOD_WEBHOOK_PING",
		"RUNPOD_PING_INTERVAL",
		"RUNPOD_LOCAL_JOBS",
		"OTEL_EXPORTER_OTLP_ENDPOINT",
	} {
		original, wasSet := os.LookupEnv(key)
		require.NoError(t, os.Unsetenv(key))
		t.Cleanup(func() {
			if wasSet {
				_ = os.Setenv(key, original)
			}
		})
	}
}

func TestLoadGeneratesWorkerIDWhenPodIDUnset(t *testing.T) {
	clearRunpodEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.WorkerID)
}

func TestLoadMarksLocalTestWhenNoGetJobURL(t *testing.T) {
	clearRunpodEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsLocalTest)
}

func TestLoadExpandsPodIDTemplate(t *testing.T) {
	clearRunpodEnv(t)
	t.Setenv("RUNPOD_POD_ID", "pod-123")
	t.Setenv("RUNPOD_WEBHOOK_GET_JOB", "https://api.runpod.ai/v2/$RUNPOD_POD_ID/job-take")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://api.runpod.ai/v2/pod-123/job-take", cfg.GetJobURLTemplate)
	assert.False(t, cfg.IsLocalTest)
}

func TestPingDisabledWhenTemplateUnsetOrSentinel(t *testing.T) {
	cfg := &Config{}
	assert.True(t, cfg.PingDisabled())

	cfg.PingURLTemplate = pingNotSet
	assert.True(t, cfg.PingDisabled())

	cfg.PingURLTemplate = "https://example.com/ping"
	assert.False(t, cfg.PingDisabled())
}

func TestPingIntervalConvertsMillisecondsToWholeSeconds(t *testing.T) {
	cfg := &Config{PingIntervalMS: 10000}
	assert.Equal(t, 10_000_000_000, int(cfg.PingInterval()))
}
