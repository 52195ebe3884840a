// Package config binds the core's environment-variable surface (§6 of
// spec.md) the way the teacher binds its config.yml + env layering:
// viper defaults, then AutomaticEnv, then an explicit struct.
package config

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

const (
	pingNotSet          = "PING_NOT_SET"
	defaultPingInterval = 10000 // milliseconds
)

// Config holds every environment-derived setting the core reads.
type Config struct {
	WorkerID string `mapstructure:"runpod_pod_id"`
	APIKey   string `mapstructure:"runpod_ai_api_key"`

	GetJobURLTemplate     string `mapstructure:"runpod_webhook_get_job"`
	PostOutputURLTemplate string `mapstructure:"runpod_webhook_post_output"`
	PostStreamURLTemplate string `mapstructure:"runpod_webhook_post_stream"`
	PingURLTemplate       string `mapstructure:"runpod_webhook_ping"`

	PingIntervalMS int `mapstructure:"runpod_ping_interval"`

	// IsLocalTest mirrors IS_LOCAL_TEST: true whenever no get-job
	// endpoint was configured, meaning jobs never arrive from a real
	// control plane.
	IsLocalTest bool

	// LocalJobsFixture, when IsLocalTest is true, optionally names a
	// YAML file of canned jobs for local development (domain-stack
	// addition, see SPEC_FULL.md).
	LocalJobsFixture string `mapstructure:"runpod_local_jobs"`

	// IdleTimeout bounds how long the acquisition loop may go without
	// acquiring a job before killing the worker (§4.4.1).
	IdleTimeout time.Duration

	// OTELCollector is the OTLP endpoint, if any.
	OTELCollector string `mapstructure:"otel_exporter_otlp_endpoint"`

	// MetricsAddr is where the ambient Prometheus endpoint listens, if
	// enabled.
	MetricsAddr string
}

// Load reads the core's configuration purely from the environment
// (this worker ships no config file) and resolves WorkerID and
// IsLocalTest the way worker_state.py does.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("runpod_ping_interval", defaultPingInterval)
	v.SetDefault("runpod_webhook_ping", pingNotSet)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, key := range []string{
		"runpod_pod_id",
		"runpod_ai_api_key",
		"runpod_webhook_get_job",
		"runpod_webhook_post_output",
		"runpod_webhook_post_stream",
		"runpod_webhook_ping",
		"runpod_ping_interval",
		"runpod_local_jobs",
		"otel_exporter_otlp_endpoint",
	} {
		_ = v.BindEnv(key)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.WorkerID == "" {
		cfg.WorkerID = uuid.NewString()
	}

	cfg.IsLocalTest = cfg.GetJobURLTemplate == ""

	cfg.GetJobURLTemplate = expandPodID(cfg.GetJobURLTemplate, cfg.WorkerID)
	cfg.PostOutputURLTemplate = expandPodID(cfg.PostOutputURLTemplate, cfg.WorkerID)
	cfg.PostStreamURLTemplate = expandPodID(cfg.PostStreamURLTemplate, cfg.WorkerID)
	cfg.PingURLTemplate = expandPodID(cfg.PingURLTemplate, cfg.WorkerID)

	return &cfg, nil
}

// expandPodID performs the one-time $RUNPOD_POD_ID substitution spec.md
// requires at startup.
func expandPodID(template, workerID string) string {
	return strings.ReplaceAll(template, "$RUNPOD_POD_ID", workerID)
}

// PingInterval returns the heartbeat period as a time.Duration,
// dividing the millisecond env value down to whole seconds the way
// rp_ping.py does with integer division.
func (c *Config) PingInterval() time.Duration {
	return time.Duration(c.PingIntervalMS/1000) * time.Second
}

// PingDisabled reports whether the heartbeat has no usable target.
func (c *Config) PingDisabled() bool {
	return c.PingURLTemplate == "" || c.PingURLTemplate == pingNotSet
}
