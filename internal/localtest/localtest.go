// Package localtest loads canned jobs for local development, the
// domain-stack feature SPEC_FULL.md adds for the IS_LOCAL_TEST path
// (§6: IS_LOCAL_TEST is true whenever RUNPOD_WEBHOOK_GET_JOB is unset).
// Grounded loosely in original_source's local-development sentinel
// comment in rp_http.py and test_pod_worker.py, using
// github.com/spf13/viper's sibling gopkg.in/yaml.v3 (pulled from
// ChuLiYu-raft-recovery) to parse the fixture file.
package localtest

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/runpod-worker/serverless-worker/internal/workerstate"
)

// yamlInputToJSON re-encodes a YAML-decoded map as the json.RawMessage
// every job's Input field expects, since the rest of the worker treats
// job input as opaque JSON (§3).
func yamlInputToJSON(input map[string]interface{}) (json.RawMessage, error) {
	if input == nil {
		return nil, nil
	}
	return json.Marshal(input)
}

// fixtureJob is the on-disk shape of one fixture entry; it is decoded
// then converted to a *workerstate.Job so the rest of the worker never
// needs to know fixtures exist.
type fixtureJob struct {
	ID      string                 `yaml:"id"`
	Input   map[string]interface{} `yaml:"input"`
	Webhook string                 `yaml:"webhook,omitempty"`
}

// LoadFixture reads a YAML file of canned jobs for local runs where no
// real control plane is reachable. An empty path is not an error — it
// simply yields no fixture jobs.
func LoadFixture(path string) ([]*workerstate.Job, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read local jobs fixture %q: %w", path, err)
	}

	var raw []fixtureJob
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse local jobs fixture %q: %w", path, err)
	}

	jobs := make([]*workerstate.Job, 0, len(raw))
	for _, f := range raw {
		if f.ID == "" {
			return nil, fmt.Errorf("local jobs fixture %q contains a job with an empty id", path)
		}
		input, err := yamlInputToJSON(f.Input)
		if err != nil {
			return nil, fmt.Errorf("local jobs fixture %q: job %q: %w", path, f.ID, err)
		}
		jobs = append(jobs, &workerstate.Job{ID: f.ID, Input: input, Webhook: f.Webhook})
	}

	return jobs, nil
}
