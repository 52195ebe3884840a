package localtest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFixtureEmptyPathYieldsNoJobs(t *testing.T) {
	jobs, err := LoadFixture("")
	require.NoError(t, err)
	assert.Nil(t, jobs)
}

func TestLoadFixtureParsesJobsAndInput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jobs.yaml")
	contents := `
- id: job-1
  input:
    prompt: hello
  webhook: https://example.com/hook
- id: job-2
  input:
    prompt: world
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	jobs, err := LoadFixture(path)
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	assert.Equal(t, "job-1", jobs[0].ID)
	assert.Equal(t, "https://example.com/hook", jobs[0].Webhook)
	assert.JSONEq(t, `{"prompt":"hello"}`, string(jobs[0].Input))

	assert.Equal(t, "job-2", jobs[1].ID)
	assert.Equal(t, "", jobs[1].Webhook)
}

func TestLoadFixtureRejectsJobWithoutID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jobs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- input:\n    x: 1\n"), 0o644))

	_, err := LoadFixture(path)
	assert.Error(t, err)
}

func TestLoadFixtureMissingFileErrors(t *testing.T) {
	_, err := LoadFixture("/nonexistent/path/jobs.yaml")
	assert.Error(t, err)
}
