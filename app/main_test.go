package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunHelp(t *testing.T) {
	assert.Equal(t, 0, run([]string{"--help"}))
}

func TestRunRejectsMalformedOverrides(t *testing.T) {
	dir := t.TempDir()
	sources := filepath.Join(dir, "sources")
	require.NoError(t, os.MkdirAll(sources, 0755))

	overridesPath := filepath.Join(dir, "manual_overrides.json")
	require.NoError(t, os.WriteFile(overridesPath, []byte(`{"incident_overrides": {"abc": {"typo_field": 1}}}`), 0644))

	output := filepath.Join(dir, "data", "incidents.json")
	code := run([]string{"--sources-dir", sources, "--overrides", overridesPath, "--output", output})

	assert.Equal(t, 1, code)
	assert.NoFileExists(t, output)
}

func TestRunWithNoSources(t *testing.T) {
	dir := t.TempDir()
	sources := filepath.Join(dir, "sources")
	require.NoError(t, os.MkdirAll(sources, 0755))

	output := filepath.Join(dir, "data", "incidents.json")
	metricsFile := filepath.Join(dir, "i79.prom")
	code := run([]string{
		"--sources-dir", sources,
		"--overrides", filepath.Join(dir, "absent.json"),
		"--output", output,
		"--metrics-file", metricsFile,
	})

	assert.Equal(t, 0, code)
	assert.FileExists(t, output)
	assert.FileExists(t, metricsFile)
}

func TestRunMissingSourcesDir(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "incidents.json")

	assert.Equal(t, 1, run([]string{"--sources-dir", filepath.Join(dir, "nope"), "--output", output}))
	assert.NoFileExists(t, output)
}
