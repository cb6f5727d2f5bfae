package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
weights: [1, 1, 1, 1, 10]
psa:
  workgroup_size: 4
  rows: 1
  split_size: 2
  split_workgroup_size: 4
  pack_workgroup_size: 4
sample:
  count: 100
  seed: 7
`

func TestLoadConfigAppliesDefaultsForUnsetFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o644))

	cfg, err := loadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, []float32{1, 1, 1, 1, 10}, cfg.Weights)
	assert.Equal(t, uint32(100), cfg.Sample.Count)
	assert.Equal(t, uint32(7), cfg.Sample.Seed)

	psaCfg := cfg.PSA.toPSA()
	assert.Equal(t, uint32(4), psaCfg.WorkgroupSize)
	assert.Equal(t, uint32(2), psaCfg.SplitSize)
	// ParallelLookbackDepth and MaxBlockCount were not set in the YAML, so
	// they fall back to defaultPSAConfig's values.
	assert.Equal(t, defaultPSAConfig().ParallelLookbackDepth, psaCfg.ParallelLookbackDepth)
	assert.Equal(t, defaultPSAConfig().MaxBlockCount, psaCfg.MaxBlockCount)
}

func TestLoadConfigRejectsEmptyWeights(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(path, []byte("weights: []\n"), 0o644))

	_, err := loadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
