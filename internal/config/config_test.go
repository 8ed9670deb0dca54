package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithNoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "data/master_graph.json", cfg.Data.MasterGraphPath)
	assert.Equal(t, 300, cfg.Maintainer.RelCleanNum)
	assert.Equal(t, 30*time.Second, cfg.Maintainer.AuditCooldown)
	assert.Equal(t, "gemini-2.5-pro", cfg.RateLimits.Parser.Model)
	assert.Equal(t, "ants", cfg.PoolBackend)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wikigraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data:
  master_graph_path: /tmp/custom_master.json
maintainer:
  rel_clean_num: 50
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/custom_master.json", cfg.Data.MasterGraphPath)
	assert.Equal(t, 50, cfg.Maintainer.RelCleanNum)
	assert.Equal(t, 500, cfg.Maintainer.ListUpdateLimit) // untouched default survives
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("WIKIGRAPH_MAINTAINER_REL_CLEAN_NUM", "7")
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Maintainer.RelCleanNum)
}

func TestLoad_MissingFileIsNotAnError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.NoError(t, err)
}

func TestComponentConfigs_WireThroughNestedValues(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	lp := cfg.ListProcessorComponentConfig()
	assert.Equal(t, cfg.ListProcessor.MaxListItemsPerRun, lp.MaxListItemsPerRun)
	assert.Equal(t, cfg.ListProcessor.Sampling.MaxWeight, lp.SampleWeights.MaxW)

	mnt := cfg.MaintainerComponentConfig()
	assert.Equal(t, cfg.Data.MasterGraphPath, mnt.MasterGraphPath)
	assert.Equal(t, cfg.Maintainer.AuditMaxRounds, mnt.AuditMaxRounds)

	wc := cfg.WikiClientComponentConfig()
	assert.Equal(t, cfg.Wiki.UserAgent, wc.UserAgent)

	rl := cfg.RateLimiterComponentConfig(cfg.RateLimits.Parser)
	assert.Equal(t, cfg.RateLimits.Parser.RequestsPerMinute, rl.MaxRequests)
	assert.Equal(t, time.Minute, rl.Window)
}
