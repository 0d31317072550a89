package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "presence", cfg.Name)
	assert.Equal(t, "gemini-2.5-flash", cfg.LLM.Model)
	assert.Equal(t, 4000, cfg.Limits.GroupRuleMax)
	assert.Equal(t, 20, cfg.Limits.IntentWindowSize)
	assert.Equal(t, 8, cfg.Loop.IdleMaxMultiplier)
	assert.True(t, cfg.Loop.MaxConcurrent > 0)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Limits, cfg.Limits)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.DataDir = "/tmp/presence-test"
	cfg.Loop.Interval = "45s"
	cfg.Identity.OwnerName = "sam"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/presence-test", loaded.DataDir)
	assert.Equal(t, "45s", loaded.Loop.Interval)
	assert.Equal(t, "sam", loaded.Identity.OwnerName)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("PRESENCE_DATA_DIR", "/tmp/override")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "test-key", cfg.LLM.APIKey)
	assert.Equal(t, "/tmp/override", cfg.DataDir)
}

func TestDurationHelpers(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 90*time.Second, cfg.GetLoopInterval())
	assert.Equal(t, 120*time.Second, cfg.GetLLMTimeout())

	cfg.Loop.Interval = "garbage"
	assert.Equal(t, 90*time.Second, cfg.GetLoopInterval(), "bad interval falls back")
}

func TestPathHelpers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = "/data/presence"

	assert.Equal(t, "/data/presence/history.db", cfg.HistoryDBPath())
	assert.Equal(t, "/data/presence/workspace", cfg.WorkspaceRoot())

	cfg.History.DatabasePath = "/elsewhere/h.db"
	assert.Equal(t, "/elsewhere/h.db", cfg.HistoryDBPath())
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.APIKey = "k"
	assert.NoError(t, cfg.Validate())

	t.Run("missing api key", func(t *testing.T) {
		c := DefaultConfig()
		c.LLM.APIKey = ""
		assert.Error(t, c.Validate())
	})

	t.Run("bad limits", func(t *testing.T) {
		c := DefaultConfig()
		c.LLM.APIKey = "k"
		c.Limits.GroupRuleMax = 0
		assert.Error(t, c.Validate())
	})
}
