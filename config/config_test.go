package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{"DRAFTAGENT_API_KEY", "DRAFTAGENT_BASE_URL", "DRAFTAGENT_MODEL", "DRAFTAGENT_PROVIDER", "DRAFTAGENT_DB"} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ProviderLocal, cfg.LLM.Provider)
	assert.Equal(t, StoreMemory, cfg.Store.Driver)
	assert.Equal(t, 0.7, cfg.Dialogue.ConfidenceThreshold)
	assert.Equal(t, 16, cfg.Dialogue.MaxSteps)
	assert.Equal(t, 20, cfg.Dialogue.HistoryTurns)
	assert.Equal(t, "English", cfg.Dialogue.Lang)
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  provider: openai
  api_key: from-file
  model: gpt-4o-mini
dialogue:
  lang: French
  confidence_threshold: 0.8
log:
  level: debug
`), 0o600))

	t.Setenv("DRAFTAGENT_API_KEY", "from-env")
	t.Setenv("DRAFTAGENT_DB", filepath.Join(t.TempDir(), "sessions.db"))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ProviderOpenAI, cfg.LLM.Provider)
	assert.Equal(t, "from-env", cfg.LLM.APIKey)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, StoreSQLite, cfg.Store.Driver)
	assert.Equal(t, "French", cfg.Dialogue.Lang)
	assert.Equal(t, 0.8, cfg.Dialogue.ConfidenceThreshold)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestLoad_JSONFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"llm": {"provider": "local"}, "store": {"driver": "memory"}}`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ProviderLocal, cfg.LLM.Provider)
}

func TestLoad_Invalid(t *testing.T) {
	clearEnv(t)
	t.Setenv("DRAFTAGENT_PROVIDER", "openai")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key")

	t.Setenv("DRAFTAGENT_PROVIDER", "gemini")
	_, err = Load("")
	require.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate_NegativeMaxSessions(t *testing.T) {
	cfg := Default()
	cfg.Store.MaxSessions = -1
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_sessions")
}
