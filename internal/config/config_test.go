package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("MODEL_LADDER", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Len(t, cfg.Generation.Models, 3)
	assert.Equal(t, 2, cfg.Generation.MaxAttemptsPerModel)
	assert.Equal(t, 3, cfg.Generation.NoveltyRetries)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("MODEL_LADDER", " claude-sonnet-4-5 , openai:gpt-4.1 ,")
	t.Setenv("ATTEMPT_TIMEOUT", "5s")
	t.Setenv("REPAIR_ROUNDS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"claude-sonnet-4-5", "openai:gpt-4.1"}, cfg.Generation.Models)
	assert.Equal(t, 5*time.Second, cfg.Generation.AttemptTimeout)
	assert.Equal(t, 1, cfg.Generation.RepairRounds)
}

func TestLoad_YAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mualim.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
generation:
  models: [gemini-2.5-flash, gpt-4o-mini]
  backoff_base: 250ms
  novelty_retries: 1
`), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("MAX_ATTEMPTS_PER_MODEL", "4")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"gemini-2.5-flash", "gpt-4o-mini"}, cfg.Generation.Models)
	assert.Equal(t, 250*time.Millisecond, cfg.Generation.BackoffBase)
	assert.Equal(t, 1, cfg.Generation.NoveltyRetries)
	assert.Equal(t, 4, cfg.Generation.MaxAttemptsPerModel, "keys absent from the file keep env values")
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("generation:\n  models: []\n"), 0o600))
	t.Setenv("CONFIG_FILE", path)

	_, err := Load()
	assert.Error(t, err)

	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err = Load()
	assert.Error(t, err)
}

func TestGeneration_RequestBudget(t *testing.T) {
	g := Generation{
		Models:              []string{"a", "b"},
		MaxAttemptsPerModel: 2,
		BackoffBase:         time.Second,
		AttemptTimeout:      10 * time.Second,
		RepairRounds:        1,
		NoveltyRetries:      3,
	}
	// per model: 2 attempts * 10s * (1+1 repair) + 1s backoff = 41s
	assert.Equal(t, 82*time.Second, g.Ladder().Budget())
	assert.Equal(t, 4*82*time.Second, g.RequestBudget())

	g.OverallTimeout = 30 * time.Second
	assert.Equal(t, 30*time.Second, g.RequestBudget(), "an explicit overall timeout caps every round")
}
