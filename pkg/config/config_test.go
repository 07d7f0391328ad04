package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/common/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Validates(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultModel, cfg.Model)
	assert.Equal(t, DefaultMaxTokens, cfg.MaxTokens)
	assert.True(t, cfg.Retry.Jitter)
}

func TestParse_FileOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
model: claude-3-5-haiku-latest
max_tokens: 1024
budget_tokens: 50000
retry:
  max_attempts: 6
  initial_delay: 250ms
timeout:
  base: 90s
`))
	require.NoError(t, err)

	assert.Equal(t, "claude-3-5-haiku-latest", cfg.Model)
	assert.Equal(t, 1024, cfg.MaxTokens)
	assert.Equal(t, uint64(50000), cfg.BudgetTokens)
	assert.Equal(t, 6, cfg.Retry.MaxAttempts)
	assert.Equal(t, model.Duration(250*time.Millisecond), cfg.Retry.InitialDelay)
	assert.Equal(t, model.Duration(90*time.Second), cfg.Timeout.Base)

	// Keys the file does not mention keep their defaults.
	assert.Equal(t, model.Duration(30*time.Second), cfg.Retry.MaxDelay)
	assert.Equal(t, 2.0, cfg.Retry.BackoffFactor)
	assert.True(t, cfg.Retry.Jitter)
}

func TestParse_SubstitutesEnvPlaceholders(t *testing.T) {
	t.Setenv("PARLEY_TEST_MODEL", "claude-3-opus-latest")

	cfg, err := Parse([]byte("model: ${PARLEY_TEST_MODEL}\n"))
	require.NoError(t, err)
	assert.Equal(t, "claude-3-opus-latest", cfg.Model)
}

func TestParse_UnresolvedPlaceholderStaysVisible(t *testing.T) {
	cfg, err := Parse([]byte("system: ${NO_SUCH_VAR_SET}\n"))
	require.NoError(t, err)
	assert.Equal(t, "${NO_SUCH_VAR_SET}", cfg.System)
}

func TestParse_EnvOverridesBeatFile(t *testing.T) {
	t.Setenv("PARLEY_MODEL", "claude-3-5-sonnet-latest")
	t.Setenv("PARLEY_MAX_TOKENS", "2048")
	t.Setenv("PARLEY_RETRY_MAX_ATTEMPTS", "7")
	t.Setenv("PARLEY_RETRY_INITIAL_DELAY", "2s")
	t.Setenv("PARLEY_STREAMING", "true")
	t.Setenv("PARLEY_TEMPERATURE", "0.7")

	cfg, err := Parse([]byte("model: from-file\nmax_tokens: 16\n"))
	require.NoError(t, err)

	assert.Equal(t, "claude-3-5-sonnet-latest", cfg.Model)
	assert.Equal(t, 2048, cfg.MaxTokens)
	assert.Equal(t, 7, cfg.Retry.MaxAttempts)
	assert.Equal(t, model.Duration(2*time.Second), cfg.Retry.InitialDelay)
	assert.True(t, cfg.Streaming)
	require.NotNil(t, cfg.Temperature)
	assert.Equal(t, 0.7, *cfg.Temperature)
}

func TestParse_ValidationFailures(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"zero max_tokens", "max_tokens: 0\n"},
		{"budget below one exchange", "max_tokens: 100\nbudget_tokens: 50\n"},
		{"zero retry attempts", "retry:\n  max_attempts: 0\n"},
		{"shrinking backoff", "retry:\n  backoff_factor: 0.5\n"},
		{"temperature out of range", "temperature: 1.5\n"},
		{"metrics enabled without listen", "metrics:\n  enabled: true\n  listen: \"\"\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadOrDefault_MissingFileFallsBack(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, cfg.Model)
}

func TestLoad_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parley.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model: claude-3-haiku-20240307\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "claude-3-haiku-20240307", cfg.Model)
}

func TestGetModelInfo(t *testing.T) {
	info, known := GetModelInfo("claude-3-7-sonnet-latest")
	assert.True(t, known)
	assert.Equal(t, 200000, info.MaxContextTokens)
	assert.Equal(t, 64000, info.MaxOutputTokens)

	fallback, known := GetModelInfo("claude-99-experimental")
	assert.False(t, known)
	assert.Equal(t, 200000, fallback.MaxContextTokens)
	assert.Equal(t, DefaultMaxTokens, fallback.MaxOutputTokens)
}

func TestModelInfoCost(t *testing.T) {
	info, _ := GetModelInfo("claude-3-5-sonnet-latest")
	// 1M input at $3 + 2M output at $15.
	assert.InDelta(t, 33.0, info.Cost(1_000_000, 2_000_000), 1e-9)

	unknown, _ := GetModelInfo("claude-99-experimental")
	assert.Zero(t, unknown.Cost(1_000_000, 1_000_000))
}
