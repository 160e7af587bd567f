package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "registry.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.Model)
	assert.Equal(t, 3000, cfg.Anthropic.TextWindow)
	assert.InDelta(t, 0.3, cfg.Anthropic.Temperature, 0.001)
	assert.Equal(t, 1, cfg.Pipeline.Workers)
	assert.False(t, cfg.Pipeline.AIEnabled)
	assert.InDelta(t, 0.85, cfg.Pipeline.SimilarityThreshold, 0.001)
	assert.Equal(t, 20, cfg.Pipeline.CandidatePrefixLen)
	assert.InDelta(t, 0.3, cfg.Scorer.SourceCountWeight, 0.001)
	assert.InDelta(t, 0.3, cfg.Scorer.CompletenessWeight, 0.001)
	assert.InDelta(t, 0.2, cfg.Scorer.ReliabilityWeight, 0.001)
	assert.InDelta(t, 0.2, cfg.Scorer.RecencyWeight, 0.001)
	assert.InDelta(t, 0.92, cfg.Scorer.OfficialScore, 0.001)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 5, cfg.Circuit.FailureThreshold)
	assert.True(t, cfg.DLQ.Enabled)
	assert.Equal(t, "registry.projects", cfg.Kafka.Topic)
	assert.Empty(t, cfg.Kafka.Brokers)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/registry
log:
  level: debug
  format: console
pipeline:
  workers: 4
  ai_enabled: true
fetch:
  sources:
    - name: spa
      kind: rss
      url: https://www.spa.gov.sa/rss
      source_type: OfficialGov
      official: true
    - name: meed
      kind: page
      url: https://www.meed.com/saudi-arabia
      selector: article
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 4, cfg.Pipeline.Workers)
	assert.True(t, cfg.Pipeline.AIEnabled)
	require.Len(t, cfg.Fetch.Sources, 2)
	assert.Equal(t, "rss", cfg.Fetch.Sources[0].Kind)
	assert.True(t, cfg.Fetch.Sources[0].Official)
	assert.Equal(t, "article", cfg.Fetch.Sources[1].Selector)
	// Defaults still apply for unset values
	assert.Equal(t, 30, cfg.Fetch.TimeoutSecs)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("REGISTRY_STORE_DRIVER", "postgres")
	t.Setenv("REGISTRY_LOG_LEVEL", "warn")
	t.Setenv("REGISTRY_ANTHROPIC_KEY", "sk-ant-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "sk-ant-test", cfg.Anthropic.Key)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0o644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "registry.db"
	cfg.Pipeline.Workers = 1
	cfg.Pipeline.SimilarityThreshold = 0.85
	cfg.Server.Port = 8080
	return cfg
}

func TestValidate_Defaults(t *testing.T) {
	cfg := validDefaults()
	for _, mode := range []string{"run", "serve", "migrate"} {
		assert.NoError(t, cfg.Validate(mode), mode)
	}
}

func TestValidate_Store(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DatabaseURL = ""
	cfg.Store.Driver = "mysql"

	err := cfg.Validate("migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
	assert.Contains(t, err.Error(), "store.driver must be sqlite or postgres")
}

func TestValidate_AIRequiresKey(t *testing.T) {
	cfg := validDefaults()
	cfg.Pipeline.AIEnabled = true

	err := cfg.Validate("run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic.key is required")

	cfg.Anthropic.Key = "sk-ant-key"
	assert.NoError(t, cfg.Validate("run"))
}

func TestValidate_Bounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Pipeline.Workers = 0
	assert.ErrorContains(t, cfg.Validate("run"), "pipeline.workers must be between 1 and 50")
	cfg.Pipeline.Workers = 51
	assert.ErrorContains(t, cfg.Validate("run"), "pipeline.workers")
	cfg.Pipeline.Workers = 50
	assert.NoError(t, cfg.Validate("run"))

	cfg.Pipeline.SimilarityThreshold = 1.5
	assert.ErrorContains(t, cfg.Validate("run"), "similarity_threshold")
	cfg.Pipeline.SimilarityThreshold = 0.85

	cfg.Scorer.RecencyWeight = -0.1
	assert.ErrorContains(t, cfg.Validate("run"), "scorer weights must be >= 0")
	cfg.Scorer.RecencyWeight = 0.2

	cfg.Server.Port = 0
	assert.ErrorContains(t, cfg.Validate("serve"), "server.port must be > 0")
	assert.NoError(t, cfg.Validate("run"))
}

func TestValidate_UnknownMode(t *testing.T) {
	err := validDefaults().Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
