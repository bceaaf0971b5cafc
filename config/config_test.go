package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })
}

func TestLoad(t *testing.T) {
	t.Run("defaults when no file exists", func(t *testing.T) {
		chdir(t, t.TempDir())
		cfg, err := Load("config.yaml")

		require.NoError(t, err)
		assert.Empty(t, cfg.Source())
		assert.Equal(t, "logistic_regression", cfg.Artifacts.ModelType)
		assert.Equal(t, 300*time.Millisecond, cfg.Progress.FinalizeDelay)
		assert.Equal(t, 2*time.Millisecond, cfg.Progress.RowYield)
		assert.Equal(t, 8080, cfg.Http.Port)
		assert.Equal(t, "data/batch", cfg.Http.BatchDir)
		assert.Equal(t, "info", cfg.Log.Level)
	})

	t.Run("reads yaml and anchors relative paths", func(t *testing.T) {
		root := t.TempDir()
		content := `
artifacts:
  model_type: decision_tree
  model_path: models/tree.json
  cache_size: 2
progress:
  finalize_delay: 50ms
http:
  port: 9000
  timeout: 5s
log:
  level: debug
  file: logs/app.log
`
		require.NoError(t, os.WriteFile(filepath.Join(root, "config.yaml"), []byte(content), 0o600))
		sub := filepath.Join(root, "cmd")
		require.NoError(t, os.Mkdir(sub, 0o755))
		chdir(t, sub)

		cfg, err := Load("config.yaml")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join("..", "config.yaml"), cfg.Source())
		assert.Equal(t, "decision_tree", cfg.Artifacts.ModelType)
		assert.Equal(t, filepath.Join("..", "models", "tree.json"), cfg.Artifacts.ModelPath)
		assert.Equal(t, filepath.Join("..", "models", "preprocessed_data_full.json"), cfg.Artifacts.VectorizerPath)
		assert.Equal(t, 2, cfg.Artifacts.CacheSize)
		assert.Equal(t, 50*time.Millisecond, cfg.Progress.FinalizeDelay)
		assert.Equal(t, 2*time.Millisecond, cfg.Progress.RowYield, "unset keys keep defaults")
		assert.Equal(t, 9000, cfg.Http.Port)
		assert.Equal(t, 5*time.Second, cfg.Http.Timeout)
		assert.Equal(t, filepath.Join("..", "logs", "app.log"), cfg.Log.File)
		assert.Equal(t, filepath.Join("..", "data", "batch"), cfg.Http.BatchDir)
	})

	t.Run("reads from environment variables", func(t *testing.T) {
		chdir(t, t.TempDir())
		t.Setenv("SPAMDETECT_HTTP_PORT", "9090")
		t.Setenv("SPAMDETECT_LOG_LEVEL", "debug")
		t.Setenv("SPAMDETECT_PROGRESS_ROW_YIELD", "0s")
		t.Setenv("SPAMDETECT_ARTIFACTS_WATCH", "false")
		t.Setenv("SPAMDETECT_HTTP_BATCH_DIR", "/srv/batch")

		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, 9090, cfg.Http.Port)
		assert.Equal(t, "debug", cfg.Log.Level)
		assert.Zero(t, cfg.Progress.RowYield)
		assert.False(t, cfg.Artifacts.Watch)
		assert.Equal(t, "/srv/batch", cfg.Http.BatchDir)
	})

	t.Run("rejects malformed overrides", func(t *testing.T) {
		chdir(t, t.TempDir())
		t.Setenv("SPAMDETECT_HTTP_PORT", "eighty")
		_, err := Load("")
		assert.ErrorContains(t, err, "SPAMDETECT_HTTP_PORT")
	})

	t.Run("rejects malformed yaml", func(t *testing.T) {
		dir := t.TempDir()
		chdir(t, dir)
		require.NoError(t, os.WriteFile("config.yaml", []byte("http: [unterminated"), 0o600))
		_, err := Load("config.yaml")
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.Artifacts.ModelPath = ""
	cfg.Http.Port = 70000
	err := cfg.Validate()
	assert.ErrorContains(t, err, "model_path")
	assert.ErrorContains(t, err, "http.port")
}
