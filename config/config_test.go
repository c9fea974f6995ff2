package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "juta", cfg.Dataset.Category)
	assert.Equal(t, []string{"*.jpg", "*.jpeg", "*.png"}, cfg.Dataset.Includes)
	assert.Equal(t, 224, cfg.Embedding.InputSize)
	assert.Equal(t, "onnx", cfg.Embedding.Provider)
	assert.Equal(t, DefaultModelSource, cfg.Embedding.ModelSource)
	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, DefaultConfig().Dataset.Root, cfg.Dataset.Root)
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "pestmatch.yaml")

	content := `
dataset:
  root: /data/pests
  category: soja
embedding:
  provider: mock
  dimension: 48
server:
  addr: ":9000"
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "/data/pests", cfg.Dataset.Root)
	assert.Equal(t, "soja", cfg.Dataset.Category)
	assert.Equal(t, "mock", cfg.Embedding.Provider)
	assert.Equal(t, 48, cfg.Embedding.Dimension)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	// untouched sections keep defaults
	assert.Equal(t, 224, cfg.Embedding.InputSize)
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "pestmatch.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("dataset: [unclosed"), 0644))

	_, err := Load(configPath)
	assert.Error(t, err)
}

func TestLoadFromDir(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, ".pestmatch"), 0755))

	content := `
dataset:
  workers: 8
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".pestmatch", "config.yaml"), []byte(content), 0644))

	cfg, err := LoadFromDir(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Dataset.Workers)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("PESTMATCH_DATASET_ROOT", "/srv/dataset")
	t.Setenv("PESTMATCH_EMBEDDING_MODEL_SOURCE", "/models/mobilenet.onnx")
	t.Setenv("PESTMATCH_SERVER_MAX_UPLOAD_MB", "5")

	cfg, err := LoadFromDir(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "/srv/dataset", cfg.Dataset.Root)
	assert.Equal(t, "/models/mobilenet.onnx", cfg.Embedding.ModelSource)
	assert.Equal(t, 5, cfg.Server.MaxUploadMB)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "empty root", mutate: func(c *Config) { c.Dataset.Root = "" }, wantErr: true},
		{name: "unknown provider", mutate: func(c *Config) { c.Embedding.Provider = "tfjs" }, wantErr: true},
		{name: "zero input size", mutate: func(c *Config) { c.Embedding.InputSize = 0 }, wantErr: true},
		{name: "bad layout", mutate: func(c *Config) { c.Embedding.Layout = "chwn" }, wantErr: true},
		{name: "onnx without source", mutate: func(c *Config) { c.Embedding.ModelSource = "" }, wantErr: true},
		{name: "mock without source", mutate: func(c *Config) {
			c.Embedding.Provider = "mock"
			c.Embedding.ModelSource = ""
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pestmatch.yaml")
	cfg := DefaultConfig()
	cfg.Dataset.Category = "milho"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "milho", loaded.Dataset.Category)
}
