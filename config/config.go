package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment overrides, e.g. PESTMATCH_DATASET_ROOT.
const EnvPrefix = "PESTMATCH"

// DefaultModelSource is the pinned MobileNetV2 (opset 7) artifact from the
// ONNX model zoo.
const DefaultModelSource = "https://github.com/onnx/models/raw/main/validated/vision/classification/mobilenet/model/mobilenetv2-7.onnx"

// Config holds all configuration for the pest matching service.
type Config struct {
	Dataset   DatasetConfig   `yaml:"dataset"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Server    ServerConfig    `yaml:"server"`
	History   HistoryConfig   `yaml:"history"`
	Cache     CacheConfig     `yaml:"cache"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DatasetConfig describes the labeled reference dataset.
type DatasetConfig struct {
	Root     string `yaml:"root"`
	Category string `yaml:"category"`
	// Includes are doublestar patterns matched against the lower-cased file name.
	Includes []string `yaml:"includes"`
	Workers  int      `yaml:"workers"`
}

// EmbeddingConfig holds embedding model configuration.
type EmbeddingConfig struct {
	Provider          string `yaml:"provider"`                        // "onnx", "tfserving", "mock"
	ModelSource       string `yaml:"model_source" split_words:"true"` // path or URL of the model artifact
	ModelName         string `yaml:"model_name" split_words:"true"`
	ModelCacheDir     string `yaml:"model_cache_dir" split_words:"true"`
	BaseURL           string `yaml:"base_url" split_words:"true"` // tfserving REST endpoint
	SharedLibraryPath string `yaml:"shared_library_path" split_words:"true"`
	InputName         string `yaml:"input_name" split_words:"true"`
	OutputName        string `yaml:"output_name" split_words:"true"`
	Layout            string `yaml:"layout"` // "nhwc" or "nchw"
	InputSize         int    `yaml:"input_size" split_words:"true"`
	Dimension         int    `yaml:"dimension"`
	TimeoutSeconds    int    `yaml:"timeout_seconds" split_words:"true"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr        string `yaml:"addr"`
	UploadDir   string `yaml:"upload_dir" split_words:"true"`
	MaxUploadMB int    `yaml:"max_upload_mb" split_words:"true"`
	WarmUp      bool   `yaml:"warmup" split_words:"true"`
}

// HistoryConfig controls the comparison history log.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// CacheConfig controls the comparison result cache.
type CacheConfig struct {
	MaxSize    int `yaml:"max_size" split_words:"true"`
	TTLSeconds int `yaml:"ttl_seconds" split_words:"true"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Dataset: DatasetConfig{
			Root:     filepath.Join("dataset", "Jute_Pest_Dataset", "test"),
			Category: "juta",
			Includes: []string{"*.jpg", "*.jpeg", "*.png"},
			Workers:  4,
		},
		Embedding: EmbeddingConfig{
			Provider:       "onnx",
			ModelSource:    DefaultModelSource,
			ModelName:      "mobilenetv2-7",
			ModelCacheDir:  filepath.Join(".pestmatch", "models"),
			BaseURL:        "http://localhost:8501",
			InputName:      "input",
			OutputName:     "output",
			Layout:         "nchw",
			InputSize:      224,
			Dimension:      1000,
			TimeoutSeconds: 60,
		},
		Server: ServerConfig{
			Addr:        ":8000",
			UploadDir:   "uploads",
			MaxUploadMB: 20,
			WarmUp:      true,
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    filepath.Join(".pestmatch", "history.db"),
		},
		Cache: CacheConfig{
			MaxSize:    100,
			TTLSeconds: 300,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		// No config file: defaults plus environment
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for pestmatch.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "pestmatch.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".pestmatch", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	cfg := DefaultConfig()
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv reads an optional .env file and overlays PESTMATCH_* variables
// (PESTMATCH_DATASET_ROOT, PESTMATCH_EMBEDDING_MODEL_SOURCE, ...). Unset
// variables leave the current values untouched.
func ApplyEnv(cfg *Config) error {
	_ = godotenv.Load()
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return fmt.Errorf("invalid environment override: %w", err)
	}
	return nil
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	if c.Dataset.Root == "" {
		return fmt.Errorf("dataset.root is required")
	}
	switch c.Embedding.Provider {
	case "onnx", "tfserving", "mock":
	default:
		return fmt.Errorf("unsupported embedding provider: %s", c.Embedding.Provider)
	}
	if c.Embedding.InputSize <= 0 {
		return fmt.Errorf("embedding.input_size must be positive, got %d", c.Embedding.InputSize)
	}
	switch c.Embedding.Layout {
	case "", "nhwc", "nchw":
	default:
		return fmt.Errorf("unsupported tensor layout: %s", c.Embedding.Layout)
	}
	if c.Embedding.Provider == "onnx" && c.Embedding.ModelSource == "" {
		return fmt.Errorf("embedding.model_source is required for provider %s", c.Embedding.Provider)
	}
	return nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// EnsureDir ensures the parent directory of path exists.
func EnsureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0755)
}
