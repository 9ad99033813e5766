// Package config loads and validates the passage configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all settings for the pipeline and CLI.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Store     StoreConfig     `yaml:"store"`
	Search    SearchConfig    `yaml:"search"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ChunkingConfig holds the sentence-window parameters.
type ChunkingConfig struct {
	SentencesPerChunk int `yaml:"sentences_per_chunk"`
	SentenceOverlap   int `yaml:"sentence_overlap"`
	MinTokens         int `yaml:"min_tokens"`
	MaxTokens         int `yaml:"max_tokens"`
}

// EmbeddingConfig selects and parameterizes the embedding provider. Model
// also pins the tokenizer encoding used for chunk token budgets. ModelPath
// and MaxTokens apply to the onnx provider only.
type EmbeddingConfig struct {
	Provider    string   `yaml:"provider"`
	Model       string   `yaml:"model"`
	Dimensions  int      `yaml:"dimensions"`
	BaseURL     string   `yaml:"base_url"`
	APIKeyEnv   string   `yaml:"api_key_env"`
	BatchSize   int      `yaml:"batch_size"`
	MaxInFlight int      `yaml:"max_in_flight"`
	MaxRetries  int      `yaml:"max_retries"`
	Timeout     Duration `yaml:"timeout"`
	CacheSize   int      `yaml:"cache_size"`
	ModelPath   string   `yaml:"model_path"`
	MaxTokens   int      `yaml:"max_tokens"`
}

// APIKey resolves the provider credential from the configured env var.
func (e *EmbeddingConfig) APIKey() string {
	if e.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(e.APIKeyEnv)
}

// StoreConfig selects and parameterizes the vector store backend.
type StoreConfig struct {
	Backend    string   `yaml:"backend"`
	Path       string   `yaml:"path"`
	DSN        string   `yaml:"dsn"`
	URL        string   `yaml:"url"`
	APIKeyEnv  string   `yaml:"api_key_env"`
	Collection string   `yaml:"collection"`
	Timeout    Duration `yaml:"timeout"`
}

// APIKey resolves the backend credential from the configured env var.
func (s *StoreConfig) APIKey() string {
	if s.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(s.APIKeyEnv)
}

// SearchConfig holds retrieval defaults.
type SearchConfig struct {
	TopK          int           `yaml:"top_k"`
	MinSimilarity float64       `yaml:"min_similarity"`
	Keyword       KeywordConfig `yaml:"keyword"`
}

// KeywordConfig enables the keyword index and sets hybrid fusion weights.
type KeywordConfig struct {
	Enabled       bool    `yaml:"enabled"`
	IndexPath     string  `yaml:"index_path"`
	VectorWeight  float64 `yaml:"vector_weight"`
	KeywordWeight float64 `yaml:"keyword_weight"`
}

// WatchConfig holds directory watch settings.
type WatchConfig struct {
	Paths    []string `yaml:"paths"`
	Debounce Duration `yaml:"debounce"`
}

// Duration wraps time.Duration so YAML values like "30s" parse.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Load reads the config file at path, layers it over Default, expands
// relative paths against the file's directory, and validates the result.
// Unmarshalling onto the defaults keeps an explicit zero (sentence_overlap: 0,
// cache_size: 0) distinguishable from an absent field.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.ExpandPaths(filepath.Dir(path))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ExpandPaths resolves ~ against the home directory and relative paths
// against baseDir for every path-valued field.
func (c *Config) ExpandPaths(baseDir string) {
	c.Store.Path = expandPath(c.Store.Path, baseDir)
	c.Search.Keyword.IndexPath = expandPath(c.Search.Keyword.IndexPath, baseDir)
	c.Embedding.ModelPath = expandPath(c.Embedding.ModelPath, baseDir)
	for i := range c.Watch.Paths {
		c.Watch.Paths[i] = expandPath(c.Watch.Paths[i], baseDir)
	}
}

func expandPath(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
		return path
	}
	return filepath.Join(baseDir, path)
}
