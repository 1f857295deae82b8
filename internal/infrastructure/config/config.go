// Package config provides configuration loading and management.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigDir is the directory name for lore configuration.
	DefaultConfigDir = ".lore"
	// DefaultConfigFile is the default config file name.
	DefaultConfigFile = "config.yaml"
	// DefaultWorldsFile is the default worlds file name.
	DefaultWorldsFile = "worlds.yaml"
	// DefaultDatabaseFile is the default SQLite file name inside the config dir.
	DefaultDatabaseFile = "lore.db"
)

var (
	// reNonAlphanumeric matches characters that aren't alphanumeric or underscore.
	reNonAlphanumeric = regexp.MustCompile(`[^a-z0-9_]`)
	// reMultipleUnderscores matches consecutive underscores.
	reMultipleUnderscores = regexp.MustCompile(`_+`)
)

// Config holds static infrastructure configuration (read-only after init).
type Config struct {
	LLM      LLMConfig      `yaml:"llm,omitempty"`
	Embedder EmbedderConfig `yaml:"embedder,omitempty"`
	Qdrant   QdrantConfig   `yaml:"qdrant,omitempty"`
	SQLite   SQLiteConfig   `yaml:"sqlite,omitempty"`
	Graph    GraphConfig    `yaml:"graph,omitempty"`
	Retry    RetryConfig    `yaml:"retry,omitempty"`
	Log      LogConfig      `yaml:"log,omitempty"`
}

// LLMConfig holds configuration for the summarization model.
type LLMConfig struct {
	Provider string `yaml:"provider,omitempty"`
	Model    string `yaml:"model,omitempty"`
	APIKey   string `yaml:"api_key,omitempty"`
	// Disabled skips model summaries and keeps extractive ones.
	Disabled bool `yaml:"disabled,omitempty"`
}

// EmbedderConfig holds configuration for the embedding provider.
type EmbedderConfig struct {
	Provider string `yaml:"provider,omitempty"`
	Model    string `yaml:"model,omitempty"`
	APIKey   string `yaml:"api_key,omitempty"`
}

// QdrantConfig holds configuration for the optional Qdrant vector index.
type QdrantConfig struct {
	Enabled    bool   `yaml:"enabled,omitempty"`
	Host       string `yaml:"host,omitempty"`
	Port       int    `yaml:"port,omitempty"`
	Collection string `yaml:"collection,omitempty"`
	APIKey     string `yaml:"api_key,omitempty"`
}

// SQLiteConfig holds configuration for the SQLite relational database.
type SQLiteConfig struct {
	// Path is the file path to the SQLite database. Relative paths resolve
	// against the project directory.
	Path string `yaml:"path,omitempty"`
}

// GraphConfig tunes graph builds and queries.
type GraphConfig struct {
	// SimilarityThreshold is the minimum cosine similarity for a semantic_similar edge.
	SimilarityThreshold float64 `yaml:"similarity_threshold,omitempty"`
	// SimilaritySameTypeOnly restricts semantic edges to nodes of the same entity type.
	SimilaritySameTypeOnly bool `yaml:"similarity_same_type_only,omitempty"`
	// ImportanceDamping is the PageRank damping factor.
	ImportanceDamping float64 `yaml:"importance_damping,omitempty"`
	// ImportanceIterations is the number of PageRank iterations.
	ImportanceIterations int `yaml:"importance_iterations,omitempty"`
	// BatchSize is the number of entities embedded per provider call.
	BatchSize int `yaml:"batch_size,omitempty"`
	// StaleSyncTimeout is how long a build flag may be held before it is
	// treated as belonging to a crashed build.
	StaleSyncTimeout time.Duration `yaml:"stale_sync_timeout,omitempty"`
	// SearchMinRelevance drops search hits below this similarity.
	SearchMinRelevance float64 `yaml:"search_min_relevance,omitempty"`
	// CandidateFactor multiplies the search limit when shortlisting from the vector index.
	CandidateFactor int `yaml:"candidate_factor,omitempty"`
}

// RetryConfig bounds retries and request rate against model providers.
type RetryConfig struct {
	MaxAttempts       uint          `yaml:"max_attempts,omitempty"`
	InitialInterval   time.Duration `yaml:"initial_interval,omitempty"`
	MaxInterval       time.Duration `yaml:"max_interval,omitempty"`
	RequestsPerSecond float64       `yaml:"requests_per_second,omitempty"`
	Burst             int           `yaml:"burst,omitempty"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level,omitempty"`
	// Format is "console" or "json".
	Format string `yaml:"format,omitempty"`
}

// envOverrides lists the environment variables that override file values.
type envOverrides struct {
	OpenAIKey  string `env:"OPENAI_API_KEY"`
	QdrantKey  string `env:"QDRANT_API_KEY"`
	QdrantHost string `env:"LORE_QDRANT_HOST"`
	SQLitePath string `env:"LORE_SQLITE_PATH"`
	LogLevel   string `env:"LORE_LOG_LEVEL"`
	LogFormat  string `env:"LORE_LOG_FORMAT"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
		},
		Embedder: EmbedderConfig{
			Provider: "openai",
			Model:    "text-embedding-3-small",
		},
		Qdrant: QdrantConfig{
			Host:       "localhost",
			Port:       6334,
			Collection: "lore_graph_nodes",
		},
		SQLite: SQLiteConfig{
			Path: filepath.Join(DefaultConfigDir, DefaultDatabaseFile),
		},
		Graph: GraphConfig{
			SimilarityThreshold:  0.7,
			ImportanceDamping:    0.85,
			ImportanceIterations: 20,
			BatchSize:            32,
			StaleSyncTimeout:     30 * time.Minute,
			CandidateFactor:      4,
		},
		Retry: RetryConfig{
			MaxAttempts:       5,
			InitialInterval:   500 * time.Millisecond,
			MaxInterval:       10 * time.Second,
			RequestsPerSecond: 5,
			Burst:             5,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from the .lore directory in the given path.
func Load(basePath string) (*Config, error) {
	configFile := ConfigFilePath(basePath)

	data, err := os.ReadFile(configFile)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s (run 'lore init' first)", configFile)
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Start with defaults
	cfg := Default()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("parsing environment: %w", err)
	}

	if o.OpenAIKey != "" {
		if c.LLM.APIKey == "" {
			c.LLM.APIKey = o.OpenAIKey
		}
		if c.Embedder.APIKey == "" {
			c.Embedder.APIKey = o.OpenAIKey
		}
	}
	if o.QdrantKey != "" && c.Qdrant.APIKey == "" {
		c.Qdrant.APIKey = o.QdrantKey
	}
	if o.QdrantHost != "" {
		c.Qdrant.Host = o.QdrantHost
	}
	if o.SQLitePath != "" {
		c.SQLite.Path = o.SQLitePath
	}
	if o.LogLevel != "" {
		c.Log.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		c.Log.Format = o.LogFormat
	}
	return nil
}

// Validate checks value ranges that would otherwise fail deep inside a build.
func (c *Config) Validate() error {
	g := c.Graph
	if g.SimilarityThreshold < 0 || g.SimilarityThreshold > 1 {
		return fmt.Errorf("graph.similarity_threshold must be within [0,1], got %v", g.SimilarityThreshold)
	}
	if g.ImportanceDamping <= 0 || g.ImportanceDamping >= 1 {
		return fmt.Errorf("graph.importance_damping must be within (0,1), got %v", g.ImportanceDamping)
	}
	if g.ImportanceIterations < 1 {
		return fmt.Errorf("graph.importance_iterations must be positive, got %d", g.ImportanceIterations)
	}
	if g.BatchSize < 1 {
		return fmt.Errorf("graph.batch_size must be positive, got %d", g.BatchSize)
	}
	if g.StaleSyncTimeout <= 0 {
		return fmt.Errorf("graph.stale_sync_timeout must be positive, got %s", g.StaleSyncTimeout)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be positive, got %d", c.Retry.MaxAttempts)
	}
	return nil
}

// ConfigDir returns the path to the .lore config directory.
func ConfigDir(basePath string) string {
	return filepath.Join(basePath, DefaultConfigDir)
}

// ConfigFilePath returns the path to the config file.
func ConfigFilePath(basePath string) string {
	return filepath.Join(basePath, DefaultConfigDir, DefaultConfigFile)
}

// WorldsFilePath returns the path to the worlds file.
func WorldsFilePath(basePath string) string {
	return filepath.Join(basePath, DefaultConfigDir, DefaultWorldsFile)
}

// SQLitePath resolves the database path against basePath.
func (c *Config) SQLitePath(basePath string) string {
	path := c.SQLite.Path
	if path == "" {
		path = filepath.Join(DefaultConfigDir, DefaultDatabaseFile)
	}
	if path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(basePath, path)
}

// SanitizeWorldName converts a world name to a stable world ID.
func SanitizeWorldName(name string) string {
	name = strings.ToLower(name)

	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "-", "_")

	name = reNonAlphanumeric.ReplaceAllString(name, "")
	name = reMultipleUnderscores.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")

	if name == "" {
		return "default"
	}

	return name
}
