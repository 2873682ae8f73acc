package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// configDir is the configuration directory path
	// Can be set via SetConfigDir before loading config
	configDir     string
	configDirInit bool
)

// SetConfigDir sets a custom configuration directory
// Must be called before any config loading functions
func SetConfigDir(dir string) {
	configDir = dir
	configDirInit = true
}

// GetConfigDir returns the configuration directory
// Priority: 1. Manually set via SetConfigDir, 2. ./config in current directory
func GetConfigDir() string {
	if !configDirInit {
		cwd, err := os.Getwd()
		if err == nil {
			configDir = filepath.Join(cwd, "config")
		}
		configDirInit = true
	}
	return configDir
}

// Config application configuration structure
type Config struct {
	Model     ModelConfig     `yaml:"model"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Index     IndexConfig     `yaml:"index"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Memory    MemoryConfig    `yaml:"memory"`
	Engine    EngineConfig    `yaml:"engine"`
	Server    ServerConfig    `yaml:"server"`
	Docs      DocsConfig      `yaml:"docs"`
}

// ModelConfig LLM backend configuration
type ModelConfig struct {
	Backend     string  `yaml:"backend"` // "ollama" or "claude"
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// EmbeddingConfig embedding API configuration
type EmbeddingConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	Dimension      int    `yaml:"dimension"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
}

// IndexConfig vector index configuration
type IndexConfig struct {
	DBPath       string `yaml:"db_path"`
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
}

// RetrievalConfig retrieval tuning
type RetrievalConfig struct {
	KSummary  int     `yaml:"k_summary"`
	KGeneral  int     `yaml:"k_general"`
	FetchK    int     `yaml:"fetch_k"`
	MMRLambda float64 `yaml:"mmr_lambda"`
}

// MemoryConfig conversation memory configuration
type MemoryConfig struct {
	MaxRecentTurns int `yaml:"max_recent_turns"`
}

// EngineConfig orchestration configuration
type EngineConfig struct {
	GenerateTimeoutSeconds int `yaml:"generate_timeout_seconds"`
}

// ServerConfig HTTP API configuration
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DocsConfig document corpus configuration
type DocsConfig struct {
	Dir string `yaml:"dir"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Model: ModelConfig{
			Backend:     "ollama",
			BaseURL:     "http://localhost:11434",
			APIKey:      "",
			Model:       "llama3.1",
			Temperature: 0.1,
			MaxTokens:   4096,
		},
		Embedding: EmbeddingConfig{
			BaseURL:        "http://localhost:11434/v1",
			APIKey:         "",
			Model:          "all-minilm",
			Dimension:      384,
			TimeoutSeconds: 30,
			MaxRetries:     2,
		},
		Index: IndexConfig{
			DBPath:       filepath.Join(homeDir, ".ragmate", "index.db"),
			ChunkSize:    800,
			ChunkOverlap: 100,
		},
		Retrieval: RetrievalConfig{
			KSummary:  3,
			KGeneral:  3,
			FetchK:    20,
			MMRLambda: 0.75,
		},
		Memory: MemoryConfig{
			MaxRecentTurns: 4,
		},
		Engine: EngineConfig{
			GenerateTimeoutSeconds: 120,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Docs: DocsConfig{
			Dir: filepath.Join("data", "raw"),
		},
	}
}

// ConfigDir returns the configuration directory path
func ConfigDir() (string, error) {
	dir := GetConfigDir()
	if dir == "" {
		return "", fmt.Errorf("failed to determine config directory")
	}
	return dir, nil
}

// LogDir returns the log directory path
func LogDir() string {
	dir := GetConfigDir()
	if dir == "" {
		return "logs"
	}
	return filepath.Join(dir, "logs")
}

// ConfigPath returns the configuration file path
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load loads configuration from file, creating a default one on first run
func Load() (*Config, error) {
	configPath, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := Save(cfg); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Use default values as base so missing keys keep sane defaults
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save saves configuration to file
func Save(cfg *Config) error {
	configPath, err := ConfigPath()
	if err != nil {
		return err
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	content := "# ragmate Configuration File\n\n" + string(data)

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	backend := strings.ToLower(strings.TrimSpace(c.Model.Backend))
	if backend != "ollama" && backend != "claude" {
		return fmt.Errorf("config error: model.backend must be \"ollama\" or \"claude\"")
	}
	if c.Model.BaseURL == "" {
		return fmt.Errorf("config error: model.base_url cannot be empty")
	}
	if c.Model.Model == "" {
		return fmt.Errorf("config error: model.model cannot be empty")
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		return fmt.Errorf("config error: model.temperature must be between 0 and 2")
	}
	if backend == "claude" && c.Model.APIKey == "" {
		return fmt.Errorf("config error: model.api_key is required for the claude backend")
	}
	if backend == "claude" && c.Model.MaxTokens <= 0 {
		return fmt.Errorf("config error: model.max_tokens must be greater than 0 for the claude backend")
	}

	if c.Embedding.BaseURL == "" {
		return fmt.Errorf("config error: embedding.base_url cannot be empty")
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("config error: embedding.dimension must be greater than 0")
	}
	if c.Embedding.TimeoutSeconds <= 0 {
		return fmt.Errorf("config error: embedding.timeout_seconds must be greater than 0")
	}

	if c.Index.DBPath == "" {
		return fmt.Errorf("config error: index.db_path cannot be empty")
	}
	if c.Index.ChunkSize <= 0 {
		return fmt.Errorf("config error: index.chunk_size must be greater than 0")
	}
	if c.Index.ChunkOverlap < 0 || c.Index.ChunkOverlap >= c.Index.ChunkSize {
		return fmt.Errorf("config error: index.chunk_overlap must be non-negative and smaller than index.chunk_size")
	}

	if c.Retrieval.KSummary <= 0 || c.Retrieval.KGeneral <= 0 {
		return fmt.Errorf("config error: retrieval.k_summary and retrieval.k_general must be greater than 0")
	}
	if c.Retrieval.FetchK < c.Retrieval.KGeneral {
		return fmt.Errorf("config error: retrieval.fetch_k must be at least retrieval.k_general")
	}
	if c.Retrieval.MMRLambda < 0 || c.Retrieval.MMRLambda > 1 {
		return fmt.Errorf("config error: retrieval.mmr_lambda must be between 0 and 1")
	}

	if c.Memory.MaxRecentTurns <= 0 {
		return fmt.Errorf("config error: memory.max_recent_turns must be greater than 0")
	}

	if c.Engine.GenerateTimeoutSeconds <= 0 {
		return fmt.Errorf("config error: engine.generate_timeout_seconds must be greater than 0")
	}

	return nil
}

// String returns string representation of config (hides sensitive info)
func (c *Config) String() string {
	return fmt.Sprintf(`ragmate Configuration:
  Model:
    Backend: %s
    Base URL: %s
    API Key: %s
    Model: %s
    Temperature: %.1f
  Embedding:
    Base URL: %s
    Model: %s
    Dimension: %d
  Index:
    DB Path: %s
    Chunk Size: %d
    Chunk Overlap: %d
  Retrieval:
    K Summary: %d
    K General: %d
    Fetch K: %d
    MMR Lambda: %.2f
  Memory:
    Max Recent Turns: %d
  Engine:
    Generate Timeout Seconds: %d
  Server:
    Addr: %s
  Docs:
    Dir: %s`,
		c.Model.Backend,
		c.Model.BaseURL,
		redactAPIKey(c.Model.APIKey),
		c.Model.Model,
		c.Model.Temperature,
		c.Embedding.BaseURL,
		c.Embedding.Model,
		c.Embedding.Dimension,
		c.Index.DBPath,
		c.Index.ChunkSize,
		c.Index.ChunkOverlap,
		c.Retrieval.KSummary,
		c.Retrieval.KGeneral,
		c.Retrieval.FetchK,
		c.Retrieval.MMRLambda,
		c.Memory.MaxRecentTurns,
		c.Engine.GenerateTimeoutSeconds,
		c.Server.Addr,
		c.Docs.Dir,
	)
}

func redactAPIKey(value string) string {
	if value == "" {
		return "(not configured)"
	}
	if len(value) > 8 {
		return value[:8] + "..."
	}
	return "***"
}
