package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Model.Backend != "ollama" {
		t.Errorf("Expected Backend to be ollama, got %s", cfg.Model.Backend)
	}

	if cfg.Model.Model != "llama3.1" {
		t.Errorf("Expected Model to be llama3.1, got %s", cfg.Model.Model)
	}

	if cfg.Index.ChunkSize != 800 {
		t.Errorf("Expected ChunkSize to be 800, got %d", cfg.Index.ChunkSize)
	}

	if cfg.Index.ChunkOverlap != 100 {
		t.Errorf("Expected ChunkOverlap to be 100, got %d", cfg.Index.ChunkOverlap)
	}

	if cfg.Retrieval.KGeneral != 3 {
		t.Errorf("Expected KGeneral to be 3, got %d", cfg.Retrieval.KGeneral)
	}

	if cfg.Memory.MaxRecentTurns != 4 {
		t.Errorf("Expected MaxRecentTurns to be 4, got %d", cfg.Memory.MaxRecentTurns)
	}
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config { return DefaultConfig() }

	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(cfg *Config) {},
			wantErr: false,
		},
		{
			name:    "unknown backend",
			mutate:  func(cfg *Config) { cfg.Model.Backend = "gpt" },
			wantErr: true,
		},
		{
			name:    "empty model base URL",
			mutate:  func(cfg *Config) { cfg.Model.BaseURL = "" },
			wantErr: true,
		},
		{
			name:    "claude without api key",
			mutate:  func(cfg *Config) { cfg.Model.Backend = "claude" },
			wantErr: true,
		},
		{
			name: "claude with api key",
			mutate: func(cfg *Config) {
				cfg.Model.Backend = "claude"
				cfg.Model.APIKey = "sk-test"
			},
			wantErr: false,
		},
		{
			name:    "temperature out of range",
			mutate:  func(cfg *Config) { cfg.Model.Temperature = 3.0 },
			wantErr: true,
		},
		{
			name:    "zero embedding dimension",
			mutate:  func(cfg *Config) { cfg.Embedding.Dimension = 0 },
			wantErr: true,
		},
		{
			name:    "chunk overlap not smaller than chunk size",
			mutate:  func(cfg *Config) { cfg.Index.ChunkOverlap = cfg.Index.ChunkSize },
			wantErr: true,
		},
		{
			name:    "fetch_k below k_general",
			mutate:  func(cfg *Config) { cfg.Retrieval.FetchK = 1 },
			wantErr: true,
		},
		{
			name:    "mmr lambda out of range",
			mutate:  func(cfg *Config) { cfg.Retrieval.MMRLambda = 1.5 },
			wantErr: true,
		},
		{
			name:    "zero max recent turns",
			mutate:  func(cfg *Config) { cfg.Memory.MaxRecentTurns = 0 },
			wantErr: true,
		},
		{
			name:    "zero generate timeout",
			mutate:  func(cfg *Config) { cfg.Engine.GenerateTimeoutSeconds = 0 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadCreatesDefaultConfig(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "ragmate-config-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	SetConfigDir(tmpDir)
	defer SetConfigDir(tmpDir) // keep the override pinned for other tests in this package

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Model.Backend != "ollama" {
		t.Errorf("Expected default backend ollama, got %s", cfg.Model.Backend)
	}

	if _, err := os.Stat(filepath.Join(tmpDir, "config.yaml")); err != nil {
		t.Errorf("Expected config.yaml to be created: %v", err)
	}

	// Loading again should read the file we just wrote
	cfg2, err := Load()
	if err != nil {
		t.Fatalf("Second Load() failed: %v", err)
	}
	if cfg2.Index.ChunkSize != cfg.Index.ChunkSize {
		t.Errorf("Reloaded config mismatch: %d != %d", cfg2.Index.ChunkSize, cfg.Index.ChunkSize)
	}
}

func TestSaveAndReload(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "ragmate-config-save-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	SetConfigDir(tmpDir)

	cfg := DefaultConfig()
	cfg.Memory.MaxRecentTurns = 7
	if err := Save(cfg); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if loaded.Memory.MaxRecentTurns != 7 {
		t.Errorf("Expected MaxRecentTurns 7 after reload, got %d", loaded.Memory.MaxRecentTurns)
	}
}
