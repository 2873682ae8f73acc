package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Message message structure
type Message struct {
	Role    string `json:"role"` // "system" | "user" | "assistant"
	Content string `json:"content"`
}

// Generator produces text from a list of prompt messages. It is the single
// capability behind classification, summarization and answer generation,
// each of which supplies its own instruction template.
type Generator interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}

// Backend identifies the configured LLM backend. Adding a backend means
// adding a new variant and client, not a new string branch.
type Backend int

const (
	BackendOllama Backend = iota
	BackendClaude
)

func (b Backend) String() string {
	switch b {
	case BackendOllama:
		return "ollama"
	case BackendClaude:
		return "claude"
	default:
		return "unknown"
	}
}

// ParseBackend maps a configuration value to a Backend variant
func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ollama":
		return BackendOllama, nil
	case "claude":
		return BackendClaude, nil
	default:
		return 0, fmt.Errorf("unsupported llm backend: %q", s)
	}
}

// GenerationError reports a failed generator call, carrying the backend label
type GenerationError struct {
	Backend string
	Err     error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed (%s): %v", e.Backend, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Options common generation options shared by all backends
type Options struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
}

// New constructs the Generator for the chosen backend variant
func New(backend Backend, opts Options) (Generator, error) {
	httpClient := &http.Client{Timeout: 120 * time.Second}
	switch backend {
	case BackendOllama:
		return newOllamaClient(opts, httpClient), nil
	case BackendClaude:
		return newClaudeClient(opts, httpClient), nil
	default:
		return nil, fmt.Errorf("unsupported llm backend: %d", backend)
	}
}
