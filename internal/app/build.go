// Package app assembles the pipeline components from configuration.
package app

import (
	"fmt"
	"time"

	"github.com/jwkim/ragmate/internal/answer"
	"github.com/jwkim/ragmate/internal/classify"
	"github.com/jwkim/ragmate/internal/config"
	"github.com/jwkim/ragmate/internal/engine"
	"github.com/jwkim/ragmate/internal/index"
	"github.com/jwkim/ragmate/internal/ingest"
	"github.com/jwkim/ragmate/internal/llm"
	"github.com/jwkim/ragmate/internal/memory"
	"github.com/jwkim/ragmate/internal/observability"
	"github.com/jwkim/ragmate/internal/retrieval"
)

// App bundles the wired components and owns their shared resources
type App struct {
	Engine   *engine.Engine
	Pipeline *ingest.Pipeline
	Index    *index.Store

	Metrics *observability.Metrics
}

// Options tweaks assembly
type Options struct {
	// WithMetrics registers Prometheus collectors. Leave off for one-shot
	// commands so repeated construction cannot double-register.
	WithMetrics bool
}

// Build wires every component from cfg. Call Close when done.
func Build(cfg *config.Config, opts Options) (*App, error) {
	generator, err := newGenerator(cfg)
	if err != nil {
		return nil, err
	}

	store, err := index.Open(cfg.Index.DBPath, cfg.Embedding.Dimension)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}

	embedder := index.NewHTTPEmbedder(index.EmbedderOptions{
		BaseURL:    cfg.Embedding.BaseURL,
		APIKey:     cfg.Embedding.APIKey,
		Model:      cfg.Embedding.Model,
		Dimension:  cfg.Embedding.Dimension,
		Timeout:    time.Duration(cfg.Embedding.TimeoutSeconds) * time.Second,
		MaxRetries: cfg.Embedding.MaxRetries,
	})

	var metrics *observability.Metrics
	if opts.WithMetrics {
		metrics = observability.NewMetrics("ragmate")
	}

	retriever := index.NewVectorRetriever(store, embedder, cfg.Retrieval.FetchK, cfg.Retrieval.MMRLambda)
	router := retrieval.NewRouter(retriever, cfg.Retrieval.KSummary, cfg.Retrieval.KGeneral)
	classifier := classify.New(generator)

	summarizer := engine.NewInstrumentedSummarizer(memory.NewGeneratorSummarizer(generator), metrics)
	sessions := memory.NewStore(cfg.Memory.MaxRecentTurns, summarizer)

	answerer := answer.NewGenerator(generator, cfg.Model.Backend,
		time.Duration(cfg.Engine.GenerateTimeoutSeconds)*time.Second)

	chunker := ingest.NewChunker(cfg.Index.ChunkSize, cfg.Index.ChunkOverlap)

	return &App{
		Engine:   engine.New(classifier, router, answerer, sessions, metrics),
		Pipeline: ingest.NewPipeline(store, embedder, chunker, cfg.Docs.Dir),
		Index:    store,
		Metrics:  metrics,
	}, nil
}

// Close releases the app's resources
func (a *App) Close() error {
	if a.Index != nil {
		return a.Index.Close()
	}
	return nil
}

func newGenerator(cfg *config.Config) (llm.Generator, error) {
	backend, err := llm.ParseBackend(cfg.Model.Backend)
	if err != nil {
		return nil, err
	}
	return llm.New(backend, llm.Options{
		BaseURL:     cfg.Model.BaseURL,
		APIKey:      cfg.Model.APIKey,
		Model:       cfg.Model.Model,
		Temperature: cfg.Model.Temperature,
		MaxTokens:   cfg.Model.MaxTokens,
	})
}
