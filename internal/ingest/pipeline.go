package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/jwkim/ragmate/internal/index"
	"github.com/jwkim/ragmate/internal/logger"
)

// knownCategories are the document categories summary routing understands.
// Files in any other subdirectory are indexed under that directory's name
// and reachable through unfiltered search.
var knownCategories = map[string]bool{
	"resume":    true,
	"projects":  true,
	"workstyle": true,
}

// Pipeline walks a documents directory and feeds the index
type Pipeline struct {
	store      *index.Store
	embedder   index.Embedder
	chunker    *Chunker
	extractors []Extractor
	docsDir    string
}

// NewPipeline creates an ingestion pipeline over docsDir
func NewPipeline(store *index.Store, embedder index.Embedder, chunker *Chunker, docsDir string) *Pipeline {
	return &Pipeline{
		store:      store,
		embedder:   embedder,
		chunker:    chunker,
		extractors: []Extractor{TextExtractor{}, PDFExtractor{}},
		docsDir:    docsDir,
	}
}

// Stats summarizes one ingestion run
type Stats struct {
	Files   int
	Chunks  int
	Skipped int
}

// Run ingests every supported file under the documents directory. With
// clean set, the index is emptied first so removed source files do not
// linger. A file's category is its top-level subdirectory name.
func (p *Pipeline) Run(ctx context.Context, clean bool) (Stats, error) {
	var stats Stats

	if clean {
		if err := p.store.DeleteAll(); err != nil {
			return stats, err
		}
		logger.Info("cleared index before ingestion")
	}

	err := filepath.WalkDir(p.docsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		extractor := extractorFor(p.extractors, path)
		if extractor == nil {
			stats.Skipped++
			return nil
		}

		n, err := p.ingestFile(ctx, extractor, path)
		if err != nil {
			// One bad file should not abort the whole run.
			logger.Warn("skipping %s: %v", path, err)
			stats.Skipped++
			return nil
		}
		stats.Files++
		stats.Chunks += n
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("failed to walk documents directory: %w", err)
	}

	logger.Info("ingestion done: %d files, %d chunks, %d skipped", stats.Files, stats.Chunks, stats.Skipped)
	return stats, nil
}

func (p *Pipeline) ingestFile(ctx context.Context, extractor Extractor, path string) (int, error) {
	text, err := extractor.Extract(path)
	if err != nil {
		return 0, err
	}

	pieces := p.chunker.Split(text)
	if len(pieces) == 0 {
		return 0, nil
	}

	vectors, err := p.embedder.Embed(ctx, pieces)
	if err != nil {
		return 0, fmt.Errorf("failed to embed chunks: %w", err)
	}

	rel, err := filepath.Rel(p.docsDir, path)
	if err != nil {
		rel = path
	}
	category := p.categoryOf(rel)

	chunks := make([]index.Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = index.Chunk{
			ID:       uuid.New().String(),
			Content:  piece,
			Source:   filepath.ToSlash(rel),
			Category: category,
			Vector:   vectors[i],
		}
	}
	if err := p.store.Add(chunks); err != nil {
		return 0, err
	}

	logger.Debug("ingested %s: %d chunks, category %s", rel, len(chunks), category)
	return len(chunks), nil
}

// categoryOf derives the category from the first path element under the
// documents directory. Files at the top level fall into "general".
func (p *Pipeline) categoryOf(rel string) string {
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 2 {
		return "general"
	}
	dir := strings.ToLower(parts[0])
	if !knownCategories[dir] {
		logger.Debug("directory %q is not a summary category, indexing as-is", dir)
	}
	return dir
}
