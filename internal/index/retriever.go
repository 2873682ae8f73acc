package index

import (
	"context"
	"fmt"

	"github.com/jwkim/ragmate/internal/retrieval"
)

// VectorRetriever adapts the chunk store and an embedder to the retrieval
// interface the router consumes.
type VectorRetriever struct {
	store    *Store
	embedder Embedder
	fetchK   int
	lambda   float64
}

// NewVectorRetriever creates a retriever; fetchK and lambda tune the MMR
// pass used for diversified requests.
func NewVectorRetriever(store *Store, embedder Embedder, fetchK int, lambda float64) *VectorRetriever {
	return &VectorRetriever{store: store, embedder: embedder, fetchK: fetchK, lambda: lambda}
}

// Retrieve embeds the query and searches the store, diversifying with MMR
// when the request asks for it.
func (r *VectorRetriever) Retrieve(ctx context.Context, req retrieval.Request) ([]retrieval.Passage, error) {
	vectors, err := r.embedder.Embed(ctx, []string{req.Query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("expected one query vector, got %d", len(vectors))
	}

	category := req.CategoryFilter
	if category == "all" {
		// "all" spans every category, same as no filter.
		category = ""
	}

	var results []Result
	if req.Diversify {
		results, err = r.store.SearchMMR(vectors[0], req.TopK, r.fetchK, r.lambda)
	} else {
		results, err = r.store.Search(vectors[0], req.TopK, category)
	}
	if err != nil {
		return nil, err
	}

	passages := make([]retrieval.Passage, len(results))
	for i, res := range results {
		passages[i] = retrieval.Passage{
			Content:  res.Chunk.Content,
			Source:   res.Chunk.Source,
			Category: res.Chunk.Category,
			Score:    res.Score,
		}
	}
	return passages, nil
}
