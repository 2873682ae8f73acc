// Package retrieval turns a routing decision into a concrete search request
// and runs it against a pluggable retriever.
package retrieval

import (
	"context"

	"github.com/jwkim/ragmate/internal/classify"
	"github.com/jwkim/ragmate/internal/logger"
)

// Passage is one retrieved chunk with its provenance
type Passage struct {
	Content  string
	Source   string
	Category string
	Score    float64
}

// Request describes one retrieval run
type Request struct {
	Query          string
	TopK           int
	CategoryFilter string // empty means no filter
	Diversify      bool   // apply MMR instead of plain top-k
}

// Retriever executes a retrieval request against some index
type Retriever interface {
	Retrieve(ctx context.Context, req Request) ([]Passage, error)
}

// Router builds requests from classification results. Summary questions get
// a category-filtered search, general questions a diversified one.
type Router struct {
	retriever Retriever
	kSummary  int
	kGeneral  int
}

// NewRouter creates a router with per-route result counts
func NewRouter(retriever Retriever, kSummary, kGeneral int) *Router {
	return &Router{retriever: retriever, kSummary: kSummary, kGeneral: kGeneral}
}

// Route maps a classification result to a retrieval request
func (r *Router) Route(question string, res classify.Result) Request {
	if res.IsSummaryQuery && res.SummaryType != classify.SummaryNone {
		// "all" survives into the request for logging; retrievers treat it
		// as matching every category.
		return Request{Query: question, TopK: r.kSummary, CategoryFilter: string(res.SummaryType)}
	}
	// General questions, and summary requests whose category could not be
	// resolved, take the diversified unfiltered path.
	return Request{Query: question, TopK: r.kGeneral, Diversify: true}
}

// Retrieve runs req and degrades retriever failures to an empty result so
// answering can continue without supporting passages.
func (r *Router) Retrieve(ctx context.Context, req Request) []Passage {
	passages, err := r.retriever.Retrieve(ctx, req)
	if err != nil {
		logger.Warn("retrieval failed for query %q, answering without context: %v", req.Query, err)
		return nil
	}
	return passages
}
