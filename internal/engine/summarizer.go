package engine

import (
	"context"

	"github.com/jwkim/ragmate/internal/memory"
	"github.com/jwkim/ragmate/internal/observability"
)

// InstrumentedSummarizer counts compaction outcomes around an inner
// summarizer. One Summarize call corresponds to one compaction attempt.
type InstrumentedSummarizer struct {
	inner   memory.Summarizer
	metrics *observability.Metrics
}

// NewInstrumentedSummarizer wraps inner; with nil metrics it passes through
func NewInstrumentedSummarizer(inner memory.Summarizer, metrics *observability.Metrics) *InstrumentedSummarizer {
	return &InstrumentedSummarizer{inner: inner, metrics: metrics}
}

func (s *InstrumentedSummarizer) Summarize(ctx context.Context, previous string, retiring []memory.Turn) (string, error) {
	summary, err := s.inner.Summarize(ctx, previous, retiring)
	if s.metrics != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		s.metrics.CompactionsTotal.WithLabelValues(outcome).Inc()
	}
	return summary, err
}
