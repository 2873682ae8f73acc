// Package engine drives one question through the pipeline as an explicit
// state machine: classify the question, retrieve supporting passages,
// generate the answer, then fold the exchange into session memory.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/jwkim/ragmate/internal/answer"
	"github.com/jwkim/ragmate/internal/classify"
	"github.com/jwkim/ragmate/internal/logger"
	"github.com/jwkim/ragmate/internal/memory"
	"github.com/jwkim/ragmate/internal/observability"
	"github.com/jwkim/ragmate/internal/retrieval"
)

// Classifier decides the route for a question
type Classifier interface {
	Classify(ctx context.Context, question string) classify.Result
}

// Router builds and runs retrieval requests
type Router interface {
	Route(question string, res classify.Result) retrieval.Request
	Retrieve(ctx context.Context, req retrieval.Request) []retrieval.Passage
}

// Answerer generates the final reply from an assembled bundle
type Answerer interface {
	Answer(ctx context.Context, b answer.Bundle) (string, error)
}

type state int

const (
	stateClassify state = iota
	stateRetrieve
	stateGenerate
	stateUpdateMemory
	stateDone
	stateError
)

func (s state) String() string {
	switch s {
	case stateClassify:
		return "classify"
	case stateRetrieve:
		return "retrieve"
	case stateGenerate:
		return "generate"
	case stateUpdateMemory:
		return "update_memory"
	case stateDone:
		return "done"
	case stateError:
		return "error"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// run carries one question's intermediate results between states
type run struct {
	session  *memory.Session
	question string

	classification classify.Result
	passages       []retrieval.Passage
	answer         string
	err            error
}

type handler func(ctx context.Context, r *run) state

// Engine processes questions against per-session memory. Work within one
// session is serialized; distinct sessions proceed concurrently.
type Engine struct {
	classifier Classifier
	router     Router
	answerer   Answerer
	store      *memory.Store
	metrics    *observability.Metrics
	handlers   map[state]handler
}

// New creates an engine. metrics may be nil to disable instrumentation.
func New(classifier Classifier, router Router, answerer Answerer, store *memory.Store, metrics *observability.Metrics) *Engine {
	e := &Engine{
		classifier: classifier,
		router:     router,
		answerer:   answerer,
		store:      store,
		metrics:    metrics,
	}
	e.handlers = map[state]handler{
		stateClassify:     e.handleClassify,
		stateRetrieve:     e.handleRetrieve,
		stateGenerate:     e.handleGenerate,
		stateUpdateMemory: e.handleUpdateMemory,
	}
	return e
}

// Ask answers question within sessionID's conversation. It blocks while a
// previous question in the same session is still being processed, honoring
// ctx deadlines while waiting.
func (e *Engine) Ask(ctx context.Context, sessionID, question string) (string, error) {
	sess := e.store.GetOrCreate(sessionID)
	if e.metrics != nil {
		e.metrics.ActiveSessions.Set(float64(e.store.Len()))
	}

	if err := sess.Acquire(ctx); err != nil {
		return "", fmt.Errorf("session %s is busy: %w", sessionID, err)
	}
	defer sess.Release()

	start := time.Now()
	r := &run{session: sess, question: question}

	st := stateClassify
	for st != stateDone && st != stateError {
		next := e.handlers[st](ctx, r)
		logger.Debug("session %s: %s -> %s", sessionID, st, next)
		st = next
	}

	if e.metrics != nil {
		e.metrics.AnswerLatency.Observe(time.Since(start).Seconds())
		e.metrics.QuestionsTotal.WithLabelValues(routeLabel(r.classification), outcomeLabel(st)).Inc()
	}

	if st == stateError {
		return "", r.err
	}
	return r.answer, nil
}

func (e *Engine) handleClassify(ctx context.Context, r *run) state {
	r.classification = e.classifier.Classify(ctx, r.question)
	return stateRetrieve
}

func (e *Engine) handleRetrieve(ctx context.Context, r *run) state {
	req := e.router.Route(r.question, r.classification)
	r.passages = e.router.Retrieve(ctx, req)
	if e.metrics != nil {
		e.metrics.RetrievedPassages.Observe(float64(len(r.passages)))
	}
	return stateGenerate
}

func (e *Engine) handleGenerate(ctx context.Context, r *run) state {
	summary, turns := r.session.Memory.Context()
	text, err := e.answerer.Answer(ctx, answer.Bundle{
		RollingSummary: summary,
		RecentTurns:    turns,
		Passages:       r.passages,
		Question:       r.question,
	})
	if err != nil {
		// Failed exchanges never reach memory, so a retry of the same
		// question starts from identical context.
		r.err = err
		return stateError
	}
	r.answer = text
	return stateUpdateMemory
}

func (e *Engine) handleUpdateMemory(ctx context.Context, r *run) state {
	r.session.Memory.Append(ctx, memory.NewTurn(memory.RoleUser, r.question))
	r.session.Memory.Append(ctx, memory.NewTurn(memory.RoleAssistant, r.answer))
	return stateDone
}

// ResetSession clears one session's memory, waiting for any in-flight
// question in that session to finish first. Unknown IDs are a no-op.
func (e *Engine) ResetSession(ctx context.Context, sessionID string) error {
	sess, ok := e.store.Get(sessionID)
	if !ok {
		return nil
	}
	if err := sess.Acquire(ctx); err != nil {
		return fmt.Errorf("session %s is busy: %w", sessionID, err)
	}
	defer sess.Release()

	sess.Memory.Reset()
	logger.Info("session %s memory reset", sessionID)
	return nil
}

// ResetAllSessions clears every session's memory, one session at a time
func (e *Engine) ResetAllSessions(ctx context.Context) error {
	for _, sess := range e.store.Sessions() {
		if err := sess.Acquire(ctx); err != nil {
			return fmt.Errorf("session %s is busy: %w", sess.ID, err)
		}
		sess.Memory.Reset()
		sess.Release()
	}
	logger.Info("all session memories reset")
	return nil
}

func routeLabel(res classify.Result) string {
	if res.IsSummaryQuery {
		return "summary"
	}
	return "general"
}

func outcomeLabel(st state) string {
	if st == stateError {
		return "error"
	}
	return "ok"
}
