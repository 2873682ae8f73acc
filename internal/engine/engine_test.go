package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jwkim/ragmate/internal/answer"
	"github.com/jwkim/ragmate/internal/classify"
	"github.com/jwkim/ragmate/internal/memory"
	"github.com/jwkim/ragmate/internal/retrieval"
)

type fakeClassifier struct {
	result classify.Result
}

func (f *fakeClassifier) Classify(context.Context, string) classify.Result { return f.result }

type fakeRouter struct {
	passages []retrieval.Passage
	lastReq  retrieval.Request
}

func (f *fakeRouter) Route(question string, res classify.Result) retrieval.Request {
	if res.IsSummaryQuery {
		return retrieval.Request{Query: question, TopK: 3, CategoryFilter: string(res.SummaryType)}
	}
	return retrieval.Request{Query: question, TopK: 3, Diversify: true}
}

func (f *fakeRouter) Retrieve(_ context.Context, req retrieval.Request) []retrieval.Passage {
	f.lastReq = req
	return f.passages
}

type fakeAnswerer struct {
	mu      sync.Mutex
	err     error
	delay   time.Duration
	calls   int
	bundles []answer.Bundle
}

func (f *fakeAnswerer) Answer(ctx context.Context, b answer.Bundle) (string, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.bundles = append(f.bundles, b)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("answer-%d", n), nil
}

type fakeSummarizer struct{}

func (fakeSummarizer) Summarize(_ context.Context, _ string, retiring []memory.Turn) (string, error) {
	return fmt.Sprintf("summary of %d turns", len(retiring)), nil
}

func newTestEngine(ans *fakeAnswerer, res classify.Result, passages []retrieval.Passage) (*Engine, *memory.Store, *fakeRouter) {
	store := memory.NewStore(4, fakeSummarizer{})
	router := &fakeRouter{passages: passages}
	e := New(&fakeClassifier{result: res}, router, ans, store, nil)
	return e, store, router
}

func TestAskHappyPath(t *testing.T) {
	ans := &fakeAnswerer{}
	passages := []retrieval.Passage{{Content: "검색 플랫폼", Source: "projects/p.md", Category: "projects"}}
	e, store, router := newTestEngine(ans, classify.Result{IsSummaryQuery: true, SummaryType: classify.SummaryProjects}, passages)

	got, err := e.Ask(context.Background(), "s1", "프로젝트 요약해줘")
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if got != "answer-1" {
		t.Errorf("Ask = %q, want answer-1", got)
	}
	if router.lastReq.CategoryFilter != "projects" {
		t.Errorf("retrieval filter = %q, want projects", router.lastReq.CategoryFilter)
	}
	if len(ans.bundles) != 1 || len(ans.bundles[0].Passages) != 1 {
		t.Fatalf("answerer bundle = %+v, want the routed passages", ans.bundles)
	}

	// Both sides of the exchange land in memory.
	sess, _ := store.Get("s1")
	_, turns := sess.Memory.Context()
	if len(turns) != 2 {
		t.Fatalf("memory holds %d turns, want 2", len(turns))
	}
	if turns[0].Role != memory.RoleUser || turns[1].Role != memory.RoleAssistant {
		t.Errorf("turn roles = %s/%s, want user/assistant", turns[0].Role, turns[1].Role)
	}
}

func TestAskGenerationFailureSkipsMemory(t *testing.T) {
	ans := &fakeAnswerer{err: errors.New("backend down")}
	e, store, _ := newTestEngine(ans, classify.Result{}, nil)

	if _, err := e.Ask(context.Background(), "s1", "질문"); err == nil {
		t.Fatal("Ask should surface the generation error")
	}

	sess, _ := store.Get("s1")
	if _, turns := sess.Memory.Context(); len(turns) != 0 {
		t.Errorf("memory holds %d turns after failed generation, want 0", len(turns))
	}

	// A retry after recovery starts from untouched context.
	ans.err = nil
	if _, err := e.Ask(context.Background(), "s1", "질문"); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if len(ans.bundles) != 2 {
		t.Fatal("expected two generation attempts")
	}
	if len(ans.bundles[1].RecentTurns) != 0 {
		t.Error("retry saw leftover turns from the failed attempt")
	}
}

func TestAskSerializesWithinSession(t *testing.T) {
	ans := &fakeAnswerer{delay: 30 * time.Millisecond}
	e, _, _ := newTestEngine(ans, classify.Result{}, nil)

	var mu sync.Mutex
	var order []string
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := e.Ask(context.Background(), "same", fmt.Sprintf("q%d", i))
			if err != nil {
				t.Errorf("Ask failed: %v", err)
				return
			}
			mu.Lock()
			order = append(order, got)
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	// Serialized execution means each attempt saw a strictly growing turn log.
	seen := map[int]bool{}
	for _, b := range ans.bundles {
		n := len(b.RecentTurns)
		if n%2 != 0 {
			t.Errorf("generation observed %d turns, want an even count", n)
		}
		if seen[n] {
			t.Errorf("two generations observed the same %d-turn context, session not serialized", n)
		}
		seen[n] = true
	}
	if len(order) != 4 {
		t.Errorf("completed %d questions, want 4", len(order))
	}
}

func TestAskSessionsRunIndependently(t *testing.T) {
	ans := &fakeAnswerer{}
	e, store, _ := newTestEngine(ans, classify.Result{}, nil)
	ctx := context.Background()

	if _, err := e.Ask(ctx, "a", "q"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Ask(ctx, "b", "q"); err != nil {
		t.Fatal(err)
	}

	sa, _ := store.Get("a")
	sb, _ := store.Get("b")
	if _, turns := sa.Memory.Context(); len(turns) != 2 {
		t.Errorf("session a holds %d turns, want 2", len(turns))
	}
	if _, turns := sb.Memory.Context(); len(turns) != 2 {
		t.Errorf("session b holds %d turns, want 2", len(turns))
	}
}

func TestAskHonorsContextWhileWaiting(t *testing.T) {
	ans := &fakeAnswerer{delay: 200 * time.Millisecond}
	e, _, _ := newTestEngine(ans, classify.Result{}, nil)

	started := make(chan struct{})
	go func() {
		close(started)
		e.Ask(context.Background(), "s", "slow")
	}()
	<-started
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, err := e.Ask(ctx, "s", "queued"); err == nil {
		t.Error("queued Ask should fail once its context expires")
	}
}

func TestResetSession(t *testing.T) {
	ans := &fakeAnswerer{}
	e, store, _ := newTestEngine(ans, classify.Result{}, nil)
	ctx := context.Background()

	if _, err := e.Ask(ctx, "s", "q"); err != nil {
		t.Fatal(err)
	}
	if err := e.ResetSession(ctx, "s"); err != nil {
		t.Fatalf("ResetSession failed: %v", err)
	}
	sess, _ := store.Get("s")
	if sess.Memory.Len() != 0 {
		t.Error("memory not cleared")
	}

	// Unknown sessions are a no-op.
	if err := e.ResetSession(ctx, "missing"); err != nil {
		t.Errorf("ResetSession on unknown id = %v, want nil", err)
	}
}

func TestResetAllSessions(t *testing.T) {
	ans := &fakeAnswerer{}
	e, store, _ := newTestEngine(ans, classify.Result{}, nil)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if _, err := e.Ask(ctx, id, "q"); err != nil {
			t.Fatal(err)
		}
	}
	if err := e.ResetAllSessions(ctx); err != nil {
		t.Fatalf("ResetAllSessions failed: %v", err)
	}
	for _, sess := range store.Sessions() {
		if sess.Memory.Len() != 0 {
			t.Errorf("session %s not cleared", sess.ID)
		}
	}
}
