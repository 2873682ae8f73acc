package answer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jwkim/ragmate/internal/llm"
	"github.com/jwkim/ragmate/internal/memory"
	"github.com/jwkim/ragmate/internal/retrieval"
)

func TestBuildPrompt(t *testing.T) {
	b := Bundle{
		RollingSummary: "사용자는 이직을 준비 중이다.",
		RecentTurns: []memory.Turn{
			{Role: memory.RoleUser, Content: "어떤 프로젝트를 했어?"},
			{Role: memory.RoleAssistant, Content: "검색 플랫폼이요."},
		},
		Passages: []retrieval.Passage{
			{Content: "검색 플랫폼 개발 리드", Source: "projects/search.md", Category: "projects"},
		},
		Question: "그 프로젝트에서 맡은 역할은?",
	}

	messages := BuildPrompt(b)

	// system, summary, two turns, final user message.
	if len(messages) != 5 {
		t.Fatalf("got %d messages, want 5", len(messages))
	}
	if messages[0].Role != "system" {
		t.Errorf("first message role = %s, want system", messages[0].Role)
	}
	if !strings.Contains(messages[1].Content, "사용자는 이직을 준비 중이다.") {
		t.Error("rolling summary missing from prompt")
	}
	if messages[2].Role != "user" || messages[3].Role != "assistant" {
		t.Errorf("turn roles = %s/%s, want user/assistant", messages[2].Role, messages[3].Role)
	}

	final := messages[4]
	if final.Role != "user" {
		t.Errorf("final role = %s, want user", final.Role)
	}
	for _, want := range []string{"projects/search.md", "검색 플랫폼 개발 리드", "질문: 그 프로젝트에서 맡은 역할은?"} {
		if !strings.Contains(final.Content, want) {
			t.Errorf("final message missing %q:\n%s", want, final.Content)
		}
	}
}

func TestBuildPromptWithoutContext(t *testing.T) {
	messages := BuildPrompt(Bundle{Question: "안녕"})
	if len(messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(messages))
	}
	if !strings.Contains(messages[1].Content, noContextMarker) {
		t.Error("prompt should state that no supporting passages were found")
	}
}

func TestBuildPromptDeterministic(t *testing.T) {
	b := Bundle{
		Passages: []retrieval.Passage{
			{Content: "a", Source: "s1", Category: "resume"},
			{Content: "b", Source: "s2", Category: "projects"},
		},
		Question: "q",
	}
	first := BuildPrompt(b)
	second := BuildPrompt(b)
	if len(first) != len(second) {
		t.Fatal("prompt length differs between identical bundles")
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("message %d differs between identical bundles", i)
		}
	}
}

type slowGen struct {
	delay time.Duration
	reply string
}

func (g *slowGen) Generate(ctx context.Context, _ []llm.Message) (string, error) {
	select {
	case <-time.After(g.delay):
		return g.reply, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func TestGeneratorAnswer(t *testing.T) {
	g := NewGenerator(&slowGen{reply: "  답변입니다  "}, "ollama", time.Second)
	got, err := g.Answer(context.Background(), Bundle{Question: "q"})
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if got != "답변입니다" {
		t.Errorf("Answer = %q, want trimmed reply", got)
	}
}

func TestGeneratorAnswerTimeout(t *testing.T) {
	g := NewGenerator(&slowGen{delay: time.Second, reply: "late"}, "ollama", 20*time.Millisecond)
	_, err := g.Answer(context.Background(), Bundle{Question: "q"})

	var genErr *llm.GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("err = %v, want *llm.GenerationError", err)
	}
	if genErr.Backend != "ollama" {
		t.Errorf("Backend = %q, want ollama", genErr.Backend)
	}
}

type emptyGen struct{}

func (emptyGen) Generate(context.Context, []llm.Message) (string, error) { return "   ", nil }

func TestGeneratorAnswerEmptyReply(t *testing.T) {
	g := NewGenerator(emptyGen{}, "claude", time.Second)
	_, err := g.Answer(context.Background(), Bundle{Question: "q"})
	var genErr *llm.GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("err = %v, want *llm.GenerationError on empty reply", err)
	}
}
