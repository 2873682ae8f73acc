package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jwkim/ragmate/internal/llm"
)

type fakeSummarizer struct {
	calls    int
	err      error
	previous string
	retired  []Turn
}

func (f *fakeSummarizer) Summarize(_ context.Context, previous string, retiring []Turn) (string, error) {
	f.calls++
	f.previous = previous
	f.retired = append([]Turn(nil), retiring...)
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("summary#%d of %d turns", f.calls, len(retiring)), nil
}

func TestConversationStaysWithinBound(t *testing.T) {
	fake := &fakeSummarizer{}
	conv := NewConversation(4, fake)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		conv.Append(ctx, NewTurn(RoleUser, fmt.Sprintf("q%d", i)))
		conv.Append(ctx, NewTurn(RoleAssistant, fmt.Sprintf("a%d", i)))
		if conv.Len() > 8 {
			t.Fatalf("after %d pairs: %d turns held, want at most 8", i+1, conv.Len())
		}
	}
	if fake.calls == 0 {
		t.Error("expected at least one compaction")
	}
}

func TestConversationCompaction(t *testing.T) {
	fake := &fakeSummarizer{}
	conv := NewConversation(3, fake)
	ctx := context.Background()

	for i := 0; i < 14; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		conv.Append(ctx, NewTurn(role, fmt.Sprintf("turn%d", i)))
	}

	summary, turns := conv.Context()
	if len(turns) != 6 {
		t.Fatalf("held turns = %d, want 6", len(turns))
	}
	if summary == "" {
		t.Error("rolling summary should be non-empty after compaction")
	}
	// The most recent six turns survive in order.
	for i, tn := range turns {
		want := fmt.Sprintf("turn%d", 8+i)
		if tn.Content != want {
			t.Errorf("turns[%d].Content = %q, want %q", i, tn.Content, want)
		}
	}
}

func TestConversationFoldsPreviousSummary(t *testing.T) {
	fake := &fakeSummarizer{}
	conv := NewConversation(1, fake)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		conv.Append(ctx, NewTurn(RoleUser, fmt.Sprintf("t%d", i)))
	}
	if fake.calls < 2 {
		t.Fatalf("calls = %d, want at least 2", fake.calls)
	}
	if !strings.HasPrefix(fake.previous, "summary#") {
		t.Errorf("second compaction should receive prior summary, got %q", fake.previous)
	}
}

func TestConversationCompactionFailureLeavesStateUnchanged(t *testing.T) {
	fake := &fakeSummarizer{err: errors.New("backend down")}
	conv := NewConversation(2, fake)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		conv.Append(ctx, NewTurn(RoleUser, fmt.Sprintf("t%d", i)))
	}

	summary, turns := conv.Context()
	if summary != "" {
		t.Errorf("summary = %q, want empty after failed compaction", summary)
	}
	// All five turns must survive intact even though the bound is four.
	if len(turns) != 5 {
		t.Fatalf("held turns = %d, want 5", len(turns))
	}
	for i, tn := range turns {
		if want := fmt.Sprintf("t%d", i); tn.Content != want {
			t.Errorf("turns[%d].Content = %q, want %q", i, tn.Content, want)
		}
	}

	// Recovery on the next overflow once the summarizer works again.
	fake.err = nil
	conv.Append(ctx, NewTurn(RoleUser, "t5"))
	summary, turns = conv.Context()
	if summary == "" {
		t.Error("summary should be set after recovered compaction")
	}
	if len(turns) != 4 {
		t.Errorf("held turns = %d, want 4 after recovery", len(turns))
	}
}

func TestConversationReset(t *testing.T) {
	conv := NewConversation(2, &fakeSummarizer{})
	ctx := context.Background()
	for i := 0; i < 7; i++ {
		conv.Append(ctx, NewTurn(RoleUser, "x"))
	}

	conv.Reset()
	summary, turns := conv.Context()
	if summary != "" || len(turns) != 0 {
		t.Errorf("after reset: summary=%q turns=%d, want empty", summary, len(turns))
	}

	// Reset is idempotent.
	conv.Reset()
	if conv.Len() != 0 {
		t.Error("second reset should leave the conversation empty")
	}
}

type scriptedGen struct {
	reply string
	err   error
	got   []llm.Message
}

func (g *scriptedGen) Generate(_ context.Context, messages []llm.Message) (string, error) {
	g.got = messages
	return g.reply, g.err
}

func TestGeneratorSummarizer(t *testing.T) {
	gen := &scriptedGen{reply: "  사용자는 이직을 준비 중이다.  "}
	s := NewGeneratorSummarizer(gen)

	out, err := s.Summarize(context.Background(), "이전 요약 본문", []Turn{
		{Role: RoleUser, Content: "요즘 뭐하세요"},
		{Role: RoleAssistant, Content: "이직 준비요"},
	})
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if out != "사용자는 이직을 준비 중이다." {
		t.Errorf("summary = %q, want trimmed reply", out)
	}
	if len(gen.got) != 2 {
		t.Fatalf("messages = %d, want system+user", len(gen.got))
	}
	body := gen.got[1].Content
	for _, want := range []string{"이전 요약 본문", "user: 요즘 뭐하세요", "assistant: 이직 준비요"} {
		if !strings.Contains(body, want) {
			t.Errorf("prompt missing %q:\n%s", want, body)
		}
	}
}

func TestGeneratorSummarizerEmptyReply(t *testing.T) {
	s := NewGeneratorSummarizer(&scriptedGen{reply: "   "})
	if _, err := s.Summarize(context.Background(), "", []Turn{{Role: RoleUser, Content: "x"}}); err == nil {
		t.Error("expected error on blank summarizer output")
	}
}
