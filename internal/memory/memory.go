// Package memory holds per-session conversation state: an ordered turn log
// plus a rolling summary that old turns are folded into so context never
// grows unbounded.
package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jwkim/ragmate/internal/llm"
	"github.com/jwkim/ragmate/internal/logger"
)

// Role identifies the author of a turn
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one role-tagged message in a conversation. Immutable once created.
type Turn struct {
	Role      Role
	Content   string
	CreatedAt time.Time
}

// NewTurn creates a turn stamped with the current time
func NewTurn(role Role, content string) Turn {
	return Turn{Role: role, Content: content, CreatedAt: time.Now()}
}

// Summarizer folds retired turns and the previous summary into a new summary
type Summarizer interface {
	Summarize(ctx context.Context, previous string, retiring []Turn) (string, error)
}

// Conversation is the memory of a single session: recent turns in full plus
// a rolling summary of everything older. Instances are not internally
// synchronized; the owning store serializes access per session.
type Conversation struct {
	maxRecentTurns int
	summarizer     Summarizer

	turns   []Turn
	summary string
}

// NewConversation creates a conversation keeping maxRecentTurns user/assistant
// pairs (maxRecentTurns*2 individual turns) after each compaction.
func NewConversation(maxRecentTurns int, summarizer Summarizer) *Conversation {
	if maxRecentTurns <= 0 {
		maxRecentTurns = 1
	}
	return &Conversation{
		maxRecentTurns: maxRecentTurns,
		summarizer:     summarizer,
	}
}

// Append adds a turn to the end of the log and compacts when the log has
// outgrown maxRecentTurns*2 turns. Compaction failure never surfaces here:
// the log is left intact, a warning is recorded, and the next overflowing
// append retries.
func (c *Conversation) Append(ctx context.Context, turn Turn) {
	c.turns = append(c.turns, turn)
	c.maybeCompact(ctx)
}

func (c *Conversation) maybeCompact(ctx context.Context) {
	keep := c.maxRecentTurns * 2
	if len(c.turns) <= keep {
		return
	}

	retiring := c.turns[:len(c.turns)-keep]
	recent := c.turns[len(c.turns)-keep:]

	if c.summarizer == nil {
		// No summarizer wired (e.g. retrieval-only setups): drop the prefix
		// outright so the bound still holds.
		c.turns = append([]Turn(nil), recent...)
		return
	}

	summary, err := c.summarizer.Summarize(ctx, c.summary, retiring)
	if err != nil {
		logger.Warn("conversation compaction failed, keeping %d turns uncompacted: %v", len(c.turns), err)
		return
	}

	c.summary = summary
	c.turns = append([]Turn(nil), recent...)
	logger.Debug("conversation compacted: retired %d turns, summary length %d", len(retiring), len(summary))
}

// Context returns a read-only snapshot of the rolling summary and the turns
func (c *Conversation) Context() (string, []Turn) {
	turns := make([]Turn, len(c.turns))
	copy(turns, c.turns)
	return c.summary, turns
}

// Len returns the number of turns currently held in full
func (c *Conversation) Len() int {
	return len(c.turns)
}

// Reset clears the turn log and the rolling summary
func (c *Conversation) Reset() {
	c.turns = nil
	c.summary = ""
}

const summaryInstruction = `다음은 사용자와 AI 비서 간 대화의 이전 요약과 이어진 대화입니다.
이전 요약과 새 대화 내용을 통합하여 하나의 간결한 요약으로 다시 작성해줘.
요약 외의 다른 말은 출력하지 마.`

// GeneratorSummarizer implements Summarizer with a single Generator call
type GeneratorSummarizer struct {
	gen llm.Generator
}

// NewGeneratorSummarizer creates a generator-backed summarizer
func NewGeneratorSummarizer(gen llm.Generator) *GeneratorSummarizer {
	return &GeneratorSummarizer{gen: gen}
}

// Summarize renders the previous summary and the retiring turns into the
// fixed summarization instruction and invokes the generator once.
func (s *GeneratorSummarizer) Summarize(ctx context.Context, previous string, retiring []Turn) (string, error) {
	var b strings.Builder
	b.WriteString("이전 요약:\n")
	if strings.TrimSpace(previous) == "" {
		b.WriteString("(없음)\n")
	} else {
		b.WriteString(previous)
		b.WriteString("\n")
	}
	b.WriteString("\n이어진 대화:\n")
	b.WriteString(formatTurns(retiring))

	text, err := s.gen.Generate(ctx, []llm.Message{
		{Role: "system", Content: summaryInstruction},
		{Role: "user", Content: b.String()},
	})
	if err != nil {
		return "", fmt.Errorf("failed to summarize retired turns: %w", err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("summarizer returned empty text")
	}
	return text, nil
}

// formatTurns renders turns as role-tagged lines
func formatTurns(turns []Turn) string {
	var b strings.Builder
	for _, t := range turns {
		b.WriteString(string(t.Role))
		b.WriteString(": ")
		b.WriteString(t.Content)
		b.WriteString("\n")
	}
	return b.String()
}
