// Package answer assembles the final generation prompt from conversation
// memory and retrieved passages, and runs it with a deadline.
package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jwkim/ragmate/internal/llm"
	"github.com/jwkim/ragmate/internal/memory"
	"github.com/jwkim/ragmate/internal/retrieval"
)

const systemInstructions = `너는 김지원의 경력과 프로젝트를 잘 아는 개인 비서야.
제공된 참고 자료와 대화 맥락을 근거로 정확하게 답변해.
참고 자료에 없는 내용은 지어내지 말고 모른다고 말해.
답변은 한국어로, 간결하게 작성해.`

const noContextMarker = "(관련 참고 자료를 찾지 못했습니다)"

// Bundle is everything the generator sees for one question
type Bundle struct {
	RollingSummary string
	RecentTurns    []memory.Turn
	Passages       []retrieval.Passage
	Question       string
}

// BuildPrompt renders a bundle into the message list sent to the model.
// The layout is deterministic: system instructions, rolling summary,
// recent turns as real chat messages, then passages and the question.
func BuildPrompt(b Bundle) []llm.Message {
	messages := []llm.Message{{Role: "system", Content: systemInstructions}}

	if strings.TrimSpace(b.RollingSummary) != "" {
		messages = append(messages, llm.Message{
			Role:    "system",
			Content: "지금까지의 대화 요약:\n" + b.RollingSummary,
		})
	}

	for _, t := range b.RecentTurns {
		messages = append(messages, llm.Message{Role: string(t.Role), Content: t.Content})
	}

	var u strings.Builder
	u.WriteString("참고 자료:\n")
	if len(b.Passages) == 0 {
		u.WriteString(noContextMarker)
		u.WriteString("\n")
	} else {
		for i, p := range b.Passages {
			fmt.Fprintf(&u, "[%d] (%s, %s)\n%s\n", i+1, p.Source, p.Category, p.Content)
		}
	}
	u.WriteString("\n질문: ")
	u.WriteString(b.Question)

	return append(messages, llm.Message{Role: "user", Content: u.String()})
}

// Generator runs assembled prompts against an llm backend with a timeout
type Generator struct {
	gen     llm.Generator
	backend string
	timeout time.Duration
}

// NewGenerator creates an answer generator. The backend label only feeds
// error reporting.
func NewGenerator(gen llm.Generator, backend string, timeout time.Duration) *Generator {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Generator{gen: gen, backend: backend, timeout: timeout}
}

// Answer generates the reply for b. Deadline overruns and backend failures
// both come back as a GenerationError.
func (g *Generator) Answer(ctx context.Context, b Bundle) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	text, err := g.gen.Generate(ctx, BuildPrompt(b))
	if err != nil {
		var genErr *llm.GenerationError
		if errors.As(err, &genErr) {
			return "", err
		}
		return "", &llm.GenerationError{Backend: g.backend, Err: err}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", &llm.GenerationError{Backend: g.backend, Err: fmt.Errorf("model returned empty answer")}
	}
	return text, nil
}
