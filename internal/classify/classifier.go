// Package classify decides how a question should be answered: as a summary
// request over a known document category, or as a general retrieval question.
package classify

import (
	"context"
	"fmt"
	"strings"

	"github.com/jwkim/ragmate/internal/llm"
	"github.com/jwkim/ragmate/internal/logger"
)

// SummaryType names the document category a summary question targets
type SummaryType string

const (
	SummaryNone      SummaryType = "none"
	SummaryResume    SummaryType = "resume"
	SummaryProjects  SummaryType = "projects"
	SummaryWorkstyle SummaryType = "workstyle"
	SummaryAll       SummaryType = "all"
)

// Result is the routing decision for one question
type Result struct {
	IsSummaryQuery bool
	SummaryType    SummaryType
}

const isSummaryPrompt = `아래 질문이 특정 문서나 이력 전체의 "요약"을 요청하는 질문인지 판단해줘.
요약 요청이면 yes, 아니면 no 한 단어로만 답해.

질문: %s`

const summaryTypePrompt = `아래 요약 요청이 어떤 범주를 대상으로 하는지 판단해줘.
다음 중 하나의 단어로만 답해: resume, projects, workstyle, all

- resume: 경력, 학력, 이력서 관련
- projects: 수행한 프로젝트 관련
- workstyle: 업무 방식, 협업 스타일 관련
- all: 전체를 아우르는 요약

질문: %s`

// Classifier routes questions with two generator calls: a yes/no summary
// gate, then a category pick when the gate passes.
type Classifier struct {
	gen llm.Generator
}

// New creates a classifier backed by gen
func New(gen llm.Generator) *Classifier {
	return &Classifier{gen: gen}
}

// Classify never returns an error: any backend failure or unparseable reply
// degrades to the general retrieval route so a flaky model cannot take the
// whole pipeline down.
func (c *Classifier) Classify(ctx context.Context, question string) Result {
	if !c.isSummaryQuery(ctx, question) {
		return Result{IsSummaryQuery: false, SummaryType: SummaryNone}
	}
	return Result{IsSummaryQuery: true, SummaryType: c.summaryType(ctx, question)}
}

func (c *Classifier) isSummaryQuery(ctx context.Context, question string) bool {
	reply, err := c.gen.Generate(ctx, []llm.Message{
		{Role: "user", Content: fmt.Sprintf(isSummaryPrompt, question)},
	})
	if err != nil {
		logger.Warn("summary gate failed, falling back to general route: %v", err)
		return false
	}

	txt := strings.ToLower(strings.TrimSpace(reply))
	return strings.HasPrefix(txt, "y") || strings.Contains(txt, "예")
}

func (c *Classifier) summaryType(ctx context.Context, question string) SummaryType {
	reply, err := c.gen.Generate(ctx, []llm.Message{
		{Role: "user", Content: fmt.Sprintf(summaryTypePrompt, question)},
	})
	if err != nil {
		logger.Warn("summary type pick failed, treating as none: %v", err)
		return SummaryNone
	}

	txt := strings.ToLower(strings.TrimSpace(reply))
	switch SummaryType(txt) {
	case SummaryResume, SummaryProjects, SummaryWorkstyle, SummaryAll:
		return SummaryType(txt)
	}
	logger.Debug("ambiguous summary type reply %q, treating as none", reply)
	return SummaryNone
}
