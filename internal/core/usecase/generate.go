package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/achinchen/articles-assistant/internal/core/domain"
	"github.com/achinchen/articles-assistant/internal/core/ports"
)

var errNoAnswer = errors.New("no answer generated")

type AnswerGenerator struct {
	completer ports.Completer
	counter   ports.TokenCounter
}

func NewAnswerGenerator(completer ports.Completer, counter ports.TokenCounter) *AnswerGenerator {
	return &AnswerGenerator{completer: completer, counter: counter}
}

// Generate asks the model for a cited answer grounded on qctx.
func (g *AnswerGenerator) Generate(ctx context.Context, query string, qctx domain.QueryContext, cfg domain.QueryConfig) (domain.GeneratedAnswer, error) {
	const op = "generate answer"

	userPrompt := buildAnswerUserPrompt(query, qctx.FormattedContext)
	completion, err := g.completer.Complete(ctx, domain.CompletionRequest{
		SystemPrompt: answerSystemPrompt,
		UserPrompt:   userPrompt,
		Model:        cfg.Model,
		Temperature:  cfg.Temperature,
		MaxTokens:    cfg.MaxResponseTokens,
	})
	if err != nil {
		return domain.GeneratedAnswer{}, domain.WrapError(domain.ErrGeneration, op, err)
	}

	answer := strings.TrimSpace(completion.Text)
	if answer == "" {
		return domain.GeneratedAnswer{}, domain.WrapError(domain.ErrGeneration, op, errNoAnswer)
	}

	usage := domain.TokenUsage{
		Context:    qctx.TotalTokens,
		Prompt:     completion.PromptTokens,
		Completion: completion.CompletionTokens,
		Total:      completion.TotalTokens,
	}
	if usage.Total == 0 && g.counter != nil {
		usage.Prompt = g.counter.CountTokens(answerSystemPrompt) + g.counter.CountTokens(userPrompt)
		usage.Completion = g.counter.CountTokens(answer)
	}
	if usage.Total == 0 {
		usage.Total = usage.Prompt + usage.Completion
	}

	return domain.GeneratedAnswer{Answer: answer, TokensUsed: usage}, nil
}
