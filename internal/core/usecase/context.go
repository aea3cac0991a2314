package usecase

import (
	"fmt"
	"strings"

	"github.com/achinchen/articles-assistant/internal/core/domain"
	"github.com/achinchen/articles-assistant/internal/core/ports"
)

// chunkTokenOverhead accounts for the citation header and separator around each chunk.
const chunkTokenOverhead = 50

const contextSeparator = "\n\n---\n\n"

type ContextBuilder struct {
	counter ports.TokenCounter
}

// NewContextBuilder accepts a nil counter; chunks then use their stored token counts as-is.
func NewContextBuilder(counter ports.TokenCounter) *ContextBuilder {
	return &ContextBuilder{counter: counter}
}

// Build accepts chunks in order until the next one would overflow cfg.MaxContextTokens.
// It never skips ahead to a smaller chunk.
func (b *ContextBuilder) Build(chunks []domain.RetrievedChunk, cfg domain.QueryConfig, locale domain.Locale) domain.QueryContext {
	if len(chunks) == 0 {
		return domain.QueryContext{Chunks: []domain.RetrievedChunk{}}
	}

	selected := make([]domain.RetrievedChunk, 0, len(chunks))
	total := 0
	for _, chunk := range chunks {
		cost := b.tokens(chunk) + chunkTokenOverhead
		if total+cost > cfg.MaxContextTokens {
			break
		}
		selected = append(selected, chunk)
		total += cost
	}

	label := articleLabel(locale)
	parts := make([]string, 0, len(selected))
	for i, chunk := range selected {
		parts = append(parts, fmt.Sprintf("[%d] %s: %s\n%s", i+1, label, chunk.ArticleTitle, chunk.Content))
	}

	return domain.QueryContext{
		Chunks:           selected,
		TotalTokens:      total,
		FormattedContext: strings.Join(parts, contextSeparator),
	}
}

func (b *ContextBuilder) tokens(chunk domain.RetrievedChunk) int {
	if chunk.TokenCount > 0 || b.counter == nil {
		return chunk.TokenCount
	}
	return b.counter.CountTokens(chunk.Content)
}
