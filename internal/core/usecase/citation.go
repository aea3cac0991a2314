package usecase

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/achinchen/articles-assistant/internal/core/domain"
)

var citationPattern = regexp.MustCompile(`\[(\d+)\]`)

// unparsableCitation stands in for a marker whose number overflows int.
const unparsableCitation = -1

// BuildSources keeps the best chunk per article and numbers the articles by descending similarity.
func BuildSources(chunks []domain.RetrievedChunk, articleBaseURL string) []domain.Source {
	best := make(map[string]domain.RetrievedChunk, len(chunks))
	order := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		current, ok := best[chunk.ArticleSlug]
		if !ok {
			order = append(order, chunk.ArticleSlug)
			best[chunk.ArticleSlug] = chunk
			continue
		}
		if chunk.Similarity > current.Similarity {
			best[chunk.ArticleSlug] = chunk
		}
	}

	sources := make([]domain.Source, 0, len(order))
	for _, slug := range order {
		chunk := best[slug]
		sources = append(sources, domain.Source{
			ArticleSlug:  chunk.ArticleSlug,
			ArticleTitle: chunk.ArticleTitle,
			ChunkContent: chunk.Content,
			Similarity:   chunk.Similarity,
			Locale:       chunk.Locale,
			URL:          articleBaseURL + chunk.ArticleSlug,
		})
	}

	sort.SliceStable(sources, func(i, j int) bool {
		return sources[i].Similarity > sources[j].Similarity
	})
	for i := range sources {
		sources[i].ID = i + 1
	}
	return sources
}

// ExtractCitations returns the distinct [N] markers in answer, ascending.
// A marker too large to parse is reported as -1.
func ExtractCitations(answer string) []int {
	matches := citationPattern.FindAllStringSubmatch(answer, -1)
	seen := make(map[int]struct{}, len(matches))
	out := make([]int, 0, len(matches))
	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			n = unparsableCitation
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// ValidateCitations reports whether every citation points at an existing source.
// It returns the offending citations when it does not.
func ValidateCitations(answer string, sources []domain.Source) (bool, []int) {
	var invalid []int
	for _, c := range ExtractCitations(answer) {
		if c < 1 || c > len(sources) {
			invalid = append(invalid, c)
		}
	}
	return len(invalid) == 0, invalid
}

// FormatSourcesForDisplay renders a plain-text sources footer.
func FormatSourcesForDisplay(sources []domain.Source, locale domain.Locale) string {
	if len(sources) == 0 {
		return ""
	}

	header, similarity := "\n📚 Sources:", "similarity"
	if locale == domain.LocaleChinese {
		header, similarity = "\n📚 參考來源：", "相似度"
	}

	lines := make([]string, 0, len(sources)+1)
	lines = append(lines, header)
	for _, s := range sources {
		lines = append(lines, fmt.Sprintf("[%d] %s (%s: %.3f)", s.ID, s.ArticleTitle, similarity, s.Similarity))
	}
	return strings.Join(lines, "\n")
}
