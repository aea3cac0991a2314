package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/achinchen/articles-assistant/internal/core/domain"
	"github.com/achinchen/articles-assistant/internal/core/ports"
)

const (
	maxEnhanceWords       = 3
	defaultEnhanceConf    = 0.5
	freeformEnhanceConf   = 0.3
	applyEnhancementAbove = 0.5
	maxSearchVariations   = 5
)

type QueryEnhancer struct {
	completer ports.Completer

	mu  sync.RWMutex
	cfg domain.EnhancementConfig
}

func NewQueryEnhancer(completer ports.Completer, cfg domain.EnhancementConfig) *QueryEnhancer {
	return &QueryEnhancer{completer: completer, cfg: cfg}
}

// ShouldEnhance reports whether a query is short enough to benefit from rewriting.
func (e *QueryEnhancer) ShouldEnhance(query string) bool {
	cfg := e.Config()
	if !cfg.Enabled {
		return false
	}
	trimmed := strings.TrimSpace(query)
	length := runeLen(trimmed)
	if length < cfg.MinQueryLength || length > cfg.MaxQueryLength {
		return false
	}
	return len(strings.Fields(trimmed)) <= maxEnhanceWords
}

// Enhance asks the model to expand a query. It never fails: on error the original query
// comes back with zero confidence.
func (e *QueryEnhancer) Enhance(ctx context.Context, query string) domain.QueryEnhancement {
	cfg := e.Config()
	locale := domain.DetectLocale(query)

	completion, err := e.completer.Complete(ctx, domain.CompletionRequest{
		SystemPrompt: enhancementSystemPrompt(locale),
		UserPrompt:   enhancementUserPrompt(query, locale),
		Model:        cfg.Model,
		Temperature:  cfg.Temperature,
		MaxTokens:    cfg.MaxTokens,
	})
	if err == nil && strings.TrimSpace(completion.Text) == "" {
		err = fmt.Errorf("empty enhancement completion")
	}
	if err != nil {
		slog.Warn("query_enhancement_failed", "query", query, "error", err)
		return identityEnhancement(query)
	}

	return parseEnhancement(completion.Text).collapse(query)
}

func (e *QueryEnhancer) Config() domain.EnhancementConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

func (e *QueryEnhancer) UpdateConfig(cfg domain.EnhancementConfig) error {
	if cfg.MinQueryLength < 0 || cfg.MaxQueryLength < cfg.MinQueryLength {
		return domain.WrapError(domain.ErrInvalidInput, "update enhancement config",
			fmt.Errorf("query length bounds must satisfy 0 <= min (%d) <= max (%d)", cfg.MinQueryLength, cfg.MaxQueryLength))
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg = cfg
	return nil
}

// enhancementResult is either a structured JSON answer or free text from the model.
type enhancementResult interface {
	collapse(original string) domain.QueryEnhancement
}

type structuredEnhancement struct {
	EnhancedQuery string
	Expansions    []string
	Synonyms      []string
	RelatedTerms  []string
	Confidence    *float64
}

func (s structuredEnhancement) collapse(original string) domain.QueryEnhancement {
	out := domain.QueryEnhancement{
		OriginalQuery: original,
		EnhancedQuery: s.EnhancedQuery,
		Expansions:    nonNil(s.Expansions),
		Synonyms:      nonNil(s.Synonyms),
		RelatedTerms:  nonNil(s.RelatedTerms),
		Confidence:    defaultEnhanceConf,
	}
	if out.EnhancedQuery == "" {
		out.EnhancedQuery = original
	}
	if s.Confidence != nil {
		out.Confidence = *s.Confidence
	}
	return out
}

type freeformEnhancement string

func (f freeformEnhancement) collapse(original string) domain.QueryEnhancement {
	out := identityEnhancement(original)
	if text := strings.TrimSpace(string(f)); text != "" {
		out.EnhancedQuery = text
	}
	out.Confidence = freeformEnhanceConf
	return out
}

// parseEnhancement falls back to free text only when no JSON object is found.
// Each field decodes on its own, so a mistyped field keeps its default.
func parseEnhancement(raw string) enhancementResult {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &fields); err != nil || fields == nil {
		return freeformEnhancement(raw)
	}

	var parsed structuredEnhancement
	decodeField(fields, "enhanced_query", &parsed.EnhancedQuery)
	decodeField(fields, "expansions", &parsed.Expansions)
	decodeField(fields, "synonyms", &parsed.Synonyms)
	decodeField(fields, "related_terms", &parsed.RelatedTerms)
	decodeField(fields, "confidence", &parsed.Confidence)
	return parsed
}

// decodeField leaves dst untouched when the field is absent or has the wrong type.
func decodeField[T any](fields map[string]json.RawMessage, name string, dst *T) {
	raw, ok := fields[name]
	if !ok {
		return
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		slog.Debug("enhancement_field_ignored", "field", name, "error", err)
		return
	}
	*dst = v
}

func identityEnhancement(query string) domain.QueryEnhancement {
	return domain.QueryEnhancement{
		OriginalQuery: query,
		EnhancedQuery: query,
		Expansions:    []string{},
		Synonyms:      []string{},
		RelatedTerms:  []string{},
	}
}

// GenerateSearchVariations lists up to five distinct alternative phrasings for a query.
func GenerateSearchVariations(enh domain.QueryEnhancement) []string {
	candidates := []string{enh.OriginalQuery}
	if enh.EnhancedQuery != enh.OriginalQuery {
		candidates = append(candidates, enh.EnhancedQuery)
	}
	candidates = append(candidates, enh.Expansions...)
	for _, synonym := range enh.Synonyms {
		candidates = append(candidates, enh.OriginalQuery+" "+synonym)
	}
	for _, term := range enh.RelatedTerms {
		if runeLen(term) > 2 {
			candidates = append(candidates, term)
		}
	}

	seen := make(map[string]struct{}, len(candidates))
	out := make([]string, 0, maxSearchVariations)
	for _, candidate := range candidates {
		if runeLen(strings.TrimSpace(candidate)) <= 2 {
			continue
		}
		if _, ok := seen[candidate]; ok {
			continue
		}
		seen[candidate] = struct{}{}
		out = append(out, candidate)
		if len(out) == maxSearchVariations {
			break
		}
	}
	return out
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
