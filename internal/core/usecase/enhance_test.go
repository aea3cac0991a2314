package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/achinchen/articles-assistant/internal/core/domain"
)

func TestShouldEnhance(t *testing.T) {
	e := NewQueryEnhancer(&completerFake{}, domain.DefaultEnhancementConfig())

	cases := []struct {
		query string
		want  bool
	}{
		{"AI", true},
		{"  API  ", true},
		{"x", false},
		{"react hooks", true},
		{"one two three", true},
		{"a b c d", false},
		{"a very long query text", false},
		{"微服務架構", true},
	}
	for _, tc := range cases {
		if got := e.ShouldEnhance(tc.query); got != tc.want {
			t.Fatalf("ShouldEnhance(%q) = %v, want %v", tc.query, got, tc.want)
		}
	}

	cfg := domain.DefaultEnhancementConfig()
	cfg.Enabled = false
	if NewQueryEnhancer(&completerFake{}, cfg).ShouldEnhance("react") {
		t.Fatalf("disabled enhancer must not enhance")
	}
}

func TestEnhanceParsesStructuredResponse(t *testing.T) {
	completer := &completerFake{responses: []domain.Completion{{
		Text: "Sure! {\"enhanced_query\": \"React hooks state management\", \"expansions\": [\"useState\"], \"synonyms\": [\"hooks api\"], \"related_terms\": [\"redux\"], \"confidence\": 0.9}",
	}}}
	e := NewQueryEnhancer(completer, domain.DefaultEnhancementConfig())

	got := e.Enhance(context.Background(), "react hooks")
	if got.EnhancedQuery != "React hooks state management" || got.Confidence != 0.9 {
		t.Fatalf("unexpected enhancement %+v", got)
	}
	if len(got.Expansions) != 1 || got.RelatedTerms[0] != "redux" {
		t.Fatalf("expected lists to be parsed, got %+v", got)
	}

	req := completer.requests[0]
	if !strings.Contains(req.UserPrompt, `Please enhance this query: "react hooks"`) {
		t.Fatalf("unexpected user prompt %q", req.UserPrompt)
	}
	if req.MaxTokens != 150 || req.Model != "gpt-4o-mini" {
		t.Fatalf("unexpected completion settings %+v", req)
	}
}

func TestEnhanceDefaultsConfidenceWhenMissing(t *testing.T) {
	completer := &completerFake{responses: []domain.Completion{{Text: `{"enhanced_query": "golang generics"}`}}}
	got := NewQueryEnhancer(completer, domain.DefaultEnhancementConfig()).Enhance(context.Background(), "generics")

	if got.Confidence != 0.5 || got.EnhancedQuery != "golang generics" {
		t.Fatalf("unexpected enhancement %+v", got)
	}
	if got.Synonyms == nil || got.Expansions == nil {
		t.Fatalf("expected non-nil lists")
	}
}

func TestEnhanceKeepsDefaultsForMistypedFields(t *testing.T) {
	completer := &completerFake{responses: []domain.Completion{{
		Text: `{"enhanced_query": "kubernetes pod autoscaling", "confidence": "0.8", "expansions": "x", "synonyms": ["k8s hpa"]}`,
	}}}
	got := NewQueryEnhancer(completer, domain.DefaultEnhancementConfig()).Enhance(context.Background(), "k8s hpa")

	if got.EnhancedQuery != "kubernetes pod autoscaling" {
		t.Fatalf("expected the well-typed enhanced query to survive, got %q", got.EnhancedQuery)
	}
	if got.Confidence != 0.5 {
		t.Fatalf("expected default confidence for a string value, got %v", got.Confidence)
	}
	if got.Expansions == nil || len(got.Expansions) != 0 {
		t.Fatalf("expected empty expansions for a string value, got %#v", got.Expansions)
	}
	if len(got.Synonyms) != 1 || got.Synonyms[0] != "k8s hpa" {
		t.Fatalf("expected synonyms to be parsed, got %v", got.Synonyms)
	}
}

func TestEnhanceFreeformFallback(t *testing.T) {
	completer := &completerFake{responses: []domain.Completion{{Text: "  react hooks and state  "}}}
	got := NewQueryEnhancer(completer, domain.DefaultEnhancementConfig()).Enhance(context.Background(), "hooks")

	if got.EnhancedQuery != "react hooks and state" || got.Confidence != 0.3 {
		t.Fatalf("unexpected freeform enhancement %+v", got)
	}
}

func TestEnhanceFailureReturnsIdentity(t *testing.T) {
	completer := &completerFake{err: errors.New("timeout")}
	got := NewQueryEnhancer(completer, domain.DefaultEnhancementConfig()).Enhance(context.Background(), "hooks")

	if got.EnhancedQuery != "hooks" || got.Confidence != 0 {
		t.Fatalf("expected identity enhancement, got %+v", got)
	}

	empty := &completerFake{responses: []domain.Completion{{Text: "   "}}}
	got = NewQueryEnhancer(empty, domain.DefaultEnhancementConfig()).Enhance(context.Background(), "hooks")
	if got.EnhancedQuery != "hooks" || got.Confidence != 0 {
		t.Fatalf("expected identity enhancement for empty completion, got %+v", got)
	}
}

func TestEnhanceUsesChinesePrompt(t *testing.T) {
	completer := &completerFake{responses: []domain.Completion{{Text: `{"enhanced_query": "微服務架構設計"}`}}}
	NewQueryEnhancer(completer, domain.DefaultEnhancementConfig()).Enhance(context.Background(), "微服務")

	req := completer.requests[0]
	if !strings.HasPrefix(req.UserPrompt, "請增強這個查詢") {
		t.Fatalf("expected Chinese user prompt, got %q", req.UserPrompt)
	}
	if req.SystemPrompt != enhancementPromptChinese {
		t.Fatalf("expected Chinese system prompt")
	}
}

func TestGenerateSearchVariations(t *testing.T) {
	got := GenerateSearchVariations(domain.QueryEnhancement{
		OriginalQuery: "hooks",
		EnhancedQuery: "react hooks",
		Expansions:    []string{"react hooks", "ux", "custom hooks"},
		Synonyms:      []string{"api"},
		RelatedTerms:  []string{"ui", "redux", "context"},
	})

	want := []string{"hooks", "react hooks", "custom hooks", "hooks api", "redux"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("unexpected variations %v", got)
	}
}

func TestEnhancerUpdateConfigValidates(t *testing.T) {
	e := NewQueryEnhancer(&completerFake{}, domain.DefaultEnhancementConfig())
	cfg := e.Config()
	cfg.MaxQueryLength = 1
	if err := e.UpdateConfig(cfg); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	cfg.MaxQueryLength = 30
	if err := e.UpdateConfig(cfg); err != nil {
		t.Fatalf("update config: %v", err)
	}
	if e.Config().MaxQueryLength != 30 {
		t.Fatalf("expected updated config")
	}
}

func TestDetectLocale(t *testing.T) {
	if domain.DetectLocale("什麼是微服務") != domain.LocaleChinese {
		t.Fatalf("expected zh")
	}
	if domain.DetectLocale("what is a microservice 服務") != domain.LocaleEnglish {
		t.Fatalf("expected en for mostly latin text")
	}
	if domain.DetectLocale("") != domain.LocaleEnglish {
		t.Fatalf("expected en for empty text")
	}
}
