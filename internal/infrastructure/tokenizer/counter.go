package tokenizer

import (
	"log/slog"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// Counter counts tokens with tiktoken and falls back to a character estimate
// when the encoding cannot be loaded (tiktoken may fetch its BPE file on first use).
type Counter struct {
	encoding string

	once sync.Once
	enc  *tiktoken.Tiktoken
}

func New(model string) *Counter {
	return &Counter{encoding: encodingForModel(model)}
}

// NewEstimator returns a Counter that never loads tiktoken.
func NewEstimator() *Counter {
	c := &Counter{}
	c.once.Do(func() {})
	return c
}

func (c *Counter) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	c.once.Do(c.load)
	if c.enc == nil {
		return EstimateTokens(text)
	}
	return len(c.enc.Encode(text, nil, nil))
}

func (c *Counter) load() {
	enc, err := tiktoken.GetEncoding(c.encoding)
	if err != nil {
		slog.Warn("tokenizer_fallback_estimator", "encoding", c.encoding, "error", err)
		return
	}
	c.enc = enc
}

func encodingForModel(model string) string {
	switch {
	case strings.HasPrefix(model, "gpt-4o"), strings.HasPrefix(model, "o1"), strings.HasPrefix(model, "o3"):
		return "o200k_base"
	default:
		return "cl100k_base"
	}
}

// EstimateTokens approximates token count: about 1.5 CJK characters or 4 other characters per token.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	total := utf8.RuneCountInString(text)
	cjk := 0
	for _, r := range text {
		if isCJK(r) {
			cjk++
		}
	}
	estimated := int(float64(cjk)/1.5 + float64(total-cjk)/4.0)
	if estimated == 0 {
		estimated = 1
	}
	return estimated
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}
