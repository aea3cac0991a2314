package openai

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultEmbedModel     = "text-embedding-3-small"
	defaultEmbedBatchSize = 100
	defaultEmbedBatchGap  = 500 * time.Millisecond
)

// Embedder turns text into vectors. Batches are paced by a limiter so bulk
// jobs stay under the provider's request rate.
type Embedder struct {
	client    *Client
	model     string
	batchSize int
	limiter   *rate.Limiter
}

func NewEmbedder(client *Client, model string, batchSize int, batchGap time.Duration) *Embedder {
	if strings.TrimSpace(model) == "" {
		model = DefaultEmbedModel
	}
	if batchSize <= 0 {
		batchSize = defaultEmbedBatchSize
	}
	if batchGap <= 0 {
		batchGap = defaultEmbedBatchGap
	}
	return &Embedder{
		client:    client,
		model:     model,
		batchSize: batchSize,
		limiter:   rate.NewLimiter(rate.Every(batchGap), 1),
	}
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, _, err := e.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in order, one request per batch.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	totalTokens := 0
	batches := (len(texts) + e.batchSize - 1) / e.batchSize
	for start := 0; start < len(texts); start += e.batchSize {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		end := min(start+e.batchSize, len(texts))
		vectors, tokens, err := e.embed(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed batch %d/%d: %w", start/e.batchSize+1, batches, err)
		}
		out = append(out, vectors...)
		totalTokens += tokens
	}

	slog.Info("embedding_batch_completed",
		"model", e.model,
		"texts", len(texts),
		"batches", batches,
		"tokens", totalTokens,
		"estimated_cost_usd", EstimateCost(e.model, totalTokens),
	)
	return out, nil
}

func (e *Embedder) embed(ctx context.Context, texts []string) ([][]float32, int, error) {
	var resp embeddingResponse
	if err := e.client.call(ctx, "/v1/embeddings", embeddingRequest{Model: e.model, Input: texts}, &resp, "embed"); err != nil {
		return nil, 0, err
	}
	if len(resp.Data) != len(texts) {
		return nil, 0, fmt.Errorf("openai embed: expected %d vectors, got %d", len(texts), len(resp.Data))
	}

	sort.Slice(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })
	vectors := make([][]float32, len(resp.Data))
	for i, item := range resp.Data {
		vectors[i] = item.Embedding
	}
	return vectors, resp.Usage.TotalTokens, nil
}

// EstimateCost prices embedding tokens in USD: large models at $0.13 per
// million tokens, everything else at $0.02.
func EstimateCost(model string, tokens int) float64 {
	perMillion := 0.02
	if strings.Contains(model, "large") {
		perMillion = 0.13
	}
	return float64(tokens) / 1_000_000 * perMillion
}
