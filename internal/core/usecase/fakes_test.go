package usecase

import (
	"context"
	"path"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/achinchen/articles-assistant/internal/core/domain"
)

type embedderFake struct {
	mu      sync.Mutex
	queries []string
	err     error
}

func (f *embedderFake) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, text)
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (f *embedderFake) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		v, err := f.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

type chunkStoreFake struct {
	mu           sync.Mutex
	vector       []domain.RetrievedChunk
	keyword      []domain.RetrievedChunk
	extraScores  map[string]float64
	top          []float64
	vectorErr    error
	keywordErr   error
	vectorCalls  []domain.VectorSearch
	keywordQuery string
	keywordCalls []domain.KeywordSearch
	scoredIDs    []string
	topCalls     []int
}

// SearchByVector mimics the SQL: threshold filter, locale filter, order, limit.
func (f *chunkStoreFake) SearchByVector(_ context.Context, _ []float32, search domain.VectorSearch) ([]domain.RetrievedChunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vectorCalls = append(f.vectorCalls, search)
	if f.vectorErr != nil {
		return nil, f.vectorErr
	}
	out := make([]domain.RetrievedChunk, 0, len(f.vector))
	for _, chunk := range f.vector {
		if search.Threshold != nil && chunk.Similarity < *search.Threshold {
			continue
		}
		if search.Locale != "" && chunk.Locale != search.Locale {
			continue
		}
		out = append(out, chunk)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if search.Limit > 0 && len(out) > search.Limit {
		out = out[:search.Limit]
	}
	return out, nil
}

// SearchByKeyword mimics the SQL: locale filter, order by rank, optional limit.
func (f *chunkStoreFake) SearchByKeyword(_ context.Context, tsQuery string, search domain.KeywordSearch) ([]domain.RetrievedChunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keywordQuery = tsQuery
	f.keywordCalls = append(f.keywordCalls, search)
	if f.keywordErr != nil {
		return nil, f.keywordErr
	}
	out := make([]domain.RetrievedChunk, 0, len(f.keyword))
	for _, chunk := range f.keyword {
		if search.Locale != "" && chunk.Locale != search.Locale {
			continue
		}
		out = append(out, chunk)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].KeywordScore > out[j].KeywordScore })
	if search.Limit > 0 && len(out) > search.Limit {
		out = out[:search.Limit]
	}
	return out, nil
}

func (f *chunkStoreFake) VectorScores(_ context.Context, _ []float32, ids []string) (map[string]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scoredIDs = append(f.scoredIDs, ids...)
	out := make(map[string]float64, len(ids))
	for _, id := range ids {
		if score, ok := f.extraScores[id]; ok {
			out[id] = score
		}
	}
	return out, nil
}

func (f *chunkStoreFake) TopSimilarities(_ context.Context, _ []float32, limit int) ([]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topCalls = append(f.topCalls, limit)
	return f.top, nil
}

type completerFake struct {
	mu        sync.Mutex
	responses []domain.Completion
	err       error
	requests  []domain.CompletionRequest
}

func (f *completerFake) Complete(_ context.Context, req domain.CompletionRequest) (domain.Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return domain.Completion{}, f.err
	}
	if len(f.responses) == 0 {
		return domain.Completion{}, nil
	}
	resp := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return resp, nil
}

type tokenCounterFake struct{}

// CountTokens counts one token per four bytes, rounded up.
func (tokenCounterFake) CountTokens(text string) int {
	return (len(text) + 3) / 4
}

type cacheEntry struct {
	value   string
	expires time.Time
}

// cacheStoreFake is an in-memory CacheStore with glob matching via path.Match.
type cacheStoreFake struct {
	mu         sync.Mutex
	now        func() time.Time
	entries    map[string]cacheEntry
	hashes     map[string]map[string]int64
	memory     map[string]string
	getErr     error
	setErr     error
	lastSetTTL time.Duration
}

func newCacheStoreFake() *cacheStoreFake {
	return &cacheStoreFake{
		now:     time.Now,
		entries: map[string]cacheEntry{},
		hashes:  map[string]map[string]int64{},
		memory:  map[string]string{"used_memory": "1024"},
	}
}

func (f *cacheStoreFake) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return "", false, f.getErr
	}
	e, ok := f.entries[key]
	if !ok || !f.now().Before(e.expires) {
		return "", false, nil
	}
	return e.value, true, nil
}

func (f *cacheStoreFake) SetWithTTL(_ context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.lastSetTTL = ttl
	f.entries[key] = cacheEntry{value: value, expires: f.now().Add(ttl)}
	return nil
}

func (f *cacheStoreFake) Delete(_ context.Context, keys ...string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, key := range keys {
		if _, ok := f.entries[key]; ok {
			delete(f.entries, key)
			n++
		}
		if _, ok := f.hashes[key]; ok {
			delete(f.hashes, key)
			n++
		}
	}
	return n, nil
}

func (f *cacheStoreFake) Keys(_ context.Context, pattern string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for key := range f.entries {
		if ok, _ := path.Match(pattern, key); ok {
			out = append(out, key)
		}
	}
	for key := range f.hashes {
		if ok, _ := path.Match(pattern, key); ok {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (f *cacheStoreFake) HashIncrement(_ context.Context, key, field string, delta int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hashes[key] == nil {
		f.hashes[key] = map[string]int64{}
	}
	f.hashes[key][field] += delta
	return nil
}

func (f *cacheStoreFake) HashGetAll(_ context.Context, key string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]string{}
	for field, v := range f.hashes[key] {
		out[field] = strconv.FormatInt(v, 10)
	}
	return out, nil
}

func (f *cacheStoreFake) TTL(_ context.Context, key string) (time.Duration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[key]
	if !ok {
		return -2, nil
	}
	return e.expires.Sub(f.now()), nil
}

func (f *cacheStoreFake) MemoryInfo(context.Context) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.memory))
	for k, v := range f.memory {
		out[k] = v
	}
	return out, nil
}

func chunk(id, slug string, similarity float64) domain.RetrievedChunk {
	return domain.RetrievedChunk{
		Chunk: domain.Chunk{
			ChunkID:      id,
			ArticleID:    "article-" + slug,
			ArticleSlug:  slug,
			ArticleTitle: "Title " + slug,
			Content:      "content of " + id,
			Locale:       domain.LocaleEnglish,
			TokenCount:   100,
		},
		Similarity: similarity,
	}
}

// keywordChunk builds a full-text hit the way the store returns it: rank in KeywordScore.
func keywordChunk(id, slug string, rank float64) domain.RetrievedChunk {
	c := chunk(id, slug, 0)
	c.KeywordScore = rank
	return c
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }
