package domain

import "time"

type SearchMethod string

const (
	SearchMethodVector SearchMethod = "vector"
	SearchMethodHybrid SearchMethod = "hybrid"
)

func SearchMethodFor(useHybrid bool) SearchMethod {
	if useHybrid {
		return SearchMethodHybrid
	}
	return SearchMethodVector
}

type QueryConfig struct {
	TopK                int     `json:"top_k"`
	SimilarityThreshold float64 `json:"similarity_threshold"`
	MaxContextTokens    int     `json:"max_context_tokens"`
	MaxResponseTokens   int     `json:"max_response_tokens"`
	Model               string  `json:"model"`
	Temperature         float64 `json:"temperature"`
	VectorWeight        float64 `json:"vector_weight"`
	KeywordWeight       float64 `json:"keyword_weight"`
}

func DefaultQueryConfig() QueryConfig {
	return QueryConfig{
		TopK:                5,
		SimilarityThreshold: 0.3,
		MaxContextTokens:    3000,
		MaxResponseTokens:   1000,
		Model:               "gpt-4o-mini",
		Temperature:         0.3,
		VectorWeight:        0.7,
		KeywordWeight:       0.3,
	}
}

// QueryConfigOverrides carries caller overrides; nil fields keep the defaults.
type QueryConfigOverrides struct {
	TopK                *int     `json:"top_k,omitempty"`
	SimilarityThreshold *float64 `json:"similarity_threshold,omitempty"`
	MaxContextTokens    *int     `json:"max_context_tokens,omitempty"`
	MaxResponseTokens   *int     `json:"max_response_tokens,omitempty"`
	Model               *string  `json:"model,omitempty"`
	Temperature         *float64 `json:"temperature,omitempty"`
	VectorWeight        *float64 `json:"vector_weight,omitempty"`
	KeywordWeight       *float64 `json:"keyword_weight,omitempty"`
}

// Merge applies overrides on top of base.
func (o *QueryConfigOverrides) Merge(base QueryConfig) QueryConfig {
	if o == nil {
		return base
	}
	out := base
	if o.TopK != nil {
		out.TopK = *o.TopK
	}
	if o.SimilarityThreshold != nil {
		out.SimilarityThreshold = *o.SimilarityThreshold
	}
	if o.MaxContextTokens != nil {
		out.MaxContextTokens = *o.MaxContextTokens
	}
	if o.MaxResponseTokens != nil {
		out.MaxResponseTokens = *o.MaxResponseTokens
	}
	if o.Model != nil {
		out.Model = *o.Model
	}
	if o.Temperature != nil {
		out.Temperature = *o.Temperature
	}
	if o.VectorWeight != nil {
		out.VectorWeight = *o.VectorWeight
	}
	if o.KeywordWeight != nil {
		out.KeywordWeight = *o.KeywordWeight
	}
	return out
}

type QueryInput struct {
	Query           string                `json:"query"`
	Locale          Locale                `json:"locale,omitempty"`
	UseHybridSearch bool                  `json:"use_hybrid_search,omitempty"`
	Config          *QueryConfigOverrides `json:"config,omitempty"`
}

type TokenUsage struct {
	Context    int `json:"context"`
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
	Total      int `json:"total"`
}

type QueryMetadata struct {
	QueryID          string            `json:"query_id,omitempty"`
	QueryLocale      Locale            `json:"query_locale"`
	ChunksRetrieved  int               `json:"chunks_retrieved"`
	ChunksUsed       int               `json:"chunks_used"`
	Model            string            `json:"model"`
	TokensUsed       TokenUsage        `json:"tokens_used"`
	ResponseTimeMs   int64             `json:"response_time_ms"`
	SearchMethod     SearchMethod      `json:"search_method"`
	Threshold        float64           `json:"threshold"`
	QueryEnhancement *QueryEnhancement `json:"query_enhancement,omitempty"`

	Cached   bool       `json:"cached,omitempty"`
	CachedAt *time.Time `json:"cached_at,omitempty"`
	CacheTTL int        `json:"cache_ttl,omitempty"`
}

type QueryResponse struct {
	Answer   string        `json:"answer"`
	Sources  []Source      `json:"sources"`
	Metadata QueryMetadata `json:"metadata"`
}

type QueryEnhancement struct {
	OriginalQuery string   `json:"original_query"`
	EnhancedQuery string   `json:"enhanced_query"`
	Expansions    []string `json:"expansions"`
	Synonyms      []string `json:"synonyms"`
	RelatedTerms  []string `json:"related_terms"`
	Confidence    float64  `json:"confidence"`
	// Applied reports whether retrieval used EnhancedQuery.
	Applied bool `json:"applied"`
}

type QueryPerformance struct {
	Query         string    `json:"query"`
	Threshold     float64   `json:"threshold"`
	ResultCount   int       `json:"result_count"`
	AvgSimilarity float64   `json:"avg_similarity"`
	MaxSimilarity float64   `json:"max_similarity"`
	MinSimilarity float64   `json:"min_similarity"`
	UserRating    *float64  `json:"user_rating,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

type PerformanceStats struct {
	TotalQueries   int     `json:"total_queries"`
	AvgResultCount float64 `json:"avg_result_count"`
	AvgSimilarity  float64 `json:"avg_similarity"`
	AvgThreshold   float64 `json:"avg_threshold"`
	RatedQueries   int     `json:"rated_queries"`
	AvgRating      float64 `json:"avg_rating"`
}
