package domain

// ThresholdConfig tunes the adaptive similarity threshold.
type ThresholdConfig struct {
	Enabled           bool    `json:"enabled" yaml:"enabled"`
	MinThreshold      float64 `json:"min_threshold" yaml:"min_threshold"`
	MaxThreshold      float64 `json:"max_threshold" yaml:"max_threshold"`
	BaseThreshold     float64 `json:"base_threshold" yaml:"base_threshold"`
	QueryLengthFactor float64 `json:"query_length_factor" yaml:"query_length_factor"`
	AdaptiveEnabled   bool    `json:"adaptive_enabled" yaml:"adaptive_enabled"`
	LearningRate      float64 `json:"learning_rate" yaml:"learning_rate"`
	HistorySize       int     `json:"history_size" yaml:"history_size"`
}

func DefaultThresholdConfig() ThresholdConfig {
	return ThresholdConfig{
		Enabled:           true,
		MinThreshold:      0.2,
		MaxThreshold:      0.8,
		BaseThreshold:     0.3,
		QueryLengthFactor: 0.1,
		AdaptiveEnabled:   true,
		LearningRate:      0.1,
		HistorySize:       100,
	}
}

// EnhancementConfig tunes query rewriting for short queries.
type EnhancementConfig struct {
	Enabled        bool    `json:"enabled" yaml:"enabled"`
	MinQueryLength int     `json:"min_query_length" yaml:"min_query_length"`
	MaxQueryLength int     `json:"max_query_length" yaml:"max_query_length"`
	Model          string  `json:"model" yaml:"model"`
	Temperature    float64 `json:"temperature" yaml:"temperature"`
	MaxTokens      int     `json:"max_tokens" yaml:"max_tokens"`
}

func DefaultEnhancementConfig() EnhancementConfig {
	return EnhancementConfig{
		Enabled:        true,
		MinQueryLength: 2,
		MaxQueryLength: 15,
		Model:          "gpt-4o-mini",
		Temperature:    0.3,
		MaxTokens:      150,
	}
}

// CacheTTLConfig holds TTLs in seconds.
type CacheTTLConfig struct {
	Default       int `json:"default" yaml:"default"`
	ShortQuery    int `json:"short_query" yaml:"short_query"`
	MediumQuery   int `json:"medium_query" yaml:"medium_query"`
	LongQuery     int `json:"long_query" yaml:"long_query"`
	HighQuality   int `json:"high_quality" yaml:"high_quality"`
	MediumQuality int `json:"medium_quality" yaml:"medium_quality"`
	LowQuality    int `json:"low_quality" yaml:"low_quality"`
	VectorSearch  int `json:"vector_search" yaml:"vector_search"`
	HybridSearch  int `json:"hybrid_search" yaml:"hybrid_search"`
	Max           int `json:"max" yaml:"max"`
	Min           int `json:"min" yaml:"min"`
}

type CacheInvalidationConfig struct {
	OnContentUpdate bool    `json:"on_content_update" yaml:"on_content_update"`
	LowHitRate      float64 `json:"low_hit_rate" yaml:"low_hit_rate"`
	SizeExceededMB  float64 `json:"size_exceeded_mb" yaml:"size_exceeded_mb"`
}

type CacheConfig struct {
	TTL          CacheTTLConfig          `json:"ttl" yaml:"ttl"`
	Invalidation CacheInvalidationConfig `json:"invalidation" yaml:"invalidation"`
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TTL: CacheTTLConfig{
			Default:       3600,
			ShortQuery:    1800,
			MediumQuery:   3600,
			LongQuery:     7200,
			HighQuality:   7200,
			MediumQuality: 3600,
			LowQuality:    1800,
			VectorSearch:  3600,
			HybridSearch:  5400,
			Max:           86400,
			Min:           300,
		},
		Invalidation: CacheInvalidationConfig{
			OnContentUpdate: true,
			LowHitRate:      0.3,
			SizeExceededMB:  100,
		},
	}
}
