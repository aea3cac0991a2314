package domain

// Chunk is a slice of an ingested article. The ingestion pipeline owns it; the query path only reads it.
type Chunk struct {
	ChunkID      string `json:"chunk_id"`
	ArticleID    string `json:"article_id"`
	ArticleSlug  string `json:"article_slug"`
	ArticleTitle string `json:"article_title"`
	Content      string `json:"content"`
	Locale       Locale `json:"locale"`
	ChunkIndex   int    `json:"chunk_index"`
	TokenCount   int    `json:"token_count"`
}

// RetrievedChunk is a chunk scored against one query. In hybrid mode Similarity holds the fused score.
type RetrievedChunk struct {
	Chunk
	Similarity   float64 `json:"similarity"`
	VectorScore  float64 `json:"vector_score,omitempty"`
	KeywordScore float64 `json:"keyword_score,omitempty"`
}

type VectorSearch struct {
	// Threshold is optional; nil returns the nearest chunks regardless of score.
	Threshold *float64
	Locale    Locale
	Limit     int
}

type KeywordSearch struct {
	Locale Locale
	// Limit <= 0 returns every match.
	Limit int
}

type QueryContext struct {
	Chunks           []RetrievedChunk `json:"chunks"`
	TotalTokens      int              `json:"total_tokens"`
	FormattedContext string           `json:"formatted_context"`
}

type Source struct {
	ID           int     `json:"id"`
	ArticleSlug  string  `json:"article_slug"`
	ArticleTitle string  `json:"article_title"`
	ChunkContent string  `json:"chunk_content"`
	Similarity   float64 `json:"similarity"`
	Locale       Locale  `json:"locale"`
	URL          string  `json:"url"`
}

// CorpusStats counts what the ingestion pipeline has indexed so far.
type CorpusStats struct {
	Articles         int            `json:"articles"`
	ArticlesByLocale map[Locale]int `json:"articles_by_locale"`
	Chunks           int            `json:"chunks"`
	Embeddings       int            `json:"embeddings"`
}
