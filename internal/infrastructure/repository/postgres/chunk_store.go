package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/achinchen/articles-assistant/internal/core/domain"
)

// ChunkStore reads the article, chunk and embedding tables written by ingestion.
// Embeddings live in a pgvector column; content_tsv is a generated tsvector.
type ChunkStore struct {
	db *sql.DB
}

func NewChunkStore(db *sql.DB) *ChunkStore {
	return &ChunkStore{db: db}
}

func OpenDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxIdleTime(30 * time.Second)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

const chunkColumns = `
	c.id::text, c.content, c.chunk_index, c.token_count,
	a.id::text, a.slug, a.title, a.locale`

func (s *ChunkStore) SearchByVector(ctx context.Context, vector []float32, search domain.VectorSearch) ([]domain.RetrievedChunk, error) {
	var (
		b    strings.Builder
		args = []any{vectorLiteral(vector)}
	)
	b.WriteString(`
SELECT` + chunkColumns + `,
	1 - (e.embedding <=> $1::vector) AS similarity
FROM embeddings e
JOIN chunks c ON e.chunk_id = c.id
JOIN articles a ON c.article_id = a.id
WHERE TRUE`)
	if search.Threshold != nil {
		args = append(args, *search.Threshold)
		fmt.Fprintf(&b, "\n\tAND 1 - (e.embedding <=> $1::vector) >= $%d", len(args))
	}
	if search.Locale != "" {
		args = append(args, string(search.Locale))
		fmt.Fprintf(&b, "\n\tAND a.locale = $%d", len(args))
	}
	args = append(args, search.Limit)
	fmt.Fprintf(&b, "\nORDER BY similarity DESC\nLIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	return scanChunks(rows, func(c *domain.RetrievedChunk) []any {
		return []any{&c.Similarity}
	}, func(c *domain.RetrievedChunk) {
		c.VectorScore = c.Similarity
	})
}

func (s *ChunkStore) SearchByKeyword(ctx context.Context, tsQuery string, search domain.KeywordSearch) ([]domain.RetrievedChunk, error) {
	if strings.TrimSpace(tsQuery) == "" {
		return nil, nil
	}

	var (
		b    strings.Builder
		args = []any{tsQuery}
	)
	b.WriteString(`
SELECT` + chunkColumns + `,
	ts_rank_cd(c.content_tsv, to_tsquery('english', $1)) AS keyword_score
FROM chunks c
JOIN articles a ON c.article_id = a.id
WHERE c.content_tsv @@ to_tsquery('english', $1)`)
	if search.Locale != "" {
		args = append(args, string(search.Locale))
		fmt.Fprintf(&b, "\n\tAND a.locale = $%d", len(args))
	}
	b.WriteString("\nORDER BY keyword_score DESC")
	if search.Limit > 0 {
		args = append(args, search.Limit)
		fmt.Fprintf(&b, "\nLIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	defer rows.Close()

	return scanChunks(rows, func(c *domain.RetrievedChunk) []any {
		return []any{&c.KeywordScore}
	}, nil)
}

func (s *ChunkStore) VectorScores(ctx context.Context, vector []float32, chunkIDs []string) (map[string]float64, error) {
	out := make(map[string]float64, len(chunkIDs))
	if len(chunkIDs) == 0 {
		return out, nil
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT c.id::text, 1 - (e.embedding <=> $1::vector) AS similarity
FROM embeddings e
JOIN chunks c ON e.chunk_id = c.id
WHERE c.id::text = ANY($2::text[])
`, vectorLiteral(vector), textArrayLiteral(chunkIDs))
	if err != nil {
		return nil, fmt.Errorf("vector scores: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id    string
			score float64
		)
		if err := rows.Scan(&id, &score); err != nil {
			return nil, fmt.Errorf("scan vector score: %w", err)
		}
		out[id] = score
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vector scores: %w", err)
	}
	return out, nil
}

func (s *ChunkStore) TopSimilarities(ctx context.Context, vector []float32, limit int) ([]float64, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT 1 - (e.embedding <=> $1::vector) AS similarity
FROM embeddings e
ORDER BY similarity DESC
LIMIT $2
`, vectorLiteral(vector), limit)
	if err != nil {
		return nil, fmt.Errorf("top similarities: %w", err)
	}
	defer rows.Close()

	out := make([]float64, 0, limit)
	for rows.Next() {
		var score float64
		if err := rows.Scan(&score); err != nil {
			return nil, fmt.Errorf("scan similarity: %w", err)
		}
		out = append(out, score)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate similarities: %w", err)
	}
	return out, nil
}

func (s *ChunkStore) CorpusStats(ctx context.Context) (domain.CorpusStats, error) {
	var (
		stats domain.CorpusStats
		enN   int
		zhN   int
	)
	err := s.db.QueryRowContext(ctx, `
SELECT
	(SELECT COUNT(*) FROM articles),
	(SELECT COUNT(*) FROM articles WHERE locale = 'en'),
	(SELECT COUNT(*) FROM articles WHERE locale = 'zh'),
	(SELECT COUNT(*) FROM chunks),
	(SELECT COUNT(*) FROM embeddings)
`).Scan(&stats.Articles, &enN, &zhN, &stats.Chunks, &stats.Embeddings)
	if err != nil {
		return domain.CorpusStats{}, fmt.Errorf("corpus stats: %w", err)
	}
	stats.ArticlesByLocale = map[domain.Locale]int{
		domain.LocaleEnglish: enN,
		domain.LocaleChinese: zhN,
	}
	return stats, nil
}

func (s *ChunkStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// scanChunks reads the shared chunk columns followed by the score columns extra returns.
func scanChunks(rows *sql.Rows, extra func(*domain.RetrievedChunk) []any, after func(*domain.RetrievedChunk)) ([]domain.RetrievedChunk, error) {
	out := make([]domain.RetrievedChunk, 0)
	for rows.Next() {
		var (
			c      domain.RetrievedChunk
			locale string
		)
		dest := []any{
			&c.ChunkID, &c.Content, &c.ChunkIndex, &c.TokenCount,
			&c.ArticleID, &c.ArticleSlug, &c.ArticleTitle, &locale,
		}
		dest = append(dest, extra(&c)...)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		c.Locale = domain.Locale(locale)
		if after != nil {
			after(&c)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return out, nil
}

// vectorLiteral renders a pgvector text literal such as [0.1,0.2].
func vectorLiteral(vector []float32) string {
	var b strings.Builder
	b.Grow(len(vector)*10 + 2)
	b.WriteByte('[')
	for i, v := range vector {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

var arrayElementEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// textArrayLiteral renders a Postgres text[] literal with every element quoted.
func textArrayLiteral(items []string) string {
	var b strings.Builder
	b.WriteByte('{')
	for i, item := range items {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(arrayElementEscaper.Replace(item))
		b.WriteByte('"')
	}
	b.WriteByte('}')
	return b.String()
}
