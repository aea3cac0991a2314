package usecase

import (
	"sort"

	"github.com/achinchen/articles-assistant/internal/core/domain"
)

type fusedCandidate struct {
	chunk        domain.RetrievedChunk
	vectorScore  float64
	keywordScore float64
}

// fuseHybrid joins the vector and keyword signal sets on chunk id. Vector hits carry
// their score in Similarity, keyword hits in KeywordScore. A chunk missing from one
// set contributes zero for that signal. extraVector fills in vector scores for
// keyword-only chunks that fell outside the vector candidate pool.
func fuseHybrid(
	vector, keyword []domain.RetrievedChunk,
	extraVector map[string]float64,
	vectorWeight, keywordWeight float64,
) []domain.RetrievedChunk {
	acc := make(map[string]*fusedCandidate, len(vector)+len(keyword))
	order := make([]string, 0, len(vector)+len(keyword))

	for _, chunk := range vector {
		key := chunk.ChunkID
		if _, ok := acc[key]; ok {
			continue
		}
		acc[key] = &fusedCandidate{chunk: chunk, vectorScore: chunk.Similarity}
		order = append(order, key)
	}
	for _, chunk := range keyword {
		key := chunk.ChunkID
		if candidate, ok := acc[key]; ok {
			candidate.keywordScore = chunk.KeywordScore
			candidate.chunk = preferRicherChunk(candidate.chunk, chunk)
			continue
		}
		candidate := &fusedCandidate{chunk: chunk, keywordScore: chunk.KeywordScore}
		if score, ok := extraVector[key]; ok {
			candidate.vectorScore = score
		}
		acc[key] = candidate
		order = append(order, key)
	}

	out := make([]domain.RetrievedChunk, 0, len(acc))
	for _, key := range order {
		c := acc[key]
		chunk := c.chunk
		chunk.VectorScore = c.vectorScore
		chunk.KeywordScore = c.keywordScore
		chunk.Similarity = vectorWeight*c.vectorScore + keywordWeight*c.keywordScore
		out = append(out, chunk)
	}

	sortBySimilarity(out)
	return out
}

func filterByScore(chunks []domain.RetrievedChunk, threshold float64) []domain.RetrievedChunk {
	out := chunks[:0:0]
	for _, chunk := range chunks {
		if chunk.Similarity >= threshold {
			out = append(out, chunk)
		}
	}
	return out
}

func sortBySimilarity(chunks []domain.RetrievedChunk) {
	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].Similarity != chunks[j].Similarity {
			return chunks[i].Similarity > chunks[j].Similarity
		}
		return chunks[i].ChunkID < chunks[j].ChunkID
	})
}

func trimCandidates(chunks []domain.RetrievedChunk, limit int) []domain.RetrievedChunk {
	if limit <= 0 || len(chunks) <= limit {
		return chunks
	}
	return chunks[:limit]
}

func missingChunkIDs(vector, keyword []domain.RetrievedChunk) []string {
	seen := make(map[string]struct{}, len(vector))
	for _, chunk := range vector {
		seen[chunk.ChunkID] = struct{}{}
	}
	var missing []string
	for _, chunk := range keyword {
		if _, ok := seen[chunk.ChunkID]; ok {
			continue
		}
		seen[chunk.ChunkID] = struct{}{}
		missing = append(missing, chunk.ChunkID)
	}
	return missing
}

func preferRicherChunk(current, candidate domain.RetrievedChunk) domain.RetrievedChunk {
	if current.Content == "" && candidate.Content != "" {
		current.Content = candidate.Content
	}
	if current.ArticleTitle == "" && candidate.ArticleTitle != "" {
		current.ArticleTitle = candidate.ArticleTitle
	}
	if current.ArticleSlug == "" && candidate.ArticleSlug != "" {
		current.ArticleSlug = candidate.ArticleSlug
	}
	if current.TokenCount == 0 && candidate.TokenCount > 0 {
		current.TokenCount = candidate.TokenCount
	}
	return current
}
