package retrieval

import (
	"context"
	"log/slog"
	"time"

	"github.com/connexus-ai/ragbox-backend/internal/ports"
)

// rerankTimeout bounds the external cross-encoder call; a slow or unhealthy
// reranker must not stall a chat turn (spec §4.2 stage D).
const rerankTimeout = 10 * time.Second

// Rerank scores fused candidates with an external cross-encoder reranker. If
// the reranker errors or times out, it falls back to the candidates' dense
// cosine similarity as the relevance score rather than failing the turn.
type Rerank struct {
	reranker ports.Reranker
}

// NewRerank creates a Rerank stage.
func NewRerank(reranker ports.Reranker) *Rerank {
	return &Rerank{reranker: reranker}
}

// Run reranks up to topN fused candidates against query, returning results
// in the order the reranker returned them. On fallback the results keep the
// fused order and are not re-sorted by relevance score.
func (r *Rerank) Run(ctx context.Context, query string, candidates []FusedHit, topN int) []RankedChunk {
	if len(candidates) == 0 {
		return nil
	}

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Payload.ChunkText
	}

	rerankCtx, cancel := context.WithTimeout(ctx, rerankTimeout)
	defer cancel()

	results, err := r.reranker.Rerank(rerankCtx, query, texts, topN)
	if err != nil {
		slog.Warn("retrieval: reranker unavailable, falling back to dense score", "error", err)
		return fallbackRanking(candidates, topN)
	}

	ranked := make([]RankedChunk, 0, len(results))
	for _, res := range results {
		if res.Index < 0 || res.Index >= len(candidates) {
			continue
		}
		ranked = append(ranked, RankedChunk{
			Payload:        candidates[res.Index].Payload,
			RelevanceScore: res.RelevanceScore,
		})
	}
	return ranked
}

// RankedChunk is a chunk with its final relevance score, ready for
// confidence scoring and answer composition.
type RankedChunk struct {
	Payload        ports.PointPayload
	RelevanceScore float64
}

// fallbackRanking takes the first topN candidates in fused order and uses
// each one's dense cosine similarity as its relevance score.
func fallbackRanking(candidates []FusedHit, topN int) []RankedChunk {
	n := len(candidates)
	if topN > 0 && topN < n {
		n = topN
	}
	ranked := make([]RankedChunk, n)
	for i := 0; i < n; i++ {
		ranked[i] = RankedChunk{
			Payload:        candidates[i].Payload,
			RelevanceScore: candidates[i].DenseScore,
		}
	}
	return ranked
}
