package retrieval

import (
	"sort"

	"github.com/connexus-ai/ragbox-backend/internal/ports"
)

// rrfK is the standard Reciprocal Rank Fusion constant: it dampens the
// influence of rank position so that lower-ranked hits still contribute.
const rrfK = 60

// FusedHit is a candidate after combining the dense and lexical result
// lists by Reciprocal Rank Fusion. DenseScore is the raw cosine similarity
// from the dense search, when the chunk surfaced there (0 for a
// lexical-only hit) — used as the relevance-score fallback if reranking
// fails.
type FusedHit struct {
	Payload    ports.PointPayload
	Score      float64
	DenseScore float64
}

// reciprocalRankFusion combines the dense (multi-view-merged) and BM25
// ranked lists into one fused ranking: score = sum(1 / (k + rank)) across
// every list the chunk appears in, rank being its 1-based position in that
// list (spec §4.2 stage C).
func reciprocalRankFusion(dense []ports.ScoredPoint, lexical []LexicalHit) []FusedHit {
	sort.Slice(dense, func(i, j int) bool { return dense[i].Score > dense[j].Score })
	sort.Slice(lexical, func(i, j int) bool { return lexical[i].Score > lexical[j].Score })

	scores := make(map[string]float64)
	payloads := make(map[string]ports.PointPayload)
	denseScores := make(map[string]float64)

	for rank, hit := range dense {
		id := hit.Payload.ChunkID
		scores[id] += 1.0 / float64(rrfK+rank+1)
		payloads[id] = hit.Payload
		denseScores[id] = hit.Score
	}
	for rank, hit := range lexical {
		id := hit.Payload.ChunkID
		scores[id] += 1.0 / float64(rrfK+rank+1)
		if _, ok := payloads[id]; !ok {
			payloads[id] = hit.Payload
		}
	}

	fused := make([]FusedHit, 0, len(scores))
	for id, score := range scores {
		fused = append(fused, FusedHit{Payload: payloads[id], Score: score, DenseScore: denseScores[id]})
	}
	sort.Slice(fused, func(i, j int) bool { return fused[i].Score > fused[j].Score })

	return fused
}
