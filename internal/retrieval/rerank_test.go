package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/connexus-ai/ragbox-backend/internal/ports"
)

type fakeReranker struct {
	results []ports.RerankResult
	err     error
}

func (f *fakeReranker) Rerank(ctx context.Context, query string, candidates []string, topN int) ([]ports.RerankResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func TestRerankUsesRerankerResultsOnSuccess(t *testing.T) {
	reranker := &fakeReranker{results: []ports.RerankResult{
		{Index: 1, RelevanceScore: 0.95},
		{Index: 0, RelevanceScore: 0.4},
	}}
	r := NewRerank(reranker)

	candidates := []FusedHit{
		{Payload: ports.PointPayload{ChunkID: "a"}, DenseScore: 0.1},
		{Payload: ports.PointPayload{ChunkID: "b"}, DenseScore: 0.2},
	}

	ranked := r.Run(context.Background(), "query", candidates, 5)
	if len(ranked) != 2 {
		t.Fatalf("got %d ranked, want 2", len(ranked))
	}
	if ranked[0].Payload.ChunkID != "b" || ranked[0].RelevanceScore != 0.95 {
		t.Fatalf("unexpected first ranked result: %+v", ranked[0])
	}
}

func TestRerankFallsBackToDenseScoreOnError(t *testing.T) {
	reranker := &fakeReranker{err: errors.New("reranker down")}
	r := NewRerank(reranker)

	candidates := []FusedHit{
		{Payload: ports.PointPayload{ChunkID: "a"}, DenseScore: 0.66},
		{Payload: ports.PointPayload{ChunkID: "b"}, DenseScore: 0.77},
	}

	ranked := r.Run(context.Background(), "query", candidates, 5)
	if len(ranked) != 2 {
		t.Fatalf("got %d ranked, want 2", len(ranked))
	}
	if ranked[0].RelevanceScore != 0.66 {
		t.Fatalf("RelevanceScore = %v, want fallback dense score 0.66", ranked[0].RelevanceScore)
	}
}

func TestRerankEmptyCandidatesReturnsNil(t *testing.T) {
	r := NewRerank(&fakeReranker{})
	if got := r.Run(context.Background(), "q", nil, 5); got != nil {
		t.Fatalf("expected nil for no candidates, got %v", got)
	}
}
