package retrieval

import (
	"context"
	"testing"

	"github.com/connexus-ai/ragbox-backend/internal/ports"
)

type fakeLLM struct {
	embedFn func(ctx context.Context, texts []string) ([][]float32, error)
}

func (f *fakeLLM) GenerateContent(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error) {
	return "", nil
}
func (f *fakeLLM) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	return f.embedFn(ctx, texts)
}

func TestRetrieveFastExitsOnEmptyCollection(t *testing.T) {
	idx := &fakeVectorIndex{points: map[string][]ports.ScoredPoint{}}
	kv := newFakeKV()
	lex := NewBM25Index(idx, kv)
	rerank := NewRerank(&fakeReranker{})
	llm := &fakeLLM{embedFn: func(ctx context.Context, texts []string) ([][]float32, error) {
		t.Fatalf("embed should not be called when the collection is empty")
		return nil, nil
	}}

	r := NewRetriever(llm, idx, lex, rerank, nil)

	result, err := r.Retrieve(context.Background(), "empty-tenant", "hello", Options{})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if result.Confidence != 0 || len(result.Chunks) != 0 {
		t.Fatalf("expected zero-confidence empty result, got %+v", result)
	}
}

func TestRetrieveEndToEndFusesRanksAndScores(t *testing.T) {
	idx := &fakeVectorIndex{points: map[string][]ports.ScoredPoint{
		"t1": {
			{Payload: ports.PointPayload{ChunkID: "1", ChunkText: "refunds are issued within five days", VectorType: "raw"}},
		},
	}}
	kv := newFakeKV()
	lex := NewBM25Index(idx, kv)
	rerank := NewRerank(&fakeReranker{err: nil, results: []ports.RerankResult{{Index: 0, RelevanceScore: 0.88}}})
	llm := &fakeLLM{embedFn: func(ctx context.Context, texts []string) ([][]float32, error) {
		return [][]float32{{0.1, 0.2, 0.3}}, nil
	}}

	r := NewRetriever(llm, idx, lex, rerank, nil)

	result, err := r.Retrieve(context.Background(), "t1", "how long do refunds take", Options{})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(result.Chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(result.Chunks))
	}
	if result.Confidence <= 0 {
		t.Fatalf("expected positive confidence, got %v", result.Confidence)
	}
}
