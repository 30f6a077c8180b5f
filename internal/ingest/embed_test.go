package ingest

import (
	"context"
	"testing"

	"github.com/connexus-ai/ragbox-backend/internal/domain"
	"github.com/connexus-ai/ragbox-backend/internal/ports"
)

type fakeVectorIndex struct {
	points []ports.Point
}

func (f *fakeVectorIndex) EnsureCollection(ctx context.Context, tenantID string, dimension int) error {
	return nil
}

func (f *fakeVectorIndex) Upsert(ctx context.Context, tenantID string, points []ports.Point) error {
	f.points = append(f.points, points...)
	return nil
}

func (f *fakeVectorIndex) Search(ctx context.Context, tenantID string, query []float32, vectorType string, limit int) ([]ports.ScoredPoint, error) {
	return nil, nil
}

func (f *fakeVectorIndex) ScanRaw(ctx context.Context, tenantID string, pageSize int, fn func([]ports.ScoredPoint) error) error {
	return nil
}

func (f *fakeVectorIndex) Count(ctx context.Context, tenantID string) (int, error) {
	return len(f.points), nil
}

func (f *fakeVectorIndex) DeleteDocument(ctx context.Context, tenantID, documentID string) error {
	return nil
}

func vec(seed float32) []float32 { return []float32{seed, seed + 1, seed + 2} }

func TestEmbedderRawViewIsMandatory(t *testing.T) {
	llm := &fakeLLM{
		embedFn: func(ctx context.Context, texts []string) ([][]float32, error) {
			out := make([][]float32, len(texts))
			for i := range texts {
				out[i] = vec(float32(i))
			}
			return out, nil
		},
	}
	idx := &fakeVectorIndex{}
	e := NewEmbedder(llm, idx)

	chunks := []EnrichedChunk{
		{Chunk: Chunk{ID: "c1", Text: "hello", ElementType: domain.ElementNarrativeText}},
		{Chunk: Chunk{ID: "c2", Text: "world", ElementType: domain.ElementNarrativeText}},
	}

	n, err := e.Embed(context.Background(), DocumentMeta{DocumentID: "d1", TenantID: "t1", Filename: "f.txt", Version: 1}, chunks)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if n != 2 {
		t.Fatalf("got %d points, want 2 (raw only, no summary/hypothetical)", n)
	}
	for _, p := range idx.points {
		if p.Payload.VectorType != string(domain.VectorRaw) {
			t.Fatalf("unexpected vector type %q", p.Payload.VectorType)
		}
	}
}

func TestEmbedderBuildsOptionalViewsWhenPresent(t *testing.T) {
	llm := &fakeLLM{
		embedFn: func(ctx context.Context, texts []string) ([][]float32, error) {
			out := make([][]float32, len(texts))
			for i := range texts {
				out[i] = vec(float32(i))
			}
			return out, nil
		},
	}
	idx := &fakeVectorIndex{}
	e := NewEmbedder(llm, idx)

	chunks := []EnrichedChunk{
		{
			Chunk:     Chunk{ID: "c1", Text: "hello", ElementType: domain.ElementNarrativeText},
			Summary:   "a greeting",
			Questions: []string{"what is a greeting?"},
		},
	}

	n, err := e.Embed(context.Background(), DocumentMeta{DocumentID: "d1", TenantID: "t1", Filename: "f.txt", Version: 1}, chunks)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if n != 3 {
		t.Fatalf("got %d points, want 3 (raw + summary + hypothetical)", n)
	}

	seen := map[string]bool{}
	for _, p := range idx.points {
		seen[p.Payload.VectorType] = true
		if p.Payload.ChunkID != "c1" {
			t.Fatalf("chunk id not propagated: %q", p.Payload.ChunkID)
		}
	}
	for _, vt := range []string{string(domain.VectorRaw), string(domain.VectorSummary), string(domain.VectorHypothetical)} {
		if !seen[vt] {
			t.Fatalf("missing vector type %q", vt)
		}
	}
}

func TestEmbedderNoChunksIsNoop(t *testing.T) {
	idx := &fakeVectorIndex{}
	e := NewEmbedder(&fakeLLM{}, idx)

	n, err := e.Embed(context.Background(), DocumentMeta{}, nil)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if n != 0 {
		t.Fatalf("got %d, want 0", n)
	}
	if len(idx.points) != 0 {
		t.Fatalf("expected no upsert calls")
	}
}
