package retrieval

import (
	"context"
	"testing"

	"github.com/connexus-ai/ragbox-backend/internal/ports"
)

type fakeViewVectorIndex struct {
	byView map[string][]ports.ScoredPoint
}

func (f *fakeViewVectorIndex) EnsureCollection(ctx context.Context, tenantID string, dimension int) error {
	return nil
}
func (f *fakeViewVectorIndex) Upsert(ctx context.Context, tenantID string, points []ports.Point) error {
	return nil
}
func (f *fakeViewVectorIndex) Search(ctx context.Context, tenantID string, query []float32, vectorType string, limit int) ([]ports.ScoredPoint, error) {
	return f.byView[vectorType], nil
}
func (f *fakeViewVectorIndex) ScanRaw(ctx context.Context, tenantID string, pageSize int, fn func([]ports.ScoredPoint) error) error {
	return nil
}
func (f *fakeViewVectorIndex) Count(ctx context.Context, tenantID string) (int, error) { return 0, nil }
func (f *fakeViewVectorIndex) DeleteDocument(ctx context.Context, tenantID, documentID string) error {
	return nil
}

func TestDenseSearchMergesByMaxScoreAcrossViews(t *testing.T) {
	idx := &fakeViewVectorIndex{byView: map[string][]ports.ScoredPoint{
		"raw":          {{Payload: ports.PointPayload{ChunkID: "c1"}, Score: 0.5}},
		"summary":      {{Payload: ports.PointPayload{ChunkID: "c1"}, Score: 0.9}},
		"hypothetical": {{Payload: ports.PointPayload{ChunkID: "c2"}, Score: 0.3}},
	}}
	d := NewDenseSearch(idx)

	hits, err := d.Search(context.Background(), "t1", []float32{1, 2, 3}, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}

	scores := map[string]float64{}
	for _, h := range hits {
		scores[h.Payload.ChunkID] = h.Score
	}
	if scores["c1"] != 0.9 {
		t.Fatalf("c1 score = %v, want 0.9 (max across views)", scores["c1"])
	}
	if scores["c2"] != 0.3 {
		t.Fatalf("c2 score = %v, want 0.3", scores["c2"])
	}
}
