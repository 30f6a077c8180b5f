package retrieval

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/connexus-ai/ragbox-backend/internal/domain"
	"github.com/connexus-ai/ragbox-backend/internal/ports"
)

// denseViews are the three parallel embedding views searched for every
// query (spec §4.1 stage 3 / §4.2 stage A).
var denseViews = []string{
	string(domain.VectorRaw),
	string(domain.VectorSummary),
	string(domain.VectorHypothetical),
}

// DenseSearch runs three concurrent vector-type-filtered similarity searches
// against the tenant's collection and merges them by chunk ID, keeping the
// highest score seen for a chunk across any view it matched on.
type DenseSearch struct {
	index ports.VectorIndex
}

// NewDenseSearch creates a DenseSearch.
func NewDenseSearch(index ports.VectorIndex) *DenseSearch {
	return &DenseSearch{index: index}
}

// Search embeds nothing itself — it takes an already-computed query vector
// and fans it out across the three vector-type views.
func (d *DenseSearch) Search(ctx context.Context, tenantID string, queryVector []float32, limitPerView int) ([]ports.ScoredPoint, error) {
	results := make([][]ports.ScoredPoint, len(denseViews))

	g, gCtx := errgroup.WithContext(ctx)
	for i, view := range denseViews {
		i, view := i, view
		g.Go(func() error {
			hits, err := d.index.Search(gCtx, tenantID, queryVector, view, limitPerView)
			if err != nil {
				return fmt.Errorf("view %s: %w", view, err)
			}
			results[i] = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("retrieval.DenseSearch.Search: %w", err)
	}

	return mergeByMaxScore(results), nil
}

// mergeByMaxScore flattens the per-view result sets into one list, keeping a
// single entry per chunk ID at its best score across whichever views it
// appeared in.
func mergeByMaxScore(perView [][]ports.ScoredPoint) []ports.ScoredPoint {
	best := make(map[string]ports.ScoredPoint)
	for _, hits := range perView {
		for _, hit := range hits {
			existing, ok := best[hit.Payload.ChunkID]
			if !ok || hit.Score > existing.Score {
				best[hit.Payload.ChunkID] = hit
			}
		}
	}

	merged := make([]ports.ScoredPoint, 0, len(best))
	for _, hit := range best {
		merged = append(merged, hit)
	}
	return merged
}
