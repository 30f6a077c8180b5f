package retrieval

import (
	"context"
	"fmt"

	"github.com/connexus-ai/ragbox-backend/internal/ports"
)

// NoopReranker is a stand-in ports.Reranker for deployments with no
// cross-encoder service wired up. It always errors, which drives Rerank's
// documented fallback to each candidate's dense cosine score (spec §4.2
// stage D) rather than claiming a reranking capability this module doesn't
// own. The real cross-encoder is an external collaborator, same as the
// document parser.
type NoopReranker struct{}

var _ ports.Reranker = NoopReranker{}

func (NoopReranker) Rerank(ctx context.Context, query string, candidates []string, topN int) ([]ports.RerankResult, error) {
	return nil, fmt.Errorf("retrieval: no reranker configured")
}
