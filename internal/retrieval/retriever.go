package retrieval

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/connexus-ai/ragbox-backend/internal/observability"
	"github.com/connexus-ai/ragbox-backend/internal/ports"
)

const (
	defaultTopKPerView = 20
	defaultReturnLimit = 5
)

// Options tunes one Retrieve call; zero values fall back to the documented
// defaults.
type Options struct {
	TopKPerView int
	ReturnLimit int
}

func (o Options) withDefaults() Options {
	if o.TopKPerView <= 0 {
		o.TopKPerView = defaultTopKPerView
	}
	if o.ReturnLimit <= 0 {
		o.ReturnLimit = defaultReturnLimit
	}
	return o
}

// Result is the outcome of one hybrid retrieval call.
type Result struct {
	Chunks     []RankedChunk
	Confidence float64
}

// QueryEmbedder is satisfied by a LanguageModel that embeds retrieval
// queries asymmetrically from documents (e.g. Vertex AI's RETRIEVAL_QUERY
// vs RETRIEVAL_DOCUMENT task types). A provider that doesn't implement it
// falls back to plain EmbedTexts for the query too.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, texts []string) ([][]float32, error)
}

// Retriever runs the full hybrid retrieval pipeline: embed the query, fan
// out dense multi-view search and BM25 lexical search concurrently, fuse
// with Reciprocal Rank Fusion, rerank, and score confidence (spec §4.2).
type Retriever struct {
	llm     ports.LanguageModel
	vectors ports.VectorIndex
	dense   *DenseSearch
	lexical *BM25Index
	rerank  *Rerank
	metrics *observability.Metrics
}

// NewRetriever creates a Retriever. metrics may be nil.
func NewRetriever(llm ports.LanguageModel, vectors ports.VectorIndex, lexical *BM25Index, rerank *Rerank, metrics *observability.Metrics) *Retriever {
	return &Retriever{
		llm:     llm,
		vectors: vectors,
		dense:   NewDenseSearch(vectors),
		lexical: lexical,
		rerank:  rerank,
		metrics: metrics,
	}
}

// Retrieve runs hybrid retrieval for one query against one tenant's corpus.
// An empty collection is a fast exit: it returns a zero-confidence, empty
// result rather than an error, so callers can distinguish "no knowledge
// base" from a store failure.
func (r *Retriever) Retrieve(ctx context.Context, tenantID, query string, opts Options) (*Result, error) {
	start := time.Now()
	opts = opts.withDefaults()

	count, err := r.vectors.Count(ctx, tenantID)
	if err != nil {
		r.metrics.ObserveRetrieval("error", time.Since(start).Seconds())
		return nil, fmt.Errorf("retrieval.Retrieve: count: %w", err)
	}
	if count == 0 {
		r.metrics.IncrementRetrievalEmpty()
		r.metrics.ObserveRetrieval("empty_corpus", time.Since(start).Seconds())
		return &Result{}, nil
	}

	queryVectors, err := r.embedQuery(ctx, query)
	if err != nil {
		r.metrics.ObserveRetrieval("error", time.Since(start).Seconds())
		return nil, fmt.Errorf("retrieval.Retrieve: embed query: %w", err)
	}
	if len(queryVectors) == 0 {
		r.metrics.ObserveRetrieval("error", time.Since(start).Seconds())
		return nil, fmt.Errorf("retrieval.Retrieve: embed query: no vector returned")
	}
	queryVector := queryVectors[0]

	var denseHits []ports.ScoredPoint
	var lexicalHits []LexicalHit

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hits, err := r.dense.Search(gCtx, tenantID, queryVector, opts.TopKPerView)
		if err != nil {
			return fmt.Errorf("dense: %w", err)
		}
		denseHits = hits
		return nil
	})
	g.Go(func() error {
		idx, err := r.lexical.Get(gCtx, tenantID)
		if err != nil {
			return fmt.Errorf("lexical: %w", err)
		}
		lexicalHits = idx.Search(query, opts.TopKPerView)
		return nil
	})
	if err := g.Wait(); err != nil {
		r.metrics.ObserveRetrieval("error", time.Since(start).Seconds())
		return nil, fmt.Errorf("retrieval.Retrieve: search: %w", err)
	}

	fused := reciprocalRankFusion(denseHits, lexicalHits)
	if len(fused) == 0 {
		r.metrics.IncrementRetrievalEmpty()
		r.metrics.ObserveRetrieval("no_hits", time.Since(start).Seconds())
		return &Result{}, nil
	}

	ranked := r.rerank.Run(ctx, query, fused, opts.ReturnLimit)
	confidence := Confidence(ranked)

	r.metrics.ObserveRetrievalConfidence(confidence)
	r.metrics.ObserveRetrieval("ok", time.Since(start).Seconds())
	return &Result{Chunks: ranked, Confidence: confidence}, nil
}

func (r *Retriever) embedQuery(ctx context.Context, query string) ([][]float32, error) {
	if qe, ok := r.llm.(QueryEmbedder); ok {
		return qe.EmbedQuery(ctx, []string{query})
	}
	return r.llm.EmbedTexts(ctx, []string{query})
}
