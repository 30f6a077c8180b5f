package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/connexus-ai/ragbox-backend/internal/apperr"
	"github.com/connexus-ai/ragbox-backend/internal/domain"
	"github.com/connexus-ai/ragbox-backend/internal/observability"
	"github.com/connexus-ai/ragbox-backend/internal/ports"
)

// bm25CacheKeyPrefix matches the lexical index cache key convention
// (spec §4.2 stage B): "bm25_index:<tenantId>".
const bm25CacheKeyPrefix = "bm25_index:"

// Pipeline orchestrates the full ingestion flow for one document version:
// parse → chunk → enrich → embed → status update → lexical-cache
// invalidation.
type Pipeline struct {
	docs     ports.DocumentStore
	parser   ports.Parser
	chunker  *Chunker
	enricher *Enricher
	embedder *Embedder
	kv       ports.KeyValueStore
	metrics  *observability.Metrics
}

// NewPipeline creates a Pipeline. metrics may be nil.
func NewPipeline(docs ports.DocumentStore, parser ports.Parser, chunker *Chunker, enricher *Enricher, embedder *Embedder, kv ports.KeyValueStore, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		docs:     docs,
		parser:   parser,
		chunker:  chunker,
		enricher: enricher,
		embedder: embedder,
		kv:       kv,
		metrics:  metrics,
	}
}

// Ingest runs the pipeline for one document. It is meant to be invoked
// asynchronously after the document row is created in Processing status;
// on any failure it makes a best-effort attempt to mark the document
// Failed with a human-readable reason before returning the error.
func (p *Pipeline) Ingest(ctx context.Context, documentID, tenantID, filePath, filename string, version int) error {
	slog.Info("ingest pipeline starting", "document_id", documentID, "tenant_id", tenantID, "filename", filename)

	parseStart := time.Now()
	elements, err := p.parser.Parse(ctx, filePath, filename)
	p.metrics.ObserveIngestionStage("parse", time.Since(parseStart).Seconds())
	if err != nil {
		p.metrics.IncrementIngestionFailure("parse")
		p.failDocument(ctx, documentID, err)
		return apperr.Wrap(apperr.IngestionFailed, fmt.Sprintf("parse %s", filename), err)
	}
	slog.Info("ingest pipeline parsed", "document_id", documentID, "elements", len(elements))

	chunkStart := time.Now()
	chunks := p.chunker.Chunk(elements)
	p.metrics.ObserveIngestionStage("chunk", time.Since(chunkStart).Seconds())
	if len(chunks) == 0 {
		err := fmt.Errorf("document produced no retrievable chunks")
		p.metrics.IncrementIngestionFailure("chunk")
		p.failDocument(ctx, documentID, err)
		return apperr.Wrap(apperr.IngestionFailed, fmt.Sprintf("chunk %s", filename), err)
	}
	slog.Info("ingest pipeline chunked", "document_id", documentID, "chunk_count", len(chunks))
	p.metrics.AddIngestionChunks(len(chunks))

	enrichStart := time.Now()
	enriched := p.enricher.Enrich(ctx, chunks)
	p.metrics.ObserveIngestionStage("enrich", time.Since(enrichStart).Seconds())

	meta := DocumentMeta{
		DocumentID: documentID,
		TenantID:   tenantID,
		Filename:   filename,
		Version:    version,
	}
	embedStart := time.Now()
	pointCount, err := p.embedder.Embed(ctx, meta, enriched)
	p.metrics.ObserveIngestionStage("embed", time.Since(embedStart).Seconds())
	if err != nil {
		p.metrics.IncrementIngestionFailure("embed")
		p.failDocument(ctx, documentID, err)
		return apperr.Wrap(apperr.IngestionFailed, fmt.Sprintf("embed %s", filename), err)
	}
	slog.Info("ingest pipeline embedded", "document_id", documentID, "points", pointCount)

	if err := p.docs.UpdateChunkCount(ctx, documentID, len(chunks)); err != nil {
		slog.Warn("ingest pipeline failed to record chunk count", "document_id", documentID, "error", err)
	}

	if err := p.docs.UpdateStatus(ctx, documentID, domain.DocumentReady, nil); err != nil {
		return apperr.Wrap(apperr.IngestionFailed, fmt.Sprintf("mark %s ready", filename), err)
	}

	if err := p.kv.Delete(ctx, bm25CacheKeyPrefix+tenantID); err != nil {
		slog.Warn("ingest pipeline failed to invalidate lexical cache", "tenant_id", tenantID, "error", err)
	}

	slog.Info("ingest pipeline completed", "document_id", documentID, "chunk_count", len(chunks))
	return nil
}

func (p *Pipeline) failDocument(ctx context.Context, documentID string, cause error) {
	msg := cause.Error()
	if err := p.docs.UpdateStatus(ctx, documentID, domain.DocumentFailed, &msg); err != nil {
		slog.Error("ingest pipeline failed to mark document failed", "document_id", documentID, "error", err)
	}
}
