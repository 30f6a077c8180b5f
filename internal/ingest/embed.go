package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/connexus-ai/ragbox-backend/internal/domain"
	"github.com/connexus-ai/ragbox-backend/internal/ports"
)

// upsertBatchSize is the max points per VectorIndex.Upsert call (spec §4.1
// stage 4: "batched-100 upsert").
const upsertBatchSize = 100

// DocumentMeta carries the document-level fields every embedded point needs,
// independent of any one chunk.
type DocumentMeta struct {
	DocumentID string
	TenantID   string
	Filename   string
	Version    int
}

// Embedder builds the raw/summary/hypothetical vector views for a batch of
// enriched chunks and upserts them into the tenant's vector collection.
// The raw view is mandatory; summary and hypothetical views are built only
// for chunks that enriched successfully (spec §4.1 stage 4).
type Embedder struct {
	llm   ports.LanguageModel
	index ports.VectorIndex
}

// NewEmbedder creates an Embedder.
func NewEmbedder(llm ports.LanguageModel, index ports.VectorIndex) *Embedder {
	return &Embedder{llm: llm, index: index}
}

// Embed generates the vector views and upserts them. Returns the number of
// points written.
func (e *Embedder) Embed(ctx context.Context, meta DocumentMeta, chunks []EnrichedChunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	var points []ports.Point

	rawTexts := make([]string, len(chunks))
	for i, c := range chunks {
		rawTexts[i] = c.Text
	}
	rawVectors, err := e.llm.EmbedTexts(ctx, rawTexts)
	if err != nil {
		return 0, fmt.Errorf("ingest.Embed: raw view: %w", err)
	}
	if len(rawVectors) != len(chunks) {
		return 0, fmt.Errorf("ingest.Embed: raw view: got %d vectors for %d chunks", len(rawVectors), len(chunks))
	}
	for i, c := range chunks {
		points = append(points, newPoint(meta, c, domain.VectorRaw, c.Text, rawVectors[i]))
	}

	var summaryIdx []int
	var summaryTexts []string
	for i, c := range chunks {
		if c.Summary != "" {
			summaryIdx = append(summaryIdx, i)
			summaryTexts = append(summaryTexts, c.Summary)
		}
	}
	if len(summaryTexts) > 0 {
		summaryVectors, err := e.llm.EmbedTexts(ctx, summaryTexts)
		if err != nil {
			return 0, fmt.Errorf("ingest.Embed: summary view: %w", err)
		}
		if len(summaryVectors) != len(summaryTexts) {
			return 0, fmt.Errorf("ingest.Embed: summary view: got %d vectors for %d texts", len(summaryVectors), len(summaryTexts))
		}
		for j, idx := range summaryIdx {
			c := chunks[idx]
			points = append(points, newPoint(meta, c, domain.VectorSummary, c.Summary, summaryVectors[j]))
		}
	}

	var hypoIdx []int
	var hypoTexts []string
	for i, c := range chunks {
		if len(c.Questions) > 0 {
			hypoIdx = append(hypoIdx, i)
			hypoTexts = append(hypoTexts, strings.Join(c.Questions, "\n"))
		}
	}
	if len(hypoTexts) > 0 {
		hypoVectors, err := e.llm.EmbedTexts(ctx, hypoTexts)
		if err != nil {
			return 0, fmt.Errorf("ingest.Embed: hypothetical view: %w", err)
		}
		if len(hypoVectors) != len(hypoTexts) {
			return 0, fmt.Errorf("ingest.Embed: hypothetical view: got %d vectors for %d texts", len(hypoVectors), len(hypoTexts))
		}
		for j, idx := range hypoIdx {
			c := chunks[idx]
			points = append(points, newPoint(meta, c, domain.VectorHypothetical, hypoTexts[j], hypoVectors[j]))
		}
	}

	for i := 0; i < len(points); i += upsertBatchSize {
		end := i + upsertBatchSize
		if end > len(points) {
			end = len(points)
		}
		if err := e.index.Upsert(ctx, meta.TenantID, points[i:end]); err != nil {
			return 0, fmt.Errorf("ingest.Embed: upsert %d-%d: %w", i, end, err)
		}
	}

	return len(points), nil
}

func newPoint(meta DocumentMeta, c EnrichedChunk, vt domain.VectorType, text string, vector []float32) ports.Point {
	return ports.Point{
		ID:     fmt.Sprintf("%s:%s", c.ID, vt),
		Vector: vector,
		Payload: ports.PointPayload{
			ChunkID:               c.ID,
			DocumentID:            meta.DocumentID,
			TenantID:              meta.TenantID,
			Filename:              meta.Filename,
			DocumentVersion:       meta.Version,
			IsLatestVersion:       true,
			SectionHeading:        c.SectionHeading,
			ElementType:           string(c.ElementType),
			ChunkText:             text,
			CharCount:             c.CharCount,
			TokenCount:            c.TokenCount,
			Summary:               c.Summary,
			HypotheticalQuestions: c.Questions,
			VectorType:            string(vt),
			IngestedAt:            time.Now().Unix(),
		},
	}
}
