package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/connexus-ai/ragbox-backend/internal/ports"
)

// enrichConcurrency bounds how many chunks have an in-flight LLM enrichment
// call at once, to avoid bursting the provider on large documents.
const enrichConcurrency = 5

const enrichSystemPrompt = `You summarize and generate hypothetical questions for a single passage from a knowledge base document. Respond with strict JSON only, no prose, no markdown fences, matching exactly this shape:
{"summary": "<one or two sentence summary>", "questions": ["<question 1>", "<question 2>", "<question 3>"]}`

// EnrichedChunk is a Chunk augmented with the LLM-generated metadata used to
// build the summary and hypothetical embedding views. Summary and Questions
// are empty when enrichment failed for that chunk; the raw view is still
// embedded regardless.
type EnrichedChunk struct {
	Chunk
	Summary   string
	Questions []string
}

type enrichmentResult struct {
	Summary   string   `json:"summary"`
	Questions []string `json:"questions"`
}

// Enricher calls an LLM to produce the summary and hypothetical-question
// metadata used to build the summary/hypothetical vector views (spec §4.1
// stage 3). Failures are non-fatal: a chunk that can't be enriched still
// ingests with its raw view only.
type Enricher struct {
	llm ports.LanguageModel
}

// NewEnricher creates an Enricher.
func NewEnricher(llm ports.LanguageModel) *Enricher {
	return &Enricher{llm: llm}
}

// Enrich runs bounded-concurrency enrichment over chunks and returns one
// EnrichedChunk per input chunk, in the same order. It never returns an
// error: a per-chunk failure just leaves that chunk's metadata empty.
func (e *Enricher) Enrich(ctx context.Context, chunks []Chunk) []EnrichedChunk {
	out := make([]EnrichedChunk, len(chunks))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(enrichConcurrency)

	for i, c := range chunks {
		i, c := i, c
		g.Go(func() error {
			out[i] = e.enrichOne(gCtx, c)
			return nil
		})
	}

	// g.Wait() only ever returns nil here: enrichOne swallows its own errors.
	_ = g.Wait()

	return out
}

func (e *Enricher) enrichOne(ctx context.Context, c Chunk) EnrichedChunk {
	enriched := EnrichedChunk{Chunk: c}

	userPrompt := fmt.Sprintf("Section: %s\n\nPassage:\n%s", c.SectionHeading, c.Text)
	raw, err := e.llm.GenerateContent(ctx, enrichSystemPrompt, userPrompt, 0.2, 400)
	if err != nil {
		slog.Warn("ingest: chunk enrichment failed", "chunk_id", c.ID, "error", err)
		return enriched
	}

	result, err := parseEnrichment(raw)
	if err != nil {
		slog.Warn("ingest: chunk enrichment unparseable", "chunk_id", c.ID, "error", err)
		return enriched
	}

	enriched.Summary = strings.TrimSpace(result.Summary)
	enriched.Questions = result.Questions
	return enriched
}

// parseEnrichment extracts the JSON object from the model's response,
// tolerating a markdown code fence around it.
func parseEnrichment(raw string) (enrichmentResult, error) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return enrichmentResult{}, fmt.Errorf("ingest.parseEnrichment: no JSON object in response")
	}

	var result enrichmentResult
	if err := json.Unmarshal([]byte(text[start:end+1]), &result); err != nil {
		return enrichmentResult{}, fmt.Errorf("ingest.parseEnrichment: %w", err)
	}
	return result, nil
}
