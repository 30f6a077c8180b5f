package ports

import "context"

// LanguageModel abstracts the large-language-model vendor for testability.
// Concrete vendor clients (Vertex, OpenAI-compatible) live in internal/llm
// and are wired in at cmd/server; this package only defines the contract every
// caller in internal/ingest and internal/agent depends on.
type LanguageModel interface {
	// GenerateContent sends a system+user prompt pair and returns the raw
	// text response. temperature and maxTokens are advisory — a provider
	// that ignores them still satisfies the contract.
	GenerateContent(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error)

	// EmbedTexts returns one embedding vector per input text, in order.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Reranker abstracts the external cross-encoder rerank service (spec §4.2
// stage D). Given a query and candidate texts, it returns a relevance score
// per requested top-N candidate.
type Reranker interface {
	// Rerank returns up to topN results. Each result's Index refers to the
	// position of the corresponding candidate in the input texts slice.
	Rerank(ctx context.Context, query string, candidates []string, topN int) ([]RerankResult, error)
}

// RerankResult is one scored candidate returned by a Reranker.
type RerankResult struct {
	Index          int
	RelevanceScore float64
}
