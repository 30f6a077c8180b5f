package ports

import "context"

// VectorIndex abstracts the tenant-scoped vector store (collection name
// convention: tenant_{tenantId}). The pgvector driver lives in
// internal/store/postgres; this is the contract that
// internal/ingest and internal/retrieval depend on.
type VectorIndex interface {
	// EnsureCollection creates the tenant's collection if it does not exist,
	// with cosine distance and the given embedding dimension. Idempotent.
	EnsureCollection(ctx context.Context, tenantID string, dimension int) error

	// Upsert writes points in batches of at most 100 (caller enforces
	// batching; drivers may additionally chunk internally).
	Upsert(ctx context.Context, tenantID string, points []Point) error

	// Search runs a single dense vector-type-filtered similarity search,
	// restricted to IsLatestVersion=true and the given VectorType.
	Search(ctx context.Context, tenantID string, query []float32, vectorType string, limit int) ([]ScoredPoint, error)

	// ScanRaw pages through every IsLatestVersion=true, vector_type=raw
	// point in the tenant's collection, invoking fn per page. Used to build
	// the BM25 lexical index. fn returning an error stops the scan.
	ScanRaw(ctx context.Context, tenantID string, pageSize int, fn func(points []ScoredPoint) error) error

	// Count returns the number of IsLatestVersion=true points currently in
	// the tenant's collection (used for the retrieval fast-exit on an empty
	// corpus).
	Count(ctx context.Context, tenantID string) (int, error)

	// DeleteDocument removes every point belonging to a document (used by
	// document hard/soft delete cleanup); it does not alter other versions.
	DeleteDocument(ctx context.Context, tenantID, documentID string) error
}

// Point is a single vector to upsert, carrying its full chunk payload.
type Point struct {
	ID         string
	Vector     []float32
	Payload    PointPayload
}

// PointPayload mirrors domain.ChunkPayload's mandatory filter fields plus
// whatever else the driver needs to reconstruct a retrieval result without
// a second round trip.
type PointPayload struct {
	ChunkID               string
	DocumentID            string
	TenantID              string
	Filename              string
	DocumentVersion       int
	IsLatestVersion       bool
	SectionHeading        string
	ElementType           string
	ChunkText             string
	CharCount             int
	TokenCount            int
	Summary               string
	HypotheticalQuestions []string
	VectorType            string
	IngestedAt            int64 // unix seconds
}

// ScoredPoint is a single hit returned by Search or ScanRaw.
type ScoredPoint struct {
	Payload PointPayload
	Score   float64 // cosine similarity; 0 for ScanRaw (no query involved)
}
