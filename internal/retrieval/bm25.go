package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/connexus-ai/ragbox-backend/internal/ports"
)

// BM25 Okapi constants (standard defaults).
const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// lexicalCacheTTL matches the documented cache lifetime for the BM25 index
// (spec §4.2 stage B): "bm25_index:<tenantId>", TTL 3600s.
const lexicalCacheTTL = 3600 * time.Second

// lexicalIndexVersion guards against decoding a serialized index built by an
// incompatible version of this package; a mismatch is treated as a cache miss.
const lexicalIndexVersion = 1

var wordPattern = regexp.MustCompile(`[a-z0-9]+`)

// tokenizeWords lowercases and splits text into alphanumeric terms for BM25.
// This is deliberately independent of the cl100k_base tokenizer used for
// chunk sizing: BM25 needs word-level terms, not sub-word byte-pairs.
func tokenizeWords(text string) []string {
	return wordPattern.FindAllString(strings.ToLower(text), -1)
}

type lexicalDoc struct {
	ChunkID  string             `json:"chunk_id"`
	Terms    []string           `json:"terms"`
	TermFreq map[string]int     `json:"term_freq"`
	Payload  ports.PointPayload `json:"payload"`
}

// LexicalIndex is an in-process BM25Okapi index over a tenant's latest raw
// chunk text, cached in the key-value store to avoid rescanning the vector
// store on every query.
type LexicalIndex struct {
	Version   int            `json:"version"`
	AvgDocLen float64        `json:"avg_doc_len"`
	DF        map[string]int `json:"df"`
	Docs      []lexicalDoc   `json:"docs"`
}

// BM25Index builds and caches LexicalIndex instances per tenant.
type BM25Index struct {
	vectors ports.VectorIndex
	kv      ports.KeyValueStore
}

// NewBM25Index creates a BM25Index.
func NewBM25Index(vectors ports.VectorIndex, kv ports.KeyValueStore) *BM25Index {
	return &BM25Index{vectors: vectors, kv: kv}
}

func lexicalCacheKey(tenantID string) string {
	return "bm25_index:" + tenantID
}

// Get returns the tenant's lexical index, building it from the vector store
// (scanning raw-view points) on a cache miss and writing the result back to
// the key-value store with the documented TTL.
func (b *BM25Index) Get(ctx context.Context, tenantID string) (*LexicalIndex, error) {
	if raw, ok, err := b.kv.Get(ctx, lexicalCacheKey(tenantID)); err == nil && ok {
		var idx LexicalIndex
		if err := json.Unmarshal(raw, &idx); err == nil && idx.Version == lexicalIndexVersion {
			return &idx, nil
		}
		slog.Warn("retrieval: discarding stale lexical cache entry", "tenant_id", tenantID)
	}

	idx, err := b.build(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(idx); err == nil {
		if err := b.kv.Set(ctx, lexicalCacheKey(tenantID), raw, lexicalCacheTTL); err != nil {
			slog.Warn("retrieval: failed to cache lexical index", "tenant_id", tenantID, "error", err)
		}
	}

	return idx, nil
}

func (b *BM25Index) build(ctx context.Context, tenantID string) (*LexicalIndex, error) {
	idx := &LexicalIndex{Version: lexicalIndexVersion, DF: make(map[string]int)}

	var totalLen int
	err := b.vectors.ScanRaw(ctx, tenantID, 200, func(points []ports.ScoredPoint) error {
		for _, p := range points {
			terms := tokenizeWords(p.Payload.ChunkText)
			freq := make(map[string]int, len(terms))
			seen := make(map[string]bool, len(terms))
			for _, term := range terms {
				freq[term]++
				if !seen[term] {
					idx.DF[term]++
					seen[term] = true
				}
			}
			idx.Docs = append(idx.Docs, lexicalDoc{
				ChunkID:  p.Payload.ChunkID,
				Terms:    terms,
				TermFreq: freq,
				Payload:  p.Payload,
			})
			totalLen += len(terms)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("retrieval.BM25Index.build: %w", err)
	}

	if len(idx.Docs) > 0 {
		idx.AvgDocLen = float64(totalLen) / float64(len(idx.Docs))
	}

	return idx, nil
}

// LexicalHit is one scored BM25 match.
type LexicalHit struct {
	Payload ports.PointPayload
	Score   float64
}

// Search scores every document against the query's terms using BM25Okapi
// and returns the top limit hits, highest score first.
func (idx *LexicalIndex) Search(query string, limit int) []LexicalHit {
	queryTerms := tokenizeWords(query)
	if len(queryTerms) == 0 || len(idx.Docs) == 0 {
		return nil
	}

	n := float64(len(idx.Docs))
	idf := make(map[string]float64, len(queryTerms))
	for _, term := range queryTerms {
		df := float64(idx.DF[term])
		idf[term] = math.Log((n-df+0.5)/(df+0.5) + 1)
	}

	hits := make([]LexicalHit, 0, len(idx.Docs))
	for _, doc := range idx.Docs {
		var score float64
		docLen := float64(len(doc.Terms))
		for _, term := range queryTerms {
			f := float64(doc.TermFreq[term])
			if f == 0 {
				continue
			}
			denom := f + bm25K1*(1-bm25B+bm25B*docLen/idx.AvgDocLen)
			score += idf[term] * (f * (bm25K1 + 1)) / denom
		}
		if score > 0 {
			hits = append(hits, LexicalHit{Payload: doc.Payload, Score: score})
		}
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}
