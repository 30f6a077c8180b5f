package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/connexus-ai/ragbox-backend/internal/domain"
	"github.com/connexus-ai/ragbox-backend/internal/ports"
)

type fakeParser struct {
	elements []ports.ParsedElement
	err      error
}

func (f *fakeParser) Parse(ctx context.Context, filepath, filename string) ([]ports.ParsedElement, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.elements, nil
}

type fakeDocumentStore struct {
	statuses   []domain.DocumentStatus
	errMsgs    []*string
	chunkCount int
}

func (f *fakeDocumentStore) Create(ctx context.Context, doc *domain.KnowledgeDocument) error { return nil }
func (f *fakeDocumentStore) GetByID(ctx context.Context, documentID string) (*domain.KnowledgeDocument, error) {
	return nil, nil
}
func (f *fakeDocumentStore) UpdateStatus(ctx context.Context, documentID string, status domain.DocumentStatus, errorMessage *string) error {
	f.statuses = append(f.statuses, status)
	f.errMsgs = append(f.errMsgs, errorMessage)
	return nil
}
func (f *fakeDocumentStore) UpdateChunkCount(ctx context.Context, documentID string, count int) error {
	f.chunkCount = count
	return nil
}
func (f *fakeDocumentStore) SoftDelete(ctx context.Context, documentID string) error { return nil }
func (f *fakeDocumentStore) ListByTenant(ctx context.Context, tenantID string) ([]*domain.KnowledgeDocument, error) {
	return nil, nil
}

type fakeKV struct {
	deleted []string
}

func (f *fakeKV) Get(ctx context.Context, key string) ([]byte, bool, error) { return nil, false, nil }
func (f *fakeKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return nil
}
func (f *fakeKV) Delete(ctx context.Context, keys ...string) error {
	f.deleted = append(f.deleted, keys...)
	return nil
}
func (f *fakeKV) IncrBy(ctx context.Context, key string, delta int64) (int64, error) { return delta, nil }
func (f *fakeKV) Expire(ctx context.Context, key string, ttl time.Duration) error    { return nil }

func newTestPipeline(t *testing.T, parser *fakeParser, docs *fakeDocumentStore, kv *fakeKV) *Pipeline {
	t.Helper()
	tok := testTokenizer(t)
	llm := &fakeLLM{
		generateFn: func(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error) {
			return `{"summary": "s", "questions": ["q"]}`, nil
		},
		embedFn: func(ctx context.Context, texts []string) ([][]float32, error) {
			out := make([][]float32, len(texts))
			for i := range texts {
				out[i] = vec(float32(i))
			}
			return out, nil
		},
	}
	idx := &fakeVectorIndex{}
	return NewPipeline(docs, parser, NewChunker(tok), NewEnricher(llm), NewEmbedder(llm, idx), kv, nil)
}

func TestPipelineIngestHappyPath(t *testing.T) {
	parser := &fakeParser{elements: []ports.ParsedElement{
		{Text: "Refunds", ElementType: "Title"},
		{Text: "Refunds post within 5 days.", ElementType: "NarrativeText"},
	}}
	docs := &fakeDocumentStore{}
	kv := &fakeKV{}
	p := newTestPipeline(t, parser, docs, kv)

	if err := p.Ingest(context.Background(), "doc1", "tenant1", "/tmp/doc1.pdf", "doc1.pdf", 1); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if len(docs.statuses) == 0 || docs.statuses[len(docs.statuses)-1] != domain.DocumentReady {
		t.Fatalf("final status = %v, want Ready", docs.statuses)
	}
	if docs.chunkCount == 0 {
		t.Fatalf("chunk count not recorded")
	}
	found := false
	for _, k := range kv.deleted {
		if k == bm25CacheKeyPrefix+"tenant1" {
			found = true
		}
	}
	if !found {
		t.Fatalf("lexical cache key not invalidated, deleted=%v", kv.deleted)
	}
}

func TestPipelineIngestParseFailureMarksDocumentFailed(t *testing.T) {
	parser := &fakeParser{err: errors.New("corrupt pdf")}
	docs := &fakeDocumentStore{}
	kv := &fakeKV{}
	p := newTestPipeline(t, parser, docs, kv)

	err := p.Ingest(context.Background(), "doc1", "tenant1", "/tmp/doc1.pdf", "doc1.pdf", 1)
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(docs.statuses) == 0 || docs.statuses[len(docs.statuses)-1] != domain.DocumentFailed {
		t.Fatalf("final status = %v, want Failed", docs.statuses)
	}
	if docs.errMsgs[len(docs.errMsgs)-1] == nil {
		t.Fatalf("expected error message recorded on failure")
	}
}

func TestPipelineIngestEmptyDocumentFails(t *testing.T) {
	parser := &fakeParser{elements: nil}
	docs := &fakeDocumentStore{}
	kv := &fakeKV{}
	p := newTestPipeline(t, parser, docs, kv)

	err := p.Ingest(context.Background(), "doc1", "tenant1", "/tmp/empty.pdf", "empty.pdf", 1)
	if err == nil {
		t.Fatalf("expected error for empty document")
	}
	if docs.statuses[len(docs.statuses)-1] != domain.DocumentFailed {
		t.Fatalf("final status = %v, want Failed", docs.statuses)
	}
}
