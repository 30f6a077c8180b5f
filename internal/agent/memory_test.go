package agent

import (
	"context"
	"testing"
	"time"

	"github.com/connexus-ai/ragbox-backend/internal/domain"
)

type fakeKV struct {
	data map[string][]byte
	ttls map[string]time.Duration
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (f *fakeKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, ok := f.data[key]
	return v, ok, nil
}
func (f *fakeKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	f.data[key] = value
	f.ttls[key] = ttl
	return nil
}
func (f *fakeKV) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.data, k)
		delete(f.ttls, k)
	}
	return nil
}
func (f *fakeKV) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	return delta, nil
}
func (f *fakeKV) Expire(ctx context.Context, key string, ttl time.Duration) error { return nil }

func TestMemoryLoadEmptyIsNilNotError(t *testing.T) {
	m := NewMemory(newFakeKV(), time.Minute)
	got := m.Load(context.Background(), "sess1")
	if got != nil {
		t.Fatalf("expected nil window for unseen session, got %v", got)
	}
}

func TestMemoryAppendAndLoadRoundTrips(t *testing.T) {
	m := NewMemory(newFakeKV(), time.Minute)
	ctx := context.Background()
	if err := m.Append(ctx, "sess1", Turn{UserMessage: "hi", AssistantMessage: "hello"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	got := m.Load(ctx, "sess1")
	if len(got) != 1 || got[0].UserMessage != "hi" {
		t.Fatalf("got %+v", got)
	}
}

func TestMemoryAppendTrimsToWindowSize(t *testing.T) {
	m := NewMemory(newFakeKV(), time.Minute)
	ctx := context.Background()
	for i := 0; i < windowSize+5; i++ {
		if err := m.Append(ctx, "sess1", Turn{UserMessage: "u", AssistantMessage: "a"}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	got := m.Load(ctx, "sess1")
	if len(got) != windowSize {
		t.Fatalf("len = %d, want %d", len(got), windowSize)
	}
}

func TestMemoryClearRemovesEntry(t *testing.T) {
	m := NewMemory(newFakeKV(), time.Minute)
	ctx := context.Background()
	m.Append(ctx, "sess1", Turn{UserMessage: "hi", AssistantMessage: "hello"})
	if err := m.Clear(ctx, "sess1"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if got := m.Load(ctx, "sess1"); got != nil {
		t.Fatalf("expected empty window after Clear, got %v", got)
	}
}

func TestRenderFormatsUserAndAssistantLines(t *testing.T) {
	turns := []Turn{{UserMessage: "hi", AssistantMessage: "hello"}}
	got := Render(turns)
	want := string(domain.RoleUser) + ": hi\n" + string(domain.RoleAssistant) + ": hello\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRenderEmptyIsEmptyString(t *testing.T) {
	if got := Render(nil); got != "" {
		t.Fatalf("got %q, want empty", got)
	}
}
