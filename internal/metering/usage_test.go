package metering

import (
	"context"
	"testing"
	"time"

	"github.com/connexus-ai/ragbox-backend/internal/domain"
)

type fakeKV struct {
	counters map[string]int64
	ttls     map[string]time.Duration
	deleted  []string
}

func newFakeKV() *fakeKV {
	return &fakeKV{counters: map[string]int64{}, ttls: map[string]time.Duration{}}
}

func (f *fakeKV) Get(ctx context.Context, key string) ([]byte, bool, error) { return nil, false, nil }
func (f *fakeKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return nil
}
func (f *fakeKV) Delete(ctx context.Context, keys ...string) error {
	f.deleted = append(f.deleted, keys...)
	for _, k := range keys {
		delete(f.counters, k)
	}
	return nil
}
func (f *fakeKV) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	f.counters[key] += delta
	return f.counters[key], nil
}
func (f *fakeKV) Expire(ctx context.Context, key string, ttl time.Duration) error {
	f.ttls[key] = ttl
	return nil
}

type fakeBillingStore struct {
	events []*domain.BillingEvent
}

func (f *fakeBillingStore) Insert(ctx context.Context, event *domain.BillingEvent) error {
	f.events = append(f.events, event)
	return nil
}

func TestRecordMessageAccumulatesAndRefreshesTTL(t *testing.T) {
	kv := newFakeKV()
	billing := &fakeBillingStore{}
	u := New(kv, billing, 30*time.Minute)
	ctx := context.Background()

	if err := u.RecordMessage(ctx, "sess1", "tenant1", 100, 50); err != nil {
		t.Fatalf("RecordMessage: %v", err)
	}
	if err := u.RecordMessage(ctx, "sess1", "tenant1", 20, 10); err != nil {
		t.Fatalf("RecordMessage: %v", err)
	}

	if kv.counters[inputTokensKey("sess1")] != 120 {
		t.Fatalf("input tokens = %d, want 120", kv.counters[inputTokensKey("sess1")])
	}
	if kv.counters[outputTokensKey("sess1")] != 60 {
		t.Fatalf("output tokens = %d, want 60", kv.counters[outputTokensKey("sess1")])
	}
	if kv.counters[messageCountKey("sess1")] != 2 {
		t.Fatalf("message count = %d, want 2", kv.counters[messageCountKey("sess1")])
	}
	if kv.ttls[inputTokensKey("sess1")] != 60*time.Minute {
		t.Fatalf("ttl = %v, want 2x idle ttl", kv.ttls[inputTokensKey("sess1")])
	}
}

func TestCloseSessionFlushesAndDeletesCounters(t *testing.T) {
	kv := newFakeKV()
	billing := &fakeBillingStore{}
	u := New(kv, billing, 30*time.Minute)
	ctx := context.Background()

	u.RecordMessage(ctx, "sess1", "tenant1", 100, 50)

	if err := u.CloseSession(ctx, "sess1", "tenant1", EventResolved); err != nil {
		t.Fatalf("CloseSession: %v", err)
	}
	if len(billing.events) != 1 {
		t.Fatalf("expected one billing event, got %d", len(billing.events))
	}
	ev := billing.events[0]
	if ev.TotalInputTokens != 100 || ev.TotalOutputTokens != 50 || ev.TotalMessages != 1 {
		t.Fatalf("unexpected totals: %+v", ev)
	}
	if ev.EventType != EventResolved {
		t.Fatalf("event type = %v, want resolved", ev.EventType)
	}
	if _, ok := kv.counters[inputTokensKey("sess1")]; ok && kv.counters[inputTokensKey("sess1")] != 0 {
		t.Fatalf("expected counter deleted, got %d", kv.counters[inputTokensKey("sess1")])
	}
}

func TestCloseSessionWithNoPriorUsageProducesZeroCountEvent(t *testing.T) {
	kv := newFakeKV()
	billing := &fakeBillingStore{}
	u := New(kv, billing, 30*time.Minute)
	ctx := context.Background()

	if err := u.CloseSession(ctx, "sess-never-used", "tenant1", EventTimeout); err != nil {
		t.Fatalf("CloseSession: %v", err)
	}
	if len(billing.events) != 1 {
		t.Fatalf("expected one billing event, got %d", len(billing.events))
	}
	ev := billing.events[0]
	if ev.TotalInputTokens != 0 || ev.TotalOutputTokens != 0 || ev.TotalMessages != 0 {
		t.Fatalf("expected zero-count event, got %+v", ev)
	}
}
