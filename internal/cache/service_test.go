package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wrenware/pulse/internal/storage"
	"github.com/wrenware/pulse/pkg/types"
)

// fakeCacheStore is an in-memory CacheStore keyed by owner+key.
type fakeCacheStore struct {
	mu      sync.Mutex
	entries map[string]types.CacheEntry
	failing bool
}

func newFakeCacheStore() *fakeCacheStore {
	return &fakeCacheStore{entries: make(map[string]types.CacheEntry)}
}

func (f *fakeCacheStore) GetFresh(ctx context.Context, ownerID, key string, now time.Time) (*types.CacheEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return nil, errors.New("store down")
	}
	e, ok := f.entries[ownerID+"|"+key]
	if !ok || !e.Fresh(now) {
		return nil, storage.ErrNotFound
	}
	cp := e
	return &cp, nil
}

func (f *fakeCacheStore) PutEntry(ctx context.Context, entry *types.CacheEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errors.New("store down")
	}
	f.entries[entry.OwnerID+"|"+entry.Key] = *entry
	return nil
}

func (f *fakeCacheStore) InvalidateEntries(ctx context.Context, ownerID, endpoint, timeFrame string, now time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for k, e := range f.entries {
		if e.OwnerID != ownerID || !e.Fresh(now) {
			continue
		}
		if endpoint != "" && e.Endpoint != endpoint {
			continue
		}
		if timeFrame != "" && e.TimeFrame != timeFrame {
			continue
		}
		e.ExpiresAt = now
		f.entries[k] = e
		n++
	}
	return n, nil
}

func newTestCache(t *testing.T, store storage.CacheStore, ttl time.Duration) (*Service, *time.Time) {
	t.Helper()
	svc, err := NewService(store, ttl)
	require.NoError(t, err)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	return svc, &now
}

func TestMakeKeyDeterministicAcrossOrdering(t *testing.T) {
	a := MakeKey("insights", "last_week", map[string]any{
		"query":        "how is my sleep",
		"metric_types": []string{"sleep", "activity"},
	})
	b := MakeKey("insights", "last_week", map[string]any{
		"metric_types": []string{"activity", "sleep"},
		"query":        "how is my sleep",
	})
	assert.Equal(t, a, b)
	assert.Len(t, a, 64) // sha256 hex
}

func TestMakeKeySeparatesRequests(t *testing.T) {
	base := MakeKey("insights", "last_week", map[string]any{"query": "sleep"})

	assert.NotEqual(t, base, MakeKey("insights", "last_month", map[string]any{"query": "sleep"}))
	assert.NotEqual(t, base, MakeKey("summary", "last_week", map[string]any{"query": "sleep"}))
	assert.NotEqual(t, base, MakeKey("insights", "last_week", map[string]any{"query": "activity"}))
}

func TestGetPutRoundTrip(t *testing.T) {
	svc, _ := newTestCache(t, newFakeCacheStore(), time.Hour)
	ctx := context.Background()

	_, ok := svc.Get(ctx, "u1", "k1")
	assert.False(t, ok)

	svc.Put(ctx, "u1", "insights", "last_week", "k1", []byte(`{"answer":42}`))

	payload, ok := svc.Get(ctx, "u1", "k1")
	require.True(t, ok)
	assert.JSONEq(t, `{"answer":42}`, string(payload))
}

func TestGetExpiresAfterTTL(t *testing.T) {
	svc, now := newTestCache(t, newFakeCacheStore(), time.Hour)
	ctx := context.Background()

	svc.Put(ctx, "u1", "insights", "last_week", "k1", []byte("x"))

	*now = now.Add(59 * time.Minute)
	_, ok := svc.Get(ctx, "u1", "k1")
	assert.True(t, ok)

	*now = now.Add(2 * time.Minute)
	_, ok = svc.Get(ctx, "u1", "k1")
	assert.False(t, ok, "expired entries read as misses")
}

func TestGetStorageFailureIsAMiss(t *testing.T) {
	store := newFakeCacheStore()
	svc, _ := newTestCache(t, store, time.Hour)
	ctx := context.Background()

	svc.Put(ctx, "u1", "insights", "last_week", "k1", []byte("x"))
	store.failing = true

	_, ok := svc.Get(ctx, "u1", "k1")
	assert.False(t, ok)
}

func TestInvalidateFilters(t *testing.T) {
	svc, _ := newTestCache(t, newFakeCacheStore(), time.Hour)
	ctx := context.Background()

	svc.Put(ctx, "u1", "insights", "last_week", "k1", []byte("a"))
	svc.Put(ctx, "u1", "insights", "last_month", "k2", []byte("b"))
	svc.Put(ctx, "u1", "summary", "last_week", "k3", []byte("c"))
	svc.Put(ctx, "u2", "insights", "last_week", "k4", []byte("d"))

	n, err := svc.Invalidate(ctx, "u1", "insights", "last_week")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, ok := svc.Get(ctx, "u1", "k1")
	assert.False(t, ok)
	_, ok = svc.Get(ctx, "u1", "k2")
	assert.True(t, ok)
	_, ok = svc.Get(ctx, "u2", "k4")
	assert.True(t, ok, "invalidation never crosses owners")

	// Empty filters expire everything fresh for the owner.
	n, err = svc.Invalidate(ctx, "u1", "", "")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
