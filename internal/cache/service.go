// Package cache stores AI responses keyed by a deterministic digest of the
// request, so identical requests inside the TTL window are served without
// recomputation. Misses are always safe: a cache failure degrades to a
// recompute, never to an error surfaced to the caller.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/wrenware/pulse/internal/storage"
	"github.com/wrenware/pulse/pkg/types"
)

// DefaultTTL is how long a cached response stays fresh.
const DefaultTTL = 24 * time.Hour

// Service wraps a CacheStore with deterministic keying and TTL policy.
type Service struct {
	store storage.CacheStore
	ttl   time.Duration

	// now is injectable for tests; defaults to time.Now.
	now func() time.Time
}

// NewService creates a cache service. ttl <= 0 selects DefaultTTL.
func NewService(store storage.CacheStore, ttl time.Duration) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("cache: store is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{store: store, ttl: ttl, now: time.Now}, nil
}

// MakeKey derives the deterministic cache key for a request. Two requests
// that differ only in parameter ordering (map iteration, metric type lists)
// produce the same key: slice values are sorted and the JSON encoding emits
// object keys in sorted order.
func MakeKey(endpoint, timeFrame string, params map[string]any) string {
	canonical := make(map[string]any, len(params)+2)
	for k, v := range params {
		canonical[k] = canonicalValue(v)
	}
	canonical["endpoint"] = endpoint
	canonical["time_frame"] = timeFrame

	// encoding/json marshals map keys in sorted order, which is the
	// property the key depends on.
	raw, err := json.Marshal(canonical)
	if err != nil {
		// Only unmarshalable values (chans, funcs) can land here; fall back
		// to a key that still isolates the endpoint.
		raw = []byte(fmt.Sprintf("%s|%s|unmarshalable", endpoint, timeFrame))
	}

	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// canonicalValue normalizes order-sensitive values: string slices are
// sorted, nested maps recurse.
func canonicalValue(v any) any {
	switch t := v.(type) {
	case []string:
		sorted := make([]string, len(t))
		copy(sorted, t)
		sort.Strings(sorted)
		return sorted
	case []any:
		strs := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return t
			}
			strs = append(strs, s)
		}
		sort.Strings(strs)
		return strs
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = canonicalValue(e)
		}
		return out
	default:
		return v
	}
}

// Get returns the cached payload for the key, or (nil, false) on a miss.
// Storage errors are logged and reported as misses.
func (s *Service) Get(ctx context.Context, ownerID, key string) ([]byte, bool) {
	entry, err := s.store.GetFresh(ctx, ownerID, key, s.now())
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Printf("cache: lookup failed (treating as miss): %v", err)
		}
		return nil, false
	}
	return entry.Payload, true
}

// Put stores a response under the key with the service TTL. Storage errors
// are logged, not returned: a failed write only costs a future recompute.
func (s *Service) Put(ctx context.Context, ownerID, endpoint, timeFrame, key string, payload []byte) {
	now := s.now().UTC()
	entry := &types.CacheEntry{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Endpoint:  endpoint,
		TimeFrame: timeFrame,
		Key:       key,
		Payload:   payload,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.store.PutEntry(ctx, entry); err != nil {
		log.Printf("cache: store failed (response not cached): %v", err)
	}
}

// Invalidate force-expires the owner's fresh entries matching the optional
// endpoint and timeFrame filters (empty string matches all). Returns the
// number of entries expired.
func (s *Service) Invalidate(ctx context.Context, ownerID, endpoint, timeFrame string) (int, error) {
	n, err := s.store.InvalidateEntries(ctx, ownerID, endpoint, timeFrame, s.now())
	if err != nil {
		return 0, fmt.Errorf("cache: invalidate: %w", err)
	}
	return n, nil
}
