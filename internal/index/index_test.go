package index

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wrenware/pulse/internal/embedding"
)

// axisVector returns a unit vector along the given axis.
func axisVector(dim, axis int) []float32 {
	v := make([]float32, dim)
	v[axis] = 1
	return v
}

func newTestIndex(t *testing.T, dim int) *Index {
	t.Helper()
	ix, err := New(dim)
	require.NoError(t, err)
	return ix
}

func TestUpsertIdempotent(t *testing.T) {
	ix := newTestIndex(t, 4)
	rec := Record{ID: "r1", OwnerID: "u1", Category: "sleep", Vector: axisVector(4, 0)}

	require.NoError(t, ix.Upsert(rec))
	require.NoError(t, ix.Upsert(rec))
	assert.Equal(t, 1, ix.Len())
}

func TestUpsertRejectsWrongDimension(t *testing.T) {
	ix := newTestIndex(t, 4)
	err := ix.Upsert(Record{ID: "r1", OwnerID: "u1", Vector: axisVector(8, 0)})
	assert.ErrorIs(t, err, embedding.ErrDimensionMismatch)
}

func TestSearchNeverCrossesOwners(t *testing.T) {
	ix := newTestIndex(t, 4)
	require.NoError(t, ix.Upsert(Record{ID: "a", OwnerID: "alice", Category: "sleep", Vector: axisVector(4, 0)}))
	require.NoError(t, ix.Upsert(Record{ID: "b", OwnerID: "bob", Category: "sleep", Vector: axisVector(4, 0)}))

	res, err := ix.Search(Query{OwnerID: "alice", Vector: axisVector(4, 0)})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "a", res[0].Record.ID)
}

func TestSearchCategoryFilter(t *testing.T) {
	ix := newTestIndex(t, 4)
	require.NoError(t, ix.Upsert(Record{ID: "s1", OwnerID: "u1", Category: "sleep", Vector: axisVector(4, 0)}))
	require.NoError(t, ix.Upsert(Record{ID: "a1", OwnerID: "u1", Category: "activity", Vector: axisVector(4, 0)}))

	res, err := ix.Search(Query{OwnerID: "u1", Category: "activity", Vector: axisVector(4, 0)})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "a1", res[0].Record.ID)
}

func TestSearchDateRangeFilter(t *testing.T) {
	ix := newTestIndex(t, 4)
	day := func(d int) time.Time { return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC) }
	for d := 1; d <= 10; d++ {
		require.NoError(t, ix.Upsert(Record{
			ID: fmt.Sprintf("r%d", d), OwnerID: "u1", Category: "sleep",
			Timestamp: day(d), Vector: axisVector(4, 0),
		}))
	}

	res, err := ix.Search(Query{
		OwnerID: "u1", Vector: axisVector(4, 0),
		After: day(4), Before: day(6), Limit: 100,
	})
	require.NoError(t, err)
	assert.Len(t, res, 3) // days 4, 5, 6 inclusive
}

func TestSearchMaxDistanceThreshold(t *testing.T) {
	ix := newTestIndex(t, 2)
	require.NoError(t, ix.Upsert(Record{ID: "near", OwnerID: "u1", Vector: []float32{1, 0}}))
	require.NoError(t, ix.Upsert(Record{ID: "far", OwnerID: "u1", Vector: []float32{0, 1}}))

	maxDist := 0.3 // similarity >= 0.7
	res, err := ix.Search(Query{OwnerID: "u1", Vector: []float32{1, 0}, MaxDistance: &maxDist})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "near", res[0].Record.ID)
}

func TestSearchAscendingAndDeterministic(t *testing.T) {
	ix := newTestIndex(t, 3)
	require.NoError(t, ix.Upsert(Record{ID: "exact", OwnerID: "u1", Vector: []float32{1, 0, 0}}))
	require.NoError(t, ix.Upsert(Record{ID: "close", OwnerID: "u1", Vector: []float32{0.9, 0.1, 0}}))
	require.NoError(t, ix.Upsert(Record{ID: "off", OwnerID: "u1", Vector: []float32{0, 1, 0}}))

	var firstOrder []string
	for i := 0; i < 5; i++ {
		res, err := ix.Search(Query{OwnerID: "u1", Vector: []float32{1, 0, 0}})
		require.NoError(t, err)

		order := make([]string, len(res))
		for j, r := range res {
			order[j] = r.Record.ID
			if j > 0 {
				assert.GreaterOrEqual(t, r.Distance, res[j-1].Distance)
			}
		}
		if i == 0 {
			firstOrder = order
			assert.Equal(t, []string{"exact", "close", "off"}, order)
		} else {
			assert.Equal(t, firstOrder, order)
		}
	}
}

func TestSearchEmptyOwnerYieldsEmptySlice(t *testing.T) {
	ix := newTestIndex(t, 4)
	res, err := ix.Search(Query{OwnerID: "ghost", Vector: axisVector(4, 0)})
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestRemoveUnknownIsNoop(t *testing.T) {
	ix := newTestIndex(t, 4)
	ix.Remove("u1", "missing")
	assert.Equal(t, 0, ix.Len())
}

func TestRemoveDropsFromResults(t *testing.T) {
	ix := newTestIndex(t, 4)
	require.NoError(t, ix.Upsert(Record{ID: "r1", OwnerID: "u1", Vector: axisVector(4, 0)}))
	ix.Remove("u1", "r1")

	res, err := ix.Search(Query{OwnerID: "u1", Vector: axisVector(4, 0)})
	require.NoError(t, err)
	assert.Empty(t, res)
}

// TestANNFindsExactDuplicate pushes one owner past the ANN threshold and
// checks that graph-backed search still surfaces an exact match first.
func TestANNFindsExactDuplicate(t *testing.T) {
	const dim = 8
	ix := newTestIndex(t, dim)

	emb := func(seed int) []float32 {
		v := make([]float32, dim)
		for i := range v {
			v[i] = float32((seed*31+i*17)%997) / 997
		}
		return v
	}

	for i := 0; i < annThreshold+64; i++ {
		require.NoError(t, ix.Upsert(Record{
			ID: fmt.Sprintf("r%d", i), OwnerID: "u1", Category: "sleep", Vector: emb(i),
		}))
	}

	target := emb(123)
	res, err := ix.Search(Query{OwnerID: "u1", Vector: target, Limit: 5})
	require.NoError(t, err)
	require.NotEmpty(t, res)
	assert.Equal(t, "r123", res[0].Record.ID)
	assert.InDelta(t, 0, res[0].Distance, 1e-5)
}

// TestANNHonorsFilters verifies filtered queries stay correct after the
// graph kicks in (the exact-scan fallback must cover starved candidates).
func TestANNHonorsFilters(t *testing.T) {
	const dim = 8
	ix := newTestIndex(t, dim)

	emb := func(seed int) []float32 {
		v := make([]float32, dim)
		for i := range v {
			v[i] = float32((seed*13+i*7)%991) / 991
		}
		return v
	}

	for i := 0; i < annThreshold+32; i++ {
		cat := "activity"
		if i%50 == 0 {
			cat = "rare"
		}
		require.NoError(t, ix.Upsert(Record{
			ID: fmt.Sprintf("r%d", i), OwnerID: "u1", Category: cat, Vector: emb(i),
		}))
	}

	res, err := ix.Search(Query{OwnerID: "u1", Category: "rare", Vector: emb(0), Limit: 100})
	require.NoError(t, err)
	for _, r := range res {
		assert.Equal(t, "rare", r.Record.Category)
	}
	assert.NotEmpty(t, res)
}
