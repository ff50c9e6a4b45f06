package embedding

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wrenware/pulse/internal/llm"
	"github.com/wrenware/pulse/pkg/types"
)

// countingClient wraps an EmbeddingClient and counts Embed calls.
type countingClient struct {
	inner llm.EmbeddingClient
	calls atomic.Int32
}

func (c *countingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	return c.inner.Embed(ctx, text)
}

func (c *countingClient) GetModel() string { return c.inner.GetModel() }

// wrongDimClient always returns a vector of the wrong length.
type wrongDimClient struct{}

func (wrongDimClient) Embed(ctx context.Context, text string) ([]float32, error) {
	return make([]float32, 3), nil
}

func (wrongDimClient) GetModel() string { return "wrong-dim" }

func TestEmbedDeterministic(t *testing.T) {
	g, err := NewGenerator(llm.NewStaticEmbedder(64), 64)
	require.NoError(t, err)

	a, err := g.Embed(context.Background(), "morning resting heart rate")
	require.NoError(t, err)
	b, err := g.Embed(context.Background(), "morning resting heart rate")
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.Equal(t, a, b)
}

func TestEmbedMemoizes(t *testing.T) {
	client := &countingClient{inner: llm.NewStaticEmbedder(16)}
	g, err := NewGenerator(client, 16)
	require.NoError(t, err)

	_, err = g.Embed(context.Background(), "sleep quality")
	require.NoError(t, err)

	// ristretto admits asynchronously; give the buffered write a moment.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, ok := g.memo.Get("sleep quality"); ok {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	_, err = g.Embed(context.Background(), "sleep quality")
	require.NoError(t, err)
	assert.LessOrEqual(t, client.calls.Load(), int32(2))

	before := client.calls.Load()
	if _, ok := g.memo.Get("sleep quality"); ok {
		_, err = g.Embed(context.Background(), "sleep quality")
		require.NoError(t, err)
		assert.Equal(t, before, client.calls.Load(), "memoized call must not reach the client")
	}
}

func TestEmbedDimensionEnforced(t *testing.T) {
	g, err := NewGenerator(wrongDimClient{}, 384)
	require.NoError(t, err)

	_, err = g.Embed(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestCanonicalRecordTextKnownShape(t *testing.T) {
	v := types.MetricValue{Kind: types.KindSleep, Sleep: &types.SleepValue{DurationHours: 7.5, Score: 88}}

	got := CanonicalRecordText("sleep", v, "oura")
	assert.Equal(t, "Metric type: sleep Source: oura duration_hours: 7.5 deep_hours: 0 rem_hours: 0 score: 88", got)
}

func TestCanonicalRecordTextGenericIsOrderIndependent(t *testing.T) {
	a := types.GenericValue(map[string]interface{}{"mood": "good", "energy": 7, "stress": 2})
	b := types.GenericValue(map[string]interface{}{"stress": 2, "mood": "good", "energy": 7})

	// Identical payloads built in different orders serialize identically.
	for i := 0; i < 20; i++ {
		assert.Equal(t,
			CanonicalRecordText("wellbeing", a, "manual"),
			CanonicalRecordText("wellbeing", b, "manual"))
	}
}

func TestEmbedRecordMatchesEmbedOfCanonicalText(t *testing.T) {
	g, err := NewGenerator(llm.NewStaticEmbedder(32), 32)
	require.NoError(t, err)

	v := types.GenericValue(map[string]interface{}{"steps": 9000})
	fromRecord, err := g.EmbedRecord(context.Background(), "activity", v, "fitbit")
	require.NoError(t, err)

	fromText, err := g.Embed(context.Background(), CanonicalRecordText("activity", v, "fitbit"))
	require.NoError(t, err)
	assert.Equal(t, fromText, fromRecord)
}
