package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticEmbedderDeterministic(t *testing.T) {
	e := NewStaticEmbedder(384)

	a, err := e.Embed(context.Background(), "resting heart rate 54")
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), "resting heart rate 54")
	require.NoError(t, err)

	assert.Len(t, a, 384)
	assert.Equal(t, a, b)

	c, err := e.Embed(context.Background(), "resting heart rate 55")
	require.NoError(t, err)
	assert.NotEqual(t, a, c, "different text must embed differently")
}

func TestStaticEmbedderDefaultDimension(t *testing.T) {
	e := NewStaticEmbedder(0)
	v, err := e.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Len(t, v, 384)
}

func TestStaticGenerator(t *testing.T) {
	g := &StaticGenerator{Response: "fixed"}
	out, err := g.Complete(context.Background(), "any prompt")
	require.NoError(t, err)
	assert.Equal(t, "fixed", out)
}

func TestCircuitBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreakerWithConfig(CircuitBreakerConfig{
		MaxFailures:          3,
		Timeout:              time.Minute,
		HalfOpenMaxSuccesses: 2,
	})
	ctx := context.Background()
	boom := errors.New("model down")

	for i := 0; i < 3; i++ {
		_, err := cb.Execute(ctx, func() (interface{}, error) { return nil, boom })
		assert.ErrorIs(t, err, boom)
	}
	assert.Equal(t, "open", cb.State())

	// While open, calls are rejected without reaching the function.
	called := false
	_, err := cb.Execute(ctx, func() (interface{}, error) {
		called = true
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreakerStaysClosedOnSuccess(t *testing.T) {
	cb := NewCircuitBreaker()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		res, err := cb.Execute(ctx, func() (interface{}, error) { return "ok", nil })
		require.NoError(t, err)
		assert.Equal(t, "ok", res)
	}
	assert.Equal(t, "closed", cb.State())

	m := cb.Metrics()
	assert.Equal(t, uint64(5), m.TotalRequests)
	assert.Equal(t, uint64(5), m.TotalSuccesses)
	assert.Zero(t, m.TotalFailures)
}

func TestCircuitBreakerCanceledContext(t *testing.T) {
	cb := NewCircuitBreaker()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := cb.Execute(ctx, func() (interface{}, error) { return "ok", nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFactorySelection(t *testing.T) {
	gen, err := NewTextGenerator(FactoryConfig{Provider: "static"})
	require.NoError(t, err)
	assert.Equal(t, "static", gen.GetModel())

	_, err = NewTextGenerator(FactoryConfig{Provider: "anthropic"})
	assert.Error(t, err, "anthropic without API key must fail")

	_, err = NewTextGenerator(FactoryConfig{Provider: "carrier-pigeon"})
	assert.Error(t, err)

	emb, err := NewEmbeddingClient(FactoryConfig{EmbeddingProvider: "static", EmbeddingDimension: 64})
	require.NoError(t, err)
	v, err := emb.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Len(t, v, 64)
}
