package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wrenware/pulse/internal/cache"
	"github.com/wrenware/pulse/internal/config"
	"github.com/wrenware/pulse/internal/embedding"
	"github.com/wrenware/pulse/internal/engine"
	"github.com/wrenware/pulse/internal/llm"
	"github.com/wrenware/pulse/internal/memory"
	"github.com/wrenware/pulse/internal/storage/sqlite"
)

// startTestServer boots a full server on an ephemeral port with the static
// providers and a temp SQLite store.
func startTestServer(t *testing.T, apiToken string) string {
	t.Helper()

	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	cfg.Server.Port = 0
	cfg.Retrieval.Dimension = 16
	cfg.Security.APIToken = apiToken
	cfg.Security.RateLimitRPS = 1000
	cfg.Security.RateLimitBurst = 1000

	store, err := sqlite.NewStore(filepath.Join(t.TempDir(), "pulse.db"), 16)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	embedder, err := embedding.NewGenerator(llm.NewStaticEmbedder(16), 16)
	require.NoError(t, err)
	memories, err := memory.NewService(store, embedder, 0)
	require.NoError(t, err)
	responses, err := cache.NewService(store, time.Hour)
	require.NoError(t, err)
	assembler, err := engine.NewAssembler(store, memories, embedder, engine.Options{})
	require.NoError(t, err)

	h := NewHandlers(store, assembler, memories, embedder,
		&llm.StaticGenerator{Response: "your sleep looks stable"}, responses, NewEventHub())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	addr, _, err := Start(ctx, cfg, h)
	require.NoError(t, err)
	return "http://" + addr
}

func postJSON(t *testing.T, url, token string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestHealthEndpointNeedsNoAuth(t *testing.T) {
	base := startTestServer(t, "secret")

	resp, err := http.Get(base + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthRejectsMissingToken(t *testing.T) {
	base := startTestServer(t, "secret")

	resp := postJSON(t, base+"/api/insights", "", map[string]any{"user_id": "u1", "query": "q"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = postJSON(t, base+"/api/insights", "wrong", map[string]any{"user_id": "u1", "query": "q"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestInsightsFlowWithCaching(t *testing.T) {
	base := startTestServer(t, "")

	// Ingest a metric so the context has something to retrieve.
	resp := postJSON(t, base+"/api/metrics", "", map[string]any{
		"user_id":     "u1",
		"metric_type": "sleep",
		"source":      "oura",
		"date":        time.Now().UTC().Format(time.RFC3339),
		"value":       map[string]any{"kind": "sleep", "sleep": map[string]any{"duration_hours": 7.5, "score": 88}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	ask := map[string]any{
		"user_id":      "u1",
		"query":        "how is my sleep",
		"metric_types": []string{"sleep"},
		"time_frame":   "last_week",
	}

	resp = postJSON(t, base+"/api/insights", "", ask)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var first struct {
		Response string `json:"response"`
		Cached   bool   `json:"cached"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&first))
	resp.Body.Close()
	assert.Equal(t, "your sleep looks stable", first.Response)
	assert.False(t, first.Cached)

	// The identical request is served from the cache.
	resp = postJSON(t, base+"/api/insights", "", ask)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var second struct {
		Response string `json:"response"`
		Cached   bool   `json:"cached"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&second))
	resp.Body.Close()
	assert.True(t, second.Cached)
	assert.Equal(t, first.Response, second.Response)

	// Invalidation forces a recompute.
	resp = postJSON(t, base+"/api/cache/invalidate", "", map[string]any{"user_id": "u1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var inv struct {
		Expired int `json:"expired"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&inv))
	resp.Body.Close()
	assert.Equal(t, 1, inv.Expired)

	resp = postJSON(t, base+"/api/insights", "", ask)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var third struct {
		Cached bool `json:"cached"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&third))
	resp.Body.Close()
	assert.False(t, third.Cached)
}

func TestMemoryEndpoints(t *testing.T) {
	base := startTestServer(t, "")

	resp := postJSON(t, base+"/api/memory", "", map[string]any{
		"user_id": "u1",
		"content": "prefers evening workouts",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	getResp, err := http.Get(fmt.Sprintf("%s/api/memory?user_id=u1", base))
	require.NoError(t, err)
	defer getResp.Body.Close()
	require.Equal(t, http.StatusOK, getResp.StatusCode)

	var body struct {
		Entries []struct {
			Content string `json:"content"`
		} `json:"entries"`
	}
	require.NoError(t, json.NewDecoder(getResp.Body).Decode(&body))
	require.Len(t, body.Entries, 1)
	assert.Equal(t, "prefers evening workouts", body.Entries[0].Content)
}

func TestEventHubUnregisterAfterStop(t *testing.T) {
	h := NewEventHub()
	go h.Run()
	h.Stop()

	// A client disconnecting during shutdown must not hang on handing
	// itself back to a loop that already exited.
	done := make(chan struct{})
	go func() {
		h.unregisterClient(&eventClient{hub: h, send: make(chan []byte, 1)})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("unregister blocked after hub stop")
	}
}

func TestInsightsRejectsBadRequest(t *testing.T) {
	base := startTestServer(t, "")

	resp := postJSON(t, base+"/api/insights", "", map[string]any{"query": "no user"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
