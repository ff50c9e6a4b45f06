package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/wrenware/pulse/internal/cache"
	"github.com/wrenware/pulse/internal/embedding"
	"github.com/wrenware/pulse/internal/engine"
	"github.com/wrenware/pulse/internal/llm"
	"github.com/wrenware/pulse/internal/memory"
	"github.com/wrenware/pulse/internal/storage"
	"github.com/wrenware/pulse/pkg/types"
)

// insightsEndpoint is the cache endpoint tag for the insights route.
const insightsEndpoint = "insights"

// Handlers bundles the HTTP handlers with their collaborators.
type Handlers struct {
	store     storage.Store
	assembler *engine.Assembler
	memories  *memory.Service
	embedder  *embedding.Generator
	generator llm.TextGenerator
	responses *cache.Service
	events    *EventHub
}

// NewHandlers creates the handler set.
func NewHandlers(store storage.Store, assembler *engine.Assembler, memories *memory.Service,
	embedder *embedding.Generator, generator llm.TextGenerator, responses *cache.Service, events *EventHub) *Handlers {
	return &Handlers{
		store:     store,
		assembler: assembler,
		memories:  memories,
		embedder:  embedder,
		generator: generator,
		responses: responses,
		events:    events,
	}
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: write response: %v", err)
	}
}

// writeError maps an error to an HTTP status and a JSON error body.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, storage.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, embedding.ErrUnavailable), errors.Is(err, storage.ErrUnavailable):
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// insightsRequest is the POST /api/insights body.
type insightsRequest struct {
	UserID      string                   `json:"user_id"`
	Query       string                   `json:"query"`
	MetricTypes []string                 `json:"metric_types,omitempty"`
	TimeFrame   string                   `json:"time_frame,omitempty"`
	Protocols   []types.ProtocolSnapshot `json:"protocols,omitempty"`
}

// insightsResponse is the POST /api/insights reply.
type insightsResponse struct {
	Response string           `json:"response"`
	Cached   bool             `json:"cached"`
	Debug    engine.DebugInfo `json:"debug"`
}

// PostInsights assembles retrieval context for the query, generates an
// insight, and caches the result. Identical requests inside the TTL window
// are served from the cache.
func (h *Handlers) PostInsights(w http.ResponseWriter, r *http.Request) {
	var req insightsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: decode body: %v", storage.ErrInvalidInput, err))
		return
	}
	if req.UserID == "" || req.Query == "" {
		writeError(w, fmt.Errorf("%w: user_id and query are required", storage.ErrInvalidInput))
		return
	}

	key := cache.MakeKey(insightsEndpoint, req.TimeFrame, map[string]any{
		"query":        req.Query,
		"metric_types": req.MetricTypes,
	})

	if payload, ok := h.responses.Get(r.Context(), req.UserID, key); ok {
		var resp insightsResponse
		if err := json.Unmarshal(payload, &resp); err == nil {
			resp.Cached = true
			writeJSON(w, http.StatusOK, resp)
			return
		}
		log.Printf("server: discarding undecodable cached payload for %s", req.UserID)
	}

	assembled, err := h.assembler.Assemble(r.Context(), engine.Request{
		OwnerID:    req.UserID,
		Query:      req.Query,
		Categories: req.MetricTypes,
		TimeFrame:  types.TimeFrame(req.TimeFrame),
		Protocols:  req.Protocols,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	h.events.Broadcast(Event{
		Type:    "context.assembled",
		OwnerID: req.UserID,
		Detail: map[string]any{
			"categories": assembled.Debug.CategoriesSearched,
			"records":    assembled.Debug.RecordsConsidered,
		},
	})

	prompt := buildInsightPrompt(req.Query, assembled.Render())
	answer, err := h.generator.Complete(r.Context(), prompt)
	if err != nil {
		writeError(w, fmt.Errorf("generate insight: %w", err))
		return
	}

	resp := insightsResponse{Response: answer, Debug: assembled.Debug}
	if payload, err := json.Marshal(resp); err == nil {
		h.responses.Put(r.Context(), req.UserID, insightsEndpoint, req.TimeFrame, key, payload)
	}

	h.events.Broadcast(Event{Type: "insight.generated", OwnerID: req.UserID})
	writeJSON(w, http.StatusOK, resp)
}

// buildInsightPrompt frames the rendered context and the user's question.
func buildInsightPrompt(query, context string) string {
	return fmt.Sprintf(
		"You are a health insights assistant. Use only the data below to answer.\n\n%s\n\nQuestion: %s",
		context, query)
}

// invalidateRequest is the POST /api/cache/invalidate body.
type invalidateRequest struct {
	UserID    string `json:"user_id"`
	Endpoint  string `json:"endpoint,omitempty"`
	TimeFrame string `json:"time_frame,omitempty"`
}

// PostInvalidate force-expires the user's cached responses matching the
// optional endpoint and time-frame filters.
func (h *Handlers) PostInvalidate(w http.ResponseWriter, r *http.Request) {
	var req invalidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: decode body: %v", storage.ErrInvalidInput, err))
		return
	}
	if req.UserID == "" {
		writeError(w, fmt.Errorf("%w: user_id is required", storage.ErrInvalidInput))
		return
	}

	n, err := h.responses.Invalidate(r.Context(), req.UserID, req.Endpoint, req.TimeFrame)
	if err != nil {
		writeError(w, err)
		return
	}

	h.events.Broadcast(Event{
		Type:    "cache.invalidated",
		OwnerID: req.UserID,
		Detail:  map[string]any{"expired": n},
	})
	writeJSON(w, http.StatusOK, map[string]int{"expired": n})
}

// metricRequest is the POST /api/metrics body.
type metricRequest struct {
	ID         string            `json:"id,omitempty"`
	UserID     string            `json:"user_id"`
	MetricType string            `json:"metric_type"`
	Source     string            `json:"source,omitempty"`
	Date       time.Time         `json:"date"`
	Value      types.MetricValue `json:"value"`
}

// PostMetric ingests one health metric record: the canonical serialization
// is embedded and the record stored with its vector.
func (h *Handlers) PostMetric(w http.ResponseWriter, r *http.Request) {
	var req metricRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: decode body: %v", storage.ErrInvalidInput, err))
		return
	}
	if req.UserID == "" || req.MetricType == "" {
		writeError(w, fmt.Errorf("%w: user_id and metric_type are required", storage.ErrInvalidInput))
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Date.IsZero() {
		req.Date = time.Now().UTC()
	}

	vec, err := h.embedder.EmbedRecord(r.Context(), req.MetricType, req.Value, req.Source)
	if err != nil {
		writeError(w, err)
		return
	}

	rec := &types.MetricRecord{
		ID:         req.ID,
		OwnerID:    req.UserID,
		MetricType: req.MetricType,
		Source:     req.Source,
		Date:       req.Date,
		Value:      req.Value,
	}
	if err := h.store.UpsertRecord(r.Context(), rec, vec); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": req.ID})
}

// memoryRequest is the POST /api/memory body.
type memoryRequest struct {
	UserID  string `json:"user_id"`
	Content string `json:"content"`
}

// PostMemory appends one insight to the user's consolidated memory.
func (h *Handlers) PostMemory(w http.ResponseWriter, r *http.Request) {
	var req memoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: decode body: %v", storage.ErrInvalidInput, err))
		return
	}

	doc, err := h.memories.Append(r.Context(), req.UserID, req.Content, time.Time{})
	if err != nil {
		writeError(w, err)
		return
	}

	h.events.Broadcast(Event{
		Type:    "memory.appended",
		OwnerID: req.UserID,
		Detail:  map[string]any{"entries": len(doc.Entries)},
	})
	writeJSON(w, http.StatusOK, map[string]int{"entries": len(doc.Entries)})
}

// GetMemory returns the user's memory entries in chronological order.
func (h *Handlers) GetMemory(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, fmt.Errorf("%w: user_id is required", storage.ErrInvalidInput))
		return
	}

	entries, err := h.memories.Entries(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// GetHealth reports service liveness. No auth required.
func (h *Handlers) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"model":  h.embedder.Model(),
	})
}
