// Package server provides the HTTP surface and lifecycle management for the
// Pulse retrieval engine.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/wrenware/pulse/internal/config"
)

// Start wires the routes and starts the HTTP server. It returns the actual
// listen address (useful for tests binding port 0) and the event hub for
// broadcasting engine activity. The server shuts down gracefully when ctx
// is canceled.
func Start(ctx context.Context, cfg *config.Config, h *Handlers) (string, *EventHub, error) {
	events := h.events
	go events.Run()

	mux := http.NewServeMux()

	apiMux := http.NewServeMux()
	apiMux.HandleFunc("/api/insights", methodHandler(http.MethodPost, h.PostInsights))
	apiMux.HandleFunc("/api/cache/invalidate", methodHandler(http.MethodPost, h.PostInvalidate))
	apiMux.HandleFunc("/api/metrics", methodHandler(http.MethodPost, h.PostMetric))
	apiMux.HandleFunc("/api/memory", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			h.GetMemory(w, r)
		case http.MethodPost:
			h.PostMemory(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	// Health endpoint stays outside auth for monitoring.
	mux.HandleFunc("/api/health", methodHandler(http.MethodGet, h.GetHealth))
	mux.Handle("/api/", RequireAuth(apiMux, cfg))
	mux.Handle("/api/events", events)

	rateLimiter := NewRateLimiter(cfg.Security.RateLimitRPS, cfg.Security.RateLimitBurst)
	handler := RateLimitMiddleware(mux, rateLimiter)
	handler = securityHeadersMiddleware(handler)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, fmt.Errorf("server: listen on %s: %w", addr, err)
	}
	actualAddr := listener.Addr().String()

	go func() {
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("server: serve error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("server: shutdown error: %v", err)
		}
		events.Stop()
	}()

	return actualAddr, events, nil
}

// methodHandler restricts a handler to one HTTP method.
func methodHandler(method string, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		fn(w, r)
	}
}
