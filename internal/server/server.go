// Package server provides HTTP server initialization and lifecycle management
// for the Chronicle status API.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/inklet/chronicle/internal/config"
	"github.com/inklet/chronicle/internal/engine"
	"github.com/inklet/chronicle/internal/storage"
	"github.com/inklet/chronicle/pkg/types"
	"github.com/inklet/chronicle/web/handlers"
)

// securityHeadersMiddleware adds security headers to all HTTP responses.
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// Start initializes and starts the HTTP server. It wires the engine's
// extraction callbacks into the WebSocket event feed. Returns the actual
// address being listened on (useful for testing with port 0) and the hub.
// The server shuts down when ctx is cancelled.
func Start(ctx context.Context, cfg *config.Config, store storage.Store, eng *engine.Engine) (string, *handlers.EventHub, error) {
	mux := http.NewServeMux()

	wsHub := handlers.NewEventHub()
	go wsHub.Run()

	eng.OnExtractionQueued(func(job *engine.ExtractionJob) {
		wsHub.Broadcast(handlers.ExtractionEvent{
			Type:         handlers.EventExtractionQueued,
			ManuscriptID: job.ManuscriptID,
			Chapter:      job.Chapter,
			JobID:        job.ID,
			Timestamp:    time.Now(),
		})
	})
	eng.OnExtractionComplete(func(job *engine.ExtractionJob, batch *types.UpdateBatch) {
		wsHub.Broadcast(handlers.ExtractionEvent{
			Type:         handlers.EventExtractionComplete,
			ManuscriptID: job.ManuscriptID,
			Chapter:      job.Chapter,
			JobID:        job.ID,
			EmptyBatch:   batch.IsEmpty(),
			Timestamp:    time.Now(),
		})
	})

	rateLimiter := handlers.NewRateLimiter(10.0, 20)

	statsHandler := handlers.NewStatsHandler(eng, eng)
	conflictsHandler := handlers.NewConflictsHandler(eng)
	chapterHandler := handlers.NewChapterHandler(eng)
	memoryHandler := handlers.NewMemoryHandler(store)

	apiMux := http.NewServeMux()
	apiMux.HandleFunc("GET /api/manuscripts/{id}/stats", statsHandler.GetStats)
	apiMux.HandleFunc("GET /api/manuscripts/{id}/conflicts", conflictsHandler.GetConflicts)
	apiMux.HandleFunc("POST /api/manuscripts/{id}/chapters", chapterHandler.PostChapter)
	apiMux.HandleFunc("POST /api/manuscripts/{id}/plan", chapterHandler.PostPlan)
	apiMux.HandleFunc("GET /api/manuscripts/{id}/characters", memoryHandler.ListCharacters)
	apiMux.HandleFunc("GET /api/manuscripts/{id}/characters/{name}", memoryHandler.GetCharacter)
	apiMux.HandleFunc("GET /api/manuscripts/{id}/cameos", memoryHandler.ListCameos)
	apiMux.HandleFunc("GET /api/manuscripts/{id}/world", memoryHandler.ListWorldEntities)
	apiMux.HandleFunc("GET /api/manuscripts/{id}/foreshadowing", memoryHandler.ListForeshadowing)
	apiMux.HandleFunc("GET /api/manuscripts/{id}/chronicle", memoryHandler.ListChronicle)
	apiMux.HandleFunc("GET /api/manuscripts/{id}/summaries", memoryHandler.ListSummaries)
	apiMux.HandleFunc("GET /api/manuscripts/{id}/protagonist", memoryHandler.GetProtagonist)

	// Health endpoint — no auth required, used by monitoring
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	// API routes require auth in production mode
	mux.Handle("/api/", handlers.RequireAuth(apiMux, cfg))

	// WebSocket event feed (origin validation handles access)
	mux.Handle("/ws", wsHub)

	handler := handlers.RateLimitMiddleware(mux, rateLimiter)
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
		return "", nil, fmt.Errorf("server: failed to listen on %s: %w", addr, err)
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
		wsHub.Stop()
	}()

	return actualAddr, wsHub, nil
}
