// Package server provides HTTP server initialization and lifecycle management
// for the Converse web API.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/scrypster/converse/internal/chat"
	"github.com/scrypster/converse/internal/config"
	"github.com/scrypster/converse/internal/llm"
	"github.com/scrypster/converse/internal/memory"
	"github.com/scrypster/converse/internal/storage"
	"github.com/scrypster/converse/web/handlers"
)

// securityHeadersMiddleware adds security headers to all HTTP responses.
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// Start initializes and starts the HTTP server.
// Returns the actual address being listened on (useful for testing with
// port 0) and the WebSocketHub for wiring event broadcasts.
//
// The model may be nil, in which case chat requests return 503 while the
// read-only endpoints keep working.
func Start(ctx context.Context, cfg *config.Config, store storage.Store, model llm.TextGenerator) (string, *handlers.WebSocketHub) {
	mux := http.NewServeMux()

	// Create WebSocket hub
	wsHub := handlers.NewWebSocketHub()
	go wsHub.Run()

	// Create rate limiter (10 req/sec, burst of 20)
	rateLimiter := handlers.NewRateLimiter(10.0, 20)

	memSvc := memory.NewService(store, model, nil, memory.Options{
		RollingSummaryMinMessages: cfg.Memory.RollingSummaryMinMessages,
		RelevantMemoryLimit:       cfg.Memory.RelevantMemoryLimit,
		CandidateFetchLimit:       cfg.Memory.CandidateFetchLimit,
	})
	chatSvc := chat.NewService(store, memSvc, model, chat.Options{
		PersistedSummaryMinMessages: cfg.Memory.PersistedSummaryMinMessages,
	})

	apiHandlers := handlers.NewAPIHandlers(store, chatSvc, memSvc, model, cfg, wsHub)

	// API routes (require auth in production mode)
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			apiHandlers.HandleChat(w, r)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	apiMux.HandleFunc("/api/conversations", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			apiHandlers.ListConversations(w, r)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	apiMux.HandleFunc("/api/conversations/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			apiHandlers.GetConversationMessages(w, r)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	apiMux.HandleFunc("/api/memory", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			apiHandlers.GetMemory(w, r)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	apiMux.HandleFunc("/api/usage", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			apiHandlers.GetUsage(w, r)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	// Health endpoint - no auth required, used by monitoring
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		apiHandlers.HandleHealth(w, r)
	})

	// Wrap API routes with auth middleware
	mux.Handle("/api/", handlers.RequireAuth(apiMux, cfg))

	// WebSocket endpoint (no auth required - origin validation handles security)
	mux.Handle("/ws", wsHub)

	// Static files
	basePath := findBasePath()
	fs := http.FileServer(http.Dir(basePath + "/web/static"))
	mux.Handle("/static/", http.StripPrefix("/static/", fs))

	// Index page
	indexPath := basePath + "/web/templates/index.html"
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, indexPath)
	})

	// Wrap entire server with rate limiting, then security headers
	handler := handlers.RateLimitMiddleware(mux, rateLimiter)
	handler = securityHeadersMiddleware(handler)

	// Create server with security timeouts
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatalf("Failed to listen on %s: %v", addr, err)
	}

	actualAddr := listener.Addr().String()

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("Server error: %v", err)
		}
	}()

	// Handle graceful shutdown
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
		wsHub.Stop()
	}()

	return actualAddr, wsHub
}

// findBasePath returns the base path for the project.
// When running from cmd/converse-web, we need to go up two directories.
// When running tests, we may already be in the project root.
func findBasePath() string {
	// Try current directory first (for when running from project root)
	if _, err := os.Stat("web/templates/index.html"); err == nil {
		return "."
	}

	// Try parent directory (for when running from cmd/)
	if _, err := os.Stat("../web/templates/index.html"); err == nil {
		return ".."
	}

	// Try two levels up (for when running from cmd/converse-web/)
	if _, err := os.Stat("../../web/templates/index.html"); err == nil {
		return "../.."
	}

	// Default to current directory
	return "."
}
