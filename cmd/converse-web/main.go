package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/scrypster/converse/internal/config"
	"github.com/scrypster/converse/internal/llm"
	"github.com/scrypster/converse/internal/server"
	"github.com/scrypster/converse/internal/storage"
	"github.com/scrypster/converse/internal/storage/memstore"
	"github.com/scrypster/converse/internal/storage/postgres"
	"github.com/scrypster/converse/internal/storage/sqlite"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize storage
	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	// Initialize the text generator. A missing API key leaves the model nil;
	// the server still serves the read-only endpoints.
	model, err := llm.NewTextGenerator(cfg.LLM)
	if err != nil {
		log.Fatalf("Failed to initialize LLM client: %v", err)
	}
	if model == nil {
		log.Printf("No %s API key configured, chat endpoint disabled", cfg.LLM.Provider)
	}

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr, _ := server.Start(ctx, cfg, store, model)
	log.Printf("Converse running at http://%s", addr)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down gracefully...")
	cancel()
	time.Sleep(1 * time.Second) // Give time for connections to close
}

// openStore builds the configured storage engine.
func openStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.StorageEngine {
	case "sqlite", "":
		if err := os.MkdirAll(cfg.Storage.DataPath, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		return sqlite.NewStore(cfg.Storage.DataPath + "/converse.db")
	case "postgres":
		return postgres.NewStore(cfg.Storage.PostgresDSN)
	case "memory":
		return memstore.New(), nil
	default:
		return nil, fmt.Errorf("unknown storage engine: %s", cfg.Storage.StorageEngine)
	}
}
