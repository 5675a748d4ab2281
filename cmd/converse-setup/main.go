// Command converse-setup initializes a Converse installation: it creates
// the data directory, applies the database schema, and verifies the
// configured model provider is reachable.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/scrypster/converse/internal/config"
	"github.com/scrypster/converse/internal/llm"
	"github.com/scrypster/converse/internal/storage/postgres"
	"github.com/scrypster/converse/internal/storage/sqlite"
)

func main() {
	verify := flag.Bool("verify", false, "verify an existing installation instead of initializing")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if *verify {
		os.Exit(runVerify(cfg))
	}
	os.Exit(runSetup(cfg))
}

// runSetup initializes storage and reports what was configured.
func runSetup(cfg *config.Config) int {
	fmt.Println("Converse Setup")
	fmt.Println("==============")
	fmt.Println()

	switch cfg.Storage.StorageEngine {
	case "sqlite", "":
		if err := os.MkdirAll(cfg.Storage.DataPath, 0o755); err != nil {
			fmt.Printf("  [FAIL] create data directory %s: %v\n", cfg.Storage.DataPath, err)
			return 1
		}
		dbPath := cfg.Storage.DataPath + "/converse.db"
		store, err := sqlite.NewStore(dbPath)
		if err != nil {
			fmt.Printf("  [FAIL] initialize database: %v\n", err)
			return 1
		}
		store.Close()
		fmt.Printf("  [OK] SQLite database ready at %s\n", dbPath)
	case "postgres":
		store, err := postgres.NewStore(cfg.Storage.PostgresDSN)
		if err != nil {
			fmt.Printf("  [FAIL] initialize database: %v\n", err)
			return 1
		}
		store.Close()
		fmt.Println("  [OK] PostgreSQL schema applied")
	case "memory":
		fmt.Println("  [OK] in-memory engine needs no setup")
	default:
		fmt.Printf("  [FAIL] unknown storage engine: %s\n", cfg.Storage.StorageEngine)
		return 1
	}

	if status := checkModel(cfg); status != "" {
		fmt.Println(status)
	}

	fmt.Println()
	fmt.Println("Setup complete. Start the server with: converse-web")
	return 0
}

// runVerify performs a health check of an existing installation.
func runVerify(cfg *config.Config) int {
	fmt.Println("Converse Setup Verification")
	fmt.Println("===========================")
	fmt.Println()

	ok := true

	dbPath := cfg.Storage.DataPath + "/converse.db"
	if cfg.Storage.StorageEngine == "sqlite" || cfg.Storage.StorageEngine == "" {
		if _, err := os.Stat(dbPath); err != nil {
			fmt.Printf("  [FAIL] database missing at %s (run converse-setup first)\n", dbPath)
			ok = false
		} else {
			fmt.Printf("  [OK] database found at %s\n", dbPath)
		}
	}

	if status := checkModel(cfg); status != "" {
		fmt.Println(status)
	}

	if !ok {
		return 1
	}
	fmt.Println()
	fmt.Println("All checks passed.")
	return 0
}

// checkModel reports whether the configured provider has credentials and,
// for reachable providers, whether a trivial completion succeeds.
func checkModel(cfg *config.Config) string {
	model, err := llm.NewTextGenerator(cfg.LLM)
	if err != nil {
		return fmt.Sprintf("  [FAIL] LLM configuration: %v", err)
	}
	if model == nil {
		return fmt.Sprintf("  [WARN] no %s API key configured, summaries will use the lexical fallback", cfg.LLM.Provider)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if _, err := model.Complete(ctx, "Reply with the single word: ok"); err != nil {
		return fmt.Sprintf("  [WARN] model %s not reachable: %v", model.GetModel(), err)
	}
	return fmt.Sprintf("  [OK] model %s responding", model.GetModel())
}
