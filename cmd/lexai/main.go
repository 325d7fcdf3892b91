// Package main provides the lexai CLI for indexing and querying legal documents.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/lexai-study/lexai-retrieval/internal/app"
	"github.com/lexai-study/lexai-retrieval/internal/config"
)

var (
	configPath string
	ownerID    string
)

var rootCmd = &cobra.Command{
	Use:   "lexai",
	Short: "Legal document chunking and semantic retrieval",
	Long: `CLI for indexing legal documents and querying them.

Environment variables:
  OPENAI_API_KEY  OpenAI API key for embeddings and answers
  QDRANT_HOST     Qdrant hostname (default: localhost)
  QDRANT_PORT     Qdrant gRPC port (default: 6334)
  DATABASE_URL    Postgres for document records and the pgvector store (optional)
  OLLAMA_BASE_URL Ollama server for the ollama embedding backend
  LEXAI_OWNER     Default value of --owner`,
	SilenceUsage: true,
}

func init() {
	defaultOwner := os.Getenv("LEXAI_OWNER")
	if defaultOwner == "" {
		defaultOwner = "local"
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default: search standard locations)")
	rootCmd.PersistentFlags().StringVar(&ownerID, "owner", defaultOwner, "owner id that scopes every operation")

	rootCmd.AddCommand(ingestCmd, searchCmd, askCmd, showCmd, chunksCmd, deleteCmd, statsCmd)
}

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

// setup loads configuration and builds the application. The returned
// context is cancelled on SIGINT/SIGTERM; call the cleanup func when done.
func setup() (context.Context, *app.App, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	a, err := app.Build(ctx, cfg, app.NewLogger(cfg.Log, os.Stderr))
	if err != nil {
		cancel()
		return nil, nil, nil, fmt.Errorf("failed to start: %w", err)
	}

	return ctx, a, func() {
		_ = a.Close()
		cancel()
	}, nil
}
