// Package main provides the MCP server entry point for the LexAI document library.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/lexai-study/lexai-retrieval/internal/app"
	"github.com/lexai-study/lexai-retrieval/internal/config"
	mcpserver "github.com/lexai-study/lexai-retrieval/internal/mcp"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: search standard locations)")
	flag.Parse()

	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// stdout carries the stdio MCP stream, so logs go to stderr.
	logger := app.NewLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)

	// Create context that cancels on SIGTERM/SIGINT
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	server := mcpserver.NewServer(mcpserver.Config{
		Library:   a.Library,
		Generator: a.Generator,
		Defaults:  cfg.QueryDefaults(),
		Logger:    logger,
	})

	httpServer := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Server.Port,
		Handler:           mcpserver.NewMux(server, a.Store, nil),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	if cfg.Server.HTTP {
		// HTTP mode: serve MCP over HTTP for remote clients
		logger.Info("Starting HTTP server", "addr", httpServer.Addr, "mcp", "/mcp", "health", "/health")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
		return
	}

	// Stdio mode: run MCP server over stdin/stdout for local clients.
	// The health endpoint still runs in the background for local testing.
	go func() {
		logger.Info("Starting health server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("Health server error", "error", err)
		}
	}()

	logger.Info("Starting LexAI MCP server (stdio mode)")
	if err := server.Run(ctx); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
}
