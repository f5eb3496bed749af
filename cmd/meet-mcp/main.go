package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/DevRickLin/feishu-meetbot/internal/logging"
	"github.com/DevRickLin/feishu-meetbot/internal/mcp"
)

// This MCP server exposes meeting administration to agents over stdio.
// Tool calls are relayed to the meetbot admin HTTP API.

const defaultAPIURL = "http://127.0.0.1:8080"

var version = "dev"

func main() {
	_ = godotenv.Load()

	// stdout carries the protocol
	logging.InitStructureLogConfig(os.Stderr, os.Getenv("DEBUG") == "true")

	apiURL := os.Getenv("MEETBOT_API_URL")
	if apiURL == "" {
		apiURL = defaultAPIURL
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := mcp.NewServer(mcp.NewClient(apiURL), version)
	slog.Info("meet-mcp started", "api_url", apiURL)
	if err := server.Run(ctx); err != nil && ctx.Err() == nil {
		slog.Error("MCP server error", logging.ErrKey, err)
		os.Exit(1)
	}
}
