package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/arshiii08/windbot/internal/api"
	"github.com/arshiii08/windbot/internal/config"
	"github.com/arshiii08/windbot/internal/contextlog"
	"github.com/arshiii08/windbot/internal/llm"
	"github.com/arshiii08/windbot/internal/model"
	"github.com/arshiii08/windbot/internal/pipeline"
	"github.com/arshiii08/windbot/internal/slots"
	"github.com/arshiii08/windbot/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the windbot server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		mcpEnabled, _ := cmd.Flags().GetBool("mcp")
		return runServer(mcpEnabled)
	},
}

func init() {
	serveCmd.Flags().Bool("mcp", false, "also expose the pipeline as MCP tools over stdio")
}

func runServer(mcpEnabled bool) error {
	fmt.Fprintf(os.Stderr, "windbot version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open storage.
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	// Load the classifier artifact.
	classifier, err := model.Load(cfg.Storage.ModelPath)
	if err != nil {
		return fmt.Errorf("loading classifier: %w", err)
	}
	slog.Info("classifier loaded", "path", cfg.Storage.ModelPath, "features", len(classifier.Features()))

	// Build the reasoning pipeline.
	client := llm.NewClientWithBaseURL(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.BaseURL)
	extractor := slots.NewExtractor(client)
	summarizer := contextlog.NewSummarizer(store)
	orch := pipeline.New(extractor, store, classifier, summarizer, client, store)

	handler := api.NewHandler(api.Deps{
		Pipeline: orch,
		Turns:    store,
		Token:    cfg.Auth.APIToken,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Optionally expose the same pipeline as MCP tools (stdio transport).
	if mcpEnabled {
		mcpSrv := api.NewMCPServer(api.MCPDeps{Pipeline: orch})
		stdioSrv := server.NewStdioServer(mcpSrv)
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
		}()
		slog.Info("MCP server started (stdio transport)")
	}

	// Start server in a goroutine.
	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "windbot listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for signal or server error.
	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown with timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
