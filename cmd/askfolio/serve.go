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

	"askfolio/internal/answer"
	"askfolio/internal/api"
	"askfolio/internal/config"
	"askfolio/internal/embedding"
	"askfolio/internal/indexer"
	"askfolio/internal/llm"
	"askfolio/internal/retrieval"
	"askfolio/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the askfolio server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

// services bundles the wired subsystem for the server and for direct
// CLI commands that bypass HTTP.
type services struct {
	store   *storage.Store
	engine  *retrieval.Engine
	synth   *answer.Synthesizer
	indexer *indexer.Indexer
}

func buildServices(cfg config.Config, store *storage.Store) services {
	client := llm.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.EmbedModel, cfg.OpenAI.ChatModel)

	// A nil client means no credentials: the embedding service and
	// synthesizer run entirely on their local fallbacks.
	var remote embedding.Provider
	var completer answer.Completer
	if client != nil {
		remote = embedding.NewRemote(client)
		completer = client
	}

	embedSvc := embedding.NewService(remote, cfg.OpenAI.EmbedModel, nil, nil)
	return services{
		store:   store,
		engine:  retrieval.NewEngine(embedSvc, store, store),
		synth:   answer.NewSynthesizer(completer, nil),
		indexer: indexer.NewIndexer(embedSvc, store, indexer.Options{
			Dimensions:    cfg.OpenAI.Dimensions,
			MaxChunkChars: cfg.Index.MaxChunkChars,
			MaxChunks:     cfg.Index.MaxChunks,
			Workers:       cfg.Index.Workers,
		}),
	}
}

func setupLogging(cfg config.Config) {
	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "askfolio version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg)

	if cfg.OpenAI.APIKey == "" {
		printWarning("no OpenAI API key configured; running on local fallbacks only")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	svc := buildServices(cfg, store)
	handler := api.NewHandler(api.Deps{
		Store:   svc.store,
		Engine:  svc.engine,
		Synth:   svc.synth,
		Indexer: svc.indexer,
		Token:   cfg.Server.APIToken,
		TopK:    cfg.Retrieval.TopK,
	})

	// MCP server on stdio transport, alongside HTTP.
	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Store:   svc.store,
		Engine:  svc.engine,
		Synth:   svc.synth,
		Indexer: svc.indexer,
		TopK:    cfg.Retrieval.TopK,
	})
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "askfolio listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
