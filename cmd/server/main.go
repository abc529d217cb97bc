package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dgallion1/docsum/internal/api"
	"github.com/dgallion1/docsum/internal/checkpoint"
	"github.com/dgallion1/docsum/internal/completion"
	"github.com/dgallion1/docsum/internal/config"
	"github.com/dgallion1/docsum/internal/pipeline"
)

func main() {
	godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.ValidateServer(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, opts)
	if cfg.Log.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	log := slog.New(handler)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := checkpoint.Open(ctx, cfg.CheckpointOptions(log))
	if err != nil {
		log.Error("open checkpoint store", "backend", cfg.Checkpoint.Backend, "error", err)
		os.Exit(1)
	}

	stats := completion.NewLLMStats(cfg.LLM.StatsWindow)
	client, err := completion.Stack(ctx, cfg.ProviderConfig(), cfg.RetryPolicy(), stats, log)
	if err != nil {
		log.Error("create completion client", "provider", cfg.LLM.Provider, "error", err)
		os.Exit(1)
	}

	runner := pipeline.NewRunner(pipeline.NewSummarizer(client, store, log), cfg.RunnerConfig(), log)
	runner.Start(ctx)

	srv := api.NewServer(runner, client, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown. Stopping the runner cancels in-flight jobs; their
	// checkpoints keep every finished chunk.
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		runner.Stop()
		if err := store.Close(); err != nil {
			log.Warn("close checkpoint store", "error", err)
		}
	}()

	log.Info("starting docsum",
		"port", cfg.Server.Port,
		"provider", client.Provider(),
		"model", client.Model(),
		"checkpoint_backend", cfg.Checkpoint.Backend)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	<-done
	log.Info("stopped")
}
