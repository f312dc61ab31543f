// jmcomic-crawler/main.go
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MiaowFISH/jmcomic-crawler/album"
	"github.com/MiaowFISH/jmcomic-crawler/api"
	"github.com/MiaowFISH/jmcomic-crawler/cache"
	"github.com/MiaowFISH/jmcomic-crawler/config"
	"github.com/MiaowFISH/jmcomic-crawler/fetch"
	"github.com/MiaowFISH/jmcomic-crawler/pack"
	"github.com/MiaowFISH/jmcomic-crawler/task"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	// 1. Load configuration and prepare the data layout
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	for _, dir := range []string{cfg.WorkDir, cfg.ArtifactsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Error("failed to create data directory", "dir", dir, "error", err)
			os.Exit(1)
		}
	}

	// 2. Initialize collaborators, leaf first
	workspaces := album.NewStore(cfg.WorkDir)
	fetcher := fetch.NewClient(cfg, logger)
	coordinator := album.NewCoordinator(workspaces, fetcher, cfg.FollowerWait, logger)
	packager := pack.New(cfg.ArtifactsDir, pack.Naming{
		Rule:          cfg.NameRule,
		HashLength:    cfg.NameHashLength,
		RandomLength:  cfg.NameRandomLength,
		RandomCharset: cfg.NameRandomCharset,
		DateFormat:    cfg.NameDateFormat,
	}, logger)
	index := cache.NewStore(cfg.ArtifactsDir)

	// 3. Initialize the task manager
	taskManager := task.NewManager(cfg, coordinator, packager, index, logger)

	// 4. Set up router and server
	router := api.SetupRouter(taskManager, cfg)
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// 5. Start background services and HTTP server
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	taskManager.Start(ctx)

	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("listen failed", "error", err)
			os.Exit(1)
		}
	}()

	// 6. Wait for interrupt signal for graceful shutdown
	<-ctx.Done()

	stop()
	logger.Info("shutting down gracefully, press Ctrl+C again to force")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server exiting")
}
