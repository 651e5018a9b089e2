package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/orbit/internal/api"
	"github.com/hyperengineering/orbit/internal/worker"
)

// Version is set at build time via ldflags: -ldflags "-X main.Version=1.0.0"
var Version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:          "orbit",
	Short:        "Orbit - personal task assistant",
	Long:         "Serves the Orbit API and runs the daily and snapshot workers.",
	SilenceUsage: true,
	RunE:         serve,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Config file path (overrides ORBIT_CONFIG_PATH)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(digestCmd)
}

func serve(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	slog.Info("configuration loaded")

	logger := newLogger(os.Stdout, cfg.Log)
	slog.SetDefault(logger)
	slog.Info("logger initialized", "level", cfg.Log.Level)

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}

	handler := api.NewHandler(a.assistant, a.store, a.uploader, a.oracle.ModelName(), cfg.Auth.APIKey, Version)
	router := api.NewRouter(handler, cfg.CORS.AllowedOrigins)
	slog.Info("router initialized")

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout),
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout),
	}

	var wg sync.WaitGroup
	snapshotWorker := worker.NewSnapshotWorker(a.store, a.uploader, time.Duration(cfg.Worker.SnapshotInterval))
	dailyWorker := worker.NewDailyRunWorker(a.store, a.assistant,
		time.Duration(cfg.Worker.DailyInterval), cfg.Worker.DailyConcurrency)
	startWorker(ctx, &wg, "snapshot", snapshotWorker.Run)
	startWorker(ctx, &wg, "daily-run", dailyWorker.Run)

	go func() {
		slog.Info("server starting", "address", addr)
		// ErrServerClosed is the expected result of Shutdown
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutdown initiated")

	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout))
	defer shutdownCancel()

	// Drain in-flight requests, then wait for workers, then close the store
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	wg.Wait()

	if err := a.Close(); err != nil {
		slog.Error("store close error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

// startWorker launches a background worker goroutine that respects context
// cancellation. Workers are tracked via WaitGroup for graceful shutdown.
func startWorker(ctx context.Context, wg *sync.WaitGroup, name string, fn func(ctx context.Context)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		slog.Info("worker started", "worker", name)
		fn(ctx)
		slog.Info("worker stopped", "worker", name)
	}()
}
