package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperengineering/orbit/internal/agent"
	"github.com/hyperengineering/orbit/internal/assistant"
	"github.com/hyperengineering/orbit/internal/config"
	"github.com/hyperengineering/orbit/internal/notify"
	"github.com/hyperengineering/orbit/internal/oracle"
	"github.com/hyperengineering/orbit/internal/snapshot"
	"github.com/hyperengineering/orbit/internal/store"
)

// app holds the wired components shared by the serve command and the
// one-shot subcommands.
type app struct {
	cfg       *config.Config
	store     *store.SQLiteStore
	oracle    oracle.Oracle
	assistant *assistant.Service
	uploader  snapshot.Uploader
}

// loadConfig reads the file named by --config, or falls back to the
// ORBIT_CONFIG_PATH lookup.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	return config.Load()
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	slog.Info("store initialized", "path", cfg.Database.Path)

	o, err := oracle.New(ctx, cfg.Oracle)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create oracle: %w", err)
	}
	slog.Info("oracle initialized", "provider", cfg.Oracle.Provider, "model", o.ModelName())

	uploader, err := snapshot.NewUploader(cfg.SnapshotStorage, snapshotName(cfg.Database.Path))
	if err != nil {
		db.Close()
		return nil, err
	}

	opts := []agent.Option{
		agent.WithLimits(cfg.Agent.ReminderLimit, cfg.Agent.MemoryLimit),
		agent.WithLogger(logger),
	}
	if cfg.Oracle.SystemPrompt != "" {
		opts = append(opts, agent.WithSystemPrompt(cfg.Oracle.SystemPrompt))
	}
	loop := agent.NewLoop(db, o, opts...)

	notifier := notify.New(cfg.Notify, logger)
	svc := assistant.New(db, loop, notifier,
		assistant.WithRunTimeout(time.Duration(cfg.Agent.RunTimeout)),
		assistant.WithLogger(logger),
	)

	return &app{
		cfg:       cfg,
		store:     db,
		oracle:    o,
		assistant: svc,
		uploader:  uploader,
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// snapshotName derives the snapshot object prefix from the database file name.
func snapshotName(dbPath string) string {
	return strings.TrimSuffix(filepath.Base(dbPath), filepath.Ext(dbPath))
}

func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
