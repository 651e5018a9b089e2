package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/hyperengineering/orbit/internal/snapshot"
)

// SnapshotStore defines the store operations needed by the snapshot worker.
type SnapshotStore interface {
	GenerateSnapshot(ctx context.Context) (string, error)
}

// SnapshotWorker generates periodic database snapshots and uploads them.
type SnapshotWorker struct {
	store    SnapshotStore
	uploader snapshot.Uploader
	interval time.Duration
}

// NewSnapshotWorker creates a worker with the given store and interval.
// The uploader is optional; if nil, snapshots stay local.
func NewSnapshotWorker(store SnapshotStore, uploader snapshot.Uploader, interval time.Duration) *SnapshotWorker {
	return &SnapshotWorker{
		store:    store,
		uploader: uploader,
		interval: interval,
	}
}

// Run starts the worker loop. Generates a snapshot immediately on start,
// then on each interval. Respects context cancellation for graceful shutdown.
func (w *SnapshotWorker) Run(ctx context.Context) {
	slog.Info("worker started",
		"component", "worker",
		"worker", "snapshot",
		"action", "worker_started",
	)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.generateSnapshot(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped",
				"component", "worker",
				"worker", "snapshot",
				"action", "worker_stopped",
				"reason", "context_cancelled",
			)
			return
		case <-ticker.C:
			w.generateSnapshot(ctx)
		}
	}
}

func (w *SnapshotWorker) generateSnapshot(ctx context.Context) {
	path, err := w.store.GenerateSnapshot(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Warn("snapshot generation failed",
			"component", "worker",
			"worker", "snapshot",
			"action", "snapshot_failed",
			"error", err,
		)
		return
	}

	if w.uploader == nil {
		return
	}

	// Upload failures are not fatal; the local snapshot remains valid
	if err := w.uploader.Upload(ctx, path); err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Warn("snapshot upload failed",
			"component", "worker",
			"worker", "snapshot",
			"action", "snapshot_upload_failed",
			"path", path,
			"error", err,
		)
		return
	}

	slog.Info("snapshot complete",
		"component", "worker",
		"worker", "snapshot",
		"action", "snapshot_complete",
		"path", path,
	)
}
