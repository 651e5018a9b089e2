package worker

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hyperengineering/orbit/internal/agent"
	"github.com/hyperengineering/orbit/internal/types"
)

// GoalLister lists the goals the daily run covers.
type GoalLister interface {
	ListActiveGoals(ctx context.Context) ([]types.Goal, error)
}

// Assistant is the part of the application service the daily worker drives.
type Assistant interface {
	Run(ctx context.Context, req types.RunRequest) (*agent.Result, error)
	DailyDigest(ctx context.Context) (types.DigestResult, error)
}

// DailySummary reports one daily cycle.
type DailySummary struct {
	Users     int
	Succeeded int
	Failed    int
	Digest    types.DigestResult
}

// DailyRunWorker runs the agent loop for every user with an open goal once
// per interval, then sends the daily digest.
type DailyRunWorker struct {
	goals       GoalLister
	assistant   Assistant
	interval    time.Duration
	concurrency int
}

// NewDailyRunWorker creates a daily worker. concurrency bounds how many
// users are processed at once.
func NewDailyRunWorker(goals GoalLister, assistant Assistant, interval time.Duration, concurrency int) *DailyRunWorker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &DailyRunWorker{
		goals:       goals,
		assistant:   assistant,
		interval:    interval,
		concurrency: concurrency,
	}
}

// Run starts the worker loop. The first cycle runs after one interval, not
// on start.
func (w *DailyRunWorker) Run(ctx context.Context) {
	slog.Info("worker started",
		"component", "worker",
		"worker", "daily-run",
		"action", "worker_started",
		"interval", w.interval.String(),
	)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped",
				"component", "worker",
				"worker", "daily-run",
				"action", "worker_stopped",
				"reason", "context_cancelled",
			)
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce executes one daily cycle.
func (w *DailyRunWorker) RunOnce(ctx context.Context) DailySummary {
	var summary DailySummary

	goals, err := w.goals.ListActiveGoals(ctx)
	if err != nil {
		slog.Error("failed to list goals for daily run",
			"component", "worker",
			"worker", "daily-run",
			"action", "list_goals_failed",
			"error", err,
		)
		return summary
	}

	users := uniqueUsers(goals)
	summary.Users = len(users)

	var succeeded, failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(w.concurrency)

	for _, userID := range users {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			// One user's failure must not stop the others
			if _, err := w.assistant.Run(ctx, types.RunRequest{UserID: userID, RunType: types.RunDaily}); err != nil {
				failed.Add(1)
				if ctx.Err() == nil {
					slog.Warn("daily run failed",
						"component", "worker",
						"worker", "daily-run",
						"action", "run_failed",
						"user_id", userID,
						"error", err,
					)
				}
				return nil
			}
			succeeded.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	summary.Succeeded = int(succeeded.Load())
	summary.Failed = int(failed.Load())

	if ctx.Err() != nil {
		return summary
	}

	digest, err := w.assistant.DailyDigest(ctx)
	if err != nil {
		slog.Warn("daily digest failed",
			"component", "worker",
			"worker", "daily-run",
			"action", "digest_failed",
			"error", err,
		)
	}
	summary.Digest = digest

	slog.Info("daily cycle completed",
		"component", "worker",
		"worker", "daily-run",
		"action", "cycle_complete",
		"users", summary.Users,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"emails_sent", digest.EmailsSent,
	)
	return summary
}

// uniqueUsers returns the goal owners in first-seen order.
func uniqueUsers(goals []types.Goal) []string {
	seen := make(map[string]struct{}, len(goals))
	users := make([]string, 0, len(goals))
	for _, g := range goals {
		if _, ok := seen[g.UserID]; ok {
			continue
		}
		seen[g.UserID] = struct{}{}
		users = append(users, g.UserID)
	}
	return users
}
