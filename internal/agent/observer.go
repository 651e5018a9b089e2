package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/hyperengineering/orbit/internal/store"
	"github.com/hyperengineering/orbit/internal/types"
)

const (
	metaTimeLayout = "2006-01-02T15:04:05.000Z07:00"
	readableLayout = "Mon Jan 02 2006"
)

// Snapshot is a point-in-time read of a user's situation. Slices are never
// nil so they always encode as JSON arrays.
type Snapshot struct {
	Goal      *types.Goal         `json:"userGoal"`
	Tasks     []types.Task        `json:"activeTasks"`
	Reminders []types.Reminder    `json:"activeReminders"`
	Memory    []types.MemoryEntry `json:"recentMemory"`
	Meta      Meta                `json:"meta"`
}

// Meta carries the observation time in machine and human form.
type Meta struct {
	Now          string `json:"now"`
	ReadableDate string `json:"readableDate"`
}

// Observer assembles Snapshots from the store.
type Observer struct {
	store         store.Store
	reminderLimit int
	memoryLimit   int
	now           func() time.Time
	logger        *slog.Logger
}

// NewObserver creates an Observer.
func NewObserver(s store.Store, opts ...Option) *Observer {
	o := buildOptions(opts)
	return &Observer{
		store:         s,
		reminderLimit: o.reminderLimit,
		memoryLimit:   o.memoryLimit,
		now:           o.now,
		logger:        o.logger.With("component", "observer"),
	}
}

// Observe reads the user's goal, its pending tasks, upcoming reminders and
// recent memory. Sub-reads run concurrently and a failed read degrades to an
// empty value. Observe fails only when nothing could be read.
func (o *Observer) Observe(ctx context.Context, userID string) (*Snapshot, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: empty user id", ErrStorageUnavailable)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	now := o.now().UTC()
	snap := &Snapshot{
		Tasks:     []types.Task{},
		Reminders: []types.Reminder{},
		Memory:    []types.MemoryEntry{},
		Meta: Meta{
			Now:          now.Format(metaTimeLayout),
			ReadableDate: now.Format(readableLayout),
		},
	}

	var goalErr, reminderErr, memoryErr error
	var wg conc.WaitGroup

	wg.Go(func() {
		goal, err := o.store.ActiveGoal(ctx, userID)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				goalErr = err
			}
			return
		}
		snap.Goal = goal

		tasks, err := o.store.PendingTasks(ctx, goal.ID)
		if err != nil {
			o.logger.Warn("task read failed", "user_id", userID, "goal_id", goal.ID, "error", err)
			return
		}
		snap.Tasks = tasks
	})

	wg.Go(func() {
		reminders, err := o.store.UpcomingReminders(ctx, userID, now, o.reminderLimit)
		if err != nil {
			reminderErr = err
			return
		}
		snap.Reminders = reminders
	})

	wg.Go(func() {
		memory, err := o.store.RecentMemory(ctx, userID, o.memoryLimit)
		if err != nil {
			memoryErr = err
			return
		}
		snap.Memory = memory
	})

	wg.Wait()

	if goalErr != nil && reminderErr != nil && memoryErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, errors.Join(goalErr, reminderErr, memoryErr))
	}
	if goalErr != nil {
		o.logger.Warn("goal read failed", "user_id", userID, "error", goalErr)
	}
	if reminderErr != nil {
		o.logger.Warn("reminder read failed", "user_id", userID, "error", reminderErr)
	}
	if memoryErr != nil {
		o.logger.Warn("memory read failed", "user_id", userID, "error", memoryErr)
	}

	// Stores may return nil for an empty result
	if snap.Tasks == nil {
		snap.Tasks = []types.Task{}
	}
	if snap.Reminders == nil {
		snap.Reminders = []types.Reminder{}
	}
	if snap.Memory == nil {
		snap.Memory = []types.MemoryEntry{}
	}

	return snap, nil
}
