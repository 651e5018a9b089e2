package store

import (
	"context"
	"time"

	"github.com/hyperengineering/orbit/internal/types"
)

// Store defines the interface contract for all assistant state operations.
// It is the state repository over goals, tasks, reminders, agent memory,
// agent runs and profiles.
type Store interface {
	ActiveGoal(ctx context.Context, userID string) (*types.Goal, error)
	GetGoal(ctx context.Context, id string) (*types.Goal, error)
	ListActiveGoals(ctx context.Context) ([]types.Goal, error)
	CreateGoal(ctx context.Context, goal types.NewGoal) (*types.Goal, error)

	PendingTasks(ctx context.Context, goalID string) ([]types.Task, error)
	TopPendingTask(ctx context.Context, goalID string) (*types.Task, error)
	GetTask(ctx context.Context, id string) (*types.Task, error)
	InsertTasks(ctx context.Context, tasks []types.NewTask) ([]types.Task, error)
	RescheduleTask(ctx context.Context, id string, due time.Time, priority types.Priority) error
	CompleteTask(ctx context.Context, id string) error

	UpcomingReminders(ctx context.Context, userID string, after time.Time, limit int) ([]types.Reminder, error)
	InsertReminder(ctx context.Context, reminder types.NewReminder) (*types.Reminder, error)

	RecentMemory(ctx context.Context, userID string, limit int) ([]types.MemoryEntry, error)
	AppendMemory(ctx context.Context, entry types.NewMemoryEntry) (*types.MemoryEntry, error)

	AppendRunLog(ctx context.Context, userID string, summary types.RunSummary) (*types.RunLog, error)
	RecentRuns(ctx context.Context, userID string, limit int) ([]types.RunLog, error)

	GetProfile(ctx context.Context, userID string) (*types.Profile, error)
	UpsertProfile(ctx context.Context, userID, email string) (*types.Profile, error)

	GetStats(ctx context.Context) (*types.StoreStats, error)
	GenerateSnapshot(ctx context.Context) (string, error)
	Close() error
}
