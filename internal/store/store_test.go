package store

import (
	"context"
	"time"

	"github.com/hyperengineering/orbit/internal/types"
)

// mockStore is a compile-time check that the Store interface can be implemented.
type mockStore struct{}

var _ Store = (*mockStore)(nil)

func (m *mockStore) ActiveGoal(ctx context.Context, userID string) (*types.Goal, error) {
	return nil, nil
}
func (m *mockStore) GetGoal(ctx context.Context, id string) (*types.Goal, error) {
	return nil, nil
}
func (m *mockStore) ListActiveGoals(ctx context.Context) ([]types.Goal, error) {
	return nil, nil
}
func (m *mockStore) CreateGoal(ctx context.Context, goal types.NewGoal) (*types.Goal, error) {
	return nil, nil
}
func (m *mockStore) PendingTasks(ctx context.Context, goalID string) ([]types.Task, error) {
	return nil, nil
}
func (m *mockStore) TopPendingTask(ctx context.Context, goalID string) (*types.Task, error) {
	return nil, nil
}
func (m *mockStore) GetTask(ctx context.Context, id string) (*types.Task, error) {
	return nil, nil
}
func (m *mockStore) InsertTasks(ctx context.Context, tasks []types.NewTask) ([]types.Task, error) {
	return nil, nil
}
func (m *mockStore) RescheduleTask(ctx context.Context, id string, due time.Time, priority types.Priority) error {
	return nil
}
func (m *mockStore) CompleteTask(ctx context.Context, id string) error {
	return nil
}
func (m *mockStore) UpcomingReminders(ctx context.Context, userID string, after time.Time, limit int) ([]types.Reminder, error) {
	return nil, nil
}
func (m *mockStore) InsertReminder(ctx context.Context, reminder types.NewReminder) (*types.Reminder, error) {
	return nil, nil
}
func (m *mockStore) RecentMemory(ctx context.Context, userID string, limit int) ([]types.MemoryEntry, error) {
	return nil, nil
}
func (m *mockStore) AppendMemory(ctx context.Context, entry types.NewMemoryEntry) (*types.MemoryEntry, error) {
	return nil, nil
}
func (m *mockStore) AppendRunLog(ctx context.Context, userID string, summary types.RunSummary) (*types.RunLog, error) {
	return nil, nil
}
func (m *mockStore) RecentRuns(ctx context.Context, userID string, limit int) ([]types.RunLog, error) {
	return nil, nil
}
func (m *mockStore) GetProfile(ctx context.Context, userID string) (*types.Profile, error) {
	return nil, nil
}
func (m *mockStore) UpsertProfile(ctx context.Context, userID, email string) (*types.Profile, error) {
	return nil, nil
}
func (m *mockStore) GetStats(ctx context.Context) (*types.StoreStats, error) {
	return nil, nil
}
func (m *mockStore) GenerateSnapshot(ctx context.Context) (string, error) {
	return "", nil
}
func (m *mockStore) Close() error {
	return nil
}
