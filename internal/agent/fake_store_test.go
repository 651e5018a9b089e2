package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hyperengineering/orbit/internal/oracle"
	"github.com/hyperengineering/orbit/internal/store"
	"github.com/hyperengineering/orbit/internal/types"
)

var errBoom = errors.New("boom")

// fakeStore is an in-memory store.Store that records mutations.
type fakeStore struct {
	mu sync.Mutex

	seq       int
	goals     []types.Goal
	tasks     []types.Task
	reminders []types.Reminder
	memory    []types.MemoryEntry
	runs      []types.RunLog

	// Mutation counters
	insertTaskCalls     int
	rescheduleCalls     int
	insertReminderCalls int

	goalErr     error
	taskErr     error
	reminderErr error
	memoryErr   error
	writeErr    error
	runLogErr   error
}

var _ store.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{}
}

func (f *fakeStore) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func (f *fakeStore) mutations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.insertTaskCalls + f.rescheduleCalls + f.insertReminderCalls
}

func (f *fakeStore) addGoal(userID, title string) types.Goal {
	f.mu.Lock()
	defer f.mu.Unlock()
	g := types.Goal{
		ID:        f.nextID("goal"),
		UserID:    userID,
		Title:     title,
		Status:    types.GoalActive,
		CreatedAt: time.Date(2025, 1, 1, 0, 0, f.seq, 0, time.UTC),
	}
	f.goals = append(f.goals, g)
	return g
}

func (f *fakeStore) addTask(goalID, title string, p types.Priority) types.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := types.Task{
		ID:        f.nextID("task"),
		GoalID:    goalID,
		Title:     title,
		Priority:  p,
		Status:    types.TaskPending,
		CreatedAt: time.Date(2025, 1, 1, 0, 0, f.seq, 0, time.UTC),
	}
	f.tasks = append(f.tasks, t)
	return t
}

func (f *fakeStore) addMemory(userID, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.memory = append(f.memory, types.MemoryEntry{
		ID:         f.nextID("mem"),
		UserID:     userID,
		MemoryType: types.MemoryUserInstruction,
		Content:    content,
		CreatedAt:  time.Date(2025, 1, 1, 0, 0, f.seq, 0, time.UTC),
	})
}

func (f *fakeStore) memoryOfType(mt types.MemoryType) []types.MemoryEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.MemoryEntry
	for _, m := range f.memory {
		if m.MemoryType == mt {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeStore) derivedMemoryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.memory {
		if m.MemoryType != types.MemoryUserInstruction {
			n++
		}
	}
	return n
}

func (f *fakeStore) ActiveGoal(_ context.Context, userID string) (*types.Goal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.goalErr != nil {
		return nil, f.goalErr
	}
	for _, g := range f.goals {
		if g.UserID == userID && g.Status.IsOpen() {
			g := g
			return &g, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) GetGoal(_ context.Context, id string) (*types.Goal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, g := range f.goals {
		if g.ID == id {
			g := g
			return &g, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) ListActiveGoals(_ context.Context) ([]types.Goal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.Goal
	for _, g := range f.goals {
		if g.Status.IsOpen() {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateGoal(_ context.Context, goal types.NewGoal) (*types.Goal, error) {
	g := f.addGoal(goal.UserID, goal.Title)
	return &g, nil
}

func (f *fakeStore) pendingLocked(goalID string) []types.Task {
	var out []types.Task
	for _, t := range f.tasks {
		if t.GoalID == goalID && t.Status == types.TaskPending {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority.Rank() != out[j].Priority.Rank() {
			return out[i].Priority.Rank() > out[j].Priority.Rank()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (f *fakeStore) PendingTasks(_ context.Context, goalID string) ([]types.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.taskErr != nil {
		return nil, f.taskErr
	}
	return f.pendingLocked(goalID), nil
}

func (f *fakeStore) TopPendingTask(_ context.Context, goalID string) (*types.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.taskErr != nil {
		return nil, f.taskErr
	}
	pending := f.pendingLocked(goalID)
	if len(pending) == 0 {
		return nil, store.ErrNotFound
	}
	return &pending[0], nil
}

func (f *fakeStore) GetTask(_ context.Context, id string) (*types.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tasks {
		if t.ID == id {
			t := t
			return &t, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) InsertTasks(_ context.Context, tasks []types.NewTask) ([]types.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertTaskCalls++
	if f.writeErr != nil {
		return nil, f.writeErr
	}
	out := make([]types.Task, 0, len(tasks))
	for _, nt := range tasks {
		t := types.Task{
			ID:        f.nextID("task"),
			GoalID:    nt.GoalID,
			Title:     nt.Title,
			Priority:  nt.Priority.OrDefault(),
			Status:    types.TaskPending,
			DueDate:   nt.DueDate,
			CreatedAt: time.Date(2025, 1, 1, 0, 0, f.seq, 0, time.UTC),
		}
		f.tasks = append(f.tasks, t)
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeStore) RescheduleTask(_ context.Context, id string, due time.Time, priority types.Priority) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rescheduleCalls++
	if f.writeErr != nil {
		return f.writeErr
	}
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			f.tasks[i].DueDate = &due
			f.tasks[i].Priority = priority
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeStore) CompleteTask(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			f.tasks[i].Status = types.TaskDone
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeStore) UpcomingReminders(_ context.Context, userID string, after time.Time, limit int) ([]types.Reminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reminderErr != nil {
		return nil, f.reminderErr
	}
	var out []types.Reminder
	for _, r := range f.reminders {
		if r.UserID == userID && r.Status == types.ReminderPending && r.RemindAt.After(after) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RemindAt.Before(out[j].RemindAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) InsertReminder(_ context.Context, reminder types.NewReminder) (*types.Reminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertReminderCalls++
	if f.writeErr != nil {
		return nil, f.writeErr
	}
	r := types.Reminder{
		ID:       f.nextID("rem"),
		UserID:   reminder.UserID,
		Message:  reminder.Message,
		RemindAt: reminder.RemindAt.UTC(),
		Status:   types.ReminderPending,
	}
	f.reminders = append(f.reminders, r)
	return &r, nil
}

func (f *fakeStore) RecentMemory(_ context.Context, userID string, limit int) ([]types.MemoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.memoryErr != nil {
		return nil, f.memoryErr
	}
	var out []types.MemoryEntry
	for i := len(f.memory) - 1; i >= 0 && len(out) < limit; i-- {
		if f.memory[i].UserID == userID {
			out = append(out, f.memory[i])
		}
	}
	return out, nil
}

func (f *fakeStore) AppendMemory(_ context.Context, entry types.NewMemoryEntry) (*types.MemoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := types.MemoryEntry{
		ID:         f.nextID("mem"),
		UserID:     entry.UserID,
		MemoryType: entry.MemoryType,
		Content:    entry.Content,
	}
	f.memory = append(f.memory, m)
	return &m, nil
}

func (f *fakeStore) AppendRunLog(_ context.Context, userID string, summary types.RunSummary) (*types.RunLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.runLogErr != nil {
		return nil, f.runLogErr
	}
	r := types.RunLog{ID: f.nextID("run"), UserID: userID, Summary: summary}
	f.runs = append(f.runs, r)
	return &r, nil
}

func (f *fakeStore) RecentRuns(_ context.Context, userID string, limit int) ([]types.RunLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.RunLog
	for i := len(f.runs) - 1; i >= 0 && len(out) < limit; i-- {
		if f.runs[i].UserID == userID {
			out = append(out, f.runs[i])
		}
	}
	return out, nil
}

func (f *fakeStore) GetProfile(_ context.Context, _ string) (*types.Profile, error) {
	return nil, store.ErrNotFound
}

func (f *fakeStore) UpsertProfile(_ context.Context, userID, email string) (*types.Profile, error) {
	return &types.Profile{UserID: userID, Email: email}, nil
}

func (f *fakeStore) GetStats(_ context.Context) (*types.StoreStats, error) {
	return &types.StoreStats{}, nil
}

func (f *fakeStore) GenerateSnapshot(_ context.Context) (string, error) {
	return "", nil
}

func (f *fakeStore) Close() error { return nil }

// fakeOracle returns a canned response and records every request.
type fakeOracle struct {
	mu       sync.Mutex
	response string
	err      error
	requests []oracle.Request
}

func (o *fakeOracle) Complete(_ context.Context, req oracle.Request) (json.RawMessage, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.requests = append(o.requests, req)
	if o.err != nil {
		return nil, o.err
	}
	return json.RawMessage(o.response), nil
}

func (o *fakeOracle) ModelName() string { return "fake" }

func (o *fakeOracle) calls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.requests)
}

func fixedClock(t time.Time) Option {
	return WithClock(func() time.Time { return t })
}
