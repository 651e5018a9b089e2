// Package assistant is the application service behind the API, the CLI and
// the workers. It handles user intake around agent runs, task completion
// and the daily digest.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hyperengineering/orbit/internal/agent"
	"github.com/hyperengineering/orbit/internal/notify"
	"github.com/hyperengineering/orbit/internal/store"
	"github.com/hyperengineering/orbit/internal/types"
)

const taskAlreadyCompleted = "Task already completed."

// Service coordinates the agent loop with the store and the notifier.
type Service struct {
	store      store.Store
	loop       *agent.Loop
	notifier   notify.Notifier
	runTimeout time.Duration
	logger     *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithRunTimeout bounds a single loop run. Zero means no bound.
func WithRunTimeout(d time.Duration) Option {
	return func(s *Service) { s.runTimeout = d }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Service.
func New(s store.Store, loop *agent.Loop, notifier notify.Notifier, opts ...Option) *Service {
	svc := &Service{
		store:    s,
		loop:     loop,
		notifier: notifier,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	svc.logger = svc.logger.With("component", "assistant")
	return svc
}

// Run records the user's query, if any, and executes one loop run. A query
// from a user without an open goal becomes that user's goal.
func (s *Service) Run(ctx context.Context, req types.RunRequest) (*agent.Result, error) {
	if req.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", store.ErrInvalidInput)
	}
	runType := req.RunType
	if runType == "" {
		runType = types.RunManual
	}

	if query := strings.TrimSpace(req.UserQuery); query != "" {
		if err := s.intake(ctx, req.UserID, query); err != nil {
			return nil, err
		}
	}

	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}
	return s.loop.Run(ctx, req.UserID, runType)
}

func (s *Service) intake(ctx context.Context, userID, query string) error {
	_, err := s.store.ActiveGoal(ctx, userID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		goal, err := s.store.CreateGoal(ctx, types.NewGoal{
			UserID: userID,
			Title:  query,
			Status: types.GoalInProgress,
		})
		if err != nil {
			return fmt.Errorf("create goal: %w", err)
		}
		s.logger.Info("goal created from query", "user_id", userID, "goal_id", goal.ID)
		return nil
	case err != nil:
		return fmt.Errorf("active goal: %w", err)
	}

	if _, err := s.store.AppendMemory(ctx, types.NewMemoryEntry{
		UserID:     userID,
		MemoryType: types.MemoryUserInstruction,
		Content:    query,
	}); err != nil {
		return fmt.Errorf("record query: %w", err)
	}
	return nil
}

// State returns the same snapshot the agent would observe.
func (s *Service) State(ctx context.Context, userID string) (*agent.Snapshot, error) {
	return s.loop.Observer().Observe(ctx, userID)
}

// CompleteTask marks a task done on behalf of its owner. Tasks that do not
// exist or belong to another user yield store.ErrNotFound. Completing a
// done task again succeeds without changes.
func (s *Service) CompleteTask(ctx context.Context, userID, taskID string) (string, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return "", err
	}
	goal, err := s.store.GetGoal(ctx, task.GoalID)
	if err != nil {
		return "", err
	}
	if goal.UserID != userID {
		return "", store.ErrNotFound
	}

	if task.Status == types.TaskDone {
		return taskAlreadyCompleted, nil
	}

	if err := s.store.CompleteTask(ctx, taskID); err != nil {
		return "", fmt.Errorf("complete task: %w", err)
	}

	if _, err := s.store.AppendMemory(ctx, types.NewMemoryEntry{
		UserID:     userID,
		MemoryType: types.MemoryTaskCompleted,
		Content:    fmt.Sprintf("Completed task: %q", task.Title),
	}); err != nil {
		s.logger.Warn("completion memory write failed", "user_id", userID, "task_id", taskID, "error", err)
	}

	s.logger.Info("task completed", "user_id", userID, "task_id", taskID)
	return fmt.Sprintf("Task %q marked as complete.", task.Title), nil
}

// DailyDigest sends one digest to each user with pending tasks under an
// open goal. Delivery failures are logged and skipped.
func (s *Service) DailyDigest(ctx context.Context) (types.DigestResult, error) {
	var result types.DigestResult

	goals, err := s.store.ListActiveGoals(ctx)
	if err != nil {
		return result, fmt.Errorf("list active goals: %w", err)
	}
	result.GoalsChecked = len(goals)

	var users []string
	pending := make(map[string][]types.Task)
	for _, goal := range goals {
		tasks, err := s.store.PendingTasks(ctx, goal.ID)
		if err != nil {
			s.logger.Warn("digest task read failed", "user_id", goal.UserID, "goal_id", goal.ID, "error", err)
			continue
		}
		if len(tasks) == 0 {
			continue
		}
		if _, seen := pending[goal.UserID]; !seen {
			users = append(users, goal.UserID)
		}
		pending[goal.UserID] = append(pending[goal.UserID], tasks...)
	}

	for _, userID := range users {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if s.sendDigest(ctx, userID, pending[userID]) {
			result.EmailsSent++
		}
	}

	s.logger.Info("daily digest complete",
		"goals_checked", result.GoalsChecked,
		"emails_sent", result.EmailsSent,
	)
	return result, nil
}

func (s *Service) sendDigest(ctx context.Context, userID string, tasks []types.Task) bool {
	profile, err := s.store.GetProfile(ctx, userID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && profile.Email == "") {
		s.logger.Debug("no email on file", "user_id", userID)
		return false
	}
	if err != nil {
		s.logger.Warn("digest profile read failed", "user_id", userID, "error", err)
		return false
	}

	digest := notify.Digest{
		Email:        profile.Email,
		PendingCount: len(tasks),
		TopTaskTitle: topTask(tasks).Title,
	}
	if err := s.notifier.Notify(ctx, digest); err != nil {
		s.logger.Warn("digest delivery failed", "user_id", userID, "error", err)
		return false
	}
	return true
}

// topTask picks the highest-priority, oldest task. tasks must be non-empty.
func topTask(tasks []types.Task) types.Task {
	top := tasks[0]
	for _, t := range tasks[1:] {
		if t.Priority.Rank() > top.Priority.Rank() ||
			(t.Priority.Rank() == top.Priority.Rank() && t.CreatedAt.Before(top.CreatedAt)) {
			top = t
		}
	}
	return top
}

// DigestMessage renders the summary sentence for a digest result.
func DigestMessage(r types.DigestResult) string {
	return fmt.Sprintf("Checked %d goals. Sent %d emails.", r.GoalsChecked, r.EmailsSent)
}

// SetProfile records the user's notification address.
func (s *Service) SetProfile(ctx context.Context, userID, email string) (*types.Profile, error) {
	return s.store.UpsertProfile(ctx, userID, email)
}

// RecentRuns returns the user's latest run log entries, newest first.
func (s *Service) RecentRuns(ctx context.Context, userID string, limit int) ([]types.RunLog, error) {
	return s.store.RecentRuns(ctx, userID, limit)
}
