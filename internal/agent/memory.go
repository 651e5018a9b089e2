package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hyperengineering/orbit/internal/store"
	"github.com/hyperengineering/orbit/internal/types"
)

const deferralMemory = "User deferred a task. Rescheduled to tomorrow."

// MemoryWriter records the outcome of a run.
type MemoryWriter struct {
	store  store.Store
	now    func() time.Time
	logger *slog.Logger
}

// NewMemoryWriter creates a MemoryWriter.
func NewMemoryWriter(s store.Store, opts ...Option) *MemoryWriter {
	o := buildOptions(opts)
	return &MemoryWriter{
		store:  s,
		now:    o.now,
		logger: o.logger.With("component", "memory"),
	}
}

// Remember appends a run log and, for some decision types, a memory entry.
// Failures are logged, not returned.
func (w *MemoryWriter) Remember(ctx context.Context, userID string, d Decision, result ActionResult, runType types.RunType) {
	summary := types.RunSummary{
		RunType:      runType,
		DecisionType: string(d.Kind()),
		Message:      d.Common().Message,
		Timestamp:    w.now().UTC().Format(metaTimeLayout),
	}
	if _, err := w.store.AppendRunLog(ctx, userID, summary); err != nil {
		w.logger.Error("run log write failed", "user_id", userID, "decision_type", d.Kind(), "error", err)
	}

	memoryType, content, ok := deriveMemory(d, result)
	if !ok {
		return
	}
	if _, err := w.store.AppendMemory(ctx, types.NewMemoryEntry{
		UserID:     userID,
		MemoryType: memoryType,
		Content:    content,
	}); err != nil {
		w.logger.Error("memory write failed", "user_id", userID, "memory_type", memoryType, "error", err)
		return
	}
	w.logger.Debug("memory stored", "user_id", userID, "memory_type", memoryType)
}

// deriveMemory maps a decision to its long-term memory entry. Only NEXT_TASK
// looks at the result, to find the recommended task when the model named none.
func deriveMemory(d Decision, result ActionResult) (types.MemoryType, string, bool) {
	switch v := d.(type) {
	case SetReminder:
		if v.Reminder == nil {
			return "", "", false
		}
		return types.MemoryReminderSet,
			fmt.Sprintf("Set reminder: %q for %s", v.Reminder.Message, v.Reminder.RemindAt.UTC().Format(time.RFC3339)),
			true
	case RescheduleTask:
		return types.MemoryUserPreference, deferralMemory, true
	case CreateTasks:
		return types.MemoryRoadmapUpdate, "Created new tasks for roadmap.", true
	case NextTask:
		title := ""
		if v.Task != nil {
			title = v.Task.Title
		}
		if title == "" && result.Task != nil {
			title = result.Task.Title
		}
		if title == "" {
			return "", "", false
		}
		return types.MemoryLastRecommendedTask, fmt.Sprintf("Suggested Task: %s", title), true
	default:
		return "", "", false
	}
}
