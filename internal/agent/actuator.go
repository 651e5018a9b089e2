package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hyperengineering/orbit/internal/store"
	"github.com/hyperengineering/orbit/internal/types"
)

// Action is the outcome tag of the Act phase.
type Action string

const (
	ActionReply         Action = "REPLY"
	ActionSetReminder   Action = "SET_REMINDER"
	ActionRescheduled   Action = "RESCHEDULED"
	ActionCreatedTasks  Action = "CREATED_TASKS"
	ActionRecommendTask Action = "RECOMMEND_TASK"
	ActionNone          Action = "NONE"
	ActionError         Action = "ERROR"
)

// RecoveryTaskTitle is the small task added when a hard one is deferred.
const RecoveryTaskTitle = "Review today's progress (5 mins)"

const actuatorFailureMessage = "Something went wrong while acting."

// ActionResult describes what the Act phase did.
type ActionResult struct {
	Action   Action          `json:"action"`
	Message  string          `json:"message"`
	Task     *types.Task     `json:"task,omitempty"`
	Tasks    []types.Task    `json:"tasks,omitempty"`
	Reminder *types.Reminder `json:"reminder,omitempty"`
}

// Actuator applies Decisions to the store.
type Actuator struct {
	store  store.Store
	now    func() time.Time
	logger *slog.Logger
}

// NewActuator creates an Actuator.
func NewActuator(s store.Store, opts ...Option) *Actuator {
	o := buildOptions(opts)
	return &Actuator{
		store:  s,
		now:    o.now,
		logger: o.logger.With("component", "actuator"),
	}
}

// goalResolver fetches the active goal at most once per Act call.
type goalResolver struct {
	store   store.Store
	userID  string
	fetched bool
	goal    *types.Goal
	err     error
}

func (r *goalResolver) get(ctx context.Context) (*types.Goal, error) {
	if !r.fetched {
		r.fetched = true
		r.goal, r.err = r.store.ActiveGoal(ctx, r.userID)
		if errors.Is(r.err, store.ErrNotFound) {
			r.goal, r.err = nil, nil
		}
	}
	return r.goal, r.err
}

// Act executes exactly one branch for the decision. Storage errors become an
// ERROR result; Act never returns an error.
//
// The active goal is read here rather than taken from the Observer's
// snapshot, so a goal changed between Observe and Act is seen in its new
// state. Concurrent runs for one user are not serialized.
func (a *Actuator) Act(ctx context.Context, userID string, d Decision) ActionResult {
	goals := &goalResolver{store: a.store, userID: userID}

	result, err := a.dispatch(ctx, goals, userID, d)
	if err != nil {
		a.logger.Error("action failed",
			"user_id", userID,
			"decision_type", d.Kind(),
			"error", err,
		)
		return ActionResult{Action: ActionError, Message: actuatorFailureMessage}
	}

	a.logger.Info("action taken",
		"user_id", userID,
		"decision_type", d.Kind(),
		"action", result.Action,
	)
	return result
}

func (a *Actuator) dispatch(ctx context.Context, goals *goalResolver, userID string, d Decision) (ActionResult, error) {
	message := d.Common().Message

	switch v := d.(type) {
	case ReplyOnly:
		return ActionResult{Action: ActionReply, Message: message}, nil

	case SetReminder:
		if v.Reminder == nil {
			break
		}
		return a.setReminder(ctx, userID, v)

	case RescheduleTask:
		goal, err := goals.get(ctx)
		if err != nil {
			return ActionResult{}, err
		}
		if goal == nil {
			break
		}
		result, ok, err := a.reschedule(ctx, goal, v)
		if err != nil || ok {
			return result, err
		}

	case CreateTasks:
		goal, err := goals.get(ctx)
		if err != nil {
			return ActionResult{}, err
		}
		if goal == nil {
			break
		}
		return a.createTasks(ctx, goal, v)

	case NextTask:
		goal, err := goals.get(ctx)
		if err != nil {
			return ActionResult{}, err
		}
		if goal == nil {
			break
		}
		task, err := a.store.TopPendingTask(ctx, goal.ID)
		if errors.Is(err, store.ErrNotFound) {
			break
		}
		if err != nil {
			return ActionResult{}, fmt.Errorf("top pending task: %w", err)
		}
		return ActionResult{
			Action:  ActionRecommendTask,
			Message: orDefault(message, fmt.Sprintf("Let's work on %s", task.Title)),
			Task:    task,
		}, nil

	case AskUser, NoAction:
	}

	return ActionResult{Action: ActionNone, Message: message}, nil
}

func (a *Actuator) setReminder(ctx context.Context, userID string, d SetReminder) (ActionResult, error) {
	reminder, err := a.store.InsertReminder(ctx, types.NewReminder{
		UserID:   userID,
		Message:  d.Reminder.Message,
		RemindAt: d.Reminder.RemindAt,
	})
	if err != nil {
		return ActionResult{}, fmt.Errorf("insert reminder: %w", err)
	}
	return ActionResult{
		Action:   ActionSetReminder,
		Message:  orDefault(d.Message, fmt.Sprintf("Done. I'll remind you to %q on that day.", d.Reminder.Message)),
		Reminder: reminder,
	}, nil
}

// reschedule reports ok=false when no target task could be resolved.
func (a *Actuator) reschedule(ctx context.Context, goal *types.Goal, d RescheduleTask) (ActionResult, bool, error) {
	target, err := a.rescheduleTarget(ctx, goal, d.Task)
	if err != nil {
		return ActionResult{}, false, err
	}
	if target == nil {
		return ActionResult{}, false, nil
	}

	now := a.now().UTC()
	tomorrow := now.Add(24 * time.Hour)
	if err := a.store.RescheduleTask(ctx, target.ID, tomorrow, types.PriorityMedium); err != nil {
		return ActionResult{}, false, fmt.Errorf("reschedule task: %w", err)
	}
	target.DueDate = &tomorrow
	target.Priority = types.PriorityMedium

	recovery, err := a.store.InsertTasks(ctx, []types.NewTask{{
		GoalID:   goal.ID,
		Title:    RecoveryTaskTitle,
		Priority: types.PriorityLow,
		DueDate:  &now,
	}})
	if err != nil {
		return ActionResult{}, false, fmt.Errorf("insert recovery task: %w", err)
	}

	return ActionResult{
		Action: ActionRescheduled,
		Message: orDefault(d.Message, fmt.Sprintf(
			"I moved the hard task to tomorrow. I added a simple %q task to keep your streak alive!", RecoveryTaskTitle)),
		Task:  target,
		Tasks: recovery,
	}, true, nil
}

// rescheduleTarget prefers the task the model named when it is a pending
// task of the goal, and otherwise takes the goal's top pending task.
func (a *Actuator) rescheduleTarget(ctx context.Context, goal *types.Goal, ref *TaskRef) (*types.Task, error) {
	if ref != nil && ref.ID != "" {
		task, err := a.store.GetTask(ctx, ref.ID)
		switch {
		case err == nil && task.GoalID == goal.ID && task.Status == types.TaskPending:
			return task, nil
		case err != nil && !errors.Is(err, store.ErrNotFound):
			return nil, fmt.Errorf("get task: %w", err)
		}
		a.logger.Debug("named task not reschedulable, using top task", "goal_id", goal.ID, "task_id", ref.ID)
	}

	task, err := a.store.TopPendingTask(ctx, goal.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("top pending task: %w", err)
	}
	return task, nil
}

func (a *Actuator) createTasks(ctx context.Context, goal *types.Goal, d CreateTasks) (ActionResult, error) {
	created := []types.Task{}
	if len(d.NewTasks) > 0 {
		batch := make([]types.NewTask, len(d.NewTasks))
		for i, spec := range d.NewTasks {
			batch[i] = types.NewTask{
				GoalID:   goal.ID,
				Title:    spec.Title,
				Priority: spec.Priority.OrDefault(),
			}
		}
		var err error
		created, err = a.store.InsertTasks(ctx, batch)
		if err != nil {
			return ActionResult{}, fmt.Errorf("insert tasks: %w", err)
		}
	}
	return ActionResult{
		Action:  ActionCreatedTasks,
		Message: orDefault(d.Message, fmt.Sprintf("I added %d new tasks to your plan.", len(created))),
		Tasks:   created,
	}, nil
}

func orDefault(message, fallback string) string {
	if message != "" {
		return message
	}
	return fallback
}
