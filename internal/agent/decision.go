package agent

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hyperengineering/orbit/internal/types"
)

// DecisionType is the closed tag set of the Think phase output.
type DecisionType string

const (
	DecisionNextTask       DecisionType = "NEXT_TASK"
	DecisionAskUser        DecisionType = "ASK_USER"
	DecisionNoAction       DecisionType = "NO_ACTION"
	DecisionCreateTasks    DecisionType = "CREATE_TASKS"
	DecisionRescheduleTask DecisionType = "RESCHEDULE_TASK"
	DecisionSetReminder    DecisionType = "SET_REMINDER"
	DecisionReplyOnly      DecisionType = "REPLY_ONLY"
)

// DecisionTypes lists every decision tag in schema order.
var DecisionTypes = []DecisionType{
	DecisionNextTask,
	DecisionAskUser,
	DecisionNoAction,
	DecisionCreateTasks,
	DecisionRescheduleTask,
	DecisionSetReminder,
	DecisionReplyOnly,
}

// Decision is one structured output of the Think phase. The concrete type
// determines which payload is present; the set of variants is closed.
type Decision interface {
	Kind() DecisionType
	Common() Base
	sealed()
}

// Base carries the fields every decision has.
type Base struct {
	Message    string
	Confidence float64
}

// Common returns the shared decision fields.
func (b Base) Common() Base { return b }

func (Base) sealed() {}

// TaskRef points at an existing task. Either field may be empty.
type TaskRef struct {
	ID    string
	Title string
}

// NewTaskSpec is a task the model proposes to create.
type NewTaskSpec struct {
	Title    string
	Priority types.Priority
}

// ReminderSpec is a reminder the model proposes to set.
type ReminderSpec struct {
	Message  string
	RemindAt time.Time
}

// NextTask surfaces the goal's top pending task. Task is the model's pick,
// if it named one.
type NextTask struct {
	Base
	Task *TaskRef
}

// AskUser asks the user for input.
type AskUser struct{ Base }

// NoAction does nothing.
type NoAction struct{ Base }

// CreateTasks adds tasks to the active goal.
type CreateTasks struct {
	Base
	NewTasks []NewTaskSpec
}

// RescheduleTask defers a task. Task is nil when the model named none.
type RescheduleTask struct {
	Base
	Task *TaskRef
}

// SetReminder records a reminder. Reminder is nil when the model omitted it.
type SetReminder struct {
	Base
	Reminder *ReminderSpec
}

// ReplyOnly answers without touching state.
type ReplyOnly struct{ Base }

func (NextTask) Kind() DecisionType       { return DecisionNextTask }
func (AskUser) Kind() DecisionType        { return DecisionAskUser }
func (NoAction) Kind() DecisionType       { return DecisionNoAction }
func (CreateTasks) Kind() DecisionType    { return DecisionCreateTasks }
func (RescheduleTask) Kind() DecisionType { return DecisionRescheduleTask }
func (SetReminder) Kind() DecisionType    { return DecisionSetReminder }
func (ReplyOnly) Kind() DecisionType      { return DecisionReplyOnly }

// wireDecision is the flat JSON form exchanged with the oracle.
type wireDecision struct {
	Type       DecisionType  `json:"type"`
	Message    *string       `json:"message"`
	Confidence *float64      `json:"confidence"`
	Task       *wireTask     `json:"task,omitempty"`
	NewTasks   []wireNewTask `json:"newTasks,omitempty"`
	Reminder   *wireReminder `json:"reminder,omitempty"`
}

type wireTask struct {
	ID    string `json:"id,omitempty"`
	Title string `json:"title,omitempty"`
}

type wireNewTask struct {
	Title    string         `json:"title"`
	Priority types.Priority `json:"priority,omitempty"`
}

type wireReminder struct {
	Message string `json:"message"`
	ISODate string `json:"isoDate"`
}

// reminderLayouts are tried in order when parsing reminder.isoDate. Values
// without a zone are read as UTC.
var reminderLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// DecodeDecision parses the oracle's flat JSON into a Decision. Payload
// fields that do not belong to the decoded type are ignored.
func DecodeDecision(data []byte) (Decision, error) {
	var w wireDecision
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDecision, err)
	}
	if w.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrInvalidDecision)
	}
	if w.Message == nil {
		return nil, fmt.Errorf("%w: missing message", ErrInvalidDecision)
	}
	if w.Confidence == nil {
		return nil, fmt.Errorf("%w: missing confidence", ErrInvalidDecision)
	}

	base := Base{Message: strings.TrimSpace(*w.Message), Confidence: *w.Confidence}

	switch w.Type {
	case DecisionNextTask:
		return NextTask{Base: base, Task: w.Task.ref()}, nil
	case DecisionAskUser:
		return AskUser{Base: base}, nil
	case DecisionNoAction:
		return NoAction{Base: base}, nil
	case DecisionCreateTasks:
		specs := make([]NewTaskSpec, 0, len(w.NewTasks))
		for _, nt := range w.NewTasks {
			title := strings.TrimSpace(nt.Title)
			if title == "" {
				continue
			}
			priority := types.Priority(strings.ToLower(string(nt.Priority))).OrDefault()
			specs = append(specs, NewTaskSpec{Title: title, Priority: priority})
		}
		return CreateTasks{Base: base, NewTasks: specs}, nil
	case DecisionRescheduleTask:
		return RescheduleTask{Base: base, Task: w.Task.ref()}, nil
	case DecisionSetReminder:
		reminder, err := w.Reminder.spec()
		if err != nil {
			return nil, err
		}
		return SetReminder{Base: base, Reminder: reminder}, nil
	case DecisionReplyOnly:
		return ReplyOnly{Base: base}, nil
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidDecision, w.Type)
	}
}

func (t *wireTask) ref() *TaskRef {
	if t == nil || (t.ID == "" && t.Title == "") {
		return nil
	}
	return &TaskRef{ID: t.ID, Title: t.Title}
}

func (r *wireReminder) spec() (*ReminderSpec, error) {
	if r == nil {
		return nil, nil
	}
	message := strings.TrimSpace(r.Message)
	if message == "" {
		return nil, fmt.Errorf("%w: reminder without message", ErrInvalidDecision)
	}
	for _, layout := range reminderLayouts {
		if at, err := time.Parse(layout, strings.TrimSpace(r.ISODate)); err == nil {
			return &ReminderSpec{Message: message, RemindAt: at.UTC()}, nil
		}
	}
	return nil, fmt.Errorf("%w: reminder date %q", ErrInvalidDecision, r.ISODate)
}

// EncodeDecision renders d in the flat wire form.
func EncodeDecision(d Decision) ([]byte, error) {
	return json.Marshal(toWire(d))
}

func toWire(d Decision) wireDecision {
	base := d.Common()
	w := wireDecision{
		Type:       d.Kind(),
		Message:    &base.Message,
		Confidence: &base.Confidence,
	}
	switch v := d.(type) {
	case NextTask:
		w.Task = fromRef(v.Task)
	case RescheduleTask:
		w.Task = fromRef(v.Task)
	case CreateTasks:
		for _, nt := range v.NewTasks {
			w.NewTasks = append(w.NewTasks, wireNewTask{Title: nt.Title, Priority: nt.Priority})
		}
	case SetReminder:
		if v.Reminder != nil {
			w.Reminder = &wireReminder{
				Message: v.Reminder.Message,
				ISODate: v.Reminder.RemindAt.UTC().Format(time.RFC3339),
			}
		}
	}
	return w
}

func fromRef(ref *TaskRef) *wireTask {
	if ref == nil {
		return nil
	}
	return &wireTask{ID: ref.ID, Title: ref.Title}
}
