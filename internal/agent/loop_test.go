package agent

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperengineering/orbit/internal/types"
)

func newTestLoop(fs *fakeStore, o *fakeOracle) *Loop {
	return NewLoop(fs, o, fixedClock(actNow), quietLogger())
}

func TestRun_NoGoal(t *testing.T) {
	fs := newFakeStore()
	o := &fakeOracle{response: `{"type":"NEXT_TASK","message":"x","confidence":1}`}

	res, err := newTestLoop(fs, o).Run(context.Background(), "u1", types.RunManual)
	require.NoError(t, err)

	assert.Equal(t, DecisionAskUser, res.Decision.Kind())
	assert.Equal(t, 1.0, res.Decision.Common().Confidence)
	assert.Equal(t, ActionNone, res.ActionResult.Action)
	assert.Zero(t, o.calls())
	assert.Zero(t, fs.mutations())
	assert.Len(t, fs.runs, 1)
	assert.Zero(t, fs.derivedMemoryCount())
}

func TestRun_CodeRequestRefused(t *testing.T) {
	fs := newFakeStore()
	goal := fs.addGoal("u1", "Launch the blog")
	fs.addTask(goal.ID, "Pick a theme", types.PriorityMedium)
	fs.addMemory("u1", "Write a Python script to scrape Twitter")
	o := &fakeOracle{response: `{"type":"CREATE_TASKS","message":"x","confidence":1,"newTasks":[{"title":"scrape"}]}`}

	res, err := newTestLoop(fs, o).Run(context.Background(), "u1", types.RunManual)
	require.NoError(t, err)

	assert.Equal(t, DecisionReplyOnly, res.Decision.Kind())
	assert.Equal(t, ActionReply, res.ActionResult.Action)
	assert.Equal(t, codeRefusal, res.ActionResult.Message)
	assert.Zero(t, o.calls())
	assert.Zero(t, fs.mutations())
	assert.Zero(t, fs.derivedMemoryCount())
	require.Len(t, fs.runs, 1)
	assert.Equal(t, "REPLY_ONLY", fs.runs[0].Summary.DecisionType)
}

func TestRun_SetReminderScenario(t *testing.T) {
	fs := newFakeStore()
	fs.addGoal("u1", "Be a better kid")
	fs.addMemory("u1", "Remind me to call mom on Jan 10 at 3pm")
	o := &fakeOracle{response: `{"type":"SET_REMINDER","message":"Done. I'll remind you to call mom on that day.","confidence":0.95,
		"reminder":{"message":"call mom","isoDate":"2025-01-10T15:00:00Z"}}`}

	res, err := newTestLoop(fs, o).Run(context.Background(), "u1", types.RunManual)
	require.NoError(t, err)

	assert.Equal(t, ActionSetReminder, res.ActionResult.Action)
	require.Len(t, fs.reminders, 1)
	r := fs.reminders[0]
	assert.Equal(t, "call mom", r.Message)
	assert.True(t, time.Date(2025, 1, 10, 15, 0, 0, 0, time.UTC).Equal(r.RemindAt))
	assert.Equal(t, types.ReminderPending, r.Status)

	mem := fs.memoryOfType(types.MemoryReminderSet)
	require.Len(t, mem, 1)
	assert.Equal(t, `Set reminder: "call mom" for 2025-01-10T15:00:00Z`, mem[0].Content)
	assert.Len(t, fs.runs, 1)
}

func TestRun_RescheduleScenario(t *testing.T) {
	fs := newFakeStore()
	goal := fs.addGoal("u1", "Run a marathon")
	fs.addTask(goal.ID, "Run 20 miles", types.PriorityHigh)
	fs.addMemory("u1", "I can't do this today")
	o := &fakeOracle{response: `{"type":"RESCHEDULE_TASK","message":"No worries.","confidence":0.9}`}

	res, err := newTestLoop(fs, o).Run(context.Background(), "u1", types.RunManual)
	require.NoError(t, err)

	assert.Equal(t, ActionRescheduled, res.ActionResult.Action)
	assert.Equal(t, "No worries.", res.ActionResult.Message)
	assert.Equal(t, 1, fs.rescheduleCalls)
	assert.Equal(t, 1, fs.insertTaskCalls)
	assert.Len(t, fs.memoryOfType(types.MemoryUserPreference), 1)
}

func TestRun_ActErrorStillRecordsRun(t *testing.T) {
	fs := newFakeStore()
	goal := fs.addGoal("u1", "Run a marathon")
	fs.addTask(goal.ID, "Run 20 miles", types.PriorityHigh)
	fs.addMemory("u1", "I can't do this today")
	fs.writeErr = errBoom
	o := &fakeOracle{response: `{"type":"RESCHEDULE_TASK","message":"No worries.","confidence":0.9}`}

	res, err := newTestLoop(fs, o).Run(context.Background(), "u1", types.RunManual)
	require.NoError(t, err)

	assert.Equal(t, ActionError, res.ActionResult.Action)
	assert.Equal(t, "Something went wrong while acting.", res.ActionResult.Message)
	assert.Len(t, fs.runs, 1)
}

func TestRun_NextTaskRecordsRecommendation(t *testing.T) {
	fs := newFakeStore()
	goal := fs.addGoal("u1", "Learn Go")
	fs.addTask(goal.ID, "Read spec", types.PriorityLow)
	fs.addTask(goal.ID, "Install toolchain", types.PriorityHigh)
	o := &fakeOracle{response: `{"type":"NEXT_TASK","message":"","confidence":0.8}`}

	res, err := newTestLoop(fs, o).Run(context.Background(), "u1", types.RunDaily)
	require.NoError(t, err)

	require.NotNil(t, res.ActionResult.Task)
	assert.Equal(t, "Install toolchain", res.ActionResult.Task.Title)
	mem := fs.memoryOfType(types.MemoryLastRecommendedTask)
	require.Len(t, mem, 1)
	assert.Equal(t, "Suggested Task: Install toolchain", mem[0].Content)
	require.Len(t, fs.runs, 1)
	assert.Equal(t, types.RunDaily, fs.runs[0].Summary.RunType)
}

func TestRun_OracleFailure(t *testing.T) {
	fs := newFakeStore()
	fs.addGoal("u1", "Learn Go")
	fs.addMemory("u1", "What's next?")
	o := &fakeOracle{err: errBoom}

	res, err := newTestLoop(fs, o).Run(context.Background(), "u1", types.RunManual)
	require.NoError(t, err)

	assert.Equal(t, DecisionAskUser, res.Decision.Kind())
	assert.Equal(t, 0.0, res.Decision.Common().Confidence)
	assert.Equal(t, ActionNone, res.ActionResult.Action)
	assert.Zero(t, fs.mutations())
	assert.Len(t, fs.runs, 1)
}

func TestRun_ObserveFailure(t *testing.T) {
	fs := newFakeStore()
	fs.goalErr = errBoom
	fs.reminderErr = errBoom
	fs.memoryErr = errBoom

	res, err := newTestLoop(fs, &fakeOracle{}).Run(context.Background(), "u1", types.RunManual)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrLoopFailure)
	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.Empty(t, fs.runs)
}

func TestRun_DefaultsRunType(t *testing.T) {
	fs := newFakeStore()

	_, err := newTestLoop(fs, &fakeOracle{}).Run(context.Background(), "u1", "")
	require.NoError(t, err)
	require.Len(t, fs.runs, 1)
	assert.Equal(t, types.RunManual, fs.runs[0].Summary.RunType)
}

func TestResult_MarshalJSON(t *testing.T) {
	res := Result{
		Decision:     NextTask{Base: Base{Message: "go", Confidence: 1}, Task: &TaskRef{ID: "t1", Title: "Do it"}},
		ActionResult: ActionResult{Action: ActionRecommendTask, Message: "go"},
	}
	data, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"decision": {"type":"NEXT_TASK","message":"go","confidence":1,"task":{"id":"t1","title":"Do it"}},
		"actionResult": {"action":"RECOMMEND_TASK","message":"go"}
	}`, string(data))
}
