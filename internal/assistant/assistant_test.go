package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/hyperengineering/orbit/internal/agent"
	"github.com/hyperengineering/orbit/internal/notify"
	"github.com/hyperengineering/orbit/internal/oracle"
	"github.com/hyperengineering/orbit/internal/store"
	"github.com/hyperengineering/orbit/internal/types"
)

type stubOracle struct {
	response string
	prompts  []string
}

func (o *stubOracle) Complete(_ context.Context, req oracle.Request) (json.RawMessage, error) {
	o.prompts = append(o.prompts, req.Prompt)
	return json.RawMessage(o.response), nil
}

func (o *stubOracle) ModelName() string { return "stub" }

type recordingNotifier struct {
	mu      sync.Mutex
	digests []notify.Digest
	failFor string
}

func (n *recordingNotifier) Notify(_ context.Context, d notify.Digest) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if d.Email == n.failFor {
		return errors.New("mailbox full")
	}
	n.digests = append(n.digests, d)
	return nil
}

type fixture struct {
	store    *store.SQLiteStore
	oracle   *stubOracle
	notifier *recordingNotifier
	svc      *Service
}

func newFixture(t *testing.T, response string) *fixture {
	t.Helper()
	s, err := store.NewSQLiteStore(":memory:", store.WithSnapshotDir(t.TempDir()))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	o := &stubOracle{response: response}
	n := &recordingNotifier{}
	loop := agent.NewLoop(s, o, agent.WithLogger(logger))
	return &fixture{
		store:    s,
		oracle:   o,
		notifier: n,
		svc:      New(s, loop, n, WithLogger(logger)),
	}
}

func TestRun_FirstQueryCreatesGoal(t *testing.T) {
	f := newFixture(t, `{"type":"CREATE_TASKS","message":"Here's a plan.","confidence":0.9,
		"newTasks":[{"title":"Pick a framework","priority":"high"},{"title":"Sketch pages","priority":"low"}]}`)
	ctx := context.Background()

	res, err := f.svc.Run(ctx, types.RunRequest{UserID: "u1", UserQuery: "Build a portfolio site"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	goal, err := f.store.ActiveGoal(ctx, "u1")
	if err != nil {
		t.Fatalf("ActiveGoal() error = %v", err)
	}
	if goal.Title != "Build a portfolio site" || goal.Status != types.GoalInProgress {
		t.Errorf("goal = %+v", goal)
	}
	if res.ActionResult.Action != agent.ActionCreatedTasks {
		t.Errorf("Action = %s, want CREATED_TASKS", res.ActionResult.Action)
	}
	tasks, _ := f.store.PendingTasks(ctx, goal.ID)
	if len(tasks) != 2 || tasks[0].Title != "Pick a framework" {
		t.Errorf("tasks = %+v", tasks)
	}

	runs, _ := f.store.RecentRuns(ctx, "u1", 10)
	if len(runs) != 1 || runs[0].Summary.RunType != types.RunManual {
		t.Errorf("runs = %+v", runs)
	}
}

func TestRun_LaterQueryBecomesLatestMessage(t *testing.T) {
	f := newFixture(t, `{"type":"NO_ACTION","message":"ok","confidence":1}`)
	ctx := context.Background()

	if _, err := f.svc.Run(ctx, types.RunRequest{UserID: "u1", UserQuery: "Learn Go"}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Run(ctx, types.RunRequest{UserID: "u1", UserQuery: "What's next?"}); err != nil {
		t.Fatal(err)
	}

	mem, _ := f.store.RecentMemory(ctx, "u1", 5)
	if len(mem) != 1 || mem[0].MemoryType != types.MemoryUserInstruction || mem[0].Content != "What's next?" {
		t.Errorf("memory = %+v", mem)
	}
	if len(f.oracle.prompts) != 2 {
		t.Fatalf("oracle called %d times, want 2", len(f.oracle.prompts))
	}
	if !strings.Contains(f.oracle.prompts[1], `"What's next?"`) {
		t.Errorf("second prompt missing latest message: %s", f.oracle.prompts[1])
	}
}

func TestRun_RequiresUserID(t *testing.T) {
	f := newFixture(t, `{}`)
	_, err := f.svc.Run(context.Background(), types.RunRequest{})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Errorf("Run() error = %v, want ErrInvalidInput", err)
	}
}

func TestRun_DailyRunType(t *testing.T) {
	f := newFixture(t, `{"type":"NO_ACTION","message":"ok","confidence":1}`)
	ctx := context.Background()

	if _, err := f.svc.Run(ctx, types.RunRequest{UserID: "u1", RunType: types.RunDaily}); err != nil {
		t.Fatal(err)
	}
	runs, err := f.svc.RecentRuns(ctx, "u1", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Summary.RunType != types.RunDaily {
		t.Errorf("runs = %+v", runs)
	}
}

func TestState(t *testing.T) {
	f := newFixture(t, `{}`)
	ctx := context.Background()
	goal, _ := f.store.CreateGoal(ctx, types.NewGoal{UserID: "u1", Title: "Learn Go"})
	f.store.InsertTasks(ctx, []types.NewTask{{GoalID: goal.ID, Title: "Tour", Priority: types.PriorityHigh}})

	snap, err := f.svc.State(ctx, "u1")
	if err != nil {
		t.Fatalf("State() error = %v", err)
	}
	if snap.Goal == nil || snap.Goal.ID != goal.ID {
		t.Errorf("Goal = %+v", snap.Goal)
	}
	if len(snap.Tasks) != 1 {
		t.Errorf("Tasks = %+v", snap.Tasks)
	}
}

func TestCompleteTask(t *testing.T) {
	f := newFixture(t, `{}`)
	ctx := context.Background()
	goal, _ := f.store.CreateGoal(ctx, types.NewGoal{UserID: "u1", Title: "Learn Go"})
	tasks, _ := f.store.InsertTasks(ctx, []types.NewTask{{GoalID: goal.ID, Title: "Tour"}})
	taskID := tasks[0].ID

	msg, err := f.svc.CompleteTask(ctx, "u1", taskID)
	if err != nil {
		t.Fatalf("CompleteTask() error = %v", err)
	}
	if msg != `Task "Tour" marked as complete.` {
		t.Errorf("message = %q", msg)
	}

	task, _ := f.store.GetTask(ctx, taskID)
	if task.Status != types.TaskDone {
		t.Errorf("Status = %s, want done", task.Status)
	}
	mem, _ := f.store.RecentMemory(ctx, "u1", 5)
	if len(mem) != 1 || mem[0].MemoryType != types.MemoryTaskCompleted || mem[0].Content != `Completed task: "Tour"` {
		t.Errorf("memory = %+v", mem)
	}

	msg, err = f.svc.CompleteTask(ctx, "u1", taskID)
	if err != nil {
		t.Fatalf("second CompleteTask() error = %v", err)
	}
	if msg != taskAlreadyCompleted {
		t.Errorf("message = %q, want %q", msg, taskAlreadyCompleted)
	}
	mem, _ = f.store.RecentMemory(ctx, "u1", 5)
	if len(mem) != 1 {
		t.Errorf("idempotent completion wrote memory: %+v", mem)
	}
}

func TestCompleteTask_NotOwned(t *testing.T) {
	f := newFixture(t, `{}`)
	ctx := context.Background()
	goal, _ := f.store.CreateGoal(ctx, types.NewGoal{UserID: "owner", Title: "Learn Go"})
	tasks, _ := f.store.InsertTasks(ctx, []types.NewTask{{GoalID: goal.ID, Title: "Tour"}})

	if _, err := f.svc.CompleteTask(ctx, "intruder", tasks[0].ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("CompleteTask() error = %v, want ErrNotFound", err)
	}
	if _, err := f.svc.CompleteTask(ctx, "owner", "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("CompleteTask(missing) error = %v, want ErrNotFound", err)
	}

	task, _ := f.store.GetTask(ctx, tasks[0].ID)
	if task.Status != types.TaskPending {
		t.Error("task changed by non-owner")
	}
}

func TestDailyDigest(t *testing.T) {
	f := newFixture(t, `{}`)
	ctx := context.Background()

	// u1: two goals with tasks, profile set
	g1, _ := f.store.CreateGoal(ctx, types.NewGoal{UserID: "u1", Title: "Learn Go"})
	g2, _ := f.store.CreateGoal(ctx, types.NewGoal{UserID: "u1", Title: "Run"})
	f.store.InsertTasks(ctx, []types.NewTask{{GoalID: g1.ID, Title: "Read", Priority: types.PriorityLow}})
	f.store.InsertTasks(ctx, []types.NewTask{{GoalID: g2.ID, Title: "Jog", Priority: types.PriorityHigh}})
	f.store.UpsertProfile(ctx, "u1", "u1@example.com")

	// u2: tasks but no profile
	g3, _ := f.store.CreateGoal(ctx, types.NewGoal{UserID: "u2", Title: "Paint"})
	f.store.InsertTasks(ctx, []types.NewTask{{GoalID: g3.ID, Title: "Buy brushes"}})

	// u3: profile but no tasks
	f.store.CreateGoal(ctx, types.NewGoal{UserID: "u3", Title: "Rest"})
	f.store.UpsertProfile(ctx, "u3", "u3@example.com")

	// u4: delivery fails
	g5, _ := f.store.CreateGoal(ctx, types.NewGoal{UserID: "u4", Title: "Cook"})
	f.store.InsertTasks(ctx, []types.NewTask{{GoalID: g5.ID, Title: "Shop"}})
	f.store.UpsertProfile(ctx, "u4", "u4@example.com")
	f.notifier.failFor = "u4@example.com"

	result, err := f.svc.DailyDigest(ctx)
	if err != nil {
		t.Fatalf("DailyDigest() error = %v", err)
	}
	if result.GoalsChecked != 5 || result.EmailsSent != 1 {
		t.Errorf("result = %+v, want 5 goals and 1 email", result)
	}
	if len(f.notifier.digests) != 1 {
		t.Fatalf("digests = %+v", f.notifier.digests)
	}
	want := notify.Digest{Email: "u1@example.com", PendingCount: 2, TopTaskTitle: "Jog"}
	if f.notifier.digests[0] != want {
		t.Errorf("digest = %+v, want %+v", f.notifier.digests[0], want)
	}
	if got := DigestMessage(result); got != "Checked 5 goals. Sent 1 emails." {
		t.Errorf("DigestMessage() = %q", got)
	}
}

func TestSetProfile(t *testing.T) {
	f := newFixture(t, `{}`)
	p, err := f.svc.SetProfile(context.Background(), "u1", "me@example.com")
	if err != nil {
		t.Fatalf("SetProfile() error = %v", err)
	}
	if p.UserID != "u1" || p.Email != "me@example.com" {
		t.Errorf("profile = %+v", p)
	}
}
