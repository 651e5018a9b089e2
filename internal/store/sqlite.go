package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hyperengineering/orbit/internal/types"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// timeLayout is fixed-width UTC so that text comparison and ORDER BY on
// timestamp columns match chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// priorityOrder sorts tasks high > medium > low, then oldest first, then by
// ULID. The trailing keys make equal-priority ordering independent of the
// storage engine's row order.
const priorityOrder = `
	CASE priority WHEN 'high' THEN 3 WHEN 'medium' THEN 2 WHEN 'low' THEN 1 ELSE 0 END DESC,
	created_at ASC, id ASC`

const (
	goalColumns     = "id, user_id, title, status, created_at"
	taskColumns     = "id, goal_id, title, priority, status, due_date, created_at"
	reminderColumns = "id, user_id, message, remind_at, status, created_at"
	memoryColumns   = "id, user_id, memory_type, content, created_at"
	runColumns      = "id, user_id, summary, created_at"
)

// Compile-time interface check
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore represents the SQLite-backed assistant database.
type SQLiteStore struct {
	db          *sql.DB
	snapshotDir string
}

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithSnapshotDir sets the directory that GenerateSnapshot writes to.
func WithSnapshotDir(dir string) Option {
	return func(s *SQLiteStore) {
		s.snapshotDir = dir
	}
}

// NewSQLiteStore creates a new SQLiteStore instance.
// It initializes the database with WAL mode, applies pragmas, and runs migrations.
func NewSQLiteStore(dbPath string, opts ...Option) (*SQLiteStore, error) {
	inMemory := dbPath == ":memory:"

	// Ensure parent directory exists
	if dir := filepath.Dir(dbPath); !inMemory && dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Every pooled connection to :memory: would be a separate empty database.
	if inMemory {
		db.SetMaxOpenConns(1)
	}

	if err := enablePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable pragmas: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	s := &SQLiteStore{db: db}
	if inMemory {
		s.snapshotDir = filepath.Join(os.TempDir(), "orbit-snapshots")
	} else {
		s.snapshotDir = filepath.Join(filepath.Dir(dbPath), "snapshots")
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// enablePragmas sets SQLite pragmas for optimal performance and safety.
func enablePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if t, err := time.Parse(timeLayout, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

type rowScanner interface{ Scan(...any) error }

// --- Goals ---

func scanGoal(scanner rowScanner) (*types.Goal, error) {
	var g types.Goal
	var status, createdAt string
	if err := scanner.Scan(&g.ID, &g.UserID, &g.Title, &status, &createdAt); err != nil {
		return nil, err
	}
	g.Status = types.GoalStatus(status)
	g.CreatedAt = parseTime(createdAt)
	return &g, nil
}

// ActiveGoal returns the user's oldest active or in-progress goal.
// Returns ErrNotFound when the user has none.
func (s *SQLiteStore) ActiveGoal(ctx context.Context, userID string) (*types.Goal, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+goalColumns+`
		FROM goals
		WHERE user_id = ? AND status IN ('active', 'in_progress')
		ORDER BY created_at ASC, id ASC
		LIMIT 1
	`, userID)

	goal, err := scanGoal(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan goal: %w", err)
	}
	return goal, nil
}

// GetGoal returns a goal by ID.
func (s *SQLiteStore) GetGoal(ctx context.Context, id string) (*types.Goal, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+goalColumns+` FROM goals WHERE id = ?
	`, id)

	goal, err := scanGoal(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan goal: %w", err)
	}
	return goal, nil
}

// ListActiveGoals returns every active or in-progress goal across all users.
func (s *SQLiteStore) ListActiveGoals(ctx context.Context) ([]types.Goal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+goalColumns+`
		FROM goals
		WHERE status IN ('active', 'in_progress')
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query active goals: %w", err)
	}
	defer rows.Close()

	goals := []types.Goal{}
	for rows.Next() {
		goal, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		goals = append(goals, *goal)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return goals, nil
}

// CreateGoal inserts a goal. Status defaults to active.
func (s *SQLiteStore) CreateGoal(ctx context.Context, in types.NewGoal) (*types.Goal, error) {
	if in.UserID == "" || in.Title == "" {
		return nil, fmt.Errorf("%w: goal requires user id and title", ErrInvalidInput)
	}
	goal := types.Goal{
		ID:        ulid.Make().String(),
		UserID:    in.UserID,
		Title:     in.Title,
		Status:    in.Status,
		CreatedAt: time.Now().UTC(),
	}
	if goal.Status == "" {
		goal.Status = types.GoalActive
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO goals (`+goalColumns+`) VALUES (?, ?, ?, ?, ?)
	`, goal.ID, goal.UserID, goal.Title, string(goal.Status), formatTime(goal.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("insert goal: %w", err)
	}
	return &goal, nil
}

// --- Tasks ---

func scanTask(scanner rowScanner) (*types.Task, error) {
	var t types.Task
	var priority, status, createdAt string
	var dueDate sql.NullString
	if err := scanner.Scan(&t.ID, &t.GoalID, &t.Title, &priority, &status, &dueDate, &createdAt); err != nil {
		return nil, err
	}
	t.Priority = types.Priority(priority)
	t.Status = types.TaskStatus(status)
	t.CreatedAt = parseTime(createdAt)
	if dueDate.Valid {
		due := parseTime(dueDate.String)
		t.DueDate = &due
	}
	return &t, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

// PendingTasks returns the goal's pending tasks, highest priority first.
func (s *SQLiteStore) PendingTasks(ctx context.Context, goalID string) ([]types.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE goal_id = ? AND status = 'pending'
		ORDER BY `+priorityOrder, goalID)
	if err != nil {
		return nil, fmt.Errorf("query pending tasks: %w", err)
	}
	defer rows.Close()

	tasks := []types.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return tasks, nil
}

// TopPendingTask returns the goal's highest-priority pending task.
// Returns ErrNotFound when the goal has no pending tasks.
func (s *SQLiteStore) TopPendingTask(ctx context.Context, goalID string) (*types.Task, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE goal_id = ? AND status = 'pending'
		ORDER BY `+priorityOrder+`
		LIMIT 1`, goalID)

	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}
	return task, nil
}

// GetTask retrieves a task by ID.
func (s *SQLiteStore) GetTask(ctx context.Context, id string) (*types.Task, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+taskColumns+` FROM tasks WHERE id = ?
	`, id)

	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}
	return task, nil
}

// InsertTasks stores new pending tasks in a single transaction.
// Priority defaults to medium when unset or unknown.
func (s *SQLiteStore) InsertTasks(ctx context.Context, in []types.NewTask) ([]types.Task, error) {
	if len(in) == 0 {
		return []types.Task{}, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, 'pending', ?, ?)
	`)
	if err != nil {
		return nil, fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	created := make([]types.Task, 0, len(in))
	for _, nt := range in {
		if nt.GoalID == "" || nt.Title == "" {
			return nil, fmt.Errorf("%w: task requires goal id and title", ErrInvalidInput)
		}
		task := types.Task{
			ID:        ulid.Make().String(),
			GoalID:    nt.GoalID,
			Title:     nt.Title,
			Priority:  nt.Priority.OrDefault(),
			Status:    types.TaskPending,
			DueDate:   nt.DueDate,
			CreatedAt: now,
		}
		if _, err := stmt.ExecContext(ctx,
			task.ID,
			task.GoalID,
			task.Title,
			string(task.Priority),
			nullableTime(task.DueDate),
			formatTime(task.CreatedAt),
		); err != nil {
			return nil, fmt.Errorf("insert task: %w", err)
		}
		created = append(created, task)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return created, nil
}

// RescheduleTask moves a task's due date and sets its priority.
func (s *SQLiteStore) RescheduleTask(ctx context.Context, id string, due time.Time, priority types.Priority) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET due_date = ?, priority = ? WHERE id = ?
	`, formatTime(due), string(priority.OrDefault()), id)
	if err != nil {
		return fmt.Errorf("reschedule task: %w", err)
	}
	return requireAffected(result)
}

// CompleteTask marks a task done.
func (s *SQLiteStore) CompleteTask(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET status = 'done' WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	return requireAffected(result)
}

func requireAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Reminders ---

func scanReminder(scanner rowScanner) (*types.Reminder, error) {
	var r types.Reminder
	var remindAt, status, createdAt string
	if err := scanner.Scan(&r.ID, &r.UserID, &r.Message, &remindAt, &status, &createdAt); err != nil {
		return nil, err
	}
	r.RemindAt = parseTime(remindAt)
	r.Status = types.ReminderStatus(status)
	r.CreatedAt = parseTime(createdAt)
	return &r, nil
}

// UpcomingReminders returns up to limit pending reminders strictly after the
// given instant, soonest first.
func (s *SQLiteStore) UpcomingReminders(ctx context.Context, userID string, after time.Time, limit int) ([]types.Reminder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+reminderColumns+`
		FROM reminders
		WHERE user_id = ? AND status = 'pending' AND remind_at > ?
		ORDER BY remind_at ASC, id ASC
		LIMIT ?
	`, userID, formatTime(after), limit)
	if err != nil {
		return nil, fmt.Errorf("query reminders: %w", err)
	}
	defer rows.Close()

	reminders := []types.Reminder{}
	for rows.Next() {
		reminder, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		reminders = append(reminders, *reminder)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return reminders, nil
}

// InsertReminder stores a pending reminder.
func (s *SQLiteStore) InsertReminder(ctx context.Context, in types.NewReminder) (*types.Reminder, error) {
	if in.UserID == "" || in.Message == "" || in.RemindAt.IsZero() {
		return nil, fmt.Errorf("%w: reminder requires user id, message and time", ErrInvalidInput)
	}
	reminder := types.Reminder{
		ID:        ulid.Make().String(),
		UserID:    in.UserID,
		Message:   in.Message,
		RemindAt:  in.RemindAt.UTC(),
		Status:    types.ReminderPending,
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reminders (`+reminderColumns+`) VALUES (?, ?, ?, ?, ?, ?)
	`, reminder.ID, reminder.UserID, reminder.Message, formatTime(reminder.RemindAt),
		string(reminder.Status), formatTime(reminder.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("insert reminder: %w", err)
	}
	return &reminder, nil
}

// --- Agent memory ---

func scanMemory(scanner rowScanner) (*types.MemoryEntry, error) {
	var m types.MemoryEntry
	var memoryType, createdAt string
	if err := scanner.Scan(&m.ID, &m.UserID, &memoryType, &m.Content, &createdAt); err != nil {
		return nil, err
	}
	m.MemoryType = types.MemoryType(memoryType)
	m.CreatedAt = parseTime(createdAt)
	return &m, nil
}

// RecentMemory returns up to limit memory entries, newest first.
func (s *SQLiteStore) RecentMemory(ctx context.Context, userID string, limit int) ([]types.MemoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+memoryColumns+`
		FROM agent_memory
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query memory: %w", err)
	}
	defer rows.Close()

	entries := []types.MemoryEntry{}
	for rows.Next() {
		entry, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return entries, nil
}

// AppendMemory stores a memory entry. Entries are never updated or deleted.
func (s *SQLiteStore) AppendMemory(ctx context.Context, in types.NewMemoryEntry) (*types.MemoryEntry, error) {
	if in.UserID == "" || in.MemoryType == "" {
		return nil, fmt.Errorf("%w: memory requires user id and type", ErrInvalidInput)
	}
	entry := types.MemoryEntry{
		ID:         ulid.Make().String(),
		UserID:     in.UserID,
		MemoryType: in.MemoryType,
		Content:    in.Content,
		CreatedAt:  time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agent_memory (`+memoryColumns+`) VALUES (?, ?, ?, ?, ?)
	`, entry.ID, entry.UserID, string(entry.MemoryType), entry.Content, formatTime(entry.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("insert memory: %w", err)
	}
	return &entry, nil
}

// --- Agent runs ---

// AppendRunLog stores the audit summary of one loop execution.
func (s *SQLiteStore) AppendRunLog(ctx context.Context, userID string, summary types.RunSummary) (*types.RunLog, error) {
	summaryBytes, err := json.Marshal(summary)
	if err != nil {
		return nil, fmt.Errorf("marshal summary: %w", err)
	}
	run := types.RunLog{
		ID:        ulid.Make().String(),
		UserID:    userID,
		Summary:   summary,
		CreatedAt: time.Now().UTC(),
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO agent_runs (`+runColumns+`) VALUES (?, ?, ?, ?)
	`, run.ID, run.UserID, string(summaryBytes), formatTime(run.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return &run, nil
}

// RecentRuns returns up to limit run logs for the user, newest first.
func (s *SQLiteStore) RecentRuns(ctx context.Context, userID string, limit int) ([]types.RunLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM agent_runs
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []types.RunLog{}
	for rows.Next() {
		var run types.RunLog
		var summaryJSON, createdAt string
		if err := rows.Scan(&run.ID, &run.UserID, &summaryJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if err := json.Unmarshal([]byte(summaryJSON), &run.Summary); err != nil {
			return nil, fmt.Errorf("parse summary JSON: %w", err)
		}
		run.CreatedAt = parseTime(createdAt)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return runs, nil
}

// --- Profiles ---

// GetProfile returns the user's notification profile.
func (s *SQLiteStore) GetProfile(ctx context.Context, userID string) (*types.Profile, error) {
	var p types.Profile
	var updatedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, updated_at FROM profiles WHERE id = ?
	`, userID).Scan(&p.UserID, &p.Email, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan profile: %w", err)
	}
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

// UpsertProfile creates or replaces the user's notification address.
func (s *SQLiteStore) UpsertProfile(ctx context.Context, userID, email string) (*types.Profile, error) {
	if userID == "" || email == "" {
		return nil, fmt.Errorf("%w: profile requires user id and email", ErrInvalidInput)
	}
	p := types.Profile{UserID: userID, Email: email, UpdatedAt: time.Now().UTC()}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (id, email, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET email = excluded.email, updated_at = excluded.updated_at
	`, p.UserID, p.Email, formatTime(p.UpdatedAt))
	if err != nil {
		return nil, fmt.Errorf("upsert profile: %w", err)
	}
	return &p, nil
}

// --- Maintenance ---

// GetStats returns aggregate row counts.
func (s *SQLiteStore) GetStats(ctx context.Context) (*types.StoreStats, error) {
	var stats types.StoreStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM goals),
			(SELECT COUNT(*) FROM tasks),
			(SELECT COUNT(*) FROM reminders),
			(SELECT COUNT(*) FROM agent_memory),
			(SELECT COUNT(*) FROM agent_runs)
	`).Scan(&stats.GoalCount, &stats.TaskCount, &stats.ReminderCount, &stats.MemoryCount, &stats.RunCount)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	return &stats, nil
}

// GenerateSnapshot writes a consistent copy of the database with VACUUM INTO
// and atomically replaces the previous snapshot. Returns the snapshot path.
func (s *SQLiteStore) GenerateSnapshot(ctx context.Context) (string, error) {
	if err := os.MkdirAll(s.snapshotDir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot directory: %w", err)
	}

	finalPath := filepath.Join(s.snapshotDir, "current.db")
	tmpPath := filepath.Join(s.snapshotDir, fmt.Sprintf("snapshot-%s.db.tmp", ulid.Make().String()))

	// VACUUM INTO refuses to overwrite an existing file
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", tmpPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("vacuum into snapshot: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("replace snapshot: %w", err)
	}
	return finalPath, nil
}
