package types

import "time"

// GoalStatus represents the lifecycle state of a goal
type GoalStatus string

const (
	GoalActive     GoalStatus = "active"
	GoalInProgress GoalStatus = "in_progress"
	GoalCompleted  GoalStatus = "completed"
)

// IsOpen reports whether the goal is one the agent works on.
func (s GoalStatus) IsOpen() bool {
	return s == GoalActive || s == GoalInProgress
}

// Priority represents the urgency of a task
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Rank returns the position of the priority in the total order
// high > medium > low. Unknown values rank below low.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	return p.Rank() > 0
}

// OrDefault returns p when valid, medium otherwise.
func (p Priority) OrDefault() Priority {
	if p.Valid() {
		return p
	}
	return PriorityMedium
}

// TaskStatus represents the completion state of a task
type TaskStatus string

const (
	TaskPending TaskStatus = "pending"
	TaskDone    TaskStatus = "done"
)

// ReminderStatus represents the delivery state of a reminder
type ReminderStatus string

const (
	ReminderPending ReminderStatus = "pending"
	ReminderFired   ReminderStatus = "fired"
)

// MemoryType tags a long-term memory entry
type MemoryType string

const (
	MemoryReminderSet         MemoryType = "reminder_set"
	MemoryUserPreference      MemoryType = "user_preference"
	MemoryRoadmapUpdate       MemoryType = "roadmap_update"
	MemoryLastRecommendedTask MemoryType = "last_recommended_task"
	MemoryUserInstruction     MemoryType = "user_instruction"
	MemoryTaskCompleted       MemoryType = "task_completed"
)

// RunType identifies what triggered an agent run
type RunType string

const (
	RunManual RunType = "manual"
	RunDaily  RunType = "daily"
)

// Goal is a top-level user objective
type Goal struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Title     string     `json:"title"`
	Status    GoalStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
}

// NewGoal is the input type for creating goals (without generated fields).
type NewGoal struct {
	UserID string
	Title  string
	Status GoalStatus
}

// Task is an actionable unit under a goal
type Task struct {
	ID        string     `json:"id"`
	GoalID    string     `json:"goal_id"`
	Title     string     `json:"title"`
	Priority  Priority   `json:"priority"`
	Status    TaskStatus `json:"status"`
	DueDate   *time.Time `json:"due_date,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// NewTask is the input type for creating tasks (without generated fields).
type NewTask struct {
	GoalID   string
	Title    string
	Priority Priority
	DueDate  *time.Time
}

// Reminder is a time-triggered note
type Reminder struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Message   string         `json:"message"`
	RemindAt  time.Time      `json:"remind_at"`
	Status    ReminderStatus `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewReminder is the input type for creating reminders.
type NewReminder struct {
	UserID   string
	Message  string
	RemindAt time.Time
}

// MemoryEntry is an append-only note giving the agent context across runs
type MemoryEntry struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	MemoryType MemoryType `json:"memory_type"`
	Content    string     `json:"content"`
	CreatedAt  time.Time  `json:"created_at"`
}

// NewMemoryEntry is the input type for appending memory.
type NewMemoryEntry struct {
	UserID     string
	MemoryType MemoryType
	Content    string
}

// RunSummary is the audit payload recorded for every loop execution.
type RunSummary struct {
	RunType      RunType `json:"runType"`
	DecisionType string  `json:"decisionType"`
	Message      string  `json:"message"`
	Timestamp    string  `json:"timestamp"`
}

// RunLog is one row of the agent audit trail
type RunLog struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Summary   RunSummary `json:"summary"`
	CreatedAt time.Time  `json:"created_at"`
}

// Profile holds the contact details used for notifications.
type Profile struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StoreStats holds aggregate store statistics.
type StoreStats struct {
	GoalCount     int64 `json:"goal_count"`
	TaskCount     int64 `json:"task_count"`
	ReminderCount int64 `json:"reminder_count"`
	MemoryCount   int64 `json:"memory_count"`
	RunCount      int64 `json:"run_count"`
}

// --- API request/response types ---

// RunRequest triggers one agent loop for a user.
type RunRequest struct {
	UserID    string  `json:"user_id"`
	RunType   RunType `json:"run_type,omitempty"`
	UserQuery string  `json:"user_query,omitempty"`
}

// CompleteTaskRequest marks a task done on behalf of its owner.
type CompleteTaskRequest struct {
	UserID string `json:"user_id"`
}

// ProfileRequest sets a user's notification address.
type ProfileRequest struct {
	Email string `json:"email"`
}

// MessageResponse is the envelope for operations returning a sentence.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// DigestResult summarizes one daily reminder sweep.
type DigestResult struct {
	GoalsChecked int `json:"goals_checked"`
	EmailsSent   int `json:"emails_sent"`
}

// DigestResponse is returned by the daily reminders endpoint.
type DigestResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	DigestResult
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status      string     `json:"status"`
	Version     string     `json:"version"`
	OracleModel string     `json:"oracle_model"`
	Stats       StoreStats `json:"stats"`
}

// SnapshotURLResponse carries a pre-signed download link for the database snapshot.
type SnapshotURLResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
