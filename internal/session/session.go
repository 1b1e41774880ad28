// Package session defines the durable run state (spec §3) and its atomic
// on-disk store (spec §4.2), plus the lifecycle operations that build,
// fold, and summarize it (spec §4.8).
package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/dohr-michael/ralph-tui/internal/task"
)

// Status is the lifecycle state of a Session.
type Status string

const (
	StatusRunning     Status = "running"
	StatusPaused      Status = "paused"
	StatusInterrupted Status = "interrupted"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

// Session is the durable state of one run (spec §3). It is mutated only by
// the Engine between ticks and persisted by the Store after every tick and
// on every status transition.
type Session struct {
	SessionID string `json:"session_id"`
	Status    Status `json:"status"`

	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`

	AgentPlugin   string `json:"agent_plugin"`
	TrackerPlugin string `json:"tracker_plugin"`
	Model         string `json:"model,omitempty"`
	EpicID        string `json:"epic_id,omitempty"`
	PRDPath       string `json:"prd_path,omitempty"`

	MaxIterations    int `json:"max_iterations"` // 0 = unbounded
	CurrentIteration int `json:"current_iteration"`
	TasksCompleted   int `json:"tasks_completed"`
	TotalTasks       int `json:"total_tasks"`

	TaskSnapshot []task.Task `json:"task_snapshot"`

	CWD string `json:"cwd"`

	IsPaused bool       `json:"is_paused"`
	PausedAt *time.Time `json:"paused_at,omitempty"`

	LastError string `json:"last_error,omitempty"`
}

// NewID returns a fresh session identifier, the "sess_<8 hex>" shape the
// teacher's FileStore generates for conversation sessions.
func NewID() string {
	return "sess_" + uuid.New().String()[:8]
}
