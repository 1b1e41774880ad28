package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/dohr-michael/ralph-tui/internal/task"
)

// CreateParams are the inputs to Create.
type CreateParams struct {
	AgentPlugin   string
	TrackerPlugin string
	Model         string
	EpicID        string
	PRDPath       string
	MaxIterations int
	CWD           string
	Tasks         []task.Task // initial backlog snapshot
}

// Create snapshots the tracker's initial task list and initializes a fresh
// Session (spec §4.8).
func Create(p CreateParams) *Session {
	now := time.Now()
	completed := 0
	for _, t := range p.Tasks {
		if t.Status == task.StatusCompleted {
			completed++
		}
	}

	return &Session{
		SessionID:        NewID(),
		Status:           StatusRunning,
		StartedAt:        now,
		UpdatedAt:        now,
		AgentPlugin:      p.AgentPlugin,
		TrackerPlugin:    p.TrackerPlugin,
		Model:            p.Model,
		EpicID:           p.EpicID,
		PRDPath:          p.PRDPath,
		MaxIterations:    p.MaxIterations,
		CurrentIteration: 0,
		TasksCompleted:   completed,
		TotalTasks:       len(p.Tasks),
		TaskSnapshot:     p.Tasks,
		CWD:              p.CWD,
	}
}

// Fold increments current_iteration, increments tasks_completed if the
// iteration flipped a task to completed, updates updated_at, and clears or
// sets last_error (spec §4.8).
func Fold(s *Session, result task.IterationResult) *Session {
	next := *s
	next.CurrentIteration++
	next.UpdatedAt = time.Now()

	if result.Error != "" {
		next.LastError = result.Error
	} else {
		next.LastError = ""
	}

	if result.TaskCompleted {
		next.TasksCompleted++
	}

	return &next
}

// Resumable reports whether s can be resumed: still running/paused/
// interrupted and not every task has completed (spec §4.8).
func Resumable(s *Session) bool {
	switch s.Status {
	case StatusRunning, StatusPaused, StatusInterrupted:
	default:
		return false
	}
	return s.TasksCompleted < s.TotalTasks
}

// Summary produces a human-readable progress line for the resume prompt
// (spec §4.8), e.g. "3/10 tasks complete, iteration 7, paused".
func Summary(s *Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d/%d tasks complete, iteration %d", s.TasksCompleted, s.TotalTasks, s.CurrentIteration)
	if s.IsPaused {
		b.WriteString(", paused")
	} else {
		fmt.Fprintf(&b, ", %s", s.Status)
	}
	if s.LastError != "" {
		fmt.Fprintf(&b, ", last error: %s", s.LastError)
	}
	return b.String()
}
