// Package task defines the Task type owned by Tracker plugins and treated
// as immutable by the core within one iteration.
package task

import "time"

// Status is the lifecycle state of a task as reported by a Tracker.
type Status string

const (
	StatusOpen        Status = "open"
	StatusInProgress  Status = "in_progress"
	StatusBlocked     Status = "blocked"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
)

// Task is one backlog item. The core treats a Task as immutable within one
// iteration; only the Tracker plugin mutates it.
type Task struct {
	ID     string   `json:"id"`
	Title  string   `json:"title"`
	Status Status   `json:"status"`
	Deps   []string `json:"deps,omitempty"`
}

// DepsSatisfied reports whether every dependency in deps is present, with
// status completed, in the given lookup.
func DepsSatisfied(t Task, byID map[string]Task) bool {
	for _, dep := range t.Deps {
		d, ok := byID[dep]
		if !ok || d.Status != StatusCompleted {
			return false
		}
	}
	return true
}

// Eligible filters tasks to the subset the Iteration Controller may pick
// from: status open or in_progress, with all dependencies completed.
// Order is preserved from the input slice — the Tracker contract (spec
// §6.3) guarantees that order is stable and deterministic.
func Eligible(all []Task) []Task {
	byID := make(map[string]Task, len(all))
	for _, t := range all {
		byID[t.ID] = t
	}

	var out []Task
	for _, t := range all {
		if t.Status != StatusOpen && t.Status != StatusInProgress {
			continue
		}
		if !DepsSatisfied(t, byID) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// IterationResult is the outcome of one Iteration Controller tick (spec §3).
type IterationResult struct {
	Iteration     int    `json:"iteration"`
	Task          Task   `json:"task"`
	TaskCompleted bool   `json:"task_completed"`
	DurationMS    int64  `json:"duration_ms"`
	ExitCode      int    `json:"exit_code"`
	Error         string `json:"error,omitempty"`
}

// Duration returns the iteration's wall-clock duration.
func (r IterationResult) Duration() time.Duration {
	return time.Duration(r.DurationMS) * time.Millisecond
}
