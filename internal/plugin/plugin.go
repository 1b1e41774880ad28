// Package plugin defines the Agent and Tracker plugin contracts (spec §6.2,
// §6.3) that the Iteration Controller and Agent Runner drive. Concrete
// implementations live under internal/plugin/<name>.
package plugin

import (
	"context"

	"github.com/dohr-michael/ralph-tui/internal/events"
	"github.com/dohr-michael/ralph-tui/internal/task"
)

// Detection reports whether an agent plugin's underlying binary or service
// is installed and reachable.
type Detection struct {
	Available bool
	Error     string
}

// Meta identifies an agent plugin for logging and session metadata.
type Meta struct {
	Name    string
	Version string
}

// Status is the terminal outcome of one agent invocation.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusTimedOut  Status = "timed_out"
)

// AgentResult is what one Agent.Execute invocation resolves to (spec §4.5).
type AgentResult struct {
	Status     Status
	ExitCode   int
	StdoutTail string
	StderrTail string
	Error      string
}

// ExecuteContext carries the ambient parameters an Agent needs to build and
// run a prompt for one iteration.
type ExecuteContext struct {
	CWD     string
	Task    task.Task
	Session string // session_id, for agents that want to correlate runs
	Model   string
	EpicID  string
	PRDPath string
}

// Handle is returned by Execute: a running invocation the caller can stream
// output from, wait on, or cancel (spec §6.2).
type Handle struct {
	// Done resolves to the AgentResult once the invocation finishes, by any
	// means (normal exit, cancellation, or timeout).
	Done <-chan AgentResult
	// Cancel requests termination. Safe to call multiple times.
	Cancel func()
	// Stdout and Stderr stream raw output chunks as they arrive. Both
	// channels are closed when the invocation finishes.
	Stdout <-chan string
	Stderr <-chan string
}

// Agent is the plugin contract an agent backend implements (spec §6.2).
// Implementations are stateless across invocations.
type Agent interface {
	Detect(ctx context.Context) Detection
	IsReady(ctx context.Context) bool
	Meta() Meta
	Execute(ctx context.Context, prompt string, ec ExecuteContext) (*Handle, error)
}

// Tracker is the plugin contract a task-tracking backend implements
// (spec §6.3).
type Tracker interface {
	// GetTasks returns tasks in stable, deterministic order. statuses, when
	// non-empty, filters the result to those statuses.
	GetTasks(ctx context.Context, statuses []task.Status) ([]task.Task, error)
	MarkInProgress(ctx context.Context, taskID string) (bool, error)
	Get(ctx context.Context, taskID string) (task.Task, error)
	// Complete is optional: most trackers rely on the agent itself to close
	// the task and merely report state back on the next GetTasks/Get.
	Complete(ctx context.Context, taskID string) error
}

// Bus is the subset of the event bus an Agent Runner needs, so plugin
// implementations can be tested without depending on the whole events
// package surface.
type Bus interface {
	Publish(events.Event)
}
