package events

import (
	"github.com/dohr-michael/ralph-tui/internal/task"
)

// EngineStartedPayload is carried by engine:started.
type EngineStartedPayload struct {
	TotalTasks int `json:"total_tasks"`
}

// EnginePausedPayload is carried by engine:paused.
type EnginePausedPayload struct {
	CurrentIteration int `json:"current_iteration"`
}

// EngineResumedPayload is carried by engine:resumed.
type EngineResumedPayload struct {
	FromIteration int `json:"from_iteration"`
}

// TerminationReason is the reason the Engine stopped (spec §4.7).
type TerminationReason string

const (
	ReasonMaxIterations TerminationReason = "max_iterations"
	ReasonIdle          TerminationReason = "idle"
	ReasonFatal         TerminationReason = "fatal"
	ReasonInterrupted   TerminationReason = "interrupted"
	ReasonPausedExit    TerminationReason = "paused_exit"
)

// EngineStoppedPayload is carried by engine:stopped.
type EngineStoppedPayload struct {
	Reason          TerminationReason `json:"reason"`
	TotalIterations int               `json:"total_iterations"`
	TasksCompleted  int               `json:"tasks_completed"`
}

// IterationStartedPayload is carried by iteration:started.
type IterationStartedPayload struct {
	Iteration int       `json:"iteration"`
	Task      task.Task `json:"task"`
}

// IterationCompletedPayload is carried by iteration:completed.
type IterationCompletedPayload struct {
	Result task.IterationResult `json:"result"`
}

// Action is the retry decision the Engine's classifier produced for a
// failed iteration (spec §4.7).
type Action string

const (
	ActionRetry Action = "retry"
	ActionSkip  Action = "skip"
	ActionAbort Action = "abort"
)

// IterationFailedPayload is carried by iteration:failed.
type IterationFailedPayload struct {
	Iteration int       `json:"iteration"`
	Task      task.Task `json:"task"`
	Error     string    `json:"error"`
	Action    Action    `json:"action"`
}

// IterationRetryingPayload is carried by iteration:retrying.
type IterationRetryingPayload struct {
	Iteration    int       `json:"iteration"`
	Task         task.Task `json:"task"`
	RetryAttempt int       `json:"retry_attempt"`
	MaxRetries   int       `json:"max_retries"`
	DelayMS      int64     `json:"delay_ms"`
}

// SkipReason explains why no iteration was run.
type SkipReason string

const SkipReasonNoTasks SkipReason = "no_tasks"

// IterationSkippedPayload is carried by iteration:skipped.
type IterationSkippedPayload struct {
	Iteration int        `json:"iteration"`
	TaskID    string     `json:"task_id,omitempty"`
	Reason    SkipReason `json:"reason"`
}

// Stream identifies which subprocess stream an agent:output event carries.
type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
)

// AgentOutputPayload is carried by agent:output.
type AgentOutputPayload struct {
	Stream Stream `json:"stream"`
	Data   string `json:"data"`
}

// TaskSelectedPayload is carried by task:selected.
type TaskSelectedPayload struct {
	Task      task.Task `json:"task"`
	Iteration int       `json:"iteration"`
}

// TaskCompletedPayload is carried by task:completed.
type TaskCompletedPayload struct {
	TaskID    string `json:"task_id"`
	Iteration int    `json:"iteration"`
}

// AllCompletePayload is carried by all:complete.
type AllCompletePayload struct {
	TotalCompleted  int `json:"total_completed"`
	TotalIterations int `json:"total_iterations"`
}

// New builds an Event of the given type carrying payload, stamped with the
// session ID it belongs to (empty sessionID is valid for session-less
// events such as a pre-session validation failure).
func New(t EventType, sessionID string, payload any) Event {
	return Event{
		SessionID: sessionID,
		Type:      t,
		Payload:   payload,
	}
}
