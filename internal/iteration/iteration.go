// Package iteration drives one tick of the loop (spec §4.6): select a task,
// build its prompt, run it through the Agent Runner, interpret the outcome
// against the tracker's ground truth, and emit the event sequence observers
// depend on. Grounded on the teacher's TaskRunner.Run state machine
// (internal/tasks/runner.go): mark-running, publish start, invoke, persist,
// publish outcome.
package iteration

import (
	"context"
	"time"

	"github.com/dohr-michael/ralph-tui/internal/agentrunner"
	"github.com/dohr-michael/ralph-tui/internal/events"
	"github.com/dohr-michael/ralph-tui/internal/plugin"
	"github.com/dohr-michael/ralph-tui/internal/task"
)

// Outcome is what one Controller.Run call resolves to.
type Outcome struct {
	// NoTasks is true when no eligible task exists; Run has already emitted
	// iteration:skipped, and the caller treats this as the "idle"
	// termination signal one layer up (spec §4.7).
	NoTasks bool
	Result  task.IterationResult
}

// Agent and Tracker are satisfied by internal/plugin's Agent and Tracker
// interfaces. Tracker is declared locally so Controller depends only on the
// methods it actually calls; Controller reaches the agent only through its
// agentrunner.Runner, not through Agent.
type Agent interface {
	Execute(ctx context.Context, prompt string, ec plugin.ExecuteContext) (*plugin.Handle, error)
}

type Tracker interface {
	GetTasks(ctx context.Context, statuses []task.Status) ([]task.Task, error)
	MarkInProgress(ctx context.Context, taskID string) (bool, error)
	Get(ctx context.Context, taskID string) (task.Task, error)
}

// PromptBuilder delegates prompt construction to the agent plugin (spec
// §4.6 step 4: "the core does not inspect prompts").
type PromptBuilder interface {
	BuildPrompt(ctx context.Context, t task.Task, ec plugin.ExecuteContext) (string, error)
}

// Controller performs one iteration.
type Controller struct {
	tracker Tracker
	prompts PromptBuilder
	runner  *agentrunner.Runner
	bus     *events.Bus

	timeout     time.Duration
	graceWindow time.Duration
}

// Config holds Controller dependencies.
type Config struct {
	Tracker       Tracker
	Prompts       PromptBuilder
	Runner        *agentrunner.Runner
	Bus           *events.Bus
	AgentTimeout  time.Duration
	GraceWindow   time.Duration
}

// New creates a Controller.
func New(cfg Config) *Controller {
	return &Controller{
		tracker:     cfg.Tracker,
		prompts:     cfg.Prompts,
		runner:      cfg.Runner,
		bus:         cfg.Bus,
		timeout:     cfg.AgentTimeout,
		graceWindow: cfg.GraceWindow,
	}
}

// Run performs one iteration (spec §4.6 steps 1-8).
func (c *Controller) Run(ctx context.Context, sessionID string, iterationNum int, ec plugin.ExecuteContext) (Outcome, error) {
	eligible, err := c.selectTask(ctx)
	if err != nil {
		return Outcome{}, err
	}
	if eligible == nil {
		c.bus.Publish(events.New(events.EventIterationSkipped, sessionID, events.IterationSkippedPayload{
			Reason: events.SkipReasonNoTasks,
		}))
		return Outcome{NoTasks: true}, nil
	}
	t := *eligible

	c.bus.Publish(events.New(events.EventTaskSelected, sessionID, events.TaskSelectedPayload{
		Task: t, Iteration: iterationNum,
	}))

	// Mark in-progress is best-effort: a rejection degrades to read-only
	// observation for this iteration rather than aborting it.
	_, _ = c.tracker.MarkInProgress(ctx, t.ID)

	ec.Task = t
	prompt, err := c.prompts.BuildPrompt(ctx, t, ec)
	if err != nil {
		return Outcome{}, err
	}

	c.bus.Publish(events.New(events.EventIterationStarted, sessionID, events.IterationStartedPayload{
		Iteration: iterationNum, Task: t,
	}))

	start := time.Now()
	res, runErr := c.runner.Run(ctx, sessionID, prompt, ec, agentrunner.Options{
		Timeout:     c.timeout,
		GraceWindow: c.graceWindow,
	})
	duration := time.Since(start)

	final, err := c.tracker.Get(ctx, t.ID)
	if err != nil {
		final = t
	}
	taskCompleted := final.Status == task.StatusCompleted

	result := task.IterationResult{
		Iteration:     iterationNum,
		Task:          final,
		TaskCompleted: taskCompleted,
		DurationMS:    duration.Milliseconds(),
		ExitCode:      res.ExitCode,
	}

	runFailed := runErr != nil || res.Status == plugin.StatusFailed || res.Status == plugin.StatusTimedOut
	if runFailed {
		errMsg := res.Error
		if errMsg == "" && runErr != nil {
			errMsg = runErr.Error()
		}
		result.Error = errMsg

		action := Classify(errMsg, res, final)
		c.bus.Publish(events.New(events.EventIterationFailed, sessionID, events.IterationFailedPayload{
			Iteration: iterationNum, Task: final, Error: errMsg, Action: action,
		}))
		return Outcome{Result: result}, nil
	}

	c.bus.Publish(events.New(events.EventIterationCompleted, sessionID, events.IterationCompletedPayload{Result: result}))
	if taskCompleted {
		c.bus.Publish(events.New(events.EventTaskCompleted, sessionID, events.TaskCompletedPayload{
			TaskID: final.ID, Iteration: iterationNum,
		}))
	}
	return Outcome{Result: result}, nil
}

// selectTask implements spec §4.6 step 1: open/in_progress tasks with
// satisfied dependencies, in the tracker's own stable order. It fetches the
// full backlog (an empty status filter means "all") because dependency
// satisfaction needs to see completed tasks too, not just the candidates.
func (c *Controller) selectTask(ctx context.Context) (*task.Task, error) {
	all, err := c.tracker.GetTasks(ctx, nil)
	if err != nil {
		return nil, err
	}
	eligible := task.Eligible(all)
	if len(eligible) == 0 {
		return nil, nil
	}
	t := eligible[0]
	return &t, nil
}
