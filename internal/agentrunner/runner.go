// Package agentrunner drives one agent invocation end to end (spec §4.5):
// starts the plugin's subprocess handle, streams output onto the event bus,
// enforces a timeout, and honors cancellation with a grace window before
// escalating to forced termination. Grounded on the os/exec.CommandContext
// and timeout pattern in the plugin pack's run_command tool, generalized
// from a single blocking Run into the streamed promise/cancel shape the
// Agent plugin contract requires.
package agentrunner

import (
	"context"
	"time"

	"github.com/dohr-michael/ralph-tui/internal/events"
	"github.com/dohr-michael/ralph-tui/internal/plugin"
)

// defaultGraceWindow is how long a cancelled invocation is given to exit on
// its own before the runner considers it unresponsive. The plugin.Handle's
// Cancel is responsible for the actual escalation (e.g. SIGTERM then
// SIGKILL); the runner only bounds how long it waits for Done before giving
// up on a clean result.
const defaultGraceWindow = 5 * time.Second

// Options configure one Run.
type Options struct {
	Timeout     time.Duration
	GraceWindow time.Duration // defaults to defaultGraceWindow when zero
}

// Runner wraps an Agent plugin and an event sink.
type Runner struct {
	agent plugin.Agent
	bus   plugin.Bus
}

// New creates a Runner for agent, publishing agent:output events onto bus.
func New(agent plugin.Agent, bus plugin.Bus) *Runner {
	return &Runner{agent: agent, bus: bus}
}

// Run starts the agent invocation and blocks until it reaches a terminal
// AgentResult: completed, failed, cancelled, or timed_out. ctx cancellation
// is the cancel_token path (spec §4.5); a deadline from opts.Timeout is
// applied independently so a caller-supplied ctx without a deadline still
// gets bounded execution.
func (r *Runner) Run(ctx context.Context, sessionID, prompt string, ec plugin.ExecuteContext, opts Options) (plugin.AgentResult, error) {
	grace := opts.GraceWindow
	if grace <= 0 {
		grace = defaultGraceWindow
	}

	runCtx := ctx
	var cancelTimeout context.CancelFunc
	if opts.Timeout > 0 {
		runCtx, cancelTimeout = context.WithTimeout(ctx, opts.Timeout)
		defer cancelTimeout()
	}

	handle, err := r.agent.Execute(runCtx, prompt, ec)
	if err != nil {
		return plugin.AgentResult{Status: plugin.StatusFailed, Error: err.Error()}, err
	}

	stdoutTail := newTail(tailSize)
	stderrTail := newTail(tailSize)

	stdoutDone := make(chan struct{})
	stderrDone := make(chan struct{})
	go drainStream(r.bus, sessionID, events.StreamStdout, handle.Stdout, stdoutTail, stdoutDone)
	go drainStream(r.bus, sessionID, events.StreamStderr, handle.Stderr, stderrTail, stderrDone)

	result, outcome := r.await(runCtx, handle, grace)
	<-stdoutDone
	<-stderrDone

	result.StdoutTail = stdoutTail.String()
	result.StderrTail = stderrTail.String()
	return result, outcome
}

// await waits for the invocation to finish, or for runCtx to end, in which
// case it cancels the handle and waits up to grace for a result before
// reporting a synthetic terminal status itself.
func (r *Runner) await(runCtx context.Context, handle *plugin.Handle, grace time.Duration) (plugin.AgentResult, error) {
	select {
	case res := <-handle.Done:
		return res, nil
	case <-runCtx.Done():
	}

	handle.Cancel()

	timedOut := runCtx.Err() == context.DeadlineExceeded
	status := plugin.StatusCancelled
	if timedOut {
		status = plugin.StatusTimedOut
	}

	select {
	case res := <-handle.Done:
		// The plugin reported its own terminal result even though we asked
		// it to stop; trust it unless it claims success, which a cancelled
		// or timed-out run must never report.
		if res.Status == plugin.StatusCompleted {
			res.Status = status
		}
		return res, nil
	case <-time.After(grace):
		return plugin.AgentResult{Status: status, Error: "agent did not exit within grace window"}, nil
	}
}

func drainStream(bus plugin.Bus, sessionID string, stream events.Stream, ch <-chan string, tail *ringTail, done chan<- struct{}) {
	defer close(done)
	for chunk := range ch {
		tail.Write(chunk)
		if bus != nil {
			bus.Publish(events.New(events.EventAgentOutput, sessionID, events.AgentOutputPayload{
				Stream: stream,
				Data:   chunk,
			}))
		}
	}
}
