// Package engine implements the top-level execution loop (spec §4.7):
// iteration budget, retry/backoff, pause/resume, and termination reasons.
// Its state-machine shape (mutex-guarded state, a cancellable context, a
// wait group for the loop goroutine) is grounded on the teacher's
// ActorPool (internal/actors/pool.go) Start/Stop lifecycle, generalized
// from a multi-actor scheduler into a single sequential loop driving one
// Iteration Controller.
package engine

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/dohr-michael/ralph-tui/internal/events"
	"github.com/dohr-michael/ralph-tui/internal/iteration"
	"github.com/dohr-michael/ralph-tui/internal/plugin"
	"github.com/dohr-michael/ralph-tui/internal/session"
)

// State is a node of the Engine's state machine (spec §4.7).
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StatePaused   State = "paused"
	StateStopping State = "stopping"
	StateStopped  State = "stopped"
)

// RetryConfig is the retry/backoff policy (spec §4.7).
type RetryConfig struct {
	MaxAttempts     int
	InitialDelayMS  int64
	BackoffCapMS    int64
}

func (r RetryConfig) normalized() RetryConfig {
	if r.MaxAttempts <= 0 {
		r.MaxAttempts = 3
	}
	if r.InitialDelayMS <= 0 {
		r.InitialDelayMS = 1000
	}
	if r.BackoffCapMS <= 0 {
		r.BackoffCapMS = 30_000
	}
	return r
}

// Backoff returns the delay before retry attempt k (1-indexed), per spec
// §4.7: min(initial * 2^k, cap) with small jitter.
func (r RetryConfig) Backoff(k int) time.Duration {
	r = r.normalized()
	delay := r.InitialDelayMS
	for i := 0; i < k; i++ {
		delay *= 2
		if delay >= r.BackoffCapMS {
			delay = r.BackoffCapMS
			break
		}
	}
	jitter := time.Duration(rand.Int63n(int64(100 * time.Millisecond)))
	return time.Duration(delay)*time.Millisecond + jitter
}

// Config configures an Engine run.
type Config struct {
	Controller       *iteration.Controller
	Bus              *events.Bus
	Store            *session.Store
	MaxIterations    int
	IterationDelayMS int64
	Retry            RetryConfig
}

// Engine owns the top-level loop for one session.
type Engine struct {
	cfg Config

	mu    sync.Mutex
	state State

	pauseCh  chan struct{}
	resumeCh chan struct{}
	stopCh   chan struct{}
}

// New creates an Engine bound to cfg's dependencies.
func New(cfg Config) *Engine {
	cfg.Retry = cfg.Retry.normalized()
	return &Engine{
		cfg:      cfg,
		state:    StateIdle,
		pauseCh:  make(chan struct{}, 1),
		resumeCh: make(chan struct{}, 1),
		stopCh:   make(chan struct{}, 1),
	}
}

// State returns the Engine's current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Pause requests that the loop stop after its current iteration and enter
// StatePaused (spec §4.7: "checkpointed state, not a cancellation").
func (e *Engine) Pause() {
	select {
	case e.pauseCh <- struct{}{}:
	default:
	}
}

// Resume wakes a paused loop back into StateRunning.
func (e *Engine) Resume() {
	select {
	case e.resumeCh <- struct{}{}:
	default:
	}
}

// Stop requests an explicit, non-signal-driven shutdown of a running or
// paused loop. (`ralph stop` does not call it; it sends SIGINT, which goes
// through the Interrupt Coordinator.) It reports
// ReasonPausedExit rather than ReasonInterrupted, since no Interrupt
// Coordinator confirmation was involved.
func (e *Engine) Stop() {
	select {
	case e.stopCh <- struct{}{}:
	default:
	}
}

// attemptTracker counts retry attempts per task ID across the run, reset
// whenever a different task is selected.
type attemptTracker struct {
	taskID  string
	attempt int
}

func (a *attemptTracker) attemptsFor(id string) int {
	if a.taskID != id {
		return 0
	}
	return a.attempt
}

func (a *attemptTracker) recordFailure(id string) int {
	if a.taskID != id {
		a.taskID = id
		a.attempt = 0
	}
	a.attempt++
	return a.attempt
}

func (a *attemptTracker) reset() {
	a.taskID = ""
	a.attempt = 0
}

// Run drives sess through the loop until a terminal state is reached,
// persisting after every tick. It returns the final Session and the
// termination reason (spec §4.7's pseudocode).
func (e *Engine) Run(ctx context.Context, sess *session.Session, ec plugin.ExecuteContext) (*session.Session, events.TerminationReason) {
	e.mu.Lock()
	e.state = StateRunning
	e.mu.Unlock()

	e.cfg.Bus.Publish(events.New(events.EventEngineStarted, sess.SessionID, events.EngineStartedPayload{
		TotalTasks: sess.TotalTasks,
	}))

	var attempts attemptTracker

	for {
		if ctx.Err() != nil {
			return e.terminate(sess, events.ReasonInterrupted)
		}
		select {
		case <-e.stopCh:
			return e.terminate(sess, events.ReasonPausedExit)
		default:
		}

		if waitPaused, reason, done := e.checkPause(ctx, sess); waitPaused {
			if done {
				return e.terminate(sess, reason)
			}
			continue
		}

		if e.cfg.MaxIterations > 0 && sess.CurrentIteration >= e.cfg.MaxIterations {
			return e.terminate(sess, events.ReasonMaxIterations)
		}

		outcome, err := e.cfg.Controller.Run(ctx, sess.SessionID, sess.CurrentIteration, ec)
		if err != nil {
			return e.terminate(sess, events.ReasonFatal)
		}
		if outcome.NoTasks {
			return e.terminate(sess, events.ReasonIdle)
		}

		sess = session.Fold(sess, outcome.Result)
		if err := e.cfg.Store.Save(sess); err != nil {
			return e.terminate(sess, events.ReasonFatal)
		}

		if sess.TotalTasks > 0 && sess.TasksCompleted >= sess.TotalTasks {
			return e.terminate(sess, events.ReasonIdle)
		}

		if outcome.Result.Error != "" {
			action := iteration.Classify(outcome.Result.Error, plugin.AgentResult{ExitCode: outcome.Result.ExitCode}, outcome.Result.Task)
			switch action {
			case events.ActionRetry:
				attempt := attempts.recordFailure(outcome.Result.Task.ID)
				if attempt < e.cfg.Retry.MaxAttempts {
					delay := e.cfg.Retry.Backoff(attempt)
					e.cfg.Bus.Publish(events.New(events.EventIterationRetrying, sess.SessionID, events.IterationRetryingPayload{
						Iteration: sess.CurrentIteration, Task: outcome.Result.Task,
						RetryAttempt: attempt, MaxRetries: e.cfg.Retry.MaxAttempts, DelayMS: delay.Milliseconds(),
					}))
					if cancelled := sleepCancellable(ctx, delay); cancelled {
						return e.terminate(sess, events.ReasonInterrupted)
					}
					continue
				}
				return e.terminate(sess, events.ReasonFatal)
			case events.ActionSkip:
				attempts.reset()
				continue
			case events.ActionAbort:
				return e.terminate(sess, events.ReasonFatal)
			}
		} else {
			attempts.reset()
		}

		if e.cfg.IterationDelayMS > 0 {
			if cancelled := sleepCancellable(ctx, time.Duration(e.cfg.IterationDelayMS)*time.Millisecond); cancelled {
				return e.terminate(sess, events.ReasonInterrupted)
			}
		}
	}
}

// checkPause drains a pending Pause request, persists the paused session,
// emits engine:paused, and blocks until Resume or ctx cancellation. It
// returns (true, reason, true) when the loop must return immediately
// (interrupted while paused), (true, _, false) when the caller should loop
// again having resumed, and (false, _, _) when no pause was requested.
func (e *Engine) checkPause(ctx context.Context, sess *session.Session) (acted bool, reason events.TerminationReason, done bool) {
	select {
	case <-e.pauseCh:
	default:
		return false, "", false
	}

	e.mu.Lock()
	e.state = StatePaused
	e.mu.Unlock()

	sess.Status = session.StatusPaused
	sess.IsPaused = true
	now := time.Now()
	sess.PausedAt = &now
	_ = e.cfg.Store.Save(sess)

	e.cfg.Bus.Publish(events.New(events.EventEnginePaused, sess.SessionID, events.EnginePausedPayload{
		CurrentIteration: sess.CurrentIteration,
	}))

	select {
	case <-e.resumeCh:
		e.mu.Lock()
		e.state = StateRunning
		e.mu.Unlock()
		sess.IsPaused = false
		sess.PausedAt = nil
		sess.Status = session.StatusRunning
		_ = e.cfg.Store.Save(sess)
		e.cfg.Bus.Publish(events.New(events.EventEngineResumed, sess.SessionID, events.EngineResumedPayload{
			FromIteration: sess.CurrentIteration,
		}))
		return true, "", false
	case <-e.stopCh:
		return true, events.ReasonPausedExit, true
	case <-ctx.Done():
		return true, events.ReasonInterrupted, true
	}
}

// terminate drives sess to its terminal status for reason (spec §4.7's
// termination reasons, §3 invariant 3). idle always yields StatusCompleted
// — reaching idle is itself a completed terminal even when some tasks
// remain permanently blocked — while max_iterations and paused_exit leave
// the session resumable (spec scenario 2). A completed session is deleted
// from disk rather than saved (spec §3: "destroyed only on successful
// completed terminal").
func (e *Engine) terminate(sess *session.Session, reason events.TerminationReason) (*session.Session, events.TerminationReason) {
	e.mu.Lock()
	e.state = StateStopping
	e.mu.Unlock()

	switch reason {
	case events.ReasonIdle:
		sess.Status = session.StatusCompleted
	case events.ReasonFatal:
		sess.Status = session.StatusFailed
	case events.ReasonInterrupted:
		sess.Status = session.StatusInterrupted
	case events.ReasonMaxIterations:
		sess.Status = session.StatusRunning
	case events.ReasonPausedExit:
		sess.Status = session.StatusPaused
	}

	if sess.TotalTasks > 0 && sess.TasksCompleted >= sess.TotalTasks {
		e.cfg.Bus.Publish(events.New(events.EventAllComplete, sess.SessionID, events.AllCompletePayload{
			TotalCompleted:  sess.TasksCompleted,
			TotalIterations: sess.CurrentIteration,
		}))
	}

	if sess.Status == session.StatusCompleted {
		_ = e.cfg.Store.Delete(sess.CWD)
	} else {
		_ = e.cfg.Store.Save(sess)
	}

	e.cfg.Bus.Publish(events.New(events.EventEngineStopped, sess.SessionID, events.EngineStoppedPayload{
		Reason:          reason,
		TotalIterations: sess.CurrentIteration,
		TasksCompleted:  sess.TasksCompleted,
	}))

	e.mu.Lock()
	e.state = StateStopped
	e.mu.Unlock()

	return sess, reason
}

// sleepCancellable blocks for d or until ctx is done, whichever comes
// first; it reports whether ctx ended the sleep early (spec §5's
// "suspension points honour cancel_token").
func sleepCancellable(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return false
	case <-ctx.Done():
		return true
	}
}
