package engine

import (
	"context"
	"testing"
	"time"

	"github.com/dohr-michael/ralph-tui/internal/agentrunner"
	"github.com/dohr-michael/ralph-tui/internal/events"
	"github.com/dohr-michael/ralph-tui/internal/iteration"
	"github.com/dohr-michael/ralph-tui/internal/plugin"
	"github.com/dohr-michael/ralph-tui/internal/session"
	"github.com/dohr-michael/ralph-tui/internal/task"
)

type fakeTracker struct {
	tasks []task.Task
}

func (f *fakeTracker) GetTasks(ctx context.Context, statuses []task.Status) ([]task.Task, error) {
	return f.tasks, nil
}

func (f *fakeTracker) MarkInProgress(ctx context.Context, id string) (bool, error) {
	for i, t := range f.tasks {
		if t.ID == id {
			f.tasks[i].Status = task.StatusInProgress
		}
	}
	return true, nil
}

func (f *fakeTracker) Get(ctx context.Context, id string) (task.Task, error) {
	for _, t := range f.tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return task.Task{}, nil
}

func (f *fakeTracker) complete(id string) {
	for i, t := range f.tasks {
		if t.ID == id {
			f.tasks[i].Status = task.StatusCompleted
		}
	}
}

type fakePrompts struct{}

func (fakePrompts) BuildPrompt(ctx context.Context, t task.Task, ec plugin.ExecuteContext) (string, error) {
	return "go", nil
}

type scriptedAgent struct {
	results []plugin.AgentResult
	call    int
	onCall  func(n int)
}

func (s *scriptedAgent) Detect(context.Context) plugin.Detection { return plugin.Detection{Available: true} }
func (s *scriptedAgent) IsReady(context.Context) bool             { return true }
func (s *scriptedAgent) Meta() plugin.Meta                        { return plugin.Meta{Name: "scripted"} }

func (s *scriptedAgent) Execute(ctx context.Context, prompt string, ec plugin.ExecuteContext) (*plugin.Handle, error) {
	n := s.call
	s.call++
	if s.onCall != nil {
		s.onCall(n)
	}
	idx := n
	if idx > len(s.results)-1 {
		idx = len(s.results) - 1
	}
	res := s.results[idx]
	done := make(chan plugin.AgentResult, 1)
	done <- res
	stdout := make(chan string)
	stderr := make(chan string)
	close(stdout)
	close(stderr)
	return &plugin.Handle{Done: done, Cancel: func() {}, Stdout: stdout, Stderr: stderr}, nil
}

func newTestEngine(t *testing.T, tracker *fakeTracker, agent *scriptedAgent, maxIter int) (*Engine, *events.Bus) {
	t.Helper()
	bus := events.NewBus(256)
	runner := agentrunner.New(agent, bus)
	ctrl := iteration.New(iteration.Config{
		Tracker: tracker,
		Prompts: fakePrompts{},
		Runner:  runner,
		Bus:     bus,
	})
	e := New(Config{
		Controller:    ctrl,
		Bus:           bus,
		Store:         session.NewStore(),
		MaxIterations: maxIter,
		Retry:         RetryConfig{MaxAttempts: 2, InitialDelayMS: 1, BackoffCapMS: 5},
	})
	return e, bus
}

func TestEngineCompletesAllTasksThenStopsIdle(t *testing.T) {
	tracker := &fakeTracker{tasks: []task.Task{{ID: "t1", Status: task.StatusOpen}}}
	agent := &scriptedAgent{
		results: []plugin.AgentResult{{Status: plugin.StatusCompleted}},
		onCall:  func(int) { tracker.complete("t1") },
	}
	e, bus := newTestEngine(t, tracker, agent, 0)

	var reasons []events.TerminationReason
	bus.Subscribe(func(ev events.Event) {
		if ev.Type == events.EventEngineStopped {
			reasons = append(reasons, ev.Payload.(events.EngineStoppedPayload).Reason)
		}
	})

	cwd := t.TempDir()
	sess := session.Create(session.CreateParams{CWD: cwd, Tasks: tracker.tasks})

	final, reason := e.Run(context.Background(), sess, plugin.ExecuteContext{CWD: cwd})
	if reason != events.ReasonIdle {
		t.Fatalf("reason = %s, want idle", reason)
	}
	if final.Status != session.StatusCompleted {
		t.Errorf("Status = %s, want completed", final.Status)
	}
	if len(reasons) != 1 {
		t.Fatalf("expected 1 engine:stopped event, got %d", len(reasons))
	}
	if session.NewStore().HasPersisted(cwd) {
		t.Error("session file should be deleted after a completed terminal")
	}
}

func TestEngineSingleTaskEventSequenceHasNoSkippedTick(t *testing.T) {
	tracker := &fakeTracker{tasks: []task.Task{{ID: "t1", Status: task.StatusOpen}}}
	agent := &scriptedAgent{
		results: []plugin.AgentResult{{Status: plugin.StatusCompleted}},
		onCall:  func(int) { tracker.complete("t1") },
	}
	e, bus := newTestEngine(t, tracker, agent, 0)

	var types []events.EventType
	bus.Subscribe(func(ev events.Event) { types = append(types, ev.Type) })

	cwd := t.TempDir()
	sess := session.Create(session.CreateParams{CWD: cwd, Tasks: tracker.tasks})

	_, reason := e.Run(context.Background(), sess, plugin.ExecuteContext{CWD: cwd})
	if reason != events.ReasonIdle {
		t.Fatalf("reason = %s, want idle", reason)
	}

	// spec.md §8: "Single task that completes on first invocation: events
	// exactly engine:started, task:selected, iteration:started,
	// agent:output*, iteration:completed, task:completed, all:complete,
	// engine:stopped{reason=idle}" — no iteration:skipped anywhere in that
	// list, so a completing final task must not fall through to another
	// Controller.Run tick that finds no_tasks left.
	want := []events.EventType{
		events.EventEngineStarted,
		events.EventTaskSelected,
		events.EventIterationStarted,
		events.EventIterationCompleted,
		events.EventTaskCompleted,
		events.EventAllComplete,
		events.EventEngineStopped,
	}
	if len(types) != len(want) {
		t.Fatalf("events = %v, want %v", types, want)
	}
	for i, wt := range want {
		if types[i] != wt {
			t.Errorf("event[%d] = %s, want %s", i, types[i], wt)
		}
	}
	for _, ty := range types {
		if ty == events.EventIterationSkipped {
			t.Fatal("unexpected iteration:skipped after the final task completed")
		}
	}
}

func TestEngineStopsAtMaxIterations(t *testing.T) {
	tracker := &fakeTracker{tasks: []task.Task{{ID: "t1", Status: task.StatusOpen}}}
	agent := &scriptedAgent{results: []plugin.AgentResult{{Status: plugin.StatusCompleted}}}
	e, _ := newTestEngine(t, tracker, agent, 1)

	cwd := t.TempDir()
	sess := session.Create(session.CreateParams{CWD: cwd, Tasks: tracker.tasks})
	sess.CurrentIteration = 1 // already at the budget

	final, reason := e.Run(context.Background(), sess, plugin.ExecuteContext{CWD: cwd})
	if reason != events.ReasonMaxIterations {
		t.Fatalf("reason = %s, want max_iterations", reason)
	}
	if final.Status != session.StatusRunning {
		t.Errorf("Status = %s, want running (resumable after a budget stop)", final.Status)
	}
	if !session.Resumable(final) {
		t.Error("session should be resumable after max_iterations stop")
	}
	if !session.NewStore().HasPersisted(cwd) {
		t.Error("session file should be retained after a budget stop")
	}
}

func TestEngineRetriesThenAbortsAfterMaxAttempts(t *testing.T) {
	tracker := &fakeTracker{tasks: []task.Task{{ID: "t1", Status: task.StatusOpen}}}
	agent := &scriptedAgent{results: []plugin.AgentResult{
		{Status: plugin.StatusFailed, ExitCode: 1, Error: "connection reset"},
	}}
	e, bus := newTestEngine(t, tracker, agent, 0)

	var retryCount int
	bus.Subscribe(func(ev events.Event) {
		if ev.Type == events.EventIterationRetrying {
			retryCount++
		}
	})

	cwd := t.TempDir()
	sess := session.Create(session.CreateParams{CWD: cwd, Tasks: tracker.tasks})

	_, reason := e.Run(context.Background(), sess, plugin.ExecuteContext{CWD: cwd})
	if reason != events.ReasonFatal {
		t.Fatalf("reason = %s, want fatal after exhausting retries", reason)
	}
	if retryCount != 1 {
		t.Fatalf("retryCount = %d, want 1 (MaxAttempts - 1 retries happen before the abort)", retryCount)
	}
}

func TestEnginePauseResume(t *testing.T) {
	tracker := &fakeTracker{tasks: []task.Task{{ID: "t1", Status: task.StatusOpen}}}
	agent := &scriptedAgent{
		results: []plugin.AgentResult{{Status: plugin.StatusCompleted}},
		onCall:  func(int) { tracker.complete("t1") },
	}
	e, bus := newTestEngine(t, tracker, agent, 0)

	var paused, resumed int
	bus.Subscribe(func(ev events.Event) {
		switch ev.Type {
		case events.EventEnginePaused:
			paused++
		case events.EventEngineResumed:
			resumed++
		}
	})

	cwd := t.TempDir()
	sess := session.Create(session.CreateParams{CWD: cwd, Tasks: tracker.tasks})

	e.Pause()
	go func() {
		time.Sleep(20 * time.Millisecond)
		e.Resume()
	}()

	final, reason := e.Run(context.Background(), sess, plugin.ExecuteContext{CWD: cwd})
	if reason != events.ReasonIdle {
		t.Fatalf("reason = %s, want idle", reason)
	}
	if paused != 1 || resumed != 1 {
		t.Fatalf("paused=%d resumed=%d, want 1 and 1", paused, resumed)
	}
	if final.Status != session.StatusCompleted {
		t.Errorf("Status = %s, want completed", final.Status)
	}
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	r := RetryConfig{MaxAttempts: 5, InitialDelayMS: 100, BackoffCapMS: 300}
	d1 := r.Backoff(1)
	d3 := r.Backoff(3)
	if d1 >= d3 {
		t.Errorf("expected backoff to grow: d1=%s d3=%s", d1, d3)
	}
	if d3 > 400*time.Millisecond { // cap + generous jitter margin
		t.Errorf("expected backoff capped near 300ms, got %s", d3)
	}
}
