package iteration

import (
	"context"
	"testing"

	"github.com/dohr-michael/ralph-tui/internal/agentrunner"
	"github.com/dohr-michael/ralph-tui/internal/events"
	"github.com/dohr-michael/ralph-tui/internal/plugin"
	"github.com/dohr-michael/ralph-tui/internal/task"
)

type fakeTracker struct {
	tasks         []task.Task
	markedInProg  []string
	completeAfter string // task ID to flip to completed after MarkInProgress
}

func (f *fakeTracker) GetTasks(ctx context.Context, statuses []task.Status) ([]task.Task, error) {
	if len(statuses) == 0 {
		return f.tasks, nil
	}
	var out []task.Task
	for _, t := range f.tasks {
		for _, s := range statuses {
			if t.Status == s {
				out = append(out, t)
			}
		}
	}
	return out, nil
}

func (f *fakeTracker) MarkInProgress(ctx context.Context, id string) (bool, error) {
	f.markedInProg = append(f.markedInProg, id)
	for i, t := range f.tasks {
		if t.ID == id && t.Status == task.StatusOpen {
			f.tasks[i].Status = task.StatusInProgress
		}
	}
	if id == f.completeAfter {
		for i, t := range f.tasks {
			if t.ID == id {
				f.tasks[i].Status = task.StatusCompleted
			}
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

type fakePrompts struct{}

func (fakePrompts) BuildPrompt(ctx context.Context, t task.Task, ec plugin.ExecuteContext) (string, error) {
	return "do: " + t.Title, nil
}

type scriptedAgent struct {
	result plugin.AgentResult
}

func (s *scriptedAgent) Detect(context.Context) plugin.Detection { return plugin.Detection{Available: true} }
func (s *scriptedAgent) IsReady(context.Context) bool             { return true }
func (s *scriptedAgent) Meta() plugin.Meta                        { return plugin.Meta{Name: "scripted"} }

func (s *scriptedAgent) Execute(ctx context.Context, prompt string, ec plugin.ExecuteContext) (*plugin.Handle, error) {
	done := make(chan plugin.AgentResult, 1)
	done <- s.result
	stdout := make(chan string)
	stderr := make(chan string)
	close(stdout)
	close(stderr)
	return &plugin.Handle{Done: done, Cancel: func() {}, Stdout: stdout, Stderr: stderr}, nil
}

func newController(t *testing.T, tracker Tracker, agent *scriptedAgent) (*Controller, *recordingBus) {
	t.Helper()
	bus := &recordingBus{}
	runner := agentrunner.New(agent, bus)
	return New(Config{
		Tracker: tracker,
		Prompts: fakePrompts{},
		Runner:  runner,
		Bus:     events.NewBus(64),
	}), bus
}

// recordingBus satisfies plugin.Bus without depending on events.Bus's
// subscription machinery, so the agentrunner's output events don't need a
// live subscriber to be observed in this package's tests.
type recordingBus struct{}

func (r *recordingBus) Publish(events.Event) {}

func TestControllerNoEligibleTasksReturnsNoTasks(t *testing.T) {
	tracker := &fakeTracker{}
	ctrl, _ := newController(t, tracker, &scriptedAgent{})

	out, err := ctrl.Run(context.Background(), "s1", 1, plugin.ExecuteContext{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !out.NoTasks {
		t.Fatal("expected NoTasks")
	}
}

func TestControllerCompletesTaskEndToEnd(t *testing.T) {
	tracker := &fakeTracker{
		tasks:         []task.Task{{ID: "t1", Title: "ship it", Status: task.StatusOpen}},
		completeAfter: "t1",
	}
	agent := &scriptedAgent{result: plugin.AgentResult{Status: plugin.StatusCompleted, ExitCode: 0}}
	ctrl, _ := newController(t, tracker, agent)

	out, err := ctrl.Run(context.Background(), "s1", 1, plugin.ExecuteContext{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.NoTasks {
		t.Fatal("expected a task to be picked")
	}
	if !out.Result.TaskCompleted {
		t.Error("expected TaskCompleted")
	}
	if len(tracker.markedInProg) != 1 || tracker.markedInProg[0] != "t1" {
		t.Errorf("markedInProg = %v, want [t1]", tracker.markedInProg)
	}
}

func TestControllerSkipsDependentTaskUntilDepCompletes(t *testing.T) {
	tracker := &fakeTracker{
		tasks: []task.Task{
			{ID: "t1", Title: "base", Status: task.StatusOpen},
			{ID: "t2", Title: "depends", Status: task.StatusOpen, Deps: []string{"t1"}},
		},
	}
	agent := &scriptedAgent{result: plugin.AgentResult{Status: plugin.StatusCompleted}}
	ctrl, _ := newController(t, tracker, agent)

	out, err := ctrl.Run(context.Background(), "s1", 1, plugin.ExecuteContext{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Result.Task.ID != "t1" {
		t.Fatalf("expected t1 to be picked first, got %s", out.Result.Task.ID)
	}
}

func TestControllerFailedRunProducesErrorAndAction(t *testing.T) {
	tracker := &fakeTracker{
		tasks: []task.Task{{ID: "t1", Title: "flaky", Status: task.StatusOpen}},
	}
	agent := &scriptedAgent{result: plugin.AgentResult{Status: plugin.StatusFailed, ExitCode: 1, Error: "boom"}}
	ctrl, _ := newController(t, tracker, agent)

	out, err := ctrl.Run(context.Background(), "s1", 1, plugin.ExecuteContext{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Result.Error == "" {
		t.Error("expected a non-empty error on a failed run")
	}
	if out.Result.TaskCompleted {
		t.Error("a failed run must not report TaskCompleted")
	}
}
