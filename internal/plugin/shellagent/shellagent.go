// Package shellagent implements the Agent plugin contract (spec §6.2) by
// running a configured shell command template as the coding agent. It is
// grounded on internal/plugins.ExecuteTool's os/exec.CommandContext timeout
// and stdout/stderr buffer capture pattern, generalized from a one-shot
// buffered command into the cancellable, streaming Handle shape the Agent
// contract requires.
package shellagent

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/dohr-michael/ralph-tui/internal/plugin"
)

// Config configures one Agent. Command is run through "sh -c" with the
// iteration prompt delivered on stdin, so it may be a pipeline
// ("claude --print", "codex exec", a wrapper script, ...).
type Config struct {
	Name    string
	Command string
	Shell   string // defaults to "sh"
}

// Agent runs Config.Command as a subprocess for every Execute call. It is
// stateless across invocations, as the Agent contract requires.
type Agent struct {
	name    string
	command string
	shell   string
}

// New creates an Agent from cfg.
func New(cfg Config) *Agent {
	shell := cfg.Shell
	if shell == "" {
		shell = "sh"
	}
	return &Agent{name: cfg.Name, command: cfg.Command, shell: shell}
}

// Detect reports whether the command's first word resolves to an
// executable on PATH.
func (a *Agent) Detect(_ context.Context) plugin.Detection {
	bin := firstField(a.command)
	if bin == "" {
		return plugin.Detection{Available: false, Error: "empty command"}
	}
	if _, err := exec.LookPath(bin); err != nil {
		return plugin.Detection{Available: false, Error: err.Error()}
	}
	return plugin.Detection{Available: true}
}

// IsReady reports the same thing Detect does for this plugin: there is no
// separate auth/warm-up step for an arbitrary shell command.
func (a *Agent) IsReady(ctx context.Context) bool {
	return a.Detect(ctx).Available
}

// Meta identifies this agent for logging and session metadata.
func (a *Agent) Meta() plugin.Meta {
	return plugin.Meta{Name: a.name}
}

// Execute starts the configured command with prompt on stdin and ec's
// fields exposed as environment variables, and returns a Handle streaming
// its output.
func (a *Agent) Execute(ctx context.Context, prompt string, ec plugin.ExecuteContext) (*plugin.Handle, error) {
	runCtx, cancel := context.WithCancel(ctx)

	cmd := exec.CommandContext(runCtx, a.shell, "-c", a.command)
	cmd.Dir = ec.CWD
	cmd.Env = buildEnv(ec)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("shellagent: stdin pipe: %w", err)
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("shellagent: stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("shellagent: stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("shellagent: start: %w", err)
	}

	go func() {
		defer stdin.Close()
		_, _ = stdin.Write([]byte(prompt))
	}()

	stdoutCh := make(chan string)
	stderrCh := make(chan string)
	done := make(chan plugin.AgentResult, 1)

	var wg sync.WaitGroup
	wg.Add(2)
	go streamLines(stdoutPipe, stdoutCh, &wg)
	go streamLines(stderrPipe, stderrCh, &wg)

	go func() {
		streamed := make(chan struct{})
		go func() { wg.Wait(); close(streamed) }()
		select {
		case <-streamed:
		case <-runCtx.Done():
			// A grandchild may still hold the pipes open; cmd.Wait closes
			// their read ends once the killed shell exits, ending the scans.
		}
		err := cmd.Wait()
		<-streamed
		status, exitCode := classify(runCtx, err)
		result := plugin.AgentResult{Status: status, ExitCode: exitCode}
		if err != nil && status == plugin.StatusFailed {
			result.Error = err.Error()
		}
		done <- result
		close(done)
		cancel()
	}()

	var cancelOnce sync.Once
	return &plugin.Handle{
		Done:   done,
		Cancel: func() { cancelOnce.Do(cancel) },
		Stdout: stdoutCh,
		Stderr: stderrCh,
	}, nil
}

// classify maps a cmd.Wait error into a terminal status and exit code.
func classify(ctx context.Context, err error) (plugin.Status, int) {
	if err == nil {
		return plugin.StatusCompleted, 0
	}
	if ctx.Err() == context.Canceled {
		return plugin.StatusCancelled, -1
	}
	if ctx.Err() == context.DeadlineExceeded {
		return plugin.StatusTimedOut, -1
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return plugin.StatusFailed, exitErr.ExitCode()
	}
	return plugin.StatusFailed, -1
}

// streamLines scans r line by line, forwarding each line onto ch, and
// closes ch when r is exhausted.
func streamLines(r io.Reader, ch chan<- string, wg *sync.WaitGroup) {
	defer wg.Done()
	defer close(ch)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		ch <- scanner.Text()
	}
}

// buildEnv exposes the iteration's ExecuteContext fields as environment
// variables for the subprocess, generalizing the plugin pack's
// mergeEnv/applyTaskEnv pattern (native_execute.go) from a context-stashed
// map to the explicit ExecuteContext the Agent contract passes.
func buildEnv(ec plugin.ExecuteContext) []string {
	env := os.Environ()
	extra := map[string]string{
		"RALPH_TASK_ID":    ec.Task.ID,
		"RALPH_TASK_TITLE": ec.Task.Title,
		"RALPH_SESSION_ID": ec.Session,
		"RALPH_MODEL":      ec.Model,
		"RALPH_EPIC_ID":    ec.EpicID,
		"RALPH_PRD_PATH":   ec.PRDPath,
	}
	for k, v := range extra {
		if v == "" {
			continue
		}
		env = append(env, k+"="+v)
	}
	return env
}

func firstField(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
