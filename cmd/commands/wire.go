package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/ralph-tui/internal/agentrunner"
	"github.com/dohr-michael/ralph-tui/internal/config"
	"github.com/dohr-michael/ralph-tui/internal/engine"
	"github.com/dohr-michael/ralph-tui/internal/events"
	"github.com/dohr-michael/ralph-tui/internal/iteration"
	"github.com/dohr-michael/ralph-tui/internal/plugin"
	"github.com/dohr-michael/ralph-tui/internal/plugin/filetracker"
	"github.com/dohr-michael/ralph-tui/internal/plugin/shellagent"
	"github.com/dohr-michael/ralph-tui/internal/prompt"
	"github.com/dohr-michael/ralph-tui/internal/session"
)

// loadConfig reads the config file named by the --config flag, falling
// back to defaults (rather than failing the command) when it does not
// exist yet, the same degrade-to-defaults behavior the teacher's gateway
// command uses for a missing config file.
func loadConfig(cmd *cli.Command) *config.Config {
	path := cmd.String("config")
	cfg, err := config.Load(path)
	if err != nil {
		slog.Warn("config not found, using defaults", "path", path, "error", err)
		cfg = &config.Config{}
	}
	return cfg
}

// setupLogging installs the default slog handler at the --debug-resolved
// level, mirroring the teacher's resolveLogLevel + --debug override.
func setupLogging(cmd *cli.Command) {
	level := slog.LevelInfo
	if cmd.Bool("debug") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// logEvents subscribes a plain-text progress logger to bus, grounded on the
// teacher's slog-based event logging in its gateway command. It returns the
// unsubscribe function.
func logEvents(bus *events.Bus) func() {
	return bus.Subscribe(func(e events.Event) {
		switch e.Type {
		case events.EventAgentOutput:
			return // too noisy for the summary log; watch via the gateway/TUI instead
		}
		slog.Info(string(e.Type), "session", e.SessionID, "payload", e.Payload)
	})
}

// runParams are the flags shared by every command that drives an Engine.
type runParams struct {
	cwd           string
	agentCommand  string
	agentName     string
	trackerSeed   string
	model         string
	epicID        string
	prdPath       string
	maxIterations int
}

// wired bundles the pieces a command needs to start or resume an Engine.
type wired struct {
	bus     *events.Bus
	store   *session.Store
	engine  *engine.Engine
	tracker *filetracker.Tracker
}

// wireEngine builds the Agent/Tracker plugins and the Engine from cfg and
// the command-line parameters, the same dependency graph every one of
// run/resume/schedule assembles (spec §4.1's component list wired together
// for one working directory).
func wireEngine(cfg *config.Config, p runParams) (*wired, error) {
	agentName := p.agentName
	if agentName == "" {
		agentName = "shell"
	}
	agent := shellagent.New(shellagent.Config{
		Name:    agentName,
		Command: p.agentCommand,
	})

	taskDir := filepath.Join(p.cwd, session.DirName, "tasks")
	tracker, err := filetracker.New(taskDir, p.trackerSeed)
	if err != nil {
		return nil, fmt.Errorf("open tracker: %w", err)
	}

	bus := events.NewBus(512)
	store := session.NewStore()
	runner := agentrunner.New(agent, bus)
	controller := iteration.New(iteration.Config{
		Tracker:      tracker,
		Prompts:      prompt.New(),
		Runner:       runner,
		Bus:          bus,
		AgentTimeout: time.Duration(cfg.Engine.AgentTimeoutMS) * time.Millisecond,
		GraceWindow:  time.Duration(cfg.Engine.GraceWindowMS) * time.Millisecond,
	})

	eng := engine.New(engine.Config{
		Controller:       controller,
		Bus:              bus,
		Store:            store,
		MaxIterations:    p.maxIterations,
		IterationDelayMS: cfg.Engine.IterationDelayMS,
		Retry: engine.RetryConfig{
			MaxAttempts:    cfg.Engine.Retry.MaxAttempts,
			InitialDelayMS: cfg.Engine.Retry.InitialDelayMS,
			BackoffCapMS:   cfg.Engine.Retry.BackoffCapMS,
		},
	})

	return &wired{bus: bus, store: store, engine: eng, tracker: tracker}, nil
}

// execContext builds the ambient plugin.ExecuteContext shared across every
// iteration of one session.
func execContext(cwd string, sess *session.Session) plugin.ExecuteContext {
	return plugin.ExecuteContext{
		CWD:     cwd,
		Session: sess.SessionID,
		Model:   sess.Model,
		EpicID:  sess.EpicID,
		PRDPath: sess.PRDPath,
	}
}
