package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/ralph-tui/internal/config"
	"github.com/dohr-michael/ralph-tui/internal/events"
	"github.com/dohr-michael/ralph-tui/internal/gateway"
	"github.com/dohr-michael/ralph-tui/internal/interrupt"
	"github.com/dohr-michael/ralph-tui/internal/lock"
	"github.com/dohr-michael/ralph-tui/internal/session"
)

// exit codes per spec §6.5.
const (
	exitCompleted   = 0
	exitFatal       = 1
	exitInterrupted = 130
	exitForceQuit   = 137
)

func runFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "cwd", Value: ".", Usage: "Working directory to run in"},
		&cli.StringFlag{Name: "agent-command", Usage: "Shell command the agent plugin invokes per iteration"},
		&cli.StringFlag{Name: "agent-name", Usage: "Agent plugin name recorded on the session"},
		&cli.StringFlag{Name: "tracker-seed", Usage: "Path to a YAML task seed file for a fresh tracker"},
		&cli.StringFlag{Name: "model", Usage: "Model identifier passed through to the agent"},
		&cli.StringFlag{Name: "epic-id", Usage: "Epic identifier recorded on the session"},
		&cli.StringFlag{Name: "prd-path", Usage: "Path to a PRD document passed through to the agent"},
		&cli.IntFlag{Name: "max-iterations", Usage: "Iteration budget (0 = unbounded)"},
		&cli.BoolFlag{Name: "force", Usage: "Discard an existing session/lock and start fresh"},
		&cli.BoolFlag{Name: "non-interactive", Usage: "Disable the interrupt confirmation prompt"},
	}
}

func paramsFromCmd(cmd *cli.Command) runParams {
	return runParams{
		cwd:           cmd.String("cwd"),
		agentCommand:  cmd.String("agent-command"),
		agentName:     cmd.String("agent-name"),
		trackerSeed:   cmd.String("tracker-seed"),
		model:         cmd.String("model"),
		epicID:        cmd.String("epic-id"),
		prdPath:       cmd.String("prd-path"),
		maxIterations: int(cmd.Int("max-iterations")),
	}
}

// NewRunCommand returns `ralph run`: it starts a fresh session in the given
// working directory (spec §4.8, §6.5).
func NewRunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Start a new agent-loop session in a working directory",
		Flags: runFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := loadConfig(cmd)
			setupLogging(cmd)

			p := paramsFromCmd(cmd)
			if !cmd.IsSet("max-iterations") {
				p.maxIterations = cfg.Engine.MaxIterations
			}

			store := session.NewStore()
			if store.HasPersisted(p.cwd) && !cmd.Bool("force") {
				return cli.Exit(fmt.Sprintf(
					"a session already exists in %s; use `ralph resume` to continue it or --force to discard it", p.cwd), exitFatal)
			}
			if cmd.Bool("force") {
				_ = store.Delete(p.cwd)
			}

			w, err := wireEngine(cfg, p)
			if err != nil {
				return cli.Exit(err.Error(), exitFatal)
			}

			tasks, err := w.tracker.GetTasks(ctx, nil)
			if err != nil {
				return cli.Exit(fmt.Sprintf("load tasks: %v", err), exitFatal)
			}

			sess := session.Create(session.CreateParams{
				AgentPlugin:   p.agentName,
				TrackerPlugin: "filetracker",
				Model:         p.model,
				EpicID:        p.epicID,
				PRDPath:       p.prdPath,
				MaxIterations: p.maxIterations,
				CWD:           p.cwd,
				Tasks:         tasks,
			})

			code, err := runSession(ctx, cfg, w, sess, runOptions{
				force:          cmd.Bool("force"),
				nonInteractive: cmd.Bool("non-interactive"),
			})
			if err != nil {
				return cli.Exit(err.Error(), code)
			}
			if code != exitCompleted {
				return cli.Exit("", code)
			}
			return nil
		},
	}
}

type runOptions struct {
	force          bool
	nonInteractive bool
}

// runSession acquires the lock, wires the Interrupt Coordinator and the
// optional gateway, runs the Engine to completion, and maps the
// termination reason to a process exit code (spec §6.5).
func runSession(ctx context.Context, cfg *config.Config, w *wired, sess *session.Session, opts runOptions) (int, error) {
	lockMgr := lock.NewManager(session.LockPath(sess.CWD))
	acquireOpts := lock.Options{Force: opts.force || cfg.Lock.Force, NonInteractive: opts.nonInteractive || cfg.Lock.NonInteractive}
	if err := lockMgr.Acquire(sess.SessionID, acquireOpts); err != nil {
		var conflict *lock.Conflict
		if errors.As(err, &conflict) {
			return exitFatal, fmt.Errorf("another session is running in %s (pid %d); pass --force to take over", sess.CWD, conflict.Holder.PID)
		}
		return exitFatal, err
	}
	stopCleanup := lockMgr.RegisterCleanup()
	defer stopCleanup()

	unsubscribeLog := logEvents(w.bus)
	defer unsubscribeLog()

	var gw *gateway.Server
	if cfg.Gateway.Enabled {
		gw = gateway.NewServer(w.bus, cfg.Gateway.Host, cfg.Gateway.Port)
		go func() {
			if err := gw.Start(); err != nil {
				slog.Warn("gateway stopped", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = gw.Shutdown(shutdownCtx)
		}()
	}

	// Deliberately rooted in Background, not the caller's ctx: main.go's ctx
	// already auto-cancels on the first SIGINT, which would let Ctrl+C
	// bypass the Interrupt Coordinator's two-phase confirm/cancel dialog
	// entirely. The Coordinator is the sole path from an OS signal to
	// runCtx cancellation (spec §4.4).
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	forceQuit := make(chan struct{})
	ic := interrupt.New(interrupt.Options{
		DebounceWindow: time.Duration(cfg.Interrupt.DoublePressWindowMS) * time.Millisecond,
		Interactive:    cfg.Interrupt.IsInteractive() && !opts.nonInteractive,
	}, interrupt.Callbacks{
		OnConfirm: func() {
			slog.Warn("interrupt confirmed, shutting down gracefully")
			cancel()
		},
		OnCancel: func() {
			slog.Info("interrupt cancelled, continuing")
		},
		OnForceQuit: func() {
			slog.Warn("force quit")
			_ = lockMgr.Release()
			close(forceQuit)
		},
		OnShowPrompt: func() {
			fmt.Fprintln(os.Stderr, "Interrupt received - press Ctrl+C again to force quit, or wait to shut down gracefully.")
		},
	})
	_, stopListen := ic.Listen(context.Background())
	defer stopListen()

	type runResult struct {
		sess   *session.Session
		reason events.TerminationReason
	}
	resultCh := make(chan runResult, 1)
	go func() {
		finalSess, reason := w.engine.Run(runCtx, sess, execContext(sess.CWD, sess))
		resultCh <- runResult{finalSess, reason}
	}()

	select {
	case <-forceQuit:
		os.Exit(exitForceQuit)
		return exitForceQuit, nil // unreachable
	case res := <-resultCh:
		return exitCodeFor(res.reason), nil
	}
}

// exitCodeFor maps a termination reason to a process exit code (spec
// §6.5). A budget stop or a paused exit is a graceful, resumable stop, not
// an error, so both map to 0 alongside idle completion.
func exitCodeFor(reason events.TerminationReason) int {
	switch reason {
	case events.ReasonIdle, events.ReasonMaxIterations, events.ReasonPausedExit:
		return exitCompleted
	case events.ReasonInterrupted:
		return exitInterrupted
	default:
		return exitFatal
	}
}
