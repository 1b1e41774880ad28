package commands

import (
	"context"
	"log/slog"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/ralph-tui/internal/config"
	"github.com/dohr-michael/ralph-tui/internal/schedule"
	"github.com/dohr-michael/ralph-tui/internal/session"
)

// NewScheduleCommand returns `ralph schedule`: it parses a cron expression
// and fires a new run at each activation, skipping an activation if a
// session is already in flight (spec §10 domain stack).
func NewScheduleCommand() *cli.Command {
	flags := append(runFlags(), &cli.StringFlag{
		Name:  "cron",
		Usage: "5-field cron expression (minute hour dom month dow); falls back to the config file's schedule.cron",
	})

	return &cli.Command{
		Name:  "schedule",
		Usage: "Run sessions on a cron schedule",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := loadConfig(cmd)
			setupLogging(cmd)

			cronExpr := cmd.String("cron")
			if cronExpr == "" {
				cronExpr = cfg.Schedule.Cron
			}
			if cronExpr == "" {
				return cli.Exit("no cron expression given; pass --cron or set schedule.cron in the config file", exitFatal)
			}
			expr, err := schedule.Parse(cronExpr)
			if err != nil {
				return cli.Exit(err.Error(), exitFatal)
			}

			p := paramsFromCmd(cmd)
			if !cmd.IsSet("max-iterations") {
				p.maxIterations = cfg.Engine.MaxIterations
			}

			slog.Info("schedule armed", "cron", expr.String(), "next", expr.Next(time.Now()))

			runner := schedule.NewRunner(expr, func(ctx context.Context, fired time.Time) {
				fireScheduledRun(ctx, cfg, p, fired)
			})
			runner.Run(ctx)
			return nil
		},
	}
}

// fireScheduledRun starts one run for the scheduled activation, skipping
// it with a log line if a session is already in flight for cwd (spec §4.3:
// the lock conflict is the source of truth, not a separate schedule lock).
func fireScheduledRun(ctx context.Context, cfg *config.Config, p runParams, fired time.Time) {
	store := session.NewStore()

	w, err := wireEngine(cfg, p)
	if err != nil {
		slog.Error("scheduled run: wire engine", "error", err)
		return
	}

	var sess *session.Session
	if existing, err := store.Load(p.cwd); err == nil && existing != nil && session.Resumable(existing) {
		sess = existing
		sess.IsPaused = false
		sess.PausedAt = nil
		sess.Status = session.StatusRunning
		sess.MaxIterations = p.maxIterations
	} else {
		tasks, err := w.tracker.GetTasks(ctx, nil)
		if err != nil {
			slog.Error("scheduled run: load tasks", "error", err)
			return
		}
		sess = session.Create(session.CreateParams{
			AgentPlugin:   p.agentName,
			TrackerPlugin: "filetracker",
			Model:         p.model,
			EpicID:        p.epicID,
			PRDPath:       p.prdPath,
			MaxIterations: p.maxIterations,
			CWD:           p.cwd,
			Tasks:         tasks,
		})
	}

	slog.Info("scheduled run starting", "session", sess.SessionID, "fired_at", fired)
	code, err := runSession(ctx, cfg, w, sess, runOptions{nonInteractive: true})
	if err != nil {
		slog.Error("scheduled run failed", "error", err, "exit_code", code)
		return
	}
	slog.Info("scheduled run finished", "exit_code", code)
}
