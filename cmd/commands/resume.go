package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/ralph-tui/internal/session"
)

// NewResumeCommand returns `ralph resume`: it continues a previously
// persisted, resumable session in the given working directory (spec
// §4.8's "resumable" check, §6.5).
func NewResumeCommand() *cli.Command {
	return &cli.Command{
		Name:  "resume",
		Usage: "Resume a previously persisted session",
		Flags: runFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := loadConfig(cmd)
			setupLogging(cmd)

			p := paramsFromCmd(cmd)

			store := session.NewStore()
			sess, err := store.Load(p.cwd)
			if err != nil {
				return cli.Exit(fmt.Sprintf("load session: %v", err), exitFatal)
			}
			if sess == nil {
				return cli.Exit(fmt.Sprintf("no persisted session in %s; use `ralph run` to start one", p.cwd), exitFatal)
			}
			if !session.Resumable(sess) {
				return cli.Exit(fmt.Sprintf("session %s is not resumable (%s)", sess.SessionID, session.Summary(sess)), exitFatal)
			}

			if !cmd.IsSet("max-iterations") {
				p.maxIterations = cfg.Engine.MaxIterations
			}
			if p.agentName == "" {
				p.agentName = sess.AgentPlugin
			}

			w, err := wireEngine(cfg, p)
			if err != nil {
				return cli.Exit(err.Error(), exitFatal)
			}

			sess.MaxIterations = p.maxIterations
			sess.IsPaused = false
			sess.PausedAt = nil
			if sess.Status == session.StatusPaused || sess.Status == session.StatusInterrupted {
				sess.Status = session.StatusRunning
			}

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
