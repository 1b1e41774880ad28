package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/ralph-tui/internal/lock"
	"github.com/dohr-michael/ralph-tui/internal/session"
)

// NewStatusCommand returns `ralph status`: it reads the session and lock
// files directly, with no running process required, and prints a human
// summary (spec §4.8's Summary, §4.3's lock record).
func NewStatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show a session's persisted status",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "cwd", Value: ".", Usage: "Working directory to inspect"},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			cwd := cmd.String("cwd")

			store := session.NewStore()
			sess, err := store.Load(cwd)
			if err != nil {
				return cli.Exit(fmt.Sprintf("load session: %v", err), exitFatal)
			}
			if sess == nil {
				fmt.Printf("no session recorded in %s\n", cwd)
				return nil
			}

			fmt.Printf("session:   %s\n", sess.SessionID)
			fmt.Printf("progress:  %s\n", session.Summary(sess))
			fmt.Printf("resumable: %t\n", session.Resumable(sess))

			holder, err := lock.ReadHolder(session.LockPath(cwd))
			if err != nil {
				return cli.Exit(fmt.Sprintf("read lock: %v", err), exitFatal)
			}
			switch {
			case holder == nil:
				fmt.Println("lock:      not held")
			case lock.IsLive(*holder):
				fmt.Printf("lock:      held by live pid %d on %s\n", holder.PID, holder.Host)
			default:
				fmt.Printf("lock:      stale (pid %d on %s no longer running)\n", holder.PID, holder.Host)
			}

			return nil
		},
	}
}
