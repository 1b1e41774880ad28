package commands

import (
	"context"
	"fmt"
	"os"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/ralph-tui/internal/lock"
	"github.com/dohr-michael/ralph-tui/internal/session"
)

// NewStopCommand returns `ralph stop`: a best-effort signal to the live
// process holding a working directory's lock, asking it to interrupt
// gracefully the same way a Ctrl+C would (spec §4.3, §4.4).
func NewStopCommand() *cli.Command {
	return &cli.Command{
		Name:  "stop",
		Usage: "Signal a running session to stop gracefully",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "cwd", Value: ".", Usage: "Working directory whose session to stop"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cwd := cmd.String("cwd")

			holder, err := lock.ReadHolder(session.LockPath(cwd))
			if err != nil {
				return cli.Exit(fmt.Sprintf("read lock: %v", err), exitFatal)
			}
			if holder == nil {
				return cli.Exit(fmt.Sprintf("no running session in %s", cwd), exitFatal)
			}
			if !lock.IsLive(*holder) {
				return cli.Exit(fmt.Sprintf("session %s in %s is not running (stale lock, pid %d)", holder.SessionID, cwd, holder.PID), exitFatal)
			}

			proc, err := os.FindProcess(holder.PID)
			if err != nil {
				return cli.Exit(fmt.Sprintf("find process %d: %v", holder.PID, err), exitFatal)
			}
			if err := proc.Signal(syscall.SIGINT); err != nil {
				return cli.Exit(fmt.Sprintf("signal process %d: %v", holder.PID, err), exitFatal)
			}

			fmt.Printf("sent interrupt to session %s (pid %d) in %s\n", holder.SessionID, holder.PID, cwd)
			return nil
		},
	}
}
