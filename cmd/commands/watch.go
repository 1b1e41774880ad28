package commands

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/ralph-tui/clients/tui"
	wsclient "github.com/dohr-michael/ralph-tui/clients/ws"
)

// NewWatchCommand returns `ralph watch`: it connects to a running session's
// gateway and renders its event stream as a live scrolling log (spec §10
// domain stack's gateway + TUI pairing).
func NewWatchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Watch a running session's events in a live TUI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Value: "127.0.0.1", Usage: "Gateway host"},
			&cli.IntFlag{Name: "port", Value: 18420, Usage: "Gateway port"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := loadConfig(cmd)
			host := cfg.Gateway.Host
			port := cfg.Gateway.Port
			if cmd.IsSet("host") {
				host = cmd.String("host")
			}
			if cmd.IsSet("port") {
				port = int(cmd.Int("port"))
			}

			url := fmt.Sprintf("ws://%s:%d/api/events/ws", host, port)
			client, err := wsclient.Dial(ctx, url)
			if err != nil {
				return cli.Exit(fmt.Sprintf("connect to gateway at %s: %v", url, err), exitFatal)
			}
			defer client.Close()

			p := tea.NewProgram(tui.NewApp(client), tea.WithAltScreen())
			if _, err := p.Run(); err != nil {
				return cli.Exit(err.Error(), exitFatal)
			}
			return nil
		},
	}
}
