// Package tui is a minimal live-progress viewer: it subscribes to the
// gateway's event stream over clients/ws and renders each engine/iteration
// event as one line in a scrolling log. Grounded on the teacher's
// clients/tui Elm-architecture layout (Init/Update/View over tea.Msg),
// trimmed from a full chat UI down to a single read-only log view since
// this spec's TUI has nothing to send back to the Engine.
package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	wsclient "github.com/dohr-michael/ralph-tui/clients/ws"
	"github.com/dohr-michael/ralph-tui/internal/events"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).Padding(0, 1)
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Padding(0, 1)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

// maxLines bounds the in-memory scrollback, the same fixed-size log window
// the teacher's chat component keeps for rendered history.
const maxLines = 500

// eventMsg wraps one event delivered from the gateway.
type eventMsg events.Event

// closedMsg signals the event channel ended (gateway disconnected).
type closedMsg struct{}

// App is the live-progress viewer's model.
type App struct {
	client *wsclient.Client
	events <-chan events.Event

	lines    []string
	width    int
	height   int
	quitting bool
	closed   bool
}

// NewApp creates a viewer reading from client's event stream.
func NewApp(client *wsclient.Client) *App {
	return &App{client: client, events: client.Events()}
}

// Init starts waiting for the first event.
func (a *App) Init() tea.Cmd {
	return a.waitForEvent()
}

func (a *App) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		e, ok := <-a.events
		if !ok {
			return closedMsg{}
		}
		return eventMsg(e)
	}
}

// Update handles incoming events and key presses.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			a.quitting = true
			_ = a.client.Close()
			return a, tea.Quit
		}
		return a, nil

	case eventMsg:
		a.appendLine(events.Event(msg))
		return a, a.waitForEvent()

	case closedMsg:
		a.closed = true
		a.lines = append(a.lines, footerStyle.Render("gateway connection closed"))
		return a, nil
	}
	return a, nil
}

func (a *App) appendLine(e events.Event) string {
	line := formatEvent(e)
	a.lines = append(a.lines, line)
	if len(a.lines) > maxLines {
		a.lines = a.lines[len(a.lines)-maxLines:]
	}
	return line
}

// formatEvent renders one event as a single log line.
func formatEvent(e events.Event) string {
	ts := e.Timestamp.Format("15:04:05")
	body := fmt.Sprintf("%s  %-22s  %v", ts, e.Type, e.Payload)
	switch e.Type {
	case events.EventIterationFailed:
		return errorStyle.Render(body)
	case events.EventTaskCompleted, events.EventAllComplete:
		return okStyle.Render(body)
	default:
		return body
	}
}

// View renders the header, scrolling log, and footer.
func (a *App) View() string {
	if a.quitting {
		return ""
	}
	header := headerStyle.Render("ralph watch — live session events")

	visible := a.lines
	logHeight := a.height - 3
	if logHeight < 1 {
		logHeight = 1
	}
	if len(visible) > logHeight {
		visible = visible[len(visible)-logHeight:]
	}

	footer := footerStyle.Render("q / ctrl+c to quit")
	return strings.Join(append([]string{header}, append(visible, footer)...), "\n")
}
