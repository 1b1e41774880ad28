package iteration

import (
	"strings"

	"github.com/dohr-michael/ralph-tui/internal/events"
	"github.com/dohr-michael/ralph-tui/internal/plugin"
	"github.com/dohr-michael/ralph-tui/internal/task"
)

// Classify implements the failure policy from spec §4.7:
//   - transient I/O / timeout / non-zero exit with empty stderr -> retry
//   - tracker reports the task blocked or a dependency unmet -> skip
//   - agent plugin reports configuration / not-ready / authentication -> abort
func Classify(errMsg string, res plugin.AgentResult, t task.Task) events.Action {
	if t.Status == task.StatusBlocked {
		return events.ActionSkip
	}

	lower := strings.ToLower(errMsg)
	for _, marker := range abortMarkers {
		if strings.Contains(lower, marker) {
			return events.ActionAbort
		}
	}

	if res.Status == plugin.StatusTimedOut {
		return events.ActionRetry
	}
	if res.ExitCode != 0 && strings.TrimSpace(res.StderrTail) == "" {
		return events.ActionRetry
	}
	for _, marker := range transientMarkers {
		if strings.Contains(lower, marker) {
			return events.ActionRetry
		}
	}

	return events.ActionRetry
}

var abortMarkers = []string{
	"not ready",
	"not authenticated",
	"authentication",
	"unauthorized",
	"configuration",
	"misconfigured",
}

var transientMarkers = []string{
	"timeout",
	"timed out",
	"connection reset",
	"temporary failure",
	"i/o timeout",
}
