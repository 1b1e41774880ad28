package commands

import (
	"testing"

	"github.com/dohr-michael/ralph-tui/internal/events"
)

func TestExitCodeFor(t *testing.T) {
	cases := []struct {
		reason events.TerminationReason
		want   int
	}{
		{events.ReasonIdle, exitCompleted},
		{events.ReasonMaxIterations, exitCompleted},
		{events.ReasonPausedExit, exitCompleted},
		{events.ReasonInterrupted, exitInterrupted},
		{events.ReasonFatal, exitFatal},
	}
	for _, c := range cases {
		if got := exitCodeFor(c.reason); got != c.want {
			t.Errorf("exitCodeFor(%s) = %d, want %d", c.reason, got, c.want)
		}
	}
}
