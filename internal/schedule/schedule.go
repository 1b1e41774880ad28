// Package schedule drives unattended runs off a cron expression (spec §10
// domain stack): orchestration above the Engine that decides when to start
// a session, never a change to the Engine's own loop. Its expression
// parsing is grounded on the teacher's scheduler.ParseCron
// (internal/scheduler/cron.go), generalized from "does t fall in this
// schedule's minute" checks into a blocking ticker that invokes a run
// callback at each activation.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Expr wraps a parsed 5-field (minute-precision) cron schedule.
type Expr struct {
	raw      string
	schedule cron.Schedule
}

// Parse parses a standard 5-field cron expression.
func Parse(expr string) (*Expr, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse cron %q: %w", expr, err)
	}
	return &Expr{raw: expr, schedule: schedule}, nil
}

// Next returns the next activation time strictly after t.
func (e *Expr) Next(t time.Time) time.Time {
	return e.schedule.Next(t)
}

// String returns the raw cron expression.
func (e *Expr) String() string {
	return e.raw
}

// Runner fires fn at every activation of expr until ctx is cancelled. A
// panic-free fn is the caller's responsibility; Runner does not recover,
// matching the teacher's own scheduler loop which lets a run's own error
// handling own that.
type Runner struct {
	expr *Expr
	fn   func(context.Context, time.Time)
	now  func() time.Time
}

// NewRunner creates a Runner that calls fn at every expr activation. now
// defaults to time.Now; tests may override it.
func NewRunner(expr *Expr, fn func(context.Context, time.Time)) *Runner {
	return &Runner{expr: expr, fn: fn, now: time.Now}
}

// Run blocks until ctx is done, invoking fn once per activation.
func (r *Runner) Run(ctx context.Context) {
	for {
		next := r.expr.Next(r.now())
		wait := time.Until(next)
		if wait < 0 {
			wait = 0
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case fired := <-timer.C:
			r.fn(ctx, fired)
		}
	}
}
