// Package interrupt implements the two-phase, debounced shutdown state
// machine (spec §4.4): Idle -> Pending -> Confirmed/Cancelled, with a second
// press inside the debounce window escalating straight to ForceQuit. It is
// driven by the same signal.NotifyContext plumbing the teacher's
// cmd/ozzie/main.go uses, generalized from a single-shot cancel into a
// stateful coordinator.
package interrupt

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"time"
)

// State is a node of the interrupt state machine.
type State string

const (
	Idle       State = "idle"
	Pending    State = "pending"
	Confirmed  State = "confirmed"
	Cancelled  State = "cancelled"
	ForceQuit  State = "force_quit"
)

// Callbacks are invoked on the transitions the Engine and any UI observer
// care about. All are optional; nil callbacks are simply skipped.
type Callbacks struct {
	OnConfirm    func()
	OnCancel     func()
	OnForceQuit  func()
	OnShowPrompt func()
	OnHidePrompt func()
}

// Coordinator owns the debounce timer and current State. Headless mode
// (Interactive=false) collapses the confirm dialog to OnShowPrompt/
// OnHidePrompt being no-ops the caller can wire to a log line, and treats a
// single interrupt as committing straight to graceful shutdown.
type Coordinator struct {
	window      time.Duration
	interactive bool
	cb          Callbacks

	mu    sync.Mutex
	state State
	timer *time.Timer
}

// Options configure a Coordinator.
type Options struct {
	// DebounceWindow is double_press_window_ms (spec §4.4); defaults to
	// 1000ms when zero.
	DebounceWindow time.Duration
	// Interactive enables the Pending confirmation phase. When false, a
	// single interrupt is treated as an immediate Confirm.
	Interactive bool
}

// New creates a Coordinator. Call Listen to start watching OS signals, or
// drive the machine directly via Interrupt/Confirm/Cancel for tests and
// non-OS triggers (e.g. a TUI keybinding).
func New(opts Options, cb Callbacks) *Coordinator {
	window := opts.DebounceWindow
	if window <= 0 {
		window = time.Second
	}
	return &Coordinator{
		window:      window,
		interactive: opts.Interactive,
		cb:          cb,
		state:       Idle,
	}
}

// State returns the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Listen starts an os/signal watcher for os.Interrupt and returns a stop
// function. Received signals are fed through Interrupt. The returned context
// is done once stop is called or ctx ends.
func (c *Coordinator) Listen(ctx context.Context) (context.Context, func()) {
	listenCtx, cancel := context.WithCancel(ctx)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		for {
			select {
			case <-sigCh:
				c.Interrupt()
			case <-listenCtx.Done():
				return
			}
		}
	}()
	return listenCtx, func() { signal.Stop(sigCh); cancel() }
}

// Interrupt records one interrupt signal (spec §4.4 transitions).
func (c *Coordinator) Interrupt() {
	c.mu.Lock()

	switch c.state {
	case Idle:
		c.state = Pending
		if !c.interactive {
			// Headless: a single interrupt commits to graceful shutdown,
			// but the debounce window still applies for a force-quit.
			// On expiry the commit stands; a later interrupt no longer
			// force-quits.
			c.armTimer(func() { c.state = Confirmed })
			c.mu.Unlock()
			c.fire(c.cb.OnShowPrompt)
			c.fire(c.cb.OnConfirm)
			return
		}
		c.timer = time.AfterFunc(c.window, func() {
			c.mu.Lock()
			if c.state != Pending {
				c.mu.Unlock()
				return
			}
			c.state = Idle
			c.mu.Unlock()
			c.fire(c.cb.OnCancel)
			c.fire(c.cb.OnHidePrompt)
		})
		c.mu.Unlock()
		c.fire(c.cb.OnShowPrompt)
	case Pending:
		c.stopTimerLocked()
		c.state = ForceQuit
		c.mu.Unlock()
		c.fire(c.cb.OnForceQuit)
	default:
		c.mu.Unlock()
	}
}

// Confirm transitions Pending -> Confirmed explicitly (e.g. a TUI "y"
// keypress rather than a bare second signal).
func (c *Coordinator) Confirm() {
	c.mu.Lock()
	if c.state != Pending {
		c.mu.Unlock()
		return
	}
	c.stopTimerLocked()
	c.state = Confirmed
	c.mu.Unlock()
	c.fire(c.cb.OnConfirm)
}

// Cancel transitions Pending -> Cancelled -> Idle explicitly (e.g. "n" or
// Escape), same as timer expiry.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	if c.state != Pending {
		c.mu.Unlock()
		return
	}
	c.stopTimerLocked()
	c.state = Idle
	c.mu.Unlock()
	c.fire(c.cb.OnCancel)
	c.fire(c.cb.OnHidePrompt)
}

// fire invokes cb if non-nil. Call only outside the mutex.
func (c *Coordinator) fire(cb func()) {
	if cb != nil {
		cb()
	}
}

// armTimer must be called with c.mu held; onExpiry runs with c.mu held and
// must not re-lock it.
func (c *Coordinator) armTimer(onExpiry func()) {
	c.timer = time.AfterFunc(c.window, func() {
		c.mu.Lock()
		if c.state != Pending {
			c.mu.Unlock()
			return
		}
		onExpiry()
		c.mu.Unlock()
	})
}

func (c *Coordinator) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
