package interrupt

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestInteractiveSingleInterruptShowsPromptAndCancelsOnTimeout(t *testing.T) {
	var shown, hidden, cancelled int32
	c := New(Options{DebounceWindow: 20 * time.Millisecond, Interactive: true}, Callbacks{
		OnShowPrompt: func() { atomic.AddInt32(&shown, 1) },
		OnHidePrompt: func() { atomic.AddInt32(&hidden, 1) },
		OnCancel:     func() { atomic.AddInt32(&cancelled, 1) },
	})

	c.Interrupt()
	if c.State() != Pending {
		t.Fatalf("state = %s, want pending", c.State())
	}
	if atomic.LoadInt32(&shown) != 1 {
		t.Fatal("expected OnShowPrompt to fire")
	}

	time.Sleep(60 * time.Millisecond)
	if c.State() != Idle {
		t.Fatalf("state = %s, want idle after timeout", c.State())
	}
	if atomic.LoadInt32(&cancelled) != 1 {
		t.Fatal("expected OnCancel to fire on timeout")
	}
	if atomic.LoadInt32(&hidden) != 1 {
		t.Fatal("expected OnHidePrompt to fire on timeout")
	}
}

func TestInteractiveSecondInterruptForceQuits(t *testing.T) {
	var forceQuit int32
	c := New(Options{DebounceWindow: time.Second, Interactive: true}, Callbacks{
		OnForceQuit: func() { atomic.AddInt32(&forceQuit, 1) },
	})

	c.Interrupt()
	c.Interrupt()

	if c.State() != ForceQuit {
		t.Fatalf("state = %s, want force_quit", c.State())
	}
	if atomic.LoadInt32(&forceQuit) != 1 {
		t.Fatal("expected OnForceQuit to fire")
	}
}

func TestInteractiveConfirmExplicit(t *testing.T) {
	var confirmed int32
	c := New(Options{DebounceWindow: time.Second, Interactive: true}, Callbacks{
		OnConfirm: func() { atomic.AddInt32(&confirmed, 1) },
	})

	c.Interrupt()
	c.Confirm()

	if c.State() != Confirmed {
		t.Fatalf("state = %s, want confirmed", c.State())
	}
	if atomic.LoadInt32(&confirmed) != 1 {
		t.Fatal("expected OnConfirm to fire")
	}
}

func TestInteractiveCancelExplicit(t *testing.T) {
	c := New(Options{DebounceWindow: time.Second, Interactive: true}, Callbacks{})
	c.Interrupt()
	c.Cancel()
	if c.State() != Idle {
		t.Fatalf("state = %s, want idle", c.State())
	}
}

func TestHeadlessSingleInterruptCommitsImmediately(t *testing.T) {
	var confirmed int32
	c := New(Options{DebounceWindow: 20 * time.Millisecond, Interactive: false}, Callbacks{
		OnConfirm: func() { atomic.AddInt32(&confirmed, 1) },
	})

	c.Interrupt()
	if atomic.LoadInt32(&confirmed) != 1 {
		t.Fatal("expected headless interrupt to confirm immediately")
	}
}

func TestHeadlessSecondInterruptWithinWindowForceQuits(t *testing.T) {
	var forceQuit int32
	c := New(Options{DebounceWindow: time.Second, Interactive: false}, Callbacks{
		OnForceQuit: func() { atomic.AddInt32(&forceQuit, 1) },
	})

	c.Interrupt()
	c.Interrupt()

	if c.State() != ForceQuit {
		t.Fatalf("state = %s, want force_quit", c.State())
	}
	if atomic.LoadInt32(&forceQuit) != 1 {
		t.Fatal("expected OnForceQuit to fire")
	}
}
