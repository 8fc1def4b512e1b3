package debounce

import (
	"sync"
	"time"
)

// DefaultWindow is the quiescence window used when none is given.
const DefaultWindow = 2 * time.Second

// Timer is the cancellable handle returned by a Clock.
type Timer interface {
	Stop() bool
}

// Clock schedules deferred calls. The default uses time.AfterFunc.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Option configures a Trigger.
type Option func(*Trigger)

// WithClock replaces the clock used to schedule the action.
func WithClock(c Clock) Option {
	return func(t *Trigger) {
		if c != nil {
			t.clock = c
		}
	}
}

// Trigger coalesces bursts of Fire calls into a single run of an action.
// The action runs once the window has elapsed with no further Fire; each Fire
// restarts the window.
//
// A Trigger is bound to one logical target. When the target changes, call
// Cancel before firing for the new one.
type Trigger struct {
	window time.Duration
	action func()
	clock  Clock

	mu    sync.Mutex
	timer Timer
	// gen identifies the currently scheduled run. A timer whose generation
	// no longer matches was superseded and does nothing.
	gen uint64
}

// New creates a Trigger that runs action after window of quiescence. A
// non-positive window uses DefaultWindow.
func New(window time.Duration, action func(), opts ...Option) *Trigger {
	if window <= 0 {
		window = DefaultWindow
	}
	t := &Trigger{
		window: window,
		action: action,
		clock:  realClock{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Window returns the quiescence window.
func (t *Trigger) Window() time.Duration {
	return t.window
}

// Fire schedules the action, restarting the window if a run is pending.
func (t *Trigger) Fire() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
	}
	t.gen++
	gen := t.gen
	t.timer = t.clock.AfterFunc(t.window, func() { t.run(gen) })
}

// Cancel discards any pending run. It reports whether a run was pending.
func (t *Trigger) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelLocked()
}

func (t *Trigger) cancelLocked() bool {
	if t.timer == nil {
		return false
	}
	t.timer.Stop()
	t.timer = nil
	t.gen++
	return true
}

// Flush runs a pending action immediately on the calling goroutine instead
// of waiting for the window. It reports whether an action ran.
func (t *Trigger) Flush() bool {
	t.mu.Lock()
	pending := t.cancelLocked()
	t.mu.Unlock()

	if pending {
		t.action()
	}
	return pending
}

// Pending reports whether a run is scheduled.
func (t *Trigger) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timer != nil
}

func (t *Trigger) run(gen uint64) {
	t.mu.Lock()
	if gen != t.gen {
		t.mu.Unlock()
		return
	}
	t.timer = nil
	t.mu.Unlock()

	t.action()
}
