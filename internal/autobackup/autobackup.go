package autobackup

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/thoreinstein/chatbackup/internal/chat"
	"github.com/thoreinstein/chatbackup/internal/debounce"
	"github.com/thoreinstein/chatbackup/internal/engine"
)

// Event is a host notification the controller reacts to.
type Event string

// Events from the host chat application.
const (
	MessageSent          Event = "message_sent"
	MessageReceived      Event = "message_received"
	MessageEdited        Event = "message_edited"
	MessageDeleted       Event = "message_deleted"
	MessageSwiped        Event = "message_swiped"
	ConversationSwitched Event = "conversation_switched"
)

// Events lists every event in a stable order.
var Events = []Event{
	MessageSent,
	MessageReceived,
	MessageEdited,
	MessageDeleted,
	MessageSwiped,
	ConversationSwitched,
}

// ErrUnknownEvent is returned by ParseEvent for unrecognized names.
var ErrUnknownEvent = errors.New("unknown event")

// ParseEvent converts a name to an Event.
func ParseEvent(s string) (Event, error) {
	for _, ev := range Events {
		if string(ev) == s {
			return ev, nil
		}
	}
	return "", errors.Wrapf(ErrUnknownEvent, "%q", s)
}

// Activity reports whether ev changes the conversation's content.
func (ev Event) Activity() bool {
	switch ev {
	case MessageSent, MessageReceived, MessageEdited, MessageDeleted, MessageSwiped:
		return true
	}
	return false
}

// Backuper is the engine operation the controller schedules.
type Backuper interface {
	PerformBackup(ctx context.Context) (*engine.Result, error)
}

// Controller binds one debounced trigger to the current conversation.
// Activity events restart the trigger; switching conversations discards the
// pending backup so it can never be written under the new conversation.
type Controller struct {
	backuper Backuper
	window   time.Duration
	clock    debounce.Clock
	logger   *slog.Logger

	// ctx is used by scheduled backups; set by Run or WithContext.
	ctx context.Context

	mu      sync.Mutex
	trigger *debounce.Trigger
	bound   chat.Identity
	closed  bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithWindow sets the quiet period before a backup runs.
func WithWindow(d time.Duration) Option {
	return func(c *Controller) {
		c.window = d
	}
}

// WithClock sets the clock used by the trigger.
func WithClock(clock debounce.Clock) Option {
	return func(c *Controller) {
		c.clock = clock
	}
}

// WithLogger sets the controller's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithContext sets the context scheduled backups run with.
func WithContext(ctx context.Context) Option {
	return func(c *Controller) {
		if ctx != nil {
			c.ctx = ctx
		}
	}
}

// New creates a Controller that schedules backups on b.
func New(b Backuper, opts ...Option) *Controller {
	c := &Controller{
		backuper: b,
		window:   debounce.DefaultWindow,
		logger:   slog.Default(),
		ctx:      context.Background(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.trigger = c.newTrigger()
	return c
}

func (c *Controller) newTrigger() *debounce.Trigger {
	var opts []debounce.Option
	if c.clock != nil {
		opts = append(opts, debounce.WithClock(c.clock))
	}
	return debounce.New(c.window, c.backup, opts...)
}

func (c *Controller) backup() {
	c.mu.Lock()
	ctx := c.ctx
	c.mu.Unlock()

	res, err := c.backuper.PerformBackup(ctx)
	if err != nil {
		// The engine has already logged and reported it.
		c.logger.Debug("scheduled backup failed", "error", err.Error())
		return
	}
	if res != nil && res.Skipped != "" {
		c.logger.Debug("scheduled backup skipped", "reason", string(res.Skipped))
	}
}

// Bound returns the conversation the trigger is bound to.
func (c *Controller) Bound() chat.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bound
}

// Handle reacts to one host event. id is the conversation the event is about
// and is only consulted for ConversationSwitched.
func (c *Controller) Handle(ev Event, id chat.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	switch {
	case ev.Activity():
		c.trigger.Fire()
	case ev == ConversationSwitched:
		if c.trigger.Cancel() {
			c.logger.Debug("discarded pending backup on switch", "from", c.bound.String())
		}
		// A fresh trigger per binding: nothing scheduled for the old
		// conversation can reach the new one.
		c.trigger = c.newTrigger()
		c.bound = id
		c.logger.Debug("bound to conversation", "identity", id.String())
	default:
		c.logger.Debug("ignoring event", "event", string(ev))
	}
}

// Cancel discards a pending backup. It reports whether one was pending.
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.trigger.Cancel()
}

// Pending reports whether a backup is scheduled.
func (c *Controller) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.trigger.Pending()
}

// SettingsChanged reacts to the enabled flag changing. Turning backups off
// discards the pending run; turning them on re-arms an engine that stopped
// on exhausted storage.
func (c *Controller) SettingsChanged(enabled bool) {
	if !enabled {
		c.Cancel()
		return
	}
	if r, ok := c.backuper.(interface{ Rearm() }); ok {
		r.Rearm()
	}
}

// Run handles events until ctx is done or events is closed, then flushes any
// pending backup.
func (c *Controller) Run(ctx context.Context, events <-chan Notification) error {
	c.mu.Lock()
	c.ctx = ctx
	c.mu.Unlock()

	defer c.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-events:
			if !ok {
				return nil
			}
			c.Handle(n.Event, n.Identity)
		}
	}
}

// Notification pairs an event with the conversation it concerns.
type Notification struct {
	Event    Event
	Identity chat.Identity
}

// Close runs any pending backup now and stops handling events.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	trigger := c.trigger
	// Flush with a live context even when Run's context is already done.
	c.ctx = context.WithoutCancel(c.ctx)
	c.mu.Unlock()

	if trigger.Flush() {
		c.logger.Debug("flushed pending backup on close")
	}
}
