package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"

	cberrors "github.com/thoreinstein/chatbackup/internal/errors"
	"github.com/thoreinstein/chatbackup/internal/metrics"
)

// exhaustedWarning is shown once when storage runs out.
const exhaustedWarning = "Backup storage is full. Automatic backups have been disabled; " +
	"delete old backups and re-enable them to continue."

// Engine decides whether a backup should run and hands the work to a
// Backend. It is safe for concurrent use.
type Engine struct {
	host     Host
	settings Settings
	backend  Backend
	notifier Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time

	// exhausted latches after the first storage exhaustion so the warning
	// is never repeated.
	exhausted atomic.Bool

	mu          sync.Mutex
	inFlight    map[string]bool
	status      Status
	subscribers map[int]func(Status)
	nextSub     int
}

// Option configures an Engine.
type Option func(*Engine)

// WithNotifier sets where user-visible messages go.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) {
		if n != nil {
			e.notifier = n
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithLogger sets the engine's logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock sets the time source used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New creates an Engine.
func New(host Host, settings Settings, backend Backend, opts ...Option) *Engine {
	e := &Engine{
		host:        host,
		settings:    settings,
		backend:     backend,
		notifier:    logNotifier{},
		logger:      slog.Default(),
		now:         time.Now,
		inFlight:    make(map[string]bool),
		subscribers: make(map[int]func(Status)),
	}
	for _, opt := range opts {
		opt(e)
	}
	if ln, ok := e.notifier.(logNotifier); ok {
		ln.logger = e.logger
		e.notifier = ln
	}
	e.metrics.SetAutoEnabled(settings.AutoBackupEnabled())
	return e
}

// PerformBackup snapshots the current conversation if every precondition
// holds. Unmet preconditions return a Result with Skipped set and no error.
//
// Errors match ErrCopyFailure (nothing was written), ErrStorageExhausted
// (backups are now disabled) or ErrStorageIO.
func (e *Engine) PerformBackup(ctx context.Context) (*Result, error) {
	if !e.settings.AutoBackupEnabled() {
		return e.skip(SkipDisabled, &Result{}), nil
	}

	id, ok := e.host.CurrentIdentity(ctx)
	if !ok || id.Validate() != nil {
		return e.skip(SkipNoIdentity, &Result{}), nil
	}
	res := &Result{Identity: id}

	live := e.host.Live()
	if live == nil || live.Len() == 0 {
		return e.skip(SkipEmpty, res), nil
	}

	key := id.Key()
	if !e.acquire(key) {
		return e.skip(SkipInFlight, res), nil
	}
	defer e.release(key)

	if e.exhausted.Load() {
		return e.skip(SkipExhausted, res), nil
	}

	name := e.host.DisplayName(ctx, id)
	if name == "" {
		name = id.SourceID
	}

	snap := Snapshot{
		Identity:    id,
		DisplayName: name,
		Live:        live,
		Timestamp:   e.now().UnixMilli(),
	}

	start := time.Now()
	put, err := e.backend.Store(ctx, snap)
	elapsed := time.Since(start)

	if err != nil {
		return e.fail(ctx, res, err, elapsed)
	}

	res.Record = put.Record
	res.Replaced = put.Replaced
	res.Evicted = len(put.Evicted)
	res.Count = put.Count

	outcome := metrics.OutcomeStored
	if put.Replaced {
		outcome = metrics.OutcomeReplaced
	}
	e.metrics.ObserveBackup(e.backend.Name(), outcome, res.Evicted, elapsed)

	e.logger.Info("backup complete",
		"identity", key,
		"messages", put.Record.MessageCount,
		"replaced", put.Replaced,
		"evicted", res.Evicted,
		"count", put.Count,
		"backend", e.backend.Name())

	e.updateStatus(func(s *Status) {
		s.LastBackupAt = put.Record.CreatedAt()
		s.LastIdentity = id
		s.LastRecordCount = put.Count
		s.LastError = ""
	})
	return res, nil
}

func (e *Engine) fail(ctx context.Context, res *Result, err error, elapsed time.Duration) (*Result, error) {
	backendName := e.backend.Name()
	key := res.Identity.Key()

	switch {
	case errors.Is(err, ErrEmptyConversation):
		// Emptied between the precondition check and the capture.
		return e.skip(SkipEmpty, res), nil

	case errors.Is(err, cberrors.ErrCopyFailure):
		e.metrics.ObserveBackup(backendName, metrics.OutcomeCopyFailed, 0, elapsed)
		e.logger.Error("backup aborted: snapshot could not be copied", "identity", key, "error", err.Error())
		e.notifier.Failure(ctx, "Backup failed: the conversation could not be copied.", err)

	case errors.Is(err, cberrors.ErrStorageExhausted):
		e.metrics.ObserveBackup(backendName, metrics.OutcomeExhausted, 0, elapsed)
		e.handleExhausted(ctx, key, err)

	case errors.Is(err, cberrors.ErrStorageIO):
		e.metrics.ObserveBackup(backendName, metrics.OutcomeIOError, 0, elapsed)
		e.logger.Error("backup failed: storage error", "identity", key, "error", err.Error())
		e.notifier.Failure(ctx, "Backup failed: could not write to backup storage.", err)

	default:
		e.metrics.ObserveBackup(backendName, metrics.OutcomeError, 0, elapsed)
		e.logger.Error("backup failed", "identity", key, "error", err.Error())
		e.notifier.Failure(ctx, "Backup failed.", err)
	}

	e.updateStatus(func(s *Status) {
		s.LastError = err.Error()
	})
	return res, errors.Wrapf(err, "backing up %s", res.Identity)
}

// handleExhausted disables automatic backups and warns exactly once.
func (e *Engine) handleExhausted(ctx context.Context, key string, err error) {
	if !e.exhausted.CompareAndSwap(false, true) {
		return
	}

	e.logger.Warn("storage exhausted, disabling automatic backups", "identity", key, "error", err.Error())
	if derr := e.settings.DisableAutoBackup(); derr != nil {
		e.logger.Error("could not persist disabled setting", "error", derr.Error())
	}
	e.metrics.SetAutoEnabled(false)
	e.notifier.Warning(ctx, exhaustedWarning)

	e.updateStatus(func(s *Status) {
		s.Exhausted = true
	})
}

// Rearm clears the exhaustion latch. Call it when the user re-enables
// backups after freeing space.
func (e *Engine) Rearm() {
	if e.exhausted.CompareAndSwap(true, false) {
		e.logger.Info("automatic backups re-armed")
		e.updateStatus(func(s *Status) {
			s.Exhausted = false
		})
	}
	e.metrics.SetAutoEnabled(e.settings.AutoBackupEnabled())
}

// Exhausted reports whether the exhaustion latch is set.
func (e *Engine) Exhausted() bool {
	return e.exhausted.Load()
}

func (e *Engine) skip(reason SkipReason, res *Result) *Result {
	res.Skipped = reason
	e.metrics.ObserveSkip(string(reason))
	e.logger.Debug("backup skipped", "reason", string(reason))
	return res
}

func (e *Engine) acquire(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inFlight[key] {
		return false
	}
	e.inFlight[key] = true
	return true
}

func (e *Engine) release(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inFlight, key)
}

// Status returns the current status.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Subscribe registers fn to be called with the new status after every
// change. It returns a function that removes the subscription.
func (e *Engine) Subscribe(fn func(Status)) (unsubscribe func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextSub
	e.nextSub++
	e.subscribers[id] = fn
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.subscribers, id)
	}
}

func (e *Engine) updateStatus(mutate func(*Status)) {
	e.mu.Lock()
	mutate(&e.status)
	status := e.status
	subs := make([]func(Status), 0, len(e.subscribers))
	for _, fn := range e.subscribers {
		subs = append(subs, fn)
	}
	e.mu.Unlock()

	for _, fn := range subs {
		fn(status)
	}
}

// logNotifier writes user messages to the log when no notifier is set.
type logNotifier struct {
	logger *slog.Logger
}

func (n logNotifier) Warning(_ context.Context, msg string) {
	n.log().Warn(msg)
}

func (n logNotifier) Failure(_ context.Context, msg string, err error) {
	n.log().Error(msg, "error", err.Error())
}

func (n logNotifier) log() *slog.Logger {
	if n.logger == nil {
		return slog.Default()
	}
	return n.logger
}
