package restore

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/thoreinstein/chatbackup/internal/chat"
	"github.com/thoreinstein/chatbackup/internal/metrics"
	"github.com/thoreinstein/chatbackup/pkg/clone"
)

// Restorer rebuilds a chat from a backup record. One Restorer runs one
// restore at a time.
type Restorer struct {
	host        Host
	confirmer   Confirmer
	canceler    Canceler
	observer    Observer
	stepTimeout time.Duration
	metrics     *metrics.Metrics
	logger      *slog.Logger

	running sync.Mutex

	mu    sync.Mutex
	state State
}

// Option configures a Restorer.
type Option func(*Restorer)

// WithConfirmer sets who approves restores. Without one every restore is
// declined.
func WithConfirmer(c Confirmer) Option {
	return func(r *Restorer) {
		r.confirmer = c
	}
}

// WithCanceler sets the trigger whose pending backup is discarded before
// the active chat changes.
func WithCanceler(c Canceler) Option {
	return func(r *Restorer) {
		r.canceler = c
	}
}

// WithObserver sets a callback for state transitions.
func WithObserver(fn Observer) Option {
	return func(r *Restorer) {
		r.observer = fn
	}
}

// WithStepTimeout bounds each host call. Non-positive values use
// DefaultStepTimeout.
func WithStepTimeout(d time.Duration) Option {
	return func(r *Restorer) {
		if d > 0 {
			r.stepTimeout = d
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Restorer) {
		r.metrics = m
	}
}

// WithLogger sets the restorer's logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Restorer) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a Restorer driving host.
func New(host Host, opts ...Option) *Restorer {
	r := &Restorer{
		host:        host,
		stepTimeout: DefaultStepTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns the current state.
func (r *Restorer) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Restore asks for confirmation and then replaces a new chat's contents with
// rec. Nothing is changed if the user declines.
//
// A failed step stops the sequence without rolling back earlier steps; the
// returned error is a *StepError and the Outcome records how far it got. A
// rendering failure is reported in Outcome.RenderErr and does not stop the
// restore.
func (r *Restorer) Restore(ctx context.Context, rec *chat.Record) (*Outcome, error) {
	if !r.running.TryLock() {
		return nil, ErrInProgress
	}
	defer r.running.Unlock()

	if err := rec.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	out := &Outcome{}
	logger := r.logger.With("identity", rec.Identity.Key(), "timestamp", rec.Timestamp)

	r.transition(Idle)
	r.transition(ConfirmPending)
	ok, err := r.confirm(ctx, rec)
	if err != nil {
		return r.fail(out, ConfirmPending, err, logger, start)
	}
	if !ok {
		r.transition(Idle)
		out.State = Idle
		out.Declined = true
		r.metrics.ObserveRestore(metrics.RestoreDeclined, "", time.Since(start))
		logger.Info("restore declined")
		return out, nil
	}

	if r.canceler != nil && r.canceler.Cancel() {
		logger.Debug("discarded pending automatic backup")
	}

	r.transition(SwitchingContext)
	err = r.call(ctx, func(ctx context.Context) error {
		return r.host.SelectEntity(ctx, rec.Identity.Kind, rec.Identity.SourceID)
	})
	if err != nil {
		return r.fail(out, SwitchingContext, err, logger, start)
	}

	r.transition(CreatingSession)
	session, err := bounded(ctx, r.stepTimeout, r.host.CreateChat)
	if err != nil {
		return r.fail(out, CreatingSession, err, logger, start)
	}
	out.Session = session

	r.transition(InjectingData)
	n, err := r.inject(rec)
	if err != nil {
		return r.fail(out, InjectingData, err, logger, start)
	}
	out.Messages = n

	r.transition(Rendering)
	if err := r.call(ctx, r.host.Render); err != nil {
		out.RenderErr = &StepError{Step: Rendering, Err: err}
		logger.Warn("render after restore failed", "error", err.Error())
	}

	r.transition(Persisting)
	if err := r.call(ctx, r.host.SaveChat); err != nil {
		return r.fail(out, Persisting, err, logger, start)
	}

	r.transition(Done)
	out.State = Done
	r.metrics.ObserveRestore(metrics.RestoreDone, "", time.Since(start))
	logger.Info("restore complete", "session", out.Session.String(), "messages", n)
	return out, nil
}

func (r *Restorer) confirm(ctx context.Context, rec *chat.Record) (bool, error) {
	if r.confirmer == nil {
		return false, nil
	}
	return r.confirmer.Confirm(ctx, rec)
}

// inject replaces the live chat's messages and metadata with copies of the
// record's.
func (r *Restorer) inject(rec *chat.Record) (int, error) {
	live := r.host.Live()
	if live == nil {
		return 0, errors.New("no active chat to restore into")
	}

	msgs, err := clone.Copy(rec.Messages, clone.WithLogger(r.logger))
	if err != nil {
		return 0, errors.Wrap(err, "copying messages")
	}
	meta, err := clone.Copy(rec.Metadata, clone.WithLogger(r.logger))
	if err != nil {
		return 0, errors.Wrap(err, "copying metadata")
	}

	live.ReplaceAll(msgs, meta)
	return len(msgs), nil
}

// call runs fn with the step timeout.
func (r *Restorer) call(ctx context.Context, fn func(context.Context) error) error {
	_, err := bounded(ctx, r.stepTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// bounded runs fn with a timeout. A host call that ignores its context is
// abandoned when the timeout passes.
func bounded[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		done <- result{v, err}
	}()

	var zero T
	select {
	case res := <-done:
		return res.v, res.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, errors.Wrapf(ErrStepTimeout, "after %s", timeout)
		}
		return zero, ctx.Err()
	}
}

func (r *Restorer) fail(out *Outcome, step State, err error, logger *slog.Logger, start time.Time) (*Outcome, error) {
	stepErr := &StepError{Step: step, Err: err}
	r.transition(Failed)
	out.State = Failed
	out.Err = stepErr
	r.metrics.ObserveRestore(metrics.RestoreFailed, step.String(), time.Since(start))
	logger.Error("restore failed", "step", step.String(), "error", err.Error())
	return out, stepErr
}

func (r *Restorer) transition(to State) {
	r.mu.Lock()
	from := r.state
	r.state = to
	r.mu.Unlock()

	if from == to {
		return
	}
	r.logger.Debug("restore state", "from", from.String(), "to", to.String())
	if r.observer != nil {
		r.observer(from, to)
	}
}
